// Package prayer computes Qibla bearings and daily prayer times.
package prayer

import "strings"

// Method is a prayer-time calculation convention.
type Method string

const (
	MethodJafari  Method = "Jafari"
	MethodKarachi Method = "Karachi"
	MethodISNA    Method = "ISNA"
	MethodMWL     Method = "MWL"
	MethodMakkah  Method = "Makkah"
	MethodEgypt   Method = "Egypt"
	MethodTehran  Method = "Tehran"
)

// DefaultMethod is used for unknown or empty method names.
const DefaultMethod = MethodMWL

// methodCodes maps methods to the numeric codes of the Aladhan API.
var methodCodes = map[Method]int{
	MethodJafari:  0,
	MethodKarachi: 1,
	MethodISNA:    2,
	MethodMWL:     3,
	MethodMakkah:  4,
	MethodEgypt:   5,
	MethodTehran:  7,
}

// Methods lists every supported method.
var Methods = []Method{
	MethodMWL,
	MethodISNA,
	MethodEgypt,
	MethodMakkah,
	MethodKarachi,
	MethodTehran,
	MethodJafari,
}

// ParseMethod resolves a method name case-insensitively.
// Unknown names resolve to DefaultMethod and ok=false.
func ParseMethod(name string) (m Method, ok bool) {
	for _, candidate := range Methods {
		if strings.EqualFold(string(candidate), strings.TrimSpace(name)) {
			return candidate, true
		}
	}
	return DefaultMethod, false
}

// Code returns the Aladhan API code of the method.
func (m Method) Code() int {
	if code, ok := methodCodes[m]; ok {
		return code
	}
	return methodCodes[DefaultMethod]
}

// MethodCode returns the Aladhan code for a method name, 3 (MWL) if unknown.
func MethodCode(name string) int {
	m, _ := ParseMethod(name)
	return m.Code()
}

// params are the twilight conventions of a method.
type params struct {
	fajrAngle    float64
	ishaAngle    float64 // ignored when ishaMinutes > 0
	ishaMinutes  float64 // minutes after maghrib
	maghribAngle float64 // 0 means sunset
}

var methodParams = map[Method]params{
	MethodMWL:     {fajrAngle: 18, ishaAngle: 17},
	MethodISNA:    {fajrAngle: 15, ishaAngle: 15},
	MethodEgypt:   {fajrAngle: 19.5, ishaAngle: 17.5},
	MethodMakkah:  {fajrAngle: 18.5, ishaMinutes: 90},
	MethodKarachi: {fajrAngle: 18, ishaAngle: 18},
	MethodTehran:  {fajrAngle: 17.7, ishaAngle: 14, maghribAngle: 4.5},
	MethodJafari:  {fajrAngle: 16, ishaAngle: 14, maghribAngle: 4},
}

func (m Method) params() params {
	if p, ok := methodParams[m]; ok {
		return p
	}
	return methodParams[DefaultMethod]
}
