package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validation limits shared by request DTOs.
const (
	MaxTitleLength    = 120
	MaxBodyLength     = 1000
	MaxTokenLength    = 4096
	MaxDeviceIDLength = 128
	MaxOffsetMinutes  = 30
)

// ErrInvalidPayload is returned for bodies that are not valid JSON.
var ErrInvalidPayload = errors.New("invalid json payload")

// Validator wraps a configured validator.Validate.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that reports JSON field names and knows
// the iana_tz tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("iana_tz", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" {
			return true
		}
		_, err := time.LoadLocation(name)
		return err == nil
	})
	v.RegisterAlias("offset", fmt.Sprintf("min=-%d,max=%d", MaxOffsetMinutes, MaxOffsetMinutes))
	v.RegisterAlias("platform", "oneof=android ios web")
	return &Validator{validate: v}
}

// Struct validates s against its tags.
func (v *Validator) Struct(s any) error {
	return v.validate.Struct(s)
}

// Var validates a single value against tag.
func (v *Validator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// Details converts decode and validation errors into field messages for
// the error response.
func Details(err error) map[string]string {
	if err == nil {
		return nil
	}

	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	if errors.Is(err, ErrInvalidPayload) || errors.As(err, &se) || errors.As(err, &ute) {
		return map[string]string{"payload": "invalid json"}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = fieldMessage(fe)
		}
		return out
	}
	return map[string]string{"payload": "invalid payload"}
}

func fieldMessage(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "latitude":
		return "must be a valid latitude"
	case "longitude":
		return "must be a valid longitude"
	case "iana_tz":
		return "must be a valid IANA timezone"
	case "offset":
		return fmt.Sprintf("must be between -%d and %d", MaxOffsetMinutes, MaxOffsetMinutes)
	case "platform":
		return "must be one of: android, ios, web"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "min":
		if isNumberKind(fe.Kind()) {
			return "must be at least " + param
		}
		return "must be at least " + param + " characters long"
	case "max":
		if isNumberKind(fe.Kind()) {
			return "must be at most " + param
		}
		return "must be at most " + param + " characters long"
	case "gte":
		return "must be greater than or equal to " + param
	case "lte":
		return "must be less than or equal to " + param
	case "url":
		return "must be a valid URL"
	case "dive":
		return "contains an invalid item"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), param)
		}
		return "failed " + fe.Tag()
	}
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
