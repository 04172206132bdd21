// Package dhikr implements the per-device tasbih counter.
package dhikr

// Dhikr is one remembrance phrase with its customary repetition target.
type Dhikr struct {
	Index           int    `json:"index"`
	Arabic          string `json:"arabic"`
	Transliteration string `json:"transliteration"`
	Meaning         string `json:"meaning"`
	Target          int    `json:"target"`
}

var catalog = []Dhikr{
	{0, "سُبْحَانَ اللَّهِ", "SubhanAllah", "Glory be to Allah", 33},
	{1, "الْحَمْدُ لِلَّهِ", "Alhamdulillah", "Praise be to Allah", 33},
	{2, "اللَّهُ أَكْبَرُ", "Allahu Akbar", "Allah is the Greatest", 34},
	{3, "لَا إِلَٰهَ إِلَّا اللَّهُ", "La ilaha illallah", "There is no god but Allah", 100},
	{4, "أَسْتَغْفِرُ اللَّهَ", "Astaghfirullah", "I seek forgiveness from Allah", 100},
}

// Catalog returns a copy of the available dhikr.
func Catalog() []Dhikr {
	return append([]Dhikr(nil), catalog...)
}

// Lookup returns the dhikr at index.
func Lookup(index int) (Dhikr, bool) {
	if index < 0 || index >= len(catalog) {
		return Dhikr{}, false
	}
	return catalog[index], true
}
