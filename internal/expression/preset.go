package expression

import "golang.org/x/text/cases"

// Preset is one of the fixed, standardized expression slots.
type Preset int

const (
	Happy Preset = iota
	Angry
	Sad
	Relaxed
	Surprised
	Aa
	Ih
	Ou
	Ee
	Oh
	Blink
	BlinkLeft
	BlinkRight
	LookUp
	LookDown
	LookLeft
	LookRight
	Neutral

	// PresetCount is the number of preset slots.
	PresetCount int = iota
)

var presetNames = [PresetCount]string{
	"happy", "angry", "sad", "relaxed", "surprised",
	"aa", "ih", "ou", "ee", "oh",
	"blink", "blinkLeft", "blinkRight",
	"lookUp", "lookDown", "lookLeft", "lookRight",
	"neutral",
}

// Presets returns every preset slot in extraction order.
func Presets() []Preset {
	out := make([]Preset, PresetCount)
	for i := range out {
		out[i] = Preset(i)
	}
	return out
}

// Valid reports whether p names a known slot.
func (p Preset) Valid() bool {
	return p >= 0 && int(p) < PresetCount
}

func (p Preset) String() string {
	if !p.Valid() {
		return "unknown"
	}
	return presetNames[p]
}

// ParsePreset resolves a preset key. Matching is case-insensitive
// ("BlinkLeft", "blinkleft" and "blinkLeft" are the same slot).
func ParsePreset(name string) (Preset, bool) {
	folded := cases.Fold().String(name)
	for i, n := range presetNames {
		if cases.Fold().String(n) == folded {
			return Preset(i), true
		}
	}
	return 0, false
}
