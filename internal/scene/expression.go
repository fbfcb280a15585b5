package scene

import "vrm-expression-exporter/internal/expression"

// MorphBind is a raw morph-target binding as stored in the source file.
type MorphBind struct {
	MeshPath string
	Index    int
	Weight   float64 // 0..1
}

// MaterialColorBind is a raw material color override.
type MaterialColorBind struct {
	Material      string
	MaterialIndex int
	Type          string
	Target        [4]float64
}

// TextureTransformBind is a raw material UV override.
type TextureTransformBind struct {
	Material      string
	MaterialIndex int
	Offset        [2]float64
	Scale         [2]float64
}

// Clip is one expression definition.
type Clip struct {
	Name                  string
	MorphBinds            []MorphBind
	MaterialColorBinds    []MaterialColorBind
	TextureTransformBinds []TextureTransformBind
}

// ExpressionSource is the character's expression table: one optional clip
// per preset slot plus the custom clips in file order.
type ExpressionSource struct {
	Presets [expression.PresetCount]*Clip
	Custom  []*Clip
}

// Preset returns the clip bound to slot p, or nil when the slot is empty.
func (s *ExpressionSource) Preset(p expression.Preset) *Clip {
	if s == nil || !p.Valid() {
		return nil
	}
	return s.Presets[p]
}

// SetPreset binds a clip to slot p. Invalid slots are ignored.
func (s *ExpressionSource) SetPreset(p expression.Preset, c *Clip) {
	if p.Valid() {
		s.Presets[p] = c
	}
}
