package expression

import "fmt"

// Kind distinguishes preset slots from author-defined expressions.
type Kind int

const (
	KindPreset Kind = iota
	KindCustom
)

func (k Kind) String() string {
	if k == KindPreset {
		return "Preset"
	}
	return "Custom"
}

// BindingKey identifies one morph target channel on one mesh.
type BindingKey struct {
	MeshPath    string
	TargetIndex int
}

// MorphBinding is one morph-target weight override.
// Weight01 is the canonical unit; consumers convert to percent themselves.
type MorphBinding struct {
	MeshPath    string  `json:"mesh_path"`
	TargetIndex int     `json:"target_index"`
	TargetName  string  `json:"target_name"`
	Weight01    float64 `json:"weight"`
}

// Key returns the (mesh, index) pair the binding targets.
func (b MorphBinding) Key() BindingKey {
	return BindingKey{MeshPath: b.MeshPath, TargetIndex: b.TargetIndex}
}

// Percent returns the weight on the 0-100 scale.
func (b MorphBinding) Percent() float64 {
	return b.Weight01 * 100
}

// ColumnKey is the "meshPath:targetName" label used by tabular exports.
func (b MorphBinding) ColumnKey() string {
	return b.MeshPath + ":" + b.TargetName
}

// IndexName is the display name used when a target cannot be resolved.
func IndexName(index int) string {
	return fmt.Sprintf("Index_%d", index)
}

// MaterialColorBinding overrides one color property of a material.
type MaterialColorBinding struct {
	MaterialName  string     `json:"material_name"`
	MaterialIndex int        `json:"material_index"`
	Type          string     `json:"type"` // color, emissionColor, shadeColor, rimColor, outlineColor, matcapColor
	Target        [4]float64 `json:"target"`
}

// MaterialUVBinding overrides the main texture transform of a material.
type MaterialUVBinding struct {
	MaterialName  string     `json:"material_name"`
	MaterialIndex int        `json:"material_index"`
	Offset        [2]float64 `json:"offset"`
	Scale         [2]float64 `json:"scale"`
}

// Entry is one named expression.
type Entry struct {
	Name                  string                 `json:"name"`
	Kind                  Kind                   `json:"kind"`
	Preset                Preset                 `json:"preset"` // meaningful only for KindPreset
	MorphBindings         []MorphBinding         `json:"morph_bindings"`
	MaterialColorBindings []MaterialColorBinding `json:"material_color_bindings"`
	MaterialUVBindings    []MaterialUVBinding    `json:"material_uv_bindings"`
	PreviewImagePath      string                 `json:"preview_image_path,omitempty"`
}

// MeshWeights returns the bound weights for one mesh, keyed by target index.
func (e *Entry) MeshWeights(meshPath string) map[int]float64 {
	out := make(map[int]float64)
	for _, b := range e.MorphBindings {
		if b.MeshPath == meshPath {
			out[b.TargetIndex] = b.Weight01
		}
	}
	return out
}

// CharacterSet is one character's full expression collection.
// It is built once per extraction run and not modified afterwards;
// use WithPreviewPaths to derive a copy carrying capture results.
type CharacterSet struct {
	CharacterName      string  `json:"character_name"`
	ObjectInstanceName string  `json:"object_name"`
	SourcePath         string  `json:"source_path,omitempty"`
	Entries            []Entry `json:"entries"`
}

// PresetCount returns the number of preset entries.
func (s *CharacterSet) PresetCount() int {
	n := 0
	for _, e := range s.Entries {
		if e.Kind == KindPreset {
			n++
		}
	}
	return n
}

// CustomCount returns the number of custom entries.
func (s *CharacterSet) CustomCount() int {
	return len(s.Entries) - s.PresetCount()
}

// BindingCount returns the number of morph bindings across all entries.
func (s *CharacterSet) BindingCount() int {
	n := 0
	for _, e := range s.Entries {
		n += len(e.MorphBindings)
	}
	return n
}

// HasPreviewImages reports whether any entry has a preview path.
func (s *CharacterSet) HasPreviewImages() bool {
	for _, e := range s.Entries {
		if e.PreviewImagePath != "" {
			return true
		}
	}
	return false
}

// WithPreviewPaths returns a copy of s where entry i gets paths[i].
// Entries missing from paths keep their current value.
func (s *CharacterSet) WithPreviewPaths(paths map[int]string) *CharacterSet {
	out := *s
	out.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		e.MorphBindings = append([]MorphBinding(nil), e.MorphBindings...)
		e.MaterialColorBindings = append([]MaterialColorBinding(nil), e.MaterialColorBindings...)
		e.MaterialUVBindings = append([]MaterialUVBinding(nil), e.MaterialUVBindings...)
		if p, ok := paths[i]; ok {
			e.PreviewImagePath = p
		}
		out.Entries[i] = e
	}
	return &out
}
