// Package scene holds the in-memory character representation the exporter
// reads from: a node-path-addressed mesh inventory with morph targets and
// mutable weights, the material table, and the raw expression source.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"

	"vrm-expression-exporter/internal/expression"
)

// DefaultLayer is the visibility channel meshes start on.
const DefaultLayer uint32 = 1

// Model is one loaded character instance.
type Model struct {
	InstanceName string // object/file name
	MetaName     string // display name from metadata, may be empty
	SourcePath   string

	Expressions *ExpressionSource // nil when the file carries no expression data
	Meshes      []*Mesh
	Materials   []*Material
	Images      []Image

	// Warnings are load-time problems, such as expressions that could not
	// be decoded and were left out. Character is filled in by extraction.
	Warnings []expression.Warning
}

// DisplayName returns the metadata name, falling back to the instance name.
func (m *Model) DisplayName() string {
	if m.MetaName != "" {
		return m.MetaName
	}
	return m.InstanceName
}

// MeshByPath finds a mesh by its path relative to the character root.
func (m *Model) MeshByPath(path string) (*Mesh, bool) {
	for _, mesh := range m.Meshes {
		if mesh.Path == path {
			return mesh, true
		}
	}
	return nil, false
}

// Bounds returns the union of every mesh's bounds.
// ok is false when the model has no geometry.
func (m *Model) Bounds() (b r3.Box, ok bool) {
	for _, mesh := range m.Meshes {
		mb, has := mesh.Bounds()
		if !has {
			continue
		}
		if !ok {
			b, ok = mb, true
			continue
		}
		b = b.Union(mb)
	}
	return b, ok
}

// Image is an encoded texture image referenced by materials.
type Image struct {
	Name     string
	MimeType string
	URI      string // external file, relative to the model, when Data is empty
	Data     []byte
}

// Material holds the color properties an expression can override.
type Material struct {
	Name             string
	Colors           map[string][4]float64 // keyed by bind type ("color", "emissionColor", ...)
	BaseColorTexture int                   // index into Model.Images, -1 for none
	UVOffset         [2]float64
	UVScale          [2]float64
}

// Color returns the value of one color property.
func (m *Material) Color(kind string) ([4]float64, bool) {
	c, ok := m.Colors[kind]
	return c, ok
}

// SetColor assigns one color property.
func (m *Material) SetColor(kind string, c [4]float64) {
	if m.Colors == nil {
		m.Colors = make(map[string][4]float64)
	}
	m.Colors[kind] = c
}

// Primitive is one indexed triangle list.
// Positions are in character space; Targets[i] holds per-vertex deltas of morph target i.
type Primitive struct {
	Positions []mgl64.Vec3
	Targets   [][]mgl64.Vec3
	UVs       []mgl64.Vec2
	Indices   []uint32
	Material  int // index into Model.Materials, -1 for none
}
