package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a renderable node with an optional morph-target table.
type Mesh struct {
	Name        string // node name
	Path        string // relative path from the character root, "" for the root itself
	TargetNames []string
	Weights     []float64 // per target, 0..1
	Layer       uint32    // visibility channel bits
	Primitives  []Primitive
}

// MorphCount returns the number of morph targets.
func (m *Mesh) MorphCount() int {
	return len(m.TargetNames)
}

// Weight returns the current weight of target i (0 when out of range).
func (m *Mesh) Weight(i int) float64 {
	if i < 0 || i >= len(m.Weights) {
		return 0
	}
	return m.Weights[i]
}

// SetWeight assigns the weight of target i. It reports false when i is out of range.
func (m *Mesh) SetWeight(i int, w float64) bool {
	if i < 0 || i >= m.MorphCount() {
		return false
	}
	if len(m.Weights) < m.MorphCount() {
		grown := make([]float64, m.MorphCount())
		copy(grown, m.Weights)
		m.Weights = grown
	}
	m.Weights[i] = w
	return true
}

// ResetWeights sets every target weight to zero.
func (m *Mesh) ResetWeights() {
	for i := range m.Weights {
		m.Weights[i] = 0
	}
}

// MorphedPositions returns the positions of p with the current weights applied.
func (m *Mesh) MorphedPositions(p *Primitive) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(p.Positions))
	copy(out, p.Positions)
	for ti, deltas := range p.Targets {
		w := m.Weight(ti)
		if w == 0 {
			continue
		}
		for vi := range out {
			if vi < len(deltas) {
				out[vi] = out[vi].Add(deltas[vi].Mul(w))
			}
		}
	}
	return out
}

// Bounds returns the axis-aligned bounds of the rest pose.
// ok is false for a mesh without vertices.
func (m *Mesh) Bounds() (r3.Box, bool) {
	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	n := 0
	for _, p := range m.Primitives {
		for _, v := range p.Positions {
			lo.X, hi.X = math.Min(lo.X, v[0]), math.Max(hi.X, v[0])
			lo.Y, hi.Y = math.Min(lo.Y, v[1]), math.Max(hi.Y, v[1])
			lo.Z, hi.Z = math.Min(lo.Z, v[2]), math.Max(hi.Z, v[2])
			n++
		}
	}
	if n == 0 {
		return r3.Box{}, false
	}
	return r3.Box{Min: lo, Max: hi}, true
}
