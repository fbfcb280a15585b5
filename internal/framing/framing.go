// Package framing locates a character's face from mesh bounds and places a
// preview camera in front of it.
package framing

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/text/cases"
	"gonum.org/v1/gonum/spatial/r3"

	"vrm-expression-exporter/internal/scene"
)

// Tier tells which heuristic produced the face bounds.
type Tier int

const (
	// TierFaceMesh: meshes with morph targets whose name or path contains "face".
	TierFaceMesh Tier = iota
	// TierMorphMesh: every mesh with morph targets.
	TierMorphMesh
	// TierWholeModel: the whole character. No mesh qualified.
	TierWholeModel
)

func (t Tier) String() string {
	switch t {
	case TierFaceMesh:
		return "face-mesh"
	case TierMorphMesh:
		return "morph-mesh"
	default:
		return "whole-model"
	}
}

// FacePattern is matched case-insensitively against mesh names and paths.
const FacePattern = "face"

func isFaceMesh(m *scene.Mesh) bool {
	fold := cases.Fold()
	p := fold.String(FacePattern)
	return strings.Contains(fold.String(m.Name), p) || strings.Contains(fold.String(m.Path), p)
}

// FaceBounds returns the bounds used to frame the face. Tiers are strict
// fallbacks: the first one with geometry wins, nothing is blended. A model
// without any geometry yields a zero box at TierWholeModel.
func FaceBounds(m *scene.Model) (r3.Box, Tier) {
	if b, ok := unionBounds(m.Meshes, func(mesh *scene.Mesh) bool {
		return mesh.MorphCount() > 0 && isFaceMesh(mesh)
	}); ok {
		return b, TierFaceMesh
	}
	if b, ok := unionBounds(m.Meshes, func(mesh *scene.Mesh) bool {
		return mesh.MorphCount() > 0
	}); ok {
		return b, TierMorphMesh
	}
	b, _ := m.Bounds()
	return b, TierWholeModel
}

func unionBounds(meshes []*scene.Mesh, keep func(*scene.Mesh) bool) (b r3.Box, ok bool) {
	for _, mesh := range meshes {
		if !keep(mesh) {
			continue
		}
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

// Options holds the framing constants, in character units (meters).
type Options struct {
	MinCenterY          float64 // below this the center height is replaced
	EstimatedHeadHeight float64
	MinFaceHeight       float64 // below this the face height is replaced
	EstimatedFaceHeight float64
	DistanceMultiplier  float64
	FOV                 float64 // vertical, degrees
}

// DefaultOptions are tuned for human-scale avatars.
func DefaultOptions() Options {
	return Options{
		MinCenterY:          0.5,
		EstimatedHeadHeight: 1.5,
		MinFaceHeight:       0.1,
		EstimatedFaceHeight: 0.25,
		DistanceMultiplier:  2.5,
		FOV:                 35,
	}
}

// Pose is a look-at camera placement.
type Pose struct {
	Position mgl64.Vec3
	LookAt   mgl64.Vec3
	Up       mgl64.Vec3
	FOV      float64 // degrees
	Distance float64

	CenterCorrected bool
	HeightCorrected bool
}

// Corrected reports whether any degenerate-bounds correction was applied.
func (p Pose) Corrected() bool {
	return p.CenterCorrected || p.HeightCorrected
}

// CameraPose frames bounds from the +Z side. Characters are assumed to face +Z.
func CameraPose(bounds r3.Box, opts Options) Pose {
	c := bounds.Center()
	center := mgl64.Vec3{c.X, c.Y, c.Z}
	height := bounds.Size().Y

	p := Pose{Up: mgl64.Vec3{0, 1, 0}, FOV: opts.FOV}
	if center[1] < opts.MinCenterY {
		center[1] = opts.EstimatedHeadHeight
		p.CenterCorrected = true
	}
	if height < opts.MinFaceHeight {
		height = opts.EstimatedFaceHeight
		p.HeightCorrected = true
	}

	p.Distance = height * opts.DistanceMultiplier
	p.LookAt = center
	p.Position = center.Add(mgl64.Vec3{0, 0, p.Distance})
	return p
}

// View returns the world-to-camera matrix.
func (p Pose) View() mgl64.Mat4 {
	return mgl64.LookAtV(p.Position, p.LookAt, p.Up)
}

// Projection returns a perspective projection for the given aspect ratio.
// Near and far planes scale with the camera distance.
func (p Pose) Projection(aspect float64) mgl64.Mat4 {
	near := max(p.Distance*0.01, 0.001)
	far := max(p.Distance*100, 10)
	return mgl64.Perspective(mgl64.DegToRad(p.FOV), aspect, near, far)
}
