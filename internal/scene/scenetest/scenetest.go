// Package scenetest builds small in-memory characters for tests.
package scenetest

import (
	"github.com/go-gl/mathgl/mgl64"

	"vrm-expression-exporter/internal/expression"
	"vrm-expression-exporter/internal/scene"
)

// Quad returns a unit quad in the XY plane centred on (cx, cy, cz) with the
// given half extents. One morph delta per target name pushes every vertex +Z.
func Quad(name, path string, cx, cy, cz, hw, hh float64, targets ...string) *scene.Mesh {
	prim := scene.Primitive{
		Positions: []mgl64.Vec3{
			{cx - hw, cy - hh, cz},
			{cx + hw, cy - hh, cz},
			{cx + hw, cy + hh, cz},
			{cx - hw, cy + hh, cz},
		},
		UVs:      []mgl64.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
		Material: 0,
	}
	for range targets {
		d := mgl64.Vec3{0, 0, 0.01}
		prim.Targets = append(prim.Targets, []mgl64.Vec3{d, d, d, d})
	}
	return &scene.Mesh{
		Name:        name,
		Path:        path,
		TargetNames: append([]string(nil), targets...),
		Weights:     make([]float64, len(targets)),
		Layer:       scene.DefaultLayer,
		Primitives:  []scene.Primitive{prim},
	}
}

// Alice is a character with a single "happy" preset binding Face:MouthSmile at 0.8.
func Alice() *scene.Model {
	src := &scene.ExpressionSource{}
	src.SetPreset(expression.Happy, &scene.Clip{
		Name:       "happy",
		MorphBinds: []scene.MorphBind{{MeshPath: "Face", Index: 1, Weight: 0.8}},
	})
	return &scene.Model{
		InstanceName: "alice",
		MetaName:     "Alice",
		SourcePath:   "alice.vrm",
		Expressions:  src,
		Meshes: []*scene.Mesh{
			Quad("Face", "Face", 0, 1.45, 0, 0.1, 0.12, "Blink", "MouthSmile", "BrowUp"),
			Quad("Body", "Body", 0, 0.8, 0, 0.25, 0.6),
		},
		Materials: []*scene.Material{{
			Name:             "Skin",
			Colors:           map[string][4]float64{"color": {1, 0.9, 0.8, 1}},
			BaseColorTexture: -1,
			UVScale:          [2]float64{1, 1},
		}},
	}
}

// Bob has several presets, custom expressions, an unresolved binding and a
// mesh without morph targets.
func Bob() *scene.Model {
	src := &scene.ExpressionSource{}
	src.SetPreset(expression.Blink, &scene.Clip{
		Name: "blink",
		MorphBinds: []scene.MorphBind{
			{MeshPath: "Body/Head", Index: 0, Weight: 1},
		},
	})
	src.SetPreset(expression.Aa, &scene.Clip{
		Name: "aa",
		MorphBinds: []scene.MorphBind{
			{MeshPath: "Body/Head", Index: 2, Weight: 1},
			{MeshPath: "Body/Head", Index: 9, Weight: 0.5},
		},
	})
	src.SetPreset(expression.Angry, &scene.Clip{
		Name: "angry",
		MaterialColorBinds: []scene.MaterialColorBind{
			{Material: "Skin", MaterialIndex: 0, Type: "color", Target: [4]float64{1, 0, 0, 1}},
		},
	})
	src.Custom = []*scene.Clip{
		{Name: "Wink", MorphBinds: []scene.MorphBind{{MeshPath: "Body/Head", Index: 1, Weight: 0.5}}},
		{Name: "happy", MorphBinds: []scene.MorphBind{{MeshPath: "Ghost", Index: 0, Weight: 0.3}}},
		{Name: "Tongue", MorphBinds: []scene.MorphBind{
			{MeshPath: "Body/Head", Index: 3, Weight: 0.6},
			{MeshPath: "Body/Head", Index: 1, Weight: 0},
		}},
	}
	return &scene.Model{
		InstanceName: "bob_v2",
		SourcePath:   "bob_v2.vrm",
		Expressions:  src,
		Meshes: []*scene.Mesh{
			Quad("Head", "Body/Head", 0, 1.5, 0, 0.1, 0.1, "Blink", "Wink_L", "Mouth_A", "TongueOut"),
			Quad("Hair", "Body/Hair", 0, 1.6, 0, 0.15, 0.1, "HairSway"),
			Quad("Shoes", "Shoes", 0, 0.05, 0, 0.2, 0.05),
		},
		Materials: []*scene.Material{{
			Name:             "Skin",
			Colors:           map[string][4]float64{"color": {1, 1, 1, 1}},
			BaseColorTexture: -1,
			UVScale:          [2]float64{1, 1},
		}},
	}
}
