package extract

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrm-expression-exporter/internal/expression"
	"vrm-expression-exporter/internal/scene"
	"vrm-expression-exporter/internal/scene/scenetest"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestExtractAlice(t *testing.T) {
	res := Extract(scenetest.Alice())
	require.True(t, res.OK())
	assert.Empty(t, res.Warnings)

	want := &expression.CharacterSet{
		CharacterName:      "Alice",
		ObjectInstanceName: "alice",
		SourcePath:         "alice.vrm",
		Entries: []expression.Entry{{
			Name:   "happy",
			Kind:   expression.KindPreset,
			Preset: expression.Happy,
			MorphBindings: []expression.MorphBinding{
				{MeshPath: "Face", TargetIndex: 1, TargetName: "MouthSmile", Weight01: 0.8},
			},
		}},
	}
	if diff := cmp.Diff(want, res.Set); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"Face"}, res.Inventory.MeshPaths())
}

func TestExtractOrdering(t *testing.T) {
	res := Extract(scenetest.Bob())
	require.True(t, res.OK())

	var names []string
	var kinds []expression.Kind
	for _, e := range res.Set.Entries {
		names = append(names, e.Name)
		kinds = append(kinds, e.Kind)
	}
	// presets in enum order, then customs in file order; "happy" custom is allowed
	assert.Equal(t, []string{"angry", "aa", "blink", "Wink", "happy", "Tongue"}, names)
	assert.Equal(t, []expression.Kind{
		expression.KindPreset, expression.KindPreset, expression.KindPreset,
		expression.KindCustom, expression.KindCustom, expression.KindCustom,
	}, kinds)

	assert.Equal(t, "bob_v2", res.Set.CharacterName, "falls back to instance name")
	assert.Equal(t, 3, res.Set.PresetCount())
	assert.Equal(t, 3, res.Set.CustomCount())
}

func TestExtractUnresolvedBindings(t *testing.T) {
	res := Extract(scenetest.Bob())
	require.True(t, res.OK())

	byName := map[string]expression.Entry{}
	for _, e := range res.Set.Entries {
		byName[e.Name] = e
	}

	aa := byName["aa"]
	require.Len(t, aa.MorphBindings, 2)
	assert.Equal(t, "Mouth_A", aa.MorphBindings[0].TargetName)
	assert.Equal(t, "Index_9", aa.MorphBindings[1].TargetName)

	ghost := byName["happy"]
	require.Len(t, ghost.MorphBindings, 1)
	assert.Equal(t, "Index_0", ghost.MorphBindings[0].TargetName)
	assert.Equal(t, 0.3, ghost.MorphBindings[0].Weight01)

	var unresolved int
	for _, w := range res.Warnings {
		if w.Code == expression.WarnUnresolvedMorphTarget {
			unresolved++
		}
	}
	assert.Equal(t, 2, unresolved)
}

func TestExtractKeepsZeroBindings(t *testing.T) {
	res := Extract(scenetest.Bob())
	require.True(t, res.OK())

	tongue := res.Set.Entries[len(res.Set.Entries)-1]
	require.Equal(t, "Tongue", tongue.Name)
	require.Len(t, tongue.MorphBindings, 2)
	assert.Equal(t, 0.0, tongue.MorphBindings[1].Weight01)
}

func TestExtractMaterialBindings(t *testing.T) {
	res := Extract(scenetest.Bob())
	require.True(t, res.OK())

	angry := res.Set.Entries[0]
	require.Equal(t, "angry", angry.Name)
	assert.Empty(t, angry.MorphBindings)
	assert.Equal(t, []expression.MaterialColorBinding{
		{MaterialName: "Skin", MaterialIndex: 0, Type: "color", Target: [4]float64{1, 0, 0, 1}},
	}, angry.MaterialColorBindings)
}

func TestExtractDuplicatesAndClamping(t *testing.T) {
	m := scenetest.Alice()
	m.Expressions.Custom = []*scene.Clip{{
		Name: "Dup",
		MorphBinds: []scene.MorphBind{
			{MeshPath: "Face", Index: 0, Weight: 0.2},
			{MeshPath: "Face", Index: 2, Weight: 1.7},
			{MeshPath: "Face", Index: 0, Weight: 0.9},
			{MeshPath: "Face", Index: -1, Weight: 0.5},
		},
	}}

	res := Extract(m)
	require.True(t, res.OK())

	dup := res.Set.Entries[1]
	assert.Equal(t, []expression.MorphBinding{
		{MeshPath: "Face", TargetIndex: 0, TargetName: "Blink", Weight01: 0.9},
		{MeshPath: "Face", TargetIndex: 2, TargetName: "BrowUp", Weight01: 1},
	}, dup.MorphBindings)

	codes := map[expression.WarningCode]int{}
	for _, w := range res.Warnings {
		codes[w.Code]++
		assert.Equal(t, "Alice", w.Character)
		assert.Equal(t, "Dup", w.Expression)
	}
	assert.Equal(t, 1, codes[expression.WarnDuplicateBinding])
	assert.Equal(t, 1, codes[expression.WarnWeightOutOfRange])
	assert.Equal(t, 1, codes[expression.WarnUnresolvedMorphTarget])
}

func TestExtractMissingSource(t *testing.T) {
	m := scenetest.Alice()
	m.Expressions = nil

	res := Extract(m)
	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, ErrMissingExpressionSource)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, expression.WarnMissingExpressionSource, res.Warnings[0].Code)
}

func TestExtractCarriesLoadWarnings(t *testing.T) {
	m := scenetest.Alice()
	m.Warnings = []expression.Warning{{
		Code:       expression.WarnMalformedExpression,
		Expression: "Broken",
		Detail:     "skipped: bad binds",
	}}

	res := Extract(m)
	require.True(t, res.OK())
	require.Len(t, res.Set.Entries, 1)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, expression.WarnMalformedExpression, res.Warnings[0].Code)
	assert.Equal(t, "Alice", res.Warnings[0].Character)
	assert.Empty(t, m.Warnings[0].Character, "model left untouched")
}

func TestExtractIdempotent(t *testing.T) {
	for _, build := range []func() *scene.Model{scenetest.Alice, scenetest.Bob} {
		m := build()
		first := Extract(m)
		second := Extract(m)
		if diff := cmp.Diff(first.Set, second.Set); diff != "" {
			t.Errorf("%s: second extraction differs (-first +second):\n%s", m.InstanceName, diff)
		}
		assert.Equal(t, first.Inventory.MeshPaths(), second.Inventory.MeshPaths())
	}
}

func TestExtractDoesNotMutate(t *testing.T) {
	m := scenetest.Bob()
	before := append([]float64(nil), m.Meshes[0].Weights...)
	Extract(m)
	assert.Equal(t, before, m.Meshes[0].Weights)
}

func TestBuildInventory(t *testing.T) {
	inv := BuildInventory(scenetest.Bob())

	assert.Equal(t, []string{"Body/Hair", "Body/Head"}, inv.MeshPaths(), "meshes without morph targets are omitted")
	names, ok := inv.Targets("Body/Head")
	require.True(t, ok)
	assert.Equal(t, []string{"Blink", "Wink_L", "Mouth_A", "TongueOut"}, names)

	names[0] = "mutated"
	again, _ := inv.Targets("Body/Head")
	assert.Equal(t, "Blink", again[0])
}

func TestAll(t *testing.T) {
	missing := scenetest.Alice()
	missing.InstanceName = "ghost"
	missing.Expressions = nil

	results, err := All([]*scene.Model{missing, scenetest.Alice(), scenetest.Bob()}, quietLogger())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.False(t, results[0].OK())
	assert.True(t, results[1].OK())
	assert.True(t, results[2].OK())
}

func TestAllEmpty(t *testing.T) {
	empty := scenetest.Alice()
	empty.Expressions = &scene.ExpressionSource{}

	tests := []struct {
		name   string
		models []*scene.Model
	}{
		{"no models", nil},
		{"no expressions", []*scene.Model{empty}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := All(tt.models, quietLogger())
			assert.True(t, errors.Is(err, ErrEmptyExtractionResult))
		})
	}
}
