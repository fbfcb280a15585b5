package anim

import (
	"encoding/json"
	"io"
	"sort"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrm-expression-exporter/internal/expression"
	"vrm-expression-exporter/internal/extract"
	"vrm-expression-exporter/internal/scene"
	"vrm-expression-exporter/internal/scene/scenetest"
)

func extracted(t *testing.T, m *scene.Model) (*expression.CharacterSet, expression.Inventory) {
	t.Helper()
	res := extract.Extract(m)
	require.True(t, res.OK())
	return res.Set, res.Inventory
}

func TestSynthesizeAliceDense(t *testing.T) {
	set, inv := extracted(t, scenetest.Alice())
	clips := Synthesize(set, inv, Options{IncludeZeroWeights: true})
	require.Len(t, clips, 1)

	c := clips[0]
	assert.Equal(t, "alice_Face_happy", c.Name)
	assert.Equal(t, []string{"Blink", "MouthSmile", "BrowUp"}, c.Targets())
	assert.Equal(t, []float64{0, 0.8, 0}, []float64{c.Curves[0].Weight01, c.Curves[1].Weight01, c.Curves[2].Weight01})
	assert.Equal(t, "blendShape.MouthSmile", c.Curves[1].Property)
	assert.Equal(t, []Keyframe{{Time: 0, Value: 80}}, c.Curves[1].Keys)
}

func TestSynthesizeAliceMouth(t *testing.T) {
	set, inv := extracted(t, scenetest.Alice())
	clips := Synthesize(set, inv, Options{
		IncludeZeroWeights:           true,
		ExcludeMouthTargets:          true,
		AlsoEmitMouthIncludedVariant: true,
	})
	require.Len(t, clips, 2)

	assert.False(t, clips[0].Key.WithMouth)
	assert.Equal(t, []string{"Blink", "BrowUp"}, clips[0].Targets())
	assert.True(t, clips[1].Key.WithMouth)
	assert.Equal(t, "alice_Face_happy_WithMouth", clips[1].Name)
	assert.Equal(t, []string{"MouthSmile"}, clips[1].Targets())
}

func TestSparseDenseDuality(t *testing.T) {
	set, inv := extracted(t, scenetest.Bob())
	dense := Synthesize(set, inv, Options{IncludeZeroWeights: true})
	sparse := Synthesize(set, inv, Options{})
	require.Equal(t, len(dense), len(sparse))

	for i := range dense {
		require.Equal(t, dense[i].ID, sparse[i].ID)
		var nonZero []string
		for _, cv := range dense[i].Curves {
			if cv.Weight01 != 0 {
				nonZero = append(nonZero, cv.TargetName)
			}
		}
		assert.Equal(t, nonZero, nilIfEmpty(sparse[i].Targets()), dense[i].ID)
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestMouthPartition(t *testing.T) {
	set, inv := extracted(t, scenetest.Bob())
	dense := Synthesize(set, inv, Options{IncludeZeroWeights: true})
	split := Synthesize(set, inv, Options{
		IncludeZeroWeights:           true,
		ExcludeMouthTargets:          true,
		AlsoEmitMouthIncludedVariant: true,
	})
	require.Equal(t, 2*len(dense), len(split))

	for i, d := range dense {
		primary, mouth := split[2*i], split[2*i+1]
		require.False(t, primary.Key.WithMouth)
		require.True(t, mouth.Key.WithMouth)

		seen := map[string]int{}
		for _, n := range primary.Targets() {
			seen[n]++
		}
		for _, n := range mouth.Targets() {
			seen[n]++
		}
		for n, c := range seen {
			assert.Equal(t, 1, c, "%s appears in both variants of %s", n, d.ID)
		}

		union := append(primary.Targets(), mouth.Targets()...)
		want := d.Targets()
		sort.Strings(union)
		sort.Strings(want)
		assert.Equal(t, want, union, d.ID)
	}
}

func TestSynthesizeOrdering(t *testing.T) {
	set, inv := extracted(t, scenetest.Bob())
	clips := Synthesize(set, inv, Options{})

	// meshes ascending, entries in set order
	require.Len(t, clips, 2*len(set.Entries))
	assert.Equal(t, "Body/Hair", clips[0].Key.MeshPath)
	assert.Equal(t, "angry", clips[0].Key.Expression)
	assert.Equal(t, "Body/Head", clips[len(set.Entries)].Key.MeshPath)
	assert.Empty(t, clips[0].Curves, "empty clips are still emitted")
}

func TestSynthesizeEmpty(t *testing.T) {
	set, inv := extracted(t, scenetest.Alice())
	assert.Empty(t, Synthesize(&expression.CharacterSet{}, inv, Options{}))
	assert.Empty(t, Synthesize(set, expression.NewInventory(nil), Options{}))
	assert.Empty(t, Synthesize(nil, inv, Options{}))
}

func TestClipKeyCollisionFree(t *testing.T) {
	a := ClipKey{Object: "a_b", MeshPath: "c", Expression: "d"}
	b := ClipKey{Object: "a", MeshPath: "b_c", Expression: "d"}
	c := ClipKey{Object: "a/b", MeshPath: "c", Expression: "d"}
	d := ClipKey{Object: "a", MeshPath: "b/c", Expression: "d"}

	assert.Equal(t, a.Name(), b.Name(), "display names may clash")
	ids := map[string]bool{}
	for _, k := range []ClipKey{a, b, c, d, {Object: "a", MeshPath: "b/c", Expression: "d", WithMouth: true}} {
		assert.False(t, ids[k.String()], k.String())
		ids[k.String()] = true
	}
	assert.Equal(t, a.String(), ClipKey{Object: "a_b", MeshPath: "c", Expression: "d"}.String())
}

func TestClipKeyRootMesh(t *testing.T) {
	assert.Equal(t, "obj_Root_smile", ClipKey{Object: "obj", Expression: "smile"}.Name())
}

func TestMouthClassifier(t *testing.T) {
	c := NewMouthClassifier("Fcl_MTH")
	tests := []struct {
		name string
		want bool
	}{
		{"MouthSmile", true},
		{"MOUTH_open", true},
		{"LipPucker", true},
		{"jawOpen", true},
		{"TongueOut", true},
		{"vrc.v_aa", true},
		{"Param.MouthOpenY", true},
		{"fcl_mth_fun", true},
		{"Blink", false},
		{"BrowUp", false},
		{"Eye_Close", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsMouth(tt.name))
		})
	}
}

func TestWriter(t *testing.T) {
	set, inv := extracted(t, scenetest.Alice())
	clips := Synthesize(set, inv, Options{
		IncludeZeroWeights:           true,
		ExcludeMouthTargets:          true,
		AlsoEmitMouthIncludedVariant: true,
	})
	clash := clips[0]
	clash.Name = "alice_Face_happy_2"
	clips = append(clips, clips[0], clash)

	fs := afero.NewMemMapFs()
	w := &Writer{Fs: fs, Dir: "anim", Logger: log.New(io.Discard)}
	paths, err := w.Write(clips)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"anim/alice_Face_happy.anim.json",
		"anim/WithMouth/alice_Face_happy_WithMouth.anim.json",
		"anim/alice_Face_happy_2.anim.json",
		"anim/alice_Face_happy_2_2.anim.json",
	}, paths)

	data, err := afero.ReadFile(fs, paths[1])
	require.NoError(t, err)
	var got Clip
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, clips[1].ID, got.ID)
	assert.Equal(t, []string{"MouthSmile"}, got.Targets())
}
