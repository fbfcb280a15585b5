package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrm-expression-exporter/internal/capture"
)

func ptr[T any](v T) *T { return &v }

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "cfg.json", []byte(`{"output_dir":"json-out","width":256,"clips":false}`), 0644))
	require.NoError(t, afero.WriteFile(fs, "cfg.toml", []byte("output_dir = \"toml-out\"\nformat = \"webp\"\nmouth_patterns = [\"kuchi\"]\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "cfg.yaml", []byte("a: b"), 0644))
	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte("{"), 0644))

	tests := []struct {
		name    string
		path    string
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{
			name: "json",
			path: "cfg.json",
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "json-out", c.OutputDir)
				assert.Equal(t, 256, c.Width)
				assert.Equal(t, 512, c.Height, "unset field keeps default")
				assert.False(t, c.Clips)
				assert.True(t, c.WriteBOM)
			},
		},
		{
			name: "toml",
			path: "cfg.toml",
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "toml-out", c.OutputDir)
				assert.Equal(t, "webp", c.Format)
				assert.Equal(t, []string{"kuchi"}, c.MouthPatterns)
				assert.True(t, c.Clips)
			},
		},
		{name: "unknown extension", path: "cfg.yaml", wantErr: true},
		{name: "malformed", path: "bad.json", wantErr: true},
		{name: "missing", path: "nope.json", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(fs, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv([]string{
		"VRMEXPR_OUTPUT_DIR=env-out",
		"VRMEXPR_WRITE_BOM=false",
		"VRMEXPR_MOUTH_PATTERNS=kuchi,ago",
		"VRMEXPR_MIN_WEIGHT=2.5",
		"UNRELATED=1",
	})
	require.NoError(t, err)

	assert.Equal(t, "env-out", c.OutputDir)
	assert.False(t, c.WriteBOM)
	assert.Equal(t, []string{"kuchi", "ago"}, c.MouthPatterns)
	assert.Equal(t, 2.5, c.MinWeight)
	assert.Equal(t, 512, c.Width, "absent variables leave values alone")

	assert.Error(t, c.ApplyEnv([]string{"VRMEXPR_WIDTH=wide"}))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func() Config
		flags   Flags
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{
			name: "defaults",
			cfg:  Default,
			check: func(t *testing.T, c Config) {
				assert.Equal(t, filepath.Join("vrm-expressions", "Animations"), c.AnimDir)
				assert.Equal(t, filepath.Join("vrm-expressions", "Images"), c.ImageDir)
				assert.True(t, c.IncludeZeroWeights)
				assert.True(t, c.ExcludeMouthTargets)
				assert.True(t, c.WithMouthVariant)
				assert.True(t, c.WriteBOM)
				assert.Zero(t, c.MinWeight)
			},
		},
		{
			name: "flags win",
			cfg:  Default,
			flags: Flags{
				OutputDir:    "out",
				ImageDir:     "shots",
				IncludeZero:  ptr(false),
				ExcludeMouth: ptr(false),
				Capture:      ptr(false),
				Width:        64,
				Format:       "WEBP",
				NoBOM:        true,
				MinWeight:    ptr(10.0),
			},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, filepath.Join("out", "shots"), c.ImageDir)
				assert.False(t, c.IncludeZeroWeights)
				assert.False(t, c.ExcludeMouthTargets)
				assert.True(t, c.WithMouthVariant, "unset flag keeps config value")
				assert.False(t, c.Capture)
				assert.Equal(t, 64, c.Width)
				assert.Equal(t, "webp", c.Format)
				assert.False(t, c.WriteBOM)
				assert.Equal(t, 10.0, c.MinWeight)
			},
		},
		{
			name: "absolute dirs kept",
			cfg: func() Config {
				c := Default()
				c.AnimDir = filepath.Join(string(filepath.Separator), "abs", "anim")
				return c
			},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, filepath.Join(string(filepath.Separator), "abs", "anim"), c.AnimDir)
			},
		},
		{name: "bad format", cfg: Default, flags: Flags{Format: "gif"}, wantErr: true},
		{name: "bad min weight", cfg: Default, flags: Flags{MinWeight: ptr(120.0)}, wantErr: true},
		{
			name:    "bad size",
			cfg:     func() Config { c := Default(); c.Height = 0; return c },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.cfg()
			err := c.Resolve(tt.flags)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestDerivedOptions(t *testing.T) {
	c := Default()
	c.Format = "webp"
	c.Exposure = 1.5
	c.MouthPatterns = []string{"kuchi"}
	require.NoError(t, c.Resolve(Flags{}))

	co := c.CaptureOptions()
	assert.Equal(t, capture.FormatWebP, co.Format)
	assert.Equal(t, 2, co.Supersample)
	require.NotNil(t, co.Lights)
	assert.Equal(t, 1.5, co.Lights.Exposure)

	so := c.SynthOptions()
	assert.True(t, so.Mouth.IsMouth("Kuchi_Open"))
	assert.True(t, so.Mouth.IsMouth("MouthSmile"))
	assert.True(t, so.AlsoEmitMouthIncludedVariant)

	assert.True(t, c.CSVOptions().WriteBOM)
	assert.Equal(t, "VRM Expression Viewer", c.HTMLOptions().Title)
}
