package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/afero"

	"vrm-expression-exporter/internal/anim"
	"vrm-expression-exporter/internal/capture"
	"vrm-expression-exporter/internal/export"
	"vrm-expression-exporter/internal/raster"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "VRMEXPR_"

// Config holds all configurable paths and export settings.
type Config struct {
	// Paths
	OutputDir string `json:"output_dir" toml:"output_dir" env:"OUTPUT_DIR"`
	AnimDir   string `json:"anim_dir" toml:"anim_dir" env:"ANIM_DIR"`
	ImageDir  string `json:"image_dir" toml:"image_dir" env:"IMAGE_DIR"`

	// Tables
	WriteBOM  bool    `json:"write_bom" toml:"write_bom" env:"WRITE_BOM"`
	MinWeight float64 `json:"min_weight" toml:"min_weight" env:"MIN_WEIGHT"`
	Title     string  `json:"title" toml:"title" env:"TITLE"`

	// Clips
	Clips               bool     `json:"clips" toml:"clips" env:"CLIPS"`
	IncludeZeroWeights  bool     `json:"include_zero_weights" toml:"include_zero_weights" env:"INCLUDE_ZERO"`
	ExcludeMouthTargets bool     `json:"exclude_mouth_targets" toml:"exclude_mouth_targets" env:"EXCLUDE_MOUTH"`
	WithMouthVariant    bool     `json:"with_mouth_variant" toml:"with_mouth_variant" env:"WITH_MOUTH"`
	MouthPatterns       []string `json:"mouth_patterns" toml:"mouth_patterns" env:"MOUTH_PATTERNS" envSeparator:","`

	// Capture
	Capture     bool    `json:"capture" toml:"capture" env:"CAPTURE"`
	Width       int     `json:"width" toml:"width" env:"WIDTH"`
	Height      int     `json:"height" toml:"height" env:"HEIGHT"`
	Supersample int     `json:"supersample" toml:"supersample" env:"SUPERSAMPLE"`
	Format      string  `json:"format" toml:"format" env:"FORMAT"`
	Exposure    float64 `json:"exposure" toml:"exposure" env:"EXPOSURE"`
	Despeckle   float64 `json:"despeckle" toml:"despeckle" env:"DESPECKLE"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		OutputDir:           "vrm-expressions",
		WriteBOM:            true,
		Title:               "VRM Expression Viewer",
		Clips:               true,
		IncludeZeroWeights:  true,
		ExcludeMouthTargets: true,
		WithMouthVariant:    true,
		Capture:             true,
		Width:               512,
		Height:              512,
		Supersample:         2,
		Format:              string(capture.FormatPNG),
		Exposure:            1,
	}
}

// Load reads a JSON or TOML config file (by extension) on top of Default.
// Fields not set in the file keep their default values.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".json", "":
		err = json.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config: %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides c with any VRMEXPR_* variables present in environ
// (KEY=VALUE pairs, as from os.Environ). Unset variables leave c untouched.
func (c *Config) ApplyEnv(environ []string) error {
	opts := env.Options{
		Prefix:      EnvPrefix,
		Environment: env.ToMap(environ),
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Flags holds CLI flag values that override config file settings.
// A nil pointer means the flag was not given.
type Flags struct {
	OutputDir    string
	AnimDir      string
	ImageDir     string
	Clips        *bool
	IncludeZero  *bool
	ExcludeMouth *bool
	WithMouth    *bool
	Capture      *bool
	Width        int
	Height       int
	Format       string
	NoBOM        bool
	MinWeight    *float64
}

// Resolve applies flags, fills derived paths and validates the result.
// CLI flags take priority when set.
func (c *Config) Resolve(flags Flags) error {
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.AnimDir != "" {
		c.AnimDir = flags.AnimDir
	}
	if flags.ImageDir != "" {
		c.ImageDir = flags.ImageDir
	}
	setBool(&c.Clips, flags.Clips)
	setBool(&c.IncludeZeroWeights, flags.IncludeZero)
	setBool(&c.ExcludeMouthTargets, flags.ExcludeMouth)
	setBool(&c.WithMouthVariant, flags.WithMouth)
	setBool(&c.Capture, flags.Capture)
	if flags.Width > 0 {
		c.Width = flags.Width
	}
	if flags.Height > 0 {
		c.Height = flags.Height
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.NoBOM {
		c.WriteBOM = false
	}
	if flags.MinWeight != nil {
		c.MinWeight = *flags.MinWeight
	}

	if c.OutputDir == "" {
		c.OutputDir = Default().OutputDir
	}
	// Relative artifact dirs live under the output dir
	if c.AnimDir == "" {
		c.AnimDir = filepath.Join(c.OutputDir, "Animations")
	} else if !filepath.IsAbs(c.AnimDir) {
		c.AnimDir = filepath.Join(c.OutputDir, c.AnimDir)
	}
	if c.ImageDir == "" {
		c.ImageDir = filepath.Join(c.OutputDir, "Images")
	} else if !filepath.IsAbs(c.ImageDir) {
		c.ImageDir = filepath.Join(c.OutputDir, c.ImageDir)
	}

	if c.Supersample <= 0 {
		c.Supersample = 1
	}
	if c.Exposure <= 0 {
		c.Exposure = 1
	}
	c.Format = strings.ToLower(c.Format)

	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("config: invalid image size %dx%d", c.Width, c.Height)
	case c.Format != string(capture.FormatPNG) && c.Format != string(capture.FormatWebP):
		return fmt.Errorf("config: unknown image format %q", c.Format)
	case c.MinWeight < 0 || c.MinWeight > 100:
		return fmt.Errorf("config: min weight %g outside 0..100", c.MinWeight)
	case c.Despeckle < 0 || c.Despeckle >= 1:
		return fmt.Errorf("config: despeckle ratio %g outside 0..1", c.Despeckle)
	}
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// SynthOptions returns the clip synthesis settings.
func (c *Config) SynthOptions() anim.Options {
	return anim.Options{
		IncludeZeroWeights:           c.IncludeZeroWeights,
		ExcludeMouthTargets:          c.ExcludeMouthTargets,
		AlsoEmitMouthIncludedVariant: c.WithMouthVariant,
		Mouth:                        anim.NewMouthClassifier(c.MouthPatterns...),
	}
}

// CaptureOptions returns the preview capture settings.
func (c *Config) CaptureOptions() capture.Options {
	opts := capture.DefaultOptions()
	opts.Width, opts.Height = c.Width, c.Height
	opts.Supersample = c.Supersample
	opts.Format = capture.Format(c.Format)
	opts.Despeckle = c.Despeckle
	lights := raster.DefaultLightConfig()
	lights.Exposure = c.Exposure
	opts.Lights = &lights
	return opts
}

// CSVOptions returns the CSV encoding settings.
func (c *Config) CSVOptions() export.CSVOptions {
	return export.CSVOptions{WriteBOM: c.WriteBOM}
}

// HTMLOptions returns the viewer settings.
func (c *Config) HTMLOptions() export.HTMLOptions {
	return export.HTMLOptions{Title: c.Title, MinWeight: c.MinWeight}
}
