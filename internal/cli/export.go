package cli

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vrm-expression-exporter/internal/capture"
	"vrm-expression-exporter/internal/config"
	"vrm-expression-exporter/internal/pipeline"
)

// exportOpts holds the command-line flags for the export command.
// Booleans are only applied when changed on the command line.
type exportOpts struct {
	configFile   string
	output       string
	animOutput   string
	imageOutput  string
	clips        bool
	includeZero  bool
	excludeMouth bool
	withMouth    bool
	capture      bool
	width        int
	height       int
	format       string
	noBOM        bool
	minWeight    float64
}

func newExportCmd(a *app) *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export [flags] <model.vrm>...",
		Short: "Write expression tables, previews and animation clips",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.resolveConfig(cmd, &opts)
			if err != nil {
				return err
			}
			return a.runExport(cmd, cfg, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (.json or .toml)")
	f.StringVarP(&opts.output, "output", "o", "", "output directory for tables and report")
	f.StringVar(&opts.animOutput, "anim-output", "", "clip directory (relative paths live under --output)")
	f.StringVar(&opts.imageOutput, "image-output", "", "preview image directory (relative paths live under --output)")
	f.BoolVar(&opts.clips, "clips", true, "write animation clips")
	f.BoolVar(&opts.includeZero, "include-zero", true, "emit a curve for every morph target, not only bound ones")
	f.BoolVar(&opts.excludeMouth, "exclude-mouth", true, "move mouth targets out of the primary clip")
	f.BoolVar(&opts.withMouth, "with-mouth", true, "also write the mouth clip variant")
	f.BoolVar(&opts.capture, "capture", true, "render a preview image per expression")
	f.IntVar(&opts.width, "width", 0, "preview width in pixels (default 512)")
	f.IntVar(&opts.height, "height", 0, "preview height in pixels (default 512)")
	f.StringVar(&opts.format, "format", "", "preview format: png (default), webp")
	f.BoolVar(&opts.noBOM, "no-bom", false, "omit the UTF-8 byte order mark from CSV files")
	f.Float64Var(&opts.minWeight, "min-weight", 0, "hide viewer bindings at or below this percentage")

	return cmd
}

// resolveConfig layers defaults, the config file, the environment and the
// flags, in that order.
func (a *app) resolveConfig(cmd *cobra.Command, opts *exportOpts) (config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Load(a.fs, opts.configFile); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(a.environ); err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	flagBool := func(name string, v bool) *bool {
		if !changed(name) {
			return nil
		}
		return &v
	}
	flags := config.Flags{
		OutputDir:    opts.output,
		AnimDir:      opts.animOutput,
		ImageDir:     opts.imageOutput,
		Clips:        flagBool("clips", opts.clips),
		IncludeZero:  flagBool("include-zero", opts.includeZero),
		ExcludeMouth: flagBool("exclude-mouth", opts.excludeMouth),
		WithMouth:    flagBool("with-mouth", opts.withMouth),
		Capture:      flagBool("capture", opts.capture),
		Width:        opts.width,
		Height:       opts.height,
		Format:       opts.format,
		NoBOM:        opts.noBOM,
	}
	if changed("min-weight") {
		flags.MinWeight = &opts.minWeight
	}
	err := cfg.Resolve(flags)
	return cfg, err
}

func (a *app) runExport(cmd *cobra.Command, cfg config.Config, paths []string) error {
	ctx := cmd.Context()
	logger := log.FromContext(ctx)

	models, err := a.loadModels(ctx, paths)
	if err != nil {
		return err
	}

	runner := &pipeline.Runner{
		Fs:     a.fs,
		Logger: logger,
		Progress: func(total int) capture.Progress {
			return progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("capturing"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		},
	}
	rep, err := runner.Run(ctx, models, pipeline.Options{
		OutputDir:      cfg.OutputDir,
		AnimDir:        cfg.AnimDir,
		ImageDir:       cfg.ImageDir,
		CSV:            cfg.CSVOptions(),
		HTML:           cfg.HTMLOptions(),
		Clips:          cfg.Clips,
		Synth:          cfg.SynthOptions(),
		Capture:        cfg.Capture,
		CaptureOptions: cfg.CaptureOptions(),
	})
	if errors.Is(err, capture.ErrCaptureCancelled) {
		logger.Warn("capture cancelled; tables and clips were not written", "images", rep.Totals.Images)
	}
	if err != nil {
		return err
	}
	if rep.Totals.Warnings > 0 {
		logger.Warn("finished with warnings", "count", rep.Totals.Warnings, "report", cfg.OutputDir)
	}
	return nil
}
