package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"vrm-expression-exporter/internal/scene"
	"vrm-expression-exporter/internal/vrm"
)

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// app carries what commands read from the outside world.
type app struct {
	fs      afero.Fs
	environ []string
	load    func(path string) (*scene.Model, error)
}

func defaultApp() *app {
	return &app{
		fs:      afero.NewOsFs(),
		environ: os.Environ(),
		load:    vrm.Load,
	}
}

// Execute runs the vrmexpr CLI with ctx, which should be cancelled on
// interrupt so long capture runs can stop between images.
func Execute(ctx context.Context) error {
	return newRootCmd(defaultApp()).ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "vrmexpr",
		Short:        "Export facial expressions of VRM characters",
		Long:         `vrmexpr reads VRM characters, enumerates their facial expressions and writes CSV tables, an HTML viewer, preview images and per-mesh animation clips.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(charmlog.WithContext(cmd.Context(), newLogger(cmd.ErrOrStderr(), verbose)))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("vrmexpr %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newExportCmd(a))
	root.AddCommand(newInspectCmd(a))
	return root
}

// loadModels loads every path in order. A file that fails to load is
// logged and skipped; only an empty result is an error.
func (a *app) loadModels(ctx context.Context, paths []string) ([]*scene.Model, error) {
	logger := charmlog.FromContext(ctx)
	st := startStage(logger, "load models")

	var models []*scene.Model
	for _, p := range paths {
		m, err := a.load(p)
		if err != nil {
			logger.Error("load failed", "path", p, "err", err)
			continue
		}
		logger.Debug("loaded", "path", p, "meshes", len(m.Meshes), "materials", len(m.Materials))
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no model could be loaded from %d path(s)", len(paths))
	}
	st.end("loaded", len(models), "of", len(paths))
	return models, nil
}
