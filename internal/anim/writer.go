package anim

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"vrm-expression-exporter/internal/expression"
)

// MouthDir is the subdirectory mouth-included clips are written to.
const MouthDir = "WithMouth"

// Writer persists clips as JSON files.
type Writer struct {
	Fs     afero.Fs
	Dir    string
	Logger *log.Logger
}

// FileExt is appended to every clip file.
const FileExt = ".anim.json"

// Write stores each clip as <Dir>/<name>.anim.json (mouth variants under
// WithMouth/). Clashing names get a numeric suffix. Returns the written paths.
func (w *Writer) Write(clips []Clip) ([]string, error) {
	logger := w.Logger
	if logger == nil {
		logger = log.Default()
	}

	names := make(expression.NameSet)
	paths := make([]string, 0, len(clips))
	for _, c := range clips {
		dir := w.Dir
		if c.Key.WithMouth {
			dir = filepath.Join(dir, MouthDir)
		}
		base := expression.SafeFileName(c.Name)
		path := names.Claim(func(suffix string) string {
			return filepath.Join(dir, base+suffix+FileExt)
		})

		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return paths, fmt.Errorf("anim: marshal %s: %w", c.ID, err)
		}
		if err := w.Fs.MkdirAll(dir, 0755); err != nil {
			return paths, fmt.Errorf("anim: mkdir %s: %w", dir, err)
		}
		if err := afero.WriteFile(w.Fs, path, data, 0644); err != nil {
			return paths, fmt.Errorf("anim: write %s: %w", path, err)
		}
		paths = append(paths, path)
		logger.Debug("wrote clip", "path", path, "curves", len(c.Curves))
	}
	return paths, nil
}
