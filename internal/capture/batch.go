package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"vrm-expression-exporter/internal/expression"
	"vrm-expression-exporter/internal/framing"
	"vrm-expression-exporter/internal/scene"
)

// ErrCaptureCancelled is returned by Batch when its context ends early.
var ErrCaptureCancelled = errors.New("capture: cancelled")

// Job pairs an extracted set with the character it came from.
type Job struct {
	Set   *expression.CharacterSet
	Model *scene.Model
}

// Progress receives one tick per finished capture.
type Progress interface {
	Add(n int) error
}

// ExpressionResult is the outcome of one capture.
type ExpressionResult struct {
	Expression string `json:"expression"`
	Path       string `json:"path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CharacterResult is the outcome of one character's captures.
type CharacterResult struct {
	Character   string                   `json:"character"`
	Set         *expression.CharacterSet `json:"-"` // copy with preview paths filled in
	Tier        string                   `json:"framing"`
	Expressions []ExpressionResult       `json:"expressions"`
	Warnings    []expression.Warning     `json:"warnings,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

// Captured returns the number of images written.
func (r *CharacterResult) Captured() int {
	n := 0
	for _, e := range r.Expressions {
		if e.Path != "" {
			n++
		}
	}
	return n
}

// ImagePath returns <dir>/<character>/<expression><ext> with both names
// made file-system safe.
func ImagePath(dir, character, expr string, f Format) string {
	return filepath.Join(dir, expression.SafeFileName(character), expression.SafeFileName(expr)+f.Ext())
}

// Batch captures every entry of every job, strictly one at a time. A failing
// capture is recorded and the next one runs. ctx is checked between
// captures; on cancellation the current session is closed and the results
// so far are returned with ErrCaptureCancelled.
func Batch(ctx context.Context, fs afero.Fs, dir string, jobs []Job, opts Options, progress Progress, logger *log.Logger) ([]CharacterResult, error) {
	if logger == nil {
		logger = log.Default()
	}

	results := make([]CharacterResult, 0, len(jobs))
	names := make(expression.NameSet)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: %w", ErrCaptureCancelled, err)
		}
		res, err := captureCharacter(ctx, fs, dir, job, names, opts, progress, logger)
		results = append(results, res)
		if err != nil {
			return results, fmt.Errorf("%w: %w", ErrCaptureCancelled, err)
		}
	}
	return results, nil
}

// captureCharacter returns a non-nil error only on cancellation.
func captureCharacter(ctx context.Context, fs afero.Fs, dir string, job Job, names expression.NameSet, opts Options, progress Progress, logger *log.Logger) (CharacterResult, error) {
	name := job.Set.CharacterName
	res := CharacterResult{Character: name, Set: job.Set}

	sess, err := NewSession(fs, job.Model, opts, logger)
	if err != nil {
		res.Error = err.Error()
		logger.Error("capture session failed", "character", name, "err", err)
		tick(progress, len(job.Set.Entries))
		return res, nil
	}
	defer sess.Close()

	res.Tier = sess.Tier().String()
	if sess.Tier() == framing.TierWholeModel {
		res.Warnings = append(res.Warnings, expression.Warning{
			Code:      expression.WarnNoQualifyingFaceMesh,
			Character: name,
			Detail:    "no mesh with morph targets; framing the whole model",
		})
	}
	pose := sess.Pose()
	if pose.Corrected() {
		res.Warnings = append(res.Warnings, expression.Warning{
			Code:      expression.WarnFramingCorrected,
			Character: name,
			Detail:    fmt.Sprintf("degenerate face bounds corrected (center=%t height=%t)", pose.CenterCorrected, pose.HeightCorrected),
		})
	}
	for _, w := range res.Warnings {
		logger.Warn(w.String())
	}

	paths := make(map[int]string)
	for i := range job.Set.Entries {
		entry := &job.Set.Entries[i]
		if err := ctx.Err(); err != nil {
			res.Set = job.Set.WithPreviewPaths(paths)
			return res, err
		}

		out := ExpressionResult{Expression: entry.Name}
		path := names.Claim(func(suffix string) string {
			return ImagePath(dir, name, entry.Name+suffix, opts.Format)
		})

		data, err := sess.Capture(ctx, entry, pose, opts.Width, opts.Height)
		if err == nil {
			err = write(fs, path, data)
		}
		if err != nil {
			if ctx.Err() != nil {
				res.Set = job.Set.WithPreviewPaths(paths)
				return res, ctx.Err()
			}
			out.Error = err.Error()
			logger.Error("capture failed", "character", name, "expression", entry.Name, "err", err)
		} else {
			out.Path = path
			paths[i] = path
		}
		res.Expressions = append(res.Expressions, out)
		tick(progress, 1)
	}

	res.Set = job.Set.WithPreviewPaths(paths)
	logger.Info("captured", "character", name, "images", res.Captured(), "of", len(job.Set.Entries))
	return res, nil
}

func write(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("capture: mkdir for %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("capture: write %s: %w", path, err)
	}
	return nil
}

func tick(p Progress, n int) {
	if p != nil {
		_ = p.Add(n)
	}
}
