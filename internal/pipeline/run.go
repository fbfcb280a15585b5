// Package pipeline runs extraction, preview capture, table export and clip
// synthesis for a batch of characters and reports what was produced.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"vrm-expression-exporter/internal/anim"
	"vrm-expression-exporter/internal/capture"
	"vrm-expression-exporter/internal/expression"
	"vrm-expression-exporter/internal/export"
	"vrm-expression-exporter/internal/extract"
	"vrm-expression-exporter/internal/scene"
)

// Options selects the stages of a run and their settings.
type Options struct {
	OutputDir string
	AnimDir   string
	ImageDir  string

	CSV  export.CSVOptions
	HTML export.HTMLOptions

	Clips bool
	Synth anim.Options

	Capture        bool
	CaptureOptions capture.Options
}

// Runner holds the shared resources for a run.
type Runner struct {
	Fs     afero.Fs
	Logger *log.Logger
	// Progress, when set, is called once with the number of captures
	// before the capture stage starts.
	Progress func(total int) capture.Progress
}

type character struct {
	model  *scene.Model
	result extract.Result
	set    *expression.CharacterSet
	report *CharacterReport
}

// Run processes models in order. Stages run strictly one after another:
// extract, capture (optional), export, synthesize (optional). The report is
// always returned and, unless extraction found nothing, written to
// <OutputDir>/report.json. A cancelled capture stops the run after writing
// the report; the error then wraps capture.ErrCaptureCancelled.
func (r *Runner) Run(ctx context.Context, models []*scene.Model, opts Options) (*Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	rep := &Report{RunID: uuid.NewString(), Started: time.Now()}
	logger.Debug("run started", "id", rep.RunID, "characters", len(models))

	results, err := extract.All(models, logger)
	chars := make([]*character, len(models))
	for i, res := range results {
		chars[i] = newCharacter(models[i], res)
		rep.Characters = append(rep.Characters, *chars[i].report)
	}
	if err != nil {
		// nothing to write, but the run is still enumerated
		rep.Finished = time.Now()
		rep.tally()
		logSummary(logger, rep)
		return rep, err
	}
	if err := r.Fs.MkdirAll(opts.OutputDir, 0755); err != nil {
		return rep, fmt.Errorf("pipeline: mkdir %s: %w", opts.OutputDir, err)
	}

	var runErr error
	if opts.Capture {
		if err := r.capture(ctx, chars, opts, logger); err != nil {
			if !errors.Is(err, capture.ErrCaptureCancelled) {
				return rep, err
			}
			rep.Cancelled = true
			runErr = err
		}
	}

	if runErr == nil {
		if err := r.export(chars, opts, rep, logger); err != nil {
			return r.finish(rep, chars, opts, logger, err)
		}
		if opts.Clips {
			if err := r.clips(chars, opts, rep, logger); err != nil {
				return r.finish(rep, chars, opts, logger, err)
			}
		}
	}
	return r.finish(rep, chars, opts, logger, runErr)
}

func newCharacter(m *scene.Model, res extract.Result) *character {
	c := &character{model: m, result: res, set: res.Set}
	cr := &CharacterReport{
		Character: m.DisplayName(),
		Object:    m.InstanceName,
		Source:    m.SourcePath,
		Warnings:  append([]expression.Warning(nil), res.Warnings...),
	}
	if res.OK() {
		cr.Expressions = len(res.Set.Entries)
		cr.Presets = res.Set.PresetCount()
		cr.Custom = res.Set.CustomCount()
		cr.Bindings = res.Set.BindingCount()
	} else {
		cr.Error = res.Err.Error()
	}
	c.report = cr
	return c
}

func (r *Runner) capture(ctx context.Context, chars []*character, opts Options, logger *log.Logger) error {
	var jobs []capture.Job
	var owners []*character
	total := 0
	for _, c := range chars {
		if c.set == nil || len(c.set.Entries) == 0 {
			continue
		}
		jobs = append(jobs, capture.Job{Set: c.set, Model: c.model})
		owners = append(owners, c)
		total += len(c.set.Entries)
	}

	var progress capture.Progress
	if r.Progress != nil {
		progress = r.Progress(total)
	}
	logger.Info("capturing previews", "images", total, "dir", opts.ImageDir)
	results, err := capture.Batch(ctx, r.Fs, opts.ImageDir, jobs, opts.CaptureOptions, progress, logger)
	for i, res := range results {
		c := owners[i]
		c.set = res.Set
		c.report.Images = res.Captured()
		c.report.Framing = res.Tier
		c.report.Warnings = append(c.report.Warnings, res.Warnings...)
		for _, e := range res.Expressions {
			if e.Error != "" {
				c.report.Failed = append(c.report.Failed, e.Expression)
			}
		}
		if res.Error != "" {
			c.report.Failed = append(c.report.Failed, res.Error)
		}
	}
	return err
}

func (r *Runner) export(chars []*character, opts Options, rep *Report, logger *log.Logger) error {
	var sets []*expression.CharacterSet
	for _, c := range chars {
		if c.set != nil {
			sets = append(sets, c.set)
		}
	}
	ex := &export.Exporter{Fs: r.Fs, CSV: opts.CSV, HTML: opts.HTML, Logger: logger}
	files, err := ex.Export(opts.OutputDir, sets)
	rep.Files = append(rep.Files, files...)
	return err
}

func (r *Runner) clips(chars []*character, opts Options, rep *Report, logger *log.Logger) error {
	w := &anim.Writer{Fs: r.Fs, Dir: opts.AnimDir, Logger: logger}
	for _, c := range chars {
		if c.set == nil {
			continue
		}
		clips := anim.Synthesize(c.set, c.result.Inventory, opts.Synth)
		paths, err := w.Write(clips)
		c.report.Clips += len(paths)
		rep.Files = append(rep.Files, paths...)
		if err != nil {
			return err
		}
		logger.Info("wrote clips", "character", c.set.CharacterName, "clips", len(paths))
	}
	return nil
}

// finish copies the per-character reports, writes the report file and logs
// the run summary. A report write failure only replaces a nil runErr.
func (r *Runner) finish(rep *Report, chars []*character, opts Options, logger *log.Logger, runErr error) (*Report, error) {
	for i, c := range chars {
		rep.Characters[i] = *c.report
	}
	rep.Finished = time.Now()
	rep.tally()

	if err := WriteReport(r.Fs, filepath.Join(opts.OutputDir, ReportFile), rep); err != nil {
		logger.Error("report not written", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	logSummary(logger, rep)
	return rep, runErr
}

func logSummary(logger *log.Logger, rep *Report) {
	t := rep.Totals
	logger.Info("run complete",
		"characters", t.Characters,
		"skipped", t.Skipped,
		"expressions", t.Expressions,
		"bindings", t.Bindings,
		"images", t.Images,
		"clips", t.Clips,
		"warnings", t.Warnings,
		"elapsed", rep.Finished.Sub(rep.Started).Round(time.Millisecond),
	)
}
