package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"vrm-expression-exporter/internal/expression"
)

// ReportFile is the run report written into the output directory.
const ReportFile = "report.json"

// CharacterReport is one character's line in the run report.
type CharacterReport struct {
	Character   string               `json:"character"`
	Object      string               `json:"object"`
	Source      string               `json:"source,omitempty"`
	Expressions int                  `json:"expressions"`
	Presets     int                  `json:"presets"`
	Custom      int                  `json:"custom"`
	Bindings    int                  `json:"bindings"`
	Images      int                  `json:"images"`
	Clips       int                  `json:"clips"`
	Framing     string               `json:"framing,omitempty"`
	Failed      []string             `json:"failed_captures,omitempty"`
	Warnings    []expression.Warning `json:"warnings,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// Totals sums the per-character counts.
type Totals struct {
	Characters  int `json:"characters"`
	Skipped     int `json:"skipped"`
	Expressions int `json:"expressions"`
	Bindings    int `json:"bindings"`
	Images      int `json:"images"`
	Clips       int `json:"clips"`
	Warnings    int `json:"warnings"`
}

// Report enumerates what a run produced.
type Report struct {
	RunID      string            `json:"run_id"`
	Started    time.Time         `json:"started"`
	Finished   time.Time         `json:"finished"`
	Cancelled  bool              `json:"cancelled,omitempty"`
	Characters []CharacterReport `json:"characters"`
	Totals     Totals            `json:"totals"`
	Files      []string          `json:"files"`
}

// tally recomputes Totals from Characters.
func (r *Report) tally() {
	t := Totals{}
	for _, c := range r.Characters {
		if c.Error != "" {
			t.Skipped++
		} else {
			t.Characters++
		}
		t.Expressions += c.Expressions
		t.Bindings += c.Bindings
		t.Images += c.Images
		t.Clips += c.Clips
		t.Warnings += len(c.Warnings)
	}
	r.Totals = t
}

// WriteReport writes r as indented JSON.
func WriteReport(fs afero.Fs, path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal report: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("pipeline: write %s: %w", path, err)
	}
	return nil
}
