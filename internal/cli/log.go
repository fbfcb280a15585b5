// Package cli implements the vrmexpr command-line interface.
//
// Commands:
//   - export: extract expressions, capture previews and write tables, clips and a run report
//   - inspect: list each character's expressions and morph target tables
//
// All commands support --verbose (-v) for debug-level logging. The logger
// travels in the command context via log.WithContext.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger writes "vrmexpr" prefixed lines to w. Verbose output adds
// debug records, millisecond timestamps and the calling site.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	opts := log.Options{Prefix: "vrmexpr", Level: log.InfoLevel}
	if verbose {
		opts.Level = log.DebugLevel
		opts.ReportTimestamp = true
		opts.TimeFormat = "15:04:05.000"
		opts.ReportCaller = true
	}
	return log.NewWithOptions(w, opts)
}

// stage times one step of a command.
type stage struct {
	logger *log.Logger
	name   string
	start  time.Time
}

func startStage(l *log.Logger, name string) stage {
	l.Debug(name + " started")
	return stage{logger: l, name: name, start: time.Now()}
}

// end logs the stage name with keyvals and the elapsed time.
func (s stage) end(keyvals ...any) {
	keyvals = append(keyvals, "elapsed", time.Since(s.start).Round(time.Millisecond))
	s.logger.Info(s.name, keyvals...)
}
