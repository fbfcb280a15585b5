package export

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"vrm-expression-exporter/internal/expression"
)

// Output file names.
const (
	SummaryFile = "VRM_Expression_Summary.csv"
	ListFile    = "VRM_Expression_List.csv"
	ViewerFile  = "VRM_Expression_Viewer.html"
)

// Exporter writes every tabular artifact for a run.
type Exporter struct {
	Fs     afero.Fs
	CSV    CSVOptions
	HTML   HTMLOptions
	Logger *log.Logger
}

// DetailFile is the per-character detail CSV name. suffix tells apart
// characters sharing a display name.
func DetailFile(set *expression.CharacterSet, suffix string) string {
	return expression.SafeFileName(set.CharacterName) + suffix + "_Expressions.csv"
}

// Export writes the summary, the flat list, one detail table per set and
// the HTML viewer into dir. It returns the written paths in write order.
func (e *Exporter) Export(dir string, sets []*expression.CharacterSet) ([]string, error) {
	logger := e.Logger
	if logger == nil {
		logger = log.Default()
	}
	if err := e.Fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("export: mkdir %s: %w", dir, err)
	}

	var written []string
	write := func(name string, t Table) error {
		path := filepath.Join(dir, name)
		if err := WriteCSV(e.Fs, path, t, e.CSV); err != nil {
			return err
		}
		written = append(written, path)
		logger.Debug("wrote table", "path", path, "rows", len(t.Rows))
		return nil
	}

	if err := write(SummaryFile, Summary(sets)); err != nil {
		return written, err
	}

	withImages := false
	for _, s := range sets {
		withImages = withImages || s.HasPreviewImages()
	}
	if err := write(ListFile, ExpressionList(sets, withImages)); err != nil {
		return written, err
	}

	names := make(expression.NameSet)
	for _, s := range sets {
		name := names.Claim(func(suffix string) string { return DetailFile(s, suffix) })
		if err := write(name, Detail(s)); err != nil {
			return written, err
		}
	}

	viewer := filepath.Join(dir, ViewerFile)
	if err := WriteHTML(e.Fs, viewer, sets, e.HTML); err != nil {
		return written, err
	}
	written = append(written, viewer)

	logger.Info("exported tables", "dir", dir, "files", len(written))
	return written, nil
}
