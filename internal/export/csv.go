package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVOptions controls CSV encoding.
type CSVOptions struct {
	// WriteBOM prefixes the file with a UTF-8 byte order mark so spreadsheet
	// applications detect the encoding.
	WriteBOM bool
}

// EncodeCSV writes t to w. Quoting follows RFC 4180.
func EncodeCSV(w io.Writer, t Table, opts CSVOptions) error {
	var tw *transform.Writer
	if opts.WriteBOM {
		tw = transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
		w = tw
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

// WriteCSV writes t to path on fs, creating parent directories.
func WriteCSV(fs afero.Fs, path string, t Table, opts CSVOptions) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("export: mkdir for %s: %w", path, err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := EncodeCSV(f, t, opts); err != nil {
		f.Close()
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return f.Close()
}
