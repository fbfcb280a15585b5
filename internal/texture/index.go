package texture

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"vrm-expression-exporter/internal/scene"
)

// ErrNoImage is returned for an image index outside the model's table.
var ErrNoImage = errors.New("texture: no such image")

// Index maps a model's image table to raw encoded bytes. Embedded images
// are returned as stored; external URIs are read relative to the model file.
type Index struct {
	fs      afero.Fs
	baseDir string
	images  []scene.Image
}

// NewIndex indexes m's images. fs is only touched for external URIs.
func NewIndex(fs afero.Fs, m *scene.Model) *Index {
	return &Index{
		fs:      fs,
		baseDir: filepath.Dir(m.SourcePath),
		images:  m.Images,
	}
}

// ResolvePath returns the file an external image lives in, or ("", false)
// for embedded images.
func (idx *Index) ResolvePath(i int) (string, bool) {
	if i < 0 || i >= len(idx.images) || len(idx.images[i].Data) > 0 || idx.images[i].URI == "" {
		return "", false
	}
	uri := strings.ReplaceAll(idx.images[i].URI, "\\", "/")
	return filepath.Join(idx.baseDir, filepath.FromSlash(path.Clean(uri))), true
}

// Data returns the encoded bytes of image i.
func (idx *Index) Data(i int) ([]byte, error) {
	if i < 0 || i >= len(idx.images) {
		return nil, fmt.Errorf("%w: %d", ErrNoImage, i)
	}
	if d := idx.images[i].Data; len(d) > 0 {
		return d, nil
	}
	p, ok := idx.ResolvePath(i)
	if !ok || idx.fs == nil {
		return nil, fmt.Errorf("%w: %d has no data", ErrNoImage, i)
	}
	raw, err := afero.ReadFile(idx.fs, p)
	if err != nil {
		return nil, fmt.Errorf("texture: read %s: %w", p, err)
	}
	return raw, nil
}

// Len returns the number of indexed images.
func (idx *Index) Len() int {
	return len(idx.images)
}
