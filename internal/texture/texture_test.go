package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrm-expression-exporter/internal/scene"
)

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	img, err := Decode(pngBytes(t, color.NRGBA{1, 2, 3, 255}))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{1, 2, 3, 255}, img.NRGBAAt(1, 1))
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestIndexAndCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "models/tex/skin.png", pngBytes(t, color.NRGBA{9, 9, 9, 255}), 0644))

	m := &scene.Model{
		SourcePath: "models/alice.vrm",
		Images: []scene.Image{
			{Name: "embedded", Data: pngBytes(t, color.NRGBA{200, 0, 0, 255})},
			{Name: "external", URI: "tex/skin.png"},
			{Name: "missing", URI: "tex/none.png"},
		},
	}
	idx := NewIndex(fs, m)
	assert.Equal(t, 3, idx.Len())

	p, ok := idx.ResolvePath(1)
	require.True(t, ok)
	assert.Equal(t, "models/tex/skin.png", p)
	_, ok = idx.ResolvePath(0)
	assert.False(t, ok, "embedded images have no path")

	c := NewCache(idx, log.New(io.Discard))
	assert.Equal(t, uint8(200), c.Resolve(0).NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(9), c.Resolve(1).NRGBAAt(0, 0).R)
	assert.Nil(t, c.Resolve(2))
	assert.Nil(t, c.Resolve(7))

	first := c.Resolve(0)
	assert.Same(t, first, c.Resolve(0), "cached")
	c.Release()
	assert.NotSame(t, first, c.Resolve(0))
}

func TestIndexOutOfRange(t *testing.T) {
	idx := NewIndex(afero.NewMemMapFs(), &scene.Model{})
	_, err := idx.Data(0)
	assert.ErrorIs(t, err, ErrNoImage)
}
