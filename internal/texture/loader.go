// Package texture decodes and caches the base-color textures of a model.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/webp"
)

// Decode reads a PNG, JPEG, WebP or TGA image and returns it as NRGBA.
// The format is sniffed from the data; TGA has no signature and is the fallback.
func Decode(data []byte) (*image.NRGBA, error) {
	r := bytes.NewReader(data)

	var (
		img    image.Image
		err    error
		format string
	)
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		format = "png"
		img, err = png.Decode(r)
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		format = "jpeg"
		img, err = jpeg.Decode(r)
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		format = "webp"
		img, err = webp.Decode(r)
	default:
		format = "tga"
		img, err = tga.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", format, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("texture: empty %s image", format)
	}
	return toNRGBA(img), nil
}

// toNRGBA converts any image to NRGBA format with its origin at (0,0).
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
