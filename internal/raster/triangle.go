package raster

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Surface describes how a triangle is colored.
type Surface struct {
	Tex      *image.NRGBA // nil for untextured
	Base     [4]float64   // linear color factor and alpha
	Emission [3]float64   // linear, added after lighting
	UVOffset [2]float64
	UVScale  [2]float64
}

// RasterizeTriangle rasterizes a single triangle with perspective-correct
// texture mapping, z-buffer, sRGB color space, lighting, and ACES tone mapping.
//
// sx, sy are screen coordinates; iw is 1/w of each vertex, used both for
// depth (larger is closer) and for perspective-correct interpolation.
// This is the HOT PATH: no allocation in the inner loop.
// Lighting is flat (per-face), shade comes from LightConfig.ComputeShade.
func RasterizeTriangle(
	fb *FrameBuffer,
	sx, sy, iw []float64,
	uvs []mgl64.Vec2,
	vi [3]int,
	shade [3]float64,
	surf *Surface,
	lc *LightConfig,
) {
	nv := len(sx)
	for _, i := range vi {
		if i < 0 || i >= nv || iw[i] <= 0 {
			return
		}
	}

	x0, y0, w0i := sx[vi[0]], sy[vi[0]], iw[vi[0]]
	x1, y1, w1i := sx[vi[1]], sy[vi[1]], iw[vi[1]]
	x2, y2, w2i := sx[vi[2]], sy[vi[2]], iw[vi[2]]

	hasUV := surf.Tex != nil && len(uvs) == nv
	var u0, v0, u1, v1, u2, v2 float64
	if hasUV {
		u0, v0 = uvs[vi[0]][0]*w0i, uvs[vi[0]][1]*w0i
		u1, v1 = uvs[vi[1]][0]*w1i, uvs[vi[1]][1]*w1i
		u2, v2 = uvs[vi[2]][0]*w2i, uvs[vi[2]][1]*w2i
	}

	// Bounding box
	minX := max(int(math.Min(math.Min(x0, x1), x2)), 0)
	maxX := min(int(math.Max(math.Max(x0, x1), x2))+1, fb.Width-1)
	minY := max(int(math.Min(math.Min(y0, y1), y2)), 0)
	maxY := min(int(math.Max(math.Max(y0, y1), y2))+1, fb.Height-1)
	if minX > maxX || minY > maxY {
		return
	}

	// Barycentric setup
	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det

	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	exposure := lc.Exposure
	invGamma := lc.InvGamma
	base := surf.Base
	emit := surf.Emission
	width := fb.Width

	for py := minY; py <= maxY; py++ {
		dsy := float64(py) + 0.5 - y2
		rowOff := py * width
		for px := minX; px <= maxX; px++ {
			dsx := float64(px) + 0.5 - x2
			b0 := (dy12*dsx + dx21*dsy) * invDet
			b1 := (dy20*dsx + dx02*dsy) * invDet
			b2 := 1.0 - b0 - b1

			if b0 < -0.001 || b1 < -0.001 || b2 < -0.001 {
				continue
			}

			z := b0*w0i + b1*w1i + b2*w2i
			zIdx := rowOff + px
			if z <= fb.ZBuf[zIdx] {
				continue
			}

			lr, lg, lb, alpha := 1.0, 1.0, 1.0, 1.0
			if hasUV {
				u := (b0*u0 + b1*u1 + b2*u2) / z
				v := (b0*v0 + b1*v1 + b2*v2) / z
				u = u*surf.UVScale[0] + surf.UVOffset[0]
				v = v*surf.UVScale[1] + surf.UVOffset[1]
				cr, cg, cb, ca := SampleTexture(surf.Tex, u, v)
				lr, lg, lb = srgbToLinear[cr], srgbToLinear[cg], srgbToLinear[cb]
				alpha = float64(ca) / 255
			}
			alpha *= base[3]

			// Skip transparent texels
			if alpha < 8.0/255 {
				continue
			}
			fb.ZBuf[zIdx] = z

			sr := lr*base[0]*shade[0]*exposure + emit[0]
			sg := lg*base[1]*shade[1]*exposure + emit[1]
			sb := lb*base[2]*shade[2]*exposure + emit[2]

			pxIdx := zIdx * 4
			fb.Color[pxIdx] = clamp255(math.Pow(ACESTonemap(sr), invGamma) * 255)
			fb.Color[pxIdx+1] = clamp255(math.Pow(ACESTonemap(sg), invGamma) * 255)
			fb.Color[pxIdx+2] = clamp255(math.Pow(ACESTonemap(sb), invGamma) * 255)
			fb.Color[pxIdx+3] = clamp255(alpha * 255)
		}
	}
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
