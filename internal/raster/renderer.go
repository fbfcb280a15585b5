// Package raster is a small software rasterizer for character previews.
package raster

import (
	"image"

	"github.com/go-gl/mathgl/mgl64"

	"vrm-expression-exporter/internal/scene"
)

// Camera holds the view-projection and the layers it sees.
type Camera struct {
	View        mgl64.Mat4
	Projection  mgl64.Mat4
	CullingMask uint32 // a mesh is drawn when Layer&CullingMask != 0
}

// TextureSource resolves a model image index to a decoded texture.
type TextureSource interface {
	Resolve(idx int) *image.NRGBA
}

// Render draws every mesh visible to cam into fb using the meshes' current
// morph weights. fb is not cleared first.
func Render(
	fb *FrameBuffer,
	meshes []*scene.Mesh,
	materials []*scene.Material,
	textures TextureSource,
	cam Camera,
	lc *LightConfig,
) {
	vp := cam.Projection.Mul4(cam.View)
	w, h := float64(fb.Width), float64(fb.Height)

	for _, mesh := range meshes {
		if mesh.Layer&cam.CullingMask == 0 {
			continue
		}
		for pi := range mesh.Primitives {
			prim := &mesh.Primitives[pi]
			if len(prim.Positions) == 0 {
				continue
			}

			world := mesh.MorphedPositions(prim)
			sx := make([]float64, len(world))
			sy := make([]float64, len(world))
			iw := make([]float64, len(world))
			for i, p := range world {
				clip := vp.Mul4x1(p.Vec4(1))
				if clip[3] <= 1e-9 {
					continue // behind the camera; iw stays 0
				}
				inv := 1 / clip[3]
				sx[i] = (clip[0]*inv + 1) * 0.5 * w
				sy[i] = (1 - clip[1]*inv) * 0.5 * h
				iw[i] = inv
			}

			surf := surfaceFor(prim.Material, materials, textures)
			for t := 0; t+2 < len(prim.Indices); t += 3 {
				vi := [3]int{int(prim.Indices[t]), int(prim.Indices[t+1]), int(prim.Indices[t+2])}
				if vi[0] >= len(world) || vi[1] >= len(world) || vi[2] >= len(world) {
					continue
				}
				n := faceNormal(world[vi[0]], world[vi[1]], world[vi[2]])
				if n == (mgl64.Vec3{}) {
					continue
				}
				RasterizeTriangle(fb, sx, sy, iw, prim.UVs, vi, lc.ComputeShade(n), &surf, lc)
			}
		}
	}
}

func faceNormal(a, b, c mgl64.Vec3) mgl64.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Len() < 1e-12 {
		return mgl64.Vec3{}
	}
	return n.Normalize()
}

func surfaceFor(idx int, materials []*scene.Material, textures TextureSource) Surface {
	// untextured, unmaterialed geometry renders neutral grey
	s := Surface{Base: [4]float64{0.63, 0.63, 0.67, 1}, UVScale: [2]float64{1, 1}}
	if idx < 0 || idx >= len(materials) {
		return s
	}
	m := materials[idx]
	if c, ok := m.Color("color"); ok {
		s.Base = c
	}
	if e, ok := m.Color("emissionColor"); ok {
		s.Emission = [3]float64{e[0], e[1], e[2]}
	}
	s.UVOffset = m.UVOffset
	s.UVScale = m.UVScale
	if s.UVScale == [2]float64{} {
		s.UVScale = [2]float64{1, 1}
	}
	if textures != nil && m.BaseColorTexture >= 0 {
		s.Tex = textures.Resolve(m.BaseColorTexture)
	}
	return s
}
