// Package capture renders one preview image per expression.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/tiendc/go-deepcopy"

	"vrm-expression-exporter/internal/expression"
	"vrm-expression-exporter/internal/framing"
	"vrm-expression-exporter/internal/postprocess"
	"vrm-expression-exporter/internal/raster"
	"vrm-expression-exporter/internal/scene"
	"vrm-expression-exporter/internal/texture"
)

// PreviewLayer is the visibility channel the session moves its copy of the
// character to. Only this layer is rendered.
const PreviewLayer uint32 = 1 << 31

var (
	ErrSessionClosed = errors.New("capture: session closed")
	ErrTargetBusy    = errors.New("capture: render target already in use")
)

// Format is the encoded image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	if f == FormatWebP {
		return ".webp"
	}
	return ".png"
}

// Options controls rendering.
type Options struct {
	Width       int
	Height      int
	Supersample int
	Format      Format
	Framing     framing.Options
	Lights      *raster.LightConfig // nil uses raster.DefaultLightConfig
	// Despeckle clears disconnected pixel groups smaller than this share
	// of the visible pixels. Zero keeps every pixel.
	Despeckle float64
}

// DefaultOptions renders 512×512 PNGs at 2× supersampling.
func DefaultOptions() Options {
	return Options{
		Width:       512,
		Height:      512,
		Supersample: 2,
		Format:      FormatPNG,
		Framing:     framing.DefaultOptions(),
	}
}

// Session owns everything one character's captures need: a private copy of
// the character on the preview layer, its texture cache, the lights and a
// reusable render target. Nothing is shared with other sessions.
type Session struct {
	model  *scene.Model
	cache  *texture.Cache
	lights raster.LightConfig
	opts   Options
	pose   framing.Pose
	tier   framing.Tier
	target *raster.FrameBuffer
	busy   bool
	closed bool
	logger *log.Logger
}

// NewSession clones m and prepares it for capture. m is never modified.
// fs is used to read external textures.
func NewSession(fs afero.Fs, m *scene.Model, opts Options, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Supersample < 1 {
		opts.Supersample = 1
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("capture: invalid size %dx%d", opts.Width, opts.Height)
	}

	clone := &scene.Model{
		InstanceName: m.InstanceName,
		MetaName:     m.MetaName,
		SourcePath:   m.SourcePath,
		Images:       m.Images, // read only
	}
	if err := deepcopy.Copy(&clone.Meshes, &m.Meshes); err != nil {
		return nil, fmt.Errorf("capture: clone meshes of %s: %w", m.InstanceName, err)
	}
	if err := deepcopy.Copy(&clone.Materials, &m.Materials); err != nil {
		return nil, fmt.Errorf("capture: clone materials of %s: %w", m.InstanceName, err)
	}
	for _, mesh := range clone.Meshes {
		mesh.Layer = PreviewLayer
	}

	lights := raster.DefaultLightConfig()
	if opts.Lights != nil {
		lights = *opts.Lights
	}

	bounds, tier := framing.FaceBounds(clone)
	s := &Session{
		model:  clone,
		cache:  texture.NewCache(texture.NewIndex(fs, clone), logger),
		lights: lights,
		opts:   opts,
		pose:   framing.CameraPose(bounds, opts.Framing),
		tier:   tier,
		logger: logger,
	}
	return s, nil
}

// Pose returns the camera pose computed from the face bounds.
func (s *Session) Pose() framing.Pose { return s.pose }

// Tier returns which face-bounds heuristic framed the character.
func (s *Session) Tier() framing.Tier { return s.tier }

// Close releases the clone, textures and render target. Safe to call twice.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Release()
	s.target = nil
	s.model = nil
	return nil
}

func (s *Session) acquireTarget(w, h int) (*raster.FrameBuffer, error) {
	if s.busy {
		return nil, ErrTargetBusy
	}
	if s.target == nil || s.target.Width != w || s.target.Height != h {
		s.target = raster.NewFrameBuffer(w, h)
	} else {
		s.target.Clear()
	}
	s.busy = true
	return s.target, nil
}

func (s *Session) releaseTarget() {
	s.busy = false
}

// Capture renders entry from pose at w×h and returns the encoded image.
// The entry's bindings are applied to the session's copy only and every
// touched value is restored before Capture returns, on every path.
// Cancellation is checked before rendering starts, never mid-frame.
func (s *Session) Capture(ctx context.Context, entry *expression.Entry, pose framing.Pose, w, h int) ([]byte, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ss := s.opts.Supersample
	fb, err := s.acquireTarget(w*ss, h*ss)
	if err != nil {
		return nil, err
	}
	defer s.releaseTarget()

	snap := s.apply(entry)
	defer snap.restore()

	cam := raster.Camera{
		View:        pose.View(),
		Projection:  pose.Projection(float64(w) / float64(h)),
		CullingMask: PreviewLayer,
	}
	raster.Render(fb, s.model.Meshes, s.model.Materials, s.cache, cam, &s.lights)

	img := postprocess.Downsample(fb.Image(), w, h)
	if n := postprocess.Despeckle(img, s.opts.Despeckle); n > 0 {
		s.logger.Debug("despeckled", "expression", entry.Name, "pixels", n)
	}
	s.logger.Debug("rendered", "character", s.model.InstanceName, "expression", entry.Name, "size", fmt.Sprintf("%dx%d", w, h))
	return encode(img, s.opts.Format)
}

func encode(img *image.NRGBA, f Format) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case FormatWebP:
		if err := nativewebp.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("capture: encode webp: %w", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("capture: encode png: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// snapshot remembers the value every applied binding replaced.
type snapshot struct {
	weights []weightSnap
	colors  []colorSnap
	uvs     []uvSnap
}

type weightSnap struct {
	mesh  *scene.Mesh
	index int
	value float64
}

type colorSnap struct {
	mat   *scene.Material
	kind  string
	value [4]float64
	had   bool
}

type uvSnap struct {
	mat           *scene.Material
	offset, scale [2]float64
}

// restore puts values back in reverse order so a value touched twice ends
// at its original.
func (sn *snapshot) restore() {
	for i := len(sn.weights) - 1; i >= 0; i-- {
		w := sn.weights[i]
		w.mesh.SetWeight(w.index, w.value)
	}
	for i := len(sn.colors) - 1; i >= 0; i-- {
		c := sn.colors[i]
		if c.had {
			c.mat.SetColor(c.kind, c.value)
		} else {
			delete(c.mat.Colors, c.kind)
		}
	}
	for i := len(sn.uvs) - 1; i >= 0; i-- {
		u := sn.uvs[i]
		u.mat.UVOffset, u.mat.UVScale = u.offset, u.scale
	}
}

func (s *Session) apply(e *expression.Entry) *snapshot {
	sn := &snapshot{}
	for _, b := range e.MorphBindings {
		mesh, ok := s.model.MeshByPath(b.MeshPath)
		if !ok {
			continue
		}
		old := mesh.Weight(b.TargetIndex)
		if mesh.SetWeight(b.TargetIndex, b.Weight01) {
			sn.weights = append(sn.weights, weightSnap{mesh: mesh, index: b.TargetIndex, value: old})
		}
	}
	for _, b := range e.MaterialColorBindings {
		mat := s.material(b.MaterialIndex, b.MaterialName)
		if mat == nil {
			continue
		}
		old, had := mat.Color(b.Type)
		sn.colors = append(sn.colors, colorSnap{mat: mat, kind: b.Type, value: old, had: had})
		mat.SetColor(b.Type, b.Target)
	}
	for _, b := range e.MaterialUVBindings {
		mat := s.material(b.MaterialIndex, b.MaterialName)
		if mat == nil {
			continue
		}
		sn.uvs = append(sn.uvs, uvSnap{mat: mat, offset: mat.UVOffset, scale: mat.UVScale})
		mat.UVOffset, mat.UVScale = b.Offset, b.Scale
	}
	return sn
}

func (s *Session) material(idx int, name string) *scene.Material {
	if idx >= 0 && idx < len(s.model.Materials) {
		return s.model.Materials[idx]
	}
	for _, m := range s.model.Materials {
		if m.Name == name && name != "" {
			return m
		}
	}
	return nil
}
