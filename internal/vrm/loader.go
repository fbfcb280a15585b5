// Package vrm loads VRM avatars (glTF binary with the VRMC_vrm 1.0 or the
// legacy VRM 0.x extension) into a scene.Model.
package vrm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"vrm-expression-exporter/internal/scene"
)

// Extension names.
const (
	ExtVRM1  = "VRMC_vrm"
	ExtVRM0  = "VRM"
	ExtMToon = "VRMC_materials_mtoon"
)

// ErrNoGeometry is returned when the document has no mesh nodes at all.
var ErrNoGeometry = errors.New("vrm: document has no mesh nodes")

// Load reads a .vrm/.glb/.gltf file.
func Load(path string) (*scene.Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vrm: open %s: %w", path, err)
	}
	return FromDocument(doc, instanceName(path), path)
}

// Decode reads a binary or JSON glTF stream. External buffers are not resolved.
func Decode(r io.Reader, name string) (*scene.Model, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("vrm: decode %s: %w", name, err)
	}
	return FromDocument(doc, instanceName(name), name)
}

func instanceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FromDocument converts a decoded glTF document. The result has no expression
// source when the document carries neither VRM extension.
func FromDocument(doc *gltf.Document, name, source string) (*scene.Model, error) {
	m := &scene.Model{InstanceName: name, SourcePath: source}

	raw1, has1 := rawExtension(doc.Extensions, ExtVRM1)
	raw0, has0 := rawExtension(doc.Extensions, ExtVRM0)

	// VRM 0.x characters face -Z; turn them around so every model faces +Z.
	root := mgl64.Ident4()
	if has0 && !has1 {
		root = mgl64.HomogRotate3DY(math.Pi)
	}
	nodes := resolveNodes(doc, root)

	for i, n := range doc.Nodes {
		if n.Mesh == nil || int(*n.Mesh) >= len(doc.Meshes) {
			continue
		}
		mesh, err := buildMesh(doc, doc.Meshes[*n.Mesh], n, nodes[i], root)
		if err != nil {
			return nil, fmt.Errorf("vrm: mesh on node %q: %w", nodes[i].path, err)
		}
		m.Meshes = append(m.Meshes, mesh)
	}
	if len(m.Meshes) == 0 {
		return nil, ErrNoGeometry
	}

	for _, mat := range doc.Materials {
		m.Materials = append(m.Materials, buildMaterial(doc, mat))
	}
	for i, img := range doc.Images {
		im, err := buildImage(doc, img, i)
		if err != nil {
			return nil, fmt.Errorf("vrm: image %d: %w", i, err)
		}
		m.Images = append(m.Images, im)
	}

	var err error
	switch {
	case has1:
		err = parseVRM1(raw1, doc, nodes, m)
	case has0:
		err = parseVRM0(raw0, doc, nodes, m)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// rawExtension returns an extension's JSON regardless of whether the decoder
// kept it raw or a registered extension type decoded it.
func rawExtension(ext gltf.Extensions, name string) (json.RawMessage, bool) {
	v, ok := ext[name]
	if !ok || v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case json.RawMessage:
		return t, true
	case []byte:
		return t, true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return b, true
}

type targetNamesExtras struct {
	TargetNames []string `json:"targetNames"`
}

func extrasTargetNames(extras any) []string {
	if extras == nil {
		return nil
	}
	var b []byte
	switch t := extras.(type) {
	case json.RawMessage:
		b = t
	case []byte:
		b = t
	default:
		var err error
		if b, err = json.Marshal(extras); err != nil {
			return nil
		}
	}
	var e targetNamesExtras
	if json.Unmarshal(b, &e) != nil {
		return nil
	}
	return e.TargetNames
}

func buildMesh(doc *gltf.Document, gm *gltf.Mesh, node *gltf.Node, info nodeInfo, root mgl64.Mat4) (*scene.Mesh, error) {
	count := 0
	for _, p := range gm.Primitives {
		count = max(count, len(p.Targets))
	}

	names := extrasTargetNames(gm.Extras)
	if len(names) < count && len(gm.Primitives) > 0 {
		names = extrasTargetNames(gm.Primitives[0].Extras)
	}
	targetNames := make([]string, count)
	for i := range targetNames {
		if i < len(names) && names[i] != "" {
			targetNames[i] = names[i]
		} else {
			targetNames[i] = strconv.Itoa(i)
		}
	}

	weights := make([]float64, count)
	copy(weights, gm.Weights)
	if len(node.Weights) > 0 {
		copy(weights, node.Weights)
	}

	// skinned meshes are already in bind-pose character space; only the
	// document root turn applies to them
	world := info.world
	if node.Skin != nil {
		world = root
	}
	linear := world.Mat3()

	name := strings.TrimSpace(node.Name)
	if name == "" {
		name = gm.Name
	}
	mesh := &scene.Mesh{
		Name:        name,
		Path:        info.path,
		TargetNames: targetNames,
		Weights:     weights,
		Layer:       scene.DefaultLayer,
	}

	for pi, p := range gm.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			continue
		}
		posIdx, ok := p.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		raw, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("primitive %d positions: %w", pi, err)
		}

		prim := scene.Primitive{Material: -1}
		if p.Material != nil {
			prim.Material = int(*p.Material)
		}
		prim.Positions = make([]mgl64.Vec3, len(raw))
		for i, v := range raw {
			prim.Positions[i] = mgl64.TransformCoordinate(vec3(v), world)
		}

		if p.Indices != nil {
			idx, err := modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil)
			if err != nil {
				return nil, fmt.Errorf("primitive %d indices: %w", pi, err)
			}
			prim.Indices = idx
		} else {
			prim.Indices = make([]uint32, len(raw))
			for i := range prim.Indices {
				prim.Indices[i] = uint32(i)
			}
		}

		if uvIdx, ok := p.Attributes[gltf.TEXCOORD_0]; ok {
			uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[uvIdx], nil)
			if err != nil {
				return nil, fmt.Errorf("primitive %d uvs: %w", pi, err)
			}
			prim.UVs = make([]mgl64.Vec2, len(uvs))
			for i, uv := range uvs {
				prim.UVs[i] = mgl64.Vec2{float64(uv[0]), float64(uv[1])}
			}
		}

		prim.Targets = make([][]mgl64.Vec3, count)
		for ti, target := range p.Targets {
			dIdx, ok := target[gltf.POSITION]
			if !ok {
				continue
			}
			deltas, err := modeler.ReadPosition(doc, doc.Accessors[dIdx], nil)
			if err != nil {
				return nil, fmt.Errorf("primitive %d target %d: %w", pi, ti, err)
			}
			out := make([]mgl64.Vec3, len(deltas))
			for i, d := range deltas {
				out[i] = linear.Mul3x1(vec3(d))
			}
			prim.Targets[ti] = out
		}

		mesh.Primitives = append(mesh.Primitives, prim)
	}

	return mesh, nil
}

func vec3(v [3]float32) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

type mtoonExtension struct {
	ShadeColorFactor         []float64 `json:"shadeColorFactor"`
	ParametricRimColorFactor []float64 `json:"parametricRimColorFactor"`
	OutlineColorFactor       []float64 `json:"outlineColorFactor"`
	MatcapFactor             []float64 `json:"matcapFactor"`
}

func buildMaterial(doc *gltf.Document, gm *gltf.Material) *scene.Material {
	mat := &scene.Material{
		Name:             gm.Name,
		BaseColorTexture: -1,
		UVScale:          [2]float64{1, 1},
	}
	mat.SetColor("color", [4]float64{1, 1, 1, 1})
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			mat.SetColor("color", *pbr.BaseColorFactor)
		}
		if pbr.BaseColorTexture != nil {
			mat.BaseColorTexture = textureImage(doc, int(pbr.BaseColorTexture.Index))
		}
	}
	e := gm.EmissiveFactor
	mat.SetColor("emissionColor", [4]float64{e[0], e[1], e[2], 1})

	if raw, ok := rawExtension(gm.Extensions, ExtMToon); ok {
		var mt mtoonExtension
		if json.Unmarshal(raw, &mt) == nil {
			for kind, v := range map[string][]float64{
				"shadeColor":   mt.ShadeColorFactor,
				"rimColor":     mt.ParametricRimColorFactor,
				"outlineColor": mt.OutlineColorFactor,
				"matcapColor":  mt.MatcapFactor,
			} {
				if len(v) > 0 {
					mat.SetColor(kind, toColor(v, [4]float64{0, 0, 0, 1}))
				}
			}
		}
	}
	return mat
}

func textureImage(doc *gltf.Document, tex int) int {
	if tex < 0 || tex >= len(doc.Textures) || doc.Textures[tex].Source == nil {
		return -1
	}
	return int(*doc.Textures[tex].Source)
}

func buildImage(doc *gltf.Document, img *gltf.Image, idx int) (scene.Image, error) {
	out := scene.Image{Name: img.Name, MimeType: img.MimeType}
	if out.Name == "" {
		out.Name = "image" + strconv.Itoa(idx)
	}

	switch {
	case img.BufferView != nil:
		bvIdx := int(*img.BufferView)
		if bvIdx >= len(doc.BufferViews) {
			return out, fmt.Errorf("buffer view %d out of range", bvIdx)
		}
		bv := doc.BufferViews[bvIdx]
		if int(bv.Buffer) >= len(doc.Buffers) {
			return out, fmt.Errorf("buffer %d out of range", bv.Buffer)
		}
		data := doc.Buffers[bv.Buffer].Data
		start, end := int(bv.ByteOffset), int(bv.ByteOffset)+int(bv.ByteLength)
		if end > len(data) {
			return out, fmt.Errorf("buffer view %d exceeds buffer", bvIdx)
		}
		out.Data = data[start:end]
	case img.IsEmbeddedResource():
		data, err := img.MarshalData()
		if err != nil {
			return out, err
		}
		out.Data = data
	default:
		out.URI = img.URI
	}
	return out, nil
}

// toColor fills a 4-component color from v, keeping def for missing components.
func toColor(v []float64, def [4]float64) [4]float64 {
	out := def
	for i := 0; i < len(v) && i < 4; i++ {
		out[i] = v[i]
	}
	return out
}
