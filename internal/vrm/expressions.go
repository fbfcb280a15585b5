package vrm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qmuntal/gltf"

	"vrm-expression-exporter/internal/expression"
	"vrm-expression-exporter/internal/scene"
)

type vrm1Extension struct {
	Meta struct {
		Name string `json:"name"`
	} `json:"meta"`
	Expressions struct {
		Preset json.RawMessage `json:"preset"`
		Custom json.RawMessage `json:"custom"`
	} `json:"expressions"`
}

type vrm1Expression struct {
	MorphTargetBinds []struct {
		Node   int     `json:"node"`
		Index  int     `json:"index"`
		Weight float64 `json:"weight"`
	} `json:"morphTargetBinds"`
	MaterialColorBinds []struct {
		Material    int       `json:"material"`
		Type        string    `json:"type"`
		TargetValue []float64 `json:"targetValue"`
	} `json:"materialColorBinds"`
	TextureTransformBinds []struct {
		Material int       `json:"material"`
		Scale    []float64 `json:"scale"`
		Offset   []float64 `json:"offset"`
	} `json:"textureTransformBinds"`
}

// member is one key/value pair of a JSON object, in document order.
type member struct {
	key   string
	value json.RawMessage
}

// orderedMembers decodes a JSON object keeping its key order. Custom
// expressions have no index of their own; their order is the object's.
func orderedMembers(raw json.RawMessage) ([]member, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		out = append(out, member{key: key, value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseVRM1(raw json.RawMessage, doc *gltf.Document, nodes []nodeInfo, m *scene.Model) error {
	var ext vrm1Extension
	if err := json.Unmarshal(raw, &ext); err != nil {
		return fmt.Errorf("vrm: parse %s: %w", ExtVRM1, err)
	}
	m.MetaName = strings.TrimSpace(ext.Meta.Name)

	presets, err := orderedMembers(ext.Expressions.Preset)
	if err != nil {
		m.Warnings = append(m.Warnings, malformed("", "preset expressions dropped: %v", err))
	}
	customs, err := orderedMembers(ext.Expressions.Custom)
	if err != nil {
		m.Warnings = append(m.Warnings, malformed("", "custom expressions dropped: %v", err))
	}

	// a clip that does not decode is skipped; the rest of the character stays usable
	src := &scene.ExpressionSource{}
	for _, mb := range presets {
		clip, err := vrm1Clip(mb, doc, nodes)
		if err != nil {
			m.Warnings = append(m.Warnings, malformed(mb.key, "skipped: %v", err))
			continue
		}
		if p, ok := expression.ParsePreset(mb.key); ok {
			src.SetPreset(p, clip)
			continue
		}
		// unknown preset keys are kept as custom expressions
		src.Custom = append(src.Custom, clip)
	}
	for _, mb := range customs {
		clip, err := vrm1Clip(mb, doc, nodes)
		if err != nil {
			m.Warnings = append(m.Warnings, malformed(mb.key, "skipped: %v", err))
			continue
		}
		src.Custom = append(src.Custom, clip)
	}
	m.Expressions = src
	return nil
}

func malformed(name, format string, args ...any) expression.Warning {
	return expression.Warning{
		Code:       expression.WarnMalformedExpression,
		Expression: name,
		Detail:     fmt.Sprintf(format, args...),
	}
}

func vrm1Clip(mb member, doc *gltf.Document, nodes []nodeInfo) (*scene.Clip, error) {
	var e vrm1Expression
	if err := json.Unmarshal(mb.value, &e); err != nil {
		return nil, err
	}
	clip := &scene.Clip{Name: mb.key}
	for _, b := range e.MorphTargetBinds {
		clip.MorphBinds = append(clip.MorphBinds, scene.MorphBind{
			MeshPath: nodePath(nodes, b.Node),
			Index:    b.Index,
			Weight:   b.Weight,
		})
	}
	for _, b := range e.MaterialColorBinds {
		clip.MaterialColorBinds = append(clip.MaterialColorBinds, scene.MaterialColorBind{
			Material:      materialName(doc, b.Material),
			MaterialIndex: b.Material,
			Type:          b.Type,
			Target:        toColor(b.TargetValue, [4]float64{0, 0, 0, 1}),
		})
	}
	for _, b := range e.TextureTransformBinds {
		bind := scene.TextureTransformBind{
			Material:      materialName(doc, b.Material),
			MaterialIndex: b.Material,
			Scale:         [2]float64{1, 1},
		}
		copy(bind.Scale[:], b.Scale)
		copy(bind.Offset[:], b.Offset)
		clip.TextureTransformBinds = append(clip.TextureTransformBinds, bind)
	}
	return clip, nil
}

func nodePath(nodes []nodeInfo, idx int) string {
	if idx < 0 || idx >= len(nodes) {
		return fmt.Sprintf("node%d", idx)
	}
	return nodes[idx].path
}

func materialName(doc *gltf.Document, idx int) string {
	if idx < 0 || idx >= len(doc.Materials) {
		return ""
	}
	return doc.Materials[idx].Name
}

type vrm0Extension struct {
	Meta struct {
		Title string `json:"title"`
	} `json:"meta"`
	BlendShapeMaster struct {
		BlendShapeGroups []json.RawMessage `json:"blendShapeGroups"`
	} `json:"blendShapeMaster"`
}

type vrm0Group struct {
	Name       string `json:"name"`
	PresetName string `json:"presetName"`
	Binds      []struct {
		Mesh   int     `json:"mesh"`
		Index  int     `json:"index"`
		Weight float64 `json:"weight"`
	} `json:"binds"`
	MaterialValues []struct {
		MaterialName string    `json:"materialName"`
		PropertyName string    `json:"propertyName"`
		TargetValue  []float64 `json:"targetValue"`
	} `json:"materialValues"`
}

var vrm0Presets = map[string]expression.Preset{
	"joy":       expression.Happy,
	"angry":     expression.Angry,
	"sorrow":    expression.Sad,
	"fun":       expression.Relaxed,
	"surprised": expression.Surprised,
	"a":         expression.Aa,
	"i":         expression.Ih,
	"u":         expression.Ou,
	"e":         expression.Ee,
	"o":         expression.Oh,
	"blink":     expression.Blink,
	"blink_l":   expression.BlinkLeft,
	"blink_r":   expression.BlinkRight,
	"lookup":    expression.LookUp,
	"lookdown":  expression.LookDown,
	"lookleft":  expression.LookLeft,
	"lookright": expression.LookRight,
	"neutral":   expression.Neutral,
}

var vrm0ColorProperties = map[string]string{
	"_Color":         "color",
	"_EmissionColor": "emissionColor",
	"_ShadeColor":    "shadeColor",
	"_RimColor":      "rimColor",
	"_OutlineColor":  "outlineColor",
}

func parseVRM0(raw json.RawMessage, doc *gltf.Document, nodes []nodeInfo, m *scene.Model) error {
	var ext vrm0Extension
	if err := json.Unmarshal(raw, &ext); err != nil {
		return fmt.Errorf("vrm: parse %s: %w", ExtVRM0, err)
	}
	m.MetaName = strings.TrimSpace(ext.Meta.Title)

	// 0.x binds address meshes; use the first node that instantiates each one
	meshNode := make(map[int]string)
	for i, n := range doc.Nodes {
		if n.Mesh == nil {
			continue
		}
		if _, ok := meshNode[int(*n.Mesh)]; !ok {
			meshNode[int(*n.Mesh)] = nodes[i].path
		}
	}

	src := &scene.ExpressionSource{}
	for i, raw := range ext.BlendShapeMaster.BlendShapeGroups {
		var g vrm0Group
		if err := json.Unmarshal(raw, &g); err != nil {
			m.Warnings = append(m.Warnings, malformed(fmt.Sprintf("group%d", i), "skipped: %v", err))
			continue
		}
		clip := &scene.Clip{Name: g.Name}
		for _, b := range g.Binds {
			path, ok := meshNode[b.Mesh]
			if !ok {
				path = fmt.Sprintf("mesh%d", b.Mesh)
			}
			clip.MorphBinds = append(clip.MorphBinds, scene.MorphBind{
				MeshPath: path,
				Index:    b.Index,
				Weight:   b.Weight / 100,
			})
		}
		for _, v := range g.MaterialValues {
			idx := materialIndex(doc, v.MaterialName)
			if v.PropertyName == "_MainTex_ST" {
				bind := scene.TextureTransformBind{Material: v.MaterialName, MaterialIndex: idx, Scale: [2]float64{1, 1}}
				st := toColor(v.TargetValue, [4]float64{1, 1, 0, 0})
				bind.Scale = [2]float64{st[0], st[1]}
				bind.Offset = [2]float64{st[2], st[3]}
				clip.TextureTransformBinds = append(clip.TextureTransformBinds, bind)
				continue
			}
			kind, ok := vrm0ColorProperties[v.PropertyName]
			if !ok {
				continue
			}
			clip.MaterialColorBinds = append(clip.MaterialColorBinds, scene.MaterialColorBind{
				Material:      v.MaterialName,
				MaterialIndex: idx,
				Type:          kind,
				Target:        toColor(v.TargetValue, [4]float64{0, 0, 0, 1}),
			})
		}

		p, ok := vrm0Presets[strings.ToLower(g.PresetName)]
		if ok && src.Preset(p) == nil {
			if clip.Name == "" {
				clip.Name = p.String()
			}
			src.SetPreset(p, clip)
			continue
		}
		if clip.Name == "" {
			clip.Name = g.PresetName
		}
		src.Custom = append(src.Custom, clip)
	}
	m.Expressions = src
	return nil
}

func materialIndex(doc *gltf.Document, name string) int {
	for i, mat := range doc.Materials {
		if mat.Name == name {
			return i
		}
	}
	return -1
}
