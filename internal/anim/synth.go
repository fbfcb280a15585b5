// Package anim synthesizes constant-pose animation clips from expression sets.
package anim

import (
	"net/url"
	"strings"

	"vrm-expression-exporter/internal/expression"
)

// Options controls clip synthesis.
type Options struct {
	// IncludeZeroWeights emits a curve for every target (dense clip). Dense
	// clips reset unbound targets when blended; sparse clips leave them alone.
	IncludeZeroWeights bool
	// ExcludeMouthTargets drops mouth targets from the primary clip.
	ExcludeMouthTargets bool
	// AlsoEmitMouthIncludedVariant adds a second clip holding the mouth
	// targets that ExcludeMouthTargets removed.
	AlsoEmitMouthIncludedVariant bool

	// Mouth classifies target names; nil uses the default patterns.
	Mouth *MouthClassifier
}

// ClipKey identifies one synthesized clip.
type ClipKey struct {
	Object     string
	MeshPath   string
	Expression string
	WithMouth  bool
}

// String returns a collision-free identifier: each component is path-escaped
// so separators inside names cannot alias another key.
func (k ClipKey) String() string {
	variant := "primary"
	if k.WithMouth {
		variant = "mouth"
	}
	return strings.Join([]string{
		url.PathEscape(k.Object),
		url.PathEscape(k.MeshPath),
		url.PathEscape(k.Expression),
		variant,
	}, "/")
}

// Name is the human-readable clip name:
// "<object>_<mesh>_<expression>" with "_WithMouth" for the mouth variant.
// The root mesh ("") is written as "Root". Names are not unique.
func (k ClipKey) Name() string {
	mesh := k.MeshPath
	if mesh == "" {
		mesh = "Root"
	}
	name := k.Object + "_" + strings.ReplaceAll(mesh, "/", "_") + "_" + k.Expression
	if k.WithMouth {
		name += "_WithMouth"
	}
	return name
}

// Keyframe is one curve sample.
type Keyframe struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Curve animates one morph target. Values are on the 0-100 scale.
type Curve struct {
	Property    string     `json:"property"` // "blendShape.<name>"
	TargetName  string     `json:"target_name"`
	TargetIndex int        `json:"target_index"`
	Weight01    float64    `json:"weight"`
	Keys        []Keyframe `json:"keys"`
}

// Clip is the curve set for one (mesh, expression) pair.
type Clip struct {
	Key    ClipKey `json:"-"`
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Path   string  `json:"path"` // mesh path the curves bind to
	Curves []Curve `json:"curves"`
}

// Targets returns the target names of every curve, in curve order.
func (c Clip) Targets() []string {
	out := make([]string, len(c.Curves))
	for i, cv := range c.Curves {
		out[i] = cv.TargetName
	}
	return out
}

func constantCurve(name string, index int, w float64) Curve {
	return Curve{
		Property:    "blendShape." + name,
		TargetName:  name,
		TargetIndex: index,
		Weight01:    w,
		Keys:        []Keyframe{{Time: 0, Value: w * 100}},
	}
}

// Synthesize builds clips for every mesh in inv (ascending path order) and
// every entry in set (entry order). Weights are matched by target index, so
// unresolved "Index_<n>" bindings still land on their target. A clip whose
// curve set ends up empty is still returned.
func Synthesize(set *expression.CharacterSet, inv expression.Inventory, opts Options) []Clip {
	if set == nil || len(set.Entries) == 0 || inv.Len() == 0 {
		return nil
	}
	mouth := opts.Mouth
	if mouth == nil {
		mouth = NewMouthClassifier()
	}

	var clips []Clip
	for _, path := range inv.MeshPaths() {
		names, _ := inv.Targets(path)
		for i := range set.Entries {
			entry := &set.Entries[i]
			weights := entry.MeshWeights(path)

			key := ClipKey{Object: set.ObjectInstanceName, MeshPath: path, Expression: entry.Name}
			primary := Clip{Path: path}
			variant := Clip{Path: path}

			for ti, name := range names {
				w := weights[ti]
				if w == 0 && !opts.IncludeZeroWeights {
					continue
				}
				cv := constantCurve(name, ti, w)
				if opts.ExcludeMouthTargets && mouth.IsMouth(name) {
					variant.Curves = append(variant.Curves, cv)
					continue
				}
				primary.Curves = append(primary.Curves, cv)
			}

			clips = append(clips, finish(primary, key))
			if opts.ExcludeMouthTargets && opts.AlsoEmitMouthIncludedVariant {
				key.WithMouth = true
				clips = append(clips, finish(variant, key))
			}
		}
	}
	return clips
}

func finish(c Clip, key ClipKey) Clip {
	c.Key = key
	c.ID = key.String()
	c.Name = key.Name()
	return c
}
