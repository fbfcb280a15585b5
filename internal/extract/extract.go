// Package extract turns a loaded character into the normalized expression model.
package extract

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"vrm-expression-exporter/internal/expression"
	"vrm-expression-exporter/internal/scene"
)

var (
	// ErrMissingExpressionSource is reported when a character has no expression data.
	ErrMissingExpressionSource = errors.New("extract: character has no expression source")

	// ErrEmptyExtractionResult is returned by All when no character yielded any expression.
	ErrEmptyExtractionResult = errors.New("extract: no expressions found in any character")
)

// Result is the outcome of extracting one character.
type Result struct {
	Set       *expression.CharacterSet // nil when Err is set
	Inventory expression.Inventory
	Warnings  []expression.Warning
	Err       error
}

// OK reports whether a set was produced.
func (r Result) OK() bool {
	return r.Err == nil && r.Set != nil
}

// BuildInventory lists every mesh that carries at least one morph target.
func BuildInventory(m *scene.Model) expression.Inventory {
	targets := make(map[string][]string)
	for _, mesh := range m.Meshes {
		if mesh.MorphCount() == 0 {
			continue
		}
		// First mesh wins when two nodes share a path.
		if _, dup := targets[mesh.Path]; dup {
			continue
		}
		targets[mesh.Path] = mesh.TargetNames
	}
	return expression.NewInventory(targets)
}

// Extract reads the character's expression source. It never panics on
// malformed input: unresolved bindings degrade to index names and are
// reported as warnings. Extract does not modify m.
func Extract(m *scene.Model) Result {
	name := m.DisplayName()
	res := Result{Inventory: BuildInventory(m)}
	for _, w := range m.Warnings {
		w.Character = name
		res.Warnings = append(res.Warnings, w)
	}

	if m.Expressions == nil {
		res.Err = fmt.Errorf("%w: %s", ErrMissingExpressionSource, m.InstanceName)
		res.Warnings = append(res.Warnings, expression.Warning{
			Code:      expression.WarnMissingExpressionSource,
			Character: name,
			Detail:    "no expression data; character skipped",
		})
		return res
	}

	set := &expression.CharacterSet{
		CharacterName:      name,
		ObjectInstanceName: m.InstanceName,
		SourcePath:         m.SourcePath,
	}

	for _, p := range expression.Presets() {
		clip := m.Expressions.Preset(p)
		if clip == nil {
			continue
		}
		entry, warns := buildEntry(name, p.String(), clip, res.Inventory)
		entry.Kind = expression.KindPreset
		entry.Preset = p
		set.Entries = append(set.Entries, entry)
		res.Warnings = append(res.Warnings, warns...)
	}

	for _, clip := range m.Expressions.Custom {
		if clip == nil {
			continue
		}
		entry, warns := buildEntry(name, clip.Name, clip, res.Inventory)
		entry.Kind = expression.KindCustom
		set.Entries = append(set.Entries, entry)
		res.Warnings = append(res.Warnings, warns...)
	}

	res.Set = set
	return res
}

func buildEntry(character, name string, clip *scene.Clip, inv expression.Inventory) (expression.Entry, []expression.Warning) {
	var warns []expression.Warning
	warn := func(code expression.WarningCode, format string, args ...any) {
		warns = append(warns, expression.Warning{
			Code:       code,
			Character:  character,
			Expression: name,
			Detail:     fmt.Sprintf(format, args...),
		})
	}

	entry := expression.Entry{Name: name}
	seen := make(map[expression.BindingKey]int)

	for _, bind := range clip.MorphBinds {
		if bind.Index < 0 {
			warn(expression.WarnUnresolvedMorphTarget, "negative target index %d on %q dropped", bind.Index, bind.MeshPath)
			continue
		}

		weight := bind.Weight
		if weight < 0 || weight > 1 {
			warn(expression.WarnWeightOutOfRange, "weight %.4f on %q[%d] clamped", weight, bind.MeshPath, bind.Index)
			weight = min(max(weight, 0), 1)
		}

		targetName, ok := inv.TargetName(bind.MeshPath, bind.Index)
		if !ok {
			targetName = expression.IndexName(bind.Index)
			if inv.HasMesh(bind.MeshPath) {
				warn(expression.WarnUnresolvedMorphTarget, "target index %d out of range on %q", bind.Index, bind.MeshPath)
			} else {
				warn(expression.WarnUnresolvedMorphTarget, "mesh %q not found or has no morph targets", bind.MeshPath)
			}
		}

		mb := expression.MorphBinding{
			MeshPath:    bind.MeshPath,
			TargetIndex: bind.Index,
			TargetName:  targetName,
			Weight01:    weight,
		}

		if at, dup := seen[mb.Key()]; dup {
			warn(expression.WarnDuplicateBinding, "%q[%d] bound twice, last value kept", bind.MeshPath, bind.Index)
			entry.MorphBindings[at] = mb
			continue
		}
		seen[mb.Key()] = len(entry.MorphBindings)
		entry.MorphBindings = append(entry.MorphBindings, mb)
	}

	for _, bind := range clip.MaterialColorBinds {
		entry.MaterialColorBindings = append(entry.MaterialColorBindings, expression.MaterialColorBinding{
			MaterialName:  bind.Material,
			MaterialIndex: bind.MaterialIndex,
			Type:          bind.Type,
			Target:        bind.Target,
		})
	}
	for _, bind := range clip.TextureTransformBinds {
		entry.MaterialUVBindings = append(entry.MaterialUVBindings, expression.MaterialUVBinding{
			MaterialName:  bind.Material,
			MaterialIndex: bind.MaterialIndex,
			Offset:        bind.Offset,
			Scale:         bind.Scale,
		})
	}

	return entry, warns
}

// All extracts every model in order. A failing character is reported in its
// Result and never stops the next one. The returned error is
// ErrEmptyExtractionResult when not a single expression was found.
func All(models []*scene.Model, logger *log.Logger) ([]Result, error) {
	if logger == nil {
		logger = log.Default()
	}

	results := make([]Result, len(models))
	total := 0
	for i, m := range models {
		r := Extract(m)
		results[i] = r
		for _, w := range r.Warnings {
			logger.Warn(w.String())
		}
		if !r.OK() {
			logger.Warn("skipping character", "name", m.InstanceName, "err", r.Err)
			continue
		}
		total += len(r.Set.Entries)
		logger.Info("extracted", "character", r.Set.CharacterName, "expressions", len(r.Set.Entries), "bindings", r.Set.BindingCount())
	}

	if total == 0 {
		return results, ErrEmptyExtractionResult
	}
	return results, nil
}
