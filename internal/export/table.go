// Package export renders expression sets as CSV tables and an HTML viewer.
package export

import (
	"fmt"
	"sort"
	"strconv"

	"vrm-expression-exporter/internal/expression"
)

// Table is a header plus rows of equal width.
type Table struct {
	Header []string
	Rows   [][]string
}

var summaryHeader = []string{
	"Character Name", "File Name", "Total Expressions",
	"Preset Expressions", "Custom Expressions", "Has Preview Images",
}

// Summary builds one row per character, in input order.
func Summary(sets []*expression.CharacterSet) Table {
	t := Table{Header: append([]string(nil), summaryHeader...)}
	for _, s := range sets {
		t.Rows = append(t.Rows, []string{
			s.CharacterName,
			s.ObjectInstanceName,
			strconv.Itoa(len(s.Entries)),
			strconv.Itoa(s.PresetCount()),
			strconv.Itoa(s.CustomCount()),
			yesNo(s.HasPreviewImages()),
		})
	}
	return t
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// DetailColumns returns the sorted union of "meshPath:targetName" keys over
// every binding in the set. Ordinal sort, so the result does not depend on
// entry order.
func DetailColumns(set *expression.CharacterSet) []string {
	seen := make(map[string]struct{})
	for _, e := range set.Entries {
		for _, b := range e.MorphBindings {
			seen[b.ColumnKey()] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Detail pivots one set: a row per entry, a column per bound morph target.
// Cells hold the weight as a percentage with two decimals; unbound cells are "0".
func Detail(set *expression.CharacterSet) Table {
	cols := DetailColumns(set)
	t := Table{Header: append([]string{"Expression Name", "Type", "Preview Image Path"}, cols...)}

	for _, e := range set.Entries {
		values := make(map[string]float64, len(e.MorphBindings))
		for _, b := range e.MorphBindings {
			values[b.ColumnKey()] = b.Percent()
		}
		row := make([]string, 0, len(t.Header))
		row = append(row, e.Name, e.Kind.String(), e.PreviewImagePath)
		for _, c := range cols {
			v, ok := values[c]
			if !ok {
				row = append(row, "0")
				continue
			}
			row = append(row, fmt.Sprintf("%.2f", v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// NoBindings is the blend-shape name used for entries without morph bindings
// in the expression list.
const NoBindings = "(none)"

// ExpressionList flattens every binding of every set into one long table.
// Entries without morph bindings get a single row with NoBindings and 0.
func ExpressionList(sets []*expression.CharacterSet, withImages bool) Table {
	t := Table{Header: []string{"Object Name", "Expression Name", "Blend Shape Path", "Blend Shape Name", "Value (%)"}}
	if withImages {
		t.Header = append(t.Header, "Image Path")
	}

	add := func(row []string, img string) {
		if withImages {
			row = append(row, img)
		}
		t.Rows = append(t.Rows, row)
	}

	for _, s := range sets {
		for _, e := range s.Entries {
			if len(e.MorphBindings) == 0 {
				add([]string{s.ObjectInstanceName, e.Name, "", NoBindings, "0"}, e.PreviewImagePath)
				continue
			}
			for _, b := range e.MorphBindings {
				add([]string{
					s.ObjectInstanceName, e.Name, b.MeshPath, b.TargetName,
					fmt.Sprintf("%.1f", b.Percent()),
				}, e.PreviewImagePath)
			}
		}
	}
	return t
}
