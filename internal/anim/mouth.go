package anim

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultMouthPatterns are the name fragments that mark a morph target as
// mouth, lip, jaw, tongue, teeth or viseme motion.
var DefaultMouthPatterns = []string{
	"mouth", "lip", "jaw", "tongue", "teeth",
	"aa", "ih", "ou", "ee", "oh",
	"Param.A", "Param.I", "Param.U", "Param.E", "Param.O",
	"Param.MouthOpenY", "Param.MouthOpenU",
	"Param.MouthOpenExP", "Param.MouthOpenExN",
	"Param.MouthU", "Param.MouthExP", "Param.MouthExN",
}

// MouthClassifier matches target names against a pattern list,
// case-insensitively, by substring.
type MouthClassifier struct {
	patterns []string // case-folded
}

// NewMouthClassifier builds a classifier from DefaultMouthPatterns plus extra.
func NewMouthClassifier(extra ...string) *MouthClassifier {
	fold := cases.Fold()
	c := &MouthClassifier{}
	for _, p := range append(append([]string(nil), DefaultMouthPatterns...), extra...) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		c.patterns = append(c.patterns, fold.String(p))
	}
	return c
}

// IsMouth reports whether name matches any pattern.
func (c *MouthClassifier) IsMouth(name string) bool {
	folded := cases.Fold().String(name)
	for _, p := range c.patterns {
		if strings.Contains(folded, p) {
			return true
		}
	}
	return false
}
