package expression

import (
	"strconv"
	"strings"
)

// SafeFileName replaces characters that are invalid in file names on common
// platforms. An empty result becomes "_".
func SafeFileName(name string) string {
	r := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	out := strings.TrimSpace(r.Replace(name))
	out = strings.Trim(out, ".")
	if out == "" {
		return "_"
	}
	return out
}

// NameSet hands out file names that have not been issued before.
type NameSet map[string]bool

// Claim returns build("") if unused, else the first free build("_2"),
// build("_3") and so on. Every returned name is recorded, so a suffixed
// name can never be issued twice either.
func (s NameSet) Claim(build func(suffix string) string) string {
	name := build("")
	for n := 2; s[name]; n++ {
		name = build("_" + strconv.Itoa(n))
	}
	s[name] = true
	return name
}
