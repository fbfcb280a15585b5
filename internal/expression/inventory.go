package expression

import "sort"

// Inventory maps a mesh's relative path to its ordered morph-target names
// (slice position = target index). It is built once per character and never
// mutated; accessors hand out copies.
type Inventory struct {
	targets map[string][]string
	paths   []string
}

// NewInventory copies targets into an immutable inventory.
func NewInventory(targets map[string][]string) Inventory {
	inv := Inventory{targets: make(map[string][]string, len(targets))}
	for path, names := range targets {
		inv.targets[path] = append([]string(nil), names...)
		inv.paths = append(inv.paths, path)
	}
	sort.Strings(inv.paths)
	return inv
}

// MeshPaths returns the mesh paths in ascending order.
func (inv Inventory) MeshPaths() []string {
	return append([]string(nil), inv.paths...)
}

// Targets returns the morph-target names of a mesh.
func (inv Inventory) Targets(meshPath string) ([]string, bool) {
	names, ok := inv.targets[meshPath]
	if !ok {
		return nil, false
	}
	return append([]string(nil), names...), true
}

// TargetName resolves one target index on one mesh.
func (inv Inventory) TargetName(meshPath string, index int) (string, bool) {
	names, ok := inv.targets[meshPath]
	if !ok || index < 0 || index >= len(names) {
		return "", false
	}
	return names[index], true
}

// HasMesh reports whether meshPath is present.
func (inv Inventory) HasMesh(meshPath string) bool {
	_, ok := inv.targets[meshPath]
	return ok
}

// Len returns the number of meshes.
func (inv Inventory) Len() int {
	return len(inv.paths)
}
