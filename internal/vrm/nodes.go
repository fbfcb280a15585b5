package vrm

import (
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
)

// nodeInfo is the resolved placement of one glTF node.
type nodeInfo struct {
	path  string
	world mgl64.Mat4
}

// localMatrix returns the node's local transform. A non-zero Matrix wins over
// TRS; zero scale and zero rotation are treated as unset.
func localMatrix(n *gltf.Node) mgl64.Mat4 {
	var zero [16]float64
	if n.Matrix != zero && n.Matrix != [16]float64(mgl64.Ident4()) {
		return mgl64.Mat4(n.Matrix)
	}

	t := mgl64.Translate3D(n.Translation[0], n.Translation[1], n.Translation[2])

	r := mgl64.Ident4()
	if q := n.Rotation; q != [4]float64{} {
		// glTF stores quaternions as x, y, z, w
		r = mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}}.Normalize().Mat4()
	}

	s := mgl64.Ident4()
	if sc := n.Scale; sc != [3]float64{} {
		s = mgl64.Scale3D(sc[0], sc[1], sc[2])
	}

	return t.Mul4(r).Mul4(s)
}

// resolveNodes walks the default scene and computes each node's world
// matrix and its slash-joined path relative to the scene root. Nodes not
// reachable from the scene keep an identity matrix and a path of their own name.
func resolveNodes(doc *gltf.Document, root mgl64.Mat4) []nodeInfo {
	infos := make([]nodeInfo, len(doc.Nodes))
	visited := make([]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		infos[i] = nodeInfo{path: nodeName(n, i), world: mgl64.Ident4()}
	}

	var walk func(idx int, parentPath string, parent mgl64.Mat4)
	walk = func(idx int, parentPath string, parent mgl64.Mat4) {
		if idx < 0 || idx >= len(doc.Nodes) || visited[idx] {
			return
		}
		visited[idx] = true

		n := doc.Nodes[idx]
		name := nodeName(n, idx)
		path := name
		if parentPath != "" {
			path = parentPath + "/" + name
		}
		world := parent.Mul4(localMatrix(n))
		infos[idx] = nodeInfo{path: path, world: world}

		for _, c := range n.Children {
			walk(int(c), path, world)
		}
	}

	for _, r := range sceneRoots(doc) {
		walk(r, "", root)
	}
	return infos
}

func sceneRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) == 0 {
		// no scene: every parentless node is a root
		isChild := make([]bool, len(doc.Nodes))
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				if int(c) < len(isChild) {
					isChild[c] = true
				}
			}
		}
		var roots []int
		for i := range doc.Nodes {
			if !isChild[i] {
				roots = append(roots, i)
			}
		}
		return roots
	}

	sc := 0
	if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
		sc = int(*doc.Scene)
	}
	roots := make([]int, 0, len(doc.Scenes[sc].Nodes))
	for _, n := range doc.Scenes[sc].Nodes {
		roots = append(roots, int(n))
	}
	return roots
}

func nodeName(n *gltf.Node, idx int) string {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		return "node" + strconv.Itoa(idx)
	}
	// path separator inside a name would break lookups
	return strings.ReplaceAll(name, "/", "_")
}
