// Package readers imports base meshes from the file formats understood by
// gocfd (Gmsh 2.2 and 4.x, Gambit neutral, SU2).
package readers

import (
	"fmt"
	"slices"
	"strconv"

	gmesh "github.com/notargets/gocfd/DG3D/mesh"
	gocfdreaders "github.com/notargets/gocfd/DG3D/mesh/readers"
	"github.com/notargets/gocfd/utils"
	"github.com/notargets/hpmesh/element"
	"github.com/notargets/hpmesh/mesh"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultMarker is used for elements and boundary edges without a physical group.
const DefaultMarker = "0"

// ReadMeshFile reads a mesh file and returns the 2D part as a base mesh
func ReadMeshFile(path string) (mesh.BaseMesh, error) {
	g, err := gocfdreaders.ReadMeshFile(path)
	if err != nil {
		return mesh.BaseMesh{}, fmt.Errorf("%w: reading %s: %v", mesh.ErrMeshLoad, path, err)
	}
	return FromGocfd(g)
}

// Load reads a mesh file into a new mesh
func Load(path string, opts ...mesh.Option) (*mesh.Mesh, error) {
	b, err := ReadMeshFile(path)
	if err != nil {
		return nil, err
	}
	m := mesh.New(opts...)
	if err = m.Create(b); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func corners(t utils.ElementType) int {
	switch t {
	case utils.Triangle, utils.Triangle6, utils.Triangle9, utils.Triangle10:
		return 3
	case utils.Quad, utils.Quad8, utils.Quad9:
		return 4
	case utils.Line, utils.Line3:
		return 2
	}
	return 0
}

// FromGocfd converts the triangles, quads and boundary lines of a gocfd mesh.
// Element markers are the physical group names, boundary markers the line
// groups and the named boundary sets. Clockwise quads are reversed; higher
// order elements keep their corner nodes only.
func FromGocfd(g *gmesh.Mesh) (mesh.BaseMesh, error) {
	var b mesh.BaseMesh
	if g == nil {
		return b, fmt.Errorf("%w: no mesh", mesh.ErrMeshLoad)
	}
	if g.NumElements == 0 && len(g.EtoV) == 0 {
		return b, fmt.Errorf("%w: mesh has no elements", mesh.ErrMeshLoad)
	}

	used := make(map[int]int)
	vertex := func(idx int) (int, error) {
		if id, ok := used[idx]; ok {
			return id, nil
		}
		if idx < 0 || idx >= len(g.Vertices) || len(g.Vertices[idx]) < 2 {
			return 0, fmt.Errorf("%w: node index %d has no coordinates", mesh.ErrMeshLoad, idx)
		}
		c := g.Vertices[idx]
		id := len(b.Vertices)
		b.Vertices = append(b.Vertices, r2.Vec{X: c[0], Y: c[1]})
		used[idx] = id
		return id, nil
	}
	mapNodes := func(nodes []int, n int) ([]int, error) {
		if len(nodes) < n {
			return nil, fmt.Errorf("%w: element has %d nodes, need %d", mesh.ErrMeshLoad, len(nodes), n)
		}
		out := make([]int, n)
		for i := 0; i < n; i++ {
			id, err := vertex(nodes[i])
			if err != nil {
				return nil, err
			}
			out[i] = id
		}
		return out, nil
	}

	var lines [][2]int
	var lineMarkers []string
	for i, t := range g.ElementTypes {
		n := corners(t)
		if n == 0 || t.GetDimension() > 2 {
			continue
		}
		var tags []int
		if i < len(g.ElementTags) {
			tags = g.ElementTags[i]
		}
		if t.GetDimension() == 1 {
			if len(g.EtoV[i]) < 2 {
				continue
			}
			// boundary lines may mention vertices no element uses; keep them for later
			lines = append(lines, [2]int{g.EtoV[i][0], g.EtoV[i][1]})
			lineMarkers = append(lineMarkers, groupName(g, tags, 1))
			continue
		}
		vs, err := mapNodes(g.EtoV[i], n)
		if err != nil {
			return b, fmt.Errorf("element %d: %w", i, err)
		}
		marker := groupName(g, tags, 2)
		if n == 3 {
			b.Triangles = append(b.Triangles, [3]int{vs[0], vs[1], vs[2]})
			b.TriangleMarkers = append(b.TriangleMarkers, marker)
			continue
		}
		p := []r2.Vec{b.Vertices[vs[0]], b.Vertices[vs[1]], b.Vertices[vs[2]], b.Vertices[vs[3]]}
		if element.PolygonArea(p) < 0 {
			vs[1], vs[3] = vs[3], vs[1]
		}
		b.Quads = append(b.Quads, [4]int{vs[0], vs[1], vs[2], vs[3]})
		b.QuadMarkers = append(b.QuadMarkers, marker)
	}
	if len(b.Triangles)+len(b.Quads) == 0 {
		return b, fmt.Errorf("%w: mesh has no triangles or quads", mesh.ErrMeshLoad)
	}

	seen := make(map[[2]int]bool)
	addEdge := func(a, c int, name string) {
		ia, oka := used[a]
		ic, okc := used[c]
		if !oka || !okc {
			return
		}
		key := [2]int{min(ia, ic), max(ia, ic)}
		if seen[key] {
			return
		}
		seen[key] = true
		b.BoundaryEdges = append(b.BoundaryEdges, [2]int{ia, ic})
		b.BoundaryMarkers = append(b.BoundaryMarkers, name)
	}
	for i, l := range lines {
		addEdge(l[0], l[1], lineMarkers[i])
	}
	names := make([]string, 0, len(g.BoundaryElements))
	for name := range g.BoundaryElements {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		for _, be := range g.BoundaryElements[name] {
			if corners(be.ElementType) != 2 || len(be.Nodes) < 2 {
				continue
			}
			addEdge(be.Nodes[0], be.Nodes[1], name)
		}
	}
	return b, nil
}

// groupName returns the name of the physical group in tags[0] of the given
// dimension, the bare tag when the group is unnamed
func groupName(g *gmesh.Mesh, tags []int, dim int) string {
	if len(tags) == 0 || tags[0] <= 0 {
		return DefaultMarker
	}
	if grp, ok := g.ElementGroups[tags[0]]; ok && grp.Name != "" && (grp.Dimension == dim || grp.Dimension == 0) {
		return grp.Name
	}
	if name, ok := g.BoundaryTags[tags[0]]; ok && dim == 1 && name != "" {
		return name
	}
	return strconv.Itoa(tags[0])
}
