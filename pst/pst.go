// Package pst implements a 3-dimensional priority search tree over point
// labels.
//
// The tree combines a min-heap on the visibility threshold T with kd-style
// alternating x/y splits below it: every node carries the minimum T of its
// subtree, so a whole subtree is pruned as soon as its root is not visible
// at the queried threshold. The remaining dimensions are partitioned at
// the median coordinate, which keeps range queries sublinear even for the
// heavily skewed point distributions of geographic data.
//
// A query selects all labels within a closed bounding box
// [MinX,MaxX] x [MinY,MaxY] whose threshold satisfies T <= t.
//
// The tree is built once and is immutable afterwards; concurrent queries
// need no locking.
package pst

import (
	"fmt"
	"strings"

	"github.com/hupe1980/labelgo/label"
)

type axis uint8

const (
	axisNone axis = iota
	axisX
	axisY
)

const noChild = int32(-1)

// node is one tree entry. Children are slice indices rather than
// pointers; noChild marks a missing subtree.
type node struct {
	x, y float64
	t    float64

	ord uint32 // ordinal of the label in the source slice

	split float64 // max coordinate of the left subtree in the split axis
	axis  axis
	left  int32
	right int32
}

// Tree is an immutable 3D priority search tree.
type Tree struct {
	nodes []node
	root  int32
}

// Len returns the number of indexed labels.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Query returns the ordinals of all labels inside the closed box whose
// threshold is <= maxT. The order of the returned ordinals is
// unspecified; callers needing the canonical result order sort the
// materialized labels themselves.
//
// Degenerate boxes (MinX > MaxX or MinY > MaxY) yield an empty result.
func (t *Tree) Query(bbox label.BBox, maxT float64) []uint32 {
	var out []uint32
	t.Visit(bbox, maxT, func(ord uint32) bool {
		out = append(out, ord)
		return true
	})
	return out
}

// Visit calls fn for every label inside the closed box with threshold
// <= maxT. Traversal stops early when fn returns false.
func (t *Tree) Visit(bbox label.BBox, maxT float64, fn func(ord uint32) bool) {
	if t == nil || t.root == noChild || bbox.Degenerate() {
		return
	}
	t.visit(t.root, bbox, maxT, fn)
}

func (t *Tree) visit(idx int32, bbox label.BBox, maxT float64, fn func(ord uint32) bool) bool {
	if idx < 0 || int(idx) >= len(t.nodes) {
		// A broken child link means the in-memory structure is corrupt;
		// wrong query results must never be returned silently.
		panic(fmt.Sprintf("pst: node index %d out of range [0,%d)", idx, len(t.nodes)))
	}

	n := &t.nodes[idx]

	// Min-ordering on T: nothing below this node is visible at maxT.
	if n.t > maxT {
		return true
	}

	if bbox.ContainsPoint(n.x, n.y) {
		if !fn(n.ord) {
			return false
		}
	}

	if n.left != noChild {
		descend := false
		switch n.axis {
		case axisX:
			descend = bbox.MinX <= n.split
		case axisY:
			descend = bbox.MinY <= n.split
		}
		if descend && !t.visit(n.left, bbox, maxT, fn) {
			return false
		}
	}

	if n.right != noChild {
		descend := false
		switch n.axis {
		case axisX:
			descend = bbox.MaxX > n.split
		case axisY:
			descend = bbox.MaxY > n.split
		}
		if descend && !t.visit(n.right, bbox, maxT, fn) {
			return false
		}
	}

	return true
}

// Dump renders the tree as one line per node, for debugging small trees.
func (t *Tree) Dump() string {
	if t == nil || t.root == noChild {
		return "pst: empty"
	}
	var sb strings.Builder
	t.dump(&sb, t.root, 0, ' ')
	return sb.String()
}

func (t *Tree) dump(sb *strings.Builder, idx int32, level int, branch byte) {
	n := &t.nodes[idx]

	if level > 0 {
		sb.WriteByte(branch)
	}
	sb.WriteString(strings.Repeat("    ", level))

	name := "leaf"
	switch n.axis {
	case axisX:
		name = "x-node"
	case axisY:
		name = "y-node"
	}
	fmt.Fprintf(sb, "%s (split: %g): ord %d at (%g, %g) t %g", name, n.split, n.ord, n.x, n.y, n.t)

	if n.left != noChild {
		sb.WriteByte('\n')
		t.dump(sb, n.left, level+1, 'l')
	}
	if n.right != noChild {
		sb.WriteByte('\n')
		t.dump(sb, n.right, level+1, 'r')
	}
}
