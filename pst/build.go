package pst

import (
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/labelgo/label"
)

const (
	// Subtrees above this size are built on separate goroutines. The node
	// slots touched by the two subtrees are disjoint, so the resulting
	// tree is identical to a sequential build.
	parallelMin = 16384

	// Cap on the fan-out depth so we spawn at most ~2^parallelDepth goroutines.
	parallelDepth = 3
)

// Build constructs the tree from the given labels. The input slice is not
// retained or mutated; node ordinals refer to positions in it.
//
// Construction is deterministic for identical input: ties in T are broken
// by the canonical label order before the heap is laid out, and median
// splits break coordinate ties by node position.
func Build(labels []label.Label) *Tree {
	t := &Tree{root: noChild}
	if len(labels) == 0 {
		return t
	}

	// Heap layout: nodes sorted ascending by T, so the ref with the
	// smallest node index is always the subtree minimum.
	order := make([]uint32, len(labels))
	for i := range order {
		order[i] = uint32(i)
	}
	slices.SortFunc(order, func(a, b uint32) int {
		la, lb := labels[a], labels[b]
		switch {
		case la.T < lb.T:
			return -1
		case la.T > lb.T:
			return 1
		}
		return label.Compare(la, lb)
	})

	nodes := make([]node, len(labels))
	refs := make([]int32, len(labels))
	for i, ord := range order {
		l := labels[ord]
		nodes[i] = node{
			x:     l.X,
			y:     l.Y,
			t:     l.T,
			ord:   ord,
			split: math.NaN(),
			left:  noChild,
			right: noChild,
		}
		refs[i] = int32(i)
	}

	b := &builder{nodes: nodes}
	t.root = b.build(refs, axisX, 0)
	t.nodes = nodes
	return t
}

type builder struct {
	nodes []node
}

func (b *builder) coord(idx int32, isX bool) float64 {
	if isX {
		return b.nodes[idx].x
	}
	return b.nodes[idx].y
}

// build wires the subtree for refs and returns its root index. The root
// is the entry with the minimum T; the rest is split at the median
// coordinate of the current axis such that the right subtree is strictly
// greater than the split value.
func (b *builder) build(refs []int32, ax axis, depth int) int32 {
	if len(refs) == 0 {
		return noChild
	}

	// Minimum T == minimum node index, by heap layout.
	rootPos := 0
	for i, r := range refs {
		if r < refs[rootPos] {
			rootPos = i
		}
	}
	rootIdx := refs[rootPos]
	refs[rootPos] = refs[len(refs)-1]
	refs = refs[:len(refs)-1]

	isX := ax == axisX
	sub := axisX
	if isX {
		sub = axisY
	}

	split := math.NaN()
	left, right := noChild, noChild

	switch {
	case len(refs) == 1:
		split = b.coord(refs[0], isX)
		left = b.build(refs, sub, depth+1)

	case len(refs) > 1:
		slices.SortFunc(refs, func(p, q int32) int {
			cp, cq := b.coord(p, isX), b.coord(q, isX)
			switch {
			case cp < cq:
				return -1
			case cp > cq:
				return 1
			case p < q:
				return -1
			case p > q:
				return 1
			}
			return 0
		})

		mid := len(refs)/2 - 1
		split = b.coord(refs[mid], isX)
		// Everything equal to the split value belongs to the left
		// subtree; the right subtree is strictly greater.
		for mid < len(refs) && b.coord(refs[mid], isX) == split {
			mid++
		}

		lrefs, rrefs := refs[:mid], refs[mid:]
		if depth < parallelDepth && len(lrefs) >= parallelMin && len(rrefs) >= parallelMin {
			var g errgroup.Group
			g.Go(func() error {
				left = b.build(lrefs, sub, depth+1)
				return nil
			})
			right = b.build(rrefs, sub, depth+1)
			_ = g.Wait()
		} else {
			left = b.build(lrefs, sub, depth+1)
			right = b.build(rrefs, sub, depth+1)
		}
	}

	nd := &b.nodes[rootIdx]
	nd.axis = ax
	nd.split = split
	nd.left = left
	nd.right = right

	return rootIdx
}
