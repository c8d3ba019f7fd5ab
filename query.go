// This file implements the fluent query API over a loaded dataset.
package labelgo

import (
	"context"
	"iter"
	"math"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/labelgo/label"
)

// Query creates a new fluent query builder for the given bounding box.
//
// Example:
//
//	results, err := lg.Query(box).
//	    Threshold(2.0).
//	    MaxPrio(4).
//	    Execute(ctx)
//
//	// Or with streaming:
//	for l, err := range lg.Query(box).Threshold(2.0).Stream(ctx) {
//	    if err != nil { break }
//	    process(l)
//	}
func (lg *Labelgo) Query(box label.BBox) *QueryBuilder {
	return &QueryBuilder{
		lg:  lg,
		box: box,
		t:   math.Inf(1), // all thresholds
	}
}

// QueryBuilder is a fluent builder for constructing range queries.
type QueryBuilder struct {
	lg  *Labelgo
	box label.BBox
	t   float64

	// Filters
	prios      []int32
	maxPrio    int32
	hasMaxPrio bool

	// Options
	wrapX bool
	limit int
}

// Threshold sets the visibility threshold. Only labels with T <= t are
// returned; unset, all labels in the box match.
func (qb *QueryBuilder) Threshold(t float64) *QueryBuilder {
	qb.t = t
	return qb
}

// Prio restricts results to labels carrying one of the given priority
// ranks.
func (qb *QueryBuilder) Prio(prios ...int32) *QueryBuilder {
	qb.prios = append(qb.prios, prios...)
	return qb
}

// MaxPrio restricts results to labels with rank <= p (lower rank = more
// important).
func (qb *QueryBuilder) MaxPrio(p int32) *QueryBuilder {
	qb.maxPrio = p
	qb.hasMaxPrio = true
	return qb
}

// WrapX treats a box with MinX > MaxX as wrapping around the x seam
// (the antimeridian for geographic data) instead of as degenerate.
func (qb *QueryBuilder) WrapX() *QueryBuilder {
	qb.wrapX = true
	return qb
}

// Limit caps the number of results. The cap is applied after canonical
// ordering, so a limited query returns a stable prefix. Zero or negative
// means unlimited.
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.limit = n
	return qb
}

// Execute runs the query and returns the matching labels in canonical
// order. Results are value copies, independent of the handle.
func (qb *QueryBuilder) Execute(ctx context.Context) ([]label.Label, error) {
	start := time.Now()

	results, err := qb.run(ctx)

	qb.lg.metrics.RecordQuery(len(results), time.Since(start), err)
	qb.lg.logger.LogQuery(ctx, qb.box, qb.t, len(results), time.Since(start), err)
	return results, err
}

// MustExecute runs the query, panicking on error.
// Use this only in tests or when you're certain the handle is good.
func (qb *QueryBuilder) MustExecute(ctx context.Context) []label.Label {
	results, err := qb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// Stream returns an iterator over the results in canonical order.
// The iterator supports early termination by breaking from the loop.
//
// Example:
//
//	for l, err := range lg.Query(box).Threshold(2.0).Stream(ctx) {
//	    if err != nil { break }
//	    process(l)
//	}
func (qb *QueryBuilder) Stream(ctx context.Context) iter.Seq2[label.Label, error] {
	return func(yield func(label.Label, error) bool) {
		results, err := qb.Execute(ctx)
		if err != nil {
			yield(label.Label{}, err)
			return
		}
		for _, l := range results {
			if !yield(l, nil) {
				return
			}
		}
	}
}

// Count executes the query and returns the number of results.
func (qb *QueryBuilder) Count(ctx context.Context) (int, error) {
	results, err := qb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// Exists checks if at least one label matches the query.
func (qb *QueryBuilder) Exists(ctx context.Context) (bool, error) {
	qb.limit = 1
	results, err := qb.Execute(ctx)
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}

func (qb *QueryBuilder) run(ctx context.Context) ([]label.Label, error) {
	lg := qb.lg

	if err := lg.guard(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if lg.validateGeo && lg.store.Geographic() {
		if err := qb.box.ValidateGeo(); err != nil {
			return nil, err
		}
	}

	boxes := qb.boxes()

	filter, filtered := qb.filterBitmap()
	if filtered && filter == nil {
		// Priority filters were requested but match no label at all.
		return []label.Label{}, nil
	}

	results := []label.Label{}
	for _, box := range boxes {
		lg.tree.Visit(box, qb.t, func(ord uint32) bool {
			if filter != nil && !filter.Contains(ord) {
				return true
			}
			results = append(results, lg.store.At(ord))
			return true
		})
	}

	slices.SortFunc(results, label.Compare)

	if qb.limit > 0 && len(results) > qb.limit {
		results = results[:qb.limit]
	}
	return results, nil
}

// boxes resolves the query box into the tree boxes to scan. A wrapped
// box splits into the two disjoint halves on either side of the x seam;
// without WrapX an inverted box stays degenerate and matches nothing.
func (qb *QueryBuilder) boxes() []label.BBox {
	if qb.wrapX && qb.box.MinX > qb.box.MaxX && qb.box.MinY <= qb.box.MaxY {
		return []label.BBox{
			label.NewBBox(qb.box.MinX, qb.box.MinY, math.Inf(1), qb.box.MaxY),
			label.NewBBox(math.Inf(-1), qb.box.MinY, qb.box.MaxX, qb.box.MaxY),
		}
	}
	return []label.BBox{qb.box}
}

// filterBitmap resolves the priority filters into one ordinal bitmap.
// filtered reports whether any filter was requested; a nil bitmap with
// filtered set means the filters match nothing.
func (qb *QueryBuilder) filterBitmap() (bm *roaring.Bitmap, filtered bool) {
	if len(qb.prios) > 0 {
		bm = qb.lg.store.PrioBitmap(qb.prios...)
		filtered = true
	}
	if qb.hasMaxPrio {
		mx := qb.lg.store.MaxPrioBitmap(qb.maxPrio)
		if filtered {
			if bm == nil || mx == nil {
				bm = nil
			} else {
				bm.And(mx)
				if bm.IsEmpty() {
					bm = nil
				}
			}
		} else {
			bm = mx
		}
		filtered = true
	}
	return bm, filtered
}
