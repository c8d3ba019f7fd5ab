// Package labelgo provides an embedded query engine for map label datasets.
//
// A dataset is the output of an offline label elimination run over
// OpenStreetMap data: every label carries the visibility threshold at
// which it first becomes visible while zooming in. Labelgo loads such a
// dataset from a versioned binary cache file, indexes it in a 3D priority
// search tree and answers bounding-box queries at a given threshold with
// deterministic, canonically ordered results.
//
// # Quick Start
//
//	lg := labelgo.Open("labels.bin")
//	defer lg.Close()
//	if !lg.Good() {
//	    log.Fatal(lg.Err())
//	}
//
//	results, err := lg.Query(label.NewBBox(8.9, 48.6, 9.3, 48.9)).
//	    Threshold(2.0).
//	    Execute(ctx)
//
// Or with streaming:
//
//	for l, err := range lg.Query(box).Threshold(t).Stream(ctx) {
//	    if err != nil {
//	        break
//	    }
//	    draw(l)
//	}
//
// Datasets can also be loaded from object storage (see the blobstore
// subpackages for S3 and MinIO backends):
//
//	lg := labelgo.OpenBlob(ctx, store, "europe/labels.bin",
//	    labelgo.WithDownloadRate(8<<20))
//
// Open and OpenBlob never fail: a failed load yields a handle whose
// Good reports false and whose Err carries the cause, and every query on
// it returns ErrInvalidHandle. Results are value copies, independent of
// the handle's lifetime.
package labelgo

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hupe1980/labelgo/blobstore"
	"github.com/hupe1980/labelgo/label"
	"github.com/hupe1980/labelgo/pst"
	"github.com/hupe1980/labelgo/store"
)

// Labelgo is a handle on one loaded label dataset. All methods are safe
// for concurrent use; the dataset is immutable after load.
type Labelgo struct {
	store  *store.Store
	tree   *pst.Tree
	err    error
	closed atomic.Bool

	metrics     MetricsCollector
	logger      *Logger
	validateGeo bool
}

// Open loads the cache file at path and indexes it.
//
// Open never fails: check Good (and Err) on the returned handle before
// querying. Load failures distinguish missing files (fs.ErrNotExist),
// corrupt content (cachefile.ErrCorrupt, cachefile.ErrInvalidMagic) and
// format version mismatches (cachefile.ErrVersionMismatch).
func Open(path string, optFns ...Option) *Labelgo {
	o := applyOptions(optFns)
	lg := newHandle(o)

	start := time.Now()
	st, err := store.Load(path)
	lg.finishLoad(context.Background(), path, st, time.Since(start), err)
	return lg
}

// OpenBlob loads the named cache blob from bs and indexes it. Like Open
// it never fails; check Good on the returned handle.
func OpenBlob(ctx context.Context, bs blobstore.BlobStore, name string, optFns ...Option) *Labelgo {
	o := applyOptions(optFns)
	lg := newHandle(o)

	start := time.Now()
	st, err := store.LoadBlob(ctx, bs, name, o.limiter)
	lg.finishLoad(ctx, name, st, time.Since(start), err)
	return lg
}

// FromLabels builds a handle directly over in-memory labels, bypassing
// the cache file. The slice is retained and must not be modified by the
// caller afterwards.
func FromLabels(labels []label.Label, geographic bool, optFns ...Option) *Labelgo {
	o := applyOptions(optFns)
	lg := newHandle(o)

	start := time.Now()
	lg.finishLoad(context.Background(), "memory", store.New(labels, geographic), time.Since(start), nil)
	return lg
}

func newHandle(o options) *Labelgo {
	return &Labelgo{
		metrics:     o.metricsCollector,
		logger:      o.logger,
		validateGeo: o.validateGeo,
	}
}

func (lg *Labelgo) finishLoad(ctx context.Context, source string, st *store.Store, loadTime time.Duration, err error) {
	if err != nil {
		lg.err = err
		lg.metrics.RecordLoad(0, loadTime, err)
		lg.logger.LogLoad(ctx, source, 0, loadTime, err)
		return
	}

	start := time.Now()
	lg.store = st
	lg.tree = pst.Build(st.Labels())

	total := loadTime + time.Since(start)
	lg.metrics.RecordLoad(st.Len(), total, nil)
	lg.logger.LogLoad(ctx, source, st.Len(), total, nil)
}

// Good reports whether the dataset loaded successfully and the handle is
// still open. A handle that is not good returns ErrInvalidHandle (or
// ErrClosed) from every query.
func (lg *Labelgo) Good() bool {
	return lg.err == nil && lg.store != nil && !lg.closed.Load()
}

// Err returns the load failure, or nil if the dataset loaded cleanly.
func (lg *Labelgo) Err() error {
	return lg.err
}

// guard validates the handle ahead of a query.
func (lg *Labelgo) guard() error {
	if lg.closed.Load() {
		return ErrClosed
	}
	if lg.err != nil || lg.store == nil {
		return ErrInvalidHandle
	}
	return nil
}

// Count returns the number of labels in the dataset, or 0 for a handle
// that is not good.
func (lg *Labelgo) Count() int {
	if lg.guard() != nil {
		return 0
	}
	return lg.store.Len()
}

// Bounds returns the box spanning all label positions. Handles that are
// not good (and empty datasets) yield a degenerate box.
func (lg *Labelgo) Bounds() label.BBox {
	if lg.guard() != nil {
		return label.EmptyBBox()
	}
	return lg.store.Bounds()
}

// Geographic reports whether label positions are lon/lat degrees.
func (lg *Labelgo) Geographic() bool {
	if lg.guard() != nil {
		return false
	}
	return lg.store.Geographic()
}

// Prios returns all distinct priority ranks in the dataset, ascending.
func (lg *Labelgo) Prios() []int32 {
	if lg.guard() != nil {
		return nil
	}
	return lg.store.Prios()
}

// QueryRange is the plain form of the query API: all labels within the
// closed box [minX,maxX] x [minY,maxY] whose visibility threshold is
// <= t, in canonical order. Use Query for filtering, limits and
// streaming.
func (lg *Labelgo) QueryRange(ctx context.Context, t, minX, maxX, minY, maxY float64) ([]label.Label, error) {
	return lg.Query(label.NewBBox(minX, minY, maxX, maxY)).Threshold(t).Execute(ctx)
}

// Close releases the dataset. Close is idempotent; queries after Close
// return ErrClosed.
func (lg *Labelgo) Close() error {
	if lg.closed.Swap(true) {
		return nil
	}
	lg.logger.LogClose(context.Background())
	return nil
}
