// Package store holds the immutable, memory-resident label store.
//
// A store is materialized once from a cache file (directly or through a
// blob store) and never mutated afterwards; the dataset is entirely
// determined by the cache file at load time. Alongside the label records
// the store keeps a priority inverted index, one roaring bitmap of label
// ordinals per distinct priority rank, so priority-filtered queries can
// skip non-matching candidates without touching their records.
package store

import (
	"context"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/labelgo/blobstore"
	"github.com/hupe1980/labelgo/cachefile"
	"github.com/hupe1980/labelgo/internal/mmap"
	"github.com/hupe1980/labelgo/label"
)

// Store is an immutable collection of labels plus auxiliary indexes.
type Store struct {
	labels     []label.Label
	bounds     label.BBox
	geographic bool

	// prio maps a priority rank to the bitmap of label ordinals
	// carrying it.
	prio map[int32]*roaring.Bitmap
}

// New builds a store over labels. The slice is retained and must not be
// modified by the caller afterwards.
func New(labels []label.Label, geographic bool) *Store {
	bounds := label.EmptyBBox()
	prio := make(map[int32]*roaring.Bitmap)

	for i, l := range labels {
		bounds.Extend(l.X, l.Y)

		bm, ok := prio[l.Prio]
		if !ok {
			bm = roaring.New()
			prio[l.Prio] = bm
		}
		bm.Add(uint32(i))
	}

	return &Store{
		labels:     labels,
		bounds:     bounds,
		geographic: geographic,
		prio:       prio,
	}
}

// FromDataset builds a store from a decoded cache file.
func FromDataset(ds *cachefile.Dataset) *Store {
	return New(ds.Labels, ds.Geographic)
}

// Load reads the cache file at path. The file is memory-mapped for the
// duration of the decode only; the returned store owns fully
// materialized copies.
//
// Missing files surface as fs.ErrNotExist; malformed content as
// cachefile.ErrCorrupt, cachefile.ErrInvalidMagic or
// cachefile.ErrVersionMismatch.
func Load(path string) (*Store, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	ds, err := cachefile.DecodeBytes(m.Bytes())
	if err != nil {
		return nil, err
	}
	return FromDataset(ds), nil
}

// LoadBlob reads the named cache blob from bs. A nil limiter downloads
// at full speed; otherwise the transfer is throttled (see
// blobstore.ReadAll).
func LoadBlob(ctx context.Context, bs blobstore.BlobStore, name string, limiter *rate.Limiter) (*Store, error) {
	b, err := bs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	data, err := blobstore.ReadAll(ctx, b, limiter)
	if err != nil {
		return nil, err
	}

	ds, err := cachefile.DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return FromDataset(ds), nil
}

// Len returns the number of labels.
func (s *Store) Len() int {
	return len(s.labels)
}

// At returns the label with the given ordinal.
func (s *Store) At(ord uint32) label.Label {
	return s.labels[ord]
}

// Labels returns the backing label slice. Read-only: callers must not
// modify it.
func (s *Store) Labels() []label.Label {
	return s.labels
}

// Bounds returns the box spanning all label positions. Empty datasets
// yield a degenerate box.
func (s *Store) Bounds() label.BBox {
	return s.bounds
}

// Geographic reports whether positions are lon/lat degrees.
func (s *Store) Geographic() bool {
	return s.geographic
}

// Prios returns all distinct priority ranks in ascending order.
func (s *Store) Prios() []int32 {
	out := make([]int32, 0, len(s.prio))
	for p := range s.prio {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// PrioBitmap returns the union bitmap of ordinals for the given ranks,
// or nil when none of them occur in the dataset.
func (s *Store) PrioBitmap(prios ...int32) *roaring.Bitmap {
	var out *roaring.Bitmap
	for _, p := range prios {
		bm, ok := s.prio[p]
		if !ok {
			continue
		}
		if out == nil {
			out = bm.Clone()
		} else {
			out.Or(bm)
		}
	}
	return out
}

// MaxPrioBitmap returns the bitmap of ordinals whose rank is <= max
// (lower rank = more important), or nil when no label qualifies.
func (s *Store) MaxPrioBitmap(max int32) *roaring.Bitmap {
	var out *roaring.Bitmap
	for p, bm := range s.prio {
		if p > max {
			continue
		}
		if out == nil {
			out = bm.Clone()
		} else {
			out.Or(bm)
		}
	}
	return out
}
