// Package label defines the point-label data model shared by the store,
// the spatial index and the query API.
//
// A Label is a named point feature derived from an OpenStreetMap element.
// Its visibility threshold T encodes the coarsest scale at which the label
// is eligible for display: a label is visible at query threshold t iff
// T <= t, so small T means "shown even when zoomed far out".
package label

import "fmt"

// Label is one labelable point feature. Labels are immutable after load.
type Label struct {
	// X and Y are the position (longitude/latitude for geographic datasets).
	X float64
	Y float64

	// T is the precomputed visibility threshold. Visible iff T <= t.
	T float64

	// ID is the originating feature id (e.g. an OSM element id).
	// Treat as opaque: derived features may share an id.
	ID int64

	// Prio ranks importance among competing labels. Lower is more
	// important: rank 1 wins over rank 2 in downstream overlap resolution.
	Prio int32

	// Factor is the font size factor relative to other labels.
	Factor float64

	// Name is the rendered label text (UTF-8).
	Name string
}

// String returns a human readable representation.
func (l Label) String() string {
	return fmt.Sprintf("Label [#%d]: %q at (%g, %g) with prio %d, t: %g and factor: %g",
		l.ID, l.Name, l.X, l.Y, l.Prio, l.T, l.Factor)
}

// Less is the canonical total order on labels: ascending ID, ties broken
// by Prio, Name, X, Y. Query results are sorted by this order so that
// identical queries yield identical result sequences.
func Less(a, b Label) bool {
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if a.Prio != b.Prio {
		return a.Prio < b.Prio
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// Compare returns -1, 0 or 1 per the canonical order. Suitable for
// slices.SortFunc.
func Compare(a, b Label) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}
