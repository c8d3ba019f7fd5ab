package labelgo_test

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/labelgo"
	"github.com/hupe1980/labelgo/blobstore"
	"github.com/hupe1980/labelgo/cachefile"
	"github.com/hupe1980/labelgo/label"
)

func testLabels() []label.Label {
	return []label.Label{
		{X: 9.1829321, Y: 48.7758459, T: 1.0, ID: 1, Prio: 1, Factor: 13.0, Name: "Stuttgart"},
		{X: 9.9934336, Y: 48.3974003, T: 2.5, ID: 2, Prio: 2, Factor: 9.0, Name: "Ulm"},
		{X: 8.4037563, Y: 49.0068901, T: 2.0, ID: 3, Prio: 2, Factor: 9.0, Name: "Karlsruhe"},
		{X: 8.6821267, Y: 50.1109221, T: 0.5, ID: 4, Prio: 1, Factor: 13.0, Name: "Frankfurt"},
		{X: 13.4050, Y: 52.5200, T: 0.1, ID: 5, Prio: 1, Factor: 15.0, Name: "Berlin"},
	}
}

func writeCache(t *testing.T, labels []label.Label) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.bin")
	require.NoError(t, cachefile.EncodeFile(path, &cachefile.Dataset{
		Labels:     labels,
		Geographic: true,
	}))
	return path
}

func names(labels []label.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.Name
	}
	return out
}

func TestOpen(t *testing.T) {
	lg := labelgo.Open(writeCache(t, testLabels()))
	defer lg.Close()

	require.True(t, lg.Good())
	assert.NoError(t, lg.Err())
	assert.Equal(t, 5, lg.Count())
	assert.True(t, lg.Geographic())
	assert.Equal(t, []int32{1, 2}, lg.Prios())
	assert.False(t, lg.Bounds().Degenerate())
}

func TestOpenMissingFile(t *testing.T) {
	lg := labelgo.Open(filepath.Join(t.TempDir(), "nope.bin"))
	defer lg.Close()

	assert.False(t, lg.Good())
	assert.ErrorIs(t, lg.Err(), fs.ErrNotExist)
	assert.Equal(t, 0, lg.Count())
	assert.True(t, lg.Bounds().Degenerate())

	_, err := lg.Query(label.NewBBox(0, 0, 10, 10)).Execute(context.Background())
	assert.ErrorIs(t, err, labelgo.ErrInvalidHandle)
}

func TestOpenCorruptFile(t *testing.T) {
	path := writeCache(t, testLabels())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	lg := labelgo.Open(path)
	defer lg.Close()

	assert.False(t, lg.Good())
	assert.ErrorIs(t, lg.Err(), cachefile.ErrCorrupt)
}

func TestOpenBlob(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, cachefile.Encode(&buf, &cachefile.Dataset{
		Labels:     testLabels(),
		Geographic: true,
	}))

	bs := blobstore.NewMemoryStore()
	require.NoError(t, bs.Put(ctx, "europe/labels.bin", buf.Bytes()))

	lg := labelgo.OpenBlob(ctx, bs, "europe/labels.bin")
	defer lg.Close()

	require.True(t, lg.Good())
	assert.Equal(t, 5, lg.Count())
}

func TestOpenBlobNotFound(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.OpenBlob(ctx, blobstore.NewMemoryStore(), "missing.bin")
	defer lg.Close()

	assert.False(t, lg.Good())
	assert.ErrorIs(t, lg.Err(), blobstore.ErrNotFound)
}

func TestQueryThreshold(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	// Southwest Germany at a mid zoom: Stuttgart (t 1.0) and Karlsruhe
	// (t 2.0) qualify at threshold 2.0, Ulm (t 2.5) does not yet.
	box := label.NewBBox(8.0, 48.0, 10.0, 49.5)

	results, err := lg.Query(box).Threshold(2.0).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Stuttgart", "Karlsruhe"}, names(results))

	// The threshold comparison is inclusive.
	results, err = lg.Query(box).Threshold(2.5).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Stuttgart", "Ulm", "Karlsruhe"}, names(results))

	// Zoomed out beyond every threshold in the box.
	results, err = lg.Query(box).Threshold(0.75).Execute(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryDefaultThresholdMatchesAll(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	results, err := lg.Query(label.NewBBox(-180, -90, 180, 90)).Execute(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestQueryCanonicalOrder(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	box := label.NewBBox(-180, -90, 180, 90)

	first, err := lg.Query(box).Threshold(100).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, first, 5)

	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].ID, first[i].ID)
	}

	// Identical queries yield identical sequences.
	for i := 0; i < 10; i++ {
		again, err := lg.Query(box).Threshold(100).Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestQueryDegenerateBox(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	results, err := lg.Query(label.NewBBox(10, 48, 8, 49)).Threshold(100).Execute(ctx)
	require.NoError(t, err, "a degenerate box is an empty result, not an error")
	assert.Empty(t, results)
}

func TestQueryWrapX(t *testing.T) {
	ctx := context.Background()
	labels := []label.Label{
		{X: 179.5, Y: -16.5, T: 1.0, ID: 1, Prio: 1, Name: "Taveuni"},
		{X: -179.9, Y: -16.2, T: 1.0, ID: 2, Prio: 1, Name: "Udu Point"},
		{X: 0.0, Y: 51.5, T: 1.0, ID: 3, Prio: 1, Name: "London"},
	}
	lg := labelgo.FromLabels(labels, true)
	defer lg.Close()

	box := label.NewBBox(170, -30, -170, 0)

	// Without WrapX an inverted box stays degenerate.
	results, err := lg.Query(box).Threshold(2).Execute(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = lg.Query(box).Threshold(2).WrapX().Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Taveuni", "Udu Point"}, names(results))
}

func TestQueryPrioFilter(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	box := label.NewBBox(-180, -90, 180, 90)

	results, err := lg.Query(box).Threshold(100).Prio(2).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ulm", "Karlsruhe"}, names(results))

	results, err = lg.Query(box).Threshold(100).MaxPrio(1).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Stuttgart", "Frankfurt", "Berlin"}, names(results))

	// Combined filters intersect.
	results, err = lg.Query(box).Threshold(100).Prio(2).MaxPrio(1).Execute(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	// A rank absent from the dataset matches nothing.
	results, err = lg.Query(box).Threshold(100).Prio(9).Execute(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryLimit(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	box := label.NewBBox(-180, -90, 180, 90)

	results, err := lg.Query(box).Threshold(100).Limit(2).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Stuttgart", "Ulm"}, names(results), "the limit keeps a stable canonical prefix")
}

func TestQueryStream(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	var got []string
	for l, err := range lg.Query(label.NewBBox(-180, -90, 180, 90)).Threshold(100).Stream(ctx) {
		require.NoError(t, err)
		got = append(got, l.Name)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []string{"Stuttgart", "Ulm", "Karlsruhe"}, got)
}

func TestQueryStreamInvalidHandle(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.Open(filepath.Join(t.TempDir(), "nope.bin"))
	defer lg.Close()

	var streamErr error
	for _, err := range lg.Query(label.NewBBox(0, 0, 1, 1)).Stream(ctx) {
		streamErr = err
	}
	assert.ErrorIs(t, streamErr, labelgo.ErrInvalidHandle)
}

func TestQueryCountAndExists(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	box := label.NewBBox(8.0, 48.0, 10.0, 49.5)

	n, err := lg.Query(box).Threshold(2.0).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := lg.Query(box).Threshold(2.0).Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lg.Query(box).Threshold(0.1).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryRange(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.Open(writeCache(t, testLabels()))
	defer lg.Close()

	results, err := lg.QueryRange(ctx, 2.0, 8.0, 10.0, 48.0, 49.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Stuttgart", "Karlsruhe"}, names(results))
}

func TestQueryResultsAreIndependent(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	box := label.NewBBox(-180, -90, 180, 90)

	first, err := lg.Query(box).Threshold(100).Execute(ctx)
	require.NoError(t, err)

	first[0].Name = "mutated"
	first[0].X = -1

	again, err := lg.Query(box).Threshold(100).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Stuttgart", again[0].Name, "results are value copies")
}

func TestQueryGeoValidation(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true, labelgo.WithGeoValidation())
	defer lg.Close()

	_, err := lg.Query(label.NewBBox(0, -95, 10, 10)).Threshold(1).Execute(ctx)
	assert.ErrorIs(t, err, label.ErrLatitudeRange)

	_, err = lg.Query(label.NewBBox(0, 0, 200, 10)).Threshold(1).Execute(ctx)
	assert.ErrorIs(t, err, label.ErrLongitudeRange)
}

func TestQueryCanceledContext(t *testing.T) {
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lg.Query(label.NewBBox(0, 0, 10, 10)).Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)

	require.True(t, lg.Good())
	require.NoError(t, lg.Close())
	require.NoError(t, lg.Close(), "close is idempotent")

	assert.False(t, lg.Good())

	_, err := lg.Query(label.NewBBox(0, 0, 10, 10)).Execute(ctx)
	assert.ErrorIs(t, err, labelgo.ErrClosed)
}

func TestConcurrentQueries(t *testing.T) {
	ctx := context.Background()
	lg := labelgo.FromLabels(testLabels(), true)
	defer lg.Close()

	box := label.NewBBox(-180, -90, 180, 90)

	want, err := lg.Query(box).Threshold(100).Execute(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := lg.Query(box).Threshold(100).Execute(ctx)
				assert.NoError(t, err)
				assert.Equal(t, want, got)
			}
		}()
	}
	wg.Wait()
}

func TestMetricsCollector(t *testing.T) {
	ctx := context.Background()
	metrics := &labelgo.BasicMetricsCollector{}

	lg := labelgo.FromLabels(testLabels(), true, labelgo.WithMetricsCollector(metrics))
	defer lg.Close()

	_, err := lg.Query(label.NewBBox(-180, -90, 180, 90)).Threshold(100).Execute(ctx)
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.LoadCount)
	assert.Equal(t, int64(5), stats.LabelsLoaded)
	assert.Equal(t, int64(1), stats.QueryCount)
	assert.Equal(t, int64(5), stats.ResultsReturned)
	assert.Equal(t, int64(0), stats.QueryErrors)
}

func TestMetricsCollectorRecordsFailures(t *testing.T) {
	metrics := &labelgo.BasicMetricsCollector{}

	lg := labelgo.Open(filepath.Join(t.TempDir(), "nope.bin"), labelgo.WithMetricsCollector(metrics))
	defer lg.Close()

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.LoadCount)
	assert.Equal(t, int64(1), stats.LoadErrors)
}

func TestMustExecutePanicsOnBadHandle(t *testing.T) {
	lg := labelgo.Open(filepath.Join(t.TempDir(), "nope.bin"))
	defer lg.Close()

	assert.Panics(t, func() {
		lg.Query(label.NewBBox(0, 0, 1, 1)).MustExecute(context.Background())
	})
}
