package pyout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainNormalizer(columns ...string) *rowNormalizer {
	style := make(map[string]*ColumnStyle, len(columns))
	for _, c := range columns {
		style[c] = &ColumnStyle{}
	}
	return newRowNormalizer(columns, style)
}

func TestNormalizeMapRecord(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "status")
	units, row, err := n.normalize(map[string]any{"name": "foo", "status": "ok"})
	require.NoError(t, err)
	assert.Empty(t, units)
	assert.Equal(t, map[string]any{"name": "foo", "status": "ok"}, row)
}

func TestNormalizeMapMissingColumn(t *testing.T) {
	t.Parallel()
	missing := "-"
	n := newRowNormalizer([]string{"name", "status"}, map[string]*ColumnStyle{
		"name":   {},
		"status": {Missing: &missing},
	})
	_, row, err := n.normalize(map[string]any{"name": "foo"})
	require.NoError(t, err)
	assert.Equal(t, nothing{text: "-"}, row["status"])
}

func TestNormalizeMapFreshColumns(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name")
	_, row, err := n.normalize(map[string]any{"name": "foo", "size": 3, "owner": "me"})
	require.NoError(t, err)
	assert.Equal(t, 3, row["size"])
	assert.Equal(t, "me", row["owner"])
}

func TestNormalizeSeqRecord(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "status")
	_, row, err := n.normalize([]any{"foo", "ok"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "foo", "status": "ok"}, row)
}

func TestNormalizeSeqRecordTooShort(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "status")
	_, _, err := n.normalize([]any{"foo"})
	assert.Error(t, err)
}

func TestNormalizeStructRecord(t *testing.T) {
	t.Parallel()
	type record struct {
		Name   string
		Status string
		hidden string
	}
	n := plainNormalizer("name", "status", "missing")
	_, row, err := n.normalize(record{Name: "foo", Status: "ok", hidden: "x"})
	require.NoError(t, err)
	assert.Equal(t, "foo", row["name"])
	assert.Equal(t, "ok", row["status"])
	assert.Equal(t, nothingEmpty, row["missing"])
}

func TestNormalizeMethodIsSticky(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "status")
	_, _, err := n.normalize([]any{"foo", "ok"})
	require.NoError(t, err)

	// The extraction strategy was fixed by the first record.
	_, row, err := n.normalize([]any{"bar", "done"})
	require.NoError(t, err)
	assert.Equal(t, "bar", row["name"])
}

func TestNormalizeStripsDeferredFetch(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "status")
	units, row, err := n.normalize(map[string]any{
		"name": "foo",
		"status": Async(func(context.Context) (any, error) {
			return "installed", nil
		}),
	})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, []string{"status"}, units[0].columns)
	assert.Equal(t, nothingEmpty, row["status"])

	v, err := units[0].fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "installed", v)
}

func TestNormalizeDeferredInitial(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "status")
	_, row, err := n.normalize(map[string]any{
		"name": "foo",
		"status": Deferred{
			Initial: "pending",
			Fetch:   func(context.Context) (any, error) { return "done", nil },
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", row["status"])
}

func TestNormalizeDeferredShorthands(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "a", "b")
	ch := make(chan any)
	close(ch)
	units, _, err := n.normalize(map[string]any{
		"name": "foo",
		"a":    func() (any, error) { return "x", nil },
		"b":    (<-chan any)(ch),
	})
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func TestNormalizeDeferredNeedsOneProducer(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "status")
	_, _, err := n.normalize(map[string]any{
		"name":   "foo",
		"status": Deferred{},
	})
	assert.Error(t, err)
}

func TestNormalizeGroupProducer(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "status", "size")
	units, row, err := n.normalize(map[string]any{
		"name": "foo",
		"status": Deferred{
			Columns: []string{"status", "size"},
			Fetch: func(context.Context) (any, error) {
				return map[string]any{"status": "ok", "size": 3}, nil
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.ElementsMatch(t, []string{"status", "size"}, units[0].columns)
	assert.Equal(t, nothingEmpty, row["status"])
	assert.Equal(t, nothingEmpty, row["size"])
}

func TestNormalizeGroupProducerForeignKey(t *testing.T) {
	t.Parallel()
	n := plainNormalizer("name", "status", "size")
	// The producer was supplied under a key it does not feed.
	units, row, err := n.normalize(map[string]any{
		"name": "foo",
		"status": Deferred{
			Columns: []string{"size"},
			Fetch:   func(context.Context) (any, error) { return 3, nil },
		},
	})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, []string{"size"}, units[0].columns)
	assert.Equal(t, nothingEmpty, row["size"])
	// The carrying column falls back to its missing value.
	assert.Equal(t, nothingEmpty, row["status"])
}

func TestNormalizeDelayedColumn(t *testing.T) {
	t.Parallel()
	n := newRowNormalizer([]string{"name", "status"}, map[string]*ColumnStyle{
		"name":   {},
		"status": {Delayed: true},
	})
	units, row, err := n.normalize(map[string]any{"name": "foo", "status": "ok"})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, []string{"status"}, units[0].columns)
	assert.Equal(t, nothingEmpty, row["status"])

	// The getter runs inside the unit, off the caller's path.
	v, err := units[0].fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "ok"}, v)
}

func TestNormalizeDelayGroup(t *testing.T) {
	t.Parallel()
	n := newRowNormalizer([]string{"name", "a", "b"}, map[string]*ColumnStyle{
		"name": {},
		"a":    {DelayGroup: "g"},
		"b":    {DelayGroup: "g"},
	})
	units, _, err := n.normalize(map[string]any{"name": "foo", "a": 1, "b": 2})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, units[0].columns)
}

func TestAsMapRecord(t *testing.T) {
	t.Parallel()
	m, ok := asMapRecord(map[string]string{"a": "1"})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": "1"}, m)

	m, ok = asMapRecord(map[string]int{"a": 1})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1}, m)

	_, ok = asMapRecord([]any{"a"})
	assert.False(t, ok)
	_, ok = asMapRecord(map[int]string{1: "a"})
	assert.False(t, ok)
}

func TestIsSeqRecord(t *testing.T) {
	t.Parallel()
	assert.True(t, isSeqRecord([]any{"a"}))
	assert.True(t, isSeqRecord([2]int{1, 2}))
	assert.False(t, isSeqRecord("abc"))
	assert.False(t, isSeqRecord([]byte("abc")))
	assert.False(t, isSeqRecord(42))
}
