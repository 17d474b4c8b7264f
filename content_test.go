package pyout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildContent(t *testing.T, style *Style, columns, ids []string) *content {
	t.Helper()
	c := newContent(newStyleFields(style, plainProcessors{}))
	require.NoError(t, c.initColumns(columns, ids, 0))
	return c
}

func TestContentFirstWriteEmitsHeader(t *testing.T) {
	t.Parallel()
	c := buildContent(t, &Style{Header: &HeaderStyle{}},
		[]string{"name", "status"}, []string{"name"})

	text, status, summary, err := c.update(
		map[string]any{"name": "foo", "status": "unknown"}, nil)
	require.NoError(t, err)
	assert.Equal(t, statusAppend, status.kind)
	assert.Empty(t, summary)
	assert.Equal(t, "name status \nfoo  unknown\n", text)
	assert.Equal(t, 2, c.lineCount())
}

func TestContentAppendsUnseenIdentity(t *testing.T) {
	t.Parallel()
	c := buildContent(t, &Style{}, []string{"name", "status"}, []string{"name"})

	_, _, _, err := c.update(map[string]any{"name": "foo", "status": "unknown"}, nil)
	require.NoError(t, err)

	text, status, _, err := c.update(map[string]any{"name": "bar", "status": "ok"}, nil)
	require.NoError(t, err)
	assert.Equal(t, statusAppend, status.kind)
	assert.Equal(t, "bar ok     \n", text)
	assert.Equal(t, 2, c.lineCount())
}

func TestContentOverwritesSeenIdentity(t *testing.T) {
	t.Parallel()
	c := buildContent(t, &Style{}, []string{"name", "status"}, []string{"name"})

	_, _, _, err := c.update(map[string]any{"name": "foo", "status": "installing"}, nil)
	require.NoError(t, err)
	_, _, _, err = c.update(map[string]any{"name": "bar", "status": "installing"}, nil)
	require.NoError(t, err)

	// Same identity, and the new value fits the granted width.
	text, status, _, err := c.update(map[string]any{"name": "foo", "status": "done"}, nil)
	require.NoError(t, err)
	assert.Equal(t, statusLine, status.kind)
	assert.Equal(t, 0, status.line)
	assert.Equal(t, "foo done      \n", text)
	assert.Equal(t, 2, c.lineCount())
}

func TestContentLinePositionCountsHeader(t *testing.T) {
	t.Parallel()
	c := buildContent(t, &Style{Header: &HeaderStyle{}},
		[]string{"name", "status"}, []string{"name"})

	_, _, _, err := c.update(map[string]any{"name": "foo", "status": "running"}, nil)
	require.NoError(t, err)
	_, _, _, err = c.update(map[string]any{"name": "bar", "status": "running"}, nil)
	require.NoError(t, err)

	_, status, _, err := c.update(map[string]any{"name": "bar", "status": "done"}, nil)
	require.NoError(t, err)
	assert.Equal(t, statusLine, status.kind)
	assert.Equal(t, 2, status.line)
}

func TestContentRepaintsOnWidthGrowth(t *testing.T) {
	t.Parallel()
	c := buildContent(t, &Style{}, []string{"name", "status"}, []string{"name"})

	_, _, _, err := c.update(map[string]any{"name": "foo", "status": "unknown"}, nil)
	require.NoError(t, err)

	text, status, _, err := c.update(
		map[string]any{"name": "bar", "status": "installed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, statusRepaint, status.kind)
	assert.Equal(t, "foo unknown  \nbar installed\n", text)
}

func TestContentMergeKeepsOldFields(t *testing.T) {
	t.Parallel()
	c := buildContent(t, &Style{}, []string{"name", "status", "path"}, []string{"name"})

	_, _, _, err := c.update(
		map[string]any{"name": "foo", "status": "ok", "path": "/tmp/foo"}, nil)
	require.NoError(t, err)

	// A partial update leaves the other columns as they were.
	_, _, _, err = c.update(
		map[string]any{"name": "foo", "status": "done", "path": nothingEmpty}, nil)
	require.NoError(t, err)

	row, ok := c.row(mustKey(t, map[string]any{"name": "foo"}, []string{"name"}))
	require.True(t, ok)
	assert.Equal(t, "done", row["status"])
	assert.Equal(t, "/tmp/foo", row["path"])
}

func TestContentRowIdentityMustBeComparable(t *testing.T) {
	t.Parallel()
	c := buildContent(t, &Style{}, []string{"name"}, []string{"name"})
	_, _, _, err := c.update(map[string]any{"name": []string{"foo"}}, nil)
	assert.ErrorIs(t, err, ErrRowIdentity)
}

func TestContentSummary(t *testing.T) {
	t.Parallel()
	style := &Style{Columns: map[string]*ColumnStyle{
		"size": {Aggregate: func(vals []any) any {
			total := 0
			for _, v := range vals {
				total += v.(int)
			}
			return total
		}},
	}}
	c := buildContent(t, style, []string{"name", "size"}, []string{"name"})

	_, _, summary, err := c.update(map[string]any{"name": "foo", "size": 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, "    3\n", summary)

	_, _, summary, err = c.update(map[string]any{"name": "barbar", "size": 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, "       7\n", summary)
}

func TestContentSummaryMultiLine(t *testing.T) {
	t.Parallel()
	style := &Style{Columns: map[string]*ColumnStyle{
		"size": {Aggregate: func(vals []any) any {
			return []any{len(vals), "rows"}
		}},
	}}
	c := buildContent(t, style, []string{"name", "size"}, []string{"name"})

	// The second summary line widens the column mid-render, so the first
	// line is re-rendered against the settled width.
	_, status, summary, err := c.update(map[string]any{"name": "foo", "size": 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, statusRepaint, status.kind)
	assert.Equal(t, "    1   \n    rows\n", summary)
}

func TestContentColumnExpansionBackfills(t *testing.T) {
	t.Parallel()
	missing := "-"
	style := &Style{Default: &ColumnStyle{Missing: &missing}}
	c := buildContent(t, style, []string{"name"}, []string{"name"})

	_, _, _, err := c.update(map[string]any{"name": "foo"}, nil)
	require.NoError(t, err)

	require.NoError(t, c.initColumns([]string{"name", "status"}, []string{"name"}, 0))
	row, ok := c.row(mustKey(t, map[string]any{"name": "foo"}, []string{"name"}))
	require.True(t, ok)
	assert.Equal(t, nothing{text: "-"}, row["status"])
}

func TestContentIDKeyAt(t *testing.T) {
	t.Parallel()
	c := buildContent(t, &Style{Header: &HeaderStyle{}},
		[]string{"name"}, []string{"name"})
	_, _, _, err := c.update(map[string]any{"name": "foo"}, nil)
	require.NoError(t, err)

	_, ok := c.idKeyAt(0) // header line
	assert.False(t, ok)
	key, ok := c.idKeyAt(1)
	require.True(t, ok)
	assert.Equal(t, mustKey(t, map[string]any{"name": "foo"}, []string{"name"}), key)
}

func TestIDKeyDistinguishesTypes(t *testing.T) {
	t.Parallel()
	k1, err := idKeyOf(map[string]any{"id": 1}, []string{"id"})
	require.NoError(t, err)
	k2, err := idKeyOf(map[string]any{"id": "1"}, []string{"id"})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func mustKey(t *testing.T, row map[string]any, ids []string) string {
	t.Helper()
	key, err := idKeyOf(row, ids)
	require.NoError(t, err)
	return key
}
