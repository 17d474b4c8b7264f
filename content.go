package pyout

import (
	"fmt"
	"strings"
)

// statusKind classifies what an update did to the rendered content.
type statusKind int

const (
	// statusAppend: the update added one line; the returned text is that
	// line (or header plus first row).
	statusAppend statusKind = iota
	// statusLine: the update changed one existing line in place; the
	// returned text is that line and the status carries its position.
	statusLine
	// statusRepaint: field widths changed, every stored line is stale, and
	// the returned text is the whole table.
	statusRepaint
)

type updateStatus struct {
	kind statusKind
	line int // valid for statusLine
}

type contentRow struct {
	row   map[string]any
	style *Style
}

// idKeyOf derives the identity key for a row from its id column values.
// Values must be comparable; anything else is a data error.
func idKeyOf(row map[string]any, ids []string) (string, error) {
	vals := make([]any, len(ids))
	for i, column := range ids {
		vals[i] = row[column]
	}
	key, err := idKeyOfValues(vals)
	if err != nil {
		return "", fmt.Errorf("%w (ids %v)", err, ids)
	}
	return key, nil
}

func idKeyOfValues(vals []any) (string, error) {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if !comparableValue(v) {
			return "", fmt.Errorf("%w: got %T", ErrRowIdentity, v)
		}
		parts[i] = fmt.Sprintf("%T\x00%v", v, v)
	}
	return strings.Join(parts, "\x1f"), nil
}

// content is the ordered set of emitted rows plus the identity index and
// the optional header and summary. A row's position never changes after
// first insertion; only a repaint re-derives all lines.
type content struct {
	fields     *styleFields
	summarizer *summarizer

	columns []string
	ids     []string

	header   *renderSpec
	rows     []*contentRow
	keyToIdx map[string]int
	idxToKey map[int]string
}

func newContent(fields *styleFields) *content {
	return &content{
		fields:   fields,
		keyToIdx: make(map[string]int),
		idxToKey: make(map[int]string),
	}
}

// initColumns (re)builds the fields for columns. When rows already exist
// this is a column-set expansion: stored rows are backfilled with missing
// values for the new columns.
func (c *content) initColumns(columns, ids []string, tableWidth int) error {
	if err := c.fields.build(columns, tableWidth); err != nil {
		return err
	}
	c.columns = columns
	c.ids = ids
	c.summarizer = newSummarizer(c.fields.style, c.fields.summaryStyle)

	if len(c.rows) > 0 {
		for _, cr := range c.rows {
			for _, column := range columns {
				if _, ok := cr.row[column]; !ok {
					cs := c.fields.style[column]
					if cs != nil && cs.Missing != nil {
						cr.row[column] = nothing{text: *cs.Missing}
					} else {
						cr.row[column] = nothingEmpty
					}
				}
			}
		}
		if c.fields.hasHeader {
			c.addHeader()
		}
	}
	return nil
}

func (c *content) addHeader() {
	row := make(map[string]any, len(c.columns))
	for _, column := range c.columns {
		row[column] = column
	}
	c.header = &renderSpec{
		row:   row,
		style: c.fields.headerStyle,
	}
}

func (c *content) empty() bool { return len(c.rows) == 0 }

func (c *content) lineCount() int {
	n := len(c.rows)
	if c.header != nil {
		n++
	}
	return n
}

// row returns the stored row for an identity key.
func (c *content) row(key string) (map[string]any, bool) {
	idx, ok := c.keyToIdx[key]
	if !ok {
		return nil, false
	}
	return c.rows[idx].row, true
}

// idKeyAt maps a line index (header included) back to an identity key.
// The header line has no key.
func (c *content) idKeyAt(idx int) (string, bool) {
	if c.header != nil {
		idx--
		if idx == -1 {
			return "", false
		}
	}
	key, ok := c.idxToKey[idx]
	return key, ok
}

func (c *content) specs() []renderSpec {
	specs := make([]renderSpec, 0, c.lineCount())
	if c.header != nil {
		specs = append(specs, *c.header)
	}
	for _, cr := range c.rows {
		specs = append(specs, renderSpec{
			row: cr.row, style: cr.style, adopt: true, canUnhide: true,
		})
	}
	return specs
}

// renderSpecs renders a set of rows in order, reporting whether any width
// was adjusted along the way.
func (c *content) renderSpecs(specs []renderSpec) (string, bool, error) {
	var b strings.Builder
	adjusted := false
	for _, spec := range specs {
		line, adj, err := c.fields.render(spec.row, spec.style, spec.adopt, spec.canUnhide)
		if err != nil {
			return "", false, err
		}
		b.WriteString(line)
		// Keep going either way so all adjustments settle before a redo.
		adjusted = adjusted || adj
	}
	return b.String(), adjusted, nil
}

// renderAll renders the full content. A width adjustment during the pass
// makes earlier lines stale, so the pass is redone once; the second pass
// runs against the already-settled widths.
func (c *content) renderAll() (string, error) {
	text, adjusted, err := c.renderSpecs(c.specs())
	if err != nil {
		return "", err
	}
	if adjusted {
		lgr.Debug("widths changed mid-render; redoing full render")
		text, _, err = c.renderSpecs(c.specs())
		if err != nil {
			return "", err
		}
	}
	return text, nil
}

// update merges row into the content under its identity key and decides
// how the change reaches the screen. The returned text depends on the
// status: just the new or changed line for append/line updates, the whole
// table for repaints. The summary text is empty unless summaries are
// configured.
func (c *content) update(row map[string]any, style *Style) (string, updateStatus, string, error) {
	text, status, err := c.updateRows(row, style)
	if err != nil {
		return "", status, "", err
	}
	if c.summarizer == nil || !c.summarizer.enabled {
		return text, status, "", nil
	}

	stored := make([]map[string]any, len(c.rows))
	for i, cr := range c.rows {
		stored[i] = cr.row
	}
	specs, err := c.summarizer.summarize(c.fields.visibleColumns(), stored)
	if err != nil {
		return "", status, "", err
	}
	summary, adjusted, err := c.renderSpecs(specs)
	if err != nil {
		return "", status, "", err
	}
	if adjusted {
		// The summary forced a width change, so the main content is stale
		// too. The retry renders against the adjusted widths.
		lgr.Debug("summary render adjusted widths; escalating to repaint")
		text, err = c.renderAll()
		if err != nil {
			return "", status, "", err
		}
		summary, _, err = c.renderSpecs(specs)
		if err != nil {
			return "", status, "", err
		}
		return text, updateStatus{kind: statusRepaint}, summary, nil
	}
	return text, status, summary, nil
}

func (c *content) updateRows(row map[string]any, style *Style) (string, updateStatus, error) {
	calledBefore := !c.empty()
	key, err := idKeyOf(row, c.ids)
	if err != nil {
		return "", updateStatus{}, err
	}

	if !calledBefore && c.fields.hasHeader {
		lgr.Debug("registering header")
		c.addHeader()
		c.rows = append(c.rows, &contentRow{row: row, style: style})
		c.keyToIdx[key] = 0
		c.idxToKey[0] = key
		text, err := c.renderAll()
		return text, updateStatus{kind: statusAppend}, err
	}

	prevIdx, seen := c.keyToIdx[key]
	if seen {
		lgr.Debugf("updating stored row %q", key)
		stored := c.rows[prevIdx]
		for column, v := range row {
			if !isNothing(v) {
				stored.row[column] = v
			}
		}
		stored.style = style
		// Render the merged row: the incoming one may be partial.
		row = stored.row
	} else {
		lgr.Debugf("appending row %q", key)
		idx := len(c.rows)
		c.keyToIdx[key] = idx
		c.idxToKey[idx] = key
		c.rows = append(c.rows, &contentRow{row: row, style: style})
	}

	line, adjusted, err := c.fields.render(row, style, true, true)
	if err != nil {
		return "", updateStatus{}, err
	}
	if calledBefore && adjusted {
		text, err := c.renderAll()
		return text, updateStatus{kind: statusRepaint}, err
	}
	if !adjusted && seen {
		pos := prevIdx
		if c.header != nil {
			pos++
		}
		return line, updateStatus{kind: statusLine, line: pos}, nil
	}
	return line, updateStatus{kind: statusAppend}, nil
}
