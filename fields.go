package pyout

import (
	"fmt"
	"sort"
	"strings"
)

// unknownColumnsError signals that a row carries columns the table has not
// seen. The writer reacts by expanding the column set and rebuilding.
type unknownColumnsError struct {
	columns []string
}

func (e *unknownColumnsError) Error() string {
	return fmt.Sprintf("unknown columns: %v", e.columns)
}

// autoWidth is the negotiation bookkeeping for one auto-width column.
type autoWidth struct {
	min, max int // 0 max means unbounded
	weight   int
	wants    int
}

// styleFields owns the per-column fields and the width negotiation. It
// turns a style declaration plus a column list into render-ready fields
// and re-renders rows as widths evolve.
type styleFields struct {
	initStyle *Style
	procgen   processorGenerator

	columns []string
	known   map[string]bool
	style   map[string]*ColumnStyle // effective, defaults merged in
	fields  map[string]*field

	autowidth  map[string]*autoWidth
	truncaters map[string]*truncater
	hidden     map[string]Hide
	visible    []string // cached; nil means stale

	separator      string
	tableWidth     int // 0 means unbounded
	widthFixed     int
	widthSeparator int

	hasHeader    bool
	headerStyle  *Style
	summaryStyle *Style
}

func newStyleFields(style *Style, procgen processorGenerator) *styleFields {
	return &styleFields{initStyle: style, procgen: procgen}
}

// build derives the effective style and fields for columns. A non-zero
// tableWidth replaces the width recorded by a previous build, which is how
// terminal resizes and column expansion re-enter.
func (sf *styleFields) build(columns []string, tableWidth int) error {
	if err := sf.initStyle.Validate(); err != nil {
		return err
	}
	sf.columns = columns
	sf.known = make(map[string]bool, len(columns))
	for _, c := range columns {
		sf.known[c] = true
	}

	if tableWidth != 0 {
		sf.tableWidth = tableWidth
	} else if sf.tableWidth == 0 && sf.initStyle != nil {
		sf.tableWidth = sf.initStyle.Width
	}
	sf.separator = sf.initStyle.separator()
	sf.hasHeader = sf.initStyle != nil && sf.initStyle.Header != nil

	sf.style = make(map[string]*ColumnStyle, len(columns))
	var def *ColumnStyle
	if sf.initStyle != nil {
		def = sf.initStyle.Default
	}
	for _, c := range columns {
		sf.style[c] = def.merge(sf.initStyle.column(c))
	}

	if err := sf.setupFields(); err != nil {
		return err
	}

	sf.hidden = make(map[string]Hide, len(columns))
	for _, c := range columns {
		sf.hidden[c] = sf.style[c].Hide
	}
	sf.headerStyle = sf.composeAuxStyle(headerStyleOf(sf.initStyle))
	sf.summaryStyle = sf.composeAuxStyle(summaryStyleOf(sf.initStyle))
	return sf.resetWidthInfo()
}

func headerStyleOf(s *Style) *HeaderStyle {
	if s == nil {
		return nil
	}
	return s.Header
}

func summaryStyleOf(s *Style) *HeaderStyle {
	if s == nil {
		return nil
	}
	return s.Summary
}

// composeAuxStyle builds the standalone style used for header and summary
// rows: column alignment and width carried over, text attributes from h.
func (sf *styleFields) composeAuxStyle(h *HeaderStyle) *Style {
	cols := make(map[string]*ColumnStyle, len(sf.columns))
	for _, c := range sf.columns {
		cols[c] = headerColumnStyle(sf.style[c], h)
	}
	return &Style{Columns: cols}
}

// fracToCells resolves a dimension against the table width. Fractions of
// an unbounded table resolve to zero.
func (sf *styleFields) fracToCells(d Dim) int {
	if fractional(d) {
		if sf.tableWidth == 0 {
			return 0
		}
		return int(d * float64(sf.tableWidth))
	}
	return int(d)
}

func (sf *styleFields) setupFields() error {
	sf.fields = make(map[string]*field, len(sf.columns))
	sf.truncaters = make(map[string]*truncater, len(sf.columns))
	sf.autowidth = make(map[string]*autoWidth)

	for _, column := range sf.columns {
		cs := sf.style[column]
		sw := cs.Width
		if sw == nil {
			sw = &Width{}
		}

		var width int
		if sw.Fixed == 0 {
			width = sf.fracToCells(sw.Min)
			weight := sw.Weight
			if weight == 0 {
				weight = 1
			}
			sf.autowidth[column] = &autoWidth{
				min:    width,
				max:    sf.fracToCells(sw.Max),
				weight: weight,
			}
			lgr.Debugf("column %q: auto width %+v", column, sf.autowidth[column])
		} else {
			width = sf.fracToCells(sw.Fixed)
			lgr.Debugf("column %q: fixed width %d", column, width)
		}

		f := newField(width, cs.Align,
			[]string{procWidth, procDefault}, []string{procOverride})
		f.add("pre", procDefault, sf.procgen.preFromStyle(cs)...)
		tr := newTruncater(width, sw.Marker, sw.Truncate)
		f.add("post", procWidth, tr.truncate)
		f.add("post", procDefault, sf.procgen.postFromStyle(cs)...)

		sf.fields[column] = f
		sf.truncaters[column] = tr
	}
	return nil
}

// visibleColumns is the ordered list of columns not currently hidden. The
// value is cached and reset whenever visibility changes.
func (sf *styleFields) visibleColumns() []string {
	if sf.visible == nil {
		for _, c := range sf.columns {
			if sf.hidden[c] == HideNever {
				sf.visible = append(sf.visible, c)
			}
		}
	}
	return sf.visible
}

func (sf *styleFields) resetWidthInfo() error {
	sf.visible = nil
	sf.setFixedWidths()
	return sf.checkWidths()
}

func (sf *styleFields) setFixedWidths() {
	visible := sf.visibleColumns()
	ngaps := len(visible) - 1
	if ngaps < 0 {
		ngaps = 0
	}
	sf.widthSeparator = displayWidth(sf.separator) * ngaps

	fixed := sf.widthSeparator
	for _, c := range visible {
		if _, auto := sf.autowidth[c]; !auto {
			fixed += sf.fields[c].width
		}
	}
	sf.widthFixed = fixed
}

func (sf *styleFields) checkWidths() error {
	if sf.tableWidth == 0 {
		return nil
	}
	visible := sf.visibleColumns()
	if len(visible) > sf.tableWidth {
		return fmt.Errorf("%w: %d visible columns, width %d",
			ErrTableTooNarrow, len(visible), sf.tableWidth)
	}
	nauto := 0
	for _, c := range visible {
		if _, ok := sf.autowidth[c]; ok {
			nauto++
		}
	}
	if avail := sf.tableWidth - sf.widthFixed; avail < nauto {
		return fmt.Errorf("%w: %d auto-width columns, %d cells available",
			ErrTableTooNarrow, nauto, avail)
	}
	return nil
}

// setWidths recomputes what each visible auto-width column wants for row
// and redistributes the available width. It reports whether any field
// width changed, which invalidates previously rendered lines.
func (sf *styleFields) setWidths(row map[string]any, group string) (bool, error) {
	if len(sf.autowidth) == 0 {
		return false, nil
	}
	unbounded := sf.tableWidth == 0
	available := 0
	if !unbounded {
		available = sf.tableWidth - sf.widthFixed
	}

	for _, column := range sf.columns {
		aw, ok := sf.autowidth[column]
		if !ok {
			continue
		}
		if sf.hidden[column] != HideNever {
			aw.wants = 0
			continue
		}
		f := sf.fields[column]
		var value string
		if len(f.pre[group]) > 0 {
			// Measure the transformed value, not the raw one, but without
			// styling codes.
			v, err := f.render(row[column], []string{group}, true)
			if err != nil {
				return false, err
			}
			value = v
		} else {
			value = fmtValue(row[column])
		}
		valueWidth := displayWidth(value)
		maxSeen := max(valueWidth, f.width)
		wants := max(maxSeen, aw.min)
		if aw.max > 0 && wants > aw.max {
			wants = aw.max
		}
		aw.wants = wants
	}

	assigned := assignWidths(sf.autowidth, available, unbounded)

	adjusted := false
	for column, width := range assigned {
		f := sf.fields[column]
		if width != f.width {
			lgr.Debugf("adjusting width of column %q from %d to %d",
				column, f.width, width)
			adjusted = true
			f.width = width
			sf.truncaters[column].length = width
		}
	}
	return adjusted, nil
}

// assignWidths distributes available cells among auto-width columns. Every
// wanting column claims one cell first; the rest is handed out one claim
// at a time in a deterministic order so that equal wants produce the same
// assignment on every render.
func assignWidths(columns map[string]*autoWidth, available int, unbounded bool) map[string]int {
	assigned := make(map[string]int, len(columns))
	if unbounded {
		for c, aw := range columns {
			if aw.wants > 0 {
				assigned[c] = aw.wants
			}
		}
		return assigned
	}

	for c, aw := range columns {
		if aw.wants > 0 {
			available--
			assigned[c] = 1
		}
	}

	names := make([]string, 0, len(assigned))
	for c := range assigned {
		names = append(names, c)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := columns[names[i]], columns[names[j]]
		if a.min != b.min {
			return a.min > b.min
		}
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		return names[i] > names[j]
	})

	inNeed := make(map[string]bool, len(assigned))
	for c := range assigned {
		inNeed[c] = true
	}
	for available > 0 && len(inNeed) > 0 {
		for _, column := range names {
			if !inNeed[column] {
				continue
			}
			aw := columns[column]
			wants := aw.wants - assigned[column]
			if wants < 1 {
				delete(inNeed, column)
				continue
			}
			claim := aw.weight
			if has := assigned[column]; has < aw.min {
				claim = aw.min - has
			}
			claim = min(claim, wants, available)
			available -= claim
			assigned[column] += claim
			if available == 0 {
				break
			}
		}
	}
	return assigned
}

// procGroup prepares the processor group for a render. A nil override uses
// the column defaults; otherwise the override processors are installed
// under the override key, optionally merged on top of the table style.
func (sf *styleFields) procGroup(override *Style, adoptStyle bool) (string, error) {
	if override == nil {
		return procDefault, nil
	}
	if err := override.Validate(); err != nil {
		return "", err
	}
	for _, column := range sf.columns {
		var cs *ColumnStyle
		if adoptStyle {
			cs = sf.style[column].merge(override.Default).merge(override.Columns[column])
		} else if cs = override.Columns[column]; cs == nil {
			cs = &ColumnStyle{}
		}
		f := sf.fields[column]
		f.add("pre", procOverride, sf.procgen.preFromStyle(cs)...)
		f.add("post", procOverride, sf.procgen.postFromStyle(cs)...)
	}
	return procOverride, nil
}

func (sf *styleFields) checkUnknownColumns(row map[string]any) error {
	var unknown []string
	for c := range row {
		if !sf.known[c] {
			unknown = append(unknown, c)
		}
	}
	if unknown != nil {
		sort.Strings(unknown)
		return &unknownColumnsError{columns: unknown}
	}
	return nil
}

// render produces one output line for a normalized row. The returned flag
// reports whether field widths were adjusted, which means previously
// rendered lines are stale.
func (sf *styleFields) render(row map[string]any, override *Style, adoptStyle, canUnhide bool) (string, bool, error) {
	if err := sf.checkUnknownColumns(row); err != nil {
		return "", false, err
	}

	if canUnhide {
		unhid := false
		for c, v := range row {
			if sf.hidden[c] == HideIfMissing && !isNothing(v) {
				lgr.Debugf("unhiding column %q after value %v", c, v)
				sf.hidden[c] = HideNever
				unhid = true
			}
		}
		if unhid {
			if err := sf.resetWidthInfo(); err != nil {
				return "", false, err
			}
		}
	}

	group, err := sf.procGroup(override, adoptStyle)
	if err != nil {
		return "", false, err
	}
	var keys []string
	if group == procOverride {
		keys = []string{procWidth, procOverride}
	}

	adjusted, err := sf.setWidths(row, group)
	if err != nil {
		return "", false, err
	}

	parts := make([]string, 0, len(sf.columns))
	for _, c := range sf.visibleColumns() {
		f := sf.fields[c]
		// Columns that could not claim any width are dropped entirely so
		// separators never flank empty cells.
		if f.width <= 0 {
			continue
		}
		rendered, err := f.render(row[c], keys, false)
		if err != nil {
			return "", false, err
		}
		parts = append(parts, rendered)
	}
	return strings.Join(parts, sf.separator) + "\n", adjusted, nil
}
