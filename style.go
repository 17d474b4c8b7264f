package pyout

// Alignment controls text alignment within a field.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// String returns the alignment name as used in style declarations.
func (a Alignment) String() string {
	switch a {
	case AlignRight:
		return "right"
	case AlignCenter:
		return "center"
	default:
		return "left"
	}
}

// TruncateSide controls where a value is cut when it exceeds its field width.
type TruncateSide int

const (
	TruncateRight TruncateSide = iota
	TruncateLeft
	TruncateCenter
)

// Hide controls column visibility.
type Hide int

const (
	// HideNever shows the column unconditionally.
	HideNever Hide = iota
	// HideAlways hides the column unconditionally.
	HideAlways
	// HideIfMissing hides the column until the first non-missing value is
	// seen for it.
	HideIfMissing
)

// Dim is a width dimension. A value of 1 or greater is a number of display
// cells; a value strictly between 0 and 1 is a fraction of the total table
// width. Zero means unset.
type Dim = float64

// Width configures a column's width policy. The zero value (and a nil
// *Width on a ColumnStyle) means auto width: the column grows to fit
// observed content, subject to the remaining table width.
//
// Setting Fixed forces every field in the column to that width and is
// incompatible with Min and Max, which only make sense for auto width.
type Width struct {
	// Fixed forces the column width. Unset (zero) selects auto width.
	Fixed Dim
	// Min and Max bound an auto width.
	Min, Max Dim
	// Weight is the number of characters the column claims per round of
	// width negotiation. Zero means 1.
	Weight int
	// Marker indicates truncation. Nil selects the default "...". Point at
	// an empty string to truncate without a marker.
	Marker *string
	// Truncate selects which side of the value is cut.
	Truncate TruncateSide
}

// RegexpCase maps values matching Pattern to a style outcome. Patterns use
// Go regexp syntax and are tried in order with the first match winning;
// inline flags such as (?i) control matching behavior.
type RegexpCase[T any] struct {
	Pattern string
	Value   T
}

// IntervalCase maps numeric values in [Min, Max) to a style outcome. A nil
// bound leaves that end of the interval open.
type IntervalCase[T any] struct {
	Min, Max *float64
	Value    T
}

// Rule is a conditional style attribute. Exactly one branch must be set:
//
//   - Value: a constant.
//   - Lookup: match the field value by equality.
//   - Regexp: match string field values against patterns in order.
//   - Interval: match numeric field values against half-open intervals.
//
// For Rule[bool] the matched outcome decides whether the attribute (bold,
// underline) applies. For Rule[string] the outcome names the attribute,
// e.g. a color.
type Rule[T any] struct {
	Value    *T
	Lookup   map[any]T
	Regexp   []RegexpCase[T]
	Interval []IntervalCase[T]
}

// Const returns a constant rule.
func Const[T any](v T) *Rule[T] {
	return &Rule[T]{Value: &v}
}

// Lookup returns an equality-lookup rule.
func Lookup[T any](m map[any]T) *Rule[T] {
	return &Rule[T]{Lookup: m}
}

// Transform converts a raw field value before formatting. It must be free
// of side effects: it may run more than once per value, including during
// width measurement.
type Transform func(value any) (any, error)

// Aggregate reduces all of a column's raw values to a summary value. It
// may return a []any to produce multiple summary lines.
type Aggregate func(values []any) any

// ColumnStyle configures rendering of one column. The zero value is a
// left-aligned auto-width column with no conditional styling.
type ColumnStyle struct {
	Align     Alignment
	Width     *Width
	Bold      *Rule[bool]
	Underline *Rule[bool]
	Color     *Rule[string]
	// Missing is the text shown for values that were never supplied.
	Missing *string
	Hide    Hide
	// Transform converts raw values before formatting. It is never invoked
	// for missing values.
	Transform Transform
	// Aggregate enables summary rows for the table.
	Aggregate Aggregate
	// Delayed moves value extraction for this column off the caller's path:
	// the value is fetched asynchronously, in its own unit of work.
	Delayed bool
	// DelayGroup names a shared unit of work; all columns with the same
	// group are extracted together by one worker.
	DelayGroup string
}

// HeaderStyle configures the header or summary rows. Alignment and width
// are always inherited from the data columns.
type HeaderStyle struct {
	Bold      *Rule[bool]
	Underline *Rule[bool]
	Color     *Rule[string]
}

// Style configures a whole table.
type Style struct {
	// Columns maps column names to their styles.
	Columns map[string]*ColumnStyle
	// Default is merged into every column's style.
	Default *ColumnStyle
	// Header enables a header row. Nil means no header.
	Header *HeaderStyle
	// Summary styles the summary rows produced by Aggregate reducers.
	Summary *HeaderStyle
	// Separator is placed between fields. Nil selects a single space.
	Separator *string
	// Width fixes the total table width. Zero derives it from the stream
	// for interactive output and leaves it unbounded otherwise.
	Width int
}

const defaultSeparator = " "

func (s *Style) separator() string {
	if s == nil || s.Separator == nil {
		return defaultSeparator
	}
	return *s.Separator
}

func (s *Style) column(name string) *ColumnStyle {
	if s == nil {
		return nil
	}
	return s.Columns[name]
}

// merge overlays o on top of c, returning a new style. Fields set in o win.
func (c *ColumnStyle) merge(o *ColumnStyle) *ColumnStyle {
	if c == nil {
		c = &ColumnStyle{}
	}
	out := *c
	if o == nil {
		return &out
	}
	if o.Align != AlignLeft {
		out.Align = o.Align
	}
	if o.Width != nil {
		out.Width = o.Width
	}
	if o.Bold != nil {
		out.Bold = o.Bold
	}
	if o.Underline != nil {
		out.Underline = o.Underline
	}
	if o.Color != nil {
		out.Color = o.Color
	}
	if o.Missing != nil {
		out.Missing = o.Missing
	}
	if o.Hide != HideNever {
		out.Hide = o.Hide
	}
	if o.Transform != nil {
		out.Transform = o.Transform
	}
	if o.Aggregate != nil {
		out.Aggregate = o.Aggregate
	}
	if o.Delayed {
		out.Delayed = true
	}
	if o.DelayGroup != "" {
		out.DelayGroup = o.DelayGroup
	}
	return &out
}

// adopt overlays the per-column entries of o on top of s. Table-level
// attributes (separator, width, header) of o win when set. Neither input
// is modified.
func (s *Style) adopt(o *Style) *Style {
	if s == nil {
		s = &Style{}
	}
	out := *s
	if o == nil {
		return &out
	}
	out.Columns = make(map[string]*ColumnStyle, len(s.Columns)+len(o.Columns))
	for name, cs := range s.Columns {
		out.Columns[name] = cs
	}
	for name, cs := range o.Columns {
		out.Columns[name] = out.Columns[name].merge(cs)
	}
	if o.Default != nil {
		out.Default = out.Default.merge(o.Default)
	}
	if o.Header != nil {
		out.Header = o.Header
	}
	if o.Summary != nil {
		out.Summary = o.Summary
	}
	if o.Separator != nil {
		out.Separator = o.Separator
	}
	if o.Width != 0 {
		out.Width = o.Width
	}
	return &out
}

// headerColumnStyle builds the effective style for a header or summary
// field: alignment and width come from the column, text attributes from h.
func headerColumnStyle(cs *ColumnStyle, h *HeaderStyle) *ColumnStyle {
	out := &ColumnStyle{Align: cs.Align, Width: cs.Width}
	if h != nil {
		out.Bold = h.Bold
		out.Underline = h.Underline
		out.Color = h.Color
	}
	return out
}
