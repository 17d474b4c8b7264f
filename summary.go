package pyout

// renderSpec is a row plus the arguments its re-renders need.
type renderSpec struct {
	row       map[string]any
	style     *Style
	adopt     bool
	canUnhide bool
}

// summarizer produces summary rows from the stored data rows, one value
// per column that declares an Aggregate reducer.
type summarizer struct {
	style   map[string]*ColumnStyle
	rowSpec *Style
	enabled bool
}

func newSummarizer(style map[string]*ColumnStyle, rowStyle *Style) *summarizer {
	s := &summarizer{style: style, rowSpec: rowStyle}
	for _, cs := range style {
		if cs != nil && cs.Aggregate != nil {
			s.enabled = true
			break
		}
	}
	return s
}

// summarize reduces rows to summary renderSpecs. An aggregate may return a
// []any to span several summary lines; shorter columns leave their later
// lines empty.
func (s *summarizer) summarize(columns []string, rows []map[string]any) ([]renderSpec, error) {
	summaries := make(map[string]any)
	for _, column := range columns {
		cs := s.style[column]
		if cs == nil || cs.Aggregate == nil {
			continue
		}
		var vals []any
		for _, row := range rows {
			if v, ok := row[column]; ok && !isNothing(v) {
				vals = append(vals, v)
			}
		}
		lgr.Debugf("summarizing column %q over %d values", column, len(vals))
		v, err := runAggregate(cs.Aggregate, vals)
		if err != nil {
			return nil, err
		}
		summaries[column] = v
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	nlines := 1
	for _, v := range summaries {
		if list, ok := v.([]any); ok && len(list) > nlines {
			nlines = len(list)
		}
	}

	specs := make([]renderSpec, 0, nlines)
	for line := 0; line < nlines; line++ {
		row := make(map[string]any, len(columns))
		for column, v := range summaries {
			if list, ok := v.([]any); ok {
				if line < len(list) {
					row[column] = list[line]
				}
			} else if line == 0 {
				row[column] = v
			}
		}
		for _, column := range columns {
			if _, ok := row[column]; !ok {
				row[column] = ""
			}
		}
		specs = append(specs, renderSpec{row: row, style: s.rowSpec})
	}
	return specs, nil
}

func runAggregate(agg Aggregate, vals []any) (_ any, err error) {
	name := funcName(agg)
	defer func() {
		if r := recover(); r != nil {
			err = &StyleFunctionError{Fn: name, Err: panicError(r)}
		}
	}()
	return agg(vals), nil
}
