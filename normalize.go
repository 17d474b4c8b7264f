package pyout

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"sort"
	"strings"
)

// rowNormalizer converts the record shapes accepted by Write into a
// canonical map from column name to value. A record can be
//
//   - a map from column names to values,
//   - a slice of values in declared column order, or
//   - any other value, read through its exported struct fields.
//
// The extraction strategy is chosen from the first record and kept for the
// table's lifetime. Missing values become the column's missing sentinel,
// and deferred producers are stripped out and returned separately.
type rowNormalizer struct {
	columns []string
	method  func(row any) ([]deferredUnit, map[string]any, error)

	delayed        map[string][]string // group name -> columns
	delayedColumns map[string]bool
	nothings       map[string]nothing
}

func newRowNormalizer(columns []string, style map[string]*ColumnStyle) *rowNormalizer {
	n := &rowNormalizer{
		columns:        columns,
		delayed:        make(map[string][]string),
		delayedColumns: make(map[string]bool),
		nothings:       make(map[string]nothing, len(columns)),
	}
	for _, column := range columns {
		cs := style[column]
		if cs == nil {
			cs = &ColumnStyle{}
		}
		if cs.Delayed || cs.DelayGroup != "" {
			group := cs.DelayGroup
			if group == "" {
				group = column
			}
			lgr.Debugf("registered delay group %q for column %q", group, column)
			n.delayed[group] = append(n.delayed[group], column)
			n.delayedColumns[column] = true
		}
		if cs.Missing != nil {
			n.nothings[column] = nothing{text: *cs.Missing}
		} else {
			n.nothings[column] = nothingEmpty
		}
	}
	return n
}

func (n *rowNormalizer) missingFor(column string) nothing {
	if v, ok := n.nothings[column]; ok {
		return v
	}
	return nothingEmpty
}

// normalize converts row and strips its deferred units.
func (n *rowNormalizer) normalize(row any) ([]deferredUnit, map[string]any, error) {
	if n.method == nil {
		n.method = n.chooseMethod(row)
	}
	return n.method(row)
}

type getterFunc func(row any, column string) (any, error)

func (n *rowNormalizer) chooseMethod(row any) func(any) ([]deferredUnit, map[string]any, error) {
	var getter getterFunc
	switch {
	case isMapRecord(row):
		getter = n.getMap
	case isSeqRecord(row):
		getter = n.getSeq
	default:
		getter = n.getAttr
	}
	return func(r any) ([]deferredUnit, map[string]any, error) {
		return n.run(getter, r)
	}
}

func (n *rowNormalizer) run(getter getterFunc, row any) ([]deferredUnit, map[string]any, error) {
	columns := n.columns
	var units []deferredUnit

	if m, ok := asMapRecord(row); ok {
		// Unknown keys stay in the normalized row so that downstream code
		// can expand the column set.
		var fresh []string
		known := make(map[string]bool, len(columns))
		for _, c := range columns {
			known[c] = true
		}
		for c := range m {
			if !known[c] {
				fresh = append(fresh, c)
			}
		}
		if fresh != nil {
			sort.Strings(fresh)
			columns = append(append([]string(nil), columns...), fresh...)
		}
		stripped, err := n.stripDeferred(m)
		if err != nil {
			return nil, nil, err
		}
		units = stripped
		row = m
	}

	norm := make(map[string]any, len(columns))
	for _, column := range columns {
		if n.delayedColumns[column] {
			continue
		}
		v, err := getter(row, column)
		if err != nil {
			return nil, nil, err
		}
		norm[column] = v
	}

	// Delayed columns skip extraction on the caller's path: the getter runs
	// inside the unit itself, on a pooled worker.
	for _, cols := range n.delayed {
		cols := cols
		rowRef := row
		units = append(units, deferredUnit{
			columns: cols,
			fetch: func(context.Context) (any, error) {
				out := make(map[string]any, len(cols))
				for _, c := range cols {
					v, err := getter(rowRef, c)
					if err != nil {
						return nil, err
					}
					out[c] = v
				}
				return out, nil
			},
		})
		for _, c := range cols {
			norm[c] = n.missingFor(c)
		}
	}

	// A second strip: delayed extraction may have been handed values that
	// are themselves deferred.
	more, err := n.stripDeferred(norm)
	if err != nil {
		return nil, nil, err
	}
	return append(units, more...), norm, nil
}

// stripDeferred replaces producer values in m with their placeholders and
// returns the extracted units.
func (n *rowNormalizer) stripDeferred(m map[string]any) ([]deferredUnit, error) {
	var units []deferredUnit
	for column, value := range m {
		var d Deferred
		switch v := value.(type) {
		case Deferred:
			d = v
		case func(ctx context.Context) (any, error):
			d = Deferred{Fetch: v}
		case func() (any, error):
			fn := v
			d = Deferred{Fetch: func(context.Context) (any, error) { return fn() }}
		case iter.Seq[any]:
			d = Deferred{Seq: v}
		case <-chan any:
			d = Deferred{Seq: chanToSeq(v)}
		case chan any:
			d = Deferred{Seq: chanToSeq(v)}
		default:
			continue
		}
		if (d.Fetch == nil) == (d.Seq == nil) {
			return nil, fmt.Errorf("deferred value for column %q must set exactly one of Fetch and Seq", column)
		}

		cols := d.Columns
		if len(cols) == 0 {
			cols = []string{column}
		}
		grouped := false
		for _, c := range cols {
			if c == column {
				grouped = true
			}
		}
		if !grouped {
			delete(m, column)
		}
		for _, c := range cols {
			if d.Initial == nil {
				m[c] = n.missingFor(c)
			} else {
				m[c] = d.Initial
			}
		}
		units = append(units, deferredUnit{columns: cols, fetch: d.Fetch, seq: d.Seq})
	}
	return units, nil
}

// Record shape helpers.

func isMapRecord(row any) bool {
	_, ok := asMapRecord(row)
	return ok
}

func asMapRecord(row any) (map[string]any, bool) {
	switch m := row.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	default:
		rv := reflect.ValueOf(row)
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			for _, k := range rv.MapKeys() {
				out[k.String()] = rv.MapIndex(k).Interface()
			}
			return out, true
		}
		return nil, false
	}
}

func isSeqRecord(row any) bool {
	switch row.(type) {
	case string, []byte:
		return false
	}
	k := reflect.ValueOf(row).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func (n *rowNormalizer) getMap(row any, column string) (any, error) {
	m := row.(map[string]any)
	if v, ok := m[column]; ok {
		return v, nil
	}
	return n.missingFor(column), nil
}

func (n *rowNormalizer) getSeq(row any, column string) (any, error) {
	idx := -1
	for i, c := range n.columns {
		if c == column {
			idx = i
			break
		}
	}
	rv := reflect.ValueOf(row)
	if idx < 0 || idx >= rv.Len() {
		return nil, fmt.Errorf("record has %d values; no value for column %q", rv.Len(), column)
	}
	return rv.Index(idx).Interface(), nil
}

func (n *rowNormalizer) getAttr(row any, column string) (any, error) {
	rv := reflect.ValueOf(row)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return n.missingFor(column), nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot read column %q from record of type %T", column, row)
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == column || strings.EqualFold(f.Name, column) {
			return rv.Field(i).Interface(), nil
		}
	}
	return n.missingFor(column), nil
}
