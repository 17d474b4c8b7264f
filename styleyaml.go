package pyout

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseStyle builds a [Style] from a declarative YAML document. Top-level
// keys name columns; the reserved keys default_, header_, summary_ (also
// spelled aggregate_), separator_, and width_ configure the table itself:
//
//	width_: 100
//	header_:
//	  underline: true
//	status:
//	  color:
//	    lookup: {ok: green, failed: red}
//	  width: {max: 11}
//	name:
//	  bold: true
//	  width: 0.5
//
// Transforms and aggregates are code, not data, and cannot appear in a
// YAML style. Unknown keys are rejected with a [StyleError]. The returned
// style is validated.
func ParseStyle(data []byte) (*Style, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &StyleError{Option: "document", Reason: err.Error()}
	}
	style := &Style{}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return style, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &StyleError{Option: "document", Reason: "style must be a mapping"}
	}

	for i := 0; i < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		var err error
		switch key {
		case "default_":
			style.Default, err = parseColumnNode(key, val)
		case "header_":
			style.Header, err = parseHeaderNode(key, val)
		case "summary_", "aggregate_":
			style.Summary, err = parseHeaderNode(key, val)
		case "separator_":
			var sep string
			if err = decodeScalar("", "separator_", val, &sep); err == nil {
				style.Separator = &sep
			}
		case "width_":
			err = decodeScalar("", "width_", val, &style.Width)
		default:
			var cs *ColumnStyle
			cs, err = parseColumnNode(key, val)
			if err == nil {
				if style.Columns == nil {
					style.Columns = make(map[string]*ColumnStyle)
				}
				style.Columns[key] = cs
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if err := style.Validate(); err != nil {
		return nil, err
	}
	return style, nil
}

func parseColumnNode(column string, n *yaml.Node) (*ColumnStyle, error) {
	if n.Kind != yaml.MappingNode {
		return nil, &StyleError{Column: column, Option: column,
			Reason: "column style must be a mapping"}
	}
	cs := &ColumnStyle{}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		var err error
		switch key {
		case "align":
			err = parseAlign(column, val, &cs.Align)
		case "width":
			cs.Width, err = parseWidthNode(column, val)
		case "bold":
			cs.Bold, err = parseRule(column, key, val, decodeBool)
		case "underline":
			cs.Underline, err = parseRule(column, key, val, decodeBool)
		case "color":
			cs.Color, err = parseRule(column, key, val, decodeString)
		case "missing":
			var missing string
			if err = decodeScalar(column, key, val, &missing); err == nil {
				cs.Missing = &missing
			}
		case "hide":
			err = parseHide(column, val, &cs.Hide)
		case "delayed":
			err = parseDelayed(column, val, cs)
		case "transform", "aggregate":
			err = &StyleError{Column: column, Option: key,
				Reason: "functions cannot be declared in YAML; set them in code"}
		default:
			err = &StyleError{Column: column, Option: key, Reason: "unknown option"}
		}
		if err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// parseHeaderNode accepts either a bare boolean (true enables the row
// with no extra styling) or a mapping of text attributes.
func parseHeaderNode(option string, n *yaml.Node) (*HeaderStyle, error) {
	if n.Kind == yaml.ScalarNode {
		var enabled bool
		if err := decodeScalar("", option, n, &enabled); err != nil {
			return nil, err
		}
		if !enabled {
			return nil, nil
		}
		return &HeaderStyle{}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, &StyleError{Option: option, Reason: "must be a boolean or a mapping"}
	}
	h := &HeaderStyle{}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		var err error
		switch key {
		case "bold":
			h.Bold, err = parseRule(option, key, val, decodeBool)
		case "underline":
			h.Underline, err = parseRule(option, key, val, decodeBool)
		case "color":
			h.Color, err = parseRule(option, key, val, decodeString)
		default:
			err = &StyleError{Column: option, Option: key, Reason: "unknown option"}
		}
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

func parseAlign(column string, n *yaml.Node, out *Alignment) error {
	var s string
	if err := decodeScalar(column, "align", n, &s); err != nil {
		return err
	}
	switch s {
	case "left":
		*out = AlignLeft
	case "right":
		*out = AlignRight
	case "center":
		*out = AlignCenter
	default:
		return &StyleError{Column: column, Option: "align",
			Reason: fmt.Sprintf("%q is not one of left, right, center", s)}
	}
	return nil
}

// parseWidthNode accepts a number (fixed cells, or a fraction of the
// table when strictly between 0 and 1), the string "auto", or a mapping
// with min, max, weight, marker, and truncate.
func parseWidthNode(column string, n *yaml.Node) (*Width, error) {
	if n.Kind == yaml.ScalarNode {
		if n.Value == "auto" {
			return nil, nil
		}
		var fixed Dim
		if err := decodeScalar(column, "width", n, &fixed); err != nil {
			return nil, err
		}
		return &Width{Fixed: fixed}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, &StyleError{Column: column, Option: "width",
			Reason: "must be a number, \"auto\", or a mapping"}
	}
	w := &Width{}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		var err error
		switch key {
		case "fixed":
			err = decodeScalar(column, "width.fixed", val, &w.Fixed)
		case "min":
			err = decodeScalar(column, "width.min", val, &w.Min)
		case "max":
			err = decodeScalar(column, "width.max", val, &w.Max)
		case "weight":
			err = decodeScalar(column, "width.weight", val, &w.Weight)
		case "marker":
			// true selects the default marker, false disables it, and any
			// string is used verbatim.
			var enabled bool
			if val.Decode(&enabled) == nil {
				if !enabled {
					empty := ""
					w.Marker = &empty
				}
				break
			}
			var marker string
			if err = decodeScalar(column, "width.marker", val, &marker); err == nil {
				w.Marker = &marker
			}
		case "truncate":
			var side string
			if err = decodeScalar(column, "width.truncate", val, &side); err != nil {
				break
			}
			switch side {
			case "right":
				w.Truncate = TruncateRight
			case "left":
				w.Truncate = TruncateLeft
			case "center":
				w.Truncate = TruncateCenter
			default:
				err = &StyleError{Column: column, Option: "width.truncate",
					Reason: fmt.Sprintf("%q is not one of right, left, center", side)}
			}
		default:
			err = &StyleError{Column: column, Option: "width." + key, Reason: "unknown option"}
		}
		if err != nil {
			return nil, err
		}
	}
	return w, nil
}

func parseHide(column string, n *yaml.Node, out *Hide) error {
	var enabled bool
	if n.Decode(&enabled) == nil {
		if enabled {
			*out = HideAlways
		} else {
			*out = HideNever
		}
		return nil
	}
	var s string
	if err := decodeScalar(column, "hide", n, &s); err != nil {
		return err
	}
	if s != "if_missing" {
		return &StyleError{Column: column, Option: "hide",
			Reason: fmt.Sprintf("%q is not a boolean or \"if_missing\"", s)}
	}
	*out = HideIfMissing
	return nil
}

// parseDelayed accepts a boolean or a group name.
func parseDelayed(column string, n *yaml.Node, cs *ColumnStyle) error {
	var enabled bool
	if n.Decode(&enabled) == nil {
		cs.Delayed = enabled
		return nil
	}
	var group string
	if err := decodeScalar(column, "delayed", n, &group); err != nil {
		return err
	}
	cs.DelayGroup = group
	return nil
}

// parseRule accepts a bare scalar (a constant rule) or a mapping with
// exactly one of lookup, regexp, and interval.
func parseRule[T any](column, option string, n *yaml.Node,
	dec func(column, option string, n *yaml.Node) (T, error)) (*Rule[T], error) {

	if n.Kind == yaml.ScalarNode {
		v, err := dec(column, option, n)
		if err != nil {
			return nil, err
		}
		return &Rule[T]{Value: &v}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, &StyleError{Column: column, Option: option,
			Reason: "must be a scalar or a mapping"}
	}
	rule := &Rule[T]{}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		var err error
		switch key {
		case "lookup":
			rule.Lookup, err = parseLookup(column, option, val, dec)
		case "regexp":
			rule.Regexp, err = parseRegexpCases(column, option, val, dec)
		case "interval":
			rule.Interval, err = parseIntervalCases(column, option, val, dec)
		default:
			err = &StyleError{Column: column, Option: option + "." + key,
				Reason: "unknown option"}
		}
		if err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func parseLookup[T any](column, option string, n *yaml.Node,
	dec func(column, option string, n *yaml.Node) (T, error)) (map[any]T, error) {

	if n.Kind != yaml.MappingNode {
		return nil, &StyleError{Column: column, Option: option + ".lookup",
			Reason: "must be a mapping"}
	}
	out := make(map[any]T, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		key := scalarValue(n.Content[i])
		v, err := dec(column, option+".lookup", n.Content[i+1])
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// parseRegexpCases reads a sequence of [pattern, value] pairs, tried in
// order with the first match winning.
func parseRegexpCases[T any](column, option string, n *yaml.Node,
	dec func(column, option string, n *yaml.Node) (T, error)) ([]RegexpCase[T], error) {

	if n.Kind != yaml.SequenceNode {
		return nil, &StyleError{Column: column, Option: option + ".regexp",
			Reason: "must be a sequence of [pattern, value] pairs"}
	}
	out := make([]RegexpCase[T], 0, len(n.Content))
	for _, pair := range n.Content {
		if pair.Kind != yaml.SequenceNode || len(pair.Content) != 2 {
			return nil, &StyleError{Column: column, Option: option + ".regexp",
				Reason: "each case must be a [pattern, value] pair"}
		}
		v, err := dec(column, option+".regexp", pair.Content[1])
		if err != nil {
			return nil, err
		}
		out = append(out, RegexpCase[T]{Pattern: pair.Content[0].Value, Value: v})
	}
	return out, nil
}

// parseIntervalCases reads a sequence of [min, max, value] triples with
// null for an open bound.
func parseIntervalCases[T any](column, option string, n *yaml.Node,
	dec func(column, option string, n *yaml.Node) (T, error)) ([]IntervalCase[T], error) {

	if n.Kind != yaml.SequenceNode {
		return nil, &StyleError{Column: column, Option: option + ".interval",
			Reason: "must be a sequence of [min, max, value] triples"}
	}
	out := make([]IntervalCase[T], 0, len(n.Content))
	for _, triple := range n.Content {
		if triple.Kind != yaml.SequenceNode || len(triple.Content) != 3 {
			return nil, &StyleError{Column: column, Option: option + ".interval",
				Reason: "each case must be a [min, max, value] triple"}
		}
		c := IntervalCase[T]{}
		var err error
		if c.Min, err = parseBound(column, option, triple.Content[0]); err != nil {
			return nil, err
		}
		if c.Max, err = parseBound(column, option, triple.Content[1]); err != nil {
			return nil, err
		}
		if c.Value, err = dec(column, option+".interval", triple.Content[2]); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseBound(column, option string, n *yaml.Node) (*float64, error) {
	if n.Tag == "!!null" {
		return nil, nil
	}
	var v float64
	if err := decodeScalar(column, option+".interval", n, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeScalar(column, option string, n *yaml.Node, out any) error {
	if err := n.Decode(out); err != nil {
		return &StyleError{Column: column, Option: option, Reason: err.Error()}
	}
	return nil
}

func decodeBool(column, option string, n *yaml.Node) (bool, error) {
	var v bool
	err := decodeScalar(column, option, n, &v)
	return v, err
}

func decodeString(column, option string, n *yaml.Node) (string, error) {
	var v string
	err := decodeScalar(column, option, n, &v)
	return v, err
}

// scalarValue maps a YAML scalar to the Go value it would unmarshal to,
// so lookup keys compare equal to raw row values.
func scalarValue(n *yaml.Node) any {
	switch n.Tag {
	case "!!bool":
		return n.Value == "true"
	case "!!int":
		if v, err := strconv.Atoi(n.Value); err == nil {
			return v
		}
	case "!!float":
		if v, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return v
		}
	case "!!null":
		return nil
	}
	return n.Value
}
