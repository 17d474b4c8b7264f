package pyout

import (
	"fmt"
	"regexp"
)

var knownColors = map[string]bool{
	"black": true, "red": true, "green": true, "yellow": true,
	"blue": true, "magenta": true, "cyan": true, "white": true,
}

// Validate checks the style against the schema constraints: width policy
// invariants, conditional-rule shape, and known attribute names. It
// returns a *StyleError naming the first violation.
func (s *Style) Validate() error {
	if s == nil {
		return nil
	}
	if s.Default != nil {
		if err := validateColumnStyle("default_", s.Default); err != nil {
			return err
		}
	}
	for name, cs := range s.Columns {
		if err := validateColumnStyle(name, cs); err != nil {
			return err
		}
	}
	if s.Width < 0 {
		return &StyleError{Option: "width_", Reason: "must be non-negative"}
	}
	for _, h := range []struct {
		name  string
		style *HeaderStyle
	}{{"header_", s.Header}, {"aggregate_", s.Summary}} {
		if h.style == nil {
			continue
		}
		if err := validateBoolRule(h.name, "bold", h.style.Bold); err != nil {
			return err
		}
		if err := validateBoolRule(h.name, "underline", h.style.Underline); err != nil {
			return err
		}
		if err := validateColorRule(h.name, h.style.Color); err != nil {
			return err
		}
	}
	return nil
}

func validateColumnStyle(column string, cs *ColumnStyle) error {
	if cs == nil {
		return nil
	}
	if cs.Align < AlignLeft || cs.Align > AlignCenter {
		return &StyleError{Column: column, Option: "align",
			Reason: fmt.Sprintf("unknown alignment %d", cs.Align)}
	}
	if err := validateWidth(column, cs.Width); err != nil {
		return err
	}
	if err := validateBoolRule(column, "bold", cs.Bold); err != nil {
		return err
	}
	if err := validateBoolRule(column, "underline", cs.Underline); err != nil {
		return err
	}
	if err := validateColorRule(column, cs.Color); err != nil {
		return err
	}
	if cs.Hide < HideNever || cs.Hide > HideIfMissing {
		return &StyleError{Column: column, Option: "hide",
			Reason: fmt.Sprintf("unknown value %d", cs.Hide)}
	}
	if cs.Delayed && cs.DelayGroup != "" {
		return &StyleError{Column: column, Option: "delayed",
			Reason: "Delayed and DelayGroup are mutually exclusive"}
	}
	return nil
}

func validateWidth(column string, w *Width) error {
	if w == nil {
		return nil
	}
	bad := func(reason string) error {
		return &StyleError{Column: column, Option: "width", Reason: reason}
	}
	if w.Fixed < 0 || w.Min < 0 || w.Max < 0 {
		return bad("dimensions must be non-negative")
	}
	if w.Fixed != 0 && (w.Min != 0 || w.Max != 0) {
		return bad("min/max are incompatible with a fixed width")
	}
	if w.Min != 0 && w.Max != 0 && !fractional(w.Min) && !fractional(w.Max) &&
		w.Min > w.Max {
		return bad("min exceeds max")
	}
	if w.Weight < 0 {
		return bad("weight must be positive")
	}
	if w.Truncate < TruncateRight || w.Truncate > TruncateCenter {
		return bad(fmt.Sprintf("unknown truncate side %d", w.Truncate))
	}
	return nil
}

// fractional reports whether a dimension denotes a fraction of the table
// width rather than an absolute number of cells.
func fractional(d Dim) bool { return d > 0 && d < 1 }

func validateBoolRule(column, option string, r *Rule[bool]) error {
	return validateRuleShape(column, option, ruleBranches(r))
}

func validateColorRule(column string, r *Rule[string]) error {
	if r == nil {
		return nil
	}
	if err := validateRuleShape(column, "color", ruleBranches(r)); err != nil {
		return err
	}
	check := func(name string) error {
		if !knownColors[name] {
			return &StyleError{Column: column, Option: "color",
				Reason: fmt.Sprintf("unknown color %q", name)}
		}
		return nil
	}
	if r.Value != nil {
		return check(*r.Value)
	}
	for _, v := range r.Lookup {
		if err := check(v); err != nil {
			return err
		}
	}
	for _, c := range r.Regexp {
		if err := check(c.Value); err != nil {
			return err
		}
	}
	for _, c := range r.Interval {
		if err := check(c.Value); err != nil {
			return err
		}
	}
	return nil
}

type ruleShape struct {
	set      int
	patterns []string
}

func ruleBranches[T any](r *Rule[T]) *ruleShape {
	if r == nil {
		return nil
	}
	s := &ruleShape{}
	if r.Value != nil {
		s.set++
	}
	if r.Lookup != nil {
		s.set++
	}
	if r.Regexp != nil {
		s.set++
		for _, c := range r.Regexp {
			s.patterns = append(s.patterns, c.Pattern)
		}
	}
	if r.Interval != nil {
		s.set++
	}
	return s
}

func validateRuleShape(column, option string, s *ruleShape) error {
	if s == nil {
		return nil
	}
	if s.set != 1 {
		return &StyleError{Column: column, Option: option,
			Reason: fmt.Sprintf("exactly one of Value, Lookup, Regexp, Interval must be set (got %d)", s.set)}
	}
	for _, p := range s.patterns {
		if _, err := regexp.Compile(p); err != nil {
			return &StyleError{Column: column, Option: option,
				Reason: fmt.Sprintf("bad pattern %q: %v", p, err)}
		}
	}
	return nil
}
