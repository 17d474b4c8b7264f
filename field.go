package pyout

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

var (
	minusInf = math.Inf(-1)
	plusInf  = math.Inf(1)
)

// nothing marks a value that was never supplied. It is used instead of nil
// or "" so that real falsy values stay distinguishable from absent ones.
// It renders as the column's configured missing text.
type nothing struct {
	text string
}

func (n nothing) String() string { return n.text }

var nothingEmpty = nothing{}

func isNothing(v any) bool {
	_, ok := v.(nothing)
	return ok
}

// fmtValue converts a raw field value to its unpadded text.
func fmtValue(v any) string {
	switch t := v.(type) {
	case nothing:
		return t.text
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// processorFunc is one stage of a field's rendering pipeline. It receives
// the raw field value and the result of the previous stage.
type processorFunc func(value any, result string) (string, error)

// Processor group keys. "width" truncates and is always active; "default"
// carries the column's configured styling; "override" replaces "default"
// when a per-call style is given.
const (
	procWidth    = "width"
	procDefault  = "default"
	procOverride = "override"
)

// field renders one column's values at a fixed width and alignment by
// feeding them through three stages:
//
//	pre -> format -> post
//
// Pre-format processors transform the raw value, the format stage pads and
// aligns, and post-format processors truncate and style. Processors are
// grouped under keys so callers can select which groups run.
type field struct {
	width       int
	align       Alignment
	defaultKeys []string
	registered  map[string]bool
	pre         map[string][]processorFunc
	post        map[string][]processorFunc
}

func newField(width int, align Alignment, defaultKeys, otherKeys []string) *field {
	registered := make(map[string]bool, len(defaultKeys)+len(otherKeys))
	for _, k := range defaultKeys {
		registered[k] = true
	}
	for _, k := range otherKeys {
		registered[k] = true
	}
	return &field{
		width:       width,
		align:       align,
		defaultKeys: defaultKeys,
		registered:  registered,
		pre:         make(map[string][]processorFunc),
		post:        make(map[string][]processorFunc),
	}
}

// add replaces the processor list for the given stage and group key.
func (f *field) add(kind, key string, procs ...processorFunc) {
	if !f.registered[key] {
		panic(fmt.Sprintf("pyout: processor key %q was not registered", key))
	}
	switch kind {
	case "pre":
		f.pre[key] = procs
	case "post":
		f.post[key] = procs
	default:
		panic(fmt.Sprintf("pyout: processor kind %q is not 'pre' or 'post'", kind))
	}
}

// format pads the value text to the field width. Values wider than the
// field are left for the truncation processor to cut.
func (f *field) format(text string) string {
	pad := f.width - displayWidth(text)
	if pad <= 0 {
		return text
	}
	switch f.align {
	case AlignRight:
		return strings.Repeat(" ", pad) + text
	case AlignCenter:
		left := pad / 2
		return strings.Repeat(" ", left) + text + strings.Repeat(" ", pad-left)
	default:
		return text + strings.Repeat(" ", pad)
	}
}

// render feeds value through the selected processor groups. A nil keys
// selects the field's default groups. With excludePost true the result is
// returned right after the format stage, which is how transformed-but-
// unstyled width is measured.
func (f *field) render(value any, keys []string, excludePost bool) (string, error) {
	if keys == nil {
		keys = f.defaultKeys
	}
	for _, k := range keys {
		if !f.registered[k] {
			panic(fmt.Sprintf("pyout: processor key %q was not registered", k))
		}
	}

	result := fmtValue(value)
	for _, k := range keys {
		for _, proc := range f.pre[k] {
			var err error
			if result, err = proc(value, result); err != nil {
				return "", err
			}
		}
	}
	result = f.format(result)
	if excludePost {
		return result, nil
	}
	for _, k := range keys {
		for _, proc := range f.post[k] {
			var err error
			if result, err = proc(value, result); err != nil {
				return "", err
			}
		}
	}
	return result, nil
}

// passNothingThrough makes proc skip missing values.
func passNothingThrough(proc processorFunc) processorFunc {
	return func(value any, result string) (string, error) {
		if isNothing(value) {
			return result, nil
		}
		return proc(value, result)
	}
}

// funcName identifies a style function for error reports.
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() == reflect.Func {
		if rf := runtime.FuncForPC(v.Pointer()); rf != nil {
			return rf.Name()
		}
	}
	return fmt.Sprintf("%T", fn)
}

// transformProcessor wraps a Transform. Failures, including panics, come
// back as a *StyleFunctionError naming the function.
func transformProcessor(tr Transform) processorFunc {
	name := funcName(tr)
	return func(value any, result string) (_ string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &StyleFunctionError{Fn: name, Err: panicError(r)}
			}
		}()
		out, terr := tr(value)
		if terr != nil {
			return "", &StyleFunctionError{Fn: name, Err: terr}
		}
		return fmtValue(out), nil
	}
}

// flanks splits leading and trailing whitespace off before styling and
// rejoins it afterwards, so escape codes never wrap padding.
type flanks struct {
	left, right string
}

var flankRE = regexp.MustCompile(`(?s)\A(\s*)(.*\S)(\s*)\z`)

func (fl *flanks) split(_ any, result string) (string, error) {
	if strings.TrimSpace(result) == "" {
		fl.left, fl.right = "", ""
		return result, nil
	}
	m := flankRE.FindStringSubmatch(result)
	if m == nil {
		return result, fmt.Errorf("flank split unexpectedly failed on %q", result)
	}
	fl.left, fl.right = m[1], m[3]
	return m[2], nil
}

func (fl *flanks) join(_ any, result string) (string, error) {
	return fl.left + result + fl.right, nil
}

// toFloat64 coerces numeric values for interval rules.
func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// comparable reports whether v can be used as a map key.
func comparableValue(v any) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v).Comparable()
}

// evalBoolRule reports whether a bool rule switches its attribute on for
// the given raw value.
func evalBoolRule(r *Rule[bool], compiled []*regexp.Regexp, value any) bool {
	on, matched := evalRule(r, compiled, value)
	return matched && on
}

func evalRule[T any](r *Rule[T], compiled []*regexp.Regexp, value any) (T, bool) {
	var zero T
	switch {
	case r.Value != nil:
		return *r.Value, true
	case r.Lookup != nil:
		if !comparableValue(value) {
			return zero, false
		}
		v, ok := r.Lookup[value]
		return v, ok
	case r.Regexp != nil:
		s, ok := value.(string)
		if !ok {
			return zero, false
		}
		for i, c := range r.Regexp {
			if compiled[i].MatchString(s) {
				return c.Value, true
			}
		}
		return zero, false
	case r.Interval != nil:
		f, ok := toFloat64(value)
		if !ok {
			return zero, false
		}
		for _, c := range r.Interval {
			lo, hi := minusInf, plusInf
			if c.Min != nil {
				lo = *c.Min
			}
			if c.Max != nil {
				hi = *c.Max
			}
			if lo <= f && f < hi {
				return c.Value, true
			}
		}
		return zero, false
	}
	return zero, false
}

func compileRule[T any](r *Rule[T]) []*regexp.Regexp {
	if r == nil || r.Regexp == nil {
		return nil
	}
	compiled := make([]*regexp.Regexp, len(r.Regexp))
	for i, c := range r.Regexp {
		compiled[i] = regexp.MustCompile(c.Pattern)
	}
	return compiled
}
