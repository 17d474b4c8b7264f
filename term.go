package pyout

import (
	"strings"

	"github.com/fatih/color"
)

// terminal maps style attribute names to escape-sequence renderers. It is
// the only place SGR codes come from.
type terminal struct {
	attrs map[string]*color.Color
}

func newTerminal() *terminal {
	attrs := map[string]color.Attribute{
		"bold":      color.Bold,
		"underline": color.Underline,
		"black":     color.FgBlack,
		"red":       color.FgRed,
		"green":     color.FgGreen,
		"yellow":    color.FgYellow,
		"blue":      color.FgBlue,
		"magenta":   color.FgMagenta,
		"cyan":      color.FgCyan,
		"white":     color.FgWhite,
	}
	t := &terminal{attrs: make(map[string]*color.Color, len(attrs))}
	for name, attr := range attrs {
		c := color.New(attr)
		// The writer decides whether styled output is appropriate; the
		// stream handed to us may not be the process stdout that the color
		// package inspects.
		c.EnableColor()
		t.attrs[name] = c
	}
	return t
}

// render wraps value in the escape codes for the named attribute. Values
// that are empty or all whitespace are left alone.
func (t *terminal) render(attr, value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	c, ok := t.attrs[attr]
	if !ok {
		return value
	}
	return c.Sprint(value)
}

// processorGenerator builds a column's pre- and post-format processors
// from its style. The plain generator drops all styling; the term
// generator emits terminal escape codes.
type processorGenerator interface {
	preFromStyle(cs *ColumnStyle) []processorFunc
	postFromStyle(cs *ColumnStyle) []processorFunc
}

type plainProcessors struct{}

func (plainProcessors) preFromStyle(cs *ColumnStyle) []processorFunc {
	return preFromStyle(cs)
}

func (plainProcessors) postFromStyle(*ColumnStyle) []processorFunc { return nil }

type termProcessors struct {
	term *terminal
}

func (termProcessors) preFromStyle(cs *ColumnStyle) []processorFunc {
	return preFromStyle(cs)
}

// postFromStyle builds the styling stage: flank whitespace is split off,
// bold, underline, and color apply in that fixed order, and the flanks are
// rejoined so codes never swallow padding.
func (p termProcessors) postFromStyle(cs *ColumnStyle) []processorFunc {
	fl := &flanks{}
	procs := []processorFunc{fl.split}

	if r := cs.Bold; r != nil {
		compiled := compileRule(r)
		procs = append(procs, passNothingThrough(
			func(value any, result string) (string, error) {
				if evalBoolRule(r, compiled, value) {
					result = p.term.render("bold", result)
				}
				return result, nil
			}))
	}
	if r := cs.Underline; r != nil {
		compiled := compileRule(r)
		procs = append(procs, passNothingThrough(
			func(value any, result string) (string, error) {
				if evalBoolRule(r, compiled, value) {
					result = p.term.render("underline", result)
				}
				return result, nil
			}))
	}
	if r := cs.Color; r != nil {
		compiled := compileRule(r)
		procs = append(procs, passNothingThrough(
			func(value any, result string) (string, error) {
				if attr, ok := evalRule(r, compiled, value); ok && attr != "" {
					result = p.term.render(attr, result)
				}
				return result, nil
			}))
	}

	return append(procs, fl.join)
}

func preFromStyle(cs *ColumnStyle) []processorFunc {
	if cs.Transform == nil {
		return nil
	}
	return []processorFunc{passNothingThrough(transformProcessor(cs.Transform))}
}
