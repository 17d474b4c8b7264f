// Package pyout renders live, continuously-updating styled tables on a
// terminal. Rows are written one at a time and can be revised after the
// fact: writing a record whose identity matches an earlier row rewrites
// that row in place, and cell values can be produced asynchronously while
// the table stays on screen.
//
// The central entry point is [NewTabular], configured with options:
//
//	w, err := pyout.NewTabular(
//		pyout.WithColumns("name", "status"),
//		pyout.WithStyle(style),
//	)
//	defer w.Close()
//	w.Write(map[string]any{"name": "foo", "status": "running"})
//	w.Write(map[string]any{"name": "foo", "status": "done"})
//
// Records may be maps keyed by column name, slices ordered like the
// declared columns, or structs with a field per column. Map records can
// introduce new columns, which expand the table.
//
// # Styling
//
// A [Style] declares per-column alignment, width policy, and conditional
// text attributes. Attributes are [Rule] values: constants, equality
// lookups, regexp matches, or numeric intervals evaluated against the raw
// cell value:
//
//	style := &pyout.Style{
//		Header: &pyout.HeaderStyle{Underline: pyout.Const(true)},
//		Columns: map[string]*pyout.ColumnStyle{
//			"status": {Color: pyout.Lookup(map[any]string{
//				"done":   "green",
//				"failed": "red",
//			})},
//		},
//	}
//
// [ParseStyle] reads the same schema from YAML. Column widths are
// negotiated from observed content against the terminal width; a width
// never shrinks once granted, so reruns of the same data render
// identically.
//
// # Asynchronous values
//
// A cell value may be a [Deferred], built with [Async], [AsyncSeq], or
// [AsyncChan]. The table shows the placeholder immediately, runs the
// producer on a bounded worker pool, and rewrites the row when the value
// arrives. [Writer.Wait] blocks until all producers finish; [Writer.Close]
// waits, flushes, and reports their failures.
//
// # Modes
//
// On an interactive terminal rows are updated in place with cursor
// movement ([ModeUpdate]). Non-interactive output buffers everything and
// writes the finished table once on Close ([ModeFinal]). [ModeIncremental]
// appends every revision as a new line. The mode is fixed before the
// first write.
package pyout
