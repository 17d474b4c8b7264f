package pyout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Mode controls how rendered rows reach the stream. It is fixed before the
// first write.
type Mode string

const (
	// ModeUpdate rewrites already-printed lines in place with cursor
	// movement. Requires a stream that supports updates.
	ModeUpdate Mode = "update"
	// ModeIncremental appends every rendered line, duplicating rows on
	// update instead of moving the cursor.
	ModeIncremental Mode = "incremental"
	// ModeFinal buffers everything and flushes the finished table once on
	// Close.
	ModeFinal Mode = "final"
)

const waitForTopInterval = 500 * time.Millisecond

// Option configures a Writer.
type Option func(*Writer)

// WithColumns declares the column set up front. Without it the columns
// are inferred from the first record, which then must be a map.
func WithColumns(columns ...string) Option {
	return func(w *Writer) { w.columns = columns }
}

// WithStyle sets the table style.
func WithStyle(style *Style) Option {
	return func(w *Writer) { w.initStyle = style }
}

// WithOutput directs output to out instead of stdout.
func WithOutput(out io.Writer) Option {
	return func(w *Writer) { w.out = out }
}

// WithInteractive overrides interactivity detection on the output.
func WithInteractive(interactive bool) Option {
	return func(w *Writer) { w.interactive = &interactive }
}

// WithMode fixes the write mode instead of deriving it from the stream.
func WithMode(mode Mode) Option {
	return func(w *Writer) { w.mode = mode }
}

// WithIDs names the columns whose values identify a row. Defaults to the
// first column.
func WithIDs(columns ...string) Option {
	return func(w *Writer) { w.ids = columns }
}

// WithMaxWorkers caps the goroutines running deferred producers.
func WithMaxWorkers(n int) Option {
	return func(w *Writer) { w.maxWorkers = n }
}

// WithWaitForTop sets how many of the topmost visible rows a new write
// waits on before scrolling them off. Zero disables the wait. The default
// is 3.
func WithWaitForTop(n int) Option {
	return func(w *Writer) { w.waitForTop = n }
}

// WithFailFast aborts output on the first producer failure instead of
// collecting failures for Wait and Close.
func WithFailFast(failFast bool) Option {
	return func(w *Writer) { w.failFast = failFast }
}

// WithForceStyling applies styling attributes even when the output is not
// an interactive terminal.
func WithForceStyling(force bool) Option {
	return func(w *Writer) { w.forceStyling = force }
}

// WithLogger routes the package's debug logging to lg.
func WithLogger(lg *logrus.Logger) Option {
	return func(*Writer) { SetLogger(lg) }
}

// withStream substitutes the output stream directly, bypassing terminal
// detection. Tests use it to drive size and capability behavior.
func withStream(s Stream) Option {
	return func(w *Writer) { w.stream = s }
}

// Writer renders rows as a live styled table. Write it one record at a
// time, or feed it a sequence; rows carrying deferred values are updated
// in place as their producers deliver. Close flushes pending work.
type Writer struct {
	mu sync.Mutex

	out          io.Writer
	stream       Stream
	mode         Mode
	interactive  *bool
	forceStyling bool

	columns   []string
	ids       []string
	initStyle *Style

	content    *content
	normalizer *rowNormalizer
	inited     bool

	widthFromStream bool
	lastContentLen  int
	lastSummary     string

	pool       *pool
	maxWorkers int
	waitForTop int
	failFast   bool
	inflight   map[string]int
	failures   []*ProducerError
	aborted    bool
	abortCause error
	closed     bool
}

// NewTabular builds a table writer. With no options it writes to stdout,
// picking the mode from the stream: update on a terminal, final otherwise.
func NewTabular(opts ...Option) (*Writer, error) {
	w := &Writer{
		out:        os.Stdout,
		waitForTop: 3,
		inflight:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.stream == nil {
		interactive := isTerminalWriter(w.out)
		if w.interactive != nil {
			interactive = *w.interactive
		}
		if interactive {
			w.stream = newTermStream(w.out)
		} else {
			w.stream = newPlainStream(w.out)
		}
	}

	if err := w.initMode(); err != nil {
		return nil, err
	}

	// Adopting onto an empty style copies the caller's declaration, so the
	// width fixups below never touch the caller's value.
	style := (&Style{}).adopt(w.initStyle)
	if style.Width == 0 {
		style.Width = w.stream.Width()
		w.widthFromStream = true
		lgr.Debugf("setting table width from stream: %d", style.Width)
	}

	var procgen processorGenerator = plainProcessors{}
	if w.stream.Interactive() || w.forceStyling {
		procgen = termProcessors{term: newTerminal()}
	}
	w.content = newContent(newStyleFields(style, procgen))
	return w, nil
}

func (w *Writer) initMode() error {
	mode := w.mode
	if mode == "" {
		switch {
		case !w.stream.Interactive():
			mode = ModeFinal
		case w.stream.SupportsUpdates():
			mode = ModeUpdate
		default:
			mode = ModeIncremental
		}
	}
	switch mode {
	case ModeUpdate:
		if !w.stream.SupportsUpdates() || !w.stream.Interactive() {
			return fmt.Errorf("%w: stream does not support updates", ErrInvalidMode)
		}
	case ModeIncremental, ModeFinal:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	lgr.Debugf("write mode is %s", mode)
	w.mode = mode
	return nil
}

// Mode reports the resolved write mode.
func (w *Writer) Mode() Mode { return w.mode }

func (w *Writer) idColumns() []string {
	if len(w.ids) > 0 {
		return w.ids
	}
	if len(w.columns) > 0 {
		return w.columns[:1]
	}
	return nil
}

// initPrewrite (re)derives the per-column fields and the normalizer.
// tableWidth of 0 keeps the width recorded by the previous pass.
func (w *Writer) initPrewrite(tableWidth int) error {
	if err := w.content.initColumns(w.columns, w.idColumns(), tableWidth); err != nil {
		return err
	}
	w.normalizer = newRowNormalizer(w.columns, w.content.fields.style)
	w.inited = true
	return nil
}

// Write renders record as a table row. The record may be a map keyed by
// column name, a slice ordered like the declared columns, or a struct
// with a field per column. Map records may introduce new columns, which
// expand the table. Cell values may be [Deferred].
func (w *Writer) Write(record any) error {
	return w.WriteStyled(record, nil)
}

// WriteStyled is Write with a per-row style override layered on top of
// the table style.
func (w *Writer) WriteStyled(record any, style *Style) error {
	w.maybeWaitOnTopRows()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted {
		return w.abortedError()
	}

	if w.columns == nil {
		inferred, err := inferColumns(record)
		if err != nil {
			return err
		}
		lgr.Debugf("inferred columns: %v", inferred)
		w.columns = inferred
	}
	if !w.inited {
		if err := w.initPrewrite(0); err != nil {
			return err
		}
	}

	units, row, err := w.normalizer.normalize(record)
	if err != nil {
		return err
	}
	if err := w.writeRow(row, style); err != nil {
		return err
	}
	if len(units) > 0 {
		return w.startUnits(row, units)
	}
	return nil
}

// WriteAll writes every record in seq, stopping at the first error.
func (w *Writer) WriteAll(seq iter.Seq[any]) error {
	for record := range seq {
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// WriteChan writes records from ch until it closes.
func (w *Writer) WriteChan(ch <-chan any) error {
	return w.WriteAll(chanToSeq(ch))
}

func inferColumns(record any) ([]string, error) {
	m, ok := asMapRecord(record)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNoColumns, record)
	}
	columns := make([]string, 0, len(m))
	for c := range m {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	return columns, nil
}

// writeRow picks up external width changes, dispatches on mode, and
// expands the column set once when the row carries unknown columns.
func (w *Writer) writeRow(row map[string]any, style *Style) error {
	if w.widthFromStream && w.mode != ModeFinal {
		current := w.content.fields.tableWidth
		fromStream := w.stream.Width()
		if fromStream != 0 && fromStream != current {
			lgr.Debugf("stream width changed from %d to %d", current, fromStream)
			if err := w.initPrewrite(fromStream); err != nil {
				return err
			}
		}
	}

	err := w.writeMode(row, style)
	var unknown *unknownColumnsError
	if errors.As(err, &unknown) {
		lgr.Debugf("expanding columns with %v", unknown.columns)
		w.columns = append(w.columns, unknown.columns...)
		if err := w.initPrewrite(0); err != nil {
			return err
		}
		err = w.writeMode(row, style)
	}
	return err
}

func (w *Writer) writeMode(row map[string]any, style *Style) error {
	switch w.mode {
	case ModeIncremental:
		return w.writeIncremental(row, style)
	case ModeFinal:
		return w.writeFinal(row, style)
	default:
		return w.writeUpdate(row, style)
	}
}

func (w *Writer) writeUpdate(row map[string]any, style *Style) error {
	lastSummaryLen := lineCountOf(w.lastSummary)

	text, status, summary, err := w.content.update(row, style)
	if err != nil {
		return err
	}

	if lastSummaryLen > 0 {
		// The summary very likely changed and may have shrunk; clearing it
		// up front also keeps the row-update arithmetic simple.
		lgr.Debugf("clearing summary of %d line(s)", lastSummaryLen)
		if err := w.stream.ClearLastLines(lastSummaryLen); err != nil {
			return err
		}
	}

	overwrote := false
	if status.kind == statusLine {
		height := w.stream.Height()
		nVisible := min(height-lastSummaryLen-1, w.lastContentLen)
		nBack := w.lastContentLen - status.line
		if nBack > nVisible {
			lgr.Debugf("line %d scrolled off (%d back, %d visible); repainting",
				status.line, nBack, nVisible)
			status.kind = statusRepaint
			text, err = w.content.renderAll()
			if err != nil {
				return err
			}
		} else {
			if err := w.stream.OverwriteLine(nBack, text); err != nil {
				return err
			}
			overwrote = true
		}
	}

	if !overwrote {
		if status.kind == statusRepaint {
			if err := w.stream.MoveTo(w.lastContentLen); err != nil {
				return err
			}
		}
		if err := w.stream.Write(text); err != nil {
			return err
		}
	}

	if summary != "" {
		if err := w.stream.Write(summary); err != nil {
			return err
		}
	}
	w.lastContentLen = w.content.lineCount()
	w.lastSummary = summary
	return nil
}

func (w *Writer) writeIncremental(row map[string]any, style *Style) error {
	text, _, summary, err := w.content.update(row, style)
	if err != nil {
		return err
	}
	w.lastSummary = summary
	return w.stream.Write(text)
}

func (w *Writer) writeFinal(row map[string]any, style *Style) error {
	_, _, summary, err := w.content.update(row, style)
	if err != nil {
		return err
	}
	w.lastSummary = summary
	return nil
}

// startUnits schedules the row's deferred producers on the pool.
func (w *Writer) startUnits(row map[string]any, units []deferredUnit) error {
	ids := w.idColumns()
	idKey, err := idKeyOf(row, ids)
	if err != nil {
		return err
	}
	idVals := make(map[string]any, len(ids))
	for _, c := range ids {
		idVals[c] = row[c]
	}

	if w.pool == nil {
		lgr.Debugf("initializing pool with max workers %d", w.maxWorkers)
		w.pool = newPool(w.maxWorkers)
	}

	for _, unit := range units {
		unit := unit
		w.inflight[idKey]++
		lgr.Debugf("scheduling producer for row %s, columns %v", idKey, unit.columns)
		w.pool.submit(func(ctx context.Context) {
			defer w.unitDone(idKey)
			w.runUnit(ctx, idKey, idVals, unit)
		})
	}
	return nil
}

func (w *Writer) unitDone(idKey string) {
	w.mu.Lock()
	if w.inflight[idKey]--; w.inflight[idKey] <= 0 {
		delete(w.inflight, idKey)
	}
	w.mu.Unlock()
}

// runUnit executes one producer on a pooled worker, feeding each produced
// value back through the write path.
func (w *Writer) runUnit(ctx context.Context, idKey string, idVals map[string]any, unit deferredUnit) {
	defer func() {
		if r := recover(); r != nil {
			w.fail(&ProducerError{ID: idKey, Columns: unit.columns, Err: panicError(r)})
		}
	}()

	if unit.seq != nil {
		for v := range unit.seq {
			select {
			case <-ctx.Done():
				return
			default:
			}
			w.writeAsyncResult(idVals, unit.columns, v)
		}
		return
	}

	v, err := unit.fetch(ctx)
	if err != nil {
		w.fail(&ProducerError{ID: idKey, Columns: unit.columns, Err: err})
		return
	}
	if ctx.Err() != nil {
		return
	}
	w.writeAsyncResult(idVals, unit.columns, v)
}

// writeAsyncResult re-enters the write path with a produced value. A map
// result is merged by column name and may introduce new columns; a slice
// is zipped with the unit's columns; anything else updates a single
// column.
func (w *Writer) writeAsyncResult(idVals map[string]any, columns []string, result any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted {
		return
	}

	idKey, _ := idKeyOf(idVals, w.idColumns())
	row, err := asyncResultRow(columns, result)
	if err != nil {
		w.failLocked(&ProducerError{ID: idKey, Columns: columns, Err: err})
		return
	}
	for c, v := range idVals {
		row[c] = v
	}

	// Produced values may themselves be deferred.
	units, err := w.normalizer.stripDeferred(row)
	if err != nil {
		w.failLocked(&ProducerError{ID: idKey, Columns: columns, Err: err})
		return
	}

	if err := w.writeRow(row, nil); err != nil {
		w.failLocked(&ProducerError{ID: idKey, Columns: columns, Err: err})
		return
	}
	if len(units) > 0 {
		if err := w.startUnits(row, units); err != nil {
			w.failLocked(&ProducerError{ID: idKey, Columns: columns, Err: err})
		}
	}
}

func asyncResultRow(columns []string, result any) (map[string]any, error) {
	if m, ok := asMapRecord(result); ok {
		return m, nil
	}
	if isSeqRecord(result) {
		vals := reflectSlice(result)
		if len(vals) != len(columns) {
			return nil, fmt.Errorf("produced %d values for columns %v",
				len(vals), columns)
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			row[c] = vals[i]
		}
		return row, nil
	}
	if len(columns) != 1 {
		return nil, fmt.Errorf("expected map or slice result for columns %v, got %T",
			columns, result)
	}
	return map[string]any{columns[0]: result}, nil
}

func reflectSlice(v any) []any {
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func (w *Writer) fail(pe *ProducerError) {
	w.mu.Lock()
	w.failLocked(pe)
	w.mu.Unlock()
}

func (w *Writer) failLocked(pe *ProducerError) {
	lgr.Debugf("producer failed: %v", pe)
	w.failures = append(w.failures, pe)
	if w.failFast && !w.aborted {
		w.abortLocked(pe)
	}
}

// abortLocked stops all further output and cancels pending producers.
func (w *Writer) abortLocked(cause error) {
	w.aborted = true
	w.abortCause = cause
	if w.pool != nil {
		w.pool.cancel()
		w.stream.Write("\nCanceled pending asynchronous workers\n")
	}
}

func (w *Writer) abortedError() error {
	if w.abortCause != nil {
		return fmt.Errorf("%w: %w", ErrAborted, w.abortCause)
	}
	return ErrAborted
}

// Wait blocks until every scheduled producer finishes. Producer failures
// collected along the way are joined into the returned error; with
// fail-fast the first failure alone is returned.
func (w *Writer) Wait() error {
	w.mu.Lock()
	pool := w.pool
	aborted := w.aborted
	w.mu.Unlock()
	if pool == nil {
		return nil
	}
	if aborted {
		pool.shutdown()
		return w.abortedError()
	}

	pool.drain()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted {
		return w.abortedError()
	}
	if len(w.failures) == 0 {
		return nil
	}
	errs := make([]error, len(w.failures))
	for i, pe := range w.failures {
		errs[i] = pe
	}
	return errors.Join(errs...)
}

// Close waits for producers, flushes the table in final mode, writes the
// trailing summary for non-update modes, and appends a diagnostic block
// for any collected producer failures. The Writer cannot be used after
// Close.
func (w *Writer) Close() error {
	waitErr := w.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return waitErr
	}
	w.closed = true
	if w.pool != nil {
		w.pool.shutdown()
	}

	if !w.aborted {
		if w.mode == ModeFinal && !w.content.empty() {
			text, err := w.content.renderAll()
			if err != nil {
				return errors.Join(waitErr, err)
			}
			if err := w.stream.Write(text); err != nil {
				return errors.Join(waitErr, err)
			}
		}
		if w.mode != ModeUpdate && w.lastSummary != "" {
			if err := w.stream.Write(w.lastSummary); err != nil {
				return errors.Join(waitErr, err)
			}
		}
	}

	if len(w.failures) > 0 && !w.failFast {
		w.printFailures()
	}
	return waitErr
}

// printFailures appends the diagnostic block for collected producer
// failures after the table.
func (w *Writer) printFailures() {
	w.aborted = true
	n := len(w.failures)
	plural := "s"
	if n == 1 {
		plural = ""
	}
	w.stream.Write(fmt.Sprintf("\n\nERROR: %d asynchronous worker%s failed\n\n", n, plural))
	for _, pe := range w.failures {
		w.stream.Write(pe.Error() + "\n")
	}
}

// Row returns a copy of the stored row identified by idVals, ordered like
// the configured id columns. It is mainly useful for reading back values
// that were produced asynchronously.
func (w *Writer) Row(idVals ...any) (map[string]any, bool) {
	key, err := idKeyOfValues(idVals)
	if err != nil {
		return nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.content == nil {
		return nil, false
	}
	row, ok := w.content.row(key)
	if !ok {
		return nil, false
	}
	copied := make(map[string]any, len(row))
	for c, v := range row {
		copied[c] = v
	}
	return copied, true
}

// Pause stops table output and runs fn so the caller can write its own
// output. In update mode the table is rewritten afterwards; clear erases
// the visible rows first.
func (w *Writer) Pause(clear bool, fn func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	update := w.mode == ModeUpdate
	if update && clear {
		// -1 for the last empty line of the screen.
		n := min(w.stream.Height()-1, w.lastContentLen+lineCountOf(w.lastSummary))
		if err := w.stream.ClearLastLines(n); err != nil {
			return err
		}
	}
	fn()
	if update {
		text, err := w.content.renderAll()
		if err != nil {
			return err
		}
		if err := w.stream.Write(text); err != nil {
			return err
		}
		if w.lastSummary != "" {
			return w.stream.Write(w.lastSummary)
		}
	}
	return nil
}

// topRowsDone reports whether the producers feeding the topmost n visible
// rows have all finished. Callers hold w.mu.
func (w *Writer) topRowsDone(n, height int) bool {
	if w.mode != ModeUpdate || w.content == nil || w.content.empty() {
		return true
	}
	nFree := height - lineCountOf(w.lastSummary) - 1
	topIdx := w.lastContentLen - nFree
	if topIdx < 0 {
		// The content has not filled the screen yet.
		return true
	}
	for i := range min(n, nFree) {
		key, ok := w.content.idKeyAt(topIdx + i)
		if !ok {
			continue
		}
		if w.inflight[key] > 0 {
			return false
		}
	}
	return true
}

// maybeWaitOnTopRows polls until the top rows' producers finish, so a
// row's final value is likely seen before it scrolls off. Best effort,
// not a guarantee.
func (w *Writer) maybeWaitOnTopRows() {
	if w.waitForTop <= 0 {
		return
	}
	waited := 0
	var height int
	for {
		w.mu.Lock()
		if w.stream == nil {
			w.mu.Unlock()
			return
		}
		if height == 0 {
			height = w.stream.Height()
		}
		done := w.topRowsDone(w.waitForTop, height)
		w.mu.Unlock()
		if done {
			break
		}
		time.Sleep(waitForTopInterval)
		waited++
	}
	if waited > 0 {
		lgr.Debugf("waited %d cycles for top rows", waited)
		// A beat longer, so the last update is seen before scrolling.
		time.Sleep(waitForTopInterval)
	}
}

func lineCountOf(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
