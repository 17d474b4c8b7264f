package pyout

import (
	"context"
	"iter"
)

// Deferred supplies a column value asynchronously. Submit it in place of a
// literal cell value: the table renders Initial immediately, runs the
// producer on the worker pool, and replaces the cell in place when the
// producer finishes.
//
// Exactly one of Fetch and Seq must be set. Fetch produces a single
// replacement value. Seq is pumped to exhaustion inside one worker, each
// yielded value replacing the previous one.
//
// A single producer can feed several columns: list them in Columns and
// have Fetch return either a map from column name to value (which may
// introduce new columns) or a slice in the same order as Columns.
type Deferred struct {
	// Initial is rendered until the producer delivers. Nil shows the
	// column's missing text.
	Initial any
	// Columns names the columns this unit feeds. Empty means just the
	// column the Deferred was supplied under.
	Columns []string
	Fetch   func(ctx context.Context) (any, error)
	Seq     iter.Seq[any]
}

// Async wraps a single-value producer with no initial placeholder.
func Async(fetch func(ctx context.Context) (any, error)) Deferred {
	return Deferred{Fetch: fetch}
}

// AsyncSeq wraps a lazy value sequence with no initial placeholder.
func AsyncSeq(seq iter.Seq[any]) Deferred {
	return Deferred{Seq: seq}
}

// AsyncChan wraps a channel of values. It is a thin wrapper around
// [AsyncSeq].
func AsyncChan(ch <-chan any) Deferred {
	return AsyncSeq(chanToSeq(ch))
}

func chanToSeq(ch <-chan any) iter.Seq[any] {
	return func(yield func(any) bool) {
		for v := range ch {
			if !yield(v) {
				return
			}
		}
	}
}

// deferredUnit is a normalized unit of asynchronous work: which columns it
// feeds and how to produce their values.
type deferredUnit struct {
	columns []string
	fetch   func(ctx context.Context) (any, error)
	seq     iter.Seq[any]
}
