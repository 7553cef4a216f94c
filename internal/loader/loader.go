// Package loader moves query results into a search index: it streams
// rows from an engine session, shapes them into documents, and submits
// fixed-size batches through the bulk client with bounded retries.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"searchrunner/internal/engine"
	"searchrunner/internal/logging"
	"searchrunner/internal/searchengine"
)

// LoadError reports a failed load. Batch is the zero-based ordinal of
// the failing submission, -1 when the failure happened before any
// batch formed. Row is the zero-based source row position for
// structural failures, -1 otherwise.
type LoadError struct {
	Table string
	Batch int
	Row   int
	Err   error
}

func (e *LoadError) Error() string {
	switch {
	case e.Batch >= 0 && e.Row >= 0:
		return fmt.Sprintf("loading %s: batch %d: row %d: %v", e.Table, e.Batch, e.Row, e.Err)
	case e.Row >= 0:
		return fmt.Sprintf("loading %s: row %d: %v", e.Table, e.Row, e.Err)
	case e.Batch >= 0:
		return fmt.Sprintf("loading %s: batch %d: %v", e.Table, e.Batch, e.Err)
	default:
		return fmt.Sprintf("loading %s: %v", e.Table, e.Err)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// Options configure one loader.
type Options struct {
	Table        string // logical table name, for diagnostics
	Index        string // target index
	BatchSize    int
	MaxRetries   int           // attempts per batch, including the first
	MaxRetryTime time.Duration // wall-clock cap across a batch's attempts
	RetryDelay   time.Duration // base backoff delay, defaults to 50ms
	Progress     func(rows int) // called after each acknowledged batch
}

// Loader performs one table's load. It is single-use: Load may be
// called once.
type Loader struct {
	session *engine.Session
	client  *searchengine.Client
	opts    Options
}

// New builds a loader over a benchmark-catalog session and the search
// catalog's bulk client.
func New(session *engine.Session, client *searchengine.Client, opts Options) *Loader {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1000
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.MaxRetryTime <= 0 {
		opts.MaxRetryTime = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 50 * time.Millisecond
	}
	return &Loader{session: session, client: client, opts: opts}
}

// batch carries either documents ready to submit or the reader's
// terminal error.
type batch struct {
	docs []searchengine.Document
	err  error
	row  int // source row position of err, -1 if not row-scoped
}

// Load runs sourceQuery and indexes every result row, returning the
// number of rows acknowledged by the engine. Delivery is at least
// once: a batch whose acknowledgement is lost may be re-submitted, so
// a failed load can leave partial data behind and a repeated load
// duplicates documents.
func (l *Loader) Load(ctx context.Context, sourceQuery string) (int64, error) {
	rows, err := l.session.Query(ctx, sourceQuery)
	if err != nil {
		return 0, &LoadError{Table: l.opts.Table, Batch: -1, Row: -1, Err: err}
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One batch of lookahead: the reader accumulates the next batch
	// while the current one is in flight.
	batches := make(chan batch, 1)
	go l.read(readCtx, rows, batches)

	var loaded int64
	ordinal := 0
	for b := range batches {
		if b.err != nil {
			cancel()
			drain(batches)
			return loaded, &LoadError{Table: l.opts.Table, Batch: -1, Row: b.row, Err: b.err}
		}
		if err := l.submit(ctx, b.docs); err != nil {
			cancel()
			drain(batches)
			// A per-document rejection names the offending source row:
			// its offset in the batch plus every row already acknowledged.
			row := -1
			var docErr *searchengine.DocumentError
			if errors.As(err, &docErr) {
				row = int(loaded) + docErr.Position
			}
			return loaded, &LoadError{Table: l.opts.Table, Batch: ordinal, Row: row, Err: err}
		}
		loaded += int64(len(b.docs))
		if l.opts.Progress != nil {
			l.opts.Progress(len(b.docs))
		}
		logging.Debug("Indexed batch %d of %s (%d rows)", ordinal, l.opts.Table, len(b.docs))
		ordinal++
	}
	return loaded, nil
}

// read streams rows, converts them, and hands off full batches. It
// owns the row cursor and always closes it.
func (l *Loader) read(ctx context.Context, rows engine.Rows, out chan<- batch) {
	defer close(out)
	defer rows.Close()

	cols := rows.Columns()
	docs := make([]searchengine.Document, 0, l.opts.BatchSize)
	pos := 0

	flush := func() bool {
		if len(docs) == 0 {
			return true
		}
		b := batch{docs: docs, row: -1}
		docs = make([]searchengine.Document, 0, l.opts.BatchSize)
		return send(ctx, out, b)
	}

	for rows.Next() {
		doc, err := documentFrom(cols, rows.Row())
		if err != nil {
			send(ctx, out, batch{err: err, row: pos})
			return
		}
		docs = append(docs, doc)
		pos++
		if len(docs) == l.opts.BatchSize {
			if !flush() {
				return
			}
		}
	}
	if err := rows.Err(); err != nil {
		send(ctx, out, batch{err: err, row: -1})
		return
	}
	flush()
}

func send(ctx context.Context, out chan<- batch, b batch) bool {
	select {
	case out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

func drain(batches <-chan batch) {
	for range batches {
	}
}

// submit indexes one batch, retrying transient failures up to the
// configured attempt count within the configured wall-clock window.
// Permanent failures (document rejections, client errors) are never
// retried.
func (l *Loader) submit(ctx context.Context, docs []searchengine.Document) error {
	attemptCtx, cancel := context.WithTimeout(ctx, l.opts.MaxRetryTime)
	defer cancel()

	return retry.Do(
		func() error {
			return l.client.BulkIndex(attemptCtx, l.opts.Index, docs)
		},
		retry.Context(attemptCtx),
		retry.Attempts(uint(l.opts.MaxRetries)),
		retry.RetryIf(searchengine.IsTransient),
		retry.Delay(l.opts.RetryDelay),
		retry.MaxDelay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logging.Warn("Bulk index of %s failed (attempt %d/%d): %v",
				l.opts.Index, attempt+1, l.opts.MaxRetries, err)
		}),
	)
}
