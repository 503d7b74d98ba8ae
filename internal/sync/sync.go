// Package sync implements the full-replace mirror of work records into a
// remote table: resolve doc and table by name, extract the current rows
// from the database, purge the remote table, upload the fresh rows.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/acordero/worksync/internal/coda"
	"github.com/acordero/worksync/internal/model"
)

// Default batch sizes and retry bounds. Deletes and inserts have
// independent batch sizes because the service accepts up to 50 row IDs
// per delete but only 10 rows per insert.
const (
	DefaultDeleteBatchSize = 50
	DefaultInsertBatchSize = 10
	DefaultMaxAttempts     = 5
)

// Client is the remote API surface the syncer consumes.
type Client interface {
	ListDocs(ctx context.Context) ([]coda.Doc, error)
	ListTables(ctx context.Context, docID string) ([]coda.Table, error)
	ListRowIDs(ctx context.Context, docID, tableID string) ([]string, error)
	DeleteRows(ctx context.Context, docID, tableID string, rowIDs []string) error
	InsertRows(ctx context.Context, docID, tableID string, rows []coda.Row) error
}

// Source provides the local rows to mirror.
type Source interface {
	FetchSyncRows(ctx context.Context) ([]model.SyncRow, error)
}

// Options configures a Syncer. Zero-valued fields get defaults.
type Options struct {
	// DocName and TableName are the human-readable remote targets,
	// matched case-sensitively.
	DocName   string
	TableName string

	DeleteBatchSize int
	InsertBatchSize int

	// MaxAttempts bounds how many times a rate-limited insert batch is
	// submitted before being abandoned.
	MaxAttempts int

	// Backoff maps a zero-based attempt number to a wait duration.
	// Defaults to 2^attempt seconds.
	Backoff func(attempt int) time.Duration

	// Sleep is the wait function used between retries. Tests inject a
	// recording fake here.
	Sleep func(time.Duration)

	Logger *slog.Logger
}

// Syncer runs one full-replace synchronization pass. Execution is
// strictly sequential; the only suspension is the backoff sleep.
type Syncer struct {
	client Client
	source Source
	opts   Options
	log    *slog.Logger
}

// New creates a Syncer for the given remote client and local source.
func New(client Client, source Source, opts Options) *Syncer {
	if opts.DeleteBatchSize <= 0 {
		opts.DeleteBatchSize = DefaultDeleteBatchSize
	}
	if opts.InsertBatchSize <= 0 {
		opts.InsertBatchSize = DefaultInsertBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		}
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Syncer{client: client, source: source, opts: opts, log: log}
}

// Run executes one sync pass: resolve names, extract, purge, insert.
// Name resolution and extraction failures abort before any remote
// mutation. Purge and insert failures are per-batch and never abort
// the run; a failed purge batch can leave duplicates behind after
// insertion, which is an accepted limitation of the best-effort purge.
func (s *Syncer) Run(ctx context.Context) error {
	docID, err := s.resolveDoc(ctx)
	if err != nil {
		return err
	}

	tableID, err := s.resolveTable(ctx, docID)
	if err != nil {
		return err
	}

	rows, err := s.source.FetchSyncRows(ctx)
	if err != nil {
		return fmt.Errorf("extracting work records: %w", err)
	}
	s.log.Info("extracted work records", "count", len(rows))

	if err := s.purge(ctx, docID, tableID); err != nil {
		return err
	}

	s.insert(ctx, docID, tableID, rows)
	return nil
}

// resolveDoc finds the target document's ID by exact name match.
func (s *Syncer) resolveDoc(ctx context.Context) (string, error) {
	docs, err := s.client.ListDocs(ctx)
	if err != nil {
		return "", fmt.Errorf("listing docs: %w", err)
	}

	for _, d := range docs {
		if d.Name == s.opts.DocName {
			s.log.Info("resolved doc", "name", d.Name, "id", d.ID)
			return d.ID, nil
		}
	}
	return "", &NotFoundError{Kind: "doc", Name: s.opts.DocName}
}

// resolveTable finds the target table's ID within the document by
// exact name match.
func (s *Syncer) resolveTable(ctx context.Context, docID string) (string, error) {
	tables, err := s.client.ListTables(ctx, docID)
	if err != nil {
		return "", fmt.Errorf("listing tables of doc %s: %w", docID, err)
	}

	for _, t := range tables {
		if t.Name == s.opts.TableName {
			s.log.Info("resolved table", "name", t.Name, "id", t.ID)
			return t.ID, nil
		}
	}
	return "", &NotFoundError{Kind: "table", Name: s.opts.TableName}
}

// purge deletes every current remote row in batches. Listing failures
// are fatal (nothing has been mutated yet); a rejected delete batch is
// logged and skipped, leaving those rows in place.
func (s *Syncer) purge(ctx context.Context, docID, tableID string) error {
	ids, err := s.client.ListRowIDs(ctx, docID, tableID)
	if err != nil {
		return fmt.Errorf("listing remote rows: %w", err)
	}
	s.log.Info("purging remote rows", "count", len(ids))

	for start := 0; start < len(ids); start += s.opts.DeleteBatchSize {
		batch := ids[start:min(start+s.opts.DeleteBatchSize, len(ids))]

		if err := s.client.DeleteRows(ctx, docID, tableID, batch); err != nil {
			s.log.Error("delete batch not accepted, rows kept",
				"rows", len(batch), "error", err)
			continue
		}
		s.log.Info("deleted rows", "rows", len(batch))
	}

	return nil
}

// insert uploads rows in batches. Each batch gets its own fresh retry
// allowance; nothing is shared across batches.
func (s *Syncer) insert(ctx context.Context, docID, tableID string, rows []model.SyncRow) {
	for start := 0; start < len(rows); start += s.opts.InsertBatchSize {
		batch := rows[start:min(start+s.opts.InsertBatchSize, len(rows))]
		s.submitBatch(ctx, docID, tableID, batch)
	}
}

// submitBatch uploads one batch, retrying on rate limiting with
// exponential backoff. A submitted batch ends accepted, rejected, or
// abandoned once MaxAttempts rate-limited submissions are used up.
// Every terminal state other than accepted is logged and swallowed:
// a lost batch never fails the run.
func (s *Syncer) submitBatch(ctx context.Context, docID, tableID string, batch []model.SyncRow) {
	payload := make([]coda.Row, len(batch))
	for i, row := range batch {
		payload[i] = encodeRow(row)
	}

	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		err := s.client.InsertRows(ctx, docID, tableID, payload)
		if err == nil {
			s.log.Info("inserted rows", "rows", len(batch))
			return
		}

		if coda.IsRateLimited(err) {
			wait := s.opts.Backoff(attempt)
			s.log.Warn("rate limited, backing off",
				"attempt", attempt, "wait", wait)
			s.opts.Sleep(wait)
			continue
		}

		s.log.Error("insert batch rejected, rows dropped",
			"rows", len(batch), "error", err)
		return
	}

	s.log.Error("insert batch abandoned after max attempts",
		"rows", len(batch), "attempts", s.opts.MaxAttempts)
}

// encodeRow serializes a SyncRow into wire cells, walking the canonical
// column order and omitting absent fields. Dates become YYYY-MM-DD
// strings; everything else passes through unchanged.
func encodeRow(row model.SyncRow) coda.Row {
	cells := make([]coda.Cell, 0, len(row))
	for _, col := range model.Columns {
		v, ok := row[col]
		if !ok {
			continue
		}
		if t, isTime := v.(time.Time); isTime {
			v = t.Format(model.DateFormat)
		}
		cells = append(cells, coda.Cell{Column: col, Value: v})
	}
	return coda.Row{Cells: cells}
}

// NotFoundError indicates that no remote item matched the configured
// name exactly.
type NotFoundError struct {
	Kind string // "doc" or "table"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s named %q", e.Kind, e.Name)
}

// IsNotFound reports whether err (or any error in its chain) is a
// NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
