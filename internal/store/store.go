package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/acordero/worksync/internal/model"
)

// Store reads work records from the relational source. The source is
// treated as read-only; this process never mutates it.
type Store struct {
	db *sqlx.DB
}

// DriverFor picks a database/sql driver name from the DSN. Postgres URLs
// go through the pgx stdlib driver, anything else is treated as a SQLite
// path (which covers :memory: in tests).
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx"
	}
	return "sqlite"
}

// Open connects to the data source and verifies it is reachable.
// An unreachable source yields a ConnectionError.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = DriverFor(dsn)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectionError{Err: err}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// syncQuery denormalizes work items with their project and responsible
// party. Both joins are LEFT JOINs: a work item with no matching project
// or responsible still produces a row, with those fields absent.
const syncQuery = `
SELECT
	w.name           AS work_name,
	p.name           AS project_name,
	w.status         AS status,
	w.start_date     AS start_date,
	w.end_date       AS end_date,
	r.name           AS responsible_name,
	r.email          AS responsible_email,
	w.phase          AS phase
FROM work_items w
LEFT JOIN projects     p ON w.project_id = p.id
LEFT JOIN responsibles r ON w.responsible_id = r.id
ORDER BY w.id`

// syncRecord is the scan target for syncQuery. Dates go through
// looseDate so that malformed source values become absent, not errors.
type syncRecord struct {
	WorkName         sql.NullString `db:"work_name"`
	ProjectName      sql.NullString `db:"project_name"`
	Status           sql.NullString `db:"status"`
	StartDate        looseDate      `db:"start_date"`
	EndDate          looseDate      `db:"end_date"`
	ResponsibleName  sql.NullString `db:"responsible_name"`
	ResponsibleEmail sql.NullString `db:"responsible_email"`
	Phase            sql.NullString `db:"phase"`
}

// FetchSyncRows loads every work item as a flattened SyncRow, one per
// work item regardless of missing joins. The derived Year column is
// filled from the start date when one is present.
func (s *Store) FetchSyncRows(ctx context.Context) ([]model.SyncRow, error) {
	rows, err := s.db.QueryxContext(ctx, syncQuery)
	if err != nil {
		if pingErr := s.db.PingContext(ctx); pingErr != nil {
			return nil, &ConnectionError{Err: pingErr}
		}
		return nil, &SchemaError{Err: err}
	}
	defer rows.Close()

	var out []model.SyncRow
	for rows.Next() {
		var rec syncRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, &SchemaError{Err: err}
		}
		out = append(out, rec.toSyncRow())
	}
	if err := rows.Err(); err != nil {
		return nil, &ConnectionError{Err: err}
	}

	return out, nil
}

// toSyncRow flattens a scanned record into a SyncRow, setting only the
// fields that have values.
func (r syncRecord) toSyncRow() model.SyncRow {
	row := model.SyncRow{}

	setString(row, model.ColWorkItem, r.WorkName)
	setString(row, model.ColProject, r.ProjectName)
	setString(row, model.ColStatus, r.Status)
	setString(row, model.ColResponsible, r.ResponsibleName)
	setString(row, model.ColEmail, r.ResponsibleEmail)
	setString(row, model.ColPhase, r.Phase)

	if r.StartDate.Valid {
		row[model.ColStartDate] = r.StartDate.Time
		row[model.ColYear] = r.StartDate.Time.Year()
	}
	if r.EndDate.Valid {
		row[model.ColEndDate] = r.EndDate.Time
	}

	return row
}

func setString(row model.SyncRow, col string, v sql.NullString) {
	if v.Valid {
		row[col] = v.String
	}
}

// dateLayouts are the accepted text forms for date columns, tried in
// order. Postgres DATE columns arrive as time.Time and skip parsing.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// looseDate scans a date column leniently: NULL and unparseable values
// both come out as not-valid rather than failing the scan.
type looseDate struct {
	Time  time.Time
	Valid bool
}

func (d *looseDate) Scan(src any) error {
	d.Time, d.Valid = time.Time{}, false

	switch v := src.(type) {
	case nil:
	case time.Time:
		d.Time, d.Valid = v, true
	case []byte:
		d.parse(string(v))
	case string:
		d.parse(v)
	}
	return nil
}

func (d *looseDate) parse(s string) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time, d.Valid = t, true
			return
		}
	}
}

// ConnectionError indicates the data source could not be reached.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database unreachable: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SchemaError indicates the source schema is missing tables or columns
// the sync query expects.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected source schema: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
