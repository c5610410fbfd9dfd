package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/emberfield/statline/internal/misc"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Postgres persists readings in Postgres with retryable operations.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.ProtocolViolation:                             {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
	pgerrcode.QueryCanceled:                                 {},
}

// OpenPostgres connects with the lib/pq driver and runs the embedded
// migrations.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an already-open connection without migrating. Used in
// tests.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// Put inserts entries inside one transaction.
func (p *Postgres) Put(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	const q = `
INSERT INTO readings (metric, value, tags, taken_at)
VALUES ($1, $2, $3, $4);`

	attempt := func() error {
		tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()

		for _, e := range entries {
			tags, err := json.Marshal(e.Tags)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, q, e.Metric, e.Value, tags, e.Timestamp); err != nil {
				return err
			}
		}
		return tx.Commit()
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, attempt)
}

// PutMetadata upserts metadata triples.
func (p *Postgres) PutMetadata(ctx context.Context, items []Metadata) error {
	if len(items) == 0 {
		return nil
	}
	const q = `
INSERT INTO metric_metadata (metric, name, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (metric, name)
DO UPDATE SET value=EXCLUDED.value, updated_at=now();`

	attempt := func() error {
		tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()

		for _, it := range items {
			if _, err := tx.ExecContext(ctx, q, it.Metric, it.Name, it.Value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, attempt)
}

// Series loads the stored readings for metric, oldest first. An empty
// metric loads everything.
func (p *Postgres) Series(ctx context.Context, metric string) ([]Entry, error) {
	const qAll = `SELECT metric, value, tags, taken_at FROM readings ORDER BY taken_at`
	const qOne = `SELECT metric, value, tags, taken_at FROM readings WHERE metric=$1 ORDER BY taken_at`

	var out []Entry
	op := func() error {
		var (
			rows *sql.Rows
			err  error
		)
		if metric == "" {
			rows, err = p.db.QueryContext(ctx, qAll)
		} else {
			rows, err = p.db.QueryContext(ctx, qOne, metric)
		}
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		var acc []Entry
		for rows.Next() {
			var (
				e    Entry
				tags []byte
			)
			if err := rows.Scan(&e.Metric, &e.Value, &tags, &e.Timestamp); err != nil {
				return err
			}
			if len(tags) > 0 {
				if err := json.Unmarshal(tags, &e.Tags); err != nil {
					return err
				}
			}
			acc = append(acc, e)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = acc
		return nil
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	if metric != "" && len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Metadata loads every metadata triple sorted by metric then name.
func (p *Postgres) Metadata(ctx context.Context) ([]Metadata, error) {
	const q = `SELECT metric, name, value FROM metric_metadata ORDER BY metric, name`

	var out []Metadata
	op := func() error {
		rows, err := p.db.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		var acc []Metadata
		for rows.Next() {
			var it Metadata
			if err := rows.Scan(&it.Metric, &it.Name, &it.Value); err != nil {
				return err
			}
			acc = append(acc, it)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = acc
		return nil
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping verifies the connection using a short-lived context.
func (p *Postgres) Ping(ctx context.Context) error {
	if p.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	op := func() error {
		return p.db.PingContext(ctx)
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	if strings.HasPrefix(code, "08") {
		return true
	}
	if strings.HasPrefix(code, "40") {
		return true
	}
	return false
}
