package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"api-test-engine/internal/types"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres
	_ "modernc.org/sqlite"               // for sqlite
)

const (
	// DefaultSQLitePath is used when the sqlite driver is selected without a DSN
	DefaultSQLitePath = "data/verdicts.db"

	secureFileMode = 0600
	secureDirMode  = 0700
)

// dialect holds what differs between the supported databases
type dialect struct {
	driverName  string
	placeholder func(n int) string
	schema      string
}

var dialects = map[string]dialect{
	"sqlite": {
		driverName:  "sqlite",
		placeholder: func(int) string { return "?" },
		schema: `CREATE TABLE IF NOT EXISTS verdicts (
			endpoint_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			last_tested_at TEXT,
			submitted_at TEXT NOT NULL,
			outcomes TEXT NOT NULL
		)`,
	},
	"postgres": {
		driverName:  "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		schema: `CREATE TABLE IF NOT EXISTS verdicts (
			endpoint_id VARCHAR(255) PRIMARY KEY,
			status VARCHAR(32) NOT NULL,
			last_tested_at VARCHAR(64),
			submitted_at VARCHAR(64) NOT NULL,
			outcomes TEXT NOT NULL
		)`,
	},
	"mysql": {
		driverName:  "mysql",
		placeholder: func(int) string { return "?" },
		schema: `CREATE TABLE IF NOT EXISTS verdicts (
			endpoint_id VARCHAR(255) PRIMARY KEY,
			status VARCHAR(32) NOT NULL,
			last_tested_at VARCHAR(64),
			submitted_at VARCHAR(64) NOT NULL,
			outcomes LONGTEXT NOT NULL
		)`,
	},
	"sqlserver": {
		driverName:  "sqlserver",
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		schema: `IF OBJECT_ID('verdicts', 'U') IS NULL
		CREATE TABLE verdicts (
			endpoint_id NVARCHAR(255) PRIMARY KEY,
			status NVARCHAR(32) NOT NULL,
			last_tested_at NVARCHAR(64),
			submitted_at NVARCHAR(64) NOT NULL,
			outcomes NVARCHAR(MAX) NOT NULL
		)`,
	},
}

// Store persists endpoint verdicts in a SQL database
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database and creates the schema if needed
func Open(driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	if driver == "sqlite" {
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		if err := prepareSQLiteFile(dsn); err != nil {
			return nil, err
		}
	} else if dsn == "" {
		return nil, fmt.Errorf("store driver %s requires a dsn", driver)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY under concurrent saves
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dialect: d}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// prepareSQLiteFile creates the database file with owner-only permissions
func prepareSQLiteFile(path string) error {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), secureDirMode); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, secureFileMode)
	if err != nil {
		return fmt.Errorf("failed to create database file: %w", err)
	}
	return f.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) query(q string) string {
	n := 0
	var b strings.Builder
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save replaces the stored verdict for an endpoint
func (s *Store) Save(ctx context.Context, v types.EndpointVerdict) error {
	outcomes, err := json.Marshal(v.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to encode outcomes: %w", err)
	}
	var lastTested sql.NullString
	if v.LastTestedAt != nil {
		lastTested = sql.NullString{String: v.LastTestedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.query(`DELETE FROM verdicts WHERE endpoint_id = ?`), v.EndpointID); err != nil {
		return fmt.Errorf("failed to replace verdict: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		s.query(`INSERT INTO verdicts (endpoint_id, status, last_tested_at, submitted_at, outcomes) VALUES (?, ?, ?, ?, ?)`),
		v.EndpointID, string(v.Status), lastTested, v.SubmittedAt.UTC().Format(time.RFC3339Nano), string(outcomes))
	if err != nil {
		return fmt.Errorf("failed to insert verdict: %w", err)
	}
	return tx.Commit()
}

// Load returns every stored verdict
func (s *Store) Load(ctx context.Context) ([]types.EndpointVerdict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT endpoint_id, status, last_tested_at, submitted_at, outcomes FROM verdicts ORDER BY endpoint_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []types.EndpointVerdict
	for rows.Next() {
		var (
			v          types.EndpointVerdict
			status     string
			lastTested sql.NullString
			submitted  string
			outcomes   string
		)
		if err := rows.Scan(&v.EndpointID, &status, &lastTested, &submitted, &outcomes); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		v.Status = types.VerdictStatus(status)

		if lastTested.Valid {
			t, err := time.Parse(time.RFC3339Nano, lastTested.String)
			if err != nil {
				return nil, fmt.Errorf("bad last_tested_at for %s: %w", v.EndpointID, err)
			}
			v.LastTestedAt = &t
		}
		if v.SubmittedAt, err = time.Parse(time.RFC3339Nano, submitted); err != nil {
			return nil, fmt.Errorf("bad submitted_at for %s: %w", v.EndpointID, err)
		}
		if err := json.Unmarshal([]byte(outcomes), &v.Outcomes); err != nil {
			return nil, fmt.Errorf("bad outcomes for %s: %w", v.EndpointID, err)
		}
		if v.Outcomes == nil {
			v.Outcomes = []types.Outcome{}
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// Delete removes the stored verdict for an endpoint. Deleting an unknown
// endpoint is not an error.
func (s *Store) Delete(ctx context.Context, endpointID string) error {
	_, err := s.db.ExecContext(ctx, s.query(`DELETE FROM verdicts WHERE endpoint_id = ?`), endpointID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to delete verdict: %w", err)
	}
	return nil
}
