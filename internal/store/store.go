// Package store is the embedded relational backing for the symbol graph:
// a three-table SQLite schema (symbols, refs, files), a single-writer
// transactional discipline, and the typed query methods the LSP-facing
// layer reads from. Store never parses source itself.
package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	goclangderrors "github.com/lc168/goclangd/internal/errors"
	"github.com/lc168/goclangd/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS symbols (
	usr  TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS refs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	usr        TEXT NOT NULL,
	caller_usr TEXT,
	file_path  TEXT NOT NULL,
	s_line     INTEGER NOT NULL,
	s_col      INTEGER NOT NULL,
	e_line     INTEGER NOT NULL,
	e_col      INTEGER NOT NULL,
	role       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	file_path TEXT PRIMARY KEY,
	mtime     REAL NOT NULL,
	status    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_refs_usr ON refs(usr);
CREATE INDEX IF NOT EXISTS idx_refs_caller_usr ON refs(caller_usr);
CREATE INDEX IF NOT EXISTS idx_refs_file_role ON refs(file_path, role);
`

// retry parameters from the Store contract: base delay, attempt budget,
// and jitter ceiling.
const (
	retryBase       = 50 * time.Millisecond
	retryMaxAttempt = 10
	retryJitterMax  = 100 * time.Millisecond
	busyTimeoutMs   = 60000
)

// Store wraps a single SQLite database file implementing spec.md §4.1.
type Store struct {
	db        *sql.DB
	isPrimary bool
}

// Open opens path. If isPrimary, the schema is created and the
// connection is set to WAL mode with relaxed-durability synchronous
// flushing and a long busy timeout; a non-primary opener attaches in the
// same pragmas but skips DDL. Primary openers hold exactly one
// connection (SetMaxOpenConns(1)) so writes are serialized by the
// driver, matching the single-writer contract; non-primary (read-only)
// openers may use more.
func Open(path string, isPrimary bool) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goclangderrors.NewStoreFatalError("open", err)
	}

	if isPrimary {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMs),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, goclangderrors.NewStoreFatalError("pragma", err)
		}
	}

	s := &Store{db: db, isPrimary: isPrimary}

	if isPrimary {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, goclangderrors.NewStoreFatalError("schema", err)
		}
	}

	return s, nil
}

// EnableSpeedMode trades durability for throughput during bulk initial
// indexing: no fsync on commit, an in-memory journal, and a large page
// cache. Only safe on the primary (single-writer) connection.
func (s *Store) EnableSpeedMode() error {
	pragmas := []string{
		"PRAGMA synchronous=OFF",
		"PRAGMA journal_mode=MEMORY",
		"PRAGMA cache_size=-100000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return goclangderrors.NewStoreFatalError("speed_mode", err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withRetry runs fn, retrying on SQLITE_BUSY/SQLITE_LOCKED with
// exponential backoff (base 50ms * 2^i) plus uniform jitter up to
// 100ms, up to retryMaxAttempt attempts. This replaces the
// retry-on-exception decorator pattern with an explicit helper over a
// result, per the Store's concurrency contract.
func withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < retryMaxAttempt; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isBusyOrLocked(err) {
			return err
		}
		lastErr = err
		delay := retryBase * time.Duration(1<<uint(attempt))
		delay += time.Duration(rand.Int63n(int64(retryJitterMax)))
		time.Sleep(delay)
	}
	return goclangderrors.NewContentionError(op, lastErr)
}

func isBusyOrLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range []string{"SQLITE_BUSY", "SQLITE_LOCKED", "database is locked", "busy"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// SaveIndexResult is the atomic unit of reindexing one file: delete prior
// refs for file, upsert symbols (INSERT OR IGNORE), insert refs, and
// upsert FileStatus=completed, all in one transaction that it always
// commits itself. Commit batching (every 50 applied results, per the
// Coordinator contract) goes through Begin and SaveIndexResultTx
// instead, which share one caller-owned *sql.Tx across several files.
func (s *Store) SaveIndexResult(file string, mtime float64, symbols []types.Symbol, refs []types.Ref) error {
	return withRetry("save_index_result", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := applyIndexResult(tx, file, mtime, symbols, refs); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// SaveIndexResultTx applies the same atomic unit as SaveIndexResult but
// against a caller-owned transaction, letting the Coordinator batch many
// files into one commit (spec.md §4.4 step 6: "every 50 applied results,
// commit").
func SaveIndexResultTx(tx *sql.Tx, file string, mtime float64, symbols []types.Symbol, refs []types.Ref) error {
	return applyIndexResult(tx, file, mtime, symbols, refs)
}

func applyIndexResult(tx *sql.Tx, file string, mtime float64, symbols []types.Symbol, refs []types.Ref) error {
	if _, err := tx.Exec(`DELETE FROM refs WHERE file_path = ?`, file); err != nil {
		return fmt.Errorf("delete refs: %w", err)
	}

	for _, sym := range symbols {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO symbols (usr, name, kind) VALUES (?, ?, ?)`,
			sym.USR, sym.Name, string(sym.Kind),
		); err != nil {
			return fmt.Errorf("upsert symbol: %w", err)
		}
	}

	for _, r := range refs {
		var callerUSR interface{}
		if r.CallerUSR != "" {
			callerUSR = r.CallerUSR
		}
		if _, err := tx.Exec(
			`INSERT INTO refs (usr, caller_usr, file_path, s_line, s_col, e_line, e_col, role)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.USR, callerUSR, r.FilePath, r.StartLine, r.StartCol, r.EndLine, r.EndCol, string(r.Role),
		); err != nil {
			return fmt.Errorf("insert ref: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO files (file_path, mtime, status) VALUES (?, ?, 'completed')
		 ON CONFLICT(file_path) DO UPDATE SET mtime=excluded.mtime, status='completed'`,
		file, mtime,
	); err != nil {
		return fmt.Errorf("upsert file status: %w", err)
	}

	return nil
}

// Begin exposes the primary connection's transaction handle so the
// Coordinator can batch SaveIndexResultTx calls across several files
// before committing.
func (s *Store) Begin() (*sql.Tx, error) {
	return s.db.Begin()
}

// UpdateFileStatus records a file as indexing or failed. This acquires
// its own connection from the primary pool, so callers holding an open
// *sql.Tx from Begin (e.g. the Coordinator's batched apply loop) must
// use UpdateFileStatusTx instead -- calling this while that tx is open
// would deadlock a single-connection (SetMaxOpenConns(1)) primary Store.
func (s *Store) UpdateFileStatus(file string, mtime float64, status types.IndexStatus) error {
	return withRetry("update_file_status", func() error {
		_, err := s.db.Exec(
			`INSERT INTO files (file_path, mtime, status) VALUES (?, ?, ?)
			 ON CONFLICT(file_path) DO UPDATE SET mtime=excluded.mtime, status=excluded.status`,
			file, mtime, string(status),
		)
		return err
	})
}

// UpdateFileStatusTx applies the same write as UpdateFileStatus but
// against a caller-owned transaction, so it can run inside the same
// batch the Coordinator's SaveIndexResultTx calls share.
func UpdateFileStatusTx(tx *sql.Tx, file string, mtime float64, status types.IndexStatus) error {
	_, err := tx.Exec(
		`INSERT INTO files (file_path, mtime, status) VALUES (?, ?, ?)
		 ON CONFLICT(file_path) DO UPDATE SET mtime=excluded.mtime, status=excluded.status`,
		file, mtime, string(status),
	)
	return err
}

// CompletedMTimes returns the {file_path: mtime} set for every file with
// status='completed', used by the Coordinator to compute the
// incremental worklist.
func (s *Store) CompletedMTimes() (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT file_path, mtime FROM files WHERE status = 'completed'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var path string
		var mtime float64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, err
		}
		out[path] = mtime
	}
	return out, rows.Err()
}
