// Package ledger keeps a SQLite history of migration runs.
//
// Every completed run is recorded with its full id mapping, the files it
// moved and the references it dropped, so an old id, a new id or a token
// can be traced long after the JSON migration log has been deleted.
//
// Architecture:
//   - Database file: .specmigrate/ledger.db
//   - WAL mode with a busy timeout, one writer
//   - Schema: runs, mappings, file_ops, dropped_refs
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/speclayout/specmigrate/internal/migrate"
)

// DB wraps the ledger database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Run is one recorded migration run.
type Run struct {
	ID        int64
	StartedAt time.Time
	SpecsDir  string
	BackupDir string
	Documents int
}

// Mapping is one document's identity in one run.
type Mapping struct {
	RunID       int64
	StartedAt   time.Time
	OldID       string
	NewID       string
	QualifiedID string
	Token       string
	Type        string
	OldPath     string
	NewPath     string
}

// Open creates or opens the ledger at path and initializes its schema.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := ledger.Open(".specmigrate/ledger.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext is Open with context support.
func OpenContext(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.InitSchemaContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. Safe to call
// multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		specs_dir TEXT NOT NULL,
		backup_dir TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mappings (
		run_id INTEGER NOT NULL,
		old_id TEXT NOT NULL,
		new_id TEXT NOT NULL,
		qualified_id TEXT NOT NULL,
		token TEXT NOT NULL,
		type TEXT,
		old_path TEXT,
		new_path TEXT,
		orphan_reason TEXT,
		PRIMARY KEY (run_id, old_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS file_ops (
		run_id INTEGER NOT NULL,
		kind TEXT NOT NULL,  -- spec, context
		old_id TEXT NOT NULL,
		old_path TEXT NOT NULL,
		new_path TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS dropped_refs (
		run_id INTEGER NOT NULL,
		old_id TEXT NOT NULL,
		field TEXT NOT NULL,
		ref TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_mappings_new ON mappings(new_id);
	CREATE INDEX IF NOT EXISTS idx_mappings_qualified ON mappings(qualified_id);
	CREATE INDEX IF NOT EXISTS idx_mappings_token ON mappings(token);
	CREATE INDEX IF NOT EXISTS idx_file_ops_run ON file_ops(run_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return nil
}

// Record stores a finished run. It implements migrate.Recorder.
func (db *DB) Record(ctx context.Context, l *migrate.Log) error {
	_, err := db.RecordContext(ctx, l)
	return err
}

// RecordContext stores a finished run and returns its id.
func (db *DB) RecordContext(ctx context.Context, l *migrate.Log) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, specs_dir, backup_dir) VALUES (?, ?, ?)`,
		l.Timestamp.UTC().Format(time.RFC3339), l.SpecsDir, l.BackupDir)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	specOps := make(map[string]migrate.FileOp)
	for _, op := range l.Migrations {
		if op.Type == migrate.OpSpec {
			specOps[op.OldID] = op
		}
	}
	orphans := make(map[string]string)
	for _, o := range l.Orphans {
		orphans[o.OldID] = o.Reason
	}

	for oldID, newID := range l.SpecMappings {
		op := specOps[oldID]
		_, err := tx.ExecContext(ctx, `
		INSERT INTO mappings (run_id, old_id, new_id, qualified_id, token, type, old_path, new_path, orphan_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, oldID, newID, l.QualifiedIDs[oldID], l.UniqueIDs[oldID],
			nullString(string(op.SpecType)), nullString(op.OldPath), nullString(op.NewPath), nullString(orphans[oldID]))
		if err != nil {
			return 0, fmt.Errorf("failed to insert mapping %s: %w", oldID, err)
		}
	}

	for _, op := range l.Migrations {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO file_ops (run_id, kind, old_id, old_path, new_path) VALUES (?, ?, ?, ?, ?)`,
			runID, string(op.Type), op.OldID, op.OldPath, op.NewPath)
		if err != nil {
			return 0, fmt.Errorf("failed to insert file op %s: %w", op.OldPath, err)
		}
	}

	for _, d := range l.DroppedRefs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dropped_refs (run_id, old_id, field, ref) VALUES (?, ?, ?, ?)`,
			runID, d.OldID, d.Field, d.Ref)
		if err != nil {
			return 0, fmt.Errorf("failed to insert dropped reference: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return runID, nil
}

// Lookup finds every mapping whose old id, new id, qualified id or token
// equals id, newest run first.
func (db *DB) Lookup(ctx context.Context, id string) ([]Mapping, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT m.run_id, r.started_at, m.old_id, m.new_id, m.qualified_id, m.token,
	       COALESCE(m.type, ''), COALESCE(m.old_path, ''), COALESCE(m.new_path, '')
	FROM mappings m
	JOIN runs r ON r.id = m.run_id
	WHERE m.old_id = ?1 OR m.new_id = ?1 OR m.qualified_id = ?1 OR m.token = ?1
	ORDER BY m.run_id DESC, m.qualified_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var m Mapping
		var started string
		if err := rows.Scan(&m.RunID, &started, &m.OldID, &m.NewID, &m.QualifiedID, &m.Token,
			&m.Type, &m.OldPath, &m.NewPath); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		m.StartedAt, _ = time.Parse(time.RFC3339, started)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Runs lists recorded runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT r.id, r.started_at, r.specs_dir, r.backup_dir,
	       (SELECT COUNT(*) FROM mappings m WHERE m.run_id = r.id)
	FROM runs r
	ORDER BY r.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.SpecsDir, &r.BackupDir, &r.Documents); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DroppedRefs returns the references a run removed.
func (db *DB) DroppedRefs(ctx context.Context, runID int64) ([]migrate.DroppedRef, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT old_id, field, ref FROM dropped_refs WHERE run_id = ? ORDER BY old_id, field, ref`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dropped references: %w", err)
	}
	defer rows.Close()

	var out []migrate.DroppedRef
	for rows.Next() {
		var d migrate.DroppedRef
		if err := rows.Scan(&d.OldID, &d.Field, &d.Ref); err != nil {
			return nil, fmt.Errorf("failed to scan dropped reference: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
