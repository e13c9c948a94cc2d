package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the template document in a single row.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// execQuerier is satisfied by both *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS template_document (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		body TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) (Document, error) {
	return loadSQLiteDocument(ctx, s.db)
}

func (s *SQLiteStore) Save(ctx context.Context, doc Document) error {
	return saveSQLiteDocument(ctx, s.db, doc)
}

// Update runs fn inside one transaction while holding the store's lock.
func (s *SQLiteStore) Update(ctx context.Context, fn func(doc Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	load := func(ctx context.Context) (Document, error) { return loadSQLiteDocument(ctx, tx) }
	changed := false
	save := func(ctx context.Context, doc Document) error {
		changed = true
		return saveSQLiteDocument(ctx, tx, doc)
	}
	if err := updateDocument(ctx, load, save, fn); err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit templates: %w", err)
	}
	return nil
}

func loadSQLiteDocument(ctx context.Context, q execQuerier) (Document, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM template_document WHERE id = 1`).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	return decodeDocument([]byte(body))
}

func saveSQLiteDocument(ctx context.Context, q execQuerier, doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO template_document (id, body, fingerprint, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at`,
		string(body), DocumentFingerprint(doc), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save templates: %w", err)
	}
	return nil
}
