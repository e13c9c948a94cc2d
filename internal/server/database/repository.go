package database

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"dirplan/internal/core"
	"dirplan/internal/template"

	"github.com/jackc/pgx/v5"
)

// TemplateRepository keeps templates in PostgreSQL, one row per name. It
// implements template.Store.
type TemplateRepository struct {
	db *DB
}

var _ template.Store = (*TemplateRepository)(nil)

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Load returns every stored template.
func (r *TemplateRepository) Load(ctx context.Context) (template.Document, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	doc := make(template.Document, len(records))
	for _, rec := range records {
		doc[rec.Name] = rec.Structure
	}
	return doc, nil
}

// templatesLockKey is the advisory lock taken by every template write.
const templatesLockKey = 0x6469_7270_6c61_6e // "dirplan"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Save makes the table match doc. Rows whose structure is unchanged keep
// their updated_at.
func (r *TemplateRepository) Save(ctx context.Context, doc template.Document) error {
	return r.Update(ctx, func(current template.Document) error {
		clear(current)
		maps.Copy(current, doc)
		return nil
	})
}

// Update runs fn in one transaction under an advisory lock, then writes
// only the rows fn added, changed or removed.
func (r *TemplateRepository) Update(ctx context.Context, fn func(doc template.Document) error) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(templatesLockKey)); err != nil {
		return fmt.Errorf("failed to lock templates: %w", err)
	}

	records, err := listTemplates(ctx, tx)
	if err != nil {
		return err
	}
	doc := make(template.Document, len(records))
	before := make(map[string]string, len(records))
	for _, rec := range records {
		doc[rec.Name] = rec.Structure
		before[rec.Name] = rec.Fingerprint
	}

	if err := fn(doc); err != nil {
		return err
	}

	for name := range before {
		if _, ok := doc[name]; ok {
			continue
		}
		if _, err := tx.Exec(ctx, `DELETE FROM templates WHERE name = $1`, name); err != nil {
			return fmt.Errorf("failed to delete template %q: %w", name, err)
		}
	}

	for _, name := range doc.Names() {
		tree := doc[name]
		fp := template.Fingerprint(tree)
		if old, ok := before[name]; ok && old == fp {
			continue
		}
		body, err := json.Marshal(tree)
		if err != nil {
			return fmt.Errorf("failed to encode template %q: %w", name, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO templates (name, structure, fingerprint)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE
			SET structure = EXCLUDED.structure,
				fingerprint = EXCLUDED.fingerprint,
				updated_at = NOW()
		`, name, body, fp)
		if err != nil {
			return fmt.Errorf("failed to save template %q: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit templates: %w", err)
	}
	return nil
}

// List returns all template rows ordered by name.
func (r *TemplateRepository) List(ctx context.Context) ([]*TemplateRecord, error) {
	return listTemplates(ctx, r.db.Pool)
}

func listTemplates(ctx context.Context, q querier) ([]*TemplateRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT name, structure, fingerprint, created_at, updated_at
		FROM templates ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var records []*TemplateRecord
	for rows.Next() {
		rec, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return records, nil
}

// GetByFingerprint returns templates whose structure hashes to fingerprint.
func (r *TemplateRepository) GetByFingerprint(ctx context.Context, fingerprint string) ([]*TemplateRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT name, structure, fingerprint, created_at, updated_at
		FROM templates WHERE fingerprint = $1 ORDER BY name
	`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates by fingerprint: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*TemplateRecord, error) {
		return scanTemplate(row)
	})
}

func scanTemplate(row pgx.Row) (*TemplateRecord, error) {
	rec := &TemplateRecord{}
	var body []byte
	if err := row.Scan(&rec.Name, &body, &rec.Fingerprint, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}
	tree, err := core.DecodeTree(body)
	if err != nil {
		return nil, fmt.Errorf("%w: template %q: %v", template.ErrMalformed, rec.Name, err)
	}
	rec.Structure = tree
	return rec, nil
}

// GetStats returns aggregate template statistics.
func (r *TemplateRepository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT fingerprint), MAX(updated_at)
		FROM templates
	`).Scan(&stats.TotalTemplates, &stats.DistinctStructures, &stats.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
