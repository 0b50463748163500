package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enrichment_ledger (
	id            TEXT PRIMARY KEY,
	record_id     TEXT NOT NULL,
	tenant_id     TEXT NOT NULL,
	field         TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	disposition   TEXT NOT NULL,
	decision      TEXT NOT NULL,
	applied_value TEXT,
	confidence    REAL NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS review_items (
	id          TEXT PRIMARY KEY,
	record_id   TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	field       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	item        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_ledger_record_id ON enrichment_ledger(record_id);
CREATE INDEX IF NOT EXISTS idx_ledger_disposition ON enrichment_ledger(disposition);
CREATE INDEX IF NOT EXISTS idx_ledger_tenant_id ON enrichment_ledger(tenant_id);
CREATE INDEX IF NOT EXISTS idx_review_items_status ON review_items(status);
CREATE INDEX IF NOT EXISTS idx_review_items_record_field ON review_items(record_id, field);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordEntry(ctx context.Context, entry *model.LedgerEntry) error {
	valueJSON, err := marshalValue(entry.AppliedValue)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal applied value")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichment_ledger (id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RecordID, entry.TenantID, entry.Field, entry.ContentHash,
		string(entry.Disposition), string(entry.Decision), valueJSON, entry.Confidence,
		entry.CreatedAt, entry.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert ledger entry")
}

func (s *SQLiteStore) UpdateDisposition(ctx context.Context, entryID string, disposition model.Disposition) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_ledger SET disposition = ?, updated_at = ? WHERE id = ?`,
		string(disposition), time.Now().UTC(), entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update disposition %s", entryID)
	}
	return checkRowsAffected(res, "ledger entry", entryID)
}

func (s *SQLiteStore) Apply(ctx context.Context, entryID string, value any) error {
	valueJSON, err := marshalValue(value)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal applied value")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_ledger SET applied_value = ?, disposition = ?, updated_at = ? WHERE id = ?`,
		valueJSON, string(model.DispositionApplied), time.Now().UTC(), entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply %s", entryID)
	}
	return checkRowsAffected(res, "ledger entry", entryID)
}

func (s *SQLiteStore) GetEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at
		 FROM enrichment_ledger WHERE id = ?`,
		entryID,
	)
	return scanEntry(row)
}

func (s *SQLiteStore) GetByRecord(ctx context.Context, recordID string) ([]model.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at
		 FROM enrichment_ledger WHERE record_id = ? ORDER BY created_at DESC`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get by record")
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *SQLiteStore) ListByDisposition(ctx context.Context, disposition model.Disposition, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at
		 FROM enrichment_ledger WHERE disposition = ? ORDER BY created_at DESC LIMIT ?`,
		string(disposition), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list by disposition")
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *SQLiteStore) SaveReviewItem(ctx context.Context, item *model.ReviewItem) error {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal review item")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_items (id, record_id, tenant_id, field, status, item, created_at, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Request.RecordID, item.Request.TenantID, item.Request.Field,
		string(item.Status), string(itemJSON), item.CreatedAt, item.ResolvedAt,
	)
	return eris.Wrap(err, "sqlite: insert review item")
}

func (s *SQLiteStore) GetReviewItem(ctx context.Context, itemID string) (*model.ReviewItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT item FROM review_items WHERE id = ?`,
		itemID,
	)
	return scanReviewItem(row)
}

func (s *SQLiteStore) ListReviewItems(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error) {
	query := `SELECT item FROM review_items WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list review items")
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list review items iterate")
}

func (s *SQLiteStore) UpdateReviewItem(ctx context.Context, item *model.ReviewItem) error {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal review item")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE review_items SET status = ?, item = ?, resolved_at = ? WHERE id = ?`,
		string(item.Status), string(itemJSON), item.ResolvedAt, item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update review item %s", item.ID)
	}
	return checkRowsAffected(res, "review item", item.ID)
}

func (s *SQLiteStore) FindPendingReview(ctx context.Context, recordID, field string) (*model.ReviewItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT item FROM review_items
		 WHERE record_id = ? AND field = ? AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		recordID, field, string(model.ReviewPending),
	)

	item, err := scanReviewItem(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func marshalValue(value any) (sql.NullString, error) {
	if value == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var valueJSON sql.NullString

	err := row.Scan(&e.ID, &e.RecordID, &e.TenantID, &e.Field, &e.ContentHash,
		&e.Disposition, &e.Decision, &valueJSON, &e.Confidence, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan ledger entry")
	}

	if valueJSON.Valid {
		if err := json.Unmarshal([]byte(valueJSON.String), &e.AppliedValue); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal applied value")
		}
	}
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate ledger entries")
}

func scanReviewItem(row scannable) (*model.ReviewItem, error) {
	var itemJSON string
	if err := row.Scan(&itemJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(sql.ErrNoRows, "review item not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan review item")
	}

	var item model.ReviewItem
	if err := json.Unmarshal([]byte(itemJSON), &item); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal review item")
	}
	return &item, nil
}
