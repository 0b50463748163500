package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. Declared locally so
// tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_entry":        `INSERT INTO enrichment_ledger (id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"update_disposition":  `UPDATE enrichment_ledger SET disposition = $1, updated_at = $2 WHERE id = $3`,
	"apply_entry":         `UPDATE enrichment_ledger SET applied_value = $1, disposition = $2, updated_at = $3 WHERE id = $4`,
	"get_entry":           `SELECT id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at FROM enrichment_ledger WHERE id = $1`,
	"insert_review_item":  `INSERT INTO review_items (id, record_id, tenant_id, field, status, item, created_at, resolved_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_review_item":     `SELECT item FROM review_items WHERE id = $1`,
	"update_review_item":  `UPDATE review_items SET status = $1, item = $2, resolved_at = $3 WHERE id = $4`,
	"find_pending_review": `SELECT item FROM review_items WHERE record_id = $1 AND field = $2 AND status = $3 ORDER BY created_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enrichment_ledger (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record_id     TEXT NOT NULL,
	tenant_id     TEXT NOT NULL,
	field         TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	disposition   TEXT NOT NULL,
	decision      TEXT NOT NULL,
	applied_value JSONB,
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS review_items (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record_id   TEXT NOT NULL,
	tenant_id   TEXT NOT NULL,
	field       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	item        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ledger_record_id ON enrichment_ledger(record_id);
CREATE INDEX IF NOT EXISTS idx_ledger_disposition ON enrichment_ledger(disposition);
CREATE INDEX IF NOT EXISTS idx_ledger_tenant_id ON enrichment_ledger(tenant_id);
CREATE INDEX IF NOT EXISTS idx_review_items_status ON review_items(status);
CREATE INDEX IF NOT EXISTS idx_review_items_record_field ON review_items(record_id, field);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecordEntry(ctx context.Context, entry *model.LedgerEntry) error {
	valueJSON, err := marshalValuePG(entry.AppliedValue)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal applied value")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO enrichment_ledger (id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.RecordID, entry.TenantID, entry.Field, entry.ContentHash,
		string(entry.Disposition), string(entry.Decision), valueJSON, entry.Confidence,
		entry.CreatedAt, entry.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert ledger entry")
}

func (s *PostgresStore) UpdateDisposition(ctx context.Context, entryID string, disposition model.Disposition) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_ledger SET disposition = $1, updated_at = $2 WHERE id = $3`,
		string(disposition), time.Now().UTC(), entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update disposition %s", entryID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ledger entry not found: %s", entryID)
	}
	return nil
}

func (s *PostgresStore) Apply(ctx context.Context, entryID string, value any) error {
	valueJSON, err := marshalValuePG(value)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal applied value")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_ledger SET applied_value = $1, disposition = $2, updated_at = $3 WHERE id = $4`,
		valueJSON, string(model.DispositionApplied), time.Now().UTC(), entryID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply %s", entryID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ledger entry not found: %s", entryID)
	}
	return nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at
		 FROM enrichment_ledger WHERE id = $1`,
		entryID,
	)
	return scanEntryPG(row)
}

func (s *PostgresStore) GetByRecord(ctx context.Context, recordID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at
		 FROM enrichment_ledger WHERE record_id = $1 ORDER BY created_at DESC`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get by record")
	}
	defer rows.Close()
	return collectEntriesPG(rows)
}

func (s *PostgresStore) ListByDisposition(ctx context.Context, disposition model.Disposition, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, record_id, tenant_id, field, content_hash, disposition, decision, applied_value, confidence, created_at, updated_at
		 FROM enrichment_ledger WHERE disposition = $1 ORDER BY created_at DESC LIMIT $2`,
		string(disposition), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list by disposition")
	}
	defer rows.Close()
	return collectEntriesPG(rows)
}

func (s *PostgresStore) SaveReviewItem(ctx context.Context, item *model.ReviewItem) error {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal review item")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO review_items (id, record_id, tenant_id, field, status, item, created_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.Request.RecordID, item.Request.TenantID, item.Request.Field,
		string(item.Status), itemJSON, item.CreatedAt, item.ResolvedAt,
	)
	return eris.Wrap(err, "postgres: insert review item")
}

func (s *PostgresStore) GetReviewItem(ctx context.Context, itemID string) (*model.ReviewItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT item FROM review_items WHERE id = $1`,
		itemID,
	)
	return scanReviewItemPG(row)
}

func (s *PostgresStore) ListReviewItems(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error) {
	query := `SELECT item FROM review_items WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, argIdx)
		args = append(args, filter.TenantID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list review items")
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		item, err := scanReviewItemPG(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list review items iterate")
}

func (s *PostgresStore) UpdateReviewItem(ctx context.Context, item *model.ReviewItem) error {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal review item")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE review_items SET status = $1, item = $2, resolved_at = $3 WHERE id = $4`,
		string(item.Status), itemJSON, item.ResolvedAt, item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update review item %s", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("review item not found: %s", item.ID)
	}
	return nil
}

func (s *PostgresStore) FindPendingReview(ctx context.Context, recordID, field string) (*model.ReviewItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT item FROM review_items
		 WHERE record_id = $1 AND field = $2 AND status = $3
		 ORDER BY created_at DESC LIMIT 1`,
		recordID, field, string(model.ReviewPending),
	)

	item, err := scanReviewItemPG(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// helpers

func marshalValuePG(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func scanEntryPG(row pgx.Row) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var valueNull *[]byte

	err := row.Scan(&e.ID, &e.RecordID, &e.TenantID, &e.Field, &e.ContentHash,
		&e.Disposition, &e.Decision, &valueNull, &e.Confidence, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan ledger entry")
	}

	if valueNull != nil {
		if err := json.Unmarshal(*valueNull, &e.AppliedValue); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal applied value")
		}
	}
	return &e, nil
}

func collectEntriesPG(rows pgx.Rows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntryPG(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate ledger entries")
}

func scanReviewItemPG(row pgx.Row) (*model.ReviewItem, error) {
	var itemJSON []byte
	if err := row.Scan(&itemJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(pgx.ErrNoRows, "review item not found")
		}
		return nil, eris.Wrap(err, "postgres: scan review item")
	}

	var item model.ReviewItem
	if err := json.Unmarshal(itemJSON, &item); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal review item")
	}
	return &item, nil
}
