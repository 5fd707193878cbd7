// Package postgres provides the Postgres-backed link store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waterbase/linkcrawler/internal/crawler"
)

const defaultTable = "crawled_links"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sampleColumns are the fields SampleByGroup may group or filter on.
var sampleColumns = map[string]struct{}{
	"allowed":       {},
	"declared_type": {},
	"inferred_type": {},
	"main_endpoint": {},
}

// upsertColumns are the crawler-owned fields written on every flush.
// content is owned by downstream scrapers and never touched here.
var upsertColumns = []string{
	"url",
	"allowed",
	"declared_type",
	"inferred_type",
	"main_endpoint",
	"title",
	"description",
	"page_id",
}

// Config controls the Postgres connection pool for link rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// LinkStore persists and queries link records in Postgres.
type LinkStore struct {
	pool  pgxPool
	table string
}

// NewLinkStore connects a pool and ensures the link table exists. A failed
// connection here is the one fatal storage condition of the whole system.
func NewLinkStore(ctx context.Context, cfg Config) (*LinkStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &LinkStore{pool: pool, table: table}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewLinkStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewLinkStoreWithPool(pool pgxPool, table string) (*LinkStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &LinkStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *LinkStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the link table and its indexes when missing.
func (s *LinkStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	url TEXT PRIMARY KEY,
	allowed BOOLEAN NOT NULL DEFAULT false,
	declared_type TEXT NOT NULL DEFAULT '',
	inferred_type TEXT NOT NULL DEFAULT '',
	main_endpoint TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	page_id TEXT NOT NULL DEFAULT '',
	content TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_main_endpoint ON %s (main_endpoint)`, s.table, s.table),
	}
	for _, statement := range statements {
		if _, err := s.pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertLinks writes the batch with a single insert-or-update statement
// keyed on url. Re-crawling a URL overwrites its mutable fields and
// refreshes updated_at; the primary key and created_at stay stable.
func (s *LinkStore) UpsertLinks(ctx context.Context, records []crawler.LinkRecord) error {
	if len(records) == 0 {
		return nil
	}
	query, args := s.buildUpsert(records)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %d links: %w", len(records), err)
	}
	return nil
}

func (s *LinkStore) buildUpsert(records []crawler.LinkRecord) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", s.table, strings.Join(upsertColumns, ", "))

	args := make([]any, 0, len(records)*len(upsertColumns))
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		placeholders := make([]string, len(upsertColumns))
		for j := range upsertColumns {
			placeholders[j] = fmt.Sprintf("$%d", i*len(upsertColumns)+j+1)
		}
		fmt.Fprintf(&sb, "(%s)", strings.Join(placeholders, ", "))
		args = append(args,
			rec.URL,
			rec.Allowed,
			rec.DeclaredType,
			rec.InferredType,
			rec.MainEndpoint,
			rec.Title,
			rec.Description,
			rec.PageID,
		)
	}

	sb.WriteString(` ON CONFLICT (url) DO UPDATE SET
	allowed = EXCLUDED.allowed,
	declared_type = EXCLUDED.declared_type,
	inferred_type = EXCLUDED.inferred_type,
	main_endpoint = EXCLUDED.main_endpoint,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	page_id = EXCLUDED.page_id,
	updated_at = now()`)

	return sb.String(), args
}

// FetchWithoutContent returns up to limit allowed records whose content has
// not been filled in yet, oldest first. Downstream scraping tools use this
// to find work.
func (s *LinkStore) FetchWithoutContent(ctx context.Context, limit int) ([]crawler.LinkRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s
WHERE allowed AND (content IS NULL OR content = '')
ORDER BY created_at
LIMIT $1`, selectColumns, s.table)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query links without content: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SampleByGroup returns up to sampleSize random records per distinct value
// of groupField, optionally restricted by equality filters. groupField and
// filter columns must be in the sampling allowlist.
func (s *LinkStore) SampleByGroup(
	ctx context.Context,
	groupField string,
	sampleSize int,
	filters map[string]any,
) (map[string][]crawler.LinkRecord, error) {
	if _, ok := sampleColumns[groupField]; !ok {
		return nil, fmt.Errorf("cannot group by %q", groupField)
	}
	if sampleSize <= 0 {
		return nil, fmt.Errorf("sample size must be > 0")
	}

	var (
		where string
		args  []any
	)
	if len(filters) > 0 {
		clauses := make([]string, 0, len(filters))
		for _, column := range sortedFilterColumns(filters) {
			if _, ok := sampleColumns[column]; !ok {
				return nil, fmt.Errorf("cannot filter by %q", column)
			}
			args = append(args, filters[column])
			clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
		}
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, sampleSize)

	query := fmt.Sprintf(`SELECT %s FROM (
	SELECT *, row_number() OVER (PARTITION BY %s ORDER BY random()) AS rn
	FROM %s%s
) ranked WHERE rn <= $%d`, selectColumns, groupField, s.table, where, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sample by %s: %w", groupField, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]crawler.LinkRecord)
	for _, rec := range records {
		key := groupKey(rec, groupField)
		grouped[key] = append(grouped[key], rec)
	}
	return grouped, nil
}

const selectColumns = `url, allowed, declared_type, inferred_type, main_endpoint, title, description, page_id, content, created_at, updated_at`

func scanRecords(rows pgx.Rows) ([]crawler.LinkRecord, error) {
	var records []crawler.LinkRecord
	for rows.Next() {
		var (
			rec     crawler.LinkRecord
			content *string
		)
		err := rows.Scan(
			&rec.URL,
			&rec.Allowed,
			&rec.DeclaredType,
			&rec.InferredType,
			&rec.MainEndpoint,
			&rec.Title,
			&rec.Description,
			&rec.PageID,
			&content,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan link row: %w", err)
		}
		if content != nil {
			rec.Content = *content
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link rows: %w", err)
	}
	return records, nil
}

func groupKey(rec crawler.LinkRecord, groupField string) string {
	switch groupField {
	case "allowed":
		return fmt.Sprintf("%t", rec.Allowed)
	case "declared_type":
		return rec.DeclaredType
	case "inferred_type":
		return rec.InferredType
	default:
		return rec.MainEndpoint
	}
}

func sortedFilterColumns(filters map[string]any) []string {
	columns := make([]string, 0, len(filters))
	for column := range filters {
		columns = append(columns, column)
	}
	// Deterministic clause order keeps queries stable for tests and logs.
	sort.Strings(columns)
	return columns
}
