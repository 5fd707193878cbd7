package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/waterbase/linkcrawler/internal/crawler"
)

func newMockStore(t *testing.T) (*LinkStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewLinkStoreWithPool(mock, "crawled_links")
	require.NoError(t, err)
	return store, mock
}

func linkRows(records ...crawler.LinkRecord) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"url", "allowed", "declared_type", "inferred_type", "main_endpoint",
		"title", "description", "page_id", "content", "created_at", "updated_at",
	})
	for _, rec := range records {
		var content *string
		if rec.Content != "" {
			content = &rec.Content
		}
		rows.AddRow(
			rec.URL, rec.Allowed, rec.DeclaredType, rec.InferredType, rec.MainEndpoint,
			rec.Title, rec.Description, rec.PageID, content, rec.CreatedAt, rec.UpdatedAt,
		)
	}
	return rows
}

func TestNewLinkStoreWithPoolRejectsBadTableName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewLinkStoreWithPool(mock, `links; DROP TABLE links`)
	require.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS crawled_links")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_crawled_links_main_endpoint")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLinks(t *testing.T) {
	store, mock := newMockStore(t)

	records := []crawler.LinkRecord{
		{
			URL:          "https://example.com/nyheter/artikel",
			Allowed:      true,
			DeclaredType: "article",
			InferredType: crawler.TypeWebpage,
			MainEndpoint: "nyheter",
			Title:        "Artikel",
			Description:  "En nyhet",
			PageID:       "p-1",
		},
		{
			URL:          "https://example.com/mediebank/bild.jpg",
			Allowed:      false,
			InferredType: crawler.TypeImage,
			MainEndpoint: "mediebank",
		},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crawled_links")).
		WithArgs(
			records[0].URL, records[0].Allowed, records[0].DeclaredType, records[0].InferredType,
			records[0].MainEndpoint, records[0].Title, records[0].Description, records[0].PageID,
			records[1].URL, records[1].Allowed, records[1].DeclaredType, records[1].InferredType,
			records[1].MainEndpoint, records[1].Title, records[1].Description, records[1].PageID,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	require.NoError(t, store.UpsertLinks(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLinksEmptyBatch(t *testing.T) {
	store, mock := newMockStore(t)

	require.NoError(t, store.UpsertLinks(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildUpsertConflictClause(t *testing.T) {
	store, _ := newMockStore(t)

	query, args := store.buildUpsert([]crawler.LinkRecord{{URL: "https://example.com/"}})
	require.Contains(t, query, "ON CONFLICT (url) DO UPDATE SET")
	require.Contains(t, query, "updated_at = now()")
	require.NotContains(t, query, "content")
	require.Len(t, args, len(upsertColumns))
}

func TestFetchWithoutContent(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE allowed AND (content IS NULL OR content = '')")).
		WithArgs(25).
		WillReturnRows(linkRows(crawler.LinkRecord{
			URL:          "https://example.com/nyheter/artikel",
			Allowed:      true,
			MainEndpoint: "nyheter",
			CreatedAt:    now,
			UpdatedAt:    now,
		}))

	records, err := store.FetchWithoutContent(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "https://example.com/nyheter/artikel", records[0].URL)
	require.Empty(t, records[0].Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchWithoutContentRejectsBadLimit(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.FetchWithoutContent(context.Background(), 0)
	require.Error(t, err)
}

func TestSampleByGroup(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("row_number() OVER (PARTITION BY main_endpoint ORDER BY random())")).
		WithArgs(true, 2).
		WillReturnRows(linkRows(
			crawler.LinkRecord{URL: "https://example.com/nyheter/a", Allowed: true, MainEndpoint: "nyheter", CreatedAt: now, UpdatedAt: now},
			crawler.LinkRecord{URL: "https://example.com/nyheter/b", Allowed: true, MainEndpoint: "nyheter", CreatedAt: now, UpdatedAt: now},
			crawler.LinkRecord{URL: "https://example.com/om-oss", Allowed: true, MainEndpoint: "om-oss", CreatedAt: now, UpdatedAt: now},
		))

	grouped, err := store.SampleByGroup(context.Background(), "main_endpoint", 2, map[string]any{"allowed": true})
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	require.Len(t, grouped["nyheter"], 2)
	require.Len(t, grouped["om-oss"], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSampleByGroupRejectsUnknownColumns(t *testing.T) {
	store, _ := newMockStore(t)
	ctx := context.Background()

	_, err := store.SampleByGroup(ctx, "url", 5, nil)
	require.Error(t, err)

	_, err = store.SampleByGroup(ctx, "main_endpoint", 5, map[string]any{"title": "x"})
	require.Error(t, err)

	_, err = store.SampleByGroup(ctx, "main_endpoint", 0, nil)
	require.Error(t, err)
}
