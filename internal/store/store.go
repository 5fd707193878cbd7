// Package store provides buffered, batched persistence of link records.
package store

import (
	"context"

	"github.com/waterbase/linkcrawler/internal/crawler"
)

// LinkWriter applies a batch of link records as one idempotent upsert.
type LinkWriter interface {
	UpsertLinks(ctx context.Context, records []crawler.LinkRecord) error
}
