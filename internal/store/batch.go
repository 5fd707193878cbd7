package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/waterbase/linkcrawler/internal/crawler"
	"github.com/waterbase/linkcrawler/internal/metrics"
)

// DefaultBatchSize is the flush threshold used when none is configured.
const DefaultBatchSize = 64

// Batcher buffers link records and flushes them to a LinkWriter in batches.
// The pending batch is cleared even when a flush fails: durability here is
// at-most-once, trading a lost batch for bounded memory and no retry storms.
type Batcher struct {
	writer LinkWriter
	limit  int
	logger *zap.Logger

	mu    sync.Mutex
	batch []crawler.LinkRecord
}

// NewBatcher wraps writer with a flush threshold of limit records.
func NewBatcher(writer LinkWriter, limit int, logger *zap.Logger) *Batcher {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	return &Batcher{
		writer: writer,
		limit:  limit,
		logger: logger,
	}
}

// Add buffers one record, flushing when the batch reaches the threshold.
func (b *Batcher) Add(ctx context.Context, record crawler.LinkRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batch = append(b.batch, record)
	if len(b.batch) < b.limit {
		return nil
	}
	return b.flushLocked(ctx)
}

// Flush writes out whatever is buffered.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx)
}

// Close performs a final flush. The caller releases the writer afterwards.
func (b *Batcher) Close(ctx context.Context) error {
	return b.Flush(ctx)
}

func (b *Batcher) flushLocked(ctx context.Context) error {
	if len(b.batch) == 0 {
		return nil
	}
	records := b.batch
	b.batch = nil

	if err := b.writer.UpsertLinks(ctx, records); err != nil {
		metrics.BatchFlushFailures.Inc()
		b.logger.Error("batch flush failed; records dropped",
			zap.Int("records", len(records)),
			zap.Error(err),
		)
		return fmt.Errorf("flush batch of %d: %w", len(records), err)
	}
	metrics.BatchFlushes.Inc()
	metrics.RecordsPersisted.Add(float64(len(records)))
	b.logger.Debug("batch flushed", zap.Int("records", len(records)))
	return nil
}

var _ crawler.Persister = (*Batcher)(nil)
