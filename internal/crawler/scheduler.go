package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/waterbase/linkcrawler/internal/metrics"
)

// DefaultConcurrency bounds in-flight fetches when none is configured.
const DefaultConcurrency = 50

// SchedulerConfig holds the traversal knobs for a crawl run.
type SchedulerConfig struct {
	BaseURL     string
	MaxDepth    int
	Concurrency int
}

// Scheduler drives a bounded-concurrency breadth-first traversal over a
// FIFO frontier. It owns the frontier queue and the visited set; all other
// concerns are injected.
//
// Ordering is breadth-first-ish: with multiple fetches in flight, entries
// from depth d+1 may be dequeued before every depth-d entry completes.
type Scheduler struct {
	cfg        SchedulerConfig
	runID      string
	fetcher    Fetcher
	classifier Classifier
	policy     Policy
	normalizer *Normalizer
	persister  Persister
	limiter    Limiter
	sem        *semaphore.Weighted
	logger     *zap.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	queue []FrontierEntry
	// visited holds normalized URLs that have been dequeued for processing,
	// inserted before the fetch is dispatched so two workers can never race
	// on the same URL.
	visited map[string]struct{}
	// pending counts entries that are queued or in flight; the run is over
	// when it reaches zero with an empty queue.
	pending int
	stats   Stats
}

// NewScheduler wires a Scheduler from its collaborators.
func NewScheduler(
	cfg SchedulerConfig,
	fetcher Fetcher,
	classifier Classifier,
	policy Policy,
	normalizer *Normalizer,
	persister Persister,
	limiter Limiter,
	logger *zap.Logger,
) (*Scheduler, error) {
	if fetcher == nil || classifier == nil || policy == nil || normalizer == nil || persister == nil {
		return nil, fmt.Errorf("scheduler requires fetcher, classifier, policy, normalizer and persister")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	s := &Scheduler{
		cfg:        cfg,
		runID:      uuid.NewString(),
		fetcher:    fetcher,
		classifier: classifier,
		policy:     policy,
		normalizer: normalizer,
		persister:  persister,
		limiter:    limiter,
		sem:        semaphore.NewWeighted(int64(cfg.Concurrency)),
		logger:     logger,
		visited:    make(map[string]struct{}),
		stats:      Stats{PerDepth: make(map[int]int)},
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// RunID identifies this crawl run in logs and progress snapshots.
func (s *Scheduler) RunID() string { return s.runID }

// Run seeds the frontier and processes it until exhaustion or cancellation.
// Any buffered records are flushed before Run returns, so an operator
// interrupt never loses the partial batch.
func (s *Scheduler) Run(ctx context.Context, seeds ...string) error {
	if len(seeds) == 0 {
		seeds = []string{s.cfg.BaseURL}
	}
	seeded := 0
	for _, seed := range seeds {
		norm, err := s.normalizer.Normalize(seed)
		if err != nil {
			s.logger.Warn("skipping unusable seed", zap.String("url", seed), zap.Error(err))
			continue
		}
		if s.enqueue(FrontierEntry{URL: norm}) {
			seeded++
		}
	}
	if seeded == 0 {
		return fmt.Errorf("no usable seed urls")
	}
	s.logger.Info("crawl started",
		zap.String("run_id", s.runID),
		zap.Int("seeds", seeded),
		zap.Int("max_depth", s.cfg.MaxDepth),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	// Wake the dispatch loop if the run is canceled while it waits.
	stop := context.AfterFunc(ctx, func() { s.cond.Broadcast() })
	defer stop()

	var wg sync.WaitGroup
	for {
		entry, ok := s.next(ctx)
		if !ok {
			break
		}
		if entry.Depth > s.cfg.MaxDepth || !s.markVisited(entry) {
			s.finish()
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.finish()
			break
		}
		wg.Add(1)
		go func(e FrontierEntry) {
			defer wg.Done()
			defer s.sem.Release(1)
			defer s.finish()
			s.process(ctx, e)
		}(entry)
	}
	wg.Wait()

	// Best-effort final flush, decoupled from the canceled context.
	if err := s.persister.Flush(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}

	snap := s.Stats()
	s.logger.Info("crawl finished",
		zap.String("run_id", s.runID),
		zap.Int("visited", snap.Visited),
		zap.Int("persisted", snap.Persisted),
		zap.Int("fetch_errors", snap.FetchErrors),
		zap.Any("per_depth", snap.PerDepth),
	)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	return nil
}

func (s *Scheduler) process(ctx context.Context, entry FrontierEntry) {
	record := LinkRecord{
		URL:          entry.URL,
		MainEndpoint: MainEndpoint(entry.URL),
	}

	if !s.policy.Allowed(entry.URL) {
		metrics.RobotsDenied.Inc()
		s.bump(func(st *Stats) { st.RobotsDenied++ })
		// Disallowed URLs are recorded but never fetched or HEAD-probed.
		record.Allowed = false
		record.InferredType = s.classifier.Classify(ctx, entry.URL, false)
		s.persist(ctx, record)
		s.logger.Debug("denied by robots policy", zap.String("url", entry.URL))
		return
	}
	record.Allowed = true

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
	}

	result, err := s.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		// The URL stays visited so a transient failure cannot cause a retry
		// storm; no record is written for it.
		metrics.FetchErrors.Inc()
		s.bump(func(st *Stats) { st.FetchErrors++ })
		s.logger.Error("fetch failed",
			zap.String("url", entry.URL),
			zap.Int("depth", entry.Depth),
			zap.Error(err),
		)
		return
	}
	metrics.PagesFetched.Inc()

	record.InferredType = s.classifier.Classify(ctx, entry.URL, true)
	record.DeclaredType = result.Meta.Type
	record.Title = result.Meta.Title
	record.Description = result.Meta.Description
	record.PageID = result.Meta.PageID
	s.persist(ctx, record)

	if entry.Depth >= s.cfg.MaxDepth {
		// Children would exceed the depth limit; the page itself was still fetched.
		return
	}
	for _, link := range result.Links {
		norm, err := s.normalizer.Normalize(link)
		if err != nil {
			continue
		}
		if !s.normalizer.SameOrigin(norm) {
			continue
		}
		if s.enqueue(FrontierEntry{URL: norm, Depth: entry.Depth + 1}) {
			metrics.LinksDiscovered.Inc()
			s.bump(func(st *Stats) { st.Discovered++ })
		}
	}
}

func (s *Scheduler) persist(ctx context.Context, record LinkRecord) {
	if err := s.persister.Add(ctx, record); err != nil {
		// A failed flush drops that batch; the traversal continues.
		s.logger.Error("persist record", zap.String("url", record.URL), zap.Error(err))
		return
	}
	s.bump(func(st *Stats) { st.Persisted++ })
}

// next pops the head of the frontier, blocking while the queue is empty but
// entries are still in flight. It returns false when the run is complete or
// the context has been canceled.
func (s *Scheduler) next(ctx context.Context) (FrontierEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if ctx.Err() != nil {
			return FrontierEntry{}, false
		}
		if len(s.queue) > 0 {
			entry := s.queue[0]
			s.queue = s.queue[1:]
			return entry, true
		}
		if s.pending == 0 {
			return FrontierEntry{}, false
		}
		s.cond.Wait()
	}
}

// enqueue appends a frontier entry unless its URL has already been
// processed. Duplicates still in the queue are caught at dequeue time.
func (s *Scheduler) enqueue(entry FrontierEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.visited[entry.URL]; seen {
		return false
	}
	s.queue = append(s.queue, entry)
	s.pending++
	s.cond.Signal()
	return true
}

// markVisited records the URL as processed. It returns false when another
// queue entry for the same URL got there first.
func (s *Scheduler) markVisited(entry FrontierEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.visited[entry.URL]; seen {
		return false
	}
	s.visited[entry.URL] = struct{}{}
	s.stats.Visited++
	s.stats.PerDepth[entry.Depth]++
	return true
}

// finish retires one pending entry and wakes the dispatch loop when the
// frontier drains.
func (s *Scheduler) finish() {
	s.mu.Lock()
	s.pending--
	if s.pending == 0 || len(s.queue) > 0 {
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Scheduler) bump(apply func(*Stats)) {
	s.mu.Lock()
	apply(&s.stats)
	s.mu.Unlock()
}

// Stats returns a copy of the run counters for progress reporting.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.stats
	snap.RunID = s.runID
	snap.QueueLen = len(s.queue)
	snap.PerDepth = make(map[int]int, len(s.stats.PerDepth))
	for depth, count := range s.stats.PerDepth {
		snap.PerDepth[depth] = count
	}
	return snap
}
