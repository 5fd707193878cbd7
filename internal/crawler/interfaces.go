package crawler

import "context"

// Fetcher loads a page and returns its outbound links and metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// Classifier infers a resource type tag for a URL. allowHead permits a
// HEAD-request probe when extension matching is inconclusive.
type Classifier interface {
	Classify(ctx context.Context, url string, allowHead bool) string
}

// Policy answers fetch-permission queries for a URL.
type Policy interface {
	Allowed(url string) bool
}

// Persister buffers link records for batched storage.
type Persister interface {
	Add(ctx context.Context, record LinkRecord) error
	Flush(ctx context.Context) error
}

// Limiter throttles outbound requests for politeness.
type Limiter interface {
	Wait(ctx context.Context) error
}
