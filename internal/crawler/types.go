// Package crawler defines core types shared across subsystems.
package crawler

import "time"

// Resource type tags assigned by the classifier and persisted with each link.
const (
	TypeImage    = "image"
	TypeDocument = "document"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeWebpage  = "webpage"
	TypeUnknown  = "unknown"
)

// FrontierEntry is a discovered URL waiting to be processed. Entries are
// owned exclusively by the scheduler's queue and destroyed on dequeue.
type FrontierEntry struct {
	URL   string
	Depth int
}

// PageMetadata holds the fields extracted from a rendered page.
type PageMetadata struct {
	Title       string
	Description string
	PageID      string
	Type        string
}

// FetchResult is returned by a Fetcher implementation.
type FetchResult struct {
	// URL is the final URL after redirects.
	URL string
	// Links are the absolute anchor targets found on the page.
	Links []string
	Meta  PageMetadata
}

// LinkRecord is the persisted row for a discovered link, keyed by its
// normalized URL. Content is written by downstream scraping tools, never
// by the crawler itself.
type LinkRecord struct {
	URL          string    `json:"url"`
	Allowed      bool      `json:"allowed"`
	DeclaredType string    `json:"declared_type"`
	InferredType string    `json:"inferred_type"`
	MainEndpoint string    `json:"main_endpoint"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PageID       string    `json:"page_id"`
	Content      string    `json:"content,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stats is a point-in-time snapshot of a crawl run.
type Stats struct {
	RunID        string      `json:"run_id"`
	Visited      int         `json:"visited"`
	Persisted    int         `json:"persisted"`
	FetchErrors  int         `json:"fetch_errors"`
	RobotsDenied int         `json:"robots_denied"`
	Discovered   int         `json:"discovered"`
	QueueLen     int         `json:"queue_len"`
	PerDepth     map[int]int `json:"per_depth"`
}
