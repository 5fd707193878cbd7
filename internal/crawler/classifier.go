package crawler

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// extensionTypes maps well-known path suffixes to resource type tags.
var extensionTypes = map[string]string{
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".png":  TypeImage,
	".gif":  TypeImage,
	".bmp":  TypeImage,
	".pdf":  TypeDocument,
	".doc":  TypeDocument,
	".docx": TypeDocument,
	".xlsx": TypeDocument,
	".mp4":  TypeVideo,
	".avi":  TypeVideo,
	".mov":  TypeVideo,
	".mkv":  TypeVideo,
	".mp3":  TypeAudio,
	".wav":  TypeAudio,
	".flac": TypeAudio,
}

// TypeClassifier infers resource types from URL extensions, optionally
// falling back to a HEAD-request content-type probe. Probe failures never
// abort the crawl; they degrade to TypeUnknown.
type TypeClassifier struct {
	client       *http.Client
	userAgent    string
	headFallback bool
	logger       *zap.Logger
}

// NewTypeClassifier builds a classifier. headFallback globally enables the
// HEAD probe; callers still gate it per URL.
func NewTypeClassifier(client *http.Client, userAgent string, headFallback bool, logger *zap.Logger) *TypeClassifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TypeClassifier{
		client:       client,
		userAgent:    userAgent,
		headFallback: headFallback,
		logger:       logger,
	}
}

// Classify implements Classifier.
func (c *TypeClassifier) Classify(ctx context.Context, rawURL string, allowHead bool) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return TypeUnknown
	}
	if tag, ok := extensionTypes[path.Ext(strings.ToLower(u.Path))]; ok {
		return tag
	}
	if !allowHead || !c.headFallback {
		return TypeUnknown
	}
	return c.probe(ctx, rawURL)
}

func (c *TypeClassifier) probe(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return TypeUnknown
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("head probe failed", zap.String("url", rawURL), zap.Error(err))
		return TypeUnknown
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close head probe body", zap.Error(cerr))
		}
	}()

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "image"):
		return TypeImage
	case strings.Contains(contentType, "pdf"):
		return TypeDocument
	case strings.Contains(contentType, "video"):
		return TypeVideo
	case strings.Contains(contentType, "audio"):
		return TypeAudio
	case strings.Contains(contentType, "text/html"):
		return TypeWebpage
	default:
		return TypeUnknown
	}
}

var _ Classifier = (*TypeClassifier)(nil)
