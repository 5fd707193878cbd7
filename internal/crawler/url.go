package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Normalizer canonicalizes URLs so that two spellings of the same resource
// collapse to one frontier entry. The normalized form is the dedup key the
// whole traversal depends on.
type Normalizer struct {
	base  *url.URL
	strip map[string]struct{}
}

// NewNormalizer builds a Normalizer rooted at baseURL. stripParams lists
// query parameter names (e.g. tracking tags) removed during normalization.
func NewNormalizer(baseURL string, stripParams []string) (*Normalizer, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	base.Scheme = strings.ToLower(base.Scheme)
	base.Host = strings.ToLower(base.Host)
	strip := make(map[string]struct{}, len(stripParams))
	for _, name := range stripParams {
		name = strings.TrimSpace(name)
		if name != "" {
			strip[name] = struct{}{}
		}
	}
	return &Normalizer{base: base, strip: strip}, nil
}

// Normalize resolves raw against the base URL and returns its canonical
// string form: fragment removed, configured query params stripped, scheme
// and host lowercased, default ports removed, dot segments collapsed and
// remaining query parameters sorted.
func (n *Normalizer) Normalize(raw string) (string, error) {
	u, err := n.base.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	if u.Path == "" {
		u.Path = "/"
	} else {
		cleaned := path.Clean(u.Path)
		if strings.HasSuffix(u.Path, "/") && cleaned != "/" {
			cleaned += "/"
		}
		u.Path = cleaned
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range n.strip {
			q.Del(name)
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// SameOrigin reports whether the (already normalized) URL shares scheme and
// host with the crawl base, which is the boundary of the traversal.
func (n *Normalizer) SameOrigin(normalized string) bool {
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	return u.Scheme == n.base.Scheme && u.Host == n.base.Host
}

// MainEndpoint returns the first path segment of a URL, used downstream for
// grouping and sampling. The root URL yields an empty endpoint.
func MainEndpoint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	trimmed := strings.TrimPrefix(u.Path, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}
