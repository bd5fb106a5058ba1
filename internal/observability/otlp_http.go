package observability

import (
	"fmt"
	"net/url"
	"strings"
)

// normalizeOTLPHTTPPath appends the per-signal suffix (for example /v1/traces)
// to an OTLP HTTP endpoint unless the path already ends with it. Query
// parameters and fragments survive untouched.
func normalizeOTLPHTTPPath(endpoint, suffix string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	want := "/" + strings.Trim(strings.TrimSpace(suffix), "/")
	path := strings.TrimSuffix(parsed.Path, "/")
	if !strings.HasSuffix(path, want) {
		path += want
	}
	parsed.Path = path

	return parsed.String(), nil
}
