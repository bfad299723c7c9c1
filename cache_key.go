package wpclient

import (
	"net/url"
	"strings"
)

// CacheKey builds "{siteID}:{METHOD}:{path}" plus "?"+encoded params when
// any exist. Params are sorted by name, so their order never changes the
// key. The path keeps its case.
func CacheKey(siteID, method, path string, params url.Values) string {
	var b strings.Builder
	b.WriteString(siteID)
	b.WriteByte(':')
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(':')
	b.WriteString(normalizePath(path))
	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(params.Encode())
	}
	return b.String()
}

func normalizePath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

// splitEndpoint separates an inline query string from the endpoint path.
func splitEndpoint(endpoint string) (string, url.Values) {
	path, rawQuery, found := strings.Cut(endpoint, "?")
	query := url.Values{}
	if found && rawQuery != "" {
		if parsed, err := url.ParseQuery(rawQuery); err == nil {
			query = parsed
		}
	}
	return normalizePath(path), query
}
