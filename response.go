package wpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Response is a fully read HTTP response. Cached GET results are returned
// as the same value, so callers must treat Body as read-only.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	// IsJSON reports whether Content-Type indicated a JSON payload.
	IsJSON bool
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v interface{}) error {
	if r == nil {
		return fmt.Errorf("wpclient: decode nil response")
	}
	if len(r.Body) == 0 {
		return fmt.Errorf("wpclient: empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Size approximates the memory held by the response, used for cache accounting.
func (r *Response) Size() int64 {
	if r == nil {
		return 0
	}
	size := int64(len(r.Body)) + int64(len(r.Status))
	for k, values := range r.Header {
		size += int64(len(k))
		for _, v := range values {
			size += int64(len(v))
		}
	}
	return size
}

// Total returns the X-WP-Total header as an int, or -1 when absent.
func (r *Response) Total() int {
	return headerInt(r, "X-WP-Total")
}

// TotalPages returns the X-WP-TotalPages header as an int, or -1 when absent.
func (r *Response) TotalPages() int {
	return headerInt(r, "X-WP-TotalPages")
}

func headerInt(r *Response, name string) int {
	if r == nil {
		return -1
	}
	raw := r.Header.Get(name)
	if raw == "" {
		return -1
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return -1
	}
	return n
}

func isJSONContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

// apiErrorBody is the error shape the backend returns on failures.
type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorMessage extracts {code, message} from a failure body, falling back to
// "HTTP {status}: {statusText}" when the body is absent or malformed.
func errorMessage(statusCode int, body []byte) (message, code string) {
	fallback := fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode))
	if len(body) == 0 {
		return fallback, ""
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fallback, ""
	}
	if parsed.Message == "" {
		return fallback, parsed.Code
	}
	return parsed.Message, parsed.Code
}
