package security

import (
	"net/http"
	"strings"
)

// RequesterIP returns the first X-Forwarded-For entry, falling back to
// CF-Connecting-IP. It returns "" when neither header is set.
func RequesterIP(h http.Header) string {
	if xf := h.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		return strings.TrimSpace(first)
	}
	return strings.TrimSpace(h.Get("CF-Connecting-IP"))
}
