// Package redact masks credential material before records leave the server.
package redact

import (
	"regexp"
	"strings"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
)

const Masked = "***"

var sensitiveKeys = []string{"authorization", "cookie", "access_token", "id_token", "session", "apikey", "authtoken"}

// scriptHeaderValue matches a quoted sensitive-header value in generated
// script text, e.g. `"Authorization": "Bearer tok"`.
var scriptHeaderValue = regexp.MustCompile(
	`(?i)("(?:` + strings.Join(sensitiveKeys, "|") + `)"\s*:\s*")(?:[^"\\]|\\.)*(")`)

// Snapshot returns a copy of s safe for API views: the auth token and any
// sensitive header values are masked.
func Snapshot(s domain.RequestSnapshot) domain.RequestSnapshot {
	if s.AuthToken != "" {
		s.AuthToken = Masked
	}
	if len(s.Headers) > 0 {
		h := make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			if isSensitiveKey(k) {
				h[k] = Masked
			} else {
				h[k] = v
			}
		}
		s.Headers = h
	}
	return s
}

// Script masks credential header values embedded in generated script text.
// The stored script stays intact; only outbound copies pass through here.
func Script(s string) string {
	return scriptHeaderValue.ReplaceAllString(s, "${1}"+Masked+"${2}")
}

// Map masks sensitive fields in an opaque log payload, recursively.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[k] = Masked
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Map(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = redactValue(t[i])
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if k == s {
			return true
		}
	}
	return false
}
