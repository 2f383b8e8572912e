// Package script turns a request snapshot plus a run profile into an
// executable k6 load-test script. Generation is deterministic and does no I/O.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/domain"
)

// ErrInvalidSnapshot is returned when the snapshot lacks a method or url.
var ErrInvalidSnapshot = errors.New("script: snapshot missing method or url")

// durationThresholdMs is the per-request latency check asserted by the script.
const durationThresholdMs = 500

// Generate renders the load-test script for snap with the given profile.
// Missing optional snapshot fields never fail generation; only an empty
// method or url does.
func Generate(snap domain.RequestSnapshot, opts domain.RunOptions) (string, error) {
	method := strings.ToUpper(strings.TrimSpace(snap.Method))
	target := strings.TrimSpace(snap.URL)
	if method == "" || target == "" {
		return "", ErrInvalidSnapshot
	}

	headers := mergeHeaders(snap, method)
	target = mergeQuery(target, snap.QueryParams)

	hasBody := snap.Body != "" && method != "GET" && method != "HEAD"
	body := "null"
	if hasBody {
		body = jsString(snap.Body)
	}

	var b strings.Builder
	b.WriteString("import http from 'k6/http';\n")
	b.WriteString("import { check, sleep } from 'k6';\n")
	b.WriteString("import { Rate, Trend } from 'k6/metrics';\n\n")

	fmt.Fprintf(&b, "export const options = {\n  vus: %d,\n  duration: %s,\n};\n\n",
		opts.VirtualUsers, jsString(opts.Duration))

	b.WriteString("const successRate = new Rate('success');\n")
	b.WriteString("const failureRate = new Rate('failure');\n")
	b.WriteString("const requestDuration = new Trend('request_duration', true);\n\n")

	b.WriteString("export default function () {\n")
	fmt.Fprintf(&b, "  const url = %s;\n", jsString(target))
	b.WriteString("  const params = { headers: {\n")
	for _, k := range sortedKeys(headers) {
		fmt.Fprintf(&b, "    %s: %s,\n", jsString(k), jsString(headers[k]))
	}
	b.WriteString("  } };\n")
	fmt.Fprintf(&b, "  const res = http.request(%s, url, %s, params);\n", jsString(method), body)
	b.WriteString("  requestDuration.add(res.timings.duration);\n")
	b.WriteString("  const ok = check(res, {\n")
	b.WriteString("    'status is 2xx': (r) => r.status >= 200 && r.status < 300,\n")
	fmt.Fprintf(&b, "    'duration below threshold': (r) => r.timings.duration < %d,\n", durationThresholdMs)
	b.WriteString("  });\n")
	b.WriteString("  successRate.add(ok);\n")
	b.WriteString("  failureRate.add(!ok);\n")
	b.WriteString("  sleep(1);\n")
	b.WriteString("}\n")

	return b.String(), nil
}

// mergeHeaders applies the content-type and auth injection rules on top of the
// caller's headers. Caller-set headers win over injected ones.
func mergeHeaders(snap domain.RequestSnapshot, method string) map[string]string {
	headers := make(map[string]string, len(snap.Headers)+2)
	for k, v := range snap.Headers {
		headers[k] = v
	}

	bodyMethod := method == "POST" || method == "PUT" || method == "PATCH"
	if bodyMethod && snap.Body != "" && !hasHeader(headers, "Content-Type") {
		headers["Content-Type"] = "application/json"
	}

	switch strings.ToLower(snap.AuthType) {
	case domain.AuthBearer:
		headers["Authorization"] = "Bearer " + snap.AuthToken
	case domain.AuthBasic:
		// token is assumed pre-encoded
		headers["Authorization"] = "Basic " + snap.AuthToken
	}
	return headers
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// mergeQuery appends snapshot query parameters to target in sorted key order.
func mergeQuery(target string, params map[string]string) string {
	if len(params) == 0 {
		return target
	}
	var parts []string
	for _, k := range sortedKeys(params) {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + strings.Join(parts, "&")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// jsString renders s as a JS string literal. JSON string escaping is a strict
// subset of JS, so this is safe to embed.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
