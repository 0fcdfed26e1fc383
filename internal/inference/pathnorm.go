package inference

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var numericSegment = regexp.MustCompile(`^\d+$`)

// NormalizePath collapses identifier-like path segments to {id} so repeated
// observations of the same logical endpoint share one key. A segment is
// collapsed when it is purely numeric or parses as a UUID (8-4-4-4-12 hex).
func NormalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if numericSegment.MatchString(seg) || isUUID(seg) {
			segments[i] = "{id}"
		}
	}
	normalized := strings.TrimRight(strings.Join(segments, "/"), "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return normalized
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// endpointKey is the dedup key for merged observations.
func endpointKey(method, normalizedPath string) string {
	return method + " " + normalizedPath
}

// operationID derives a stable camel-case operation id from a method and a
// normalized path, e.g. GET /users/{id} -> getUsersById.
func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") {
			name := strings.Trim(seg, "{}")
			b.WriteString("By")
			b.WriteString(capitalize(name))
			continue
		}
		b.WriteString(capitalize(seg))
	}
	return b.String()
}

// tagFor picks the grouping tag for a normalized path: its first concrete
// segment, or "root" when there is none.
func tagFor(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		return seg
	}
	return "root"
}

func capitalize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '.':
			return ' '
		}
		return r
	}, s)
	parts := strings.Fields(cleaned)
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
