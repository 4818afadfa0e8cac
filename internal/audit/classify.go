package audit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Path prefixes stripped before classification.
var classifierPrefixes = []string{"api", "account", "center"}

var titleCaser = cases.Title(language.English)

// ResourceTypeFromPath derives a resource type label from a request path:
// strip known prefixes, drop purely numeric segments, trim the plural "s"
// and title-case the first remaining segment. This is a best-effort
// classifier; custom sub-routes can and do misclassify, and callers must
// not rely on exact naming.
func ResourceTypeFromPath(path string) string {
	segments := strings.Split(path, "/")
	var parts []string
	for _, seg := range segments {
		if seg == "" || isNumeric(seg) {
			continue
		}
		if len(parts) == 0 && isClassifierPrefix(seg) {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	resource := strings.TrimSuffix(parts[0], "s")
	if resource == "" {
		resource = parts[0]
	}
	return titleCaser.String(resource)
}

// ResourceIDFromPath returns the trailing numeric path segment, if any.
func ResourceIDFromPath(path string) string {
	segments := strings.Split(strings.TrimRight(path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	last := segments[len(segments)-1]
	if isNumeric(last) {
		return last
	}
	return ""
}

// Scrub returns a copy of payload with the given keys removed,
// case-insensitively and at any nesting depth. The original map is left
// untouched.
func Scrub(payload map[string]any, denied []string) map[string]any {
	if payload == nil {
		return nil
	}
	lowered := make([]string, 0, len(denied))
	for _, key := range denied {
		lowered = append(lowered, strings.ToLower(key))
	}
	return scrubMap(payload, lowered)
}

// Substring match so variants like old_password or api_token are
// dropped along with the bare names.
func scrubKey(key string, denied []string) bool {
	lower := strings.ToLower(key)
	for _, frag := range denied {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func scrubMap(payload map[string]any, denied []string) map[string]any {
	clean := make(map[string]any, len(payload))
	for key, value := range payload {
		if scrubKey(key, denied) {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			clean[key] = scrubMap(nested, denied)
			continue
		}
		clean[key] = value
	}
	return clean
}

func isClassifierPrefix(seg string) bool {
	for _, prefix := range classifierPrefixes {
		if seg == prefix {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
