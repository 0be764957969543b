package expressions

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// HasTokens reports whether s contains at least one {{path}} token.
func HasTokens(s string) bool {
	return tokenPattern.MatchString(s)
}

// Resolve replaces {{path}} tokens found in strings, recursing into maps and
// slices. Paths that do not resolve are left as literal token text. A string
// made of a single token is replaced by the raw value so numbers and objects
// keep their type.
func Resolve(value any, scope any) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, scope)
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for key, item := range v {
			resolved[key] = Resolve(item, scope)
		}
		return resolved
	case []any:
		resolved := make([]any, len(v))
		for i, item := range v {
			resolved[i] = Resolve(item, scope)
		}
		return resolved
	case map[string]string:
		resolved := make(map[string]string, len(v))
		for key, item := range v {
			resolved[key] = ToString(resolveString(item, scope))
		}
		return resolved
	case []string:
		resolved := make([]string, len(v))
		for i, item := range v {
			resolved[i] = ToString(resolveString(item, scope))
		}
		return resolved
	default:
		return value
	}
}

// ResolveString is Resolve for callers that always need text back.
func ResolveString(s string, scope any) string {
	return ToString(resolveString(s, scope))
}

func resolveString(s string, scope any) any {
	if !strings.Contains(s, "{{") {
		return s
	}

	matches := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := s[matches[0][2]:matches[0][3]]
		if value, ok := lookupToken(scope, path); ok {
			return value
		}
		return s
	}

	var builder strings.Builder
	last := 0

	for _, match := range matches {
		builder.WriteString(s[last:match[0]])

		path := s[match[2]:match[3]]
		if value, ok := lookupToken(scope, path); ok {
			builder.WriteString(ToString(value))
		} else {
			builder.WriteString(s[match[0]:match[1]])
		}

		last = match[1]
	}

	builder.WriteString(s[last:])
	return builder.String()
}

func lookupToken(scope any, path string) (any, bool) {
	if path == "" || scope == nil {
		return nil, false
	}

	return Lookup(scope, path)
}
