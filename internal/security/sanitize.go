package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hireloop/hireloop/internal/core"
)

// Three pattern families checked on every string leaf. A match rejects the
// whole request; this is the single sanitization boundary, so downstream code
// must not re-implement ad hoc escaping.
var (
	scriptPattern = regexp.MustCompile(`(?i)(<\s*script|javascript\s*:|on(load|error|click|mouseover|focus)\s*=|<\s*iframe|<\s*object|<\s*embed|data\s*:\s*text/html)`)

	sqlPattern = regexp.MustCompile(`(?i)(\b(union\s+(all\s+)?select|insert\s+into|delete\s+from|drop\s+(table|database)|truncate\s+table|exec(ute)?\s*\()|'\s*(or|and)\s+['0-9]|--\s|;\s*(drop|delete|update)\b|\bxp_cmdshell\b)`)

	traversalPattern = regexp.MustCompile(`(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.%2e/|%00)`)
)

var stripPolicy = bluemonday.StrictPolicy()

// SanitizeString validates one untrusted string. Malicious content rejects
// with ErrMaliciousInput; otherwise dangerous markup is stripped and the
// cleaned value returned.
func SanitizeString(s string) (string, error) {
	if scriptPattern.MatchString(s) {
		return "", fmt.Errorf("script injection detected: %w", core.ErrMaliciousInput)
	}
	if sqlPattern.MatchString(s) {
		return "", fmt.Errorf("sql injection pattern detected: %w", core.ErrMaliciousInput)
	}
	if traversalPattern.MatchString(strings.ToLower(s)) {
		return "", fmt.Errorf("path traversal detected: %w", core.ErrMaliciousInput)
	}
	return stripPolicy.Sanitize(s), nil
}

// SanitizeValue recurses through nested request data (scalars, lists, keyed
// maps), checking every string leaf. Structure and order are preserved.
func SanitizeValue(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return SanitizeString(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			clean, err := SanitizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = clean
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			cleanKey, err := SanitizeString(k)
			if err != nil {
				return nil, err
			}
			clean, err := SanitizeValue(item)
			if err != nil {
				return nil, err
			}
			out[cleanKey] = clean
		}
		return out, nil
	default:
		// Numbers, booleans, nil pass through untouched.
		return v, nil
	}
}
