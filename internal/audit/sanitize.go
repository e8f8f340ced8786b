package audit

import "strings"

// RedactionMarker replaces sensitive values. Redaction is irreversible: the
// original value is never persisted.
const RedactionMarker = "[REDACTED]"

// Sanitizer masks values whose key contains a sensitive term.
type Sanitizer struct {
	terms []string
}

// NewSanitizer builds a Sanitizer from configured sensitive terms
// (case-insensitive substring match against key names).
func NewSanitizer(terms []string) *Sanitizer {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			lowered = append(lowered, t)
		}
	}
	return &Sanitizer{terms: lowered}
}

// Sanitize walks the record recursively and replaces any value whose key
// name contains a sensitive term. Structure is preserved; the input is not
// mutated. The second return reports whether anything was redacted.
func (s *Sanitizer) Sanitize(record map[string]any) (map[string]any, bool) {
	if record == nil {
		return nil, false
	}
	redacted := false
	out := make(map[string]any, len(record))
	for key, value := range record {
		if s.sensitive(key) {
			out[key] = RedactionMarker
			redacted = true
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			nested, hit := s.Sanitize(v)
			out[key] = nested
			redacted = redacted || hit
		case []any:
			items := make([]any, len(v))
			for i, item := range v {
				if nested, ok := item.(map[string]any); ok {
					cleaned, hit := s.Sanitize(nested)
					items[i] = cleaned
					redacted = redacted || hit
				} else {
					items[i] = item
				}
			}
			out[key] = items
		default:
			out[key] = value
		}
	}
	return out, redacted
}

func (s *Sanitizer) sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, term := range s.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
