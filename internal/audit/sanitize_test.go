package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRedactsNestedKeys(t *testing.T) {
	s := NewSanitizer([]string{"password", "secret", "token", "apikey"})

	record := map[string]any{
		"user": map[string]any{
			"name":   "john",
			"apiKey": "key123",
		},
	}
	out, redacted := s.Sanitize(record)
	require.True(t, redacted)

	user, ok := out["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "john", user["name"])
	assert.Equal(t, RedactionMarker, user["apiKey"])

	// input untouched
	assert.Equal(t, "key123", record["user"].(map[string]any)["apiKey"])
}

func TestSanitizeCaseInsensitiveSubstring(t *testing.T) {
	s := NewSanitizer([]string{"password", "token"})

	out, redacted := s.Sanitize(map[string]any{
		"PASSWORD_HASH": "abc",
		"accessToken":   "xyz",
		"title":         "hello",
	})
	require.True(t, redacted)
	assert.Equal(t, RedactionMarker, out["PASSWORD_HASH"])
	assert.Equal(t, RedactionMarker, out["accessToken"])
	assert.Equal(t, "hello", out["title"])
}

func TestSanitizeListsOfRecords(t *testing.T) {
	s := NewSanitizer([]string{"secret"})

	out, redacted := s.Sanitize(map[string]any{
		"items": []any{
			map[string]any{"clientSecret": "s3cr3t", "id": 1},
			"plain string",
		},
	})
	require.True(t, redacted)
	items := out["items"].([]any)
	assert.Equal(t, RedactionMarker, items[0].(map[string]any)["clientSecret"])
	assert.Equal(t, 1, items[0].(map[string]any)["id"])
	assert.Equal(t, "plain string", items[1])
}

func TestSanitizeNothingSensitive(t *testing.T) {
	s := NewSanitizer([]string{"password"})

	out, redacted := s.Sanitize(map[string]any{"name": "doc", "count": 3})
	assert.False(t, redacted)
	assert.Equal(t, "doc", out["name"])
	assert.Equal(t, 3, out["count"])
}
