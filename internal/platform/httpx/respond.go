// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WarningsHeader carries non-blocking governance warnings back to the caller
// without failing the request.
const WarningsHeader = "X-Governance-Warnings"

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// DeniedResponse is the body returned for a blocked governed action.
type DeniedResponse struct {
	Error           string   `json:"error"`
	Messages        []string `json:"messages"`
	MatchedPolicies []string `json:"matchedPolicies"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// Denied sends the authorization-failure response for a blocked action.
func Denied(w http.ResponseWriter, messages, matchedPolicies []string) {
	if messages == nil {
		messages = []string{}
	}
	if matchedPolicies == nil {
		matchedPolicies = []string{}
	}
	JSON(w, http.StatusForbidden, DeniedResponse{
		Error:           "blocked by policy",
		Messages:        messages,
		MatchedPolicies: matchedPolicies,
	})
}

// SetWarnings attaches non-blocking warnings to the response header.
func SetWarnings(w http.ResponseWriter, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	w.Header().Set(WarningsHeader, strings.Join(warnings, "; "))
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
