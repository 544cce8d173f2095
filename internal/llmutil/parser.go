// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

// fencedBlock captures the body of the first markdown code fence. The
// backticks are written as \x60 because raw strings cannot hold them.
var fencedBlock = regexp.MustCompile("(?s)\x60\x60\x60(?:[a-zA-Z]+)?\\s*(.*?)\\s*\x60\x60\x60")

// ExtractJSON isolates the JSON payload of a model response. It unwraps a
// fenced block when one is present and otherwise trims conversational text
// around the outermost object or array.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if m := fencedBlock.FindStringSubmatch(response); len(m) > 1 {
		response = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}

	// Prefer whichever structure opens first.
	obj := strings.Index(response, "{")
	arr := strings.Index(response, "[")
	open, closer := obj, "}"
	if arr != -1 && (obj == -1 || arr < obj) {
		open, closer = arr, "]"
	}
	if open == -1 {
		return response
	}
	if end := strings.LastIndex(response, closer); end > open {
		return response[open : end+1]
	}
	return response
}

// ParseJSONResponse decodes a model response into T after ExtractJSON.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := ExtractJSON(response)
	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(payload, 500))
	}
	return &result, nil
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
