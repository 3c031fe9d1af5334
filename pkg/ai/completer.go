package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Prompt is a single structured completion request
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

// Schema names the JSON schema the response must satisfy
type Schema struct {
	Name       string
	Definition map[string]any
}

// Completer returns a response decoded into out that conforms to schema.
// Implementations return *SchemaViolation when the payload cannot be decoded
// or fails validation.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt, schema Schema, out any) error
}

// SchemaViolation reports a completion payload that does not match its schema
type SchemaViolation struct {
	Schema string
	Reason string
	Err    error
}

func (e *SchemaViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema %s violated: %s: %v", e.Schema, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema %s violated: %s", e.Schema, e.Reason)
}

func (e *SchemaViolation) Unwrap() error {
	return e.Err
}

// IsSchemaViolation reports whether err carries a SchemaViolation
func IsSchemaViolation(err error) bool {
	var sv *SchemaViolation
	return errors.As(err, &sv)
}

// extractJSON strips markdown code fences some models wrap JSON in
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}

	return strings.TrimSpace(content)
}
