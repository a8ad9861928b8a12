package render

import (
	"strings"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// ErrorMapping splits a validation result into field-level and form-level
// messages keyed by field id.
type ErrorMapping struct {
	Fields map[string]string `json:"fields,omitempty"`
	Form   []string          `json:"form,omitempty"`
}

// Empty reports whether no message was mapped.
func (m ErrorMapping) Empty() bool {
	return len(m.Fields) == 0 && len(m.Form) == 0
}

// MergeFormErrors concatenates and normalises form-level messages, trimming
// whitespace and removing duplicates while preserving order.
func MergeFormErrors(existing []string, extras ...string) []string {
	combined := make([]string, 0, len(existing)+len(extras))
	combined = append(combined, existing...)
	combined = append(combined, extras...)
	return normalizeMessages(combined)
}

// MapResult maps result onto the fields of form. Issues on fields that are
// not currently visible, or that the form does not declare, are reported at
// form level so they are never lost.
func MapResult(form *schema.FormSchema, values schema.Values, result schema.Result) ErrorMapping {
	mapping := ErrorMapping{}
	if result.Valid() {
		return mapping
	}

	visible := make(map[schema.FieldID]struct{})
	for _, field := range schema.VisibleFields(form, values) {
		visible[field.ID] = struct{}{}
	}

	for _, issue := range result.Issues {
		message := strings.TrimSpace(issue.Message)
		if message == "" {
			continue
		}
		if _, ok := visible[issue.Field]; !ok || issue.Field == "" {
			mapping.Form = append(mapping.Form, message)
			continue
		}
		if mapping.Fields == nil {
			mapping.Fields = make(map[string]string)
		}
		if _, exists := mapping.Fields[string(issue.Field)]; !exists {
			mapping.Fields[string(issue.Field)] = message
		}
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))

	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
