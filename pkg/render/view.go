package render

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// DateTimeLayout is the value format of datetime-local inputs.
const DateTimeLayout = "2006-01-02T15:04"

// FormState is the read side of a form controller.
type FormState interface {
	Schema() *schema.FormSchema
	Values() schema.Values
	VisibleFields() []schema.FieldSpec
	Required(id schema.FieldID) bool
	Result() schema.Result
	Entries() []forms.Summary
}

// View is the presentation model shared by every renderer.
type View struct {
	FormID           string          `json:"formId"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	Action           string          `json:"action"`
	ValidateURL      string          `json:"validateUrl,omitempty"`
	ValidateOnChange bool            `json:"validateOnChange"`
	Discriminator    string          `json:"discriminator,omitempty"`
	Fields           []FieldView     `json:"fields"`
	FormErrors       []string        `json:"formErrors,omitempty"`
	History          []forms.Summary `json:"history"`
	Nav              []NavItem       `json:"nav,omitempty"`
	Notice           string          `json:"notice,omitempty"`
}

// FieldView is one visible field with its current value and message.
type FieldView struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Kind        string   `json:"kind"`
	Widget      string   `json:"widget"`
	Placeholder string   `json:"placeholder,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Value       string   `json:"value"`
	Options     []Option `json:"options,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Option is one choice of an enum or set field.
type Option struct {
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// NavItem links to a form page.
type NavItem struct {
	Title  string `json:"title"`
	Route  string `json:"route"`
	Active bool   `json:"active"`
}

// ViewOption customises BuildView.
type ViewOption func(*View)

// WithNav adds a navigation entry per form, marking the one being rendered.
func WithNav(all []*schema.FormSchema) ViewOption {
	return func(v *View) {
		v.Nav = v.Nav[:0]
		for _, form := range all {
			v.Nav = append(v.Nav, NavItem{Title: form.Title, Route: form.Route, Active: form.ID == v.FormID})
		}
	}
}

// WithNotice sets a one-off message shown above the form.
func WithNotice(notice string) ViewOption {
	return func(v *View) {
		v.Notice = strings.TrimSpace(notice)
	}
}

// WithFormErrors appends form-level messages.
func WithFormErrors(messages ...string) ViewOption {
	return func(v *View) {
		v.FormErrors = MergeFormErrors(v.FormErrors, messages...)
	}
}

// BuildView snapshots state into a View.
func BuildView(state FormState, opts ...ViewOption) View {
	form := state.Schema()
	values := state.Values()
	errs := MapResult(form, values, state.Result())

	view := View{
		FormID:           form.ID,
		Title:            form.Title,
		Description:      form.Description,
		Action:           form.Route,
		ValidateOnChange: form.ValidateOnChange,
		FormErrors:       errs.Form,
		History:          state.Entries(),
	}
	if form.ValidateOnChange {
		view.ValidateURL = ValidateURL(form.Route)
	}
	if form.Union != nil {
		view.Discriminator = string(form.Union.Discriminator)
	}
	for _, field := range state.VisibleFields() {
		view.Fields = append(view.Fields, fieldView(field, values, state.Required(field.ID), errs.Fields[string(field.ID)]))
	}
	if view.History == nil {
		view.History = []forms.Summary{}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&view)
		}
	}
	return view
}

// ValidateURL is where a form on route posts its values for validation.
func ValidateURL(route string) string {
	return path.Join(route, "validate")
}

func fieldView(field schema.FieldSpec, values schema.Values, required bool, message string) FieldView {
	raw, _ := values.Get(field.ID)
	out := FieldView{
		ID:          string(field.ID),
		Label:       field.Label,
		Kind:        string(field.Kind),
		Widget:      WidgetFor(field),
		Placeholder: field.Placeholder,
		Description: field.Description,
		Required:    required,
		Value:       FormatValue(raw),
		Error:       message,
	}
	if len(field.Options) > 0 {
		selected := make(map[string]bool)
		for _, v := range selectedValues(raw) {
			selected[v] = true
		}
		for _, option := range field.Options {
			out.Options = append(out.Options, Option{Value: option, Selected: selected[option]})
		}
	}
	return out
}

// WidgetFor picks the input control for field, honouring an explicit widget
// hint from the catalogue.
func WidgetFor(field schema.FieldSpec) string {
	if field.Widget != "" {
		return field.Widget
	}
	switch field.Kind {
	case schema.KindEnum:
		return "select"
	case schema.KindSet:
		return "checkbox"
	case schema.KindNumber:
		return "number"
	case schema.KindDateTime:
		return "datetime-local"
	}
	for _, rule := range field.Rules {
		switch rule.Kind {
		case schema.RuleEmail:
			return "email"
		case schema.RuleURL:
			return "url"
		}
	}
	return "text"
}

// FormatValue renders a raw form value the way inputs expect it.
func FormatValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(DateTimeLayout)
	case []string:
		return strings.Join(v, ", ")
	default:
		return ""
	}
}

func selectedValues(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
