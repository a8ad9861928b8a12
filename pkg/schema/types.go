package schema

import (
	"fmt"
	"strings"
)

// FieldID names one field of a form. Each form declares its identifiers as
// constants so callers cannot reference fields that do not exist.
type FieldID string

// String returns the identifier as plain text.
func (id FieldID) String() string { return string(id) }

// FieldKind is the primitive kind a field holds once normalised.
type FieldKind string

const (
	KindString   FieldKind = "string"
	KindNumber   FieldKind = "number"
	KindEnum     FieldKind = "enum"
	KindDateTime FieldKind = "datetime"
	KindSet      FieldKind = "set"
)

// Valid reports whether k is one of the known kinds.
func (k FieldKind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindEnum, KindDateTime, KindSet:
		return true
	default:
		return false
	}
}

const (
	RuleMin       = "min"
	RuleMinLength = "minLength"
	RuleMinItems  = "minItems"
	RulePattern   = "pattern"
	RuleEmail     = "email"
	RuleURL       = "url"
	RuleNumeric   = "numeric"
)

const (
	TransformNumber   = "number"
	TransformDateTime = "datetime"
)

// Rule is a single constraint applied to a non-empty field value. Thresholds
// live in Params["value"]; pattern rules keep the expression in
// Params["pattern"]; booleans such as exclusivity are encoded as strings.
type Rule struct {
	Kind    string            `json:"kind"`
	Params  map[string]string `json:"params,omitempty"`
	Message string            `json:"message,omitempty"`
}

// FieldSpec declares one field of a form.
type FieldSpec struct {
	ID              FieldID   `json:"id"`
	Label           string    `json:"label"`
	Kind            FieldKind `json:"kind"`
	Required        bool      `json:"required"`
	RequiredMessage string    `json:"requiredMessage,omitempty"`
	TypeMessage     string    `json:"typeMessage,omitempty"`
	Options         []string  `json:"options,omitempty"`
	Rules           []Rule    `json:"rules,omitempty"`
	Transform       string    `json:"transform,omitempty"`
	Widget          string    `json:"widget,omitempty"`
	Placeholder     string    `json:"placeholder,omitempty"`
	Description     string    `json:"description,omitempty"`
	Default         any       `json:"default,omitempty"`
}

// HasOption reports whether value is one of the declared options.
func (f FieldSpec) HasOption(value string) bool {
	for _, option := range f.Options {
		if option == value {
			return true
		}
	}
	return false
}

func (f FieldSpec) requiredMessage() string {
	if f.RequiredMessage != "" {
		return f.RequiredMessage
	}
	return fmt.Sprintf("%s is required", f.Label)
}

// Variant lists the conditional fields rendered for one discriminator value
// and the subset of them that must be filled in.
type Variant struct {
	Fields   []FieldID `json:"fields"`
	Required []FieldID `json:"required,omitempty"`
}

func (v Variant) has(id FieldID, list []FieldID) bool {
	for _, candidate := range list {
		if candidate == id {
			return true
		}
	}
	return false
}

// Shows reports whether id is rendered under this variant.
func (v Variant) Shows(id FieldID) bool { return v.has(id, v.Fields) }

// Requires reports whether id is required under this variant.
func (v Variant) Requires(id FieldID) bool { return v.has(id, v.Required) }

// Union makes a form a discriminated union keyed by one field. Fields that
// appear in at least one variant are conditional; every other field is always
// present.
type Union struct {
	Discriminator FieldID            `json:"discriminator"`
	Variants      map[string]Variant `json:"variants"`
}

// Conditional reports whether id belongs to any variant.
func (u *Union) Conditional(id FieldID) bool {
	if u == nil {
		return false
	}
	for _, variant := range u.Variants {
		if variant.Shows(id) {
			return true
		}
	}
	return false
}

// Active returns the variant selected by the discriminator value in values.
func (u *Union) Active(values Values) (Variant, bool) {
	if u == nil {
		return Variant{}, false
	}
	variant, ok := u.Variants[values.String(u.Discriminator)]
	return variant, ok
}

// Refinement is a cross-field rule. When holds for the current values the
// Message is reported against Target, which may differ from the fields the
// rule reads.
type Refinement struct {
	When    string  `json:"when"`
	Message string  `json:"message"`
	Target  FieldID `json:"target"`
}

// Storage describes where accepted submissions of a form are kept.
type Storage struct {
	Key   string `json:"key"`
	Scope string `json:"scope"`
}

// FormSchema is the declarative description of one form.
type FormSchema struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Route            string       `json:"route"`
	Fields           []FieldSpec  `json:"fields"`
	Union            *Union       `json:"union,omitempty"`
	Refinements      []Refinement `json:"refinements,omitempty"`
	Storage          Storage      `json:"storage"`
	ValidateOnChange bool         `json:"validateOnChange,omitempty"`
}

// Field returns the spec for id.
func (f *FormSchema) Field(id FieldID) (FieldSpec, bool) {
	if f == nil {
		return FieldSpec{}, false
	}
	for _, field := range f.Fields {
		if field.ID == id {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// Has reports whether the form declares id.
func (f *FormSchema) Has(id FieldID) bool {
	_, ok := f.Field(id)
	return ok
}

// IDs lists the declared field identifiers in order.
func (f *FormSchema) IDs() []FieldID {
	if f == nil {
		return nil
	}
	out := make([]FieldID, 0, len(f.Fields))
	for _, field := range f.Fields {
		out = append(out, field.ID)
	}
	return out
}

// Defaults returns a fresh Values seeded with each field's default. Fields
// without a default start as the zero value for their kind.
func (f *FormSchema) Defaults() Values {
	out := make(Values, len(f.Fields))
	for _, field := range f.Fields {
		if field.Default != nil {
			out[string(field.ID)] = cloneValue(field.Default)
			continue
		}
		switch field.Kind {
		case KindSet:
			out[string(field.ID)] = []string{}
		case KindNumber:
			out[string(field.ID)] = nil
		default:
			out[string(field.ID)] = ""
		}
	}
	return out
}

// Check verifies the schema is internally consistent: unique identifiers,
// known kinds, options for enums and sets, and union/refinement references
// pointing at declared fields.
func (f *FormSchema) Check() error {
	if f == nil {
		return fmt.Errorf("schema: form is nil")
	}
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("schema: form id is required")
	}
	seen := make(map[FieldID]struct{}, len(f.Fields))
	for _, field := range f.Fields {
		if field.ID == "" {
			return fmt.Errorf("schema: form %s: field id is required", f.ID)
		}
		if _, dup := seen[field.ID]; dup {
			return fmt.Errorf("schema: form %s: duplicate field %q", f.ID, field.ID)
		}
		seen[field.ID] = struct{}{}
		if !field.Kind.Valid() {
			return fmt.Errorf("schema: form %s: field %q has unknown kind %q", f.ID, field.ID, field.Kind)
		}
		if (field.Kind == KindEnum || field.Kind == KindSet) && len(field.Options) == 0 {
			return fmt.Errorf("schema: form %s: field %q requires options", f.ID, field.ID)
		}
	}
	if f.Union != nil {
		disc, ok := f.Field(f.Union.Discriminator)
		if !ok {
			return fmt.Errorf("schema: form %s: unknown discriminator %q", f.ID, f.Union.Discriminator)
		}
		for value, variant := range f.Union.Variants {
			if disc.Kind == KindEnum && !disc.HasOption(value) {
				return fmt.Errorf("schema: form %s: variant %q is not an option of %s", f.ID, value, disc.ID)
			}
			for _, id := range variant.Fields {
				if !f.Has(id) {
					return fmt.Errorf("schema: form %s: variant %q references unknown field %q", f.ID, value, id)
				}
				if id == disc.ID {
					return fmt.Errorf("schema: form %s: discriminator %q cannot be conditional", f.ID, id)
				}
			}
			for _, id := range variant.Required {
				if !variant.Shows(id) {
					return fmt.Errorf("schema: form %s: variant %q requires %q without showing it", f.ID, value, id)
				}
			}
		}
	}
	for _, refinement := range f.Refinements {
		if !f.Has(refinement.Target) {
			return fmt.Errorf("schema: form %s: refinement targets unknown field %q", f.ID, refinement.Target)
		}
		if strings.TrimSpace(refinement.When) == "" {
			return fmt.Errorf("schema: form %s: refinement for %q has no rule", f.ID, refinement.Target)
		}
	}
	return nil
}
