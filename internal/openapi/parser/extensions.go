package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-formflow/pkg/schema"
)

const extensionNamespace = "x-formflow"

// operationExtension is the x-formflow block of an operation.
type operationExtension struct {
	Position int `json:"position"`
}

// formExtension is the x-formflow block of a request body schema.
type formExtension struct {
	Order []string `json:"order"`
	Union *struct {
		Discriminator string `json:"discriminator"`
		Variants      map[string]struct {
			Fields   []string `json:"fields"`
			Required []string `json:"required"`
		} `json:"variants"`
	} `json:"union"`
	Refinements []struct {
		When    string `json:"when"`
		Message string `json:"message"`
		Target  string `json:"target"`
	} `json:"refinements"`
	Storage struct {
		Key   string `json:"key"`
		Scope string `json:"scope"`
	} `json:"storage"`
	ValidateOnChange bool `json:"validateOnChange"`
}

// fieldExtension is the x-formflow block of a property.
type fieldExtension struct {
	Label           string            `json:"label"`
	RequiredMessage string            `json:"requiredMessage"`
	TypeMessage     string            `json:"typeMessage"`
	Messages        map[string]string `json:"messages"`
	Rules           []string          `json:"rules"`
	Transform       string            `json:"transform"`
	Widget          string            `json:"widget"`
	Placeholder     string            `json:"placeholder"`
}

// decodeExtension copies the x-formflow entry of raw into target. A missing
// entry leaves target untouched.
func (p *Parser) decodeExtension(raw map[string]any, target any) error {
	value, ok := raw[extensionNamespace]
	if !ok || value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", extensionNamespace, err)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	if p.options.Strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", extensionNamespace, err)
	}
	return nil
}

func (e formExtension) union() *schema.Union {
	if e.Union == nil {
		return nil
	}
	union := &schema.Union{
		Discriminator: schema.FieldID(e.Union.Discriminator),
		Variants:      make(map[string]schema.Variant, len(e.Union.Variants)),
	}
	for value, variant := range e.Union.Variants {
		union.Variants[value] = schema.Variant{
			Fields:   fieldIDs(variant.Fields),
			Required: fieldIDs(variant.Required),
		}
	}
	return union
}

func (e formExtension) refinements() []schema.Refinement {
	if len(e.Refinements) == 0 {
		return nil
	}
	out := make([]schema.Refinement, 0, len(e.Refinements))
	for _, r := range e.Refinements {
		out = append(out, schema.Refinement{When: r.When, Message: r.Message, Target: schema.FieldID(r.Target)})
	}
	return out
}

func fieldIDs(names []string) []schema.FieldID {
	if len(names) == 0 {
		return nil
	}
	out := make([]schema.FieldID, len(names))
	for i, name := range names {
		out[i] = schema.FieldID(name)
	}
	return out
}
