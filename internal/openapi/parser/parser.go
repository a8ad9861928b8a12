package parser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Options tunes catalogue parsing.
type Options struct {
	// Validate runs kin-openapi document validation before forms are built.
	Validate bool
	// Strict rejects x-formflow keys the parser does not understand.
	Strict bool
}

// Parser turns an OpenAPI catalogue into form schemas. Every POST operation
// with a JSON request body becomes one form keyed by its operationId.
type Parser struct {
	options Options
}

// New constructs a Parser.
func New(options Options) *Parser {
	return &Parser{options: options}
}

// Forms parses doc and returns its forms ordered by their declared position.
func (p *Parser) Forms(ctx context.Context, doc schema.Document) ([]schema.FormSchema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := doc.Raw()
	if len(raw) == 0 {
		return nil, errors.New("catalogue parser: document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("catalogue parser: load %s: %w", doc.Location(), err)
	}
	if p.options.Validate {
		if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("catalogue parser: validate %s: %w", doc.Location(), err)
		}
	}
	if spec.Paths == nil || spec.Paths.Len() == 0 {
		return nil, errors.New("catalogue parser: document does not contain any paths")
	}

	type positioned struct {
		position int
		form     schema.FormSchema
	}
	var collected []positioned
	seen := make(map[string]string)
	for route, item := range spec.Paths.Map() {
		if item == nil || item.Post == nil {
			continue
		}
		form, position, err := p.buildForm(route, item.Post)
		if err != nil {
			return nil, err
		}
		if other, dup := seen[form.ID]; dup {
			return nil, fmt.Errorf("catalogue parser: form %q declared by %s and %s", form.ID, other, route)
		}
		seen[form.ID] = route
		collected = append(collected, positioned{position: position, form: form})
	}
	if len(collected) == 0 {
		return nil, errors.New("catalogue parser: no forms declared")
	}

	sort.Slice(collected, func(i, j int) bool {
		if collected[i].position != collected[j].position {
			return collected[i].position < collected[j].position
		}
		return collected[i].form.ID < collected[j].form.ID
	})
	forms := make([]schema.FormSchema, len(collected))
	for i, entry := range collected {
		forms[i] = entry.form
	}
	return forms, nil
}

func (p *Parser) buildForm(route string, op *openapi3.Operation) (schema.FormSchema, int, error) {
	id := strings.TrimSpace(op.OperationID)
	if id == "" {
		return schema.FormSchema{}, 0, fmt.Errorf("catalogue parser: POST %s has no operationId", route)
	}
	var opExt operationExtension
	if err := p.decodeExtension(op.Extensions, &opExt); err != nil {
		return schema.FormSchema{}, 0, fmt.Errorf("catalogue parser: form %s: %w", id, err)
	}

	body := requestSchema(op.RequestBody)
	if body == nil {
		return schema.FormSchema{}, 0, fmt.Errorf("catalogue parser: form %s: request body schema is required", id)
	}
	var formExt formExtension
	if err := p.decodeExtension(body.Extensions, &formExt); err != nil {
		return schema.FormSchema{}, 0, fmt.Errorf("catalogue parser: form %s: %w", id, err)
	}

	order, err := fieldOrder(body, formExt.Order)
	if err != nil {
		return schema.FormSchema{}, 0, fmt.Errorf("catalogue parser: form %s: %w", id, err)
	}
	required := make(map[string]bool, len(body.Required))
	for _, name := range body.Required {
		required[name] = true
	}

	form := schema.FormSchema{
		ID:               id,
		Title:            op.Summary,
		Description:      op.Description,
		Route:            route,
		Refinements:      formExt.refinements(),
		Storage:          schema.Storage{Key: formExt.Storage.Key, Scope: formExt.Storage.Scope},
		ValidateOnChange: formExt.ValidateOnChange,
		Union:            formExt.union(),
	}
	for _, name := range order {
		field, err := p.buildField(name, body.Properties[name], required[name])
		if err != nil {
			return schema.FormSchema{}, 0, fmt.Errorf("catalogue parser: form %s: %w", id, err)
		}
		form.Fields = append(form.Fields, field)
	}
	if err := form.Check(); err != nil {
		return schema.FormSchema{}, 0, fmt.Errorf("catalogue parser: %w", err)
	}
	return form, opExt.Position, nil
}

func requestSchema(body *openapi3.RequestBodyRef) *openapi3.Schema {
	if body == nil || body.Value == nil {
		return nil
	}
	media, ok := body.Value.Content["application/json"]
	if !ok || media == nil || media.Schema == nil {
		return nil
	}
	return media.Schema.Value
}

// fieldOrder returns the declared order, appending undeclared properties
// alphabetically. Entries naming unknown properties are rejected.
func fieldOrder(body *openapi3.Schema, declared []string) ([]string, error) {
	listed := make(map[string]bool, len(declared))
	out := make([]string, 0, len(body.Properties))
	for _, name := range declared {
		if _, ok := body.Properties[name]; !ok {
			return nil, fmt.Errorf("order references unknown property %q", name)
		}
		if listed[name] {
			return nil, fmt.Errorf("order lists %q twice", name)
		}
		listed[name] = true
		out = append(out, name)
	}
	var rest []string
	for name := range body.Properties {
		if !listed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...), nil
}

func (p *Parser) buildField(name string, ref *openapi3.SchemaRef, required bool) (schema.FieldSpec, error) {
	if ref == nil || ref.Value == nil {
		return schema.FieldSpec{}, fmt.Errorf("property %q has no schema", name)
	}
	src := ref.Value
	var ext fieldExtension
	if err := p.decodeExtension(src.Extensions, &ext); err != nil {
		return schema.FieldSpec{}, fmt.Errorf("property %q: %w", name, err)
	}

	field := schema.FieldSpec{
		ID:              schema.FieldID(name),
		Label:           ext.Label,
		Required:        required,
		RequiredMessage: ext.RequiredMessage,
		TypeMessage:     ext.TypeMessage,
		Transform:       ext.Transform,
		Widget:          ext.Widget,
		Placeholder:     ext.Placeholder,
		Description:     src.Description,
	}
	if field.Label == "" {
		field.Label = schema.LabelFor(name)
	}

	switch typ := schemaType(src.Type); typ {
	case "number", "integer":
		field.Kind = schema.KindNumber
	case "array":
		if src.Items == nil || src.Items.Value == nil || len(src.Items.Value.Enum) == 0 {
			return schema.FieldSpec{}, fmt.Errorf("property %q: arrays must list enum items", name)
		}
		field.Kind = schema.KindSet
		field.Options = enumStrings(src.Items.Value.Enum)
	case "string", "":
		switch {
		case len(src.Enum) > 0:
			field.Kind = schema.KindEnum
			field.Options = enumStrings(src.Enum)
		case src.Format == "date-time":
			field.Kind = schema.KindDateTime
		default:
			field.Kind = schema.KindString
		}
	default:
		return schema.FieldSpec{}, fmt.Errorf("property %q: unsupported type %q", name, typ)
	}

	rules, err := fieldRules(src, ext)
	if err != nil {
		return schema.FieldSpec{}, fmt.Errorf("property %q: %w", name, err)
	}
	field.Rules = rules
	switch field.Transform {
	case "", schema.TransformNumber, schema.TransformDateTime:
	default:
		return schema.FieldSpec{}, fmt.Errorf("property %q: unknown transform %q", name, field.Transform)
	}

	if src.Default != nil {
		field.Default = normalizeDefault(field.Kind, src.Default)
	}
	return field, nil
}

func fieldRules(src *openapi3.Schema, ext fieldExtension) ([]schema.Rule, error) {
	var rules []schema.Rule
	add := func(kind string, params map[string]string) {
		rules = append(rules, schema.Rule{Kind: kind, Params: params, Message: ext.Messages[kind]})
	}
	if src.MinLength > 0 {
		add(schema.RuleMinLength, map[string]string{"value": strconv.FormatUint(src.MinLength, 10)})
	}
	if src.Pattern != "" {
		add(schema.RulePattern, map[string]string{"pattern": src.Pattern})
	}
	switch src.Format {
	case "email":
		add(schema.RuleEmail, nil)
	case "uri", "url":
		add(schema.RuleURL, nil)
	}
	for _, extra := range ext.Rules {
		switch extra {
		case schema.RuleNumeric, schema.RuleEmail, schema.RuleURL:
			add(extra, nil)
		default:
			return nil, fmt.Errorf("unknown rule %q", extra)
		}
	}
	if src.Min != nil {
		params := map[string]string{"value": strconv.FormatFloat(*src.Min, 'f', -1, 64)}
		if src.ExclusiveMin {
			params["exclusive"] = "true"
		}
		add(schema.RuleMin, params)
	}
	if src.MinItems > 0 {
		add(schema.RuleMinItems, map[string]string{"value": strconv.FormatUint(src.MinItems, 10)})
	}
	return rules, nil
}

func schemaType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	values := types.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func enumStrings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, fmt.Sprint(value))
	}
	return out
}

func normalizeDefault(kind schema.FieldKind, value any) any {
	switch kind {
	case schema.KindSet:
		items, ok := value.([]any)
		if !ok {
			return []string{}
		}
		return enumStrings(items)
	case schema.KindNumber:
		return value
	default:
		return fmt.Sprint(value)
	}
}
