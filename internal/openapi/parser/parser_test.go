package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/schema"
)

const contactDocument = `
openapi: 3.0.3
info: {title: Contact, version: 1.0.0}
paths:
  /contact:
    post:
      operationId: contact
      summary: Contact Form
      x-formflow: {position: 2}
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name, topics]
              properties:
                name:
                  type: string
                  minLength: 2
                  x-formflow:
                    requiredMessage: Tell us your name
                    messages: {minLength: Too short}
                kind:
                  type: string
                  enum: [question, bug]
                  default: question
                details:
                  type: string
                  x-formflow: {rules: [numeric], transform: number}
                topics:
                  type: array
                  minItems: 1
                  items: {type: string, enum: [billing, support]}
                score:
                  type: integer
                  minimum: 1
                site:
                  type: string
                  format: uri
              x-formflow:
                order: [name, kind, details]
                union:
                  discriminator: kind
                  variants:
                    bug: {fields: [details], required: [details]}
                refinements:
                  - when: kind == "bug" && name == "root"
                    message: Root cannot file bugs
                    target: name
                storage: {key: contactData, scope: persistent}
                validateOnChange: true
      responses:
        '200': {description: ok}
  /ping:
    post:
      operationId: ping
      summary: Ping
      x-formflow: {position: 1}
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                note: {type: string}
      responses:
        '200': {description: ok}
`

func parse(t *testing.T, raw string, options Options) ([]schema.FormSchema, error) {
	t.Helper()
	doc, err := schema.NewDocument(schema.SourceFromFile("inline.yaml"), []byte(raw))
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	return New(options).Forms(context.Background(), doc)
}

func TestFormsBuildsSchemas(t *testing.T) {
	t.Parallel()

	forms, err := parse(t, contactDocument, Options{Validate: true})
	if err != nil {
		t.Fatalf("Forms: %v", err)
	}
	if len(forms) != 2 || forms[0].ID != "ping" || forms[1].ID != "contact" {
		t.Fatalf("unexpected forms order: %+v", forms)
	}

	contact := forms[1]
	want := schema.FormSchema{
		ID:    "contact",
		Title: "Contact Form",
		Route: "/contact",
		Fields: []schema.FieldSpec{
			{ID: "name", Label: "Name", Kind: schema.KindString, Required: true, RequiredMessage: "Tell us your name",
				Rules: []schema.Rule{{Kind: schema.RuleMinLength, Params: map[string]string{"value": "2"}, Message: "Too short"}}},
			{ID: "kind", Label: "Kind", Kind: schema.KindEnum, Options: []string{"question", "bug"}, Default: "question"},
			{ID: "details", Label: "Details", Kind: schema.KindString, Transform: schema.TransformNumber,
				Rules: []schema.Rule{{Kind: schema.RuleNumeric}}},
			{ID: "score", Label: "Score", Kind: schema.KindNumber,
				Rules: []schema.Rule{{Kind: schema.RuleMin, Params: map[string]string{"value": "1"}}}},
			{ID: "site", Label: "Site", Kind: schema.KindString, Rules: []schema.Rule{{Kind: schema.RuleURL}}},
			{ID: "topics", Label: "Topics", Kind: schema.KindSet, Required: true, Options: []string{"billing", "support"},
				Rules: []schema.Rule{{Kind: schema.RuleMinItems, Params: map[string]string{"value": "1"}}}},
		},
		Union: &schema.Union{
			Discriminator: "kind",
			Variants: map[string]schema.Variant{
				"bug": {Fields: []schema.FieldID{"details"}, Required: []schema.FieldID{"details"}},
			},
		},
		Refinements: []schema.Refinement{{When: `kind == "bug" && name == "root"`, Message: "Root cannot file bugs", Target: "name"}},
		Storage:          schema.Storage{Key: "contactData", Scope: "persistent"},
		ValidateOnChange: true,
	}
	if diff := cmp.Diff(want, contact); diff != "" {
		t.Fatalf("contact mismatch (-want +got):\n%s", diff)
	}
}

func TestFormsRejectsBrokenCatalogues(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		from, to string
		want     string
	}{
		"unknown order entry": {"order: [name, kind, details]", "order: [name, missing]", "unknown property"},
		"unknown rule":        {"rules: [numeric]", "rules: [luhn]", `unknown rule "luhn"`},
		"unknown transform":   {"transform: number}", "transform: upper}", "unknown transform"},
		"bad variant field":   {"bug: {fields: [details]", "bug: {fields: [nope]", "unknown field"},
		"missing operation":   {"operationId: ping", "operationId: ''", "no operationId"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			raw := strings.Replace(contactDocument, tc.from, tc.to, 1)
			if raw == contactDocument {
				t.Fatalf("fixture replacement %q did not apply", tc.from)
			}
			_, err := parse(t, raw, Options{})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestFormsRequiresPaths(t *testing.T) {
	t.Parallel()

	_, err := parse(t, "openapi: 3.0.3\ninfo: {title: x, version: '1'}\npaths: {}\n", Options{})
	if err == nil {
		t.Fatalf("expected error for empty paths")
	}
}

func TestFormsStrictRejectsUnknownExtensionKeys(t *testing.T) {
	t.Parallel()

	raw := strings.Replace(contactDocument, "requiredMessage: Tell us your name", "requiredMessage: Tell us your name\n                    tooltip: Your name", 1)
	if raw == contactDocument {
		t.Fatalf("fixture replacement did not apply")
	}
	if _, err := parse(t, raw, Options{}); err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	_, err := parse(t, raw, Options{Strict: true})
	if err == nil || !strings.Contains(err.Error(), `unknown field "tooltip"`) {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}
