package forms

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/goliatone/go-formflow/internal/openapi/loader"
	"github.com/goliatone/go-formflow/internal/openapi/parser"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// CatalogName is the embedded catalogue entry.
const CatalogName = "catalog.yaml"

//go:embed catalog.yaml
var embedded embed.FS

// CatalogFS exposes the embedded catalogue document.
func CatalogFS() fs.FS { return embedded }

// ErrUnknownForm is returned when a form id or route is not in the catalogue.
var ErrUnknownForm = errors.New("forms: unknown form")

// Definition binds a form schema to the builder of its record type.
type Definition[R Record] struct {
	Schema *schema.FormSchema
	Build  func(meta Meta, values schema.Values) (R, error)
}

// Catalog holds the parsed forms.
type Catalog struct {
	forms []schema.FormSchema
	byID  map[string]int
}

// LoadOption tweaks Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	files    fs.FS
	source   schema.Source
	validate bool
	strict   bool
}

// WithSource reads the catalogue from src instead of the embedded copy. FS
// sources resolve against the embedded filesystem unless WithFS is also set.
func WithSource(src schema.Source) LoadOption {
	return func(o *loadOptions) {
		if src != nil {
			o.source = src
		}
	}
}

// WithFS sets the filesystem used for FS sources.
func WithFS(files fs.FS) LoadOption {
	return func(o *loadOptions) {
		if files != nil {
			o.files = files
		}
	}
}

// WithValidation toggles OpenAPI document validation.
func WithValidation(enabled bool) LoadOption {
	return func(o *loadOptions) {
		o.validate = enabled
	}
}

// WithStrictExtensions rejects x-formflow keys the parser does not know.
func WithStrictExtensions(enabled bool) LoadOption {
	return func(o *loadOptions) {
		o.strict = enabled
	}
}

// Load reads, parses and checks the catalogue. Every form must declare
// exactly the identifiers this package knows about.
func Load(ctx context.Context, opts ...LoadOption) (*Catalog, error) {
	cfg := loadOptions{
		files:  embedded,
		source: schema.SourceFromFS(CatalogName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	doc, err := loader.New(cfg.files).Load(ctx, cfg.source)
	if err != nil {
		return nil, fmt.Errorf("forms: load catalogue %s: %w", cfg.source.Location(), err)
	}
	parsed, err := parser.New(parser.Options{Validate: cfg.validate, Strict: cfg.strict}).Forms(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("forms: %w", err)
	}
	return newCatalog(parsed)
}

func newCatalog(parsed []schema.FormSchema) (*Catalog, error) {
	c := &Catalog{forms: parsed, byID: make(map[string]int, len(parsed))}
	for i, form := range parsed {
		if _, known := fieldSets[form.ID]; !known {
			return nil, fmt.Errorf("forms: catalogue declares unknown form %q", form.ID)
		}
		if err := checkDrift(form); err != nil {
			return nil, err
		}
		c.byID[form.ID] = i
	}
	for id := range fieldSets {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("forms: catalogue is missing form %q", id)
		}
	}
	return c, nil
}

func checkDrift(form schema.FormSchema) error {
	want := make(map[schema.FieldID]bool)
	for _, id := range fieldSets[form.ID] {
		want[id] = true
	}
	var extra, missing []string
	for _, id := range form.IDs() {
		if !want[id] {
			extra = append(extra, string(id))
		}
		delete(want, id)
	}
	for id := range want {
		missing = append(missing, string(id))
	}
	if len(extra) == 0 && len(missing) == 0 {
		return nil
	}
	sort.Strings(extra)
	sort.Strings(missing)
	return fmt.Errorf("forms: form %s drifted from its field set (unknown: [%s], missing: [%s])",
		form.ID, strings.Join(extra, ", "), strings.Join(missing, ", "))
}

// Forms returns the forms in catalogue order.
func (c *Catalog) Forms() []*schema.FormSchema {
	out := make([]*schema.FormSchema, len(c.forms))
	for i := range c.forms {
		out[i] = &c.forms[i]
	}
	return out
}

// Form looks up a form by id.
func (c *Catalog) Form(id string) (*schema.FormSchema, error) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownForm, id)
	}
	return &c.forms[idx], nil
}

// ByRoute looks up a form by the route it is served on.
func (c *Catalog) ByRoute(route string) (*schema.FormSchema, error) {
	for i := range c.forms {
		if c.forms[i].Route == route {
			return &c.forms[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no form on route %q", ErrUnknownForm, route)
}

// Registration returns the event registration definition.
func (c *Catalog) Registration() Definition[Registration] {
	return Definition[Registration]{Schema: c.must(RegistrationID), Build: BuildRegistration}
}

// JobApplication returns the job application definition.
func (c *Catalog) JobApplication() Definition[JobApplication] {
	return Definition[JobApplication]{Schema: c.must(JobApplicationID), Build: BuildJobApplication}
}

// Survey returns the survey definition.
func (c *Catalog) Survey() Definition[Survey] {
	return Definition[Survey]{Schema: c.must(SurveyID), Build: BuildSurvey}
}

// must is safe for the three known ids: newCatalog refuses catalogues that
// lack any of them.
func (c *Catalog) must(id string) *schema.FormSchema {
	form, err := c.Form(id)
	if err != nil {
		panic(err)
	}
	return form
}

// SetScope overrides the storage scope of form id.
func (c *Catalog) SetScope(id, scope string) error {
	form, err := c.Form(id)
	if err != nil {
		return err
	}
	form.Storage.Scope = scope
	return nil
}

// SetKey overrides the storage key of form id.
func (c *Catalog) SetKey(id, key string) error {
	form, err := c.Form(id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("forms: empty storage key for %s", id)
	}
	form.Storage.Key = key
	return nil
}
