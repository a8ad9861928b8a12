package controller

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/store"
)

// Form is a Controller with its record type erased, for presentation code
// that handles every form the same way.
type Form interface {
	Schema() *schema.FormSchema
	Values() schema.Values
	UpdateField(name string, value any) error
	Fill(values map[string]any) error
	VisibleFields() []schema.FieldSpec
	Required(id schema.FieldID) bool
	Validate() schema.Result
	Result() schema.Result
	Submit(ctx context.Context) (schema.Result, error)
	Entries() []forms.Summary
	Records() []forms.Record
	Reset()
}

var (
	_ Form = (*Controller[forms.Registration])(nil)
	_ Form = (*Controller[forms.JobApplication])(nil)
	_ Form = (*Controller[forms.Survey])(nil)
)

// Open builds the controller for form id, picking the storage port from the
// router according to the form's storage scope.
func Open(ctx context.Context, catalog *forms.Catalog, id string, router store.Router, opts ...Option) (Form, error) {
	form, err := catalog.Form(id)
	if err != nil {
		return nil, err
	}
	scope, err := store.ParseScope(form.Storage.Scope)
	if err != nil {
		return nil, fmt.Errorf("controller: form %s: %w", id, err)
	}
	port, err := router.For(scope)
	if err != nil {
		return nil, fmt.Errorf("controller: form %s: %w", id, err)
	}

	switch id {
	case forms.RegistrationID:
		return erase(New(ctx, catalog.Registration(), port, opts...))
	case forms.JobApplicationID:
		return erase(New(ctx, catalog.JobApplication(), port, opts...))
	case forms.SurveyID:
		return erase(New(ctx, catalog.Survey(), port, opts...))
	default:
		return nil, fmt.Errorf("%w: %q", forms.ErrUnknownForm, id)
	}
}

func erase[R forms.Record](c *Controller[R], err error) (Form, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
