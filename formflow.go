// Package formflow is the top-level entry point: load the catalogue, open a
// form over a storage router and render it.
package formflow

import (
	"context"

	"github.com/goliatone/go-formflow/pkg/controller"
	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/renderers/html"
	"github.com/goliatone/go-formflow/pkg/store"
)

// Catalog aliases forms.Catalog.
type Catalog = forms.Catalog

// Form aliases controller.Form so callers can hold any form without naming
// its record type.
type Form = controller.Form

// LoadCatalog loads the embedded catalogue unless an option points elsewhere.
func LoadCatalog(ctx context.Context, opts ...forms.LoadOption) (*Catalog, error) {
	return forms.Load(ctx, opts...)
}

// OpenForm opens form id. Session-scoped forms use stores.Session, all others
// stores.Persistent.
func OpenForm(ctx context.Context, catalog *Catalog, id string, stores store.Router, opts ...controller.Option) (Form, error) {
	return controller.Open(ctx, catalog, id, stores, opts...)
}

// RenderHTML renders form as a full page with the embedded templates.
func RenderHTML(ctx context.Context, form Form, opts ...html.Option) ([]byte, error) {
	renderer, err := html.New(opts...)
	if err != nil {
		return nil, err
	}
	return renderer.Render(ctx, render.BuildView(form))
}
