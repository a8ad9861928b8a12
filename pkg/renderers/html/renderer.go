// Package html renders a form page: the visible fields with their messages,
// followed by the submission history.
package html

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/render"
	rendertemplate "github.com/goliatone/go-formflow/pkg/render/template"
	"github.com/goliatone/go-formflow/pkg/render/template/gotemplate"
)

// DefaultAssetsPath is where the page expects the stylesheet and script.
const DefaultAssetsPath = "/assets"

// Option configures the renderer.
type Option func(*config)

type config struct {
	templateFS       fs.FS
	templatesDir     string
	templateRenderer rendertemplate.TemplateRenderer
	assetsPath       string
}

// WithTemplatesFS supplies an alternate template bundle.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		if files != nil {
			cfg.templateFS = files
		}
	}
}

// WithTemplatesDir loads templates from a directory on disk, falling back to
// the embedded bundle for any template it lacks.
func WithTemplatesDir(dir string) Option {
	return func(cfg *config) {
		cfg.templatesDir = strings.TrimSpace(dir)
	}
}

// WithTemplateRenderer injects a template engine.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithAssetsPath sets the URL prefix the page loads assets from.
func WithAssetsPath(prefix string) Option {
	return func(cfg *config) {
		if prefix = strings.TrimRight(strings.TrimSpace(prefix), "/"); prefix != "" {
			cfg.assetsPath = prefix
		}
	}
}

// Renderer produces text/html form pages.
type Renderer struct {
	templates rendertemplate.TemplateRenderer
	assets    string
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the renderer.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS(), assetsPath: DefaultAssetsPath}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	engine := cfg.templateRenderer
	if engine == nil {
		var err error
		engine, err = gotemplate.New(
			gotemplate.WithBaseDir(cfg.templatesDir),
			gotemplate.WithFS(cfg.templateFS),
		)
		if err != nil {
			return nil, fmt.Errorf("html renderer: configure template renderer: %w", err)
		}
	}
	return &Renderer{templates: engine, assets: cfg.assetsPath}, nil
}

func (r *Renderer) Name() string { return "html" }

func (r *Renderer) ContentType() string { return "text/html; charset=utf-8" }

// Render renders view. History values come from users, so they are reduced
// to plain text before they reach the page.
func (r *Renderer) Render(_ context.Context, view render.View) ([]byte, error) {
	if r.templates == nil {
		return nil, fmt.Errorf("html renderer: template renderer is nil")
	}

	out, err := r.templates.RenderTemplate("page", map[string]any{
		"view":        sanitizeView(view),
		"description": Description(view.Description),
		"assets":      r.assets,
		"stylesheet":  StylesheetName,
		"script":      ScriptName,
	})
	if err != nil {
		return nil, fmt.Errorf("html renderer: render template: %w", err)
	}
	return []byte(out), nil
}

var (
	policyOnce        sync.Once
	textPolicy        *bluemonday.Policy
	descriptionPolicy *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()

		descriptionPolicy = bluemonday.NewPolicy()
		descriptionPolicy.AllowElements("b", "strong", "i", "em", "br", "p", "code")
		descriptionPolicy.AllowAttrs("href").OnElements("a")
		descriptionPolicy.RequireNoFollowOnLinks(true)
		descriptionPolicy.AllowStandardURLs()
	})
	return textPolicy, descriptionPolicy
}

// Text strips every tag from raw and escapes what is left.
func Text(raw string) string {
	policy, _ := policies()
	return policy.Sanitize(raw)
}

// Description keeps the light formatting catalogue descriptions may carry.
func Description(raw string) string {
	_, policy := policies()
	return strings.TrimSpace(policy.Sanitize(raw))
}

func sanitizeView(view render.View) render.View {
	history := make([]forms.Summary, len(view.History))
	for i, summary := range view.History {
		entries := make([]forms.Entry, len(summary.Entries))
		for j, entry := range summary.Entries {
			entries[j] = forms.Entry{Label: entry.Label, Value: Text(entry.Value)}
		}
		summary.Entries = entries
		history[i] = summary
	}
	view.History = history
	return view
}
