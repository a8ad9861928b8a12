// Package controller holds the state of one form being filled in: current
// values, the last validation result and the submission history. Controllers
// are not safe for concurrent use; servers build one per request.
package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/store"
)

// ErrUnknownField is returned when a caller updates a field the form does not
// declare.
var ErrUnknownField = errors.New("controller: unknown field")

// Option configures a Controller.
type Option func(*config)

type config struct {
	logger     *zap.Logger
	now        func() time.Time
	schemaOpts []schema.Option
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSchemaOptions forwards options to schema validation and normalisation.
func WithSchemaOptions(opts ...schema.Option) Option {
	return func(c *config) {
		c.schemaOpts = append(c.schemaOpts, opts...)
	}
}

// Controller drives one form whose accepted submissions are records of type R.
type Controller[R forms.Record] struct {
	def     forms.Definition[R]
	port    store.Port
	cfg     config
	logger  *zap.Logger
	values  schema.Values
	result  schema.Result
	history []R
}

// New loads the stored history for def and seeds values with the form
// defaults.
func New[R forms.Record](ctx context.Context, def forms.Definition[R], port store.Port, opts ...Option) (*Controller[R], error) {
	if def.Schema == nil || def.Build == nil {
		return nil, errors.New("controller: definition is incomplete")
	}
	if port == nil {
		return nil, errors.New("controller: storage port is required")
	}
	cfg := config{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	logger := cfg.logger.With(zap.String("form", def.Schema.ID))

	history, err := store.LoadHistory[R](ctx, port, def.Schema.Storage.Key, logger)
	if err != nil {
		return nil, err
	}
	return &Controller[R]{
		def:     def,
		port:    port,
		cfg:     cfg,
		logger:  logger,
		values:  def.Schema.Defaults(),
		history: history,
	}, nil
}

// Schema returns the form schema.
func (c *Controller[R]) Schema() *schema.FormSchema { return c.def.Schema }

// Values returns a copy of the current values.
func (c *Controller[R]) Values() schema.Values { return c.values.Clone() }

// UpdateField stores value for name. Forms that validate on change recompute
// the result; others leave it untouched until Validate or Submit.
func (c *Controller[R]) UpdateField(name string, value any) error {
	if !c.def.Schema.Has(schema.FieldID(name)) {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	c.values[name] = value
	if c.def.Schema.ValidateOnChange {
		c.result = schema.Validate(c.def.Schema, c.values, c.cfg.schemaOpts...)
	}
	return nil
}

// Fill applies several updates at once. Nothing is applied when any name is
// unknown.
func (c *Controller[R]) Fill(values map[string]any) error {
	for name := range values {
		if !c.def.Schema.Has(schema.FieldID(name)) {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	}
	for name, value := range values {
		c.values[name] = value
	}
	if c.def.Schema.ValidateOnChange {
		c.result = schema.Validate(c.def.Schema, c.values, c.cfg.schemaOpts...)
	}
	return nil
}

// VisibleFields returns the fields to render for the current values.
func (c *Controller[R]) VisibleFields() []schema.FieldSpec {
	return schema.VisibleFields(c.def.Schema, c.values)
}

// Required reports whether field id is currently required, taking the
// selected variant into account.
func (c *Controller[R]) Required(id schema.FieldID) bool {
	return schema.IsRequired(c.def.Schema, c.values, id, c.cfg.schemaOpts...)
}

// Validate validates the current values and remembers the result.
func (c *Controller[R]) Validate() schema.Result {
	c.result = schema.Validate(c.def.Schema, c.values, c.cfg.schemaOpts...)
	return c.result
}

// Result returns the last computed validation result.
func (c *Controller[R]) Result() schema.Result { return c.result }

// Submit validates the current values. An invalid submission returns the
// result and keeps values and history as they are. A valid one is turned into
// a record and the full history is saved; in-memory history and values only
// change once the save succeeded. A failed save returns a *store.StorageError.
func (c *Controller[R]) Submit(ctx context.Context) (schema.Result, error) {
	result := c.Validate()
	if !result.Valid() {
		c.logger.Debug("submission rejected", zap.Int("issues", len(result.Issues)))
		return result, nil
	}

	normalized, err := schema.Normalize(c.def.Schema, c.values, c.cfg.schemaOpts...)
	if err != nil {
		return result, fmt.Errorf("controller: %w", err)
	}
	record, err := c.def.Build(forms.NewMeta(c.cfg.now()), normalized)
	if err != nil {
		return result, fmt.Errorf("controller: %w", err)
	}

	next := append(slices.Clone(c.history), record)
	if err := store.SaveHistory(ctx, c.port, c.def.Schema.Storage.Key, next); err != nil {
		c.logger.Warn("submission not saved", zap.Error(err))
		return result, err
	}

	c.history = next
	c.values = c.def.Schema.Defaults()
	c.result = schema.Result{}
	c.logger.Info("submission accepted",
		zap.String("id", record.Metadata().ID.String()),
		zap.Int("history", len(next)),
	)
	return result, nil
}

// History returns a copy of the accepted records in submission order.
func (c *Controller[R]) History() []R { return slices.Clone(c.history) }

// Entries returns the history as display summaries.
func (c *Controller[R]) Entries() []forms.Summary {
	out := make([]forms.Summary, 0, len(c.history))
	for _, record := range c.history {
		out = append(out, forms.Summarize(record))
	}
	return out
}

// Records returns the history as untyped records.
func (c *Controller[R]) Records() []forms.Record {
	out := make([]forms.Record, 0, len(c.history))
	for _, record := range c.history {
		out = append(out, record)
	}
	return out
}

// Reset restores default values and clears the validation result. History
// is not touched.
func (c *Controller[R]) Reset() {
	c.values = c.def.Schema.Defaults()
	c.result = schema.Result{}
}
