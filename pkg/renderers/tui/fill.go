// Package tui fills forms from a terminal. Fields are prompted in catalogue
// order; the visible set is recomputed after every answer, so changing a
// discriminator immediately brings up the fields of its variant.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-formflow/pkg/controller"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/schema"
)

const dateTimeHelp = "Format: YYYY-MM-DD HH:MM"

// Filler drives a controller.Form through prompts until a submission is
// accepted.
type Filler struct {
	driver  PromptDriver
	out     io.Writer
	confirm bool
	theme   Theme
}

// New constructs a Filler. Without WithPromptDriver it uses survey on the
// process terminal.
func New(options ...Option) (*Filler, error) {
	f := &Filler{out: os.Stdout, theme: DefaultTheme}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver(f.out)
	}
	return f, nil
}

// Fill prompts every visible field, submits, and re-prompts the fields that
// failed until the form accepts the submission. Storage failures are returned
// as they come from Submit.
func (f *Filler) Fill(ctx context.Context, form controller.Form) (schema.Result, error) {
	asked := make(map[schema.FieldID]bool)
	var failed map[schema.FieldID]string

	for {
		for {
			field, ok := nextField(form, asked)
			if !ok {
				break
			}
			if message, ok := failed[field.ID]; ok {
				if err := f.driver.Info(ctx, f.theme.ErrorPrefix+field.Label+": "+message); err != nil {
					return schema.Result{}, err
				}
			}
			if err := f.prompt(ctx, form, field); err != nil {
				return schema.Result{}, err
			}
			asked[field.ID] = true
		}

		if f.confirm {
			ok, err := f.driver.Confirm(ctx, ConfirmConfig{Message: "Submit " + form.Schema().Title + "?", Default: true})
			if err != nil {
				return schema.Result{}, err
			}
			if !ok {
				return schema.Result{}, ErrAborted
			}
		}

		result, err := form.Submit(ctx)
		if err != nil {
			return result, err
		}
		if result.Valid() {
			return result, f.driver.Info(ctx, f.theme.InfoPrefix+"Submission saved.")
		}

		for _, message := range result.Form() {
			if err := f.driver.Info(ctx, f.theme.ErrorPrefix+message); err != nil {
				return result, err
			}
		}
		failed = result.Errors()
		if len(failed) == 0 {
			return result, fmt.Errorf("%w: %s", ErrRejected, strings.Join(result.Form(), "; "))
		}
		for id := range failed {
			delete(asked, id)
		}
	}
}

func nextField(form controller.Form, asked map[schema.FieldID]bool) (schema.FieldSpec, bool) {
	for _, field := range form.VisibleFields() {
		if !asked[field.ID] {
			return field, true
		}
	}
	return schema.FieldSpec{}, false
}

func (f *Filler) prompt(ctx context.Context, form controller.Form, field schema.FieldSpec) error {
	current, _ := form.Values().Get(field.ID)
	label := field.Label
	if form.Required(field.ID) {
		label += " *"
	}

	var value any
	switch {
	case field.Kind == schema.KindEnum:
		idx, err := f.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      field.Options,
			DefaultIndex: indexOf(field.Options, render.FormatValue(current)),
			Help:         field.Description,
		})
		if err != nil {
			return err
		}
		value = valueAt(field.Options, idx)
	case field.Kind == schema.KindSet:
		selected, _ := current.([]string)
		indices, err := f.driver.MultiSelect(ctx, SelectConfig{
			Message:  label,
			Options:  field.Options,
			Defaults: indicesOf(field.Options, selected),
			Help:     field.Description,
		})
		if err != nil {
			return err
		}
		value = valuesAt(field.Options, indices)
	case render.WidgetFor(field) == "textarea":
		text, err := f.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: render.FormatValue(current), Help: field.Description})
		if err != nil {
			return err
		}
		value = text
	default:
		help := field.Description
		if field.Kind == schema.KindDateTime || field.Transform == schema.TransformDateTime {
			help = strings.TrimSpace(help + " " + dateTimeHelp)
		}
		text, err := f.driver.Input(ctx, InputConfig{Message: label, Default: render.FormatValue(current), Help: help})
		if err != nil {
			return err
		}
		value = strings.TrimSpace(text)
	}

	if err := form.UpdateField(string(field.ID), value); err != nil {
		return err
	}
	if message, ok := form.Result().For(field.ID); ok && form.Schema().ValidateOnChange {
		return f.driver.Info(ctx, f.theme.ErrorPrefix+message)
	}
	return nil
}

func valueAt(options []string, idx int) string {
	if idx < 0 || idx >= len(options) {
		return ""
	}
	return options[idx]
}
