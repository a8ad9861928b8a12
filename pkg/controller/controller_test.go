package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/store"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func catalog(t *testing.T) *forms.Catalog {
	t.Helper()
	c, err := forms.Load(context.Background())
	if err != nil {
		t.Fatalf("forms.Load: %v", err)
	}
	return c
}

func newRegistration(t *testing.T, port store.Port) *Controller[forms.Registration] {
	t.Helper()
	c, err := New(context.Background(), catalog(t).Registration(), port, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func fill(t *testing.T, c Form, values map[string]any) {
	t.Helper()
	for name, value := range values {
		if err := c.UpdateField(name, value); err != nil {
			t.Fatalf("UpdateField(%s): %v", name, err)
		}
	}
}

func TestNewSeedsDefaults(t *testing.T) {
	t.Parallel()

	c := newRegistration(t, store.NewMemory())
	if got := c.Values()["attendingWithGuest"]; got != "no" {
		t.Fatalf("attendingWithGuest default = %#v", got)
	}
	if len(c.History()) != 0 {
		t.Fatalf("expected empty history")
	}
}

func TestSubmitRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	port := store.NewMemory()
	c := newRegistration(t, port)
	fill(t, c, map[string]any{"name": "Ada", "email": "ada@example.com", "age": "30", "attendingWithGuest": "yes"})

	result, err := c.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Valid() {
		t.Fatalf("expected guestName issue")
	}
	if _, ok := result.For(forms.RegistrationGuestName); !ok {
		t.Fatalf("expected issue on guestName, got %+v", result.Issues)
	}
	if len(c.History()) != 0 {
		t.Fatalf("history must not grow on invalid submit")
	}
	if _, ok, _ := port.Get(ctx, "formData"); ok {
		t.Fatalf("nothing must be persisted on invalid submit")
	}
	if got := c.Values()["name"]; got != "Ada" {
		t.Fatalf("values must be retained, name = %#v", got)
	}
}

func TestSubmitRejectsNonFiniteNumbers(t *testing.T) {
	t.Parallel()

	for _, age := range []string{"Inf", "NaN", "-Infinity"} {
		c := newRegistration(t, brokenPort{store.NewMemory()})
		fill(t, c, map[string]any{"name": "Ada", "email": "ada@example.com", "age": age, "attendingWithGuest": "no"})

		result, err := c.Submit(context.Background())
		if err != nil {
			t.Fatalf("age %s: Submit error %v, want a field issue", age, err)
		}
		if msg, _ := result.For(forms.RegistrationAge); msg != "Age must be a number" {
			t.Fatalf("age %s: message = %q", age, msg)
		}
	}
}

func TestSubmitAppendsPersistsAndResets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	port := store.NewMemory()
	c := newRegistration(t, port)

	for _, name := range []string{"Ada", "Grace"} {
		fill(t, c, map[string]any{"name": name, "email": "x@example.com", "age": 30.0, "attendingWithGuest": "no"})
		result, err := c.Submit(ctx)
		if err != nil || !result.Valid() {
			t.Fatalf("Submit(%s) = %+v, %v", name, result.Issues, err)
		}
	}

	history := c.History()
	if len(history) != 2 || history[0].Name != "Ada" || history[1].Name != "Grace" {
		t.Fatalf("unexpected history %+v", history)
	}
	if !history[0].SubmittedAt.Equal(fixedNow) {
		t.Fatalf("SubmittedAt = %v", history[0].SubmittedAt)
	}
	if diff := cmp.Diff(catalog(t).Registration().Schema.Defaults(), c.Values()); diff != "" {
		t.Fatalf("values not reset (-want +got):\n%s", diff)
	}

	stored, err := store.LoadHistory[forms.Registration](ctx, port, "formData", nil)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if diff := cmp.Diff(history, stored); diff != "" {
		t.Fatalf("persisted history mismatch (-want +got):\n%s", diff)
	}

	reopened := newRegistration(t, port)
	if len(reopened.History()) != 2 {
		t.Fatalf("reopened controller must load history, got %d", len(reopened.History()))
	}
}

type brokenPort struct {
	store.Port
}

func (brokenPort) Set(context.Context, string, []byte) error { return errors.New("quota exceeded") }

func TestSubmitStorageFailureKeepsState(t *testing.T) {
	t.Parallel()

	c := newRegistration(t, brokenPort{Port: store.NewMemory()})
	fill(t, c, map[string]any{"name": "Ada", "email": "ada@example.com", "age": 30, "attendingWithGuest": "no"})
	before := c.Values()

	result, err := c.Submit(context.Background())
	var storageErr *store.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if !result.Valid() {
		t.Fatalf("values were valid, got %+v", result.Issues)
	}
	if len(c.History()) != 0 {
		t.Fatalf("history must be unchanged after a failed save")
	}
	if diff := cmp.Diff(before, c.Values()); diff != "" {
		t.Fatalf("values must be unchanged after a failed save (-want +got):\n%s", diff)
	}
}

func TestUpdateFieldRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	c := newRegistration(t, store.NewMemory())
	if err := c.UpdateField("nickname", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if err := c.Fill(map[string]any{"name": "Ada", "nickname": "x"}); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField from Fill, got %v", err)
	}
	if got := c.Values()["name"]; got != "" {
		t.Fatalf("Fill must not apply partial updates, name = %#v", got)
	}
}

func TestValidateOnChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	job, err := New(ctx, catalog(t).JobApplication(), store.NewMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := job.UpdateField("phoneNumber", "12ab"); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if got, _ := job.Result().For(forms.JobPhoneNumber); got != "Phone number must be numeric" {
		t.Fatalf("job form must revalidate on change, phoneNumber = %q", got)
	}

	reg := newRegistration(t, store.NewMemory())
	if err := reg.UpdateField("email", "bad"); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if !reg.Result().Valid() {
		t.Fatalf("registration must defer validation to submit")
	}
}

func TestJobSubmissionTransformsValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	job, err := New(ctx, catalog(t).JobApplication(), store.NewMemory(),
		WithSchemaOptions(schema.WithLocation(time.UTC)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fill(t, job, map[string]any{
		"fullName":               "Grace Hopper",
		"email":                  "grace@example.com",
		"phoneNumber":            "5551234",
		"applyingForPosition":    "Developer",
		"relevantExperience":     "abc",
		"additionalSkills":       []string{"JavaScript"},
		"preferredInterviewTime": "2024-06-01T09:30",
	})
	result, err := job.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got, _ := result.For(forms.JobRelevantExperience); got != "Relevant Experience must be a number" {
		t.Fatalf("relevantExperience = %q", got)
	}

	if err := job.UpdateField("relevantExperience", "5"); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if result, err := job.Submit(ctx); err != nil || !result.Valid() {
		t.Fatalf("Submit = %+v, %v", result.Issues, err)
	}
	record := job.History()[0]
	if record.RelevantExperience == nil || *record.RelevantExperience != 5 {
		t.Fatalf("relevantExperience = %v", record.RelevantExperience)
	}
	if !record.PreferredInterviewTime.Equal(time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("preferredInterviewTime = %v", record.PreferredInterviewTime)
	}
}

func TestVisibleFieldsIsIdempotent(t *testing.T) {
	t.Parallel()

	survey, err := New(context.Background(), catalog(t).Survey(), store.NewMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := survey.UpdateField("surveyTopic", "Education"); err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if diff := cmp.Diff(survey.VisibleFields(), survey.VisibleFields()); diff != "" {
		t.Fatalf("VisibleFields differs between calls:\n%s", diff)
	}
}

func TestOpenRoutesByScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	session, persistent := store.NewMemory(), store.NewMemory()
	router := store.Router{Session: session, Persistent: persistent}
	c := catalog(t)

	reg, err := Open(ctx, c, forms.RegistrationID, router)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	fill(t, reg, map[string]any{"name": "Ada", "email": "ada@example.com", "age": 30, "attendingWithGuest": "no"})
	if _, err := reg.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(session.Keys()) != 1 || len(persistent.Keys()) != 0 {
		t.Fatalf("registration must use the session store: session %v persistent %v", session.Keys(), persistent.Keys())
	}
	if len(reg.Entries()) != 1 || reg.Entries()[0].Entries[0] != (forms.Entry{Label: "Name", Value: "Ada"}) {
		t.Fatalf("unexpected entries %+v", reg.Entries())
	}

	if _, err := Open(ctx, c, "contact", router); !errors.Is(err, forms.ErrUnknownForm) {
		t.Fatalf("expected ErrUnknownForm, got %v", err)
	}
}
