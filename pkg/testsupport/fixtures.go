// Package testsupport holds helpers shared by package tests. Helpers call
// t.Fatalf on failure so tests stay short.
package testsupport

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/store"
)

// Now is the fixed clock used by fixtures.
var Now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Clock returns Now.
func Clock() time.Time { return Now }

// Context returns the background context used by tests.
func Context() context.Context {
	return context.Background()
}

// Catalog loads the embedded catalogue.
func Catalog(t *testing.T) *forms.Catalog {
	t.Helper()

	catalog, err := forms.Load(Context())
	if err != nil {
		t.Fatalf("load catalogue: %v", err)
	}
	return catalog
}

// Router returns a router over two fresh memory stores.
func Router() (store.Router, *store.Memory, *store.Memory) {
	session, persistent := store.NewMemory(), store.NewMemory()
	return store.Router{Session: session, Persistent: persistent}, session, persistent
}

// RegistrationValues is a valid registration without a guest.
func RegistrationValues(name string) map[string]any {
	return map[string]any{
		"name":               name,
		"email":              "ada@example.com",
		"age":                "36",
		"attendingWithGuest": "no",
	}
}

// CaptureTemplateOutput executes a render function that writes to an io.Writer,
// returning both the string result and the writer contents.
func CaptureTemplateOutput(t *testing.T, render func(io.Writer) (string, error)) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	out, err := render(&buf)
	if err != nil {
		t.Fatalf("render template: %v", err)
	}

	return out, buf.String()
}
