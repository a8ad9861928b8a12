package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func backends(t *testing.T) map[string]Port {
	t.Helper()
	file, err := NewFile(filepath.Join(t.TempDir(), "history"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "formflow.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Port{"memory": NewMemory(), "file": file, "sqlite": db}
}

func TestPortContract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for name, port := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := port.Get(ctx, "formData"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
			}
			if err := port.Set(ctx, "formData", []byte(`[1]`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := port.Set(ctx, "formData", []byte(`[1,2]`)); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, ok, err := port.Get(ctx, "formData")
			if err != nil || !ok || string(got) != `[1,2]` {
				t.Fatalf("Get = %q, %v, %v", got, ok, err)
			}
			if err := port.Delete(ctx, "formData"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := port.Delete(ctx, "formData"); err != nil {
				t.Fatalf("Delete(missing): %v", err)
			}
			if _, ok, _ := port.Get(ctx, "formData"); ok {
				t.Fatalf("expected key to be gone")
			}
			if err := port.Set(ctx, " ", nil); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

type record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Age         float64   `json:"age"`
	Skills      []string  `json:"skills"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func TestHistoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	history := []record{
		{ID: "1", Name: "Ada", Age: 36, Skills: []string{"CSS"}, SubmittedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{ID: "2", Name: "Grace", Age: 85.5, Skills: []string{}, SubmittedAt: time.Date(2024, 2, 3, 4, 5, 6, 7, time.UTC)},
	}
	for name, port := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := SaveHistory(ctx, port, "JobApplicationFormData", history); err != nil {
				t.Fatalf("SaveHistory: %v", err)
			}
			got, err := LoadHistory[record](ctx, port, "JobApplicationFormData", nil)
			if err != nil {
				t.Fatalf("LoadHistory: %v", err)
			}
			if diff := cmp.Diff(history, got); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadHistoryMissingIsEmpty(t *testing.T) {
	t.Parallel()

	got, err := LoadHistory[record](context.Background(), NewMemory(), "surveyFormData", nil)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty, non-nil history, got %#v", got)
	}
}

func TestLoadHistoryMalformedIsEmptyAndLogged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	port := NewMemory()
	if err := port.Set(ctx, "formData", []byte(`{"not":"a list"`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	core, logs := observer.New(zapcore.WarnLevel)
	got, err := LoadHistory[record](ctx, port, "formData", zap.New(core))
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %#v", got)
	}
	if logs.FilterMessage("discarding malformed history").Len() != 1 {
		t.Fatalf("expected a warning, got %v", logs.All())
	}
}

type failingPort struct {
	Port
	err error
}

func (f failingPort) Set(context.Context, string, []byte) error { return f.err }
func (f failingPort) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.err
}

func TestStorageErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	quota := errors.New("quota exceeded")
	port := failingPort{Port: NewMemory(), err: quota}

	err := SaveHistory(ctx, port, "formData", []record{{ID: "1"}})
	var storageErr *StorageError
	if !errors.As(err, &storageErr) || storageErr.Op != "save" || storageErr.Key != "formData" {
		t.Fatalf("expected save StorageError, got %v", err)
	}
	if !errors.Is(err, quota) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}

	if _, err := LoadHistory[record](ctx, port, "formData", nil); !errors.As(err, &storageErr) || storageErr.Op != "load" {
		t.Fatalf("expected load StorageError, got %v", err)
	}
}

func TestNamespaceIsolatesSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shared := NewMemory()
	router := Router{Session: shared, Persistent: NewMemory()}

	a, err := router.WithSession("a").For(ScopeSession)
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	b, _ := router.WithSession("b").For(ScopeSession)
	if err := a.Set(ctx, "formData", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "formData"); ok {
		t.Fatalf("session b must not see session a's data")
	}
	if diff := cmp.Diff([]string{"session:a:formData"}, shared.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	persistent, _ := router.WithSession("a").For(ScopePersistent)
	if persistent != router.Persistent {
		t.Fatalf("persistent port must not be namespaced")
	}
	if _, err := (Router{}).For(ScopeSession); err == nil {
		t.Fatalf("expected error for unconfigured scope")
	}
}

func TestMemoryIdleTTLExpiresSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	shared := NewMemory(WithIdleTTL(30*time.Minute), WithMemoryClock(func() time.Time { return now }))
	router := Router{Session: shared}

	idle, _ := router.WithSession("idle").For(ScopeSession)
	active, _ := router.WithSession("active").For(ScopeSession)
	if err := idle.Set(ctx, "formData", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := active.Set(ctx, "formData", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(20 * time.Minute)
	if _, ok, _ := active.Get(ctx, "formData"); !ok {
		t.Fatalf("active session expired early")
	}

	now = now.Add(20 * time.Minute)
	if _, ok, _ := idle.Get(ctx, "formData"); ok {
		t.Fatalf("idle session should have expired")
	}
	if _, ok, _ := active.Get(ctx, "formData"); !ok {
		t.Fatalf("reading a key must keep it alive")
	}
	if diff := cmp.Diff([]string{"session:active:formData"}, shared.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScope(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]Scope{"session": ScopeSession, " Persistent ": ScopePersistent, "": ScopePersistent} {
		got, err := ParseScope(raw)
		if err != nil || got != want {
			t.Fatalf("ParseScope(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseScope("forever"); err == nil {
		t.Fatalf("expected error for unknown scope")
	}
}

func TestFileStoreEscapesKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	port, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := port.Set(context.Background(), "session:a/../b:formData", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].IsDir() {
		t.Fatalf("expected a single file in %s, got %v", dir, entries)
	}
}

func TestOpenBackends(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"memory", "file", "sqlite"} {
		path := filepath.Join(t.TempDir(), "data")
		if kind == "sqlite" {
			path += ".db"
		}
		port, closeFn, err := Open(kind, path)
		if err != nil || port == nil {
			t.Fatalf("Open(%s): %v", kind, err)
		}
		if err := closeFn(); err != nil {
			t.Fatalf("close %s: %v", kind, err)
		}
	}
	if _, _, err := Open("redis", ""); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
