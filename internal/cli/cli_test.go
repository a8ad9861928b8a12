package cli

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formflow/pkg/controller"
	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/store"
	"github.com/goliatone/go-formflow/pkg/testsupport"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	argv := append([]string{"formflow", "--log-level", "error"}, args...)
	if err := Run(testsupport.Context(), argv, "test", &out); err != nil {
		t.Fatalf("Run(%v): %v", args, err)
	}
	return out.String()
}

func seedJobHistory(t *testing.T, dir string) {
	t.Helper()
	port, err := store.NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	job, err := controller.New(testsupport.Context(), testsupport.Catalog(t).JobApplication(), port,
		controller.WithClock(testsupport.Clock))
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	if err := job.Fill(map[string]any{
		"fullName":               "Grace Hopper",
		"email":                  "grace@example.com",
		"phoneNumber":            "5551234",
		"applyingForPosition":    "Designer",
		"portfolioURL":           "https://example.com/grace",
		"additionalSkills":       []string{"CSS"},
		"preferredInterviewTime": "2024-06-01T09:30",
	}); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if result, err := job.Submit(testsupport.Context()); err != nil || !result.Valid() {
		t.Fatalf("Submit = %+v, %v", result.Issues, err)
	}
}

func TestFormsCommand(t *testing.T) {
	out := run(t, "--storage-backend", "memory", "forms")
	for _, want := range []string{"registration", "Event Registration Form", "session", "formData", "/LevelThree", "surveyFormData"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output is missing %q\n%s", want, out)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	seedJobHistory(t, dir)
	base := []string{"--storage-backend", "file", "--storage-path", dir, "history"}

	var records []map[string]any
	if err := json.Unmarshal([]byte(run(t, append(base, "--format", "json", forms.JobApplicationID)...)), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0]["portfolioURL"] != "https://example.com/grace" {
		t.Fatalf("unexpected records %v", records)
	}

	text := run(t, append(base, forms.JobApplicationID)...)
	for _, want := range []string{"Job Application Form", "Previous Submitted Data:", "Grace Hopper", "#1  2024-05-01 12:00 UTC"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text output is missing %q\n%s", want, text)
		}
	}

	page := run(t, append(base, "--format", "html", forms.JobApplicationID)...)
	if !strings.Contains(page, "<dd>Grace Hopper</dd>") {
		t.Fatalf("html output is missing the entry\n%s", page)
	}

	if empty := run(t, append(base, forms.SurveyID)...); !strings.Contains(empty, "No submissions yet.") {
		t.Fatalf("survey history should be empty\n%s", empty)
	}
}

func TestHistoryCommandErrors(t *testing.T) {
	var out bytes.Buffer
	cases := [][]string{
		{"formflow", "--storage-backend", "memory", "history"},
		{"formflow", "--storage-backend", "memory", "history", "contact"},
		{"formflow", "--storage-backend", "memory", "history", "--format", "xml", "survey"},
		{"formflow", "--storage-backend", "redis", "forms"},
	}
	for _, args := range cases {
		if err := Run(testsupport.Context(), args, "test", &out); err == nil {
			t.Fatalf("Run(%v) should fail", args)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	if out := run(t, "validate"); !strings.Contains(out, "catalog.yaml (embedded): ok (3 forms)") {
		t.Fatalf("unexpected output\n%s", out)
	}

	raw, err := fs.ReadFile(forms.CatalogFS(), forms.CatalogName)
	if err != nil {
		t.Fatalf("read catalogue: %v", err)
	}
	broken := filepath.Join(t.TempDir(), "broken.yaml")
	patched := strings.Replace(string(raw), "label: Full Name", "label: Full Name\n            tooltip: Your name", 1)
	if err := os.WriteFile(broken, []byte(patched), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out bytes.Buffer
	err = Run(testsupport.Context(), []string{"formflow", "--log-level", "error", "validate", broken}, "test", &out)
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	if !strings.Contains(out.String(), `unknown field "tooltip"`) {
		t.Fatalf("unexpected output\n%s", out.String())
	}
}

func TestServeHelpNamesSurveyMode(t *testing.T) {
	if !strings.Contains(cmdServe(&runtime{}).Description, "--lenient-survey") {
		t.Fatalf("serve help must say how to relax the survey topic fields")
	}

	var flags overrides
	for _, flag := range flags.flags() {
		if bf, ok := flag.(*cli.BoolFlag); ok && bf.Name == "lenient-survey" {
			if !strings.Contains(bf.Usage, "enforced by default") {
				t.Fatalf("lenient-survey usage = %q", bf.Usage)
			}
			return
		}
	}
	t.Fatalf("lenient-survey flag is missing")
}
