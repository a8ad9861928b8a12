package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/store"
	"github.com/goliatone/go-formflow/pkg/testsupport"
)

type brokenPort struct {
	store.Port
}

func (b brokenPort) Set(_ context.Context, key string, _ []byte) error {
	return &store.StorageError{Op: "set", Key: key, Err: errors.New("disk full")}
}

func newServer(t *testing.T, stores store.Router) *Server {
	t.Helper()
	s, err := New(testsupport.Catalog(t), stores,
		WithClock(testsupport.Clock),
		WithSchemaOptions(func(string) []schema.Option { return []schema.Option{schema.WithLocation(time.UTC)} }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, target string, body url.Values, cookie *http.Cookie, accept string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookie {
			return cookie
		}
	}
	t.Fatalf("response did not set %s", SessionCookie)
	return nil
}

func jobValues() url.Values {
	return url.Values{
		"fullName":               {"Grace Hopper"},
		"email":                  {"grace@example.com"},
		"phoneNumber":            {"5551234"},
		"applyingForPosition":    {"Developer"},
		"relevantExperience":     {"5"},
		"additionalSkills":       {"JavaScript", "Python"},
		"preferredInterviewTime": {"2024-06-01T09:30"},
	}
}

func TestShowFormIssuesSession(t *testing.T) {
	t.Parallel()

	stores, _, _ := testsupport.Router()
	rec := do(t, newServer(t, stores), http.MethodGet, "/", nil, nil, "text/html")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<h2>Event Registration Form</h2>", `href="/LevelTwo"`, `href="/assets/formflow.css"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("page is missing %q\n%s", want, body)
		}
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Fatalf("content type = %q", got)
	}
	sessionCookie(t, rec)
}

func TestRefreshRevealsVariantWithoutValidating(t *testing.T) {
	t.Parallel()

	stores, session, persistent := testsupport.Router()
	rec := do(t, newServer(t, stores), http.MethodPost, "/", url.Values{
		"attendingWithGuest": {"yes"},
		"_action":            {"refresh"},
		"unknown":            {"ignored"},
	}, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="guestName"`) {
		t.Fatalf("refresh must reveal guestName\n%s", body)
	}
	if strings.Contains(body, "Guest name is required") {
		t.Fatalf("refresh must not validate")
	}
	if len(session.Keys())+len(persistent.Keys()) != 0 {
		t.Fatalf("refresh must not persist anything")
	}
}

func TestSubmitRegistrationIsSessionScoped(t *testing.T) {
	t.Parallel()

	stores, session, persistent := testsupport.Router()
	s := newServer(t, stores)

	first := do(t, s, http.MethodGet, "/", nil, nil, "")
	cookie := sessionCookie(t, first)

	body := url.Values{}
	for key, value := range testsupport.RegistrationValues("Ada") {
		body.Set(key, value.(string))
	}
	rec := do(t, s, http.MethodPost, "/", body, cookie, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	page := rec.Body.String()
	for _, want := range []string{savedNotice, "Previous Submitted Data:", "Ada"} {
		if !strings.Contains(page, want) {
			t.Fatalf("page is missing %q\n%s", want, page)
		}
	}
	if got := session.Keys(); len(got) != 1 || !strings.HasSuffix(got[0], "formData") {
		t.Fatalf("session keys = %v", got)
	}
	if len(persistent.Keys()) != 0 {
		t.Fatalf("registration must not reach the persistent store")
	}

	other := do(t, s, http.MethodGet, "/", nil, nil, "")
	if strings.Contains(other.Body.String(), "Previous Submitted Data:") {
		t.Fatalf("history leaked into another session")
	}
	again := do(t, s, http.MethodGet, "/", nil, cookie, "")
	if !strings.Contains(again.Body.String(), "Previous Submitted Data:") {
		t.Fatalf("history lost for the same session")
	}
}

func TestSubmitInvalidKeepsValues(t *testing.T) {
	t.Parallel()

	stores, _, persistent := testsupport.Router()
	values := jobValues()
	values.Set("phoneNumber", "12ab")
	rec := do(t, newServer(t, stores), http.MethodPost, "/LevelTwo", values, nil, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Phone number must be numeric") || !strings.Contains(body, `value="Grace Hopper"`) {
		t.Fatalf("unexpected page\n%s", body)
	}
	if len(persistent.Keys()) != 0 {
		t.Fatalf("rejected submission was persisted")
	}
}

func TestSubmitStorageFailure(t *testing.T) {
	t.Parallel()

	stores, _, persistent := testsupport.Router()
	stores.Persistent = brokenPort{Port: persistent}
	rec := do(t, newServer(t, stores), http.MethodPost, "/LevelTwo", jobValues(), nil, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, notSavedNotice) || !strings.Contains(body, `value="Grace Hopper"`) {
		t.Fatalf("unexpected page\n%s", body)
	}
}

func TestValidateEndpoint(t *testing.T) {
	t.Parallel()

	stores, _, _ := testsupport.Router()
	rec := do(t, newServer(t, stores), http.MethodPost, "/LevelTwo/validate", url.Values{
		"fullName":    {"Grace"},
		"phoneNumber": {"12ab"},
	}, nil, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got validationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Valid {
		t.Fatalf("expected invalid result")
	}
	if diff := cmp.Diff("Phone number must be numeric", got.Fields["phoneNumber"]); diff != "" {
		t.Fatalf("phoneNumber message (-want +got):\n%s", diff)
	}
	if _, ok := got.Fields["fullName"]; ok {
		t.Fatalf("fullName is valid, got %q", got.Fields["fullName"])
	}
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()

	stores, _, _ := testsupport.Router()
	s := newServer(t, stores)
	if rec := do(t, s, http.MethodPost, "/LevelTwo", jobValues(), nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d\n%s", rec.Code, rec.Body.String())
	}

	rec := do(t, s, http.MethodGet, "/api/forms/jobApplication/history", nil, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var records []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if diff := cmp.Diff([]any{"JavaScript", "Python"}, records[0]["additionalSkills"]); diff != "" {
		t.Fatalf("additionalSkills (-want +got):\n%s", diff)
	}
	if got := records[0]["preferredInterviewTime"]; got != "2024-06-01T09:30:00Z" {
		t.Fatalf("preferredInterviewTime = %v", got)
	}

	if rec := do(t, s, http.MethodGet, "/api/forms/contact/history", nil, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown form status = %d", rec.Code)
	}
}

func TestListForms(t *testing.T) {
	t.Parallel()

	stores, _, _ := testsupport.Router()
	rec := do(t, newServer(t, stores), http.MethodGet, "/api/forms", nil, nil, "")
	var got []formSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, rec.Body.String())
	}
	want := []formSummary{
		{ID: "registration", Title: "Event Registration Form", Route: "/", Scope: "session"},
		{ID: "jobApplication", Title: "Job Application Form", Route: "/LevelTwo", Scope: "persistent"},
		{ID: "survey", Title: "Survey Form", Route: "/LevelThree", Scope: "persistent"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("forms mismatch (-want +got):\n%s", diff)
	}
}

func TestTextNegotiationAndAssets(t *testing.T) {
	t.Parallel()

	stores, _, _ := testsupport.Router()
	s := newServer(t, stores)

	rec := do(t, s, http.MethodGet, "/LevelThree", nil, nil, "text/plain")
	if got := rec.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "No submissions yet.") {
		t.Fatalf("unexpected text page\n%s", rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/assets/formflow.js", nil, nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "validateUrl") {
		t.Fatalf("asset status = %d", rec.Code)
	}
}
