package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/controller"
	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/store"
)

const (
	actionField   = "_action"
	actionRefresh = "refresh"

	savedNotice    = "Submission saved."
	notSavedNotice = "Your submission could not be saved. Please try again."
)

type validationResponse struct {
	Valid  bool              `json:"valid"`
	Fields map[string]string `json:"fields"`
	Form   []string          `json:"form"`
}

type formSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Route string `json:"route"`
	Scope string `json:"scope"`
}

func (s *Server) showForm(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := s.open(r, id)
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, err)
			return
		}
		s.render(w, r, http.StatusOK, form)
	}
}

// postForm handles both a visibility refresh, which re-renders the posted
// values without validating them, and a submission.
func (s *Server) postForm(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.fail(w, r, http.StatusBadRequest, err)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		form, err := s.open(r, id)
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, err)
			return
		}
		if err := form.Fill(postedValues(form.Schema(), r.PostForm)); err != nil {
			s.fail(w, r, http.StatusBadRequest, err)
			return
		}
		if r.PostForm.Get(actionField) == actionRefresh {
			s.render(w, r, http.StatusOK, form, withoutErrors)
			return
		}

		result, err := form.Submit(r.Context())
		var storageErr *store.StorageError
		switch {
		case errors.As(err, &storageErr):
			s.logger.Error("submission not persisted", zap.String("form", id), zap.Error(err))
			s.render(w, r, http.StatusInternalServerError, form, render.WithFormErrors(notSavedNotice))
		case err != nil:
			s.fail(w, r, http.StatusInternalServerError, err)
		case !result.Valid():
			s.render(w, r, http.StatusUnprocessableEntity, form)
		default:
			s.render(w, r, http.StatusOK, form, render.WithNotice(savedNotice))
		}
	}
}

func (s *Server) validateForm(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.fail(w, r, http.StatusBadRequest, err)
			return
		}
		form, err := s.open(r, id)
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, err)
			return
		}
		if err := form.Fill(postedValues(form.Schema(), r.PostForm)); err != nil {
			s.fail(w, r, http.StatusBadRequest, err)
			return
		}

		result := form.Validate()
		mapping := render.MapResult(form.Schema(), form.Values(), result)
		resp := validationResponse{Valid: result.Valid(), Fields: mapping.Fields, Form: mapping.Form}
		if resp.Fields == nil {
			resp.Fields = map[string]string{}
		}
		if resp.Form == nil {
			resp.Form = []string{}
		}
		s.writeJSON(w, r, http.StatusOK, resp)
	}
}

func (s *Server) listForms(w http.ResponseWriter, r *http.Request) {
	all := s.catalog.Forms()
	out := make([]formSummary, 0, len(all))
	for _, form := range all {
		scope, _ := store.ParseScope(form.Storage.Scope)
		out = append(out, formSummary{ID: form.ID, Title: form.Title, Route: form.Route, Scope: string(scope)})
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	form, err := s.open(r, chi.URLParam(r, "id"))
	if errors.Is(err, forms.ErrUnknownForm) {
		s.fail(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, form.Records())
}

// withoutErrors drops messages computed by forms that validate on change, so
// a refresh only ever changes which fields are shown.
func withoutErrors(v *render.View) {
	v.FormErrors = nil
	for i := range v.Fields {
		v.Fields[i].Error = ""
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, form controller.Form, opts ...render.ViewOption) {
	renderer, err := s.renderers.Negotiate(r.Header.Get("Accept"))
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	view := render.BuildView(form, append([]render.ViewOption{render.WithNav(s.catalog.Forms())}, opts...)...)
	body, err := renderer.Render(r.Context(), view)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType())
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck // header already committed
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.logger.Warn("request failed",
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	http.Error(w, http.StatusText(status), status)
}

// postedValues picks the form's own fields out of the posted body. Set
// fields are always present because browsers omit unchecked boxes; other
// fields only when posted.
func postedValues(form *schema.FormSchema, posted url.Values) map[string]any {
	out := make(map[string]any)
	for _, field := range form.Fields {
		name := string(field.ID)
		if field.Kind == schema.KindSet {
			out[name] = append([]string{}, posted[name]...)
			continue
		}
		if _, ok := posted[name]; ok {
			out[name] = posted.Get(name)
		}
	}
	return out
}
