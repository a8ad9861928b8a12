// Package server exposes the form catalogue over HTTP. Every request builds
// its own controller from the stored history, so the server keeps no form
// state between requests.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/controller"
	"github.com/goliatone/go-formflow/pkg/forms"
	"github.com/goliatone/go-formflow/pkg/render"
	"github.com/goliatone/go-formflow/pkg/renderers/html"
	"github.com/goliatone/go-formflow/pkg/renderers/tui"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/store"
)

// AssetsPath is where the stylesheet and script are served.
const AssetsPath = html.DefaultAssetsPath

// Server routes form pages, submissions and the JSON endpoints.
type Server struct {
	router        *chi.Mux
	catalog       *forms.Catalog
	stores        store.Router
	renderers     *render.Registry
	logger        *zap.Logger
	clock         func() time.Time
	schemaOptions func(id string) []schema.Option

	// submissions are load-append-save cycles on a shared key
	mu sync.Mutex
}

type Options func(*Server)

func WithLogger(logger *zap.Logger) Options {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRenderers(registry *render.Registry) Options {
	return func(s *Server) {
		s.renderers = registry
	}
}

func WithClock(now func() time.Time) Options {
	return func(s *Server) {
		s.clock = now
	}
}

// WithSchemaOptions supplies the validation options for each form id.
func WithSchemaOptions(fn func(id string) []schema.Option) Options {
	return func(s *Server) {
		s.schemaOptions = fn
	}
}

// New wires every catalogue form onto its route.
func New(catalog *forms.Catalog, stores store.Router, opts ...Options) (*Server, error) {
	r := chi.NewRouter()
	s := &Server{
		router:  r,
		catalog: catalog,
		stores:  stores,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.renderers == nil {
		registry, err := DefaultRenderers()
		if err != nil {
			return nil, err
		}
		s.renderers = registry
	}

	r.Use(middleware.RequestID)
	r.Use(s.accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(sessions)

	for _, form := range catalog.Forms() {
		id := form.ID
		r.Get(form.Route, s.showForm(id))
		r.Post(form.Route, s.postForm(id))
		r.Post(render.ValidateURL(form.Route), s.validateForm(id))
	}
	r.Route("/api/forms", func(r chi.Router) {
		r.Get("/", s.listForms)
		r.Get("/{id}/history", s.history)
	})
	r.Handle(AssetsPath+"/*", http.StripPrefix(AssetsPath+"/", http.FileServer(http.FS(html.AssetsFS()))))

	return s, nil
}

// DefaultRenderers registers the HTML page renderer and the plain text one.
// HTML comes first so it wins when Accept names neither.
func DefaultRenderers(opts ...html.Option) (*render.Registry, error) {
	page, err := html.New(append([]html.Option{html.WithAssetsPath(AssetsPath)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return render.NewRegistry(page, tui.NewTextRenderer(tui.DefaultTheme))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.logger.Info("access",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) open(r *http.Request, id string) (controller.Form, error) {
	opts := []controller.Option{controller.WithLogger(s.logger.With(zap.String("form", id)))}
	if s.clock != nil {
		opts = append(opts, controller.WithClock(s.clock))
	}
	if s.schemaOptions != nil {
		opts = append(opts, controller.WithSchemaOptions(s.schemaOptions(id)...))
	}
	return controller.Open(r.Context(), s.catalog, id, s.stores.WithSession(sessionID(r.Context())), opts...)
}
