package api

import (
	"context"
	"net/http"

	"github.com/dgallion1/formflat/internal/config"
	"github.com/dgallion1/formflat/internal/forward"
	"github.com/dgallion1/formflat/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Transformer turns a raw request body into a normalized result.
type Transformer interface {
	Transform(ctx context.Context, body []byte) (any, error)
}

// Forwarder accepts results for background delivery.
type Forwarder interface {
	Submit(job forward.Job) (string, error)
	QueueDepth() int
}

// Server is the HTTP API server for formflat.
type Server struct {
	router      chi.Router
	transformer Transformer
	forwarder   Forwarder
	metrics     *metrics.Metrics
	log         *zap.Logger
	cfg         config.Config
}

// NewServer creates and configures the HTTP server. fwd may be nil, in
// which case forward_url is ignored.
func NewServer(t Transformer, fwd Forwarder, m *metrics.Metrics, log *zap.Logger, cfg config.Config) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		transformer: t,
		forwarder:   fwd,
		metrics:     m,
		log:         log,
		cfg:         cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Post("/transform", s.handleTransform)

	s.router = r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("JSON Transformation Service Running"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
