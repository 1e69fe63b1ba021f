package httpapi

import (
	"context"
	"embed"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"subtube/internal/jobs"
	"subtube/internal/platform/metrics"
	"subtube/internal/youtube"
)

//go:embed static
var staticFiles embed.FS

// Prober resolves video metadata for the info endpoint.
type Prober interface {
	Probe(ctx context.Context, url string) (*youtube.VideoInfo, error)
}

type Server struct {
	queue  *jobs.Queue
	prober Prober

	metrics           *metrics.Metrics
	defaultTargetLang string
	syncWaitTimeout   time.Duration

	router chi.Router
	server *http.Server
}

type Option func(*Server)

// WithMetrics attaches Prometheus metrics: request middleware plus the
// /metrics scrape endpoint.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithDefaultTargetLanguage sets the target language used when a request
// does not name one.
func WithDefaultTargetLanguage(lang string) Option {
	return func(s *Server) {
		s.defaultTargetLang = lang
	}
}

// WithSyncWaitTimeout bounds how long the synchronous translate endpoint
// waits for a job before giving up.
func WithSyncWaitTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.syncWaitTimeout = d
	}
}

func NewServer(queue *jobs.Queue, prober Prober, opts ...Option) *Server {
	s := &Server{
		queue:             queue,
		prober:            prober,
		defaultTargetLang: "es",
		syncWaitTimeout:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the HTTP server on an already-bound listener. Binding the
// port before starting lets the caller fail fast when it is taken.
func (s *Server) Serve(ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	if s.metrics != nil {
		r.Use(metrics.RequestMiddleware(s.metrics))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/stream", s.handleJobStream)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/download", s.handleDownload)
		r.Post("/translate", s.handleTranslateSync)
		r.Get("/videos/info", s.handleVideoInfo)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler(s.refreshGauges))
	}

	r.Get("/", s.handleIndex)

	s.router = r
}

func (s *Server) refreshGauges() {
	active := 0
	for _, job := range s.queue.List() {
		if !job.Status.Terminal() {
			active++
		}
	}
	s.metrics.SetActiveJobs(active)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}
