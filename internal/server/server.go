// Package server exposes the decompression engine over HTTP: NDL lookups,
// profile runs and access to stored runs.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/divesync/internal/log"
	"github.com/chrissnell/divesync/internal/metrics"
	"github.com/chrissnell/divesync/internal/storage"
	"github.com/chrissnell/divesync/pkg/config"
	"github.com/chrissnell/divesync/pkg/responseformat"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultNDLCacheSize = 256
	defaultMaxSteps     = 10000
	defaultMaxBodyBytes = 1 << 20
)

// Server holds the HTTP server and everything the handlers need
type Server struct {
	cfg       config.ServerData
	defaults  config.DefaultsData
	logger    *zap.SugaredLogger
	formatter *responseformat.Formatter
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	health    *storage.HealthManager
	store     storage.ResultStore
	reader    storage.RunReader
	ndlCache  *lru.Cache[ndlKey, int]
	router    *mux.Router

	runs chan<- *storage.Run

	Server http.Server
}

// Option configures a Server
type Option func(*Server)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics records to m and serves gatherer on /metrics
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithStore sets where runs are stored. If the store can read runs back it
// also backs GET /runs.
func WithStore(store storage.ResultStore) Option {
	return func(s *Server) {
		s.store = store
		if r, ok := store.(storage.RunReader); ok && s.reader == nil {
			s.reader = r
		}
		if m, ok := store.(*storage.Multi); ok && s.reader == nil {
			s.reader, _ = m.Reader()
		}
	}
}

// WithReader sets the run reader explicitly
func WithReader(reader storage.RunReader) Option {
	return func(s *Server) { s.reader = reader }
}

// WithHealth reports store health on /healthz
func WithHealth(hm *storage.HealthManager) Option {
	return func(s *Server) { s.health = hm }
}

// New builds the server and its router. Nothing listens until Start.
func New(cfg config.ServerData, defaults config.DefaultsData, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		defaults:  defaults,
		logger:    zap.NewNop().Sugar(),
		formatter: responseformat.NewFormatter(),
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.Port == 0 {
		s.logger.Info("server port not specified; defaulting to 8080")
		s.cfg.Port = 8080
	}
	if s.cfg.MaxSteps <= 0 {
		s.cfg.MaxSteps = defaultMaxSteps
	}
	if s.cfg.MaxBodyBytes <= 0 {
		s.cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	size := s.cfg.NDLCacheSize
	if size <= 0 {
		size = defaultNDLCacheSize
	}

	cache, err := lru.New[ndlKey, int](size)
	if err != nil {
		return nil, fmt.Errorf("creating NDL cache: %w", err)
	}
	s.ndlCache = cache

	s.router = s.setupRouter()
	s.Server.Addr = fmt.Sprintf("%v:%v", s.cfg.ListenAddr, s.cfg.Port)
	s.Server.Handler = s.router
	s.Server.ReadHeaderTimeout = 10 * time.Second

	return s, nil
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// StartStorage starts the background writer that stores runs posted with
// storing enabled. It is a no-op without a store.
func (s *Server) StartStorage(ctx context.Context, wg *sync.WaitGroup) {
	if s.store == nil {
		return
	}
	s.runs = storage.StartStorageEngine(ctx, wg, s.store, func(r *storage.Run, err error) {
		s.logger.Errorf("storing run %s in %s failed: %v", r.ID, s.store.Name(), err)
		s.metrics.ObserveStoreError(s.store.Name())
	})
}

// Start starts storage and the HTTP listener. The listener shuts down when
// ctx is cancelled.
func (s *Server) Start(ctx context.Context, wg *sync.WaitGroup) error {
	s.StartStorage(ctx, wg)

	log.Info("Starting HTTP server...")
	wg.Add(1)

	go func() {
		defer wg.Done()

		s.logger.Infof("HTTP server starting on %s", s.Server.Addr)
		if err := s.Server.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down the HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

func (s *Server) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.loggingMiddleware)
	router.Use(handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger})))
	router.Use(s.corsMiddleware)
	router.Use(handlers.CompressHandler)

	// OPTIONS is accepted on every route so corsMiddleware can answer
	// preflight requests.
	router.HandleFunc("/algorithms", s.getAlgorithms).Methods("GET", "OPTIONS")
	router.HandleFunc("/ndl", s.getNDL).Methods("GET", "OPTIONS")
	router.HandleFunc("/runs", s.postRun).Methods("POST", "OPTIONS")
	router.HandleFunc("/runs", s.listRuns).Methods("GET")
	router.HandleFunc("/runs/{id}", s.getRun).Methods("GET", "OPTIONS")
	router.HandleFunc("/healthz", s.getHealth).Methods("GET", "OPTIONS")
	router.HandleFunc("/logs/http", s.getHTTPLogs).Methods("GET", "OPTIONS")
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET", "OPTIONS")

	return router
}

// loggingMiddleware logs all requests except reads of the request log itself
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		if r.URL.Path == "/logs/http" {
			return
		}
		log.LogHTTPRequest(r.Method, r.URL.RequestURI(), m.Code, m.Duration, int(m.Written), r.RemoteAddr, r.UserAgent(), nil)
		s.logger.Debugf("%s %s %d %s %v", r.Method, r.URL.RequestURI(), m.Code, r.RemoteAddr, m.Duration)
	})
}

// recoveryLogger routes handler panics to the server logger
type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.logger.Error(args...)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
