package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/chrissnell/divesync/internal/analysis"
	"github.com/chrissnell/divesync/internal/log"
	"github.com/chrissnell/divesync/internal/storage"
	"github.com/chrissnell/divesync/pkg/deco"
	"github.com/chrissnell/divesync/pkg/gas"
	"github.com/chrissnell/divesync/pkg/responseformat"
	"github.com/gorilla/mux"
)

var errNoRunStore = errors.New("no run store that can read runs back is configured")

type ndlKey struct {
	algorithm string
	depth     float64
	time      int
	gas       string
}

// AlgorithmInfo is one entry of GET /algorithms
type AlgorithmInfo struct {
	Name        string `json:"name"`
	Implemented bool   `json:"implemented"`
}

// NDLResponse is the body of GET /ndl
type NDLResponse struct {
	Algorithm string  `json:"algorithm"`
	Depth     float64 `json:"depth"`
	Time      int     `json:"time"`
	Gas       string  `json:"gas"`
	NDL       int     `json:"ndl"`
	Cached    bool    `json:"cached"`
}

// RunRequest is the body of POST /runs. Empty algorithm and interval fall
// back to the configured defaults. Store overrides the server's store_runs
// setting.
type RunRequest struct {
	Algorithm string       `json:"algorithm,omitempty"`
	Interval  int          `json:"interval,omitempty"`
	Levels    []deco.Level `json:"levels"`
	Store     *bool        `json:"store,omitempty"`
}

// RunResponse is returned by POST /runs and GET /runs/{id}
type RunResponse struct {
	ID        string                `json:"id"`
	Algorithm string                `json:"algorithm"`
	Interval  int                   `json:"interval"`
	Levels    []storage.LevelRecord `json:"levels"`
	Queued    bool                  `json:"queued"`
	Summary   *analysis.Summary     `json:"summary,omitempty"`
	Result    *deco.RunResult       `json:"result"`
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := s.formatter.WriteResponse(w, r, status, data, nil); err != nil {
		s.logger.Errorf("error writing response to %s: %v", r.URL.Path, err)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	if werr := s.formatter.WriteError(w, r, status, err); werr != nil {
		s.logger.Errorf("error writing error response to %s: %v", r.URL.Path, werr)
	}
}

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, deco.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, deco.ErrUnknownAlgorithm),
		errors.Is(err, deco.ErrInvalidInterval),
		errors.Is(err, deco.ErrEmptyProfile),
		errors.Is(err, deco.ErrInvalidLevel),
		errors.Is(err, deco.ErrTooManySteps),
		errors.Is(err, gas.ErrInvalidMix):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrRunNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) getAlgorithms(w http.ResponseWriter, r *http.Request) {
	var out []AlgorithmInfo
	for _, v := range deco.Variants() {
		out = append(out, AlgorithmInfo{Name: v.String(), Implemented: v.Model == deco.ModelZHL16})
	}
	s.write(w, r, http.StatusOK, out)
}

func (s *Server) getNDL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	depth, err := strconv.ParseFloat(q.Get("depth"), 64)
	if err != nil || depth < 0 {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("depth must be a non-negative number of metres, got %q", q.Get("depth")))
		return
	}

	minutes := 0
	if t := q.Get("time"); t != "" {
		if minutes, err = strconv.Atoi(t); err != nil || minutes < 0 {
			s.fail(w, r, http.StatusBadRequest, fmt.Errorf("time must be a non-negative number of minutes, got %q", t))
			return
		}
	}

	variant, err := deco.ParseVariant(valueOr(q.Get("algorithm"), s.defaults.Algorithm))
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	mix, err := gas.ParseMix(valueOr(q.Get("gas"), s.defaults.Gas))
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}

	key := ndlKey{algorithm: variant.String(), depth: depth, time: minutes, gas: mix.Recipe()}
	resp := NDLResponse{Algorithm: key.algorithm, Depth: depth, Time: minutes, Gas: key.gas}

	if ndl, ok := s.ndlCache.Get(key); ok {
		s.metrics.ObserveNDL(key.algorithm, true)
		resp.NDL, resp.Cached = ndl, true
		s.write(w, r, http.StatusOK, resp)
		return
	}

	ndl, err := deco.New(variant).ComputeNDL(deco.SingleLevel(depth, minutes, mix))
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	s.metrics.ObserveNDL(key.algorithm, false)
	s.ndlCache.Add(key, ndl)

	resp.NDL = ndl
	s.write(w, r, http.StatusOK, resp)
}

func (s *Server) postRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodyBytes))

	var req RunRequest
	if err := responseformat.DecodeRequest(r, &req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.fail(w, r, status, fmt.Errorf("invalid run request: %w", err))
		return
	}

	variant, err := deco.ParseVariant(valueOr(req.Algorithm, s.defaults.Algorithm))
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	interval := req.Interval
	if interval == 0 {
		interval = s.defaults.Interval
	}

	profile := &deco.Profile{Levels: req.Levels}
	runner := deco.NewRunner(deco.New(variant), deco.WithLogger(s.logger), deco.WithMaxSteps(s.cfg.MaxSteps))

	start := time.Now()
	res, err := runner.Run(interval, profile)
	if err != nil {
		s.metrics.ObserveRun(variant.String(), 0, time.Since(start), err)
		s.fail(w, r, statusFor(err), err)
		return
	}
	s.metrics.ObserveRun(variant.String(), res.Steps(), time.Since(start), nil)

	run := storage.NewRun(variant, profile, res)
	resp := RunResponse{
		ID:        run.ID.String(),
		Algorithm: run.Algorithm,
		Interval:  run.Interval,
		Levels:    run.Levels,
		Result:    res,
	}
	if resp.Summary, err = analysis.Summarize(res); err != nil {
		s.logger.Debugf("no summary for run %s: %v", run.ID, err)
	}

	store := s.cfg.StoreRuns
	if req.Store != nil {
		store = *req.Store
	}
	if store && s.runs != nil {
		select {
		case s.runs <- run:
			resp.Queued = true
		case <-r.Context().Done():
		}
	}

	s.write(w, r, http.StatusCreated, resp)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		s.fail(w, r, http.StatusNotImplemented, errNoRunStore)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		if limit, err = strconv.Atoi(l); err != nil {
			s.fail(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit %q", l))
			return
		}
	}

	runs, err := s.reader.ListRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []storage.RunInfo{}
	}
	s.write(w, r, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		s.fail(w, r, http.StatusNotImplemented, errNoRunStore)
		return
	}

	run, err := s.reader.LoadRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}

	resp := RunResponse{
		ID:        run.ID.String(),
		Algorithm: run.Algorithm,
		Interval:  run.Interval,
		Levels:    run.Levels,
		Result:    run.Result,
	}
	if run.Result != nil {
		resp.Summary, _ = analysis.Summarize(run.Result)
	}
	s.write(w, r, http.StatusOK, resp)
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status string                          `json:"status"`
	Stores map[string]storage.HealthStatus `json:"stores,omitempty"`
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: storage.StatusHealthy}
	if s.health != nil {
		resp.Stores = s.health.GetAllHealth()
		for _, h := range resp.Stores {
			if h.Status != storage.StatusHealthy {
				resp.Status = storage.StatusUnhealthy
			}
		}
	}

	status := http.StatusOK
	if resp.Status != storage.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	s.write(w, r, status, resp)
}

func (s *Server) getHTTPLogs(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, http.StatusOK, log.GetHTTPLogBuffer().Entries())
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
