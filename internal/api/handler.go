package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
	"github.com/DevRickLin/social-reactor/internal/logging"
	"github.com/DevRickLin/social-reactor/internal/service"
)

// JobRunner is the scheduler surface the API needs
type JobRunner interface {
	Jobs() []service.JobStatus
	Trigger(name string) (bool, error)
}

// Server provides the HTTP API: manual X actions, job control, watermark
// inspection and metrics
type Server struct {
	outbound   repo.OutboundRepo
	jobs       JobRunner
	watermarks repo.WatermarkRepo
	prefix     string

	server *http.Server
	addr   string
}

// NewServer creates a new API server. outbound may be nil when X is not
// configured; the pass-through endpoints then answer 503.
func NewServer(outbound repo.OutboundRepo, jobs JobRunner, watermarks repo.WatermarkRepo, prefix, addr string) *Server {
	return &Server{
		outbound:   outbound,
		jobs:       jobs,
		watermarks: watermarks,
		prefix:     prefix,
		addr:       addr,
	}
}

// Handler returns the HTTP handler with every route registered
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Pass-through actions
	mux.HandleFunc("POST /tweet", s.handleTweet)
	mux.HandleFunc("POST /retweet/{id}", s.handleRetweet)
	mux.HandleFunc("POST /like/{id}", s.handleLike)
	mux.HandleFunc("POST /quote/{id}", s.handleQuote)

	// Jobs
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("POST /api/jobs/{name}/run", s.handleRunJob)

	// Watermarks
	mux.HandleFunc("GET /api/watermarks", s.handleWatermarks)
	mux.HandleFunc("DELETE /api/watermarks/{stream}", s.handleResetWatermark)

	mux.Handle("GET /metrics", promhttp.Handler())

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server; it blocks until Stop
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info().Str("addr", s.addr).Msg("[API] Starting HTTP server")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ============ Pass-through Handlers ============

type tweetResult struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (s *Server) handleTweet(w http.ResponseWriter, r *http.Request) {
	if !s.requireOutbound(w) {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		s.writeFailure(w, http.StatusBadRequest, "text is required")
		return
	}

	id, err := s.outbound.Post(r.Context(), req.Text)
	if err != nil {
		s.writeActionError(w, "tweet", err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true, "tweet": tweetResult{ID: id, Text: req.Text}})
}

func (s *Server) handleRetweet(w http.ResponseWriter, r *http.Request) {
	if !s.requireOutbound(w) {
		return
	}
	id := r.PathValue("id")

	if err := s.outbound.Retweet(r.Context(), id); err != nil {
		s.writeActionError(w, "retweet", err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true, "message": fmt.Sprintf("Retweeted %s", id)})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	if !s.requireOutbound(w) {
		return
	}
	id := r.PathValue("id")

	if err := s.outbound.Like(r.Context(), id); err != nil {
		s.writeActionError(w, "like", err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true, "message": fmt.Sprintf("Liked %s", id)})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if !s.requireOutbound(w) {
		return
	}
	id := r.PathValue("id")

	var req struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Comment) == "" {
		s.writeFailure(w, http.StatusBadRequest, "comment is required")
		return
	}

	tweetID, err := s.outbound.Quote(r.Context(), req.Comment, id)
	if err != nil {
		s.writeActionError(w, "quote", err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true, "tweet": tweetResult{ID: tweetID, Text: req.Comment}})
}

func (s *Server) requireOutbound(w http.ResponseWriter) bool {
	if s.outbound == nil {
		s.writeFailure(w, http.StatusServiceUnavailable, "X is not configured")
		return false
	}
	return true
}

// ============ Job Handlers ============

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{"jobs": s.jobs.Jobs()})
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	started, err := s.jobs.Trigger(name)
	if errors.Is(err, service.ErrJobNotFound) {
		s.writeFailure(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, service.ErrNotRunning) {
		s.writeFailure(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !started {
		// Same rule as a tick: a running job is not queued again
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{"started": false, "reason": "job is already running"})
		return
	}

	logging.Info().Str("job", name).Msg("[API] Job triggered")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"started": true})
}

// ============ Watermark Handlers ============

func (s *Server) handleWatermarks(w http.ResponseWriter, r *http.Request) {
	marks, err := s.watermarks.List(r.Context(), s.prefix+":")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if marks == nil {
		marks = []domain.Watermark{}
	}
	s.writeJSON(w, map[string]interface{}{"watermarks": marks})
}

func (s *Server) handleResetWatermark(w http.ResponseWriter, r *http.Request) {
	stream := r.PathValue("stream")
	key := domain.WatermarkKey(s.prefix, stream)

	if err := s.watermarks.Reset(r.Context(), key); err != nil {
		s.writeError(w, err)
		return
	}
	logging.Warn().Str("key", key).Msg("[API] Watermark reset; the next firing only reacts to the newest event")
	s.writeJSON(w, map[string]interface{}{"success": true, "key": key})
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeFailure(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": msg})
}

func (s *Server) writeActionError(w http.ResponseWriter, action string, err error) {
	logging.Error().Err(err).Str("action", action).Msg("[API] Action failed")
	if errors.Is(err, domain.ErrUnsupported) {
		s.writeFailure(w, http.StatusNotImplemented, err.Error())
		return
	}
	s.writeError(w, err)
}
