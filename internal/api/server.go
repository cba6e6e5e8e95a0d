// Package api exposes the brief pipeline over HTTP.
//
//	POST /brief            {topic, depth=1, follow_up=false, user_id} -> Brief
//	GET  /history/{user}   -> [Brief, ...]
//	GET  /healthz          -> ok
//
// Failures are answered with {"error": ..., "kind": ...}: 400 for input,
// 500 for computation and 503 for persistence errors.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"briefer/internal/logging"
	"briefer/internal/pipeline"
	"briefer/internal/schema"
	"briefer/internal/store"
)

const maxRequestBody = 1 << 20

// Runner executes one brief request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*schema.Brief, error)
}

// Config holds the listener settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the API.
type Server struct {
	cfg     Config
	runner  Runner
	history store.HistoryStore
	mux     *http.ServeMux
}

// NewServer wires the routes.
func NewServer(cfg Config, runner Runner, history store.HistoryStore) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	s := &Server{cfg: cfg, runner: runner, history: history, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /brief", s.handleBrief)
	s.mux.HandleFunc("GET /history/{user}", s.handleHistory)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logging.API("listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.API("server stopped")
	return nil
}

type briefRequest struct {
	Topic    string `json:"topic"`
	Depth    *int   `json:"depth"`
	FollowUp bool   `json:"follow_up"`
	UserID   string `json:"user_id"`
}

func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request) {
	var body briefRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, pipeline.KindInput, "invalid JSON body: "+err.Error())
		return
	}

	req := pipeline.Request{
		Topic:    body.Topic,
		Depth:    1,
		FollowUp: body.FollowUp,
		UserID:   body.UserID,
	}
	if body.Depth != nil {
		req.Depth = *body.Depth
	}

	brief, err := s.runner.Run(r.Context(), req)
	if err != nil {
		kind := pipeline.KindOf(err)
		status := statusFor(kind)
		if status >= 500 {
			logging.Get(logging.CategoryAPI).Error("brief for %s failed (%s): %v", req.UserID, kind, err)
		}
		writeError(w, status, kind, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, brief)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	briefs, err := s.history.History(r.Context(), user)
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("history for %s: %v", user, err)
		writeError(w, http.StatusServiceUnavailable, pipeline.KindPersistence, err.Error())
		return
	}
	if briefs == nil {
		briefs = []schema.Brief{}
	}
	writeJSON(w, http.StatusOK, briefs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func statusFor(k pipeline.Kind) int {
	switch k {
	case pipeline.KindInput:
		return http.StatusBadRequest
	case pipeline.KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, kind pipeline.Kind, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.APIDebug("write response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.API("%s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
