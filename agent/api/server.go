package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tanpawarit/chative-retail-assistant/agent/agents/assistant"
	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	"github.com/tanpawarit/chative-retail-assistant/pkg/errx"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
)

// Assistant is the conversation surface served over HTTP.
type Assistant interface {
	ProcessMessage(ctx context.Context, req assistant.TurnRequest) assistant.TurnResult
	ClearSession(ctx context.Context, sessionID string) bool
	GetHistory(ctx context.Context, sessionID string) []statex.Message
	ListSessions(ctx context.Context) ([]string, error)
	GetMetrics(ctx context.Context) contractx.MetricsSnapshot
}

type Server struct {
	cfg       Config
	assistant Assistant
	metrics   http.Handler
	limiter   *rateLimiter
}

// New builds the HTTP server. metrics may be nil, in which case /metrics is
// not mounted.
func New(cfg Config, a Assistant, metrics http.Handler) (*Server, error) {
	if a == nil {
		return nil, errors.New("assistant is required")
	}
	s := &Server{cfg: cfg, assistant: a, metrics: metrics}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	}
	return s, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}
		r.Post("/chat", s.handleChat)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}/history", s.handleHistory)
		r.Delete("/sessions/{id}", s.handleClearSession)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logx.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}

	var req assistant.TurnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, errx.BadRequest("invalid request body: "+err.Error()))
		return
	}

	res := s.assistant.ProcessMessage(r.Context(), req)
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.assistant.ListSessions(r.Context())
	if err != nil {
		logx.Error().Err(err).Msg("failed to list sessions")
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"messages":   s.assistant.GetHistory(r.Context(), id),
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if !s.assistant.ClearSession(r.Context(), id) {
		respondError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session_id": id, "cleared": true})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.assistant.GetMetrics(r.Context()))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondErr(w http.ResponseWriter, err error) {
	status := errx.StatusOf(err)
	respondError(w, status, strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_"), errx.MessageOf(err))
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logx.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
