package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/zsprackett/usagebar/internal/ansi"
	"github.com/zsprackett/usagebar/internal/events"
	"github.com/zsprackett/usagebar/internal/metrics"
	"github.com/zsprackett/usagebar/internal/usage"
)

type Config struct {
	Enabled   bool
	Port      int
	Host      string
	JWTSecret string // empty disables auth
}

// Source is the poller as seen by the web API. *usagepoller.Poller implements it.
type Source interface {
	State() usage.State
	Refresh() bool
	DebugLog() []string
}

type Server struct {
	src     Source
	cfg     Config
	logger  *slog.Logger
	mu      sync.Mutex
	clients map[chan events.Event]struct{}
	srv     *http.Server
}

func New(src Source, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		src:     src,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[chan events.Event]struct{}),
	}
}

// Broadcast implements events.Broadcaster. Slow clients miss events rather
// than block the poller.
func (s *Server) Broadcast(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Server) addClient(ch chan events.Event) {
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(ch chan events.Event) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	metrics.Register()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("POST /api/usage/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/debug", s.handleDebug)
	mux.HandleFunc("GET /events", s.handleSSE)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.cfg.JWTSecret == "" {
		return mux
	}
	return s.requireToken(map[string]bool{"/metrics": true}, mux)
}

func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.logger.Info("webserver listening", "addr", addr, "auth", s.cfg.JWTSecret != "")
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webserver stopped", "err", err)
		}
	}()
	return nil
}

// Shutdown stops a started server. Open SSE and websocket streams end when
// their request contexts are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.State())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.src.State().Started {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no working directory configured"})
		return
	}
	if !s.src.Refresh() {
		s.logger.Debug("webserver: refresh rejected, fetch in flight")
		writeJSON(w, http.StatusConflict, map[string]string{"error": "fetch already in progress"})
		return
	}
	s.logger.Info("webserver: refresh requested", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

type debugResponse struct {
	Lines []string `json:"lines"`
	Raw   string   `json:"raw"`
	Clean string   `json:"clean"`
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	raw := s.src.State().Diagnostic()
	writeJSON(w, http.StatusOK, debugResponse{
		Lines: s.src.DebugLog(),
		Raw:   raw,
		Clean: ansi.Strip(raw),
	})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", 500)
		return
	}

	ch := make(chan events.Event, 16)
	s.addClient(ch)
	defer s.removeClient(ch)

	writeSSE(w, flusher, events.Event{Type: events.TypeSnapshot, State: s.src.State()})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			writeSSE(w, flusher, e)
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, f http.Flusher, e events.Event) {
	data, _ := json.Marshal(e)
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}
