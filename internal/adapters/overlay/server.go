// Package overlay serves the browser overlay: a small HTTP API over the
// live variable bag, trigger endpoints mirroring the hotkeys, and a
// websocket feed that pushes the bag on every flow transition.
package overlay

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bonebunny/lootledger/internal/domain/session"
	"github.com/bonebunny/lootledger/internal/projection"
	"github.com/bonebunny/lootledger/pkg/logger"
	"github.com/bonebunny/lootledger/pkg/metrics"
)

// Controller is the slice of the flow controller the overlay drives.
type Controller interface {
	BeginUnit(ctx context.Context) error
	EndUnit(ctx context.Context) error
	NewSession(ctx context.Context) (session.Info, error)
	Vars() projection.Vars
}

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server is the overlay HTTP server. It binds to loopback by default;
// nothing here is meant to face a network.
type Server struct {
	addr string
	ctrl Controller
	hub  *Hub
	log  logger.Logger

	httpServer *http.Server
}

// NewServer builds the overlay server around a flow controller and the
// shared websocket hub.
func NewServer(addr string, ctrl Controller, hub *Hub) *Server {
	s := &Server{
		addr: addr,
		ctrl: ctrl,
		hub:  hub,
		log:  logger.Named("overlay"),
	}

	r := mux.NewRouter()
	r.Use(s.observe)
	r.HandleFunc("/vars", s.handleVars).Methods(http.MethodGet)
	r.HandleFunc("/trigger/begin", s.handleBegin).Methods(http.MethodPost)
	r.HandleFunc("/trigger/end", s.handleEnd).Methods(http.MethodPost)
	r.HandleFunc("/trigger/session", s.handleSession).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.hub.ServeWS)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context is canceled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "overlay listening", logger.String("addr", s.addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.hub.Close()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleVars(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: s.ctrl.Vars()})
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.BeginUnit(r.Context()); err != nil {
		s.writeJSON(w, http.StatusConflict, response{Success: false, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: s.ctrl.Vars()})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.EndUnit(r.Context()); err != nil {
		s.writeJSON(w, http.StatusConflict, response{Success: false, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: s.ctrl.Vars()})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.ctrl.NewSession(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusConflict, response{Success: false, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: map[string]string{"session_id": info.SessionID}})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: map[string]string{"status": "ok"}})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(overlayPage))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn(context.Background(), "response encode failed", logger.Error(err))
	}
}

// observe records request metrics per route.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		endpoint := r.URL.Path
		if i := strings.Index(endpoint[1:], "/"); i >= 0 {
			endpoint = endpoint[:i+1]
		}
		metrics.RecordHTTPRequest(endpoint, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
