package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const statusWriteTimeout = 5 * time.Second

var statusUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, strings.TrimSpace(r.Host))
	},
}

// HTTPServer exposes the reports as JSON, a websocket status stream, and /metrics.
type HTTPServer struct {
	logger *slog.Logger
	source ReportSource
	push   time.Duration
	srv    *http.Server

	// streams is cancelled by Shutdown; hijacked websocket connections are not tracked by http.Server.
	streams context.Context
	stop    context.CancelFunc
}

// NewHTTPServer wires routes for addr. push is the websocket status interval.
func NewHTTPServer(addr string, source ReportSource, logger *slog.Logger, push time.Duration) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if push <= 0 {
		push = 2 * time.Second
	}
	streams, stop := context.WithCancel(context.Background())
	s := &HTTPServer{logger: logger, source: source, push: push, streams: streams, stop: stop}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streams },
	}
	return s
}

// Handler returns the route multiplexer.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info("http server listening", slog.String("address", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes open status streams, stops accepting connections and waits for active requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.stop()
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) registerRoutes(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/outages", s.handleOutages)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/ws/status", s.handleStatusWS)
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.source.StatusReport(r.Context())
	s.respond(w, report, err)
}

func (s *HTTPServer) handleOutages(w http.ResponseWriter, r *http.Request) {
	report, err := s.source.OutageReport(r.Context())
	s.respond(w, report, err)
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.source.StatsReport(r.Context())
	s.respond(w, report, err)
}

func (s *HTTPServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	report, err := s.source.SummaryReport(r.Context())
	s.respond(w, report, err)
}

func (s *HTTPServer) respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		s.logger.Error("report failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := statusUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveStatusConnection(r.Context(), conn)
}

func (s *HTTPServer) serveStatusConnection(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.streams, cancel)
	defer stop()

	if err := s.writeStatus(ctx, conn); err != nil {
		return
	}

	ticker := time.NewTicker(s.push)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := s.writeStatus(ctx, conn); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
	}
}

func (s *HTTPServer) writeStatus(ctx context.Context, conn *websocket.Conn) error {
	report, err := s.source.StatusReport(ctx)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(statusWriteTimeout))
	return conn.WriteJSON(report)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
