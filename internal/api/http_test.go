package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

type stubSource struct {
	calls atomic.Int64
	err   error
}

func (s *stubSource) StatusReport(context.Context) (StatusReport, error) {
	n := s.calls.Add(1)
	status := models.StatusConnected
	if n%2 == 0 {
		status = models.StatusDisconnected
	}
	return StatusReport{SessionID: "s-1", Connection: models.SessionConnection{Status: status}}, s.err
}

func (s *stubSource) OutageReport(context.Context) (OutageReport, error) {
	return OutageReport{SessionID: "s-1", TargetOutages: []OutageView{}, FullOutages: []models.FullOutage{}}, s.err
}

func (s *stubSource) StatsReport(context.Context) (StatsReport, error) {
	return StatsReport{SessionID: "s-1"}, s.err
}

func (s *stubSource) SummaryReport(context.Context) (SummaryReport, error) {
	return SummaryReport{SessionID: "s-1"}, s.err
}

func TestHTTPReports(t *testing.T) {
	server := NewHTTPServer(":0", &stubSource{}, nil, time.Second)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	for _, path := range []string{"/api/status", "/api/outages", "/api/stats", "/api/summary", "/healthz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var body map[string]any
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", path, resp.StatusCode)
		}
		if path != "/healthz" && body["sessionId"] != "s-1" {
			t.Fatalf("%s: unexpected body %v", path, body)
		}
	}
}

func TestHTTPReportError(t *testing.T) {
	server := NewHTTPServer(":0", &stubSource{err: errors.New("boom")}, nil, time.Second)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/outages", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestStatusWebsocketPushes(t *testing.T) {
	server := NewHTTPServer(":0", &stubSource{}, nil, 10*time.Millisecond)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second StatusReport
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if first.Connection.Status != models.StatusConnected || second.Connection.Status != models.StatusDisconnected {
		t.Fatalf("expected successive pushes, got %s then %s", first.Connection.Status, second.Connection.Status)
	}
}

func TestStatusWebsocketRejectsForeignOrigin(t *testing.T) {
	server := NewHTTPServer(":0", &stubSource{}, nil, time.Second)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/status"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatalf("expected handshake to fail for foreign origin")
	}
}

func TestStatusWebsocketClosedOnShutdown(t *testing.T) {
	server := NewHTTPServer(":0", &stubSource{}, nil, time.Hour)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first StatusReport
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close after shutdown, got %v", err)
	}
}
