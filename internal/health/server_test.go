package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return w, resp
}

func TestServer_Health(t *testing.T) {
	s := New(0, WithVersion("1.2.3"))

	w, resp := get(t, s, "/health")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if resp.Status != StatusHealthy || resp.Version != "1.2.3" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestServer_Ready_NoCheckers(t *testing.T) {
	s := New(0)

	w, resp := get(t, s, "/ready")

	if w.Code != http.StatusOK || resp.Status != StatusReady {
		t.Errorf("expected 200 ready, got %d %q", w.Code, resp.Status)
	}
}

func TestServer_Ready_AllHealthy(t *testing.T) {
	s := New(0)
	s.RegisterChecker("state", func(context.Context) error { return nil })
	s.RegisterChecker("discord", func(context.Context) error { return nil })

	w, resp := get(t, s, "/ready")

	if w.Code != http.StatusOK || resp.Status != StatusReady {
		t.Errorf("expected 200 ready, got %d %q", w.Code, resp.Status)
	}
	if len(resp.Components) != 2 || resp.Components[0].Name != "discord" || resp.Components[1].Name != "state" {
		t.Errorf("expected components sorted by name, got %+v", resp.Components)
	}
}

func TestServer_Ready_OneUnhealthy(t *testing.T) {
	s := New(0)
	s.RegisterChecker("state", func(context.Context) error { return errors.New("redis: connection refused") })
	s.RegisterChecker("discord", func(context.Context) error { return nil })
	s.RegisterDegradedChecker("creation", func(context.Context) (bool, string) { return true, "dns creation locked" })

	w, resp := get(t, s, "/ready")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
	if resp.Status != StatusNotReady {
		t.Errorf("expected not_ready, got %q", resp.Status)
	}
	for _, c := range resp.Components {
		if c.Name == "state" && (c.Healthy || c.Error != "redis: connection refused") {
			t.Errorf("unexpected state component %+v", c)
		}
	}
}

func TestServer_Ready_Degraded(t *testing.T) {
	s := New(0)
	s.RegisterChecker("state", func(context.Context) error { return nil })
	s.RegisterDegradedChecker("creation", func(context.Context) (bool, string) { return true, "dns creation locked" })
	s.RegisterDegradedChecker("other", func(context.Context) (bool, string) { return false, "" })

	w, resp := get(t, s, "/ready")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if resp.Status != StatusDegraded {
		t.Errorf("expected degraded, got %q", resp.Status)
	}
	if len(resp.Degraded) != 1 || resp.Degraded[0].Message != "dns creation locked" {
		t.Errorf("unexpected degraded list %+v", resp.Degraded)
	}
}

func TestServer_Ready_Timeout(t *testing.T) {
	s := New(0, WithTimeout(20*time.Millisecond))
	s.RegisterChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	w, resp := get(t, s, "/ready")

	if w.Code != http.StatusServiceUnavailable || resp.Components[0].Healthy {
		t.Errorf("expected slow checker to fail, got %d %+v", w.Code, resp)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := New(0)

	w, _ := get(t, s, "/metrics")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	s := New(0)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	}()

	res, err := http.Get(fmt.Sprintf("http://%s/health", s.Addr()))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), StatusHealthy) {
		t.Errorf("unexpected response %d %s", res.StatusCode, body)
	}
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	if err := New(0).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
