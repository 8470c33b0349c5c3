package httputil

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(nil)

	if client == nil {
		t.Fatal("NewClient returned nil")
	}

	if client.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, client.Timeout)
	}

	tr, ok := client.Transport.(*instrumentedTransport)
	if !ok {
		t.Fatal("expected transport to be *instrumentedTransport")
	}

	if tr.userAgent != DefaultUserAgent {
		t.Errorf("expected userAgent %q, got %q", DefaultUserAgent, tr.userAgent)
	}

	if tr.base != http.DefaultTransport {
		t.Error("expected base transport to be http.DefaultTransport")
	}
}

func TestNewClient_CustomTimeout(t *testing.T) {
	client := NewClient(&ClientConfig{Timeout: 60 * time.Second})

	if client.Timeout != 60*time.Second {
		t.Errorf("expected timeout 60s, got %v", client.Timeout)
	}
}

func TestNewClient_NonPositiveTimeout_UsesDefault(t *testing.T) {
	for _, d := range []time.Duration{0, -1 * time.Second} {
		client := NewClient(&ClientConfig{Timeout: d})
		if client.Timeout != DefaultTimeout {
			t.Errorf("timeout %v: expected default %v, got %v", d, DefaultTimeout, client.Timeout)
		}
	}
}

func TestNewClient_CustomTransport(t *testing.T) {
	custom := &http.Transport{}
	client := NewClient(&ClientConfig{Transport: custom})

	tr := client.Transport.(*instrumentedTransport)
	if tr.base != custom {
		t.Error("expected custom base transport to be used")
	}
}

func TestNewClient_UserAgentAppliedToRequests(t *testing.T) {
	var receivedUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUserAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{UserAgent: "test-dnsbot/1.2.3"})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if receivedUserAgent != "test-dnsbot/1.2.3" {
		t.Errorf("expected User-Agent %q, got %q", "test-dnsbot/1.2.3", receivedUserAgent)
	}
}

func TestNewClient_ExplicitUserAgentPreserved(t *testing.T) {
	var receivedUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUserAgent = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := DefaultClient()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "caller/9")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if receivedUserAgent != "caller/9" {
		t.Errorf("expected User-Agent %q, got %q", "caller/9", receivedUserAgent)
	}
}

func TestNewClient_ObserverReceivesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	var gotStatus int
	var gotMethod string
	calls := 0
	client := NewClient(&ClientConfig{
		Observer: func(req *http.Request, status int, _ time.Duration, err error) {
			calls++
			gotStatus = status
			gotMethod = req.Method
			if err != nil {
				t.Errorf("unexpected transport error: %v", err)
			}
		},
	})

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodDelete, server.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if calls != 1 {
		t.Fatalf("expected 1 observer call, got %d", calls)
	}
	if gotStatus != http.StatusTeapot {
		t.Errorf("expected status 418, got %d", gotStatus)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("expected method DELETE, got %s", gotMethod)
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestNewClient_ObserverReceivesTransportError(t *testing.T) {
	var gotStatus = -1
	var gotErr error
	client := NewClient(&ClientConfig{
		Transport: failingTransport{},
		Observer: func(_ *http.Request, status int, _ time.Duration, err error) {
			gotStatus = status
			gotErr = err
		},
	})

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://127.0.0.1:1/", nil)
	if _, err := client.Do(req); err == nil {
		t.Fatal("expected error")
	}

	if gotStatus != 0 {
		t.Errorf("expected status 0 on transport error, got %d", gotStatus)
	}
	if gotErr == nil {
		t.Error("expected observer to receive the transport error")
	}
}

func TestNewClient_WithLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client := NewClient(&ClientConfig{Logger: logger})

	tr := client.Transport.(*instrumentedTransport)
	if tr.logger != logger {
		t.Error("expected logger to be set on transport")
	}
}
