package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// maxEnvelopeBytes bounds how much of a failed response body is buffered.
const maxEnvelopeBytes = 64 << 10

// envelope is the error part of a v4 API response body.
type envelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// failure is the last 429 or 5xx response seen for one SDK call. The SDK
// discards those bodies, so the transport keeps a copy for classify.
type failure struct {
	mu       sync.Mutex
	status   int
	payload  bool
	codes    []int
	messages []string
}

// record stores status and, when payload is set, the envelope's errors.
func (f *failure) record(status int, env envelope, payload bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.payload = payload
	f.codes = f.codes[:0]
	f.messages = f.messages[:0]
	for _, e := range env.Errors {
		f.codes = append(f.codes, e.Code)
		f.messages = append(f.messages, e.Message)
	}
}

// rejection converts the captured response into a RejectedError. It returns
// nil when nothing was captured or a 5xx carried no error payload.
func (f *failure) rejection(op string) *provider.RejectedError {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == 0 {
		return nil
	}
	if !f.payload && f.status != http.StatusTooManyRequests {
		return nil
	}
	rej := &provider.RejectedError{
		Operation: op,
		Status:    f.status,
		Codes:     append([]int(nil), f.codes...),
		Messages:  append([]string(nil), f.messages...),
	}
	if len(rej.Messages) == 0 {
		rej.Messages = []string{"rate limit exceeded"}
	}
	return rej
}

type failureKey struct{}

// trackFailure returns a context whose requests record 429 and 5xx responses
// into the returned failure.
func trackFailure(ctx context.Context) (context.Context, *failure) {
	f := &failure{}
	return context.WithValue(ctx, failureKey{}, f), f
}

// apiTransport waits on a limiter shared by every client of a factory and
// captures the error envelope of responses the SDK does not parse.
type apiTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// RoundTrip implements http.RoundTripper.
func (t *apiTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
		return resp, nil
	}

	f, ok := req.Context().Value(failureKey{}).(*failure)
	if !ok {
		return resp, nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		return resp, nil
	}

	// Proxies in front of the API answer with HTML on outages.
	var env envelope
	payload := json.Unmarshal(body, &env) == nil && !env.Success && len(env.Errors) > 0
	f.record(resp.StatusCode, env, payload)
	return resp, nil
}

// newLimiter returns a limiter allowing rps requests per second.
func newLimiter(rps float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// wrapHTTPClient returns a copy of hc routed through an apiTransport.
func wrapHTTPClient(hc *http.Client, limiter *rate.Limiter) *http.Client {
	wrapped := *hc
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped.Transport = &apiTransport{base: base, limiter: limiter}
	return &wrapped
}
