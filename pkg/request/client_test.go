package request

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"lectern/pkg/tracker"
)

func testClient(tr *tracker.Tracker) *Client {
	return New(tr, Options{
		Timeout: 5 * time.Second,
		Retries: 3,
		Backoff: NewProviderBackoff(time.Millisecond, 10*time.Millisecond),
	})
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Custom") != "yes" {
			t.Errorf("custom header not forwarded")
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("user agent missing")
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	tr := tracker.New()
	c := testClient(tr)

	body, err := c.Get(context.Background(), srv.URL, map[string]string{"X-Custom": "yes"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q", body)
	}

	stats := tr.Snapshot()
	for _, s := range stats {
		if s.APISuccess != 1 {
			t.Errorf("success not tracked: %+v", s)
		}
	}
}

func TestRetryOnServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c := testClient(tracker.New())
	body, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("expected retry to recover: %v", err)
	}
	if string(body) != "recovered" {
		t.Errorf("body = %q", body)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestClientErrorIsFinal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad filter"))
	}))
	defer srv.Close()

	c := testClient(tracker.New())
	_, err := c.Get(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", hits.Load())
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if se.StatusCode != http.StatusBadRequest || se.Body != "bad filter" {
		t.Errorf("StatusError fields wrong: %+v", se)
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(&StatusError{StatusCode: 401}) {
		t.Error("401 should be an auth error")
	}
	if !IsAuthError(&StatusError{StatusCode: 403}) {
		t.Error("403 should be an auth error")
	}
	if IsAuthError(&StatusError{StatusCode: 500}) {
		t.Error("500 is not an auth error")
	}
	if IsAuthError(errors.New("plain")) {
		t.Error("non-status errors are not auth errors")
	}
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := testClient(tracker.New())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Get(ctx, srv.URL, nil)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not shortcut the request")
	}
}

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"api.elevenlabs.io", "catalog"},
		{"api-global.elevenlabs.io", "catalog"},
		{"elevenlabs.io", "catalog"},
		{"example.com", "example.com"},
	}
	for _, tt := range tests {
		if got := normalizeProvider(tt.host); got != tt.want {
			t.Errorf("normalizeProvider(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestProviderBackoff(t *testing.T) {
	b := NewProviderBackoff(10*time.Millisecond, 100*time.Millisecond)

	// Unknown provider: no delay.
	count, next := b.GetState("p")
	if count != 0 || !next.IsZero() {
		t.Errorf("fresh provider has state: %d %v", count, next)
	}

	b.RecordFailure("p")
	count, next = b.GetState("p")
	if count != 1 {
		t.Errorf("failure count = %d, want 1", count)
	}
	if next.IsZero() {
		t.Error("failure did not schedule a delay")
	}

	b.RecordFailure("p")
	_, next2 := b.GetState("p")
	if !next2.After(next) {
		t.Error("repeated failures should push the window out")
	}

	// Recovery clears the backoff once failures drain.
	b.RecordSuccess("p")
	b.RecordSuccess("p")
	count, next = b.GetState("p")
	if count != 0 || !next.IsZero() {
		t.Errorf("recovered provider still throttled: %d %v", count, next)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	b := NewProviderBackoff(10*time.Millisecond, 50*time.Millisecond)
	for i := 0; i < 20; i++ {
		b.RecordFailure("p")
	}
	_, next := b.GetState("p")
	// Cap plus 10% jitter.
	if until := time.Until(next); until > 60*time.Millisecond {
		t.Errorf("delay exceeds cap: %v", until)
	}
}
