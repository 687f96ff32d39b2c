package batchsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/algebrix/internal/config"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Write([]byte(`{"id":"A"}`))
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	body, err := NewHTTPFetcher(srv.URL+"/ok", time.Second).Fetch(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"A"}`, string(body))

	tests := []struct {
		path      string
		status    int
		retryable bool
	}{
		{"/busy", http.StatusServiceUnavailable, true},
		{"/missing", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := NewHTTPFetcher(srv.URL+tt.path, time.Second)
			_, err := f.Fetch(ctx)
			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, tt.retryable, fe.Retryable)
			assert.Equal(t, srv.URL+tt.path, fe.Source)
		})
	}
}

func TestHTTPFetcherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(url, time.Second).Fetch(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Retryable)
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"A"}`), 0o644))

	f := &FileFetcher{Path: path}
	assert.Equal(t, "file://"+path, f.Source())
	body, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"id":"A"}`, string(body))

	_, err = (&FileFetcher{Path: filepath.Join(t.TempDir(), "none.json")}).Fetch(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.False(t, fe.Retryable)
}

func retryConfig() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func transient() error {
	return &FetchError{Source: "mock://batches", StatusCode: 502, Retryable: true, Err: errors.New("bad gateway")}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	mock := NewMockFetcher(
		MockResponse{Err: transient()},
		MockResponse{Body: []byte(`{}`)},
	)
	body, err := WithRetry(mock, retryConfig(), nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{}` {
		t.Fatalf("unexpected body: %s", body)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.CallCount())
	}
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	mock := NewMockFetcher(
		MockResponse{Err: transient()},
		MockResponse{Err: transient()},
		MockResponse{Err: transient()},
		MockResponse{Body: []byte(`{}`)},
	)
	_, err := WithRetry(mock, retryConfig(), nil).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if mock.CallCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.CallCount())
	}
}

func TestRetry_PermanentNotRetried(t *testing.T) {
	mock := NewMockFetcher(
		MockResponse{Err: &FetchError{Source: "mock://batches", StatusCode: 404, Err: errors.New("not found")}},
		MockResponse{Body: []byte(`{}`)},
	)
	_, err := WithRetry(mock, retryConfig(), nil).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	mock := NewMockFetcher(
		MockResponse{Err: transient()},
		MockResponse{Body: []byte(`{}`)},
	)
	cfg := retryConfig()
	cfg.InitialWait = time.Hour
	cfg.MaxWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WithRetry(mock, cfg, nil).Fetch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetry_Backoff(t *testing.T) {
	r := WithRetry(NewMockFetcher(), config.RetryConfig{
		MaxAttempts: 5,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     300 * time.Millisecond,
		Multiplier:  2,
	}, nil)
	for attempt, want := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond} {
		got := r.backoff(attempt)
		lo, hi := time.Duration(float64(want)*0.8), time.Duration(float64(want)*1.2)
		if got < lo || got > hi {
			t.Fatalf("attempt %d: backoff %v outside [%v, %v]", attempt, got, lo, hi)
		}
	}
}
