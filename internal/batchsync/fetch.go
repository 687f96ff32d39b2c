package batchsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// maxDocumentSize bounds a fetched batch document.
const maxDocumentSize = 16 << 20

// Fetcher obtains the raw candidate batch document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	// Source names where documents come from, for provenance and logs.
	Source() string
}

// HTTPFetcher downloads the document with a GET request.
type HTTPFetcher struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPFetcher returns an HTTPFetcher using http.DefaultClient.
func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{URL: url, Client: http.DefaultClient, Timeout: timeout}
}

func (f *HTTPFetcher) Source() string { return f.URL }

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, &FetchError{Source: f.URL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		retryable := !errors.Is(err, context.Canceled)
		return nil, &FetchError{Source: f.URL, Retryable: retryable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			Source:     f.URL,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, &FetchError{Source: f.URL, Retryable: true, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxDocumentSize {
		return nil, &FetchError{Source: f.URL, Err: fmt.Errorf("document exceeds %d bytes", maxDocumentSize)}
	}
	return body, nil
}

// FileFetcher reads the document from a local file.
type FileFetcher struct {
	Path string
}

func (f *FileFetcher) Source() string { return "file://" + f.Path }

func (f *FileFetcher) Fetch(_ context.Context) ([]byte, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, &FetchError{Source: f.Source(), Err: err}
	}
	if info.Size() > maxDocumentSize {
		return nil, &FetchError{Source: f.Source(), Err: fmt.Errorf("document exceeds %d bytes", maxDocumentSize)}
	}
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, &FetchError{Source: f.Source(), Err: err}
	}
	return body, nil
}
