package batchsync

import (
	"context"
	"sync"
)

// MockResponse is a canned response for the MockFetcher.
type MockResponse struct {
	Body []byte
	Err  error
}

// MockFetcher is a deterministic Fetcher for testing.
// It returns canned responses in FIFO order.
type MockFetcher struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     int
	URL       string
}

// NewMockFetcher creates a MockFetcher with the given canned responses.
func NewMockFetcher(responses ...MockResponse) *MockFetcher {
	return &MockFetcher{responses: responses, URL: "mock://batches"}
}

// Fetch returns the next canned response, or a non-retryable FetchError if
// the queue is empty.
func (m *MockFetcher) Fetch(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if len(m.responses) == 0 {
		return nil, &FetchError{Source: m.URL, Err: errNoResponses}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Body, nil
}

func (m *MockFetcher) Source() string { return m.URL }

// AddResponse appends a canned response to the queue.
func (m *MockFetcher) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Fetch calls made.
func (m *MockFetcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
