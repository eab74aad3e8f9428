package dispatch

import (
	"context"
	"sync"
	"time"
)

// MockDispatcher implements Dispatcher for testing. It allows configuring
// responses and errors, simulating slow backends, and tracking calls for
// verification.
type MockDispatcher struct {
	mu sync.Mutex

	response  Response
	err       error
	delay     time.Duration
	available bool

	// Calls records every request received, in order.
	Calls []Request
}

// NewMockDispatcher creates a MockDispatcher that is available and returns a
// zero-value response.
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{available: true}
}

// WithResponse configures the response returned by Propose.
func (m *MockDispatcher) WithResponse(r Response) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = r
	return m
}

// WithError makes Propose fail with err.
func (m *MockDispatcher) WithError(err error) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay makes Propose block for d before answering, or until the
// context expires.
func (m *MockDispatcher) WithDelay(d time.Duration) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithAvailable sets the Available() result.
func (m *MockDispatcher) WithAvailable(v bool) *MockDispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = v
	return m
}

// Propose returns the configured response or error after the configured
// delay, recording the call.
func (m *MockDispatcher) Propose(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	resp, err, delay := m.response, m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Available returns the configured availability.
func (m *MockDispatcher) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Close is a no-op.
func (m *MockDispatcher) Close() error { return nil }

// CallCount returns the number of Propose calls recorded.
func (m *MockDispatcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
