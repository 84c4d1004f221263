// Package testutil provides testing utilities for the audit export engine.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for one scripted query.
type MockResponse struct {
	Body  []byte
	Err   error
	Delay time.Duration
}

// MockRunner is a configurable scripted Runner for testing.
//
// Responses are keyed by the joined argument string. For one key, multiple
// responses are served in order (useful for token-paged sequences keyed by
// the same base arguments); the last response repeats.
type MockRunner struct {
	mu        sync.Mutex
	responses map[string][]MockResponse
	served    map[string]int

	// Tracking
	Calls [][]string
}

// NewMockRunner creates an empty scripted runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		responses: make(map[string][]MockResponse),
		served:    make(map[string]int),
	}
}

// SetResponse scripts the responses for a joined argument string.
func (m *MockRunner) SetResponse(args string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[args] = responses
}

// SetJSON scripts a single successful JSON body for a joined argument string.
func (m *MockRunner) SetJSON(args string, body string) {
	m.SetResponse(args, MockResponse{Body: []byte(body)})
}

// CallCount returns the number of Run invocations so far.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears call tracking and served-response positions.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.served = make(map[string]int)
}

// Run implements executor.Runner.
func (m *MockRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]string{}, args...))

	key := strings.Join(args, " ")
	scripted, ok := m.responses[key]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("no scripted response for %q", key)
	}

	i := m.served[key]
	if i >= len(scripted) {
		i = len(scripted) - 1
	}
	m.served[key] = i + 1
	resp := scripted[i]
	m.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resp.Body, resp.Err
}
