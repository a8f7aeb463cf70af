package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/relay/pkg/llm"
)

// MockProvider is a scripted provider: every Stream call yields Deltas in
// order, then ends normally or with StreamErr.
type MockProvider struct {
	Deltas []string

	// SetupErr is returned from Stream itself, before any delta.
	SetupErr error

	// StreamErr is returned by Next after all deltas instead of a normal end.
	StreamErr error

	// Block makes Next wait for the request context after the deltas.
	Block bool

	// Every, together with Block, makes Next repeat the last delta at this
	// interval until the request context ends.
	Every time.Duration

	// Hold, when set, makes Stream wait until it is closed or the request
	// context ends before returning.
	Hold chan struct{}

	Usage llm.Usage

	mu       sync.Mutex
	requests []llm.GenerationRequest
	closed   int
}

func NewMockProvider(deltas ...string) *MockProvider {
	return &MockProvider{Deltas: deltas}
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) DefaultModel() string {
	return "mock-model"
}

func (m *MockProvider) Stream(ctx context.Context, req *llm.GenerationRequest) (llm.Stream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	m.mu.Unlock()

	if m.Hold != nil {
		select {
		case <-m.Hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SetupErr != nil {
		return nil, m.SetupErr
	}
	return &mockStream{ctx: ctx, provider: m}, nil
}

// Calls returns how many times Stream was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil when there was none.
func (m *MockProvider) LastRequest() *llm.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}

// Closed returns how many streams were closed.
func (m *MockProvider) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockStream struct {
	ctx      context.Context
	provider *MockProvider
	next     int
	once     sync.Once
}

func (s *mockStream) Next() (*llm.StreamEvent, error) {
	if s.next < len(s.provider.Deltas) {
		ev := llm.TextEvent(s.provider.Deltas[s.next])
		s.next++
		return &ev, nil
	}
	if s.provider.Block {
		return s.block()
	}
	if s.provider.StreamErr != nil {
		return nil, s.provider.StreamErr
	}
	return nil, nil
}

func (s *mockStream) block() (*llm.StreamEvent, error) {
	deltas := s.provider.Deltas
	if s.provider.Every <= 0 || len(deltas) == 0 {
		<-s.ctx.Done()
		return nil, s.ctx.Err()
	}

	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case <-time.After(s.provider.Every):
		ev := llm.TextEvent(deltas[len(deltas)-1])
		return &ev, nil
	}
}

func (s *mockStream) Usage() llm.Usage {
	return s.provider.Usage
}

func (s *mockStream) Close() error {
	s.once.Do(func() {
		s.provider.mu.Lock()
		s.provider.closed++
		s.provider.mu.Unlock()
	})
	return nil
}
