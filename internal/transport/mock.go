package transport

import (
	"context"
	"sync"

	"github.com/prepvox/PrepVox/internal/models"
)

// MockService is a scriptable Service implementation for tests. Events are
// emitted by the test; Start and Stop calls are recorded.
type MockService struct {
	mu sync.Mutex

	StartErr error

	startCalls []StartCall
	stopped    bool
	events     chan models.SessionEvent
	closeOnce  sync.Once
}

// StartCall records one Start invocation.
type StartCall struct {
	Target    string
	Variables map[string]string
}

// NewMockService creates a mock transport with a buffered event channel.
func NewMockService() *MockService {
	return &MockService{events: make(chan models.SessionEvent, DefaultChannelBufferSize)}
}

func (m *MockService) Start(ctx context.Context, target string, variables map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.startCalls = append(m.startCalls, StartCall{Target: target, Variables: variables})
	return nil
}

func (m *MockService) Stop() error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	// A stop behaves like a remote hang-up: deliver call-end and finish.
	m.Emit(models.SessionEvent{Type: models.SessionEventCallEnd})
	m.CloseEvents()
	return nil
}

func (m *MockService) Events() <-chan models.SessionEvent {
	return m.events
}

// Emit delivers one event to the consumer.
func (m *MockService) Emit(evt models.SessionEvent) {
	m.events <- evt
}

// CloseEvents closes the event channel, ending the consumer's loop.
func (m *MockService) CloseEvents() {
	m.closeOnce.Do(func() {
		close(m.events)
	})
}

// StartCalls returns the recorded Start invocations.
func (m *MockService) StartCalls() []StartCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]StartCall, len(m.startCalls))
	copy(calls, m.startCalls)
	return calls
}

// Stopped reports whether Stop was called.
func (m *MockService) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
