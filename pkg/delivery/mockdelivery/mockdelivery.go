package mockdelivery

import (
	"context"
	"sync"

	"github.com/crewbase/crewbase/pkg/delivery"
)

// MockSender records every message instead of delivering it. FailWith, when
// set, is returned by Send so tests can exercise delivery failures.
type MockSender struct {
	mu       sync.Mutex
	sent     []delivery.Message
	FailWith error
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) Name() string { return "mock" }

func (m *MockSender) Send(_ context.Context, msg delivery.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *MockSender) Sent() []delivery.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]delivery.Message, len(m.sent))
	copy(out, m.sent)
	return out
}
