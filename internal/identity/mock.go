package identity

import (
	"context"
	"sync"
)

// MockProvider es un Provider guionado para tests.
type MockProvider struct {
	mu       sync.Mutex
	session  *Session
	err      error
	calls    int
	signOuts int

	CurrentSessionFunc func(ctx context.Context) (*Session, error)
	SignOutFunc        func(ctx context.Context) error

	subMu       sync.Mutex
	subscribers map[int]func(Event)
	nextSubID   int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{subscribers: make(map[int]func(Event))}
}

func (m *MockProvider) SetCurrent(session *Session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	m.err = err
}

func (m *MockProvider) CurrentSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	m.calls++
	fn := m.CurrentSessionFunc
	session, err := m.session, m.err
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return session, err
}

func (m *MockProvider) SessionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) SignOutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOuts
}

func (m *MockProvider) Subscribe(handler func(Event)) (func(), error) {
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = handler
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.subscribers, id)
		m.subMu.Unlock()
	}, nil
}

func (m *MockProvider) SubscriberCount() int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return len(m.subscribers)
}

// Emit entrega un evento a todos los suscriptores, como haría el proveedor real.
func (m *MockProvider) Emit(ev Event) {
	m.subMu.Lock()
	handlers := make([]func(Event), 0, len(m.subscribers))
	for _, h := range m.subscribers {
		handlers = append(handlers, h)
	}
	m.subMu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (m *MockProvider) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.signOuts++
	fn := m.SignOutFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}
