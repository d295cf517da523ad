package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"foodsnap/internal/domain"
	"foodsnap/internal/identity"
)

var ErrClosed = errors.New("session manager closed")

// ManagerConfig agrupa los límites de tiempo del ciclo de sesión.
type ManagerConfig struct {
	ResolveTimeout   time.Duration
	BootstrapTimeout time.Duration
	SafetyTimeout    time.Duration
	SignOutTimeout   time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 12 * time.Second
	}
	if c.BootstrapTimeout <= 0 {
		c.BootstrapTimeout = 20 * time.Second
	}
	if c.SafetyTimeout <= 0 {
		c.SafetyTimeout = 15 * time.Second
	}
	if c.SignOutTimeout <= 0 {
		c.SignOutTimeout = 8 * time.Second
	}
	return c
}

// resolveCall representa la resolución en vuelo; los triggers concurrentes
// se suman a su resultado en lugar de abrir otra.
type resolveCall struct {
	done chan struct{}
	err  error
}

// Manager reconcilia los eventos asíncronos del proveedor de identidad con
// el estado local de sesión. Es el único escritor de State: el resto de la
// aplicación lo lee vía State(), Subscribe() o Decide().
type Manager struct {
	logger   *zap.Logger
	provider identity.Provider
	resolver *Resolver
	cfg      ManagerConfig

	mu          sync.Mutex
	state       State
	gen         uint64
	inflight    *resolveCall
	closed      bool
	unsubscribe func()
	safety      *time.Timer
	watchers    map[int]chan State
	nextWatcher int
}

func NewManager(logger *zap.Logger, provider identity.Provider, resolver *Resolver, cfg ManagerConfig) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:   logger,
		provider: provider,
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		state:    State{IsLoading: true},
		watchers: make(map[int]chan State),
	}
}

// Start suscribe a los eventos del proveedor y lanza el bootstrap inicial.
// Se llama exactamente una vez; Close deshace la suscripción.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.armSafetyLocked()
	m.mu.Unlock()

	unsubscribe, err := m.provider.Subscribe(m.handleEvent)
	if err != nil {
		// Sin eventos igual hay que hidratar y soltar el loading.
		m.logger.Warn("auth event subscription failed", zap.Error(err))
	} else {
		m.mu.Lock()
		m.unsubscribe = unsubscribe
		m.mu.Unlock()
	}

	go func() {
		if refreshErr := m.refresh(ctx, m.cfg.BootstrapTimeout); refreshErr != nil {
			m.logger.Warn("session bootstrap failed", zap.Error(refreshErr))
		}
	}()
	return err
}

// State devuelve el snapshot actual.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Decide evalúa el RouteGuard contra el estado actual.
func (m *Manager) Decide(req Requirement) Decision {
	return Decide(m.State(), req)
}

// Subscribe entrega el estado actual de inmediato y luego cada transición.
// El canal conserva solo el último estado (latest wins); cancel lo cierra.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan State, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = ch
	ch <- m.state

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(c)
		}
	}
	return ch, cancel
}

// Refresh fuerza una re-resolución del usuario. Si ya hay una en vuelo se
// suma a su resultado en lugar de disparar otra consulta al backend.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refresh(ctx, m.cfg.ResolveTimeout)
}

func (m *Manager) refresh(ctx context.Context, timeout time.Duration) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if call := m.inflight; call != nil {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &resolveCall{done: make(chan struct{})}
	m.inflight = call
	gen := m.gen
	m.state.IsLoading = true
	m.armSafetyLocked()
	m.notifyLocked()
	m.mu.Unlock()

	err := m.resolveOnce(ctx, timeout, gen)

	m.mu.Lock()
	if m.inflight == call {
		m.inflight = nil
	}
	// Invariante estructural: todo camino de salida limpia IsLoading.
	// Si gen cambió (signout, teardown, safety), otro ya dejó el estado bien.
	if !m.closed && m.gen == gen {
		m.state.IsLoading = false
		m.notifyLocked()
	}
	m.mu.Unlock()

	call.err = err
	close(call.done)
	return err
}

func (m *Manager) resolveOnce(ctx context.Context, timeout time.Duration, gen uint64) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sess, err := m.provider.CurrentSession(tctx)
	if err != nil {
		// Política: error transitorio no expulsa a un usuario ya conocido.
		m.logger.Warn("current session fetch failed", zap.Error(err))
		return err
	}
	if sess == nil {
		m.install(gen, nil, false)
		return nil
	}

	res, err := m.resolver.Resolve(tctx, sess.Identity)
	if err != nil {
		m.logger.Warn("profile resolution failed",
			zap.Error(err), zap.String("user_id", sess.Identity.ID))
		return err
	}

	user := res.User
	m.install(gen, &user, res.Incomplete)
	return nil
}

// install reemplaza el usuario de forma atómica, descartando resultados de
// resoluciones que quedaron obsoletas por signout o teardown.
func (m *Manager) install(gen uint64, user *domain.User, incomplete bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.gen != gen {
		return
	}
	m.state.User = user
	m.state.ProfileIncomplete = user != nil && incomplete
	m.notifyLocked()
}

func (m *Manager) handleEvent(ev identity.Event) {
	if ev.Type == identity.EventSignedOut {
		// Transición terminal y síncrona: sin flash de loading.
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.gen++
		m.inflight = nil
		m.state = State{}
		m.notifyLocked()
		m.mu.Unlock()
		return
	}

	// SIGNED_IN / TOKEN_REFRESHED / INITIAL_SESSION: re-resolver sin
	// bloquear la cola de eventos del proveedor.
	go func() {
		if err := m.Refresh(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			m.logger.Warn("refresh after auth event failed",
				zap.String("event", string(ev.Type)), zap.Error(err))
		}
	}()
}

// SignOut limpia el estado local de forma determinista y luego avisa al
// proveedor con un timeout acotado. El usuario queda deslogueado localmente
// aunque la llamada remota falle o se cuelgue.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.gen++
	m.inflight = nil
	m.state = State{}
	m.notifyLocked()
	m.mu.Unlock()

	tctx, cancel := context.WithTimeout(ctx, m.cfg.SignOutTimeout)
	defer cancel()
	if err := m.provider.SignOut(tctx); err != nil {
		m.logger.Warn("provider sign out failed", zap.Error(err))
		return err
	}
	return nil
}

// Close cancela la suscripción y descarta cualquier resolución en vuelo.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	if m.safety != nil {
		m.safety.Stop()
	}
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// armSafetyLocked (re)arma el backstop que suelta IsLoading si una operación
// nunca llega a asentarse. Un timeout dentro del call asíncrono no alcanza
// cuando el call mismo no retorna.
func (m *Manager) armSafetyLocked() {
	if m.safety != nil {
		m.safety.Stop()
	}
	m.safety = time.AfterFunc(m.cfg.SafetyTimeout, m.forceClearLoading)
}

func (m *Manager) forceClearLoading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.state.IsLoading {
		return
	}
	m.logger.Warn("session loading exceeded safety timeout, force clearing")
	m.gen++
	m.inflight = nil
	m.state.IsLoading = false
	m.notifyLocked()
}

func (m *Manager) notifyLocked() {
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- m.state:
		default:
		}
	}
}
