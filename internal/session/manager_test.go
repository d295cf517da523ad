package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"foodsnap/internal/domain"
	"foodsnap/internal/identity"
)

func testManagerConfig() ManagerConfig {
	return ManagerConfig{
		ResolveTimeout:   500 * time.Millisecond,
		BootstrapTimeout: time.Second,
		SafetyTimeout:    2 * time.Second,
		SignOutTimeout:   100 * time.Millisecond,
	}
}

func sessionFor(id, email string) *identity.Session {
	return &identity.Session{
		AccessToken: "token",
		ExpiresAt:   time.Now().UTC().Add(time.Hour),
		Identity:    identity.Identity{ID: id, Email: email},
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}

func newTestManager(provider identity.Provider, profiles *profileRepoStub, entitlements *entitlementRepoStub, cfg ManagerConfig) *Manager {
	resolver := NewResolver(zap.NewNop(), profiles, entitlements)
	return NewManager(zap.NewNop(), provider, resolver, cfg)
}

func TestManager_BootstrapWithoutSession(t *testing.T) {
	provider := identity.NewMockProvider()
	m := newTestManager(provider, newProfileRepoStub(), newEntitlementRepoStub(), testManagerConfig())
	defer m.Close()

	if !m.State().IsLoading {
		t.Fatalf("manager must start loading")
	}
	if got := m.Decide(Requirement{RequiresAuth: true}); got != DecisionPending {
		t.Fatalf("expected pending while loading, got %v", got)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return !m.State().IsLoading }, "bootstrap settles")

	state := m.State()
	if state.User != nil || state.ProfileIncomplete {
		t.Fatalf("expected signed out state, got %+v", state)
	}
	if got := m.Decide(Requirement{RequiresAuth: true}); got != DecisionRedirectLanding {
		t.Fatalf("expected redirect to landing, got %v", got)
	}
}

func TestManager_BootstrapWithCompleteProfile(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.SetCurrent(sessionFor("u1", "ana@example.com"), nil)
	profiles := newProfileRepoStub()
	profiles.profiles["u1"] = completeProfile("u1")
	entitlements := newEntitlementRepoStub()
	entitlements.entitlements["u1"] = domain.Entitlement{UserID: "u1", Code: domain.PlanPro, IsActive: true}

	m := newTestManager(provider, profiles, entitlements, testManagerConfig())
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return !m.State().IsLoading }, "bootstrap settles")

	state := m.State()
	if state.User == nil {
		t.Fatalf("expected user installed")
	}
	if state.User.Plan != domain.PlanPro {
		t.Fatalf("expected pro plan, got %s", state.User.Plan)
	}
	if state.ProfileIncomplete {
		t.Fatalf("profile with phone must be complete")
	}
	if got := m.Decide(Requirement{RequiresAuth: true}); got != DecisionAllow {
		t.Fatalf("expected allow, got %v", got)
	}
	if got := m.Decide(Requirement{RequiresAuth: true, RequiresAdmin: true}); got != DecisionRedirectDashboard {
		t.Fatalf("expected dashboard redirect for non admin, got %v", got)
	}
}

func TestManager_IncompleteProfileDoesNotBlockUI(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.SetCurrent(sessionFor("u-new", "novo@gmail.com"), nil)

	m := newTestManager(provider, newProfileRepoStub(), newEntitlementRepoStub(), testManagerConfig())
	defer m.Close()

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	state := m.State()
	if state.User == nil || !state.ProfileIncomplete {
		t.Fatalf("expected incomplete user present, got %+v", state)
	}
	if state.User.Plan != domain.PlanFree {
		t.Fatalf("expected free plan, got %s", state.User.Plan)
	}
}

func TestManager_RefreshCoalescesConcurrentTriggers(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.SetCurrent(sessionFor("u1", "ana@example.com"), nil)
	profiles := newProfileRepoStub()
	profiles.profiles["u1"] = completeProfile("u1")
	gate := make(chan struct{})
	profiles.gate = gate

	m := newTestManager(provider, profiles, newEntitlementRepoStub(), testManagerConfig())
	defer m.Close()

	firstErr := make(chan error, 1)
	go func() { firstErr <- m.Refresh(context.Background()) }()
	waitFor(t, func() bool { return profiles.Calls() == 1 }, "first resolution in flight")

	secondErr := make(chan error, 1)
	go func() { secondErr <- m.Refresh(context.Background()) }()
	// El segundo trigger debe sumarse al primero, no abrir otra consulta.
	time.Sleep(30 * time.Millisecond)
	if got := profiles.Calls(); got != 1 {
		t.Fatalf("expected a single backend fetch, got %d", got)
	}

	close(gate)
	if err := <-firstErr; err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if err := <-secondErr; err != nil {
		t.Fatalf("joined refresh: %v", err)
	}
	if got := profiles.Calls(); got != 1 {
		t.Fatalf("coalescing must keep one fetch, got %d", got)
	}
	if m.State().User == nil {
		t.Fatalf("expected user installed after joined refresh")
	}
}

func TestManager_BackendErrorRetainsPreviousUser(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.SetCurrent(sessionFor("u1", "ana@example.com"), nil)
	profiles := newProfileRepoStub()
	profiles.profiles["u1"] = completeProfile("u1")

	m := newTestManager(provider, profiles, newEntitlementRepoStub(), testManagerConfig())
	defer m.Close()

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if m.State().User == nil {
		t.Fatalf("expected user installed")
	}

	profiles.SetErr(errors.New("connection refused"))
	err := m.Refresh(context.Background())
	if !errors.Is(err, ErrProfileBackend) {
		t.Fatalf("expected ErrProfileBackend, got %v", err)
	}

	state := m.State()
	if state.IsLoading {
		t.Fatalf("loading must clear on error paths")
	}
	if state.User == nil {
		t.Fatalf("transient backend error must not sign the user out")
	}
}

func TestManager_SignedOutEventClearsSynchronously(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.SetCurrent(sessionFor("u1", "ana@example.com"), nil)
	profiles := newProfileRepoStub()
	profiles.profiles["u1"] = completeProfile("u1")

	m := newTestManager(provider, profiles, newEntitlementRepoStub(), testManagerConfig())
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return m.State().User != nil }, "user installed")

	provider.Emit(identity.Event{Type: identity.EventSignedOut})

	state := m.State()
	if state.User != nil || state.IsLoading || state.ProfileIncomplete {
		t.Fatalf("signed out event must clear state synchronously, got %+v", state)
	}
}

func TestManager_TokenRefreshedEventTriggersResolution(t *testing.T) {
	provider := identity.NewMockProvider()
	profiles := newProfileRepoStub()
	m := newTestManager(provider, profiles, newEntitlementRepoStub(), testManagerConfig())
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return !m.State().IsLoading }, "bootstrap settles")
	if m.State().User != nil {
		t.Fatalf("expected signed out bootstrap")
	}

	// Un login externo aparece via evento del proveedor.
	provider.SetCurrent(sessionFor("u1", "ana@example.com"), nil)
	profiles.mu.Lock()
	profiles.profiles["u1"] = completeProfile("u1")
	profiles.mu.Unlock()
	provider.Emit(identity.Event{Type: identity.EventTokenRefreshed, Session: sessionFor("u1", "ana@example.com")})

	waitFor(t, func() bool { return m.State().User != nil }, "user installed after event")
}

func TestManager_SignOutDeterministicEvenIfProviderHangs(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.SetCurrent(sessionFor("u1", "ana@example.com"), nil)
	provider.SignOutFunc = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	profiles := newProfileRepoStub()
	profiles.profiles["u1"] = completeProfile("u1")

	m := newTestManager(provider, profiles, newEntitlementRepoStub(), testManagerConfig())
	defer m.Close()

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if m.State().User == nil {
		t.Fatalf("expected user installed")
	}

	start := time.Now()
	err := m.SignOut(context.Background())
	if err == nil {
		t.Fatalf("expected provider timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("sign out must be bounded by its timeout, took %v", elapsed)
	}

	state := m.State()
	if state.User != nil || state.IsLoading || state.ProfileIncomplete {
		t.Fatalf("local state must clear regardless of provider outcome, got %+v", state)
	}
}

func TestManager_StaleResolutionDiscardedAfterSignOut(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.SetCurrent(sessionFor("u1", "ana@example.com"), nil)
	profiles := newProfileRepoStub()
	profiles.profiles["u1"] = completeProfile("u1")
	gate := make(chan struct{})
	profiles.gate = gate

	m := newTestManager(provider, profiles, newEntitlementRepoStub(), testManagerConfig())
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- m.Refresh(context.Background()) }()
	waitFor(t, func() bool { return profiles.Calls() == 1 }, "resolution in flight")

	provider.Emit(identity.Event{Type: identity.EventSignedOut})
	close(gate)
	<-done

	state := m.State()
	if state.User != nil {
		t.Fatalf("stale resolution must not resurrect a signed out user, got %+v", state)
	}
	if state.IsLoading {
		t.Fatalf("loading must be clear after stale resolution settles")
	}
}

func TestManager_SafetyTimerForceClearsLoading(t *testing.T) {
	provider := identity.NewMockProvider()
	hang := make(chan struct{})
	provider.CurrentSessionFunc = func(ctx context.Context) (*identity.Session, error) {
		<-hang // ignora el contexto a propósito
		return nil, errors.New("too late")
	}

	cfg := testManagerConfig()
	cfg.SafetyTimeout = 40 * time.Millisecond
	m := newTestManager(provider, newProfileRepoStub(), newEntitlementRepoStub(), cfg)
	defer m.Close()
	defer close(hang)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return !m.State().IsLoading }, "safety timer clears loading")
}

func TestManager_CloseDiscardsInFlightAndUnsubscribes(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.SetCurrent(sessionFor("u1", "ana@example.com"), nil)
	profiles := newProfileRepoStub()
	profiles.profiles["u1"] = completeProfile("u1")
	gate := make(chan struct{})
	profiles.gate = gate

	m := newTestManager(provider, profiles, newEntitlementRepoStub(), testManagerConfig())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return profiles.Calls() == 1 }, "resolution in flight")
	if provider.SubscriberCount() != 1 {
		t.Fatalf("expected one active subscription")
	}

	m.Close()
	close(gate)

	if provider.SubscriberCount() != 0 {
		t.Fatalf("close must unsubscribe from provider events")
	}
	if err := m.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if state := m.State(); state.User != nil {
		t.Fatalf("in flight result must not apply after close, got %+v", state)
	}
}

func TestManager_SubscribeDeliversTransitions(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.SetCurrent(sessionFor("u1", "ana@example.com"), nil)
	profiles := newProfileRepoStub()
	profiles.profiles["u1"] = completeProfile("u1")

	m := newTestManager(provider, profiles, newEntitlementRepoStub(), testManagerConfig())
	defer m.Close()

	states, cancel := m.Subscribe()
	defer cancel()

	first := <-states
	if !first.IsLoading {
		t.Fatalf("first observed state must be loading, got %+v", first)
	}

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	waitFor(t, func() bool {
		select {
		case state := <-states:
			return state.User != nil && !state.IsLoading
		default:
			return false
		}
	}, "settled state observed")
}
