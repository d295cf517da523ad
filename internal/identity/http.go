package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HTTPProvider habla con un backend de identidad estilo GoTrue sobre HTTP.
// Mantiene el par de tokens localmente y los renueva de forma perezosa cuando
// el access token expira.
type HTTPProvider struct {
	baseURL string
	anonKey string
	client  *http.Client
	logger  *zap.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time

	subMu       sync.Mutex
	subscribers map[int]func(Event)
	nextSubID   int
}

func NewHTTPProvider(baseURL, anonKey string, logger *zap.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL:     strings.TrimRight(baseURL, "/"),
		anonKey:     anonKey,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		subscribers: make(map[int]func(Event)),
	}
}

// SetSession instala un par de tokens (p.ej. tras un login externo) y emite
// SIGNED_IN a los suscriptores.
func (p *HTTPProvider) SetSession(accessToken, refreshToken string) error {
	id, expiresAt, err := ParseAccessToken(accessToken, "")
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.accessToken = accessToken
	p.refreshToken = refreshToken
	p.expiresAt = expiresAt
	p.mu.Unlock()

	p.emit(Event{Type: EventSignedIn, Session: &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		Identity:     id,
	}})
	return nil
}

func (p *HTTPProvider) CurrentSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	access := p.accessToken
	refresh := p.refreshToken
	expiresAt := p.expiresAt
	p.mu.Unlock()

	if access == "" {
		return nil, nil
	}

	// Margen de 30s para no entregar un token a punto de expirar.
	if !expiresAt.IsZero() && time.Until(expiresAt) < 30*time.Second {
		if refresh == "" {
			return nil, nil
		}
		return p.refreshSession(ctx, refresh)
	}

	id, _, err := ParseAccessToken(access, "")
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		Identity:     id,
	}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error_description,omitempty"`
}

func (p *HTTPProvider) refreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	url := p.baseURL + "/auth/v1/token?grant_type=refresh_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.anonKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh token request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		if p.logger != nil {
			p.logger.Warn("token refresh rejected",
				zap.Int("status", resp.StatusCode))
		}
		// Refresh token inválido: la sesión dejó de existir.
		p.clearTokens()
		p.emit(Event{Type: EventSignedOut})
		return nil, nil
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, err
	}

	id, expiresAt, err := ParseAccessToken(tr.AccessToken, "")
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.accessToken = tr.AccessToken
	p.refreshToken = tr.RefreshToken
	p.expiresAt = expiresAt
	p.mu.Unlock()

	session := &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expiresAt,
		Identity:     id,
	}
	p.emit(Event{Type: EventTokenRefreshed, Session: session})
	return session, nil
}

func (p *HTTPProvider) Subscribe(handler func(Event)) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("identity: nil event handler")
	}
	p.subMu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = handler
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		delete(p.subscribers, id)
		p.subMu.Unlock()
	}, nil
}

// SignOut invalida la sesión remota. El estado local se limpia siempre,
// falle o no la llamada al proveedor.
func (p *HTTPProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	access := p.accessToken
	p.mu.Unlock()

	p.clearTokens()
	defer p.emit(Event{Type: EventSignedOut})

	if access == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("logout rejected: status=%d", resp.StatusCode)
	}
	return nil
}

func (p *HTTPProvider) clearTokens() {
	p.mu.Lock()
	p.accessToken = ""
	p.refreshToken = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}

func (p *HTTPProvider) emit(ev Event) {
	p.subMu.Lock()
	handlers := make([]func(Event), 0, len(p.subscribers))
	for _, h := range p.subscribers {
		handlers = append(handlers, h)
	}
	p.subMu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
