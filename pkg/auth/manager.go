// Package auth owns the credential lifecycle: acquisition through silent or
// interactive flows, single-flight coordination of concurrent callers,
// silent renewal scheduling, snapshot persistence, and sign-out. One
// Manager is constructed at session start and passed to every component
// that needs authentication; there is no package-level singleton.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/Beej126/gMaelstrom-sub000/internal/logging"
)

const (
	// expiryMargin is the safety window: a credential this close to expiry
	// is treated as already expired.
	expiryMargin = 5 * time.Second

	// renewBefore is how long before expiry the silent renewal fires.
	renewBefore = 10 * time.Second

	userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
	revokeEndpoint   = "https://oauth2.googleapis.com/revoke"
)

// Credential is the bearer credential plus the identity profile merged in
// after acquisition. Failed marks the terminal failure state; a failed
// credential carries no token and is never persisted.
type Credential struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	GivenName   string    `json:"given_name"`
	FamilyName  string    `json:"family_name"`
	AvatarURL   string    `json:"avatar_url"`
	Failed      bool      `json:"-"`
}

// Valid reports whether the credential can be used as-is, applying the
// expiry safety margin.
func (c *Credential) Valid() bool {
	return c != nil && !c.Failed && c.AccessToken != "" &&
		time.Until(c.Expiry) > expiryMargin
}

// SessionStore persists the credential snapshot across reloads. A snapshot
// is only ever written for a non-failed credential, so a fresh session
// always retries acquisition instead of resurrecting a stale failure.
type SessionStore interface {
	SaveCredentialSnapshot(ctx context.Context, snapshot []byte) error
	LoadCredentialSnapshot(ctx context.Context) ([]byte, bool, error)
	ClearSession(ctx context.Context) error
}

// ConsentFunc performs the interactive consent flow.
type ConsentFunc func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)

// Config configures a Manager.
type Config struct {
	OAuth  *oauth2.Config
	Store  SessionStore
	Logger logging.Logger

	// Consent overrides the interactive flow; nil uses InteractiveConsent.
	Consent ConsentFunc
	// HTTPClient is used for the userinfo and revoke endpoints.
	HTTPClient *http.Client

	// Endpoint overrides for tests.
	UserinfoURL string
	RevokeURL   string
}

// snapshot is the persisted session state: the derived credential and the
// underlying token whose refresh token enables the next silent attempt.
type snapshot struct {
	Credential *Credential   `json:"credential"`
	Token      *oauth2.Token `json:"token"`
}

// acquisition is the single-flight handle shared by concurrent callers.
type acquisition struct {
	done chan struct{}
	cred *Credential
	err  error
}

// Manager acquires, caches, and silently renews the session credential.
type Manager struct {
	config      *oauth2.Config
	store       SessionStore
	logger      logging.Logger
	consent     ConsentFunc
	httpClient  *http.Client
	userinfoURL string
	revokeURL   string

	mu         sync.Mutex
	cred       *Credential
	token      *oauth2.Token
	inflight   *acquisition
	renewTimer *time.Timer
}

// NewManager creates a credential manager. It does not perform any network
// access; acquisition happens on the first GetCredential call.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		config:      cfg.OAuth,
		store:       cfg.Store,
		logger:      cfg.Logger,
		consent:     cfg.Consent,
		httpClient:  cfg.HTTPClient,
		userinfoURL: cfg.UserinfoURL,
		revokeURL:   cfg.RevokeURL,
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}
	if m.consent == nil {
		m.consent = InteractiveConsent
	}
	if m.httpClient == nil {
		m.httpClient = http.DefaultClient
	}
	if m.userinfoURL == "" {
		m.userinfoURL = userinfoEndpoint
	}
	if m.revokeURL == "" {
		m.revokeURL = revokeEndpoint
	}
	return m
}

// GetCredential returns the cached credential when it is present, not
// expired, and forceRefresh is false; otherwise it performs acquisition.
// Acquisition is single-flight: every caller arriving while one is in
// flight awaits the same outcome. A returned error is the failure signal;
// a successful return is guaranteed valid.
func (m *Manager) GetCredential(ctx context.Context, forceRefresh bool) (*Credential, error) {
	m.mu.Lock()
	if !forceRefresh && m.cred.Valid() {
		cred := *m.cred
		m.mu.Unlock()
		return &cred, nil
	}
	if m.inflight != nil {
		a := m.inflight
		m.mu.Unlock()
		select {
		case <-a.done:
			return a.cred, a.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a := &acquisition{done: make(chan struct{})}
	m.inflight = a
	m.mu.Unlock()

	cred, err := m.acquire(ctx)

	m.mu.Lock()
	// Clear the in-flight handle regardless of outcome so a new attempt
	// can start afterward.
	m.inflight = nil
	if err != nil {
		m.cred = &Credential{Failed: true}
	} else {
		c := *cred
		m.cred = &c
	}
	m.mu.Unlock()

	a.cred, a.err = cred, err
	close(a.done)
	return cred, err
}

// AccessToken returns a bearer token, acquiring or refreshing as needed.
// It satisfies the transport layer's TokenProvider.
func (m *Manager) AccessToken(ctx context.Context, forceRefresh bool) (string, error) {
	cred, err := m.GetCredential(ctx, forceRefresh)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// TokenSource adapts the manager to oauth2.TokenSource so generated API
// clients pull their tokens through the same lifecycle.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	cred, err := ts.m.GetCredential(ts.ctx, false)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: cred.AccessToken, Expiry: cred.Expiry}, nil
}

// Current returns the current credential without triggering acquisition.
// After a failed acquisition this is the terminal failure credential.
func (m *Manager) Current() *Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil
	}
	cred := *m.cred
	return &cred
}

// SignOut cancels the renewal timer, clears in-memory and persisted state,
// and revokes the token so a later sign-in cannot silently reuse the old
// session without user interaction.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	if m.renewTimer != nil {
		m.renewTimer.Stop()
		m.renewTimer = nil
	}
	token := m.token
	m.cred = nil
	m.token = nil
	m.mu.Unlock()

	if token != nil {
		if err := m.revokeToken(ctx, token); err != nil {
			m.logger.Warn("token revocation failed", "error", err)
		}
	}
	if m.store != nil {
		if err := m.store.ClearSession(ctx); err != nil {
			return fmt.Errorf("clear session store: %w", err)
		}
	}
	return nil
}

// acquire runs the acquisition sequence: silent attempt when a prior
// session exists, interactive consent otherwise, then the identity profile
// fetch, persistence, and renewal scheduling.
func (m *Manager) acquire(ctx context.Context) (*Credential, error) {
	token, err := m.silentToken(ctx)
	if err != nil {
		m.logger.Debug("silent token attempt failed, falling back to consent", "error", err)
		token, err = m.consent(ctx, m.config)
		if err != nil {
			return nil, fmt.Errorf("consent flow failed: %w", err)
		}
	}

	info, err := m.fetchUserinfo(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("userinfo fetch failed: %w", err)
	}

	cred := &Credential{
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
		Email:       info.Email,
		DisplayName: info.Name,
		GivenName:   info.GivenName,
		FamilyName:  info.FamilyName,
		AvatarURL:   info.Picture,
	}

	if err := m.persist(ctx, cred, token); err != nil {
		return nil, fmt.Errorf("persist credential snapshot: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.scheduleRenewalLocked(token.Expiry)
	m.mu.Unlock()

	return cred, nil
}

// silentToken refreshes from the persisted session without user
// interaction. It fails when no prior session exists, which routes the
// caller to the interactive flow.
func (m *Manager) silentToken(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	saved := m.token
	m.mu.Unlock()

	if saved == nil && m.store != nil {
		raw, ok, err := m.store.LoadCredentialSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("load credential snapshot: %w", err)
		}
		if ok {
			var snap snapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				return nil, fmt.Errorf("decode credential snapshot: %w", err)
			}
			saved = snap.Token
		}
	}
	if saved == nil || saved.RefreshToken == "" {
		return nil, fmt.Errorf("no prior session")
	}

	// Drop the access token so the source performs a real refresh grant
	// instead of handing back the expired token.
	stale := *saved
	stale.AccessToken = ""
	token, err := m.config.TokenSource(ctx, &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("silent refresh failed: %w", err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = saved.RefreshToken
	}
	return token, nil
}

type userinfoResponse struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

func (m *Manager) fetchUserinfo(ctx context.Context, accessToken string) (*userinfoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %s", resp.Status)
	}
	var info userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &info, nil
}

// persist writes the snapshot for the next session's silent attempt.
// Failed credentials never reach this path.
func (m *Manager) persist(ctx context.Context, cred *Credential, token *oauth2.Token) error {
	if m.store == nil {
		return nil
	}
	raw, err := json.Marshal(snapshot{Credential: cred, Token: token})
	if err != nil {
		return err
	}
	return m.store.SaveCredentialSnapshot(ctx, raw)
}

// scheduleRenewalLocked (re)arms the silent renewal timer to fire shortly
// before expiry. Callers hold m.mu.
func (m *Manager) scheduleRenewalLocked(expiry time.Time) {
	if m.renewTimer != nil {
		m.renewTimer.Stop()
	}
	if expiry.IsZero() {
		return
	}
	d := time.Until(expiry) - renewBefore
	if d <= 0 {
		// Shorter-lived than the renewal lead time; the next GetCredential
		// refreshes on demand instead of hot-looping the renewal timer.
		return
	}
	m.renewTimer = time.AfterFunc(d, m.silentRenew)
}

func (m *Manager) silentRenew() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := m.GetCredential(ctx, true); err != nil {
		m.logger.Warn("silent renewal failed", "error", err)
	}
}

func (m *Manager) revokeToken(ctx context.Context, token *oauth2.Token) error {
	revoke := token.RefreshToken
	if revoke == "" {
		revoke = token.AccessToken
	}
	form := url.Values{"token": {revoke}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("revoke endpoint returned %s", resp.Status)
	}
	return nil
}
