package eufy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSessionTTL is how long a login is reused before a fresh one.
	DefaultSessionTTL = time.Hour

	// DefaultCaptchaTimeout bounds a single CAPTCHA solve.
	DefaultCaptchaTimeout = 120 * time.Second
)

// State is the login state of a SessionManager.
type State int

// Login states.
const (
	StateUnauthenticated State = iota
	StateAwaitingCaptcha
	StateAuthenticated
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingCaptcha:
		return "awaiting_captcha"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Session is an authenticated vendor session.
//
// A Session is either fully valid (token, secret of at least 32 bytes,
// younger than the TTL) or must not be used. Sessions are never mutated
// after creation; a rebuild replaces the value.
type Session struct {
	Origin    string
	AuthToken string
	Secret    []byte
	CreatedAt time.Time

	// Account display fields, for logs only.
	Nickname string
	Email    string
}

func (s *Session) usable() bool {
	return s.AuthToken != "" && len(s.Secret) >= cipherKeyLen && s.Origin != ""
}

// SessionConfig holds the login settings.
type SessionConfig struct {
	Email    string
	Password string

	// TTL is the session lifetime. Zero means DefaultSessionTTL.
	TTL time.Duration

	// CaptchaTimeout bounds each solve. Zero means DefaultCaptchaTimeout.
	CaptchaTimeout time.Duration

	// ServerPublicKey overrides ServerPublicKey, for test servers.
	ServerPublicKey string

	// Location supplies the time_zone offset. Nil means time.Local.
	Location *time.Location
}

// Snapshot is a point-in-time view of a SessionManager for status reporting.
// It never carries the token or the secret.
type Snapshot struct {
	State         string     `json:"state"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorKind string     `json:"last_error_kind,omitempty"`
	Logins        int        `json:"logins"`
}

// ResetFunc is called after a cached session is discarded.
type ResetFunc func(reason string)

// SessionManager owns the login state machine and the cached Session.
//
// Login flow:
//
//	Unauthenticated ──login ok──────────────────────► Authenticated
//	       │                                                ▲
//	       └─captcha code─► AwaitingCaptcha ──retry ok──────┘
//	       │                       │
//	       └──────rejected─────────┴──unsolved/rejected──► Failed
//
// Thread Safety:
//   - A mutex guards the cached session and state.
//   - Concurrent rebuilds are coalesced so overlapping callers share one login.
type SessionManager struct {
	client *Client
	cfg    SessionConfig
	solver Solver
	logger Logger
	now    func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	session *Session
	state   State
	lastErr error
	logins  int
	onReset ResetFunc
}

// NewSessionManager creates a SessionManager that logs in through client.
// Without SetSolver, CAPTCHA challenges fail the login.
func NewSessionManager(client *Client, cfg SessionConfig) *SessionManager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.CaptchaTimeout <= 0 {
		cfg.CaptchaTimeout = DefaultCaptchaTimeout
	}
	if cfg.ServerPublicKey == "" {
		cfg.ServerPublicKey = ServerPublicKey
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &SessionManager{
		client: client,
		cfg:    cfg,
		solver: NoopSolver{},
		logger: noopLogger{},
		now:    time.Now,
		state:  StateUnauthenticated,
	}
}

// SetSolver sets the CAPTCHA solver.
func (m *SessionManager) SetSolver(solver Solver) {
	if solver == nil {
		solver = NoopSolver{}
	}
	m.solver = solver
}

// SetLogger sets the logger for the manager.
func (m *SessionManager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// SetOnReset registers a callback invoked whenever a session is discarded.
func (m *SessionManager) SetOnReset(fn ResetFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReset = fn
}

// Session returns a valid session for origin, logging in when there is no
// cached session, it has expired, or it belongs to a different origin.
func (m *SessionManager) Session(ctx context.Context, origin string) (*Session, error) {
	if sess := m.cached(origin); sess != nil {
		return sess, nil
	}

	v, err, _ := m.group.Do(origin, func() (any, error) {
		// A caller that waited on the previous flight may already be served.
		if sess := m.cached(origin); sess != nil {
			return sess, nil
		}
		return m.login(ctx, origin)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// cached returns the cached session if it is usable for origin, tearing it
// down when it has expired or the origin changed.
func (m *SessionManager) cached(origin string) *Session {
	m.mu.Lock()
	sess := m.session
	if sess == nil {
		m.mu.Unlock()
		return nil
	}
	if sess.Origin == origin && m.now().Sub(sess.CreatedAt) < m.cfg.TTL {
		m.mu.Unlock()
		return sess
	}

	reason := "session expired"
	if sess.Origin != origin {
		reason = "api origin changed"
	}
	hook := m.teardownLocked()
	m.mu.Unlock()

	m.afterTeardown(hook, reason)
	return nil
}

// Invalidate discards the cached session so the next Session call performs
// a cold login.
func (m *SessionManager) Invalidate(reason string) {
	m.mu.Lock()
	hook := m.teardownLocked()
	m.mu.Unlock()

	m.afterTeardown(hook, reason)
}

func (m *SessionManager) teardownLocked() ResetFunc {
	m.session = nil
	m.state = StateUnauthenticated
	return m.onReset
}

func (m *SessionManager) afterTeardown(hook ResetFunc, reason string) {
	m.client.CloseIdleConnections()
	m.logger.Info("eufy session reset", "reason", reason)
	if hook != nil {
		hook(reason)
	}
}

// State returns the current login state.
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns the current state for status reporting.
func (m *SessionManager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:  m.state.String(),
		Logins: m.logins,
	}
	if m.session != nil {
		created := m.session.CreatedAt
		expires := created.Add(m.cfg.TTL)
		snap.CreatedAt = &created
		snap.ExpiresAt = &expires
	}
	if m.lastErr != nil {
		snap.LastError = m.lastErr.Error()
		snap.LastErrorKind = Kind(m.lastErr)
	}
	return snap
}

func (m *SessionManager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *SessionManager) fail(err error) error {
	m.mu.Lock()
	m.state = StateFailed
	m.lastErr = err
	m.mu.Unlock()

	m.logger.Warn("eufy login failed", "error", err, "kind", Kind(err))
	return err
}

type clientSecretInfo struct {
	PublicKey string `json:"public_key"`
}

type loginRequest struct {
	Country          string           `json:"ab"`
	ClientSecretInfo clientSecretInfo `json:"client_secret_info"`
	Enc              int              `json:"enc"`
	Email            string           `json:"email"`
	Password         string           `json:"password"`
	TimeZone         int64            `json:"time_zone"`
	Transaction      string           `json:"transaction"`
	CaptchaID        string           `json:"captcha_id,omitempty"`
	Answer           string           `json:"answer,omitempty"`
}

type loginPayload struct {
	AuthToken        string            `json:"auth_token"`
	Nickname         string            `json:"nick_name"`
	Email            string            `json:"email"`
	ServerSecretInfo *clientSecretInfo `json:"server_secret_info"`
}

type captchaPayload struct {
	CaptchaID string `json:"captcha_id"`
	Item      string `json:"item"`
}

// login runs the state machine once from Unauthenticated.
func (m *SessionManager) login(ctx context.Context, origin string) (*Session, error) {
	m.setState(StateUnauthenticated)

	keys, err := GenerateKeyPair()
	if err != nil {
		return nil, m.fail(fmt.Errorf("%w: %w", ErrInvalidPeerKey, err))
	}
	secret, err := keys.DeriveSharedSecret(m.cfg.ServerPublicKey)
	if err != nil {
		return nil, m.fail(err)
	}
	password, err := Encrypt([]byte(m.cfg.Password), secret)
	if err != nil {
		return nil, m.fail(err)
	}

	now := m.now()
	req := loginRequest{
		Country:          m.client.Country(),
		ClientSecretInfo: clientSecretInfo{PublicKey: keys.PublicHex()},
		Enc:              0,
		Email:            m.cfg.Email,
		Password:         password,
		TimeZone:         timeZoneMillis(now, m.cfg.Location),
		Transaction:      strconv.FormatInt(now.UnixMilli(), 10),
	}

	env, data, err := m.postLogin(ctx, origin, req)
	if err != nil {
		return nil, m.fail(err)
	}

	if captchaCodes[env.Code] {
		m.setState(StateAwaitingCaptcha)
		m.logger.Info("eufy login requires captcha", "code", env.Code)

		id, answer, err := m.solveChallenge(ctx, data, secret)
		if err != nil {
			return nil, m.fail(err)
		}

		req.CaptchaID = id
		req.Answer = answer
		env, data, err = m.postLogin(ctx, origin, req)
		if err != nil {
			return nil, m.fail(err)
		}
	}

	if env.Code != 0 {
		return nil, m.fail(&AuthError{Code: env.Code, Msg: env.Msg})
	}

	var payload loginPayload
	if err := data.Decode(secret, &payload); err != nil {
		return nil, m.fail(err)
	}
	if payload.AuthToken == "" {
		return nil, m.fail(fmt.Errorf("%w: login response has no auth_token", ErrProtocol))
	}

	if payload.ServerSecretInfo != nil && payload.ServerSecretInfo.PublicKey != "" {
		secret, err = keys.DeriveSharedSecret(payload.ServerSecretInfo.PublicKey)
		if err != nil {
			return nil, m.fail(err)
		}
	}

	sess := &Session{
		Origin:    origin,
		AuthToken: payload.AuthToken,
		Secret:    secret,
		CreatedAt: m.now(),
		Nickname:  payload.Nickname,
		Email:     payload.Email,
	}

	m.mu.Lock()
	m.session = sess
	m.state = StateAuthenticated
	m.lastErr = nil
	m.logins++
	m.mu.Unlock()

	name := payload.Nickname
	if name == "" {
		name = payload.Email
	}
	m.logger.Info("eufy logged in", "account", name, "origin", origin)
	return sess, nil
}

func (m *SessionManager) postLogin(ctx context.Context, origin string, req loginRequest) (envelope, ResponseData, error) {
	status, body, err := m.client.post(ctx, origin+"/"+endpointLogin, "", req)
	if err != nil {
		return envelope{}, ResponseData{}, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return envelope{}, ResponseData{}, fmt.Errorf("%w: login returned HTTP %d", ErrNetwork, status)
	}
	return parseEnvelope(body)
}

// solveChallenge decodes the challenge and asks the solver for an answer.
// Anything short of a non-empty answer is an unsolved AuthError.
func (m *SessionManager) solveChallenge(ctx context.Context, data ResponseData, secret []byte) (id, answer string, err error) {
	var payload captchaPayload
	if err := data.Decode(secret, &payload); err != nil {
		if errors.Is(err, ErrDecrypt) {
			return "", "", err
		}
		return "", "", &AuthError{Msg: errCaptchaUnsolved}
	}

	ch, err := ParseChallenge(payload.CaptchaID, payload.Item)
	if err != nil {
		m.logger.Warn("eufy captcha payload unusable", "captcha_id", payload.CaptchaID, "error", err)
		return "", "", &AuthError{Msg: errCaptchaUnsolved}
	}

	solveCtx, cancel := context.WithTimeout(ctx, m.cfg.CaptchaTimeout)
	defer cancel()

	answer, ok := m.solver.Solve(solveCtx, ch)
	answer = strings.TrimSpace(answer)
	if !ok || answer == "" {
		return "", "", &AuthError{Msg: errCaptchaUnsolved}
	}

	m.logger.Info("eufy captcha solved", "captcha_id", ch.ID)
	return ch.ID, answer, nil
}

// timeZoneMillis returns the vendor's time_zone value: the UTC offset in
// milliseconds, positive west of UTC.
func timeZoneMillis(t time.Time, loc *time.Location) int64 {
	_, offset := t.In(loc).Zone()
	return -int64(offset) * 1000
}
