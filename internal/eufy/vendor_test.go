package eufy

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// fakeVendor is an in-process stand-in for the vendor cloud. It performs the
// server side of the key agreement, so logins and encrypted responses are
// exercised end to end.
type fakeVendor struct {
	t   *testing.T
	srv *httptest.Server

	serverKey *ecdh.PrivateKey

	mu sync.Mutex

	// domainBody, when set, replaces the domain lookup response.
	domainBody string
	domainCode int

	// rotateKey, when set, is advertised as server_secret_info.public_key and
	// used for every post-login response.
	rotateKey *ecdh.PrivateKey

	// captchaRounds is the number of login attempts answered with a challenge.
	captchaRounds int
	captchaItem   string
	loginCode     int
	loginMsg      string
	plainLogin    bool

	token       string
	devices     string
	params      map[string]string
	paramsCode  map[string]int
	listStatus  int
	listBody    string
	corruptList bool

	loginRequests []loginRequest
	loginHeaders  []http.Header
	passwords     []string
	listCalls     int
	paramCalls    int
	sessionSecret []byte
}

func newFakeVendor(t *testing.T) *fakeVendor {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	v := &fakeVendor{
		t:           t,
		serverKey:   key,
		token:       "tok-1",
		devices:     `[]`,
		params:      map[string]string{},
		paramsCode:  map[string]int{},
		captchaItem: "data:image/png;base64,iVBORw0KGgo=",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /domain/{country}", v.handleDomain)
	mux.HandleFunc("POST /v2/passport/login_sec", v.handleLogin)
	mux.HandleFunc("POST /v2/house/device_list", v.handleDeviceList)
	mux.HandleFunc("POST /v1/app/get_devs_params", v.handleParams)

	v.srv = httptest.NewTLSServer(mux)
	t.Cleanup(v.srv.Close)
	return v
}

func (v *fakeVendor) publicHex() string {
	return hex.EncodeToString(v.serverKey.PublicKey().Bytes())
}

// origin is what ResolveDomain returns for this server.
func (v *fakeVendor) origin() string {
	u, err := url.Parse(v.srv.URL)
	if err != nil {
		v.t.Fatalf("url.Parse() error = %v", err)
	}
	return "https://" + u.Host
}

func (v *fakeVendor) client() *Client {
	return NewClient(ClientConfig{
		Country:    "us",
		DomainBase: v.srv.URL,
		HTTPClient: v.srv.Client(),
	})
}

func (v *fakeVendor) sessionManager(c *Client) *SessionManager {
	return NewSessionManager(c, SessionConfig{
		Email:           "user@example.com",
		Password:        "hunter2",
		ServerPublicKey: v.publicHex(),
	})
}

func (v *fakeVendor) logins() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.loginRequests)
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg, "data": data})
}

func (v *fakeVendor) encrypt(data any, secret []byte) string {
	raw, err := json.Marshal(data)
	if err != nil {
		v.t.Errorf("json.Marshal() error = %v", err)
		return ""
	}
	ct, err := Encrypt(raw, secret)
	if err != nil {
		v.t.Errorf("Encrypt() error = %v", err)
	}
	return ct
}

func (v *fakeVendor) handleDomain(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.domainBody != "" {
		_, _ = w.Write([]byte(v.domainBody))
		return
	}
	u, _ := url.Parse(v.srv.URL)
	writeEnvelope(w, v.domainCode, "ok", map[string]string{"domain": u.Host})
}

func (v *fakeVendor) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		v.t.Errorf("login body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.loginRequests = append(v.loginRequests, req)
	v.loginHeaders = append(v.loginHeaders, r.Header.Clone())

	secret, err := DeriveSharedSecret(v.serverKey, req.ClientSecretInfo.PublicKey)
	if err != nil {
		v.t.Errorf("server DeriveSharedSecret() error = %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	password, err := Decrypt(req.Password, secret)
	if err != nil {
		v.t.Errorf("server Decrypt(password) error = %v", err)
	}
	v.passwords = append(v.passwords, string(password))

	if len(v.loginRequests) <= v.captchaRounds {
		challenge := map[string]string{"captcha_id": "cap-1", "item": v.captchaItem}
		writeEnvelope(w, 100032, "need captcha", v.encrypt(challenge, secret))
		return
	}

	if v.loginCode != 0 {
		writeEnvelope(w, v.loginCode, v.loginMsg, nil)
		return
	}

	payload := map[string]any{
		"auth_token": v.token,
		"nick_name":  "Jo",
		"email":      req.Email,
	}
	v.sessionSecret = secret
	if v.rotateKey != nil {
		payload["server_secret_info"] = map[string]string{
			"public_key": hex.EncodeToString(v.rotateKey.PublicKey().Bytes()),
		}
		v.sessionSecret, err = DeriveSharedSecret(v.rotateKey, req.ClientSecretInfo.PublicKey)
		if err != nil {
			v.t.Errorf("rotate DeriveSharedSecret() error = %v", err)
		}
	}

	if v.plainLogin {
		writeEnvelope(w, 0, "ok", payload)
		return
	}
	writeEnvelope(w, 0, "ok", v.encrypt(payload, secret))
}

func (v *fakeVendor) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-Auth-Token") != v.token {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (v *fakeVendor) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.listCalls++
	if v.listStatus != 0 {
		w.WriteHeader(v.listStatus)
		return
	}
	if !v.authorized(w, r) {
		return
	}
	if v.listBody != "" {
		_, _ = w.Write([]byte(v.listBody))
		return
	}
	if v.corruptList {
		writeEnvelope(w, 0, "ok", "AAAAAAAAAAAAAAAAAAAAAA==")
		return
	}

	var devices []json.RawMessage
	if err := json.Unmarshal([]byte(v.devices), &devices); err != nil {
		v.t.Errorf("devices fixture: %v", err)
	}
	writeEnvelope(w, 0, "ok", v.encrypt(devices, v.sessionSecret))
}

func (v *fakeVendor) handleParams(w http.ResponseWriter, r *http.Request) {
	var req deviceParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		v.t.Errorf("params body: %v", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.paramCalls++
	if !v.authorized(w, r) {
		return
	}
	if code := v.paramsCode[req.DeviceSN]; code != 0 {
		writeEnvelope(w, code, "device offline", nil)
		return
	}

	body, ok := v.params[req.DeviceSN]
	if !ok {
		writeEnvelope(w, 0, "ok", []any{})
		return
	}
	writeEnvelope(w, 0, "ok", v.encrypt(json.RawMessage(body), v.sessionSecret))
}

// fixedSolver answers every challenge with the same text.
type fixedSolver struct {
	answer string
	mu     sync.Mutex
	seen   []Challenge
}

func (s *fixedSolver) Solve(_ context.Context, ch Challenge) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, ch)
	return s.answer, s.answer != ""
}
