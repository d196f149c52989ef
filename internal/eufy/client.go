package eufy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultDomainBase resolves the regional API origin for a country.
	DefaultDomainBase = "https://extend.eufylife.com"

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps response bodies read from the vendor.
	maxResponseBytes = 8 << 20

	endpointLogin      = "v2/passport/login_sec"
	endpointDeviceList = "v2/house/device_list"
	endpointParams     = "v1/app/get_devs_params"

	deviceListPageSize = 100
	defaultCountry     = "US"
)

// baseHeaders identify the client as the vendor's Android app. The backend
// rejects requests without them.
var baseHeaders = map[string]string{
	"App_version":   "v4.6.0_1630",
	"Os_type":       "android",
	"Os_version":    "31",
	"Phone_model":   "ONEPLUS A3003",
	"Language":      "en",
	"Openudid":      "5e4621b0152c0d00",
	"Net_type":      "wifi",
	"Mnc":           "02",
	"Mcc":           "262",
	"Sn":            "75814221ee75",
	"Model_type":    "PHONE",
	"Timezone":      "GMT+01:00",
	"Cache-Control": "no-cache",
}

// ClientConfig holds the settings for the vendor HTTP client.
type ClientConfig struct {
	// Country is the ISO 3166 alpha-2 account region. Upper-cased on use.
	Country string

	// DomainBase overrides DefaultDomainBase.
	DomainBase string

	// Timeout bounds each HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient replaces the default client, for custom transports.
	HTTPClient *http.Client
}

// Client talks to the Eufy Security cloud API.
//
// Client holds no session state; authenticated calls take a *Session
// obtained from a SessionManager.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	http       *http.Client
	domainBase string
	country    string
	logger     Logger
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}

	base := strings.TrimRight(cfg.DomainBase, "/")
	if base == "" {
		base = DefaultDomainBase
	}

	country := strings.ToUpper(strings.TrimSpace(cfg.Country))
	if country == "" {
		country = defaultCountry
	}

	return &Client{
		http:       httpClient,
		domainBase: base,
		country:    country,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Country returns the upper-cased account region.
func (c *Client) Country() string {
	return c.country
}

// CloseIdleConnections drops pooled connections, so the next request after
// a session teardown starts on a fresh connection.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

type domainPayload struct {
	Domain string `json:"domain"`
}

// ResolveDomain looks up the regional API origin for the configured country.
//
// Returns:
//   - string: origin such as "https://security-app-eu.eufylife.com"
//   - error: ErrNetwork on transport failure, ErrProtocol on a non-zero
//     code or an empty domain
func (c *Client) ResolveDomain(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/domain/%s", c.domainBase, c.country)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building domain request: %w", ErrNetwork, err)
	}
	c.setHeaders(req, "")

	status, body, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: domain lookup returned HTTP %d", ErrNetwork, status)
	}

	// Not an authenticated call: a bad body here is a plain protocol error.
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: domain response: %w", ErrProtocol, err)
	}
	data, err := classifyData(env.Data)
	if err != nil {
		return "", err
	}
	if env.Code != 0 {
		return "", fmt.Errorf("%w: domain resolution failed (code=%d): %s", ErrProtocol, env.Code, env.Msg)
	}

	var payload domainPayload
	if err := data.Decode(nil, &payload); err != nil {
		return "", fmt.Errorf("%w: domain resolution: %w", ErrProtocol, err)
	}
	domain := strings.TrimSpace(payload.Domain)
	if domain == "" {
		return "", fmt.Errorf("%w: domain resolution returned no domain", ErrProtocol)
	}

	origin := "https://" + domain
	c.logger.Debug("resolved api domain", "country", c.country, "origin", origin)
	return origin, nil
}

// Call performs an authenticated POST to endpoint and decodes the envelope's
// data into out (which may be nil).
//
// The request body is plain JSON; encrypted response data is decrypted with
// the session secret.
//
// Errors:
//   - ErrNetwork: transport failure or unexpected HTTP status
//   - *APIError: non-zero code, or HTTP 401/403 (TokenInvalid() == true)
//   - ErrMalformedEnvelope: body is not an envelope
//   - ErrDecrypt: encrypted data could not be decrypted
//   - ErrProtocol: data did not match out
func (c *Client) Call(ctx context.Context, sess *Session, endpoint string, body, out any) error {
	if sess == nil || !sess.usable() {
		return fmt.Errorf("%w: call %s without a valid session", ErrProtocol, endpoint)
	}

	status, respBody, err := c.post(ctx, sess.Origin+"/"+endpoint, sess.AuthToken, body)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &APIError{Endpoint: endpoint, Code: status, Msg: http.StatusText(status)}
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: %s returned HTTP %d", ErrNetwork, endpoint, status)
	}

	env, data, err := parseEnvelope(respBody)
	if err != nil {
		return err
	}
	if env.Code != 0 {
		return &APIError{Endpoint: endpoint, Code: env.Code, Msg: env.Msg}
	}
	return data.Decode(sess.Secret, out)
}

type deviceListRequest struct {
	DeviceSN  string `json:"device_sn"`
	Num       int    `json:"num"`
	OrderBy   string `json:"orderby"`
	Page      int    `json:"page"`
	StationSN string `json:"station_sn"`
}

// ListDevices returns the account's devices from the first listing page.
func (c *Client) ListDevices(ctx context.Context, sess *Session) ([]Device, error) {
	req := deviceListRequest{Num: deviceListPageSize, Page: 0}

	var devices []Device
	if err := c.Call(ctx, sess, endpointDeviceList, req, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

type deviceParamsRequest struct {
	DeviceSN  string `json:"device_sn"`
	StationSN string `json:"station_sn"`
	Params    []int  `json:"params"`
}

// FetchDeviceParams requests the current values of the known parameter codes
// for dev. The caller merges the result over the listing's params.
//
// The data may arrive as a bare param list or wrapped as {"params": [...]}.
func (c *Client) FetchDeviceParams(ctx context.Context, sess *Session, dev Device) ([]Param, error) {
	req := deviceParamsRequest{
		DeviceSN:  dev.SerialNumber,
		StationSN: dev.StationSerial,
		Params:    KnownParamCodes(),
	}

	var raw json.RawMessage
	if err := c.Call(ctx, sess, endpointParams, req, &raw); err != nil {
		return nil, err
	}
	return decodeParams(raw)
}

func decodeParams(raw json.RawMessage) ([]Param, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isNull(trimmed) {
		return nil, nil
	}

	if trimmed[0] != '[' {
		var wrapped struct {
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: params: %w", ErrProtocol, err)
		}
		trimmed = bytes.TrimSpace(wrapped.Params)
		if len(trimmed) == 0 || isNull(trimmed) {
			return nil, nil
		}
	}

	params, err := parseParamList(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: params: %w", ErrProtocol, err)
	}
	return params, nil
}

// post sends body as JSON and returns the status and body.
func (c *Client) post(ctx context.Context, url, token string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: encoding request: %w", ErrProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: building request: %w", ErrNetwork, err)
	}
	c.setHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading %s: %w", ErrNetwork, req.URL.Path, err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	for k, v := range baseHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Country", c.country)
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
}
