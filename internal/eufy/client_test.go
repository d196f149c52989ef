package eufy

import (
	"errors"
	"net/http"
	"testing"
)

// =============================================================================
// Domain Resolution Tests
// =============================================================================

func TestResolveDomain(t *testing.T) {
	v := newFakeVendor(t)

	origin, err := v.client().ResolveDomain(t.Context())
	if err != nil {
		t.Fatalf("ResolveDomain() error = %v", err)
	}
	if origin != v.origin() {
		t.Errorf("ResolveDomain() = %q, want %q", origin, v.origin())
	}
}

func TestResolveDomainFailures(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		wantErr error
	}{
		{name: "non-zero code", code: 999, wantErr: ErrProtocol},
		{name: "empty domain", body: `{"code":0,"msg":"ok","data":{"domain":""}}`, wantErr: ErrProtocol},
		{name: "not json", body: `<html>`, wantErr: ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newFakeVendor(t)
			v.domainCode = tt.code
			v.domainBody = tt.body

			_, err := v.client().ResolveDomain(t.Context())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveDomain() error = %v, want %v", err, tt.wantErr)
			}
			if ResetsSession(err) {
				t.Error("domain failure classified as session-resetting")
			}
		})
	}
}

func TestResolveDomainNetworkError(t *testing.T) {
	v := newFakeVendor(t)
	c := v.client()
	v.srv.Close()

	_, err := c.ResolveDomain(t.Context())
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("ResolveDomain() error = %v, want ErrNetwork", err)
	}
}

func TestClientCountryDefaults(t *testing.T) {
	if got := NewClient(ClientConfig{Country: " de "}).Country(); got != "DE" {
		t.Errorf("Country() = %q, want DE", got)
	}
	if got := NewClient(ClientConfig{}).Country(); got != "US" {
		t.Errorf("Country() = %q, want US", got)
	}
}

// =============================================================================
// Authenticated Call Tests
// =============================================================================

func loggedIn(t *testing.T, v *fakeVendor) (*Client, *Session) {
	t.Helper()
	c := v.client()
	sess, err := v.sessionManager(c).Session(t.Context(), v.origin())
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	return c, sess
}

func TestListDevices(t *testing.T) {
	v := newFakeVendor(t)
	v.devices = `[
		{"device_sn":"SN1","device_name":"Porch","device_model":"T8200","station_sn":"ST1",
		 "params":[{"param_type":1101,"param_value":"87"}]},
		{"device_sn":"SN2","device_name":"Yard","device_model":"T8424"}
	]`
	c, sess := loggedIn(t, v)

	devices, err := c.ListDevices(t.Context(), sess)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}
	if devices[0].StationSerial != "ST1" || len(devices[0].Params) != 1 {
		t.Errorf("devices[0] = %+v", devices[0])
	}
}

func TestFetchDeviceParams(t *testing.T) {
	v := newFakeVendor(t)
	v.params["SN1"] = `[{"param_type":1101,"param_value":"90"}]`
	v.params["SN2"] = `{"params":[{"param_type":1142,"param_value":-55}]}`
	c, sess := loggedIn(t, v)

	params, err := c.FetchDeviceParams(t.Context(), sess, Device{SerialNumber: "SN1"})
	if err != nil {
		t.Fatalf("FetchDeviceParams(SN1) error = %v", err)
	}
	if len(params) != 1 || params[0].Code != 1101 {
		t.Errorf("SN1 params = %+v", params)
	}

	params, err = c.FetchDeviceParams(t.Context(), sess, Device{SerialNumber: "SN2"})
	if err != nil {
		t.Fatalf("FetchDeviceParams(SN2) error = %v", err)
	}
	if len(params) != 1 || params[0].Code != 1142 {
		t.Errorf("SN2 params = %+v", params)
	}

	params, err = c.FetchDeviceParams(t.Context(), sess, Device{SerialNumber: "SN3"})
	if err != nil {
		t.Fatalf("FetchDeviceParams(SN3) error = %v", err)
	}
	if len(params) != 0 {
		t.Errorf("SN3 params = %+v, want none", params)
	}
}

func TestCallErrors(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(v *fakeVendor)
		badToken  bool
		wantErr   error
		wantReset bool
	}{
		{
			name:      "http 401",
			badToken:  true,
			wantErr:   ErrAPI,
			wantReset: true,
		},
		{
			name:      "http 403",
			setup:     func(v *fakeVendor) { v.listStatus = http.StatusForbidden },
			wantErr:   ErrAPI,
			wantReset: true,
		},
		{
			name:      "token expired code",
			setup:     func(v *fakeVendor) { v.listBody = `{"code":26006,"msg":"token expired"}` },
			wantErr:   ErrAPI,
			wantReset: true,
		},
		{
			name:      "other api code",
			setup:     func(v *fakeVendor) { v.listBody = `{"code":500,"msg":"busy"}` },
			wantErr:   ErrAPI,
			wantReset: false,
		},
		{
			name:      "http 502",
			setup:     func(v *fakeVendor) { v.listStatus = http.StatusBadGateway },
			wantErr:   ErrNetwork,
			wantReset: false,
		},
		{
			name:      "malformed envelope",
			setup:     func(v *fakeVendor) { v.listBody = `<html>oops</html>` },
			wantErr:   ErrProtocol,
			wantReset: true,
		},
		{
			name:      "undecryptable data",
			setup:     func(v *fakeVendor) { v.corruptList = true },
			wantErr:   ErrDecrypt,
			wantReset: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newFakeVendor(t)
			c, sess := loggedIn(t, v)
			if tt.setup != nil {
				v.mu.Lock()
				tt.setup(v)
				v.mu.Unlock()
			}
			if tt.badToken {
				copied := *sess
				copied.AuthToken = "stale"
				sess = &copied
			}

			_, err := c.ListDevices(t.Context(), sess)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ListDevices() error = %v, want %v", err, tt.wantErr)
			}
			if got := ResetsSession(err); got != tt.wantReset {
				t.Errorf("ResetsSession(%v) = %v, want %v", err, got, tt.wantReset)
			}
		})
	}
}

func TestCallWithoutSession(t *testing.T) {
	c := NewClient(ClientConfig{})
	err := c.Call(t.Context(), nil, endpointDeviceList, nil, nil)
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Call(nil session) error = %v, want ErrProtocol", err)
	}
}
