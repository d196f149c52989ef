package eufy

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  string
		wantReset bool
	}{
		{"nil", nil, "", false},
		{"network", fmt.Errorf("%w: dial tcp", ErrNetwork), "network", false},
		{"protocol", fmt.Errorf("%w: no domain", ErrProtocol), "protocol", false},
		{"malformed envelope", fmt.Errorf("%w: eof", ErrMalformedEnvelope), "protocol", true},
		{"decrypt", fmt.Errorf("%w: invalid padding", ErrDecrypt), "decrypt", true},
		{"invalid peer key", fmt.Errorf("%w: off curve", ErrInvalidPeerKey), "invalid_peer_key", true},
		{"auth", &AuthError{Code: 26050, Msg: "wrong password"}, "auth", true},
		{"captcha unsolved", &AuthError{Msg: errCaptchaUnsolved}, "auth", true},
		{"api token", &APIError{Endpoint: "x", Code: 401}, "api", true},
		{"api token code", &APIError{Endpoint: "x", Code: 26006}, "api", true},
		{"api other", &APIError{Endpoint: "x", Code: 500}, "api", false},
		{"wrapped api token", fmt.Errorf("listing: %w", &APIError{Code: 403}), "api", true},
		{"foreign", errors.New("boom"), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", got, tt.wantKind)
			}
			if got := ResetsSession(tt.err); got != tt.wantReset {
				t.Errorf("ResetsSession() = %v, want %v", got, tt.wantReset)
			}
		})
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	var err error = &AuthError{Code: 1, Msg: "x"}
	if !errors.Is(err, ErrAuth) || errors.Is(err, ErrAPI) {
		t.Errorf("AuthError class mismatch: %v", err)
	}

	err = &APIError{Endpoint: "v2/house/device_list", Code: 2, Msg: "y"}
	if !errors.Is(err, ErrAPI) || errors.Is(err, ErrAuth) {
		t.Errorf("APIError class mismatch: %v", err)
	}

	var apiErr *APIError
	if !errors.As(fmt.Errorf("wrap: %w", err), &apiErr) || apiErr.Endpoint != "v2/house/device_list" {
		t.Errorf("errors.As did not recover the APIError")
	}
}
