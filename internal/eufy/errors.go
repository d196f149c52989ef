package eufy

import (
	"errors"
	"fmt"
)

// Error classes for the Eufy cloud client.
//
// Every failure returned by this package wraps exactly one of these
// sentinels, so callers can branch with errors.Is():
//
//	if errors.Is(err, eufy.ErrNetwork) {
//	    // transient, try again next cycle
//	}
var (
	// ErrNetwork indicates a transport-level failure (dial, TLS, timeout,
	// unexpected HTTP status). No session state is changed.
	ErrNetwork = errors.New("eufy: network error")

	// ErrProtocol indicates a malformed envelope, an unexpected field type,
	// or a failed domain resolution.
	ErrProtocol = errors.New("eufy: protocol error")

	// ErrDecrypt indicates a ciphertext could not be decoded, decrypted,
	// or unpadded.
	ErrDecrypt = errors.New("eufy: decrypt failed")

	// ErrInvalidPeerKey indicates a malformed or off-curve peer public key,
	// or key material too short to derive the cipher key.
	ErrInvalidPeerKey = errors.New("eufy: invalid peer key")

	// ErrAuth indicates the login was rejected, including an unsolved CAPTCHA.
	ErrAuth = errors.New("eufy: authentication failed")

	// ErrAPI indicates an authenticated call returned a non-zero code.
	ErrAPI = errors.New("eufy: api error")
)

// ErrMalformedEnvelope is the ErrProtocol case of a response body that is
// not a {code, msg, data} envelope. On an authenticated call it means the
// session can no longer be trusted.
var ErrMalformedEnvelope = fmt.Errorf("%w: malformed envelope", ErrProtocol)

// AuthError describes a rejected login.
type AuthError struct {
	Code int
	Msg  string
}

func (e *AuthError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("eufy: login failed: %s", e.Msg)
	}
	return fmt.Sprintf("eufy: login failed (code=%d): %s", e.Code, e.Msg)
}

// Is reports ErrAuth as the class of every AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// APIError describes an authenticated call that returned a non-zero code
// or was refused at the HTTP layer.
type APIError struct {
	Endpoint string
	Code     int
	Msg      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eufy: %s failed (code=%d): %s", e.Endpoint, e.Code, e.Msg)
}

// Is reports ErrAPI as the class of every APIError.
func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// tokenErrorCodes are response codes that mean the auth token is no longer
// accepted. 401 and 403 arrive either as HTTP status or as envelope code.
var tokenErrorCodes = map[int]bool{
	401:   true,
	403:   true,
	26006: true, // token expired
	26052: true, // re-verification required
}

// TokenInvalid reports whether the error means the session token was rejected.
func (e *APIError) TokenInvalid() bool {
	return tokenErrorCodes[e.Code]
}

// errCaptchaUnsolved is the message carried by the AuthError produced when
// a challenge could not be answered.
const errCaptchaUnsolved = "captcha required, unsolved"

// Kind names the error class of err for logs and audit records.
// Returns "" for nil and "unknown" for errors outside the taxonomy.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrDecrypt):
		return "decrypt"
	case errors.Is(err, ErrInvalidPeerKey):
		return "invalid_peer_key"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrAPI):
		return "api"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	default:
		return "unknown"
	}
}

// ResetsSession reports whether err must invalidate the cached session:
// cryptographic failures, rejected logins, malformed envelopes and
// rejected tokens.
func ResetsSession(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDecrypt) || errors.Is(err, ErrInvalidPeerKey) ||
		errors.Is(err, ErrAuth) || errors.Is(err, ErrMalformedEnvelope) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.TokenInvalid()
	}
	return false
}
