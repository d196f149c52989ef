package eufy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the outer shape of every vendor response.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// ResponseData is the envelope's data field, classified once after parsing.
//
// The vendor sends either a JSON value (plain) or a JSON string carrying
// base64 AES ciphertext (encrypted). Exactly one of the two is set.
type ResponseData struct {
	ciphertext string
	plain      json.RawMessage
	encrypted  bool
}

// parseEnvelope decodes a response body and classifies its data field.
func parseEnvelope(body []byte) (envelope, ResponseData, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, ResponseData{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	data, err := classifyData(env.Data)
	if err != nil {
		return envelope{}, ResponseData{}, err
	}
	return env, data, nil
}

func classifyData(raw json.RawMessage) (ResponseData, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ResponseData{plain: nil}, nil
	}
	if trimmed[0] != '"' {
		return ResponseData{plain: json.RawMessage(trimmed)}, nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return ResponseData{}, fmt.Errorf("%w: data string: %w", ErrProtocol, err)
	}
	return ResponseData{ciphertext: s, encrypted: true}, nil
}

// Encrypted reports whether the data field was ciphertext.
func (d ResponseData) Encrypted() bool {
	return d.encrypted
}

// Empty reports whether the data field was absent or null.
func (d ResponseData) Empty() bool {
	return !d.encrypted && len(d.plain) == 0
}

// JSON returns the plain JSON value, decrypting it first with secret when
// the data field was ciphertext.
func (d ResponseData) JSON(secret []byte) (json.RawMessage, error) {
	if !d.encrypted {
		return d.plain, nil
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: encrypted data without a shared secret", ErrProtocol)
	}
	plain, err := Decrypt(d.ciphertext, secret)
	if err != nil {
		return nil, err
	}
	if !json.Valid(plain) {
		return nil, fmt.Errorf("%w: decrypted payload is not JSON", ErrDecrypt)
	}
	return plain, nil
}

// Decode unmarshals the data field into out, decrypting it first when needed.
// An absent data field leaves out untouched.
func (d ResponseData) Decode(secret []byte, out any) error {
	raw, err := d.JSON(secret)
	if err != nil {
		return err
	}
	if len(raw) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: unexpected data shape: %w", ErrProtocol, err)
	}
	return nil
}
