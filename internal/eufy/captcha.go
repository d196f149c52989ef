package eufy

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// captchaCodes are the login response codes that carry a CAPTCHA challenge.
var captchaCodes = map[int]bool{
	100032: true,
	100033: true,
}

// Challenge is a CAPTCHA issued during login.
type Challenge struct {
	ID       string
	MimeType string
	Payload  []byte
}

// IsSVG reports whether the challenge image is SVG markup rather than a
// raster image.
func (c Challenge) IsSVG() bool {
	return strings.HasPrefix(c.MimeType, "image/svg")
}

// Solver answers CAPTCHA challenges.
//
// Solve is best effort: it never returns an error. Any failure, including a
// missing backend, a timeout, or an empty answer, is reported as ok == false.
type Solver interface {
	Solve(ctx context.Context, ch Challenge) (answer string, ok bool)
}

// NoopSolver never solves a challenge. It is the default when no CAPTCHA
// backend is configured, so a challenge fails the login cleanly.
type NoopSolver struct{}

// Solve always reports the challenge as unsolved.
func (NoopSolver) Solve(context.Context, Challenge) (string, bool) {
	return "", false
}

// ParseChallenge builds a Challenge from the captcha_id and item fields of a
// challenge response. item must be a data URI: "data:<mime>;base64,<data>".
// Non-base64 data URIs (common for inline SVG) are accepted as raw text.
func ParseChallenge(id, item string) (Challenge, error) {
	rest, ok := strings.CutPrefix(item, "data:")
	if !ok {
		return Challenge{}, fmt.Errorf("%w: captcha item is not a data URI", ErrProtocol)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Challenge{}, fmt.Errorf("%w: captcha data URI has no payload", ErrProtocol)
	}

	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	mime, _, _ := strings.Cut(mediaType, ";")
	if mime == "" {
		mime = "text/plain"
	}

	ch := Challenge{ID: id, MimeType: strings.ToLower(mime)}
	if !isBase64 {
		ch.Payload = []byte(payload)
		return ch, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Challenge{}, fmt.Errorf("%w: captcha payload: %w", ErrProtocol, err)
	}
	ch.Payload = data
	return ch, nil
}
