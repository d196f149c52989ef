// Package gemini solves login CAPTCHAs with Google's Gemini models.
//
// SVG challenges are sent to the model as markup text; raster images are
// sent inline with their MIME type. The solver is best effort: every
// failure is logged and reported as unsolved.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/nerrad567/gray-logic-fetcher/internal/eufy"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// DefaultTimeout bounds one solve when Config.Timeout is zero.
const DefaultTimeout = 120 * time.Second

// Prompt is sent ahead of every challenge.
const Prompt = "What text does this CAPTCHA image show? Reply with ONLY the characters, nothing else."

// maxAnswerLen rejects chatty replies that are clearly not a CAPTCHA answer.
const maxAnswerLen = 16

// ErrNoAPIKey is returned by New when no API key is configured.
var ErrNoAPIKey = errors.New("gemini: api key is required")

// Logger is the subset of logging.Logger the solver uses.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// generator is the part of *genai.Models the solver calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures the solver.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Solver implements eufy.Solver on top of the Gemini API.
type Solver struct {
	gen     generator
	model   string
	timeout time.Duration
	logger  Logger
}

var _ eufy.Solver = (*Solver)(nil)

// New creates a Gemini client and wraps it as a CAPTCHA solver.
//
// Returns:
//   - *Solver: Ready to use
//   - error: ErrNoAPIKey, or a client construction failure
func New(ctx context.Context, cfg Config) (*Solver, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return newSolver(client.Models, cfg), nil
}

func newSolver(gen generator, cfg Config) *Solver {
	s := &Solver{
		gen:     gen,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  noopLogger{},
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	return s
}

// SetLogger sets the logger used for solve failures.
func (s *Solver) SetLogger(logger Logger) {
	s.logger = logger
}

// Solve asks the model to read the challenge.
func (s *Solver) Solve(ctx context.Context, ch eufy.Challenge) (string, bool) {
	if len(ch.Payload) == 0 {
		s.logger.Warn("captcha challenge has no payload", "captcha_id", ch.ID)
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.gen.GenerateContent(ctx, s.model, buildContents(ch), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		s.logger.Warn("gemini captcha request failed", "captcha_id", ch.ID, "model", s.model, "error", err)
		return "", false
	}

	answer := cleanAnswer(responseText(resp))
	if answer == "" {
		s.logger.Warn("gemini returned no usable captcha answer", "captcha_id", ch.ID, "model", s.model)
		return "", false
	}

	s.logger.Debug("gemini solved captcha", "captcha_id", ch.ID, "mime_type", ch.MimeType)
	return answer, true
}

// buildContents renders the challenge as a single user turn.
func buildContents(ch eufy.Challenge) []*genai.Content {
	if ch.IsSVG() {
		return []*genai.Content{
			genai.NewContentFromText(Prompt+"\n\n"+string(ch.Payload), genai.RoleUser),
		}
	}
	return []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(Prompt),
			genai.NewPartFromBytes(ch.Payload, ch.MimeType),
		}, genai.RoleUser),
	}
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// cleanAnswer trims the reply and rejects anything that is not a short
// single token.
func cleanAnswer(text string) string {
	answer := strings.TrimSpace(text)
	answer = strings.Trim(answer, "`\"'")
	if answer == "" || len(answer) > maxAnswerLen || strings.ContainsAny(answer, " \t\r\n") {
		return ""
	}
	return answer
}
