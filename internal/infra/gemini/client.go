// Package gemini judges answers and generates flashcards with Google's
// Gemini models. Replies are constrained by a response schema and decoded
// strictly; anything that does not match is reported, never guessed at.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"memory-palace/internal/domain"
)

// ContentGenerator is the part of the genai client this package uses.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var (
	errBlocked   = errors.New("content blocked by safety filters")
	errNoContent = errors.New("no content generated")
)

// Config holds the model and retry settings.
type Config struct {
	APIKey     string
	Model      string
	MaxRetries int
	BaseDelay  time.Duration
}

const (
	defaultModel     = "gemini-2.5-flash"
	defaultRetries   = 3
	defaultBaseDelay = 500 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	return c
}

// NewContentGenerator creates a Gemini API client.
func NewContentGenerator(ctx context.Context, apiKey string) (ContentGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client.Models, nil
}

// caller runs schema-constrained requests with exponential backoff.
type caller struct {
	gen    ContentGenerator
	cfg    Config
	logger *zap.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func newCaller(gen ContentGenerator, cfg Config, logger *zap.Logger) *caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &caller{
		gen:    gen,
		cfg:    cfg.withDefaults(),
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// generate returns the reply text. Transient failures are retried;
// blocked or empty replies are returned at once wrapped in formatErr.
func (c *caller) generate(ctx context.Context, prompt string, schema *genai.Schema, formatErr error) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			c.logger.Debug("retrying gemini call",
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.gen.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), cfg)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if !isTransient(err) {
				return "", err
			}
			lastErr = err
			c.logger.Warn("gemini call failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		text, err := replyText(resp)
		if err != nil {
			return "", fmt.Errorf("%w: %v", formatErr, err)
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: %d attempts failed: %v", domain.ErrEvaluatorUnavailable, c.cfg.MaxRetries+1, lastErr)
}

func (c *caller) backoff(attempt int) time.Duration {
	c.rndMu.Lock()
	jitter := 0.5 + c.rnd.Float64()*0.5
	c.rndMu.Unlock()
	return time.Duration(float64(c.cfg.BaseDelay) * math.Pow(2, float64(attempt)) * jitter)
}

func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", errBlocked
		}
		return "", errNoContent
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", errBlocked
	}
	if cand.Content == nil {
		return "", errNoContent
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errNoContent
	}
	return text, nil
}

// isTransient treats rate limits, server errors and transport failures as
// retryable. Other API errors (bad request, auth) are permanent.
func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return transientCode(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return transientCode(apiErrPtr.Code)
	}
	return true
}

func transientCode(code int) bool {
	return code == 429 || code >= 500
}
