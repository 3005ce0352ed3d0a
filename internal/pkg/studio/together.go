package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/NoteFox/internal/pkg/config"
	"github.com/ManuelReschke/NoteFox/internal/pkg/logging"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	maxRetryDelay     = 60 * time.Second
)

// ErrUpstream wraps every failure of the text generation provider.
var ErrUpstream = errors.New("text generation failed")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Generator completes chat prompts.
type Generator interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// TogetherClient calls the Together AI chat completions API.
type TogetherClient struct {
	APIKey     string
	URL        string
	Model      string
	MaxRetries int
	RetryDelay time.Duration

	HTTPClient *http.Client
	Log        logrus.FieldLogger
	sleep      func(time.Duration)
}

func NewTogetherClient(cfg config.Together, log logrus.FieldLogger) *TogetherClient {
	if log == nil {
		log = logging.Discard()
	}
	return &TogetherClient{
		APIKey:     cfg.APIKey,
		URL:        cfg.URL,
		Model:      cfg.Model,
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Log:        log,
		sleep:      time.Sleep,
	}
}

type togetherPayload struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
	TopK        int       `json:"top_k"`
	Stop        []string  `json:"stop"`
}

type togetherResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// statusError is a non-2xx answer of the provider.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("together api status=%d body=%s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func (c *TogetherClient) Complete(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(togetherPayload{
		Model:       c.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        0.9,
		TopK:        50,
		Stop:        []string{"</s>"},
	})
	if err != nil {
		return "", err
	}

	attempts := c.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.RetryDelay << (attempt - 1)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			c.Log.WithError(lastErr).Warnf("together api: retrying in %v (attempt %d/%d)", delay, attempt+1, attempts)
			c.sleep(delay)
		}

		start := time.Now()
		content, err := c.do(ctx, payload)
		if err == nil {
			c.Log.WithField("elapsed", time.Since(start).String()).Debug("together api call completed")
			return content, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %w", ErrUpstream, lastErr)
}

func (c *TogetherClient) do(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var out togetherResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode together response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("together response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
