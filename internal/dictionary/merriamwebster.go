package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrlokans/kindle-vocab/internal/logging"
)

const (
	defaultBaseURL     = "https://dictionaryapi.com/api/v3/references/collegiate/json"
	defaultTimeout     = 10 * time.Second
	maxAttempts        = 3
	maxRetryDelay      = 5 * time.Second
	retryBackoffFactor = 2
	maxBodyBytes       = 4 << 20
)

// MerriamWebsterConfig configures the Collegiate API client.
type MerriamWebsterConfig struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int           // Capped at 3
	RetryDelay  time.Duration // Delay before the second attempt, doubled afterwards
}

// MerriamWebsterClient implements Client using the Merriam-Webster Collegiate API.
// API docs: https://dictionaryapi.com/products/json
type MerriamWebsterClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	maxAttempts int
	retryDelay  time.Duration
	log         *slog.Logger
}

// NewMerriamWebsterClient creates a new Collegiate API client.
func NewMerriamWebsterClient(cfg MerriamWebsterConfig, logger *slog.Logger) *MerriamWebsterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 || cfg.MaxAttempts > maxAttempts {
		cfg.MaxAttempts = maxAttempts
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &MerriamWebsterClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		log:         logger.With("adapter", "merriamwebster"),
	}
}

func (c *MerriamWebsterClient) Name() string {
	return "merriamwebster"
}

// Lookup fetches the first entry for word, retrying transport errors and
// non-2xx answers. Bodies that do not decode are not retried.
func (c *MerriamWebsterClient) Lookup(ctx context.Context, word string) (*Response, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, ErrEmptyWord
	}

	reqURL := c.baseURL + "/" + url.PathEscape(word) + "?" + url.Values{"key": {c.apiKey}}.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if delay := c.calculateRetryDelay(attempt); delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
				}
			}
		}

		body, err := c.fetch(ctx, reqURL)
		if err == nil {
			resp, err := decodeResponse(body)
			if err != nil {
				c.log.DebugContext(ctx, "undecodable body", slog.String("word", word), slog.String("body", truncate(body, 200)))
				return nil, err
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		c.log.WarnContext(ctx, "lookup attempt failed",
			slog.String("word", word),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", c.maxAttempts),
			slog.String("error", err.Error()),
		)
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.maxAttempts, lastErr)
}

func (c *MerriamWebsterClient) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "KindleVocab/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error carries the request URL, which includes the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *MerriamWebsterClient) calculateRetryDelay(attempt int) time.Duration {
	delay := c.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(retryBackoffFactor)
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
