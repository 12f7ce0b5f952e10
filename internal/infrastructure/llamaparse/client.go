package llamaparse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/docparse-gateway/internal/core/domain"
	"github.com/kirillkom/docparse-gateway/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL      = "https://api.cloud.llamaindex.ai/api/parsing"
	DefaultPollInterval = 1 * time.Second
)

var (
	ErrMissingAPIKey = errors.New("llamaparse: api key is required")
	ErrEmptyJobID    = errors.New("llamaparse: job id is empty")
)

// Config carries the construction-time settings for the client.
// Headers are merged over the default Authorization/Accept pair, caller
// values winning on collision.
type Config struct {
	APIKey  string
	BaseURL string
	Headers map[string]string
}

type Client struct {
	baseURL    string
	headers    http.Header
	httpClient *http.Client

	pollInterval time.Duration
	pollTimeout  time.Duration

	limiter  *rate.Limiter
	executor *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithPollTimeout bounds how long Parse waits for a terminal status.
// Zero keeps the default behavior of waiting indefinitely.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollTimeout = d
		}
	}
}

// WithRateLimit throttles all outbound calls, poll requests included.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithExecutor routes every call through a resilience executor. Without it
// the client never retries and surfaces each error unchanged.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = e
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.APIKey)
	headers.Set("Accept", "application/json")
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		headers:      headers,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type uploadResponse struct {
	ID     string           `json:"id"`
	Status domain.JobStatus `json:"status"`
}

// JobState is one observation of a remote job.
type JobState struct {
	Status domain.JobStatus `json:"status"`
	Error  string           `json:"error"`
}

// Upload submits the document body as multipart form field "file" and
// returns the remote job id.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	payload, contentType, err := encodeMultipart(filename, body)
	if err != nil {
		return "", fmt.Errorf("encode upload body: %w", err)
	}

	var resp uploadResponse
	if err := c.postForm(ctx, "/upload", contentType, payload, &resp, OpUpload); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("llamaparse upload: response carries no job id")
	}
	return resp.ID, nil
}

// CheckStatus fetches the job's current state, round-tripping the server's
// status and error fields unchanged.
func (c *Client) CheckStatus(ctx context.Context, jobID string) (JobState, error) {
	if jobID == "" {
		return JobState{}, ErrEmptyJobID
	}
	var state JobState
	if err := c.getJSON(ctx, "/job/"+jobID, &state, OpStatus); err != nil {
		return JobState{}, err
	}
	return state, nil
}

// GetResult fetches the markdown rendering. Only meaningful once the job
// reached SUCCESS; the server decides what an earlier call returns.
func (c *Client) GetResult(ctx context.Context, jobID string) (*domain.ParseResult, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}
	var result domain.ParseResult
	if err := c.getJSON(ctx, "/job/"+jobID+"/result/markdown", &result, OpResult); err != nil {
		return nil, err
	}
	return &result, nil
}

// Parse uploads the document and polls at a fixed interval until the job
// reaches a terminal status, then fetches the result. A FAILED job yields a
// ParseFailedError and the result endpoint is never called.
func (c *Client) Parse(ctx context.Context, filename string, body io.Reader) (*domain.ParseResult, error) {
	jobID, err := c.Upload(ctx, filename, body)
	if err != nil {
		return nil, err
	}
	return c.WaitForResult(ctx, jobID)
}

// WaitForResult polls an already-uploaded job until it is terminal.
func (c *Client) WaitForResult(ctx context.Context, jobID string) (*domain.ParseResult, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	if c.pollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pollTimeout)
		defer cancel()
	}

	for {
		state, err := c.CheckStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch state.Status {
		case domain.JobSuccess:
			return c.GetResult(ctx, jobID)
		case domain.JobFailed:
			return nil, &ParseFailedError{JobID: jobID, Reason: state.Error}
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("llamaparse poll job %s: %w", jobID, ctx.Err())
		case <-timer.C:
		}
	}
}

// ParseFailedError reports a job the server moved to FAILED.
type ParseFailedError struct {
	JobID  string
	Reason string
}

func (e *ParseFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("llamaparse job %s failed", e.JobID)
	}
	return fmt.Sprintf("llamaparse job %s failed: %s", e.JobID, e.Reason)
}

func (e *ParseFailedError) Unwrap() error { return domain.ErrParseFailed }
