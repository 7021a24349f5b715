// Package openai is a minimal client for the fine-tuning, file and chat
// completion endpoints of an OpenAI-compatible API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finetuner/internal/config"
	"finetuner/internal/core"
	"finetuner/internal/util"

	"github.com/bytedance/sonic"
)

var _ core.FineTuningClient = (*Client)(nil)

// Client talks to the remote API. Every call is a single blocking request.
type Client struct {
	baseURL      string
	apiKey       string
	organization string
	project      string
	httpClient   *http.Client
	metrics      core.MetricsCollector
	logger       core.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	APIKey       string
	Organization string
	Project      string
	HTTPClient   *http.Client
	Metrics      core.MetricsCollector
	Logger       core.Logger
}

// NewClient creates a client. Nil collaborators fall back to no-op implementations.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		organization: opts.Organization,
		project:      opts.Project,
		httpClient:   opts.HTTPClient,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = core.DefaultAPIBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(config.DefaultHTTPClientSettings())
	}
	if c.metrics == nil {
		c.metrics = &core.NopMetrics{}
	}
	if c.logger == nil {
		c.logger = &core.NopLogger{}
	}
	return c
}

// NewClientFromConfig creates a client from the run configuration.
func NewClientFromConfig(cfg config.Config, metrics core.MetricsCollector, logger core.Logger) *Client {
	return NewClient(Options{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Organization: cfg.Organization,
		Project:      cfg.Project,
		HTTPClient:   NewHTTPClient(cfg.HTTPClientSettings),
		Metrics:      metrics,
		Logger:       logger,
	})
}

// NewHTTPClient builds the pooled HTTP client used for API calls.
func NewHTTPClient(settings config.HTTPClientSettings) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          settings.MaxIdleConns,
		MaxIdleConnsPerHost:   settings.MaxIdleConnsPerHost,
		IdleConnTimeout:       settings.IdleConnTimeout,
		TLSHandshakeTimeout:   settings.TLSHandshakeTimeout,
		ResponseHeaderTimeout: settings.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   settings.RequestTimeout,
	}
}

// CreateFineTuningJob submits a new fine-tuning job.
func (c *Client) CreateFineTuningJob(ctx context.Context, req *core.FineTuningJobRequest) (*core.FineTuningJob, error) {
	var job core.FineTuningJob
	if err := c.doJSON(ctx, core.OpCreateJob, http.MethodPost, core.PathFineTuningJobs, req, &job); err != nil {
		return nil, err
	}
	job.Status = job.Status.Normalize()
	return &job, nil
}

// RetrieveFineTuningJob fetches the current state of a job.
func (c *Client) RetrieveFineTuningJob(ctx context.Context, jobID string) (*core.FineTuningJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, core.ErrAPIRequestFailed(core.OpRetrieveJob, errors.New("job ID is empty"))
	}
	var job core.FineTuningJob
	path := core.PathFineTuningJobs + "/" + url.PathEscape(jobID)
	if err := c.doJSON(ctx, core.OpRetrieveJob, http.MethodGet, path, nil, &job); err != nil {
		return nil, err
	}
	job.Status = job.Status.Normalize()
	return &job, nil
}

// CreateChatCompletion issues one non-streaming chat completion.
func (c *Client) CreateChatCompletion(ctx context.Context, req *core.ChatCompletionRequest) (*core.ChatCompletionResponse, error) {
	var resp core.ChatCompletionResponse
	if err := c.doJSON(ctx, core.OpChatCompletion, http.MethodPost, core.PathChatCompletions, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, core.ErrAPIRequestFailed(core.OpChatCompletion, errors.New("response contained no choices"))
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		data, err := util.MarshalJSON(payload)
		if err != nil {
			return core.ErrAPIRequestFailed(op, fmt.Errorf("marshal payload: %w", err))
		}
		body = bytes.NewReader(data)
	}
	return c.send(ctx, op, method, path, body, core.ContentTypeJSON, dest)
}

func (c *Client) send(ctx context.Context, op, method, path string, body io.Reader, contentType string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return core.ErrAPIRequestFailed(op, fmt.Errorf("build request: %w", err))
	}

	requestID := util.NewRequestID()
	c.setHeaders(req, requestID)
	if body != nil {
		req.Header.Set(core.HeaderContentType, contentType)
	}

	c.logger.Debug("%s %s %s (request %s)", op, method, path, requestID)
	start := time.Now()

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL is built from the configured base URL.
	if err != nil {
		c.metrics.RecordAPICall(op, false, time.Since(start), requestID)
		return core.ErrAPIRequestFailed(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordAPICall(op, false, time.Since(start), requestID)
		apiErr := parseAPIError(resp)
		c.logger.Debug("%s failed with status %d (request %s, server request %s)", op, resp.StatusCode, requestID, apiErr.RequestID)
		return core.ErrAPIRequestFailed(op, apiErr)
	}

	if dest != nil {
		decoder := sonic.ConfigDefault.NewDecoder(io.LimitReader(resp.Body, core.MaxResponseBodySize))
		if err := decoder.Decode(dest); err != nil {
			c.metrics.RecordAPICall(op, false, time.Since(start), requestID)
			return core.ErrAPIRequestFailed(op, fmt.Errorf("decode response: %w", err))
		}
	}

	c.metrics.RecordAPICall(op, true, time.Since(start), requestID)
	return nil
}

func (c *Client) setHeaders(req *http.Request, requestID string) {
	req.Header.Set(core.HeaderAuthorization, core.AuthBearerPrefix+c.apiKey)
	req.Header.Set(core.HeaderAccept, core.ContentTypeJSON)
	req.Header.Set(core.HeaderClientRequestID, requestID)
	if c.organization != "" {
		req.Header.Set(core.HeaderOrganization, c.organization)
	}
	if c.project != "" {
		req.Header.Set(core.HeaderProject, c.project)
	}
}

// parseAPIError reads a non-2xx response into an APIError, using the
// {"error":{...}} envelope when the body has one.
func parseAPIError(resp *http.Response) *core.APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
	apiErr := &core.APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get(core.HeaderRequestID),
		Body:       util.TruncateString(strings.TrimSpace(string(body)), core.MaxErrorBodyLogSize, 0, "..."),
	}

	var envelope core.APIErrorEnvelope
	if err := sonic.Unmarshal(body, &envelope); err == nil {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Code
	}
	return apiErr
}
