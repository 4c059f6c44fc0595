// Package localllm is a client for the Ollama HTTP API.
package localllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/jcooky/go-din"
)

type (
	Config struct {
		// URL of the server. Defaults to http://localhost:11434.
		URL string
		// HTTPClient is used for every request. Streaming requests are bounded
		// only by their context, so it should not carry a Timeout.
		HTTPClient *http.Client
		// RequestTimeout bounds non-streaming calls. Zero means no bound.
		RequestTimeout time.Duration
	}

	Client struct {
		url     string
		http    *http.Client
		timeout time.Duration
		logger  *slog.Logger
	}

	Model struct {
		Name       string    `json:"name"`
		Model      string    `json:"model"`
		ModifiedAt time.Time `json:"modified_at"`
		Size       int64     `json:"size"`
		Digest     string    `json:"digest,omitempty"`
	}

	GenerateRequest struct {
		Model  string
		Prompt string
		System string
		// Format is "json" or a JSON schema constraining the output.
		Format  json.RawMessage
		Options map[string]any
	}

	generateBody struct {
		Model   string          `json:"model"`
		Prompt  string          `json:"prompt"`
		System  string          `json:"system,omitempty"`
		Format  json.RawMessage `json:"format,omitempty"`
		Stream  bool            `json:"stream"`
		Options map[string]any  `json:"options,omitempty"`
	}

	generateChunk struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
		Error    string `json:"error,omitempty"`
	}
)

// FormatJSON asks the server for any valid JSON object.
var FormatJSON = json.RawMessage(`"json"`)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	url := strings.TrimRight(cfg.URL, "/")
	if url == "" {
		url = config.DefaultOllamaURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = mylog.Discard()
	}
	return &Client{
		url:     url,
		http:    httpClient,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ConnectionError{URL: c.url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(body))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// CheckStatus reports whether the server answers at its base URL.
func (c *Client) CheckStatus(ctx context.Context) bool {
	ctx, cancel := c.boundedContext(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodHead, "", nil)
	if err != nil {
		c.logger.Debug("ollama status check failed", slog.String("url", c.url), slog.Any("error", err))
		return false
	}
	resp.Body.Close()
	return true
}

func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := c.boundedContext(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list models")
	}
	defer resp.Body.Close()

	var out struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrapf(err, "failed to decode model list")
	}
	if out.Models == nil {
		out.Models = []Model{}
	}
	return out.Models, nil
}

// Generate runs a non-streaming generation and returns the trimmed text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/generate", newGenerateBody(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chunk generateChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return "", errors.Wrapf(err, "failed to decode generation")
	}
	if chunk.Error != "" {
		return "", &APIError{Message: chunk.Error}
	}
	return strings.TrimSpace(chunk.Response), nil
}

// GenerateStream submits a streaming generation. Submission failures are
// returned here; failures while reading surface from Stream.Err.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	resp, err := c.do(ctx, http.MethodPost, "/api/generate", newGenerateBody(req, true))
	if err != nil {
		cancel()
		return nil, err
	}
	return newStream(resp.Body, cancel, c.logger), nil
}

func (c *Client) Pull(ctx context.Context, model string) (*PullStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	resp, err := c.do(ctx, http.MethodPost, "/api/pull", map[string]any{"name": model, "stream": true})
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "failed to pull model %s", model)
	}
	return &PullStream{lines: newLineStream[PullProgress](resp.Body, cancel, c.logger)}, nil
}

func (c *Client) Delete(ctx context.Context, model string) error {
	ctx, cancel := c.boundedContext(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodDelete, "/api/delete", map[string]string{"name": model})
	if err != nil {
		return errors.Wrapf(err, "failed to delete model %s", model)
	}
	resp.Body.Close()
	return nil
}

func newGenerateBody(req GenerateRequest, stream bool) generateBody {
	return generateBody{
		Model:   req.Model,
		Prompt:  req.Prompt,
		System:  req.System,
		Format:  req.Format,
		Stream:  stream,
		Options: req.Options,
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*Client, error) {
		conf, err := din.GetT[*config.LocalConfig](c)
		if err != nil {
			return nil, err
		}
		logger := din.MustGet[*slog.Logger](c, mylog.Key)
		return NewClient(Config{URL: conf.URL, RequestTimeout: conf.RequestTimeout}, logger), nil
	})
}

func (m Model) String() string {
	return fmt.Sprintf("%s (%d bytes)", m.Name, m.Size)
}
