package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/contractlens-backend/internal/observability"
	"github.com/yungbote/contractlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/contractlens-backend/internal/platform/envutil"
	"github.com/yungbote/contractlens-backend/internal/platform/httpx"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

const responsesPath = "/v1/responses"

// Client is the structured-output model client used by the analysis stages.
type Client interface {
	// GenerateJSON sends one system+user exchange constrained to schema and
	// returns the decoded JSON object. The object is untrusted.
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

type Config struct {
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	MaxRetries         int
	Temperature        *float64
	DisableTemperature bool
}

// ConfigFromEnv reads OPENAI_* variables.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:             envutil.String("OPENAI_API_KEY", ""),
		BaseURL:            envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:              envutil.String("OPENAI_MODEL", "gpt-4.1"),
		Timeout:            envutil.Duration("OPENAI_TIMEOUT_SECONDS", 180*time.Second),
		MaxRetries:         envutil.Int("OPENAI_MAX_RETRIES", 2),
		DisableTemperature: envutil.Bool("OPENAI_DISABLE_TEMPERATURE", false),
	}
	if !cfg.DisableTemperature {
		raw := strings.ToLower(envutil.String("OPENAI_TEMPERATURE", "0.1"))
		switch raw {
		case "off", "none", "nil", "false":
			cfg.DisableTemperature = true
		default:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				cfg.Temperature = &f
			}
		}
	}
	return cfg
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	maxRetries int

	temperature *float64

	// Models that rejected the temperature parameter once are not sent it again.
	noTempMu   sync.RWMutex
	noTempSeen map[string]bool
}

func NewClient(log *logger.Logger) (Client, error) {
	return NewClientWithConfig(log, ConfigFromEnv())
}

func NewClientWithConfig(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	c := &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      strings.TrimSpace(cfg.Model),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		noTempSeen: map[string]bool{},
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.openai.com"
	}
	if !cfg.DisableTemperature {
		c.temperature = cfg.Temperature
	}
	return c, nil
}

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// ErrRefused is returned when the model declines to answer.
var ErrRefused = errors.New("model refused")

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
	Text  struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

func (r responsesResponse) outputText() (text string, refusal string) {
	var out strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			switch c.Type {
			case "output_text":
				out.WriteString(c.Text)
			case "refusal":
				refusal = c.Refusal
			}
		}
	}
	return out.String(), refusal
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "openai.GenerateJSON",
		attribute.String("llm.model", c.model),
		attribute.String("llm.schema", schemaName),
	)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	req := &responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}
	if c.temperature != nil && !c.modelIsNoTemp(req.Model) {
		req.Temperature = c.temperature
	}

	var resp responsesResponse
	if err = c.doWithTempFallback(ctx, req, &resp); err != nil {
		return nil, err
	}
	text, refusal := resp.outputText()
	if refusal != "" {
		err = fmt.Errorf("%w: %s", ErrRefused, refusal)
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		err = errors.New("no output_text found in response")
		return nil, err
	}
	var obj map[string]any
	if err = json.Unmarshal([]byte(text), &obj); err != nil {
		err = fmt.Errorf("failed to parse model JSON: %w", err)
		return nil, err
	}
	return obj, nil
}

// doWithTempFallback retries exactly once without temperature if the model rejects it.
func (c *client) doWithTempFallback(ctx context.Context, req *responsesRequest, out *responsesResponse) error {
	err := c.do(ctx, req, out)
	if err == nil || req.Temperature == nil || !isUnsupportedTemperature(err) {
		return err
	}
	c.noTempMu.Lock()
	c.noTempSeen[strings.ToLower(req.Model)] = true
	c.noTempMu.Unlock()
	req.Temperature = nil
	return c.do(ctx, req, out)
}

func (c *client) modelIsNoTemp(model string) bool {
	c.noTempMu.RLock()
	defer c.noTempMu.RUnlock()
	return c.noTempSeen[strings.ToLower(model)]
}

func isUnsupportedTemperature(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(httpErr.Body)
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, hint := range []string{"unsupported", "not supported", "does not support", "unknown parameter", "only the default"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func (c *client) doOnce(ctx context.Context, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+responsesPath, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: truncateBody(string(raw))}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, req *responsesRequest, out *responsesResponse) error {
	backoff := time.Second
	start := time.Now()
	metrics := observability.Current()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, raw, err := c.doOnce(ctx, req)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				metrics.ObserveLLMRequest(req.Model, responsesPath, "decode_error", time.Since(start), 0, 0)
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			metrics.ObserveLLMRequest(req.Model, responsesPath, strconv.Itoa(resp.StatusCode), time.Since(start), out.Usage.InputTokens, out.Usage.OutputTokens)
			return nil
		}
		// The parent deadline covers the whole call, retries included.
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries || ctx.Err() != nil {
			metrics.ObserveLLMRequest(req.Model, responsesPath, statusFromErr(err), time.Since(start), 0, 0)
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			append(ctxutil.LogFields(ctx),
				"attempt", attempt+1,
				"max_retries", c.maxRetries,
				"sleep", sleepFor.String(),
				"error", err.Error(),
			)...,
		)
		if sErr := httpx.Sleep(ctx, sleepFor); sErr != nil {
			return err
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func statusFromErr(err error) string {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return strconv.Itoa(httpErr.StatusCode)
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func truncateBody(s string) string {
	const max = 2048
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
