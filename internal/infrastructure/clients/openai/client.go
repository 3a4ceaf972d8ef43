package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/config"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the vision-capable completion provider
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *tokenBucket
}

// NewClient creates a new OpenAI client
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 25 * time.Second
	}

	limiter := newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst)

	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
	}, nil
}

// ModelVersion identifies the configured model for provenance metadata
func (c *Client) ModelVersion() string {
	return c.model
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a prompt plus an image URL to the chat completion
// endpoint and returns the raw text reply with any markdown code fences
// stripped. The caller owns parsing.
func (c *Client) Complete(ctx context.Context, prompt, imageURL string) (string, error) {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordVisionMetric(ctx, c.model, 0, 0, err)
			return "", err
		}
		recordVisionRateLimitWait(ctx, c.model, time.Since(waitStart))
	}

	content := []map[string]interface{}{
		{"type": "text", "text": prompt},
	}
	if imageURL != "" {
		content = append(content, map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]string{"url": imageURL},
		})
	}

	payload := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]interface{}{
			{"role": "user", "content": content},
		},
		"temperature": 0.2,
		"max_tokens":  800,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordVisionMetric(ctx, c.model, 0, time.Since(start), err)
		if ctx.Err() != nil {
			return "", apperrors.NewTimeoutError("vision completion timed out", err)
		}
		return "", apperrors.NewExternalError("vision completion failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		recordVisionMetric(ctx, c.model, resp.StatusCode, time.Since(start), fmt.Errorf("status %d", resp.StatusCode))
		return "", apperrors.NewRateLimitError("vision endpoint rate limit exceeded", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recordVisionMetric(ctx, c.model, resp.StatusCode, time.Since(start), fmt.Errorf("status %d", resp.StatusCode))
		return "", apperrors.NewExternalError(fmt.Sprintf("vision request failed with status %d", resp.StatusCode), nil)
	}

	var envelope chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		recordVisionMetric(ctx, c.model, resp.StatusCode, time.Since(start), err)
		return "", apperrors.NewExternalError("failed to decode vision response", err)
	}

	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == "" {
		recordVisionMetric(ctx, c.model, resp.StatusCode, time.Since(start), errors.New("missing content"))
		return "", apperrors.NewExternalError("vision response missing content", nil)
	}

	recordVisionMetric(ctx, c.model, resp.StatusCode, time.Since(start), nil)
	return stripCodeFences(envelope.Choices[0].Message.Content), nil
}

// stripCodeFences removes Markdown code blocks wrapping the reply
func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}

	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

type visionMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var visionMetricsOnce sync.Once
var visionMetricsReady bool
var visionMetricsState visionMetrics

func ensureVisionMetrics() {
	visionMetricsOnce.Do(initVisionMetrics)
}

func initVisionMetrics() {
	meter := otel.Meter("github.com/giamma80/Nutrifit-mobile-sub000/openai")

	requestCount, err := meter.Int64Counter(
		"ai.vision.request.count",
		metric.WithDescription("Number of vision completion requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.vision.request.duration",
		metric.WithDescription("Vision completion request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.vision.request.errors",
		metric.WithDescription("Number of vision completion request errors"),
	)
	if err != nil {
		return
	}
	rateLimitWait, err := meter.Float64Histogram(
		"ai.vision.rate_limit.wait",
		metric.WithDescription("Time spent waiting for the vision rate limiter in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}

	visionMetricsState = visionMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
		rateLimitWait:   rateLimitWait,
	}
	visionMetricsReady = true
}

func recordVisionMetric(ctx context.Context, model string, statusCode int, duration time.Duration, err error) {
	ensureVisionMetrics()
	if !visionMetricsReady {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	visionMetricsState.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	visionMetricsState.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		visionMetricsState.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func recordVisionRateLimitWait(ctx context.Context, model string, wait time.Duration) {
	ensureVisionMetrics()
	if !visionMetricsReady {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
	}
	visionMetricsState.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}
