package usda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/config"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/retry"
)

// Client talks to the USDA FoodData Central API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewClient creates a new FoodData Central client
func NewClient(cfg *config.USDAConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryCfg: retry.DefaultConfig(),
	}
}

type searchResponse struct {
	Foods []struct {
		FdcID       int64  `json:"fdcId"`
		Description string `json:"description"`
		DataType    string `json:"dataType"`
		BrandOwner  string `json:"brandOwner"`
	} `json:"foods"`
}

type foodDetailResponse struct {
	FdcID         int64  `json:"fdcId"`
	Description   string `json:"description"`
	FoodNutrients []struct {
		Nutrient struct {
			Number string `json:"number"`
			Name   string `json:"name"`
			Unit   string `json:"unitName"`
		} `json:"nutrient"`
		Amount float64 `json:"amount"`
	} `json:"foodNutrients"`
}

// SearchFoods runs a free-text search. The limit is clamped to [1, 5]
// per the enrichment contract; empty results are not an error.
func (c *Client) SearchFoods(ctx context.Context, query string, limit int) ([]providers.FoodSearchHit, error) {
	if query == "" {
		return nil, apperrors.NewValidationError("search query is required")
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 5 {
		limit = 5
	}

	endpoint := fmt.Sprintf("%s/v1/foods/search?api_key=%s&query=%s&pageSize=%d",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(query), limit)

	var parsed searchResponse
	start := time.Now()
	err := retry.Do(ctx, c.retryCfg, func() error {
		return c.fetch(ctx, endpoint, &parsed)
	}, apperrors.IsRetryable)
	recordUSDAMetric(ctx, "search", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	hits := make([]providers.FoodSearchHit, 0, len(parsed.Foods))
	for _, f := range parsed.Foods {
		hits = append(hits, providers.FoodSearchHit{
			FdcID:       f.FdcID,
			Description: f.Description,
			DataType:    f.DataType,
			BrandOwner:  f.BrandOwner,
		})
	}
	return hits, nil
}

// GetFood fetches the full nutrient detail for a food record
func (c *Client) GetFood(ctx context.Context, fdcID int64) (*providers.FoodDetail, error) {
	endpoint := fmt.Sprintf("%s/v1/food/%s?api_key=%s",
		c.baseURL, strconv.FormatInt(fdcID, 10), url.QueryEscape(c.apiKey))

	var parsed foodDetailResponse
	start := time.Now()
	err := retry.Do(ctx, c.retryCfg, func() error {
		return c.fetch(ctx, endpoint, &parsed)
	}, apperrors.IsRetryable)
	recordUSDAMetric(ctx, "detail", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	detail := &providers.FoodDetail{
		FdcID:       parsed.FdcID,
		Description: parsed.Description,
		Nutrients:   make([]providers.FoodNutrient, 0, len(parsed.FoodNutrients)),
	}
	for _, fn := range parsed.FoodNutrients {
		detail.Nutrients = append(detail.Nutrients, providers.FoodNutrient{
			Number: fn.Nutrient.Number,
			Name:   fn.Nutrient.Name,
			Amount: fn.Amount,
			Unit:   fn.Nutrient.Unit,
		})
	}
	return detail, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to build USDA request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.NewTimeoutError("USDA call timed out", err)
		}
		return apperrors.NewExternalError("USDA call failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError("food record not found in USDA")
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError("USDA rate limit exceeded", nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperrors.NewExternalError(fmt.Sprintf("USDA returned status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewExternalError("failed to decode USDA response", err)
	}
	return nil
}

type usdaMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
}

// Metric init is lazy and racy-by-default: the photo path fans out
// lookups across goroutines, so first use must go through sync.Once.
var usdaMetricsOnce sync.Once
var usdaMetricsReady bool
var metrics usdaMetrics

func ensureUSDAMetrics() {
	usdaMetricsOnce.Do(initUSDAMetrics)
}

func initUSDAMetrics() {
	meter := otel.Meter("github.com/giamma80/Nutrifit-mobile-sub000/usda")

	requestCount, err := meter.Int64Counter(
		"fooddata.usda.request.count",
		metric.WithDescription("Number of USDA FoodData Central requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"fooddata.usda.request.duration",
		metric.WithDescription("USDA request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"fooddata.usda.request.errors",
		metric.WithDescription("Number of USDA request errors"),
	)
	if err != nil {
		return
	}

	metrics = usdaMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
	}
	usdaMetricsReady = true
}

func recordUSDAMetric(ctx context.Context, operation string, duration time.Duration, err error) {
	ensureUSDAMetrics()
	if !usdaMetricsReady {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("fooddata.provider", "usda"),
		attribute.String("fooddata.operation", operation),
	}

	metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		metrics.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
