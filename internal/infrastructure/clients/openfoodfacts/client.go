package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/config"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/retry"
)

// Client looks up per-100g product data in the OpenFoodFacts database
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewClient creates a new OpenFoodFacts client
func NewClient(cfg *config.OpenFoodFactsConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryCfg: retry.DefaultConfig(),
	}
}

// flexFloat tolerates OpenFoodFacts returning nutriment values as either
// JSON numbers or numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type productResponse struct {
	Status  json.Number `json:"status"`
	Product struct {
		ProductName string `json:"product_name"`
		Brands      string `json:"brands"`
		ImageURL    string `json:"image_url"`
		Nutriments  struct {
			EnergyKcal100g flexFloat  `json:"energy-kcal_100g"`
			Proteins100g   flexFloat  `json:"proteins_100g"`
			Carbs100g      flexFloat  `json:"carbohydrates_100g"`
			Fat100g        flexFloat  `json:"fat_100g"`
			Fiber100g      *flexFloat `json:"fiber_100g"`
			Sugars100g     *flexFloat `json:"sugars_100g"`
			Sodium100g     *flexFloat `json:"sodium_100g"`
		} `json:"nutriments"`
	} `json:"product"`
}

// LookupBarcode fetches a product record by barcode. A product unknown
// to OpenFoodFacts surfaces as a NOT_FOUND error; transient upstream
// failures are retried with bounded backoff.
func (c *Client) LookupBarcode(ctx context.Context, barcode string) (*providers.BarcodeProduct, error) {
	if barcode == "" {
		return nil, apperrors.NewValidationError("barcode is required")
	}

	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(barcode))

	var parsed productResponse
	err := retry.Do(ctx, c.retryCfg, func() error {
		return c.fetch(ctx, endpoint, &parsed)
	}, apperrors.IsRetryable)
	if err != nil {
		return nil, err
	}

	if status, _ := parsed.Status.Int64(); status == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("barcode %s not found in OpenFoodFacts", barcode))
	}

	n := parsed.Product.Nutriments
	product := &providers.BarcodeProduct{
		Barcode:     barcode,
		ProductName: parsed.Product.ProductName,
		Brand:       parsed.Product.Brands,
		ImageURL:    parsed.Product.ImageURL,
		Calories:    int(n.EnergyKcal100g),
		Protein:     float64(n.Proteins100g),
		Carbs:       float64(n.Carbs100g),
		Fat:         float64(n.Fat100g),
	}
	if n.Fiber100g != nil {
		product.Fiber = floatPtr(float64(*n.Fiber100g))
	}
	if n.Sugars100g != nil {
		product.Sugar = floatPtr(float64(*n.Sugars100g))
	}
	if n.Sodium100g != nil {
		// OpenFoodFacts reports sodium in grams; the profile carries mg
		product.Sodium = floatPtr(float64(*n.Sodium100g) * 1000)
	}

	return product, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string, out *productResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to build OpenFoodFacts request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.NewTimeoutError("OpenFoodFacts call timed out", err)
		}
		return apperrors.NewExternalError("OpenFoodFacts call failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError("product not found in OpenFoodFacts")
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewRateLimitError("OpenFoodFacts rate limit exceeded", nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apperrors.NewExternalError(fmt.Sprintf("OpenFoodFacts returned status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewExternalError("failed to decode OpenFoodFacts response", err)
	}
	return nil
}

func floatPtr(v float64) *float64 {
	return &v
}
