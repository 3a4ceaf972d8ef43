package usda

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giamma80/Nutrifit-mobile-sub000/pkg/config"
	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&config.USDAConfig{BaseURL: serverURL, APIKey: "test-key", TimeoutSeconds: 2})
}

func TestSearchFoods_ParsesHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/foods/search", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "banana", r.URL.Query().Get("query"))
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		w.Write([]byte(`{"foods": [
			{"fdcId": 1102653, "description": "Banana, raw", "dataType": "SR Legacy"}
		]}`))
	}))
	defer server.Close()

	hits, err := newTestClient(server.URL).SearchFoods(context.Background(), "banana", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1102653), hits[0].FdcID)
	assert.Equal(t, "Banana, raw", hits[0].Description)
}

func TestSearchFoods_ClampsLimit(t *testing.T) {
	var pageSize string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageSize = r.URL.Query().Get("pageSize")
		w.Write([]byte(`{"foods": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.SearchFoods(context.Background(), "banana", 50)
	require.NoError(t, err)
	assert.Equal(t, "5", pageSize)

	_, err = client.SearchFoods(context.Background(), "banana", 0)
	require.NoError(t, err)
	assert.Equal(t, "1", pageSize)
}

func TestSearchFoods_EmptyResultIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"foods": []}`))
	}))
	defer server.Close()

	hits, err := newTestClient(server.URL).SearchFoods(context.Background(), "nothing matches", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchFoods_EmptyQueryRejected(t *testing.T) {
	_, err := newTestClient("http://unused.example").SearchFoods(context.Background(), "", 1)
	assert.True(t, apperrors.IsValidation(err))
}

func TestGetFood_ParsesNutrients(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/food/1102653", r.URL.Path)
		w.Write([]byte(`{
			"fdcId": 1102653,
			"description": "Banana, raw",
			"foodNutrients": [
				{"nutrient": {"number": "208", "name": "Energy", "unitName": "kcal"}, "amount": 89},
				{"nutrient": {"number": "203", "name": "Protein", "unitName": "g"}, "amount": 1.1}
			]
		}`))
	}))
	defer server.Close()

	detail, err := newTestClient(server.URL).GetFood(context.Background(), 1102653)
	require.NoError(t, err)

	assert.Equal(t, "Banana, raw", detail.Description)
	require.Len(t, detail.Nutrients, 2)
	assert.Equal(t, "208", detail.Nutrients[0].Number)
	assert.Equal(t, 89.0, detail.Nutrients[0].Amount)

	macros := detail.ExtractMacros()
	assert.Equal(t, 89, macros.Calories)
	assert.Equal(t, 1.1, macros.Protein)
}

func TestGetFood_RateLimitSurfacesTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.retryCfg.MaxAttempts = 1

	_, err := client.GetFood(context.Background(), 42)
	require.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestSearchFoods_ConcurrentFirstUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"foods": [{"fdcId": 1, "description": "Apple, raw"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	// Mirrors the photo pipeline, where several lookups race on the
	// lazily initialized client metrics.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := client.SearchFoods(context.Background(), "apple", 1)
			assert.NoError(t, err)
			assert.Len(t, hits, 1)
		}()
	}
	wg.Wait()
}
