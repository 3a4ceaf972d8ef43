package entities

// RecognitionStatus describes the outcome of a photo recognition call
type RecognitionStatus string

const (
	RecognitionSuccess     RecognitionStatus = "SUCCESS"
	RecognitionPartial     RecognitionStatus = "PARTIAL"
	RecognitionFailed      RecognitionStatus = "FAILED"
	RecognitionTimeout     RecognitionStatus = "TIMEOUT"
	RecognitionRateLimited RecognitionStatus = "RATE_LIMITED"
)

// RecognizedFoodItem is a single food item detected on a meal photo
type RecognizedFoodItem struct {
	Label       string  `json:"label"`
	DisplayName string  `json:"display_name"`
	QuantityG   float64 `json:"quantity_g"`
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category,omitempty"`
}

// FoodRecognitionResult is the ordered output of a recognition adapter.
// Items must be non-empty when Status is SUCCESS.
type FoodRecognitionResult struct {
	Items            []RecognizedFoodItem `json:"items"`
	DishName         string               `json:"dish_name,omitempty"`
	ImageURL         string               `json:"image_url,omitempty"`
	Confidence       float64              `json:"confidence"`
	ProcessingTimeMS int64                `json:"processing_time_ms"`
	Status           RecognitionStatus    `json:"status"`
}
