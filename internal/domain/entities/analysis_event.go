package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// AnalysisEventType represents the type of analysis lifecycle event
type AnalysisEventType string

const (
	AnalysisEventTypeCompleted AnalysisEventType = "analysis_completed"
	AnalysisEventTypePartial   AnalysisEventType = "analysis_partial"
	AnalysisEventTypeFailed    AnalysisEventType = "analysis_failed"
	AnalysisEventTypeConverted AnalysisEventType = "analysis_converted"
	AnalysisEventTypeExpired   AnalysisEventType = "analysis_expired"
)

// AnalysisEvent is a real-time notification about an analysis reaching
// a lifecycle milestone; consumers drive UI refresh and audit trails.
type AnalysisEvent struct {
	ID         string            `json:"id"`
	AnalysisID string            `json:"analysis_id"`
	UserID     string            `json:"user_id"`
	EventType  AnalysisEventType `json:"event_type"`
	Source     AnalysisSource    `json:"source"`
	Timestamp  time.Time         `json:"timestamp"`
	MealName   string            `json:"meal_name,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
}

// NewAnalysisEvent creates a new analysis lifecycle event
func NewAnalysisEvent(analysisID, userID string, eventType AnalysisEventType, source AnalysisSource, mealName string, confidence float64) *AnalysisEvent {
	return &AnalysisEvent{
		ID:         generateEventID(),
		AnalysisID: analysisID,
		UserID:     userID,
		EventType:  eventType,
		Source:     source,
		Timestamp:  time.Now().UTC(),
		MealName:   mealName,
		Confidence: confidence,
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based if crypto/rand fails
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
