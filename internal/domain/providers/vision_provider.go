package providers

import (
	"context"
)

// VisionCompletionProvider is a vision-capable text-completion endpoint.
// It accepts a prompt plus an image URL and returns the raw text of the
// model's reply; all parsing happens in the caller.
type VisionCompletionProvider interface {
	Complete(ctx context.Context, prompt, imageURL string) (string, error)

	// ModelVersion identifies the underlying model for provenance metadata
	ModelVersion() string
}
