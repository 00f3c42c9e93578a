package apis

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/mlsec-tools/deepdash/internal/storage/models"
)

// Detector defines the methods that any detection API client must implement.
type Detector interface {
	// Detect submits a file URL for analysis and returns the parsed result.
	Detect(ctx context.Context, fileURL string) (*models.DetectionResult, error)
	// SetRateLimiter sets the rate limiter for the client.
	SetRateLimiter(limiter *RateLimiter)
	// ProviderName returns the name of the detection provider.
	ProviderName() string
}

type RateLimiter struct {
	Limiter *rate.Limiter
	Burst   int
	Rate    rate.Limit // Requests per second
}
