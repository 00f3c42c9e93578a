package apis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlsec-tools/deepdash/internal/storage/models"
)

// RemoteError reports a failed exchange with the detection endpoint: a
// non-200 status or a body that did not parse as JSON. Body carries the raw
// response text so the operator sees exactly what the service returned.
type RemoteError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("detection endpoint returned status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("detection endpoint returned status %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// DeepCheckClient implements the Detector interface for the deepfake
// detection HTTP endpoint.
type DeepCheckClient struct {
	Endpoint    string
	Client      *http.Client
	RateLimiter *RateLimiter
}

// NewDeepCheckClient initializes a new DeepCheckClient.
func NewDeepCheckClient(endpoint string) *DeepCheckClient {
	return &DeepCheckClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SetRateLimiter sets the rate limiter for the DeepCheckClient.
func (dc *DeepCheckClient) SetRateLimiter(limiter *RateLimiter) {
	dc.RateLimiter = limiter
}

// ProviderName returns the name of the detection provider.
func (dc *DeepCheckClient) ProviderName() string {
	return "DeepCheck"
}

// Detect POSTs {"file_url": ...} to the endpoint and parses the response.
// A 200 body must be a JSON object; verdict and confidence are lifted out,
// all fields are kept for display. Any other status surfaces as a
// *RemoteError carrying the verbatim body.
func (dc *DeepCheckClient) Detect(ctx context.Context, fileURL string) (*models.DetectionResult, error) {
	if dc.RateLimiter != nil {
		if err := dc.RateLimiter.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %v", err)
		}
	}

	payload, err := json.Marshal(map[string]string{"file_url": fileURL})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dc.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dc.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read detection response: %w", err)
	}

	logrus.WithField("status", resp.StatusCode).Info("Detection API response")

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(raw), Err: err}
	}

	result := &models.DetectionResult{Fields: fields}
	if verdict, ok := fields["verdict"].(string); ok {
		result.Verdict = verdict
	}
	if confidence, ok := fields["confidence"].(float64); ok {
		result.Confidence = confidence
	}

	return result, nil
}
