package deepdash

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// Config holds the dashboard-specific configuration.
type Config struct {
	DetectEndpoint string
	ExportFileName string
	RateLimit      *RateLimitConfig
}

// RateLimitConfig defines rate limiting for the detection client.
type RateLimitConfig struct {
	Rate  rate.Limit // Requests per second
	Burst int        // Maximum burst size
}

// LoadConfig loads dashboard-specific configuration from environment variables.
func LoadConfig() (*Config, error) {
	endpoint := os.Getenv("DETECT_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("DETECT_ENDPOINT environment variable is required")
	}

	exportFileName := os.Getenv("EXPORT_FILE_NAME")
	if exportFileName == "" {
		exportFileName = "deepfake_detections.csv"
	}

	rateLimit, err := parseRateLimit(os.Getenv("DETECT_RATE_LIMIT"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DETECT_RATE_LIMIT: %v", err)
	}

	return &Config{
		DetectEndpoint: endpoint,
		ExportFileName: exportFileName,
		RateLimit:      rateLimit,
	}, nil
}

// parseRateLimit parses a "rate:burst" pair, e.g. "2:5".
func parseRateLimit(input string) (*RateLimitConfig, error) {
	if input == "" {
		return nil, nil // No rate limit configured
	}
	parts := strings.Split(input, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid rate limit entry: %s", input)
	}
	rateValue, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rate value in entry '%s': %v", input, err)
	}
	burstValue, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid burst value in entry '%s': %v", input, err)
	}
	return &RateLimitConfig{
		Rate:  rate.Limit(rateValue),
		Burst: burstValue,
	}, nil
}
