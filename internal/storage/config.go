package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the storage-related configuration.
type Config struct {
	Backend string

	// AWS backend.
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	Table           string

	// Local backend.
	LocalPath string

	// Page caps for listing and scanning. 0 means unbounded.
	ListMaxPages int
	ScanMaxPages int
}

// LoadConfig loads storage configuration from environment variables.
func LoadConfig() (*Config, error) {
	backend := os.Getenv("STORAGE_BACKEND")
	if backend == "" {
		backend = "aws"
	}

	config := &Config{
		Backend:      backend,
		ListMaxPages: 1,
		ScanMaxPages: 1,
	}

	switch backend {
	case "aws":
		config.Region = os.Getenv("AWS_REGION")
		if config.Region == "" {
			return nil, fmt.Errorf("AWS_REGION is required for the aws backend")
		}
		config.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		config.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		if config.AccessKeyID == "" || config.SecretAccessKey == "" {
			return nil, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for the aws backend")
		}
	case "local":
		config.LocalPath = os.Getenv("LOCAL_DB_PATH")
		if config.LocalPath == "" {
			return nil, fmt.Errorf("LOCAL_DB_PATH is required for the local backend")
		}
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}

	config.Bucket = os.Getenv("S3_BUCKET")
	if config.Bucket == "" {
		config.Bucket = "deepfake-uploads"
	}
	config.Prefix = os.Getenv("S3_PREFIX")
	if config.Prefix == "" {
		config.Prefix = "uploads/"
	}
	config.Table = os.Getenv("DYNAMODB_TABLE")
	if config.Table == "" {
		config.Table = "DeepfakeDetections"
	}

	if v := os.Getenv("LIST_MAX_PAGES"); v != "" {
		pages, err := strconv.Atoi(v)
		if err != nil || pages < 0 {
			return nil, fmt.Errorf("invalid LIST_MAX_PAGES value: %s", v)
		}
		config.ListMaxPages = pages
	}
	if v := os.Getenv("SCAN_MAX_PAGES"); v != "" {
		pages, err := strconv.Atoi(v)
		if err != nil || pages < 0 {
			return nil, fmt.Errorf("invalid SCAN_MAX_PAGES value: %s", v)
		}
		config.ScanMaxPages = pages
	}

	return config, nil
}
