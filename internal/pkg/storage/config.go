package storage

import (
	"errors"
	"fmt"

	"github.com/DataFrontierLabs/STLPrime/internal/pkg/env"
)

// Config holds object storage configuration. Model files and preview images
// live in a single bucket under separate key prefixes.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
}

// LoadConfig loads object storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
	}

	if config.AccessKeyID == "" {
		return nil, errors.New("S3_ACCESS_KEY_ID is required")
	}
	if config.SecretAccessKey == "" {
		return nil, errors.New("S3_SECRET_ACCESS_KEY is required")
	}
	if config.BucketName == "" {
		return nil, errors.New("S3_BUCKET_NAME is required")
	}

	return config, nil
}

// ModelObjectKey generates the S3 object key for an uploaded model file.
func (c *Config) ModelObjectKey(modelUUID, fileExtension string, year, month int) string {
	// Format: models/YYYY/MM/UUID.ext
	return fmt.Sprintf("models/%04d/%02d/%s%s", year, month, modelUUID, fileExtension)
}

// PreviewObjectKey generates the S3 object key for a preview image variant.
func (c *Config) PreviewObjectKey(modelUUID, variant, fileExtension string) string {
	// Format: previews/UUID/variant.ext
	return fmt.Sprintf("previews/%s/%s%s", modelUUID, variant, fileExtension)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// GetBucketName returns the bucket name as configured (no automatic prefixing)
func (c *Config) GetBucketName() string {
	return c.BucketName
}
