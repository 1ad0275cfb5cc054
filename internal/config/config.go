// Package config holds the process-wide configuration for the worker.
package config

import "os"

// Storage configuration environment variables
const (
	EnvEndpointURL     = "BUCKET_ENDPOINT_URL"
	EnvAccessKeyID     = "BUCKET_ACCESS_KEY_ID"
	EnvSecretAccessKey = "BUCKET_SECRET_ACCESS_KEY"
	EnvBucketName      = "BUCKET_NAME"
	EnvRegion          = "AWS_REGION"
)

// Defaults
const (
	DefaultBucket = "comfy-outputs"
	DefaultRegion = "us-east-1"
)

// Storage is the object storage configuration for uploading generated images.
// It is read once at startup and passed by value, never looked up ambiently.
type Storage struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
}

// StorageFromEnv reads the storage configuration from the environment
func StorageFromEnv() Storage {
	return Storage{
		EndpointURL:     os.Getenv(EnvEndpointURL),
		AccessKeyID:     os.Getenv(EnvAccessKeyID),
		SecretAccessKey: os.Getenv(EnvSecretAccessKey),
		Bucket:          envDefault(EnvBucketName, DefaultBucket),
		Region:          envDefault(EnvRegion, DefaultRegion),
	}
}

// Enabled reports whether the configuration is complete enough to upload.
// A missing endpoint or either credential disables the upload path.
func (s Storage) Enabled() bool {
	return s.EndpointURL != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}
