package storage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	internalConfig "github.com/docmill/docmill/internal/config"
	"github.com/docmill/docmill/internal/logging"
)

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	Backend          string // "filesystem" or "s3"
	DataDir          string
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3AccessKeyID    string
	S3SecretKey      string
	S3ForcePathStyle bool
}

// GetStorageConfig reads storage configuration from environment variables
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:          internalConfig.Get("STORAGE_BACKEND", "filesystem"),
		DataDir:          internalConfig.Get("DATA_DIR", "/data"),
		S3Bucket:         internalConfig.Get("S3_BUCKET", ""),
		S3Region:         internalConfig.Get("S3_REGION", "us-east-1"),
		S3Endpoint:       internalConfig.Get("S3_ENDPOINT", ""),
		S3AccessKeyID:    internalConfig.Get("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:      internalConfig.Get("S3_SECRET_ACCESS_KEY", ""),
		S3ForcePathStyle: internalConfig.GetBool("S3_FORCE_PATH_STYLE", false),
	}
}

// Global storage backend instance
var globalBackend BackendWithInfo
var globalConfig StorageConfig

// Initialize sets up the global storage backend based on configuration
func Initialize() error {
	cfg := GetStorageConfig()
	globalConfig = cfg

	var backend BackendWithInfo
	var err error

	switch cfg.Backend {
	case "s3":
		backend, err = createS3Backend(cfg)
		if err != nil {
			return fmt.Errorf("failed to create S3 backend: %w", err)
		}
		logging.Logf("[STORAGE] Initialized S3 backend: s3://%s (endpoint: %s)", cfg.S3Bucket, cfg.S3Endpoint)

	case "filesystem":
		backend = NewFilesystemBackend(cfg.DataDir)
		logging.Logf("[STORAGE] Initialized filesystem backend: %s", cfg.DataDir)

	default:
		return fmt.Errorf("unknown storage backend: %s (valid options: filesystem, s3)", cfg.Backend)
	}

	globalBackend = backend
	return nil
}

// GetBackend returns the initialized global storage backend
func GetBackend() BackendWithInfo {
	if globalBackend == nil {
		logging.Logf("[STORAGE] Warning: storage not initialized, falling back to filesystem")
		return NewFilesystemBackend(internalConfig.Get("DATA_DIR", "/data"))
	}
	return globalBackend
}

// GetStorageType returns the type of the current storage backend
func GetStorageType() string {
	return globalConfig.Backend
}

// createS3Backend creates and configures an S3 backend
func createS3Backend(cfg StorageConfig) (BackendWithInfo, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for S3 backend")
	}

	var awsCfg aws.Config
	var err error

	if cfg.S3AccessKeyID != "" && cfg.S3SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKeyID,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		// Default credential chain (IAM roles, etc.)
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Client *s3.Client
	if cfg.S3Endpoint != "" {
		if _, err := url.Parse(cfg.S3Endpoint); err != nil {
			return nil, fmt.Errorf("invalid S3_ENDPOINT: %w", err)
		}
		s3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = cfg.S3ForcePathStyle
		})
	} else {
		s3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.S3ForcePathStyle
		})
	}

	// Probe the bucket before accepting any work.
	ctx := context.Background()
	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.S3Bucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %s: %w", cfg.S3Bucket, err)
	}

	return NewS3Backend(s3Client, cfg.S3Bucket), nil
}

// SetBackend swaps the global backend, for tests.
func SetBackend(b BackendWithInfo) {
	globalBackend = b
}
