package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"nexonsite/internal/infra/blob/fs"
	"nexonsite/internal/infra/blob/memory"
	"nexonsite/internal/infra/blob/s3"
)

// S3Config addresses the S3 media bucket.
type S3Config = s3.Config

// Config selects and addresses the media blob backend.
type Config struct {
	Driver Driver `yaml:"driver"`
	// FSRoot is the directory used by the fs driver (default ./blobdata).
	FSRoot string `yaml:"fs_root"`
	// PublicBaseURL prefixes keys to form browser URLs for the fs and memory
	// drivers (default /media).
	PublicBaseURL string   `yaml:"public_base_url"`
	S3            S3Config `yaml:"s3"`
}

// ConfigFromEnv reads the blob environment variables:
//
//	NEXONSITE_BLOB_DRIVER: fs|s3|memory (default fs)
//	NEXONSITE_BLOB_FS_ROOT: directory root when driver=fs
//	NEXONSITE_BLOB_PUBLIC_URL: public base URL for stored media
//	NEXONSITE_BLOB_S3_BUCKET, NEXONSITE_BLOB_S3_REGION, NEXONSITE_BLOB_S3_ENDPOINT,
//	NEXONSITE_BLOB_S3_PATH_STYLE: S3 / MinIO addressing
func ConfigFromEnv() Config {
	public := os.Getenv("NEXONSITE_BLOB_PUBLIC_URL")
	return Config{
		Driver:        Driver(os.Getenv("NEXONSITE_BLOB_DRIVER")),
		FSRoot:        os.Getenv("NEXONSITE_BLOB_FS_ROOT"),
		PublicBaseURL: public,
		S3: S3Config{
			Bucket:        os.Getenv("NEXONSITE_BLOB_S3_BUCKET"),
			Region:        os.Getenv("NEXONSITE_BLOB_S3_REGION"),
			Endpoint:      os.Getenv("NEXONSITE_BLOB_S3_ENDPOINT"),
			PathStyle:     strings.EqualFold(os.Getenv("NEXONSITE_BLOB_S3_PATH_STYLE"), "true"),
			PublicBaseURL: public,
		},
	}
}

// Open constructs the store named by cfg.Driver, defaulting to fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot, cfg.PublicBaseURL)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
