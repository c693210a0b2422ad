package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"transitions/internal/blob/core"
	"transitions/internal/infra/blob/fs"
	memorystore "transitions/internal/infra/blob/memory"
	infraS3 "transitions/internal/infra/blob/s3"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvDriver      = "TRANSITIONS_BLOB_DRIVER"
	EnvFSRoot      = "TRANSITIONS_BLOB_FS_ROOT"
	EnvS3Bucket    = "TRANSITIONS_BLOB_S3_BUCKET"
	EnvS3Region    = "TRANSITIONS_BLOB_S3_REGION"
	EnvS3Endpoint  = "TRANSITIONS_BLOB_S3_ENDPOINT"
	EnvS3PathStyle = "TRANSITIONS_BLOB_S3_PATH_STYLE"
)

// DefaultFSRoot is used when the filesystem driver has no root configured.
const DefaultFSRoot = "./artifacts"

// S3Config configures the S3 backend.
type S3Config = infraS3.Config

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// ConfigFromEnv reads Config from the TRANSITIONS_BLOB_* variables.
func ConfigFromEnv() Config {
	return Config{
		Driver: Driver(strings.ToLower(strings.TrimSpace(os.Getenv(EnvDriver)))),
		FSRoot: os.Getenv(EnvFSRoot),
		S3: S3Config{
			Bucket:    os.Getenv(EnvS3Bucket),
			Region:    os.Getenv(EnvS3Region),
			Endpoint:  os.Getenv(EnvS3Endpoint),
			PathStyle: strings.EqualFold(os.Getenv(EnvS3PathStyle), "true"),
		},
	}
}

// Open selects a Store from the environment.
//
//	TRANSITIONS_BLOB_DRIVER: fs|s3|memory (default fs)
//	TRANSITIONS_BLOB_FS_ROOT: directory root when driver=fs (default ./artifacts)
//	TRANSITIONS_BLOB_S3_BUCKET, _REGION, _ENDPOINT, _PATH_STYLE: s3 settings
func Open(ctx context.Context) (Store, error) {
	return New(ctx, ConfigFromEnv())
}

// New constructs the Store described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		root := cfg.FSRoot
		if root == "" {
			root = DefaultFSRoot
		}
		return NewFilesystem(root)
	case DriverS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("%s required for s3 driver", EnvS3Bucket)
		}
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem returns a Store rooted at dir, creating it if needed.
func NewFilesystem(dir string) (Store, error) { return fs.New(dir) }

// NewMemory returns a process-local Store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns a Store backed by an S3-compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMockS3ForTests returns an S3 Store served by an in-process fake.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }

var _ core.Store = (*fs.Store)(nil)
