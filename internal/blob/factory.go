package blob

import (
	"context"
	"fmt"

	fsstore "redcapdl/internal/infra/blob/fs"
	memorystore "redcapdl/internal/infra/blob/memory"
	s3store "redcapdl/internal/infra/blob/s3"
)

// S3Config re-exports the S3 driver configuration.
type S3Config = s3store.Config

// Config selects and configures a blob driver.
type Config struct {
	Driver Driver
	// FSRoot is the artifact directory when Driver is fs.
	FSRoot string
	S3     S3Config
}

// Open constructs the Store selected by cfg. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fsstore.New(cfg.FSRoot)
	case DriverS3:
		return s3store.New(ctx, cfg.S3)
	case DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewMockS3ForTests returns an S3 Store backed by a fake transport.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
