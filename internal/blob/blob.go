// Package blob re-exports the document store abstractions and opens the
// configured backend.
package blob

import (
	"context"
	"fmt"
	"strings"

	"examist/internal/blob/core"
	"examist/internal/blob/memory"
	"examist/internal/blob/s3"
	"examist/internal/config"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverS3     = core.DriverS3
	DriverMemory = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// Open constructs the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverMemory, "":
		return memory.New(), nil
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memory.New() }

// NewMockS3 returns an S3 Store backed by a fake transport.
func NewMockS3() Store { return s3.NewMock() }

// PaperKey is the document key of the paper sitting identified by course
// code, year and period.
func PaperKey(code string, year int, period string) string {
	return fmt.Sprintf("papers/%s/%d/%s.pdf", strings.ToUpper(code), year, strings.ToLower(period))
}
