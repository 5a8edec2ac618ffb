package storage

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
)

// NewStorageGateway creates a storage gateway for the configured
// backend. Supported types: local, s3.
func NewStorageGateway(ctx context.Context, storageType, workspacesDir string, s3cfg S3Config) (output.StorageGateway, error) {
	switch storageType {
	case "", "local":
		return NewLocalStorageGateway(afero.NewOsFs(), workspacesDir)
	case "s3":
		if s3cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires a bucket name")
		}
		return NewS3StorageGateway(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s (supported: local, s3)", storageType)
	}
}
