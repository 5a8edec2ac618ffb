package output

import (
	"context"
	"time"
)

// StorageGateway persists the per-run artifact bundle. Artifacts are
// write-once per run, keyed by the run's slug; implementations cover
// the local workspace and cloud storage (S3).
type StorageGateway interface {
	// SaveArtifact persists one artifact for a run
	SaveArtifact(ctx context.Context, req SaveArtifactRequest) (*ArtifactMetadata, error)

	// LoadArtifact retrieves an artifact by slug and name
	LoadArtifact(ctx context.Context, slug, name string) ([]byte, error)

	// ListArtifacts lists stored artifacts for a run's slug
	ListArtifacts(ctx context.Context, slug string) ([]*ArtifactMetadata, error)

	// Exists reports whether any artifact bundle exists for the slug
	Exists(ctx context.Context, slug string) (bool, error)

	// ArtifactPath resolves the local path an artifact would occupy;
	// empty for non-filesystem backends
	ArtifactPath(slug, name string) string
}

// ArtifactType classifies bundle entries
type ArtifactType string

const (
	ArtifactTypeCode      ArtifactType = "code"      // Generated agent code
	ArtifactTypeBlueprint ArtifactType = "blueprint" // blueprint.json
	ArtifactTypeTrace     ArtifactType = "trace"     // Per-stage trace streams
	ArtifactTypeReport    ArtifactType = "report"    // QA validation report
	ArtifactTypeFlowchart ArtifactType = "flowchart" // Workflow flowchart
)

// SaveArtifactRequest carries one artifact write
type SaveArtifactRequest struct {
	Slug        string            // Run workspace key
	Name        string            // File name inside the bundle
	Type        ArtifactType      // Artifact classification
	Content     []byte            // Artifact content
	ContentType string            // MIME type (optional)
	Metadata    map[string]string // Additional metadata
}

// ArtifactMetadata describes a stored artifact
type ArtifactMetadata struct {
	Slug        string            // Run workspace key
	Name        string            // File name inside the bundle
	Type        ArtifactType      // Artifact classification
	StoragePath string            // Backend path (file path or s3://...)
	Size        int64             // Size in bytes
	UploadedAt  time.Time         // Write timestamp
	Metadata    map[string]string // Additional metadata
}
