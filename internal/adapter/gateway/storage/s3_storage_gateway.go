package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
)

// S3StorageGateway implements StorageGateway against AWS S3.
// Key layout: s3://<bucket>/<prefix>/runs/<slug>/<name>, with artifact
// type and custom metadata carried as S3 object metadata.
type S3StorageGateway struct {
	client S3API
	bucket string
	prefix string
}

// S3Config holds S3 storage gateway configuration
type S3Config struct {
	Bucket string // S3 bucket name
	Prefix string // Optional key prefix
	Region string // AWS region, default credentials chain when empty
}

// NewS3StorageGateway creates an S3-backed storage gateway using the
// default AWS credential chain
func NewS3StorageGateway(ctx context.Context, cfg S3Config) (*S3StorageGateway, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	return &S3StorageGateway{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// NewS3StorageGatewayWithClient injects a custom S3 client, used by
// tests with the in-memory mock
func NewS3StorageGatewayWithClient(client S3API, bucket, prefix string) *S3StorageGateway {
	return &S3StorageGateway{client: client, bucket: bucket, prefix: prefix}
}

// SaveArtifact uploads one artifact into the run's bundle
func (g *S3StorageGateway) SaveArtifact(ctx context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	if req.Slug == "" || req.Name == "" {
		return nil, fmt.Errorf("save artifact: slug and name are required")
	}

	key := g.artifactKey(req.Slug, req.Name)

	s3Meta := map[string]string{
		"artifact-type": string(req.Type),
		"uploaded-at":   time.Now().Format(time.RFC3339),
	}
	for k, v := range req.Metadata {
		s3Meta[k] = v
	}

	input := &s3.PutObjectInput{
		Bucket:   aws.String(g.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(req.Content),
		Metadata: s3Meta,
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	if _, err := g.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("upload artifact to S3: %w", err)
	}

	return &output.ArtifactMetadata{
		Slug:        req.Slug,
		Name:        req.Name,
		Type:        req.Type,
		StoragePath: fmt.Sprintf("s3://%s/%s", g.bucket, key),
		Size:        int64(len(req.Content)),
		UploadedAt:  time.Now(),
		Metadata:    req.Metadata,
	}, nil
}

// LoadArtifact downloads an artifact from the bundle
func (g *S3StorageGateway) LoadArtifact(ctx context.Context, slug, name string) ([]byte, error) {
	key := g.artifactKey(slug, name)

	obj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download artifact from S3: %w", err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact body: %w", err)
	}
	return data, nil
}

// ListArtifacts lists the bundle's objects for a slug
func (g *S3StorageGateway) ListArtifacts(ctx context.Context, slug string) ([]*output.ArtifactMetadata, error) {
	prefix := g.artifactKey(slug, "")

	listOutput, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list S3 objects: %w", err)
	}

	var list []*output.ArtifactMetadata
	for _, obj := range listOutput.Contents {
		key := aws.ToString(obj.Key)
		name := strings.TrimPrefix(key, prefix)
		if name == "" {
			continue
		}

		meta := &output.ArtifactMetadata{
			Slug:        slug,
			Name:        name,
			StoragePath: fmt.Sprintf("s3://%s/%s", g.bucket, key),
			Size:        aws.ToInt64(obj.Size),
		}
		if obj.LastModified != nil {
			meta.UploadedAt = *obj.LastModified
		}
		list = append(list, meta)
	}

	return list, nil
}

// Exists reports whether any object exists under the slug's prefix
func (g *S3StorageGateway) Exists(ctx context.Context, slug string) (bool, error) {
	listOutput, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(g.bucket),
		Prefix:  aws.String(g.artifactKey(slug, "")),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list S3 objects: %w", err)
	}
	return len(listOutput.Contents) > 0, nil
}

// ArtifactPath is empty for the S3 backend; artifacts have no local
// filesystem location
func (g *S3StorageGateway) ArtifactPath(slug, name string) string {
	return ""
}

func (g *S3StorageGateway) artifactKey(slug, name string) string {
	key := path.Join("runs", slug) + "/"
	if g.prefix != "" {
		key = strings.TrimSuffix(g.prefix, "/") + "/" + key
	}
	if name != "" {
		key += name
	}
	return key
}
