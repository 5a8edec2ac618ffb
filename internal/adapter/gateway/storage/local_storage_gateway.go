package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/infrastructure/persistence/file"
)

const manifestName = ".artifacts.json"

// LocalStorageGateway implements StorageGateway on the local workspace.
// Bundle layout: <workspacesDir>/<slug>/<name>, with a hidden manifest
// per bundle recording type and size for each artifact. Writes go
// through temp-file + rename so a bundle never holds a torn file.
type LocalStorageGateway struct {
	fs            afero.Fs
	workspacesDir string
	mu            sync.Mutex // guards manifest read-modify-write
}

// NewLocalStorageGateway creates a workspace-backed storage gateway
func NewLocalStorageGateway(fs afero.Fs, workspacesDir string) (*LocalStorageGateway, error) {
	if err := fs.MkdirAll(workspacesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspaces directory: %w", err)
	}
	return &LocalStorageGateway{fs: fs, workspacesDir: workspacesDir}, nil
}

// SaveArtifact writes one artifact into the run's bundle
func (g *LocalStorageGateway) SaveArtifact(ctx context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	if req.Slug == "" || req.Name == "" {
		return nil, fmt.Errorf("save artifact: slug and name are required")
	}

	path := g.ArtifactPath(req.Slug, req.Name)
	if err := file.WriteFileAtomic(g.fs, path, req.Content); err != nil {
		return nil, fmt.Errorf("write artifact %s: %w", req.Name, err)
	}

	meta := output.ArtifactMetadata{
		Slug:        req.Slug,
		Name:        req.Name,
		Type:        req.Type,
		StoragePath: path,
		Size:        int64(len(req.Content)),
		UploadedAt:  time.Now(),
		Metadata:    req.Metadata,
	}

	if err := g.updateManifest(req.Slug, meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadArtifact reads an artifact back from the bundle
func (g *LocalStorageGateway) LoadArtifact(ctx context.Context, slug, name string) ([]byte, error) {
	data, err := afero.ReadFile(g.fs, g.ArtifactPath(slug, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact not found: %s/%s", slug, name)
		}
		return nil, fmt.Errorf("read artifact %s/%s: %w", slug, name, err)
	}
	return data, nil
}

// ListArtifacts returns the bundle's manifest entries
func (g *LocalStorageGateway) ListArtifacts(ctx context.Context, slug string) ([]*output.ArtifactMetadata, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	manifest, err := g.readManifest(slug)
	if err != nil {
		return nil, err
	}

	list := make([]*output.ArtifactMetadata, 0, len(manifest))
	for _, meta := range manifest {
		m := meta
		list = append(list, &m)
	}
	return list, nil
}

// Exists reports whether a bundle directory exists for the slug
func (g *LocalStorageGateway) Exists(ctx context.Context, slug string) (bool, error) {
	info, err := g.fs.Stat(filepath.Join(g.workspacesDir, slug))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat workspace %s: %w", slug, err)
	}
	return info.IsDir(), nil
}

// ArtifactPath resolves the artifact's location in the workspace
func (g *LocalStorageGateway) ArtifactPath(slug, name string) string {
	return filepath.Join(g.workspacesDir, slug, name)
}

func (g *LocalStorageGateway) updateManifest(slug string, meta output.ArtifactMetadata) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	manifest, err := g.readManifest(slug)
	if err != nil {
		return err
	}
	manifest[meta.Name] = meta

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(g.workspacesDir, slug, manifestName)
	if err := file.WriteFileAtomic(g.fs, path, data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// readManifest loads the bundle manifest; missing file means empty
func (g *LocalStorageGateway) readManifest(slug string) (map[string]output.ArtifactMetadata, error) {
	path := filepath.Join(g.workspacesDir, slug, manifestName)
	data, err := afero.ReadFile(g.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]output.ArtifactMetadata{}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest map[string]output.ArtifactMetadata
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest == nil {
		manifest = map[string]output.ArtifactMetadata{}
	}
	return manifest, nil
}
