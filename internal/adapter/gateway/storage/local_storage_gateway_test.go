package storage

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
)

func newLocalGateway(t *testing.T) *LocalStorageGateway {
	t.Helper()
	g, err := NewLocalStorageGateway(afero.NewMemMapFs(), "/workspaces")
	require.NoError(t, err)
	return g
}

func TestLocalStorageGateway_SaveAndLoad(t *testing.T) {
	g := newLocalGateway(t)
	ctx := context.Background()

	content := []byte(`{"end_to_end_context": "x", "agents": []}`)
	meta, err := g.SaveArtifact(ctx, output.SaveArtifactRequest{
		Slug:        "build_a_worker",
		Name:        "blueprint.json",
		Type:        output.ArtifactTypeBlueprint,
		Content:     content,
		ContentType: "application/json",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), meta.Size)
	assert.Equal(t, "/workspaces/build_a_worker/blueprint.json", meta.StoragePath)

	loaded, err := g.LoadArtifact(ctx, "build_a_worker", "blueprint.json")
	require.NoError(t, err)
	assert.Equal(t, content, loaded)
}

func TestLocalStorageGateway_SaveOverwrites(t *testing.T) {
	g := newLocalGateway(t)
	ctx := context.Background()

	for _, v := range []string{"v1", "v2"} {
		_, err := g.SaveArtifact(ctx, output.SaveArtifactRequest{
			Slug: "s", Name: "worker.py", Type: output.ArtifactTypeCode, Content: []byte(v),
		})
		require.NoError(t, err)
	}

	loaded, err := g.LoadArtifact(ctx, "s", "worker.py")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), loaded)

	// The manifest records one entry per name, not per write
	list, err := g.ListArtifacts(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLocalStorageGateway_ListArtifacts(t *testing.T) {
	g := newLocalGateway(t)
	ctx := context.Background()

	names := map[string]output.ArtifactType{
		"blueprint.json":         output.ArtifactTypeBlueprint,
		"worker.py":              output.ArtifactTypeCode,
		"validation_report.json": output.ArtifactTypeReport,
	}
	for name, typ := range names {
		_, err := g.SaveArtifact(ctx, output.SaveArtifactRequest{
			Slug: "bundle", Name: name, Type: typ, Content: []byte("data"),
		})
		require.NoError(t, err)
	}

	list, err := g.ListArtifacts(ctx, "bundle")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, meta := range list {
		assert.Equal(t, names[meta.Name], meta.Type)
	}
}

func TestLocalStorageGateway_Exists(t *testing.T) {
	g := newLocalGateway(t)
	ctx := context.Background()

	ok, err := g.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.SaveArtifact(ctx, output.SaveArtifactRequest{
		Slug: "present", Name: "a.txt", Type: output.ArtifactTypeCode, Content: []byte("x"),
	})
	require.NoError(t, err)

	ok, err = g.Exists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalStorageGateway_LoadMissing(t *testing.T) {
	g := newLocalGateway(t)

	_, err := g.LoadArtifact(context.Background(), "nope", "nothing.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLocalStorageGateway_RequiresSlugAndName(t *testing.T) {
	g := newLocalGateway(t)

	_, err := g.SaveArtifact(context.Background(), output.SaveArtifactRequest{Name: "x"})
	assert.Error(t, err)
	_, err = g.SaveArtifact(context.Background(), output.SaveArtifactRequest{Slug: "x"})
	assert.Error(t, err)
}
