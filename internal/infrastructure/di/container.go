// Package di assembles the application graph: configuration in,
// a ready orchestrator out.
package di

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentfoundry/agentfactory/internal/adapter/gateway/model"
	"github.com/agentfoundry/agentfactory/internal/adapter/gateway/sandbox"
	"github.com/agentfoundry/agentfactory/internal/adapter/gateway/storage"
	"github.com/agentfoundry/agentfactory/internal/app"
	"github.com/agentfoundry/agentfactory/internal/app/config"
	"github.com/agentfoundry/agentfactory/internal/application/agent"
	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/application/usecase/pipeline"
	"github.com/agentfoundry/agentfactory/internal/domain/repository"
	"github.com/agentfoundry/agentfactory/internal/infrastructure/persistence/sqlite"
	"github.com/agentfoundry/agentfactory/internal/infrastructure/trace"
	"github.com/agentfoundry/agentfactory/internal/interface/flowchart"
)

// Container owns the wired dependencies and their lifecycle
type Container struct {
	cfg config.Config
	db  *sql.DB

	runs    repository.RunRepository
	reviews repository.ReviewRepository
	gateway output.ModelGateway
	sandbox output.SandboxGateway
	storage output.StorageGateway
	traces  output.TraceWriterFactory

	orchestrator *pipeline.Orchestrator
}

// NewContainer builds the full dependency graph from configuration
func NewContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	for _, dir := range []string{cfg.Home(), cfg.WorkspacesDir(), filepath.Dir(cfg.DBPath())} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath()+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlite.NewMigrator(db).Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	gw, err := model.NewModelGateway(ctx, cfg.ModelBackend(), cfg.ModelName())
	if err != nil {
		db.Close()
		return nil, err
	}

	store, err := storage.NewStorageGateway(ctx, cfg.StorageType(), cfg.WorkspacesDir(), storage.S3Config{
		Bucket: cfg.S3Bucket(),
		Prefix: cfg.S3Prefix(),
		Region: cfg.S3Region(),
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	profiles, err := agent.LoadProfiles()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &Container{
		cfg:     cfg,
		db:      db,
		runs:    sqlite.NewRunRepository(db),
		reviews: sqlite.NewReviewRepository(db),
		gateway: gw,
		sandbox: sandbox.NewLocalSandbox(cfg.SandboxBin(), cfg.SandboxTimeout()),
		storage: store,
		traces:  trace.NewFactory(cfg.WorkspacesDir(), app.GetLogger()),
	}

	c.orchestrator = pipeline.NewOrchestrator(
		cfg, c.runs, c.reviews, c.gateway, c.sandbox, c.storage, c.traces,
		profiles, flowchart.NewRenderer(),
	)

	return c, nil
}

// Orchestrator returns the wired pipeline orchestrator
func (c *Container) Orchestrator() *pipeline.Orchestrator {
	return c.orchestrator
}

// Config returns the container's configuration
func (c *Container) Config() config.Config {
	return c.cfg
}

// ModelGateway returns the wired model gateway
func (c *Container) ModelGateway() output.ModelGateway {
	return c.gateway
}

// Close releases held resources
func (c *Container) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
