package config

import (
	"path/filepath"
	"time"
)

// Config provides read-only access to application configuration.
// This interface abstracts the configuration source (JSON, ENV,
// defaults) so the application layer doesn't depend on infrastructure
// details.
type Config interface {
	// Core settings
	Home() string          // Base directory (AF_HOME)
	WorkspacesDir() string // Per-run artifact bundles
	DBPath() string        // SQLite database path

	// Model gateway
	ModelBackend() string       // Backend: gemini or mock (AF_MODEL_BACKEND)
	ModelName() string          // Backing model name (AF_MODEL)
	MaxAPICalls() int           // Per-run external call ceiling (AF_MAX_API_CALLS)
	RetryAttempts() int         // Transient-error retry budget per call (AF_RETRY_ATTEMPTS)
	RetryBaseDelay() time.Duration // Initial backoff delay (AF_RETRY_BASE_DELAY_MS)
	CallTimeout() time.Duration // Bounded wait per external call (AF_CALL_TIMEOUT_SEC)

	// Pipeline limits
	MaxReviewIterations() int    // Engineer/Auditor loop bound (AF_MAX_REVIEW_ITERATIONS)
	MaxRearchitectAttempts() int // Interactive rejection bound (AF_MAX_REARCHITECT_ATTEMPTS)

	// Sandbox
	SandboxBin() string            // Interpreter for generated code (AF_SANDBOX_BIN)
	SandboxTimeout() time.Duration // Bounded execution time (AF_SANDBOX_TIMEOUT_SEC)

	// Storage
	StorageType() string // local, s3, or mock (AF_STORAGE)
	S3Bucket() string    // S3 bucket name
	S3Prefix() string    // S3 key prefix (optional)
	S3Region() string    // AWS region (optional)

	// Logging
	StderrLevel() string // Operational log level (AF_STDERR_LEVEL)

	// Metadata
	ConfigSource() string // "json", "env", or "default"
	SettingPath() string  // Path to setting.json if loaded from file
}

// AppConfig is the concrete implementation of Config
type AppConfig struct {
	home string

	modelBackend   string
	modelName      string
	maxAPICalls    int
	retryAttempts  int
	retryBaseDelay time.Duration
	callTimeout    time.Duration

	maxReviewIterations    int
	maxRearchitectAttempts int

	sandboxBin     string
	sandboxTimeout time.Duration

	storageType string
	s3Bucket    string
	s3Prefix    string
	s3Region    string

	stderrLevel string

	configSource string
	settingPath  string
}

// Params carries every configurable value for NewAppConfig; zero
// values fall back to defaults
type Params struct {
	Home string

	ModelBackend   string
	ModelName      string
	MaxAPICalls    int
	RetryAttempts  int
	RetryBaseDelay time.Duration
	CallTimeout    time.Duration

	MaxReviewIterations    int
	MaxRearchitectAttempts int

	SandboxBin     string
	SandboxTimeout time.Duration

	StorageType string
	S3Bucket    string
	S3Prefix    string
	S3Region    string

	StderrLevel string

	ConfigSource string
	SettingPath  string
}

// Defaults
const (
	DefaultHome                   = ".agentfactory"
	DefaultModelBackend           = "mock"
	DefaultModelName              = "gemini-2.5-flash"
	DefaultMaxAPICalls            = 50
	DefaultRetryAttempts          = 5
	DefaultRetryBaseDelay         = time.Second
	DefaultCallTimeout            = 120 * time.Second
	DefaultMaxReviewIterations    = 3
	DefaultMaxRearchitectAttempts = 5
	DefaultSandboxBin             = "python3"
	DefaultSandboxTimeout         = 60 * time.Second
	DefaultStorageType            = "local"
	DefaultStderrLevel            = "info"
)

// NewAppConfig builds an AppConfig, applying defaults for zero values
func NewAppConfig(p Params) *AppConfig {
	c := &AppConfig{
		home:                   p.Home,
		modelBackend:           p.ModelBackend,
		modelName:              p.ModelName,
		maxAPICalls:            p.MaxAPICalls,
		retryAttempts:          p.RetryAttempts,
		retryBaseDelay:         p.RetryBaseDelay,
		callTimeout:            p.CallTimeout,
		maxReviewIterations:    p.MaxReviewIterations,
		maxRearchitectAttempts: p.MaxRearchitectAttempts,
		sandboxBin:             p.SandboxBin,
		sandboxTimeout:         p.SandboxTimeout,
		storageType:            p.StorageType,
		s3Bucket:               p.S3Bucket,
		s3Prefix:               p.S3Prefix,
		s3Region:               p.S3Region,
		stderrLevel:            p.StderrLevel,
		configSource:           p.ConfigSource,
		settingPath:            p.SettingPath,
	}

	if c.home == "" {
		c.home = DefaultHome
	}
	if c.modelBackend == "" {
		c.modelBackend = DefaultModelBackend
	}
	if c.modelName == "" {
		c.modelName = DefaultModelName
	}
	if c.maxAPICalls == 0 {
		c.maxAPICalls = DefaultMaxAPICalls
	}
	if c.retryAttempts <= 0 {
		c.retryAttempts = DefaultRetryAttempts
	}
	if c.retryBaseDelay <= 0 {
		c.retryBaseDelay = DefaultRetryBaseDelay
	}
	if c.callTimeout <= 0 {
		c.callTimeout = DefaultCallTimeout
	}
	if c.maxReviewIterations <= 0 {
		c.maxReviewIterations = DefaultMaxReviewIterations
	}
	if c.maxRearchitectAttempts <= 0 {
		c.maxRearchitectAttempts = DefaultMaxRearchitectAttempts
	}
	if c.sandboxBin == "" {
		c.sandboxBin = DefaultSandboxBin
	}
	if c.sandboxTimeout <= 0 {
		c.sandboxTimeout = DefaultSandboxTimeout
	}
	if c.storageType == "" {
		c.storageType = DefaultStorageType
	}
	if c.stderrLevel == "" {
		c.stderrLevel = DefaultStderrLevel
	}
	if c.configSource == "" {
		c.configSource = "default"
	}

	return c
}

func (c *AppConfig) Home() string                   { return c.home }
func (c *AppConfig) WorkspacesDir() string          { return filepath.Join(c.home, "workspaces") }
func (c *AppConfig) DBPath() string                 { return filepath.Join(c.home, "var", "agentfactory.db") }
func (c *AppConfig) ModelBackend() string           { return c.modelBackend }
func (c *AppConfig) ModelName() string              { return c.modelName }
func (c *AppConfig) MaxAPICalls() int               { return c.maxAPICalls }
func (c *AppConfig) RetryAttempts() int             { return c.retryAttempts }
func (c *AppConfig) RetryBaseDelay() time.Duration  { return c.retryBaseDelay }
func (c *AppConfig) CallTimeout() time.Duration     { return c.callTimeout }
func (c *AppConfig) MaxReviewIterations() int       { return c.maxReviewIterations }
func (c *AppConfig) MaxRearchitectAttempts() int    { return c.maxRearchitectAttempts }
func (c *AppConfig) SandboxBin() string             { return c.sandboxBin }
func (c *AppConfig) SandboxTimeout() time.Duration  { return c.sandboxTimeout }
func (c *AppConfig) StorageType() string            { return c.storageType }
func (c *AppConfig) S3Bucket() string               { return c.s3Bucket }
func (c *AppConfig) S3Prefix() string               { return c.s3Prefix }
func (c *AppConfig) S3Region() string               { return c.s3Region }
func (c *AppConfig) StderrLevel() string            { return c.stderrLevel }
func (c *AppConfig) ConfigSource() string           { return c.configSource }
func (c *AppConfig) SettingPath() string            { return c.settingPath }
