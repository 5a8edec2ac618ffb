package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	appconfig "github.com/agentfoundry/agentfactory/internal/app/config"
)

// RawSettings mirrors the structure of setting.json. Pointer fields
// distinguish "absent" from zero values.
type RawSettings struct {
	Home *string `json:"home"`

	ModelBackend     *string `json:"model_backend"`
	ModelName        *string `json:"model_name"`
	MaxAPICalls      *int    `json:"max_api_calls"`
	RetryAttempts    *int    `json:"retry_attempts"`
	RetryBaseDelayMs *int    `json:"retry_base_delay_ms"`
	CallTimeoutSec   *int    `json:"call_timeout_sec"`

	MaxReviewIterations    *int `json:"max_review_iterations"`
	MaxRearchitectAttempts *int `json:"max_rearchitect_attempts"`

	SandboxBin        *string `json:"sandbox_bin"`
	SandboxTimeoutSec *int    `json:"sandbox_timeout_sec"`

	StorageType *string `json:"storage_type"`
	S3Bucket    *string `json:"s3_bucket"`
	S3Prefix    *string `json:"s3_prefix"`
	S3Region    *string `json:"s3_region"`

	StderrLevel *string `json:"stderr_level"`
}

// LoadSettings loads configuration with precedence:
// setting.json > environment variables > defaults
func LoadSettings(baseDir string) (appconfig.Config, error) {
	p := paramsFromEnv(baseDir)
	source := "env"

	settingPath := filepath.Join(baseDir, "setting.json")
	if data, err := os.ReadFile(settingPath); err == nil {
		var raw RawSettings
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", settingPath, err)
		}
		applyRaw(&p, &raw)
		source = "json"
		p.SettingPath = settingPath
	}

	p.ConfigSource = source
	return appconfig.NewAppConfig(p), nil
}

// paramsFromEnv reads the AF_* environment variables
func paramsFromEnv(baseDir string) appconfig.Params {
	return appconfig.Params{
		Home: baseDir,

		ModelBackend:   os.Getenv("AF_MODEL_BACKEND"),
		ModelName:      os.Getenv("AF_MODEL"),
		MaxAPICalls:    envInt("AF_MAX_API_CALLS"),
		RetryAttempts:  envInt("AF_RETRY_ATTEMPTS"),
		RetryBaseDelay: time.Duration(envInt("AF_RETRY_BASE_DELAY_MS")) * time.Millisecond,
		CallTimeout:    time.Duration(envInt("AF_CALL_TIMEOUT_SEC")) * time.Second,

		MaxReviewIterations:    envInt("AF_MAX_REVIEW_ITERATIONS"),
		MaxRearchitectAttempts: envInt("AF_MAX_REARCHITECT_ATTEMPTS"),

		SandboxBin:     os.Getenv("AF_SANDBOX_BIN"),
		SandboxTimeout: time.Duration(envInt("AF_SANDBOX_TIMEOUT_SEC")) * time.Second,

		StorageType: os.Getenv("AF_STORAGE"),
		S3Bucket:    os.Getenv("AF_S3_BUCKET"),
		S3Prefix:    os.Getenv("AF_S3_PREFIX"),
		S3Region:    os.Getenv("AF_S3_REGION"),

		StderrLevel: os.Getenv("AF_STDERR_LEVEL"),
	}
}

// applyRaw overlays values present in setting.json onto the params
func applyRaw(p *appconfig.Params, raw *RawSettings) {
	if raw.Home != nil {
		p.Home = *raw.Home
	}
	if raw.ModelBackend != nil {
		p.ModelBackend = *raw.ModelBackend
	}
	if raw.ModelName != nil {
		p.ModelName = *raw.ModelName
	}
	if raw.MaxAPICalls != nil {
		p.MaxAPICalls = *raw.MaxAPICalls
	}
	if raw.RetryAttempts != nil {
		p.RetryAttempts = *raw.RetryAttempts
	}
	if raw.RetryBaseDelayMs != nil {
		p.RetryBaseDelay = time.Duration(*raw.RetryBaseDelayMs) * time.Millisecond
	}
	if raw.CallTimeoutSec != nil {
		p.CallTimeout = time.Duration(*raw.CallTimeoutSec) * time.Second
	}
	if raw.MaxReviewIterations != nil {
		p.MaxReviewIterations = *raw.MaxReviewIterations
	}
	if raw.MaxRearchitectAttempts != nil {
		p.MaxRearchitectAttempts = *raw.MaxRearchitectAttempts
	}
	if raw.SandboxBin != nil {
		p.SandboxBin = *raw.SandboxBin
	}
	if raw.SandboxTimeoutSec != nil {
		p.SandboxTimeout = time.Duration(*raw.SandboxTimeoutSec) * time.Second
	}
	if raw.StorageType != nil {
		p.StorageType = *raw.StorageType
	}
	if raw.S3Bucket != nil {
		p.S3Bucket = *raw.S3Bucket
	}
	if raw.S3Prefix != nil {
		p.S3Prefix = *raw.S3Prefix
	}
	if raw.S3Region != nil {
		p.S3Region = *raw.S3Region
	}
	if raw.StderrLevel != nil {
		p.StderrLevel = *raw.StderrLevel
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
