// Package config provides the configuration of a molpool run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode represents the stage to run.
type Mode string

const (
	ModeFit      Mode = "fit"
	ModePredict  Mode = "predict"
	ModeEvaluate Mode = "evaluate"
)

// Config holds the configuration of one run.
type Config struct {
	// Mode specifies the stage to run: fit, predict, evaluate
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the run directory (data/, descriptors/, estimators/, pool/, report/)
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// TrainedDir is the run directory of a previous fit (predict mode)
	TrainedDir string `json:"trained_dir" yaml:"trained_dir"`

	Dataset    DatasetConfig    `json:"dataset" yaml:"dataset"`
	Manifest   ManifestConfig   `json:"manifest" yaml:"manifest"`
	Embeddings EmbeddingsConfig `json:"embeddings" yaml:"embeddings"`
	Pool       PoolConfig       `json:"pool" yaml:"pool"`
	Evaluate   EvaluateConfig   `json:"evaluate" yaml:"evaluate"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// DatasetConfig describes the compound table.
type DatasetConfig struct {
	// IDColumn is the compound identifier column
	IDColumn string `json:"id_column" yaml:"id_column"`

	// StructureColumn is the structural identifier dropped from estimator tables
	StructureColumn string `json:"structure_column" yaml:"structure_column"`

	// TaskSchema optionally declares the tasks explicitly (YAML or JSON)
	TaskSchema string `json:"task_schema" yaml:"task_schema"`
}

// ManifestConfig locates the list of finished estimators.
type ManifestConfig struct {
	// Type is json or sqlite
	Type string `json:"type" yaml:"type"`

	// Path defaults to estimators/done.json or estimators/manifest.db
	Path string `json:"path" yaml:"path"`
}

// EmbeddingsConfig selects the embeddings included in the feature matrix.
type EmbeddingsConfig struct {
	Methods []string `json:"methods" yaml:"methods"`
}

// PoolConfig holds consensus options.
type PoolConfig struct {
	// StrictSchema fails a prediction whose estimator layout differs from fit
	StrictSchema bool `json:"strict_schema" yaml:"strict_schema"`
}

// EvaluateConfig controls the performance report.
type EvaluateConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// Prefix is prepended to every published object key
	Prefix string `json:"prefix" yaml:"prefix"`

	// TrainedPrefix is the object prefix of a published fit to predict with
	TrainedPrefix string `json:"trained_prefix" yaml:"trained_prefix"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// MetricsConfig controls run metric export.
type MetricsConfig struct {
	// TextfilePath receives the metrics in text format; empty disables it
	TextfilePath string `json:"textfile_path" yaml:"textfile_path"`

	// PushgatewayURL receives the metrics when set
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`

	// Job is the Pushgateway job name
	Job string `json:"job" yaml:"job"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Env is local, dev or prod
	Env string `json:"env" yaml:"env"`

	// Level is a zap level name
	Level string `json:"level" yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeFit,
		DataDir: "./run",
		Dataset: DatasetConfig{
			IDColumn:        "compound_id",
			StructureColumn: "smiles",
		},
		Manifest: ManifestConfig{
			Type: "json",
		},
		Embeddings: EmbeddingsConfig{
			Methods: []string{"pca", "umap"},
		},
		Evaluate: EvaluateConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			Type: "none",
		},
		Metrics: MetricsConfig{
			Job: "molpool",
		},
		Logging: LoggingConfig{
			Env:   "local",
			Level: "info",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./run"
	}

	if c.Manifest.Type == "" {
		c.Manifest.Type = "json"
	}
	if c.Manifest.Path == "" {
		name := "done.json"
		if c.Manifest.Type == "sqlite" {
			name = "manifest.db"
		}
		c.Manifest.Path = filepath.Join(c.DataDir, "estimators", name)
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "none"
	}
	if c.Storage.Type == "local" && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}

	// A trained pool fetched from object storage lands here.
	if c.Mode == ModePredict && c.TrainedDir == "" && c.Storage.TrainedPrefix != "" {
		c.TrainedDir = filepath.Join(c.DataDir, "trained")
	}

	if c.Metrics.TextfilePath == "" {
		c.Metrics.TextfilePath = filepath.Join(c.DataDir, "report", "metrics.prom")
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "molpool"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFit, ModePredict, ModeEvaluate:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be fit, predict, or evaluate)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Mode == ModePredict && c.TrainedDir == "" {
		return fmt.Errorf("trained_dir or storage.trained_prefix is required in predict mode")
	}

	if c.Manifest.Type != "json" && c.Manifest.Type != "sqlite" {
		return fmt.Errorf("invalid manifest type: %s (must be json or sqlite)", c.Manifest.Type)
	}

	switch c.Storage.Type {
	case "none", "local", "s3":
	default:
		return fmt.Errorf("invalid storage type: %s (must be none, local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Storage.TrainedPrefix != "" && c.Storage.Type == "none" {
		return fmt.Errorf("storage.trained_prefix requires a storage type")
	}

	for _, m := range c.Embeddings.Methods {
		if m == "" || strings.ContainsAny(m, `/\`) {
			return fmt.Errorf("invalid embedding method: %q", m)
		}
	}

	return nil
}

// ShouldPublish returns true if run artifacts go to object storage.
func (c *Config) ShouldPublish() bool {
	return c.Storage.Type != "none"
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MOLPOOL_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("MOLPOOL_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("MOLPOOL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MOLPOOL_TRAINED_DIR"); v != "" {
		cfg.TrainedDir = v
	}

	// Dataset configuration
	if v := os.Getenv("MOLPOOL_TASK_SCHEMA"); v != "" {
		cfg.Dataset.TaskSchema = v
	}

	// Manifest configuration
	if v := os.Getenv("MOLPOOL_MANIFEST_TYPE"); v != "" {
		cfg.Manifest.Type = v
	}
	if v := os.Getenv("MOLPOOL_MANIFEST_PATH"); v != "" {
		cfg.Manifest.Path = v
	}

	if v := os.Getenv("MOLPOOL_EMBEDDING_METHODS"); v != "" {
		cfg.Embeddings.Methods = strings.Split(v, ",")
	}
	if v := os.Getenv("MOLPOOL_STRICT_SCHEMA"); v != "" {
		cfg.Pool.StrictSchema = v == "true" || v == "1"
	}
	if v := os.Getenv("MOLPOOL_EVALUATE"); v != "" {
		cfg.Evaluate.Enabled = v == "true" || v == "1"
	}

	// Storage configuration
	if v := os.Getenv("MOLPOOL_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("MOLPOOL_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("MOLPOOL_STORAGE_PREFIX"); v != "" {
		cfg.Storage.Prefix = v
	}
	if v := os.Getenv("MOLPOOL_TRAINED_PREFIX"); v != "" {
		cfg.Storage.TrainedPrefix = v
	}
	if v := os.Getenv("MOLPOOL_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("MOLPOOL_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("MOLPOOL_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Metrics configuration
	if v := os.Getenv("MOLPOOL_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.TextfilePath = v
	}
	if v := os.Getenv("MOLPOOL_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}

	// Logging configuration
	if v := os.Getenv("MOLPOOL_LOG_ENV"); v != "" {
		cfg.Logging.Env = v
	}
	if v := os.Getenv("MOLPOOL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.TrainedDir,
		c.Storage.Path,
		filepath.Dir(c.Metrics.TextfilePath),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
