package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/tensorvault/access"
	"github.com/poiesic/tensorvault/ai"
	"github.com/poiesic/tensorvault/retrieval"
	"github.com/poiesic/tensorvault/storage/badger"
	"github.com/poiesic/tensorvault/training"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full command configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level" env:"TENSORVAULT_LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Training  TrainingConfig  `yaml:"training"`
	Access    AccessConfig    `yaml:"access"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// StorageConfig selects the badger database.
type StorageConfig struct {
	Path       string        `yaml:"path" env:"TENSORVAULT_DB" validate:"required_without=InMemory"`
	InMemory   bool          `yaml:"in_memory" env:"TENSORVAULT_IN_MEMORY"`
	SyncWrites bool          `yaml:"sync_writes" env:"TENSORVAULT_SYNC_WRITES"`
	GCInterval time.Duration `yaml:"gc_interval" env:"TENSORVAULT_GC_INTERVAL" validate:"gte=0"`
}

// EmbeddingConfig points at an OpenAI-compatible embedding service.
type EmbeddingConfig struct {
	Host      string `yaml:"host" env:"TENSORVAULT_EMBEDDING_HOST" validate:"required,url"`
	Model     string `yaml:"model" env:"TENSORVAULT_EMBEDDING_MODEL" validate:"required"`
	Token     string `yaml:"token" env:"TENSORVAULT_EMBEDDING_TOKEN"`
	Dimension int    `yaml:"dimension" env:"TENSORVAULT_EMBEDDING_DIMENSION" validate:"gt=0"`
}

// TrainingConfig tunes the parallel trainer.
type TrainingConfig struct {
	Workers        int           `yaml:"workers" env:"TENSORVAULT_WORKERS" validate:"gte=1,lte=256"`
	TargetMaturity float64       `yaml:"target_maturity" env:"TENSORVAULT_TARGET_MATURITY" validate:"gt=0,lte=1"`
	MaxCycles      int64         `yaml:"max_cycles" env:"TENSORVAULT_MAX_CYCLES" validate:"gte=1"`
	StaleTimeout   time.Duration `yaml:"stale_timeout" env:"TENSORVAULT_STALE_TIMEOUT" validate:"gt=0"`
}

// AccessConfig holds audit retention.
type AccessConfig struct {
	AuditRetentionDays int `yaml:"audit_retention_days" env:"TENSORVAULT_AUDIT_RETENTION_DAYS" validate:"gte=1"`
}

// RetrievalConfig tunes index building and entity resolution.
type RetrievalConfig struct {
	BatchSize            int     `yaml:"batch_size" env:"TENSORVAULT_EMBED_BATCH_SIZE" validate:"gte=1"`
	Concurrency          int     `yaml:"concurrency" env:"TENSORVAULT_BUILD_CONCURRENCY" validate:"gte=1"`
	CompositionThreshold float64 `yaml:"composition_threshold" env:"TENSORVAULT_COMPOSITION_THRESHOLD" validate:"gt=0,lte=1"`
}

// Default returns the configuration used when nothing overrides it.
// Storage.Path is left empty and must be supplied.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		LogLevel: "info",
		Storage: StorageConfig{
			SyncWrites: true,
			GCInterval: badger.DefaultConfig("").GCInterval,
		},
		Embedding: EmbeddingConfig{
			Host:      aiDefaults.EmbeddingHost,
			Model:     aiDefaults.EmbeddingModel,
			Token:     aiDefaults.EmbeddingToken,
			Dimension: aiDefaults.Dimension,
		},
		Training: TrainingConfig{
			Workers:        training.DefaultMaxWorkers,
			TargetMaturity: 0.95,
			MaxCycles:      training.DefaultMaxCycles,
			StaleTimeout:   badger.DefaultStaleTimeout,
		},
		Access: AccessConfig{
			AuditRetentionDays: access.DefaultRetentionDays,
		},
		Retrieval: RetrievalConfig{
			BatchSize:            retrieval.DefaultEmbedBatchSize,
			Concurrency:          retrieval.DefaultBuildConcurrency,
			CompositionThreshold: retrieval.DefaultCompositionThreshold,
		},
	}
}

// Load reads a Config like Read and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, in that order. The result is not
// validated, so callers can apply further overrides first.
func Read(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, len(fieldErrs))
			for i, fe := range fieldErrs {
				msgs[i] = fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Backend returns the badger backend configuration.
func (c *Config) Backend() badger.Config {
	cfg := badger.DefaultConfig(c.Storage.Path)
	cfg.InMemory = c.Storage.InMemory
	cfg.SyncWrites = c.Storage.SyncWrites
	cfg.GCInterval = c.Storage.GCInterval
	return cfg
}

// AI returns the embedding client configuration.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithEmbeddingToken(c.Embedding.Token),
		ai.WithDimension(c.Embedding.Dimension),
	)
}
