package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Completion CompletionConfig
	Assembly   AssemblyAIConfig
	Pipeline   PipelineConfig
}

// ServerConfig holds process-level settings
type ServerConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver     string `default:"postgres"` // "postgres" or "sqlite"
	Host       string `default:"localhost"`
	Port       string `default:"5432"`
	User       string `default:"postgres"`
	Password   string `default:"postgres"`
	Name       string `default:"meeting_intelligence"`
	SSLMode    string `default:"disable"`
	MaxConns   int    `split_words:"true" default:"25"`
	MinConns   int    `split_words:"true" default:"5"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"meeting_intelligence.db"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `default:"false"`
	Host     string `default:"localhost"`
	Port     string `default:"6379"`
	Password string `default:""`
	DB       int    `default:"0"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Enabled         bool   `default:"false"`
	Endpoint        string `default:"localhost:9000"`
	AccessKeyID     string `envconfig:"ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"BUCKET" default:"meeting-intelligence"`
	UseSSL          bool   `split_words:"true" default:"false"`
}

// CompletionConfig holds the structured completion endpoint settings
type CompletionConfig struct {
	APIKey     string        `envconfig:"API_KEY"`
	BaseURL    string        `envconfig:"API_URL" default:"https://api.groq.com/openai/v1"`
	Model      string        `default:"llama-3.3-70b-versatile"`
	Timeout    time.Duration `default:"60s"`
	MaxElapsed time.Duration `split_words:"true" default:"45s"`
	CacheTTL   time.Duration `split_words:"true" default:"24h"`
}

// AssemblyAIConfig holds AssemblyAI configuration
type AssemblyAIConfig struct {
	APIKey string `envconfig:"API_KEY"`
}

// PipelineConfig holds pipeline tuning knobs
type PipelineConfig struct {
	PolicyFile       string `split_words:"true"`
	BatchConcurrency int    `split_words:"true" default:"3"`
	QAGoal           string `envconfig:"QA_GOAL" default:"zero_hallucinations"`
	Generator        string `default:"heuristic"` // "heuristic" or "completion"
}

// Load loads configuration from the environment, reading .env first when present
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	cfg := &Config{}
	sections := []struct {
		prefix string
		target interface{}
	}{
		{"", &cfg.Server},
		{"db", &cfg.Database},
		{"redis", &cfg.Redis},
		{"storage", &cfg.Storage},
		{"groq", &cfg.Completion},
		{"assemblyai", &cfg.Assembly},
		{"pipeline", &cfg.Pipeline},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return nil, fmt.Errorf("failed to read %q config: %w", s.prefix, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Pipeline.BatchConcurrency < 1 {
		return fmt.Errorf("PIPELINE_BATCH_CONCURRENCY must be positive")
	}
	switch c.Pipeline.Generator {
	case "heuristic", "completion":
	default:
		return fmt.Errorf("PIPELINE_GENERATOR must be heuristic or completion, got %q", c.Pipeline.Generator)
	}
	return nil
}

// IsProduction reports whether the process runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
