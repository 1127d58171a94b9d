package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for an engine client.
//
// Every heuristic constant the engine relies on (relevance cutoff,
// confidence gates, capture thresholds, staleness windows) is a tunable
// field here; Validate fills in the standard defaults for unset values.
//
// Example:
//
//	config := &core.Config{
//	    Storage: core.StorageConfig{
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./taskmem.db",
//	        },
//	    },
//	}
type Config struct {
	// Storage selects and configures the task/memory store backend.
	Storage StorageConfig `json:"storage"`

	// Similarity configures the optional semantic-similarity provider.
	// Nil disables semantic scoring; discovery stays lexical-only.
	Similarity *SimilarityConfig `json:"similarity,omitempty"`

	// Classifier configures rule tables and the capture policy.
	Classifier *ClassifierConfig `json:"classifier,omitempty"`

	// Linking configures candidate discovery and relevance scoring.
	Linking LinkingConfig `json:"linking"`

	// Workflow configures the time-based advisory rule windows.
	Workflow WorkflowConfig `json:"workflow"`

	// Executor configures the action gate thresholds.
	Executor ExecutorConfig `json:"executor"`
}

// StorageConfig selects the store backend.
//
// Supported providers: sqlite, postgres, mysql.
type StorageConfig struct {
	// Provider is the backend name (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, table_prefix
	// For PostgreSQL: host, port, user, password, db_name, ssl_mode, table_prefix
	// For MySQL: host, port, user, password, db_name, table_prefix
	Config map[string]interface{} `json:"config"`
}

// SimilarityConfig configures the semantic-similarity provider.
//
// Supported providers: openai.
type SimilarityConfig struct {
	// Provider is the similarity provider name.
	Provider string `json:"provider"`

	// APIKey is the provider API key.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (optional).
	Model string `json:"model,omitempty"`

	// BaseURL overrides the API base URL (optional).
	BaseURL string `json:"base_url,omitempty"`

	// TimeoutMS bounds each similarity call (default 2000).
	TimeoutMS int `json:"timeout_ms,omitempty"`
}

// ClassifierConfig configures the content classifier and capture policy.
type ClassifierConfig struct {
	// RulesPath points at a JSON rules file; empty uses the built-in tables.
	RulesPath string `json:"rules_path,omitempty"`

	// CaptureMinElapsedMinutes with CaptureMinActivities is the standard
	// capture threshold (default 15 / 3).
	CaptureMinElapsedMinutes int `json:"capture_min_elapsed_minutes,omitempty"`
	CaptureMinActivities     int `json:"capture_min_activities,omitempty"`

	// CaptureComplexActivities captures high-complexity sessions this
	// early (default 2).
	CaptureComplexActivities int `json:"capture_complex_activities,omitempty"`

	// CaptureMaxElapsedMinutes captures any session this old (default 60).
	CaptureMaxElapsedMinutes int `json:"capture_max_elapsed_minutes,omitempty"`
}

// LinkingConfig configures candidate discovery.
type LinkingConfig struct {
	// RelevanceThreshold discards candidates at or below it (default 0.3).
	RelevanceThreshold float64 `json:"relevance_threshold,omitempty"`

	// MaxLinks caps connections per discovery call (default 5).
	MaxLinks int `json:"max_links,omitempty"`

	// CrossProject widens candidate search beyond the task's project.
	CrossProject bool `json:"cross_project,omitempty"`

	// RecencyHalfLifeDays controls recency decay (default 30).
	RecencyHalfLifeDays float64 `json:"recency_half_life_days,omitempty"`
}

// WorkflowConfig configures the time-based advisory windows.
type WorkflowConfig struct {
	// StaleDays warns about untouched tasks (default 7).
	StaleDays int `json:"stale_days,omitempty"`

	// InProgressReviewDays suggests decomposition (default 3).
	InProgressReviewDays int `json:"in_progress_review_days,omitempty"`

	// FastCompletionMinutes warns about suspiciously fast completion
	// (default 60).
	FastCompletionMinutes int `json:"fast_completion_minutes,omitempty"`

	// LowPriorityFastHours suggests re-examining priority (default 2).
	LowPriorityFastHours int `json:"low_priority_fast_hours,omitempty"`
}

// ExecutorConfig configures the action gate.
type ExecutorConfig struct {
	// MinConfidence rejects actions below it (default 0.5).
	MinConfidence float64 `json:"min_confidence,omitempty"`

	// AutoExecuteThreshold auto-approves at or above it (default 0.8).
	AutoExecuteThreshold float64 `json:"auto_execute_threshold,omitempty"`

	// MinCreateContentLength rejects create actions on shorter memories
	// (default 20).
	MinCreateContentLength int `json:"min_create_content_length,omitempty"`
}

// Validate checks required fields and applies defaults for unset tunables.
//
// A missing or unknown storage provider is a fatal configuration error.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "sqlite", "postgres", "mysql":
	case "":
		return NewEngineError("Validate", fmt.Errorf("%w: storage provider is required", ErrInvalidConfig))
	default:
		return NewEngineError("Validate", fmt.Errorf("%w: unknown storage provider %q", ErrInvalidConfig, c.Storage.Provider))
	}

	if c.Linking.RelevanceThreshold == 0 {
		c.Linking.RelevanceThreshold = 0.3
	}
	if c.Linking.RelevanceThreshold < 0 || c.Linking.RelevanceThreshold >= 1 {
		return NewEngineError("Validate", fmt.Errorf("%w: relevance threshold must be in [0,1)", ErrInvalidConfig))
	}
	if c.Linking.MaxLinks == 0 {
		c.Linking.MaxLinks = 5
	}
	if c.Linking.RecencyHalfLifeDays == 0 {
		c.Linking.RecencyHalfLifeDays = 30
	}

	if c.Workflow.StaleDays == 0 {
		c.Workflow.StaleDays = 7
	}
	if c.Workflow.InProgressReviewDays == 0 {
		c.Workflow.InProgressReviewDays = 3
	}
	if c.Workflow.FastCompletionMinutes == 0 {
		c.Workflow.FastCompletionMinutes = 60
	}
	if c.Workflow.LowPriorityFastHours == 0 {
		c.Workflow.LowPriorityFastHours = 2
	}

	if c.Executor.MinConfidence == 0 {
		c.Executor.MinConfidence = 0.5
	}
	if c.Executor.AutoExecuteThreshold == 0 {
		c.Executor.AutoExecuteThreshold = 0.8
	}
	if c.Executor.MinConfidence < 0 || c.Executor.MinConfidence > 1 ||
		c.Executor.AutoExecuteThreshold < 0 || c.Executor.AutoExecuteThreshold > 1 {
		return NewEngineError("Validate", fmt.Errorf("%w: confidence gates must be in [0,1]", ErrInvalidConfig))
	}
	if c.Executor.MinCreateContentLength == 0 {
		c.Executor.MinCreateContentLength = 20
	}

	if c.Classifier == nil {
		c.Classifier = &ClassifierConfig{}
	}
	if c.Classifier.CaptureMinElapsedMinutes == 0 {
		c.Classifier.CaptureMinElapsedMinutes = 15
	}
	if c.Classifier.CaptureMinActivities == 0 {
		c.Classifier.CaptureMinActivities = 3
	}
	if c.Classifier.CaptureComplexActivities == 0 {
		c.Classifier.CaptureComplexActivities = 2
	}
	if c.Classifier.CaptureMaxElapsedMinutes == 0 {
		c.Classifier.CaptureMaxElapsedMinutes = 60
	}

	if c.Similarity != nil {
		if c.Similarity.Provider != "openai" {
			return NewEngineError("Validate", fmt.Errorf("%w: unknown similarity provider %q", ErrInvalidConfig, c.Similarity.Provider))
		}
		if c.Similarity.TimeoutMS == 0 {
			c.Similarity.TimeoutMS = 2000
		}
	}

	return nil
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// LoadConfigFromEnv loads configuration from environment variables,
// autoloading a .env file from the working directory when present.
//
// Recognized variables:
//
//	TASKMEM_STORAGE_PROVIDER  sqlite (default) | postgres | mysql
//	TASKMEM_SQLITE_PATH       database file for sqlite (default ./taskmem.db)
//	TASKMEM_DB_HOST/PORT/USER/PASSWORD/NAME/SSLMODE  for postgres and mysql
//	TASKMEM_TABLE_PREFIX      table name prefix
//	OPENAI_API_KEY            enables the semantic-similarity provider
//	OPENAI_EMBEDDING_MODEL/OPENAI_BASE_URL  provider overrides
//	TASKMEM_CROSS_PROJECT     "true" widens discovery across projects
func LoadConfigFromEnv() (*Config, error) {
	// A missing .env file is fine; explicit environment still applies.
	_ = godotenv.Load()

	provider := getEnvOrDefault("TASKMEM_STORAGE_PROVIDER", "sqlite")

	var storageConfig map[string]interface{}
	switch provider {
	case "sqlite":
		storageConfig = map[string]interface{}{
			"db_path":      getEnvOrDefault("TASKMEM_SQLITE_PATH", "./taskmem.db"),
			"table_prefix": os.Getenv("TASKMEM_TABLE_PREFIX"),
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("TASKMEM_DB_PORT", "5432"))
		storageConfig = map[string]interface{}{
			"host":         getEnvOrDefault("TASKMEM_DB_HOST", "localhost"),
			"port":         port,
			"user":         getEnvOrDefault("TASKMEM_DB_USER", "postgres"),
			"password":     os.Getenv("TASKMEM_DB_PASSWORD"),
			"db_name":      getEnvOrDefault("TASKMEM_DB_NAME", "taskmem"),
			"ssl_mode":     getEnvOrDefault("TASKMEM_DB_SSLMODE", "disable"),
			"table_prefix": os.Getenv("TASKMEM_TABLE_PREFIX"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("TASKMEM_DB_PORT", "3306"))
		storageConfig = map[string]interface{}{
			"host":         getEnvOrDefault("TASKMEM_DB_HOST", "localhost"),
			"port":         port,
			"user":         getEnvOrDefault("TASKMEM_DB_USER", "root"),
			"password":     os.Getenv("TASKMEM_DB_PASSWORD"),
			"db_name":      getEnvOrDefault("TASKMEM_DB_NAME", "taskmem"),
			"table_prefix": os.Getenv("TASKMEM_TABLE_PREFIX"),
		}
	}

	config := &Config{
		Storage: StorageConfig{
			Provider: provider,
			Config:   storageConfig,
		},
		Linking: LinkingConfig{
			CrossProject: os.Getenv("TASKMEM_CROSS_PROJECT") == "true",
		},
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Similarity = &SimilarityConfig{
			Provider: "openai",
			APIKey:   apiKey,
			Model:    os.Getenv("OPENAI_EMBEDDING_MODEL"),
			BaseURL:  os.Getenv("OPENAI_BASE_URL"),
		}
	}

	if rulesPath := os.Getenv("TASKMEM_RULES_PATH"); rulesPath != "" {
		config.Classifier = &ClassifierConfig{RulesPath: rulesPath}
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, NewEngineError("LoadConfigFromEnvFile", err)
	}
	return LoadConfigFromEnv()
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
