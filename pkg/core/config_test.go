package core_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmem-labs/taskmem-go/pkg/core"
)

func sqliteConfig() *core.Config {
	return &core.Config{
		Storage: core.StorageConfig{
			Provider: "sqlite",
			Config:   map[string]interface{}{"db_path": ":memory:"},
		},
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	config := sqliteConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, 0.3, config.Linking.RelevanceThreshold)
	assert.Equal(t, 5, config.Linking.MaxLinks)
	assert.Equal(t, 30.0, config.Linking.RecencyHalfLifeDays)

	assert.Equal(t, 7, config.Workflow.StaleDays)
	assert.Equal(t, 3, config.Workflow.InProgressReviewDays)
	assert.Equal(t, 60, config.Workflow.FastCompletionMinutes)
	assert.Equal(t, 2, config.Workflow.LowPriorityFastHours)

	assert.Equal(t, 0.5, config.Executor.MinConfidence)
	assert.Equal(t, 0.8, config.Executor.AutoExecuteThreshold)
	assert.Equal(t, 20, config.Executor.MinCreateContentLength)

	require.NotNil(t, config.Classifier)
	assert.Equal(t, 15, config.Classifier.CaptureMinElapsedMinutes)
	assert.Equal(t, 3, config.Classifier.CaptureMinActivities)
	assert.Equal(t, 2, config.Classifier.CaptureComplexActivities)
	assert.Equal(t, 60, config.Classifier.CaptureMaxElapsedMinutes)
}

func TestValidateRequiresStorageProvider(t *testing.T) {
	err := (&core.Config{}).Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	config := &core.Config{Storage: core.StorageConfig{Provider: "mongodb"}}
	err := config.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestValidateRejectsOutOfRangeThresholds(t *testing.T) {
	config := sqliteConfig()
	config.Linking.RelevanceThreshold = 1.5
	assert.ErrorIs(t, config.Validate(), core.ErrInvalidConfig)

	config = sqliteConfig()
	config.Executor.AutoExecuteThreshold = 2.0
	assert.ErrorIs(t, config.Validate(), core.ErrInvalidConfig)
}

func TestValidateRejectsUnknownSimilarityProvider(t *testing.T) {
	config := sqliteConfig()
	config.Similarity = &core.SimilarityConfig{Provider: "word2vec"}
	assert.ErrorIs(t, config.Validate(), core.ErrInvalidConfig)
}

func TestValidateDefaultsSimilarityTimeout(t *testing.T) {
	config := sqliteConfig()
	config.Similarity = &core.SimilarityConfig{Provider: "openai", APIKey: "sk-test"}
	require.NoError(t, config.Validate())
	assert.Equal(t, 2000, config.Similarity.TimeoutMS)
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw, err := json.Marshal(map[string]interface{}{
		"storage": map[string]interface{}{
			"provider": "postgres",
			"config": map[string]interface{}{
				"host": "db.internal",
				"port": 5433,
			},
		},
		"linking": map[string]interface{}{
			"relevance_threshold": 0.4,
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	config, err := core.LoadConfigFromJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", config.Storage.Provider)
	assert.Equal(t, 0.4, config.Linking.RelevanceThreshold)

	_, err = core.LoadConfigFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("TASKMEM_STORAGE_PROVIDER", "mysql")
	t.Setenv("TASKMEM_DB_HOST", "mysql.internal")
	t.Setenv("TASKMEM_DB_PORT", "3307")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "mysql", config.Storage.Provider)
	assert.Equal(t, "mysql.internal", config.Storage.Config["host"])
	assert.Equal(t, 3307, config.Storage.Config["port"])
	require.NotNil(t, config.Similarity)
	assert.Equal(t, "openai", config.Similarity.Provider)
}

func TestEngineErrorWrapping(t *testing.T) {
	err := core.NewEngineError("GetTask", core.ErrNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), "GetTask")

	assert.Nil(t, core.NewEngineError("GetTask", nil))
}
