package openai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmem-labs/taskmem-go/pkg/similarity/openai"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := openai.NewClient(&openai.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestNewClientResolvesModelName(t *testing.T) {
	client, err := openai.NewClient(&openai.Config{
		APIKey: "sk-test",
		Model:  "text-embedding-ada-002",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewClientDefaultsModel(t *testing.T) {
	client, err := openai.NewClient(&openai.Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewClientRejectsUnknownModel(t *testing.T) {
	_, err := openai.NewClient(&openai.Config{
		APIKey: "sk-test",
		Model:  "text-embedding-9-large",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding model")
}
