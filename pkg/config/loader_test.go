package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestInitialize_DefaultsWhenFilesMissing(t *testing.T) {
	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.PrimaryModel)
	assert.Equal(t, 1, cfg.Supervisor.WorkerCount)
	assert.Equal(t, 24*time.Hour, cfg.Supervisor.ApprovalTimeout)
	assert.Equal(t, 3, cfg.Generation.MaxRepairRounds)
	assert.Equal(t, 0.05, cfg.Evolution.DecayLambda)
	assert.Equal(t, 3, cfg.Video.ClipCount)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.RunRetention)
	assert.Equal(t, 0, cfg.LLMProviderRegistry.Len())
	assert.False(t, cfg.Slack.IsEnabled())
}

func TestInitialize_UserValuesWinOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "artist.yaml", `
llm:
  primary_model: "anthropic:claude-sonnet-4-5"
  fallback_models:
    - "openai:gpt-4o"
supervisor:
  worker_count: 2
  approval_timeout: 2h
  approval_poll_interval: 1m
evolution:
  decay_lambda: 0.1
slack:
  channel: "C0123"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "anthropic:claude-sonnet-4-5", cfg.LLM.PrimaryModel)
	assert.Equal(t, []string{"openai:gpt-4o"}, cfg.LLM.FallbackModels)
	assert.Equal(t, 2, cfg.Supervisor.WorkerCount)
	assert.Equal(t, 2*time.Hour, cfg.Supervisor.ApprovalTimeout)

	// Untouched fields keep their defaults.
	assert.Equal(t, 1, cfg.Supervisor.MaxConcurrentRuns)
	assert.Equal(t, 0.1, cfg.Evolution.DecayLambda)
	assert.Equal(t, 1.2, cfg.Evolution.ReinforceFactor)
	assert.True(t, cfg.Slack.IsEnabled())
}

func TestInitialize_LLMProviders(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_OPENAI_KEY_VAR", "OPENAI_API_KEY_ALT")
	writeConfigFile(t, dir, "llm-providers.yaml", `
llm_providers:
  openai-default:
    type: openai
    model: gpt-4o
    api_key_env: "{{.TEST_OPENAI_KEY_VAR}}"
  gemini-flash:
    type: gemini
    model: gemini-2.5-flash
    max_tokens: 4096
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.LLMProviderRegistry.Len())

	p, err := cfg.GetLLMProvider("openai-default")
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeOpenAI, p.Type)
	assert.Equal(t, "OPENAI_API_KEY_ALT", p.APIKeyEnv, "env var expanded via template syntax")

	_, err = cfg.GetLLMProvider("missing")
	assert.ErrorIs(t, err, ErrLLMProviderNotFound)
}

func TestInitialize_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "artist.yaml", "supervisor: [not a mapping")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitialize_ValidationRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "artist.yaml", `
supervisor:
  worker_count: 100
`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker_count")
}
