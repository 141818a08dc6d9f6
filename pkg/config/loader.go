package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ArtistYAMLConfig represents the complete artist.yaml file structure
type ArtistYAMLConfig struct {
	LLM        *LLMConfig        `yaml:"llm"`
	Supervisor *SupervisorConfig `yaml:"supervisor"`
	Generation *GenerationConfig `yaml:"generation"`
	Evolution  *EvolutionConfig  `yaml:"evolution"`
	Video      *VideoConfig      `yaml:"video"`
	Slack      *SlackConfig      `yaml:"slack"`
	Retention  *RetentionConfig  `yaml:"retention"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file structure
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in defaults with user-defined values
//  5. Build in-memory registries
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"llm_providers", stats.LLMProviders,
		"fallback_models", stats.FallbackModels)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	// 1. Load artist.yaml (supervisor, generation, evolution, video, slack, llm)
	artistConfig, err := loader.loadArtistYAML()
	if err != nil {
		return nil, NewLoadError("artist.yaml", err)
	}

	// 2. Load llm-providers.yaml
	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	// 3. Merge defaults into each section (user values win)
	llmCfg := mergeSection(artistConfig.LLM, DefaultLLMConfig())
	supervisorCfg := mergeSection(artistConfig.Supervisor, DefaultSupervisorConfig())
	generationCfg := mergeSection(artistConfig.Generation, DefaultGenerationConfig())
	evolutionCfg := mergeSection(artistConfig.Evolution, DefaultEvolutionConfig())
	videoCfg := mergeSection(artistConfig.Video, DefaultVideoConfig())
	retentionCfg := mergeSection(artistConfig.Retention, DefaultRetentionConfig())

	// 4. Build registries
	providerPtrs := make(map[string]*LLMProviderConfig, len(llmProviders.LLMProviders))
	for name := range llmProviders.LLMProviders {
		p := llmProviders.LLMProviders[name]
		providerPtrs[name] = &p
	}

	return &Config{
		configDir:           configDir,
		LLM:                 llmCfg,
		Supervisor:          supervisorCfg,
		Generation:          generationCfg,
		Evolution:           evolutionCfg,
		Video:               videoCfg,
		Slack:               artistConfig.Slack,
		Retention:           retentionCfg,
		LLMProviderRegistry: NewLLMProviderRegistry(providerPtrs),
	}, nil
}

// mergeSection fills zero-valued fields of user with the built-in defaults.
// A nil user section yields the defaults unchanged.
func mergeSection[T any](user, defaults *T) *T {
	if user == nil {
		return defaults
	}
	if err := mergo.Merge(user, defaults); err != nil {
		slog.Warn("Failed to merge config defaults, using user values as-is", "error", err)
	}
	return user
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadArtistYAML() (*ArtistYAMLConfig, error) {
	path := filepath.Join(l.configDir, "artist.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("artist.yaml not found, using built-in defaults", "path", path)
			return &ArtistYAMLConfig{}, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var cfg ArtistYAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}

func (l *configLoader) loadLLMProvidersYAML() (*LLMProvidersYAMLConfig, error) {
	path := filepath.Join(l.configDir, "llm-providers.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("llm-providers.yaml not found, no providers configured", "path", path)
			return &LLMProvidersYAMLConfig{}, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var cfg LLMProvidersYAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}
