package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConfigCache is the source registry: one YAML file per source.
type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		// Derive source id from filename (remove .yml extension)
		fileName := filepath.Base(file)
		sourceID := fileName[:len(fileName)-4]

		config, err := cc.LoadConfig(sourceID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source loaded", "source", sourceID, "type", config.Type, "enabled", config.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceID string) (*Config, error) {
	configFile := cc.getConfigFilePath(sourceID)
	sourceConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	sourceConfig.ID = sourceID

	if err := cc.validateConfig(sourceConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[sourceConfig.ID] = sourceConfig

	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfig(sourceID string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sourceConfig, ok := cc.cache[sourceID]
	if !ok {
		return nil, fmt.Errorf("source config with id '%s' not found", sourceID)
	}
	return sourceConfig, nil
}

// GetRunnableConfigs returns enabled RSS sources ordered by id.
func (cc *ConfigCache) GetRunnableConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	var configs []*Config
	for _, v := range cc.cache {
		if v.Enabled && v.Type == SourceRSS {
			configs = append(configs, v)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs
}

// SourceName returns the display name of a source, "" when unknown.
func (cc *ConfigCache) SourceName(sourceID string) string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	if c, ok := cc.cache[sourceID]; ok {
		return c.Name
	}
	return ""
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sourceConfig Config
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if sourceConfig.Lang == "" {
		sourceConfig.Lang = "he"
	}
	if sourceConfig.Type == "" {
		sourceConfig.Type = SourceRSS
	}

	return &sourceConfig, nil
}

func (cc *ConfigCache) validateConfig(sourceConfig *Config) error {
	if sourceConfig == nil {
		return fmt.Errorf("sourceConfig is nil")
	}

	requiredFields := map[string]string{
		"source name": sourceConfig.Name,
		"source URL":  sourceConfig.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if u, err := url.Parse(sourceConfig.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("source URL must be an absolute http(s) URL")
	}

	switch sourceConfig.Type {
	case SourceRSS, SourceSitemap, SourceHTML:
	default:
		return fmt.Errorf("invalid source type: %s", sourceConfig.Type)
	}

	nonNegativeFields := map[string]int{
		"min interval":      sourceConfig.Throttle.MinIntervalSec,
		"max items per run": sourceConfig.Throttle.MaxItemsPerRun,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(sourceID string) string {
	return filepath.Join(cc.sourcesDir, sourceID+".yml")
}
