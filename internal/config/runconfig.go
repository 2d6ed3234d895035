package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/memdedup-go/internal/models"
)

// LoadRunConfig reads a per-run deduplication config from a YAML file.
// Missing fields keep their defaults; the merged config is validated before
// it is returned.
func LoadRunConfig(path string) (models.DeduplicationConfig, error) {
	cfg := models.DefaultDeduplicationConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read run config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse run config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
