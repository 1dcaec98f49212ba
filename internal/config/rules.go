package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stockmarket/internal/game"
)

// LoadRules reads a YAML rules file. Fields left out keep their defaults.
func LoadRules(path string) (game.Rules, error) {
	var r game.Rules
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read rules: %w", err)
	}
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("%s: %w", path, err)
	}
	r = r.WithDefaults()
	if r.MarginRatioPct > 100 {
		return r, fmt.Errorf("%s: margin_ratio_pct must be <= 100", path)
	}
	return r, nil
}
