package appconfig

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const PathEnv = "SIMPLECHORES_CONFIG_PATH"

// Load reads settings from an optional YAML file and the environment.
// Priority: ENV > YAML > defaults. path wins over SIMPLECHORES_CONFIG_PATH;
// with neither set only ENV and defaults apply. A file that was asked for
// must exist.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv(PathEnv)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}
