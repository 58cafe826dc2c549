// Package appconfig holds process settings: where things live, how the
// server listens and how loudly it logs. The chore document itself is
// handled by package config.
package appconfig

import "time"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Rollover RolloverConfig `yaml:"rollover"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SIMPLECHORES_HOST"             env-default:""`
	Port            int           `yaml:"port"             env:"SIMPLECHORES_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SIMPLECHORES_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SIMPLECHORES_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SIMPLECHORES_SHUTDOWN_TIMEOUT" env-default:"5s"`
	// OriginPatterns is a comma separated list handed to the websocket
	// upgrade; empty accepts any origin.
	OriginPatterns string `yaml:"origin_patterns" env:"SIMPLECHORES_WS_ORIGINS" env-default:""`
	// WriteLimit caps mutating requests per client per minute; 0 disables it.
	WriteLimit int `yaml:"write_limit" env:"SIMPLECHORES_WRITE_LIMIT" env-default:"120"`
}

type StorageConfig struct {
	DBPath       string        `yaml:"db_path"       env:"SIMPLECHORES_DB_PATH"       env-default:"simplechores.db"`
	ChoresFile   string        `yaml:"chores_file"   env:"SIMPLECHORES_CHORES_FILE"   env-default:"simple_chores.yaml"`
	PollInterval time.Duration `yaml:"poll_interval" env:"SIMPLECHORES_POLL_INTERVAL" env-default:"5s"`
}

type RolloverConfig struct {
	// At is the local "HH:MM" after which the day rolls over; empty turns
	// the scheduler off.
	At string `yaml:"at" env:"SIMPLECHORES_ROLLOVER_AT" env-default:""`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"SIMPLECHORES_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"SIMPLECHORES_LOG_FORMAT" env-default:"text"`
}
