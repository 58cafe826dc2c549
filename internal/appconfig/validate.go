package appconfig

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Validate checks the loaded values; Load calls it automatically.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be > 0 (got %s)", c.Server.ShutdownTimeout))
	}
	if c.Server.WriteLimit < 0 {
		errs = append(errs, fmt.Errorf("server.write_limit must be >= 0 (got %d)", c.Server.WriteLimit))
	}
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		errs = append(errs, errors.New("storage.db_path is required"))
	}
	if strings.TrimSpace(c.Storage.ChoresFile) == "" {
		errs = append(errs, errors.New("storage.chores_file is required"))
	}
	if c.Storage.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("storage.poll_interval must be > 0 (got %s)", c.Storage.PollInterval))
	}
	if c.Rollover.At != "" {
		if _, err := time.Parse("15:04", c.Rollover.At); err != nil {
			errs = append(errs, fmt.Errorf("rollover.at must be HH:MM (got %q)", c.Rollover.At))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for http.Server.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Origins splits OriginPatterns.
func (c ServerConfig) Origins() []string {
	var out []string
	for _, p := range strings.Split(c.OriginPatterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
