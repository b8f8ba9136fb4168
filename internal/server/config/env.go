package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays Config with environment variables. Variables that are
// unset leave the current value alone; the names follow the original
// deployment (SECRET_KEY, ALLOWED_ROLEID, USERS_TABLE, ...).
func parseEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
