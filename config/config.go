// Package config loads the typed configuration shared by the ssikv
// binaries: logger setup, telemetry setup, and the admin HTTP surface.
// It follows the teacher's default-then-override-from-file pattern,
// just backed by a YAML file instead of baked-in constants.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vealocia/advdb-final-proj/pkg/logger"
	"github.com/vealocia/advdb-final-proj/pkg/telemetry"
)

// AdminConfig configures the optional admin HTTP introspection surface
// served by cmd/ssikv-admin alongside the deterministic driver.
type AdminConfig struct {
	ListenAddr         string  `yaml:"listen_addr"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

// Config is the root configuration for every ssikv binary.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Admin     AdminConfig      `yaml:"admin"`
}

// Default returns the configuration used when no file is given: logs to
// stderr at info level, telemetry disabled, admin surface on localhost.
func Default() Config {
	return Config{
		Logger: logger.Config{
			Level:       "info",
			Format:      "console",
			OutputFile:  "stderr",
			ServiceName: "ssikv",
		},
		Telemetry: telemetry.Config{
			Enabled:          false,
			ServiceName:      "ssikv",
			PrometheusPort:   9464,
			TraceSampleRatio: 1.0,
		},
		Admin: AdminConfig{
			ListenAddr:         "127.0.0.1:8091",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
		},
	}
}

// Load reads path (YAML) over top of Default(). An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
