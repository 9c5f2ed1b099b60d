package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the YAML file
const (
	EnvSaveDir    = "IMAGE_SCRAPER_SAVE_DIR"
	EnvStateDir   = "IMAGE_SCRAPER_STATE_DIR"
	EnvUserAgent  = "IMAGE_SCRAPER_USER_AGENT"
	EnvReferer    = "IMAGE_SCRAPER_REFERER"
	EnvListenAddr = "IMAGE_SCRAPER_LISTEN_ADDR"
)

// Load reads the YAML config at path, applies .env and environment overrides, then validates.
// A missing file is only an error when required is true; otherwise defaults are used.
func Load(path string, required bool) (*AppConfig, []string, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &AppConfig{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
		// Defaults only
	default:
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()

	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

func (c *AppConfig) applyEnv() {
	overrides := map[string]*string{
		EnvSaveDir:    &c.SaveDir,
		EnvStateDir:   &c.StateDir,
		EnvUserAgent:  &c.UserAgent,
		EnvReferer:    &c.Referer,
		EnvListenAddr: &c.ListenAddr,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
}
