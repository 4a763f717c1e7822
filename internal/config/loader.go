package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadResult carries the effective config and where it came from.
type LoadResult struct {
	Config *Config
	// File is the config file that was read, empty when none existed.
	File string
	// EnvOverrides lists the environment variables that changed a value.
	EnvOverrides []string
}

// envOverride maps environment variables onto config fields. Earlier
// names win over later ones.
type envOverride struct {
	names []string
	apply func(cfg *Config, value string)
}

var envOverrides = []envOverride{
	{
		names: []string{"FLOATDROP_API_BASE_URL", "API_BASE_URL"},
		apply: func(cfg *Config, v string) { cfg.Transfer.BaseURL = v },
	},
	{
		names: []string{"FLOATDROP_API_KEY", "API_KEY"},
		apply: func(cfg *Config, v string) { cfg.Transfer.APIKey = v },
	},
	{
		names: []string{"FLOATDROP_LOG_LEVEL"},
		apply: func(cfg *Config, v string) { cfg.Logging.Level = v },
	},
	{
		names: []string{"FLOATDROP_RELAY_LISTEN"},
		apply: func(cfg *Config, v string) { cfg.Relay.Listen = v },
	},
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "floatdrop", "config.yaml"), nil
}

// Load reads the configuration from the standard location and returns an
// effective config ready for use by the daemon.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and reports the file and env overrides used.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath decodes path over the defaults. A missing file yields the
// defaults; unknown keys are rejected.
func LoadFromPath(path string) (*LoadResult, error) {
	cfg := DefaultConfig()
	res := &LoadResult{Config: cfg}

	exists, err := pathExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := decodeStrictYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		res.File = path
	}

	res.EnvOverrides = applyEnvOverrides(cfg)
	cfg.Scratch.Root = expandHome(cfg.Scratch.Root)
	cfg.Relay.LocalPath = expandHome(cfg.Relay.LocalPath)
	cfg.Logging.File = expandHome(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) && res.File != "" {
			verr.File = res.File
		}
		return nil, err
	}
	return res, nil
}

func applyEnvOverrides(cfg *Config) []string {
	var applied []string
	for _, o := range envOverrides {
		for _, name := range o.names {
			v, ok := os.LookupEnv(name)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			o.apply(cfg, strings.TrimSpace(v))
			applied = append(applied, name)
			break
		}
	}
	return applied
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func expandHome(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}
