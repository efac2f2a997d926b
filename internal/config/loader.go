package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "statcube.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "statcube.yml"

// envPrefix namespaces statcube environment variables, e.g.
// STATCUBE_DATABASE_HOST -> database.host.
const envPrefix = "STATCUBE_"

// defaults is the lowest-precedence configuration layer.
var defaults = map[string]interface{}{
	"database.host":               "localhost",
	"database.port":               5432,
	"database.ssl_mode":           "disable",
	"database.max_conns":          8,
	"database.max_conn_lifetime":  "30m",
	"database.max_conn_idle_time": "5m",
	"engine.path":                 "statcube.duckdb",
	"engine.threads":              4,
	"engine.memory_limit":         "2GB",
	"engine.settle_interval":      "200ms",
	"storage.backend":             "fs",
	"storage.root_dir":            "uploads",
	"cache.path":                  "querystore.db",
	"locales.supported":           []string{"en-GB", "cy-GB"},
	"locales.default":             "en-GB",
	"verbose":                     false,
}

// findConfigFile finds the config file to use.
// Priority: explicit path > statcube.yaml > statcube.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}

// Load reads configuration from defaults, a config file, STATCUBE_
// environment variables and flags, later layers overriding earlier ones.
// cfgFile may be empty, in which case statcube.yaml in the working
// directory is used if present. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFileUsed := findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// STATCUBE_DATABASE_MAX_CONNS -> database.max_conns;
	// STATCUBE_STAGING_DIR -> staging_dir.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		for _, section := range []string{"database", "engine", "storage", "cache", "locales"} {
			if strings.HasPrefix(key, section+"_") {
				return section + "." + strings.TrimPrefix(key, section+"_")
			}
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// --database-host maps to database.host; flags outside a
			// known section map to top-level keys with underscores.
			key := strings.ReplaceAll(f.Name, "-", "_")
			for _, section := range []string{"database", "engine", "storage", "cache", "locales"} {
				if strings.HasPrefix(key, section+"_") {
					key = section + "." + strings.TrimPrefix(key, section+"_")
					break
				}
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if configFileUsed != "" {
		base := filepath.Dir(configFileUsed)
		cfg.Engine.Path = resolvePathRelativeTo(cfg.Engine.Path, base)
		cfg.Cache.Path = resolvePathRelativeTo(cfg.Cache.Path, base)
		if cfg.Storage.Backend == "fs" {
			cfg.Storage.RootDir = resolvePathRelativeTo(cfg.Storage.RootDir, base)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not
// absolute. Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
