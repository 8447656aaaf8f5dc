// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/dikser/dikser/internal/xdg"
)

// EnvPrefix prefixes every environment override. Sections are separated by a
// double underscore: DIKSER_AUTH__JWT_SECRET sets auth.jwt_secret.
const EnvPrefix = "DIKSER_"

// databaseURLEnv is honoured when database.url is otherwise unset.
const databaseURLEnv = "DATABASE_URL"

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":            "server.addr",
	"allowed-origins": "server.allowed_origins",
	"metrics-addr":    "metrics.addr",
	"database-url":    "database.url",
	"token-ttl":       "auth.token_ttl",
	"log-format":      "log.format",
	"log-level":       "log.level",
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// File is an explicit config file. When empty the XDG default is used if
	// it exists.
	File string
	// EnvFiles are dotenv files loaded into the process environment first.
	// Missing files are skipped.
	EnvFiles []string
	// Flags holds flags registered with BindFlags. Only changed flags apply.
	Flags *pflag.FlagSet
}

// BindFlags registers the config override flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("addr", DefaultServerAddr, "HTTP API listen address")
	fs.StringSlice("allowed-origins", nil, "CORS origin globs")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health listen address (empty disables)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("token-ttl", DefaultTokenTTL, "token and session lifetime")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
}

// Load resolves configuration from defaults, the config file, the
// environment and flags, then validates value formats.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	path, explicit := opts.File, opts.File != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if err := loadFile(k, path, explicit); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}
	if k.String("database.url") == "" {
		if url := os.Getenv(databaseURLEnv); url != "" {
			if err := k.Set("database.url", url); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", databaseURLEnv).Wrap(err)
			}
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateFile checks a config file against the schema and the value rules.
func ValidateFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := ValidateSchema(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return oops.Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}
	return cfg.Validate()
}

func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	if err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := ValidateSchema(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func loadEnvFiles(paths []string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return oops.Code("CONFIG_ENV_FILE_INVALID").With("path", p).Wrap(err)
	}
	return nil
}

// envKey turns DIKSER_AUTH__JWT_SECRET into auth.jwt_secret.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
