// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "VORO_"

const delim = "."

// flagKeys maps command-line flag names to config keys. Flags not listed
// here are ignored by the loader.
var flagKeys = map[string]string{
	"log-format":     "log.format",
	"log-level":      "log.level",
	"http-addr":      "http.addr",
	"metrics-addr":   "metrics.addr",
	"storage-driver": "storage.driver",
	"database-url":   "database.url",
	"trust-proxy":    "http.trust_proxy",
	"auto-migrate":   "database.auto_migrate",
}

// BindFlags registers the flags understood by Load on fs. Defaults shown in
// help come from Default.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("http-addr", d.HTTP.Addr, "API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("storage-driver", d.Storage.Driver, "storage driver (postgres or memory)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.Bool("trust-proxy", d.HTTP.TrustProxy, "take the client IP from X-Forwarded-For")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on startup")
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// Path is an optional YAML file.
	Path string
	// Flags are applied last. Only flags the user changed override.
	Flags *pflag.FlagSet
	// Overrides are applied after defaults and before the file.
	Overrides map[string]any
}

// Load builds the effective configuration. It does not validate.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(delim)

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, delim), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "overrides").Wrap(err)
		}
	}

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", opts.Path).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, delim, envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, delim, k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
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
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

// envKey turns VORO_HTTP__TRUST_PROXY into http.trust_proxy.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", delim)
}
