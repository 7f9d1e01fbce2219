package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const EnvPrefix = "APP_"

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"listen":           "server.listen",
	"redis-addr":       "redis.addr",
	"db-driver":        "database.driver",
	"db-dsn":           "database.dsn",
	"remote-url":       "remote.base_url",
	"private-key-path": "verifier.private_key_path",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"metrics-listen":   "metrics.listen",
	"debug":            "debug",
}

// RegisterFlags adds the overridable flags to fs. Only flags the user sets
// take effect.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("config", "", "YAML config file path")
	fs.String("listen", d.Server.Listen, "HTTP listen address")
	fs.String("redis-addr", d.Redis.Addr, "Redis address")
	fs.String("db-driver", d.Database.Driver, "database driver (sqlite or mysql)")
	fs.String("db-dsn", d.Database.DSN, "database DSN")
	fs.String("remote-url", "", "remote token service base URL")
	fs.String("private-key-path", "", "service RSA private key (PEM)")
	fs.String("log-level", d.Log.Level, "log level")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("metrics-listen", "", "Prometheus listen address (empty disables)")
	fs.Bool("debug", false, "expose error details in responses")
}

// Loader layers configuration sources.
type Loader struct {
	dotEnv []string
	useEnv bool
	path   string
	flags  *pflag.FlagSet
}

func NewLoader() *Loader {
	return &Loader{useEnv: true}
}

// WithDotEnv loads the given .env files (".env" when none) before reading the
// environment. Missing files are ignored.
func (l *Loader) WithDotEnv(files ...string) *Loader {
	if len(files) == 0 {
		files = []string{".env"}
	}
	l.dotEnv = files
	return l
}

// WithEnv toggles the APP_ environment layer.
func (l *Loader) WithEnv(enabled bool) *Loader {
	l.useEnv = enabled
	return l
}

// WithFile sets the YAML file. The --config flag overrides it.
func (l *Loader) WithFile(path string) *Loader {
	l.path = path
	return l
}

func (l *Loader) WithFlags(fs *pflag.FlagSet) *Loader {
	l.flags = fs
	return l
}

// Load builds the configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	for _, f := range l.dotEnv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	path := l.path
	if l.flags != nil {
		if p, err := l.flags.GetString("config"); err == nil && p != "" {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if l.useEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("load environment: %w", err)
		}
	}

	if l.flags != nil {
		fset := l.flags
		provider := posflag.ProviderWithFlag(fset, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fset, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns APP_DATABASE__TABLE_PREFIX into database.table_prefix.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
