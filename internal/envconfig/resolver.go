package envconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/johnbasrai/cr8s-quickstart/internal/model"
)

// Built-in defaults.
const (
	DefaultVersion       = "0.5.1"
	DefaultScratchDir    = "/var/tmp"
	DefaultRustDevImage  = "ghcr.io/johnbasrai/cr8s/rust-dev:1.83.0-rev5"
	DefaultFEServerImage = "cr8s-fe-server"

	releaseRegistry = "ghcr.io/johnbasrai/cr8s"
	devCLIImage     = "cr8s-cli-dev"
	devServerImage  = "cr8s-server-dev"
)

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

// LookupFunc reports an externally supplied value for key.
type LookupFunc func(key string) (string, bool)

// ChainLookup consults each lookup in order and returns the first hit.
func ChainLookup(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, l := range lookups {
			if v, ok := l(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// MapLookup serves values from a fixed map.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// DefaultFunc computes the default for an entry. resolved holds every key
// resolved before it, so later entries may derive from earlier ones.
// Returning false means the entry has no default.
type DefaultFunc func(devMode bool, resolved map[string]string) (string, bool)

// Entry is one configuration key with its default provider. A nil Default
// makes the key required.
type Entry struct {
	Key     string
	Default DefaultFunc
}

func static(v string) DefaultFunc {
	return func(bool, map[string]string) (string, bool) { return v, true }
}

func sameAs(key string) DefaultFunc {
	return func(_ bool, resolved map[string]string) (string, bool) {
		v, ok := resolved[key]
		return v, ok
	}
}

// releaseOrDev picks a versioned release image or a local dev image name.
func releaseOrDev(release, dev string) DefaultFunc {
	return func(devMode bool, resolved map[string]string) (string, bool) {
		if devMode {
			return dev, true
		}
		return fmt.Sprintf("%s/%s:%s", releaseRegistry, release, resolved[KeyVersion]), true
	}
}

// DefaultEntries is the production key table in resolution order.
// CR8S_VERSION is resolved before any entry.
func DefaultEntries() []Entry {
	return []Entry{
		{Key: KeyScratchDir, Default: static(DefaultScratchDir)},
		{Key: KeyRustDevImage, Default: static(DefaultRustDevImage)},
		{Key: KeyFEBaseImage, Default: sameAs(KeyRustDevImage)},
		{Key: KeyBECLIImage, Default: releaseOrDev("cr8s-cli", devCLIImage)},
		{Key: KeyFEServerImage, Default: static(DefaultFEServerImage)},
		{Key: KeyBEServerImage, Default: releaseOrDev("cr8s-server", devServerImage)},
	}
}

// Resolver computes a Config from external values and defaults.
// It performs no writes; resolving twice with the same inputs yields the
// same Config.
type Resolver struct {
	// Lookup supplies external values. Empty values count as unset.
	Lookup LookupFunc

	// Dir is searched for project manifests.
	Dir string

	// Entries is the key table. DefaultEntries when nil.
	Entries []Entry

	logger *log.Logger
}

// NewResolver returns a Resolver that reads the process environment first
// and then dir/.env. A malformed .env file is a configuration error.
func NewResolver(logger *log.Logger, dir string) (*Resolver, error) {
	lookups := []LookupFunc{os.LookupEnv}

	dotenvPath := filepath.Join(dir, DotEnvFile)
	if _, err := os.Stat(dotenvPath); err == nil {
		values, err := godotenv.Read(dotenvPath)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to parse %s", dotenvPath), err)
		}
		if logger != nil {
			logger.Debug("loaded dotenv file", "path", dotenvPath, "keys", len(values))
		}
		lookups = append(lookups, MapLookup(values))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to stat %s", dotenvPath), err)
	}

	return &Resolver{
		Lookup: ChainLookup(lookups...),
		Dir:    dir,
		logger: logger,
	}, nil
}

func (r *Resolver) external(key string) (string, bool) {
	if r.Lookup == nil {
		return "", false
	}
	v, ok := r.Lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ResolveVersion applies the version precedence: external override, then
// the project manifest, then DefaultVersion. An empty CR8S_VERSION counts
// as unset. The second result names the source for logging.
func (r *Resolver) ResolveVersion() (string, string) {
	if v, ok := r.external(KeyVersion); ok {
		return v, "external"
	}
	found, skipped := ReadManifestVersion(r.Dir)
	for _, err := range skipped {
		r.warn("ignoring manifest version", "err", err)
	}
	if found != nil {
		return found.Version, found.Path
	}
	return DefaultVersion, "default"
}

// Resolve builds the Config for devMode. Each key takes its external
// value verbatim when present, otherwise the entry default. A key with
// neither is a configuration error.
//
// An external value that is set but empty (FOO= in the environment or in
// .env) counts as unset, so the default applies. Use a non-empty value to
// override a default.
func (r *Resolver) Resolve(devMode bool) (*Config, error) {
	entries := r.Entries
	if entries == nil {
		entries = DefaultEntries()
	}

	version, source := r.ResolveVersion()
	resolved := map[string]string{KeyVersion: version}
	keys := []string{KeyVersion}
	r.info("env", "key", KeyVersion, "value", version, "source", source)

	for _, e := range entries {
		value, ok := r.external(e.Key)
		source := "external"
		if !ok && e.Default != nil {
			value, ok = e.Default(devMode, resolved)
			source = "default"
		}
		if !ok || value == "" {
			return nil, model.NewCLIError(model.ExitConfigError,
				fmt.Sprintf("required configuration %s is not set and has no default", e.Key))
		}
		resolved[e.Key] = value
		keys = append(keys, e.Key)
		r.info("env", "key", e.Key, "value", value, "source", source)
	}

	return &Config{devMode: devMode, values: resolved, keys: keys}, nil
}

func (r *Resolver) info(msg string, keyvals ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keyvals...)
	}
}

func (r *Resolver) warn(msg string, keyvals ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, keyvals...)
	}
}
