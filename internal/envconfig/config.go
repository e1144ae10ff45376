// Package envconfig resolves the configuration values consumed by the
// compose stack and the image build.
//
// Each key is taken from an external source when present (process
// environment first, then a .env file) and otherwise from a default table
// selected by developer mode. The result is an immutable Config that is
// handed to every component and exported to spawned commands explicitly;
// the process environment is never modified.
package envconfig

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Configuration keys. They double as the environment variable names seen
// by docker compose and the Dockerfiles.
const (
	KeyVersion       = "CR8S_VERSION"
	KeyScratchDir    = "CR8S_SCRATCH_DIR"
	KeyRustDevImage  = "RUST_DEV_IMAGE"
	KeyFEBaseImage   = "FE_BASE_IMAGE"
	KeyBECLIImage    = "BE_CLI_IMAGE"
	KeyFEServerImage = "FE_SERVER_IMAGE"
	KeyBEServerImage = "BE_SERVER_IMAGE"
)

// Scratch subdirectories under the scratch root.
const (
	targetCacheDirName   = "dev-target"
	registryCacheDirName = "dev-cargo"
)

// Config is the resolved, read-only configuration for one invocation.
type Config struct {
	devMode bool
	values  map[string]string
	keys    []string
}

// NewConfig builds a Config from an explicit map. Keys are ordered
// alphabetically. Resolver.Resolve is the normal constructor; this one
// exists for callers that already hold final values.
func NewConfig(devMode bool, values map[string]string) *Config {
	keys := make([]string, 0, len(values))
	copied := make(map[string]string, len(values))
	for k, v := range values {
		keys = append(keys, k)
		copied[k] = v
	}
	sort.Strings(keys)
	return &Config{devMode: devMode, values: copied, keys: keys}
}

// DevMode reports whether developer-local image names were selected.
func (c *Config) DevMode() bool { return c.devMode }

// Lookup returns the value for key and whether it was resolved.
func (c *Config) Lookup(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Get returns the value for key, or "" when it was not resolved.
func (c *Config) Get(key string) string {
	return c.values[key]
}

// Require returns the value for key or an error naming the missing key.
func (c *Config) Require(key string) (string, error) {
	v, ok := c.values[key]
	if !ok || v == "" {
		return "", fmt.Errorf("configuration key %s is not set", key)
	}
	return v, nil
}

// Version is the resolved CR8S_VERSION.
func (c *Config) Version() string { return c.values[KeyVersion] }

// ScratchDir is the root of the host-side build caches.
func (c *Config) ScratchDir() string { return c.values[KeyScratchDir] }

// TargetCacheDir is the build-cache directory mounted at /app/target.
func (c *Config) TargetCacheDir() string {
	return filepath.Join(c.ScratchDir(), targetCacheDirName)
}

// RegistryCacheDir is the package-cache directory mounted at the cargo
// registry path.
func (c *Config) RegistryCacheDir() string {
	return filepath.Join(c.ScratchDir(), registryCacheDirName)
}

// Keys returns the resolved keys in resolution order.
func (c *Config) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Values returns a copy of the resolved mapping.
func (c *Config) Values() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Environ renders the configuration as KEY=VALUE pairs in resolution
// order, ready to append to a child process environment.
func (c *Config) Environ() []string {
	env := make([]string, 0, len(c.keys))
	for _, k := range c.keys {
		env = append(env, k+"="+c.values[k])
	}
	return env
}
