package docker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/docker/docker/client"
)

// defaultContextName is the implicit context that means "no context
// configured, use DOCKER_HOST or the platform default".
const defaultContextName = "default"

// Host sources reported alongside the resolved host.
const (
	sourceEnv      = "DOCKER_HOST"
	sourceContext  = "context"
	sourceSocket   = "socket"
	sourcePlatform = "platform default"
)

// hostResolver finds the daemon endpoint the same way the docker CLI does,
// so the preflight talks to the daemon that `docker compose` will use.
//
// Precedence:
//  1. DOCKER_HOST
//  2. DOCKER_CONTEXT, else currentContext in the CLI config.json
//     (a context other than "default" must exist in the context store)
//  3. Well-known sockets: the system socket, the rootless socket under
//     $XDG_RUNTIME_DIR, Docker Desktop and colima sockets under $HOME
type hostResolver struct {
	getenv func(string) string

	// configDir is the docker CLI config directory ($DOCKER_CONFIG or
	// ~/.docker). The context store lives under it.
	configDir string

	// systemSocket is the root-owned daemon socket.
	systemSocket string

	goos string
}

// defaultResolver reads the real environment and CLI config directory.
func defaultResolver() hostResolver {
	return hostResolver{
		getenv:       os.Getenv,
		configDir:    cliConfigDir(os.Getenv),
		systemSocket: "/var/run/docker.sock",
		goos:         runtime.GOOS,
	}
}

// cliConfigDir mirrors the docker CLI: $DOCKER_CONFIG, else ~/.docker.
func cliConfigDir(getenv func(string) string) string {
	if dir := getenv("DOCKER_CONFIG"); dir != "" {
		return dir
	}
	home := getenv("HOME")
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, ".docker")
}

// resolve returns the daemon host URI and a short description of where it
// came from, for logging.
func (r hostResolver) resolve() (host, source string, err error) {
	// Step 1: an explicit DOCKER_HOST overrides any context, as in the CLI.
	if h := r.getenv("DOCKER_HOST"); h != "" {
		return h, sourceEnv, nil
	}

	// Step 2: a named context. DOCKER_CONTEXT wins over `docker context use`.
	name := r.getenv("DOCKER_CONTEXT")
	if name == "" {
		name, err = r.currentContext()
		if err != nil {
			return "", "", err
		}
	}
	if name != "" && name != defaultContextName {
		h, err := r.contextHost(name)
		if err != nil {
			return "", "", err
		}
		return h, sourceContext + " " + name, nil
	}

	// Step 3: no context, look for a socket on disk. Named pipes on Windows
	// cannot be stat'ed, so the client default is used there unchecked.
	if r.goos == "windows" {
		return client.DefaultDockerHost, sourcePlatform, nil
	}
	h, err := r.detectSocket()
	if err != nil {
		return "", "", err
	}
	return h, sourceSocket, nil
}

// currentContext reads currentContext from the CLI config.json. A missing
// file means no context has ever been selected.
func (r hostResolver) currentContext() (string, error) {
	if r.configDir == "" {
		return "", nil
	}
	path := filepath.Join(r.configDir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read docker CLI config %s: %w", path, err)
	}

	var cfg struct {
		CurrentContext string `json:"currentContext"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("failed to parse docker CLI config %s: %w", path, err)
	}
	return cfg.CurrentContext, nil
}

// contextHost looks up the docker endpoint of a named context. The CLI
// stores each context under contexts/meta/<sha256 of the name>/meta.json.
func (r hostResolver) contextHost(name string) (string, error) {
	digest := sha256.Sum256([]byte(name))
	path := filepath.Join(r.configDir, "contexts", "meta", hex.EncodeToString(digest[:]), "meta.json")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("docker context %q not found (looked in %s)", name, path)
		}
		return "", fmt.Errorf("failed to read docker context %q: %w", name, err)
	}

	var meta struct {
		Endpoints map[string]struct {
			Host string `json:"Host"`
		} `json:"Endpoints"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("failed to parse docker context %q: %w", name, err)
	}
	host := meta.Endpoints["docker"].Host
	if host == "" {
		return "", fmt.Errorf("docker context %q has no docker endpoint", name)
	}
	return host, nil
}

// socketCandidates lists the sockets probed when no host or context is
// configured, in order.
func (r hostResolver) socketCandidates() []string {
	paths := []string{r.systemSocket}
	if xdg := r.getenv("XDG_RUNTIME_DIR"); xdg != "" {
		// Rootless dockerd.
		paths = append(paths, filepath.Join(xdg, "docker.sock"))
	}
	if home := r.getenv("HOME"); home != "" {
		paths = append(paths,
			filepath.Join(home, ".docker", "run", "docker.sock"),
			filepath.Join(home, ".colima", "default", "docker.sock"),
		)
	}
	return paths
}

// detectSocket returns the host URI of the first existing candidate.
func (r hostResolver) detectSocket() (string, error) {
	paths := r.socketCandidates()
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v, is Docker running?", paths)
}
