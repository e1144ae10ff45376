package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/client"

	"github.com/johnbasrai/cr8s-quickstart/internal/model"
)

// defaultPingTimeout bounds a single Ping. Docker Desktop on macOS can be
// noticeably slower to answer than native Linux Docker, so this is
// generous compared to a local socket round trip.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client together with the endpoint it
// was resolved to.
type Client struct {
	inner *client.Client

	// Host is the daemon endpoint, e.g. unix:///run/user/1000/docker.sock.
	Host string

	// Source says how Host was found: DOCKER_HOST, a named context, or a
	// socket on disk.
	Source string
}

// NewClient creates a Docker client pointed at the same daemon the docker
// CLI would use. See hostResolver for the precedence.
//
// client.FromEnv still applies, so DOCKER_TLS_VERIFY, DOCKER_CERT_PATH and
// DOCKER_API_VERSION behave as they do for the CLI.
//
// Returns a model.CLIError with ExitDockerNotRunning if no endpoint can be
// found or the client cannot be created.
func NewClient() (*Client, error) {
	return newClient(defaultResolver())
}

func newClient(r hostResolver) (*Client, error) {
	host, source, err := r.resolve()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "cannot locate the Docker daemon", err)
	}

	// WithHost comes after FromEnv so a context endpoint wins over the
	// SDK's built-in default when DOCKER_HOST is unset.
	c, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}
	return &Client{inner: c, Host: host, Source: source}, nil
}

// Ping verifies the daemon answers within defaultPingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("Docker daemon at %s is not responding, is Docker running?", c.Host),
			err,
		)
	}
	return nil
}

// MissingImages returns the refs that are not in the daemon's local image
// store, in the order given and without duplicates. Only a not-found
// answer counts as missing; any other inspect failure is returned.
func (c *Client) MissingImages(ctx context.Context, refs []string) ([]string, error) {
	seen := make(map[string]bool, len(refs))
	var missing []string
	for _, ref := range refs {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true

		if _, err := c.inner.ImageInspect(ctx, ref); err != nil {
			if cerrdefs.IsNotFound(err) {
				missing = append(missing, ref)
				continue
			}
			return nil, fmt.Errorf("failed to inspect image %s: %w", ref, err)
		}
	}
	return missing, nil
}

// Close releases the client's resources. Safe to call more than once.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Preflight connects to the daemon and pings it. When localImages is not
// empty each one must already exist locally; this is how --dev mode
// catches images that were never built before compose tries to pull them
// from a registry that does not have them.
//
// Errors:
//   - daemon unreachable: ExitDockerNotRunning
//   - a local image is missing: ExitConfigError, naming every missing image
func Preflight(ctx context.Context, logger *log.Logger, localImages []string) error {
	c, err := NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	logger.Debug("Docker daemon endpoint", "host", c.Host, "source", c.Source)
	if err := c.Ping(ctx); err != nil {
		return err
	}
	logger.Debug("Docker daemon is reachable", "host", c.Host)

	if len(localImages) == 0 {
		return nil
	}
	missing, err := c.MissingImages(ctx, localImages)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cannot check local dev images", err)
	}
	if len(missing) > 0 {
		return model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("--dev needs locally built images that are missing: %s", strings.Join(missing, ", ")))
	}
	logger.Info("✅ Local dev images present", "images", localImages)
	return nil
}
