// Package docker checks the Docker daemon before the CLI starts spawning
// docker commands.
//
// The daemon endpoint is resolved the way the docker CLI resolves it
// (DOCKER_HOST, then the selected CLI context, then well-known sockets), so
// the check and the later `docker compose` calls agree on which daemon they
// talk to. The endpoint is probed with the Engine SDK's Ping, with API
// version negotiation enabled for broad compatibility.
//
// In --dev mode the locally built images are also inspected, so a missing
// dev build is reported as a configuration error before anything runs.
package docker
