package envconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
)

// ManifestFiles are searched in order for a project version.
var ManifestFiles = []string{"Cargo.toml", "package.json"}

// errNoVersion is returned when a manifest parses but carries no version.
var errNoVersion = errors.New("no version field")

// ManifestVersion is a version read from a project manifest.
type ManifestVersion struct {
	Path    string
	Version string
}

// ReadManifestVersion returns the first valid semantic version found in the
// manifests under dir. Missing manifests are skipped. Manifests that exist
// but hold no usable version are reported through skipped so the caller
// can log them; they do not stop the search.
func ReadManifestVersion(dir string) (found *ManifestVersion, skipped []error) {
	for _, name := range ManifestFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				skipped = append(skipped, fmt.Errorf("%s: %w", path, err))
			}
			continue
		}

		var v string
		switch filepath.Ext(name) {
		case ".toml":
			v, err = cargoVersion(data)
		case ".json":
			v, err = packageJSONVersion(data)
		}
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", path, err))
			continue
		}

		if _, err := semver.NewVersion(v); err != nil {
			skipped = append(skipped, fmt.Errorf("%s: version %q is not a semantic version: %w", path, v, err))
			continue
		}
		return &ManifestVersion{Path: path, Version: v}, skipped
	}
	return nil, skipped
}

// cargoVersion extracts [package].version from a Cargo.toml document.
// Workspace-inherited versions (version.workspace = true) are not strings
// and count as missing.
func cargoVersion(data []byte) (string, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	pkg, ok := doc["package"].(map[string]any)
	if !ok {
		return "", errNoVersion
	}
	v, ok := pkg["version"].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", errNoVersion
	}
	return strings.TrimSpace(v), nil
}

// packageJSONVersion extracts the top-level version from package.json.
// Comments and trailing commas are tolerated.
func packageJSONVersion(data []byte) (string, error) {
	var doc struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return "", err
	}
	if strings.TrimSpace(doc.Version) == "" {
		return "", errNoVersion
	}
	return strings.TrimSpace(doc.Version), nil
}
