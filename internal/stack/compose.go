package stack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ComposeFileNames are the file names docker compose looks for, in its own
// order of preference.
var ComposeFileNames = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yaml",
	"docker-compose.yml",
}

// composeOverrides maps each primary file name to the override compose
// merges into it automatically.
var composeOverrides = map[string][]string{
	"compose.yaml":        {"compose.override.yaml", "compose.override.yml"},
	"compose.yml":         {"compose.override.yml", "compose.override.yaml"},
	"docker-compose.yaml": {"docker-compose.override.yaml", "docker-compose.override.yml"},
	"docker-compose.yml":  {"docker-compose.override.yml", "docker-compose.override.yaml"},
}

// errProjectUnresolved means the compose project cannot be reconstructed
// from files alone (COMPOSE_FILE, or an include path built from variables).
// Compose itself is left to resolve it.
var errProjectUnresolved = errors.New("compose project cannot be resolved statically")

// errNoComposeFile means the project directory holds no compose file.
var errNoComposeFile = errors.New("no compose file found")

// composeDocument is the subset of a compose file this package reads.
// Service bodies are irrelevant; only the names matter.
type composeDocument struct {
	Include  []includeEntry       `yaml:"include"`
	Services map[string]yaml.Node `yaml:"services"`
}

// includeEntry is one element of a top-level include list. Compose accepts
// both the short form (a path string) and the long form (a mapping whose
// path is a string or a list of strings).
type includeEntry struct {
	Paths []string
}

// UnmarshalYAML implements yaml.Unmarshaler for both include forms.
func (e *includeEntry) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		e.Paths = []string{n.Value}
		return nil

	case yaml.MappingNode:
		var long struct {
			Path yaml.Node `yaml:"path"`
		}
		if err := n.Decode(&long); err != nil {
			return err
		}
		switch long.Path.Kind {
		case yaml.ScalarNode:
			e.Paths = []string{long.Path.Value}
			return nil
		case yaml.SequenceNode:
			return long.Path.Decode(&e.Paths)
		}
		return fmt.Errorf("line %d: include entry has no path", n.Line)

	default:
		return fmt.Errorf("line %d: include entry must be a path or a mapping", n.Line)
	}
}

// FindComposeFile returns the first compose file present in dir.
func FindComposeFile(dir string) (string, bool) {
	for _, name := range ComposeFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// ProjectServices returns the sorted service names of the compose project
// in dir, following the override file and include entries recursively.
// The second result lists every file that was read.
//
// errNoComposeFile and errProjectUnresolved are returned when the project
// cannot be reconstructed here; any other error means a file that compose
// would also fail to load.
func ProjectServices(dir string) ([]string, []string, error) {
	if composeFileSelected(dir) {
		return nil, nil, errProjectUnresolved
	}

	primary, ok := FindComposeFile(dir)
	if !ok {
		return nil, nil, errNoComposeFile
	}
	roots := []string{primary}
	for _, name := range composeOverrides[filepath.Base(primary)] {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			roots = append(roots, path)
			break
		}
	}

	w := &projectWalker{services: map[string]bool{}, visited: map[string]bool{}}
	for _, path := range roots {
		if err := w.load(path); err != nil {
			return nil, nil, err
		}
	}

	names := make([]string, 0, len(w.services))
	for name := range w.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, w.files, nil
}

// projectWalker accumulates services across included files. visited guards
// against include cycles.
type projectWalker struct {
	services map[string]bool
	visited  map[string]bool
	files    []string
}

func (w *projectWalker) load(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if w.visited[abs] {
		return nil
	}
	w.visited[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return err
	}
	var doc composeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", abs, err)
	}
	w.files = append(w.files, abs)

	for name := range doc.Services {
		w.services[name] = true
	}

	// Included paths are relative to the including file.
	for _, entry := range doc.Include {
		for _, inc := range entry.Paths {
			if strings.Contains(inc, "$") {
				return fmt.Errorf("%w: include %q in %s uses interpolation", errProjectUnresolved, inc, abs)
			}
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(filepath.Dir(abs), inc)
			}
			if err := w.load(inc); err != nil {
				return err
			}
		}
	}
	return nil
}

// composeFileSelected reports whether COMPOSE_FILE picks the project files,
// either in the process environment or in the project's .env, which
// compose reads on its own.
func composeFileSelected(dir string) bool {
	if v, ok := os.LookupEnv("COMPOSE_FILE"); ok && v != "" {
		return true
	}
	values, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		return false
	}
	return values["COMPOSE_FILE"] != ""
}

// undeclared returns the entries of wanted that are not in declared, in
// the order of wanted.
func undeclared(wanted, declared []string) []string {
	known := make(map[string]bool, len(declared))
	for _, name := range declared {
		known[name] = true
	}
	var out []string
	for _, name := range wanted {
		if !known[name] {
			out = append(out, name)
		}
	}
	return out
}
