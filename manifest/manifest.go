// Package manifest handles morph.toml (or morph.yaml) project configuration.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Manifest file names, in lookup order.
const (
	TOMLName = "morph.toml"
	YAMLName = "morph.yaml"
)

// Manifest represents a project configuration.
type Manifest struct {
	Project      Project               `toml:"project" yaml:"project"`
	Modules      Modules               `toml:"modules" yaml:"modules"`
	Runtime      Runtime               `toml:"runtime" yaml:"runtime"`
	Dependencies map[string]Dependency `toml:"dependencies" yaml:"dependencies"`

	// Dir is the directory containing the manifest file (set at load time).
	Dir string `toml:"-" yaml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name" yaml:"name"`
	Version string `toml:"version" yaml:"version"`
}

// Modules configures import resolution.
type Modules struct {
	Paths      []string `toml:"paths" yaml:"paths"`
	Extensions []string `toml:"extensions" yaml:"extensions"`
}

// Runtime configures the VM.
type Runtime struct {
	MaxFrames int  `toml:"max-frames" yaml:"max-frames"`
	Trace     bool `toml:"trace" yaml:"trace"`
}

// Dependency is another project whose module directories are searched by
// IMPORT.
type Dependency struct {
	Path string `toml:"path" yaml:"path"`
}

// DefaultExtensions are tried when the manifest lists none.
var DefaultExtensions = []string{".mvm", ".fox.mvm"}

// Load parses the manifest in dir, preferring morph.toml over morph.yaml.
func Load(dir string) (*Manifest, error) {
	for _, name := range []string{TOMLName, YAMLName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("cannot read manifest in %s: %w", dir, fs.ErrNotExist)
}

// LoadFile parses a manifest file. The format follows the file extension.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = toml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if len(m.Modules.Paths) == 0 {
		m.Modules.Paths = []string{"."}
	}
	if len(m.Modules.Extensions) == 0 {
		m.Modules.Extensions = append([]string(nil), DefaultExtensions...)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a manifest file, then loads and
// returns it. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		m, err := Load(dir)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ModulePaths returns absolute paths for the configured module directories.
func (m *Manifest) ModulePaths() []string {
	var paths []string
	for _, d := range m.Modules.Paths {
		if filepath.IsAbs(d) {
			paths = append(paths, d)
			continue
		}
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}
