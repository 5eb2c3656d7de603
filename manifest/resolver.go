package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Manifest  *Manifest // the dependency's own manifest (may be nil)
}

// ModulePaths returns the directories IMPORT should search for this
// dependency: its manifest's module paths, or its root directory when it has
// no manifest.
func (d ResolvedDep) ModulePaths() []string {
	if d.Manifest != nil {
		return d.Manifest.ModulePaths()
	}
	return []string{d.LocalPath}
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve resolves all dependencies and returns them in load order
// (topologically sorted: dependencies before dependents).
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	resolved := make(map[string]*ResolvedDep)
	visiting := map[string]bool{r.manifest.Dir: true}
	return r.resolveAll(r.manifest, resolved, visiting)
}

// resolveAll resolves the dependencies of m recursively, in name order.
func (r *Resolver) resolveAll(m *Manifest, resolved map[string]*ResolvedDep, visiting map[string]bool) ([]ResolvedDep, error) {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		if _, ok := resolved[name]; ok {
			continue // already resolved
		}

		rd, err := resolveOne(m, name, m.Dependencies[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		if visiting[rd.LocalPath] {
			return nil, fmt.Errorf("resolving %s: dependency cycle through %s", name, rd.LocalPath)
		}
		resolved[name] = rd

		// Check for transitive dependencies
		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			visiting[rd.LocalPath] = true
			transitive, err := r.resolveAll(rd.Manifest, resolved, visiting)
			delete(visiting, rd.LocalPath)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}

		order = append(order, *rd)
	}

	return order, nil
}

// resolveOne resolves a single path dependency relative to the manifest
// that declares it.
func resolveOne(m *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path == "" {
		return nil, fmt.Errorf("dependency %q has no path specified", name)
	}

	localPath := dep.Path
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(m.Dir, localPath)
	}

	localPath, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
	}

	// Verify it exists
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
	}

	// Try to load its manifest
	depManifest, _ := Load(localPath)

	return &ResolvedDep{
		Name:      name,
		LocalPath: localPath,
		Manifest:  depManifest,
	}, nil
}

// SearchPaths returns the project's module directories followed by those of
// every resolved dependency, without duplicates.
func (r *Resolver) SearchPaths() ([]string, error) {
	deps, err := r.Resolve()
	if err != nil {
		return nil, err
	}

	var paths []string
	seen := make(map[string]bool)
	add := func(ps []string) {
		for _, p := range ps {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	add(r.manifest.ModulePaths())
	for _, d := range deps {
		add(d.ModulePaths())
	}
	return paths, nil
}
