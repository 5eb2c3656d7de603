package vm

import (
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/chazu/morphvm/vm/dist"
)

// ---------------------------------------------------------------------------
// Module table
// ---------------------------------------------------------------------------

// ResolveModule finds the image file backing a logical import path. Each
// search directory is tried in order with each extension in order.
func (vm *VM) ResolveModule(path string) (string, error) {
	for _, dir := range vm.config.SearchPaths {
		for _, ext := range vm.config.Extensions {
			candidate := filepath.Join(dir, filepath.FromSlash(path)+ext)
			info, err := os.Stat(candidate)
			if err == nil && !info.IsDir() {
				return candidate, nil
			}
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				vm.log.Warningf("skipping %s: %v", candidate, err)
			}
		}
	}
	return "", ErrModuleNotFound
}

// importModule implements IMPORT. A module body runs exactly once; later
// imports of the same path push the cached Module.
func (vm *VM) importModule(path string) {
	if m, ok := vm.modules[path]; ok {
		vm.push(FromModule(m))
		return
	}

	file, err := vm.ResolveModule(path)
	if err != nil {
		vm.fatal(ErrModuleNotFound, "%q in %v", path, vm.config.SearchPaths)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		vm.fatal(ErrModuleNotFound, "%q: %v", path, err)
	}
	_, code, err := LoadImage(data)
	if err != nil {
		vm.fatal(err, "module %q (%s)", path, file)
	}

	m := &Module{
		Name:    path,
		Path:    file,
		Hash:    dist.Hash(data),
		Globals: vm.universals.Copy(),
	}
	// Registered before the body runs; a circular import sees the partial table.
	vm.modules[path] = m
	vm.log.Debugf("loading module %s from %s (%s)", path, file, hex.EncodeToString(m.Hash[:8]))

	depth := len(vm.stack)
	if !vm.runCode(code, m.Globals, nil) || vm.halted {
		return
	}
	if len(vm.stack) > depth {
		vm.pop()
	}
	vm.push(FromModule(m))
}

// RegisterNativeModule makes a module available to IMPORT_NATIVE.
func (vm *VM) RegisterNativeModule(name string, entries Globals) *Module {
	m := &Module{Name: name, Globals: entries}
	vm.natives[name] = m
	return m
}

// NativeModule returns a registered native module.
func (vm *VM) NativeModule(name string) (*Module, bool) {
	m, ok := vm.natives[name]
	return m, ok
}
