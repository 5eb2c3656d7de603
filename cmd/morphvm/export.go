package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/morphvm/vm"
	"github.com/chazu/morphvm/vm/dist"
)

// exportBundle writes the program at entry and every module reachable
// through IMPORT as one CBOR bundle. Modules are resolved with the same
// search paths the VM would use at run time.
func exportBundle(machine *vm.VM, entry, out string) error {
	root, err := readChunk(dist.ChunkProgram, programName(entry), entry)
	if err != nil {
		return err
	}

	bundle := &dist.Bundle{
		Root:        root.Hash,
		Chunks:      []dist.Chunk{*root},
		HashVersion: dist.HashVersion,
	}

	seen := map[string]bool{root.Name: true}
	queue := append([]string(nil), root.Dependencies...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true

		path, err := machine.ResolveModule(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		chunk, err := readChunk(dist.ChunkModule, name, path)
		if err != nil {
			return err
		}
		log.Infof("bundling %s from %s (%x)", name, path, chunk.Hash[:8])
		bundle.Chunks = append(bundle.Chunks, *chunk)
		queue = append(queue, chunk.Dependencies...)
	}

	if err := dist.VerifyBundle(bundle); err != nil {
		return err
	}
	data, err := dist.MarshalBundle(bundle)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s: %d chunks, root %x\n", out, len(bundle.Chunks), bundle.Root[:8])
	return nil
}

// readChunk loads and validates the image at path.
func readChunk(typ dist.ChunkType, name, path string) (*dist.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	_, code, err := vm.LoadImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dist.NewChunk(typ, name, data, vm.Imports(code), vm.NativeImports(code)), nil
}

// programName strips the directory and image extension from path.
func programName(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".fox.mvm", ".mvm"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}
