// Package dist packages program images as content-addressed chunks. A
// program and every module it imports can be exported as one CBOR bundle,
// and a receiver can check each image against its declared hash before
// loading it.
package dist

import "crypto/sha256"

// HashVersion identifies the hashing scheme used for Chunk.Hash.
const HashVersion byte = 1

// ChunkType identifies the kind of content in a Chunk.
type ChunkType uint8

const (
	ChunkProgram ChunkType = 1 // entry point image
	ChunkModule  ChunkType = 2 // image reached through IMPORT
)

func (t ChunkType) String() string {
	switch t {
	case ChunkProgram:
		return "program"
	case ChunkModule:
		return "module"
	}
	return "unknown"
}

// Chunk is the atomic unit of distribution: one program image plus its
// content hash.
type Chunk struct {
	Hash         [32]byte  `cbor:"1,keyasint"`
	Type         ChunkType `cbor:"2,keyasint"`
	Name         string    `cbor:"3,keyasint"`           // logical import path
	Content      []byte    `cbor:"4,keyasint"`           // image bytes
	Dependencies []string  `cbor:"5,keyasint,omitempty"` // logical paths imported
	Capabilities []string  `cbor:"6,keyasint,omitempty"` // native modules required
}

// Bundle is a program chunk together with the module chunks it reaches.
type Bundle struct {
	Root        [32]byte `cbor:"1,keyasint"`
	Chunks      []Chunk  `cbor:"2,keyasint"`
	HashVersion byte     `cbor:"3,keyasint"`
}

// Hash returns the content hash of an image.
func Hash(content []byte) [32]byte {
	buf := make([]byte, 0, len(content)+1)
	buf = append(buf, HashVersion)
	buf = append(buf, content...)
	return sha256.Sum256(buf)
}

// NewChunk builds a chunk for content, computing its hash.
func NewChunk(typ ChunkType, name string, content []byte, deps, caps []string) *Chunk {
	return &Chunk{
		Hash:         Hash(content),
		Type:         typ,
		Name:         name,
		Content:      content,
		Dependencies: deps,
		Capabilities: caps,
	}
}

// Find returns the chunk with the given logical name.
func (b *Bundle) Find(name string) (*Chunk, bool) {
	for i := range b.Chunks {
		if b.Chunks[i].Name == name {
			return &b.Chunks[i], true
		}
	}
	return nil, false
}

// Capabilities returns the union of native modules required by the bundle.
func (b *Bundle) Capabilities() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range b.Chunks {
		for _, name := range c.Capabilities {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
