package dist

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode so equal bundles encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalChunk serializes a Chunk to CBOR bytes.
func MarshalChunk(c *Chunk) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalChunk deserializes a Chunk from CBOR bytes.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("dist: unmarshal chunk: %w", err)
	}
	return &c, nil
}

// MarshalBundle serializes a Bundle to CBOR bytes.
func MarshalBundle(b *Bundle) ([]byte, error) {
	return cborEncMode.Marshal(b)
}

// UnmarshalBundle deserializes a Bundle from CBOR bytes.
func UnmarshalBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("dist: unmarshal bundle: %w", err)
	}
	return &b, nil
}

// VerifyChunk recomputes the content hash of c and compares it with the
// declared one.
func VerifyChunk(c *Chunk) error {
	computed := Hash(c.Content)
	if computed != c.Hash {
		return fmt.Errorf("dist: hash mismatch for %q: declared %x, computed %x", c.Name, c.Hash, computed)
	}
	return nil
}

// VerifyBundle checks every chunk hash, that the root hash names a program
// chunk, and that every declared dependency is present in the bundle.
func VerifyBundle(b *Bundle) error {
	if b.HashVersion != HashVersion {
		return fmt.Errorf("dist: unsupported hash version %d", b.HashVersion)
	}
	rootFound := false
	for i := range b.Chunks {
		c := &b.Chunks[i]
		if err := VerifyChunk(c); err != nil {
			return err
		}
		if c.Hash == b.Root {
			if c.Type != ChunkProgram {
				return fmt.Errorf("dist: root chunk %q is a %s", c.Name, c.Type)
			}
			rootFound = true
		}
		for _, dep := range c.Dependencies {
			if _, ok := b.Find(dep); !ok {
				return fmt.Errorf("dist: chunk %q missing dependency %q", c.Name, dep)
			}
		}
	}
	if !rootFound {
		return fmt.Errorf("dist: root chunk %x not in bundle", b.Root)
	}
	return nil
}
