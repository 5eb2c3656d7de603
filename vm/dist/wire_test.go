package dist

import (
	"bytes"
	"testing"
)

func TestChunk_CBORRoundTrip(t *testing.T) {
	c := NewChunk(ChunkModule, "lib/util", []byte("image-bytes"), []string{"lib/base"}, []string{"_native"})

	data, err := MarshalChunk(c)
	if err != nil {
		t.Fatalf("MarshalChunk: %v", err)
	}

	got, err := UnmarshalChunk(data)
	if err != nil {
		t.Fatalf("UnmarshalChunk: %v", err)
	}

	if got.Hash != c.Hash {
		t.Error("Hash mismatch")
	}
	if got.Type != ChunkModule {
		t.Errorf("Type: got %s, want module", got.Type)
	}
	if got.Name != "lib/util" {
		t.Errorf("Name: got %q, want %q", got.Name, "lib/util")
	}
	if !bytes.Equal(got.Content, c.Content) {
		t.Errorf("Content: got %q, want %q", got.Content, c.Content)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0] != "lib/base" {
		t.Error("Dependencies mismatch")
	}
	if len(got.Capabilities) != 1 || got.Capabilities[0] != "_native" {
		t.Error("Capabilities mismatch")
	}
}

func TestMarshalChunk_Deterministic(t *testing.T) {
	c := NewChunk(ChunkProgram, "main", []byte("x"), []string{"a", "b"}, nil)
	a, err := MarshalChunk(c)
	if err != nil {
		t.Fatalf("MarshalChunk: %v", err)
	}
	b, err := MarshalChunk(c)
	if err != nil {
		t.Fatalf("MarshalChunk: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding should be deterministic")
	}
}

func TestHash_DependsOnContent(t *testing.T) {
	if Hash([]byte("a")) == Hash([]byte("b")) {
		t.Error("different content should hash differently")
	}
	if Hash([]byte("a")) != Hash([]byte("a")) {
		t.Error("hash should be stable")
	}
}

func TestVerifyChunk(t *testing.T) {
	c := NewChunk(ChunkModule, "m", []byte("source"), nil, nil)
	if err := VerifyChunk(c); err != nil {
		t.Errorf("VerifyChunk should succeed: %v", err)
	}

	c.Content = []byte("tampered")
	if err := VerifyChunk(c); err == nil {
		t.Error("VerifyChunk should fail on hash mismatch")
	}
}

func TestUnmarshalChunk_InvalidData(t *testing.T) {
	_, err := UnmarshalChunk([]byte("not cbor"))
	if err == nil {
		t.Error("UnmarshalChunk should fail on invalid data")
	}
}

// ---------------------------------------------------------------------------
// Bundles
// ---------------------------------------------------------------------------

func testBundle() *Bundle {
	root := NewChunk(ChunkProgram, "main", []byte("main-image"), []string{"util"}, nil)
	util := NewChunk(ChunkModule, "util", []byte("util-image"), nil, []string{"_native"})
	return &Bundle{
		Root:        root.Hash,
		Chunks:      []Chunk{*root, *util},
		HashVersion: HashVersion,
	}
}

func TestBundle_CBORRoundTrip(t *testing.T) {
	b := testBundle()

	data, err := MarshalBundle(b)
	if err != nil {
		t.Fatalf("MarshalBundle: %v", err)
	}
	got, err := UnmarshalBundle(data)
	if err != nil {
		t.Fatalf("UnmarshalBundle: %v", err)
	}

	if got.Root != b.Root {
		t.Error("Root mismatch")
	}
	if len(got.Chunks) != 2 {
		t.Fatalf("Chunks: got %d, want 2", len(got.Chunks))
	}
	if err := VerifyBundle(got); err != nil {
		t.Errorf("VerifyBundle: %v", err)
	}
	if caps := got.Capabilities(); len(caps) != 1 || caps[0] != "_native" {
		t.Errorf("Capabilities: got %v, want [_native]", caps)
	}
}

func TestVerifyBundle_MissingDependency(t *testing.T) {
	b := testBundle()
	b.Chunks = b.Chunks[:1]

	if err := VerifyBundle(b); err == nil {
		t.Error("VerifyBundle should fail when a dependency is absent")
	}
}

func TestVerifyBundle_MissingRoot(t *testing.T) {
	b := testBundle()
	b.Root = Hash([]byte("elsewhere"))

	if err := VerifyBundle(b); err == nil {
		t.Error("VerifyBundle should fail when the root is absent")
	}
}

func TestVerifyBundle_RootMustBeProgram(t *testing.T) {
	b := testBundle()
	b.Root = b.Chunks[1].Hash

	if err := VerifyBundle(b); err == nil {
		t.Error("VerifyBundle should reject a module chunk as root")
	}
}

func TestVerifyBundle_HashVersion(t *testing.T) {
	b := testBundle()
	b.HashVersion = 99

	if err := VerifyBundle(b); err == nil {
		t.Error("VerifyBundle should reject an unknown hash version")
	}
}

func TestBundle_Find(t *testing.T) {
	b := testBundle()
	c, ok := b.Find("util")
	if !ok {
		t.Fatal("Find(util) should succeed")
	}
	if c.Type != ChunkModule {
		t.Errorf("Type: got %s, want module", c.Type)
	}
	if _, ok := b.Find("missing"); ok {
		t.Error("Find(missing) should fail")
	}
}
