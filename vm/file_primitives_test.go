package vm

import (
	"os"
	"path/filepath"
	"testing"
)

// nativeCall emits a call to the native module entry name. Each arg is
// pushed with PUSH_CONST unless it is a *varRef, which is loaded with
// LOAD_VAR.
func nativeCall(b *CodeBuilder, name string, args ...any) {
	b.EmitName(OpImportNative, NativeModuleName)
	b.EmitName(OpLoadAttr, name)
	for _, a := range args {
		switch a := a.(type) {
		case varRef:
			b.EmitName(OpLoadVar, string(a))
		case Value:
			b.Const(a)
		case string:
			b.Const(FromString(a))
		case int:
			b.Const(FromInt(int32(a)))
		}
	}
	b.EmitInt(OpCall, len(args))
}

// varRef names a global to load as a native call argument.
type varRef string

func TestFileWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")

	b := NewCodeBuilder("main")
	nativeCall(b, "open", path, "w")
	b.EmitName(OpStoreVar, "f")
	nativeCall(b, "write", varRef("f"), "hello world")
	nativeCall(b, "close", varRef("f"))
	nativeCall(b, "exists", path)
	nativeCall(b, "open", path, "r")
	b.EmitName(OpStoreVar, "r")
	nativeCall(b, "read", varRef("r"), 5)
	nativeCall(b, "read", varRef("r"), -1)
	nativeCall(b, "read", varRef("r"), 10)
	nativeCall(b, "close", varRef("r"))

	vm, _ := newTestVM(t)
	mustRun(t, vm, b.Build())
	stack := vm.Stack()
	if len(stack) != 7 {
		t.Fatalf("stack = %v, want 7 values", stack)
	}
	checks := []struct {
		name string
		got  Value
		want Value
	}{
		{"write", stack[0], FromInt(11)},
		{"close", stack[1], True},
		{"exists", stack[2], True},
		{"read 5", stack[3], FromString("hello")},
		{"read rest", stack[4], FromString(" world")},
		{"read at eof", stack[5], FromString("")},
		{"close reader", stack[6], True},
	}
	for _, c := range checks {
		if !Equal(c.got, c.want) {
			t.Errorf("%s = %s, want %s", c.name, c.got.Repr(), c.want.Repr())
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world" {
		t.Errorf("file content = %q", data)
	}
	if vm.OpenHandles() != 0 {
		t.Errorf("open handles = %d, want 0", vm.OpenHandles())
	}
}

func TestFileReadSizeBeyondEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	b := NewCodeBuilder("main")
	nativeCall(b, "open", path, "r")
	b.EmitName(OpStoreVar, "f")
	nativeCall(b, "read", varRef("f"), 2147483647)
	nativeCall(b, "read", varRef("f"), 2147483647)
	nativeCall(b, "close", varRef("f"))

	vm, _ := newTestVM(t)
	mustRun(t, vm, b.Build())
	stack := vm.Stack()
	if stack[0].Str() != "0123456789" || stack[1].Str() != "" {
		t.Errorf("reads = %s, %s", stack[0].Repr(), stack[1].Repr())
	}
}

func TestFileAppendAndReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	b := NewCodeBuilder("main")
	nativeCall(b, "open", path, "a")
	b.EmitName(OpStoreVar, "f")
	nativeCall(b, "write", varRef("f"), "def")
	b.EmitOp(OpPop)
	nativeCall(b, "close", varRef("f"))
	b.EmitOp(OpPop)
	nativeCall(b, "open", path, "r+")
	b.EmitName(OpStoreVar, "g")
	nativeCall(b, "write", varRef("g"), "X")
	b.EmitOp(OpPop)
	nativeCall(b, "close", varRef("g"))
	b.EmitOp(OpPop)

	vm, _ := newTestVM(t)
	mustRun(t, vm, b.Build())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Xbcdef" {
		t.Errorf("file content = %q, want Xbcdef", data)
	}
}

func TestFilePrimitiveFailures(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.txt")

	b := NewCodeBuilder("main")
	nativeCall(b, "open", missing, "r")
	nativeCall(b, "open", missing, "rw")
	nativeCall(b, "open", 1, "r")
	nativeCall(b, "read", FromString("not a handle"), 1)
	nativeCall(b, "write", Nil, "x")
	nativeCall(b, "close", Nil)
	nativeCall(b, "exists", missing)
	nativeCall(b, "remove", missing)
	nativeCall(b, "listdir", missing)
	nativeCall(b, "mkdir", 5)

	vm, _ := newTestVM(t)
	mustRun(t, vm, b.Build())
	want := []Value{Nil, Nil, Nil, Nil, Nil, False, False, False, Nil, False}
	stack := vm.Stack()
	if len(stack) != len(want) {
		t.Fatalf("stack = %v, want %d values", stack, len(want))
	}
	for i, w := range want {
		if stack[i].Kind() != w.Kind() || !Equal(stack[i], w) {
			t.Errorf("result %d = %s, want %s", i, stack[i].Repr(), w.Repr())
		}
	}
}

func TestFileOperationsOnClosedHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")

	b := NewCodeBuilder("main")
	nativeCall(b, "open", path, "w")
	b.EmitName(OpStoreVar, "f")
	nativeCall(b, "close", varRef("f"))
	nativeCall(b, "close", varRef("f"))
	nativeCall(b, "write", varRef("f"), "late")
	nativeCall(b, "read", varRef("f"), 1)
	b.EmitName(OpLoadVar, "f")
	b.EmitOp(OpStr)

	vm, _ := newTestVM(t)
	mustRun(t, vm, b.Build())
	stack := vm.Stack()
	want := []Value{True, False, Nil, Nil, FromString("<file closed>")}
	for i, w := range want {
		if !Equal(stack[i], w) {
			t.Errorf("result %d = %s, want %s", i, stack[i].Repr(), w.Repr())
		}
	}
}

func TestDirectoryPrimitives(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	for _, name := range []string{"zeta.txt", "alpha.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	b := NewCodeBuilder("main")
	nativeCall(b, "mkdir", nested)
	nativeCall(b, "exists", nested)
	nativeCall(b, "listdir", dir)
	nativeCall(b, "remove", filepath.Join(dir, "zeta.txt"))
	nativeCall(b, "listdir", dir)
	nativeCall(b, "cwd")

	vm, _ := newTestVM(t)
	mustRun(t, vm, b.Build())
	stack := vm.Stack()
	if !stack[0].Bool() || !stack[1].Bool() {
		t.Errorf("mkdir/exists = %s/%s, want true/true", stack[0].Repr(), stack[1].Repr())
	}
	if got := stack[2].String(); got != `["a", "alpha.txt", "zeta.txt"]` {
		t.Errorf("listdir = %s", got)
	}
	if !stack[3].Bool() {
		t.Error("remove returned false")
	}
	if got := stack[4].String(); got != `["a", "alpha.txt"]` {
		t.Errorf("listdir after remove = %s", got)
	}
	wd, _ := os.Getwd()
	if stack[5].Str() != wd {
		t.Errorf("cwd = %s, want %q", stack[5].Repr(), wd)
	}
}

func TestCloseReleasesOpenHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leak.txt")

	b := NewCodeBuilder("main")
	nativeCall(b, "open", path, "w")

	vm, _ := newTestVM(t)
	mustRun(t, vm, b.Build())
	h := vm.Stack()[0].File()
	if h == nil {
		t.Fatal("open did not return a file handle")
	}
	if h.ID == "" || h.Path != path || h.Mode != "w" {
		t.Errorf("handle = %+v", h)
	}
	if vm.OpenHandles() != 1 {
		t.Errorf("open handles = %d, want 1", vm.OpenHandles())
	}
	if err := vm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !h.Closed() || vm.OpenHandles() != 0 {
		t.Errorf("after Close: closed=%v open=%d", h.Closed(), vm.OpenHandles())
	}
}
