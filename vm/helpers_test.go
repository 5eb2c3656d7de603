package vm

import (
	"bytes"
	"errors"
	"testing"
)

// newTestVM returns a VM whose PRINT output is captured.
func newTestVM(t *testing.T, searchPaths ...string) (*VM, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	config := DefaultConfig()
	config.Stdout = &out
	if len(searchPaths) > 0 {
		config.SearchPaths = searchPaths
	}
	vm := NewVM(config)
	t.Cleanup(func() { vm.Close() })
	return vm, &out
}

// mustRun runs code and fails the test on any error.
func mustRun(t *testing.T, vm *VM, code *Code) {
	t.Helper()
	if err := vm.Run(code); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// runTop runs code on a fresh VM and returns the top of the stack.
func runTop(t *testing.T, code *Code) Value {
	t.Helper()
	vm, _ := newTestVM(t)
	mustRun(t, vm, code)
	stack := vm.Stack()
	if len(stack) == 0 {
		t.Fatal("stack is empty after run")
	}
	return stack[len(stack)-1]
}

// expectFatal checks that err is a *FatalError wrapping sentinel.
func expectFatal(t *testing.T, err error, sentinel error) *FatalError {
	t.Helper()
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v (%T), want *FatalError", err, err)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
	return fe
}

// expectUncaught checks that err is an *UncaughtError of the given kind.
func expectUncaught(t *testing.T, err error, kind string) *UncaughtError {
	t.Helper()
	var ue *UncaughtError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v (%T), want *UncaughtError", err, err)
	}
	if ue.Kind() != kind {
		t.Errorf("kind = %q, want %q", ue.Kind(), kind)
	}
	return ue
}

func ints(ns ...int32) []Value {
	out := make([]Value, len(ns))
	for i, n := range ns {
		out[i] = FromInt(n)
	}
	return out
}

// binop builds code pushing a and b and applying op.
func binop(op Opcode, a, b Value) *Code {
	c := NewCodeBuilder("main")
	c.Const(a)
	c.Const(b)
	c.EmitOp(op)
	return c.Build()
}

// kindOf returns the "jenis" of an error dict, or "".
func kindOf(v Value) string {
	if d := v.Dict(); d != nil {
		if k, ok := d.GetString("jenis"); ok {
			return k.Str()
		}
	}
	return ""
}
