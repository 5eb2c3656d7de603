package vm

import "fmt"

// ---------------------------------------------------------------------------
// Language-level exceptions
// ---------------------------------------------------------------------------

// Kinds of internally raised errors, stored under the "jenis" key.
const (
	ErrorTipe         = "ErrorTipe"         // operand type mismatch
	ErrorPembagianNol = "ErrorPembagianNol" // division or modulo by zero
	ErrorIndeks       = "ErrorIndeks"       // bad list index or missing dict key
)

// Keys of an error dict.
const (
	keyMessage = "pesan"
	keyKind    = "jenis"
	keyTrace   = "jejak"
)

// thrown is the panic payload carrying a raised value to the nearest
// handler.
type thrown struct {
	value     Value
	traceback []string
}

// NewErrorValue builds the dict raised for internal errors.
func NewErrorValue(kind, message string) Value {
	d := NewDict()
	d.SetString(keyMessage, FromString(message))
	d.SetString(keyKind, FromString(kind))
	return FromDict(d)
}

// raiseError throws an error dict of the given kind.
func (vm *VM) raiseError(kind, format string, args ...any) {
	vm.throw(NewErrorValue(kind, fmt.Sprintf(format, args...)))
}

// throw starts handler search for v. A dict value is annotated with the
// frames active at the raise point.
func (vm *VM) throw(v Value) {
	tb := vm.Traceback()
	if d := v.Dict(); d != nil {
		items := make([]Value, len(tb))
		for i, s := range tb {
			items[i] = FromString(s)
		}
		d.SetString(keyTrace, NewListValue(items...))
	}
	panic(&thrown{value: v, traceback: tb})
}

// unwind transfers control to the innermost installed handler: frames above
// the handler's frame are discarded, the operand stack is cut back to the
// depth recorded by PUSH_TRY and the thrown value is pushed.
func (vm *VM) unwind(t *thrown) {
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		h, ok := f.popHandler()
		if !ok {
			continue
		}
		for _, dropped := range vm.frames[i+1:] {
			dropped.unwound = true
		}
		clear(vm.frames[i+1:])
		vm.frames = vm.frames[:i+1]
		if h.depth < len(vm.stack) {
			clear(vm.stack[h.depth:])
			vm.stack = vm.stack[:h.depth]
		}
		vm.push(t.value)
		f.PC = h.pc
		vm.log.Debugf("exception caught in %s, resuming at %d", f.Name(), h.pc)
		return
	}
	panic(&UncaughtError{Value: t.value, Traceback: t.traceback})
}
