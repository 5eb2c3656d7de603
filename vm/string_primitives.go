package vm

import (
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// String intrinsics
// ---------------------------------------------------------------------------

// stringIntrinsic runs STR_LOWER, STR_UPPER, STR_FIND or STR_REPLACE.
// Operands are popped in reverse of their push order.
func (vm *VM) stringIntrinsic(op Opcode) {
	switch op {
	case OpStrLower:
		s := vm.popString(op)
		vm.push(FromString(strings.ToLower(s)))
	case OpStrUpper:
		s := vm.popString(op)
		vm.push(FromString(strings.ToUpper(s)))
	case OpStrFind:
		sub := vm.popString(op)
		s := vm.popString(op)
		i := strings.Index(s, sub)
		if i > 0 {
			i = utf8.RuneCountInString(s[:i])
		}
		vm.push(FromInt(int32(i)))
	case OpStrReplace:
		repl := vm.popString(op)
		old := vm.popString(op)
		s := vm.popString(op)
		vm.push(FromString(strings.ReplaceAll(s, old, repl)))
	}
}

func (vm *VM) popString(op Opcode) string {
	v := vm.pop()
	if !v.IsString() {
		vm.raiseError(ErrorTipe, "%s expects string, got %s", op, v.Kind())
	}
	return v.Str()
}
