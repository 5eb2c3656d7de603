package vm

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	n := len(vm.stack)
	if n == 0 {
		vm.fatal(ErrStackUnderflow, "")
	}
	v := vm.stack[n-1]
	vm.stack[n-1] = Nil
	vm.stack = vm.stack[:n-1]
	return v
}

func (vm *VM) top() Value {
	if len(vm.stack) == 0 {
		vm.fatal(ErrStackUnderflow, "")
	}
	return vm.stack[len(vm.stack)-1]
}

// popN pops n values and returns them in push order.
func (vm *VM) popN(n int) []Value {
	if n < 0 {
		vm.fatal(ErrInvalidOperand, "negative count %d", n)
	}
	if len(vm.stack) < n {
		vm.fatal(ErrStackUnderflow, "need %d values, have %d", n, len(vm.stack))
	}
	start := len(vm.stack) - n
	out := make([]Value, n)
	copy(out, vm.stack[start:])
	clear(vm.stack[start:])
	vm.stack = vm.stack[:start]
	return out
}

// ---------------------------------------------------------------------------
// Frame management
// ---------------------------------------------------------------------------

func (vm *VM) frame() *Frame {
	return vm.frames[len(vm.frames)-1]
}

func (vm *VM) pushFrame(f *Frame) {
	if vm.config.MaxFrames > 0 && len(vm.frames) >= vm.config.MaxFrames {
		vm.fatal(ErrFrameOverflow, "%d frames", len(vm.frames))
	}
	vm.frames = append(vm.frames, f)
}

func (vm *VM) popFrame() {
	n := len(vm.frames)
	vm.frames[n-1] = nil
	vm.frames = vm.frames[:n-1]
}

// Traceback describes the active frames, innermost first.
func (vm *VM) Traceback() []string {
	out := make([]string, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		out = append(out, vm.frames[i].String())
	}
	return out
}

// fatal aborts the run with a host-level error attributed to the
// instruction being executed.
func (vm *VM) fatal(sentinel error, format string, args ...any) {
	fe := &FatalError{Err: sentinel}
	if format != "" {
		fe.Err = fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
	}
	if n := len(vm.frames); n > 0 {
		f := vm.frames[n-1]
		fe.Frame = f.Name()
		fe.PC = f.PC - 1
		if fe.PC >= 0 && fe.PC < len(f.Code.Instructions) {
			fe.Op = f.Code.Instructions[fe.PC].Op
		}
	}
	panic(fe)
}

// ---------------------------------------------------------------------------
// Execution loop
// ---------------------------------------------------------------------------

// runCode pushes a frame for code and executes until that frame is gone.
// It returns false when the frame was discarded by an exception handled
// further out, in which case control already sits at that handler.
func (vm *VM) runCode(code *Code, globals Globals, cells []*Cell) bool {
	base := len(vm.frames)
	root := newFrame(code, globals, cells)
	vm.pushFrame(root)
	vm.execute(base)
	return !root.unwound
}

// execute steps until the frame stack shrinks to base, restarting after
// every handled exception.
func (vm *VM) execute(base int) {
	for !vm.executeUntilThrow(base) {
	}
}

func (vm *VM) executeUntilThrow(base int) (finished bool) {
	defer func() {
		if r := recover(); r != nil {
			t, ok := r.(*thrown)
			if !ok {
				panic(r)
			}
			vm.unwind(t)
		}
	}()

	tracing := vm.config.Trace && vm.tracer.AllowLevel(commonlog.Debug)
	for len(vm.frames) > base && !vm.halted {
		f := vm.frames[len(vm.frames)-1]
		if f.done() {
			vm.popFrame()
			continue
		}
		ins := f.Code.Instructions[f.PC]
		f.PC++
		if tracing {
			vm.tracer.Debugf("%-12s %4d  %-14s %-12s depth=%d", f.Name(), f.PC-1, ins.Op, ins.Arg.Repr(), len(vm.stack))
		}
		vm.dispatch(f, ins)
	}
	return true
}

// dispatch executes one instruction in frame f.
func (vm *VM) dispatch(f *Frame, ins Instruction) {
	if !ins.Op.Valid() {
		vm.fatal(ErrUnknownOpcode, "%d", byte(ins.Op))
	}
	if !ins.Op.CheckOperand(ins.Arg) {
		vm.fatal(ErrInvalidOperand, "%s expects %s operand, got %s", ins.Op, operandName(ins.Op), ins.Arg.Kind())
	}

	switch ins.Op {
	// Stack
	case OpPushConst:
		vm.push(ins.Arg)
	case OpPop:
		vm.pop()
	case OpDup:
		vm.push(vm.top())

	// Arithmetic and comparison
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		b := vm.pop()
		a := vm.pop()
		vm.push(vm.arith(ins.Op, a, b))
	case OpEq:
		b := vm.pop()
		a := vm.pop()
		vm.push(FromBool(Equal(a, b)))
	case OpNeq:
		b := vm.pop()
		a := vm.pop()
		vm.push(FromBool(!Equal(a, b)))
	case OpGt, OpLt, OpGte, OpLte:
		b := vm.pop()
		a := vm.pop()
		vm.push(FromBool(compareOp(ins.Op, a, b)))
	case OpNot:
		vm.push(FromBool(!vm.pop().Truthy()))
	case OpBitAnd, OpBitOr, OpBitXor, OpLShift, OpRShift:
		b := vm.pop()
		a := vm.pop()
		vm.push(vm.bitwise(ins.Op, a, b))
	case OpBitNot:
		a := vm.pop()
		if !a.IsInt() {
			vm.raiseError(ErrorTipe, "operand of BIT_NOT must be integer, got %s", a.Kind())
		}
		vm.push(FromInt(^a.Int()))
	case OpNeg:
		vm.push(vm.negate(vm.pop()))

	// Variables
	case OpLoadVar:
		vm.push(vm.loadVar(f, ins.Arg.Str()))
	case OpStoreVar:
		f.Globals[ins.Arg.Str()] = vm.pop()
	case OpLoadLocal:
		v, ok := f.lookupLocal(ins.Arg.Str())
		if !ok {
			vm.fatal(ErrUndefinedVariable, "local %q", ins.Arg.Str())
		}
		vm.push(v)
	case OpStoreLocal:
		f.storeLocal(ins.Arg.Str(), vm.pop())

	// Containers
	case OpBuildList:
		vm.push(FromList(&List{Items: vm.popN(int(ins.Arg.Int()))}))
	case OpBuildDict:
		vm.push(vm.buildDict(int(ins.Arg.Int())))
	case OpLoadIndex:
		index := vm.pop()
		obj := vm.pop()
		vm.push(vm.loadIndex(obj, index))
	case OpStoreIndex:
		value := vm.pop()
		index := vm.pop()
		obj := vm.pop()
		vm.storeIndex(obj, index, value)
	case OpLoadAttr:
		vm.push(vm.loadAttr(vm.pop(), ins.Arg.Str()))
	case OpStoreAttr:
		value := vm.pop()
		obj := vm.pop()
		vm.storeAttr(obj, ins.Arg.Str(), value)
	case OpSlice:
		end := vm.pop()
		start := vm.pop()
		vm.push(vm.slice(vm.pop(), start, end))
	case OpLen:
		vm.push(vm.length(vm.pop()))

	// Control flow
	case OpJmp:
		f.PC = int(ins.Arg.Int())
	case OpJmpIfFalse:
		if !vm.pop().Truthy() {
			f.PC = int(ins.Arg.Int())
		}
	case OpJmpIfTrue:
		if vm.pop().Truthy() {
			f.PC = int(ins.Arg.Int())
		}
	case OpCall:
		vm.call(int(ins.Arg.Int()))
	case OpRet:
		vm.popFrame()
	case OpPushTry:
		f.pushHandler(handler{pc: int(ins.Arg.Int()), depth: len(vm.stack)})
	case OpPopTry:
		f.popHandler()
	case OpThrow:
		vm.throw(vm.pop())
	case OpImport:
		vm.importModule(ins.Arg.Str())
	case OpImportNative:
		m, ok := vm.natives[ins.Arg.Str()]
		if !ok {
			vm.fatal(ErrNativeModuleNotFound, "%q", ins.Arg.Str())
		}
		vm.push(FromModule(m))
	case OpPrint:
		vm.print(int(ins.Arg.Int()))
	case OpHalt:
		vm.halted = true

	// Functions
	case OpBuildFunction:
		vm.push(FromFunction(vm.buildFunction(f, vm.pop())))
	case OpMakeFunction:
		vm.push(FromFunction(vm.makeFunction(f)))
	case OpLoadDeref:
		c := f.cell(ins.Arg.Str())
		if c == nil {
			vm.fatal(ErrNotACell, "%q", ins.Arg.Str())
		}
		vm.push(c.Value)
	case OpStoreDeref:
		c := f.cell(ins.Arg.Str())
		if c == nil {
			vm.fatal(ErrNotACell, "%q", ins.Arg.Str())
		}
		c.Value = vm.pop()
	case OpLoadClosure:
		c := f.cell(ins.Arg.Str())
		if c == nil {
			vm.fatal(ErrNotACell, "%q", ins.Arg.Str())
		}
		vm.push(FromCell(c))

	// Builtins
	case OpType:
		vm.push(FromString(vm.pop().Kind().String()))
	case OpStr:
		vm.push(FromString(vm.pop().String()))
	case OpStrLower, OpStrUpper, OpStrFind, OpStrReplace:
		vm.stringIntrinsic(ins.Op)

	// Native primitives
	default:
		vm.primitive(ins.Op)
	}
}

func operandName(op Opcode) string {
	info, _ := GetOpcodeInfo(op)
	switch info.Operand {
	case OperandString:
		return "string"
	case OperandInt:
		return "integer"
	}
	return "any"
}

// loadVar resolves name through locals, then globals, then universals.
func (vm *VM) loadVar(f *Frame, name string) Value {
	if v, ok := f.lookupLocal(name); ok {
		return v
	}
	if v, ok := f.Globals[name]; ok {
		return v.Deref()
	}
	if v, ok := vm.universals[name]; ok {
		return v.Deref()
	}
	vm.fatal(ErrUndefinedVariable, "%q", name)
	return Nil
}

// print pops n values and writes them space separated on one line.
func (vm *VM) print(n int) {
	vals := vm.popN(n)
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	fmt.Fprintln(vm.config.Stdout, strings.Join(parts, " "))
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// call implements CALL argc.
func (vm *VM) call(argc int) {
	args := vm.popN(argc)
	callee := vm.pop()

	var (
		code    *Code
		cells   []*Cell
		globals Globals
	)
	switch callee.Kind() {
	case KindCode:
		code = callee.Code()
		globals = vm.frame().Globals
	case KindFunction:
		fn := callee.Function()
		code, cells, globals = fn.Code, fn.Cells, fn.Globals
	default:
		vm.fatal(ErrNotCallable, "%s", callee.Kind())
	}

	if len(cells) < len(code.FreeVars) {
		vm.fatal(ErrInvalidOperand, "%s captures %d cells for %d free variables", code.Name, len(cells), len(code.FreeVars))
	}

	f := newFrame(code, globals, cells)
	for _, name := range code.CellVars {
		f.Locals[name] = FromCell(&Cell{})
	}
	for i, name := range code.Params {
		if i >= len(args) {
			break
		}
		f.storeLocal(name, args[i])
	}
	for i, name := range code.FreeVars {
		f.Locals[name] = FromCell(cells[i])
	}
	vm.pushFrame(f)
}
