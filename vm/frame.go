package vm

import "strconv"

// ---------------------------------------------------------------------------
// Frame: one activation record
// ---------------------------------------------------------------------------

// handler is an installed PUSH_TRY entry.
type handler struct {
	pc    int // absolute instruction index
	depth int // operand stack depth at PUSH_TRY
}

// Frame is the execution state of one Code activation. Locals hold Cells
// directly for cell and free variables; loads dereference them.
type Frame struct {
	Code    *Code
	PC      int
	Locals  map[string]Value
	Globals Globals
	Cells   []*Cell // captured by the Function being run, if any

	handlers []handler

	// unwound is set when an exception handler outside this frame discarded
	// it. A nested loop started for this frame uses it to learn that control
	// has already moved elsewhere.
	unwound bool
}

func newFrame(code *Code, globals Globals, cells []*Cell) *Frame {
	return &Frame{
		Code:    code,
		Locals:  make(map[string]Value, len(code.Params)+len(code.CellVars)+len(code.FreeVars)),
		Globals: globals,
		Cells:   cells,
	}
}

// Name returns the code name.
func (f *Frame) Name() string {
	return f.Code.Name
}

// String describes the frame for tracebacks.
func (f *Frame) String() string {
	return f.Code.Name + " (pc " + strconv.Itoa(f.PC) + ")"
}

// done reports whether the program counter ran past the last instruction.
func (f *Frame) done() bool {
	return f.PC >= len(f.Code.Instructions)
}

// lookupLocal reads a local, dereferencing cells.
func (f *Frame) lookupLocal(name string) (Value, bool) {
	v, ok := f.Locals[name]
	if !ok {
		return Nil, false
	}
	return v.Deref(), true
}

// storeLocal writes a local, writing through the cell if name is bound to one.
func (f *Frame) storeLocal(name string, v Value) {
	if cell := f.Locals[name].Cell(); cell != nil {
		cell.Value = v
		return
	}
	f.Locals[name] = v
}

// cell returns the cell bound to name, or nil.
func (f *Frame) cell(name string) *Cell {
	return f.Locals[name].Cell()
}

func (f *Frame) pushHandler(h handler) {
	f.handlers = append(f.handlers, h)
}

func (f *Frame) popHandler() (handler, bool) {
	if len(f.handlers) == 0 {
		return handler{}, false
	}
	h := f.handlers[len(f.handlers)-1]
	f.handlers = f.handlers[:len(f.handlers)-1]
	return h, true
}

// HandlerDepth returns the number of installed handlers.
func (f *Frame) HandlerDepth() int {
	return len(f.handlers)
}
