package vm

// Instruction is one (opcode, operand) pair.
type Instruction struct {
	Op  Opcode
	Arg Value
}

// Code is an immutable compiled-function template. It is never modified
// after construction; frames and functions share it by pointer.
type Code struct {
	Name         string
	Params       []string
	Constants    []Value // legacy pool, carried for format compatibility only
	Instructions []Instruction
	FreeVars     []string
	CellVars     []string
}

// ---------------------------------------------------------------------------
// CodeBuilder: assembles Code objects for builtins, tools and tests
// ---------------------------------------------------------------------------

// CodeBuilder appends instructions and produces a Code.
type CodeBuilder struct {
	code Code
}

// NewCodeBuilder starts a code object with the given name and parameters.
func NewCodeBuilder(name string, params ...string) *CodeBuilder {
	return &CodeBuilder{code: Code{Name: name, Params: params}}
}

// Emit appends op with an operand and returns its instruction index.
func (b *CodeBuilder) Emit(op Opcode, arg Value) int {
	b.code.Instructions = append(b.code.Instructions, Instruction{Op: op, Arg: arg})
	return len(b.code.Instructions) - 1
}

// EmitOp appends op with a nil operand.
func (b *CodeBuilder) EmitOp(op Opcode) int {
	return b.Emit(op, Nil)
}

// EmitInt appends op with an Integer operand.
func (b *CodeBuilder) EmitInt(op Opcode, n int) int {
	return b.Emit(op, FromInt(int32(n)))
}

// EmitName appends op with a String operand.
func (b *CodeBuilder) EmitName(op Opcode, name string) int {
	return b.Emit(op, FromString(name))
}

// Const appends PUSH_CONST v.
func (b *CodeBuilder) Const(v Value) int {
	return b.Emit(OpPushConst, v)
}

// Here returns the index the next instruction will occupy.
func (b *CodeBuilder) Here() int {
	return len(b.code.Instructions)
}

// Patch rewrites the operand of the instruction at index to target. Used to
// resolve forward jumps.
func (b *CodeBuilder) Patch(index, target int) {
	b.code.Instructions[index].Arg = FromInt(int32(target))
}

// FreeVars sets the free-variable names.
func (b *CodeBuilder) FreeVars(names ...string) *CodeBuilder {
	b.code.FreeVars = names
	return b
}

// CellVars sets the cell-variable names.
func (b *CodeBuilder) CellVars(names ...string) *CodeBuilder {
	b.code.CellVars = names
	return b
}

// Build returns the finished Code. The builder must not be used afterwards.
func (b *CodeBuilder) Build() *Code {
	c := b.code
	return &c
}

// Imports returns the logical paths named by IMPORT instructions in c and
// in every code object nested in its operands, in first-seen order.
func Imports(c *Code) []string {
	return operandsOf(c, OpImport)
}

// NativeImports is Imports for IMPORT_NATIVE.
func NativeImports(c *Code) []string {
	return operandsOf(c, OpImportNative)
}

func operandsOf(c *Code, op Opcode) []string {
	var out []string
	seen := make(map[string]bool)
	walkCode(c, make(map[*Code]bool), func(ins Instruction) {
		if ins.Op == op && ins.Arg.IsString() && !seen[ins.Arg.Str()] {
			seen[ins.Arg.Str()] = true
			out = append(out, ins.Arg.Str())
		}
	})
	return out
}

func walkCode(c *Code, visited map[*Code]bool, fn func(Instruction)) {
	if c == nil || visited[c] {
		return
	}
	visited[c] = true
	for _, ins := range c.Instructions {
		fn(ins)
		walkNested(ins.Arg, visited, fn)
	}
	for _, k := range c.Constants {
		walkNested(k, visited, fn)
	}
}

func walkNested(v Value, visited map[*Code]bool, fn func(Instruction)) {
	switch v.Kind() {
	case KindCode:
		walkCode(v.Code(), visited, fn)
	case KindList:
		for _, item := range v.List().Items {
			walkNested(item, visited, fn)
		}
	case KindDict:
		for _, e := range v.Dict().Entries() {
			walkNested(e.Key, visited, fn)
			walkNested(e.Value, visited, fn)
		}
	}
}
