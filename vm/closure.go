package vm

import "fmt"

// ---------------------------------------------------------------------------
// Runtime function construction
// ---------------------------------------------------------------------------

// Keys of the dict consumed by BUILD_FUNCTION.
const (
	fnKeyName     = "nama"
	fnKeyArgs     = "args"
	fnKeyCode     = "instruksi"
	fnKeyFreeVars = "free_vars"
	fnKeyCellVars = "cell_vars"
)

// buildFunction synthesizes a Code from a description dict and wraps it in a
// Function capturing f's globals and no cells.
func (vm *VM) buildFunction(f *Frame, desc Value) *Function {
	d := desc.Dict()
	if d == nil {
		vm.fatal(ErrMalformedFunction, "expected dict, got %s", desc.Kind())
	}
	code, err := CodeFromDict(d)
	if err != nil {
		vm.fatal(ErrMalformedFunction, "%v", err)
	}
	return &Function{Code: code, Globals: f.Globals}
}

// makeFunction pops a Code (or a Function, whose Code is reused) and then a
// list of cells, and captures both with f's globals.
func (vm *VM) makeFunction(f *Frame) *Function {
	target := vm.pop()
	var code *Code
	switch target.Kind() {
	case KindCode:
		code = target.Code()
	case KindFunction:
		code = target.Function().Code
	default:
		vm.fatal(ErrNotCallable, "MAKE_FUNCTION expects code, got %s", target.Kind())
	}

	closure := vm.pop()
	if !closure.IsList() {
		vm.fatal(ErrInvalidOperand, "MAKE_FUNCTION expects a list of cells, got %s", closure.Kind())
	}
	items := closure.List().Items
	cells := make([]*Cell, len(items))
	for i, item := range items {
		c := item.Cell()
		if c == nil {
			vm.fatal(ErrNotACell, "closure item %d is %s", i, item.Kind())
		}
		cells[i] = c
	}
	return &Function{Code: code, Cells: cells, Globals: f.Globals}
}

// CodeFromDict builds a Code from the BUILD_FUNCTION description format.
// Missing keys default to empty.
func CodeFromDict(d *Dict) (*Code, error) {
	c := &Code{Name: "<anonymous>"}
	if v, ok := d.GetString(fnKeyName); ok {
		if !v.IsString() {
			return nil, fmt.Errorf("%s must be a string, got %s", fnKeyName, v.Kind())
		}
		c.Name = v.Str()
	}

	var err error
	if c.Params, err = stringList(d, fnKeyArgs); err != nil {
		return nil, err
	}
	if c.FreeVars, err = stringList(d, fnKeyFreeVars); err != nil {
		return nil, err
	}
	if c.CellVars, err = stringList(d, fnKeyCellVars); err != nil {
		return nil, err
	}

	v, ok := d.GetString(fnKeyCode)
	if !ok {
		return c, nil
	}
	if !v.IsList() {
		return nil, fmt.Errorf("%s must be a list, got %s", fnKeyCode, v.Kind())
	}
	for i, entry := range v.List().Items {
		pair := entry.List()
		if pair == nil || pair.Len() != 2 {
			return nil, fmt.Errorf("%s[%d] must be an [opcode, operand] pair", fnKeyCode, i)
		}
		op := pair.Items[0]
		if !op.IsInt() || op.Int() < 0 || op.Int() > 255 {
			return nil, fmt.Errorf("%s[%d] has opcode %s", fnKeyCode, i, op.Repr())
		}
		c.Instructions = append(c.Instructions, Instruction{Op: Opcode(op.Int()), Arg: pair.Items[1]})
	}
	return c, nil
}

// CodeToDict is the inverse of CodeFromDict.
func CodeToDict(c *Code) *Dict {
	d := NewDict()
	d.SetString(fnKeyName, FromString(c.Name))
	d.SetString(fnKeyArgs, stringsValue(c.Params))
	instrs := make([]Value, len(c.Instructions))
	for i, ins := range c.Instructions {
		instrs[i] = NewListValue(FromInt(int32(ins.Op)), ins.Arg)
	}
	d.SetString(fnKeyCode, NewListValue(instrs...))
	d.SetString(fnKeyFreeVars, stringsValue(c.FreeVars))
	d.SetString(fnKeyCellVars, stringsValue(c.CellVars))
	return d
}

func stringList(d *Dict, key string) ([]string, error) {
	v, ok := d.GetString(key)
	if !ok || v.IsNil() {
		return nil, nil
	}
	if !v.IsList() {
		return nil, fmt.Errorf("%s must be a list, got %s", key, v.Kind())
	}
	out := make([]string, 0, v.List().Len())
	for i, item := range v.List().Items {
		if !item.IsString() {
			return nil, fmt.Errorf("%s[%d] must be a string, got %s", key, i, item.Kind())
		}
		out = append(out, item.Str())
	}
	return out, nil
}

func stringsValue(ss []string) Value {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = FromString(s)
	}
	return NewListValue(items...)
}
