package vm

import "unicode/utf8"

// buildDict pops n key/value pairs. Pairs are inserted in source order, so
// a later duplicate key overwrites an earlier one.
func (vm *VM) buildDict(n int) Value {
	if n < 0 {
		vm.fatal(ErrInvalidOperand, "negative count %d", n)
	}
	vals := vm.popN(2 * n)
	d := NewDict()
	for i := 0; i < len(vals); i += 2 {
		d.Set(vals[i], vals[i+1])
	}
	return FromDict(d)
}

// listIndex validates an index into a sequence of length n.
func (vm *VM) listIndex(index Value, n int, what string) int {
	if !index.IsInt() {
		vm.raiseError(ErrorIndeks, "%s index must be integer, got %s", what, index.Kind())
	}
	i := int(index.Int())
	if i < 0 || i >= n {
		vm.raiseError(ErrorIndeks, "%s index %d out of range for length %d", what, i, n)
	}
	return i
}

func (vm *VM) loadIndex(obj, index Value) Value {
	switch obj.Kind() {
	case KindList:
		l := obj.List()
		return l.Items[vm.listIndex(index, l.Len(), "list")]
	case KindDict:
		v, ok := obj.Dict().Get(index)
		if !ok {
			vm.raiseError(ErrorIndeks, "key %s not found", index.Repr())
		}
		return v
	case KindString:
		chars := []rune(obj.Str())
		i := vm.listIndex(index, len(chars), "string")
		return FromString(string(chars[i]))
	}
	vm.fatal(ErrNotIndexable, "%s", obj.Kind())
	return Nil
}

func (vm *VM) storeIndex(obj, index, value Value) {
	switch obj.Kind() {
	case KindList:
		l := obj.List()
		l.Items[vm.listIndex(index, l.Len(), "list")] = value
	case KindDict:
		obj.Dict().Set(index, value)
	default:
		vm.fatal(ErrNotIndexable, "cannot assign into %s", obj.Kind())
	}
}

// loadAttr reads a module global, a dict string key, or the name of a code
// object or function.
func (vm *VM) loadAttr(obj Value, name string) Value {
	switch obj.Kind() {
	case KindModule:
		if v, ok := obj.Module().Globals[name]; ok {
			return v.Deref()
		}
	case KindDict:
		if v, ok := obj.Dict().GetString(name); ok {
			return v
		}
	case KindCode, KindFunction:
		c := obj.Code()
		if c == nil {
			c = obj.Function().Code
		}
		switch name {
		case "nama":
			return FromString(c.Name)
		case "code":
			return FromCode(c)
		}
	default:
		vm.fatal(ErrAttributeNotFound, "%s has no attributes", obj.Kind())
	}
	vm.fatal(ErrAttributeNotFound, "%q on %s", name, obj.Repr())
	return Nil
}

func (vm *VM) storeAttr(obj Value, name string, value Value) {
	switch obj.Kind() {
	case KindModule:
		obj.Module().Globals[name] = value
	case KindDict:
		obj.Dict().SetString(name, value)
	default:
		vm.fatal(ErrAttributeNotFound, "cannot set %q on %s", name, obj.Kind())
	}
}

// sliceBounds normalises start and end against length n: negative values
// count from the end, both are clamped to [0, n] and end is floored to start.
func sliceBounds(start, end, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	start = min(max(start, 0), n)
	end = min(max(end, 0), n)
	if end < start {
		end = start
	}
	return start, end
}

func (vm *VM) slice(obj, start, end Value) Value {
	if !start.IsInt() || !end.IsInt() {
		vm.fatal(ErrInvalidOperand, "slice bounds must be integers, got %s and %s", start.Kind(), end.Kind())
	}
	switch obj.Kind() {
	case KindString:
		chars := []rune(obj.Str())
		i, j := sliceBounds(int(start.Int()), int(end.Int()), len(chars))
		return FromString(string(chars[i:j]))
	case KindList:
		items := obj.List().Items
		i, j := sliceBounds(int(start.Int()), int(end.Int()), len(items))
		return NewListValue(items[i:j]...)
	}
	vm.fatal(ErrNotIndexable, "cannot slice %s", obj.Kind())
	return Nil
}

func (vm *VM) length(obj Value) Value {
	switch obj.Kind() {
	case KindString:
		return FromInt(int32(utf8.RuneCountInString(obj.Str())))
	case KindList:
		return FromInt(int32(obj.List().Len()))
	case KindDict:
		return FromInt(int32(obj.Dict().Len()))
	}
	vm.fatal(ErrInvalidOperand, "%s has no length", obj.Kind())
	return Nil
}
