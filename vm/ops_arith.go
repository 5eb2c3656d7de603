package vm

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// arith implements ADD, SUB, MUL, DIV and MOD. Integer arithmetic wraps at
// 32 bits; a mixed pair is computed in float64.
func (vm *VM) arith(op Opcode, a, b Value) Value {
	if op == OpAdd && a.IsString() && b.IsString() {
		return FromString(a.Str() + b.Str())
	}

	if op == OpMod {
		if !a.IsInt() || !b.IsInt() {
			vm.raiseError(ErrorTipe, "operands of MOD must be integers, got %s and %s", a.Kind(), b.Kind())
		}
		if b.Int() == 0 {
			vm.raiseError(ErrorPembagianNol, "modulo by zero")
		}
		// math.MinInt32 % -1 is 0 in Go without trapping.
		return FromInt(a.Int() % b.Int())
	}

	if !a.IsNumber() || !b.IsNumber() {
		vm.raiseError(ErrorTipe, "unsupported operands for %s: %s and %s", op, a.Kind(), b.Kind())
	}

	if op == OpDiv {
		d := b.Float()
		if d == 0 {
			vm.raiseError(ErrorPembagianNol, "division by zero")
		}
		return FromFloat(a.Float() / d)
	}

	if a.IsInt() && b.IsInt() {
		x, y := a.Int(), b.Int()
		switch op {
		case OpAdd:
			return FromInt(x + y)
		case OpSub:
			return FromInt(x - y)
		case OpMul:
			return FromInt(x * y)
		}
	}

	x, y := a.Float(), b.Float()
	switch op {
	case OpAdd:
		return FromFloat(x + y)
	case OpSub:
		return FromFloat(x - y)
	case OpMul:
		return FromFloat(x * y)
	}
	return Nil
}

func (vm *VM) negate(a Value) Value {
	switch a.Kind() {
	case KindInteger:
		return FromInt(-a.Int())
	case KindFloat:
		return FromFloat(-a.Float())
	}
	vm.raiseError(ErrorTipe, "operand of NEG must be a number, got %s", a.Kind())
	return Nil
}

// compareOp implements GT, LT, GTE and LTE. Unordered pairs give false.
func compareOp(op Opcode, a, b Value) bool {
	cmp, ok := Compare(a, b)
	if !ok {
		return false
	}
	switch op {
	case OpGt:
		return cmp > 0
	case OpLt:
		return cmp < 0
	case OpGte:
		return cmp >= 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

// ---------------------------------------------------------------------------
// Bitwise
// ---------------------------------------------------------------------------

func (vm *VM) bitwise(op Opcode, a, b Value) Value {
	if !a.IsInt() || !b.IsInt() {
		vm.raiseError(ErrorTipe, "operands of %s must be integers, got %s and %s", op, a.Kind(), b.Kind())
	}
	x, y := a.Int(), b.Int()
	switch op {
	case OpBitAnd:
		return FromInt(x & y)
	case OpBitOr:
		return FromInt(x | y)
	case OpBitXor:
		return FromInt(x ^ y)
	}

	if y < 0 {
		vm.raiseError(ErrorTipe, "negative shift count %d", y)
	}
	n := uint(y) & 31
	if op == OpLShift {
		return FromInt(x << n)
	}
	return FromInt(x >> n)
}
