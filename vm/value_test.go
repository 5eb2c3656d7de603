package vm

import (
	"math"
	"testing"
)

func TestIntRoundTrip(t *testing.T) {
	for _, n := range []int32{0, 1, -1, 42, math.MaxInt32, math.MinInt32} {
		v := FromInt(n)
		if !v.IsInt() {
			t.Errorf("FromInt(%d) kind = %s", n, v.Kind())
		}
		if v.Int() != n {
			t.Errorf("FromInt(%d).Int() = %d", n, v.Int())
		}
	}
}

func TestFloatRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1.5, -2.25, math.Inf(1), math.SmallestNonzeroFloat64} {
		v := FromFloat(f)
		if !v.IsFloat() || v.Float() != f {
			t.Errorf("FromFloat(%v) = %v", f, v)
		}
	}
}

func TestZeroValueIsNil(t *testing.T) {
	var v Value
	if !v.IsNil() || v != Nil {
		t.Errorf("zero Value = %v, want nil", v)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Nil, false},
		{False, false},
		{True, true},
		{FromInt(0), false},
		{FromInt(-3), true},
		{FromFloat(0), true},
		{FromString(""), true},
		{NewListValue(), true},
		{FromDict(NewDict()), true},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("%s.Truthy() = %v, want %v", tt.v.Repr(), got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	code := NewCodeBuilder("f").Build()
	tests := []struct {
		a, b Value
		want bool
	}{
		{Nil, Nil, true},
		{True, True, true},
		{True, False, false},
		{FromInt(1), FromInt(1), true},
		{FromInt(1), FromFloat(1.0), true},
		{FromFloat(0.5), FromFloat(0.5), true},
		{FromInt(1), FromString("1"), false},
		{FromString("a"), FromString("a"), true},
		{Nil, False, false},
		{FromInt(0), False, false},
		{NewListValue(ints(1, 2)...), NewListValue(ints(1, 2)...), true},
		{NewListValue(ints(1, 2)...), NewListValue(ints(2, 1)...), false},
		{FromCode(code), FromCode(code), true},
		{FromCode(code), FromCode(NewCodeBuilder("f").Build()), false},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%s, %s) = %v, want %v", tt.a.Repr(), tt.b.Repr(), got, tt.want)
		}
	}
}

func TestEqualDictsAreOrderSensitive(t *testing.T) {
	a := NewDict()
	a.SetString("x", FromInt(1))
	a.SetString("y", FromInt(2))
	b := NewDict()
	b.SetString("x", FromInt(1))
	b.SetString("y", FromInt(2))
	if !Equal(FromDict(a), FromDict(b)) {
		t.Error("identical dicts should be equal")
	}
	c := NewDict()
	c.SetString("y", FromInt(2))
	c.SetString("x", FromInt(1))
	if Equal(FromDict(a), FromDict(c)) {
		t.Error("dicts with different insertion order should differ")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b   Value
		cmp    int
		wantOK bool
	}{
		{FromInt(1), FromInt(2), -1, true},
		{FromInt(2), FromInt(2), 0, true},
		{FromFloat(2.5), FromInt(2), 1, true},
		{FromString("a"), FromString("b"), 0, false},
		{FromString("a"), FromInt(1), 0, false},
		{FromFloat(math.NaN()), FromInt(1), 0, false},
	}
	for _, tt := range tests {
		cmp, ok := Compare(tt.a, tt.b)
		if ok != tt.wantOK || (ok && cmp != tt.cmp) {
			t.Errorf("Compare(%s, %s) = %d, %v; want %d, %v", tt.a.Repr(), tt.b.Repr(), cmp, ok, tt.cmp, tt.wantOK)
		}
	}
}

func TestValueString(t *testing.T) {
	d := NewDict()
	d.SetString("k", NewListValue(FromInt(1), FromString("s")))
	tests := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{True, "true"},
		{FromInt(-7), "-7"},
		{FromFloat(3.5), "3.5"},
		{FromFloat(2), "2"},
		{FromFloat(math.Inf(-1)), "-inf"},
		{FromString("plain"), "plain"},
		{NewListValue(FromString("a"), Nil), `["a", nil]`},
		{FromDict(d), `{"k": [1, "s"]}`},
		{FromCode(NewCodeBuilder("f").Build()), "<code f>"},
		{FromCell(&Cell{Value: FromInt(3)}), "<cell 3>"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValueStringSelfReference(t *testing.T) {
	l := NewList()
	l.Append(FromInt(1))
	l.Append(FromList(l))
	if got := FromList(l).String(); got != "[1, [...]]" {
		t.Errorf("String() = %q, want [1, [...]]", got)
	}
}

func selfList(head int32) *List {
	l := NewList(FromInt(head))
	l.Append(FromList(l))
	return l
}

func TestEqualSelfReferencingContainers(t *testing.T) {
	if !Equal(FromList(selfList(1)), FromList(selfList(1))) {
		t.Error("distinct self-referencing lists of the same shape should be equal")
	}
	if Equal(FromList(selfList(1)), FromList(selfList(2))) {
		t.Error("self-referencing lists with different heads should differ")
	}

	a, b := NewDict(), NewDict()
	a.SetString("me", FromDict(a))
	b.SetString("me", FromDict(b))
	if !Equal(FromDict(a), FromDict(b)) {
		t.Error("distinct self-referencing dicts of the same shape should be equal")
	}
}

func TestListAliasing(t *testing.T) {
	a := NewListValue(FromInt(1))
	b := a
	b.List().Append(FromInt(2))
	if a.List().Len() != 2 {
		t.Errorf("len via alias = %d, want 2", a.List().Len())
	}
}

func TestNewListCopiesItems(t *testing.T) {
	items := ints(1, 2)
	l := NewList(items...)
	items[0] = FromInt(9)
	if l.Items[0].Int() != 1 {
		t.Errorf("NewList aliased its argument: %v", l.Items)
	}
}

func TestDictSetOverwritesInPlace(t *testing.T) {
	d := NewDict()
	d.SetString("a", FromInt(1))
	d.SetString("b", FromInt(2))
	d.SetString("a", FromInt(3))
	if d.Len() != 2 {
		t.Fatalf("len = %d, want 2", d.Len())
	}
	entries := d.Entries()
	if entries[0].Key.Str() != "a" || entries[0].Value.Int() != 3 {
		t.Errorf("first entry = %v, want a: 3", entries[0])
	}
}

func TestDictNumericKeysUseEquality(t *testing.T) {
	d := NewDict()
	d.Set(FromInt(1), FromString("one"))
	v, ok := d.Get(FromFloat(1.0))
	if !ok || v.Str() != "one" {
		t.Errorf("Get(1.0) = %v, %v; want one", v, ok)
	}
}

func TestKindNames(t *testing.T) {
	pairs := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{True, "boolean"},
		{FromInt(1), "integer"},
		{FromFloat(1), "float"},
		{FromString(""), "string"},
		{NewListValue(), "list"},
		{FromDict(NewDict()), "dict"},
		{FromCode(&Code{}), "code"},
		{FromFunction(&Function{Code: &Code{}}), "function"},
		{FromModule(&Module{}), "module"},
	}
	for _, p := range pairs {
		if got := p.v.Kind().String(); got != p.want {
			t.Errorf("kind = %q, want %q", got, p.want)
		}
	}
}

func TestGlobalsCopy(t *testing.T) {
	g := Globals{"a": FromInt(1)}
	c := g.Copy()
	c["a"] = FromInt(2)
	c["b"] = FromInt(3)
	if g["a"].Int() != 1 {
		t.Errorf("original modified: %v", g["a"])
	}
	if _, ok := g["b"]; ok {
		t.Error("new key leaked into original")
	}
}
