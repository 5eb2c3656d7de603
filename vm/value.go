package vm

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindList
	KindDict
	KindCode
	KindCell
	KindFunction
	KindModule
	KindFile
	KindSocket
)

var kindNames = [...]string{
	KindNil:      "nil",
	KindBoolean:  "boolean",
	KindInteger:  "integer",
	KindFloat:    "float",
	KindString:   "string",
	KindList:     "list",
	KindDict:     "dict",
	KindCode:     "code",
	KindCell:     "cell",
	KindFunction: "function",
	KindModule:   "module",
	KindFile:     "file",
	KindSocket:   "socket",
}

// String returns the name reported by the TYPE opcode.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is the tagged runtime value. Scalars are stored inline; every
// reference variant keeps a pointer in ref, so copying a Value aliases the
// same List, Dict, Cell, Module or handle.
//
// The zero Value is Nil.
type Value struct {
	kind Kind
	num  uint64 // boolean, int32 or float64 bits
	str  string
	ref  any
}

// Nil is the nil value.
var Nil = Value{}

// Pre-defined booleans.
var (
	True  = Value{kind: KindBoolean, num: 1}
	False = Value{kind: KindBoolean, num: 0}
)

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromBool creates a Boolean value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromInt creates an Integer value.
func FromInt(i int32) Value {
	return Value{kind: KindInteger, num: uint64(uint32(i))}
}

// FromFloat creates a Float value.
func FromFloat(f float64) Value {
	return Value{kind: KindFloat, num: math.Float64bits(f)}
}

// FromString creates a String value.
func FromString(s string) Value {
	return Value{kind: KindString, str: s}
}

// FromList wraps an existing list. The returned value aliases l.
func FromList(l *List) Value {
	return Value{kind: KindList, ref: l}
}

// NewListValue creates a value holding a fresh list of items.
func NewListValue(items ...Value) Value {
	return FromList(NewList(items...))
}

// FromDict wraps an existing dict. The returned value aliases d.
func FromDict(d *Dict) Value {
	return Value{kind: KindDict, ref: d}
}

// FromCode wraps a code object.
func FromCode(c *Code) Value {
	return Value{kind: KindCode, ref: c}
}

// FromCell wraps a closure cell.
func FromCell(c *Cell) Value {
	return Value{kind: KindCell, ref: c}
}

// FromFunction wraps a function.
func FromFunction(f *Function) Value {
	return Value{kind: KindFunction, ref: f}
}

// FromModule wraps a module.
func FromModule(m *Module) Value {
	return Value{kind: KindModule, ref: m}
}

// FromFile wraps a file handle.
func FromFile(h *FileHandle) Value {
	return Value{kind: KindFile, ref: h}
}

// FromSocket wraps a socket handle.
func FromSocket(h *SocketHandle) Value {
	return Value{kind: KindSocket, ref: h}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool      { return v.kind == KindNil }
func (v Value) IsBool() bool     { return v.kind == KindBoolean }
func (v Value) IsInt() bool      { return v.kind == KindInteger }
func (v Value) IsFloat() bool    { return v.kind == KindFloat }
func (v Value) IsString() bool   { return v.kind == KindString }
func (v Value) IsNumber() bool   { return v.kind == KindInteger || v.kind == KindFloat }
func (v Value) IsList() bool     { return v.kind == KindList }
func (v Value) IsDict() bool     { return v.kind == KindDict }
func (v Value) IsCode() bool     { return v.kind == KindCode }
func (v Value) IsCell() bool     { return v.kind == KindCell }
func (v Value) IsFunction() bool { return v.kind == KindFunction }
func (v Value) IsModule() bool   { return v.kind == KindModule }

// Bool returns the payload of a Boolean. Other kinds return false.
func (v Value) Bool() bool { return v.kind == KindBoolean && v.num != 0 }

// Int returns the payload of an Integer. Other kinds return 0.
func (v Value) Int() int32 {
	if v.kind != KindInteger {
		return 0
	}
	return int32(uint32(v.num))
}

// Float returns the payload of a Float, or an Integer widened to float64.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return math.Float64frombits(v.num)
	case KindInteger:
		return float64(v.Int())
	}
	return 0
}

// Str returns the payload of a String. Other kinds return "".
func (v Value) Str() string { return v.str }

// List returns the list payload or nil.
func (v Value) List() *List {
	l, _ := v.ref.(*List)
	return l
}

// Dict returns the dict payload or nil.
func (v Value) Dict() *Dict {
	d, _ := v.ref.(*Dict)
	return d
}

// Code returns the code payload or nil.
func (v Value) Code() *Code {
	c, _ := v.ref.(*Code)
	return c
}

// Cell returns the cell payload or nil.
func (v Value) Cell() *Cell {
	c, _ := v.ref.(*Cell)
	return c
}

// Function returns the function payload or nil.
func (v Value) Function() *Function {
	f, _ := v.ref.(*Function)
	return f
}

// Module returns the module payload or nil.
func (v Value) Module() *Module {
	m, _ := v.ref.(*Module)
	return m
}

// File returns the file handle payload or nil.
func (v Value) File() *FileHandle {
	h, _ := v.ref.(*FileHandle)
	return h
}

// Socket returns the socket handle payload or nil.
func (v Value) Socket() *SocketHandle {
	h, _ := v.ref.(*SocketHandle)
	return h
}

// Deref returns the contents of a Cell, or v itself for every other kind.
func (v Value) Deref() Value {
	if c := v.Cell(); c != nil {
		return c.Value
	}
	return v
}

// Truthy reports whether v counts as true for conditional jumps.
// Only false, nil and integer zero are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBoolean:
		return v.num != 0
	case KindInteger:
		return v.Int() != 0
	}
	return true
}

// ---------------------------------------------------------------------------
// Equality and ordering
// ---------------------------------------------------------------------------

// Equal implements the EQ opcode. Containers that refer back to themselves
// compare equal when their shapes match.
func Equal(a, b Value) bool {
	return equal(a, b, nil)
}

// refPair is a pair of containers already being compared.
type refPair struct{ a, b any }

func equal(a, b Value, seen map[refPair]bool) bool {
	if a.IsNumber() && b.IsNumber() {
		if a.kind == KindInteger && b.kind == KindInteger {
			return a.Int() == b.Int()
		}
		return a.Float() == b.Float()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBoolean:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindList:
		return a.List().equal(b.List(), seen)
	case KindDict:
		return a.Dict().equal(b.Dict(), seen)
	case KindCell:
		ca, cb := a.Cell(), b.Cell()
		return ca == cb || equal(ca.Value, cb.Value, seen)
	case KindFunction:
		return a.Function().Code == b.Function().Code
	default:
		// Code, Module, File, Socket
		return a.ref == b.ref
	}
}

// Compare orders two numeric values, widening Integer to Float when mixed.
// ok is false for every other pair; such pairs are unordered.
func Compare(a, b Value) (cmp int, ok bool) {
	if !a.IsNumber() || !b.IsNumber() {
		return 0, false
	}
	if a.kind == KindInteger && b.kind == KindInteger {
		x, y := a.Int(), b.Int()
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	x, y := a.Float(), b.Float()
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	case x == y:
		return 0, true
	}
	// NaN
	return 0, false
}

// ---------------------------------------------------------------------------
// Stringification
// ---------------------------------------------------------------------------

// String returns the text produced by the STR opcode.
func (v Value) String() string {
	var sb strings.Builder
	writeValue(&sb, v, false, nil)
	return sb.String()
}

// Repr returns the text used for v inside a container: strings are quoted.
func (v Value) Repr() string {
	var sb strings.Builder
	writeValue(&sb, v, true, nil)
	return sb.String()
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func writeValue(sb *strings.Builder, v Value, quote bool, seen map[any]bool) {
	switch v.kind {
	case KindNil:
		sb.WriteString("nil")
	case KindBoolean:
		sb.WriteString(strconv.FormatBool(v.Bool()))
	case KindInteger:
		sb.WriteString(strconv.FormatInt(int64(v.Int()), 10))
	case KindFloat:
		sb.WriteString(formatFloat(v.Float()))
	case KindString:
		if quote {
			sb.WriteString(strconv.Quote(v.str))
		} else {
			sb.WriteString(v.str)
		}
	case KindList:
		if seen[v.ref] {
			sb.WriteString("[...]")
			return
		}
		seen = markSeen(seen, v.ref)
		sb.WriteByte('[')
		for i, item := range v.List().Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, item, true, seen)
		}
		sb.WriteByte(']')
		delete(seen, v.ref)
	case KindDict:
		if seen[v.ref] {
			sb.WriteString("{...}")
			return
		}
		seen = markSeen(seen, v.ref)
		sb.WriteByte('{')
		for i, e := range v.Dict().entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, e.Key, true, seen)
			sb.WriteString(": ")
			writeValue(sb, e.Value, true, seen)
		}
		sb.WriteByte('}')
		delete(seen, v.ref)
	case KindCode:
		sb.WriteString("<code " + v.Code().Name + ">")
	case KindCell:
		sb.WriteString("<cell ")
		writeValue(sb, v.Cell().Value, true, seen)
		sb.WriteByte('>')
	case KindFunction:
		sb.WriteString("<function " + v.Function().Code.Name + ">")
	case KindModule:
		sb.WriteString("<module " + v.Module().Name + ">")
	case KindFile:
		sb.WriteString(v.File().String())
	case KindSocket:
		sb.WriteString(v.Socket().String())
	default:
		sb.WriteString("<" + v.kind.String() + ">")
	}
}

func markSeen(seen map[any]bool, ref any) map[any]bool {
	if seen == nil {
		seen = make(map[any]bool)
	}
	seen[ref] = true
	return seen
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// List is a shared, resizable sequence. Every Value holding the same *List
// observes the same contents.
type List struct {
	Items []Value
}

// NewList creates a list holding a copy of items.
func NewList(items ...Value) *List {
	l := &List{Items: make([]Value, len(items))}
	copy(l.Items, items)
	return l
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.Items) }

// Append adds an item at the end.
func (l *List) Append(v Value) { l.Items = append(l.Items, v) }

func (l *List) equal(o *List, seen map[refPair]bool) bool {
	if l == o {
		return true
	}
	if len(l.Items) != len(o.Items) {
		return false
	}
	seen, visited := visit(seen, l, o)
	if visited {
		return true
	}
	for i := range l.Items {
		if !equal(l.Items[i], o.Items[i], seen) {
			return false
		}
	}
	return true
}

// visit records the pair (a, b) and reports whether it was already recorded.
func visit(seen map[refPair]bool, a, b any) (map[refPair]bool, bool) {
	if seen == nil {
		seen = make(map[refPair]bool)
	}
	p := refPair{a, b}
	if seen[p] {
		return seen, true
	}
	seen[p] = true
	return seen, false
}

// ---------------------------------------------------------------------------
// Dict
// ---------------------------------------------------------------------------

// DictEntry is one key/value pair of a Dict.
type DictEntry struct {
	Key   Value
	Value Value
}

// Dict is an ordered association list. Lookup scans linearly and stops at
// the first matching key; insertion overwrites in place or appends.
type Dict struct {
	entries []DictEntry
}

// NewDict creates an empty dict.
func NewDict() *Dict {
	return &Dict{}
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.entries) }

// Entries returns the entries in insertion order. The slice must not be
// modified by the caller.
func (d *Dict) Entries() []DictEntry { return d.entries }

// Get looks up key with Equal semantics.
func (d *Dict) Get(key Value) (Value, bool) {
	for _, e := range d.entries {
		if Equal(e.Key, key) {
			return e.Value, true
		}
	}
	return Nil, false
}

// GetString is Get with a String key.
func (d *Dict) GetString(key string) (Value, bool) {
	return d.Get(FromString(key))
}

// Set overwrites the value of an existing key or appends a new entry.
func (d *Dict) Set(key, value Value) {
	for i := range d.entries {
		if Equal(d.entries[i].Key, key) {
			d.entries[i].Value = value
			return
		}
	}
	d.entries = append(d.entries, DictEntry{Key: key, Value: value})
}

// SetString is Set with a String key.
func (d *Dict) SetString(key string, value Value) {
	d.Set(FromString(key), value)
}

// appendEntry adds a pair without looking for an existing key. An earlier
// duplicate keeps winning lookups.
func (d *Dict) appendEntry(key, value Value) {
	d.entries = append(d.entries, DictEntry{Key: key, Value: value})
}

func (d *Dict) equal(o *Dict, seen map[refPair]bool) bool {
	if d == o {
		return true
	}
	if len(d.entries) != len(o.entries) {
		return false
	}
	seen, visited := visit(seen, d, o)
	if visited {
		return true
	}
	for i := range d.entries {
		if !equal(d.entries[i].Key, o.entries[i].Key, seen) || !equal(d.entries[i].Value, o.entries[i].Value, seen) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Cells, functions, modules
// ---------------------------------------------------------------------------

// Cell is a mutable slot shared between a frame's locals and every Function
// that captured it.
type Cell struct {
	Value Value
}

// Globals is a global variable table. Maps are reference types, so every
// holder of the same Globals shares its bindings.
type Globals map[string]Value

// Copy returns a shallow copy of g.
func (g Globals) Copy() Globals {
	c := make(Globals, len(g))
	for k, v := range g {
		c[k] = v
	}
	return c
}

// Function is a Code paired with its captured cells and the global table of
// its definition site.
type Function struct {
	Code    *Code
	Cells   []*Cell
	Globals Globals
}

// Module is a loaded unit of program code and its global table.
type Module struct {
	Name    string
	Path    string   // backing file; empty for native modules
	Hash    [32]byte // content hash of the backing image
	Globals Globals
}
