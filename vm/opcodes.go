package vm

import "fmt"

// Opcode is a one-byte instruction code. Every instruction carries one
// operand, encoded as an ordinary constant.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation
	// ========================================================================

	OpPushConst Opcode = 1 // push operand
	OpPop       Opcode = 2
	OpDup       Opcode = 3

	// ========================================================================
	// Arithmetic and comparison
	// ========================================================================

	OpAdd Opcode = 4
	OpSub Opcode = 5
	OpMul Opcode = 6
	OpDiv Opcode = 7 // always yields a Float
	OpMod Opcode = 8 // Integer operands only
	OpEq  Opcode = 9
	OpNeq Opcode = 10
	OpGt  Opcode = 11
	OpLt  Opcode = 12
	OpGte Opcode = 13
	OpLte Opcode = 14
	OpNot Opcode = 15

	// ========================================================================
	// Bitwise (Integer operands only)
	// ========================================================================

	OpBitAnd Opcode = 16
	OpBitOr  Opcode = 17
	OpBitXor Opcode = 18
	OpBitNot Opcode = 19
	OpLShift Opcode = 20
	OpRShift Opcode = 21
	OpNeg    Opcode = 22

	// ========================================================================
	// Variables
	// ========================================================================

	OpLoadVar    Opcode = 23 // locals, then globals, then universals
	OpStoreVar   Opcode = 24 // globals
	OpLoadLocal  Opcode = 25 // locals only
	OpStoreLocal Opcode = 26 // locals, through a cell if bound to one

	// ========================================================================
	// Containers
	// ========================================================================

	OpBuildList  Opcode = 27
	OpBuildDict  Opcode = 28
	OpLoadIndex  Opcode = 29
	OpStoreIndex Opcode = 30
	OpLoadAttr   Opcode = 38
	OpStoreAttr  Opcode = 39

	// ========================================================================
	// Control flow
	// ========================================================================

	OpJmp          Opcode = 44 // absolute instruction index
	OpJmpIfFalse   Opcode = 45
	OpJmpIfTrue    Opcode = 46
	OpCall         Opcode = 47
	OpRet          Opcode = 48
	OpPushTry      Opcode = 49 // absolute handler index
	OpPopTry       Opcode = 50
	OpThrow        Opcode = 51
	OpImport       Opcode = 52
	OpPrint        Opcode = 53
	OpHalt         Opcode = 54
	OpImportNative Opcode = 55

	// ========================================================================
	// Functions and builtins
	// ========================================================================

	OpSlice         Opcode = 59
	OpBuildFunction Opcode = 60
	OpLen           Opcode = 62
	OpType          Opcode = 63
	OpStr           Opcode = 64
	OpLoadDeref     Opcode = 65
	OpStoreDeref    Opcode = 66
	OpLoadClosure   Opcode = 67
	OpMakeFunction  Opcode = 68

	// ========================================================================
	// String intrinsics
	// ========================================================================

	OpStrLower   Opcode = 75
	OpStrUpper   Opcode = 76
	OpStrFind    Opcode = 77
	OpStrReplace Opcode = 78

	// ========================================================================
	// Native primitives (never raise; failures push nil or false)
	// ========================================================================

	OpIOOpen      Opcode = 87
	OpIORead      Opcode = 88
	OpIOWrite     Opcode = 89
	OpIOClose     Opcode = 90
	OpIOExists    Opcode = 91
	OpIORemove    Opcode = 92
	OpIOMkdir     Opcode = 93
	OpIOListDir   Opcode = 94
	OpIOCwd       Opcode = 95
	OpSysTime     Opcode = 96
	OpSysSleep    Opcode = 97
	OpSysExit     Opcode = 98
	OpSysPlatform Opcode = 99
	OpNetConnect  Opcode = 100
	OpNetSend     Opcode = 101
	OpNetRecv     Opcode = 102
	OpNetClose    Opcode = 103
)

// OperandKind describes what an opcode expects in its operand slot.
type OperandKind uint8

const (
	OperandNone   OperandKind = iota // ignored
	OperandAny                       // any constant
	OperandString                    // a name or path
	OperandInt                       // a count or instruction index
)

// OpcodeInfo provides metadata about each opcode for validation and
// disassembly.
type OpcodeInfo struct {
	Name    string
	Operand OperandKind
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpPushConst: {"PUSH_CONST", OperandAny},
	OpPop:       {"POP", OperandNone},
	OpDup:       {"DUP", OperandNone},

	OpAdd: {"ADD", OperandNone},
	OpSub: {"SUB", OperandNone},
	OpMul: {"MUL", OperandNone},
	OpDiv: {"DIV", OperandNone},
	OpMod: {"MOD", OperandNone},
	OpEq:  {"EQ", OperandNone},
	OpNeq: {"NEQ", OperandNone},
	OpGt:  {"GT", OperandNone},
	OpLt:  {"LT", OperandNone},
	OpGte: {"GTE", OperandNone},
	OpLte: {"LTE", OperandNone},
	OpNot: {"NOT", OperandNone},

	OpBitAnd: {"BIT_AND", OperandNone},
	OpBitOr:  {"BIT_OR", OperandNone},
	OpBitXor: {"BIT_XOR", OperandNone},
	OpBitNot: {"BIT_NOT", OperandNone},
	OpLShift: {"LSHIFT", OperandNone},
	OpRShift: {"RSHIFT", OperandNone},
	OpNeg:    {"NEG", OperandNone},

	OpLoadVar:    {"LOAD_VAR", OperandString},
	OpStoreVar:   {"STORE_VAR", OperandString},
	OpLoadLocal:  {"LOAD_LOCAL", OperandString},
	OpStoreLocal: {"STORE_LOCAL", OperandString},

	OpBuildList:  {"BUILD_LIST", OperandInt},
	OpBuildDict:  {"BUILD_DICT", OperandInt},
	OpLoadIndex:  {"LOAD_INDEX", OperandNone},
	OpStoreIndex: {"STORE_INDEX", OperandNone},
	OpLoadAttr:   {"LOAD_ATTR", OperandString},
	OpStoreAttr:  {"STORE_ATTR", OperandString},

	OpJmp:          {"JMP", OperandInt},
	OpJmpIfFalse:   {"JMP_IF_FALSE", OperandInt},
	OpJmpIfTrue:    {"JMP_IF_TRUE", OperandInt},
	OpCall:         {"CALL", OperandInt},
	OpRet:          {"RET", OperandNone},
	OpPushTry:      {"PUSH_TRY", OperandInt},
	OpPopTry:       {"POP_TRY", OperandNone},
	OpThrow:        {"THROW", OperandNone},
	OpImport:       {"IMPORT", OperandString},
	OpPrint:        {"PRINT", OperandInt},
	OpHalt:         {"HALT", OperandNone},
	OpImportNative: {"IMPORT_NATIVE", OperandString},

	OpSlice:         {"SLICE", OperandNone},
	OpBuildFunction: {"BUILD_FUNCTION", OperandNone},
	OpLen:           {"LEN", OperandNone},
	OpType:          {"TYPE", OperandNone},
	OpStr:           {"STR", OperandNone},
	OpLoadDeref:     {"LOAD_DEREF", OperandString},
	OpStoreDeref:    {"STORE_DEREF", OperandString},
	OpLoadClosure:   {"LOAD_CLOSURE", OperandString},
	OpMakeFunction:  {"MAKE_FUNCTION", OperandNone},

	OpStrLower:   {"STR_LOWER", OperandNone},
	OpStrUpper:   {"STR_UPPER", OperandNone},
	OpStrFind:    {"STR_FIND", OperandNone},
	OpStrReplace: {"STR_REPLACE", OperandNone},

	OpIOOpen:      {"IO_OPEN", OperandNone},
	OpIORead:      {"IO_READ", OperandNone},
	OpIOWrite:     {"IO_WRITE", OperandNone},
	OpIOClose:     {"IO_CLOSE", OperandNone},
	OpIOExists:    {"IO_EXISTS", OperandNone},
	OpIORemove:    {"IO_REMOVE", OperandNone},
	OpIOMkdir:     {"IO_MKDIR", OperandNone},
	OpIOListDir:   {"IO_LISTDIR", OperandNone},
	OpIOCwd:       {"IO_CWD", OperandNone},
	OpSysTime:     {"SYS_TIME", OperandNone},
	OpSysSleep:    {"SYS_SLEEP", OperandNone},
	OpSysExit:     {"SYS_EXIT", OperandNone},
	OpSysPlatform: {"SYS_PLATFORM", OperandNone},
	OpNetConnect:  {"NET_CONNECT", OperandNone},
	OpNetSend:     {"NET_SEND", OperandNone},
	OpNetRecv:     {"NET_RECV", OperandNone},
	OpNetClose:    {"NET_CLOSE", OperandNone},
}

// GetOpcodeInfo returns metadata for an opcode.
// ok is false if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) (info OpcodeInfo, ok bool) {
	info, ok = opcodeInfoTable[op]
	if !ok {
		info = OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", byte(op))}
	}
	return info, ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	info, _ := GetOpcodeInfo(op)
	return info.Name
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump returns true for instructions whose operand is a target index.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJmpIfFalse || op == OpJmpIfTrue || op == OpPushTry
}

// CheckOperand reports whether arg is acceptable for op. Jump targets must
// be non-negative.
func (op Opcode) CheckOperand(arg Value) bool {
	info, ok := GetOpcodeInfo(op)
	if !ok {
		return false
	}
	if op.IsJump() {
		return arg.IsInt() && arg.Int() >= 0
	}
	switch info.Operand {
	case OperandString:
		return arg.IsString()
	case OperandInt:
		return arg.IsInt()
	}
	return true
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
