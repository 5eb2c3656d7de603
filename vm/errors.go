package vm

import (
	"errors"
	"fmt"
	"strings"
)

// Host-level failures. These indicate a corrupt image or a broken embedding
// and are never catchable by PUSH_TRY.
var (
	ErrStackUnderflow       = errors.New("stack underflow")
	ErrUndefinedVariable    = errors.New("undefined variable")
	ErrNotCallable          = errors.New("value is not callable")
	ErrInvalidOperand       = errors.New("invalid operand")
	ErrNotIndexable         = errors.New("value is not indexable")
	ErrUnknownOpcode        = errors.New("unknown opcode")
	ErrModuleNotFound       = errors.New("module not found")
	ErrNativeModuleNotFound = errors.New("native module not found")
	ErrNotACell             = errors.New("name is not bound to a cell")
	ErrFrameOverflow        = errors.New("frame limit exceeded")
	ErrAttributeNotFound    = errors.New("attribute not found")
	ErrMalformedFunction    = errors.New("malformed function description")
	ErrInternal             = errors.New("internal error")
)

// FatalError reports a host-level failure with the instruction that
// triggered it.
type FatalError struct {
	Op    Opcode
	PC    int
	Frame string
	Err   error
}

func (e *FatalError) Error() string {
	if e.Frame == "" {
		return fmt.Sprintf("fatal: %v", e.Err)
	}
	return fmt.Sprintf("fatal: %v (in %s at pc %d, %s)", e.Err, e.Frame, e.PC, e.Op)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// UncaughtError is returned by Run when a thrown value reached the bottom
// of the frame stack without meeting a handler.
type UncaughtError struct {
	Value     Value
	Traceback []string // innermost first
}

func (e *UncaughtError) Error() string {
	var sb strings.Builder
	sb.WriteString("uncaught exception: ")
	sb.WriteString(describeThrown(e.Value))
	for _, f := range e.Traceback {
		sb.WriteString("\n  at ")
		sb.WriteString(f)
	}
	return sb.String()
}

// Kind returns the "jenis" of an internally raised error, or "" for other
// thrown values.
func (e *UncaughtError) Kind() string {
	if d := e.Value.Dict(); d != nil {
		if k, ok := d.GetString(keyKind); ok && k.IsString() {
			return k.Str()
		}
	}
	return ""
}

// ExitError is returned by Run when the program called SYS_EXIT.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func describeThrown(v Value) string {
	if d := v.Dict(); d != nil {
		kind, _ := d.GetString(keyKind)
		msg, hasMsg := d.GetString(keyMessage)
		if hasMsg && kind.IsString() {
			return kind.Str() + ": " + msg.String()
		}
		if hasMsg {
			return msg.String()
		}
	}
	return v.Repr()
}
