package vm

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble writes a listing of c followed by every code object nested in
// its operands and constants.
func Disassemble(w io.Writer, c *Code) error {
	var nested []*Code
	seen := map[*Code]bool{c: true}
	queue := []*Code{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		nested = append(nested, cur)
		for _, ins := range cur.Instructions {
			queue = appendCodes(queue, ins.Arg, seen)
		}
		for _, k := range cur.Constants {
			queue = appendCodes(queue, k, seen)
		}
	}

	for i, code := range nested {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := disassembleOne(w, code); err != nil {
			return err
		}
	}
	return nil
}

// DisassembleString returns the listing produced by Disassemble.
func DisassembleString(c *Code) string {
	var sb strings.Builder
	_ = Disassemble(&sb, c)
	return sb.String()
}

func appendCodes(queue []*Code, v Value, seen map[*Code]bool) []*Code {
	switch v.Kind() {
	case KindCode:
		if c := v.Code(); !seen[c] {
			seen[c] = true
			queue = append(queue, c)
		}
	case KindList:
		for _, item := range v.List().Items {
			queue = appendCodes(queue, item, seen)
		}
	case KindDict:
		for _, e := range v.Dict().Entries() {
			queue = appendCodes(queue, e.Value, seen)
		}
	}
	return queue
}

func disassembleOne(w io.Writer, c *Code) error {
	header := "code " + c.Name + "(" + strings.Join(c.Params, ", ") + ")"
	if len(c.FreeVars) > 0 {
		header += " free=" + strings.Join(c.FreeVars, ",")
	}
	if len(c.CellVars) > 0 {
		header += " cells=" + strings.Join(c.CellVars, ",")
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for pc, ins := range c.Instructions {
		info, _ := GetOpcodeInfo(ins.Op)
		line := fmt.Sprintf("%5d  %-14s", pc, info.Name)
		if info.Operand != OperandNone || !ins.Arg.IsNil() {
			line += " " + ins.Arg.Repr()
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}
