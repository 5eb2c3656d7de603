// Package vm implements the morph bytecode virtual machine.
//
// This package contains:
//   - the program image reader and writer
//   - the tagged Value model with shared lists, dicts and closure cells
//   - the frame-based interpreter loop and its opcode semantics
//   - the exception handler protocol
//   - the module table and the native bridge to files, sockets and the clock
//   - a disassembler for code objects
package vm
