// Package tracesplit re-encodes a kernel trace capture into smaller
// capture files, sliced by wall-clock window, duration, event count,
// or page count.
package tracesplit

import (
	"errors"
	"fmt"
)

// Code represents the high-level error categories of spec.md §7.
type Code string

const (
	CodeBadInput    Code = "bad input"
	CodeUnsupported Code = "unsupported"
	CodeBadArgument Code = "bad argument"
	CodeEncode      Code = "encode"
	CodeIO          Code = "I/O"
	CodeOOM         Code = "out of memory"
)

// Error is a structured, fatal error carrying the chunk/CPU context
// in which it occurred.
type Error struct {
	Op    string // operation that failed (e.g. "open_input", "flush_page")
	Chunk int    // chunk index (-1 if not applicable)
	CPU   int    // CPU index (-1 if not applicable)
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Chunk >= 0 {
		parts = append(parts, fmt.Sprintf("chunk=%d", e.Chunk))
	}
	if e.CPU >= 0 {
		parts = append(parts, fmt.Sprintf("cpu=%d", e.CPU))
	}

	msg := e.Msg
	if msg == "" && e.Inner != nil {
		msg = e.Inner.Error()
	}
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("trace-split: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("trace-split: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError creates a structured error with no chunk/CPU context.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Chunk: -1, CPU: -1, Code: code, Msg: msg}
}

// NewChunkError creates a structured error scoped to a chunk.
func NewChunkError(op string, chunk int, code Code, msg string) *Error {
	return &Error{Op: op, Chunk: chunk, CPU: -1, Code: code, Msg: msg}
}

// NewCPUError creates a structured error scoped to a chunk and CPU.
func NewCPUError(op string, chunk, cpu int, code Code, msg string) *Error {
	return &Error{Op: op, Chunk: chunk, CPU: cpu, Code: code, Msg: msg}
}

// WrapError wraps inner with trace-split context, preserving its code
// and chunk/CPU scope if it is already a structured *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if te, ok := inner.(*Error); ok {
		return &Error{Op: op, Chunk: te.Chunk, CPU: te.CPU, Code: te.Code, Msg: te.Msg, Inner: te.Inner}
	}
	return &Error{Op: op, Chunk: -1, CPU: -1, Code: CodeIO, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a structured *Error with the given
// code.
func IsCode(err error, code Code) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}
