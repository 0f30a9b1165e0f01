// Package vm implements the stack-based bytecode interpreter: the
// fetch-decode-execute dispatch loop, call frames, upvalue capture and
// closing, and the method-dispatch protocol unifying instance methods,
// bound methods, natives, and built-in string/list methods.
package vm

import (
	"fmt"
	"strings"
)

// frameTrace is one entry of a runtime error's stack trace: the source
// line active in that frame and the name of the function, empty for the
// top-level script (which Error renders as "脚本").
type frameTrace struct {
	line int
	name string
}

// RuntimeError is raised by the dispatch loop when an operation cannot
// proceed (type mismatch, undefined variable, arity mismatch, stack
// overflow, and so on). Its Error() renders the same
// "[line N] in <script|function>" stack trace the driver prints to
// stderr, deepest frame first.
type RuntimeError struct {
	Message string
	Trace   []frameTrace
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, f := range e.Trace {
		b.WriteString("\n")
		if f.name == "" {
			fmt.Fprintf(&b, "【第 %d 行】在 脚本", f.line)
		} else {
			fmt.Fprintf(&b, "【第 %d 行】在 %s（）", f.line, f.name)
		}
	}
	return b.String()
}

func newRuntimeError(message string, trace []frameTrace) *RuntimeError {
	return &RuntimeError{Message: message, Trace: trace}
}
