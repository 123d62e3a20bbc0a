// Package vm - runtime error reporting with call-stack traces.
package vm

import (
	"fmt"
	"strings"
)

// TraceFrame names one active call at the point a RuntimeError was raised.
type TraceFrame struct {
	IsMethod  bool
	ClassName string
	Name      string
}

// RuntimeError is a Charon runtime fault: a message plus the call stack
// active when it was raised, innermost frame first. The synthetic entry
// frame ("$") is never included.
type RuntimeError struct {
	Msg    string
	Frames []TraceFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error:  %s", e.Msg)
	for _, f := range e.Frames {
		if f.IsMethod {
			fmt.Fprintf(&b, "\n      in method:  %s.%s", f.ClassName, f.Name)
		} else {
			fmt.Fprintf(&b, "\n      in function: %s", f.Name)
		}
	}
	return b.String()
}

func runtimeErrorf(format string, args ...any) error {
	return &RuntimeError{Msg: fmt.Sprintf(format, args...)}
}
