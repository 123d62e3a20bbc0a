// Package ffi provides the host-native builtins Charon programs can call
// through OP_INVOKE without a compiled Function or Method backing them.
package ffi

import (
	"fmt"
	"io"

	"github.com/0x264/charon/pkg/value"
)

// Print stringifies its single argument with value.Stringify (the same
// rendering OP_ADD's string concatenation uses) and writes it to w with no
// trailing newline.
func Print(w io.Writer, args []value.Value) (value.Value, error) {
	fmt.Fprint(w, value.Stringify(args[0]))
	return value.Null(), nil
}

// Println is Print plus a trailing newline.
func Println(w io.Writer, args []value.Value) (value.Value, error) {
	fmt.Fprintln(w, value.Stringify(args[0]))
	return value.Null(), nil
}

// Globals builds the foreign function table installed as VM globals before
// a program runs: __print and __println, each taking exactly one argument.
func Globals(w io.Writer) map[string]value.Value {
	print := &value.ForeignFunction{Name: "__print", Params: 1, Handler: func(args []value.Value) (value.Value, error) {
		return Print(w, args)
	}}
	println := &value.ForeignFunction{Name: "__println", Params: 1, Handler: func(args []value.Value) (value.Value, error) {
		return Println(w, args)
	}}

	return map[string]value.Value{
		"__print":   value.Foreign(print),
		"__println": value.Foreign(println),
	}
}
