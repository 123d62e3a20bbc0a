// Package value implements Charon's runtime value representation: the
// tagged union every bytecode instruction pushes, pops, and inspects.
package value

import (
	"fmt"
	"strconv"

	"github.com/0x264/charon/pkg/bytecode"
)

// Kind discriminates the variant held by a Value.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindLong
	KindDouble
	KindString
	KindClass
	KindInstance
	KindFunction
	KindMethod
	KindForeignFunction
)

// Value is Charon's tagged runtime value. Only the field matching Kind is
// meaningful; the rest are zero. Class, Function, and Method values are
// non-owning references into the loaded Program. Instance is a shared,
// mutable, reference-counted-by-GC object — copies of a Value holding an
// Instance alias the same underlying fields map.
type Value struct {
	Kind Kind

	Bool   bool
	Long   int64
	Double float64
	Str    string

	Class    *bytecode.Class
	Instance *Instance
	Function *bytecode.Function
	Method   *BoundMethod

	Foreign *ForeignFunction
}

// Instance is a live class instance: its class pointer plus a name-keyed
// field table. Charon classes have no declared field list, so fields are
// created lazily on first assignment.
type Instance struct {
	Class  *bytecode.Class
	Fields map[string]Value
}

// BoundMethod pairs a live instance with the method it will be invoked on
// — the receiver ("this") a call through OP_INVOKE resolves against.
type BoundMethod struct {
	Instance *Instance
	Method   *bytecode.Method
}

// ForeignHandler is a host-provided builtin. args are already evaluated,
// left to right.
type ForeignHandler func(args []Value) (Value, error)

// ForeignFunction is a builtin registered by the host, invoked the same way
// as a compiled Function through OP_INVOKE.
type ForeignFunction struct {
	Name    string
	Params  int
	Handler ForeignHandler
}

// Constructors for each variant.

func Null() Value           { return Value{Kind: KindNull} }
func Bool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func Long(v int64) Value    { return Value{Kind: KindLong, Long: v} }
func Double(v float64) Value { return Value{Kind: KindDouble, Double: v} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }

func Class(c *bytecode.Class) Value { return Value{Kind: KindClass, Class: c} }

func NewInstance(c *bytecode.Class) Value {
	return Value{Kind: KindInstance, Instance: &Instance{Class: c, Fields: map[string]Value{}}}
}

func Function(f *bytecode.Function) Value { return Value{Kind: KindFunction, Function: f} }

func Method(inst *Instance, m *bytecode.Method) Value {
	return Value{Kind: KindMethod, Method: &BoundMethod{Instance: inst, Method: m}}
}

func Foreign(f *ForeignFunction) Value { return Value{Kind: KindForeignFunction, Foreign: f} }

// IsTrue reports whether a value counts as true in a conditional context:
// every value is true except null, false, and the long/double zero values.
func (v Value) IsTrue() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.Bool
	case KindLong:
		return v.Long != 0
	case KindDouble:
		return v.Double != 0
	default:
		return true
	}
}

// IsFalse is the logical complement of IsTrue, kept distinct because the
// VM consumes both OP_IF and OP_IF_NOT against the same truth table.
func (v Value) IsFalse() bool { return !v.IsTrue() }

// Stringify renders a value the way OP_ADD's string-left concatenation and
// the host print builtins do.
func Stringify(v Value) string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindLong:
		return strconv.FormatInt(v.Long, 10)
	case KindDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindClass:
		return fmt.Sprintf("<class: %s>", v.Class.Name)
	case KindInstance:
		return fmt.Sprintf("<class: %s's instance>", v.Instance.Class.Name)
	case KindFunction:
		return fmt.Sprintf("<function: %s>", v.Function.Name)
	case KindMethod:
		return fmt.Sprintf("<class: %s's method: %s>", v.Method.Method.ClassName, v.Method.Method.Name)
	case KindForeignFunction:
		return fmt.Sprintf("<foreign function: %s>", v.Foreign.Name)
	default:
		return "<unknown>"
	}
}

// Equal implements OP_CMP_EQ's value-equality rule: every boolean encoding
// (true/false literal, Bool(true), Bool(false)) collapses to a single
// boolean value before comparison, instances compare by identity, and all
// other kinds compare structurally.
func Equal(a, b Value) bool {
	if a.Kind == KindBool || b.Kind == KindBool {
		return a.IsBooleanLike() && b.IsBooleanLike() && a.IsTrue() == b.IsTrue()
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindLong:
		return a.Long == b.Long
	case KindDouble:
		return a.Double == b.Double
	case KindString:
		return a.Str == b.Str
	case KindClass:
		return a.Class == b.Class
	case KindInstance:
		return a.Instance == b.Instance
	case KindFunction:
		return a.Function == b.Function
	case KindMethod:
		return a.Method.Instance == b.Method.Instance && a.Method.Method == b.Method.Method
	case KindForeignFunction:
		return a.Foreign == b.Foreign
	default:
		return false
	}
}

// IsBooleanLike reports whether a value is one of the boolean-valued
// encodings Equal collapses together: the Bool variant, or an opcode's
// literal true/false constant pushed directly as Bool.
func (v Value) IsBooleanLike() bool { return v.Kind == KindBool }

// TypeName names a value's kind for runtime type errors.
func TypeName(v Value) string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindForeignFunction:
		return "foreign function"
	default:
		return "unknown"
	}
}
