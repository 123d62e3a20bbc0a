// Package vm implements the Charon bytecode virtual machine.
//
// Execution model:
//
// The VM is a trampoline over Frames. Each Frame addresses a contiguous
// window of one shared operand stack via (sb, sp): sb is the base slot a
// frame's parameters and locals live at, sp is the current top. runCode
// drives a single frame until it either:
//
//   - hits OP_INVOKE against a Function or Method, in which case it
//     returns the new child Frame to the trampoline without unwinding its
//     own Go call stack, or
//   - hits OP_RETURN (or falls off the end, which the compiler prevents by
//     always emitting a trailing CONST_NULL/RETURN), in which case it
//     writes its result into the slot its caller is waiting on and returns
//     nil to signal "pop me".
//
// This keeps Charon call depth from costing Go call stack depth: a
// Charon program thousands of calls deep runs in Exec's single trampoline
// loop.
package vm

import (
	"fmt"
	"strings"

	"github.com/0x264/charon/pkg/bytecode"
	"github.com/0x264/charon/pkg/reader"
	"github.com/0x264/charon/pkg/stack"
	"github.com/0x264/charon/pkg/value"
)

// FrameKind distinguishes a plain function call from a method call, for
// error traces.
type FrameKind int

const (
	FrameFunction FrameKind = iota
	FrameMethod
)

// Frame is one activation record: which code is running, where its base
// and top sit in the shared stack, and its current program counter.
type Frame struct {
	Kind      FrameKind
	Name      string
	ClassName string
	Code      []byte
	PC        int
	SB        int
	SP        int
}

// VM holds everything shared across an entire program run: the loaded
// bytecode, the operand stack, and global variables (which persist for the
// lifetime of a VM, matching Charon's single-program execution model).
type VM struct {
	program *bytecode.Program
	stack   *stack.Stack
	globals map[string]value.Value
}

// New constructs a VM ready to run program, seeding globals with any
// host-provided builtins (e.g. __print, __println).
func New(program *bytecode.Program, builtins map[string]value.Value) (*VM, error) {
	st, err := stack.New()
	if err != nil {
		return nil, err
	}

	globals := make(map[string]value.Value, len(builtins)+len(program.Classes)+len(program.Functions))
	for k, v := range builtins {
		globals[k] = v
	}
	for name, c := range program.Classes {
		globals[name] = value.Class(c)
	}
	for name, fn := range program.Functions {
		if name == bytecode.EntryName {
			continue
		}
		globals[name] = value.Function(fn)
	}

	return &VM{program: program, stack: st, globals: globals}, nil
}

// Close releases the VM's execution stack.
func (vm *VM) Close() error { return vm.stack.Close() }

// Exec runs the program's entry function ($) to completion. A returned
// error is either a *RuntimeError (language-level fault, carrying a call
// trace) or a lower-level I/O/decoding error; a guard-page stack
// overflow/underflow instead terminates the process directly, matching
// the reference VM's fatal-signal behavior.
func (vm *VM) Exec() error {
	entry, ok := vm.program.Functions[bytecode.EntryName]
	if !ok {
		return fmt.Errorf("program has no entry function %q", bytecode.EntryName)
	}

	// Slot 0 is left free for the entry function's RETURN to write into,
	// since the entry frame has no caller slot of its own.
	frames := []*Frame{{Kind: FrameFunction, Name: bytecode.EntryName, Code: entry.Code, SB: 1, SP: 1 + int(entry.MaxLocals)}}

	for {
		cur := frames[len(frames)-1]
		next, err := vm.runCode(cur)
		if err != nil {
			return vm.attachTrace(err, frames)
		}

		if next != nil {
			frames = append(frames, next)
			continue
		}

		frames = frames[:len(frames)-1]
		if len(frames) == 0 {
			return nil
		}
		frames[len(frames)-1].SP = cur.SB
	}
}

func (vm *VM) attachTrace(err error, frames []*Frame) error {
	if _, ok := err.(*RuntimeError); !ok {
		return err
	}
	rerr := err.(*RuntimeError)
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if f.Name == bytecode.EntryName && f.Kind == FrameFunction {
			continue
		}
		rerr.Frames = append(rerr.Frames, TraceFrame{IsMethod: f.Kind == FrameMethod, ClassName: f.ClassName, Name: f.Name})
	}
	return rerr
}

func (vm *VM) push(f *Frame, v value.Value) {
	vm.stack.Write(f.SP, v)
	f.SP++
}

func (vm *VM) pop(f *Frame) value.Value {
	f.SP--
	return vm.stack.Read(f.SP)
}

func (vm *VM) peek(f *Frame) value.Value {
	return vm.stack.Read(f.SP - 1)
}

// runCode executes f from its current PC until it must yield: either a
// child Frame to run (non-nil return) or completion/error (nil Frame).
func (vm *VM) runCode(f *Frame) (*Frame, error) {
	r := reader.New(f.Code)
	if err := r.SetOffset(f.PC); err != nil {
		return nil, err
	}

	for {
		opByte, err := r.NextU8()
		if err != nil {
			return nil, err
		}
		op := bytecode.Op(opByte)

		switch op {
		case bytecode.OpConstNull:
			vm.push(f, value.Null())
		case bytecode.OpConstTrue:
			vm.push(f, value.Bool(true))
		case bytecode.OpConstFalse:
			vm.push(f, value.Bool(false))
		case bytecode.OpLConstM1:
			vm.push(f, value.Long(-1))
		case bytecode.OpLConst0:
			vm.push(f, value.Long(0))
		case bytecode.OpLConst1:
			vm.push(f, value.Long(1))
		case bytecode.OpLConst2:
			vm.push(f, value.Long(2))
		case bytecode.OpLConst3:
			vm.push(f, value.Long(3))
		case bytecode.OpLConst4:
			vm.push(f, value.Long(4))
		case bytecode.OpLConst5:
			vm.push(f, value.Long(5))

		case bytecode.OpLdc:
			idx, err := r.NextU16()
			if err != nil {
				return nil, err
			}
			c, err := vm.constant(idx)
			if err != nil {
				return nil, err
			}
			switch c.Tag {
			case bytecode.ConstantLong:
				vm.push(f, value.Long(c.Long))
			case bytecode.ConstantDouble:
				vm.push(f, value.Double(c.Double))
			case bytecode.ConstantString:
				vm.push(f, value.String(c.Str))
			}

		case bytecode.OpNeg:
			v := vm.pop(f)
			switch v.Kind {
			case value.KindLong:
				vm.push(f, value.Long(-v.Long))
			case value.KindDouble:
				vm.push(f, value.Double(-v.Double))
			default:
				return nil, runtimeErrorf("cannot negate a %s", value.TypeName(v))
			}

		case bytecode.OpAdd:
			right, left := vm.pop(f), vm.pop(f)
			result, err := add(left, right)
			if err != nil {
				return nil, err
			}
			vm.push(f, result)

		case bytecode.OpSub:
			right, left := vm.pop(f), vm.pop(f)
			result, err := arith(left, right, "subtract", func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
			if err != nil {
				return nil, err
			}
			vm.push(f, result)

		case bytecode.OpMul:
			right, left := vm.pop(f), vm.pop(f)
			result, err := arith(left, right, "multiply", func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
			if err != nil {
				return nil, err
			}
			vm.push(f, result)

		case bytecode.OpDiv:
			right, left := vm.pop(f), vm.pop(f)
			if left.Kind == value.KindLong && right.Kind == value.KindLong {
				if right.Long == 0 {
					return nil, runtimeErrorf("division by zero")
				}
				vm.push(f, value.Long(left.Long/right.Long))
				break
			}
			result, err := arith(left, right, "divide", func(a, b int64) int64 { return a / b }, func(a, b float64) float64 { return a / b })
			if err != nil {
				return nil, err
			}
			vm.push(f, result)

		case bytecode.OpNot:
			v := vm.pop(f)
			vm.push(f, value.Bool(v.IsFalse()))

		case bytecode.OpCmpEq:
			right, left := vm.pop(f), vm.pop(f)
			vm.push(f, value.Bool(value.Equal(left, right)))

		case bytecode.OpCmpBangEq:
			right, left := vm.pop(f), vm.pop(f)
			vm.push(f, value.Bool(!value.Equal(left, right)))

		case bytecode.OpCmpGt:
			right, left := vm.pop(f), vm.pop(f)
			result, err := compare(left, right, "compare")
			if err != nil {
				return nil, err
			}
			vm.push(f, value.Bool(result > 0))

		case bytecode.OpCmpLt:
			right, left := vm.pop(f), vm.pop(f)
			result, err := compare(left, right, "compare")
			if err != nil {
				return nil, err
			}
			vm.push(f, value.Bool(result < 0))

		case bytecode.OpCmpGtEq:
			right, left := vm.pop(f), vm.pop(f)
			result, err := compare(left, right, "compare")
			if err != nil {
				return nil, err
			}
			vm.push(f, value.Bool(result >= 0))

		case bytecode.OpCmpLtEq:
			right, left := vm.pop(f), vm.pop(f)
			result, err := compare(left, right, "compare")
			if err != nil {
				return nil, err
			}
			vm.push(f, value.Bool(result <= 0))

		case bytecode.OpIf:
			target, err := r.NextU16()
			if err != nil {
				return nil, err
			}
			if vm.pop(f).IsTrue() {
				if err := r.SetOffset(int(target)); err != nil {
					return nil, err
				}
			}

		case bytecode.OpIfNot:
			target, err := r.NextU16()
			if err != nil {
				return nil, err
			}
			if vm.pop(f).IsFalse() {
				if err := r.SetOffset(int(target)); err != nil {
					return nil, err
				}
			}

		case bytecode.OpGoto:
			target, err := r.NextU16()
			if err != nil {
				return nil, err
			}
			if err := r.SetOffset(int(target)); err != nil {
				return nil, err
			}

		case bytecode.OpInvoke:
			nargs, err := r.NextU8()
			if err != nil {
				return nil, err
			}
			f.PC = r.Offset()
			next, err := vm.invoke(f, int(nargs))
			if err != nil {
				return nil, err
			}
			if next != nil {
				return next, nil
			}

		case bytecode.OpReturn:
			result := vm.pop(f)
			vm.stack.Write(f.SB-1, result)
			return nil, nil

		case bytecode.OpPop:
			vm.pop(f)

		case bytecode.OpSetGlobal:
			idx, err := r.NextU16()
			if err != nil {
				return nil, err
			}
			name, err := vm.stringConstant(idx)
			if err != nil {
				return nil, err
			}
			vm.globals[name] = vm.pop(f)

		case bytecode.OpGetGlobal:
			idx, err := r.NextU16()
			if err != nil {
				return nil, err
			}
			name, err := vm.stringConstant(idx)
			if err != nil {
				return nil, err
			}
			v, ok := vm.globals[name]
			if !ok {
				return nil, runtimeErrorf("undefined global: %s", name)
			}
			vm.push(f, v)

		case bytecode.OpSetLocal:
			slot, err := r.NextU8()
			if err != nil {
				return nil, err
			}
			vm.stack.Write(f.SB+int(slot), vm.pop(f))

		case bytecode.OpGetLocal:
			slot, err := r.NextU8()
			if err != nil {
				return nil, err
			}
			vm.push(f, vm.stack.Read(f.SB+int(slot)))

		case bytecode.OpSetField:
			idx, err := r.NextU16()
			if err != nil {
				return nil, err
			}
			name, err := vm.stringConstant(idx)
			if err != nil {
				return nil, err
			}
			val := vm.pop(f)
			owner := vm.pop(f)
			if owner.Kind != value.KindInstance {
				return nil, runtimeErrorf("cannot set field %q on a %s", name, value.TypeName(owner))
			}
			owner.Instance.Fields[name] = val

		case bytecode.OpGetMember:
			idx, err := r.NextU16()
			if err != nil {
				return nil, err
			}
			name, err := vm.stringConstant(idx)
			if err != nil {
				return nil, err
			}
			owner := vm.pop(f)
			if owner.Kind != value.KindInstance {
				return nil, runtimeErrorf("cannot read member %q of a %s", name, value.TypeName(owner))
			}
			if fv, ok := owner.Instance.Fields[name]; ok {
				vm.push(f, fv)
				break
			}
			if m, ok := owner.Instance.Class.Methods[name]; ok {
				vm.push(f, value.Method(owner.Instance, m))
				break
			}
			return nil, runtimeErrorf("%s has no member %q", value.Stringify(owner), name)

		case bytecode.OpDup:
			vm.push(f, vm.peek(f))

		default:
			return nil, runtimeErrorf("unknown opcode 0x%x", opByte)
		}

		f.PC = r.Offset()
	}
}

// invoke implements OP_INVOKE's dispatch on the owner value found at
// sp-nargs-1: class instantiation, a plain function call, a bound method
// call, or a host foreign-function call.
func (vm *VM) invoke(f *Frame, nargs int) (*Frame, error) {
	sp := f.SP
	ownerIdx := sp - nargs - 1
	owner := vm.stack.Read(ownerIdx)

	switch owner.Kind {
	case value.KindClass:
		if nargs != 0 {
			return nil, runtimeErrorf("class %s takes no constructor arguments", owner.Class.Name)
		}
		vm.stack.Write(ownerIdx, value.NewInstance(owner.Class))
		f.SP = ownerIdx + 1
		return nil, nil

	case value.KindFunction:
		fn := owner.Function
		if int(fn.Params) != nargs {
			return nil, runtimeErrorf("function %s expects %d argument(s), got %d", fn.Name, fn.Params, nargs)
		}
		f.SP = ownerIdx
		return &Frame{Kind: FrameFunction, Name: fn.Name, Code: fn.Code, SB: sp - nargs, SP: sp - nargs + int(fn.MaxLocals)}, nil

	case value.KindMethod:
		bm := owner.Method
		m := bm.Method
		if int(m.Params) != nargs {
			return nil, runtimeErrorf("method %s.%s expects %d argument(s), got %d", m.ClassName, m.Name, m.Params, nargs)
		}
		vm.stack.Write(sp, value.Value{Kind: value.KindInstance, Instance: bm.Instance})
		f.SP = ownerIdx
		return &Frame{Kind: FrameMethod, Name: m.Name, ClassName: m.ClassName, Code: m.Code, SB: sp - nargs, SP: sp - nargs + int(m.MaxLocals)}, nil

	case value.KindForeignFunction:
		ff := owner.Foreign
		if ff.Params != nargs {
			return nil, runtimeErrorf("foreign function %s expects %d argument(s), got %d", ff.Name, ff.Params, nargs)
		}
		args := make([]value.Value, nargs)
		for i := 0; i < nargs; i++ {
			args[i] = vm.stack.Read(sp - nargs + i)
		}
		result, err := ff.Handler(args)
		if err != nil {
			return nil, runtimeErrorf("%s", err)
		}
		vm.stack.Write(ownerIdx, result)
		f.SP = ownerIdx + 1
		return nil, nil

	default:
		return nil, runtimeErrorf("cannot invoke a %s", value.TypeName(owner))
	}
}

func (vm *VM) constant(idx uint16) (bytecode.Constant, error) {
	if int(idx) >= len(vm.program.Constants) {
		return bytecode.Constant{}, runtimeErrorf("constant index %d out of range", idx)
	}
	return vm.program.Constants[idx], nil
}

func (vm *VM) stringConstant(idx uint16) (string, error) {
	c, err := vm.constant(idx)
	if err != nil {
		return "", err
	}
	if c.Tag != bytecode.ConstantString {
		return "", runtimeErrorf("constant index %d is not a string", idx)
	}
	return c.Str, nil
}

// add implements OP_ADD: numeric addition, with type promotion to double
// on any double operand, or string concatenation when the left operand is
// a string (every other value stringifies onto it the same way print
// does).
func add(left, right value.Value) (value.Value, error) {
	if left.Kind == value.KindString {
		return value.String(left.Str + value.Stringify(right)), nil
	}
	return arith(left, right, "add", func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
}

func arith(left, right value.Value, verb string, longOp func(a, b int64) int64, doubleOp func(a, b float64) float64) (value.Value, error) {
	if left.Kind == value.KindLong && right.Kind == value.KindLong {
		return value.Long(longOp(left.Long, right.Long)), nil
	}
	lf, lok := numericFloat(left)
	rf, rok := numericFloat(right)
	if lok && rok {
		return value.Double(doubleOp(lf, rf)), nil
	}
	return value.Value{}, runtimeErrorf("cannot %s %s and %s", verb, value.TypeName(left), value.TypeName(right))
}

func compare(left, right value.Value, verb string) (int, error) {
	if left.Kind == value.KindString && right.Kind == value.KindString {
		return strings.Compare(left.Str, right.Str), nil
	}
	if left.Kind == value.KindLong && right.Kind == value.KindLong {
		switch {
		case left.Long < right.Long:
			return -1, nil
		case left.Long > right.Long:
			return 1, nil
		default:
			return 0, nil
		}
	}
	lf, lok := numericFloat(left)
	rf, rok := numericFloat(right)
	if lok && rok {
		switch {
		case lf < rf:
			return -1, nil
		case lf > rf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, runtimeErrorf("cannot %s %s and %s", verb, value.TypeName(left), value.TypeName(right))
}

func numericFloat(v value.Value) (float64, bool) {
	switch v.Kind {
	case value.KindLong:
		return float64(v.Long), true
	case value.KindDouble:
		return v.Double, true
	default:
		return 0, false
	}
}
