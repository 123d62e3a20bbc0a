// Package disasm renders a loaded bytecode.Program back into a readable
// textual listing: one line per instruction, jump targets resolved to
// instruction indices rather than raw byte offsets.
package disasm

import (
	"fmt"
	"io"
	"sort"

	"github.com/0x264/charon/pkg/bytecode"
	"github.com/0x264/charon/pkg/reader"
)

// Disassemble writes a full textual listing of prog to w: version header,
// every class and its methods, then every top-level function.
func Disassemble(w io.Writer, prog *bytecode.Program) error {
	fmt.Fprintf(w, "version: %d.%d\n\n", prog.VersionMajor, prog.VersionMinor)

	fmt.Fprintf(w, "class count: %d\n\n", len(prog.Classes))
	for _, name := range sortedKeys(prog.Classes) {
		if err := disassembleClass(w, prog.Classes[name], prog.Constants); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "function count: %d\n\n", len(prog.Functions))
	for _, name := range sortedKeys(prog.Functions) {
		fn := prog.Functions[name]
		fmt.Fprintf(w, "function name: %s, param count: %d\n", fn.Name, fn.Params)
		if err := disassembleCode(w, fn.Code, prog.Constants, false); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func disassembleClass(w io.Writer, class *bytecode.Class, cp []bytecode.Constant) error {
	fmt.Fprintf(w, "class name: %s, method count: %d\n", class.Name, len(class.Methods))
	for _, name := range sortedKeys(class.Methods) {
		m := class.Methods[name]
		fmt.Fprintf(w, "    method name: %s, param count: %d\n", m.Name, m.Params)
		if err := disassembleCode(w, m.Code, cp, true); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

type inst struct {
	text   string
	isJump bool
	target uint16
}

// disassembleCode decodes one function/method body into instructions,
// recording each instruction's starting byte offset so that jump operands
// (raw byte offsets) can be resolved back to instruction indices in the
// printed listing.
func disassembleCode(w io.Writer, code []byte, cp []bytecode.Constant, indent bool) error {
	r := reader.New(code)
	var insts []inst
	var lineByteOff []uint16

	for {
		startOff := uint16(r.Offset())
		opByte, err := r.NextU8()
		if err != nil {
			break
		}
		lineByteOff = append(lineByteOff, startOff)

		op := bytecode.Op(opByte)
		it, err := disassembleOne(r, op, cp)
		if err != nil {
			return err
		}
		insts = append(insts, it)
	}

	prefix := ""
	if indent {
		prefix = "    "
	}
	for idx, it := range insts {
		fmt.Fprintf(w, "%s%4d:  %s", prefix, idx, it.text)
		if it.isJump {
			line, ok := lineForByteOff(lineByteOff, it.target)
			if !ok {
				return fmt.Errorf("jump byte offset %d has no matching instruction in %q", it.target, it.text)
			}
			fmt.Fprintf(w, "    // jump to: %d", line)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func lineForByteOff(lineByteOff []uint16, off uint16) (int, bool) {
	for line, byteOff := range lineByteOff {
		if byteOff == off {
			return line, true
		}
	}
	return 0, false
}

func disassembleOne(r *reader.Reader, op bytecode.Op, cp []bytecode.Constant) (inst, error) {
	switch op {
	case bytecode.OpConstNull, bytecode.OpConstTrue, bytecode.OpConstFalse,
		bytecode.OpLConstM1, bytecode.OpLConst0, bytecode.OpLConst1, bytecode.OpLConst2,
		bytecode.OpLConst3, bytecode.OpLConst4, bytecode.OpLConst5,
		bytecode.OpNeg, bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
		bytecode.OpNot, bytecode.OpCmpEq, bytecode.OpCmpBangEq, bytecode.OpCmpGt,
		bytecode.OpCmpLt, bytecode.OpCmpGtEq, bytecode.OpCmpLtEq,
		bytecode.OpReturn, bytecode.OpPop, bytecode.OpDup:
		return inst{text: op.String()}, nil

	case bytecode.OpLdc:
		idx, err := r.NextU16()
		if err != nil {
			return inst{}, err
		}
		if int(idx) >= len(cp) {
			return inst{}, fmt.Errorf("LDC argument %d not found in constant pool", idx)
		}
		c := cp[idx]
		var rendered string
		switch c.Tag {
		case bytecode.ConstantLong:
			rendered = fmt.Sprintf("Long: %d", c.Long)
		case bytecode.ConstantDouble:
			rendered = fmt.Sprintf("Double: %v", c.Double)
		case bytecode.ConstantString:
			rendered = fmt.Sprintf("String: %s", c.Str)
		}
		return inst{text: fmt.Sprintf("LDC %d    // %s", idx, rendered)}, nil

	case bytecode.OpIf, bytecode.OpIfNot, bytecode.OpGoto:
		target, err := r.NextU16()
		if err != nil {
			return inst{}, err
		}
		return inst{text: fmt.Sprintf("%s  %d", op, target), isJump: true, target: target}, nil

	case bytecode.OpInvoke:
		argc, err := r.NextU8()
		if err != nil {
			return inst{}, err
		}
		return inst{text: fmt.Sprintf("INVOKE  // param count: %d", argc)}, nil

	case bytecode.OpSetGlobal, bytecode.OpGetGlobal, bytecode.OpSetField, bytecode.OpGetMember:
		idx, err := r.NextU16()
		if err != nil {
			return inst{}, err
		}
		name, err := stringConstant(cp, idx)
		if err != nil {
			return inst{}, fmt.Errorf("%s: %w", op, err)
		}
		return inst{text: fmt.Sprintf("%s  %d    // %s", op, idx, name)}, nil

	case bytecode.OpSetLocal, bytecode.OpGetLocal:
		slot, err := r.NextU8()
		if err != nil {
			return inst{}, err
		}
		return inst{text: fmt.Sprintf("%s  %d", op, slot)}, nil

	default:
		return inst{}, fmt.Errorf("unknown opcode: %d", op)
	}
}

func stringConstant(cp []bytecode.Constant, idx uint16) (string, error) {
	if int(idx) >= len(cp) {
		return "", fmt.Errorf("constant %d not found", idx)
	}
	c := cp[idx]
	if c.Tag != bytecode.ConstantString {
		return "", fmt.Errorf("constant %d is not a string", idx)
	}
	return c.Str, nil
}
