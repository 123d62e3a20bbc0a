// Package compiler lowers a Charon AST into the bytecode container format:
// constant pool plus per-function/per-method code, ready for the loader
// and VM or for writing straight to a .charonbc file.
package compiler

import (
	"fmt"

	"github.com/0x264/charon/pkg/ast"
	"github.com/0x264/charon/pkg/bytecode"
)

// Generate compiles an entire program: every class's methods, every
// top-level function, and the synthetic entry function wrapping bare
// top-level statements.
func Generate(program *ast.Program) ([]byte, error) {
	pool := newConstantPool()

	var classBuf []byte
	seenClasses := make(map[string]bool, len(program.Classes))
	for _, c := range program.Classes {
		if seenClasses[c.Name] {
			return nil, fmt.Errorf("duplicate class %q", c.Name)
		}
		seenClasses[c.Name] = true

		b, err := genClass(pool, &c)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", c.Name, err)
		}
		classBuf = append(classBuf, b...)
	}

	var funcBuf []byte
	for _, fn := range program.Funcs {
		callable := callableFunc
		if fn.Name == ast.EntryName {
			callable = callableNone
		}
		b, err := genFunc(pool, &fn, callable)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Name, err)
		}
		funcBuf = append(funcBuf, b...)
	}

	var out []byte
	out = append(out, bytecode.Magic...)
	out = append(out, bytecode.CurrentVersionMinor, bytecode.CurrentVersionMajor)
	out = appendU16(out, uint16(len(pool.constants)))
	out = append(out, pool.code...)
	out = appendU16(out, uint16(len(program.Classes)))
	out = append(out, classBuf...)
	out = appendU16(out, uint16(len(program.Funcs)))
	out = append(out, funcBuf...)
	return out, nil
}

func genClass(pool *constantPool, c *ast.ClassDecl) ([]byte, error) {
	var out []byte
	out = appendU16(out, pool.constString(c.Name))
	out = appendU16(out, uint16(len(c.Methods)))

	seen := make(map[string]bool, len(c.Methods))
	for _, m := range c.Methods {
		if seen[m.Name] {
			return nil, fmt.Errorf("duplicate method %q", m.Name)
		}
		seen[m.Name] = true

		b, err := genFunc(pool, &m, callableMethod)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Name, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

type callable int

const (
	callableNone callable = iota
	callableFunc
	callableMethod
)

func genFunc(pool *constantPool, fn *ast.FuncDecl, kind callable) ([]byte, error) {
	g := &gen{pool: pool, ctx: newContext(kind)}

	for _, p := range fn.Params {
		g.ctx.defineVar(p)
	}
	if kind == callableMethod {
		g.ctx.defineVar("this")
	}

	for _, stmt := range fn.Body {
		if err := g.stmt(stmt); err != nil {
			return nil, err
		}
	}
	g.emit(bytecode.OpConstNull)
	g.emit(bytecode.OpReturn)

	var out []byte
	out = appendU16(out, pool.constString(fn.Name))
	out = append(out, uint8(len(fn.Params)))
	out = append(out, g.ctx.count)
	out = appendU16(out, uint16(len(g.code)))
	out = append(out, g.code...)
	return out, nil
}

// gen accumulates one function or method's bytecode imperatively: every
// emit appends to the same growing buffer, so a patch position recorded at
// emission time (g.pos()) stays valid once the whole function is done —
// exactly the single-mutable-buffer shape jumps and patches need.
type gen struct {
	pool *constantPool
	ctx  *context
	code []byte
}

func (g *gen) pos() int { return len(g.code) }

func (g *gen) emit(op bytecode.Op) { g.code = append(g.code, byte(op)) }

func (g *gen) emitU8(b uint8) { g.code = append(g.code, b) }

// emitU16Hole appends a placeholder 2-byte jump target and returns its
// position for a later patch call.
func (g *gen) emitU16Hole() int {
	pos := g.pos()
	g.code = appendU16(g.code, 0)
	return pos
}

func (g *gen) emitU16(v uint16) { g.code = appendU16(g.code, v) }

func (g *gen) patch(at int, value uint16) { patch(g.code, at, value) }

func appendU16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

// patch rewrites the little-endian 2-byte jump hole at position `at` in
// code to hold `value` — used to back-patch forward jumps once their
// target is known.
func patch(code []byte, at int, value uint16) {
	code[at] = byte(value)
	code[at+1] = byte(value >> 8)
}
