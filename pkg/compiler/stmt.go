package compiler

import (
	"fmt"

	"github.com/0x264/charon/pkg/ast"
	"github.com/0x264/charon/pkg/bytecode"
)

func (g *gen) stmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case ast.VarDef:
		if s.Init != nil {
			if err := g.expr(s.Init); err != nil {
				return err
			}
		} else {
			g.emit(bytecode.OpConstNull)
		}
		slot := g.ctx.defineVar(s.Name)
		g.emit(bytecode.OpSetLocal)
		g.emitU8(slot)
		return nil

	case ast.ExprStmt:
		if isPure(s.Expr) {
			return nil
		}
		if err := g.expr(s.Expr); err != nil {
			return err
		}
		g.emit(bytecode.OpPop)
		return nil

	case ast.SetVar:
		return g.genSetVar(s)

	case ast.Setter:
		return g.genSetter(s)

	case ast.If:
		return g.genIf(s)

	case ast.While:
		return g.genWhile(s)

	case ast.Break:
		loop := g.ctx.currentLoop()
		if loop == nil {
			return fmt.Errorf("break outside of a loop")
		}
		g.emit(bytecode.OpGoto)
		loop.breakPatches = append(loop.breakPatches, g.emitU16Hole())
		return nil

	case ast.Continue:
		loop := g.ctx.currentLoop()
		if loop == nil {
			return fmt.Errorf("continue outside of a loop")
		}
		g.emit(bytecode.OpGoto)
		g.emitU16(uint16(loop.startPos))
		return nil

	case ast.Return:
		if g.ctx.kind == callableNone {
			return fmt.Errorf("return is illegal at the top level")
		}
		if s.Value != nil {
			if err := g.expr(s.Value); err != nil {
				return err
			}
		} else {
			g.emit(bytecode.OpConstNull)
		}
		g.emit(bytecode.OpReturn)
		return nil

	case ast.Block:
		for _, st := range s.Stmts {
			if err := g.stmt(st); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown statement type %T", stmt)
	}
}

// isPure reports whether an expression used as a bare statement has no
// observable effect and can be dropped instead of evaluated-then-popped.
func isPure(e ast.Expr) bool {
	switch e.(type) {
	case ast.True, ast.False, ast.Null, ast.This, ast.Long, ast.Double, ast.String:
		return true
	default:
		return false
	}
}

func (g *gen) genSetVar(s ast.SetVar) error {
	return g.genAssignTarget(s.To, s.Op, s.Value)
}

func (g *gen) genAssignTarget(name string, op ast.AssignOp, value ast.Expr) error {
	slot, isLocal := g.ctx.getVar(name)

	if op != ast.Assign {
		if isLocal {
			g.emit(bytecode.OpGetLocal)
			g.emitU8(slot)
		} else {
			g.emit(bytecode.OpGetGlobal)
			g.emitU16(g.pool.constString(name))
		}
	}

	if err := g.expr(value); err != nil {
		return err
	}

	if op != ast.Assign {
		g.emit(opcodeForCompoundOp(op))
	}

	if isLocal {
		g.emit(bytecode.OpSetLocal)
		g.emitU8(slot)
	} else {
		g.emit(bytecode.OpSetGlobal)
		g.emitU16(g.pool.constString(name))
	}
	return nil
}

func opcodeForCompoundOp(op ast.AssignOp) bytecode.Op {
	switch op {
	case ast.AddAssign:
		return bytecode.OpAdd
	case ast.SubAssign:
		return bytecode.OpSub
	case ast.MultiplyAssign:
		return bytecode.OpMul
	case ast.DivideAssign:
		return bytecode.OpDiv
	default:
		return bytecode.OpAdd
	}
}

func (g *gen) genSetter(s ast.Setter) error {
	if err := g.expr(s.Owner); err != nil {
		return err
	}

	if s.Op != ast.Assign {
		g.emit(bytecode.OpDup)
		g.emit(bytecode.OpGetMember)
		g.emitU16(g.pool.constString(s.Field))
		if err := g.expr(s.Value); err != nil {
			return err
		}
		g.emit(opcodeForCompoundOp(s.Op))
	} else {
		if err := g.expr(s.Value); err != nil {
			return err
		}
	}

	g.emit(bytecode.OpSetField)
	g.emitU16(g.pool.constString(s.Field))
	return nil
}

func (g *gen) genIf(s ast.If) error {
	if err := g.expr(s.Cond); err != nil {
		return err
	}
	g.emit(bytecode.OpIfNot)
	elseHole := g.emitU16Hole()

	for _, st := range s.Then {
		if err := g.stmt(st); err != nil {
			return err
		}
	}

	if len(s.Else) == 0 {
		g.patch(elseHole, uint16(g.pos()))
		return nil
	}

	g.emit(bytecode.OpGoto)
	endHole := g.emitU16Hole()
	g.patch(elseHole, uint16(g.pos()))

	for _, st := range s.Else {
		if err := g.stmt(st); err != nil {
			return err
		}
	}
	g.patch(endHole, uint16(g.pos()))
	return nil
}

func (g *gen) genWhile(s ast.While) error {
	startPos := g.pos()
	loop := g.ctx.pushLoop(startPos)
	defer g.ctx.popLoop()

	if err := g.expr(s.Cond); err != nil {
		return err
	}
	g.emit(bytecode.OpIfNot)
	exitHole := g.emitU16Hole()

	for _, st := range s.Body {
		if err := g.stmt(st); err != nil {
			return err
		}
	}

	g.emit(bytecode.OpGoto)
	g.emitU16(uint16(startPos))

	exitPos := uint16(g.pos())
	g.patch(exitHole, exitPos)
	for _, p := range loop.breakPatches {
		g.patch(p, exitPos)
	}
	return nil
}
