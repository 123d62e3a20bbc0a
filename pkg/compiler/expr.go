package compiler

import (
	"fmt"

	"github.com/0x264/charon/pkg/ast"
	"github.com/0x264/charon/pkg/bytecode"
)

func (g *gen) expr(e ast.Expr) error {
	switch ex := e.(type) {
	case ast.True:
		g.emit(bytecode.OpConstTrue)
	case ast.False:
		g.emit(bytecode.OpConstFalse)
	case ast.Null:
		g.emit(bytecode.OpConstNull)

	case ast.This:
		slot, ok := g.ctx.getVar("this")
		if !ok {
			return fmt.Errorf("this is illegal outside of a method")
		}
		g.emit(bytecode.OpGetLocal)
		g.emitU8(slot)

	case ast.Long:
		switch ex.Value {
		case -1:
			g.emit(bytecode.OpLConstM1)
		case 0:
			g.emit(bytecode.OpLConst0)
		case 1:
			g.emit(bytecode.OpLConst1)
		case 2:
			g.emit(bytecode.OpLConst2)
		case 3:
			g.emit(bytecode.OpLConst3)
		case 4:
			g.emit(bytecode.OpLConst4)
		case 5:
			g.emit(bytecode.OpLConst5)
		default:
			g.emit(bytecode.OpLdc)
			g.emitU16(g.pool.constLong(ex.Value))
		}

	case ast.Double:
		g.emit(bytecode.OpLdc)
		g.emitU16(g.pool.constDouble(ex.Value))

	case ast.String:
		g.emit(bytecode.OpLdc)
		g.emitU16(g.pool.constString(ex.Value))

	case ast.Binary:
		if err := g.expr(ex.Left); err != nil {
			return err
		}
		if err := g.expr(ex.Right); err != nil {
			return err
		}
		g.emit(binaryOpcode(ex.Op))

	case ast.Logic:
		return g.genLogic(ex)

	case ast.Unary:
		if err := g.expr(ex.Expr); err != nil {
			return err
		}
		switch ex.Op {
		case ast.Bang:
			g.emit(bytecode.OpNot)
		case ast.Neg:
			g.emit(bytecode.OpNeg)
		}

	case ast.Call:
		if err := g.expr(ex.Owner); err != nil {
			return err
		}
		for _, a := range ex.Args {
			if err := g.expr(a); err != nil {
				return err
			}
		}
		g.emit(bytecode.OpInvoke)
		g.emitU8(uint8(len(ex.Args)))

	case ast.GetVar:
		if slot, ok := g.ctx.getVar(ex.Name); ok {
			g.emit(bytecode.OpGetLocal)
			g.emitU8(slot)
		} else {
			g.emit(bytecode.OpGetGlobal)
			g.emitU16(g.pool.constString(ex.Name))
		}

	case ast.Getter:
		if err := g.expr(ex.Owner); err != nil {
			return err
		}
		g.emit(bytecode.OpGetMember)
		g.emitU16(g.pool.constString(ex.Member))

	default:
		return fmt.Errorf("unknown expression type %T", e)
	}
	return nil
}

func binaryOpcode(op ast.BinaryOp) bytecode.Op {
	switch op {
	case ast.Add:
		return bytecode.OpAdd
	case ast.Sub:
		return bytecode.OpSub
	case ast.Multiply:
		return bytecode.OpMul
	case ast.Divide:
		return bytecode.OpDiv
	case ast.Gt:
		return bytecode.OpCmpGt
	case ast.Lt:
		return bytecode.OpCmpLt
	case ast.EqEq:
		return bytecode.OpCmpEq
	case ast.GtEq:
		return bytecode.OpCmpGtEq
	case ast.LtEq:
		return bytecode.OpCmpLtEq
	case ast.BangEq:
		return bytecode.OpCmpBangEq
	default:
		return bytecode.OpCmpEq
	}
}

// genLogic lowers short-circuit && and ||. Both operands are evaluated
// left to right with no operand ever left on the stack mid-evaluation;
// exactly one of CONST_TRUE/CONST_FALSE is pushed as the final result.
func (g *gen) genLogic(l ast.Logic) error {
	if err := g.expr(l.Left); err != nil {
		return err
	}

	var shortCircuitOp bytecode.Op
	if l.Op == ast.And {
		shortCircuitOp = bytecode.OpIfNot
	} else {
		shortCircuitOp = bytecode.OpIf
	}

	g.emit(shortCircuitOp)
	firstHole := g.emitU16Hole()

	if err := g.expr(l.Right); err != nil {
		return err
	}
	g.emit(shortCircuitOp)
	secondHole := g.emitU16Hole()

	// Both operands were truthy (And) / falsy (Or): push the "continue
	// evaluating" result.
	if l.Op == ast.And {
		g.emit(bytecode.OpConstTrue)
	} else {
		g.emit(bytecode.OpConstFalse)
	}
	g.emit(bytecode.OpGoto)
	endHole := g.emitU16Hole()

	shortCircuitPos := uint16(g.pos())
	g.patch(firstHole, shortCircuitPos)
	g.patch(secondHole, shortCircuitPos)
	if l.Op == ast.And {
		g.emit(bytecode.OpConstFalse)
	} else {
		g.emit(bytecode.OpConstTrue)
	}

	g.patch(endHole, uint16(g.pos()))
	return nil
}
