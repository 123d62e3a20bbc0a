package parser

import (
	"testing"

	"github.com/0x264/charon/pkg/ast"
	"github.com/0x264/charon/pkg/lexer"
	"github.com/stretchr/testify/require"
)

func parseExpr(t *testing.T, source string) ast.Expr {
	t.Helper()
	body := entryBody(t, source+";")
	return body[0].(ast.ExprStmt).Expr
}

func TestPrecedenceMultiplyBeforeAdd(t *testing.T) {
	e := parseExpr(t, "1 + 2 * 3")
	bin := e.(ast.Binary)
	require.Equal(t, ast.Add, bin.Op)
	require.Equal(t, ast.Long{Value: 1}, bin.Left)

	right := bin.Right.(ast.Binary)
	require.Equal(t, ast.Multiply, right.Op)
}

func TestPrecedenceAdditiveIsLeftAssociative(t *testing.T) {
	e := parseExpr(t, "1 - 2 - 3")
	outer := e.(ast.Binary)
	require.Equal(t, ast.Sub, outer.Op)
	inner := outer.Left.(ast.Binary)
	require.Equal(t, ast.Sub, inner.Op)
	require.Equal(t, ast.Long{Value: 1}, inner.Left)
	require.Equal(t, ast.Long{Value: 2}, inner.Right)
	require.Equal(t, ast.Long{Value: 3}, outer.Right)
}

func TestPrecedenceCompareBeforeEquality(t *testing.T) {
	e := parseExpr(t, "1 < 2 == true")
	eq := e.(ast.Binary)
	require.Equal(t, ast.EqEq, eq.Op)
	cmp := eq.Left.(ast.Binary)
	require.Equal(t, ast.Lt, cmp.Op)
}

func TestPrecedenceAndBeforeOr(t *testing.T) {
	e := parseExpr(t, "true || false && false")
	or := e.(ast.Logic)
	require.Equal(t, ast.Or, or.Op)
	and := or.Right.(ast.Logic)
	require.Equal(t, ast.And, and.Op)
}

func TestPrecedenceUnaryBeforeCall(t *testing.T) {
	e := parseExpr(t, "-a.b()")
	neg := e.(ast.Unary)
	require.Equal(t, ast.Neg, neg.Op)
	call := neg.Expr.(ast.Call)
	getter := call.Owner.(ast.Getter)
	require.Equal(t, "b", getter.Member)
}

func TestPrecedenceParensOverridePrecedence(t *testing.T) {
	e := parseExpr(t, "(1 + 2) * 3")
	mul := e.(ast.Binary)
	require.Equal(t, ast.Multiply, mul.Op)
	add := mul.Left.(ast.Binary)
	require.Equal(t, ast.Add, add.Op)
}

func TestPrecedenceRelationalIsNonAssociative(t *testing.T) {
	e := parseExpr(t, "1 < 2")
	bin := e.(ast.Binary)
	require.Equal(t, ast.Lt, bin.Op)
	require.Equal(t, ast.Long{Value: 1}, bin.Left)
	require.Equal(t, ast.Long{Value: 2}, bin.Right)

	// a second relational operator cannot extend the chain
	tokens, err := lexer.New([]byte("1 < 2 < 3;")).Lex()
	require.NoError(t, err)
	_, err = New(tokens).Parse()
	require.Error(t, err)
}

func TestPrecedenceDoubleUnary(t *testing.T) {
	e := parseExpr(t, "!!true")
	outer := e.(ast.Unary)
	require.Equal(t, ast.Bang, outer.Op)
	inner := outer.Expr.(ast.Unary)
	require.Equal(t, ast.Bang, inner.Op)
	require.Equal(t, ast.True{}, inner.Expr)
}
