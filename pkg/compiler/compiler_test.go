package compiler

import (
	"testing"

	"github.com/0x264/charon/pkg/bytecode"
	"github.com/0x264/charon/pkg/lexer"
	"github.com/0x264/charon/pkg/parser"
	"github.com/0x264/charon/pkg/reader"
	"github.com/stretchr/testify/require"
)

func compileSource(t *testing.T, source string) *bytecode.Program {
	t.Helper()
	tokens, err := lexer.New([]byte(source)).Lex()
	require.NoError(t, err)
	program, err := parser.New(tokens).Parse()
	require.NoError(t, err)
	code, err := Generate(program)
	require.NoError(t, err)
	loaded, err := bytecode.NewLoader(code).Load()
	require.NoError(t, err)
	return loaded
}

func TestGenerateEntryFunctionExists(t *testing.T) {
	prog := compileSource(t, "var x = 1;")
	entry, ok := prog.Functions[bytecode.EntryName]
	require.True(t, ok)
	require.Equal(t, uint8(0), entry.Params)
	// one local slot for x
	require.Equal(t, uint8(1), entry.MaxLocals)
}

func TestGenerateEveryFunctionEndsInConstNullReturn(t *testing.T) {
	prog := compileSource(t, "var x = 1;")
	entry := prog.Functions[bytecode.EntryName]
	n := len(entry.Code)
	require.Equal(t, bytecode.OpReturn, bytecode.Op(entry.Code[n-1]))
	require.Equal(t, bytecode.OpConstNull, bytecode.Op(entry.Code[n-2]))
}

func TestGenerateSmallLongUsesDedicatedOpcode(t *testing.T) {
	// a bare literal statement is pure and elided, so the value must be
	// used (here, assigned) for its opcode to appear in the code.
	prog := compileSource(t, "var x = 1;")
	entry := prog.Functions[bytecode.EntryName]
	require.Equal(t, bytecode.OpLConst1, bytecode.Op(entry.Code[0]))
}

func TestGenerateLargeLongUsesConstantPool(t *testing.T) {
	prog := compileSource(t, "var x = 1000;")
	entry := prog.Functions[bytecode.EntryName]
	require.Equal(t, bytecode.OpLdc, bytecode.Op(entry.Code[0]))
	// 1000, then the entry function's name "$"
	require.Len(t, prog.Constants, 2)
	require.Equal(t, int64(1000), prog.Constants[0].Long)
}

func TestGenerateStringConstantsAreDeduplicated(t *testing.T) {
	prog := compileSource(t, `var x = "a"; var y = "a"; var z = "b";`)
	var strs []string
	for _, c := range prog.Constants {
		if c.Tag == bytecode.ConstantString {
			strs = append(strs, c.Str)
		}
	}
	// the entry function's name "$" is pooled after its body's literals
	require.Equal(t, []string{"a", "b", "$"}, strs)
}

func TestGenerateFunctionParamsAndLocals(t *testing.T) {
	prog := compileSource(t, `
		func add(a, b) {
			var c = a + b;
			return c;
		}
	`)
	fn, ok := prog.Functions["add"]
	require.True(t, ok)
	require.Equal(t, uint8(2), fn.Params)
	require.Equal(t, uint8(3), fn.MaxLocals) // a, b, c
}

func TestGenerateClassMethodGetsThisSlot(t *testing.T) {
	prog := compileSource(t, `
		class Point {
			func getX() {
				return this.x;
			}
		}
	`)
	class, ok := prog.Classes["Point"]
	require.True(t, ok)
	method, ok := class.Methods["getX"]
	require.True(t, ok)
	require.Equal(t, uint8(0), method.Params)
	require.Equal(t, uint8(1), method.MaxLocals) // this
}

func TestGenerateIfElseEmitsJumps(t *testing.T) {
	prog := compileSource(t, `
		if (true) {
			1;
		} else {
			2;
		}
	`)
	entry := prog.Functions[bytecode.EntryName]
	require.Contains(t, opcodeString(t, entry.Code), bytecode.OpIfNot.String())
	require.Contains(t, opcodeString(t, entry.Code), bytecode.OpGoto.String())
}

func TestGenerateWhileLoopsBackToStart(t *testing.T) {
	prog := compileSource(t, `
		while (true) {
			break;
		}
	`)
	entry := prog.Functions[bytecode.EntryName]
	require.Contains(t, opcodeString(t, entry.Code), bytecode.OpGoto.String())
}

func TestGenerateReturnAtTopLevelIsError(t *testing.T) {
	tokens, err := lexer.New([]byte("return 1;")).Lex()
	require.NoError(t, err)
	program, err := parser.New(tokens).Parse()
	require.NoError(t, err)
	_, err = Generate(program)
	require.Error(t, err)
}

func TestGenerateBreakOutsideLoopIsError(t *testing.T) {
	tokens, err := lexer.New([]byte("func f() { break; }")).Lex()
	require.NoError(t, err)
	program, err := parser.New(tokens).Parse()
	require.NoError(t, err)
	_, err = Generate(program)
	require.Error(t, err)
}

func TestGenerateRedeclaredLocalReusesSlot(t *testing.T) {
	prog := compileSource(t, `
		func f() {
			var x = 1;
			var x = 2;
			return x;
		}
	`)
	fn := prog.Functions["f"]
	require.Equal(t, uint8(1), fn.MaxLocals)
}

func TestGenerateDuplicateClassIsError(t *testing.T) {
	tokens, err := lexer.New([]byte(`
		class C { func m() { return 1; } }
		class C { func n() { return 2; } }
	`)).Lex()
	require.NoError(t, err)
	program, err := parser.New(tokens).Parse()
	require.NoError(t, err)
	_, err = Generate(program)
	require.Error(t, err)
}

func TestGenerateDuplicateMethodIsError(t *testing.T) {
	tokens, err := lexer.New([]byte(`
		class C {
			func m() { return 1; }
			func m() { return 2; }
		}
	`)).Lex()
	require.NoError(t, err)
	program, err := parser.New(tokens).Parse()
	require.NoError(t, err)
	_, err = Generate(program)
	require.Error(t, err)
}

// opcodeString decodes code into its opcode mnemonics, skipping operand
// bytes, so jump-opcode assertions can't false-positive on an operand byte
// that happens to equal some other opcode's numeric value.
func opcodeString(t *testing.T, code []byte) []string {
	t.Helper()
	r := reader.New(code)
	var mnemonics []string
	for {
		b, err := r.NextU8()
		if err != nil {
			break
		}
		op := bytecode.Op(b)
		mnemonics = append(mnemonics, op.String())
		switch op {
		case bytecode.OpLdc, bytecode.OpIf, bytecode.OpIfNot, bytecode.OpGoto,
			bytecode.OpSetGlobal, bytecode.OpGetGlobal, bytecode.OpSetField, bytecode.OpGetMember:
			_, err = r.NextU16()
		case bytecode.OpInvoke, bytecode.OpSetLocal, bytecode.OpGetLocal:
			_, err = r.NextU8()
		}
		require.NoError(t, err)
	}
	return mnemonics
}
