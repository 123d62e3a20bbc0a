package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexPunctuationAndOperators(t *testing.T) {
	tokens, err := New([]byte("( ) { } [ ] ; , . = == > >= < <= ! != && || + += - -= * *= / /=")).Lex()
	require.NoError(t, err)

	kinds := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		kinds[i] = tok.Kind
	}

	require.Equal(t, []TokenKind{
		LParen, RParen, LBrace, RBrace, LBracket, RBracket, Semi, Comma, Dot,
		Eq, EqEq, Gt, GtEq, Lt, LtEq, Bang, BangEq, AmpAmp, BarBar,
		Plus, PlusEq, Sub, SubEq, Star, StarEq, Slash, SlashEq,
	}, kinds)
}

func TestLexKeywords(t *testing.T) {
	tokens, err := New([]byte("var true false if else while break continue return func class this null")).Lex()
	require.NoError(t, err)

	want := []TokenKind{Var, True, False, If, Else, While, Break, Continue, Return, Func, Class, This, Null}
	require.Len(t, tokens, len(want))
	for i, k := range want {
		require.Equal(t, k, tokens[i].Kind)
	}
}

func TestLexIdentifier(t *testing.T) {
	tokens, err := New([]byte("fooBar_2")).Lex()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, Identifier, tokens[0].Kind)
	require.Equal(t, "fooBar_2", tokens[0].Ident)
}

func TestLexLongLiteral(t *testing.T) {
	tokens, err := New([]byte("42")).Lex()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, Long, tokens[0].Kind)
	require.Equal(t, int64(42), tokens[0].Long)
}

func TestLexDoubleLiteral(t *testing.T) {
	tokens, err := New([]byte("3.14")).Lex()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, Double, tokens[0].Kind)
	require.InDelta(t, 3.14, tokens[0].Double, 0.0001)
}

func TestLexStringLiteralWithEscapes(t *testing.T) {
	tokens, err := New([]byte(`"hello\nworld\t\"quoted\""`)).Lex()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, String, tokens[0].Kind)
	require.Equal(t, "hello\nworld\t\"quoted\"", tokens[0].Str)
}

func TestLexUnclosedStringIsError(t *testing.T) {
	_, err := New([]byte(`"unterminated`)).Lex()
	require.Error(t, err)
}

func TestLexSingleAmpIsError(t *testing.T) {
	_, err := New([]byte("&")).Lex()
	require.Error(t, err)
	require.Contains(t, err.Error(), "single &")
}

func TestLexSingleBarIsError(t *testing.T) {
	_, err := New([]byte("|")).Lex()
	require.Error(t, err)
	require.Contains(t, err.Error(), "single |")
}

func TestLexSkipsLineComment(t *testing.T) {
	tokens, err := New([]byte("1 // a comment\n2")).Lex()
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, int64(1), tokens[0].Long)
	require.Equal(t, int64(2), tokens[1].Long)
}

func TestLexUnsupportedCharIsError(t *testing.T) {
	_, err := New([]byte("@")).Lex()
	require.Error(t, err)
}

func TestLexRecordsOffsets(t *testing.T) {
	tokens, err := New([]byte("var x")).Lex()
	require.NoError(t, err)
	require.Equal(t, 0, tokens[0].Offset)
	require.Equal(t, 4, tokens[1].Offset)
}
