// Package charon wires the lexer, parser, and code generator into the
// single "compile this source" entry point both the compiler and runner
// CLIs share.
package charon

import (
	"errors"
	"fmt"

	"github.com/0x264/charon/pkg/bytecode"
	"github.com/0x264/charon/pkg/compiler"
	"github.com/0x264/charon/pkg/diag"
	"github.com/0x264/charon/pkg/lexer"
	"github.com/0x264/charon/pkg/parser"
)

// CompileSource lexes, parses, and generates source into a serialized
// bytecode container.
func CompileSource(source []byte) ([]byte, error) {
	tokens, err := lexer.New(source).Lex()
	if err != nil {
		return nil, fmt.Errorf("lex error: %w", err)
	}

	program, err := parser.New(tokens).Parse()
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	code, err := compiler.Generate(program)
	if err != nil {
		return nil, fmt.Errorf("codegen error: %w", err)
	}
	return code, nil
}

// IsBytecode reports whether data starts with the container magic, used to
// pick between loading pre-compiled bytecode and compiling source in memory.
func IsBytecode(data []byte) bool {
	return len(data) >= len(bytecode.Magic) && string(data[:len(bytecode.Magic)]) == bytecode.Magic
}

// FormatError renders a compile error for the terminal. Lexical and
// syntactic errors carry a byte offset into source, which gets resolved to a
// 1-based line:column prefix; every other error is printed as-is.
func FormatError(source []byte, err error) string {
	var lexErr *lexer.Error
	if errors.As(err, &lexErr) {
		line, col := diag.NewLineColumnInfo(source).LineColumn(lexErr.Offset)
		return fmt.Sprintf("%d:%d: %s", line, col, lexErr.Msg)
	}

	var parseErr *parser.Error
	if errors.As(err, &parseErr) {
		line, col := diag.NewLineColumnInfo(source).LineColumn(parseErr.Offset)
		return fmt.Sprintf("%d:%d: %s", line, col, parseErr.Msg)
	}

	return err.Error()
}
