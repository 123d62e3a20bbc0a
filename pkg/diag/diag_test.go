package diag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineColumnFirstLine(t *testing.T) {
	info := NewLineColumnInfo([]byte("abc"))
	line, col := info.LineColumn(0)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = info.LineColumn(2)
	require.Equal(t, 1, line)
	require.Equal(t, 3, col)
}

func TestLineColumnSecondLine(t *testing.T) {
	info := NewLineColumnInfo([]byte("var x = 1;\nvar y = @;"))
	line, col := info.LineColumn(19) // the '@'
	require.Equal(t, 2, line)
	require.Equal(t, 9, col)
}

func TestLineColumnAtNewline(t *testing.T) {
	info := NewLineColumnInfo([]byte("ab\ncd"))
	line, col := info.LineColumn(2) // the '\n' itself
	require.Equal(t, 1, line)
	require.Equal(t, 3, col)

	line, col = info.LineColumn(3) // 'c'
	require.Equal(t, 2, line)
	require.Equal(t, 1, col)
}

func TestLineColumnNoNewlines(t *testing.T) {
	info := NewLineColumnInfo([]byte("no newlines here"))
	line, col := info.LineColumn(5)
	require.Equal(t, 1, line)
	require.Equal(t, 6, col)
}
