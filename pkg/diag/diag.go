// Package diag maps byte offsets to (line, column) pairs for diagnostics and
// prints fatal errors to the terminal the way the Charon toolchain's
// reference implementation does: in red when stderr is a terminal.
package diag

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// LineColumnInfo precomputes newline offsets so repeated offset lookups
// during error reporting don't rescan the source.
type LineColumnInfo struct {
	lineEndOffset []int
}

// NewLineColumnInfo scans source once, recording every newline's offset.
func NewLineColumnInfo(source []byte) *LineColumnInfo {
	info := &LineColumnInfo{}
	for off, ch := range source {
		if ch == '\n' {
			info.lineEndOffset = append(info.lineEndOffset, off)
		}
	}
	return info
}

// LineColumn resolves a byte offset to a 1-based (line, column) pair. An
// offset past the last recorded newline lands on the final line, same as any
// other offset within its bounds.
func (l *LineColumnInfo) LineColumn(off int) (line, column int) {
	lineStart := 0
	for i, end := range l.lineEndOffset {
		if off <= end {
			return i + 1, off - lineStart + 1
		}
		lineStart = end + 1
	}
	return len(l.lineEndOffset) + 1, off - lineStart + 1
}

var errColor = color.New(color.FgRed)

// Fatalf prints a red diagnostic (plain when stderr isn't a terminal) and
// exits the process with status 1.
func Fatalf(format string, args ...any) {
	errColor.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Errorln prints a red diagnostic without exiting.
func Errorln(msg string) {
	errColor.Fprintln(os.Stderr, msg)
}
