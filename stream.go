package pyout

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Fallback dimensions when the terminal size cannot be determined.
const (
	fallbackWidth  = 80
	fallbackHeight = 24
)

// Escape sequences for in-place updates.
const (
	cursorUp   = "\x1b[A"
	cursorDown = "\x1b[B"
	clearLine  = "\x1b[2K"
)

// Stream is the output capability the writer renders through: write text,
// report dimensions, and, when updates are supported, rewrite earlier
// lines.
type Stream interface {
	Write(text string) error
	// Width is the maximum line width, or 0 when unbounded.
	Width() int
	// Height is the number of visible rows.
	Height() int
	// ClearLastLines erases the previous n lines.
	ClearLastLines(n int) error
	// OverwriteLine replaces the line n above the cursor with text, which
	// must end in a newline, and restores the cursor.
	OverwriteLine(n int, text string) error
	// MoveTo places the cursor at the start of the line n above.
	MoveTo(n int) error
	Interactive() bool
	SupportsUpdates() bool
}

// termStream renders to an interactive terminal using cursor-movement
// escape sequences.
type termStream struct {
	out io.Writer
	fd  int // -1 when the writer is not a real terminal file
}

// newTermStream wraps out. Size queries use the file descriptor when out
// is a terminal file and fall back to 80x24 otherwise.
func newTermStream(out io.Writer) *termStream {
	fd := -1
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fd = int(f.Fd())
	}
	return &termStream{out: out, fd: fd}
}

func (s *termStream) Write(text string) error {
	_, err := io.WriteString(s.out, text)
	return err
}

func (s *termStream) size() (int, int) {
	if s.fd >= 0 {
		if w, h, err := term.GetSize(s.fd); err == nil {
			return w, h
		}
	}
	return fallbackWidth, fallbackHeight
}

func (s *termStream) Width() int {
	w, _ := s.size()
	return w
}

func (s *termStream) Height() int {
	_, h := s.size()
	return h
}

func (s *termStream) ClearLastLines(n int) error {
	var b strings.Builder
	for range n {
		b.WriteString(cursorUp)
		b.WriteString(clearLine)
	}
	b.WriteString("\r")
	return s.Write(b.String())
}

func (s *termStream) OverwriteLine(n int, text string) error {
	// The text's trailing newline already moves the cursor down one line.
	var b strings.Builder
	b.WriteString(strings.Repeat(cursorUp, n))
	b.WriteString(clearLine)
	b.WriteString("\r")
	b.WriteString(text)
	if n > 1 {
		b.WriteString(strings.Repeat(cursorDown, n-1))
	}
	return s.Write(b.String())
}

func (s *termStream) MoveTo(n int) error {
	return s.Write(strings.Repeat(cursorUp, n) + "\r")
}

func (s *termStream) Interactive() bool     { return true }
func (s *termStream) SupportsUpdates() bool { return true }

// plainStream appends to a non-interactive stream. Width is unbounded and
// previous lines can never be rewritten.
type plainStream struct {
	out io.Writer
}

func newPlainStream(out io.Writer) *plainStream {
	return &plainStream{out: out}
}

func (s *plainStream) Write(text string) error {
	_, err := io.WriteString(s.out, text)
	return err
}

func (s *plainStream) Width() int  { return 0 }
func (s *plainStream) Height() int { return fallbackHeight }

func (s *plainStream) ClearLastLines(int) error {
	return fmt.Errorf("plain stream does not support updates")
}

func (s *plainStream) OverwriteLine(int, string) error {
	return fmt.Errorf("plain stream does not support updates")
}

func (s *plainStream) MoveTo(int) error {
	return fmt.Errorf("plain stream does not support updates")
}

func (s *plainStream) Interactive() bool     { return false }
func (s *plainStream) SupportsUpdates() bool { return false }

// isTerminalWriter reports whether out is attached to a terminal.
func isTerminalWriter(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
