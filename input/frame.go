// Package input implements gm4's layered input stack (spec.md §3 "Input
// frame"/"Input stack", §4.2): a LIFO of frames interleaving file reads,
// pushed-back strings, single characters, and frozen builtin tokens, plus
// a secondary wrap-up stack for `m4wrap` text.
//
// Grounded on the teacher's parser/file.go (file reading, one source at a
// time) and parser/lexer.go's rune-cursor bookkeeping (line/column
// tracking on read), generalized from "one source, read once at startup"
// to a genuine stack of heterogeneous sources that can be pushed and
// popped mid-scan, the way original_source/m4/input.c's obstack-based
// input stack does.
package input

import (
	"bufio"
	"io"

	"github.com/macroexp/gm4/builtin"
)

// Result is what a frame's read/peek operation produced.
type Result int

const (
	ResultByte Result = iota
	ResultEOF
	ResultFrozenBuiltin
	ResultExhausted // frame has nothing left; caller must pop it and retry
)

// frame is one element of the input stack (spec.md §3 "Input frame").
// Every frame exposes peek/read/unget/clean; unget may be unsupported
// (returns false), matching spec.md §4.2's "frames that cannot peek
// cheaply may synthesize it from read+unget" escape hatch — gm4's
// concrete frame types all support peek directly, so that fallback is
// never exercised, but the interface leaves room for it.
type frame interface {
	peek() (b byte, res Result, e *builtin.Entry)
	read() (b byte, res Result, e *builtin.Entry)
	unget(b byte) bool
	clean()
	name() string
}

// fileFrame reads sequentially from an underlying io.Reader (spec.md §3
// Input frame "File"), tracking the line the reader is currently on and
// deferring the line increment to the read *after* a newline so the
// newline itself is attributed to the line it terminates (spec.md §4.2).
type fileFrame struct {
	r              *bufio.Reader
	closer         io.Closer
	displayName    string
	line           int
	pendingNewline bool
	savedFile      string
	savedLine      int
	peeked         bool
	peekByte       byte
	peekEOF        bool
}

func newFileFrame(r io.Reader, displayName string) *fileFrame {
	closer, _ := r.(io.Closer)
	return &fileFrame{
		r:           bufio.NewReader(r),
		closer:      closer,
		displayName: displayName,
		line:        1,
	}
}

func (f *fileFrame) name() string { return f.displayName }

func (f *fileFrame) fill() {
	if f.peeked {
		return
	}
	b, err := f.r.ReadByte()
	if err != nil {
		f.peekEOF = true
	} else {
		f.peekByte = b
		f.peekEOF = false
	}
	f.peeked = true
}

func (f *fileFrame) peek() (byte, Result, *builtin.Entry) {
	f.fill()
	if f.peekEOF {
		return 0, ResultExhausted, nil
	}
	return f.peekByte, ResultByte, nil
}

func (f *fileFrame) read() (byte, Result, *builtin.Entry) {
	f.fill()
	if f.peekEOF {
		return 0, ResultExhausted, nil
	}
	if f.pendingNewline {
		f.line++
		f.pendingNewline = false
	}
	b := f.peekByte
	f.peeked = false
	if b == '\n' {
		f.pendingNewline = true
	}
	return b, ResultByte, nil
}

func (f *fileFrame) unget(b byte) bool {
	if f.peeked {
		return false
	}
	f.peekByte = b
	f.peekEOF = false
	f.peeked = true
	if b == '\n' && f.pendingNewline {
		f.line--
		f.pendingNewline = false
	}
	return true
}

func (f *fileFrame) clean() {
	if f.closer != nil {
		_ = f.closer.Close()
	}
}

// stringFrame replays a byte slice, used for rescanning macro expansions
// pushed back onto the stack (spec.md §3 "StringBuf").
type stringFrame struct {
	bytes  []byte
	cursor int
}

func newStringFrame(b []byte) *stringFrame {
	return &stringFrame{bytes: b}
}

func (s *stringFrame) name() string { return "" }

func (s *stringFrame) peek() (byte, Result, *builtin.Entry) {
	if s.cursor >= len(s.bytes) {
		return 0, ResultExhausted, nil
	}
	return s.bytes[s.cursor], ResultByte, nil
}

func (s *stringFrame) read() (byte, Result, *builtin.Entry) {
	if s.cursor >= len(s.bytes) {
		return 0, ResultExhausted, nil
	}
	b := s.bytes[s.cursor]
	s.cursor++
	return b, ResultByte, nil
}

func (s *stringFrame) unget(b byte) bool {
	if s.cursor == 0 {
		// Grow backward: prepend rather than fail, since gm4 never
		// ungets more than one byte deeper than it has read from this
		// frame in practice (the lexer only ungets what it just read).
		s.bytes = append([]byte{b}, s.bytes...)
		return true
	}
	s.cursor--
	s.bytes[s.cursor] = b
	return true
}

func (s *stringFrame) clean() {}

// singleFrame holds exactly one pushed-back byte (spec.md §3
// "SingleChar"), used by unget-at-the-stack-level.
type singleFrame struct {
	b     byte
	empty bool
}

func newSingleFrame(b byte) *singleFrame { return &singleFrame{b: b} }

func (s *singleFrame) name() string { return "" }

func (s *singleFrame) peek() (byte, Result, *builtin.Entry) {
	if s.empty {
		return 0, ResultExhausted, nil
	}
	return s.b, ResultByte, nil
}

func (s *singleFrame) read() (byte, Result, *builtin.Entry) {
	if s.empty {
		return 0, ResultExhausted, nil
	}
	s.empty = true
	return s.b, ResultByte, nil
}

func (s *singleFrame) unget(b byte) bool {
	if !s.empty {
		return false
	}
	s.b = b
	s.empty = false
	return true
}

func (s *singleFrame) clean() {}

// frozenFrame carries an opaque builtin reference (spec.md §3
// "FrozenBuiltin"), produced by e.g. `defn` pushing a builtin's identity
// back onto the input so the lexer emits a MacroRef token for it.
type frozenFrame struct {
	entry    *builtin.Entry
	consumed bool
}

func newFrozenFrame(e *builtin.Entry) *frozenFrame {
	return &frozenFrame{entry: e}
}

func (f *frozenFrame) name() string { return "" }

func (f *frozenFrame) peek() (byte, Result, *builtin.Entry) {
	if f.consumed {
		return 0, ResultExhausted, nil
	}
	return 0, ResultFrozenBuiltin, f.entry
}

func (f *frozenFrame) read() (byte, Result, *builtin.Entry) {
	if f.consumed {
		return 0, ResultExhausted, nil
	}
	f.consumed = true
	return 0, ResultFrozenBuiltin, f.entry
}

func (f *frozenFrame) unget(b byte) bool { return false }

func (f *frozenFrame) clean() {}
