package input

import (
	"fmt"
	"os"

	"github.com/macroexp/gm4/builtin"
)

// Stack is the LIFO of input frames plus its secondary wrap-up stack
// (spec.md §3 "Input stack", §4.9). CurFile/CurLine track the position
// attributed to the byte most recently returned by NextChar, used by
// diagnostics and `__file__`/`__line__`.
type Stack struct {
	frames []frame
	wrapup []frame

	CurFile string
	CurLine int

	// buildGen increments on every push; PushStringBegin snapshots it so
	// Finish can detect an intervening push and abandon the partially
	// built string (spec.md §4.2 "push_string_begin/finish is a
	// two-phase protocol").
	buildGen int
}

// New creates an empty input stack.
func New() *Stack {
	return &Stack{}
}

func (s *Stack) top() frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *Stack) push(f frame) {
	s.frames = append(s.frames, f)
	s.buildGen++ // any push invalidates an in-progress string build
}

func (s *Stack) pop() frame {
	if len(s.frames) == 0 {
		return nil
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	f.clean()
	return f
}

// PushFile pushes a new file source (spec.md §4.2 push_file): prior
// (file, line) is saved on the frame and restored when it pops.
func (s *Stack) PushFile(r *os.File, displayName string) {
	ff := newFileFrame(r, displayName)
	ff.savedFile = s.CurFile
	ff.savedLine = s.CurLine
	s.push(ff)
	s.CurFile = displayName
	s.CurLine = 1
}

// PushStringReader pushes content as a string frame. A non-empty
// displayName becomes CurFile with CurLine set to 1; unlike PushFile, the
// frame does not count lines and the previous position is not restored
// when it pops.
func (s *Stack) PushStringReader(content []byte, displayName string) {
	sf := newStringFrame(content)
	s.push(sf)
	if displayName != "" {
		s.CurFile = displayName
		s.CurLine = 1
	}
}

// Builder accumulates bytes for the two-phase push_string_begin/finish
// protocol (spec.md §4.2, §9 "scratch_builder() -> Builder").
type Builder struct {
	s        *Stack
	buf      []byte
	startGen int
}

// PushStringBegin starts building a string to push back onto the stack
// for rescanning (used by macro expansion results).
func (s *Stack) PushStringBegin() *Builder {
	return &Builder{s: s, startGen: s.buildGen}
}

// WriteByte appends one byte to the in-progress build.
func (b *Builder) WriteByte(c byte) { b.buf = append(b.buf, c) }

// WriteString appends a string to the in-progress build.
func (b *Builder) WriteString(str string) { b.buf = append(b.buf, str...) }

// Finish commits the built bytes as a new stringFrame, pushed onto the
// stack for rescanning. If anything else pushed onto the stack since
// Begin, the build is abandoned: the caller gets ok=false and must
// discard its partially assembled text (spec.md §4.2/§5 item 3).
func (b *Builder) Finish() (ok bool) {
	if b.s.buildGen != b.startGen {
		return false
	}
	if len(b.buf) == 0 {
		return true
	}
	b.s.push(newStringFrame(b.buf))
	return true
}

// PushSingle pushes one byte back onto the stack (spec.md §4.2
// push_single).
func (s *Stack) PushSingle(b byte) {
	s.push(newSingleFrame(b))
}

// PushBuiltin pushes an opaque frozen builtin reference, so the lexer
// emits a MacroRef token the next time the stack is read (spec.md §4.2
// push_builtin; used by `defn`).
func (s *Stack) PushBuiltin(e *builtin.Entry) {
	s.push(newFrozenFrame(e))
}

// PushWrapup appends text to the secondary wrap-up stack (spec.md §4.9).
func (s *Stack) PushWrapup(b []byte) {
	s.wrapup = append(s.wrapup, newStringFrame(b))
}

// PopWrapup makes the wrap-up stack the active input stack exactly once,
// returning true if there was anything to switch to (spec.md §3/§4.9).
// Subsequent PushWrapup calls accumulate on a fresh secondary stack, and
// the driver calls PopWrapup again until it returns false.
func (s *Stack) PopWrapup() bool {
	if len(s.wrapup) == 0 {
		return false
	}
	s.frames = s.wrapup
	s.wrapup = nil
	return true
}

// NextChar reads the next byte from the top frame, popping exhausted
// frames and retrying, and falling through to the wrap-up stack exactly
// once when the normal stack empties (spec.md §4.2 next_char). res is
// ResultEOF at genuine end of all input (normal stack and wrap-up both
// exhausted).
func (s *Stack) NextChar() (b byte, res Result, entry *builtin.Entry) {
	for {
		top := s.top()
		if top == nil {
			if s.PopWrapup() {
				continue
			}
			return 0, ResultEOF, nil
		}
		b, r, e := top.read()
		switch r {
		case ResultExhausted:
			s.onPop(top)
			continue
		case ResultByte:
			if ff, ok := top.(*fileFrame); ok {
				s.CurLine = ff.line
			}
			return b, ResultByte, nil
		case ResultFrozenBuiltin:
			return 0, ResultFrozenBuiltin, e
		}
	}
}

// PeekChar is the non-destructive analogue of NextChar (spec.md §4.2
// peek_char): it does not consume the byte it returns, but it pops
// exhausted frames (and may switch to the wrap-up stack) to find the real
// next byte, since a trailing empty frame must not appear to be "more input".
func (s *Stack) PeekChar() (b byte, res Result, entry *builtin.Entry) {
	for {
		top := s.top()
		if top == nil {
			if s.PopWrapup() {
				continue
			}
			return 0, ResultEOF, nil
		}
		b, r, e := top.peek()
		switch r {
		case ResultExhausted:
			s.onPop(top)
			continue
		case ResultByte:
			return b, ResultByte, nil
		case ResultFrozenBuiltin:
			return 0, ResultFrozenBuiltin, e
		}
	}
}

func (s *Stack) onPop(top frame) {
	s.pop()
	if ff, ok := top.(*fileFrame); ok {
		s.CurFile = ff.savedFile
		s.CurLine = ff.savedLine
	}
}

// Unget pushes one byte back in front of the current input, preferring
// the top frame's native unget and falling back to a SingleChar frame
// (spec.md §4.2's "frames that cannot peek cheaply may synthesize it from
// read + unget").
func (s *Stack) Unget(b byte) {
	top := s.top()
	if top != nil && top.unget(b) {
		return
	}
	s.PushSingle(b)
}

// CurrentFrameName reports the top frame's display name (file name for a
// File frame, empty otherwise), used by diagnostics and the debugger.
func (s *Stack) CurrentFrameName() string {
	if top := s.top(); top != nil {
		return top.name()
	}
	return ""
}

// Depth reports how many frames are currently on the active stack.
func (s *Stack) Depth() int { return len(s.frames) }

// String is a debugging aid.
func (s *Stack) String() string {
	return fmt.Sprintf("input.Stack{frames=%d, wrapup=%d, file=%s:%d}", len(s.frames), len(s.wrapup), s.CurFile, s.CurLine)
}
