package lexer

import (
	"github.com/macroexp/gm4/gm4ctx"
	"github.com/macroexp/gm4/input"
	"github.com/macroexp/gm4/syntax"
)

// Lexer turns the byte stream on an input.Stack into Tokens, consulting
// ctx.Syntax and ctx.Quote/ctx.Comment on every character (spec.md §4.3).
type Lexer struct {
	ctx *gm4ctx.Context
	in  *input.Stack
}

// New creates a Lexer reading from in under ctx's current syntax table and
// quote/comment delimiters.
func New(ctx *gm4ctx.Context, in *input.Stack) *Lexer {
	return &Lexer{ctx: ctx, in: in}
}

// Next returns the next token, per the precedence order in spec.md §4.3.
// A non-nil error is always a fatal diagnostic (Eof inside a quoted string
// or a multi-byte comment).
func (l *Lexer) Next() (Token, error) {
	b, res, entry := l.in.PeekChar()

	switch res {
	case input.ResultEOF:
		return Token{Kind: Eof}, nil
	case input.ResultFrozenBuiltin:
		_, _, _ = l.in.NextChar()
		return Token{Kind: MacroRef, Ref: &MacroRefData{
			Name:    entry.Name,
			Func:    entry.Func,
			MinArgs: entry.MinArgs,
			MaxArgs: entry.MaxArgs,
		}}, nil
	}

	if tok, ok, err := l.tryComment(); ok || err != nil {
		return tok, err
	}

	cat, mask := l.ctx.Syntax.Classify(b)

	if cat == syntax.EscapeCat {
		return l.readEscape()
	}

	if cat == syntax.Alpha && !l.ctx.Syntax.IsMacroEscaped() {
		return l.readWord()
	}

	if mask&syntax.MaskLQuote != 0 || (len(l.ctx.Quote.LQuote) > 1 && l.peekMatches(l.ctx.Quote.LQuote)) {
		if tok, ok, err := l.tryQuote(); ok || err != nil {
			return tok, err
		}
	}

	switch cat {
	case syntax.Other, syntax.Num:
		return l.readOtherNumRun(), nil
	case syntax.Space:
		return l.readSpaceRun(), nil
	case syntax.Active:
		_, _, _ = l.in.NextChar()
		return Token{Kind: Word, Bytes: []byte{b}}, nil
	case syntax.Alpha:
		// Global escape mode is on: identifiers are literal text, not Words.
		return l.readAlphaAsString()
	default:
		_, _, _ = l.in.NextChar()
		return Token{Kind: Simple, Bytes: []byte{b}}, nil
	}
}

// peekMatches reports whether the upcoming bytes equal delim, without
// consuming them (used to decide whether to attempt a multi-byte
// delimiter match at all).
func (l *Lexer) peekMatches(delim string) bool {
	ok := l.tryConsumeDelim(delim)
	if ok {
		// tryConsumeDelim already consumed it; put it back since this call
		// is only a lookahead probe.
		for i := len(delim) - 1; i >= 0; i-- {
			l.in.Unget(delim[i])
		}
	}
	return ok
}

// tryConsumeDelim consumes delim from the input if it appears next,
// returning true and leaving the stream advanced past it; otherwise
// returns false and leaves the stream exactly as it was.
func (l *Lexer) tryConsumeDelim(delim string) bool {
	if len(delim) == 0 {
		return false
	}
	if len(delim) == 1 {
		b, res, _ := l.in.PeekChar()
		if res == input.ResultByte && b == delim[0] {
			_, _, _ = l.in.NextChar()
			return true
		}
		return false
	}
	read := make([]byte, 0, len(delim))
	for i := 0; i < len(delim); i++ {
		b, res, _ := l.in.NextChar()
		if res != input.ResultByte || b != delim[i] {
			if res == input.ResultByte {
				read = append(read, b)
			}
			for j := len(read) - 1; j >= 0; j-- {
				l.in.Unget(read[j])
			}
			return false
		}
		read = append(read, b)
	}
	return true
}

func (l *Lexer) tryComment() (Token, bool, error) {
	bc, ec := l.ctx.Comment.BComm, l.ctx.Comment.EComm
	if bc == "" {
		return Token{}, false, nil
	}
	if !l.tryConsumeDelim(bc) {
		return Token{}, false, nil
	}

	var raw []byte
	raw = append(raw, bc...)
	multiByte := len(ec) > 1
	for {
		if l.tryConsumeDelim(ec) {
			raw = append(raw, ec...)
			break
		}
		b, res, _ := l.in.NextChar()
		if res != input.ResultByte {
			if multiByte {
				d := l.ctx.Fatalf("end of file in comment")
				return Token{Kind: Eof}, true, d
			}
			break
		}
		raw = append(raw, b)
	}

	if l.ctx.Options.DiscardComments {
		return Token{Kind: None}, true, nil
	}
	return Token{Kind: String, Bytes: raw}, true, nil
}

func (l *Lexer) readEscape() (Token, error) {
	esc, _, _ := l.in.NextChar()
	b, res, _ := l.in.PeekChar()
	if res == input.ResultByte && l.ctx.Syntax.Base(b) == syntax.Alpha {
		ident := l.readIdentRun()
		out := append([]byte{esc}, ident...)
		return Token{Kind: Word, Bytes: out}, nil
	}
	return Token{Kind: Simple, Bytes: []byte{esc}}, nil
}

func (l *Lexer) readWord() (Token, error) {
	ident := l.readIdentRun()
	return Token{Kind: Word, Bytes: ident}, nil
}

func (l *Lexer) readAlphaAsString() (Token, error) {
	ident := l.readIdentRun()
	return Token{Kind: String, Bytes: ident}, nil
}

// readIdentRun consumes [Alpha][Alpha|Num]* starting at the current
// position (which must already be classified Alpha).
func (l *Lexer) readIdentRun() []byte {
	var out []byte
	for {
		b, res, _ := l.in.PeekChar()
		if res != input.ResultByte {
			break
		}
		cat := l.ctx.Syntax.Base(b)
		if cat != syntax.Alpha && cat != syntax.Num {
			break
		}
		_, _, _ = l.in.NextChar()
		out = append(out, b)
	}
	return out
}

func (l *Lexer) readOtherNumRun() Token {
	var out []byte
	for {
		b, res, _ := l.in.PeekChar()
		if res != input.ResultByte {
			break
		}
		cat := l.ctx.Syntax.Base(b)
		if cat != syntax.Other && cat != syntax.Num {
			break
		}
		_, _, _ = l.in.NextChar()
		out = append(out, b)
	}
	return Token{Kind: String, Bytes: out}
}

func (l *Lexer) readSpaceRun() Token {
	b, _, _ := l.in.NextChar()
	out := []byte{b}
	if l.ctx.Options.Interactive {
		return Token{Kind: Space, Bytes: out}
	}
	for {
		nb, res, _ := l.in.PeekChar()
		if res != input.ResultByte || l.ctx.Syntax.Base(nb) != syntax.Space {
			break
		}
		_, _, _ = l.in.NextChar()
		out = append(out, nb)
	}
	return Token{Kind: Space, Bytes: out}
}

// tryQuote attempts to collect a balanced-quote string starting at the
// current position, which must already be known to start with LQuote.
func (l *Lexer) tryQuote() (Token, bool, error) {
	if !l.tryConsumeDelim(l.ctx.Quote.LQuote) {
		return Token{}, false, nil
	}

	lq, rq := l.ctx.Quote.LQuote, l.ctx.Quote.RQuote
	depth := 0
	var content []byte
	for {
		if l.tryConsumeDelim(rq) {
			if depth == 0 {
				return Token{Kind: String, Bytes: content}, true, nil
			}
			depth--
			content = append(content, rq...)
			continue
		}
		if l.tryConsumeDelim(lq) {
			depth++
			content = append(content, lq...)
			continue
		}
		b, res, _ := l.in.NextChar()
		if res != input.ResultByte {
			d := l.ctx.Fatalf("end of file in string")
			return Token{Kind: Eof}, true, d
		}
		content = append(content, b)
	}
}
