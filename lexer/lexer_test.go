package lexer_test

import (
	"bytes"
	"testing"

	"github.com/macroexp/gm4/builtin"
	"github.com/macroexp/gm4/gm4ctx"
	"github.com/macroexp/gm4/input"
	"github.com/macroexp/gm4/lexer"
)

func newLexer(t *testing.T, src string) (*lexer.Lexer, *gm4ctx.Context) {
	t.Helper()
	var buf bytes.Buffer
	ctx := gm4ctx.New(gm4ctx.Options{}, "gm4", &buf)
	in := input.New()
	in.PushStringReader([]byte(src), "")
	return lexer.New(ctx, in), ctx
}

func tokens(t *testing.T, l *lexer.Lexer) []lexer.Token {
	t.Helper()
	var out []lexer.Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("unexpected lexer error: %v", err)
		}
		if tok.Kind == lexer.Eof {
			break
		}
		out = append(out, tok)
	}
	return out
}

func TestWordToken(t *testing.T) {
	l, _ := newLexer(t, "define")
	toks := tokens(t, l)
	if len(toks) != 1 || toks[0].Kind != lexer.Word || string(toks[0].Bytes) != "define" {
		t.Fatalf("unexpected tokens: %v", toks)
	}
}

func TestQuotedStringStripsDelimiters(t *testing.T) {
	l, _ := newLexer(t, "`hello'")
	toks := tokens(t, l)
	if len(toks) != 1 || toks[0].Kind != lexer.String || string(toks[0].Bytes) != "hello" {
		t.Fatalf("unexpected tokens: %v", toks)
	}
}

func TestNestedQuotesPreserved(t *testing.T) {
	l, _ := newLexer(t, "`a`b'c'")
	toks := tokens(t, l)
	if len(toks) != 1 || toks[0].Kind != lexer.String || string(toks[0].Bytes) != "a`b'c" {
		t.Fatalf("unexpected tokens: %v", toks)
	}
}

func TestCommentPassesThroughAsString(t *testing.T) {
	l, _ := newLexer(t, "# a comment\nrest")
	toks := tokens(t, l)
	if len(toks) < 2 {
		t.Fatalf("expected at least 2 tokens, got %v", toks)
	}
	if toks[0].Kind != lexer.String || string(toks[0].Bytes) != "# a comment\n" {
		t.Fatalf("unexpected comment token: %v", toks[0])
	}
}

func TestDiscardCommentsOptionYieldsNone(t *testing.T) {
	l, ctx := newLexer(t, "# comment\nx")
	ctx.Options.DiscardComments = true
	var kinds []lexer.Kind
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Kind == lexer.Eof {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	if len(kinds) == 0 || kinds[0] != lexer.None {
		t.Fatalf("expected first token to be None, got %v", kinds)
	}
}

func TestOtherNumRunGrouping(t *testing.T) {
	l, _ := newLexer(t, "123+456")
	toks := tokens(t, l)
	if len(toks) != 1 || toks[0].Kind != lexer.String || string(toks[0].Bytes) != "123+456" {
		t.Fatalf("unexpected tokens: %v", toks)
	}
}

func TestSpaceRunGrouping(t *testing.T) {
	l, _ := newLexer(t, "a   b")
	toks := tokens(t, l)
	if len(toks) != 3 || toks[1].Kind != lexer.Space || string(toks[1].Bytes) != "   " {
		t.Fatalf("unexpected tokens: %v", toks)
	}
}

func TestChangedQuotesTakeEffectImmediately(t *testing.T) {
	l, ctx := newLexer(t, "[hi]")
	ctx.SetQuotes("[", "]")
	toks := tokens(t, l)
	if len(toks) != 1 || toks[0].Kind != lexer.String || string(toks[0].Bytes) != "hi" {
		t.Fatalf("unexpected tokens: %v", toks)
	}
}

func TestUnterminatedQuoteIsFatal(t *testing.T) {
	l, _ := newLexer(t, "`unterminated")
	_, err := l.Next()
	if err == nil {
		t.Fatalf("expected a fatal error for unterminated quote")
	}
}

func TestFrozenBuiltinProducesMacroRef(t *testing.T) {
	var buf bytes.Buffer
	ctx := gm4ctx.New(gm4ctx.Options{}, "gm4", &buf)
	in := input.New()
	in.PushBuiltin(&builtin.Entry{Name: "define"})
	l := lexer.New(ctx, in)

	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != lexer.MacroRef || tok.Ref.Name != "define" {
		t.Fatalf("unexpected token: %v", tok)
	}
}
