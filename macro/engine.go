// Package macro implements gm4's expansion engine (spec.md §4.5/§4.6):
// the expand_all_input/expand_token/expand_macro loop, argument
// collection, user-macro `$`-substitution, and every builtin.
//
// Grounded on the teacher's parser/preprocessor.go driver loop (read
// token, dispatch, write/recurse) and parser/macros.go's macro-table
// dispatch, generalized from ARM's fixed directive set to gm4's
// runtime-extensible, rescanning macro engine.
package macro

import (
	"bytes"
	"fmt"

	"github.com/macroexp/gm4/builtin"
	"github.com/macroexp/gm4/gm4ctx"
	"github.com/macroexp/gm4/input"
	"github.com/macroexp/gm4/lexer"
	"github.com/macroexp/gm4/symtab"
	"github.com/macroexp/gm4/syntax"
)

// Func is the concrete native-builtin signature gm4 uses; builtin.Entry
// stores it as an opaque `any` to avoid an import cycle, and Engine
// type-asserts it back out here (see builtin package doc comment).
type Func func(e *Engine, argv *Argv)

// Engine drives one interpreter instance: a context, an input stack, a
// lexer over that stack, and the builtin registry.
type Engine struct {
	Ctx      *gm4ctx.Context
	In       *input.Stack
	Lex      *lexer.Lexer
	Builtins *builtin.Table

	callCounter int
	level       int
	lastSysval  int

	// IncludePaths holds the -I directories (and M4PATH entries) include
	// and sinclude search after the current working directory (spec.md §6).
	IncludePaths []string

	// BreakHook, if set, is called with a macro's name immediately before
	// its arguments are collected and its body runs, letting a driver such as
	// the debugger inspect or pause the interpreter between calls without
	// the expansion engine itself knowing anything about breakpoints.
	BreakHook func(name string)
}

// New creates an Engine with the core and GNU builtins already registered.
func New(ctx *gm4ctx.Context) *Engine {
	in := input.New()
	e := &Engine{
		Ctx:      ctx,
		In:       in,
		Lex:      lexer.New(ctx, in),
		Builtins: builtin.NewTable(),
	}
	registerCoreBuiltins(e)
	registerGNUBuiltins(e)
	return e
}

// DefineBuiltins installs every registered builtin.Entry as a symtab
// definition, so plain-text lookups (`ifdef`, `Word` resolution) find
// them the same way as user macros (spec.md §4.5 "Word... look up in
// symbol table"). When Options.PrefixAllBuiltins is set (`-P`, spec.md
// §6), builtins are installed under their `m4_`-prefixed name only, so
// user macros are free to reuse the bare names.
func (e *Engine) DefineBuiltins() {
	for _, name := range e.Builtins.Names() {
		entry, _ := e.Builtins.Lookup(name)
		defName := name
		if e.Ctx.Options.PrefixAllBuiltins {
			defName = "m4_" + name
		}
		e.Ctx.Symtab.Define(defName, &symtab.Definition{
			Kind:             symtab.DefBuiltin,
			Builtin:          entry,
			AcceptsMacroArgs: entry.AcceptsMacroArgs,
			BlindIfNoArgs:    entry.BlindIfNoArgs,
		})
	}
}

// PushString is a thin forward to the input stack, kept here so driver
// code can push text without reaching into e.In.
func (e *Engine) PushString(content []byte, displayName string) {
	e.In.PushStringReader(content, displayName)
}

// ExpandAll runs expand_all_input to completion: lex and dispatch tokens
// until Eof (spec.md §4.5).
func (e *Engine) ExpandAll() error {
	for {
		eof, err := e.StepOne()
		if err != nil || eof || e.Ctx.ExitRequested {
			return err
		}
	}
}

// StepOne performs exactly one expand_token cycle: read the next token,
// sync position, and dispatch it. eof is true once input is exhausted.
// Exposed so a driver (the debugger) can single-step the interpreter one
// token at a time instead of only running ExpandAll to completion.
func (e *Engine) StepOne() (eof bool, err error) {
	tok, err := e.Lex.Next()
	if err != nil {
		return false, err
	}
	e.Ctx.CurLine = e.In.CurLine
	e.Ctx.CurFile = e.In.CurFile
	e.Ctx.Output.SetPosition(e.Ctx.CurFile, e.Ctx.CurLine)
	if tok.Kind == lexer.Eof {
		return true, nil
	}
	return false, e.expandToken(tok)
}

// expandToken implements spec.md §4.5 expand_token.
func (e *Engine) expandToken(tok lexer.Token) error {
	switch tok.Kind {
	case lexer.Eof, lexer.None:
		return nil
	case lexer.Simple, lexer.String, lexer.Space:
		e.Ctx.Output.WriteBytes(tok.Bytes)
		return nil
	case lexer.MacroRef:
		// A bare builtin reference with no following open-paren in this
		// context renders as nothing further to do; `defn`/indirection
		// paths consume MacroRef tokens directly rather than through here.
		return nil
	case lexer.Word:
		return e.expandWord(tok.Bytes)
	}
	return nil
}

func (e *Engine) expandWord(raw []byte) error {
	name := string(stripEscapePrefix(e.Ctx, raw))
	def, ok := e.Ctx.Symtab.Lookup(name)
	if !ok {
		e.Ctx.Output.WriteBytes(raw)
		return nil
	}

	peeked, res, _ := e.In.PeekChar()
	hasOpen := res == input.ResultByte && e.Ctx.Syntax.Base(peeked) == syntax.Open

	if def.BlindIfNoArgs && !hasOpen {
		e.Ctx.Output.WriteBytes(raw)
		return nil
	}

	return e.expandMacro(name, def, hasOpen)
}

// stripEscapePrefix removes a single leading Escape-classified byte, if
// the syntax table currently has any escape byte configured (spec.md
// §4.5 "Word -> strip a leading escape byte if present").
func stripEscapePrefix(ctx *gm4ctx.Context, raw []byte) []byte {
	if !ctx.Syntax.IsMacroEscaped() || len(raw) == 0 {
		return raw
	}
	if ctx.Syntax.Base(raw[0]) == syntax.EscapeCat {
		return raw[1:]
	}
	return raw
}

// expandMacro implements spec.md §4.5 expand_macro steps 1-9.
func (e *Engine) expandMacro(name string, def *symtab.Definition, hasOpen bool) error {
	if e.level >= e.Ctx.Options.NestingLimit && e.Ctx.Options.NestingLimit > 0 {
		d := e.Ctx.Fatalf("nesting limit exceeded (recursion too deep?)")
		return d
	}
	e.level++
	defer func() { e.level-- }()

	if e.BreakHook != nil {
		e.BreakHook(name)
	}

	e.callCounter++
	call := CallInfo{
		File:         e.Ctx.CurFile,
		Line:         e.Ctx.CurLine,
		NestingLevel: e.level,
		CallID:       e.callCounter,
		Name:         name,
		Traced:       def.Traced,
	}

	argv := &Argv{Args: []Arg{{Kind: ArgText, Text: []byte(name)}}, QuoteAge: e.Ctx.QuoteAge, Call: call}
	if hasOpen {
		_, _, _ = e.In.NextChar() // consume '('
		if err := e.collectArgs(argv); err != nil {
			return err
		}
	}

	e.traceCall(call, argv, "pre")

	sym := e.Ctx.Symtab.LookupSymbol(name)
	if sym != nil {
		e.Ctx.Symtab.BeginExpansion(name)
		defer e.Ctx.Symtab.EndExpansion(name)
	}

	switch def.Kind {
	case symtab.DefBuiltin:
		if err := e.invokeBuiltin(def.Builtin, argv); err != nil {
			return err
		}
	case symtab.DefText:
		out := e.substitute(def.Text, argv)
		b := e.In.PushStringBegin()
		b.WriteString(out)
		b.Finish()
	}

	e.traceCall(call, argv, "post")
	return nil
}

func (e *Engine) invokeBuiltin(entry *builtin.Entry, argv *Argv) error {
	fn, ok := entry.Func.(Func)
	if !ok {
		return nil
	}
	argc := argv.Argc() - 1
	if argc < entry.MinArgs {
		e.Ctx.Warnf("too few arguments to builtin `%s'", entry.Name)
		return nil
	}
	if entry.MaxArgs >= 0 && argc > entry.MaxArgs {
		e.Ctx.Warnf("too many arguments to builtin `%s'", entry.Name)
	}
	fn(e, argv)
	return nil
}

// collectArgs implements spec.md §4.5 step 4: repeatedly expand_argument
// until a terminating Close at paren-level 0.
func (e *Engine) collectArgs(argv *Argv) error {
	for {
		arg, terminator, err := e.expandArgument()
		if err != nil {
			return err
		}
		argv.Args = append(argv.Args, arg)
		if terminator == ')' {
			return nil
		}
	}
}

// expandArgument collects one argument: skip leading whitespace, then
// accumulate text/rescanned macro output until a top-level comma or
// close-paren (spec.md §4.5 expand_argument).
func (e *Engine) expandArgument() (Arg, byte, error) {
	e.skipLeadingSpace()

	var buf bytes.Buffer
	depth := 0
	var single *lexer.MacroRefData
	tokenCount := 0

	for {
		tok, err := e.Lex.Next()
		if err != nil {
			return Arg{}, 0, err
		}
		switch tok.Kind {
		case lexer.Eof:
			return Arg{}, 0, e.Ctx.Fatalf("end of file in argument list")
		case lexer.MacroRef:
			tokenCount++
			single = tok.Ref
			continue
		case lexer.Simple:
			if len(tok.Bytes) == 1 {
				switch tok.Bytes[0] {
				case '(':
					depth++
				case ')':
					if depth == 0 {
						return e.finishArgument(buf.Bytes(), single, tokenCount), ')', nil
					}
					depth--
				case ',':
					if depth == 0 {
						return e.finishArgument(buf.Bytes(), single, tokenCount), ',', nil
					}
				}
			}
			buf.Write(tok.Bytes)
			tokenCount++
		case lexer.Word:
			if err := e.expandWordInto(&buf, tok.Bytes); err != nil {
				return Arg{}, 0, err
			}
			tokenCount++
		default:
			buf.Write(tok.Bytes)
			tokenCount++
		}
	}
}

// expandWordInto expands a Word token the same way expandWord does, but
// writes plain (non-macro) text into an argument-collection buffer
// instead of the diversion engine. A macro invocation's result is pushed
// back onto the shared input stack by expandMacro and is then rescanned
// by expandArgument's own token loop on its next iteration — exactly the
// same rescan path the top-level expand_all_input loop uses, so nested
// macro calls, commas, and parens inside the expansion are recognized
// correctly instead of being drained as opaque bytes.
func (e *Engine) expandWordInto(buf *bytes.Buffer, raw []byte) error {
	name := string(stripEscapePrefix(e.Ctx, raw))
	def, ok := e.Ctx.Symtab.Lookup(name)
	if !ok {
		buf.Write(raw)
		return nil
	}
	peeked, res, _ := e.In.PeekChar()
	hasOpen := res == input.ResultByte && e.Ctx.Syntax.Base(peeked) == syntax.Open
	if def.BlindIfNoArgs && !hasOpen {
		buf.Write(raw)
		return nil
	}
	return e.expandMacro(name, def, hasOpen)
}

func (e *Engine) finishArgument(text []byte, ref *lexer.MacroRefData, tokenCount int) Arg {
	if ref != nil && tokenCount == 1 {
		return Arg{Kind: ArgMacroRef, Ref: ref}
	}
	cp := make([]byte, len(text))
	copy(cp, text)
	return Arg{Kind: ArgText, Text: cp}
}

func (e *Engine) skipLeadingSpace() {
	for {
		b, res, _ := e.In.PeekChar()
		if res != input.ResultByte || e.Ctx.Syntax.Base(b) != syntax.Space {
			return
		}
		_, _, _ = e.In.NextChar()
	}
}

func (e *Engine) traceCall(call CallInfo, argv *Argv, phase string) {
	if !e.Ctx.DebugEnabled(gm4ctx.DebugTrace) && !call.Traced {
		return
	}
	if e.Ctx.DebugStream == nil {
		return
	}
	fmt.Fprintf(e.Ctx.DebugStream, "%s:%d: (%d) %s: %s(", call.File, call.Line, call.NestingLevel, phase, call.Name)
	for i := 1; i < argv.Argc(); i++ {
		if i > 1 {
			fmt.Fprint(e.Ctx.DebugStream, ",")
		}
		fmt.Fprintf(e.Ctx.DebugStream, "%s%s%s", e.Ctx.Quote.LQuote, argv.At(i).Bytes(), e.Ctx.Quote.RQuote)
	}
	fmt.Fprintln(e.Ctx.DebugStream, ")")
}
