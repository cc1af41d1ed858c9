// Package gm4ctx bundles the per-interpreter state every builtin and
// engine stage operates on (spec.md §3 "Context", §4.10): the syntax
// table, symbol table, output engine, quote/comment delimiters, dialect
// options, and current position — threaded through by reference instead
// of living as process-wide globals.
//
// Grounded on the teacher's config.Config (a single struct bundling every
// tunable the rest of the program reads), generalized from "load once at
// startup, read-only thereafter" to a value every builtin can also mutate
// at runtime (changequote, changecom, divert, debugmode all write through
// this struct).
package gm4ctx

import (
	"io"

	"github.com/macroexp/gm4/config"
	"github.com/macroexp/gm4/diag"
	"github.com/macroexp/gm4/output"
	"github.com/macroexp/gm4/symtab"
	"github.com/macroexp/gm4/syntax"
)

// DebugFlag bits select what `debugmode`/`-d` report (spec.md §6).
type DebugFlag int

const (
	DebugArgs    DebugFlag = 1 << iota // -a: macro arguments
	DebugTrace                        // -t: trace every call regardless of traceon
	DebugExpansion                    // -e: expansion text
	DebugQuote                        // -q: show current quotes in trace
	DebugInput                        // -i: input line numbers
	DebugCall                         // -c: call-site nesting level
	DebugModule                       // -m: originating module name
	DebugLine                         // -l: show line on every output line
	DebugFile                         // -f: show file on every output line
	DebugPath                         // -p: path search messages
	DebugVoid                         // -V: all of the above ("V" in GNU m4)
)

// Options holds the dialect/runtime switches spec.md §4.10 groups under
// "options" (GNU extensions on/off, discard comments, interactive, sync
// output, prefix-all-builtins, suppress-warnings, warning-is-error,
// debug-flags bitmask, max-debug-arg-length, nesting-limit).
type Options struct {
	GNUExtensions     bool
	DiscardComments   bool
	Interactive       bool
	SyncOutput        bool
	PrefixAllBuiltins bool
	SuppressWarnings  bool
	WarningIsError    bool
	DebugFlags        DebugFlag
	MaxDebugArgLength int
	NestingLimit      int
}

// FromConfig builds Options from a loaded config.Config, the layer CLI
// flags then override (SPEC_FULL.md §4.11).
func FromConfig(cfg *config.Config) Options {
	return Options{
		GNUExtensions:     cfg.Dialect.GNUExtensions,
		DiscardComments:   cfg.Dialect.DiscardComments,
		Interactive:       cfg.Dialect.Interactive,
		SyncOutput:        cfg.Output.SyncLines,
		PrefixAllBuiltins: cfg.Output.PrefixBuiltins,
		NestingLimit:      cfg.Limits.NestingLimit,
		MaxDebugArgLength: cfg.Limits.MaxDebugArgLength,
	}
}

// Quotes holds the current quote delimiter pair (spec.md §3 "Quote
// delimiters"), defaulting to backquote/quote.
type Quotes struct {
	LQuote string
	RQuote string
}

// Comments holds the current comment delimiter pair (spec.md §3 "Comment
// delimiters"), defaulting to "#"/newline.
type Comments struct {
	BComm string
	EComm string
}

// Context is the single value passed by reference into every builtin and
// engine stage (spec.md §4.10).
type Context struct {
	Syntax *syntax.Table
	Symtab *symtab.Table
	Output *output.Engine
	Diags  *diag.List

	Options Options

	Quote   Quotes
	Comment Comments
	// QuoteAge increments on every quote or comment delimiter change, so
	// cached argument-collection state can cheaply detect staleness
	// (spec.md §9 "Quote age").
	QuoteAge int

	CurFile string
	CurLine int

	// DebugStream receives `debugmode`/`traceon` trace output; nil
	// disables tracing entirely regardless of DebugFlags.
	DebugStream io.Writer

	// TraceBuf is a scratch buffer for trace output. The expansion engine
	// writes its trace lines straight to DebugStream and does not use it.
	TraceBuf []byte

	// ExitRequested and ExitCode implement `m4exit`'s "unwind cleanly,
	// don't os.Exit from inside a builtin" contract (spec.md §9
	// "Exception-like control flow").
	ExitRequested bool
	ExitCode      int

	ProgramName string
}

// New creates a Context with gm4's default quotes, comments, and syntax
// table, ready to run under the given Options.
func New(opts Options, progname string, stdout io.Writer) *Context {
	c := &Context{
		Syntax:      syntax.NewDefault(),
		Symtab:      symtab.New(),
		Output:      output.New(stdout),
		Diags:       &diag.List{WarningsAsError: opts.WarningIsError, SuppressWarn: opts.SuppressWarnings},
		Options:     opts,
		CurFile:     "",
		CurLine:     0,
		ProgramName: progname,
	}
	c.Output.SyncLines = opts.SyncOutput
	// Route the defaults through SetQuotes/SetComments so the syntax
	// table's single-byte mask bits are populated from the start, not just
	// on the first later change.
	c.SetQuotes("`", "'")
	c.SetComments("#", "\n")
	c.QuoteAge = 0
	return c
}

// SetQuotes installs new quote delimiters, clearing the prior single-byte
// mask optimization and re-applying it if the new delimiters are each one
// byte long (spec.md §4.1 "changing quote/comment delimiters clears all
// previous LQuote|RQuote mask bits before setting new ones").
func (c *Context) SetQuotes(lq, rq string) {
	c.Syntax.ClearMaskAll(syntax.MaskLQuote | syntax.MaskRQuote)
	c.Quote = Quotes{LQuote: lq, RQuote: rq}
	if len(lq) == 1 {
		c.Syntax.AddMask(lq[0], syntax.MaskLQuote)
	}
	if len(rq) == 1 {
		c.Syntax.AddMask(rq[0], syntax.MaskRQuote)
	}
	c.QuoteAge++
}

// SetComments installs new comment delimiters, with the same single-byte
// mask-bit optimization as SetQuotes.
func (c *Context) SetComments(bc, ec string) {
	c.Syntax.ClearMaskAll(syntax.MaskBComm | syntax.MaskEComm)
	c.Comment = Comments{BComm: bc, EComm: ec}
	if len(bc) == 1 {
		c.Syntax.AddMask(bc[0], syntax.MaskBComm)
	}
	if len(ec) == 1 {
		c.Syntax.AddMask(ec[0], syntax.MaskEComm)
	}
	c.QuoteAge++
}

// SingleByteFastPath reports whether both quote delimiters and both
// comment delimiters are exactly one byte long, letting the lexer use the
// base-category-only fast path (spec.md §4.3 "Single-byte fast paths").
func (c *Context) SingleByteFastPath() bool {
	return len(c.Quote.LQuote) == 1 && len(c.Quote.RQuote) == 1 &&
		len(c.Comment.BComm) == 1 && len(c.Comment.EComm) == 1
}

// Warnf records a warning diagnostic at the current position.
func (c *Context) Warnf(format string, args ...any) {
	c.Diags.Add(diag.Warnf(c.Pos(), format, args...))
}

// Fatalf records a fatal diagnostic at the current position.
func (c *Context) Fatalf(format string, args ...any) *diag.Diag {
	d := diag.Fatalf(c.Pos(), format, args...)
	c.Diags.Add(d)
	return d
}

// Pos returns the current input position, for diagnostics.
func (c *Context) Pos() diag.Position {
	return diag.Position{File: c.CurFile, Line: c.CurLine}
}

// DebugEnabled reports whether any of the given flags is currently set and
// a debug stream is attached (spec.md §6 `-d`/`debugmode`).
func (c *Context) DebugEnabled(flags DebugFlag) bool {
	return c.DebugStream != nil && c.Options.DebugFlags&flags != 0
}
