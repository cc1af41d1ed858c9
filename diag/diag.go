// Package diag provides position-tagged diagnostics for gm4: fatal errors,
// warnings, and the error-list bookkeeping the driver needs to decide an
// exit code. Modeled on the teacher's parser/errors.go (Position, Error,
// Warning, ErrorList), generalized from assembly source positions to the
// byte-stream file/line positions the lexer tracks.
package diag

import (
	"fmt"
	"strings"
)

// Position identifies a location in the input stream.
type Position struct {
	File string
	Line int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("line %d", p.Line)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Kind classifies a diagnostic per spec.md §7.
type Kind int

const (
	// KindFatal unwinds all input frames and exits non-zero.
	KindFatal Kind = iota
	// KindWarning prints to stderr and allows execution to continue.
	KindWarning
)

func (k Kind) String() string {
	if k == KindFatal {
		return "error"
	}
	return "warning"
}

// Diag is a single fatal error or warning, normally attributed to a
// position in the input (the "current input file and line" spec.md §7
// requires on every user-visible failure); Pos may be left empty, and
// Format then omits it.
type Diag struct {
	Kind    Kind
	Pos     Position
	Message string
}

func (d *Diag) Error() string {
	return d.Message
}

// Format renders the diagnostic the way gm4's driver prints it to stderr:
// "progname: file:line: error: message".
func (d *Diag) Format(progname string) string {
	var sb strings.Builder
	sb.WriteString(progname)
	sb.WriteString(": ")
	if d.Pos.File != "" || d.Pos.Line != 0 {
		sb.WriteString(d.Pos.String())
		sb.WriteString(": ")
	}
	sb.WriteString(d.Kind.String())
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	return sb.String()
}

// Fatalf builds a fatal diagnostic.
func Fatalf(pos Position, format string, args ...any) *Diag {
	return &Diag{Kind: KindFatal, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning diagnostic.
func Warnf(pos Position, format string, args ...any) *Diag {
	return &Diag{Kind: KindWarning, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// List collects diagnostics emitted over the lifetime of a run, the way
// parser.ErrorList does, so the driver can compute a final exit code
// (warnings-as-errors still exits non-zero, but keeps running: spec.md §7).
type List struct {
	items           []*Diag
	WarningsAsError bool
	SuppressWarn    bool
}

// Add records a diagnostic. Warnings are dropped entirely when SuppressWarn
// is set, matching the `-Q` CLI flag's contract (spec.md §6).
func (l *List) Add(d *Diag) {
	if d.Kind == KindWarning && l.SuppressWarn {
		return
	}
	l.items = append(l.items, d)
}

// Items returns every recorded diagnostic in emission order.
func (l *List) Items() []*Diag { return l.items }

// HasFatal reports whether a fatal error was recorded.
func (l *List) HasFatal() bool {
	for _, d := range l.items {
		if d.Kind == KindFatal {
			return true
		}
	}
	return false
}

// ExitCode computes the process exit status per spec.md §6/§7: 0 on
// success, and 1 both for fatal errors and when a warning fired under
// -E (warnings-as-errors).
func (l *List) ExitCode() int {
	if l.HasFatal() {
		return 1
	}
	if l.WarningsAsError {
		for _, d := range l.items {
			if d.Kind == KindWarning {
				return 1
			}
		}
	}
	return 0
}
