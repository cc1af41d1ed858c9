// Package frozen declares gm4's frozen-state file contract (spec.md §6,
// SPEC_FULL.md §4.13): GNU m4's `-F`/`-R` flags serialize and restore
// interpreter state, so a long-running m4 session can resume without
// re-running the text that built up its state. gm4's LineFormat saves the
// quote/comment delimiters and every text macro definition; it does not
// save the syntax table, builtin bindings or diversion contents.
//
// spec.md treats the on-disk format as an external contract rather than a
// core responsibility, so gm4 declares it as a pair of interfaces and
// ships one concrete line-oriented implementation — the same shape as the
// teacher's loader package declaring and implementing one concrete
// object-format reader rather than a family of formats.
package frozen

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/macroexp/gm4/gm4ctx"
	"github.com/macroexp/gm4/symtab"
)

// FormatVersion is the version header written by Writer and validated by
// Reader; an unrecognized version is a fatal error (spec.md §7's fatal
// class), not a silently-ignored mismatch.
const FormatVersion = 1

// Writer serializes a Context's restorable state to a frozen-state file.
type Writer interface {
	WriteFrozen(w io.Writer, ctx *gm4ctx.Context) error
}

// Reader restores a Context's state from a frozen-state file previously
// produced by a Writer.
type Reader interface {
	ReadFrozen(r io.Reader, ctx *gm4ctx.Context) error
}

// LineFormat is gm4's default frozen-state format: one directive per line,
// a leading version header, macro bodies length-prefixed so embedded
// newlines round-trip without ambiguity.
type LineFormat struct{}

var (
	_ Writer = LineFormat{}
	_ Reader = LineFormat{}
)

// WriteFrozen implements Writer.
func (LineFormat) WriteFrozen(w io.Writer, ctx *gm4ctx.Context) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "gm4frozen %d\n", FormatVersion)
	fmt.Fprintf(bw, "Q%d,%d %s%s\n", len(ctx.Quote.LQuote), len(ctx.Quote.RQuote), ctx.Quote.LQuote, ctx.Quote.RQuote)
	fmt.Fprintf(bw, "C%d,%d %s%s\n", len(ctx.Comment.BComm), len(ctx.Comment.EComm), ctx.Comment.BComm, ctx.Comment.EComm)

	var names []string
	ctx.Symtab.Iterate(func(name string, sym *symtab.Symbol) {
		names = append(names, name)
	})
	for _, name := range names {
		sym := ctx.Symtab.LookupSymbol(name)
		if sym == nil {
			continue
		}
		for i := sym.Depth() - 1; i >= 0; i-- {
			def := sym.At(i)
			if def == nil || def.Kind != symtab.DefText {
				continue // builtin/indirect definitions are not frozen, matching GNU m4
			}
			fmt.Fprintf(bw, "D%d,%d %s%s\n", len(name), len(def.Text), name, def.Text)
		}
	}
	fmt.Fprintln(bw, "F")
	return bw.Flush()
}

// ReadFrozen implements Reader: it re-establishes quotes/comments and
// pushdef's every saved macro body in file order, so the definition stack
// order written by WriteFrozen (bottom-first) is restored with the
// topmost definition on top again.
func (LineFormat) ReadFrozen(r io.Reader, ctx *gm4ctx.Context) error {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("frozen: cannot read header: %w", err)
	}
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(header), "gm4frozen %d", &version); err != nil {
		return fmt.Errorf("frozen: malformed header %q", header)
	}
	if version != FormatVersion {
		return fmt.Errorf("frozen: unsupported format version %d", version)
	}

	type pending struct{ name, text string }
	var defs []pending

	for {
		line, err := br.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("frozen: unexpected end of file (missing F record)")
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}
		// A Q/C/D payload may itself contain newlines: keep reading lines
		// until it holds as many bytes as its length header announces.
		if sp := strings.IndexByte(line, ' '); sp > 0 && strings.IndexByte("QCD", line[0]) >= 0 {
			var la, lb int
			if _, err := fmt.Sscanf(line[1:sp], "%d,%d", &la, &lb); err == nil {
				for len(line)-sp-1 < la+lb {
					more, err := br.ReadString('\n')
					if more == "" && err != nil {
						break
					}
					line += "\n" + strings.TrimSuffix(more, "\n")
				}
			}
		}
		kind := line[0]
		rest := line[1:]
		switch kind {
		case 'F':
			// WriteFrozen emits each symbol's stack bottom-first, so
			// pushdef'ing back in the same (file) order reconstructs the
			// original stack: the last one pushed (written last) ends up
			// on top again.
			for _, d := range defs {
				ctx.Symtab.Pushdef(d.name, &symtab.Definition{Kind: symtab.DefText, Text: d.text})
			}
			return nil
		case 'Q':
			lq, rq, err := readTwoLengthPrefixed(rest)
			if err != nil {
				return fmt.Errorf("frozen: bad Q record: %w", err)
			}
			ctx.SetQuotes(lq, rq)
		case 'C':
			bc, ec, err := readTwoLengthPrefixed(rest)
			if err != nil {
				return fmt.Errorf("frozen: bad C record: %w", err)
			}
			ctx.SetComments(bc, ec)
		case 'D':
			name, text, err := readTwoLengthPrefixed(rest)
			if err != nil {
				return fmt.Errorf("frozen: bad D record: %w", err)
			}
			defs = append(defs, pending{name: name, text: text})
		default:
			return fmt.Errorf("frozen: unknown record kind %q", kind)
		}
	}
}

// readTwoLengthPrefixed parses "<lenA>,<lenB> <payload>" where payload is
// exactly lenA+lenB bytes, and splits it at lenA.
func readTwoLengthPrefixed(rest string) (a, b string, err error) {
	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		return "", "", fmt.Errorf("missing length/payload separator")
	}
	lens := rest[:sp]
	payload := rest[sp+1:]
	comma := strings.IndexByte(lens, ',')
	if comma < 0 {
		return "", "", fmt.Errorf("missing length pair separator")
	}
	la, err := strconv.Atoi(lens[:comma])
	if err != nil {
		return "", "", err
	}
	lb, err := strconv.Atoi(lens[comma+1:])
	if err != nil {
		return "", "", err
	}
	if len(payload) != la+lb {
		return "", "", fmt.Errorf("payload length %d does not match header %d+%d", len(payload), la, lb)
	}
	return payload[:la], payload[la:], nil
}
