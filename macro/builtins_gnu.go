package macro

import (
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/macroexp/gm4/gm4ctx"
	"github.com/macroexp/gm4/symtab"
	"github.com/macroexp/gm4/syntax"
)

// registerGNUBuiltins installs gm4's GNU m4 compatible extensions
// (spec.md §6 "GNU extensions"), layered on top of the reference set.
func registerGNUBuiltins(e *Engine) {
	e.register("patsubst", 2, 3, false, true, biPatsubst)
	e.register("regexp", 2, 3, false, true, biRegexp)
	e.register("esyscmd", 1, 1, false, true, biEsyscmd)
	e.register("changesyntax", 0, -1, false, false, biChangesyntax)
	e.register("symbols", 0, -1, false, false, biSymbols)
	e.register("debugmode", 0, 1, false, false, biDebugmode)
	e.register("debugfile", 0, 1, false, false, biDebugfile)
}

// translateM4Regexp rewrites a GNU m4 extended-regexp pattern's backslash
// group syntax (\(...\)) to the Go regexp package's unescaped (...),
// since gm4 exposes POSIX ERE-style patterns (spec.md §6) but regexp/Go
// wants RE2 Perl-ish syntax. Only the grouping metacharacters need
// translating; the rest of ERE syntax is accepted directly by regexp.
func translateM4Regexp(pattern string) string {
	var out strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			switch pattern[i+1] {
			case '(', ')', '|', '{', '}':
				out.WriteByte(pattern[i+1])
				i++
				continue
			}
		}
		out.WriteByte(pattern[i])
	}
	return out.String()
}

func biPatsubst(e *Engine, argv *Argv) {
	s := string(argv.At(1).Bytes())
	pat := translateM4Regexp(string(argv.At(2).Bytes()))
	repl := ""
	if argv.Argc() > 3 {
		repl = string(argv.At(3).Bytes())
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		e.Ctx.Warnf("patsubst: bad regexp `%s': %v", pat, err)
		return
	}
	goRepl := translateReplacement(repl)
	e.pushText([]byte(re.ReplaceAllString(s, goRepl)))
}

// translateReplacement rewrites m4's \1..\9 backreference syntax in a
// replacement string to Go's ${1}..${9} syntax.
func translateReplacement(repl string) string {
	var out strings.Builder
	for i := 0; i < len(repl); i++ {
		if repl[i] == '\\' && i+1 < len(repl) && repl[i+1] >= '0' && repl[i+1] <= '9' {
			out.WriteString("${")
			out.WriteByte(repl[i+1])
			out.WriteByte('}')
			i++
			continue
		}
		if repl[i] == '$' {
			out.WriteString("$$")
			continue
		}
		out.WriteByte(repl[i])
	}
	return out.String()
}

func biRegexp(e *Engine, argv *Argv) {
	s := string(argv.At(1).Bytes())
	pat := translateM4Regexp(string(argv.At(2).Bytes()))
	re, err := regexp.Compile(pat)
	if err != nil {
		e.Ctx.Warnf("regexp: bad regexp `%s': %v", pat, err)
		return
	}
	if argv.Argc() <= 3 {
		loc := re.FindStringIndex(s)
		if loc == nil {
			e.pushText([]byte("-1"))
			return
		}
		e.pushText([]byte(strconv.Itoa(loc[0])))
		return
	}
	repl := translateReplacement(string(argv.At(3).Bytes()))
	m := re.FindStringSubmatchIndex(s)
	if m == nil {
		e.pushText(nil)
		return
	}
	e.pushText(re.ExpandString(nil, repl, s, m))
}

func biEsyscmd(e *Engine, argv *Argv) {
	cmd := exec.Command("/bin/sh", "-c", string(argv.At(1).Bytes())) // #nosec G204 -- esyscmd is deliberately a shell-out builtin
	out, err := cmd.Output()
	e.lastSysval = exitCode(err)
	e.pushText(out)
}

// biChangesyntax implements GNU m4's `changesyntax': each argument is a
// category letter (syntax.Category.Letter encoding) optionally followed by
// the bytes to assign to it.
func biChangesyntax(e *Engine, argv *Argv) {
	for i := 1; i < argv.Argc(); i++ {
		spec := argv.At(i).Bytes()
		if len(spec) == 0 {
			continue
		}
		cat, ok := syntax.CategoryFromLetter(spec[0])
		if !ok {
			e.Ctx.Warnf("changesyntax: unknown category `%c'", spec[0])
			continue
		}
		if len(spec) > 1 {
			e.Ctx.Syntax.Set(cat, spec[1:])
		}
	}
}

// biSymbols implements GNU m4's `symbols': lists every currently defined
// name, quoted, comma-separated, in sorted order (the reference
// implementation's order is unspecified; sorted gives reproducible output).
func biSymbols(e *Engine, argv *Argv) {
	var names []string
	e.Ctx.Symtab.Iterate(func(name string, sym *symtab.Symbol) {
		names = append(names, name)
	})
	sort.Strings(names)

	var sb strings.Builder
	for i, n := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(e.Ctx.Quote.LQuote)
		sb.WriteString(n)
		sb.WriteString(e.Ctx.Quote.RQuote)
	}
	e.pushText([]byte(sb.String()))
}

func biDebugmode(e *Engine, argv *Argv) {
	if argv.Argc() == 1 {
		e.Ctx.Options.DebugFlags = 0
		return
	}
	flags := string(argv.At(1).Bytes())
	var bits gm4ctx.DebugFlag
	for _, c := range flags {
		switch c {
		case 'a':
			bits |= gm4ctx.DebugArgs
		case 't':
			bits |= gm4ctx.DebugTrace
		case 'e':
			bits |= gm4ctx.DebugExpansion
		case 'q':
			bits |= gm4ctx.DebugQuote
		case 'i':
			bits |= gm4ctx.DebugInput
		case 'c':
			bits |= gm4ctx.DebugCall
		case 'm':
			bits |= gm4ctx.DebugModule
		case 'l':
			bits |= gm4ctx.DebugLine
		case 'f':
			bits |= gm4ctx.DebugFile
		case 'p':
			bits |= gm4ctx.DebugPath
		case 'V':
			bits |= gm4ctx.DebugVoid | (gm4ctx.DebugVoid - 1) // every flag bit
		}
	}
	e.Ctx.Options.DebugFlags = bits
}

func biDebugfile(e *Engine, argv *Argv) {
	if argv.Argc() == 1 {
		e.Ctx.DebugStream = nil
		return
	}
	name := string(argv.At(1).Bytes())
	f, err := os.Create(name) // #nosec G304 -- debugfile's target path comes from the macro stream by design
	if err != nil {
		e.Ctx.Warnf("debugfile: %v", err)
		return
	}
	e.Ctx.DebugStream = f
}
