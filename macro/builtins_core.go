package macro

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/macroexp/gm4/builtin"
	"github.com/macroexp/gm4/eval"
	"github.com/macroexp/gm4/input"
	"github.com/macroexp/gm4/lexer"
	"github.com/macroexp/gm4/symtab"
)

func (e *Engine) register(name string, minArgs, maxArgs int, acceptsArgs, blind bool, fn Func) {
	e.Builtins.Register(&builtin.Entry{
		Name:             name,
		Func:             fn,
		MinArgs:          minArgs,
		MaxArgs:          maxArgs,
		AcceptsMacroArgs: acceptsArgs,
		BlindIfNoArgs:    blind,
	})
}

// registerCoreBuiltins installs the reference builtin set from spec.md §6.
func registerCoreBuiltins(e *Engine) {
	e.register("define", 1, 2, true, true, biDefine)
	e.register("undefine", 1, -1, false, true, biUndefine)
	e.register("pushdef", 1, 2, true, true, biPushdef)
	e.register("popdef", 1, -1, false, true, biPopdef)
	e.register("defn", 1, -1, false, true, biDefn)
	e.register("ifdef", 2, 3, false, true, biIfdef)
	e.register("ifelse", 1, -1, false, true, biIfelse)
	e.register("len", 1, 1, false, true, biLen)
	e.register("index", 2, 2, false, true, biIndex)
	e.register("substr", 2, 3, false, true, biSubstr)
	e.register("translit", 2, 3, false, true, biTranslit)
	e.register("include", 1, 1, false, true, biInclude)
	e.register("sinclude", 1, 1, false, true, biSinclude)
	e.register("divert", 0, 1, false, false, biDivert)
	e.register("divnum", 0, 0, false, false, biDivnum)
	e.register("undivert", 0, -1, false, false, biUndivert)
	e.register("incr", 1, 1, false, true, biIncr)
	e.register("decr", 1, 1, false, true, biDecr)
	e.register("eval", 1, 3, false, true, biEval)
	e.register("dnl", 0, 0, false, false, biDnl)
	e.register("shift", 0, -1, false, false, biShift)
	e.register("changequote", 0, 2, false, false, biChangequote)
	e.register("changecom", 0, 2, false, false, biChangecom)
	e.register("m4exit", 0, 1, false, false, biM4exit)
	e.register("m4wrap", 1, -1, false, true, biM4wrap)
	e.register("traceon", 0, -1, false, false, biTraceon)
	e.register("traceoff", 0, -1, false, false, biTraceoff)
	e.register("errprint", 1, -1, false, true, biErrprint)
	e.register("dumpdef", 0, -1, false, false, biDumpdef)
	e.register("__file__", 0, 0, false, false, biFile)
	e.register("__line__", 0, 0, false, false, biLine)
	e.register("format", 1, -1, false, true, biFormat)
	e.register("maketemp", 1, 1, false, true, biMaketemp)
	e.register("syscmd", 1, 1, false, true, biSyscmd)
	e.register("sysval", 0, 0, false, false, biSysval)
	e.register("indir", 1, -1, false, true, biIndir)
	e.register("builtin", 1, -1, false, true, biBuiltin)
}

func biDefine(e *Engine, argv *Argv) {
	name := string(argv.At(1).Bytes())
	def := argDefinition(e, argv.At(2))
	e.Ctx.Symtab.Define(name, def)
}

func biUndefine(e *Engine, argv *Argv) {
	for i := 1; i < argv.Argc(); i++ {
		e.Ctx.Symtab.Undefine(string(argv.At(i).Bytes()))
	}
}

func biPushdef(e *Engine, argv *Argv) {
	name := string(argv.At(1).Bytes())
	def := argDefinition(e, argv.At(2))
	e.Ctx.Symtab.Pushdef(name, def)
}

func biPopdef(e *Engine, argv *Argv) {
	for i := 1; i < argv.Argc(); i++ {
		e.Ctx.Symtab.Popdef(string(argv.At(i).Bytes()))
	}
}

// argDefinition builds a Definition from a define/pushdef 2nd argument,
// preserving a bare MacroRef argument's builtin identity the way `defn`
// requires (spec.md §4.5 step 4).
func argDefinition(e *Engine, a Arg) *symtab.Definition {
	if a.Kind == ArgMacroRef {
		return &symtab.Definition{
			Kind:    symtab.DefBuiltin,
			Builtin: e.refToEntry(a.Ref),
		}
	}
	return &symtab.Definition{Kind: symtab.DefText, Text: string(a.Bytes())}
}

// refToEntry rebuilds a builtin.Entry for a `defn`-preserved MacroRef,
// the frozen-reference shape a `defn` argument collapses to (spec.md §4.2
// FrozenBuiltin). It looks the name back up in the builtin table rather
// than reconstructing from the lexer's MacroRefData, which carries only
// Name/Func/MinArgs/MaxArgs and would otherwise silently drop
// AcceptsMacroArgs/BlindIfNoArgs, losing the builtin's blind-call
// behavior when it is later invoked bare (without parens) under its new
// name.
func (e *Engine) refToEntry(ref *lexer.MacroRefData) *builtin.Entry {
	if ref == nil {
		return nil
	}
	if entry, ok := e.Builtins.Lookup(ref.Name); ok {
		return entry
	}
	return &builtin.Entry{
		Name:    ref.Name,
		Func:    ref.Func,
		MinArgs: ref.MinArgs,
		MaxArgs: ref.MaxArgs,
	}
}

func biDefn(e *Engine, argv *Argv) {
	for i := 1; i < argv.Argc(); i++ {
		name := string(argv.At(i).Bytes())
		def, ok := e.Ctx.Symtab.Lookup(name)
		if !ok {
			continue
		}
		if def.Kind == symtab.DefBuiltin {
			e.In.PushBuiltin(def.Builtin)
		} else {
			b := e.In.PushStringBegin()
			b.WriteString(e.Ctx.Quote.LQuote)
			b.WriteString(def.Text)
			b.WriteString(e.Ctx.Quote.RQuote)
			b.Finish()
		}
	}
}

func biIfdef(e *Engine, argv *Argv) {
	_, ok := e.Ctx.Symtab.Lookup(string(argv.At(1).Bytes()))
	var chosen []byte
	if ok {
		chosen = argv.At(2).Bytes()
	} else if argv.Argc() > 3 {
		chosen = argv.At(3).Bytes()
	}
	e.pushText(chosen)
}

func biIfelse(e *Engine, argv *Argv) {
	n := argv.Argc() - 1
	i := 1
	for i+2 <= n {
		a, b, then := argv.At(i).Bytes(), argv.At(i+1).Bytes(), argv.At(i+2)
		if bytes.Equal(a, b) {
			e.pushText(then.Bytes())
			return
		}
		i += 3
	}
	switch {
	case n == 1:
		// ifelse(x) with no comparison pair and no default: no output.
	case i == n:
		e.pushText(argv.At(i).Bytes())
	case n > 0 && i < n:
		e.Ctx.Warnf("too few arguments to builtin `ifelse'")
	}
}

func biLen(e *Engine, argv *Argv) {
	e.pushText([]byte(strconv.Itoa(len(argv.At(1).Bytes()))))
}

func biIndex(e *Engine, argv *Argv) {
	hay := string(argv.At(1).Bytes())
	needle := string(argv.At(2).Bytes())
	e.pushText([]byte(strconv.Itoa(strings.Index(hay, needle))))
}

func biSubstr(e *Engine, argv *Argv) {
	s := argv.At(1).Bytes()
	start, err := strconv.Atoi(string(argv.At(2).Bytes()))
	if err != nil || start < 0 || start >= len(s) {
		if start >= len(s) {
			e.pushText(nil)
			return
		}
		start = 0
	}
	length := len(s) - start
	if argv.Argc() > 3 {
		if n, err := strconv.Atoi(string(argv.At(3).Bytes())); err == nil {
			length = n
		}
	}
	if length < 0 {
		length = 0
	}
	end := start + length
	if end > len(s) {
		end = len(s)
	}
	e.pushText(s[start:end])
}

func biTranslit(e *Engine, argv *Argv) {
	s := argv.At(1).Bytes()
	from := argv.At(2).Bytes()
	to := argv.At(3).Bytes()

	mapping := make(map[byte]int, len(from))
	for i, b := range from {
		mapping[b] = i
	}

	var out []byte
	for _, b := range s {
		idx, inFrom := mapping[b]
		if !inFrom {
			out = append(out, b)
			continue
		}
		if idx < len(to) {
			out = append(out, to[idx])
		}
		// else: byte deleted (translit's delete-if-no-replacement contract)
	}
	e.pushText(out)
}

// resolveIncludePath implements spec.md §6's "search for include(file)
// after the current working directory" rule: the literal path first, then
// each -I directory (and M4PATH entry) in order.
func (e *Engine) resolveIncludePath(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	for _, dir := range e.IncludePaths {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return path
}

func (e *Engine) includeFile(path string, silent bool) {
	path = e.resolveIncludePath(path)
	f, err := os.Open(path) // #nosec G304 -- path comes from the macro stream by design
	if err != nil {
		if silent {
			return
		}
		e.Ctx.Fatalf("cannot open `%s': %v", path, err)
		return
	}
	e.In.PushFile(f, path)
}

func biInclude(e *Engine, argv *Argv) {
	e.includeFile(string(argv.At(1).Bytes()), false)
}

func biSinclude(e *Engine, argv *Argv) {
	e.includeFile(string(argv.At(1).Bytes()), true)
}

func biDivert(e *Engine, argv *Argv) {
	n := 0
	if argv.Argc() > 1 {
		n, _ = strconv.Atoi(string(argv.At(1).Bytes()))
	}
	e.Ctx.Output.Select(n)
}

func biDivnum(e *Engine, argv *Argv) {
	e.pushText([]byte(strconv.Itoa(e.Ctx.Output.Current())))
}

func biUndivert(e *Engine, argv *Argv) {
	if argv.Argc() == 1 {
		e.Ctx.Output.Undivert()
		return
	}
	nums := make([]int, 0, argv.Argc()-1)
	for i := 1; i < argv.Argc(); i++ {
		n, err := strconv.Atoi(string(argv.At(i).Bytes()))
		if err == nil {
			nums = append(nums, n)
		}
	}
	e.Ctx.Output.Undivert(nums...)
}

func biIncr(e *Engine, argv *Argv) {
	n, err := strconv.Atoi(string(argv.At(1).Bytes()))
	if err != nil {
		e.Ctx.Warnf("non-numeric argument to `incr'")
		return
	}
	e.pushText([]byte(strconv.Itoa(n + 1)))
}

func biDecr(e *Engine, argv *Argv) {
	n, err := strconv.Atoi(string(argv.At(1).Bytes()))
	if err != nil {
		e.Ctx.Warnf("non-numeric argument to `decr'")
		return
	}
	e.pushText([]byte(strconv.Itoa(n - 1)))
}

func biEval(e *Engine, argv *Argv) {
	radix := 10
	width := 0
	if argv.Argc() > 2 {
		if r, err := strconv.Atoi(string(argv.At(2).Bytes())); err == nil {
			radix = r
		}
	}
	if argv.Argc() > 3 {
		if w, err := strconv.Atoi(string(argv.At(3).Bytes())); err == nil {
			width = w
		}
	}
	v, err := eval.EvalString(string(argv.At(1).Bytes()))
	if err != nil {
		e.Ctx.Warnf("%v", err)
		return
	}
	s, err := eval.Format(v, radix, width)
	if err != nil {
		e.Ctx.Warnf("%v", err)
		return
	}
	e.pushText([]byte(s))
}

func biDnl(e *Engine, argv *Argv) {
	for {
		b, res, _ := e.In.NextChar()
		if res != input.ResultByte || b == '\n' {
			return
		}
	}
}

func biShift(e *Engine, argv *Argv) {
	var out []byte
	for i := 2; i < argv.Argc(); i++ {
		if i > 2 {
			out = append(out, ',')
		}
		out = append(out, e.Ctx.Quote.LQuote...)
		out = append(out, argv.At(i).Bytes()...)
		out = append(out, e.Ctx.Quote.RQuote...)
	}
	e.pushText(out)
}

func biChangequote(e *Engine, argv *Argv) {
	lq, rq := "`", "'"
	if argv.Argc() > 1 {
		lq = string(argv.At(1).Bytes())
	}
	if argv.Argc() > 2 {
		rq = string(argv.At(2).Bytes())
	}
	e.Ctx.SetQuotes(lq, rq)
}

func biChangecom(e *Engine, argv *Argv) {
	if argv.Argc() == 1 {
		e.Ctx.SetComments("", "")
		return
	}
	bc := string(argv.At(1).Bytes())
	ec := "\n"
	if argv.Argc() > 2 {
		ec = string(argv.At(2).Bytes())
	}
	e.Ctx.SetComments(bc, ec)
}

func biM4exit(e *Engine, argv *Argv) {
	code := 0
	if argv.Argc() > 1 {
		code, _ = strconv.Atoi(string(argv.At(1).Bytes()))
	}
	e.Ctx.ExitRequested = true
	e.Ctx.ExitCode = code
}

func biM4wrap(e *Engine, argv *Argv) {
	var buf bytes.Buffer
	for i := 1; i < argv.Argc(); i++ {
		buf.Write(argv.At(i).Bytes())
	}
	e.In.PushWrapup(buf.Bytes())
}

func biTraceon(e *Engine, argv *Argv) {
	if argv.Argc() == 1 {
		e.Ctx.Symtab.Iterate(func(name string, sym *symtab.Symbol) {
			e.Ctx.Symtab.SetTraced(name, true)
		})
		return
	}
	for i := 1; i < argv.Argc(); i++ {
		e.Ctx.Symtab.SetTraced(string(argv.At(i).Bytes()), true)
	}
}

func biTraceoff(e *Engine, argv *Argv) {
	if argv.Argc() == 1 {
		e.Ctx.Symtab.Iterate(func(name string, sym *symtab.Symbol) {
			e.Ctx.Symtab.SetTraced(name, false)
		})
		return
	}
	for i := 1; i < argv.Argc(); i++ {
		e.Ctx.Symtab.SetTraced(string(argv.At(i).Bytes()), false)
	}
}

func biErrprint(e *Engine, argv *Argv) {
	var sb strings.Builder
	for i := 1; i < argv.Argc(); i++ {
		sb.Write(argv.At(i).Bytes())
	}
	fmt.Fprint(os.Stderr, sb.String())
}

func biDumpdef(e *Engine, argv *Argv) {
	dump := func(name string) {
		def, ok := e.Ctx.Symtab.Lookup(name)
		if !ok {
			return
		}
		if def.Kind == symtab.DefBuiltin {
			fmt.Fprintf(os.Stderr, "%s:\t<%s>\n", name, def.Builtin.Name)
		} else {
			fmt.Fprintf(os.Stderr, "%s:\t%s%s%s\n", name, e.Ctx.Quote.LQuote, def.Text, e.Ctx.Quote.RQuote)
		}
	}
	if argv.Argc() == 1 {
		e.Ctx.Symtab.Iterate(func(name string, sym *symtab.Symbol) { dump(name) })
		return
	}
	for i := 1; i < argv.Argc(); i++ {
		dump(string(argv.At(i).Bytes()))
	}
}

func biFile(e *Engine, argv *Argv) {
	e.pushText([]byte(e.Ctx.CurFile))
}

func biLine(e *Engine, argv *Argv) {
	e.pushText([]byte(strconv.Itoa(e.Ctx.CurLine)))
}

func biFormat(e *Engine, argv *Argv) {
	spec := string(argv.At(1).Bytes())
	args := make([]any, 0, argv.Argc()-2)
	for i := 2; i < argv.Argc(); i++ {
		args = append(args, string(argv.At(i).Bytes()))
	}
	out, err := formatString(spec, args)
	if err != nil {
		e.Ctx.Warnf("%v", err)
		return
	}
	e.pushText([]byte(out))
}

func biMaketemp(e *Engine, argv *Argv) {
	pattern := string(argv.At(1).Bytes())
	f, err := os.CreateTemp("", pattern+"*")
	if err != nil {
		e.Ctx.Warnf("cannot create temporary file: %v", err)
		return
	}
	name := f.Name()
	_ = f.Close()
	e.pushText([]byte(name))
}

func biSyscmd(e *Engine, argv *Argv) {
	cmd := exec.Command("/bin/sh", "-c", string(argv.At(1).Bytes())) // #nosec G204 -- syscmd is deliberately a shell-out builtin
	out, err := cmd.Output()
	e.Ctx.Output.WriteBytes(out)
	e.lastSysval = exitCode(err)
}

func biSysval(e *Engine, argv *Argv) {
	e.pushText([]byte(strconv.Itoa(e.lastSysval)))
}

func biIndir(e *Engine, argv *Argv) {
	name := string(argv.At(1).Bytes())
	def, ok := e.Ctx.Symtab.Lookup(name)
	if !ok {
		e.Ctx.Warnf("undefined macro `%s'", name)
		return
	}
	nested := &Argv{Args: argv.Args[1:], QuoteAge: argv.QuoteAge, Call: argv.Call}
	e.dispatchDefinition(name, def, nested)
}

func biBuiltin(e *Engine, argv *Argv) {
	name := string(argv.At(1).Bytes())
	entry, ok := e.Builtins.Lookup(name)
	if !ok {
		e.Ctx.Warnf("undefined builtin `%s'", name)
		return
	}
	nested := &Argv{Args: argv.Args[1:], QuoteAge: argv.QuoteAge, Call: argv.Call}
	_ = e.invokeBuiltin(entry, nested)
}

// dispatchDefinition invokes a definition directly (used by `indir`,
// bypassing expand_macro's nesting-limit/argument-collection steps since
// the arguments are already collected).
func (e *Engine) dispatchDefinition(name string, def *symtab.Definition, argv *Argv) {
	switch def.Kind {
	case symtab.DefBuiltin:
		_ = e.invokeBuiltin(def.Builtin, argv)
	case symtab.DefText:
		out := e.substitute(def.Text, argv)
		e.pushText([]byte(out))
	}
}

// pushText pushes a byte slice back onto the input stack for rescanning,
// the common tail of most text-producing builtins (spec.md §4.5 step 7).
func (e *Engine) pushText(text []byte) {
	if len(text) == 0 {
		return
	}
	b := e.In.PushStringBegin()
	b.WriteString(string(text))
	b.Finish()
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
