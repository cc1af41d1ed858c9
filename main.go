// Command gm4 is a GNU-compatible m4 macro processor (spec.md §1/§6).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/macroexp/gm4/config"
	"github.com/macroexp/gm4/debugger"
	"github.com/macroexp/gm4/frozen"
	"github.com/macroexp/gm4/gm4ctx"
	"github.com/macroexp/gm4/macro"
	"github.com/macroexp/gm4/symtab"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// stringList accumulates repeatable flags (-D, -U, -t, -I) the way
// flag.Value lets a single flag name be given more than once.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var (
		showVersion  = flag.Bool("version", false, "Show version information")
		showHelp     = flag.Bool("help", false, "Show help information")
		debugCLI     = flag.Bool("debug", false, "Start in debugger mode (CLI)")
		tuiMode      = flag.Bool("tui", false, "Start in TUI debugger mode")
		configPath   = flag.String("config", "", "Path to a gm4.toml config file (default: platform config dir)")
		noConfig     = flag.Bool("no-config", false, "Do not load any configuration file")
		dumpSymbols  = flag.Bool("dump-symbols", false, "Dump the symbol table after processing the input")
		symbolsFile  = flag.String("symbols-file", "", "Symbol dump output file (default: stdout)")

		nestingLimit = flag.Int("L", 0, "Set the nesting limit (0 = use config default)")
		maxArgLen    = flag.Int("l", 0, "Set max traced-argument length (0 = unbounded)")
		noGNU        = flag.Bool("G", false, "Disable GNU extensions (operate in POSIX-compatible mode)")
		interactive  = flag.Bool("e", false, "Operate interactively (unbuffered output)")
		suppressWarn = flag.Bool("Q", false, "Suppress warning messages")
		warnAsError  = flag.Bool("E", false, "Treat warnings as errors for exit-code purposes")
		discardComm  = flag.Bool("c", false, "Discard comments instead of passing them through verbatim")
		syncLines    = flag.Bool("s", false, "Enable #line sync output")
		prefixBI     = flag.Bool("P", false, "Prefix all builtin names with m4_")
		debugFlags   = flag.String("d", "", "Debug flags (letters: a,e,q,t,l,f,p,c,i,m,V)")
		debugOut     = flag.String("o", "", "Redirect debug/trace output to this file")
		freezeWrite  = flag.String("F", "", "Write frozen state to this file on exit")
		freezeRead   = flag.String("R", "", "Read frozen state from this file at start")
	)

	var defines, undefines, traces, includes stringList
	flag.Var(&defines, "D", "Predefine name (optionally name=value)")
	flag.Var(&undefines, "U", "Undefine a builtin or predefined name")
	flag.Var(&traces, "t", "Trace name on definition")
	flag.Var(&includes, "I", "Add dir to the include search path")

	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("gm4 %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg := config.DefaultConfig()
	if !*noConfig {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gm4: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	opts := gm4ctx.FromConfig(cfg)
	opts.GNUExtensions = opts.GNUExtensions && !*noGNU
	opts.Interactive = opts.Interactive || *interactive
	opts.SyncOutput = opts.SyncOutput || *syncLines
	opts.PrefixAllBuiltins = opts.PrefixAllBuiltins || *prefixBI
	opts.SuppressWarnings = opts.SuppressWarnings || *suppressWarn
	opts.WarningIsError = opts.WarningIsError || *warnAsError
	opts.DiscardComments = opts.DiscardComments || *discardComm
	if *nestingLimit > 0 {
		opts.NestingLimit = *nestingLimit
	}
	if *maxArgLen > 0 {
		opts.MaxDebugArgLength = *maxArgLen
	}
	if *debugFlags != "" {
		flags, err := parseDebugFlags(*debugFlags)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gm4: %v\n", err)
			os.Exit(1)
		}
		opts.DebugFlags = flags
	}

	ctx := gm4ctx.New(opts, "gm4", os.Stdout)
	ctx.Output.SetMemoryCap(cfg.Diversion.MemoryCapBytes)

	debugOutPath := *debugOut
	if debugOutPath == "" {
		debugOutPath = cfg.Debug.OutputFile
	}
	if opts.DebugFlags != 0 || debugOutPath != "" {
		if debugOutPath == "" {
			ctx.DebugStream = os.Stderr
		} else {
			f, err := os.Create(debugOutPath) // #nosec G304 -- user-provided debug output path
			if err != nil {
				fmt.Fprintf(os.Stderr, "gm4: cannot open debug output %q: %v\n", debugOutPath, err)
				os.Exit(1)
			}
			defer f.Close()
			ctx.DebugStream = f
		}
	}

	eng := macro.New(ctx)
	eng.DefineBuiltins()
	eng.IncludePaths = append(eng.IncludePaths, includes...)
	if mpath := os.Getenv("M4PATH"); mpath != "" {
		eng.IncludePaths = append(eng.IncludePaths, strings.Split(mpath, ":")...)
	}

	for _, name := range undefines {
		ctx.Symtab.Undefine(name)
	}
	for _, spec := range defines {
		name, value, _ := strings.Cut(spec, "=")
		ctx.Symtab.Define(name, &symtab.Definition{Kind: symtab.DefText, Text: value})
	}
	for _, name := range traces {
		ctx.Symtab.SetTraced(name, true)
	}

	if *freezeRead != "" {
		if err := readFrozenFile(*freezeRead, ctx); err != nil {
			fmt.Fprintf(os.Stderr, "gm4: %v\n", err)
			os.Exit(1)
		}
	}

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, a := range args {
		if a == "-" {
			eng.In.PushFile(os.Stdin, "stdin")
			continue
		}
		f, err := os.Open(a) // #nosec G304 -- file named on the command line by the user
		if err != nil {
			fmt.Fprintf(os.Stderr, "gm4: cannot open %q: %v\n", a, err)
			os.Exit(1)
		}
		defer f.Close()
		eng.In.PushFile(f, a)
	}

	if *debugCLI || *tuiMode {
		runDebugger(ctx, eng, *tuiMode)
	} else if err := eng.ExpandAll(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}

	for _, d := range ctx.Diags.Items() {
		fmt.Fprintln(os.Stderr, d.Format(ctx.ProgramName))
	}

	ctx.Output.UndivertAll()

	if *dumpSymbols {
		if err := writeSymbolDump(ctx, *symbolsFile); err != nil {
			fmt.Fprintf(os.Stderr, "gm4: %v\n", err)
		}
	}

	if *freezeWrite != "" {
		if err := writeFrozenFile(*freezeWrite, ctx); err != nil {
			fmt.Fprintf(os.Stderr, "gm4: %v\n", err)
		}
	}

	exitCode := ctx.Diags.ExitCode()
	if ctx.ExitRequested {
		exitCode = ctx.ExitCode
	}
	os.Exit(exitCode)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// parseDebugFlags maps -d's letters onto gm4ctx.DebugFlag bits (spec.md
// §6, mirroring the `debugmode` builtin's own letter table).
func parseDebugFlags(letters string) (gm4ctx.DebugFlag, error) {
	var flags gm4ctx.DebugFlag
	for _, l := range letters {
		switch l {
		case 'a':
			flags |= gm4ctx.DebugArgs
		case 't':
			flags |= gm4ctx.DebugTrace
		case 'e':
			flags |= gm4ctx.DebugExpansion
		case 'q':
			flags |= gm4ctx.DebugQuote
		case 'i':
			flags |= gm4ctx.DebugInput
		case 'c':
			flags |= gm4ctx.DebugCall
		case 'm':
			flags |= gm4ctx.DebugModule
		case 'l':
			flags |= gm4ctx.DebugLine
		case 'f':
			flags |= gm4ctx.DebugFile
		case 'p':
			flags |= gm4ctx.DebugPath
		case 'V':
			flags |= gm4ctx.DebugVoid | (gm4ctx.DebugVoid - 1) // every flag bit
		default:
			return 0, fmt.Errorf("unknown debug flag %q", l)
		}
	}
	return flags, nil
}

func runDebugger(ctx *gm4ctx.Context, eng *macro.Engine, tui bool) {
	d := debugger.New(ctx, eng)
	if tui {
		t := debugger.NewTUI(d)
		if err := t.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "gm4: debugger TUI error: %v\n", err)
		}
		return
	}

	fmt.Fprintln(os.Stderr, "gm4 debugger; type 'help' for commands, 'continue' to run to completion")
	scan := bufio.NewScanner(os.Stdin)
	for scan.Scan() {
		line := scan.Text()
		if err := d.ExecuteCommand(line); err != nil {
			fmt.Fprintf(os.Stderr, "gm4db: %v\n", err)
		}
		fmt.Fprint(os.Stderr, d.GetOutput())
		if !d.Running && strings.HasPrefix(strings.TrimSpace(line), "c") {
			break
		}
	}
}

func writeSymbolDump(ctx *gm4ctx.Context, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path) // #nosec G304 -- user-provided dump path
		if err != nil {
			return fmt.Errorf("cannot open %q: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	var names []string
	ctx.Symtab.Iterate(func(name string, sym *symtab.Symbol) {
		names = append(names, name)
	})
	sort.Strings(names)
	for _, name := range names {
		sym := ctx.Symtab.LookupSymbol(name)
		if sym == nil {
			continue
		}
		traced := ""
		if top := sym.Top(); top != nil && top.Traced {
			traced = " traced"
		}
		fmt.Fprintf(out, "%s\tdepth=%d%s\n", name, sym.Depth(), traced)
	}
	return nil
}

func writeFrozenFile(path string, ctx *gm4ctx.Context) error {
	f, err := os.Create(path) // #nosec G304 -- user-provided frozen-state path
	if err != nil {
		return fmt.Errorf("cannot write frozen state to %q: %w", path, err)
	}
	defer f.Close()
	return frozen.LineFormat{}.WriteFrozen(f, ctx)
}

func readFrozenFile(path string, ctx *gm4ctx.Context) error {
	f, err := os.Open(path) // #nosec G304 -- user-provided frozen-state path
	if err != nil {
		return fmt.Errorf("cannot read frozen state from %q: %w", path, err)
	}
	defer f.Close()
	return frozen.LineFormat{}.ReadFrozen(f, ctx)
}

func printHelp() {
	fmt.Printf(`gm4 %s - a GNU-compatible m4 macro processor

Usage: gm4 [options] [file ...]
       gm4 -debug|-tui [options] [file ...]

Options:
  -help                Show this help message
  -version             Show version information
  -D name[=value]      Predefine name, optionally with value
  -U name              Undefine a builtin or predefined name
  -t name              Trace name on definition
  -I dir               Add dir to the include search path (repeatable)
  -L n                 Set the nesting limit
  -l n                 Set max traced-argument length
  -G                   Disable GNU extensions
  -e                   Operate interactively
  -Q                   Suppress warning messages
  -E                   Treat warnings as errors (affects exit code only)
  -c                   Discard comments instead of passing them through
  -s                   Enable #line sync output
  -P                   Prefix all builtin names with m4_
  -d flags             Debug flags: a,e,q,t,i,c,m,l,f,p,V
  -o file              Redirect debug/trace output to file
  -F file              Write frozen state to file on exit
  -R file               Read frozen state from file at start

Debugger options:
  -debug               Start in debugger mode (line-oriented REPL)
  -tui                 Start in TUI debugger mode (tcell/tview)

Configuration:
  -config path         Load configuration from path
  -no-config           Do not load any configuration file

Symbol dump:
  -dump-symbols        Dump the symbol table after processing the input
  -symbols-file file   Symbol dump output file (default: stdout)

Environment:
  M4PATH               Colon-separated include directories, searched after -I
`, Version)
}
