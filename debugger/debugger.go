// Package debugger implements gm4's interactive trace/symbol debugger
// (SPEC_FULL.md §4.12): break/tbreak/step/continue/print/info
// diversions/trace on-off/dump, plus a tcell/tview TUI front end.
//
// Grounded on the teacher's debugger package: the same
// Debugger/BreakpointManager/CommandHistory split and cmd<Name>(args
// []string) error dispatch pattern, generalized from pausing on a CPU
// program counter to pausing on a macro-expansion call site.
package debugger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/macroexp/gm4/gm4ctx"
	"github.com/macroexp/gm4/macro"
	"github.com/macroexp/gm4/symtab"
)

// StepMode mirrors the teacher's instruction-level stepping modes,
// narrowed to gm4's coarser "one token" granularity.
type StepMode int

const (
	StepNone StepMode = iota
	StepSingle
)

// Debugger wraps one interpreter instance with breakpoint/step control and
// an output buffer the TUI (or a plain REPL) renders from.
type Debugger struct {
	Ctx    *gm4ctx.Context
	Engine *macro.Engine

	Breakpoints *BreakpointManager
	History     *CommandHistory

	Running     bool
	StepMode    StepMode
	LastCommand string
	LastPause   string // human-readable reason the last Continue/Step stopped

	Output strings.Builder

	pausedAt string
}

// New creates a Debugger around an already-constructed engine, wiring its
// BreakHook so `break`/`tbreak` can observe every macro call.
func New(ctx *gm4ctx.Context, engine *macro.Engine) *Debugger {
	d := &Debugger{
		Ctx:         ctx,
		Engine:      engine,
		Breakpoints: NewBreakpointManager(),
		History:     NewCommandHistory(),
	}
	engine.BreakHook = d.onMacroCall
	return d
}

func (d *Debugger) onMacroCall(name string) {
	if bp := d.Breakpoints.Hit(name); bp != nil {
		d.pausedAt = fmt.Sprintf("breakpoint %d: %s", bp.ID, bp.Name)
	}
}

// ExecuteCommand parses and runs one debugger command line (SPEC_FULL.md
// §4.12's command surface).
func (d *Debugger) ExecuteCommand(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		line = d.LastCommand
	}
	if line != "" {
		d.History.Add(line)
		d.LastCommand = line
	}

	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "break", "b":
		return d.cmdBreak(args, false)
	case "tbreak", "tb":
		return d.cmdBreak(args, true)
	case "delete", "d":
		return d.cmdDelete(args)
	case "step", "s":
		return d.cmdStep(args)
	case "continue", "c":
		return d.cmdContinue(args)
	case "print", "p":
		return d.cmdPrint(args)
	case "info", "i":
		return d.cmdInfo(args)
	case "trace":
		return d.cmdTrace(args)
	case "dump":
		return d.cmdDump(args)
	case "help", "h", "?":
		return d.cmdHelp(args)
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func (d *Debugger) cmdBreak(args []string, temporary bool) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: break <macro-name>")
	}
	bp := d.Breakpoints.Add(args[0], temporary)
	d.Printf("breakpoint %d set on `%s'\n", bp.ID, bp.Name)
	return nil
}

func (d *Debugger) cmdDelete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <breakpoint-id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint id: %s", args[0])
	}
	if err := d.Breakpoints.Delete(id); err != nil {
		return err
	}
	d.Printf("breakpoint %d deleted\n", id)
	return nil
}

// cmdStep runs exactly one expand_token cycle (SPEC_FULL.md §4.12 "step").
func (d *Debugger) cmdStep(args []string) error {
	eof, err := d.Engine.StepOne()
	if err != nil {
		return err
	}
	if eof {
		d.Running = false
		d.LastPause = "end of input"
	} else {
		d.LastPause = "single step"
	}
	d.Printf("%s\n", d.LastPause)
	return nil
}

// cmdContinue runs until a breakpoint fires or input is exhausted
// (SPEC_FULL.md §4.12 "continue").
func (d *Debugger) cmdContinue(args []string) error {
	d.Running = true
	d.pausedAt = ""
	for {
		eof, err := d.Engine.StepOne()
		if err != nil {
			d.Running = false
			return err
		}
		if d.pausedAt != "" {
			d.LastPause = d.pausedAt
			d.Printf("%s\n", d.LastPause)
			return nil
		}
		if eof || d.Ctx.ExitRequested {
			d.Running = false
			d.LastPause = "end of input"
			d.Printf("%s\n", d.LastPause)
			return nil
		}
	}
}

// cmdPrint shows a symbol's definition stack, topmost first (SPEC_FULL.md
// §4.12 "print <name>").
func (d *Debugger) cmdPrint(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: print <name>")
	}
	sym := d.Ctx.Symtab.LookupSymbol(args[0])
	if sym == nil {
		d.Printf("%s: undefined\n", args[0])
		return nil
	}
	for i := 0; i < sym.Depth(); i++ {
		def := sym.At(i)
		d.Printf("%s[%d]: %s\n", args[0], i, describeDefinition(def))
	}
	return nil
}

func describeDefinition(def *symtab.Definition) string {
	if def.Kind == symtab.DefBuiltin {
		return fmt.Sprintf("<%s>", def.Builtin.Name)
	}
	return def.Text
}

// cmdInfo implements "info diversions" (SPEC_FULL.md §4.12).
func (d *Debugger) cmdInfo(args []string) error {
	if len(args) == 0 || args[0] != "diversions" {
		return fmt.Errorf("usage: info diversions")
	}
	nums := d.Ctx.Output.ActiveDiversions()
	sort.Ints(nums)
	d.Printf("current diversion: %d\n", d.Ctx.Output.Current())
	for _, n := range nums {
		loc := "memory"
		if !d.Ctx.Output.InMemory(n) {
			loc = "disk"
		}
		d.Printf("  [%d] %d bytes (%s)\n", n, d.Ctx.Output.Used(n), loc)
	}
	return nil
}

// cmdTrace implements "trace on|off <name>" (SPEC_FULL.md §4.12), the same
// traced flag the `traceon`/`traceoff` builtins set.
func (d *Debugger) cmdTrace(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: trace on|off <name>")
	}
	var on bool
	switch args[0] {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return fmt.Errorf("usage: trace on|off <name>")
	}
	d.Ctx.Symtab.SetTraced(args[1], on)
	return nil
}

// cmdDump runs the dumpdef-equivalent over the whole symbol table
// (SPEC_FULL.md §4.12 "dump").
func (d *Debugger) cmdDump(args []string) error {
	var names []string
	d.Ctx.Symtab.Iterate(func(name string, sym *symtab.Symbol) {
		names = append(names, name)
	})
	sort.Strings(names)
	for _, name := range names {
		def, ok := d.Ctx.Symtab.Lookup(name)
		if !ok {
			continue
		}
		d.Printf("%s:\t%s\n", name, describeDefinition(def))
	}
	return nil
}

func (d *Debugger) cmdHelp(args []string) error {
	d.Printf(`commands:
  break <name>, tbreak <name>   pause the next time <name> is invoked
  delete <id>                   remove a breakpoint
  step                          run one expansion token
  continue                      run until a breakpoint or end of input
  print <name>                  show a symbol's definition stack
  info diversions                list diversions and their sizes
  trace on|off <name>            toggle tracing for <name>
  dump                          dump every currently defined symbol
`)
	return nil
}

// GetOutput returns and clears the accumulated command output.
func (d *Debugger) GetOutput() string {
	out := d.Output.String()
	d.Output.Reset()
	return out
}

// Printf appends formatted text to the output buffer.
func (d *Debugger) Printf(format string, args ...any) {
	fmt.Fprintf(&d.Output, format, args...)
}
