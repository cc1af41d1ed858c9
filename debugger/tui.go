package debugger

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/macroexp/gm4/symtab"
)

// TUI renders a Debugger as four panes (SPEC_FULL.md §4.12): the current
// input position/token, the symbol table, the diversion list, and a
// trace/output log, with the same F-key bindings the teacher's CPU-state
// TUI used repurposed for macro-expansion stepping.
type TUI struct {
	Debugger *Debugger

	app        *tview.Application
	status     *tview.TextView
	symbols    *tview.TextView
	diversions *tview.TextView
	log        *tview.TextView
	input      *tview.InputField
}

// NewTUI builds the widget tree around an existing Debugger; call Run to
// start the event loop.
func NewTUI(d *Debugger) *TUI {
	t := &TUI{
		Debugger:   d,
		app:        tview.NewApplication(),
		status:     tview.NewTextView().SetDynamicColors(true),
		symbols:    tview.NewTextView().SetDynamicColors(true),
		diversions: tview.NewTextView().SetDynamicColors(true),
		log:        tview.NewTextView().SetDynamicColors(true).SetScrollable(true),
	}
	t.status.SetBorder(true).SetTitle(" position ")
	t.symbols.SetBorder(true).SetTitle(" symbols ")
	t.diversions.SetBorder(true).SetTitle(" diversions ")
	t.log.SetBorder(true).SetTitle(" trace / output ")

	t.input = tview.NewInputField().SetLabel("(gm4db) ")
	t.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		line := t.input.GetText()
		t.input.SetText("")
		t.runCommand(line)
	})

	top := tview.NewFlex().
		AddItem(t.status, 0, 1, false).
		AddItem(t.symbols, 0, 1, false)
	mid := tview.NewFlex().
		AddItem(t.diversions, 0, 1, false).
		AddItem(t.log, 0, 2, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 1, false).
		AddItem(mid, 0, 2, false).
		AddItem(t.input, 1, 0, true)

	root.SetInputCapture(t.handleKey)
	t.app.SetRoot(root, true).SetFocus(t.input)
	return t
}

func (t *TUI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyF5:
		t.runCommand("continue")
		return nil
	case tcell.KeyF10:
		t.runCommand("step")
		return nil
	case tcell.KeyCtrlL:
		t.refresh()
		return nil
	}
	return event
}

func (t *TUI) runCommand(line string) {
	if err := t.Debugger.ExecuteCommand(line); err != nil {
		fmt.Fprintf(t.log, "[red]error:[-] %v\n", err)
	}
	if out := t.Debugger.GetOutput(); out != "" {
		fmt.Fprint(t.log, out)
	}
	t.refresh()
}

func (t *TUI) refresh() {
	ctx := t.Debugger.Ctx
	t.status.Clear()
	fmt.Fprintf(t.status, "%s:%d\nlast stop: %s\n", ctx.CurFile, ctx.CurLine, t.Debugger.LastPause)

	t.symbols.Clear()
	var names []string
	ctx.Symtab.Iterate(func(name string, sym *symtab.Symbol) {
		names = append(names, name)
	})
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(t.symbols, "%s\n", n)
	}

	t.diversions.Clear()
	nums := ctx.Output.ActiveDiversions()
	sort.Ints(nums)
	for _, n := range nums {
		fmt.Fprintf(t.diversions, "[%d] %d bytes\n", n, ctx.Output.Used(n))
	}
}

// Run starts the TUI event loop; it blocks until the user quits.
func (t *TUI) Run() error {
	t.refresh()
	return t.app.Run()
}

// Stop ends the event loop (used by tests and Ctrl-C handling in main).
func (t *TUI) Stop() {
	t.app.Stop()
}
