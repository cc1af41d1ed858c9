package builtin_test

import (
	"sort"
	"testing"

	"github.com/macroexp/gm4/builtin"
)

func TestRegisterAndLookup(t *testing.T) {
	tab := builtin.NewTable()
	tab.Register(&builtin.Entry{Name: "define", MinArgs: 1, MaxArgs: 2})

	e, ok := tab.Lookup("define")
	if !ok || e.MinArgs != 1 || e.MaxArgs != 2 {
		t.Fatalf("unexpected lookup result: %+v ok=%v", e, ok)
	}

	if _, ok := tab.Lookup("nonexistent"); ok {
		t.Fatalf("expected lookup of unregistered name to fail")
	}
}

func TestRegisterOverwritesSameName(t *testing.T) {
	tab := builtin.NewTable()
	tab.Register(&builtin.Entry{Name: "len", MinArgs: 1})
	tab.Register(&builtin.Entry{Name: "len", MinArgs: 2})

	e, _ := tab.Lookup("len")
	if e.MinArgs != 2 {
		t.Fatalf("expected later registration to win, got MinArgs=%d", e.MinArgs)
	}
}

func TestUndefineHandleRemovesOnlyMatchingEntries(t *testing.T) {
	tab := builtin.NewTable()
	var h1, h2 builtin.Handle = 1, 2
	tab.Register(&builtin.Entry{Name: "a", Handle: h1})
	tab.Register(&builtin.Entry{Name: "b", Handle: h2})
	tab.Register(&builtin.Entry{Name: "c", Handle: h1})

	tab.UndefineHandle(h1)

	if _, ok := tab.Lookup("a"); ok {
		t.Fatalf("expected 'a' removed")
	}
	if _, ok := tab.Lookup("c"); ok {
		t.Fatalf("expected 'c' removed")
	}
	if _, ok := tab.Lookup("b"); !ok {
		t.Fatalf("expected 'b' to survive, different handle")
	}
}

func TestNamesReturnsAllRegistered(t *testing.T) {
	tab := builtin.NewTable()
	tab.Register(&builtin.Entry{Name: "define"})
	tab.Register(&builtin.Entry{Name: "undefine"})

	names := tab.Names()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "define" || names[1] != "undefine" {
		t.Fatalf("unexpected names: %v", names)
	}
}
