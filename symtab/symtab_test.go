package symtab_test

import (
	"testing"

	"github.com/macroexp/gm4/symtab"
)

func TestPushPopBalancePreservesEffectiveDefinition(t *testing.T) {
	tab := symtab.New()
	tab.Define("x", &symtab.Definition{Kind: symtab.DefText, Text: "before"})

	before, ok := tab.Lookup("x")
	if !ok || before.Text != "before" {
		t.Fatalf("setup failed")
	}

	tab.Pushdef("x", &symtab.Definition{Kind: symtab.DefText, Text: "during"})
	tab.Popdef("x")

	after, ok := tab.Lookup("x")
	if !ok || after.Text != "before" {
		t.Fatalf("expected definition to revert to %q, got %+v", "before", after)
	}
}

func TestPushdefStackOrder(t *testing.T) {
	tab := symtab.New()
	tab.Pushdef("x", &symtab.Definition{Kind: symtab.DefText, Text: "1"})
	tab.Pushdef("x", &symtab.Definition{Kind: symtab.DefText, Text: "2"})

	top, _ := tab.Lookup("x")
	if top.Text != "2" {
		t.Fatalf("expected top def %q, got %q", "2", top.Text)
	}

	tab.Popdef("x")
	top, ok := tab.Lookup("x")
	if !ok || top.Text != "1" {
		t.Fatalf("expected top def %q after pop, got %+v", "1", top)
	}

	tab.Popdef("x")
	if _, ok := tab.Lookup("x"); ok {
		t.Fatalf("expected x to be undefined after popping last definition")
	}
}

func TestUndefineRemovesWholeStack(t *testing.T) {
	tab := symtab.New()
	tab.Pushdef("x", &symtab.Definition{Kind: symtab.DefText, Text: "1"})
	tab.Pushdef("x", &symtab.Definition{Kind: symtab.DefText, Text: "2"})
	tab.Undefine("x")

	if _, ok := tab.Lookup("x"); ok {
		t.Fatalf("expected x fully undefined")
	}
}

func TestDeferredReclaimWhilePending(t *testing.T) {
	tab := symtab.New()
	tab.Define("x", &symtab.Definition{Kind: symtab.DefText, Text: "body"})
	tab.BeginExpansion("x")

	tab.Undefine("x")
	// Still "defined enough" to exist internally but not lookupable.
	if _, ok := tab.Lookup("x"); ok {
		t.Fatalf("expected x to read as undefined immediately")
	}

	tab.EndExpansion("x")
	sym := tab.LookupSymbol("x")
	if sym != nil {
		t.Fatalf("expected symbol fully reclaimed after expansion ends")
	}
}

func TestIterateToleratesPopdefDuringCallback(t *testing.T) {
	tab := symtab.New()
	tab.Define("a", &symtab.Definition{Kind: symtab.DefText, Text: "A"})
	tab.Define("b", &symtab.Definition{Kind: symtab.DefText, Text: "B"})
	tab.Define("c", &symtab.Definition{Kind: symtab.DefText, Text: "C"})

	seen := map[string]bool{}
	tab.Iterate(func(name string, sym *symtab.Symbol) {
		seen[name] = true
		if name == "a" {
			tab.Popdef("b")
			tab.Pushdef("d", &symtab.Definition{Kind: symtab.DefText, Text: "D"})
		}
	})

	if !seen["a"] || !seen["b"] || !seen["c"] {
		t.Fatalf("expected to visit a, b, c as they stood at iteration start, got %v", seen)
	}
	if _, ok := tab.Lookup("b"); ok {
		t.Fatalf("expected b to be undefined after callback popped it")
	}
}
