package output_test

import (
	"bytes"
	"testing"

	"github.com/macroexp/gm4/output"
)

func TestStdoutPassthrough(t *testing.T) {
	var buf bytes.Buffer
	e := output.New(&buf)
	e.WriteString("hello")
	if buf.String() != "hello" {
		t.Fatalf("got %q, want %q", buf.String(), "hello")
	}
}

func TestSinkDiscardsOutput(t *testing.T) {
	var buf bytes.Buffer
	e := output.New(&buf)
	e.Select(output.Sink)
	e.WriteString("discarded")
	e.Select(output.Stdout)
	e.WriteString("kept")
	if buf.String() != "kept" {
		t.Fatalf("got %q, want %q", buf.String(), "kept")
	}
}

func TestDivertAndInsert(t *testing.T) {
	var buf bytes.Buffer
	e := output.New(&buf)

	e.Select(1)
	e.WriteString("one")
	e.Select(2)
	e.WriteString("two")
	e.Select(output.Stdout)
	e.WriteString("zero-")

	e.Insert(1)
	if buf.String() != "zero-one" {
		t.Fatalf("got %q, want %q", buf.String(), "zero-one")
	}
	// Diversion 1 is recycled by Insert; re-inserting is a no-op.
	e.Insert(1)
	if buf.String() != "zero-one" {
		t.Fatalf("re-insert of freed diversion should be a no-op, got %q", buf.String())
	}

	e.Insert(2)
	if buf.String() != "zero-onetwo" {
		t.Fatalf("got %q, want %q", buf.String(), "zero-onetwo")
	}
}

func TestUndivertAllAscendingOrder(t *testing.T) {
	var buf bytes.Buffer
	e := output.New(&buf)

	e.Select(3)
	e.WriteString("c")
	e.Select(1)
	e.WriteString("a")
	e.Select(2)
	e.WriteString("b")
	e.Select(output.Stdout)

	e.UndivertAll()
	if buf.String() != "abc" {
		t.Fatalf("got %q, want ascending-order concatenation %q", buf.String(), "abc")
	}
	if len(e.ActiveDiversions()) != 0 {
		t.Fatalf("expected table empty after undivert all, got %v", e.ActiveDiversions())
	}
}

func TestUndivertAllIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	e := output.New(&buf)
	e.Select(1)
	e.WriteString("x")
	e.Select(output.Stdout)

	e.UndivertAll()
	e.UndivertAll()
	if buf.String() != "x" {
		t.Fatalf("second undivert-all should be a no-op, got %q", buf.String())
	}
}

func TestSpillToDiskPreservesContent(t *testing.T) {
	var buf bytes.Buffer
	e := output.New(&buf)
	e.SetMemoryCap(16)

	e.Select(1)
	e.WriteString("0123456789")
	if !e.InMemory(1) {
		t.Fatalf("expected diversion 1 still in memory before cap exceeded")
	}
	e.Select(2)
	e.WriteString("abcdefghij") // pushes total over the 16-byte cap, triggers a spill

	e.Select(output.Stdout)
	e.Insert(1)
	e.Insert(2)
	if buf.String() != "0123456789abcdefghij" {
		t.Fatalf("got %q, want spilled content preserved in order", buf.String())
	}
}

func TestUsedTracksUnselectedDiversion(t *testing.T) {
	var buf bytes.Buffer
	e := output.New(&buf)
	e.Select(5)
	e.WriteString("abcde")
	if e.Used(5) != 5 {
		t.Fatalf("got Used=%d, want 5", e.Used(5))
	}
	if e.Used(6) != 0 {
		t.Fatalf("expected Used=0 for a diversion never written to")
	}
}

func TestSelectingDiversionZeroAfterDivertsFlushesImmediately(t *testing.T) {
	var buf bytes.Buffer
	e := output.New(&buf)
	e.Select(1)
	e.WriteString("buffered")
	e.Select(output.Stdout)
	e.WriteString("direct")
	// "direct" appears before "buffered" is ever inserted: diversion 0
	// writes are never buffered, regardless of other diversions' state.
	if buf.String() != "direct" {
		t.Fatalf("got %q, want %q", buf.String(), "direct")
	}
}
