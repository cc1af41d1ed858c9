package diag_test

import (
	"strings"
	"testing"

	"github.com/macroexp/gm4/diag"
)

func TestFormatIncludesPositionAndKind(t *testing.T) {
	d := diag.Fatalf(diag.Position{File: "in.m4", Line: 3}, "nesting limit exceeded")
	got := d.Format("gm4")
	if !strings.Contains(got, "gm4: in.m4:3: error: nesting limit exceeded") {
		t.Fatalf("unexpected format: %q", got)
	}
}

func TestFormatWarningWithoutPosition(t *testing.T) {
	d := diag.Warnf(diag.Position{}, "undefined macro `%s'", "foo")
	got := d.Format("gm4")
	if got != "gm4: warning: undefined macro `foo'" {
		t.Fatalf("unexpected format: %q", got)
	}
}

func TestListHasFatal(t *testing.T) {
	l := &diag.List{}
	l.Add(diag.Warnf(diag.Position{}, "minor"))
	if l.HasFatal() {
		t.Fatalf("expected no fatal yet")
	}
	l.Add(diag.Fatalf(diag.Position{}, "boom"))
	if !l.HasFatal() {
		t.Fatalf("expected HasFatal true after a fatal diagnostic")
	}
	if l.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", l.ExitCode())
	}
}

func TestSuppressWarnDropsWarnings(t *testing.T) {
	l := &diag.List{SuppressWarn: true}
	l.Add(diag.Warnf(diag.Position{}, "ignored"))
	if len(l.Items()) != 0 {
		t.Fatalf("expected suppressed warning to be dropped, got %d items", len(l.Items()))
	}
}

func TestWarningsAsErrorAffectsExitCode(t *testing.T) {
	l := &diag.List{WarningsAsError: true}
	l.Add(diag.Warnf(diag.Position{}, "something"))
	if l.ExitCode() != 1 {
		t.Fatalf("expected warnings-as-error to yield exit code 1, got %d", l.ExitCode())
	}

	l2 := &diag.List{}
	l2.Add(diag.Warnf(diag.Position{}, "something"))
	if l2.ExitCode() != 0 {
		t.Fatalf("expected a plain warning to not affect exit code, got %d", l2.ExitCode())
	}
}

func TestPositionStringWithAndWithoutFile(t *testing.T) {
	p1 := diag.Position{File: "x.m4", Line: 5}
	if p1.String() != "x.m4:5" {
		t.Fatalf("got %q", p1.String())
	}
	p2 := diag.Position{Line: 5}
	if p2.String() != "line 5" {
		t.Fatalf("got %q", p2.String())
	}
}
