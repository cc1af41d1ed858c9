package syntax_test

import (
	"testing"

	"github.com/macroexp/gm4/syntax"
)

func TestDefaultClassification(t *testing.T) {
	tab := syntax.NewDefault()

	tests := []struct {
		b    byte
		want syntax.Category
	}{
		{'a', syntax.Alpha},
		{'Z', syntax.Alpha},
		{'_', syntax.Alpha},
		{'5', syntax.Num},
		{' ', syntax.Space},
		{'\n', syntax.Space},
		{'(', syntax.Open},
		{')', syntax.Close},
		{',', syntax.Comma},
		{'$', syntax.Dollar},
		{'!', syntax.Other},
		{0, syntax.Ignore},
	}

	for _, tt := range tests {
		got := tab.Base(tt.b)
		if got != tt.want {
			t.Errorf("Base(%q) = %s, want %s", tt.b, got, tt.want)
		}
	}
}

func TestChangeSyntaxReplacesBase(t *testing.T) {
	tab := syntax.NewDefault()
	tab.Set(syntax.Active, []byte{'@'})
	if tab.Base('@') != syntax.Active {
		t.Fatalf("expected '@' to become Active")
	}
}

func TestMaskBitsClearedOnQuoteChange(t *testing.T) {
	tab := syntax.NewDefault()
	tab.AddMask('`', syntax.MaskLQuote)
	tab.AddMask('\'', syntax.MaskRQuote)

	if !tab.Has('`', syntax.MaskLQuote) {
		t.Fatalf("expected ` to carry MaskLQuote")
	}

	tab.ClearMaskAll(syntax.MaskLQuote | syntax.MaskRQuote)
	if tab.Has('`', syntax.MaskLQuote) || tab.Has('\'', syntax.MaskRQuote) {
		t.Fatalf("expected quote mask bits cleared")
	}

	tab.AddMask('[', syntax.MaskLQuote)
	tab.AddMask(']', syntax.MaskRQuote)
	if !tab.Has('[', syntax.MaskLQuote) || !tab.Has(']', syntax.MaskRQuote) {
		t.Fatalf("expected new quote delimiters to carry mask bits")
	}
}

func TestIsMacroEscaped(t *testing.T) {
	tab := syntax.NewDefault()
	if tab.IsMacroEscaped() {
		t.Fatalf("default table should not be escape-mode")
	}
	tab.Set(syntax.EscapeCat, []byte{'\\'})
	if !tab.IsMacroEscaped() {
		t.Fatalf("expected escape mode after classifying '\\\\' as Escape")
	}
}

func TestCategoryLetterRoundTrip(t *testing.T) {
	cats := []syntax.Category{
		syntax.Other, syntax.Ignore, syntax.Space, syntax.Open, syntax.Close,
		syntax.Comma, syntax.Dollar, syntax.Active, syntax.EscapeCat,
		syntax.Alpha, syntax.Num,
	}
	for _, c := range cats {
		l := c.Letter()
		got, ok := syntax.CategoryFromLetter(l)
		if !ok || got != c {
			t.Errorf("letter round-trip failed for %s (letter %q)", c, l)
		}
	}
}
