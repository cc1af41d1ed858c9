package eval_test

import (
	"strconv"
	"testing"

	"github.com/macroexp/gm4/eval"
)

func TestBasicArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want int64
	}{
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"2**10", 1024},
		{"10/3", 3},
		{"10%3", 1},
		{"10\\3", 3},
		{"-5+3", -2},
		{"~0", -1},
		{"!0", 1},
		{"!5", 0},
		{"1<<4", 16},
		{"256>>4", 16},
		{"-1>>>60", 15},
		{"1==1", 1},
		{"1!=1", 0},
		{"1?2:3", 2},
		{"0?2:3", 3},
		{"1,2,3", 3},
		{"5&3", 1},
		{"5|2", 7},
		{"5^1", 4},
		{"1&&1", 1},
		{"0&&1", 0},
		{"0||0", 0},
		{"1||0", 1},
	}
	for _, tt := range tests {
		got, err := eval.EvalString(tt.expr)
		if err != nil {
			t.Fatalf("EvalString(%q) error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("EvalString(%q) = %d, want %d", tt.expr, got, tt.want)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := eval.EvalString("1/0")
	if err == nil {
		t.Fatalf("expected error for division by zero")
	}
}

func TestShortCircuitSwallowsDivByZero(t *testing.T) {
	// Right side would divide by zero, but the left side already
	// determines the && result, so it must never be evaluated.
	got, err := eval.EvalString("0 && (1/0)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("got %d, want 0", got)
	}

	got, err = eval.EvalString("1 || (1/0)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestNegativeExponentErrors(t *testing.T) {
	_, err := eval.EvalString("2**-1")
	if err == nil {
		t.Fatalf("expected error for negative exponent")
	}
}

func TestNumberBases(t *testing.T) {
	tests := []struct {
		expr string
		want int64
	}{
		{"0x1F", 31},
		{"0b101", 5},
		{"017", 15},
		{"016r1F", 31},
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := eval.EvalString(tt.expr)
		if err != nil {
			t.Fatalf("EvalString(%q) error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("EvalString(%q) = %d, want %d", tt.expr, got, tt.want)
		}
	}
}

func TestFormatRadixRoundTrip(t *testing.T) {
	for _, radix := range []int{2, 8, 10, 16, 36} {
		for _, v := range []int64{0, 1, 255, -255, 123456} {
			s, err := eval.Format(v, radix, 0)
			if err != nil {
				t.Fatalf("Format(%d, %d) error: %v", v, radix, err)
			}
			parsed, err := strconv.ParseInt(s, radix, 64)
			if err != nil {
				t.Fatalf("re-parse of %q (radix %d) failed: %v", s, radix, err)
			}
			if parsed != v {
				t.Errorf("round-trip mismatch: %d -> %q -> %d", v, s, parsed)
			}
		}
	}
}

func TestFormatZeroPadded(t *testing.T) {
	s, err := eval.Format(5, 10, 4)
	if err != nil {
		t.Fatal(err)
	}
	if s != "0005" {
		t.Errorf("got %q, want %q", s, "0005")
	}

	s, err = eval.Format(-5, 10, 4)
	if err != nil {
		t.Fatal(err)
	}
	if s != "-005" {
		t.Errorf("got %q, want %q", s, "-005")
	}
}

func TestSyntaxErrorsPropagate(t *testing.T) {
	_, err := eval.EvalString("1 + ")
	if err == nil {
		t.Fatalf("expected syntax error")
	}
	_, err = eval.EvalString("(1 + 2")
	if err == nil {
		t.Fatalf("expected syntax error for unbalanced parens")
	}
}
