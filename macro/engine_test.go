package macro_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/macroexp/gm4/gm4ctx"
	"github.com/macroexp/gm4/macro"
)

func run(t *testing.T, src string) string {
	t.Helper()
	var out bytes.Buffer
	ctx := gm4ctx.New(gm4ctx.Options{GNUExtensions: true, NestingLimit: 1024}, "gm4", &out)
	e := macro.New(ctx)
	e.DefineBuiltins()
	e.PushString([]byte(src), "test")
	if err := e.ExpandAll(); err != nil {
		t.Fatalf("ExpandAll: %v", err)
	}
	ctx.Output.UndivertAll()
	return out.String()
}

func TestDefineAndExpand(t *testing.T) {
	got := run(t, "define(`greet', `hello, $1')greet(`world')")
	if got != "hello, world" {
		t.Fatalf("got %q", got)
	}
}

func TestDnlStripsTrailingNewline(t *testing.T) {
	got := run(t, "define(`x', `y')dnl\nx\n")
	if got != "y\n" {
		t.Fatalf("got %q", got)
	}
}

func TestIfelseTwoWay(t *testing.T) {
	got := run(t, "ifelse(`a', `a', `yes', `no')")
	if got != "yes" {
		t.Fatalf("got %q", got)
	}
}

func TestIfelseChain(t *testing.T) {
	got := run(t, "ifelse(`a', `b', `1', `a', `a', `2', `3')")
	if got != "2" {
		t.Fatalf("got %q", got)
	}
}

func TestIfdef(t *testing.T) {
	got := run(t, "define(`x',`1')ifdef(`x',`yes',`no')ifdef(`y',`yes',`no')")
	if got != "yesno" {
		t.Fatalf("got %q", got)
	}
}

func TestRecursiveMacro(t *testing.T) {
	got := run(t, "define(`count', `ifelse($1, 0, `done', `count(decr($1))')')count(3)")
	if got != "done" {
		t.Fatalf("got %q", got)
	}
}

func TestAtAllPreservesQuoting(t *testing.T) {
	got := run(t, "define(`q', `$@')q(`a', `b', `c')")
	if got != "a,b,c" {
		t.Fatalf("got %q", got)
	}
}

func TestChangequoteTakesEffectImmediately(t *testing.T) {
	got := run(t, "changequote([,])define([m],[hi])m")
	if got != "hi" {
		t.Fatalf("got %q", got)
	}
}

func TestPushdefPopdefStack(t *testing.T) {
	got := run(t, "define(`x',`1')pushdef(`x',`2')x popdef(`x')x")
	if got != "2 1" {
		t.Fatalf("got %q", got)
	}
}

func TestUndefine(t *testing.T) {
	got := run(t, "define(`x',`1')undefine(`x')x")
	if got != "x" {
		t.Fatalf("got %q", got)
	}
}

func TestLenIndexSubstr(t *testing.T) {
	got := run(t, "len(`hello')-index(`hello',`ll')-substr(`hello',1,3)")
	if got != "5-2-ell" {
		t.Fatalf("got %q", got)
	}
}

func TestTranslit(t *testing.T) {
	got := run(t, "translit(`hello', `el', `ip')")
	if got != "hippo" {
		t.Fatalf("got %q", got)
	}
}

func TestTranslitDeletesWithNoReplacement(t *testing.T) {
	got := run(t, "translit(`hello', `l')")
	if got != "heo" {
		t.Fatalf("got %q", got)
	}
}

func TestEvalArithmetic(t *testing.T) {
	got := run(t, "eval(2+3*4)")
	if got != "14" {
		t.Fatalf("got %q", got)
	}
}

func TestEvalRadix(t *testing.T) {
	got := run(t, "eval(255, 16)")
	if got != "ff" {
		t.Fatalf("got %q", got)
	}
}

func TestIncrDecr(t *testing.T) {
	got := run(t, "incr(4)-decr(4)")
	if got != "5-3" {
		t.Fatalf("got %q", got)
	}
}

func TestShift(t *testing.T) {
	got := run(t, "define(`f',`shift($@)')f(`a',`b',`c')")
	if got != "b,c" {
		t.Fatalf("got %q", got)
	}
}

func TestDivertAndUndivert(t *testing.T) {
	got := run(t, "divert(1)hello divert(0)world undivert(1)")
	if strings.TrimSpace(got) != "world hello" {
		t.Fatalf("got %q", got)
	}
}

func TestM4wrapRunsAtEOF(t *testing.T) {
	var out bytes.Buffer
	ctx := gm4ctx.New(gm4ctx.Options{GNUExtensions: true, NestingLimit: 1024}, "gm4", &out)
	e := macro.New(ctx)
	e.DefineBuiltins()
	e.PushString([]byte("m4wrap(`end')start"), "test")
	if err := e.ExpandAll(); err != nil {
		t.Fatalf("ExpandAll: %v", err)
	}
	for e.In.PopWrapup() {
		if err := e.ExpandAll(); err != nil {
			t.Fatalf("ExpandAll (wrapup): %v", err)
		}
	}
	ctx.Output.UndivertAll()
	if out.String() != "startend" {
		t.Fatalf("got %q", out.String())
	}
}

func TestDefnPreservesBuiltinIdentity(t *testing.T) {
	got := run(t, "define(`plus', defn(`incr'))plus(4)")
	if got != "5" {
		t.Fatalf("got %q", got)
	}
}

func TestPatsubst(t *testing.T) {
	got := run(t, "patsubst(`hello world', `o', `0')")
	if got != "hell0 w0rld" {
		t.Fatalf("got %q", got)
	}
}

func TestIndirCallsMacroByComputedName(t *testing.T) {
	got := run(t, "define(`double', `eval($1*2)')indir(`double', 5)")
	if got != "10" {
		t.Fatalf("got %q", got)
	}
}

func TestBuiltinBypassesUserRedefinition(t *testing.T) {
	got := run(t, "define(`len', `overridden')builtin(`len', `abcd')")
	if got != "4" {
		t.Fatalf("got %q", got)
	}
}
