// Package lexer implements gm4's tokenizer (spec.md §3 "Token", §4.3
// next_token): it turns the byte stream on an input.Stack into the token
// sequence the expansion engine consumes, consulting the current syntax
// table and quote/comment delimiters on every character.
//
// Grounded on the teacher's parser/lexer.go NextToken switch structure
// (peek current character, dispatch on its classification, accumulate a
// literal, return one Token), generalized from ARM's fixed token set to
// gm4's classification-table-driven precedence order.
package lexer

import "fmt"

// Kind is the tag of a Token (spec.md §3 "Token").
type Kind int

const (
	Eof Kind = iota
	None // a discardable token, e.g. a stripped comment
	Simple
	Space
	Word
	String
	MacroRef
)

func (k Kind) String() string {
	switch k {
	case Eof:
		return "Eof"
	case None:
		return "None"
	case Simple:
		return "Simple"
	case Space:
		return "Space"
	case Word:
		return "Word"
	case String:
		return "String"
	case MacroRef:
		return "MacroRef"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Token is one lexical unit produced by next_token (spec.md §3).
type Token struct {
	Kind  Kind
	Bytes []byte // Simple holds a single byte here too, for uniformity
	Ref   *MacroRefData
}

// MacroRefData carries the fields a frozen-builtin token copies from its
// input frame (spec.md §3 "MacroRef").
type MacroRefData struct {
	Name     string
	Func     any
	MinArgs  int
	MaxArgs  int
	Traced   bool
}

func (t Token) String() string {
	if t.Kind == MacroRef {
		return fmt.Sprintf("%s(%s)", t.Kind, t.Ref.Name)
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Bytes)
}
