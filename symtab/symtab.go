// Package symtab implements gm4's symbol table: name to stack-of-definitions
// mapping with pushdef/popdef/define/undefine semantics and deferred
// reclamation while a definition is mid-expansion (spec.md §3 "Symbol",
// §4.4, §5.1). Grounded on the teacher's parser/symbols.go SymbolTable,
// generalized from ARM's single-value-per-name table to m4's
// stack-of-definitions-per-name model, and on its NumericLabelTable for
// the "materialize keys before iterating, so callbacks can mutate freely"
// pattern reused in Iterate.
package symtab

import "github.com/macroexp/gm4/builtin"

// DefKind distinguishes a text-body macro from a native builtin.
type DefKind int

const (
	DefText DefKind = iota
	DefBuiltin
)

// Definition is one entry in a symbol's definition stack (spec.md §3).
type Definition struct {
	Kind    DefKind
	Text    string
	Builtin *builtin.Entry

	Traced           bool
	AcceptsMacroArgs bool
	BlindIfNoArgs    bool
}

// Symbol holds the non-empty stack of definitions bound to one name; the
// topmost is active (spec.md §3).
type Symbol struct {
	Name             string
	defs             []*Definition
	pendingExpansions int
	deleted          bool
}

// Top returns the active (topmost) definition, or nil if the stack is
// empty (which only happens transiently between the last popdef and the
// symbol's removal from the table).
func (s *Symbol) Top() *Definition {
	if len(s.defs) == 0 {
		return nil
	}
	return s.defs[len(s.defs)-1]
}

// Depth returns how many definitions are stacked for this symbol.
func (s *Symbol) Depth() int { return len(s.defs) }

// At returns the definition at stack depth i (0 = topmost), used by
// `dumpdef`-style introspection and the debugger's `print` command.
func (s *Symbol) At(i int) *Definition {
	if i < 0 || i >= len(s.defs) {
		return nil
	}
	return s.defs[len(s.defs)-1-i]
}

// Table is the symbol table: name -> Symbol, implemented as a Go map
// (spec.md leaves the hashing strategy open; Go's builtin map already
// resizes on load, satisfying the "resize when avg chain length grows"
// requirement without a hand-rolled hash table).
type Table struct {
	symbols map[string]*Symbol
}

// New creates an empty symbol table.
func New() *Table {
	return &Table{symbols: make(map[string]*Symbol)}
}

// Lookup returns the active definition for name, or (nil, false) if name
// is undefined or has an empty/deleted definition stack.
func (t *Table) Lookup(name string) (*Definition, bool) {
	sym, ok := t.symbols[name]
	if !ok || sym.deleted {
		return nil, false
	}
	d := sym.Top()
	if d == nil {
		return nil, false
	}
	return d, true
}

// LookupSymbol returns the Symbol itself (for pendingExpansions bookkeeping
// and introspection), or nil if name is not defined (never defined, or
// its whole stack has been popped or undefined).
func (t *Table) LookupSymbol(name string) *Symbol {
	sym, ok := t.symbols[name]
	if !ok || sym.deleted {
		return nil
	}
	return sym
}

func (t *Table) getOrCreate(name string) *Symbol {
	sym, ok := t.symbols[name]
	if !ok {
		sym = &Symbol{Name: name}
		t.symbols[name] = sym
	}
	return sym
}

// Pushdef prepends a new definition onto name's stack (spec.md §3/§4.4).
func (t *Table) Pushdef(name string, d *Definition) {
	sym := t.getOrCreate(name)
	sym.deleted = false
	sym.defs = append(sym.defs, d)
}

// Define replaces the topmost definition, creating the symbol if absent
// (spec.md §3/§4.4).
func (t *Table) Define(name string, d *Definition) {
	sym := t.getOrCreate(name)
	sym.deleted = false
	if len(sym.defs) == 0 {
		sym.defs = append(sym.defs, d)
		return
	}
	sym.defs[len(sym.defs)-1] = d
}

// Popdef removes the topmost definition. If the symbol's stack becomes
// empty and nothing is mid-expansion on it, the symbol is removed from the
// table outright; otherwise it is marked deleted and reclaimed later by
// EndExpansion (spec.md §3/§5 "pending_expansions").
func (t *Table) Popdef(name string) {
	sym, ok := t.symbols[name]
	if !ok || len(sym.defs) == 0 {
		return
	}
	sym.defs = sym.defs[:len(sym.defs)-1]
	t.reclaimIfEmpty(name, sym)
}

// Undefine removes the entire definition stack (spec.md §3/§4.4).
func (t *Table) Undefine(name string) {
	sym, ok := t.symbols[name]
	if !ok {
		return
	}
	sym.defs = nil
	t.reclaimIfEmpty(name, sym)
}

func (t *Table) reclaimIfEmpty(name string, sym *Symbol) {
	if len(sym.defs) > 0 {
		return
	}
	if sym.pendingExpansions > 0 {
		sym.deleted = true
		return
	}
	delete(t.symbols, name)
}

// BeginExpansion increments the symbol's in-flight expansion counter,
// deferring destruction while a builtin/user-macro call for it is still
// running (spec.md §4.5 step 5, §5 item 2).
func (t *Table) BeginExpansion(name string) {
	sym := t.getOrCreate(name)
	sym.pendingExpansions++
}

// EndExpansion decrements the counter and frees the symbol if it was
// marked deleted and the counter has reached zero (spec.md §4.5 step 8).
func (t *Table) EndExpansion(name string) {
	sym, ok := t.symbols[name]
	if !ok {
		return
	}
	sym.pendingExpansions--
	if sym.pendingExpansions <= 0 && sym.deleted {
		delete(t.symbols, name)
	}
}

// SetTraced toggles the traced flag on a symbol's current top definition.
func (t *Table) SetTraced(name string, traced bool) {
	sym, ok := t.symbols[name]
	if !ok {
		return
	}
	if d := sym.Top(); d != nil {
		d.Traced = traced
	}
}

// Iterate calls fn for every symbol defined when Iterate is called, in an
// unspecified order, having first copied out the full set of names and
// symbols — so fn may freely Popdef/Undefine/Pushdef any name (including
// the one currently being visited) without corrupting the iteration; a
// symbol removed by an earlier callback is still visited as it stood at
// the start (spec.md §4.4 "Concurrent modification", §5 item 1). Grounded
// on the teacher's NumericLabelTable-adjacent pattern of snapshotting
// before mutation.
func (t *Table) Iterate(fn func(name string, sym *Symbol)) {
	type entry struct {
		name string
		sym  *Symbol
	}
	snapshot := make([]entry, 0, len(t.symbols))
	for name, sym := range t.symbols {
		if sym.deleted || len(sym.defs) == 0 {
			continue
		}
		snapshot = append(snapshot, entry{name, sym})
	}
	for _, e := range snapshot {
		fn(e.name, e.sym)
	}
}

// Clear removes every symbol.
func (t *Table) Clear() {
	t.symbols = make(map[string]*Symbol)
}
