// Package builtin defines the registry shapes for native builtin bindings
// (spec.md §3 "Builtin table entry", §4's "Builtin registry" component).
// A builtin's native function is kept as an opaque `any` here rather than
// a concretely-typed field: the macro package (which owns the expansion
// engine, argv, and every builtin implementation) stores its own function
// type in Entry.Func and type-asserts it back out when invoking. This
// mirrors spec.md §3's Input-frame FrozenBuiltin, which is itself an
// "opaque reference to a builtin" carried around by unrelated layers
// (the lexer, the input stack) that never need to know its signature —
// and avoids an import cycle between builtin and macro.
package builtin

// Handle identifies the module that installed a builtin, so that
// undefine-of-all-bindings-from-handle (spec.md §3) can find them again.
type Handle uint32

// NoHandle is the zero value, used for statically-registered core builtins.
const NoHandle Handle = 0

// Entry is one builtin table entry (spec.md §3).
type Entry struct {
	Name             string
	Func             any
	Handle           Handle
	AcceptsMacroArgs bool
	BlindIfNoArgs    bool
	MinArgs          int
	MaxArgs          int // -1 means unbounded
}

// Table maps names to builtin entries; each entry records its owning
// module handle, so UndefineHandle can remove a whole module's bindings at
// once by scanning the table.
type Table struct {
	entries map[string]*Entry
}

// NewTable creates an empty builtin table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Register installs e under e.Name, overwriting any previous binding of
// the same name (later module loads shadow earlier ones, matching GNU m4's
// module stacking behavior for builtins of the same name).
func (t *Table) Register(e *Entry) {
	t.entries[e.Name] = e
}

// Lookup returns the entry bound to name, if any.
func (t *Table) Lookup(name string) (*Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// UndefineHandle removes every entry whose Handle matches h (spec.md §3
// "undefine-of-all-bindings-from-handle").
func (t *Table) UndefineHandle(h Handle) {
	for name, e := range t.entries {
		if e.Handle == h {
			delete(t.entries, name)
		}
	}
}

// Names returns every currently registered builtin name, for `symbols`.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	return names
}
