package compiler

import (
	"fmt"
	"io"
	"strings"
)

// Scope is either GlobalScope or the symbol-table index of a function.
type Scope int

const GlobalScope Scope = -1

type SymbolKind int

const (
	KindUnknown SymbolKind = iota
	KindVar
	KindFunc
)

func (k SymbolKind) String() string {
	switch k {
	case KindVar:
		return "var"
	case KindFunc:
		return "func"
	}
	return "unknown"
}

type SymbolType int

const (
	TypeUnknown SymbolType = iota
	TypeInt
	TypeChar
)

func (t SymbolType) String() string {
	switch t {
	case TypeInt:
		return "integer"
	case TypeChar:
		return "chr"
	}
	return "unknown"
}

// Symbol is one record of the table. Len is the parameter count of a
// function and -1 until fixed. Offset is -1 until CalculateOffsets runs.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Type   SymbolType
	Len    int
	Init   int
	Scope  Scope
	Offset int
	Const  bool
}

// SymbolTable is an append-only list of records. A record's index is its
// identity and, for functions, the scope of the function's body.
type SymbolTable struct {
	records []Symbol
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// Len returns the number of records.
func (t *SymbolTable) Len() int { return len(t.records) }

// At returns a copy of record i.
func (t *SymbolTable) At(i int) Symbol { return t.records[i] }

func (t *SymbolTable) find(name string, scope Scope) (int, bool) {
	for i, r := range t.records {
		if r.Name == name && r.Scope == scope {
			return i, true
		}
	}
	return -1, false
}

func (t *SymbolTable) add(r Symbol) MemoryOperand {
	t.records = append(t.records, r)
	return MemoryOperand{Index: len(t.records) - 1}
}

// AddVar inserts a variable unless (name, scope) is already taken.
func (t *SymbolTable) AddVar(name string, scope Scope, typ SymbolType, init int, isConst bool) (MemoryOperand, bool) {
	if _, dup := t.find(name, scope); dup {
		return MemoryOperand{}, false
	}
	return t.add(Symbol{
		Name:   name,
		Kind:   KindVar,
		Type:   typ,
		Len:    -1,
		Init:   init,
		Scope:  scope,
		Offset: -1,
		Const:  isConst,
	}), true
}

// AddFunc inserts a function into the global scope unless the name is taken.
func (t *SymbolTable) AddFunc(name string, typ SymbolType, n int) (MemoryOperand, bool) {
	if _, dup := t.find(name, GlobalScope); dup {
		return MemoryOperand{}, false
	}
	return t.add(Symbol{
		Name:   name,
		Kind:   KindFunc,
		Type:   typ,
		Len:    n,
		Scope:  GlobalScope,
		Offset: -1,
	}), true
}

// CheckVar resolves name in scope, falling back to the global scope.
func (t *SymbolTable) CheckVar(scope Scope, name string) (MemoryOperand, bool) {
	i, ok := t.find(name, scope)
	if !ok && scope != GlobalScope {
		i, ok = t.find(name, GlobalScope)
	}
	if !ok || t.records[i].Kind != KindVar {
		return MemoryOperand{}, false
	}
	return MemoryOperand{Index: i}, true
}

// LookupFunc resolves a function by name regardless of its arity.
func (t *SymbolTable) LookupFunc(name string) (MemoryOperand, bool) {
	i, ok := t.find(name, GlobalScope)
	if !ok || t.records[i].Kind != KindFunc {
		return MemoryOperand{}, false
	}
	return MemoryOperand{Index: i}, true
}

// CheckFunc resolves a function whose parameter count equals argc.
func (t *SymbolTable) CheckFunc(name string, argc int) (MemoryOperand, bool) {
	f, ok := t.LookupFunc(name)
	if !ok || t.records[f.Index].Len != argc {
		return MemoryOperand{}, false
	}
	return f, true
}

// Alloc creates an anonymous integer temporary in scope.
func (t *SymbolTable) Alloc(scope Scope) MemoryOperand {
	return t.add(Symbol{
		Kind:   KindVar,
		Type:   TypeInt,
		Len:    -1,
		Scope:  scope,
		Offset: -1,
	})
}

// SetFuncLen fixes the parameter count of name. Only the first call has
// an effect.
func (t *SymbolTable) SetFuncLen(name string, n int) {
	if i, ok := t.find(name, GlobalScope); ok && t.records[i].Kind == KindFunc && t.records[i].Len == -1 {
		t.records[i].Len = n
	}
}

// ParamCount returns n, the fixed parameter count of the function owning scope.
func (t *SymbolTable) ParamCount(scope Scope) int {
	if n := t.records[scope].Len; n > 0 {
		return n
	}
	return 0
}

// LocalCount returns m, the number of locals and temporaries of scope.
func (t *SymbolTable) LocalCount(scope Scope) int {
	total := 0
	for _, r := range t.records {
		if r.Scope == scope {
			total++
		}
	}
	return total - t.ParamCount(scope)
}

// CalculateOffsets assigns every non-global variable its stack offset:
// parameters sit above the return address, locals and temporaries below.
func (t *SymbolTable) CalculateOffsets() {
	for i := range t.records {
		r := &t.records[i]
		if r.Kind != KindVar || r.Scope == GlobalScope {
			continue
		}
		s := int(r.Scope)
		n := t.ParamCount(r.Scope)
		m := t.LocalCount(r.Scope)
		j := i - s
		if j <= n {
			r.Offset = 2 * (m + n + 1 - j)
		} else {
			r.Offset = 2 * (m + n - j)
		}
	}
}

// Functions returns the indices of all function records in declaration order.
func (t *SymbolTable) Functions() []int {
	var out []int
	for i, r := range t.records {
		if r.Kind == KindFunc {
			out = append(out, i)
		}
	}
	return out
}

// GlobalOrdinal returns the position of global variable i among the
// global variables declared before it.
func (t *SymbolTable) GlobalOrdinal(i int) int {
	k := 0
	for _, r := range t.records[:i] {
		if r.Kind == KindVar && r.Scope == GlobalScope {
			k++
		}
	}
	return k
}

// DisplayName is the record's name, or TMP<i> for temporaries.
func (t *SymbolTable) DisplayName(i int) string {
	if name := t.records[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("TMP%d", i)
}

// GenerateGlobals writes one DB directive per global variable.
func (t *SymbolTable) GenerateGlobals(w io.Writer) error {
	k := 0
	for _, r := range t.records {
		if r.Kind != KindVar || r.Scope != GlobalScope {
			continue
		}
		if _, err := fmt.Fprintf(w, "var%d: DB %d\n", k, byte(r.Init)); err != nil {
			return err
		}
		k++
	}
	return nil
}

func (t *SymbolTable) String() string {
	var b strings.Builder
	b.WriteString("SYMBOL TABLE\n")
	fmt.Fprintf(&b, "%-5s %-10s %-8s %-8s %-4s %-5s %-6s %-6s %s\n",
		"code", "name", "kind", "type", "len", "init", "scope", "offset", "const")
	for i, r := range t.records {
		fmt.Fprintf(&b, "%-5d %-10s %-8s %-8s %-4d %-5d %-6d %-6d %t\n",
			i, t.DisplayName(i), r.Kind, r.Type, r.Len, r.Init, r.Scope, r.Offset, r.Const)
	}
	return b.String()
}
