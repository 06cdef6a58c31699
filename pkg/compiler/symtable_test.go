package compiler

import (
	"strings"
	"testing"
)

func TestSymbolTableAddVar(t *testing.T) {
	st := NewSymbolTable()
	g, ok := st.AddVar("x", GlobalScope, TypeInt, 5, false)
	if !ok || g.Index != 0 {
		t.Fatalf("AddVar(x) = %v, %v", g, ok)
	}
	if _, ok := st.AddVar("x", GlobalScope, TypeChar, 0, false); ok {
		t.Errorf("duplicate global x accepted")
	}
	f, _ := st.AddFunc("f", TypeInt, -1)
	if _, ok := st.AddVar("x", Scope(f.Index), TypeInt, 0, false); !ok {
		t.Errorf("local x shadowing a global was rejected")
	}

	r := st.At(0)
	if r.Kind != KindVar || r.Type != TypeInt || r.Init != 5 || r.Len != -1 || r.Offset != -1 {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestSymbolTableAddFunc(t *testing.T) {
	st := NewSymbolTable()
	if _, ok := st.AddFunc("f", TypeInt, -1); !ok {
		t.Fatal("AddFunc(f) failed")
	}
	if _, ok := st.AddFunc("f", TypeChar, 2); ok {
		t.Errorf("duplicate function accepted")
	}
	st.AddVar("g", GlobalScope, TypeInt, 0, false)
	if _, ok := st.AddFunc("g", TypeInt, 0); ok {
		t.Errorf("function named after a global variable accepted")
	}

	st.SetFuncLen("f", 2)
	st.SetFuncLen("f", 7)
	if n := st.At(0).Len; n != 2 {
		t.Errorf("Len = %d; SetFuncLen should only apply once", n)
	}
}

func TestSymbolTableLookups(t *testing.T) {
	st := NewSymbolTable()
	st.AddVar("g", GlobalScope, TypeInt, 0, false)
	f, _ := st.AddFunc("f", TypeInt, -1)
	scope := Scope(f.Index)
	local, _ := st.AddVar("a", scope, TypeInt, 0, false)
	st.SetFuncLen("f", 1)

	tests := []struct {
		name  string
		scope Scope
		ident string
		want  int
		ok    bool
	}{
		{"local", scope, "a", local.Index, true},
		{"global fallback", scope, "g", 0, true},
		{"global scope", GlobalScope, "g", 0, true},
		{"local invisible globally", GlobalScope, "a", 0, false},
		{"function is not a variable", scope, "f", 0, false},
		{"missing", scope, "zz", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := st.CheckVar(tc.scope, tc.ident)
			if ok != tc.ok || (ok && got.Index != tc.want) {
				t.Errorf("CheckVar(%d, %q) = %v, %v; want %d, %v", tc.scope, tc.ident, got, ok, tc.want, tc.ok)
			}
		})
	}

	if _, ok := st.CheckFunc("f", 1); !ok {
		t.Errorf("CheckFunc(f, 1) failed")
	}
	if _, ok := st.CheckFunc("f", 2); ok {
		t.Errorf("CheckFunc(f, 2) should fail on arity")
	}
	if _, ok := st.CheckFunc("g", 0); ok {
		t.Errorf("CheckFunc on a variable should fail")
	}
	if _, ok := st.LookupFunc("f"); !ok {
		t.Errorf("LookupFunc(f) failed")
	}
}

func TestSymbolTableOffsets(t *testing.T) {
	st := NewSymbolTable()
	st.AddVar("g", GlobalScope, TypeInt, 0, false)
	f, _ := st.AddFunc("f", TypeInt, -1)
	scope := Scope(f.Index)
	st.AddVar("a", scope, TypeInt, 0, false)
	st.AddVar("b", scope, TypeInt, 0, false)
	st.SetFuncLen("f", 2)
	st.AddVar("x", scope, TypeInt, 0, false)
	st.Alloc(scope)
	st.Alloc(scope)

	if n, m := st.ParamCount(scope), st.LocalCount(scope); n != 2 || m != 3 {
		t.Fatalf("n, m = %d, %d; want 2, 3", n, m)
	}

	st.CalculateOffsets()
	want := map[int]int{0: -1, 1: -1, 2: 10, 3: 8, 4: 4, 5: 2, 6: 0}
	for i, off := range want {
		if got := st.At(i).Offset; got != off {
			t.Errorf("record %d (%s) offset = %d; want %d", i, st.DisplayName(i), got, off)
		}
	}
}

func TestSymbolTableOffsetsDistinct(t *testing.T) {
	st := NewSymbolTable()
	for _, fn := range []struct {
		name           string
		params, locals int
	}{
		{"a", 0, 0}, {"b", 3, 0}, {"c", 0, 4}, {"d", 2, 5},
	} {
		f, _ := st.AddFunc(fn.name, TypeInt, -1)
		for i := 0; i < fn.params; i++ {
			st.AddVar(fn.name+"p"+string(rune('0'+i)), Scope(f.Index), TypeInt, 0, false)
		}
		st.SetFuncLen(fn.name, fn.params)
		for i := 0; i < fn.locals; i++ {
			st.Alloc(Scope(f.Index))
		}
	}
	st.CalculateOffsets()

	for _, fi := range st.Functions() {
		scope := Scope(fi)
		m, n := st.LocalCount(scope), st.ParamCount(scope)
		seen := map[int]bool{}
		for i := 0; i < st.Len(); i++ {
			r := st.At(i)
			if r.Scope != scope {
				continue
			}
			if r.Offset < 0 || r.Offset%2 != 0 || r.Offset >= 2*(m+n+1) {
				t.Errorf("%s: record %d has offset %d", st.At(fi).Name, i, r.Offset)
			}
			if r.Offset == 2*m {
				t.Errorf("%s: record %d overlaps the return address", st.At(fi).Name, i)
			}
			if seen[r.Offset] {
				t.Errorf("%s: offset %d used twice", st.At(fi).Name, r.Offset)
			}
			seen[r.Offset] = true
		}
	}
}

func TestSymbolTableGlobals(t *testing.T) {
	st := NewSymbolTable()
	st.AddVar("a", GlobalScope, TypeInt, 3, false)
	f, _ := st.AddFunc("main", TypeInt, 0)
	st.AddVar("local", Scope(f.Index), TypeInt, 9, false)
	st.AddVar("b", GlobalScope, TypeChar, -1, true)

	if k := st.GlobalOrdinal(3); k != 1 {
		t.Errorf("GlobalOrdinal(3) = %d; want 1", k)
	}
	if got := st.Functions(); len(got) != 1 || got[0] != 1 {
		t.Errorf("Functions() = %v", got)
	}

	var b strings.Builder
	if err := st.GenerateGlobals(&b); err != nil {
		t.Fatal(err)
	}
	if got, want := b.String(), "var0: DB 3\nvar1: DB 255\n"; got != want {
		t.Errorf("GenerateGlobals = %q; want %q", got, want)
	}
}

func TestSymbolTableDump(t *testing.T) {
	st := NewSymbolTable()
	st.AddVar("counter", GlobalScope, TypeChar, 1, true)
	st.Alloc(GlobalScope)
	out := st.String()
	assertContains(t, out, "SYMBOL TABLE")
	assertContains(t, out, "counter")
	assertContains(t, out, "chr")
	assertContains(t, out, "TMP1")
}

func TestStringTable(t *testing.T) {
	st := NewStringTable()
	a := st.Add("hello")
	b := st.Add("it's\n")
	c := st.Add("hello")
	if a != c || a == b || st.Len() != 2 {
		t.Fatalf("Add did not deduplicate: %v %v %v (len %d)", a, b, c, st.Len())
	}

	var out strings.Builder
	if err := st.GenerateStrings(&out); err != nil {
		t.Fatal(err)
	}
	want := "str0: DB 'hello', 0\nstr1: DB 'it', 39, 's', 10, 0\n"
	if out.String() != want {
		t.Errorf("GenerateStrings = %q; want %q", out.String(), want)
	}
}

func TestDBStringEmpty(t *testing.T) {
	if got := dbString(""); got != "0" {
		t.Errorf("dbString(\"\") = %q; want \"0\"", got)
	}
}
