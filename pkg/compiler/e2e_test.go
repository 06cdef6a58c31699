package compiler

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"minic/pkg/asm"
	"minic/pkg/cpu"
)

const maxTestSteps = 1_000_000

// runCode compiles source, runs it on the emulator with input on the
// input port, and returns everything the program wrote.
func runCode(t *testing.T, source, input string) string {
	t.Helper()
	res, err := CompileReader(strings.NewReader(source), GenerateOptions{Annotate: true})
	if err != nil {
		t.Fatalf("Compile failed: %v\nSource:\n%s", err, source)
	}
	return runImage(t, res.Code, input, res.Assembly)
}

func runImage(t *testing.T, image []byte, input, listing string) string {
	t.Helper()
	vm := cpu.NewCPU()
	if err := vm.Load(image); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var out bytes.Buffer
	vm.Output = &out
	vm.Input = strings.NewReader(input)
	if err := vm.RunFor(maxTestSteps); err != nil {
		t.Fatalf("run failed: %v\noutput so far: %q\nAssembly:\n%s", err, out.String(), listing)
	}
	return out.String()
}

func TestE2E_Expressions(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"constant", "out 5;", "5\n"},
		{"precedence", "out 1 + 2 * 3;", "7\n"},
		{"left associative", "out 10 - 3 - 2;", "5\n"},
		{"parentheses", "out (1 + 2) * 3;", "9\n"},
		{"multiply by zero", "out 0 * 9; out 9 * 0;", "0\n0\n"},
		{"wraps at a byte", "out 0 - 1; out 200 + 100;", "255\n44\n"},
		{"negation", "out -1 + 3; out - -5;", "2\n5\n"},
		{"relations chain", "out 1 < 2 == 1; out 3 < 2 < 1;", "1\n1\n"},
		{"greater", "out 5 > 3; out 3 > 5; out 4 > 4;", "1\n0\n0\n"},
		{"less", "out 3 < 5; out 5 < 3; out 4 < 4;", "1\n0\n0\n"},
		{"less or equal", "out 3 <= 3; out 2 <= 3; out 4 <= 3;", "1\n1\n0\n"},
		{"signed ordering", "out 100 > 0 - 100; out 0 - 100 < 100; out 0 - 100 > 100; out -128 <= 127; out 127 > -128; out -1 < 0;", "1\n1\n0\n1\n1\n1\n"},
		{"equality", "out 2 == 2; out 2 != 2; out 2 != 3;", "1\n0\n1\n"},
		{"not", "out !0; out !7; out !!7;", "1\n0\n1\n"},
		{"bitwise and or", "out (1 < 2) && (2 < 3); out 6 && 3; out 0 || 4;", "1\n2\n4\n"},
		{"char constant", "out 'A';", "65\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := runCode(t, "int main() { "+tc.body+" }", "")
			if got != tc.want {
				t.Errorf("got %q; want %q", got, tc.want)
			}
		})
	}
}

func TestE2E_Variables(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"global update",
			"int g = 7; int main() { g = g + 1; out g; }",
			"8\n",
		},
		{
			"negative global initializer",
			"int g = -1; int main() { out g; }",
			"255\n",
		},
		{
			"local initializers",
			"int main() { int a = 1, b = a + 1; const int k = 3; out b; out k * k; }",
			"2\n9\n",
		},
		{
			"increments",
			"int main() { int i = 5; int j = i++; out i; out j; out ++i; out i--; out i; }",
			"6\n5\n7\n7\n6\n",
		},
		{
			"locals shadow globals",
			"int x = 1; int main() { int x = 2; out x; }",
			"2\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runCode(t, tc.src, ""); got != tc.want {
				t.Errorf("got %q; want %q", got, tc.want)
			}
		})
	}
}

func TestE2E_ControlFlow(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"while",
			"int main() { int i = 3; while (i) { out i; i--; } }",
			"3\n2\n1\n",
		},
		{
			"for",
			"int main() { for (int i = 0; i < 3; i++) out i; }",
			"0\n1\n2\n",
		},
		{
			"for with zero iterations",
			"int main() { int i; for (i = 5; i < 3; i++) out i; out 9; }",
			"9\n",
		},
		{
			"for with empty clauses",
			"int f() { int n = 0; for (;;) { n++; if (n == 4) return n; } } int main() { out f(); }",
			"4\n",
		},
		{
			"nested loops",
			"int main() { int i, j; for (i = 0; i < 2; i++) for (j = 0; j < 2; j++) out i * 10 + j; }",
			"0\n1\n10\n11\n",
		},
		{
			"if else chain",
			"int main() { int x = 2; if (x == 1) out 1; else if (x == 2) out 2; else out 3; }",
			"2\n",
		},
		{
			"early return",
			"int main() { out 1; return 0; out 2; }",
			"1\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runCode(t, tc.src, ""); got != tc.want {
				t.Errorf("got %q; want %q", got, tc.want)
			}
		})
	}
}

func TestE2E_Switch(t *testing.T) {
	defaultLast := `int main() {
	int x;
	in x;
	switch (x) {
	case 1: out 1;
	case 2: out 2;
	default: out 9;
	}
}`
	defaultFirst := `int main() {
	int x;
	in x;
	switch (x) {
	default: out 9;
	case 1: out 1;
	}
	out 0;
}`
	noDefault := `int main() {
	char c;
	in c;
	switch (c) {
	case 'a': out 1;
	}
	out 0;
}`

	tests := []struct {
		name  string
		src   string
		input string
		want  string
	}{
		{"first case", defaultLast, "1", "1\n"},
		{"second case", defaultLast, "2", "2\n"},
		{"default", defaultLast, "3", "9\n"},
		{"default first, case taken", defaultFirst, "1", "1\n0\n"},
		{"default first, default taken", defaultFirst, "4", "9\n0\n"},
		{"no default, match", noDefault, "97", "1\n0\n"},
		{"no default, no match", noDefault, "98", "0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runCode(t, tc.src, tc.input); got != tc.want {
				t.Errorf("got %q; want %q", got, tc.want)
			}
		})
	}
}

func TestE2E_Functions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"two parameters",
			"int add(int a, int b) { return a + b; } int main() { out add(2, 3); }",
			"5\n",
		},
		{
			"parameter order",
			"int sub(int a, int b) { return a - b; } int main() { out sub(9, 4); }",
			"5\n",
		},
		{
			"nested calls",
			"int add(int a, int b) { return a + b; } int main() { out add(add(1, 2), add(3, 4)); }",
			"10\n",
		},
		{
			"caller locals survive a call",
			"int sq(int v) { int r; r = v * v; return r; } int main() { int a = 3; int b = sq(a); out a; out b; }",
			"3\n9\n",
		},
		{
			"call as statement",
			"int g; int set(int v) { g = v; } int main() { set(6); out g; }",
			"6\n",
		},
		{
			"no return yields zero",
			"int f() { } int main() { out f() + 1; }",
			"1\n",
		},
		{
			"forward declaration",
			"int f(int a); int main() { out f(3); }",
			"0\n",
		},
		{
			"factorial",
			"int fact(int n) { if (n < 2) return 1; return n * fact(n - 1); } int main() { out fact(5); }",
			"120\n",
		},
		{
			"fibonacci",
			"int fib(int n) { if (n < 2) return n; return fib(n - 1) + fib(n - 2); } int main() { out fib(10); }",
			"55\n",
		},
		{
			"three parameters with locals",
			"int mix(int a, int b, int c) { int t = a * 2; return t + b - c; } int main() { int x = 4; out mix(x, 10, 3); }",
			"15\n",
		},
		{
			"names shaped like generated labels",
			`int L1() { return 3; } int var0() { return 4; } int str0() { return 5; } int N0() { return !0; }
			int g; int main() { g = 1; if (g) out L1() + var0(); out str0(); out N0(); out "ok"; }`,
			"7\n5\n1\nok",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runCode(t, tc.src, ""); got != tc.want {
				t.Errorf("got %q; want %q", got, tc.want)
			}
		})
	}
}

func TestE2E_Input(t *testing.T) {
	src := "int main() { int x, y; in x; in y; out x * y; }"
	if got := runCode(t, src, "6 7"); got != "42\n" {
		t.Errorf("got %q; want %q", got, "42\n")
	}
	// exhausted input reads zero
	if got := runCode(t, src, "6"); got != "0\n" {
		t.Errorf("got %q; want %q", got, "0\n")
	}
}

func TestE2E_Strings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"plain", `out "hello";`, "hello"},
		{"semicolon and quote", `out "it's; ok";`, "it's; ok"},
		{"repeated literal", `out "ab"; out "ab";`, "abab"},
		{"mixed with numbers", `out "n="; out 3;`, "n=3\n"},
		{"empty", `out ""; out 1;`, "1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runCode(t, "int main() { "+tc.body+" }", ""); got != tc.want {
				t.Errorf("got %q; want %q", got, tc.want)
			}
		})
	}
}

func TestE2E_Division(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{7, 2, 3},
		{9, 3, 3},
		{2, 5, 0},
		{200, 1, 200},
		{5, 0, 0},
	}
	for _, tc := range tests {
		prog := newProgram()
		x, _ := prog.Symbols.AddVar("x", GlobalScope, TypeInt, 0, false)
		main, _ := prog.Symbols.AddFunc("main", TypeInt, 0)
		prog.Atoms[Scope(main.Index)] = []Atom{
			BinaryAtom{Op: OpDiv, Left: NumberOperand{Value: tc.a}, Right: NumberOperand{Value: tc.b}, Result: x},
			OutAtom{Value: x},
			RetAtom{Value: NumberOperand{Value: 0}},
		}
		listing, err := Generate(prog, GenerateOptions{})
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		image, _, err := asm.Assemble(listing)
		if err != nil {
			t.Fatalf("Assemble failed: %v\n%s", err, listing)
		}
		want := strconv.Itoa(tc.want) + "\n"
		if got := runImage(t, image, "", listing); got != want {
			t.Errorf("%d / %d: got %q; want %q", tc.a, tc.b, got, want)
		}
	}
}

func TestE2E_StepLimit(t *testing.T) {
	res, err := CompileReader(strings.NewReader("int main() { while (1) { } }"), GenerateOptions{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	vm := cpu.NewCPU()
	if err := vm.Load(res.Code); err != nil {
		t.Fatal(err)
	}
	if err := vm.RunFor(500); !errors.Is(err, cpu.ErrStepLimit) {
		t.Errorf("RunFor = %v; want ErrStepLimit", err)
	}
}

func TestCompile(t *testing.T) {
	listing, image, err := Compile("int main() { out 1; }")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	assertContains(t, *listing, "; [OUT,,, '1']")
	if len(image) <= 0x8000 {
		t.Errorf("image of %d bytes does not reach the data section", len(image))
	}

	_, _, err = Compile("int f() {}")
	if !errors.Is(err, ErrNoMain) {
		t.Errorf("Compile without main = %v; want ErrNoMain", err)
	}
	_, _, err = Compile("int main() { x = 1; }")
	if !errors.Is(err, ErrUndeclared) {
		t.Errorf("Compile with undeclared variable = %v; want ErrUndeclared", err)
	}
}

func TestCompileReaderColor(t *testing.T) {
	res, err := CompileReader(strings.NewReader("int main() { out 2; }"), GenerateOptions{Annotate: true, Color: true})
	if err != nil {
		t.Fatalf("colored listing failed to assemble: %v", err)
	}
	assertContains(t, res.Assembly, "\x1b[")
	if len(res.SourceMap) == 0 {
		t.Errorf("empty source map")
	}
	if got := runImage(t, res.Code, "", res.Assembly); got != "2\n" {
		t.Errorf("got %q; want %q", got, "2\n")
	}
}
