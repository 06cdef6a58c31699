package compiler

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// scanAll returns every token up to and including the first EOF or ILLEGAL.
func scanAll(src string) []Token {
	s := NewScanner(strings.NewReader(src))
	var out []Token
	for {
		tok := s.NextToken()
		out = append(out, tok)
		if tok.Type == EOF || tok.Type == ILLEGAL {
			return out
		}
	}
}

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestScannerTokenTypes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []TokenType
	}{
		{"declaration", "int x = 10;", []TokenType{INT, IDENTIFIER, ASSIGN, INTEGER, SEMICOLON, EOF}},
		{"keywords", "int char const if else switch case default while for return in out",
			[]TokenType{INT, CHAR, CONST, IF, ELSE, SWITCH, CASE, DEFAULT, WHILE, FOR, RETURN, IN, OUT, EOF}},
		{"punctuation", "[ ] ( ) { } ; , :",
			[]TokenType{LBRACKET, RBRACKET, LPAREN, RPAREN, LBRACE, RBRACE, SEMICOLON, COMMA, COLON, EOF}},
		{"operators", "- -- ! != < <= = == + ++ > * || &&",
			[]TokenType{MINUS, MINUS_MINUS, NOT, NOT_EQ, LESS, LESS_EQ, ASSIGN, EQUALS, PLUS, PLUS_PLUS, GREATER, STAR, OR_LOGICAL, AND_LOGICAL, EOF}},
		{"maximal munch", "---", []TokenType{MINUS_MINUS, MINUS, EOF}},
		{"no spaces", "a-b<=c==d", []TokenType{IDENTIFIER, MINUS, IDENTIFIER, LESS_EQ, IDENTIFIER, EQUALS, IDENTIFIER, EOF}},
		{"number then identifier", "12ab", []TokenType{INTEGER, IDENTIFIER, EOF}},
		{"identifier flushed at end", "abc", []TokenType{IDENTIFIER, EOF}},
		{"number flushed at end", "42", []TokenType{INTEGER, EOF}},
		{"operator flushed at end", "x-", []TokenType{IDENTIFIER, MINUS, EOF}},
		{"whitespace", " \t\r\n", []TokenType{EOF}},
		{"keyword prefix is identifier", "integer outer", []TokenType{IDENTIFIER, IDENTIFIER, EOF}},
		{"literals", `'a' "hi there"`, []TokenType{CHARACTER, STRING, EOF}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tokenTypes(scanAll(tc.src))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("scan(%q) = %v; want %v", tc.src, got, tc.want)
			}
		})
	}
}

func TestScannerPayloads(t *testing.T) {
	tokens := scanAll(`count 250 'z' "a b;c" ' '`)
	want := []Token{
		{Type: IDENTIFIER, Lexeme: "count", Line: 1},
		{Type: INTEGER, Value: 250, Lexeme: "250", Line: 1},
		{Type: CHARACTER, Value: 'z', Lexeme: "z", Line: 1},
		{Type: STRING, Lexeme: "a b;c", Line: 1},
		{Type: CHARACTER, Value: ' ', Lexeme: " ", Line: 1},
		{Type: EOF, Line: 1},
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("got %v\nwant %v", tokens, want)
	}
}

func TestScannerErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"empty char", "''", "empty char constant"},
		{"multi char", "'ab'", "single character"},
		{"unsupported symbol", "x # y", "unsupported symbol"},
		{"unclosed char", "'a", "unclosed char constant"},
		{"unclosed char at open", "'", "unclosed char constant"},
		{"unclosed string", `"abc`, "unclosed string constant"},
		{"lone pipe", "a | b", "'|'"},
		{"lone ampersand", "a & b", "'&'"},
		{"pipe at end", "|", "'|'"},
		{"huge number", "99999999999999999999", "out of range"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScanner(strings.NewReader(tc.src))
			var tok Token
			for tok = s.NextToken(); tok.Type != ILLEGAL; tok = s.NextToken() {
				if tok.Type == EOF {
					t.Fatalf("expected a lexical error for %q", tc.src)
				}
			}
			if !strings.Contains(tok.Lexeme, tc.msg) {
				t.Errorf("error %q does not mention %q", tok.Lexeme, tc.msg)
			}
			// a stopping error leaves the scanner stopped
			for i := 0; i < 3; i++ {
				if next := s.NextToken(); next.Type != EOF {
					t.Errorf("after error got %v; want EOF", next)
				}
			}
		})
	}
}

func TestScannerStaysStopped(t *testing.T) {
	s := NewScanner(strings.NewReader("x"))
	if tok := s.NextToken(); tok.Type != IDENTIFIER {
		t.Fatalf("first token = %v; want identifier", tok)
	}
	for i := 0; i < 5; i++ {
		if tok := s.NextToken(); tok.Type != EOF {
			t.Fatalf("call %d returned %v; want EOF", i, tok)
		}
	}
}

func TestScannerLines(t *testing.T) {
	tokens := scanAll("int\nx\n\n;\n\"two\nlines\" y")
	var lines []int
	for _, tok := range tokens {
		lines = append(lines, tok.Line)
	}
	want := []int{1, 2, 4, 5, 6, 6}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v; want %v", lines, want)
	}
}

func TestScannerSourceLine(t *testing.T) {
	s := NewScanner(strings.NewReader("int a;\nint b = #;"))
	for tok := s.NextToken(); tok.Type != ILLEGAL; tok = s.NextToken() {
	}
	if got := s.SourceLine(1); got != "int a;" {
		t.Errorf("SourceLine(1) = %q", got)
	}
	if got := s.SourceLine(2); got != "int b = #" {
		t.Errorf("SourceLine(2) = %q", got)
	}
	if got := s.SourceLine(7); got != "" {
		t.Errorf("SourceLine(7) = %q; want empty", got)
	}
}

func TestLex(t *testing.T) {
	tokens, err := Lex("out x;")
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	if got := tokenTypes(tokens); !reflect.DeepEqual(got, []TokenType{OUT, IDENTIFIER, SEMICOLON}) {
		t.Errorf("Lex tokens = %v", got)
	}

	_, err = Lex("int a;\nint b = 'xy';")
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if ce.Kind != LexicalError || ce.Line != 2 {
		t.Errorf("got kind %v line %d; want LexicalError on line 2", ce.Kind, ce.Line)
	}
	if !strings.HasPrefix(ce.Error(), "LexicalError : line 2:") {
		t.Errorf("unexpected message %q", ce.Error())
	}
}
