package compiler

import "fmt"

// TokenType identifies the category of a scanned token.
type TokenType int

const (
	EOF     TokenType = iota // sentinel: end of input
	ILLEGAL                  // lexical error; Lexeme carries the message

	// Literals
	INTEGER    // decimal integer literal
	CHARACTER  // 'c'
	STRING     // "..."
	IDENTIFIER // variable / function name

	// Keywords
	INT     // "int"
	CHAR    // "char"
	CONST   // "const"
	IF      // "if"
	ELSE    // "else"
	SWITCH  // "switch"
	CASE    // "case"
	DEFAULT // "default"
	WHILE   // "while"
	FOR     // "for"
	RETURN  // "return"
	IN      // "in"
	OUT     // "out"

	// Paired delimiters
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :

	// Operators
	ASSIGN      // =
	PLUS        // +
	MINUS       // -
	STAR        // *
	NOT         // !
	PLUS_PLUS   // ++
	MINUS_MINUS // --
	EQUALS      // ==
	NOT_EQ      // !=
	LESS        // <
	LESS_EQ     // <=
	GREATER     // >
	OR_LOGICAL  // ||
	AND_LOGICAL // &&
)

var tokenNames = [...]string{
	EOF:         "EOF",
	ILLEGAL:     "ILLEGAL",
	INTEGER:     "INTEGER",
	CHARACTER:   "CHARACTER",
	STRING:      "STRING",
	IDENTIFIER:  "IDENTIFIER",
	INT:         "int",
	CHAR:        "char",
	CONST:       "const",
	IF:          "if",
	ELSE:        "else",
	SWITCH:      "switch",
	CASE:        "case",
	DEFAULT:     "default",
	WHILE:       "while",
	FOR:         "for",
	RETURN:      "return",
	IN:          "in",
	OUT:         "out",
	LPAREN:      "(",
	RPAREN:      ")",
	LBRACE:      "{",
	RBRACE:      "}",
	LBRACKET:    "[",
	RBRACKET:    "]",
	SEMICOLON:   ";",
	COMMA:       ",",
	COLON:       ":",
	ASSIGN:      "=",
	PLUS:        "+",
	MINUS:       "-",
	STAR:        "*",
	NOT:         "!",
	PLUS_PLUS:   "++",
	MINUS_MINUS: "--",
	EQUALS:      "==",
	NOT_EQ:      "!=",
	LESS:        "<",
	LESS_EQ:     "<=",
	GREATER:     ">",
	OR_LOGICAL:  "||",
	AND_LOGICAL: "&&",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) && tokenNames[t] != "" {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"int":     INT,
	"char":    CHAR,
	"const":   CONST,
	"if":      IF,
	"else":    ELSE,
	"switch":  SWITCH,
	"case":    CASE,
	"default": DEFAULT,
	"while":   WHILE,
	"for":     FOR,
	"return":  RETURN,
	"in":      IN,
	"out":     OUT,
}

// Token is a single lexical unit. Value holds the numeric payload of
// INTEGER and CHARACTER tokens; Lexeme holds identifier names, string
// contents and the message of an ILLEGAL token.
type Token struct {
	Type   TokenType
	Value  int
	Lexeme string
	Line   int
}

func (t Token) String() string {
	switch t.Type {
	case INTEGER:
		return fmt.Sprintf("[num, %d]", t.Value)
	case CHARACTER:
		return fmt.Sprintf("[chr, %q]", rune(t.Value))
	case STRING:
		return fmt.Sprintf("[str, %q]", t.Lexeme)
	case IDENTIFIER:
		return fmt.Sprintf("[id, %s]", t.Lexeme)
	case ILLEGAL:
		return fmt.Sprintf("[error, %s]", t.Lexeme)
	case EOF:
		return "[eof]"
	}
	return fmt.Sprintf("[%s]", t.Type)
}
