package compiler

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// scanState enumerates the states of the scanning automaton.
type scanState int

const (
	stateStart    scanState = iota
	stateNumber             // accumulating digits
	stateCharOpen           // after the opening '
	stateCharBody           // after the single character of a char literal
	stateString             // inside "..."
	stateIdent              // accumulating an identifier or keyword
	stateMinus              // saw '-', deciding between - and --
	stateBang               // saw '!', deciding between ! and !=
	stateLess               // saw '<', deciding between < and <=
	stateAssign             // saw '=', deciding between = and ==
	statePlus               // saw '+', deciding between + and ++
	statePipe               // saw '|', only || is valid
	stateAmp                // saw '&', only && is valid
)

// singleChar maps the one-character tokens that need no lookahead.
var singleChar = map[rune]TokenType{
	'(': LPAREN,
	')': RPAREN,
	'{': LBRACE,
	'}': RBRACE,
	'[': LBRACKET,
	']': RBRACKET,
	';': SEMICOLON,
	',': COMMA,
	':': COLON,
	'>': GREATER,
	'*': STAR,
}

// lookahead maps the states that decide between a one- and a two-character
// operator: the expected second character, the long form and the short form.
var lookahead = map[scanState]struct {
	second      rune
	long, short TokenType
}{
	stateMinus:  {'-', MINUS_MINUS, MINUS},
	stateBang:   {'=', NOT_EQ, NOT},
	stateLess:   {'=', LESS_EQ, LESS},
	stateAssign: {'=', EQUALS, ASSIGN},
	statePlus:   {'+', PLUS_PLUS, PLUS},
}

// Scanner produces tokens lazily from a character stream. It keeps exactly
// one character of pushback. Once it has reported end of input or a lexical
// error it is stopped and every later call returns EOF.
type Scanner struct {
	in   io.RuneReader
	line int // current 1-based source line

	stopped bool

	pushed    rune
	hasPushed bool

	lines []string // completed source lines
	cur   []rune   // current line read so far
}

// NewScanner wraps r in a scanner positioned at line 1.
func NewScanner(r io.Reader) *Scanner {
	rr, ok := r.(io.RuneReader)
	if !ok {
		rr = bufio.NewReader(r)
	}
	return &Scanner{in: rr, line: 1}
}

// read returns the next character. ok is false at end of input or on a
// read failure, reported through err.
func (s *Scanner) read() (c rune, ok bool, err error) {
	if s.hasPushed {
		s.hasPushed = false
		return s.pushed, true, nil
	}
	c, _, err = s.in.ReadRune()
	if err != nil {
		if err == io.EOF {
			return 0, false, nil
		}
		return 0, false, err
	}
	if c == '\n' {
		s.line++
		s.lines = append(s.lines, string(s.cur))
		s.cur = s.cur[:0]
	} else {
		s.cur = append(s.cur, c)
	}
	return c, true, nil
}

func (s *Scanner) unread(c rune) {
	s.pushed = c
	s.hasPushed = true
}

// fail stops the scanner and returns an ILLEGAL token carrying msg.
func (s *Scanner) fail(line int, format string, args ...any) Token {
	s.stopped = true
	return Token{Type: ILLEGAL, Lexeme: fmt.Sprintf(format, args...), Line: line}
}

// SourceLine returns the text of the 1-based line n as far as it has been
// read, or "" if the scanner has not reached it.
func (s *Scanner) SourceLine(n int) string {
	switch {
	case n >= 1 && n <= len(s.lines):
		return s.lines[n-1]
	case n == len(s.lines)+1:
		return string(s.cur)
	}
	return ""
}

// NextToken runs the automaton until it recognises one token.
func (s *Scanner) NextToken() Token {
	if s.stopped {
		return Token{Type: EOF, Line: s.line}
	}

	state := stateStart
	start := s.line
	var text strings.Builder
	var charValue rune

	for {
		c, ok, err := s.read()
		if err != nil {
			return s.fail(s.line, "read error: %v", err)
		}
		if !ok {
			s.stopped = true
			switch state {
			case stateStart:
				return Token{Type: EOF, Line: s.line}
			case stateCharOpen, stateCharBody:
				return s.fail(start, "unclosed char constant")
			case stateString:
				return s.fail(start, "unclosed string constant")
			}
			// flush the token in progress
			c = ' '
		}

		switch state {
		case stateStart:
			start = s.line
			switch {
			case isSpace(c):
				continue
			case isDigit(c):
				text.WriteRune(c)
				state = stateNumber
			case isLetter(c):
				text.WriteRune(c)
				state = stateIdent
			case c == '\'':
				state = stateCharOpen
			case c == '"':
				state = stateString
			case c == '-':
				state = stateMinus
			case c == '!':
				state = stateBang
			case c == '<':
				state = stateLess
			case c == '=':
				state = stateAssign
			case c == '+':
				state = statePlus
			case c == '|':
				state = statePipe
			case c == '&':
				state = stateAmp
			default:
				if tt, ok := singleChar[c]; ok {
					return Token{Type: tt, Line: start}
				}
				return s.fail(start, "unsupported symbol %q", c)
			}

		case stateNumber:
			if isDigit(c) {
				text.WriteRune(c)
				continue
			}
			s.unread(c)
			v, err := strconv.Atoi(text.String())
			if err != nil {
				return s.fail(start, "integer constant %s out of range", text.String())
			}
			return Token{Type: INTEGER, Value: v, Lexeme: text.String(), Line: start}

		case stateIdent:
			if isLetter(c) || isDigit(c) {
				text.WriteRune(c)
				continue
			}
			s.unread(c)
			name := text.String()
			if kw, ok := keywords[name]; ok {
				return Token{Type: kw, Lexeme: name, Line: start}
			}
			return Token{Type: IDENTIFIER, Lexeme: name, Line: start}

		case stateCharOpen:
			if c == '\'' {
				return s.fail(start, "empty char constant")
			}
			charValue = c
			state = stateCharBody

		case stateCharBody:
			if c != '\'' {
				return s.fail(start, "char constant must hold a single character")
			}
			return Token{Type: CHARACTER, Value: int(charValue), Lexeme: string(charValue), Line: start}

		case stateString:
			if c == '"' {
				return Token{Type: STRING, Lexeme: text.String(), Line: start}
			}
			text.WriteRune(c)

		case statePipe:
			if c == '|' {
				return Token{Type: OR_LOGICAL, Line: start}
			}
			return s.fail(start, "bad operator '|', expected '||'")

		case stateAmp:
			if c == '&' {
				return Token{Type: AND_LOGICAL, Line: start}
			}
			return s.fail(start, "bad operator '&', expected '&&'")

		default:
			la := lookahead[state]
			if c == la.second {
				return Token{Type: la.long, Line: start}
			}
			s.unread(c)
			return Token{Type: la.short, Line: start}
		}
	}
}

// Lex scans src to the end and returns every token, excluding the final EOF.
func Lex(src string) ([]Token, error) {
	s := NewScanner(strings.NewReader(src))
	var tokens []Token
	for {
		tok := s.NextToken()
		switch tok.Type {
		case EOF:
			return tokens, nil
		case ILLEGAL:
			return tokens, &CompileError{Kind: LexicalError, Line: tok.Line, Msg: tok.Lexeme, Snippet: s.SourceLine(tok.Line)}
		}
		tokens = append(tokens, tok)
	}
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
