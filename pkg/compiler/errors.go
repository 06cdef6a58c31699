package compiler

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind classifies a compilation failure.
type ErrorKind int

const (
	LexicalError ErrorKind = iota // malformed token
	SyntaxError                   // grammar or semantic violation
)

func (k ErrorKind) String() string {
	if k == LexicalError {
		return "LexicalError"
	}
	return "SyntaxError"
}

// Semantic failures wrapped by CompileError.Err.
var (
	ErrUndeclared      = errors.New("undeclared identifier")
	ErrArity           = errors.New("argument count mismatch")
	ErrDuplicate       = errors.New("duplicate declaration")
	ErrConstAssign     = errors.New("assignment to const")
	ErrNoMain          = errors.New("main() function not found")
	ErrNestedFunction  = errors.New("function definition inside function")
	ErrOutsideFunction = errors.New("statement outside function")
)

// CompileError is the first error of a compilation; there is no recovery.
type CompileError struct {
	Kind    ErrorKind
	Line    int
	Msg     string
	Snippet string
	Err     error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "%s : line %d: %s", e.Kind, e.Line, e.Msg)
	} else {
		fmt.Fprintf(&b, "%s : %s", e.Kind, e.Msg)
	}
	if s := strings.TrimSpace(e.Snippet); s != "" {
		fmt.Fprintf(&b, "\n  |> %s", s)
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return e.Err }
