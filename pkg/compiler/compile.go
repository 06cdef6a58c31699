package compiler

import (
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/pkg/errors"

	"minic/pkg/asm"
)

// Result holds every product of a compilation.
type Result struct {
	Program   *Program
	Assembly  string
	Code      []byte
	SourceMap map[uint16]int
}

// CompileReader runs the whole pipeline on the source read from r:
// translation, code generation and assembly.
func CompileReader(r io.Reader, opts GenerateOptions) (*Result, error) {
	t := NewTranslator(r)
	if err := t.Translate(); err != nil {
		return nil, err
	}
	res := &Result{Program: t.Program()}

	assembly, err := Generate(res.Program, opts)
	if err != nil {
		return res, err
	}
	res.Assembly = assembly

	plain := assembly
	if opts.Color {
		plain = ansi.Strip(assembly)
	}
	res.Code, res.SourceMap, err = asm.Assemble(plain)
	if err != nil {
		return res, errors.Wrap(err, "assembly error")
	}
	return res, nil
}

// Compile translates src and returns the annotated listing and the
// assembled image.
func Compile(src string) (*string, []byte, error) {
	res, err := CompileReader(strings.NewReader(src), GenerateOptions{Annotate: true})
	if err != nil {
		if res != nil && res.Assembly != "" {
			return &res.Assembly, nil, err
		}
		return nil, nil, err
	}
	return &res.Assembly, res.Code, nil
}
