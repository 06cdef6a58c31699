package compiler

import (
	"io"

	"gopkg.in/yaml.v3"
)

// Dump is a serialisable snapshot of a translated Program.
type Dump struct {
	Symbols   []SymbolDump   `yaml:"symbols"`
	Strings   []string       `yaml:"strings,omitempty"`
	Functions []FunctionDump `yaml:"functions"`
}

type SymbolDump struct {
	Index  int    `yaml:"index"`
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Type   string `yaml:"type"`
	Len    int    `yaml:"len"`
	Init   int    `yaml:"init"`
	Scope  int    `yaml:"scope"`
	Offset int    `yaml:"offset"`
	Const  bool   `yaml:"const,omitempty"`
}

type FunctionDump struct {
	Name   string   `yaml:"name"`
	Params int      `yaml:"params"`
	Locals int      `yaml:"locals"`
	Atoms  []string `yaml:"atoms"`
}

func (p *Program) Dump() Dump {
	var d Dump
	for i := 0; i < p.Symbols.Len(); i++ {
		r := p.Symbols.At(i)
		d.Symbols = append(d.Symbols, SymbolDump{
			Index:  i,
			Name:   p.Symbols.DisplayName(i),
			Kind:   r.Kind.String(),
			Type:   r.Type.String(),
			Len:    r.Len,
			Init:   r.Init,
			Scope:  int(r.Scope),
			Offset: r.Offset,
			Const:  r.Const,
		})
	}
	for i := 0; i < p.Strings.Len(); i++ {
		d.Strings = append(d.Strings, p.Strings.At(i))
	}
	for _, fn := range p.Symbols.Functions() {
		f := FunctionDump{
			Name:   p.Symbols.DisplayName(fn),
			Params: p.Symbols.ParamCount(Scope(fn)),
			Locals: p.Symbols.LocalCount(Scope(fn)),
			Atoms:  []string{},
		}
		for _, a := range p.Atoms[Scope(fn)] {
			f.Atoms = append(f.Atoms, p.FormatAtom(a))
		}
		d.Functions = append(d.Functions, f)
	}
	return d
}

// WriteYAML encodes the Dump of p to w.
func (p *Program) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p.Dump()); err != nil {
		return err
	}
	return enc.Close()
}
