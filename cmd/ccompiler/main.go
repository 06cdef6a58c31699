package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"minic/pkg/compiler"
	"minic/pkg/utils"
)

const testSource = `int x = 10;
int square(int v) {
	return v * v;
}
int main() {
	out square(x);
	return 0;
}
`

var heading = ansi.Style{}.Bold()

func main() {
	format := flag.String("format", "text", "dump format: text or yaml")
	save := flag.Bool("save", false, "also write the listing and image next to the source as .asm and .bin")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	color := term.IsTerminal(int(os.Stdout.Fd()))

	src := testSource
	path := ""
	if flag.NArg() > 0 {
		path = flag.Arg(0)
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	title := func(s string) {
		if color {
			s = heading.Styled(s)
		}
		fmt.Println(s)
	}

	t := compiler.NewTranslator(strings.NewReader(src))
	err := t.Translate()
	prog := t.Program()

	if *format == "yaml" {
		if werr := prog.WriteYAML(os.Stdout); werr != nil {
			slog.Error("yaml encoding failed", "err", werr)
			os.Exit(1)
		}
	} else {
		fmt.Printf("Source:\n%s\n", src)

		tokens, lexErr := compiler.Lex(src)
		title(fmt.Sprintf("Tokens (%d)", len(tokens)))
		for _, tok := range tokens {
			fmt.Println(" ", tok)
		}
		if lexErr != nil {
			fmt.Println(" ", lexErr)
		}
		fmt.Println()

		title("Atoms")
		if werr := prog.WriteAtoms(os.Stdout); werr != nil {
			slog.Error("atom listing failed", "err", werr)
		}
		fmt.Println()
		fmt.Print(prog.Symbols)
		fmt.Println()
		fmt.Print(prog.Strings)
		fmt.Println()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "translate error:", err)
		os.Exit(1)
	}

	asm, err := compiler.Generate(prog, compiler.GenerateOptions{Annotate: true, Color: color && *format == "text"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		os.Exit(1)
	}
	if *format == "text" {
		title("Generated Assembly")
		fmt.Print(asm)
	}

	if *save && path != "" {
		listing, image, err := compiler.Compile(src)
		if err != nil {
			fmt.Fprintln(os.Stderr, "assembly error:", err)
			os.Exit(1)
		}
		for ext, data := range map[string][]byte{".asm": []byte(*listing), ".bin": image} {
			out := utils.ReplaceExt(path, ext)
			if err := os.WriteFile(out, data, 0o644); err != nil {
				slog.Error("write failed", "path", out, "err", err)
				os.Exit(1)
			}
			slog.Info("written", "path", out, "bytes", len(data))
		}
	}
}
