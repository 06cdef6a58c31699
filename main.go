package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"minic/pkg/compiler"
	"minic/pkg/cpu"
	"minic/pkg/devices"
	"minic/pkg/utils"
)

func main() {
	inPath := flag.String("in", "", "input source file path (default: stdin)")
	outPath := flag.String("out", "-", "output assembly listing path, - for stdout, empty to skip")
	binPath := flag.String("bin", "", "output binary file path")
	runProgram := flag.Bool("run", false, "run the compiled program on the 8080 emulator")
	input := flag.String("input", "", "whitespace-separated bytes for the input port (default: numbers from stdin when -in is set)")
	maxSteps := flag.Int("max-steps", 10_000_000, "instruction limit for -run")
	snapshot := flag.String("snapshot", "", "write the machine state after -run to this archive")
	color := flag.String("color", "auto", "color atom comments: auto, always or never")
	atoms := flag.Bool("atoms", true, "annotate the listing with atoms")
	verbose := flag.Bool("v", false, "log compilation stages")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	useColor, err := colorMode(*color, *outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	src, name, err := readSource(*inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.Debug("source loaded", "path", name, "bytes", len(src))

	res, err := compiler.CompileReader(strings.NewReader(src), compiler.GenerateOptions{Annotate: *atoms, Color: useColor})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
	slog.Debug("compiled",
		"symbols", res.Program.Symbols.Len(),
		"strings", res.Program.Strings.Len(),
		"functions", len(res.Program.Symbols.Functions()),
		"bytes", len(res.Code))

	if err := writeListing(*outPath, res.Assembly); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *binPath != "" {
		if err := os.WriteFile(*binPath, res.Code, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write binary file %q: %v\n", *binPath, err)
			os.Exit(1)
		}
		slog.Debug("binary written", "path", *binPath, "bytes", len(res.Code))
	}

	if !*runProgram {
		return
	}
	var tape *devices.Tape
	if *input != "" {
		if tape, err = devices.ParseTape(*input); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	var in io.Reader
	if *inPath != "" {
		in = bufio.NewReader(os.Stdin)
	}
	if err := run(res.Code, tape, in, os.Stdout, *maxSteps, *snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

func colorMode(mode, outPath string) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		return outPath == "-" && term.IsTerminal(int(os.Stdout.Fd())), nil
	}
	return false, errors.Errorf("invalid -color %q", mode)
}

func readSource(path string) (string, string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), "<stdin>", errors.Wrap(err, "read stdin")
	}
	full, _, err := utils.GetPathInfo(path)
	if err != nil {
		return "", path, errors.Wrapf(err, "resolve %q", path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", path, errors.Wrapf(err, "failed to read input file %q", path)
	}
	return string(data), path, nil
}

func writeListing(path, listing string) error {
	switch path {
	case "":
		return nil
	case "-":
		_, err := io.WriteString(os.Stdout, listing)
		return err
	}
	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, []byte(listing), 0o644), "failed to write listing %q", path)
}

// run executes code. Port 0 reads from tape when one is given, otherwise
// decimal numbers from in.
func run(code []byte, tape *devices.Tape, in io.Reader, out io.Writer, maxSteps int, snapshot string) error {
	vm := cpu.NewCPU()
	if err := vm.Load(code); err != nil {
		return err
	}
	vm.Input = in
	vm.Output = out
	if tape != nil {
		vm.MountDevice(cpu.PortInput, tape)
	}

	err := vm.RunFor(maxSteps)
	slog.Debug("run complete",
		"steps", vm.Steps,
		"pc", fmt.Sprintf("0x%04X", vm.PC),
		"sp", fmt.Sprintf("0x%04X", vm.SP),
		"a", vm.Regs[cpu.RegA])
	if tape != nil && tape.Remaining() > 0 {
		slog.Warn("input tape not fully consumed", "unread", tape.Remaining())
	}

	if snapshot != "" {
		if serr := vm.HibernateToFile(snapshot); serr != nil {
			slog.Error("snapshot failed", "path", snapshot, "err", serr)
		} else {
			slog.Debug("snapshot written", "path", snapshot)
		}
	}
	return err
}
