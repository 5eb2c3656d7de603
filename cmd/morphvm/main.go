// morphvm CLI - runs compiled morph program images
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/morphvm/manifest"
	"github.com/chazu/morphvm/vm"
)

var log = commonlog.GetLogger("morphvm.cli")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	trace := flag.Bool("trace", false, "Log every executed instruction")
	dis := flag.Bool("dis", false, "Print a disassembly instead of running")
	export := flag.String("export", "", "Write the program and its imports as a CBOR bundle to `file` instead of running")
	startDir := flag.String("C", ".", "Directory to start the manifest search from")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: morphvm [options] <program.mvm> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a compiled morph program image.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  morphvm main.mvm                   # Run a program\n")
		fmt.Fprintf(os.Stderr, "  morphvm -dis main.mvm              # Show its bytecode\n")
		fmt.Fprintf(os.Stderr, "  morphvm -export app.cbor main.mvm  # Bundle it with its imports\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}
	program := flag.Arg(0)

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	if *trace {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	config, err := loadConfig(*startDir, program, flag.Args()[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *trace {
		config.Trace = true
	}

	if *dis {
		_, code, err := vm.LoadImageFile(program)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := vm.Disassemble(os.Stdout, code); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	machine := vm.NewVM(config)

	if *export != "" {
		if err := exportBundle(machine, program, *export); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	err = machine.RunFile(program)
	if cerr := machine.Close(); cerr != nil {
		log.Warningf("closing handles: %v", cerr)
	}
	os.Exit(exitStatus(err))
}

// loadConfig builds the VM configuration from the nearest manifest, if any.
func loadConfig(startDir, program string, args []string) (vm.Config, error) {
	config := vm.DefaultConfig()
	config.Args = append([]string{program}, args...)

	m, err := manifest.FindAndLoad(startDir)
	if err != nil {
		return config, err
	}
	if m == nil {
		// Fall back to the program's own directory after the working directory.
		if dir := filepath.Dir(program); dir != "." {
			config.SearchPaths = append(config.SearchPaths, dir)
		}
		return config, nil
	}

	log.Infof("using manifest in %s", m.Dir)
	paths, err := manifest.NewResolver(m).SearchPaths()
	if err != nil {
		return config, err
	}
	config.SearchPaths = paths
	if len(m.Modules.Extensions) > 0 {
		config.Extensions = m.Modules.Extensions
	}
	config.MaxFrames = m.Runtime.MaxFrames
	config.Trace = m.Runtime.Trace
	return config, nil
}

// exitStatus reports err on stderr and maps it to a process exit status.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}

	var exit *vm.ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}

	var uncaught *vm.UncaughtError
	if errors.As(err, &uncaught) {
		printTraceback(uncaught)
		return 1
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func printTraceback(e *vm.UncaughtError) {
	color := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	paint := func(code, s string) string {
		if !color {
			return s
		}
		return "\x1b[" + code + "m" + s + "\x1b[0m"
	}

	fmt.Fprintln(os.Stderr, paint("1;31", "Traceback (innermost first):"))
	for _, frame := range e.Traceback {
		fmt.Fprintln(os.Stderr, "  "+paint("2", frame))
	}
	msg := e.Value.String()
	if d := e.Value.Dict(); d != nil {
		if m, ok := d.GetString("pesan"); ok {
			msg = m.String()
		}
	}
	if kind := e.Kind(); kind != "" {
		fmt.Fprintf(os.Stderr, "%s: %s\n", paint("1;31", kind), msg)
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", paint("1;31", "Uncaught"), msg)
}
