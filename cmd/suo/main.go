// Released under an MIT license. See LICENSE.

// Command suo is Suo's bootstrap CLI: a small front end over the runtime
// and compiler packages this repository implements. It offers an
// interactive REPL, a one-shot --eval/--load mode, and a --wire mode
// speaking a newline-delimited s-expression protocol on stdin/stdout.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/suolang/suo/internal/runtime"
	"github.com/suolang/suo/internal/ui"
	"github.com/suolang/suo/internal/wire"
)

func main() {
	opts, err := parseOptions()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rt := runtime.New(runtime.Options{
		HeapWords: opts.heapWords,
		DebugGC:   opts.debugGC,
	})

	switch {
	case opts.wire:
		runWire(rt)
	case opts.eval != "":
		runEval(rt, opts.eval)
	case opts.load != "":
		runLoad(rt, opts.load)
	case opts.interactive:
		ui.Run(rt, os.Stdout)
	default:
		runLoad(rt, "")
	}
}

// runEval evaluates one --eval form and prints its result, one form per
// line.
func runEval(rt *runtime.Runtime, src string) {
	if err := rt.EvalSource(src, "<eval>", os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runLoad reads and evaluates every top-level form in path (or, with an
// empty path, from stdin for the non-interactive case), printing each
// result on its own line.
func runLoad(rt *runtime.Runtime, path string) {
	var (
		src   []byte
		err   error
		label = path
	)

	if path == "" {
		label = "<stdin>"
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := rt.EvalSource(string(src), label, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runWire drives the Emacs-side wire protocol server: each request line
// is evaluated with the bootstrap evaluator exactly like --eval, and its
// result framed back as the response.
func runWire(rt *runtime.Runtime) {
	server := wire.NewServer(rt, os.Stdin, os.Stdout, rt.Evaluator.Eval)
	if err := server.Serve(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
