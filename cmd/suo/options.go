// Released under an MIT license. See LICENSE.

package main

import (
	"os"
	"strconv"

	"github.com/docopt/docopt-go"
	"github.com/suolang/suo/internal/ui"
)

// options holds the parsed command line: a docopt usage string, a
// ParseDoc call, and an isatty-gated interactive default, feeding a REPL,
// one-shot --eval/--load, --wire's Emacs protocol server on stdio, and
// the two runtime tuning flags (--heap-words, --debug-gc).
type options struct {
	eval        string
	load        string
	heapWords   int
	debugGC     bool
	wire        bool
	interactive bool
}

const usage = `suo

Usage:
  suo [--heap-words=<n>] [--debug-gc]
  suo [--heap-words=<n>] [--debug-gc] --eval=<form>
  suo [--heap-words=<n>] [--debug-gc] --load=<file>
  suo [--heap-words=<n>] [--debug-gc] --wire
  suo -h
  suo -v

Options:
  --eval=<form>       Read and evaluate one form, print its result, exit.
  --load=<file>        Read and evaluate every form in a file, then exit.
  --wire               Speak the newline-delimited s-expression protocol
                       on stdin/stdout instead of a REPL.
  --heap-words=<n>     Per-semispace word capacity [default: 217000].
  --debug-gc           Force a collection before every allocation and run
                       the debug heap consistency check around it.
  -h, --help           Display this help.
  -v, --version        Print suo's version.
`

func parseOptions() (*options, error) {
	opts, err := docopt.ParseDoc(usage)
	if err != nil {
		return nil, err
	}

	o := &options{}
	o.eval, _ = opts.String("--eval")
	o.load, _ = opts.String("--load")
	o.wire, _ = opts.Bool("--wire")
	o.debugGC, _ = opts.Bool("--debug-gc")

	if n, err := opts.String("--heap-words"); err == nil && n != "" {
		words, convErr := strconv.Atoi(n)
		if convErr != nil {
			return nil, convErr
		}
		o.heapWords = words
	}

	o.interactive = o.eval == "" && o.load == "" && !o.wire && ui.Interactive(os.Stdin.Fd())

	return o, nil
}
