// Released under an MIT license. See LICENSE.

// Package ui provides the interactive read-eval-print loop for Suo: a
// liner.State driving prompt/history, gated by go-isatty so the
// prompt/history machinery only engages when attached to a terminal.
// The loop accumulates lines until package reader can read one complete
// top-level form (package reader's Reader takes a whole buffer, not an
// incremental stream), then hands that form to the bootstrap evaluator.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/suolang/suo/internal/runtime"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

// Prompt and ContinuePrompt match the line-oriented reader with a
// distinct continuation prompt while a construct is still open: one
// prompt for a fresh line, another while more input is needed to
// complete a form.
const (
	Prompt         = "suo> "
	ContinuePrompt = "  ... "
)

// Interactive reports whether fd looks like a terminal, gating the
// prompt/history features on isatty.IsTerminal(fd) or
// isatty.IsCygwinTerminal(fd).
func Interactive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Run drives an interactive REPL against rt, reading from stdin and
// writing results to out. It loops until liner reports EOF (Ctrl-D) or a
// prompt abort (Ctrl-C on an empty line).
func Run(rt *runtime.Runtime, out io.Writer) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetWordCompleter(completer(rt))

	var buf strings.Builder
	prompt := Prompt

	for {
		text, err := line.Prompt(prompt)
		switch err {
		case nil:
			line.AppendHistory(text)
		case liner.ErrPromptAborted:
			buf.Reset()
			prompt = Prompt
			continue
		default:
			return
		}

		buf.WriteString(text)
		buf.WriteByte('\n')

		forms, readErr := rt.ReadAll(buf.String(), "<stdin>")
		if readErr != nil && incomplete(readErr) {
			prompt = ContinuePrompt
			continue
		}

		buf.Reset()
		prompt = Prompt

		if readErr != nil {
			fmt.Fprintln(out, readErr)
			continue
		}

		for _, form := range forms {
			result, evalErr := rt.Evaluator.Eval(form)
			if evalErr != nil {
				fmt.Fprintln(out, evalErr)
				continue
			}
			printed, werr := rt.WriteString(result)
			if werr != nil {
				fmt.Fprintln(out, werr)
				continue
			}
			fmt.Fprintln(out, printed)
		}
	}
}

// incomplete reports whether err is the specific "premature EOF inside
// construct" reader diagnostic, the signal that the REPL should keep
// reading continuation lines rather than report a syntax error
// immediately.
func incomplete(err error) bool {
	return strings.Contains(err.Error(), "premature EOF inside construct")
}

// completer offers every interned symbol whose name has the current word
// as a prefix: the symbol table every prior read populates.
func completer(rt *runtime.Runtime) liner.WordCompleter {
	return func(line string, pos int) (head string, completions []string, tail string) {
		head, tail = line[:pos], line[pos:]

		start := pos
		for start > 0 && !strings.ContainsRune(" \t([{'", rune(head[start-1])) {
			start--
		}
		word := head[start:pos]
		if word == "" {
			return head, nil, tail
		}

		var names []string
		rt.Symbols.Each(func(slot *value.Word) {
			name := types.SymbolText(rt.Heap, *slot)
			if strings.HasPrefix(name, word) {
				names = append(names, head[:start]+name)
			}
		})
		return head[:start], names, tail
	}
}
