// Released under an MIT license. See LICENSE.

// Package runtime wires together the heap, the well-known descriptor
// table, the symbol table, the collector, the bootstrap reader/writer,
// and the bootstrap evaluator into the one object cmd/suo, package ui,
// and package wire all drive -- the same "construct heap, bootstrap
// types, intern symtab, wire collector" sequence internal/gc's own
// newWiredHeap test helper uses, promoted to a reusable, non-test type.
package runtime

import (
	"fmt"
	"io"
	"strings"

	"github.com/suolang/suo/internal/boot"
	"github.com/suolang/suo/internal/gc"
	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/reader"
	"github.com/suolang/suo/internal/symtab"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
	"github.com/suolang/suo/internal/writer"
)

// Runtime is one bootstrap heap plus every process-global structure this
// repository shares: the well-known type records, the 511-bucket symbol
// table, and the collector that relocates both during a collection.
type Runtime struct {
	Heap      *heap.Heap
	WellKnown *types.WellKnown
	Symbols   *symtab.Table
	Collector *gc.Collector
	Evaluator *boot.Evaluator
	formsRead int
}

// Options configures New. A zero Options value selects heap.DefaultWords
// capacity with debug heap-checking off.
type Options struct {
	HeapWords int
	DebugGC   bool
}

// New constructs a fully wired Runtime: a heap.Heap of the requested
// capacity, types.Bootstrap's well-known descriptors, a fresh symtab.Table,
// and a gc.Collector whose ExtraRoots closes over both so a collection
// relocates them along with every heap.Roots()-registered value.
func New(opts Options) *Runtime {
	h := heap.New(opts.HeapWords)
	h.SetDebugGC(opts.DebugGC)

	wk := types.Bootstrap(h)
	syms := symtab.New(h, wk)

	c := gc.Wire(h)
	c.Check = opts.DebugGC
	c.ExtraRoots = func(visit func(slot *value.Word)) {
		wk.Each(visit)
		syms.Each(visit)
	}

	return &Runtime{
		Heap:      h,
		WellKnown: wk,
		Symbols:   syms,
		Collector: c,
		Evaluator: boot.New(h, wk),
	}
}

// SetDebugCheck enables the optional heap consistency check on every
// future collection, matching --debug-gc.
func (rt *Runtime) SetDebugCheck(on bool) { rt.Collector.Check = on }

// ReadAll reads every top-level form out of src (one Reader over the
// whole buffer, package reader's non-incremental contract) and returns
// them in source order. A syntax error aborts the remaining forms in src
// but does not discard forms already read.
func (rt *Runtime) ReadAll(src, label string) ([]value.Word, error) {
	r := reader.New(rt.Heap, rt.WellKnown, rt.Symbols, src, label)

	var forms []value.Word
	for {
		v, ok, err := r.ReadOne()
		if err != nil {
			return forms, err
		}
		if !ok {
			return forms, nil
		}
		rt.formsRead++
		forms = append(forms, v)
	}
}

// EvalSource reads every top-level form in src and evaluates each in
// turn with the bootstrap evaluator, writing each form's printed result
// to out, one per line. It stops at the first reader or evaluator
// error.
func (rt *Runtime) EvalSource(src, label string, out io.Writer) error {
	forms, err := rt.ReadAll(src, label)
	if err != nil {
		return fmt.Errorf("%s: read error: %w", label, err)
	}

	w := writer.New(rt.Heap, rt.WellKnown, out)
	for _, form := range forms {
		result, evalErr := rt.Evaluator.Eval(form)
		if evalErr != nil {
			return fmt.Errorf("%s: %w", label, evalErr)
		}
		if err := w.Write(result); err != nil {
			return fmt.Errorf("%s: write error: %w", label, err)
		}
		if _, err := io.WriteString(out, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteString renders one value with the bootstrap writer and returns the
// printed text, the convenience package ui needs for a single REPL result.
func (rt *Runtime) WriteString(v value.Word) (string, error) {
	var sb strings.Builder
	w := writer.New(rt.Heap, rt.WellKnown, &sb)
	if err := w.Write(v); err != nil {
		return "", err
	}
	return sb.String(), nil
}
