// Released under an MIT license. See LICENSE.

package asm

import (
	"testing"

	"github.com/suolang/suo/internal/closure"
	"github.com/suolang/suo/internal/codegen"
	"github.com/suolang/suo/internal/cps"
	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/regalloc"
	"github.com/suolang/suo/internal/symtab"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

// buildContinuation compiles a tiny closure-shaped func playing the role of
// the user-level "k" callee in "(lambda (k) (k 42))": a CPS-calling-
// convention function taking [closure, own-continuation, value] and
// ignoring everything but value, which it passes to bottom -- the
// hand-built terminal continuation a real top-level caller's generated
// code would otherwise supply.
func buildContinuation(d *codegen.Driver) value.Word {
	closureArg := cps.NewVar("closure", false)
	contArg := cps.NewVar("k", false)
	vParam := cps.NewVar("v", false)
	closureArg.Reg = 1
	contArg.Reg = 2
	vParam.Reg = 3

	fn := &cps.Func{
		Name:   cps.NewVar("k", false),
		Params: []*cps.Var{closureArg, contArg, vParam},
		Body:   &cps.Primop{Kind: cps.PrimBottom, Args: []cps.Node{vParam}},
	}
	fun := &cps.Fun{Func: fn, Cont: &cps.Primop{Kind: cps.PrimBottom}}
	return d.Compile(fun)
}

// TestEndToEndCompileAndExecute drives the whole pipeline end to end:
// conv -> closure conversion -> register allocation -> codegen ->
// asm.Machine, for the trivial program "(lambda (k) (k 42))", and
// confirms the executed closure actually returns 42.
func TestEndToEndCompileAndExecute(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	sym := symtab.New(h, wk)

	prog := &cps.LambdaForm{
		Params: []string{"k"},
		Body:   []cps.Source{&cps.CallForm{Fn: &cps.Sym{Name: "k"}, Args: []cps.Source{&cps.Literal{Value: 42}}}},
	}

	conv := cps.NewConverter(nil)
	fun, err := conv.Convert(prog)
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}

	converted := closure.New().Convert(fun)
	converted = regalloc.New().Run(converted)

	asmBackend := NewAssembler(h)
	driver := codegen.New(h, wk, sym, asmBackend)
	topClosure := driver.Compile(converted)

	contClosure := buildContinuation(driver)

	m := NewMachine(h, wk, sym)
	m.SetReg(1, topClosure)        // closureArg: unused, no free vars captured
	m.SetReg(2, value.Unspecified) // contVar: the whole program's own continuation, never called
	m.SetReg(3, contClosure)       // rawK: the "k" the program invokes with 42

	code := value.RecordField(h, topClosure, 0)
	result, err := m.Run(code)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if value.IntValue(result) != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
}
