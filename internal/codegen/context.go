// Released under an MIT license. See LICENSE.

// Package codegen implements the code-generation driver: a walk over
// closed, register-allocated CPS that drives an external assembler
// context through a narrow, named interface (make-context/finish,
// make-label/def-label, prologue, shuffle, go, primop). The real
// assembler is treated as an external collaborator; package codegen/asm
// ships one concrete implementation so the closure this package returns
// is actually runnable end to end.
package codegen

import "github.com/suolang/suo/internal/value"

// Label is an opaque forward-reference target within one function's code,
// created by Context.MakeLabel and bound to a concrete position by
// Context.DefLabel.
type Label interface{}

// Operand is a resolved, ready-to-emit operand: either a register or an
// already-heap-resident literal value. By the time package codegen builds
// one, every cps.Var carries its final register (package regalloc) and
// every cps.Quote/cps.CodeRef payload has been resolved to a value.Word
// (the driver's job, since only it has a heap and a symbol table to
// resolve symbol/closure-descriptor literals against).
type Operand interface {
	operand()
}

// RegOperand names a register by index.
type RegOperand struct{ Reg int }

func (RegOperand) operand() {}

// LiteralOperand names a constant already resolved to a heap value.
type LiteralOperand struct{ Value value.Word }

func (LiteralOperand) operand() {}

// Assembler creates a fresh Context for each function package codegen
// compiles ("make-context").
type Assembler interface {
	MakeContext() Context
}

// Context accumulates one function's generated code. Every Primop call
// follows the "first continuation falls through, remaining continuations
// are emitted at provided labels" contract.
type Context interface {
	MakeLabel() Label
	DefLabel(Label)

	// Prologue emits the entry sequence declaring the expected argument
	// count; signature = 2*argc - (1 if rest else 0).
	Prologue(signature int)

	// Shuffle permutes sources into destinations (register indices),
	// using the minimal number of moves and spilling through a scratch
	// register to break cycles.
	Shuffle(sources []Operand, destinations []int)

	// Go jumps to the code held in register reg; always a tail position.
	Go(reg int)

	// Primop emits one primitive operation's instructions. results names
	// the destination registers (len(results) == 0 for a no-result,
	// branch-only primop like if-record?); extraLabels supplies a label
	// for every continuation after the first (which falls through).
	Primop(kind string, results []int, args []Operand, extraLabels []Label)

	// Finish finalises the context's buffer, producing a runnable code
	// block value.
	Finish() value.Word
}
