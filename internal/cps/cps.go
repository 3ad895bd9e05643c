// Released under an MIT license. See LICENSE.

// Package cps implements the continuation-passing-style intermediate
// representation, and the conv translator from the mini-source language.
// Every node kind is immutable after construction; trees are never
// mutated by later passes (internal/freevars, internal/closure,
// internal/regalloc, internal/codegen) -- they build replacement trees
// instead, the same "rebuild, don't mutate" discipline package
// reader/writer use for heap values.
package cps

import "fmt"

// Node is the common interface every CPS IR kind satisfies. It carries no
// behaviour of its own; it exists so the later passes can hold
// heterogeneous IR in slices and switch on dynamic type, the idiomatic Go
// analogue of a tagged sum type.
type Node interface {
	cpsNode()
}

var nextID int

// freshID returns a process-unique identifier for a newly bound Var. It
// is not safe for concurrent use, which is fine: the whole pipeline runs
// single-threaded.
func freshID() int {
	nextID++
	return nextID
}

// Var is a reference to a binding: a func parameter, a fix/fun label, or a
// primop result. Boxed vars denote set!-able bindings implemented as a
// one-field record (the "boxed?" flag).
type Var struct {
	ID    int
	Name  string
	Boxed bool

	// Reg is the register index package regalloc assigns this binding.
	// Zero means unassigned; valid indices start at 1, per func
	// boundary. regalloc sets this at the binding site (Func.Params,
	// Primop.Results, which stay []*Var) and rewrites every reference to
	// this Var elsewhere in the tree to a Reg node (the type below)
	// carrying the same index.
	Reg int
}

func (*Var) cpsNode() {}

// NewVar creates a fresh, uniquely-identified variable. Two Vars are the
// same binding if and only if they are the same pointer; Name is for
// diagnostics only, never for comparison.
func NewVar(name string, boxed bool) *Var {
	return &Var{ID: freshID(), Name: name, Boxed: boxed}
}

func (v *Var) String() string {
	if v.Boxed {
		return fmt.Sprintf("%s.%d[boxed]", v.Name, v.ID)
	}
	return fmt.Sprintf("%s.%d", v.Name, v.ID)
}

// Quote embeds a literal value, already read into the heap (a value.Word)
// or still a host-level literal prior to heap allocation during codegen;
// kept as interface{} so both quoted s-expressions and freshly synthesised
// constants (e.g. the closure-conversion pass's code-block references) fit
// the same node kind.
type Quote struct {
	Value interface{}
}

func (*Quote) cpsNode() {}

// Reg is a register index, introduced only by internal/regalloc; it
// never appears in the tree conv/closure conversion produce.
type Reg struct {
	Index int
}

func (*Reg) cpsNode() {}

// CodeRef names a Func whose generated code block a later pass (package
// codegen) will substitute in. Closure conversion introduces these in
// place of the "func name var, replaced with a quoted code block" dance
// codegen's var case performs; see DESIGN.md.
type CodeRef struct {
	Func *Func
}

func (*CodeRef) cpsNode() {}

// App is a function application: the function value being called, its
// argument values in left-to-right evaluation order, and whether the last
// argument is a spread "rest" argument.
type App struct {
	Func Node
	Args []Node
	Rest bool
}

func (*App) cpsNode() {}

// Func is a CPS lambda: its own name (used by Fix for mutual recursion and
// by codegen for the code-block's label), its formal parameters, whether
// the last parameter collects a rest-list, and its body.
type Func struct {
	Name   *Var
	Params []*Var
	Rest   bool
	Body   Node
}

func (*Func) cpsNode() {}

// Fix is a mutually recursive block of Funcs sharing one scope, followed
// by a body that may call any of them. conv never emits one -- it only
// ever introduces Fun -- but later hand-written or macro-expanded IR may,
// so it is kept for completeness.
type Fix struct {
	Funcs []*Func
	Body  Node
}

func (*Fix) cpsNode() {}

// Fun binds a single Func under a name visible in Cont -- the shape conv
// actually produces for :lambda.
type Fun struct {
	Func *Func
	Cont Node
}

func (*Fun) cpsNode() {}

// PrimopKind identifies a primitive operation a primop node performs.
type PrimopKind string

// The primop kinds the bootstrap passes and runtime primitives in this
// repository actually emit. Additional kinds (record/vector access,
// arithmetic, syscalls) are named as they're needed by closure conversion
// and codegen; this is not meant to be the full eventual primop
// vocabulary, only what closure conversion and codegen directly need.
const (
	PrimVarRef     PrimopKind = "variable-ref"
	PrimVarSet     PrimopKind = "variable-set"
	PrimBoxRef     PrimopKind = "box-ref"
	PrimBoxSet     PrimopKind = "box-set"
	PrimBoxMake    PrimopKind = "box-make"
	PrimVectorRef  PrimopKind = "vector-ref"
	PrimVectorSet  PrimopKind = "vector-set"
	PrimVectorMake PrimopKind = "vector-make"
	PrimRecordRef  PrimopKind = "record-ref"
	PrimRecordMake PrimopKind = "record-make"
	PrimIfRecord   PrimopKind = "if-record?"
	PrimSyscall    PrimopKind = "syscall"
	PrimBottom     PrimopKind = "bottom"
	PrimBootInfo   PrimopKind = "bootinfo"
)

// Primop is a primitive operation: its result vars (bound in every
// continuation), the argument values it consumes, and one continuation
// per outcome (for boolean branches, continuation 0 is taken on true,
// continuation 1 on false; for most primops there is exactly one,
// fallthrough continuation).
type Primop struct {
	Kind    PrimopKind
	Results []*Var
	Args    []Node
	Conts   []Node
}

func (*Primop) cpsNode() {}
