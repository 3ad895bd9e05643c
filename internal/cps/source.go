// Released under an MIT license. See LICENSE.

package cps

// Source is the mini-language conv translates: symbols, self-quoting
// literals, :quote, :lambda, :begin, :primitive, :set, :call/cc,
// :call/v, :apply, :bootinfo, and ordinary call. This language is
// assumed already desugared by an external macro layer from Suo's real
// surface syntax; it is a Go-native AST here rather than a further
// heap-resident s-expression, since nothing downstream of conv ever
// needs to re-read it.
type Source interface {
	sourceNode()
}

// Sym is a variable reference or, in call head position, a possibly
// macro-expandable operator name.
type Sym struct{ Name string }

func (*Sym) sourceNode() {}

// Literal is a self-quoting datum (small integer, character, boolean,
// string, or any other already-read value.Word).
type Literal struct{ Value interface{} }

func (*Literal) sourceNode() {}

// QuoteForm is an explicit (:quote x); unlike Literal, its payload is
// never evaluated even if it looks like a call.
type QuoteForm struct{ Value interface{} }

func (*QuoteForm) sourceNode() {}

// LambdaForm introduces a function; each parameter is immediately boxed
// inside the body so later :set forms work uniformly.
type LambdaForm struct {
	Params []string
	Rest   bool
	Body   []Source
}

func (*LambdaForm) sourceNode() {}

// BeginForm evaluates each sub-expression in source order, passing only
// the last one's value onward; an empty BeginForm yields unspecified.
type BeginForm struct{ Body []Source }

func (*BeginForm) sourceNode() {}

// SetForm mutates a boxed lexical binding or a top-level variable.
type SetForm struct {
	Name  string
	Value Source
}

func (*SetForm) sourceNode() {}

// CallForm is an ordinary application; Fn may be a Sym whose name is
// looked up as a macro if it is not lexically bound -- unknown operators
// in the head of a call are macro-expanded via a lookup hook.
type CallForm struct {
	Fn   Source
	Args []Source
}

func (*CallForm) sourceNode() {}

// ApplyForm is :apply -- like CallForm except the final argument is a
// pre-built list/vector spread as the callee's trailing rest-arguments.
type ApplyForm struct {
	Fn   Source
	Args []Source
}

func (*ApplyForm) sourceNode() {}

// CallCCForm is :call/cc: Fn receives the reified current continuation as
// its sole argument.
type CallCCForm struct{ Fn Source }

func (*CallCCForm) sourceNode() {}

// CallVForm is :call/v: Producer is a zero-argument thunk; its result is
// passed to Consumer, whose result continues in the current continuation.
type CallVForm struct {
	Producer Source
	Consumer Source
}

func (*CallVForm) sourceNode() {}

// PrimitiveForm is :primitive: a primop invocation. When Then is nil the
// primop has a single, value-producing continuation and its result feeds
// the surrounding meta-continuation. When Then is set the primop is a
// boolean-branch primop (continuation 0 on true, continuation 1 on
// false); Else may be nil only if the primop itself has just one
// continuation despite being branch-shaped.
type PrimitiveForm struct {
	Op         PrimopKind
	Args       []Source
	Then, Else Source
}

func (*PrimitiveForm) sourceNode() {}

// BootInfoForm is :bootinfo -- an opaque query answered by the host
// environment (build identification, heap parameters, and similar values
// the bootstrap evaluator's #@... opcode family has no room for).
type BootInfoForm struct{ Name string }

func (*BootInfoForm) sourceNode() {}
