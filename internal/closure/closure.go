// Released under an MIT license. See LICENSE.

// Package closure implements closure conversion: every
// Fun is rewritten so its Func takes an explicit leading closure argument,
// opens its captured free variables out of that closure's vector, and the
// Fun's continuation builds the closure-type record the rewritten Func is
// now reached through. Every App is rewritten to fetch the callee's code
// out of its closure record (guarded, with a trap/error-handler fallback
// for a non-closure callee) and to prepend the closure itself to the call.
package closure

import (
	"github.com/suolang/suo/internal/cps"
	"github.com/suolang/suo/internal/freevars"
)

// ClosureDescriptor is the Quote payload closure conversion emits wherever
// it needs to name the closure-type record descriptor: the if-record?
// guard on a callee, and the record-make that builds a fresh closure. It
// is a sentinel, not a value.Word, because this package operates purely
// on IR, before any heap exists; package codegen resolves it to the real
// types.WellKnown.ClosureType pointer once one does.
type ClosureDescriptor struct{}

// ErrorHandlerName is the well-known top-level binding the app-rewrite
// calls on a non-closure callee, if it is itself bound to a closure: the
// runtime-dispatch error kind.
const ErrorHandlerName = "error:not-a-closure"

// Converter carries no state across calls other than the freevars.Analysis
// cache, which is safe to reuse across an entire compilation since CPS
// trees are never mutated once built.
type Converter struct {
	fv *freevars.Analysis
}

func New() *Converter {
	return &Converter{fv: freevars.New()}
}

// repl is a scoped replacement environment: a var introduced before
// closure conversion may need to be read through a box-ref chain pulled
// out of a closure's captured vector instead of referenced directly,
// once it has crossed a func boundary.
type repl map[*cps.Var]cps.Node

func cloneRepl(r repl) repl {
	out := make(repl, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r repl) resolve(v *cps.Var) cps.Node {
	if n, ok := r[v]; ok {
		return n
	}
	return v
}

// Convert closure-converts an entire program (the cps.Fun package cps's
// Converter.Convert produces).
func (c *Converter) Convert(n cps.Node) cps.Node {
	return c.convert(n, repl{})
}

func (c *Converter) convert(n cps.Node, r repl) cps.Node {
	switch node := n.(type) {
	case *cps.Var:
		return r.resolve(node)
	case *cps.Quote, *cps.Reg, *cps.CodeRef:
		return node
	case *cps.App:
		return c.convertApp(node, r)
	case *cps.Fun:
		return c.convertFun(node, r)
	case *cps.Fix:
		// conv() never emits Fix -- it is retained for completeness
		// even though conversion only introduces Fun. Desugar it into
		// nested Funs, one per mutually-recursive member, each
		// converted independently in sequence. This does not give
		// later members a way to forward-reference an earlier one's
		// not-yet-built closure (there is no letrec-closure primop).
		body := node.Body
		for i := len(node.Funcs) - 1; i >= 0; i-- {
			body = &cps.Fun{Func: node.Funcs[i], Cont: body}
		}
		return c.convert(body, r)
	case *cps.Func:
		return &cps.Func{
			Name:   node.Name,
			Params: node.Params,
			Rest:   node.Rest,
			Body:   c.convert(node.Body, r),
		}
	case *cps.Primop:
		return c.convertPrimop(node, r)
	default:
		return n
	}
}

func (c *Converter) convertPrimop(node *cps.Primop, r repl) cps.Node {
	args := make([]cps.Node, len(node.Args))
	for i, a := range node.Args {
		args[i] = c.convert(a, r)
	}
	conts := make([]cps.Node, len(node.Conts))
	for i, ct := range node.Conts {
		conts[i] = c.convert(ct, r)
	}
	return &cps.Primop{Kind: node.Kind, Results: node.Results, Args: args, Conts: conts}
}

// convertApp rewrites "app func args" into a guarded code-fetch followed
// by the same call with the closure prepended.
func (c *Converter) convertApp(node *cps.App, r repl) cps.Node {
	fn := c.convert(node.Func, r)
	args := make([]cps.Node, len(node.Args))
	for i, a := range node.Args {
		args[i] = c.convert(a, r)
	}

	codeVar := cps.NewVar("code", false)
	call := &cps.App{Func: codeVar, Args: append([]cps.Node{fn}, args...), Rest: node.Rest}

	return &cps.Primop{
		Kind: cps.PrimIfRecord,
		Args: []cps.Node{fn, &cps.Quote{Value: ClosureDescriptor{}}},
		Conts: []cps.Node{
			&cps.Primop{
				Kind:    cps.PrimRecordRef,
				Results: []*cps.Var{codeVar},
				Args:    []cps.Node{fn, &cps.Quote{Value: 0}},
				Conts:   []cps.Node{call},
			},
			trapCall(fn),
		},
	}
}

// trapCall builds the failure branch of a non-closure call: look up
// error:not-a-closure as a top-level binding; if it is itself a closure,
// call it with the offending value; otherwise trap via a syscall primop.
func trapCall(fn cps.Node) cps.Node {
	handlerVar := cps.NewVar("handler", false)
	handlerCode := cps.NewVar("handlercode", false)
	callHandler := &cps.App{Func: handlerCode, Args: []cps.Node{handlerVar, fn}}

	return &cps.Primop{
		Kind:    cps.PrimVarRef,
		Results: []*cps.Var{handlerVar},
		Args:    []cps.Node{&cps.Quote{Value: ErrorHandlerName}},
		Conts: []cps.Node{
			&cps.Primop{
				Kind: cps.PrimIfRecord,
				Args: []cps.Node{handlerVar, &cps.Quote{Value: ClosureDescriptor{}}},
				Conts: []cps.Node{
					&cps.Primop{
						Kind:    cps.PrimRecordRef,
						Results: []*cps.Var{handlerCode},
						Args:    []cps.Node{handlerVar, &cps.Quote{Value: 0}},
						Conts:   []cps.Node{callHandler},
					},
					&cps.Primop{
						Kind:  cps.PrimSyscall,
						Args:  []cps.Node{&cps.Quote{Value: "trap:not-a-closure"}},
						Conts: []cps.Node{},
					},
				},
			},
		},
	}
}

// convertFun performs the four-step closure-conversion rewrite.
func (c *Converter) convertFun(node *cps.Fun, r repl) cps.Node {
	free := c.fv.Free(node.Func).Slice()

	closureArg := cps.NewVar("closure", false)
	capturedIn := cps.NewVar("captured", false)

	bodyRepl := cloneRepl(r)
	freshVars := make([]*cps.Var, len(free))
	for i, fv := range free {
		freshVars[i] = cps.NewVar(fv.Name, fv.Boxed)
		bodyRepl[fv] = freshVars[i]
	}

	convertedBody := c.convert(node.Func.Body, bodyRepl)

	// Open the closure: fetch the captured vector (field 1), then one
	// value per free var, innermost wrap first so freshVars[0] is bound
	// outermost (evaluation order doesn't matter here -- every binding
	// is in scope for the whole rewritten body regardless of nesting
	// order -- but outermost-first reads naturally top to bottom).
	wrapped := convertedBody
	for i := len(free) - 1; i >= 0; i-- {
		wrapped = &cps.Primop{
			Kind:    cps.PrimVectorRef,
			Results: []*cps.Var{freshVars[i]},
			Args:    []cps.Node{capturedIn, &cps.Quote{Value: i}},
			Conts:   []cps.Node{wrapped},
		}
	}
	wrapped = &cps.Primop{
		Kind:    cps.PrimRecordRef,
		Results: []*cps.Var{capturedIn},
		Args:    []cps.Node{closureArg, &cps.Quote{Value: 1}},
		Conts:   []cps.Node{wrapped},
	}

	newFunc := &cps.Func{
		Name:   node.Func.Name,
		Params: append([]*cps.Var{closureArg}, node.Func.Params...),
		Rest:   node.Func.Rest,
		Body:   wrapped,
	}

	// Build the closure record in Cont's scope, with the *current*
	// (already-replaced) values of the free vars, and recurse into Cont
	// with the func's name now resolving to the freshly built closure.
	capturedOut := cps.NewVar("capturedv", false)
	closureVal := cps.NewVar("closurev", false)

	replacedFreeVals := make([]cps.Node, len(free))
	for i, fv := range free {
		replacedFreeVals[i] = r.resolve(fv)
	}

	contRepl := cloneRepl(r)
	contRepl[node.Func.Name] = closureVal
	convertedCont := c.convert(node.Cont, contRepl)

	buildClosure := &cps.Primop{
		Kind:    cps.PrimVectorMake,
		Results: []*cps.Var{capturedOut},
		Args:    replacedFreeVals,
		Conts: []cps.Node{
			&cps.Primop{
				Kind:    cps.PrimRecordMake,
				Results: []*cps.Var{closureVal},
				Args:    []cps.Node{&cps.Quote{Value: ClosureDescriptor{}}, &cps.CodeRef{Func: newFunc}, capturedOut},
				Conts:   []cps.Node{convertedCont},
			},
		},
	}

	return &cps.Fun{Func: newFunc, Cont: buildClosure}
}
