// Released under an MIT license. See LICENSE.

// Package regalloc implements the register allocation pass: every
// function's parameters and every primop's results receive contiguous
// integer register indices, starting at 1 at each func boundary (0 is
// reserved for the callee/continuation signature slot a call site
// shuffles into place). The policy is "fresh index per newly bound
// variable, never reuse" -- no liveness analysis, linear growth
// accepted. Every occurrence of a bound variable used as a value (an
// App's func/args, a Primop's args) is rewritten to a cps.Reg naming
// that index, matching the "rebuild, don't mutate" discipline the rest
// of the pipeline (package closure, package freevars) follows.
package regalloc

import "github.com/suolang/suo/internal/cps"

// Allocator walks a closure-converted CPS tree (every cps.Var remaining
// in it refers to a parameter, a primop result, or a closure-conversion
// replacement), assigns cps.Var.Reg at each binding site, and returns a
// rebuilt tree with every use of a bound variable replaced by a cps.Reg.
// Binding positions themselves (Func.Params, Primop.Results) stay typed
// as []*cps.Var -- codegen reads their assigned .Reg directly -- only
// reference positions (App.Func/Args, Primop.Args) become Reg nodes.
type Allocator struct {
	// funcs maps each original *cps.Func to the rebuilt copy Run produces
	// for it, so a CodeRef elsewhere in the tree -- built by closure
	// conversion to share pointer identity with the Func a sibling Fun
	// node introduces -- follows the rebuild instead of pinning codegen
	// to the pre-allocation copy.
	funcs map[*cps.Func]*cps.Func
}

func New() *Allocator { return &Allocator{funcs: map[*cps.Func]*cps.Func{}} }

// Run assigns registers throughout n and returns the rewritten tree.
func (a *Allocator) Run(n cps.Node) cps.Node {
	return a.visit(n, new(int))
}

// visit walks n, incrementing *counter once per freshly bound variable it
// encounters within the current func, and rebuilds n with every
// variable reference replaced by its assigned cps.Reg. counter is
// replaced with a fresh one whenever visit descends into a Func.
func (a *Allocator) visit(n cps.Node, counter *int) cps.Node {
	switch node := n.(type) {
	case *cps.Var:
		return &cps.Reg{Index: node.Reg}
	case *cps.Quote, *cps.Reg:
		return node
	case *cps.CodeRef:
		if rebuilt, ok := a.funcs[node.Func]; ok {
			return &cps.CodeRef{Func: rebuilt}
		}
		return node
	case *cps.App:
		fn := a.visit(node.Func, counter)
		args := make([]cps.Node, len(node.Args))
		for i, arg := range node.Args {
			args[i] = a.visit(arg, counter)
		}
		return &cps.App{Func: fn, Args: args, Rest: node.Rest}
	case *cps.Func:
		local := 0
		for _, p := range node.Params {
			local++
			p.Reg = local
		}
		rebuilt := &cps.Func{Name: node.Name, Params: node.Params, Rest: node.Rest}
		a.funcs[node] = rebuilt
		rebuilt.Body = a.visit(node.Body, &local)
		return rebuilt
	case *cps.Fix:
		funcs := make([]*cps.Func, len(node.Funcs))
		for i, f := range node.Funcs {
			funcs[i] = a.visit(f, new(int)).(*cps.Func)
		}
		body := a.visit(node.Body, counter)
		return &cps.Fix{Funcs: funcs, Body: body}
	case *cps.Fun:
		fn := a.visit(node.Func, new(int)).(*cps.Func)
		cont := a.visit(node.Cont, counter)
		return &cps.Fun{Func: fn, Cont: cont}
	case *cps.Primop:
		args := make([]cps.Node, len(node.Args))
		for i, arg := range node.Args {
			args[i] = a.visit(arg, counter)
		}
		for _, res := range node.Results {
			*counter++
			res.Reg = *counter
		}
		conts := make([]cps.Node, len(node.Conts))
		for i, cont := range node.Conts {
			conts[i] = a.visit(cont, counter)
		}
		return &cps.Primop{Kind: node.Kind, Results: node.Results, Args: args, Conts: conts}
	default:
		return n
	}
}
