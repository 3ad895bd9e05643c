// Released under an MIT license. See LICENSE.

// Package freevars implements used/bound/free analysis over the CPS IR:
// three functions, memoised per node by identity, since the IR trees
// package cps and package closure build are never mutated after
// construction.
package freevars

import "github.com/suolang/suo/internal/cps"

// Set is a de-duplicated, order-insignificant collection of variables.
// Ordering is never observable outside this package.
type Set map[*cps.Var]struct{}

func NewSet(vars ...*cps.Var) Set {
	s := make(Set, len(vars))
	for _, v := range vars {
		s[v] = struct{}{}
	}
	return s
}

func (s Set) Add(v *cps.Var) { s[v] = struct{}{} }

func (s Set) Has(v *cps.Var) bool {
	_, ok := s[v]
	return ok
}

// Union returns a new Set containing every member of s and other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for v := range s {
		out[v] = struct{}{}
	}
	for v := range other {
		out[v] = struct{}{}
	}
	return out
}

// Without returns a new Set with the given vars removed.
func (s Set) Without(vars ...*cps.Var) Set {
	out := make(Set, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	for _, v := range vars {
		delete(out, v)
	}
	return out
}

// Slice returns the set's members in no particular order; callers that
// need a stable order (e.g. package closure, when building a captured
// vector) sort or index this slice themselves once, then reuse the index.
func (s Set) Slice() []*cps.Var {
	out := make([]*cps.Var, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}

// Analysis memoises Used/Bound/Free per node, keyed by node identity
// (interface value wrapping a pointer -- the same notion of identity
// cps.Var uses for "a var is introduced in exactly one place").
type Analysis struct {
	used  map[cps.Node]Set
	bound map[cps.Node]Set
	free  map[cps.Node]Set
}

func New() *Analysis {
	return &Analysis{
		used:  map[cps.Node]Set{},
		bound: map[cps.Node]Set{},
		free:  map[cps.Node]Set{},
	}
}

// Used implements structural definition: the set of
// variables a node's evaluation reads, with no regard for whether they
// are bound within the node itself.
func (a *Analysis) Used(n cps.Node) Set {
	if s, ok := a.used[n]; ok {
		return s
	}
	var s Set
	switch node := n.(type) {
	case *cps.Var:
		s = NewSet(node)
	case *cps.Quote, *cps.Reg, *cps.CodeRef:
		s = NewSet()
	case *cps.App:
		s = a.Used(node.Func)
		for _, arg := range node.Args {
			s = s.Union(a.Used(arg))
		}
	case *cps.Primop:
		s = NewSet()
		for _, arg := range node.Args {
			s = s.Union(a.Used(arg))
		}
		for _, cont := range node.Conts {
			s = s.Union(a.Used(cont))
		}
	case *cps.Func:
		s = a.Used(node.Body)
	case *cps.Fix:
		s = NewSet()
		for _, f := range node.Funcs {
			s = s.Union(a.Used(f))
		}
		s = s.Union(a.Used(node.Body))
	case *cps.Fun:
		s = a.Used(node.Func).Union(a.Used(node.Cont))
	default:
		s = NewSet()
	}
	a.used[n] = s
	return s
}

// Bound is the set of variables a node introduces directly at its own
// binding position: a Func's params, a Primop's results, a Fix's func
// labels, a Fun's single func label. It is not a recursive union over
// children -- free's structural recursion (below) is what actually
// removes bindings at the scope they apply to.
func (a *Analysis) Bound(n cps.Node) Set {
	if s, ok := a.bound[n]; ok {
		return s
	}
	var s Set
	switch node := n.(type) {
	case *cps.Func:
		s = NewSet(node.Params...)
	case *cps.Primop:
		s = NewSet(node.Results...)
	case *cps.Fix:
		labels := make([]*cps.Var, len(node.Funcs))
		for i, f := range node.Funcs {
			labels[i] = f.Name
		}
		s = NewSet(labels...)
	case *cps.Fun:
		s = NewSet(node.Func.Name)
	default:
		s = NewSet()
	}
	a.bound[n] = s
	return s
}

// Free implements "free(node) = used(node) \ bound(node)
// computed structurally": parameters are removed at the func boundary, the
// func label at the fun boundary, primop results at the primop boundary.
func (a *Analysis) Free(n cps.Node) Set {
	if s, ok := a.free[n]; ok {
		return s
	}
	var s Set
	switch node := n.(type) {
	case *cps.Var:
		s = NewSet(node)
	case *cps.Quote, *cps.Reg, *cps.CodeRef:
		s = NewSet()
	case *cps.App:
		s = a.Free(node.Func)
		for _, arg := range node.Args {
			s = s.Union(a.Free(arg))
		}
	case *cps.Func:
		s = a.Free(node.Body).Without(node.Params...)
	case *cps.Fix:
		labels := make([]*cps.Var, len(node.Funcs))
		for i, f := range node.Funcs {
			labels[i] = f.Name
		}
		s = NewSet()
		for _, f := range node.Funcs {
			s = s.Union(a.Free(f))
		}
		s = s.Union(a.Free(node.Body))
		s = s.Without(labels...)
	case *cps.Fun:
		s = a.Free(node.Func).Union(a.Free(node.Cont)).Without(node.Func.Name)
	case *cps.Primop:
		s = NewSet()
		for _, arg := range node.Args {
			s = s.Union(a.Free(arg))
		}
		for _, cont := range node.Conts {
			s = s.Union(a.Free(cont))
		}
		s = s.Without(node.Results...)
	default:
		s = NewSet()
	}
	a.free[n] = s
	return s
}
