// Released under an MIT license. See LICENSE.

package cps

import "fmt"

// Unspecified is the Quote payload produced for forms whose value is
// unspecified (an empty :begin, the result of :set). It is a distinct
// sentinel type, not value.Unspecified, because package cps does not
// depend on package value or package heap: a Quote's payload is resolved
// to an actual heap value.Word only at codegen time.
type Unspecified struct{}

// Cont is conv's meta-continuation: a Go closure that takes the CPS value
// a sub-expression produced and returns the CPS instruction that follows.
type Cont func(Node) Node

// binding is what an Env maps a lexical name to.
type binding struct {
	v     *Var
	boxed bool
}

// Env is conv's lexical environment: a chain of scopes introduced by each
// enclosing LambdaForm. A name absent from every scope is a top-level
// reference.
type Env struct {
	parent *Env
	vars   map[string]*binding
}

func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, vars: map[string]*binding{}}
}

func (e *Env) lookup(name string) (*binding, bool) {
	for env := e; env != nil; env = env.parent {
		if b, ok := env.vars[name]; ok {
			return b, true
		}
	}
	return nil, false
}

func (e *Env) bind(name string, v *Var, boxed bool) {
	e.vars[name] = &binding{v: v, boxed: boxed}
}

// MacroLookup resolves an unbound call-head symbol to its expansion:
// unknown operators in the head of a call are macro-expanded through this
// hook. Expansion happens once per call site; the hook receives the
// original argument forms and returns a full replacement Source
// (typically a LambdaForm application or another CallForm), not just a
// substitute head.
type MacroLookup func(name string, args []Source) (Source, bool)

// Converter holds conv's one piece of external state: the macro hook.
// Two Converters never share Var identity, since each Convert/conv call
// tree mints fresh Vars: a var may be referenced many times but is
// introduced in exactly one place.
type Converter struct {
	Macro MacroLookup
}

func NewConverter(macro MacroLookup) *Converter {
	return &Converter{Macro: macro}
}

// Convert translates a whole program. The top-level rule: the whole
// program must be a LambdaForm, and its conversion must be a Fun whose
// continuation is a zero-continuation "bottom" primop (its one argument is
// the program's result) -- anything else aborts compilation.
func (c *Converter) Convert(prog Source) (*Fun, error) {
	if _, ok := prog.(*LambdaForm); !ok {
		return nil, fmt.Errorf("cps: top-level form must be a lambda, got %T", prog)
	}
	result := c.conv(prog, NewEnv(nil), func(v Node) Node {
		return &Primop{Kind: PrimBottom, Args: []Node{v}}
	})
	fun, ok := result.(*Fun)
	if !ok {
		return nil, fmt.Errorf("cps: top-level lambda conversion did not produce a fun (got %T)", result)
	}
	if p, ok := fun.Cont.(*Primop); !ok || p.Kind != PrimBottom {
		return nil, fmt.Errorf("cps: top-level fun's continuation must be a bottom primop, got %T", fun.Cont)
	}
	return fun, nil
}

func (c *Converter) conv(exp Source, env *Env, k Cont) Node {
	switch e := exp.(type) {
	case *Sym:
		return c.convSym(e.Name, env, k)
	case *Literal:
		return k(&Quote{Value: e.Value})
	case *QuoteForm:
		return k(&Quote{Value: e.Value})
	case *SetForm:
		return c.convSet(e, env, k)
	case *LambdaForm:
		return c.convLambda(e, env, k)
	case *BeginForm:
		return c.convBegin(e.Body, env, k)
	case *CallForm:
		return c.convCall(e, env, k)
	case *ApplyForm:
		return c.convArgs(e.Args, env, func(argVals []Node) Node {
			return c.conv(e.Fn, env, func(fnVal Node) Node {
				return c.applyWithCont(fnVal, argVals, true, k)
			})
		})
	case *CallCCForm:
		return c.convCallCC(e, env, k)
	case *CallVForm:
		return c.convCallV(e, env, k)
	case *PrimitiveForm:
		return c.convPrimitive(e, env, k)
	case *BootInfoForm:
		result := NewVar("bootinfo", false)
		return &Primop{
			Kind:    PrimBootInfo,
			Results: []*Var{result},
			Args:    []Node{&Quote{Value: e.Name}},
			Conts:   []Node{k(result)},
		}
	default:
		panic(fmt.Sprintf("cps: unhandled source form %T", exp))
	}
}

// convSym resolves a variable reference: a non-boxed bound var passes
// straight to k; a boxed one needs a box-ref primop; a name bound in no
// enclosing scope is a top-level reference, resolved with a variable-ref
// primop.
func (c *Converter) convSym(name string, env *Env, k Cont) Node {
	if b, ok := env.lookup(name); ok {
		if !b.boxed {
			return k(b.v)
		}
		tmp := NewVar(name, false)
		return &Primop{
			Kind:    PrimBoxRef,
			Results: []*Var{tmp},
			Args:    []Node{b.v},
			Conts:   []Node{k(tmp)},
		}
	}
	tmp := NewVar(name, false)
	return &Primop{
		Kind:    PrimVarRef,
		Results: []*Var{tmp},
		Args:    []Node{&Quote{Value: name}},
		Conts:   []Node{k(tmp)},
	}
}

// convSet evaluates the right-hand side, then emits a box-set (lexical) or
// variable-set (top-level) primop; the form's own value is unspecified.
func (c *Converter) convSet(e *SetForm, env *Env, k Cont) Node {
	return c.conv(e.Value, env, func(val Node) Node {
		if b, ok := env.lookup(e.Name); ok {
			if !b.boxed {
				panic("cps: set! target " + e.Name + " is not a boxed (mutable) binding")
			}
			return &Primop{
				Kind:  PrimBoxSet,
				Args:  []Node{b.v, val},
				Conts: []Node{k(&Quote{Value: Unspecified{}})},
			}
		}
		return &Primop{
			Kind:  PrimVarSet,
			Args:  []Node{&Quote{Value: e.Name}, val},
			Conts: []Node{k(&Quote{Value: Unspecified{}})},
		}
	})
}

// convLambda builds a Func whose body immediately boxes every parameter
// (so later :set sees a uniform boxed binding, ) and
// whose final value is threaded to the func's own continuation argument;
// the func's name is passed to k, and the whole thing is wrapped in Fun.
func (c *Converter) convLambda(e *LambdaForm, env *Env, k Cont) Node {
	contVar := NewVar("k", false)
	rawParams := make([]*Var, len(e.Params))
	for i, p := range e.Params {
		rawParams[i] = NewVar(p, false)
	}

	bodyEnv := NewEnv(env)
	var boxAndConv func(i int) Node
	boxAndConv = func(i int) Node {
		if i == len(e.Params) {
			return c.convBegin(e.Body, bodyEnv, func(v Node) Node {
				return &App{Func: contVar, Args: []Node{v}}
			})
		}
		boxVar := NewVar(e.Params[i], true)
		bodyEnv.bind(e.Params[i], boxVar, true)
		return &Primop{
			Kind:    PrimBoxMake,
			Results: []*Var{boxVar},
			Args:    []Node{rawParams[i]},
			Conts:   []Node{boxAndConv(i + 1)},
		}
	}

	params := append([]*Var{contVar}, rawParams...)
	fn := &Func{
		Name:   NewVar("lambda", false),
		Params: params,
		Rest:   e.Rest,
		Body:   boxAndConv(0),
	}
	return &Fun{Func: fn, Cont: k(fn.Name)}
}

// convBegin sequences sub-expressions left to right, discarding every
// value but the last (ordering guarantee).
func (c *Converter) convBegin(body []Source, env *Env, k Cont) Node {
	if len(body) == 0 {
		return k(&Quote{Value: Unspecified{}})
	}
	var seq func(i int) Node
	seq = func(i int) Node {
		if i == len(body)-1 {
			return c.conv(body[i], env, k)
		}
		return c.conv(body[i], env, func(Node) Node {
			return seq(i + 1)
		})
	}
	return seq(0)
}

// convArgs evaluates a slice of sub-expressions left to right,
// accumulating their CPS values before invoking k with the whole slice.
func (c *Converter) convArgs(args []Source, env *Env, k func([]Node) Node) Node {
	vals := make([]Node, len(args))
	var loop func(i int) Node
	loop = func(i int) Node {
		if i == len(args) {
			return k(vals)
		}
		return c.conv(args[i], env, func(v Node) Node {
			vals[i] = v
			return loop(i + 1)
		})
	}
	return loop(0)
}

// convCall handles the macro-expansion hook before falling into ordinary
// evaluate-args-then-function-then-apply conversion (:
// "evaluate args then function").
func (c *Converter) convCall(e *CallForm, env *Env, k Cont) Node {
	if sym, ok := e.Fn.(*Sym); ok {
		if _, bound := env.lookup(sym.Name); !bound && c.Macro != nil {
			if expanded, ok2 := c.Macro(sym.Name, e.Args); ok2 {
				return c.conv(expanded, env, k)
			}
		}
	}
	return c.convArgs(e.Args, env, func(argVals []Node) Node {
		return c.conv(e.Fn, env, func(fnVal Node) Node {
			return c.applyWithCont(fnVal, argVals, false, k)
		})
	})
}

// applyWithCont is the continuation-synthesis step every call-shaped form
// funnels through. It reifies k as a one-argument CPS function unless the
// body k produces is exactly (app K (result)) with matching arity and no
// rest-arg, in which case K is passed directly -- named
// tail-call-elimination optimisation.
func (c *Converter) applyWithCont(fnVal Node, args []Node, rest bool, k Cont) Node {
	resultVar := NewVar("r", false)
	body := k(resultVar)

	if direct := directContinuation(body, resultVar); direct != nil {
		return &App{Func: fnVal, Args: append([]Node{direct}, args...), Rest: rest}
	}

	kFunc := &Func{Name: NewVar("k", false), Params: []*Var{resultVar}, Rest: false, Body: body}
	call := &App{Func: fnVal, Args: append([]Node{kFunc.Name}, args...), Rest: rest}
	return &Fun{Func: kFunc, Cont: call}
}

// directContinuation recognises "(app K (resultVar))" and returns K, or
// nil if body is not in that exact shape.
func directContinuation(body Node, resultVar *Var) Node {
	app, ok := body.(*App)
	if !ok || app.Rest || len(app.Args) != 1 {
		return nil
	}
	rv, ok := app.Args[0].(*Var)
	if !ok || rv != resultVar {
		return nil
	}
	return app.Func
}

// convCallCC reifies the current continuation as a first-class,
// single-argument CPS function and passes it to Fn both as Fn's own call
// continuation and as the "current continuation" argument value -- calling
// it later with a value resumes evaluation exactly as invoking the
// surrounding k would have.
func (c *Converter) convCallCC(e *CallCCForm, env *Env, k Cont) Node {
	return c.conv(e.Fn, env, func(fnVal Node) Node {
		resultVar := NewVar("r", false)
		body := k(resultVar)
		kFunc := &Func{Name: NewVar("k", false), Params: []*Var{resultVar}, Rest: false, Body: body}
		call := &App{Func: fnVal, Args: []Node{kFunc.Name, kFunc.Name}}
		return &Fun{Func: kFunc, Cont: call}
	})
}

// convCallV evaluates Producer as a zero-argument thunk, feeds its result
// to Consumer, and continues Consumer's result in k.
func (c *Converter) convCallV(e *CallVForm, env *Env, k Cont) Node {
	return c.conv(e.Producer, env, func(prodVal Node) Node {
		return c.conv(e.Consumer, env, func(consVal Node) Node {
			return c.applyWithCont(prodVal, nil, false, func(v Node) Node {
				return c.applyWithCont(consVal, []Node{v}, false, k)
			})
		})
	})
}

// convPrimitive evaluates the primop's arguments, then either emits a
// single value-producing continuation (result feeds k) or, when Then is
// set, a boolean-branch primop whose continuations are themselves
// sub-conversions of Then/Else against the same k.
func (c *Converter) convPrimitive(e *PrimitiveForm, env *Env, k Cont) Node {
	return c.convArgs(e.Args, env, func(argVals []Node) Node {
		if e.Then != nil {
			conts := []Node{c.conv(e.Then, env, k)}
			if e.Else != nil {
				conts = append(conts, c.conv(e.Else, env, k))
			}
			return &Primop{Kind: e.Op, Args: argVals, Conts: conts}
		}
		resultVar := NewVar("p", false)
		return &Primop{
			Kind:    e.Op,
			Results: []*Var{resultVar},
			Args:    argVals,
			Conts:   []Node{k(resultVar)},
		}
	})
}
