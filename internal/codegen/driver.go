// Released under an MIT license. See LICENSE.

package codegen

import (
	"fmt"

	"github.com/suolang/suo/internal/closure"
	"github.com/suolang/suo/internal/cps"
	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/symtab"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

// Driver walks closed, register-allocated CPS and drives an Assembler.
type Driver struct {
	h   *heap.Heap
	wk  *types.WellKnown
	sym *symtab.Table
	asm Assembler

	// codeOf records each Func's generated code block, filled in as Fun
	// nodes are generated: this binds the func name's replacement to a
	// quoted code value. CodeRef nodes resolve through this map rather
	// than through a Var replacement table -- see the comment on
	// cps.CodeRef.
	codeOf map[*cps.Func]value.Word
}

func New(h *heap.Heap, wk *types.WellKnown, sym *symtab.Table, asm Assembler) *Driver {
	return &Driver{h: h, wk: wk, sym: sym, asm: asm, codeOf: map[*cps.Func]value.Word{}}
}

// Compile drives the whole pipeline's output (package closure's Convert
// output, after package regalloc's Run has assigned registers) and
// returns the top-level closure-type record: its code field is the
// generated code for the outer function, its captured vector empty.
func (d *Driver) Compile(prog cps.Node) value.Word {
	fun, ok := prog.(*cps.Fun)
	if !ok {
		panic(fmt.Sprintf("codegen: top-level program must be a fun, got %T", prog))
	}
	code := d.genFunc(fun.Func)
	// fun.Cont, for the program closure conversion produced, is the
	// closure-construction + bottom-primop chain that would run this
	// code inside a caller; cps-compile itself does not execute it, it
	// only needs the generated code for the outer function, so Cont
	// is discarded here by design.
	empty := d.h.AllocateVector(0, value.Nil)
	return types.NewClosure(d.h, d.wk, code, empty)
}

// genFunc implements the Func case: a fresh context, a prologue
// declaring the signature, the body walked into that context, then
// Finish.
func (d *Driver) genFunc(fn *cps.Func) value.Word {
	ctxt := d.asm.MakeContext()
	sig := signature(len(fn.Params), fn.Rest)
	ctxt.Prologue(sig)
	d.gen(ctxt, fn.Body)
	code := ctxt.Finish()
	d.codeOf[fn] = code
	return code
}

func signature(argc int, rest bool) int {
	sig := 2 * argc
	if rest {
		sig--
	}
	return sig
}

// gen walks one node into ctxt, the context of its enclosing function.
func (d *Driver) gen(ctxt Context, n cps.Node) {
	switch node := n.(type) {
	case *cps.App:
		d.genApp(ctxt, node)
	case *cps.Fun:
		d.genFun(ctxt, node)
	case *cps.Fix:
		for _, f := range node.Funcs {
			d.genFunc(f)
		}
		d.gen(ctxt, node.Body)
	case *cps.Primop:
		d.genPrimop(ctxt, node)
	case *cps.Func:
		// A bare Func with no enclosing Fun/Fix is generated as its
		// own function and immediately abandoned as a value; this
		// only arises from hand-built IR, not anything conv or
		// closure conversion emit.
		d.genFunc(node)
	default:
		panic(fmt.Sprintf("codegen: cannot generate control node of type %T", n))
	}
}

// genApp implements the App case: shuffle [signature, args...] into
// registers [0, 1...n], shuffle the callee into n+1, then jump.
func (d *Driver) genApp(ctxt Context, node *cps.App) {
	n := len(node.Args)
	sig := signature(n, node.Rest)

	sources := make([]Operand, 0, n+1)
	sources = append(sources, LiteralOperand{Value: value.MakeInt(int32(sig))})
	for _, arg := range node.Args {
		sources = append(sources, d.resolveOperand(arg))
	}
	destinations := make([]int, n+1)
	for i := range destinations {
		destinations[i] = i
	}
	ctxt.Shuffle(sources, destinations)

	ctxt.Shuffle([]Operand{d.resolveOperand(node.Func)}, []int{n + 1})
	ctxt.Go(n + 1)
}

// genFun implements the Fun case: generate the func's own code in a
// fresh context (recorded in codeOf for CodeRef resolution), then keep
// generating Cont in the *current* context -- Cont is ordinary control
// flow in the enclosing function, not a new one.
func (d *Driver) genFun(ctxt Context, node *cps.Fun) {
	d.genFunc(node.Func)
	d.gen(ctxt, node.Cont)
}

// genPrimop implements the Primop case: a label for every continuation
// after the first, which falls through.
func (d *Driver) genPrimop(ctxt Context, node *cps.Primop) {
	args := make([]Operand, len(node.Args))
	for i, a := range node.Args {
		args[i] = d.resolveOperand(a)
	}
	results := make([]int, len(node.Results))
	for i, r := range node.Results {
		results[i] = r.Reg
	}

	extraConts := len(node.Conts) - 1
	if extraConts < 0 {
		extraConts = 0
	}
	labels := make([]Label, 0, extraConts)
	for i := 1; i < len(node.Conts); i++ {
		labels = append(labels, ctxt.MakeLabel())
	}

	ctxt.Primop(string(node.Kind), results, args, labels)

	if len(node.Conts) > 0 {
		d.gen(ctxt, node.Conts[0])
	}
	for i := 1; i < len(node.Conts); i++ {
		ctxt.DefLabel(labels[i-1])
		d.gen(ctxt, node.Conts[i])
	}
}

// resolveOperand turns an atomic CPS value (the only kind that can appear
// in App.Func/Args or Primop.Args by this point in the pipeline) into an
// Operand: a register for a Var, a resolved literal for a Quote, or a
// generated function's code for a CodeRef.
func (d *Driver) resolveOperand(n cps.Node) Operand {
	switch node := n.(type) {
	case *cps.Var:
		if node.Reg == 0 {
			panic(fmt.Sprintf("codegen: var %s was never assigned a register", node))
		}
		return RegOperand{Reg: node.Reg}
	case *cps.Reg:
		return RegOperand{Reg: node.Index}
	case *cps.Quote:
		return LiteralOperand{Value: d.resolveLiteral(node.Value)}
	case *cps.CodeRef:
		code, ok := d.codeOf[node.Func]
		if !ok {
			// Forward reference to a sibling not yet generated
			// (possible for package closure's Fix-desugaring
			// simplification); generate it now.
			code = d.genFunc(node.Func)
		}
		return LiteralOperand{Value: code}
	default:
		panic(fmt.Sprintf("codegen: %T is not an atomic CPS value", n))
	}
}

// resolveLiteral maps a cps.Quote payload to an actual heap value. String
// payloads intern as symbols (every bare name conv/closure conversion
// quotes -- binding names for variable-ref/-set, the error-handler name --
// is a symbol-table lookup key into the shared intern table).
func (d *Driver) resolveLiteral(v interface{}) value.Word {
	switch val := v.(type) {
	case value.Word:
		return val
	case int:
		return value.MakeInt(int32(val))
	case int32:
		return value.MakeInt(val)
	case bool:
		return value.MakeBool(val)
	case string:
		return d.sym.Intern(val)
	case cps.Unspecified:
		return value.Unspecified
	case closure.ClosureDescriptor:
		return d.wk.ClosureType
	case nil:
		return value.Nil
	default:
		panic(fmt.Sprintf("codegen: cannot resolve literal of type %T", v))
	}
}
