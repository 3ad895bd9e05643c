// Released under an MIT license. See LICENSE.

// Package boot implements the non-recursive bootstrap evaluator: a
// labelled-dispatch loop over an explicit stack of three-slot frames
// (operation form, parallel results vector, next argument index), which
// carries all control state in struct fields instead of the Go call
// stack.
package boot

import (
	"fmt"

	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/opcode"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

// TypeError reports an evaluator type error: an opcode applied to a
// value of the wrong shape. This is treated as a fatal, uncovered-path
// abort; package boot itself only reports it, leaving the decision to
// terminate the process to the caller (cmd/suo) so the evaluator stays
// usable from tests.
type TypeError struct {
	Op  opcode.Op
	Msg string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("evaluator type error in %s: %s", e.Op, e.Msg)
}

// Evaluator runs the bootstrap evaluator against one heap and its
// well-known descriptors.
type Evaluator struct {
	h  *heap.Heap
	wk *types.WellKnown
}

// New creates an Evaluator bound to h/wk.
func New(h *heap.Heap, wk *types.WellKnown) *Evaluator {
	return &Evaluator{h: h, wk: wk}
}

// frame is one level of the evaluator's explicit control stack: the
// operation vector being evaluated, the heap-allocated results vector its
// arguments are written into as they are evaluated (which for `call`
// becomes the callee's new environment frame directly, reusing the same
// vector), and the next form index to evaluate.
type frame struct {
	form    value.Word
	results value.Word
	pos     int
	op      opcode.Op
}

// dispatch state: an explicit state variable driving a single loop, the
// same non-recursive technique package reader/writer use, applied to the
// evaluator's three named steps.
type state int

const (
	stateEvalForm state = iota
	stateDoOpStep
	stateUseValue
	stateDone
)

// Eval evaluates one post-macroexpansion form (one of two shapes: an
// env-reference pair, or an operation vector) and returns its value. The
// host call stack depth used by this loop never grows with the
// program's nesting depth; all recursion lives in the heap-backed frame
// stack and the results vectors it threads through.
func (e *Evaluator) Eval(topForm value.Word) (value.Word, error) {
	h := e.h

	var (
		form   = topForm
		env    = value.Nil
		result value.Word
		stack  []*frame
	)

	h.Roots().Push(&form)
	h.Roots().Push(&env)
	h.Roots().Push(&result)
	defer func() {
		h.Roots().Pop()
		h.Roots().Pop()
		h.Roots().Pop()
	}()

	pushFrame := func(f value.Word, op opcode.Op) *frame {
		fr := &frame{form: f, op: op, pos: 1}
		h.Roots().Push(&fr.form)
		fr.results = h.AllocateVector(value.VectorLength(h, f), value.Unspecified)
		h.Roots().Push(&fr.results)
		stack = append(stack, fr)
		return fr
	}
	popFrame := func() {
		stack = stack[:len(stack)-1]
		h.Roots().Pop()
		h.Roots().Pop()
	}

	st := stateEvalForm

	for {
		switch st {
		case stateEvalForm:
			switch {
			case value.IsPair(form):
				up := int(value.IntValue(value.Car(h, form)))
				n := int(value.IntValue(value.Cdr(h, form)))
				target := env
				for ; up > 0; up-- {
					target = value.Cdr(h, target)
				}
				frameVec := value.Car(h, target)
				result = value.VectorRef(h, frameVec, n+2)
				st = stateUseValue

			case value.IsVectorPtr(form):
				op := opcode.Op(value.IntValue(value.VectorRef(h, form, 0)))
				switch op {
				case opcode.Quote:
					result = value.VectorRef(h, form, 1)
					st = stateUseValue
				case opcode.Lambda:
					body := value.VectorRef(h, form, 1)
					result = h.AllocateRecord(e.wk.FunctionType, []value.Word{body, env})
					st = stateUseValue
				default:
					pushFrame(form, op)
					st = stateDoOpStep
				}

			default:
				result = form
				st = stateUseValue
			}

		case stateDoOpStep:
			f := stack[len(stack)-1]

			switch f.op {
			case opcode.If:
				if f.pos == 1 {
					form = value.VectorRef(h, f.form, 1)
					st = stateEvalForm
					continue
				}
				test := value.VectorRef(h, f.results, 1)
				if value.Truthy(test) {
					form = value.VectorRef(h, f.form, 2)
				} else {
					form = value.VectorRef(h, f.form, 3)
				}
				popFrame()
				st = stateEvalForm

			case opcode.Set:
				if f.pos == 1 {
					f.pos = 2
					form = value.VectorRef(h, f.form, 2)
					st = stateEvalForm
					continue
				}
				envRef := value.VectorRef(h, f.form, 1)
				up := int(value.IntValue(value.Car(h, envRef)))
				n := int(value.IntValue(value.Cdr(h, envRef)))
				target := env
				for ; up > 0; up-- {
					target = value.Cdr(h, target)
				}
				frameVec := value.Car(h, target)
				value.VectorSet(h, frameVec, n+2, value.VectorRef(h, f.results, 2))
				popFrame()
				result = value.Unspecified
				st = stateUseValue

			default:
				flen := value.VectorLength(h, f.form)
				if f.pos < flen {
					form = value.VectorRef(h, f.form, f.pos)
					st = stateEvalForm
					continue
				}

				switch f.op {
				case opcode.Call:
					funcVal := value.VectorRef(h, f.results, 1)
					if !types.IsFunction(h, e.wk, funcVal) {
						return value.Unspecified, &TypeError{Op: f.op, Msg: "call target is not a function"}
					}
					body := types.FunctionBody(h, funcVal)
					capturedEnv := types.FunctionEnv(h, funcVal)
					env = h.AllocatePair(f.results, capturedEnv)
					form = body
					popFrame()
					st = stateEvalForm

				case opcode.Apply:
					funcVal := value.VectorRef(h, f.results, 1)
					if !types.IsFunction(h, e.wk, funcVal) {
						return value.Unspecified, &TypeError{Op: f.op, Msg: "apply target is not a function"}
					}
					argVec := value.VectorRef(h, f.results, 2)
					if !value.IsVectorPtr(argVec) {
						return value.Unspecified, &TypeError{Op: f.op, Msg: "apply spread argument is not a vector"}
					}
					l := value.VectorLength(h, argVec)
					newFrame := h.AllocateVector(l+2, value.Unspecified)
					for i := 0; i < l; i++ {
						value.VectorSet(h, newFrame, i+2, value.VectorRef(h, argVec, i))
					}
					env = h.AllocatePair(newFrame, types.FunctionEnv(h, funcVal))
					form = types.FunctionBody(h, funcVal)
					popFrame()
					st = stateEvalForm

				case opcode.Sum, opcode.Mul:
					acc := int32(0)
					if f.op == opcode.Mul {
						acc = 1
					}
					for i := 1; i < flen; i++ {
						arg := value.VectorRef(h, f.results, i)
						if !value.IsSmallInt(arg) {
							return value.Unspecified, &TypeError{Op: f.op, Msg: "non-integer argument"}
						}
						if f.op == opcode.Sum {
							acc += value.IntValue(arg)
						} else {
							acc *= value.IntValue(arg)
						}
					}
					result = value.MakeInt(acc)
					popFrame()
					st = stateUseValue

				default:
					return value.Unspecified, &TypeError{Op: f.op, Msg: "unknown operation"}
				}
			}

		case stateUseValue:
			if len(stack) == 0 {
				st = stateDone
				continue
			}
			top := stack[len(stack)-1]
			value.VectorSet(h, top.results, top.pos, result)
			top.pos++
			st = stateDoOpStep

		case stateDone:
			return result, nil
		}
	}
}
