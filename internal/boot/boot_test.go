// Released under an MIT license. See LICENSE.

package boot

import (
	"testing"

	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/opcode"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

func newTestEvaluator(t *testing.T) (*heap.Heap, *types.WellKnown, *Evaluator) {
	t.Helper()
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	return h, wk, New(h, wk)
}

// envRef builds an (up . n) env-reference pair addressing slot n+2 of the
// environment frame up levels out.
func envRef(h *heap.Heap, up, n int32) value.Word {
	return h.AllocatePair(value.MakeInt(up), value.MakeInt(n))
}

func opVec(h *heap.Heap, op opcode.Op, rest ...value.Word) value.Word {
	elems := make([]value.Word, 0, len(rest)+1)
	elems = append(elems, value.MakeInt(int32(op)))
	elems = append(elems, rest...)
	return h.AllocateVectorFrom(elems)
}

func TestEvalSum(t *testing.T) {
	h, _, e := newTestEvaluator(t)
	form := opVec(h, opcode.Sum, value.MakeInt(1), value.MakeInt(2), value.MakeInt(3))

	got, err := e.Eval(form)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if value.IntValue(got) != 6 {
		t.Fatalf("got %d, want 6", value.IntValue(got))
	}
}

func TestEvalMulOfNestedSum(t *testing.T) {
	h, _, e := newTestEvaluator(t)
	inner := opVec(h, opcode.Sum, value.MakeInt(3), value.MakeInt(4))
	form := opVec(h, opcode.Mul, value.MakeInt(2), inner)

	got, err := e.Eval(form)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if value.IntValue(got) != 14 {
		t.Fatalf("got %d, want 14", value.IntValue(got))
	}
}

func TestEvalIfTrueBranch(t *testing.T) {
	h, _, e := newTestEvaluator(t)
	form := opVec(h, opcode.If, value.True, value.MakeInt(1), value.MakeInt(2))

	got, err := e.Eval(form)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if value.IntValue(got) != 1 {
		t.Fatalf("got %d, want 1", value.IntValue(got))
	}
}

func TestEvalIfFalseBranch(t *testing.T) {
	h, _, e := newTestEvaluator(t)
	form := opVec(h, opcode.If, value.False, value.MakeInt(1), value.MakeInt(2))

	got, err := e.Eval(form)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if value.IntValue(got) != 2 {
		t.Fatalf("got %d, want 2", value.IntValue(got))
	}
}

func TestEvalQuoteReturnsLiteralUnevaluated(t *testing.T) {
	h, _, e := newTestEvaluator(t)
	literal := opVec(h, opcode.Sum, value.MakeInt(1), value.MakeInt(1)) // would be 2 if evaluated
	form := opVec(h, opcode.Quote, literal)

	got, err := e.Eval(form)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if got != literal {
		t.Fatal("quote must return its operand unevaluated")
	}
}

func TestEvalCallAppliesArgumentsPositionally(t *testing.T) {
	h, _, e := newTestEvaluator(t)

	// (lambda (a b) (sum a b)), called with 10 and 20.
	body := opVec(h, opcode.Sum, envRef(h, 0, 0), envRef(h, 0, 1))
	lambda := opVec(h, opcode.Lambda, body)
	form := opVec(h, opcode.Call, lambda, value.MakeInt(10), value.MakeInt(20))

	got, err := e.Eval(form)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if value.IntValue(got) != 30 {
		t.Fatalf("got %d, want 30", value.IntValue(got))
	}
}

func TestEvalApplySpreadsVectorArguments(t *testing.T) {
	h, _, e := newTestEvaluator(t)

	body := opVec(h, opcode.Sum, envRef(h, 0, 0), envRef(h, 0, 1))
	lambda := opVec(h, opcode.Lambda, body)

	args := h.AllocateVectorFrom([]value.Word{value.MakeInt(10), value.MakeInt(20)})
	quotedArgs := opVec(h, opcode.Quote, args)
	form := opVec(h, opcode.Apply, lambda, quotedArgs)

	got, err := e.Eval(form)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if value.IntValue(got) != 30 {
		t.Fatalf("got %d, want 30", value.IntValue(got))
	}
}

func TestEvalSetMutatesEnvSlotAndReturnsUnspecified(t *testing.T) {
	h, _, e := newTestEvaluator(t)

	// (lambda (a) (set a 99)), called with 1.
	body := opVec(h, opcode.Set, envRef(h, 0, 0), value.MakeInt(99))
	lambda := opVec(h, opcode.Lambda, body)
	form := opVec(h, opcode.Call, lambda, value.MakeInt(1))

	got, err := e.Eval(form)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if !value.IsUnspecified(got) {
		t.Fatal("set must evaluate to the unspecified value")
	}
}

func TestEvalSumTypeErrorOnNonInteger(t *testing.T) {
	h, _, e := newTestEvaluator(t)
	form := opVec(h, opcode.Sum, value.MakeInt(1), value.True)

	_, err := e.Eval(form)
	if err == nil {
		t.Fatal("summing a non-integer must be a type error")
	}
	if _, ok := err.(*TypeError); !ok {
		t.Fatalf("error type = %T, want *TypeError", err)
	}
}

func TestEvalCallNonFunctionIsTypeError(t *testing.T) {
	h, _, e := newTestEvaluator(t)
	form := opVec(h, opcode.Call, value.MakeInt(5))

	_, err := e.Eval(form)
	if err == nil {
		t.Fatal("calling a non-function must be a type error")
	}
	if _, ok := err.(*TypeError); !ok {
		t.Fatalf("error type = %T, want *TypeError", err)
	}
}

func TestEvalEnvReferenceReadsArgument(t *testing.T) {
	h, _, e := newTestEvaluator(t)

	// (lambda (a b) a), called with 7 and 8, must read argument a (slot 2).
	body := envRef(h, 0, 0)
	lambda := opVec(h, opcode.Lambda, body)
	form := opVec(h, opcode.Call, lambda, value.MakeInt(7), value.MakeInt(8))

	got, err := e.Eval(form)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if value.IntValue(got) != 7 {
		t.Fatalf("got %d, want 7", value.IntValue(got))
	}
}
