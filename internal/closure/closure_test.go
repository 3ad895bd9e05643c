// Released under an MIT license. See LICENSE.

package closure

import (
	"testing"

	"github.com/suolang/suo/internal/cps"
)

func TestConvertFunAddsLeadingClosureParam(t *testing.T) {
	body := &cps.App{Func: cps.NewVar("k", false)}
	fn := &cps.Func{Name: cps.NewVar("f", false), Params: []*cps.Var{cps.NewVar("x", false)}, Body: body}
	fun := &cps.Fun{Func: fn, Cont: &cps.Primop{Kind: cps.PrimBottom}}

	out := New().Convert(fun)

	outFun, ok := out.(*cps.Fun)
	if !ok {
		t.Fatalf("Convert(fun) = %T, want *cps.Fun", out)
	}
	if len(outFun.Func.Params) != len(fn.Params)+1 {
		t.Fatalf("converted func has %d params, want %d (closure arg prepended)", len(outFun.Func.Params), len(fn.Params)+1)
	}
}

func TestConvertFunBuildsClosureRecordInContinuation(t *testing.T) {
	fn := &cps.Func{Name: cps.NewVar("f", false), Params: nil, Body: &cps.Quote{Value: 1}}
	fun := &cps.Fun{Func: fn, Cont: &cps.Primop{Kind: cps.PrimBottom}}

	out := New().Convert(fun).(*cps.Fun)

	vecMake, ok := out.Cont.(*cps.Primop)
	if !ok || vecMake.Kind != cps.PrimVectorMake {
		t.Fatalf("Cont = %#v, want a PrimVectorMake building the captured vector", out.Cont)
	}
	recMake, ok := vecMake.Conts[0].(*cps.Primop)
	if !ok || recMake.Kind != cps.PrimRecordMake {
		t.Fatalf("vecMake.Conts[0] = %#v, want a PrimRecordMake building the closure record", vecMake.Conts[0])
	}
	if ref, ok := recMake.Args[1].(*cps.CodeRef); !ok || ref.Func != out.Func {
		t.Fatalf("closure record's code field = %#v, want a CodeRef to the rewritten func", recMake.Args[1])
	}
}

func TestConvertAppGuardsNonClosureCallWithTrap(t *testing.T) {
	callee := cps.NewVar("f", false)
	app := &cps.App{Func: callee, Args: []cps.Node{cps.NewVar("x", false)}}

	out := New().Convert(app)

	guard, ok := out.(*cps.Primop)
	if !ok || guard.Kind != cps.PrimIfRecord {
		t.Fatalf("Convert(app) = %#v, want a PrimIfRecord guard", out)
	}
	if len(guard.Conts) != 2 {
		t.Fatalf("guard has %d continuations, want 2 (success, trap)", len(guard.Conts))
	}
	success, ok := guard.Conts[0].(*cps.Primop)
	if !ok || success.Kind != cps.PrimRecordRef {
		t.Fatalf("success branch = %#v, want a PrimRecordRef fetching the code field", guard.Conts[0])
	}
	call, ok := success.Conts[0].(*cps.App)
	if !ok || call.Func != success.Results[0] {
		t.Fatalf("call = %#v, want an App through the fetched code var", success.Conts[0])
	}
	if len(call.Args) != len(app.Args)+1 || call.Args[0] != callee {
		t.Fatalf("call args = %v, want the closure prepended before the original args", call.Args)
	}
}

func TestConvertVarResolvesThroughReplacementEnv(t *testing.T) {
	outer := cps.NewVar("y", false)
	fn := &cps.Func{Name: cps.NewVar("f", false), Params: nil, Body: &cps.App{Func: outer}}
	fun := &cps.Fun{Func: fn, Cont: &cps.Primop{Kind: cps.PrimBottom, Args: []cps.Node{outer}}}

	out := New().Convert(fun).(*cps.Fun)

	bottom := out.Cont.(*cps.Primop).Conts[0].(*cps.Primop).Conts[0].(*cps.Primop)
	if bottom.Kind != cps.PrimBottom {
		t.Fatalf("expected the bottom primop preserved in the rewritten continuation, got %#v", bottom)
	}

	fetchVec, ok := out.Func.Body.(*cps.Primop)
	if !ok || fetchVec.Kind != cps.PrimRecordRef {
		t.Fatalf("func body = %#v, want a PrimRecordRef fetching the captured vector", out.Func.Body)
	}
	fetchVar, ok := fetchVec.Conts[0].(*cps.Primop)
	if !ok || fetchVar.Kind != cps.PrimVectorRef || len(fetchVar.Results) != 1 {
		t.Fatalf("fetchVec.Conts[0] = %#v, want a PrimVectorRef binding the captured var", fetchVec.Conts[0])
	}
	replaced := fetchVar.Results[0]
	if replaced == outer {
		t.Fatalf("captured var %v was not replaced inside the converted func", outer)
	}
	guard, ok := fetchVar.Conts[0].(*cps.Primop)
	if !ok || guard.Kind != cps.PrimIfRecord || guard.Args[0] != replaced {
		t.Fatalf("call guard = %#v, want it to test the replacement var, not the outer one", fetchVar.Conts[0])
	}
}
