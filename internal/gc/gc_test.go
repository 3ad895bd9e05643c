// Released under an MIT license. See LICENSE.

package gc

import (
	"testing"

	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/symtab"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

func newWiredHeap(t *testing.T) (*heap.Heap, *types.WellKnown, *symtab.Table, *Collector) {
	t.Helper()

	h := heap.New(512)
	wk := types.Bootstrap(h)
	syms := symtab.New(h, wk)

	c := Wire(h)
	c.Check = true
	c.ExtraRoots = func(visit func(slot *value.Word)) {
		wk.Each(visit)
		syms.Each(visit)
	}

	return h, wk, syms, c
}

func TestCollectionPreservesPairGraph(t *testing.T) {
	h, _, _, c := newWiredHeap(t)

	list := value.Nil
	h.Roots().Push(&list)
	for i := 5; i >= 1; i-- {
		list = h.AllocatePair(value.MakeInt(int32(i)), list)
	}

	c.Run()

	got := make([]int32, 0, 5)
	for p := list; value.IsPair(p); p = value.Cdr(h, p) {
		got = append(got, value.IntValue(value.Car(h, p)))
	}
	h.Roots().Pop()

	want := []int32{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("list length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestCollectionPreservesVectorAndString(t *testing.T) {
	h, wk, _, c := newWiredHeap(t)

	str := types.NewString(h, wk, "hello")
	vec := h.AllocateVector(3, value.Unspecified)
	h.Roots().Push(&str)
	h.Roots().Push(&vec)
	value.VectorSet(h, vec, 0, value.MakeInt(7))
	value.VectorSet(h, vec, 1, str)
	value.VectorSet(h, vec, 2, value.True)

	c.Run()

	if got := value.IntValue(value.VectorRef(h, vec, 0)); got != 7 {
		t.Fatalf("vec[0] = %d, want 7", got)
	}
	if got := types.StringText(h, value.VectorRef(h, vec, 1)); got != "hello" {
		t.Fatalf("vec[1] string = %q, want %q", got, "hello")
	}
	if value.VectorRef(h, vec, 2) != value.True {
		t.Fatalf("vec[2] = %v, want #t", value.VectorRef(h, vec, 2))
	}

	h.Roots().Pop()
	h.Roots().Pop()
}

func TestCollectionIsIdempotent(t *testing.T) {
	h, wk, _, c := newWiredHeap(t)

	str := types.NewString(h, wk, "idempotent")
	h.Roots().Push(&str)

	c.Run()
	first := types.StringText(h, str)

	c.Run()
	second := types.StringText(h, str)

	h.Roots().Pop()

	if first != second {
		t.Fatalf("string content changed across collections: %q vs %q", first, second)
	}
}

func TestCollectionPreservesSelfReferentialDescriptor(t *testing.T) {
	h, wk, _, c := newWiredHeap(t)

	rec := h.AllocateRecord(wk.RecordTypeType, []value.Word{value.MakeInt(1), value.Unspecified})
	h.Roots().Push(&rec)

	c.Run()

	if got := value.RecordDescriptor(h, rec); got != wk.RecordTypeType {
		t.Fatal("record's descriptor no longer points at the relocated record-type-type")
	}
	if got := value.RecordDescriptor(h, wk.RecordTypeType); got != wk.RecordTypeType {
		t.Fatal("record-type-type is no longer self-referential after collection")
	}

	h.Roots().Pop()
}

func TestSymbolInterningSurvivesCollection(t *testing.T) {
	h, _, syms, c := newWiredHeap(t)

	a := syms.Intern("alpha")
	b := syms.Intern("beta")
	h.Roots().Push(&a)
	h.Roots().Push(&b)
	defer h.Roots().Pop()
	defer h.Roots().Pop()

	c.Run()

	if got, ok := syms.Lookup("alpha"); !ok || got != a {
		t.Fatal("alpha lost or changed identity across collection")
	}
	if got, ok := syms.Lookup("beta"); !ok || got != b {
		t.Fatal("beta lost or changed identity across collection")
	}
	if types.SymbolText(h, a) != "alpha" {
		t.Fatalf("alpha's name corrupted: %q", types.SymbolText(h, a))
	}
}
