// Released under an MIT license. See LICENSE.

package symtab

import (
	"testing"

	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

func TestInternIsIdempotent(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	tab := New(h, wk)

	a := tab.Intern("foo")
	b := tab.Intern("foo")
	if a != b {
		t.Fatal("interning the same name twice must return the same symbol")
	}
}

func TestInternDistinctNames(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	tab := New(h, wk)

	a := tab.Intern("foo")
	b := tab.Intern("bar")
	if a == b {
		t.Fatal("distinct names must not intern to the same symbol")
	}
}

func TestInternPreservesName(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	tab := New(h, wk)

	sym := tab.Intern("hello")
	if got := types.SymbolText(h, sym); got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestLookupMiss(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	tab := New(h, wk)

	if _, ok := tab.Lookup("never-interned"); ok {
		t.Fatal("Lookup must report false for a name never interned")
	}
}

func TestLookupHit(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	tab := New(h, wk)

	want := tab.Intern("quote")
	got, ok := tab.Lookup("quote")
	if !ok || got != want {
		t.Fatal("Lookup must return the interned symbol for a known name")
	}
}

func TestCount(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	tab := New(h, wk)

	if tab.Count() != 0 {
		t.Fatalf("Count on empty table = %d, want 0", tab.Count())
	}
	tab.Intern("a")
	tab.Intern("b")
	tab.Intern("a") // repeat, must not inflate the count
	if tab.Count() != 2 {
		t.Fatalf("Count = %d, want 2", tab.Count())
	}
}

func TestEachVisitsEveryEntry(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	tab := New(h, wk)

	names := []string{"alpha", "beta", "gamma"}
	for _, n := range names {
		tab.Intern(n)
	}

	seen := 0
	tab.Each(func(slot *value.Word) {
		seen++
		_ = *slot
	})
	if seen != len(names) {
		t.Fatalf("Each visited %d slots, want %d", seen, len(names))
	}
}
