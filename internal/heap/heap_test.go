// Released under an MIT license. See LICENSE.

package heap

import (
	"testing"

	"github.com/suolang/suo/internal/value"
)

func TestAllocatePairCarCdr(t *testing.T) {
	h := New(256)

	p := h.AllocatePair(value.MakeInt(1), value.MakeInt(2))
	if !value.IsPair(p) {
		t.Fatal("AllocatePair did not return a pair")
	}
	if got := value.Car(h, p); value.IntValue(got) != 1 {
		t.Fatalf("Car = %v, want 1", got)
	}
	if got := value.Cdr(h, p); value.IntValue(got) != 2 {
		t.Fatalf("Cdr = %v, want 2", got)
	}
}

func TestAllocateVectorFill(t *testing.T) {
	h := New(256)

	v := h.AllocateVector(5, value.MakeInt(9))
	if value.VectorLength(h, v) != 5 {
		t.Fatalf("VectorLength = %d, want 5", value.VectorLength(h, v))
	}
	for i := 0; i < 5; i++ {
		if got := value.VectorRef(h, v, i); value.IntValue(got) != 9 {
			t.Fatalf("VectorRef(%d) = %v, want 9", i, got)
		}
	}
	value.VectorSet(h, v, 2, value.MakeInt(100))
	if got := value.VectorRef(h, v, 2); value.IntValue(got) != 100 {
		t.Fatalf("VectorRef(2) after VectorSet = %v, want 100", got)
	}
}

func TestAllocateBytesRoundTrip(t *testing.T) {
	h := New(256)

	data := []byte("hello, suo")
	b := h.AllocateBytes(data)

	if value.BytesLength(h, b) != len(data) {
		t.Fatalf("BytesLength = %d, want %d", value.BytesLength(h, b), len(data))
	}
	for i, want := range data {
		if got := value.ByteRef(h, b, i); got != want {
			t.Fatalf("ByteRef(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestAllocatePastCapacityWithoutCollectorAborts(t *testing.T) {
	h := New(2)

	full := false
	h.onFull = func() { full = true }

	// Each pair takes 2 words; 2 words is exactly one pair, so the
	// second allocation must overflow with no collector installed.
	h.AllocatePair(value.MakeInt(1), value.MakeInt(2))
	h.AllocatePair(value.MakeInt(3), value.MakeInt(4))

	if !full {
		t.Fatal("expected onFull to run when the active semispace overflows with no collector installed")
	}
}

func TestInNewSpaceRespectsSemispaceBoundaries(t *testing.T) {
	h := New(16)

	// Active (space 0) spans [0,16); other (space 1) spans [16,32).
	if h.InNewSpace(h.ActiveBase()) {
		t.Fatal("active space address misreported as new space before any swap")
	}
	if !h.InNewSpace(h.OtherBase()) {
		t.Fatal("other space base address should report as new space")
	}
	if h.InNewSpace(h.OtherBase() + h.Cap()) {
		t.Fatal("address past other space's capacity should not report as new space")
	}
}

func TestRootsPushPopOrder(t *testing.T) {
	h := New(64)

	var a, b value.Word
	h.Roots().Push(&a)
	h.Roots().Push(&b)
	if h.Roots().Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Roots().Len())
	}
	h.Roots().Pop()
	if h.Roots().Len() != 1 {
		t.Fatalf("Len after one Pop = %d, want 1", h.Roots().Len())
	}
	h.Roots().Pop()
	if h.Roots().Len() != 0 {
		t.Fatalf("Len after two Pops = %d, want 0", h.Roots().Len())
	}
}
