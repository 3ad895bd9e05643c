// Released under an MIT license. See LICENSE.

package writer

import (
	"strings"
	"testing"

	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/reader"
	"github.com/suolang/suo/internal/symtab"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

func writeToString(t *testing.T, h value.Memory, wk *types.WellKnown, v value.Word) string {
	t.Helper()
	var sb strings.Builder
	w := New(h, wk, &sb)
	if err := w.Write(v); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return sb.String()
}

func readOne(t *testing.T, h *heap.Heap, wk *types.WellKnown, syms *symtab.Table, src string) value.Word {
	t.Helper()
	r := reader.New(h, wk, syms, src, "test")
	v, ok, err := r.ReadOne()
	if err != nil {
		t.Fatalf("ReadOne error: %v", err)
	}
	if !ok {
		t.Fatal("ReadOne: unexpected EOF")
	}
	return v
}

func TestWriteSmallInt(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)

	if got := writeToString(t, h, wk, value.MakeInt(42)); got != "42" {
		t.Fatalf("got %q, want %q", got, "42")
	}
	if got := writeToString(t, h, wk, value.MakeInt(-7)); got != "-7" {
		t.Fatalf("got %q, want %q", got, "-7")
	}
}

func TestWriteSpecials(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)

	cases := []struct {
		v    value.Word
		want string
	}{
		{value.Nil, "()"},
		{value.True, "#t"},
		{value.False, "#f"},
		{value.Unspecified, "#unspec"},
	}
	for _, c := range cases {
		if got := writeToString(t, h, wk, c.v); got != c.want {
			t.Fatalf("got %q, want %q", got, c.want)
		}
	}
}

func TestWriteProperListDropsDotNil(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	syms := symtab.New(h, wk)

	v := readOne(t, h, wk, syms, "(1 . (2 . ()))")
	if got := writeToString(t, h, wk, v); got != "(1 2)" {
		t.Fatalf("got %q, want %q", got, "(1 2)")
	}
}

func TestWriteImproperList(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	syms := symtab.New(h, wk)

	v := readOne(t, h, wk, syms, "(1 2 . 3)")
	if got := writeToString(t, h, wk, v); got != "(1 2 . 3)" {
		t.Fatalf("got %q, want %q", got, "(1 2 . 3)")
	}
}

func TestWriteQuoteAbbreviationIsNotReintroduced(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	syms := symtab.New(h, wk)

	v := readOne(t, h, wk, syms, "'(a b c)")
	if got := writeToString(t, h, wk, v); got != "(quote (a b c))" {
		t.Fatalf("got %q, want %q", got, "(quote (a b c))")
	}
}

func TestWriteStringEscapesNonPrintable(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	syms := symtab.New(h, wk)

	v := readOne(t, h, wk, syms, `"ab\nc"`)
	if got := writeToString(t, h, wk, v); got != `"ab\x0ac"` {
		t.Fatalf("got %q, want %q", got, `"ab\x0ac"`)
	}
}

func TestWriteVector(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	syms := symtab.New(h, wk)

	v := readOne(t, h, wk, syms, "[1 2 3]")
	if got := writeToString(t, h, wk, v); got != "[1 2 3]" {
		t.Fatalf("got %q, want %q", got, "[1 2 3]")
	}
}

func TestWriteSymbol(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	syms := symtab.New(h, wk)

	v := readOne(t, h, wk, syms, "foo")
	if got := writeToString(t, h, wk, v); got != "foo" {
		t.Fatalf("got %q, want %q", got, "foo")
	}
}

func TestWriteBytes(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)

	b := h.AllocateBytes([]byte{0x01, 0xab, 0xff})
	if got := writeToString(t, h, wk, b); got != "/01abff/" {
		t.Fatalf("got %q, want %q", got, "/01abff/")
	}
}

func TestRoundTripReadWriteRead(t *testing.T) {
	h := heap.New(4096)
	wk := types.Bootstrap(h)
	syms := symtab.New(h, wk)

	srcs := []string{
		"42",
		"(1 2 3)",
		"(1 2 . 3)",
		"[a b c]",
		"'x",
		`"hello world"`,
	}
	for _, src := range srcs {
		v1 := readOne(t, h, wk, syms, src)
		printed := writeToString(t, h, wk, v1)

		v2 := readOne(t, h, wk, syms, printed)
		reprinted := writeToString(t, h, wk, v2)

		if printed != reprinted {
			t.Fatalf("round trip unstable for %q: first print %q, second print %q", src, printed, reprinted)
		}
	}
}
