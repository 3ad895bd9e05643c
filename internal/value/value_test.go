// Released under an MIT license. See LICENSE.

package value

import "testing"

func TestSmallIntRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, MinInt, MaxInt, 12345, -12345}

	for _, n := range cases {
		w := MakeInt(n)
		if !IsSmallInt(w) {
			t.Fatalf("MakeInt(%d) not classified as small int", n)
		}
		if got := IntValue(w); got != n {
			t.Fatalf("IntValue(MakeInt(%d)) = %d", n, got)
		}
	}
}

func TestPointerTagsAreDisjoint(t *testing.T) {
	pair := MakePairPtr(4)
	vec := MakeVectorPtr(4)
	rec := MakeRecordPtr(4)
	bytes := MakeBytesPtr(4)

	classify := func(w Word) int {
		n := 0
		if IsPair(w) {
			n++
		}
		if IsVectorPtr(w) {
			n++
		}
		if IsRecordPtr(w) {
			n++
		}
		if IsBytesPtr(w) {
			n++
		}
		return n
	}

	for _, w := range []Word{pair, vec, rec, bytes} {
		if n := classify(w); n != 1 {
			t.Fatalf("word %#x classified as %d pointer kinds, want 1", w, n)
		}
	}
}

func TestAddrRoundTrip(t *testing.T) {
	for _, addr := range []int{0, 1, 2, 1000} {
		for _, make := range []func(int) Word{MakePairPtr, MakeVectorPtr, MakeRecordPtr, MakeBytesPtr} {
			w := make(addr)
			if got := Addr(w); got != addr {
				t.Fatalf("Addr(%#x) = %d, want %d", w, got, addr)
			}
		}
	}
}

func TestImmediates(t *testing.T) {
	if !IsNil(Nil) || IsUnspecified(Nil) || IsBoolean(Nil) {
		t.Fatal("Nil misclassified")
	}
	if !IsUnspecified(Unspecified) || IsNil(Unspecified) {
		t.Fatal("Unspecified misclassified")
	}
	if !IsBoolean(True) || !IsBoolean(False) {
		t.Fatal("True/False not classified as booleans")
	}
	if Truthy(False) {
		t.Fatal("False must not be truthy")
	}
	if !Truthy(True) || !Truthy(Nil) || !Truthy(Unspecified) || !Truthy(MakeInt(0)) {
		t.Fatal("only #f should be falsy")
	}
}

func TestCharRoundTrip(t *testing.T) {
	for _, r := range []rune{'a', ' ', '\n', 0, 0x1f600} {
		w := MakeChar(r)
		if !IsChar(w) {
			t.Fatalf("MakeChar(%q) not classified as char", r)
		}
		if got := CharValue(w); got != r {
			t.Fatalf("CharValue(MakeChar(%q)) = %q", r, got)
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 17, 1 << 20} {
		if got := HeaderLength(MakeVectorHeader(n)); got != n {
			t.Fatalf("vector header length round trip: got %d want %d", got, n)
		}
		if !IsVectorHeader(MakeVectorHeader(n)) {
			t.Fatal("vector header not classified as vector header")
		}
		if got := HeaderLength(MakeBytesHeader(n)); got != n {
			t.Fatalf("bytes header length round trip: got %d want %d", got, n)
		}
		if !IsBytesHeader(MakeBytesHeader(n)) {
			t.Fatal("bytes header not classified as bytes header")
		}
		if got := HeaderLength(MakeCodeHeader(n)); got != n {
			t.Fatalf("code header length round trip: got %d want %d", got, n)
		}
		if !IsCodeHeader(MakeCodeHeader(n)) {
			t.Fatal("code header not classified as code header")
		}
	}
}

func TestDescriptorHeaderRoundTrip(t *testing.T) {
	descriptor := MakeRecordPtr(42)
	header := AsDescriptorHeader(descriptor)
	if !IsDescriptorHeader(header) {
		t.Fatal("descriptor header not classified as such")
	}
	if got := DescriptorAddr(header); got != 42 {
		t.Fatalf("DescriptorAddr = %d, want 42", got)
	}
}
