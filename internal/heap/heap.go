// Released under an MIT license. See LICENSE.

// Package heap implements the bump allocator and semispace storage: a
// fixed-capacity word array, a monotonically advancing allocation
// pointer, and a bounded root stack that callers use to keep value.Word
// references valid across a collection.
//
// Package heap never runs a collection itself; package gc drives the
// Cheney copy/scan over the two semispaces this package owns.
package heap

import (
	"fmt"
	"os"

	"github.com/suolang/suo/internal/value"
)

// DefaultWords is the default semispace capacity: roughly 217000 words.
const DefaultWords = 217_000

// Heap owns two semispaces of equal capacity, backed by one contiguous
// word array so that a pointer's word index alone tells which semispace
// it falls in (addresses, not relative offsets, simplify the
// forwarding-pointer check: it just needs to see whether the target
// address lies inside the active new space).
type Heap struct {
	words    []value.Word
	wordsCap int
	bases    [2]int // word index where each semispace begins
	free     [2]int // bump pointer, absolute word index, per semispace
	active   int
	roots    *Roots
	debugGC  bool // force a collection before every allocation
	collect  func(h *Heap, need int) bool
	onFull   func()
}

// New creates a heap with the given per-semispace word capacity.
func New(wordsCap int) *Heap {
	if wordsCap <= 0 {
		wordsCap = DefaultWords
	}
	h := &Heap{
		words:    make([]value.Word, 2*wordsCap),
		wordsCap: wordsCap,
		bases:    [2]int{0, wordsCap},
		roots:    NewRoots(256),
	}
	h.free = h.bases
	h.onFull = func() {
		fmt.Fprintln(os.Stderr, "FULL")
		os.Exit(1)
	}
	return h
}

// SetDebugGC toggles forcing a collection before every allocation.
func (h *Heap) SetDebugGC(on bool) { h.debugGC = on }

// SetCollector installs the function package gc wires in to run a
// collection; it must return true if the collection freed enough space to
// satisfy need (in words) in the (now active) semispace.
func (h *Heap) SetCollector(f func(h *Heap, need int) bool) { h.collect = f }

// Roots returns the process-global root stack.
func (h *Heap) Roots() *Roots { return h.roots }

// Cap returns the per-semispace word capacity.
func (h *Heap) Cap() int { return h.wordsCap }

// ActiveIndex reports which semispace (0 or 1) is currently active.
func (h *Heap) ActiveIndex() int { return h.active }

// ActiveBase, OtherBase return the absolute word index each semispace
// begins at.
func (h *Heap) ActiveBase() int { return h.bases[h.active] }
func (h *Heap) OtherBase() int  { return h.bases[1-h.active] }

// ActiveFree, OtherFree return the current bump pointer of each semispace.
func (h *Heap) ActiveFree() int { return h.free[h.active] }
func (h *Heap) OtherFree() int  { return h.free[1-h.active] }

// SetOtherFree lets the collector advance the scratch semispace's bump
// pointer as it copies objects into it.
func (h *Heap) SetOtherFree(addr int) { h.free[1-h.active] = addr }

// InNewSpace reports whether addr falls within the semispace a collection
// copies into: it always tests the scratch ("other") semispace, whether or
// not a collection is running. Package gc calls it mid-collection.
func (h *Heap) InNewSpace(addr int) bool {
	base := h.OtherBase()
	return addr >= base && addr < base+h.wordsCap
}

// Swap flips which semispace is active and resets the (now-scratch) old
// space's bump pointer to empty; called once a collection finishes copying
// the reachable graph.
func (h *Heap) Swap() {
	h.active = 1 - h.active
	h.free[1-h.active] = h.bases[1-h.active]
}

// roundUp2 rounds n up to the next even number, preserving the invariant
// that every object starts at a multiple of 2 words (8-byte alignment).
func roundUp2(n int) int { return (n + 1) &^ 1 }

// AllocateInOther bump-allocates nWords (rounded to an even count) in the
// scratch semispace the collector is currently copying into, without
// zeroing (the collector immediately memcpy's the source object's words
// over it) and without ever triggering a nested collection. Used only by
// package gc during a copy pass.
func (h *Heap) AllocateInOther(nWords int) int {
	size := roundUp2(nWords)
	base := h.free[1-h.active]
	h.free[1-h.active] += size
	return base
}

// Allocate returns the base word index of a freshly zeroed nWords-word
// object, advancing the bump pointer by roundUp2(nWords). It triggers a
// collection (or forces one, under debugGC) when the request would
// overflow the active semispace, and aborts the process if the heap
// cannot satisfy the request even after collecting.
func (h *Heap) Allocate(nWords int) int {
	size := roundUp2(nWords)

	if h.debugGC || h.free[h.active]+size > h.bases[h.active]+h.wordsCap {
		if h.collect == nil || !h.collect(h, size) {
			if h.free[h.active]+size > h.bases[h.active]+h.wordsCap {
				h.onFull()
			}
		}
	}

	base := h.free[h.active]
	for i := 0; i < size; i++ {
		h.words[base+i] = 0
	}
	h.free[h.active] += size
	return base
}

// WordAt and SetWordAt implement value.Memory against the full backing
// array (valid for either semispace; used by the collector to read
// old-space data and write new-space data in the same pass).
func (h *Heap) WordAt(addr int) value.Word { return h.words[addr] }

func (h *Heap) SetWordAt(addr int, w value.Word) { h.words[addr] = w }

// RawWords exposes the backing array for the debug heap checker and the
// collector; neither package outside heap/gc should need this.
func (h *Heap) RawWords() []value.Word { return h.words }

// AllocatePair, AllocateVector, AllocateBytes, AllocateRecord are
// convenience constructors layering value's tagging over Allocate.

// AllocatePair (and AllocateVector/AllocateBytes/AllocateRecord below)
// register their pointer arguments as roots on this call's own local
// copies before the (possibly GC-triggering) Allocate, and read them
// back only afterwards, so a collection invoked partway through
// correctly relocates them even when the argument is the only live
// reference to some object.
func (h *Heap) AllocatePair(car, cdr value.Word) value.Word {
	h.roots.Push(&car)
	h.roots.Push(&cdr)
	base := h.Allocate(2)
	h.roots.Pop()
	h.roots.Pop()
	h.words[base] = car
	h.words[base+1] = cdr
	return value.MakePairPtr(base)
}

func (h *Heap) AllocateVector(length int, fill value.Word) value.Word {
	h.roots.Push(&fill)
	base := h.Allocate(1 + length)
	h.roots.Pop()
	h.words[base] = value.MakeVectorHeader(length)
	for i := 0; i < length; i++ {
		h.words[base+1+i] = fill
	}
	return value.MakeVectorPtr(base)
}

// AllocateVectorFrom copies elems (root-safe across the allocation) into a
// freshly allocated vector.
func (h *Heap) AllocateVectorFrom(elems []value.Word) value.Word {
	for i := range elems {
		h.roots.Push(&elems[i])
	}
	base := h.Allocate(1 + len(elems))
	for range elems {
		h.roots.Pop()
	}
	h.words[base] = value.MakeVectorHeader(len(elems))
	for i, e := range elems {
		h.words[base+1+i] = e
	}
	return value.MakeVectorPtr(base)
}

func (h *Heap) AllocateBytes(data []byte) value.Word {
	nWords := (len(data) + 3) / 4
	base := h.Allocate(1 + nWords)
	h.words[base] = value.MakeBytesHeader(len(data))
	ptr := value.MakeBytesPtr(base)
	for i, b := range data {
		value.ByteSet(h, ptr, i, b)
	}
	return ptr
}

// AllocateRecord allocates a record with the given descriptor and fields.
// The descriptor itself must already be a live record pointer.
func (h *Heap) AllocateRecord(descriptor value.Word, fields []value.Word) value.Word {
	h.roots.Push(&descriptor)
	for i := range fields {
		h.roots.Push(&fields[i])
	}
	base := h.Allocate(1 + len(fields))
	for range fields {
		h.roots.Pop()
	}
	h.roots.Pop()
	h.words[base] = value.AsDescriptorHeader(descriptor)
	for i, f := range fields {
		h.words[base+1+i] = f
	}
	return value.MakeRecordPtr(base)
}

// ReserveRecord allocates a record's storage without writing its
// descriptor header or fields yet: the two-step reserve/install/fill
// protocol needed for self-referential descriptors (record-type-type is
// its own descriptor).
func (h *Heap) ReserveRecord(fieldCount int) value.Word {
	base := h.Allocate(1 + fieldCount)
	return value.MakeRecordPtr(base)
}

// InstallDescriptor writes a (possibly self-referential) descriptor header
// into an already-reserved record.
func (h *Heap) InstallDescriptor(rec, descriptor value.Word) {
	h.words[value.Addr(rec)] = value.AsDescriptorHeader(descriptor)
}

// AllocateCode builds a code-block object: a code-tagged byte-vector
// header, the raw instruction bytes, a literal-end word, and the literal
// words themselves (code-block shape; see
// value.CodeBlockWords/CodeLiteralRange for the layout this must match).
func (h *Heap) AllocateCode(instructions []byte, literals []value.Word) value.Word {
	for i := range literals {
		h.roots.Push(&literals[i])
	}
	nInstrWords := (len(instructions) + 3) / 4
	totalWords := 1 + nInstrWords + 1 + len(literals)
	// The object spans literal-end + 1 words, the size
	// value.CodeBlockWords reports and the collector copies.
	base := h.Allocate(totalWords + 1)
	for range literals {
		h.roots.Pop()
	}

	h.words[base] = value.MakeCodeHeader(len(instructions))
	ptr := value.MakeBytesPtr(base)
	for i, b := range instructions {
		value.ByteSet(h, ptr, i, b)
	}
	litEndSlot := base + 1 + nInstrWords
	h.words[litEndSlot] = value.MakeInt(int32(totalWords))
	for i, lit := range literals {
		h.words[litEndSlot+1+i] = lit
	}
	return ptr
}
