// Released under an MIT license. See LICENSE.

// Package gc implements a Cheney-style copying collector, driving package
// heap's two semispaces: copy reachable objects from the active (from-)
// space into the scratch (to-) space, scan the to-space to relocate every
// field, then swap.
package gc

import (
	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/value"
)

// Collector drives collections for one heap.Heap. Wire installs it as the
// heap's collector callback.
type Collector struct {
	h *heap.Heap
	// ExtraRoots, if set, is called once per collection so callers outside
	// the heap's own root stack (e.g. a well-known-types table) can also
	// be relocated.
	ExtraRoots func(visit func(slot *value.Word))
	// Check, if set, makes the callback Wire installs run the debug heap
	// consistency check (Validate) before and after every collection it
	// triggers. Run itself never consults Check.
	Check bool
}

// Wire creates a Collector for h and installs it as h's collection
// callback (heap.Heap.SetCollector).
func Wire(h *heap.Heap) *Collector {
	c := &Collector{h: h}
	h.SetCollector(func(h *heap.Heap, need int) bool {
		if c.Check {
			if err := Validate(h); err != nil {
				panic("suo: heap check failed before collection: " + err.Error())
			}
		}
		c.Run()
		if c.Check {
			if err := Validate(h); err != nil {
				panic("suo: heap check failed after collection: " + err.Error())
			}
		}
		return fitsAfterCollection(h, need)
	})
	return c
}

func fitsAfterCollection(h *heap.Heap, need int) bool {
	return h.ActiveFree()+need <= h.ActiveBase()+h.Cap()
}

// Run performs exactly one collection: copy every root, scan the new
// space to copy every transitively reachable field, then swap semispaces.
func (c *Collector) Run() {
	h := c.h

	h.Roots().Each(func(slot *value.Word) {
		*slot = c.copyValue(*slot)
	})
	if c.ExtraRoots != nil {
		c.ExtraRoots(func(slot *value.Word) {
			*slot = c.copyValue(*slot)
		})
	}

	scan := h.OtherBase()
	for scan < h.OtherFree() {
		scan = c.scanOne(scan)
	}

	h.Swap()
}

// copyValue implements "copy step": non-pointers pass
// through unchanged; already-forwarded pointers are redirected; otherwise
// the object is sized by shape, bump-allocated in the new space, copied
// word-for-word, and a forwarding pointer is installed at its old address.
func (c *Collector) copyValue(w value.Word) value.Word {
	if !isHeapPointer(w) {
		return w
	}

	oldAddr := value.Addr(w)
	first := c.h.WordAt(oldAddr)

	if isForwarded(first, c.h) {
		return retagAddr(w, value.Addr(first))
	}

	size := c.objectSize(w, oldAddr, first)

	newBase := c.h.AllocateInOther(size)
	for i := 0; i < size; i++ {
		c.h.SetWordAt(newBase+i, c.h.WordAt(oldAddr+i))
	}

	c.h.SetWordAt(oldAddr, value.MakePairPtr(newBase))

	return retagAddr(w, newBase)
}

// isForwarded detects a forwarding pointer exactly as // prescribes: the tag pattern of a pair pointer, and the address target
// lying inside the semispace currently being copied into.
func isForwarded(first value.Word, h *heap.Heap) bool {
	return value.IsPair(first) && h.InNewSpace(value.Addr(first))
}

func isHeapPointer(w value.Word) bool {
	return value.IsPair(w) || value.IsVectorPtr(w) || value.IsRecordPtr(w) || value.IsBytesPtr(w)
}

func retagAddr(original value.Word, newAddr int) value.Word {
	switch {
	case value.IsPair(original):
		return value.MakePairPtr(newAddr)
	case value.IsVectorPtr(original):
		return value.MakeVectorPtr(newAddr)
	case value.IsRecordPtr(original):
		return value.MakeRecordPtr(newAddr)
	default:
		return value.MakeBytesPtr(newAddr)
	}
}

// objectSize determines an object's word count (header included) from its
// shape.
func (c *Collector) objectSize(ptr value.Word, addr int, first value.Word) int {
	switch {
	case value.IsPair(ptr):
		return 2
	case value.IsVectorPtr(ptr):
		return 1 + value.HeaderLength(first)
	case value.IsBytesPtr(ptr):
		if value.IsCodeHeader(first) {
			return value.CodeBlockWords(c.h, ptr)
		}
		nbytes := value.HeaderLength(first)
		return 1 + (nbytes+3)/4
	case value.IsRecordPtr(ptr):
		descAddr := value.DescriptorAddr(first)
		// Field 0 of the descriptor is never touched by forwarding (only
		// an object's header/first word is overwritten), so it is always
		// safe to read directly regardless of whether the descriptor
		// itself has already been copied.
		spec := value.IntValue(c.h.WordAt(descAddr + 1))
		if spec >= 0 {
			return 1 + int(spec)
		}
		return 1 + (int(-spec)+3)/4
	default:
		panic("suo: gc: not a heap pointer")
	}
}

// scanOne visits the object at new-space word index addr, relocating
// every value-slot it contains, and returns the index one past it (so the
// caller's scan cursor advances monotonically, ).
func (c *Collector) scanOne(addr int) int {
	// The object's pointer-typed identity was established when it was
	// copied; reconstruct it from its header shape, since the scan only
	// sees the raw to-space words.
	first := c.h.WordAt(addr)

	switch {
	case value.IsVectorHeader(first):
		n := value.HeaderLength(first)
		for i := 0; i < n; i++ {
			slot := addr + 1 + i
			c.h.SetWordAt(slot, c.copyValue(c.h.WordAt(slot)))
		}
		return addr + roundUp2(1+n)

	case value.IsBytesHeader(first):
		n := value.HeaderLength(first)
		return addr + roundUp2(1+(n+3)/4)

	case value.IsCodeHeader(first):
		ptr := value.MakeBytesPtr(addr)
		size := value.CodeBlockWords(c.h, ptr)
		begin, end := value.CodeLiteralRange(c.h, ptr)
		for i := begin; i < end; i++ {
			slot := addr + i
			c.h.SetWordAt(slot, c.copyValue(c.h.WordAt(slot)))
		}
		return addr + roundUp2(size)

	case value.IsDescriptorHeader(first):
		descAddr := value.DescriptorAddr(first)
		newDesc := c.copyValue(value.MakeRecordPtr(descAddr))
		c.h.SetWordAt(addr, value.AsDescriptorHeader(newDesc))

		spec := value.IntValue(c.h.WordAt(value.Addr(newDesc) + 1))
		if spec >= 0 {
			n := int(spec)
			for i := 0; i < n; i++ {
				slot := addr + 1 + i
				c.h.SetWordAt(slot, c.copyValue(c.h.WordAt(slot)))
			}
			return addr + roundUp2(1+n)
		}
		n := (int(-spec) + 3) / 4
		return addr + roundUp2(1+n)

	default:
		// A pair: its first word is neither a header nor a
		// record-descriptor header (exclusion rule).
		c.h.SetWordAt(addr, c.copyValue(first))
		c.h.SetWordAt(addr+1, c.copyValue(c.h.WordAt(addr+1)))
		return addr + 2
	}
}

func roundUp2(n int) int { return (n + 1) &^ 1 }
