// Released under an MIT license. See LICENSE.

package gc

import (
	"fmt"

	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/value"
)

// Validate runs the optional debug heap consistency check described in
// : pass 1 builds a shadow map recording the size of the
// object starting at each word offset of the active semispace (0 for
// interior words); pass 2 walks every object again, checking that every
// pointer field lands on an object-start offset and that no field word
// carries a header tag pattern (headers are legal only as an object's own
// first word).
func Validate(h *heap.Heap) error {
	base := h.ActiveBase()
	free := h.ActiveFree()
	cap := h.Cap()

	shadow := make([]int, cap)

	addr := base
	for addr < free {
		size := objectSizeAt(h, addr)
		if size <= 0 {
			return fmt.Errorf("heap check: non-positive object size %d at %d", size, addr)
		}
		shadow[addr-base] = size
		addr += size
	}
	if addr != free {
		return fmt.Errorf("heap check: object walk overran free pointer (%d != %d)", addr, free)
	}

	addr = base
	for addr < free {
		size := shadow[addr-base]
		if err := checkObjectFields(h, addr, size, base, cap, shadow); err != nil {
			return err
		}
		addr += size
	}

	return nil
}

func objectSizeAt(h *heap.Heap, addr int) int {
	first := h.WordAt(addr)
	switch {
	case value.IsVectorHeader(first):
		return roundUp2(1 + value.HeaderLength(first))
	case value.IsBytesHeader(first):
		return roundUp2(1 + (value.HeaderLength(first)+3)/4)
	case value.IsCodeHeader(first):
		return roundUp2(value.CodeBlockWords(h, value.MakeBytesPtr(addr)))
	case value.IsDescriptorHeader(first):
		spec := value.IntValue(h.WordAt(value.DescriptorAddr(first) + 1))
		if spec >= 0 {
			return roundUp2(1 + int(spec))
		}
		return roundUp2(1 + (int(-spec)+3)/4)
	default:
		return 2 // pair
	}
}

func checkObjectFields(h *heap.Heap, addr, size, base, cap int, shadow []int) error {
	checkSlot := func(slot int) error {
		w := h.WordAt(slot)
		if isHeapPointer(w) {
			target := value.Addr(w)
			if target < base || target >= base+cap {
				return nil // points outside this semispace (stale/other-space test fixture); caller's problem
			}
			if shadow[target-base] == 0 {
				return fmt.Errorf("heap check: pointer at word %d targets non-object-start %d", slot, target)
			}
			return nil
		}
		if value.IsImmediate(w) && looksLikeHeader(w) {
			return fmt.Errorf("heap check: header pattern found as field content at word %d", slot)
		}
		return nil
	}

	first := h.WordAt(addr)
	switch {
	case value.IsVectorHeader(first):
		n := value.HeaderLength(first)
		for i := 0; i < n; i++ {
			if err := checkSlot(addr + 1 + i); err != nil {
				return err
			}
		}
	case value.IsBytesHeader(first):
		// raw payload, no value slots to check
	case value.IsCodeHeader(first):
		ptr := value.MakeBytesPtr(addr)
		begin, end := value.CodeLiteralRange(h, ptr)
		for i := begin; i < end; i++ {
			if err := checkSlot(addr + i); err != nil {
				return err
			}
		}
	case value.IsDescriptorHeader(first):
		descAddr := value.DescriptorAddr(first)
		if descAddr < base || descAddr >= base+cap {
			return nil
		}
		if shadow[descAddr-base] == 0 {
			return fmt.Errorf("heap check: descriptor header at word %d targets non-object-start %d", addr, descAddr)
		}
		spec := value.IntValue(h.WordAt(descAddr + 1))
		if spec >= 0 {
			n := int(spec)
			for i := 0; i < n; i++ {
				if err := checkSlot(addr + 1 + i); err != nil {
					return err
				}
			}
		}
	default:
		if err := checkSlot(addr); err != nil {
			return err
		}
		if err := checkSlot(addr + 1); err != nil {
			return err
		}
	}
	_ = size
	return nil
}

// looksLikeHeader reports whether an immediate word's subtag is one of the
// three header shapes (vector/bytes/code), which are legal only as an
// object's own first word, never as field content.
func looksLikeHeader(w value.Word) bool {
	return value.IsVectorHeader(w) || value.IsBytesHeader(w) || value.IsCodeHeader(w)
}
