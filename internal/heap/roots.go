// Released under an MIT license. See LICENSE.

package heap

import "github.com/suolang/suo/internal/value"

// Roots is the process-global root stack: a bounded array of pointers to
// value.Word cells that must be updated in place by a collection. Callers
// register a slot before an allocation that might trigger GC, and pop it
// (in strict LIFO order) once they no longer need the value to survive a
// move.
type Roots struct {
	slots []*value.Word
}

// NewRoots creates a root stack with the given initial slot capacity (it
// grows as needed; capacity is only a hint for common-case sizing).
func NewRoots(capacityHint int) *Roots {
	return &Roots{slots: make([]*value.Word, 0, capacityHint)}
}

// Push registers a slot as a root. Callers must Pop in strict LIFO order
// relative to other Push calls they made.
func (r *Roots) Push(slot *value.Word) {
	r.slots = append(r.slots, slot)
}

// Pop deregisters the most recently pushed root slot.
func (r *Roots) Pop() {
	r.slots = r.slots[:len(r.slots)-1]
}

// Len reports how many roots are currently registered.
func (r *Roots) Len() int { return len(r.slots) }

// Each calls f once per registered root slot, in push order. Used by the
// collector to relocate every root during a copy/scan pass.
func (r *Roots) Each(f func(slot *value.Word)) {
	for _, s := range r.slots {
		f(s)
	}
}

// Guard pushes slot, calls f, then pops, guaranteeing LIFO discipline even
// if f panics.
func (r *Roots) Guard(slot *value.Word, f func()) {
	r.Push(slot)
	defer r.Pop()
	f()
}
