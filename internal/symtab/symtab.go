// Released under an MIT license. See LICENSE.

// Package symtab implements the fixed 511-bucket open-chained symbol
// intern table shared as a process-global resource. Every
// reader-produced symbol is interned here so that symbols with the same
// name are pointer-identical (reference equality doubles as name
// equality elsewhere in the runtime).
package symtab

import (
	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

// Buckets is the fixed bucket count for the symbol table.
const Buckets = 511

type entry struct {
	name string
	sym  value.Word
}

// Table is the process-global symbol intern table.
type Table struct {
	h      *heap.Heap
	wk     *types.WellKnown
	bucket [Buckets][]entry
}

// New creates an (initially empty) symbol table bound to h and wk.
func New(h *heap.Heap, wk *types.WellKnown) *Table {
	return &Table{h: h, wk: wk}
}

// hash computes a simple rolling hash over name, folded into [0, Buckets).
func hash(name string) int {
	var hv uint32 = 2166136261 // FNV-1a offset basis
	for i := 0; i < len(name); i++ {
		hv ^= uint32(name[i])
		hv *= 16777619 // FNV-1a prime
	}
	return int(hv % Buckets)
}

// Intern returns the interned symbol record for name, allocating a new one
// (and its backing byte-vector) on first use.
func (t *Table) Intern(name string) value.Word {
	idx := hash(name)
	for _, e := range t.bucket[idx] {
		if e.name == name {
			return e.sym
		}
	}

	nameBytes := t.h.AllocateBytes([]byte(name))
	symWord := t.h.AllocateRecord(t.wk.SymbolType, []value.Word{nameBytes})

	t.bucket[idx] = append(t.bucket[idx], entry{name: name, sym: symWord})

	return symWord
}

// Lookup returns the interned symbol for name and true, or the zero Word
// and false if name has never been interned.
func (t *Table) Lookup(name string) (value.Word, bool) {
	idx := hash(name)
	for _, e := range t.bucket[idx] {
		if e.name == name {
			return e.sym, true
		}
	}
	return 0, false
}

// Each visits every interned symbol slot, for root registration across a
// collection (symbols interned before a GC must keep referring to live
// records afterwards).
func (t *Table) Each(f func(slot *value.Word)) {
	for b := range t.bucket {
		for i := range t.bucket[b] {
			f(&t.bucket[b][i].sym)
		}
	}
}

// Count reports how many distinct names are currently interned (for tests
// and diagnostics, not part of the runtime's observable behaviour).
func (t *Table) Count() int {
	n := 0
	for _, b := range t.bucket {
		n += len(b)
	}
	return n
}
