// Released under an MIT license. See LICENSE.

// Package asm is a concrete backend for the codegen.Context interface:
// a small register-machine bytecode, packed with encoding/binary into a
// code-block value.Word. A production assembler targeting real hardware
// is out of scope here; this backend exists so package codegen's output
// is an actually runnable closure end to end, not just a
// structurally-plausible one.
package asm

import (
	"encoding/binary"
	"fmt"

	"github.com/suolang/suo/internal/codegen"
	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/value"
)

// Opcode identifies one bytecode instruction.
type opcode byte

const (
	opMoveRegReg opcode = iota
	opMoveLitReg
	opGo
	opPrimop
)

// scratchBase separates real (regalloc-assigned) registers from the
// scratch registers Shuffle mints to stage clobber-safe moves; regalloc
// never assigns an index this large ("linear growth"
// policy starts at 1 and grows by one per binding).
const scratchBase = 1 << 24

// Assembler is the codegen.Assembler this package provides.
type Assembler struct {
	h *heap.Heap
}

func NewAssembler(h *heap.Heap) *Assembler {
	return &Assembler{h: h}
}

func (a *Assembler) MakeContext() codegen.Context {
	return &ctxt{h: a.h}
}

// label is this backend's codegen.Label implementation: an opaque id
// resolved to a byte offset once DefLabel is called.
type label struct{ id int }

type labelUse struct {
	id     int
	offset int // byte offset of the uint32 placeholder to patch
}

type ctxt struct {
	h *heap.Heap

	buf      []byte
	literals []value.Word

	nextLabel   int
	labelAt     map[int]int
	pendingUses []labelUse

	nextScratch int
}

func (c *ctxt) MakeLabel() codegen.Label {
	c.nextLabel++
	if c.labelAt == nil {
		c.labelAt = map[int]int{}
	}
	return label{id: c.nextLabel}
}

func (c *ctxt) DefLabel(l codegen.Label) {
	lbl := l.(label)
	c.labelAt[lbl.id] = len(c.buf)
}

// Prologue emits nothing and ignores the signature; a real assembler would
// emit an arity-check trap here. This backend trusts the caller (codegen's
// App case always shuffles the matching signature into place).
func (c *ctxt) Prologue(signature int) {
	_ = signature
}

func (c *ctxt) freshScratch() int {
	c.nextScratch++
	return scratchBase + c.nextScratch
}

// literalIndex appends v to this function's literal pool and returns its
// index; no de-duplication, since straightforward code is preferred over
// micro-optimised sharing in a bootstrap-tier component.
func (c *ctxt) literalIndex(v value.Word) int {
	c.literals = append(c.literals, v)
	return len(c.literals) - 1
}

func (c *ctxt) writeU8(b byte)   { c.buf = append(c.buf, b) }
func (c *ctxt) writeU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	c.buf = append(c.buf, tmp[:]...)
}

// writeOperand encodes an Operand as a tag byte (0 = register, 1 =
// literal-pool index) followed by a uint32 index.
func (c *ctxt) writeOperand(op codegen.Operand) {
	switch o := op.(type) {
	case codegen.RegOperand:
		c.writeU8(0)
		c.writeU32(uint32(o.Reg))
	case codegen.LiteralOperand:
		c.writeU8(1)
		c.writeU32(uint32(c.literalIndex(o.Value)))
	default:
		panic(fmt.Sprintf("asm: unknown operand type %T", op))
	}
}

func (c *ctxt) emitMove(src codegen.Operand, dst int) {
	switch o := src.(type) {
	case codegen.RegOperand:
		c.writeU8(byte(opMoveRegReg))
		c.writeU32(uint32(dst))
		c.writeU32(uint32(o.Reg))
	case codegen.LiteralOperand:
		c.writeU8(byte(opMoveLitReg))
		c.writeU32(uint32(dst))
		c.writeU32(uint32(c.literalIndex(o.Value)))
	default:
		panic(fmt.Sprintf("asm: unknown operand type %T", src))
	}
}

// Shuffle stages any source register that is also one of this batch's
// destinations through a scratch register before overwriting anything, so
// every move reads the pre-shuffle value regardless of emission order.
// This trades "minimal number of moves" for a simple,
// obviously-correct construction; a real
// assembler backend is free to reimplement Shuffle with a proper
// cycle-detecting sequentializer without changing this interface.
func (c *ctxt) Shuffle(sources []codegen.Operand, destinations []int) {
	if len(sources) != len(destinations) {
		panic("asm: shuffle source/destination length mismatch")
	}
	destSet := make(map[int]bool, len(destinations))
	for _, d := range destinations {
		destSet[d] = true
	}

	staged := make([]int, len(sources))
	for i, src := range sources {
		staged[i] = -1
		if ro, ok := src.(codegen.RegOperand); ok && destSet[ro.Reg] {
			s := c.freshScratch()
			c.emitMove(src, s)
			staged[i] = s
		}
	}
	for i, src := range sources {
		if staged[i] >= 0 {
			c.emitMove(codegen.RegOperand{Reg: staged[i]}, destinations[i])
		} else {
			c.emitMove(src, destinations[i])
		}
	}
}

func (c *ctxt) Go(reg int) {
	c.writeU8(byte(opGo))
	c.writeU32(uint32(reg))
}

func (c *ctxt) Primop(kind string, results []int, args []codegen.Operand, extraLabels []codegen.Label) {
	c.writeU8(byte(opPrimop))
	nameBytes := c.h.AllocateBytes([]byte(kind))
	c.writeU32(uint32(c.literalIndex(nameBytes)))

	c.writeU32(uint32(len(results)))
	for _, r := range results {
		c.writeU32(uint32(r))
	}
	c.writeU32(uint32(len(args)))
	for _, a := range args {
		c.writeOperand(a)
	}
	c.writeU32(uint32(len(extraLabels)))
	for _, l := range extraLabels {
		lbl := l.(label)
		c.pendingUses = append(c.pendingUses, labelUse{id: lbl.id, offset: len(c.buf)})
		c.writeU32(0) // patched once every label in this context is defined
	}
}

// Finish patches every recorded label use with its defined offset, then
// packs the instruction stream and literal pool into a code-block value.
func (c *ctxt) Finish() value.Word {
	for _, use := range c.pendingUses {
		off, ok := c.labelAt[use.id]
		if !ok {
			panic("asm: label used but never defined")
		}
		binary.LittleEndian.PutUint32(c.buf[use.offset:use.offset+4], uint32(off))
	}
	return c.h.AllocateCode(c.buf, c.literals)
}
