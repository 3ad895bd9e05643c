// Released under an MIT license. See LICENSE.

package asm

import (
	"encoding/binary"
	"fmt"

	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/symtab"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

// Bottom is the error runOne returns when the code reaches a "bottom"
// primop, the terminal top-level continuation: the machine has nothing
// left to do, and Run returns the accompanying value as the program's
// result.
type Bottom struct{ Value value.Word }

func (Bottom) Error() string { return "asm: reached bottom" }

// Trap is returned by Run when a syscall primop with no bound handler
// runs: the non-closure-callee fallback's runtime-dispatch error kind.
type Trap struct{ Reason string }

func (t Trap) Error() string { return "asm: trap: " + t.Reason }

// Machine executes one function's generated code against a shared
// register file (registers are process-wide slots here, not per-call
// frames -- this backend is a minimal, from-scratch demonstration
// interpreter, not a production runtime).
type Machine struct {
	h       *heap.Heap
	wk      *types.WellKnown
	sym     *symtab.Table
	reg     map[int]value.Word
	globals map[string]value.Word
}

func NewMachine(h *heap.Heap, wk *types.WellKnown, sym *symtab.Table) *Machine {
	return &Machine{h: h, wk: wk, sym: sym, reg: map[int]value.Word{}}
}

func (m *Machine) SetReg(i int, v value.Word) { m.reg[i] = v }
func (m *Machine) GetReg(i int) value.Word    { return m.reg[i] }

// Run executes the code block starting at register n+1's convention
// (genApp shuffles the callee into place and jumps to it), i.e. Run
// itself IS that jump: it executes code from offset 0 until a Go
// instruction retargets it to another code block, or a bottom/trap ends
// execution.
func (m *Machine) Run(code value.Word) (value.Word, error) {
	for {
		next, result, err := m.runOne(code)
		if err != nil {
			if b, ok := err.(Bottom); ok {
				return b.Value, nil
			}
			return result, err
		}
		if next == 0 {
			return result, nil
		}
		code = next
	}
}

// runOne executes one code block until it either falls off the end
// (returns unspecified, no error), hits Go (returns the next code block to
// run), or hits bottom/trap (returns an error carrying the result/reason).
func (m *Machine) runOne(code value.Word) (nextCode value.Word, result value.Word, err error) {
	instrLen := value.CodeInstructionLen(m.h, code)
	buf := make([]byte, instrLen)
	for i := 0; i < instrLen; i++ {
		buf[i] = value.CodeInstructionByte(m.h, code, i)
	}

	pos := 0
	readU32 := func() uint32 {
		v := binary.LittleEndian.Uint32(buf[pos : pos+4])
		pos += 4
		return v
	}
	readOperand := func() value.Word {
		tag := buf[pos]
		pos++
		idx := readU32()
		if tag == 0 {
			return m.reg[int(idx)]
		}
		return value.CodeLiteral(m.h, code, int(idx))
	}

	for pos < len(buf) {
		op := opcode(buf[pos])
		pos++
		switch op {
		case opMoveRegReg:
			dst := readU32()
			src := readU32()
			m.reg[int(dst)] = m.reg[int(src)]
		case opMoveLitReg:
			dst := readU32()
			litIdx := readU32()
			m.reg[int(dst)] = value.CodeLiteral(m.h, code, int(litIdx))
		case opGo:
			src := readU32()
			return m.reg[int(src)], 0, nil
		case opPrimop:
			nameIdx := readU32()
			nameBV := value.CodeLiteral(m.h, code, int(nameIdx))
			kind := bytesToString(m.h, nameBV)

			nResults := int(readU32())
			results := make([]int, nResults)
			for i := range results {
				results[i] = int(readU32())
			}
			nArgs := int(readU32())
			args := make([]value.Word, nArgs)
			for i := range args {
				args[i] = readOperand()
			}
			nLabels := int(readU32())
			labels := make([]int, nLabels)
			for i := range labels {
				labels[i] = int(readU32())
			}

			branch, res, perr := m.doPrimop(kind, args)
			if perr != nil {
				return 0, 0, perr
			}
			for i, r := range results {
				if i < len(res) {
					m.reg[r] = res[i]
				}
			}
			if branch >= 0 {
				if branch == 0 {
					continue // fallthrough: keep executing this code block
				}
				pos = labels[branch-1]
				continue
			}
		default:
			return 0, 0, fmt.Errorf("asm: unknown opcode %d", op)
		}
	}
	return 0, value.Unspecified, nil
}

// doPrimop executes one primop kind. branch is -1 for a non-branching
// primop (fall through after storing res into the result registers); 0 or
// 1 for a branching one (if-record?), indicating which continuation to
// take (0 = fallthrough, matching "true branch is
// continuation 0").
func (m *Machine) doPrimop(kind string, args []value.Word) (branch int, res []value.Word, err error) {
	switch kind {
	case "variable-ref":
		name := symbolName(m.h, args[0])
		v, ok := m.globals[name]
		if !ok {
			v = value.Unspecified
		}
		return -1, []value.Word{v}, nil
	case "variable-set":
		if m.globals == nil {
			m.globals = map[string]value.Word{}
		}
		m.globals[symbolName(m.h, args[0])] = args[1]
		return -1, nil, nil
	case "box-make":
		return -1, []value.Word{types.NewBox(m.h, m.wk, args[0])}, nil
	case "box-ref":
		return -1, []value.Word{types.BoxGet(m.h, args[0])}, nil
	case "box-set":
		types.BoxSet(m.h, args[0], args[1])
		return -1, nil, nil
	case "vector-make":
		v := m.h.AllocateVectorFrom(args)
		return -1, []value.Word{v}, nil
	case "vector-ref":
		idx := value.IntValue(args[1])
		return -1, []value.Word{value.VectorRef(m.h, args[0], int(idx))}, nil
	case "vector-set":
		idx := value.IntValue(args[1])
		value.VectorSet(m.h, args[0], int(idx), args[2])
		return -1, nil, nil
	case "record-make":
		rec := m.h.AllocateRecord(args[0], args[1:])
		return -1, []value.Word{rec}, nil
	case "record-ref":
		idx := value.IntValue(args[1])
		return -1, []value.Word{value.RecordField(m.h, args[0], int(idx))}, nil
	case "if-record?":
		if value.IsRecordPtr(args[0]) {
			return 0, nil, nil
		}
		return 1, nil, nil
	case "syscall":
		return 0, nil, Trap{Reason: "syscall"}
	case "bottom":
		v := value.Unspecified
		if len(args) > 0 {
			v = args[0]
		}
		return 0, nil, Bottom{Value: v}
	case "bootinfo":
		return -1, []value.Word{value.Unspecified}, nil
	default:
		return 0, nil, fmt.Errorf("asm: unknown primop kind %q", kind)
	}
}

func bytesToString(h *heap.Heap, bv value.Word) string {
	n := value.BytesLength(h, bv)
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = value.ByteRef(h, bv, i)
	}
	return string(buf)
}

// symbolName recovers a plain Go string from a value that may be either a
// symbol record or a raw byte-vector name, since variable-ref/-set's
// argument is whatever cps.Quote payload the driver resolved a bare
// string into -- a symtab-interned symbol record, per resolveLiteral.
func symbolName(h *heap.Heap, w value.Word) string {
	if value.IsRecordPtr(w) {
		return types.SymbolText(h, w)
	}
	return bytesToString(h, w)
}
