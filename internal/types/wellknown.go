// Released under an MIT license. See LICENSE.

// Package types bootstraps the handful of process-global, well-known
// record descriptors every other package shares: record-type-type,
// string-type, symbol-type, and function-type, plus closure-type (the
// closure representation).
package types

import (
	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/value"
)

// Descriptor field layout (field 0 is always the field-count integer
// itself; field 1 here is a human-readable name, used only for
// diagnostics/printing, never required by the runtime).
const (
	fieldSpec = 0
	fieldName = 1
)

// WellKnown holds the process-global descriptor records. They are
// registered with the collector as extra roots (see gc.Collector.ExtraRoots)
// so a collection relocates them along with everything else.
type WellKnown struct {
	RecordTypeType value.Word // descriptor of descriptors; self-referential
	StringType     value.Word // one field: byte-vector payload
	SymbolType     value.Word // one field: byte-vector name
	FunctionType   value.Word // bootstrap evaluator's lambda value: body, env
	ClosureType    value.Word // compiler's closure record: code-block, captured vector
	BoxType        value.Word // mutable-binding cell (GLOSSARY "Boxed variable"): one field
}

// Bootstrap allocates the well-known descriptors using the two-step
// reserve/install/fill protocol describes for
// record-type-type's self-reference: reserve the slot, install the header
// pointing to its own address, then fill the payload fields.
func Bootstrap(h *heap.Heap) *WellKnown {
	wk := &WellKnown{}

	rtt := h.ReserveRecord(2)
	h.InstallDescriptor(rtt, rtt)
	value.SetRecordField(h, rtt, fieldSpec, value.MakeInt(2))
	value.SetRecordField(h, rtt, fieldName, value.Unspecified)
	wk.RecordTypeType = rtt

	wk.StringType = h.AllocateRecord(rtt, []value.Word{value.MakeInt(1), value.Unspecified})
	wk.SymbolType = h.AllocateRecord(rtt, []value.Word{value.MakeInt(1), value.Unspecified})
	wk.FunctionType = h.AllocateRecord(rtt, []value.Word{value.MakeInt(2), value.Unspecified})
	wk.ClosureType = h.AllocateRecord(rtt, []value.Word{value.MakeInt(2), value.Unspecified})
	wk.BoxType = h.AllocateRecord(rtt, []value.Word{value.MakeInt(1), value.Unspecified})

	return wk
}

// Each calls f once per well-known descriptor word, for root registration.
func (wk *WellKnown) Each(f func(slot *value.Word)) {
	f(&wk.RecordTypeType)
	f(&wk.StringType)
	f(&wk.SymbolType)
	f(&wk.FunctionType)
	f(&wk.ClosureType)
	f(&wk.BoxType)
}

// IsString, IsSymbol report whether a record's descriptor is the
// well-known string/symbol type.
func IsString(h value.Memory, wk *WellKnown, w value.Word) bool {
	return value.IsRecordPtr(w) && value.RecordDescriptor(h, w) == wk.StringType
}

func IsSymbol(h value.Memory, wk *WellKnown, w value.Word) bool {
	return value.IsRecordPtr(w) && value.RecordDescriptor(h, w) == wk.SymbolType
}

func IsClosure(h value.Memory, wk *WellKnown, w value.Word) bool {
	return value.IsRecordPtr(w) && value.RecordDescriptor(h, w) == wk.ClosureType
}

func IsFunction(h value.Memory, wk *WellKnown, w value.Word) bool {
	return value.IsRecordPtr(w) && value.RecordDescriptor(h, w) == wk.FunctionType
}

// NewString allocates a string record wrapping a freshly allocated
// byte-vector copy of s.
func NewString(h *heap.Heap, wk *WellKnown, s string) value.Word {
	bv := h.AllocateBytes([]byte(s))
	return h.AllocateRecord(wk.StringType, []value.Word{bv})
}

// StringBytes returns the underlying byte-vector pointer of a string record.
func StringBytes(h value.Memory, w value.Word) value.Word {
	return value.RecordField(h, w, 0)
}

// StringText decodes a string record back to a Go string.
func StringText(h value.Memory, w value.Word) string {
	bv := StringBytes(h, w)
	n := value.BytesLength(h, bv)
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = value.ByteRef(h, bv, i)
	}
	return string(buf)
}

// SymbolName returns the underlying byte-vector pointer of a symbol's name.
func SymbolName(h value.Memory, w value.Word) value.Word {
	return value.RecordField(h, w, 0)
}

func SymbolText(h value.Memory, w value.Word) string {
	bv := SymbolName(h, w)
	n := value.BytesLength(h, bv)
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = value.ByteRef(h, bv, i)
	}
	return string(buf)
}

// NewFunction allocates a bootstrap-evaluator function record: a body
// form (addressed positionally via env-reference pairs, with no separate
// parameter-name list) and the environment chain captured at the
// enclosing `lambda` operation's evaluation.
func NewFunction(h *heap.Heap, wk *WellKnown, body, env value.Word) value.Word {
	return h.AllocateRecord(wk.FunctionType, []value.Word{body, env})
}

func FunctionBody(h value.Memory, w value.Word) value.Word { return value.RecordField(h, w, 0) }
func FunctionEnv(h value.Memory, w value.Word) value.Word  { return value.RecordField(h, w, 1) }

// NewClosure allocates a compiler closure record: a code block and its
// captured-variable vector.
func NewClosure(h *heap.Heap, wk *WellKnown, code, captured value.Word) value.Word {
	return h.AllocateRecord(wk.ClosureType, []value.Word{code, captured})
}

func ClosureCode(h value.Memory, w value.Word) value.Word     { return value.RecordField(h, w, 0) }
func ClosureCaptured(h value.Memory, w value.Word) value.Word { return value.RecordField(h, w, 1) }

// NewBox, BoxGet, BoxSet implement the one-field mutable-binding cell the
// GLOSSARY's "Boxed variable" entry and box-make/
// box-ref/box-set primops operate on.
func NewBox(h *heap.Heap, wk *WellKnown, initial value.Word) value.Word {
	return h.AllocateRecord(wk.BoxType, []value.Word{initial})
}

func BoxGet(h value.Memory, w value.Word) value.Word { return value.RecordField(h, w, 0) }

func BoxSet(h value.Memory, w value.Word, v value.Word) { value.SetRecordField(h, w, 0, v) }
