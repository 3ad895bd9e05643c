// Released under an MIT license. See LICENSE.

// Package writer implements a non-recursive S-expression writer: a stack
// of (object, index) frames mirroring the reader's frame stack, printing
// the same grammar the reader accepts.
package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

// whitespace and delimiters a bare symbol character must be escaped
// against, matching the reader's own delimiter set.
const (
	whitespace = " \t\n\r"
	delimiters = "()[]{}';"
)

// frame is one level of the writer's explicit stack: the object being
// printed and how far through it printing has progressed. Pairs use index
// 0 (about to print car), 1 (about to print cdr or close), 2 (closed);
// vectors use index as the next element to print.
type frame struct {
	obj value.Word
	idx int
}

// Writer prints value.Word trees to an io.Writer using an explicit frame
// stack instead of Go recursion, bounded
// host-stack invariant.
type Writer struct {
	h  value.Memory
	wk *types.WellKnown
	w  io.Writer
}

// New creates a Writer bound to h/wk, printing to w.
func New(h value.Memory, wk *types.WellKnown, w io.Writer) *Writer {
	return &Writer{h: h, wk: wk, w: w}
}

// Write prints one complete value.
func (wr *Writer) Write(x value.Word) error {
	var stack []*frame

	if err := wr.start(x, &stack); err != nil {
		return err
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]

		switch {
		case value.IsPair(f.obj):
			if err := wr.stepPair(f, &stack); err != nil {
				return err
			}
		case value.IsVectorPtr(f.obj):
			if err := wr.stepVector(f, &stack); err != nil {
				return err
			}
		default:
			return fmt.Errorf("writer: unexpected frame object on stack")
		}
	}

	return nil
}

// start prints the non-recursive-shaped portion of x: everything that
// either finishes immediately (atoms, immediates, records, byte-vectors)
// or opens a new frame (pairs, vectors) whose remaining elements the
// caller's step loop will drive.
func (wr *Writer) start(x value.Word, stack *[]*frame) error {
	switch {
	case value.IsSmallInt(x):
		_, err := fmt.Fprintf(wr.w, "%d", value.IntValue(x))
		return err

	case value.IsChar(x):
		var err error
		switch r := value.CharValue(x); r {
		case ' ':
			_, err = fmt.Fprint(wr.w, `#\space`)
		case '\n':
			_, err = fmt.Fprint(wr.w, `#\nl`)
		case '\t':
			_, err = fmt.Fprint(wr.w, `#\tab`)
		case 0:
			_, err = fmt.Fprint(wr.w, `#\nul`)
		default:
			_, err = fmt.Fprintf(wr.w, `#\%c`, r)
		}
		return err

	case value.IsNil(x):
		_, err := fmt.Fprint(wr.w, "()")
		return err

	case x == value.True:
		_, err := fmt.Fprint(wr.w, "#t")
		return err

	case x == value.False:
		_, err := fmt.Fprint(wr.w, "#f")
		return err

	case value.IsUnspecified(x):
		_, err := fmt.Fprint(wr.w, "#unspec")
		return err

	case value.IsPair(x):
		if _, err := fmt.Fprint(wr.w, "("); err != nil {
			return err
		}
		*stack = append(*stack, &frame{obj: x, idx: 0})
		return nil

	case value.IsVectorPtr(x):
		if _, err := fmt.Fprint(wr.w, "["); err != nil {
			return err
		}
		*stack = append(*stack, &frame{obj: x, idx: 0})
		return nil

	case value.IsRecordPtr(x):
		return wr.writeRecord(x)

	case value.IsBytesPtr(x):
		return wr.writeBytes(x)
	}

	_, err := fmt.Fprint(wr.w, "?")
	return err
}

func (wr *Writer) stepPair(f *frame, stack *[]*frame) error {
	switch f.idx {
	case 0:
		car := value.Car(wr.h, f.obj)
		f.idx = 1
		return wr.start(car, stack)
	case 1:
		cdr := value.Cdr(wr.h, f.obj)
		switch {
		case value.IsPair(cdr):
			if _, err := fmt.Fprint(wr.w, " "); err != nil {
				return err
			}
			f.obj = cdr
			f.idx = 0
			return nil
		case value.IsNil(cdr):
			if _, err := fmt.Fprint(wr.w, ")"); err != nil {
				return err
			}
			*stack = (*stack)[:len(*stack)-1]
			return nil
		default:
			f.idx = 2
			if _, err := fmt.Fprint(wr.w, " . "); err != nil {
				return err
			}
			return wr.start(cdr, stack)
		}
	default:
		if _, err := fmt.Fprint(wr.w, ")"); err != nil {
			return err
		}
		*stack = (*stack)[:len(*stack)-1]
		return nil
	}
}

func (wr *Writer) stepVector(f *frame, stack *[]*frame) error {
	n := value.VectorLength(wr.h, f.obj)
	if f.idx < n {
		elem := value.VectorRef(wr.h, f.obj, f.idx)
		if f.idx > 0 {
			if _, err := fmt.Fprint(wr.w, " "); err != nil {
				return err
			}
		}
		f.idx++
		return wr.start(elem, stack)
	}
	if _, err := fmt.Fprint(wr.w, "]"); err != nil {
		return err
	}
	*stack = (*stack)[:len(*stack)-1]
	return nil
}

// writeRecord prints a record: strings and symbols get their dedicated
// escaping rules (); every other descriptor prints as the
// opaque placeholder "{...}".
func (wr *Writer) writeRecord(x value.Word) error {
	switch {
	case types.IsString(wr.h, wr.wk, x):
		return wr.writeString(x)
	case types.IsSymbol(wr.h, wr.wk, x):
		return wr.writeSymbol(x)
	}
	_, err := fmt.Fprint(wr.w, "{...}")
	return err
}

func (wr *Writer) writeString(x value.Word) error {
	b := types.StringBytes(wr.h, x)
	n := value.BytesLength(wr.h, b)

	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < n; i++ {
		c := value.ByteRef(wr.h, b, i)
		if isPrintableASCII(c) && c != '"' && c != '\\' {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "\\x%02x", c)
		}
	}
	sb.WriteByte('"')

	_, err := fmt.Fprint(wr.w, sb.String())
	return err
}

func (wr *Writer) writeSymbol(x value.Word) error {
	nameBytes := types.SymbolName(wr.h, x)
	n := value.BytesLength(wr.h, nameBytes)

	var sb strings.Builder
	for i := 0; i < n; i++ {
		c := value.ByteRef(wr.h, nameBytes, i)
		if strings.IndexByte(whitespace, c) >= 0 || strings.IndexByte(delimiters, c) >= 0 || (c == '.' && n == 1) {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}

	_, err := fmt.Fprint(wr.w, sb.String())
	return err
}

// writeBytes prints a raw byte-vector (not a string/symbol record) as a
// slash-delimited lowercase hex dump, matching the original's bare
// bytev_p case.
func (wr *Writer) writeBytes(x value.Word) error {
	n := value.BytesLength(wr.h, x)
	var sb strings.Builder
	sb.WriteByte('/')
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%02x", value.ByteRef(wr.h, x, i))
	}
	sb.WriteByte('/')
	_, err := fmt.Fprint(wr.w, sb.String())
	return err
}

func isPrintableASCII(c byte) bool { return c >= 0x20 && c < 0x7f }
