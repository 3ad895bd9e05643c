// Released under an MIT license. See LICENSE.

package reader

import (
	"fmt"
	"strconv"

	"github.com/suolang/suo/internal/heap"
	"github.com/suolang/suo/internal/opcode"
	"github.com/suolang/suo/internal/symtab"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
)

// frameKind identifies which finisher a pushed frame will use: each
// opener has a registered finisher.
type frameKind int

const (
	frameList frameKind = iota
	frameVector
	frameSharpVector // "#(...)" -> (fn () (...))
	frameSharpList   // "#[...]" -> (fn (...))
	frameAbbrev      // 'x -> (quote x)
)

// frame is one level of the explicit frame stack Read pushes and pops
// instead of recursing: a plain Go-level stack of struct pointers
// satisfies the non-recursive, bounded-host-stack invariant. Read never
// calls itself per nesting level, regardless of which memory subsystem
// the frames live in. Each frame's accumulator is a proper heap list kept
// safe across allocation-triggered collections by staying registered on
// the heap's root stack for the frame's entire lifetime.
type frame struct {
	kind   frameKind
	closer TokenKind // expected closing token, for list/vector/sharp frames
	acc    value.Word
	gotDot bool
	tail   value.Word
}

// Reader is a non-recursive S-expression reader building value.Word trees
// directly in the heap.
type Reader struct {
	h    *heap.Heap
	wk   *types.WellKnown
	syms *symtab.Table
	lex  *Lexer

	quoteSym value.Word
	fnSym    value.Word
}

// New creates a Reader over src, interning symbols into syms.
func New(h *heap.Heap, wk *types.WellKnown, syms *symtab.Table, src, label string) *Reader {
	return &Reader{
		h:        h,
		wk:       wk,
		syms:     syms,
		lex:      NewLexer(src, label),
		quoteSym: syms.Intern("quote"),
		fnSym:    syms.Intern("fn"),
	}
}

// ReadOne reads one complete top-level form. ok is false with a nil error
// at a clean end of input; ok is false with a non-nil error on a syntax
// error (premature EOF inside a construct, an unbalanced or mismatched
// delimiter, or an out-of-range integer literal) -- that case's logical
// read result is the unspecified value, which the caller may substitute
// if it chooses to keep reading past the error.
func (r *Reader) ReadOne() (result value.Word, ok bool, err error) {
	var stack []*frame

	pushFrame := func(k frameKind, closer TokenKind) {
		f := &frame{kind: k, closer: closer, acc: value.Nil, tail: value.Nil}
		r.h.Roots().Push(&f.acc)
		r.h.Roots().Push(&f.tail)
		stack = append(stack, f)
	}
	popFrame := func() *frame {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		r.h.Roots().Pop()
		r.h.Roots().Pop()
		return f
	}

	// attach delivers a fully-formed value v to whatever is waiting for
	// it: either it completes the whole read (stack empty), or it
	// resolves an abbrev frame (which itself then needs delivering to
	// its own enclosing frame, looped rather than recursed), or it is
	// appended to the current frame's accumulator (or stored as an
	// improper tail after a dot token).
	attach := func(v value.Word) (value.Word, bool, error) {
		for {
			if len(stack) == 0 {
				return v, true, nil
			}
			top := stack[len(stack)-1]
			if top.kind == frameAbbrev {
				popFrame()
				v = r.finishAbbrev(v)
				continue
			}
			if top.gotDot {
				if top.tail != value.Nil {
					return value.Unspecified, false, fmt.Errorf("%s: more than one form after dot in list", r.lex.label)
				}
				top.tail = v
			} else {
				top.acc = r.h.AllocatePair(v, top.acc)
			}
			return value.Word(0), false, nil
		}
	}

	for {
		tok, lexErr := r.lex.Next()
		if lexErr != nil {
			return value.Unspecified, false, lexErr
		}

		switch tok.Kind {
		case TokEOF:
			if len(stack) > 0 {
				return value.Unspecified, false, fmt.Errorf("%s:%d: premature EOF inside construct", r.lex.label, tok.Line)
			}
			return value.Word(0), false, nil

		case TokLParen:
			pushFrame(frameList, TokRParen)
			continue
		case TokLBracket:
			pushFrame(frameVector, TokRBracket)
			continue
		case TokSharpVector:
			pushFrame(frameSharpVector, TokRParen)
			continue
		case TokSharpList:
			pushFrame(frameSharpList, TokRBracket)
			continue
		case TokQuote:
			pushFrame(frameAbbrev, TokEOF)
			continue

		case TokLBrace, TokRBrace:
			return value.Unspecified, false, fmt.Errorf("%s:%d: unsupported construct %q", r.lex.label, tok.Line, tok.Text)

		case TokRParen, TokRBracket:
			if len(stack) == 0 {
				return value.Unspecified, false, fmt.Errorf("%s:%d: unbalanced closing delimiter", r.lex.label, tok.Line)
			}
			top := stack[len(stack)-1]
			if top.kind == frameAbbrev || top.closer != tok.Kind {
				return value.Unspecified, false, fmt.Errorf("%s:%d: mismatched closing delimiter", r.lex.label, tok.Line)
			}
			f := popFrame()
			v, ferr := r.finish(f)
			if ferr != nil {
				return value.Unspecified, false, ferr
			}
			done, isDone, aerr := attach(v)
			if aerr != nil {
				return value.Unspecified, false, aerr
			}
			if isDone {
				return done, true, nil
			}
			continue

		case TokDot:
			if len(stack) == 0 || stack[len(stack)-1].kind != frameList {
				return value.Unspecified, false, fmt.Errorf("%s:%d: dot outside list", r.lex.label, tok.Line)
			}
			if stack[len(stack)-1].gotDot {
				return value.Unspecified, false, fmt.Errorf("%s:%d: multiple dots in list", r.lex.label, tok.Line)
			}
			stack[len(stack)-1].gotDot = true
			continue
		}

		v, verr := r.tokenValue(tok)
		if verr != nil {
			return value.Unspecified, false, verr
		}

		done, isDone, aerr := attach(v)
		if aerr != nil {
			return value.Unspecified, false, aerr
		}
		if isDone {
			return done, true, nil
		}
	}
}

func (r *Reader) tokenValue(tok Token) (value.Word, error) {
	switch tok.Kind {
	case TokString:
		return types.NewString(r.h, r.wk, tok.Text), nil
	case TokSharpBool:
		return value.MakeBool(tok.Bool), nil
	case TokSharpChar:
		return value.MakeChar(tok.Char), nil
	case TokSharpOpcode:
		name := tok.Text[1:] // strip leading '@'
		op, ok := opcode.Lookup(name)
		if !ok {
			return value.Unspecified, fmt.Errorf("%s:%d: unknown opcode #@%s", r.lex.label, tok.Line, name)
		}
		return value.MakeInt(int32(op)), nil
	case TokAtom:
		if tok.Text == "#unspec" {
			return value.Unspecified, nil
		}
		return r.classifyAtom(tok)
	}
	return value.Unspecified, fmt.Errorf("%s:%d: unexpected token", r.lex.label, tok.Line)
}

// classifyAtom implements token-to-value classification: a signed
// decimal integer within small-integer range becomes that integer; an
// integer-shaped token outside the range is a read error; anything else
// becomes an interned symbol.
func (r *Reader) classifyAtom(tok Token) (value.Word, error) {
	if looksLikeInteger(tok.Text) {
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil || n < value.MinInt || n > value.MaxInt {
			return value.Unspecified, fmt.Errorf("%s:%d: integer literal %s out of range", r.lex.label, tok.Line, tok.Text)
		}
		return value.MakeInt(int32(n)), nil
	}
	return r.syms.Intern(tok.Text), nil
}

func looksLikeInteger(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// finish builds the final value for a completed frame from its
// accumulated (reverse-order) element list, dispatching on the frame's
// finisher and its concrete sharp-syntax expansion.
func (r *Reader) finish(f *frame) (value.Word, error) {
	switch f.kind {
	case frameList:
		tail := value.Nil
		if f.gotDot {
			tail = f.tail
		}
		return r.rebuildList(f.acc, tail), nil
	case frameVector:
		return r.rebuildVector(f.acc), nil
	case frameSharpVector:
		forms := r.rebuildList(f.acc, value.Nil)
		body := r.h.AllocatePair(forms, value.Nil)
		params := r.h.AllocatePair(value.Nil, body)
		return r.h.AllocatePair(r.fnSym, params), nil
	case frameSharpList:
		forms := r.rebuildList(f.acc, value.Nil)
		params := r.h.AllocatePair(forms, value.Nil)
		return r.h.AllocatePair(r.fnSym, params), nil
	}
	return value.Unspecified, fmt.Errorf("internal error: unknown frame kind")
}

func (r *Reader) finishAbbrev(v value.Word) value.Word {
	rest := r.h.AllocatePair(v, value.Nil)
	return r.h.AllocatePair(r.quoteSym, rest)
}

// rebuildList walks a reverse-order accumulator list (most-recently-read
// element first) and conses it back into original reading order, ending
// in tail.
func (r *Reader) rebuildList(reversedAcc, tail value.Word) value.Word {
	result := tail
	for p := reversedAcc; p != value.Nil; p = value.Cdr(r.h, p) {
		result = r.h.AllocatePair(value.Car(r.h, p), result)
	}
	return result
}

func (r *Reader) rebuildVector(reversedAcc value.Word) value.Word {
	n := 0
	for p := reversedAcc; p != value.Nil; p = value.Cdr(r.h, p) {
		n++
	}
	elems := make([]value.Word, n)
	i := n - 1
	for p := reversedAcc; p != value.Nil; p = value.Cdr(r.h, p) {
		elems[i] = value.Car(r.h, p)
		i--
	}
	return r.h.AllocateVectorFrom(elems)
}
