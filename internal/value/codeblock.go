// Released under an MIT license. See LICENSE.

package value

// A code block is a byte vector (raw instruction bytes) whose header marks
// it as code, followed by a literal-end word and then the literal region
// itself. Layout, word-indexed from the object base:
//
//	[0]              header (code-block header word)
//	[1 .. 1+nw)      raw instruction bytes, nw = ceil(byteLen/4)
//	[1+nw]           literal-end: absolute word offset (from base) of the
//	                 literal region's end
//	[1+nw+1 .. end)  literal words
//	[end]            one trailing word, so the object spans end + 1 words
//
// codeBlockWords below computes `size = literalEnd + 1` directly rather
// than accumulating into a running total, since there is never more than
// one term to add.

func codeBytesWordCount(nbytes int) int { return byteWordCount(nbytes) }

// CodeLitBeginOffset returns the word offset (from the object base) of the
// literal-end slot, i.e. one past the raw instruction bytes.
func CodeLitBeginOffset(m Memory, code Word) int {
	nbytes := BytesLength(m, code)
	return 1 + codeBytesWordCount(nbytes)
}

// CodeLiteralEnd reads the literal-end word: the absolute word offset (from
// the object base) one past the last literal word.
func CodeLiteralEnd(m Memory, code Word) int {
	slot := Addr(code) + CodeLitBeginOffset(m, code)
	return int(IntValue(m.WordAt(slot)))
}

// CodeBlockWords returns the total object size in words, header included:
// literalEnd + 1.
func CodeBlockWords(m Memory, code Word) int {
	return CodeLiteralEnd(m, code) + 1
}

// CodeLiteralRange returns [begin, end) word offsets, relative to the
// object base, of the literal region itself (after the literal-end slot).
func CodeLiteralRange(m Memory, code Word) (begin, end int) {
	begin = CodeLitBeginOffset(m, code) + 1
	end = CodeLiteralEnd(m, code)
	return
}

// CodeLiteral reads literal word i (0-based) from a code block.
func CodeLiteral(m Memory, code Word, i int) Word {
	begin, _ := CodeLiteralRange(m, code)
	return m.WordAt(Addr(code) + begin + i)
}

// CodeInstructionByte reads raw instruction byte i (0-based).
func CodeInstructionByte(m Memory, code Word, i int) byte {
	return ByteRef(m, code, i)
}

// CodeInstructionLen returns the number of raw instruction bytes.
func CodeInstructionLen(m Memory, code Word) int {
	return BytesLength(m, code)
}
