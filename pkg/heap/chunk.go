package heap

import "github.com/wenlang/wen/pkg/opcode"

// Chunk is an append-only bytecode buffer: a byte stream of opcodes and
// operands, a parallel array of source line numbers (one entry per byte,
// so a multi-byte instruction repeats its line for each operand byte),
// and a constant pool bounded at opcode.MaxConstants entries, addressable
// by a single operand byte. Chunk exposes no random-access write —
// callers build it with Write/WriteOp and patch jump targets through
// PatchJump, which knows the two-byte big-endian layout.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// NewChunk returns an empty Chunk.
func NewChunk() *Chunk {
	return &Chunk{}
}

// Write appends a raw byte, recording the source line it was emitted for.
func (c *Chunk) Write(b byte, line int) int {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op opcode.OpCode, line int) int {
	return c.Write(byte(op), line)
}

// AddConstant appends a value to the constant pool and returns its index.
// The compiler is responsible for never exceeding opcode.MaxConstants.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// WriteJump emits a jump opcode followed by a two-byte big-endian
// placeholder offset, returning the index of the first placeholder byte
// so the caller can backpatch it once the jump target is known.
func (c *Chunk) WriteJump(op opcode.OpCode, line int) int {
	c.WriteOp(op, line)
	c.Write(0xff, line)
	c.Write(0xff, line)
	return len(c.Code) - 2
}

// PatchJump backfills the two-byte offset at the given placeholder index
// so that it lands immediately after the most recently written byte.
func (c *Chunk) PatchJump(offset int) {
	jump := len(c.Code) - offset - 2
	c.Code[offset] = byte((jump >> 8) & 0xff)
	c.Code[offset+1] = byte(jump & 0xff)
}

// EmitLoop writes a LOOP instruction whose two-byte operand jumps
// backward to loopStart.
func (c *Chunk) EmitLoop(loopStart int, line int) {
	c.WriteOp(opcode.Loop, line)
	offset := len(c.Code) - loopStart + 2
	c.Write(byte((offset>>8)&0xff), line)
	c.Write(byte(offset&0xff), line)
}
