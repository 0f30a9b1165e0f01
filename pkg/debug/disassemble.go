// Package debug prints bytecode chunks in human-readable form, the way
// the teacher's disassembleFile command dumped a .sg file's constant pool
// and instruction stream for inspection.
package debug

import (
	"fmt"
	"io"

	"github.com/wenlang/wen/pkg/heap"
	"github.com/wenlang/wen/pkg/opcode"
)

// DisassembleChunk writes a header naming the chunk followed by every
// instruction in chunk to w, one per line. No separate constant-pool
// listing is printed; a constant appears beside each instruction that
// references it.
func DisassembleChunk(w io.Writer, chunk *heap.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = disassembleInstruction(w, chunk, offset)
	}
}

func disassembleInstruction(w io.Writer, chunk *heap.Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", chunk.Lines[offset])
	}

	op := opcode.OpCode(chunk.Code[offset])
	switch op {
	case opcode.Constant:
		return constantInstruction(w, op, chunk, offset)
	case opcode.GetLocal, opcode.SetLocal, opcode.GetUpvalue, opcode.SetUpvalue,
		opcode.Call, opcode.BuildList:
		return byteInstruction(w, op, chunk, offset)
	case opcode.GetGlobal, opcode.DefineGlobal, opcode.SetGlobal,
		opcode.GetProperty, opcode.SetProperty, opcode.GetSuper,
		opcode.Class, opcode.Method:
		return constantInstruction(w, op, chunk, offset)
	case opcode.Invoke, opcode.SuperInvoke:
		return invokeInstruction(w, op, chunk, offset)
	case opcode.Jump, opcode.JumpIfFalse:
		return jumpInstruction(w, op, chunk, offset, 1)
	case opcode.Loop:
		return jumpInstruction(w, op, chunk, offset, -1)
	case opcode.Closure:
		return closureInstruction(w, op, chunk, offset)
	default:
		return simpleInstruction(w, op, offset)
	}
}

func simpleInstruction(w io.Writer, op opcode.OpCode, offset int) int {
	fmt.Fprintf(w, "%s\n", op)
	return offset + 1
}

func byteInstruction(w io.Writer, op opcode.OpCode, chunk *heap.Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", op, slot)
	return offset + 2
}

func constantInstruction(w io.Writer, op opcode.OpCode, chunk *heap.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, formatValue(chunk.Constants[idx]))
	return offset + 2
}

func invokeInstruction(w io.Writer, op opcode.OpCode, chunk *heap.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	argCount := chunk.Code[offset+2]
	fmt.Fprintf(w, "%-16s (%d args) %4d '%s'\n", op, argCount, idx, formatValue(chunk.Constants[idx]))
	return offset + 3
}

func jumpInstruction(w io.Writer, op opcode.OpCode, chunk *heap.Chunk, offset, sign int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func closureInstruction(w io.Writer, op opcode.OpCode, chunk *heap.Chunk, offset int) int {
	offset++
	constIdx := chunk.Code[offset]
	offset++
	fn := chunk.Constants[constIdx].Obj.Function()
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, constIdx, formatValue(chunk.Constants[constIdx]))

	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		offset++
		index := chunk.Code[offset]
		offset++
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset-2, kind, index)
	}
	return offset
}

func formatValue(v heap.Value) string {
	switch v.Kind {
	case heap.KindNil:
		return "空"
	case heap.KindBool:
		if v.Bool {
			return "真"
		}
		return "假"
	case heap.KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case heap.KindObject:
		switch v.Obj.Kind {
		case heap.ObjKindString:
			return v.Obj.String().Str()
		case heap.ObjKindFunction:
			fn := v.Obj.Function()
			if fn.Name != nil {
				return fmt.Sprintf("<函数 %s>", fn.Name.Str())
			}
			return "<脚本>"
		case heap.ObjKindClass:
			return fmt.Sprintf("<类 %s>", v.Obj.Class().Name.Str())
		}
	}
	return "<对象>"
}
