package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenlang/wen/pkg/heap"
	"github.com/wenlang/wen/pkg/opcode"
)

func compile(t *testing.T, source string) *heap.ObjFunction {
	t.Helper()
	h := heap.New(nil)
	fn, err := Compile(h, source)
	require.NoError(t, err)
	require.NotNil(t, fn)
	return fn
}

// opsOf decodes a Chunk's opcode stream, using its own rule for each
// instruction's operand width so variable-length CLOSURE encodings are
// walked correctly instead of mis-parsing trailing upvalue bytes as
// opcodes.
func opsOf(fn *heap.ObjFunction) []opcode.OpCode {
	var ops []opcode.OpCode
	code := fn.Chunk.Code
	for i := 0; i < len(code); {
		op := opcode.OpCode(code[i])
		ops = append(ops, op)
		switch op {
		case opcode.Jump, opcode.JumpIfFalse, opcode.Loop:
			i += 3
		case opcode.Invoke, opcode.SuperInvoke:
			i += 3
		case opcode.Pop, opcode.Equal, opcode.Greater, opcode.Less, opcode.Add,
			opcode.Subtract, opcode.Multiply, opcode.Divide, opcode.Modulo,
			opcode.BitwiseAnd, opcode.BitwiseOr, opcode.BitwiseXor, opcode.BitwiseNot,
			opcode.ShiftLeft, opcode.ShiftRight, opcode.Increment, opcode.Decrement,
			opcode.Not, opcode.Negate, opcode.Nil, opcode.True, opcode.False,
			opcode.CloseUpvalue, opcode.Return, opcode.Inherit, opcode.Dup,
			opcode.DoubleDup, opcode.IndexSubscr, opcode.StoreSubscr:
			i++
		case opcode.Closure:
			constIdx := code[i+1]
			upvalueCount := fn.Chunk.Constants[constIdx].Obj.Function().UpvalueCount
			i += 2 + 2*upvalueCount
		default:
			i += 2
		}
	}
	return ops
}

func TestCompileNumberLiteral(t *testing.T) {
	fn := compile(t, "42;")
	assert.Equal(t, heap.Number(42), fn.Chunk.Constants[0])
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.Constant)
	assert.Contains(t, ops, opcode.Pop)
}

func TestCompileStringLiteral(t *testing.T) {
	fn := compile(t, `"你好";`)
	require.Len(t, fn.Chunk.Constants, 1)
	assert.Equal(t, "你好", fn.Chunk.Constants[0].Obj.String().Str())
}

func TestCompileVarDeclarationGlobal(t *testing.T) {
	fn := compile(t, "变量 甲 = 1;")
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.DefineGlobal)
}

func TestCompileLocalScope(t *testing.T) {
	fn := compile(t, "{ 变量 甲 = 1; 甲; }")
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.GetLocal)
	assert.NotContains(t, ops, opcode.DefineGlobal)
}

func TestCompileIfElse(t *testing.T) {
	fn := compile(t, `如果 (真) { 1; } 否则 { 2; }`)
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.JumpIfFalse)
	assert.Contains(t, ops, opcode.Jump)
}

func TestCompileWhileLoop(t *testing.T) {
	fn := compile(t, `当 (假) { 1; }`)
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.Loop)
}

func TestCompileFunctionAndCall(t *testing.T) {
	fn := compile(t, `函数 甲(乙) { 返回 乙; } 甲(1);`)
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.Closure)
	assert.Contains(t, ops, opcode.Call)
}

func TestCompileClassWithMethod(t *testing.T) {
	fn := compile(t, `类 甲 { 乙() { 返回 这; } }`)
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.Class)
	assert.Contains(t, ops, opcode.Method)
}

func TestCompileClassExtends(t *testing.T) {
	fn := compile(t, `类 甲 {} 类 乙 继承 甲 {}`)
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.Inherit)
}

func TestCompileListLiteralAndIndex(t *testing.T) {
	fn := compile(t, `[1, 2, 3][0];`)
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.BuildList)
	assert.Contains(t, ops, opcode.IndexSubscr)
}

func TestCompileMethodInvoke(t *testing.T) {
	fn := compile(t, `变量 甲 = "xyz"; 甲.长度();`)
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.Invoke)
}

func TestCompileSuperInvoke(t *testing.T) {
	fn := compile(t, `类 甲 { 乙() { 返回 1; } } 类 丙 继承 甲 { 乙() { 返回 超.乙(); } }`)
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.SuperInvoke)
}

func TestCompileSyntaxErrorReported(t *testing.T) {
	h := heap.New(nil)
	_, err := Compile(h, "变量 ;")
	assert.Error(t, err)
}

func TestCompileThisOutsideClassIsError(t *testing.T) {
	h := heap.New(nil)
	_, err := Compile(h, "这;")
	assert.Error(t, err)
}

func TestCompileUpvalueCapture(t *testing.T) {
	fn := compile(t, `函数 甲() { 变量 乙 = 0; 函数 丙() { 返回 乙; } 返回 丙; }`)
	ops := opsOf(fn)
	assert.Contains(t, ops, opcode.Closure)
}
