// Package opcode defines the bytecode instruction set the compiler emits
// and the VM dispatches over. It has no dependencies so that both the
// heap package (which owns Chunk) and anything that wants to print
// instructions without touching values (the disassembler) can import it
// without creating a cycle.
package opcode

// OpCode identifies a single bytecode instruction. Each is a single byte
// with zero, one, or two inline operand bytes; 16-bit operands (jump
// offsets) are encoded big-endian.
type OpCode byte

const (
	Constant OpCode = iota
	Nil
	True
	False
	Pop
	GetLocal
	SetLocal
	GetGlobal
	DefineGlobal
	SetGlobal
	GetUpvalue
	SetUpvalue
	GetProperty
	SetProperty
	GetSuper
	BuildList
	IndexSubscr
	StoreSubscr
	Equal
	Greater
	Less
	Add
	Subtract
	Multiply
	Divide
	Modulo
	BitwiseAnd
	BitwiseOr
	BitwiseXor
	BitwiseNot
	ShiftLeft
	ShiftRight
	Increment
	Decrement
	Not
	Negate
	Jump
	JumpIfFalse
	Loop
	Call
	Invoke
	SuperInvoke
	Closure
	CloseUpvalue
	Return
	Class
	Inherit
	Method
	Dup
	DoubleDup
)

// MaxConstants bounds the constant pool: constant operands are one byte.
const MaxConstants = 256

var names = map[OpCode]string{
	Constant:     "CONSTANT",
	Nil:          "NIL",
	True:         "TRUE",
	False:        "FALSE",
	Pop:          "POP",
	GetLocal:     "GET_LOCAL",
	SetLocal:     "SET_LOCAL",
	GetGlobal:    "GET_GLOBAL",
	DefineGlobal: "DEFINE_GLOBAL",
	SetGlobal:    "SET_GLOBAL",
	GetUpvalue:   "GET_UPVALUE",
	SetUpvalue:   "SET_UPVALUE",
	GetProperty:  "GET_PROPERTY",
	SetProperty:  "SET_PROPERTY",
	GetSuper:     "GET_SUPER",
	BuildList:    "BUILD_LIST",
	IndexSubscr:  "INDEX_SUBSCR",
	StoreSubscr:  "STORE_SUBSCR",
	Equal:        "EQUAL",
	Greater:      "GREATER",
	Less:         "LESS",
	Add:          "ADD",
	Subtract:     "SUBTRACT",
	Multiply:     "MULTIPLY",
	Divide:       "DIVIDE",
	Modulo:       "MODULO",
	BitwiseAnd:   "BITWISE_AND",
	BitwiseOr:    "BITWISE_OR",
	BitwiseXor:   "BITWISE_XOR",
	BitwiseNot:   "BITWISE_NOT",
	ShiftLeft:    "SHIFT_LEFT",
	ShiftRight:   "SHIFT_RIGHT",
	Increment:    "INCREMENT",
	Decrement:    "DECREMENT",
	Not:          "NOT",
	Negate:       "NEGATE",
	Jump:         "JUMP",
	JumpIfFalse:  "JUMP_IF_FALSE",
	Loop:         "LOOP",
	Call:         "CALL",
	Invoke:       "INVOKE",
	SuperInvoke:  "SUPER_INVOKE",
	Closure:      "CLOSURE",
	CloseUpvalue: "CLOSE_UPVALUE",
	Return:       "RETURN",
	Class:        "CLASS",
	Inherit:      "INHERIT",
	Method:       "METHOD",
	Dup:          "DUP",
	DoubleDup:    "DOUBLE_DUP",
}

// String returns the opcode's mnemonic, used by the disassembler.
func (op OpCode) String() string {
	if name, ok := names[op]; ok {
		return name
	}
	return "UNKNOWN"
}
