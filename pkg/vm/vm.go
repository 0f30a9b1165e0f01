package vm

import (
	"go.uber.org/zap"

	"github.com/wenlang/wen/pkg/compiler"
	"github.com/wenlang/wen/pkg/heap"
	"github.com/wenlang/wen/pkg/opcode"
)

// FramesMax bounds recursion depth; exceeding it is a runtime "stack
// overflow" error rather than a Go-level panic.
const FramesMax = 64

// StackMax is sized so the backing array never reallocates: open
// upvalues hold raw pointers into vm.stack, and a slice growth would
// invalidate every one of them.
const StackMax = FramesMax * 256

// InterpretResult mirrors the driver-facing outcome of one Interpret call
// and the process exit code it maps to (§6: 0/65/70).
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

type callFrame struct {
	closure    *heap.ObjClosure
	ip         int
	slotsBase  int
	isCallback bool
}

// VM is the bytecode interpreter: one value stack, one call-frame array,
// one heap, one globals table, one open-upvalue list. Per §5 it is
// single-threaded and exclusively owned by its creator's goroutine.
type VM struct {
	h       *heap.Heap
	logger  *zap.Logger
	globals *heap.Table

	stack    [StackMax]heap.Value
	stackTop int

	frames     [FramesMax]callFrame
	frameCount int

	upvalueSlots []int
	upvalueObjs  []*heap.ObjUpvalue
}

// New creates a VM backed by h, registering itself as a GC root.
func New(h *heap.Heap, logger *zap.Logger) *VM {
	vm := &VM{h: h, logger: logger, globals: heap.NewTable()}
	h.AddRoot(vm)
	return vm
}

// MarkRoots implements heap.Root.
func (vm *VM) MarkRoots(mark func(heap.Value)) {
	for i := 0; i < vm.stackTop; i++ {
		mark(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		mark(vm.frames[i].closure.Value())
	}
	for _, uv := range vm.upvalueObjs {
		mark(uv.Value())
	}
	vm.globals.MarkValues(mark)
}

// Globals exposes the globals table so the driver and native bindings can
// install top-level names (e.g. the core module's singletons).
func (vm *VM) Globals() *heap.Table { return vm.globals }

// Heap exposes the owning heap for native bindings that need to allocate.
func (vm *VM) Heap() *heap.Heap { return vm.h }

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.upvalueSlots = nil
	vm.upvalueObjs = nil
}

func (vm *VM) push(v heap.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() heap.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) heap.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// Interpret compiles and runs one unit of source (a whole file, or one
// REPL line). It is the sole entry point the driver calls per §6.
func (vm *VM) Interpret(source string) (InterpretResult, error) {
	fn, err := compiler.Compile(vm.h, source)
	if err != nil {
		return InterpretCompileError, err
	}

	closure := vm.h.NewClosure(fn)
	vm.push(closure.Value())
	vm.callClosure(closure, 0)

	if err := vm.run(); err != nil {
		vm.resetStack()
		return InterpretRuntimeError, err
	}
	return InterpretOK, nil
}

// runClosure is the re-entrant callback entry point native code (list
// filter/sort) uses to call back into the VM: push args, call normally,
// mark the resulting frame as a callback so its RETURN exits run() rather
// than unwinding further, then pop the arguments before returning.
func (vm *VM) runClosure(closure *heap.ObjClosure, args []heap.Value) (heap.Value, error) {
	vm.push(closure.Value())
	for _, a := range args {
		vm.push(a)
	}
	if err := vm.call(closure.Value(), len(args)); err != nil {
		return heap.Nil, err
	}
	vm.frames[vm.frameCount-1].isCallback = true
	if err := vm.run(); err != nil {
		return heap.Nil, err
	}
	return vm.pop(), nil
}

func (vm *VM) runtimeError(format string, a ...interface{}) error {
	msg := sprintf(format, a...)

	var trace []frameTrace
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		line := 0
		if f.ip-1 >= 0 && f.ip-1 < len(f.closure.Function.Chunk.Lines) {
			line = f.closure.Function.Chunk.Lines[f.ip-1]
		}
		name := ""
		if f.closure.Function.Name != nil {
			name = f.closure.Function.Name.Str()
		}
		trace = append(trace, frameTrace{line: line, name: name})
	}
	return newRuntimeError(msg, trace)
}

// --- calling convention -------------------------------------------------

func (vm *VM) call(callee heap.Value, argCount int) error {
	if callee.Kind != heap.KindObject {
		return vm.runtimeError("只能调用功能和类。")
	}
	switch callee.Obj.Kind {
	case heap.ObjKindClosure:
		return vm.callClosure(callee.Obj.Closure(), argCount)
	case heap.ObjKindNative:
		return vm.callNative(callee.Obj.Native(), argCount)
	case heap.ObjKindClass:
		return vm.callClass(callee.Obj.Class(), argCount)
	case heap.ObjKindBoundMethod:
		b := callee.Obj.BoundMethod()
		vm.stack[vm.stackTop-argCount-1] = b.Receiver
		if b.Closure != nil {
			return vm.callClosure(b.Closure, argCount)
		}
		return vm.callNative(b.Native, argCount)
	default:
		return vm.runtimeError("只能调用功能和类。")
	}
}

func (vm *VM) callClosure(closure *heap.ObjClosure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("需要 %d 个参数，但得到 %d。", closure.Function.Arity, argCount)
	}
	if vm.frameCount >= FramesMax {
		return vm.runtimeError("堆栈溢出。")
	}
	vm.frames[vm.frameCount] = callFrame{
		closure:   closure,
		ip:        0,
		slotsBase: vm.stackTop - argCount - 1,
	}
	vm.frameCount++
	return nil
}

func (vm *VM) callNative(native *heap.ObjNative, argCount int) error {
	if native.Arity != -1 && argCount != native.Arity {
		return vm.runtimeError("需要 %d 个参数，但得到 %d。", native.Arity, argCount)
	}
	args := make([]heap.Value, argCount)
	copy(args, vm.stack[vm.stackTop-argCount:vm.stackTop])
	result, err := native.Fn(args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.stackTop -= argCount + 1
	vm.push(result)
	return nil
}

func (vm *VM) callClass(class *heap.ObjClass, argCount int) error {
	instance := vm.h.NewInstance(class)
	vm.stack[vm.stackTop-argCount-1] = instance.Value()
	if initializer, ok := class.Methods.Get(vm.h.InitString()); ok {
		return vm.callMethodValue(initializer, argCount)
	}
	if argCount != 0 {
		return vm.runtimeError("需要 0 个参数，但得到 %d。", argCount)
	}
	return nil
}

func (vm *VM) callMethodValue(method heap.Value, argCount int) error {
	if method.Kind != heap.KindObject {
		return vm.runtimeError("只能调用功能和类。")
	}
	if method.Obj.Kind == heap.ObjKindClosure {
		return vm.callClosure(method.Obj.Closure(), argCount)
	}
	return vm.callNative(method.Obj.Native(), argCount)
}

// --- method dispatch (§4.7) -------------------------------------------

func (vm *VM) invoke(name *heap.ObjString, argCount int) error {
	receiver := vm.peek(argCount)
	if receiver.Kind != heap.KindObject {
		return vm.runtimeError("只有实例、字符串和列表有方法。")
	}
	switch receiver.Obj.Kind {
	case heap.ObjKindInstance:
		return vm.invokeInstance(receiver.Obj.Instance(), name, argCount)
	case heap.ObjKindString:
		return vm.invokeString(receiver.Obj.String(), name, argCount)
	case heap.ObjKindList:
		return vm.invokeList(receiver.Obj.List(), name, argCount)
	default:
		return vm.runtimeError("只有实例、字符串和列表有方法。")
	}
}

func (vm *VM) invokeInstance(instance *heap.ObjInstance, name *heap.ObjString, argCount int) error {
	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.call(field, argCount)
	}
	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *heap.ObjClass, name *heap.ObjString, argCount int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("未定义的属性「%s」。", name.Str())
	}
	return vm.callMethodValue(method, argCount)
}

func (vm *VM) bindMethod(class *heap.ObjClass, name *heap.ObjString) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("未定义的属性「%s」。", name.Str())
	}
	receiver := vm.pop()
	var bound *heap.ObjBoundMethod
	if method.Obj.Kind == heap.ObjKindClosure {
		bound = vm.h.NewBoundMethod(receiver, method.Obj.Closure())
	} else {
		bound = vm.h.NewBoundNative(receiver, method.Obj.Native())
	}
	vm.push(bound.Value())
	return nil
}

// --- upvalues -----------------------------------------------------------

func (vm *VM) captureUpvalue(slot int) *heap.ObjUpvalue {
	insertAt := len(vm.upvalueSlots)
	for i, s := range vm.upvalueSlots {
		if s == slot {
			return vm.upvalueObjs[i]
		}
		if s < slot {
			insertAt = i
			break
		}
	}
	created := vm.h.NewUpvalue(&vm.stack[slot], slot)

	vm.upvalueSlots = append(vm.upvalueSlots, 0)
	copy(vm.upvalueSlots[insertAt+1:], vm.upvalueSlots[insertAt:])
	vm.upvalueSlots[insertAt] = slot

	vm.upvalueObjs = append(vm.upvalueObjs, nil)
	copy(vm.upvalueObjs[insertAt+1:], vm.upvalueObjs[insertAt:])
	vm.upvalueObjs[insertAt] = created

	return created
}

func (vm *VM) closeUpvalues(fromSlot int) {
	i := 0
	for i < len(vm.upvalueSlots) && vm.upvalueSlots[i] >= fromSlot {
		vm.upvalueObjs[i].Close()
		i++
	}
	vm.upvalueSlots = vm.upvalueSlots[i:]
	vm.upvalueObjs = vm.upvalueObjs[i:]
}

// --- the dispatch loop ---------------------------------------------------

func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]
	code := frame.closure.Function.Chunk.Code

	readByte := func() byte {
		b := code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() uint16 {
		hi := code[frame.ip]
		lo := code[frame.ip+1]
		frame.ip += 2
		return uint16(hi)<<8 | uint16(lo)
	}
	readConstant := func() heap.Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *heap.ObjString {
		return readConstant().Obj.String()
	}

	for {
		op := opcode.OpCode(readByte())
		switch op {
		case opcode.Constant:
			vm.push(readConstant())

		case opcode.Nil:
			vm.push(heap.Nil)
		case opcode.True:
			vm.push(heap.Bool(true))
		case opcode.False:
			vm.push(heap.Bool(false))
		case opcode.Pop:
			vm.pop()
		case opcode.Dup:
			vm.push(vm.peek(0))
		case opcode.DoubleDup:
			a, b := vm.peek(1), vm.peek(0)
			vm.push(a)
			vm.push(b)

		case opcode.GetLocal:
			slot := frame.slotsBase + int(readByte())
			vm.push(vm.stack[slot])
		case opcode.SetLocal:
			slot := frame.slotsBase + int(readByte())
			vm.stack[slot] = vm.peek(0)

		case opcode.GetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("未定义的变量「%s」。", name.Str())
			}
			vm.push(v)
		case opcode.DefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case opcode.SetGlobal:
			name := readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("未定义的变量「%s」。", name.Str())
			}

		case opcode.GetUpvalue:
			idx := readByte()
			vm.push(*frame.closure.Upvalues[idx].Location)
		case opcode.SetUpvalue:
			idx := readByte()
			*frame.closure.Upvalues[idx].Location = vm.peek(0)

		case opcode.GetProperty:
			if vm.peek(0).Kind != heap.KindObject || vm.peek(0).Obj.Kind != heap.ObjKindInstance {
				return vm.runtimeError("只有实例有属性。")
			}
			instance := vm.peek(0).Obj.Instance()
			name := readString()
			if field, ok := instance.Fields.Get(name); ok {
				vm.pop()
				vm.push(field)
				break
			}
			if err := vm.bindMethod(instance.Class, name); err != nil {
				return vm.withFrameTrace(frame, err)
			}

		case opcode.SetProperty:
			if vm.peek(1).Kind != heap.KindObject || vm.peek(1).Obj.Kind != heap.ObjKindInstance {
				return vm.runtimeError("只有实例有字段。")
			}
			instance := vm.peek(1).Obj.Instance()
			if instance.Static {
				return vm.runtimeError("不能修改常量属性。")
			}
			name := readString()
			instance.Fields.Set(name, vm.peek(0))
			value := vm.pop()
			vm.pop()
			vm.push(value)

		case opcode.GetSuper:
			name := readString()
			superclass := vm.pop().Obj.Class()
			if err := vm.bindMethod(superclass, name); err != nil {
				return vm.withFrameTrace(frame, err)
			}

		case opcode.BuildList:
			n := int(readByte())
			items := make([]heap.Value, n)
			copy(items, vm.stack[vm.stackTop-n:vm.stackTop])
			vm.stackTop -= n
			list := vm.h.NewList()
			list.Items = items
			vm.push(list.Value())

		case opcode.IndexSubscr:
			index := vm.pop()
			target := vm.pop()
			v, err := vm.indexSubscr(target, index)
			if err != nil {
				return vm.withFrameTrace(frame, err)
			}
			vm.push(v)

		case opcode.StoreSubscr:
			value := vm.pop()
			index := vm.pop()
			target := vm.pop()
			out, err := vm.storeSubscr(target, index, value)
			if err != nil {
				return vm.withFrameTrace(frame, err)
			}
			vm.push(out)

		case opcode.Equal:
			b, a := vm.pop(), vm.pop()
			vm.push(heap.Bool(heap.Equal(a, b)))

		case opcode.Greater, opcode.Less:
			b, a := vm.pop(), vm.pop()
			if a.Kind != heap.KindNumber || b.Kind != heap.KindNumber {
				return vm.runtimeError("操作数必须是数字。")
			}
			if op == opcode.Greater {
				vm.push(heap.Bool(a.Number > b.Number))
			} else {
				vm.push(heap.Bool(a.Number < b.Number))
			}

		case opcode.Add:
			b, a := vm.pop(), vm.pop()
			v, err := vm.add(a, b)
			if err != nil {
				return vm.withFrameTrace(frame, err)
			}
			vm.push(v)

		case opcode.Subtract, opcode.Multiply, opcode.Divide, opcode.Modulo:
			b, a := vm.pop(), vm.pop()
			if a.Kind != heap.KindNumber || b.Kind != heap.KindNumber {
				return vm.runtimeError("操作数必须是数字。")
			}
			vm.push(heap.Number(arith(op, a.Number, b.Number)))

		case opcode.BitwiseAnd, opcode.BitwiseOr, opcode.BitwiseXor, opcode.ShiftLeft, opcode.ShiftRight:
			b, a := vm.pop(), vm.pop()
			if a.Kind != heap.KindNumber || b.Kind != heap.KindNumber {
				return vm.runtimeError("操作数必须是数字。")
			}
			vm.push(heap.Number(float64(bitwise(op, heap.AsInt32(a), heap.AsInt32(b)))))

		case opcode.BitwiseNot:
			a := vm.pop()
			if a.Kind != heap.KindNumber {
				return vm.runtimeError("操作数必须是数字。")
			}
			vm.push(heap.Number(float64(^heap.AsInt32(a))))

		case opcode.Increment:
			a := vm.pop()
			if a.Kind != heap.KindNumber {
				return vm.runtimeError("操作数必须是数字。")
			}
			vm.push(heap.Number(a.Number + 1))
		case opcode.Decrement:
			a := vm.pop()
			if a.Kind != heap.KindNumber {
				return vm.runtimeError("操作数必须是数字。")
			}
			vm.push(heap.Number(a.Number - 1))

		case opcode.Not:
			vm.push(heap.Bool(vm.pop().IsFalsey()))

		case opcode.Negate:
			a := vm.pop()
			if a.Kind != heap.KindNumber {
				return vm.runtimeError("操作数必须是数字。")
			}
			vm.push(heap.Number(-a.Number))

		case opcode.Jump:
			offset := readShort()
			frame.ip += int(offset)
		case opcode.JumpIfFalse:
			offset := readShort()
			if vm.peek(0).IsFalsey() {
				frame.ip += int(offset)
			}
		case opcode.Loop:
			offset := readShort()
			frame.ip -= int(offset)

		case opcode.Call:
			argCount := int(readByte())
			if err := vm.call(vm.peek(argCount), argCount); err != nil {
				return vm.withFrameTrace(frame, err)
			}
			frame = &vm.frames[vm.frameCount-1]
			code = frame.closure.Function.Chunk.Code

		case opcode.Invoke:
			name := readString()
			argCount := int(readByte())
			if err := vm.invoke(name, argCount); err != nil {
				return vm.withFrameTrace(frame, err)
			}
			frame = &vm.frames[vm.frameCount-1]
			code = frame.closure.Function.Chunk.Code

		case opcode.SuperInvoke:
			name := readString()
			argCount := int(readByte())
			superclass := vm.pop().Obj.Class()
			if err := vm.invokeFromClass(superclass, name, argCount); err != nil {
				return vm.withFrameTrace(frame, err)
			}
			frame = &vm.frames[vm.frameCount-1]
			code = frame.closure.Function.Chunk.Code

		case opcode.Closure:
			fn := readConstant().Obj.Function()
			closure := vm.h.NewClosure(fn)
			vm.push(closure.Value())
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := readByte()
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slotsBase + int(index))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case opcode.CloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case opcode.Return:
			result := vm.pop()
			vm.closeUpvalues(frame.slotsBase)
			vm.frameCount--
			wasCallback := frame.isCallback
			vm.stackTop = frame.slotsBase
			vm.push(result)
			if wasCallback || vm.frameCount == 0 {
				return nil
			}
			frame = &vm.frames[vm.frameCount-1]
			code = frame.closure.Function.Chunk.Code

		case opcode.Class:
			name := readString()
			class := vm.h.NewClass(name)
			vm.push(class.Value())

		case opcode.Inherit:
			superVal := vm.peek(1)
			if superVal.Kind != heap.KindObject || superVal.Obj.Kind != heap.ObjKindClass {
				return vm.runtimeError("超类必须是个类。")
			}
			subclass := vm.peek(0).Obj.Class()
			subclass.Methods.AddAll(superVal.Obj.Class().Methods)
			vm.pop()

		case opcode.Method:
			name := readString()
			method := vm.pop()
			class := vm.peek(0).Obj.Class()
			class.Methods.Set(name, method)

		default:
			return vm.runtimeError("未知的操作码。")
		}
	}
}

// withFrameTrace promotes an in-flight error into a full RuntimeError with
// the current call stack, unless it already carries one (errors built by
// vm.runtimeError, such as those from vm.call, already hold their trace
// and pass through unchanged; plain errors, such as those returned by the
// built-in string/list methods and the subscript helpers, get one here).
func (vm *VM) withFrameTrace(frame *callFrame, err error) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RuntimeError); ok {
		return re
	}
	return vm.runtimeError("%s", err.Error())
}
