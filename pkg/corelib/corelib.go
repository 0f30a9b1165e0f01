// Package corelib registers wen's native standard library into a VM's
// globals: the 时钟 (Clock) singleton, the 数学 (Math) singleton, and the
// top-level 打印/打印行 functions. It follows the native-function-table
// registration pattern the retrieval pack's Dev-Dami-DYMS-Lang library
// files use, adapted to wen's NativeFn calling convention.
package corelib

import (
	"fmt"
	"math"
	"time"

	"github.com/wenlang/wen/pkg/heap"
)

// vmHeap is the minimal surface corelib needs from a *vm.VM. Defined here,
// rather than importing package vm directly, to avoid a heap<->vm<->corelib
// import cycle (corelib only ever needs the heap and the globals table).
type vmHeap interface {
	Heap() *heap.Heap
	Globals() *heap.Table
}

// Register installs every native binding described in §6 into vm's globals.
func Register(vm vmHeap) {
	h := vm.Heap()
	globals := vm.Globals()

	globals.Set(h.InternString("打印"), h.NewNative("打印", -1, nativePrint).Value())
	globals.Set(h.InternString("打印行"), h.NewNative("打印行", -1, nativePrintln).Value())

	globals.Set(h.InternString("时钟"), newClockInstance(h).Value())
	globals.Set(h.InternString("数学"), newMathInstance(h).Value())
}

func nativePrint(args []heap.Value) (heap.Value, error) {
	for _, a := range args {
		fmt.Print(stringify(a))
	}
	return heap.Nil, nil
}

func nativePrintln(args []heap.Value) (heap.Value, error) {
	for _, a := range args {
		fmt.Print(stringify(a))
	}
	fmt.Println()
	return heap.Nil, nil
}

func stringify(v heap.Value) string {
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
		if v.Obj.Kind == heap.ObjKindString {
			return v.Obj.String().Str()
		}
	}
	return fmt.Sprintf("<%s>", v.TypeName())
}

// newClockInstance builds the 时钟 singleton: a plain class with no
// user-visible constructor, carrying 现在/毫秒 as native methods on its one
// static instance — mirroring how spec.md's defineNativeInstance pattern
// exposes a ready-made object rather than a class callers instantiate.
func newClockInstance(h *heap.Heap) *heap.ObjInstance {
	class := h.NewClass(h.InternString("时钟"))
	class.Methods.Set(h.InternString("现在"), h.NewNative("现在", 0, func(args []heap.Value) (heap.Value, error) {
		return heap.Number(float64(time.Now().UnixNano()) / 1e9), nil
	}).Value())
	class.Methods.Set(h.InternString("毫秒"), h.NewNative("毫秒", 0, func(args []heap.Value) (heap.Value, error) {
		return heap.Number(float64(time.Now().UnixNano()) / 1e6), nil
	}).Value())

	instance := h.NewInstance(class)
	instance.Static = true
	return instance
}

// newMathInstance builds the 数学 singleton: 平方根 绝对值 向上取整 向下取整 幂
// as native methods, 圆周率/自然对数底 as pre-populated constant fields. The
// Static flag blocks SetProperty on it at runtime (§3's "static instance
// forbids field mutation").
func newMathInstance(h *heap.Heap) *heap.ObjInstance {
	class := h.NewClass(h.InternString("数学"))

	unary := func(name string, fn func(float64) float64) {
		class.Methods.Set(h.InternString(name), h.NewNative(name, 1, func(args []heap.Value) (heap.Value, error) {
			n, ok := numberArg(args, 0)
			if !ok {
				return heap.Nil, typeError(1, "数字", args[0])
			}
			return heap.Number(fn(n)), nil
		}).Value())
	}

	unary("平方根", math.Sqrt)
	unary("绝对值", math.Abs)
	unary("向上取整", math.Ceil)
	unary("向下取整", math.Floor)

	class.Methods.Set(h.InternString("幂"), h.NewNative("幂", 2, func(args []heap.Value) (heap.Value, error) {
		base, ok := numberArg(args, 0)
		if !ok {
			return heap.Nil, typeError(1, "数字", args[0])
		}
		exp, ok := numberArg(args, 1)
		if !ok {
			return heap.Nil, typeError(2, "数字", args[1])
		}
		return heap.Number(math.Pow(base, exp)), nil
	}).Value())

	instance := h.NewInstance(class)
	instance.Fields.Set(h.InternString("圆周率"), heap.Number(math.Pi))
	instance.Fields.Set(h.InternString("自然对数底"), heap.Number(math.E))
	instance.Static = true
	return instance
}

func numberArg(args []heap.Value, i int) (float64, bool) {
	if i >= len(args) || args[i].Kind != heap.KindNumber {
		return 0, false
	}
	return args[i].Number, true
}

func typeError(n int, expected string, got heap.Value) error {
	return fmt.Errorf("参数 %d 的类型必须是「%s」，而不是「%s」。", n, expected, got.TypeName())
}
