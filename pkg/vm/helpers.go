package vm

import (
	"fmt"

	"github.com/wenlang/wen/pkg/heap"
	"github.com/wenlang/wen/pkg/opcode"
)

func sprintf(format string, a ...interface{}) string {
	return fmt.Sprintf(format, a...)
}

// arith evaluates the four numeric binary operators that share ADD's
// type-checked-by-caller shape; ADD itself is handled separately because
// it also accepts two strings.
func arith(op opcode.OpCode, a, b float64) float64 {
	switch op {
	case opcode.Subtract:
		return a - b
	case opcode.Multiply:
		return a * b
	case opcode.Divide:
		return a / b
	case opcode.Modulo:
		return heap.Fmod(a, b)
	default:
		return 0
	}
}

func bitwise(op opcode.OpCode, a, b int32) int32 {
	switch op {
	case opcode.BitwiseAnd:
		return a & b
	case opcode.BitwiseOr:
		return a | b
	case opcode.BitwiseXor:
		return a ^ b
	case opcode.ShiftLeft:
		return a << uint32(b)
	case opcode.ShiftRight:
		return a >> uint32(b)
	default:
		return 0
	}
}

// add implements ADD's dual contract: number+number sums, string+string
// concatenates into a freshly interned string. Anything else is a type
// error — the original's wording for it names both accepted shapes.
func (vm *VM) add(a, b heap.Value) (heap.Value, error) {
	if a.Kind == heap.KindNumber && b.Kind == heap.KindNumber {
		return heap.Number(a.Number + b.Number), nil
	}
	if a.Kind == heap.KindObject && a.Obj.Kind == heap.ObjKindString &&
		b.Kind == heap.KindObject && b.Obj.Kind == heap.ObjKindString {
		as, bs := a.Obj.String(), b.Obj.String()
		concatenated := append(append([]rune{}, as.Runes()...), bs.Runes()...)
		return vm.h.InternRunes(concatenated).Value(), nil
	}
	return heap.Nil, fmt.Errorf("操作数必须是两个数字或两个字符串。")
}

// normalizeIndex maps a negative index to length+index (so -1 addresses the
// last element), the way the original's string/list subscript code does
// before bounds-checking. A still-negative result after that is simply out
// of range and left for the caller's bounds check to reject.
func normalizeIndex(i, length int) int {
	if i < 0 {
		return length + i
	}
	return i
}

// indexSubscr implements list[i] and string[i] read access. Negative
// indices count from the end (list[-1] is the last element); both kinds
// reject out-of-range access after normalizing, per the original's distinct
// string-index and list-index diagnostics.
func (vm *VM) indexSubscr(target, index heap.Value) (heap.Value, error) {
	if target.Kind != heap.KindObject {
		return heap.Nil, fmt.Errorf("只有实例、字符串和列表有方法。")
	}
	switch target.Obj.Kind {
	case heap.ObjKindList:
		list := target.Obj.List()
		if index.Kind != heap.KindNumber {
			return heap.Nil, fmt.Errorf("列表索引不是数字。")
		}
		i := normalizeIndex(int(index.Number), len(list.Items))
		if !list.ValidIndex(i) {
			return heap.Nil, fmt.Errorf("列表索引超出范围。")
		}
		return list.Items[i], nil
	case heap.ObjKindString:
		s := target.Obj.String()
		if index.Kind != heap.KindNumber {
			return heap.Nil, fmt.Errorf("字符串索引不是数字。")
		}
		i := normalizeIndex(int(index.Number), s.Len())
		if i < 0 || i >= s.Len() {
			return heap.Nil, fmt.Errorf("字符串索引超出范围。")
		}
		return vm.h.InternRunes([]rune{s.Runes()[i]}).Value(), nil
	default:
		return heap.Nil, fmt.Errorf("只有实例、字符串和列表有方法。")
	}
}

// storeSubscr implements list[i] = value; strings are immutable so they are
// not a valid assignment target. Negative indices count from the end, same
// as indexSubscr.
func (vm *VM) storeSubscr(target, index, value heap.Value) (heap.Value, error) {
	if target.Kind != heap.KindObject || target.Obj.Kind != heap.ObjKindList {
		return heap.Nil, fmt.Errorf("只有列表支持索引赋值。")
	}
	list := target.Obj.List()
	if index.Kind != heap.KindNumber {
		return heap.Nil, fmt.Errorf("列表索引不是数字。")
	}
	i := normalizeIndex(int(index.Number), len(list.Items))
	if !list.ValidIndex(i) {
		return heap.Nil, fmt.Errorf("列表索引超出范围。")
	}
	list.Items[i] = value
	return value, nil
}
