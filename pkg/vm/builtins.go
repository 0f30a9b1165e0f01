package vm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wenlang/wen/pkg/heap"
)

// invokeString dispatches one of the built-in string methods mined from
// the original interpreter's runtime: 长度 指数 计数 拆分 替换 修剪 修剪始
// 修剪端 大写 小写 子串. Strings are immutable, so every one of these
// returns a new value rather than mutating the receiver.
func (vm *VM) invokeString(s *heap.ObjString, name *heap.ObjString, argCount int) error {
	args := make([]heap.Value, argCount)
	copy(args, vm.stack[vm.stackTop-argCount:vm.stackTop])
	text := s.Str()

	var result heap.Value
	var err error

	switch name.Str() {
	case "长度":
		result, err = requireArity(args, 0, func() (heap.Value, error) {
			return heap.Number(float64(s.Len())), nil
		})
	case "指数":
		result, err = stringArg(args, 0, "子串", func(needle string) (heap.Value, error) {
			return heap.Number(float64(runeIndex(text, needle))), nil
		})
	case "计数":
		result, err = stringArg(args, 0, "子串", func(needle string) (heap.Value, error) {
			if needle == "" {
				return heap.Number(0), nil
			}
			return heap.Number(float64(countOverlapping(text, needle))), nil
		})
	case "拆分":
		result, err = stringArg(args, 0, "分隔符", func(sep string) (heap.Value, error) {
			parts := strings.FieldsFunc(text, func(r rune) bool {
				return strings.ContainsRune(sep, r)
			})
			list := vm.h.NewList()
			for _, p := range parts {
				list.Items = append(list.Items, vm.h.InternString(p).Value())
			}
			return list.Value(), nil
		})
	case "替换":
		if len(args) != 2 {
			return fmt.Errorf("需要 2 个参数，但得到 %d。", len(args))
		}
		old, okOld := stringOf(args[0])
		repl, okNew := stringOf(args[1])
		if !okOld {
			return typeMismatch(1, "旧值", "字符串", args[0])
		}
		if !okNew {
			return typeMismatch(2, "新值", "字符串", args[1])
		}
		result, err = vm.h.InternString(strings.ReplaceAll(text, old, repl)).Value(), nil
	case "修剪":
		cutset, has, terr := trimArg(args)
		if terr != nil {
			return terr
		}
		if has {
			result = vm.h.InternString(strings.Trim(text, cutset)).Value()
		} else {
			result = vm.h.InternString(strings.TrimSpace(text)).Value()
		}
	case "修剪始":
		cutset, has, terr := trimArg(args)
		if terr != nil {
			return terr
		}
		if has {
			result = vm.h.InternString(strings.TrimLeft(text, cutset)).Value()
		} else {
			result = vm.h.InternString(strings.TrimLeft(text, " \t\r\n")).Value()
		}
	case "修剪端":
		cutset, has, terr := trimArg(args)
		if terr != nil {
			return terr
		}
		if has {
			result = vm.h.InternString(strings.TrimRight(text, cutset)).Value()
		} else {
			result = vm.h.InternString(strings.TrimRight(text, " \t\r\n")).Value()
		}
	case "大写":
		result, err = requireArity(args, 0, func() (heap.Value, error) {
			return vm.h.InternString(strings.ToUpper(text)).Value(), nil
		})
	case "小写":
		result, err = requireArity(args, 0, func() (heap.Value, error) {
			return vm.h.InternString(strings.ToLower(text)).Value(), nil
		})
	case "子串":
		if len(args) != 2 {
			return fmt.Errorf("需要 2 个参数，但得到 %d。", len(args))
		}
		runes := s.Runes()
		start, okStart := numberOf(args[0])
		end, okEnd := numberOf(args[1])
		if !okStart {
			return typeMismatch(1, "起始", "数字", args[0])
		}
		if !okEnd {
			return typeMismatch(2, "结束", "数字", args[1])
		}
		length := len(runes)
		lo, hi := normalizeIndex(int(start), length), normalizeIndex(int(end), length)
		if lo < 0 || hi > length || lo > hi {
			return fmt.Errorf("字符串索引超出范围。")
		}
		result, err = vm.h.InternRunes(runes[lo:hi]).Value(), nil
	default:
		return fmt.Errorf("未定义的属性「%s」。", name.Str())
	}

	if err != nil {
		return err
	}
	vm.stackTop -= argCount + 1
	vm.push(result)
	return nil
}

// invokeList dispatches one of the built-in list methods mined from the
// original interpreter's runtime: 推 弹 插 删 长度 过滤 排序. 过滤 and 排序
// call back into the script through the re-entrant runClosure path.
func (vm *VM) invokeList(l *heap.ObjList, name *heap.ObjString, argCount int) error {
	args := make([]heap.Value, argCount)
	copy(args, vm.stack[vm.stackTop-argCount:vm.stackTop])

	var result heap.Value
	var err error

	switch name.Str() {
	case "推":
		if len(args) != 1 {
			return fmt.Errorf("需要 1 个参数，但得到 %d。", len(args))
		}
		l.Items = append(l.Items, args[0])
		result = heap.Nil
	case "弹":
		if len(l.Items) == 0 {
			return fmt.Errorf("列表索引超出范围。")
		}
		result = l.RemoveAt(len(l.Items) - 1)
	case "插":
		if len(args) != 2 {
			return fmt.Errorf("需要 2 个参数，但得到 %d。", len(args))
		}
		idx, ok := numberOf(args[0])
		if !ok {
			return typeMismatch(1, "索引", "数字", args[0])
		}
		i := normalizeIndex(int(idx), len(l.Items))
		if i < 0 || i > len(l.Items) {
			return fmt.Errorf("列表索引超出范围。")
		}
		l.Insert(i, args[1])
		result = heap.Nil
	case "删":
		if len(args) != 1 {
			return fmt.Errorf("需要 1 个参数，但得到 %d。", len(args))
		}
		idx, ok := numberOf(args[0])
		if !ok {
			return typeMismatch(1, "索引", "数字", args[0])
		}
		i := normalizeIndex(int(idx), len(l.Items))
		if !l.ValidIndex(i) {
			return fmt.Errorf("列表索引超出范围。")
		}
		result = l.RemoveAt(i)
	case "长度":
		if len(args) != 0 {
			return fmt.Errorf("需要 0 个参数，但得到 %d。", len(args))
		}
		result = heap.Number(float64(len(l.Items)))
	case "过滤":
		if len(args) != 1 {
			return fmt.Errorf("需要 1 个参数，但得到 %d。", len(args))
		}
		closure, ok := closureOf(args[0])
		if !ok {
			return typeMismatch(1, "谓词", "关闭", args[0])
		}
		filtered := vm.h.NewList()
		for _, item := range l.Items {
			keep, cerr := vm.runClosure(closure, []heap.Value{item})
			if cerr != nil {
				return cerr
			}
			if !keep.IsFalsey() {
				filtered.Items = append(filtered.Items, item)
			}
		}
		result = filtered.Value()
	case "排序":
		if len(args) != 1 {
			return fmt.Errorf("需要 1 个参数，但得到 %d。", len(args))
		}
		closure, ok := closureOf(args[0])
		if !ok {
			return typeMismatch(1, "比较器", "关闭", args[0])
		}
		var sortErr error
		sort.SliceStable(l.Items, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			lessVal, cerr := vm.runClosure(closure, []heap.Value{l.Items[i], l.Items[j]})
			if cerr != nil {
				sortErr = cerr
				return false
			}
			return !lessVal.IsFalsey()
		})
		if sortErr != nil {
			return sortErr
		}
		result = l.Value()
	default:
		return fmt.Errorf("未定义的属性「%s」。", name.Str())
	}

	if err != nil {
		return err
	}
	vm.stackTop -= argCount + 1
	vm.push(result)
	return nil
}

func requireArity(args []heap.Value, n int, fn func() (heap.Value, error)) (heap.Value, error) {
	if len(args) != n {
		return heap.Nil, fmt.Errorf("需要 %d 个参数，但得到 %d。", n, len(args))
	}
	return fn()
}

func stringArg(args []heap.Value, idx int, role string, fn func(string) (heap.Value, error)) (heap.Value, error) {
	if len(args) != idx+1 {
		return heap.Nil, fmt.Errorf("需要 %d 个参数，但得到 %d。", idx+1, len(args))
	}
	s, ok := stringOf(args[idx])
	if !ok {
		return heap.Nil, typeMismatch(idx+1, role, "字符串", args[idx])
	}
	return fn(s)
}

func stringOf(v heap.Value) (string, bool) {
	if v.Kind == heap.KindObject && v.Obj.Kind == heap.ObjKindString {
		return v.Obj.String().Str(), true
	}
	return "", false
}

func numberOf(v heap.Value) (float64, bool) {
	if v.Kind == heap.KindNumber {
		return v.Number, true
	}
	return 0, false
}

func closureOf(v heap.Value) (*heap.ObjClosure, bool) {
	if v.Kind == heap.KindObject && v.Obj.Kind == heap.ObjKindClosure {
		return v.Obj.Closure(), true
	}
	return nil, false
}

func typeMismatch(n int, role, expected string, got heap.Value) error {
	return fmt.Errorf("参数 %d（%s）的类型必须是「%s」，而不是「%s」。", n, role, expected, got.TypeName())
}

func runeIndex(haystack, needle string) int {
	byteIdx := strings.Index(haystack, needle)
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(haystack[:byteIdx]))
}

// trimArg reads the optional cutset argument shared by 修剪/修剪始/修剪端:
// zero arguments means "trim whitespace", one argument gives an explicit
// set of characters to strip from either end.
func trimArg(args []heap.Value) (cutset string, has bool, err error) {
	switch len(args) {
	case 0:
		return "", false, nil
	case 1:
		s, ok := stringOf(args[0])
		if !ok {
			return "", false, typeMismatch(1, "字符集", "字符串", args[0])
		}
		return s, true, nil
	default:
		return "", false, fmt.Errorf("需要 0 或 1 个参数，但得到 %d。", len(args))
	}
}

// countOverlapping counts needle occurrences in haystack by advancing one
// rune after every match attempt rather than skipping past the match, so
// overlapping occurrences of a multi-character needle are all counted —
// matching the original runtime's scan exactly (see DESIGN.md).
func countOverlapping(haystack, needle string) int {
	hr := []rune(haystack)
	nr := []rune(needle)
	count := 0
	for i := 0; i+len(nr) <= len(hr); i++ {
		if string(hr[i:i+len(nr)]) == needle {
			count++
		}
	}
	return count
}
