package vm

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenlang/wen/pkg/corelib"
	"github.com/wenlang/wen/pkg/heap"
)

func newMachine(t *testing.T) *VM {
	t.Helper()
	h := heap.New(nil)
	machine := New(h, nil)
	corelib.Register(machine)
	return machine
}

// captureOutput redirects os.Stdout for the duration of fn, since 打印/打印行
// write straight to the process's stdout the way the original runtime's
// print natives do.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestInterpretClosureCounter(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`
函数 造计数器() {
    变量 数 = 0;
    函数 计数() {
        数 = 数 + 1;
        返回 数;
    }
    返回 计数;
}
变量 甲 = 造计数器();
打印行(甲());
打印行(甲());
打印行(甲());
`)
		require.NoError(t, err)
	})
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestInterpretFibonacci25(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`
函数 斐波那契(乙) {
    如果 (乙 < 2) { 返回 乙; }
    返回 斐波那契(乙 - 1) + 斐波那契(乙 - 2);
}
打印行(斐波那契(25));
`)
		require.NoError(t, err)
	})
	assert.Equal(t, "75025\n", out)
}

func TestInterpretClassInitSuper(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`
类 甲 {
    初始化() {
        打印("A");
    }
}
类 乙 继承 甲 {
    初始化() {
        超.初始化();
        打印("B");
    }
}
乙();
打印行("");
`)
		require.NoError(t, err)
	})
	assert.Equal(t, "AB\n", out)
}

func TestInterpretListFilterCallback(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`
变量 甲 = [1, 2, 3, 4, 5, 6];
变量 乙 = 甲.过滤(函数(丙) { 返回 丙 % 2 == 0; });
打印行(乙.长度());
打印行(乙[0]);
打印行(乙[1]);
打印行(乙[2]);
`)
		require.NoError(t, err)
	})
	assert.Equal(t, "3\n2\n4\n6\n", out)
}

func TestInterpretStringReplace(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`打印行("banana".替换("na", "XY"));`)
		require.NoError(t, err)
	})
	assert.Equal(t, "baXYXY\n", out)
}

func TestInterpretNegativeIndexing(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`
变量 甲 = [1, 2, 3];
甲[-1] = 9;
打印行(甲[-1]);
打印行(甲[-3]);
打印行("你好吗"[-1]);
`)
		require.NoError(t, err)
	})
	assert.Equal(t, "9\n1\n吗\n", out)
}

func TestInterpretListInsertRemoveNegativeIndex(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`
变量 甲 = [1, 2, 3];
甲.插(-1, 9);
打印行(甲.长度());
打印行(甲[-2]);
打印行(甲.删(-1));
`)
		require.NoError(t, err)
	})
	assert.Equal(t, "4\n9\n3\n", out)
}

func TestInterpretSubstringNegativeIndex(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`打印行("你好吗".子串(-2, -1));`)
		require.NoError(t, err)
	})
	assert.Equal(t, "好\n", out)
}

func TestInterpretSplitTreatsSeparatorAsCharacterClass(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`
变量 甲 = "一,二;三".拆分(",;");
打印行(甲.长度());
打印行(甲[0]);
打印行(甲[1]);
打印行(甲[2]);
`)
		require.NoError(t, err)
	})
	assert.Equal(t, "3\n一\n二\n三\n", out)
}

func TestInterpretTrimWithCutset(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`打印行("xx你好xx".修剪("x"));`)
		require.NoError(t, err)
	})
	assert.Equal(t, "你好\n", out)
}

func TestInterpretCountOverlappingOccurrences(t *testing.T) {
	machine := newMachine(t)
	out := captureOutput(t, func() {
		_, err := machine.Interpret(`打印行("aaaa".计数("aa"));`)
		require.NoError(t, err)
	})
	assert.Equal(t, "3\n", out)
}

func TestInterpretGCStressTransientLists(t *testing.T) {
	machine := newMachine(t)
	_, err := machine.Interpret(`
变量 计数 = 0;
为 (变量 甲 = 0; 甲 < 10000; 甲 = 甲 + 1) {
    变量 乙 = [甲, 甲, 甲];
    计数 = 计数 + 乙.长度();
}
打印行(计数 > 0);
`)
	require.NoError(t, err)
}

func TestInterpretUndefinedVariableProducesRuntimeError(t *testing.T) {
	machine := newMachine(t)
	_, err := machine.Interpret(`未定义变量;`)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "未定义的变量")
}

func TestInterpretStackOverflowOnInfiniteRecursion(t *testing.T) {
	machine := newMachine(t)
	_, err := machine.Interpret(`
函数 甲() { 返回 甲(); }
甲();
`)
	require.Error(t, err)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "堆栈溢出")
}
