package heap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoot lets a test control exactly what survives a collection.
type fakeRoot struct {
	values []Value
}

func (r *fakeRoot) MarkRoots(mark func(Value)) {
	for _, v := range r.values {
		mark(v)
	}
}

func TestInternStringDeduplicates(t *testing.T) {
	h := New(nil)
	a := h.InternString("你好")
	b := h.InternString("你好")
	assert.Same(t, a, b)
}

func TestCollectSweepsUnreachableStrings(t *testing.T) {
	h := New(nil)
	root := &fakeRoot{}
	h.AddRoot(root)

	kept := h.InternString("保留")
	root.values = []Value{kept.Value()}

	h.InternString("丢弃")

	before := h.BytesAllocated()
	h.Collect()
	after := h.BytesAllocated()

	require.Less(t, after, before)

	found := h.strings.FindString([]rune("丢弃"), hashRunes([]rune("丢弃")))
	assert.Nil(t, found)

	stillThere := h.strings.FindString([]rune("保留"), hashRunes([]rune("保留")))
	assert.NotNil(t, stillThere)
}

func TestCollectTracesListElements(t *testing.T) {
	h := New(nil)
	root := &fakeRoot{}
	h.AddRoot(root)

	list := h.NewList()
	inner := h.InternString("元素")
	list.Items = append(list.Items, inner.Value())
	root.values = []Value{list.Value()}

	h.Collect()

	found := h.strings.FindString([]rune("元素"), hashRunes([]rune("元素")))
	assert.NotNil(t, found, "list elements must keep their strings alive")
}

func TestCollectReclaimsTransientStrings(t *testing.T) {
	h := New(nil)
	root := &fakeRoot{} // never points at any of the loop's strings
	h.AddRoot(root)

	for i := 0; i < 10000; i++ {
		h.InternString(fmt.Sprintf("临时-%d", i))
	}
	h.Collect()

	assert.Less(t, h.BytesAllocated(), initialNextGC*4,
		"10,000 unrooted transient strings should be reclaimed, not accumulate")
}
