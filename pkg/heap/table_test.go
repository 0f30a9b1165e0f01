package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableSetGetDelete(t *testing.T) {
	tbl := NewTable()
	k := &ObjString{Chars: []rune("甲"), Hash: hashRunes([]rune("甲"))}

	isNew := tbl.Set(k, Number(1))
	assert.True(t, isNew)

	v, ok := tbl.Get(k)
	assert.True(t, ok)
	assert.Equal(t, Number(1), v)

	isNew = tbl.Set(k, Number(2))
	assert.False(t, isNew)
	v, _ = tbl.Get(k)
	assert.Equal(t, Number(2), v)

	assert.True(t, tbl.Delete(k))
	_, ok = tbl.Get(k)
	assert.False(t, ok)
}

func TestTableGrowsAndSurvivesTombstones(t *testing.T) {
	tbl := NewTable()
	keys := make([]*ObjString, 0, 40)
	for i := 0; i < 40; i++ {
		runes := []rune{rune('a' + i)}
		keys = append(keys, &ObjString{Chars: runes, Hash: hashRunes(runes)})
	}
	for i, k := range keys {
		tbl.Set(k, Number(float64(i)))
	}
	for i := 0; i < len(keys); i += 2 {
		tbl.Delete(keys[i])
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		if i%2 == 0 {
			assert.False(t, ok)
		} else {
			assert.True(t, ok)
			assert.Equal(t, Number(float64(i)), v)
		}
	}
}

func TestFindStringInterningPrimitive(t *testing.T) {
	tbl := NewTable()
	text := []rune("你好")
	hash := hashRunes(text)
	assert.Nil(t, tbl.FindString(text, hash))

	s := &ObjString{Chars: text, Hash: hash}
	tbl.Set(s, Nil)

	found := tbl.FindString(text, hash)
	assert.Same(t, s, found)
}

func TestTableAddAllCopiesLiveEntries(t *testing.T) {
	src := NewTable()
	dst := NewTable()
	k1 := &ObjString{Chars: []rune("甲"), Hash: hashRunes([]rune("甲"))}
	k2 := &ObjString{Chars: []rune("乙"), Hash: hashRunes([]rune("乙"))}
	src.Set(k1, Number(1))
	src.Set(k2, Number(2))

	dst.AddAll(src)

	v1, ok1 := dst.Get(k1)
	v2, ok2 := dst.Get(k2)
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, Number(1), v1)
	assert.Equal(t, Number(2), v2)
}
