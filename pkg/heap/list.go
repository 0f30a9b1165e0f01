package heap

// NewList allocates an empty list.
func (h *Heap) NewList() *ObjList {
	l := &ObjList{}
	h.register(l.header(), ObjKindList, l, 24)
	return l
}

// ValidIndex reports whether i addresses an existing element of l.
func (l *ObjList) ValidIndex(i int) bool {
	return i >= 0 && i < len(l.Items)
}

// Insert inserts v at index i, shifting later elements up by one. i must
// already have been normalized for negative indexing and may equal
// len(Items) to append.
func (l *ObjList) Insert(i int, v Value) {
	l.Items = append(l.Items, Nil)
	copy(l.Items[i+1:], l.Items[i:])
	l.Items[i] = v
}

// RemoveAt deletes the element at index i, shifting later elements down.
func (l *ObjList) RemoveAt(i int) Value {
	v := l.Items[i]
	copy(l.Items[i:], l.Items[i+1:])
	l.Items = l.Items[:len(l.Items)-1]
	return v
}
