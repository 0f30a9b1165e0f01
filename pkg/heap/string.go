package heap

// hashRunes computes the FNV-1a hash of a code-point buffer, used both for
// the precomputed hash stored on every ObjString and for probing the
// intern table before any string object is allocated.
func hashRunes(runes []rune) uint32 {
	var hash uint32 = 2166136261
	for _, r := range runes {
		hash ^= uint32(r)
		hash *= 16777619
	}
	return hash
}

// InternString returns the interned ObjString for s, allocating a new one
// only if this exact text has never been seen before.
func (h *Heap) InternString(s string) *ObjString {
	return h.InternRunes([]rune(s))
}

// InternRunes is the core interning primitive described in §4.3/§4.5:
// construct a string by first checking the intern table (FindString) and
// returning the existing entry if present, otherwise allocating a new
// ObjString and registering it.
func (h *Heap) InternRunes(runes []rune) *ObjString {
	hash := hashRunes(runes)
	if existing := h.strings.FindString(runes, hash); existing != nil {
		return existing
	}
	owned := make([]rune, len(runes))
	copy(owned, runes)
	s := &ObjString{Chars: owned, Hash: hash}
	h.register(s.header(), ObjKindString, s, len(owned)*4+24)
	// Set may grow the intern table, but that growth is an ordinary Go
	// slice allocation that does not go through register, so it cannot
	// trigger a collection between registering s and recording it here.
	h.strings.Set(s, Nil)
	return s
}
