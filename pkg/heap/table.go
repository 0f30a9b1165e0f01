package heap

// Table is an open-addressed, linear-probed hash table keyed by interned
// string identity (equivalent to textual equality, since strings are
// interned). It backs globals, class method tables, and instance field
// tables. Deleted entries are marked with a tombstone so probing can
// continue past them; tombstones count toward load factor and are
// reclaimed on the next grow.
//
// This is hand-written rather than Go's builtin map because the spec's
// interning primitive, findString, needs to probe by hash and compare
// length+hash+contents *before* a string object exists — something a
// map[string]Value cannot expose (see DESIGN.md).
type Table struct {
	count      int
	tombstones int
	entries    []entry
}

type entry struct {
	key   *ObjString // nil means empty or tombstone
	value Value
	taken bool // true for a live entry OR a tombstone
}

const tableMaxLoad = 0.75
const tableMinCapacity = 8

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Count is the number of live (non-tombstone) entries.
func (t *Table) Count() int { return t.count }

// Get looks up key, returning its value and whether it was present.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return Nil, false
	}
	e := t.find(key)
	if e.key == nil {
		return Nil, false
	}
	return e.value, true
}

// Set inserts or updates key -> value. Returns true if this created a new
// entry (the "newly inserted?" signal callers use to detect redefinition).
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+t.tombstones+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow()
	}
	e := t.find(key)
	isNew := e.key == nil
	if isNew {
		if e.taken {
			t.tombstones--
		}
		t.count++
	}
	e.key = key
	e.value = value
	e.taken = true
	return isNew
}

// Delete installs a tombstone at key's slot, if present.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.find(key)
	if e.key == nil {
		return false
	}
	e.key = nil
	// taken stays true: this slot is now a tombstone.
	t.count--
	t.tombstones++
	return true
}

// AddAll bulk-copies every live entry of other into t (used by INHERIT to
// copy a superclass's method table into a subclass).
func (t *Table) AddAll(other *Table) {
	for i := range other.entries {
		e := &other.entries[i]
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// FindString is the interning primitive: it probes by hash and then
// compares length, hash, and contents, returning the existing ObjString
// if this exact text is already interned.
func (t *Table) FindString(runes []rune, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := uint32(len(t.entries))
	index := hash % capacity
	for {
		e := &t.entries[index]
		if e.key == nil {
			if !e.taken {
				return nil
			}
		} else if e.key.Hash == hash && runesEqual(e.key.Chars, runes) {
			return e.key
		}
		index = (index + 1) % capacity
	}
}

// find locates the slot for key: the first matching live entry, or the
// first tombstone/empty slot encountered if key isn't present, so that
// Set can reuse tombstone slots.
func (t *Table) find(key *ObjString) *entry {
	capacity := uint32(len(t.entries))
	index := key.Hash % capacity
	var tombstone *entry
	for {
		e := &t.entries[index]
		if e.key == nil {
			if !e.taken {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		index = (index + 1) % capacity
	}
}

func (t *Table) grow() {
	newCap := tableMinCapacity
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	old := t.entries
	t.entries = make([]entry, newCap)
	t.count = 0
	t.tombstones = 0
	for i := range old {
		if old[i].key != nil {
			t.Set(old[i].key, old[i].value)
		}
	}
}

// removeWhite deletes every key whose string object is unmarked. Called
// between the mark and sweep phases of a collection so the intern table
// never outlives the strings it names (see §4.5 "weak interning").
func (t *Table) removeWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.obj.Marked {
			e.key = nil
			t.tombstones++
			t.count--
		}
	}
}

// markValues marks every live entry's key string and value (used for the
// globals table and for class method and instance field tables). The keys
// must be marked here: the intern table holds its own keys weakly, so a key
// left unmarked would be dropped from interning by removeWhite.
func (t *Table) markValues(mark func(Value)) {
	for i := range t.entries {
		if t.entries[i].key != nil {
			mark(t.entries[i].key.Value())
			mark(t.entries[i].value)
		}
	}
}

// MarkValues is markValues exported for roots outside this package (the
// VM's globals table is a GC root but the VM lives in another package).
func (t *Table) MarkValues(mark func(Value)) {
	t.markValues(mark)
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
