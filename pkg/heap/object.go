package heap

// ObjKind tags the concrete type of a heap Object.
type ObjKind byte

const (
	ObjKindString ObjKind = iota
	ObjKindList
	ObjKindFunction
	ObjKindClosure
	ObjKindUpvalue
	ObjKindClass
	ObjKindInstance
	ObjKindBoundMethod
	ObjKindNative
)

// Obj is the common header every heap object carries: a type tag, the GC
// mark bit, and the singly-linked "next allocated" pointer threading every
// live object for the sweep phase. Concrete object types embed Obj and are
// recovered from a Value's Obj field by a Kind-tagged switch.
type Obj struct {
	Kind    ObjKind
	Marked  bool
	Next    *Obj
	size    int
	payload interface{}
}

// String recovers the ObjString payload. Panics if Kind != ObjKindString;
// callers are expected to have checked the Value's Kind first.
func (o *Obj) String() *ObjString { return o.payload.(*ObjString) }

// List recovers the ObjList payload.
func (o *Obj) List() *ObjList { return o.payload.(*ObjList) }

// Function recovers the ObjFunction payload.
func (o *Obj) Function() *ObjFunction { return o.payload.(*ObjFunction) }

// Closure recovers the ObjClosure payload.
func (o *Obj) Closure() *ObjClosure { return o.payload.(*ObjClosure) }

// Upvalue recovers the ObjUpvalue payload.
func (o *Obj) Upvalue() *ObjUpvalue { return o.payload.(*ObjUpvalue) }

// Class recovers the ObjClass payload.
func (o *Obj) Class() *ObjClass { return o.payload.(*ObjClass) }

// Instance recovers the ObjInstance payload.
func (o *Obj) Instance() *ObjInstance { return o.payload.(*ObjInstance) }

// BoundMethod recovers the ObjBoundMethod payload.
func (o *Obj) BoundMethod() *ObjBoundMethod { return o.payload.(*ObjBoundMethod) }

// Native recovers the ObjNative payload.
func (o *Obj) Native() *ObjNative { return o.payload.(*ObjNative) }

// ObjString is wen's immutable, interned string: a buffer of Unicode code
// points (wide enough for CJK text) plus a precomputed hash. Constructing
// one through a Heap always checks the intern table first.
type ObjString struct {
	obj   Obj
	Chars []rune
	Hash  uint32
}

func (s *ObjString) header() *Obj { return &s.obj }

// Value boxes s into a heap.Value.
func (s *ObjString) Value() Value { return Value{Kind: KindObject, Obj: &s.obj} }

// Runes returns the string's contents as code points.
func (s *ObjString) Runes() []rune { return s.Chars }

// Str renders the string's contents as a Go string (UTF-8).
func (s *ObjString) Str() string { return string(s.Chars) }

// Len returns the code-point length.
func (s *ObjString) Len() int { return len(s.Chars) }

// ObjList is a growable ordered sequence of values.
type ObjList struct {
	obj   Obj
	Items []Value
}

func (l *ObjList) header() *Obj { return &l.obj }

// Value boxes l into a heap.Value.
func (l *ObjList) Value() Value { return Value{Kind: KindObject, Obj: &l.obj} }

// ObjFunction is a compiled function body: its Chunk, declared arity,
// captured-upvalue count, and an optional name (nil for the top-level
// script function).
type ObjFunction struct {
	obj          Obj
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	Name         *ObjString
}

func (f *ObjFunction) header() *Obj { return &f.obj }

// Value boxes f into a heap.Value.
func (f *ObjFunction) Value() Value { return Value{Kind: KindObject, Obj: &f.obj} }

// ObjUpvalue is either open — Location points into a live stack slot — or
// closed, owning Closed and pointing Location at it. Slot records the stack
// index Location currently addresses (meaningful only while open); the VM
// keeps its open upvalues in its own slices ordered by strictly descending
// Slot, so it can order and close them without raw pointer arithmetic. The
// Next field is not used by the VM.
type ObjUpvalue struct {
	obj      Obj
	Location *Value
	Closed   Value
	Next     *ObjUpvalue
	Slot     int
}

func (u *ObjUpvalue) header() *Obj { return &u.obj }

// Value boxes u into a heap.Value.
func (u *ObjUpvalue) Value() Value { return Value{Kind: KindObject, Obj: &u.obj} }

// Close promotes an open upvalue: the value it points at is copied into
// its own storage and Location is redirected there.
func (u *ObjUpvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// ObjClosure pairs a function with its captured upvalues.
type ObjClosure struct {
	obj      Obj
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) header() *Obj { return &c.obj }

// Value boxes c into a heap.Value.
func (c *ObjClosure) Value() Value { return Value{Kind: KindObject, Obj: &c.obj} }

// NativeFn is the calling convention for native methods and functions: it
// receives a copy of its arguments (the VM pops them off the stack after
// the call returns) and returns
// either a result value or an error. This collapses the original
// "(argc, argv) -> bool plus in-band error string" convention into a
// result/error pair without changing observable semantics, per the design
// notes on native calling conventions.
type NativeFn func(args []Value) (Value, error)

// ObjNative is a Go-level callable with a fixed arity (-1 for variadic).
type ObjNative struct {
	obj   Obj
	Name  string
	Arity int
	Fn    NativeFn
}

func (n *ObjNative) header() *Obj { return &n.obj }

// Value boxes n into a heap.Value.
func (n *ObjNative) Value() Value { return Value{Kind: KindObject, Obj: &n.obj} }

// ObjClass is a name plus a method table mapping selector strings to
// closures or natives.
type ObjClass struct {
	obj     Obj
	Name    *ObjString
	Methods *Table
}

func (c *ObjClass) header() *Obj { return &c.obj }

// Value boxes c into a heap.Value.
func (c *ObjClass) Value() Value { return Value{Kind: KindObject, Obj: &c.obj} }

// ObjInstance is a class pointer, a field table, and the Static flag that
// forbids field mutation once set — used for built-in singletons such as
// the core module's Math/Clock instances.
type ObjInstance struct {
	obj    Obj
	Class  *ObjClass
	Fields *Table
	Static bool
}

func (i *ObjInstance) header() *Obj { return &i.obj }

// Value boxes i into a heap.Value.
func (i *ObjInstance) Value() Value { return Value{Kind: KindObject, Obj: &i.obj} }

// ObjBoundMethod is a receiver bound together with either a closure or a
// native function, produced by property access on an instance.
type ObjBoundMethod struct {
	obj      Obj
	Receiver Value
	Closure  *ObjClosure
	Native   *ObjNative
}

func (b *ObjBoundMethod) header() *Obj { return &b.obj }

// Value boxes b into a heap.Value.
func (b *ObjBoundMethod) Value() Value { return Value{Kind: KindObject, Obj: &b.obj} }
