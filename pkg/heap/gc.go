package heap

// Root is implemented by anything the collector must trace roots
// through: the VM (value stack, call frames, open upvalues, globals) and,
// if a collection fires mid-compile, the compiler's in-progress function
// chain (§4.5).
type Root interface {
	MarkRoots(mark func(Value))
}

// Logger receives GC lifecycle notifications. Supplying nil disables
// logging entirely.
type Logger interface {
	GCCycle(before, after, next int)
}

const growthFactor = 2
const initialNextGC = 1024 * 1024

// Heap owns every heap object: the allocation list, the string intern
// table, the allocation-triggered collection heuristic, and the gray
// worklist used while marking. There is exactly one Heap per VM; the
// concurrency model (§5) guarantees it is only ever touched by the
// owning goroutine.
type Heap struct {
	objects        *Obj
	strings        *Table
	bytesAllocated int
	nextGC         int
	gray           []*Obj
	initString     *ObjString
	roots          []Root
	logger         Logger
	markValue      bool // set by SetMarkValue; Collect does not read it
}

// New creates an empty heap. initString is the interned sentinel method
// name ("初始化") used to detect user-defined constructors.
func New(logger Logger) *Heap {
	h := &Heap{
		strings: NewTable(),
		nextGC:  initialNextGC,
		logger:  logger,
	}
	h.initString = h.InternString("初始化")
	return h
}

// InitString returns the interned constructor-selector sentinel.
func (h *Heap) InitString() *ObjString { return h.initString }

// AddRoot registers a Root to be traced on every future collection.
func (h *Heap) AddRoot(r Root) { h.roots = append(h.roots, r) }

// RemoveRoot unregisters a Root (used when a transient root, such as a
// compiler mid-compile, goes out of scope).
func (h *Heap) RemoveRoot(r Root) {
	for i, root := range h.roots {
		if root == r {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// SetMarkValue records the markValue flag. Collect does not consult the
// flag, so setting it protects no value from collection; a value survives
// only if it is reachable from a registered Root.
func (h *Heap) SetMarkValue(v bool) { h.markValue = v }

func (h *Heap) register(o *Obj, kind ObjKind, payload interface{}, size int) {
	o.Kind = kind
	o.payload = payload
	o.size = size
	o.Next = h.objects
	h.objects = o
	h.bytesAllocated += size
	if h.bytesAllocated > h.nextGC {
		h.Collect()
	}
}

// NewFunction allocates an empty function object; callers fill in Arity,
// Name, and Chunk afterward.
func (h *Heap) NewFunction() *ObjFunction {
	f := &ObjFunction{Chunk: NewChunk()}
	h.register(f.header(), ObjKindFunction, f, 64)
	return f
}

// NewUpvalue allocates an open upvalue pointing at the stack slot index
// slot, whose address is location.
func (h *Heap) NewUpvalue(location *Value, slot int) *ObjUpvalue {
	u := &ObjUpvalue{Location: location, Slot: slot}
	h.register(u.header(), ObjKindUpvalue, u, 32)
	return u
}

// NewClosure allocates a closure over function with room for its upvalues.
func (h *Heap) NewClosure(function *ObjFunction) *ObjClosure {
	c := &ObjClosure{Function: function, Upvalues: make([]*ObjUpvalue, function.UpvalueCount)}
	h.register(c.header(), ObjKindClosure, c, 32+8*function.UpvalueCount)
	return c
}

// NewClass allocates a class with an empty method table.
func (h *Heap) NewClass(name *ObjString) *ObjClass {
	c := &ObjClass{Name: name, Methods: NewTable()}
	h.register(c.header(), ObjKindClass, c, 48)
	return c
}

// NewInstance allocates an instance of class with an empty field table.
func (h *Heap) NewInstance(class *ObjClass) *ObjInstance {
	i := &ObjInstance{Class: class, Fields: NewTable()}
	h.register(i.header(), ObjKindInstance, i, 48)
	return i
}

// NewBoundMethod allocates a bound method pairing receiver with a closure.
func (h *Heap) NewBoundMethod(receiver Value, closure *ObjClosure) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Closure: closure}
	h.register(b.header(), ObjKindBoundMethod, b, 40)
	return b
}

// NewBoundNative allocates a bound method pairing receiver with a native.
func (h *Heap) NewBoundNative(receiver Value, native *ObjNative) *ObjBoundMethod {
	b := &ObjBoundMethod{Receiver: receiver, Native: native}
	h.register(b.header(), ObjKindBoundMethod, b, 40)
	return b
}

// NewNative allocates a native callable.
func (h *Heap) NewNative(name string, arity int, fn NativeFn) *ObjNative {
	n := &ObjNative{Name: name, Arity: arity, Fn: fn}
	h.register(n.header(), ObjKindNative, n, 40)
	return n
}

// The list allocator, NewList, lives in list.go next to ObjList's
// element-manipulation helpers.

// BytesAllocated reports the heap's current live-byte estimate, primarily
// for the GC-stress testable property in §8.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// Collect runs one full mark-and-sweep cycle: mark every object reachable
// from the registered roots, drop intern-table entries whose key string
// did not survive marking, then free every unmarked object.
func (h *Heap) Collect() {
	before := h.bytesAllocated

	for _, root := range h.roots {
		root.MarkRoots(h.MarkValue)
	}
	h.MarkObject(&h.initString.obj)

	for len(h.gray) > 0 {
		o := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(o)
	}

	h.strings.removeWhite()

	h.sweep()

	h.nextGC = h.bytesAllocated * growthFactor
	if h.nextGC < initialNextGC {
		h.nextGC = initialNextGC
	}

	if h.logger != nil {
		h.logger.GCCycle(before, h.bytesAllocated, h.nextGC)
	}
}

// MarkValue marks v's heap object, if it has one. Exported so native code
// can protect working values per the markValue escape hatch.
func (h *Heap) MarkValue(v Value) {
	if v.Kind == KindObject && v.Obj != nil {
		h.MarkObject(v.Obj)
	}
}

// MarkObject colors o gray and enqueues it on the worklist. It is a no-op
// if o is nil or already marked, which both terminates cycles and avoids
// double-enqueueing.
func (h *Heap) MarkObject(o *Obj) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true
	h.gray = append(h.gray, o)
}

// blacken traces an object's immediate children onto the gray worklist.
// The worklist is explicit (not recursive) so marking depth is bounded by
// heap size rather than Go call-stack depth.
func (h *Heap) blacken(o *Obj) {
	switch o.Kind {
	case ObjKindString, ObjKindNative:
		// No outgoing references.
	case ObjKindList:
		l := o.payload.(*ObjList)
		for _, v := range l.Items {
			h.MarkValue(v)
		}
	case ObjKindFunction:
		f := o.payload.(*ObjFunction)
		if f.Name != nil {
			h.MarkObject(&f.Name.obj)
		}
		for _, c := range f.Chunk.Constants {
			h.MarkValue(c)
		}
	case ObjKindClosure:
		c := o.payload.(*ObjClosure)
		h.MarkObject(&c.Function.obj)
		for _, uv := range c.Upvalues {
			if uv != nil {
				h.MarkObject(&uv.obj)
			}
		}
	case ObjKindUpvalue:
		u := o.payload.(*ObjUpvalue)
		h.MarkValue(*u.Location)
	case ObjKindClass:
		c := o.payload.(*ObjClass)
		h.MarkObject(&c.Name.obj)
		c.Methods.markValues(h.MarkValue)
	case ObjKindInstance:
		i := o.payload.(*ObjInstance)
		h.MarkObject(&i.Class.obj)
		i.Fields.markValues(h.MarkValue)
	case ObjKindBoundMethod:
		b := o.payload.(*ObjBoundMethod)
		h.MarkValue(b.Receiver)
		if b.Closure != nil {
			h.MarkObject(&b.Closure.obj)
		}
		if b.Native != nil {
			h.MarkObject(&b.Native.obj)
		}
	}
}

// sweep walks the allocation list, freeing every object that was not
// marked during this cycle and clearing the mark bit on every survivor so
// the next cycle starts white.
func (h *Heap) sweep() {
	var prev *Obj
	obj := h.objects
	for obj != nil {
		if obj.Marked {
			obj.Marked = false
			prev = obj
			obj = obj.Next
			continue
		}
		unreached := obj
		obj = obj.Next
		if prev != nil {
			prev.Next = obj
		} else {
			h.objects = obj
		}
		h.bytesAllocated -= unreached.size
	}
}
