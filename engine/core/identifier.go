package core

import (
	"fmt"
	"sync/atomic"
)

// RID is an opaque handle to a resource owned by some subsystem. The low 32
// bits index the owner's slot table, the high 32 bits hold a process-wide
// unique validator so handles from different owners never collide.
type RID uint64

// NilRID is the null handle.
const NilRID RID = 0

var ridValidator atomic.Uint32

func (r RID) IsValid() bool {
	return r != NilRID
}

func (r RID) IsNull() bool {
	return r == NilRID
}

func (r RID) index() uint32 {
	return uint32(r & 0xFFFFFFFF)
}

func (r RID) validator() uint32 {
	return uint32(r >> 32)
}

func (r RID) String() string {
	if r.IsNull() {
		return "RID(null)"
	}
	return fmt.Sprintf("RID(%d:%d)", r.validator(), r.index())
}

// NewRID returns a handle that no owner will ever hand out. Storage
// subsystems that do not need slot lookup use it to mint identifiers.
func NewRID() RID {
	return RID(uint64(nextValidator())<<32 | 0xFFFFFFFF)
}

func nextValidator() uint32 {
	for {
		v := ridValidator.Add(1)
		// 0 is reserved so the null RID never validates.
		if v != 0 {
			return v
		}
	}
}

type ridSlot[T any] struct {
	validator   uint32
	initialized bool
	data        *T
}

// RIDOwner hands out RIDs for values of type T and owns their storage.
// Free slots are reused. It is not safe for concurrent use.
type RIDOwner[T any] struct {
	slots []ridSlot[T]
	free  []uint32
	count int
}

func NewRIDOwner[T any]() *RIDOwner[T] {
	return &RIDOwner[T]{}
}

// Allocate reserves a handle. The value is created zeroed and is only
// reachable through GetOrNil after Initialize.
func (o *RIDOwner[T]) Allocate() RID {
	var idx uint32
	if n := len(o.free); n > 0 {
		// Existing free spot. Take it.
		idx = o.free[n-1]
		o.free = o.free[:n-1]
	} else {
		// No free slots, push a new one.
		o.slots = append(o.slots, ridSlot[T]{})
		idx = uint32(len(o.slots) - 1)
	}
	v := nextValidator()
	o.slots[idx] = ridSlot[T]{validator: v, data: new(T)}
	o.count++
	return RID(uint64(v)<<32 | uint64(idx))
}

// Initialize marks an allocated handle ready for use and returns its value.
func (o *RIDOwner[T]) Initialize(rid RID) *T {
	s := o.slot(rid)
	if s == nil {
		LogError("RIDOwner.Initialize: %s was not allocated by this owner", rid)
		return nil
	}
	s.initialized = true
	return s.data
}

func (o *RIDOwner[T]) slot(rid RID) *ridSlot[T] {
	if rid.IsNull() {
		return nil
	}
	idx := rid.index()
	if idx >= uint32(len(o.slots)) {
		return nil
	}
	s := &o.slots[idx]
	if s.validator != rid.validator() || s.data == nil {
		return nil
	}
	return s
}

// GetOrNil returns the value behind rid or nil when rid is not an
// initialized handle of this owner.
func (o *RIDOwner[T]) GetOrNil(rid RID) *T {
	s := o.slot(rid)
	if s == nil || !s.initialized {
		return nil
	}
	return s.data
}

func (o *RIDOwner[T]) Owns(rid RID) bool {
	s := o.slot(rid)
	return s != nil && s.initialized
}

// Free releases rid, making its slot available for reuse.
func (o *RIDOwner[T]) Free(rid RID) error {
	s := o.slot(rid)
	if s == nil {
		return fmt.Errorf("RIDOwner.Free: %s: %w", rid, ErrInvalidHandle)
	}
	// Just zero out the entry, making it available for use.
	*s = ridSlot[T]{}
	o.free = append(o.free, rid.index())
	o.count--
	return nil
}

func (o *RIDOwner[T]) Count() int {
	return o.count
}

// Owned returns every initialized handle, in slot order.
func (o *RIDOwner[T]) Owned() []RID {
	out := make([]RID, 0, o.count)
	for i := range o.slots {
		s := &o.slots[i]
		if s.data != nil && s.initialized {
			out = append(out, RID(uint64(s.validator)<<32|uint64(i)))
		}
	}
	return out
}
