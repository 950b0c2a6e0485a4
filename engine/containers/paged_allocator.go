package containers

// Handle addresses a record inside a PagedAllocator. The zero Handle is
// never returned by Alloc.
type Handle uint32

const InvalidHandle Handle = 0

func (h Handle) IsValid() bool {
	return h != InvalidHandle
}

const DefaultPageSize = 4096

// PagedAllocator hands out fixed-size records from pages that are never
// moved, so pointers returned by Get stay valid until the record is freed.
// Freed records are recycled before new pages are added.
type PagedAllocator[T any] struct {
	pageSize int
	pages    [][]T
	used     []bool
	free     []Handle
	count    int
}

func NewPagedAllocator[T any](pageSize int) *PagedAllocator[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &PagedAllocator[T]{pageSize: pageSize}
}

// Alloc returns a zeroed record and its handle.
func (pa *PagedAllocator[T]) Alloc() (Handle, *T) {
	var h Handle
	if n := len(pa.free); n > 0 {
		h = pa.free[n-1]
		pa.free = pa.free[:n-1]
	} else {
		slot := len(pa.used)
		if slot == len(pa.pages)*pa.pageSize {
			pa.pages = append(pa.pages, make([]T, pa.pageSize))
		}
		pa.used = append(pa.used, false)
		h = Handle(slot + 1)
	}
	pa.used[h-1] = true
	pa.count++
	rec := pa.record(h)
	var zero T
	*rec = zero
	return h, rec
}

func (pa *PagedAllocator[T]) record(h Handle) *T {
	slot := int(h - 1)
	return &pa.pages[slot/pa.pageSize][slot%pa.pageSize]
}

// Get returns the live record behind h, or nil.
func (pa *PagedAllocator[T]) Get(h Handle) *T {
	if !h.IsValid() || int(h) > len(pa.used) || !pa.used[h-1] {
		return nil
	}
	return pa.record(h)
}

// Free releases h. Freeing an invalid or already free handle is a no-op
// that reports false.
func (pa *PagedAllocator[T]) Free(h Handle) bool {
	if pa.Get(h) == nil {
		return false
	}
	var zero T
	*pa.record(h) = zero
	pa.used[h-1] = false
	pa.free = append(pa.free, h)
	pa.count--
	return true
}

func (pa *PagedAllocator[T]) Count() int {
	return pa.count
}

func (pa *PagedAllocator[T]) PageCount() int {
	return len(pa.pages)
}
