package containers

// BinSortedArray keeps elements grouped by a bin number with the highest
// bin at the front of the array. Moving an element between bins only swaps
// it across the boundaries in between, so the cost is O(bins) rather than
// O(n). OnMove is called with the new index of every element that changes
// position, letting owners cache their index.
type BinSortedArray[T any] struct {
	array  []T
	counts []int // counts[b] is the number of elements in bin b
	OnMove func(element *T, index int)
}

func NewBinSortedArray[T any](onMove func(element *T, index int)) *BinSortedArray[T] {
	return &BinSortedArray[T]{OnMove: onMove}
}

func (ba *BinSortedArray[T]) Len() int {
	return len(ba.array)
}

func (ba *BinSortedArray[T]) Get(i int) *T {
	return &ba.array[i]
}

// BinCount is the number of bins, including empty bins below the highest
// populated one.
func (ba *BinSortedArray[T]) BinCount() int {
	return len(ba.counts)
}

// BinRange returns the half-open index range [from, to) occupied by bin.
func (ba *BinSortedArray[T]) BinRange(bin int) (from, to int) {
	if bin < 0 || bin >= len(ba.counts) {
		return 0, 0
	}
	from = ba.binStart(bin)
	return from, from + ba.counts[bin]
}

func (ba *BinSortedArray[T]) binStart(bin int) int {
	start := 0
	for b := len(ba.counts) - 1; b > bin; b-- {
		start += ba.counts[b]
	}
	return start
}

// BinOf returns the bin that holds index i, or -1 when out of range.
func (ba *BinSortedArray[T]) BinOf(i int) int {
	if i < 0 || i >= len(ba.array) {
		return -1
	}
	end := 0
	for b := len(ba.counts) - 1; b >= 0; b-- {
		end += ba.counts[b]
		if i < end {
			return b
		}
	}
	return -1
}

func (ba *BinSortedArray[T]) swap(a, b int) {
	if a == b {
		return
	}
	ba.array[a], ba.array[b] = ba.array[b], ba.array[a]
	ba.notify(a)
	ba.notify(b)
}

func (ba *BinSortedArray[T]) notify(i int) {
	if ba.OnMove != nil {
		ba.OnMove(&ba.array[i], i)
	}
}

// Insert appends element into bin and returns its index.
func (ba *BinSortedArray[T]) Insert(element T, bin int) int {
	if len(ba.counts) == 0 {
		ba.counts = append(ba.counts, 0)
	}
	ba.array = append(ba.array, element)
	ba.counts[0]++
	idx := len(ba.array) - 1
	ba.notify(idx)
	if bin > 0 {
		idx = ba.Move(idx, bin)
	}
	return idx
}

// Move relocates the element at idx into bin and returns its new index.
func (ba *BinSortedArray[T]) Move(idx int, bin int) int {
	current := ba.BinOf(idx)
	if current < 0 || bin < 0 {
		return -1
	}
	for current < bin {
		// Swap with the first element of the current bin, which then
		// becomes the last slot of the bin above.
		first := ba.binStart(current)
		ba.swap(idx, first)
		idx = first
		ba.counts[current]--
		if current+1 == len(ba.counts) {
			ba.counts = append(ba.counts, 0)
		}
		ba.counts[current+1]++
		current++
	}
	for current > bin {
		// Swap with the last element of the current bin, which then
		// becomes the first slot of the bin below.
		last := ba.binStart(current) + ba.counts[current] - 1
		ba.swap(idx, last)
		idx = last
		ba.counts[current]--
		ba.counts[current-1]++
		current--
	}
	ba.trim()
	return idx
}

// RemoveAt deletes the element at idx. The last element of the array may
// be moved into the freed slot's bin region, reported through OnMove.
func (ba *BinSortedArray[T]) RemoveAt(idx int) {
	if idx < 0 || idx >= len(ba.array) {
		return
	}
	idx = ba.Move(idx, 0)
	last := len(ba.array) - 1
	ba.swap(idx, last)
	var zero T
	ba.array[last] = zero
	ba.array = ba.array[:last]
	ba.counts[0]--
	ba.trim()
}

func (ba *BinSortedArray[T]) trim() {
	for len(ba.counts) > 1 && ba.counts[len(ba.counts)-1] == 0 {
		ba.counts = ba.counts[:len(ba.counts)-1]
	}
	if len(ba.counts) == 1 && ba.counts[0] == 0 {
		ba.counts = ba.counts[:0]
	}
}
