package renderer

// heapEntry tracks when a cached rendering was last used
type heapEntry struct {
	key        string
	lastAccess uint64
	index      int
}

// cacheHeap is a min-heap on access order; the root is the least recently used entry
type cacheHeap []*heapEntry

func (h cacheHeap) Len() int { return len(h) }

func (h cacheHeap) Less(i, j int) bool {
	return h[i].lastAccess < h[j].lastAccess
}

func (h cacheHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *cacheHeap) Push(x interface{}) {
	entry := x.(*heapEntry)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *cacheHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*h = old[:n-1]
	return entry
}
