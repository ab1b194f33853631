package containers

// FreeList collects released slot indices for reuse by later allocations.
// Reuse order is LIFO: the most recently released index is handed out first.
type FreeList struct {
	indices []uint32
}

func NewFreeList() *FreeList {
	return &FreeList{}
}

// Push makes an index available for reuse.
func (fl *FreeList) Push(index uint32) {
	fl.indices = append(fl.indices, index)
}

// Pop returns a previously released index, or false if none are available.
func (fl *FreeList) Pop() (uint32, bool) {
	n := len(fl.indices)
	if n == 0 {
		return 0, false
	}
	index := fl.indices[n-1]
	fl.indices = fl.indices[:n-1]
	return index, true
}

func (fl *FreeList) Len() int {
	return len(fl.indices)
}
