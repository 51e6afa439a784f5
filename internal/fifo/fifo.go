package fifo

// Circular Fifo used for buffering received items until they are processed.
// One slot is always kept free to tell "full" apart from "empty",
// so a fifo created with size n holds at most n-1 items.
// Fifo is not safe for concurrent use.
type Fifo[T any] struct {
	buffer   []T
	writePos int
	readPos  int
}

func NewFifo[T any](size uint16) *Fifo[T] {
	if size < 2 {
		size = 2
	}
	return &Fifo[T]{
		buffer:   make([]T, size),
		writePos: 0,
		readPos:  0,
	}
}

func (f *Fifo[T]) GetSpace() int {
	sizeLeft := f.readPos - f.writePos - 1
	if sizeLeft < 0 {
		sizeLeft += len(f.buffer)
	}
	return sizeLeft
}

func (f *Fifo[T]) GetOccupied() int {
	sizeOccupied := f.writePos - f.readPos
	if sizeOccupied < 0 {
		sizeOccupied += len(f.buffer)
	}
	return sizeOccupied
}

// Push an item, returns false if the fifo is full
func (f *Fifo[T]) Push(item T) bool {
	writePosNext := f.writePos + 1
	if writePosNext == len(f.buffer) {
		writePosNext = 0
	}
	if writePosNext == f.readPos {
		return false
	}
	f.buffer[f.writePos] = item
	f.writePos = writePosNext
	return true
}

// Pop the oldest item, returns false if the fifo is empty
func (f *Fifo[T]) Pop() (T, bool) {
	var item T
	if f.readPos == f.writePos {
		return item, false
	}
	item = f.buffer[f.readPos]
	f.readPos++
	if f.readPos == len(f.buffer) {
		f.readPos = 0
	}
	return item, true
}
