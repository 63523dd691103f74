// Package worklist provides the FIFO worklist of instruction indices that
// drives fixed-point iteration. An index is queued at most once at a time.
package worklist

import (
	"errors"

	"golang.org/x/tools/container/intsets"
)

type Worklist struct {
	elements []int
	pending  intsets.Sparse
}

// Push queues i unless it is already pending. It reports whether i was added.
func (w *Worklist) Push(i int) bool {
	if !w.pending.Insert(i) {
		return false
	}
	w.elements = append(w.elements, i)
	return true
}

func (w *Worklist) Empty() bool {
	return len(w.elements) == 0
}

func (w *Worklist) Len() int {
	return len(w.elements)
}

var ErrEmpty = errors.New("Worklist is empty")

func (w *Worklist) Pop() int {
	if w.Empty() {
		panic(ErrEmpty)
	}

	i := w.elements[0]
	w.elements = w.elements[1:]
	w.pending.Remove(i)
	return i
}
