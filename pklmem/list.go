package pklmem

import (
	"errors"
	"iter"
)

var ErrMarkInContainer = errors.New("mark sentinel cannot be stored in a container")

// Tuple is a fixed length sequence.
// Tuples are not modified after construction.
type Tuple []Value

func NewTuple(xs ...Value) Tuple {
	if xs == nil {
		return Tuple{}
	}
	return Tuple(xs)
}

func (Tuple) isValue()   {}
func (Tuple) Kind() Kind { return KindTuple }

func (t Tuple) Len() int {
	return len(t)
}

func (t Tuple) String() string {
	return render(t)
}

// List is a mutable sequence.
type List struct {
	items []Value
}

func NewList(xs ...Value) *List {
	return &List{items: append([]Value{}, xs...)}
}

func (*List) isValue()   {}
func (*List) Kind() Kind { return KindList }

func (l *List) Len() int {
	return len(l.items)
}

func (l *List) At(i int) Value {
	return l.items[i]
}

// Append adds xs to the end of the list.
// Nothing is appended if any of xs is a Mark.
func (l *List) Append(xs ...Value) error {
	for _, x := range xs {
		if IsMark(x) || x == nil {
			return ErrMarkInContainer
		}
	}
	l.items = append(l.items, xs...)
	return nil
}

// Items returns the elements of the list.
// The returned slice must not be modified.
func (l *List) Items() []Value {
	return l.items
}

func (l *List) All() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		for i, x := range l.items {
			if !yield(i, x) {
				return
			}
		}
	}
}

func (l *List) String() string {
	return render(l)
}
