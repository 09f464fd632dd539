package pklmem

import (
	"iter"

	"ricklepick.dev/ricklepick"
)

// Dict maps Values to Values.
// Keys are identified by their Fingerprint, so structurally equal keys are the same key.
// Iteration follows insertion order, which is not significant for equality.
type Dict struct {
	keys  []Value
	vals  []Value
	index map[ricklepick.Fingerprint]int
}

func NewDict() *Dict {
	return &Dict{index: make(map[ricklepick.Fingerprint]int)}
}

func (*Dict) isValue()   {}
func (*Dict) Kind() Kind { return KindDict }

func (d *Dict) Len() int {
	return len(d.keys)
}

// Set maps k to v, replacing any previous value for k.
func (d *Dict) Set(k, v Value) error {
	if k == nil || v == nil || IsMark(k) || IsMark(v) {
		return ErrMarkInContainer
	}
	if d.index == nil {
		d.index = make(map[ricklepick.Fingerprint]int)
	}
	fp := Fingerprint(k)
	if i, exists := d.index[fp]; exists {
		d.vals[i] = v
		return nil
	}
	d.index[fp] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil
}

func (d *Dict) Get(k Value) (Value, bool) {
	if k == nil {
		return nil, false
	}
	i, exists := d.index[Fingerprint(k)]
	if !exists {
		return nil, false
	}
	return d.vals[i], true
}

// GetString is a convenience for Get(String(k))
func (d *Dict) GetString(k string) (Value, bool) {
	return d.Get(String(k))
}

// Update copies every entry of other into d
func (d *Dict) Update(other *Dict) error {
	for k, v := range other.All() {
		if err := d.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// All iterates over the entries in insertion order.
func (d *Dict) All() iter.Seq2[Value, Value] {
	return func(yield func(Value, Value) bool) {
		for i := range d.keys {
			if !yield(d.keys[i], d.vals[i]) {
				return
			}
		}
	}
}

func (d *Dict) Keys() []Value {
	return append([]Value{}, d.keys...)
}

func (d *Dict) String() string {
	return render(d)
}

// Set is an unordered collection of distinct Values.
type Set struct {
	frozen bool
	items  []Value
	index  map[ricklepick.Fingerprint]struct{}
}

func NewSet(xs ...Value) *Set {
	s := &Set{index: make(map[ricklepick.Fingerprint]struct{})}
	for _, x := range xs {
		if err := s.Add(x); err != nil {
			panic(err)
		}
	}
	return s
}

// NewFrozenSet returns a Set which refuses further additions.
func NewFrozenSet(xs ...Value) *Set {
	s := NewSet(xs...)
	s.frozen = true
	return s
}

func (*Set) isValue()   {}
func (*Set) Kind() Kind { return KindSet }

func (s *Set) Frozen() bool {
	return s.frozen
}

func (s *Set) Len() int {
	return len(s.items)
}

func (s *Set) Add(x Value) error {
	if x == nil || IsMark(x) {
		return ErrMarkInContainer
	}
	if s.frozen {
		return ErrFrozen
	}
	if s.index == nil {
		s.index = make(map[ricklepick.Fingerprint]struct{})
	}
	fp := Fingerprint(x)
	if _, exists := s.index[fp]; exists {
		return nil
	}
	s.index[fp] = struct{}{}
	s.items = append(s.items, x)
	return nil
}

func (s *Set) Has(x Value) bool {
	_, exists := s.index[Fingerprint(x)]
	return exists
}

func (s *Set) All() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for _, x := range s.items {
			if !yield(x) {
				return
			}
		}
	}
}

func (s *Set) String() string {
	return render(s)
}

// Freeze prevents further additions to s
func (s *Set) Freeze() {
	s.frozen = true
}
