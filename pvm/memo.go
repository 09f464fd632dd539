package pvm

import (
	"fmt"

	"ricklepick.dev/ricklepick/pklmem"
)

// memo is the side table written by the PUT family and read by the GET family.
// Entries alias the values on the stack, so a value which is memoized and later
// fetched is the same value, not a copy.
//
// Streams normally put indexes in order, and those are kept in dense.
// Indexes past the end of dense are kept in sparse until the gap before them is filled,
// so a stream cannot make the table allocate more than one slot per put.
type memo struct {
	dense  []pklmem.Value
	sparse map[uint64]pklmem.Value
	max    int
}

// put stores x at index i, replacing any previous entry.
func (m *memo) put(i uint64, x pklmem.Value) error {
	if i >= uint64(m.max) {
		return fmt.Errorf("%w: put %d, limit is %d", ErrMemoIndexOutOfRange, i, m.max)
	}
	switch {
	case i < uint64(len(m.dense)):
		m.dense[i] = x
	case i == uint64(len(m.dense)):
		m.dense = append(m.dense, x)
		for {
			next, ok := m.sparse[uint64(len(m.dense))]
			if !ok {
				break
			}
			delete(m.sparse, uint64(len(m.dense)))
			m.dense = append(m.dense, next)
		}
	default:
		if m.sparse == nil {
			m.sparse = make(map[uint64]pklmem.Value)
		}
		m.sparse[i] = x
	}
	return nil
}

func (m *memo) get(i uint64) (pklmem.Value, error) {
	if i < uint64(len(m.dense)) {
		return m.dense[i], nil
	}
	if x, ok := m.sparse[i]; ok {
		return x, nil
	}
	return nil, fmt.Errorf("%w: get %d, memo has %d entries", ErrMemoIndexOutOfRange, i, m.len())
}

// memoize stores x at the index equal to the number of entries
func (m *memo) memoize(x pklmem.Value) error {
	return m.put(uint64(m.len()), x)
}

func (m *memo) len() int {
	return len(m.dense) + len(m.sparse)
}
