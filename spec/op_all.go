package spec

import "slices"

// All returns every Op, ordered by wire byte.
func All() (ret []Op) {
	for p := Op(0); p < numOps; p++ {
		ret = append(ret, p)
	}
	slices.SortFunc(ret, func(a, b Op) int {
		return int(a.Byte()) - int(b.Byte())
	})
	return ret
}

// Count returns the number of opcodes defined by the format.
func Count() int {
	return numOps
}

// IsMarkConsumer returns true for the opcodes which pop down to a mark.
func (p Op) IsMarkConsumer() bool {
	switch p {
	case Appends, SetItems, Tuple, List, Dict, AddItems, FrozenSet, PopMark, Inst, Obj:
		return true
	}
	return false
}
