package pklmem

import (
	"math"
	"math/big"
)

// The As* functions attempt a narrowing view of a Value.
// They return false, never an error, when x is not of the expected shape.

func AsBool(x Value) (bool, bool) {
	b, ok := x.(Bool)
	return bool(b), ok
}

func AsString(x Value) (string, bool) {
	s, ok := x.(String)
	return string(s), ok
}

func AsInt(x Value) (int32, bool) {
	i, ok := x.(Int)
	return int32(i), ok
}

func AsUInt(x Value) (uint32, bool) {
	i, ok := x.(UInt)
	return uint32(i), ok
}

// AsLong returns any integer case as an int64, if it fits.
func AsLong(x Value) (int64, bool) {
	switch x := x.(type) {
	case Int:
		return int64(x), true
	case UInt:
		return int64(x), true
	case ULong:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case Long:
		return x.Int64()
	}
	return 0, false
}

// AsULong returns any non-negative integer case as a uint64, if it fits.
func AsULong(x Value) (uint64, bool) {
	switch x := x.(type) {
	case ULong:
		return uint64(x), true
	case UInt:
		return uint64(x), true
	case Int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case Long:
		bi := x.Big()
		if bi.Sign() < 0 || !bi.IsUint64() {
			return 0, false
		}
		return bi.Uint64(), true
	}
	return 0, false
}

// AsBigInt returns any integer case as a big.Int
func AsBigInt(x Value) (*big.Int, bool) {
	switch x := x.(type) {
	case Int:
		return big.NewInt(int64(x)), true
	case UInt:
		return big.NewInt(int64(x)), true
	case ULong:
		return new(big.Int).SetUint64(uint64(x)), true
	case Long:
		return x.Big(), true
	}
	return nil, false
}

func AsFloat(x Value) (float64, bool) {
	f, ok := x.(Float)
	return float64(f), ok
}

func AsBytes(x Value) ([]byte, bool) {
	b, ok := x.(Bytes)
	return []byte(b), ok
}

func AsTuple(x Value) (Tuple, bool) {
	t, ok := x.(Tuple)
	return t, ok
}

func AsList(x Value) (*List, bool) {
	l, ok := x.(*List)
	return l, ok
}

func AsDict(x Value) (*Dict, bool) {
	d, ok := x.(*Dict)
	return d, ok
}

func AsSet(x Value) (*Set, bool) {
	s, ok := x.(*Set)
	return s, ok
}

func AsObject(x Value) (*Object, bool) {
	o, ok := x.(*Object)
	return o, ok
}

func AsCallable(x Value) (*Callable, bool) {
	c, ok := x.(*Callable)
	return c, ok
}

// AsInstance returns the Instance behind an Object or a Callable
func AsInstance(x Value) (*Instance, bool) {
	switch x := x.(type) {
	case *Object:
		return x.Inst, true
	case *Callable:
		return x.Inst, true
	}
	return nil, false
}

func AsPersistentID(x Value) (*PersistentID, bool) {
	p, ok := x.(*PersistentID)
	return p, ok
}

// Seq returns the elements of a Tuple or List
func Seq(x Value) ([]Value, bool) {
	switch x := x.(type) {
	case Tuple:
		return x, true
	case *List:
		return x.items, true
	}
	return nil, false
}
