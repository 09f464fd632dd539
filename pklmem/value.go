// package pklmem contains the in-memory representation of decoded pickle values.
package pklmem

import (
	"bytes"
	"cmp"
	"math"
	"slices"
)

// Kind identifies the case of a Value
type Kind uint8

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindUInt
	KindLong
	KindULong
	KindFloat
	KindString
	KindBytes
	KindTuple
	KindList
	KindDict
	KindSet
	KindObject
	KindCallable
	KindPersistentID
	KindMark
)

var kindNames = [...]string{
	KindNone:         "None",
	KindBool:         "Bool",
	KindInt:          "Int",
	KindUInt:         "UInt",
	KindLong:         "Long",
	KindULong:        "ULong",
	KindFloat:        "Float",
	KindString:       "String",
	KindBytes:        "Bytes",
	KindTuple:        "Tuple",
	KindList:         "List",
	KindDict:         "Dict",
	KindSet:          "Set",
	KindObject:       "Object",
	KindCallable:     "Callable",
	KindPersistentID: "PersistentID",
	KindMark:         "Mark",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// Value is the common interface implemented by all Values.
// It serves as a closed Sum type; the set of implementations is fixed by this package.
type Value interface {
	Kind() Kind
	// String returns a Python-like textual rendering of the value
	String() string

	isValue()
}

// Equal returns true if a and b are structurally equal.
// Containers are compared by content, never by identity.
func Equal(a, b Value) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case None, Mark:
		return true
	case Bool:
		return a == b.(Bool)
	case Int:
		return a == b.(Int)
	case UInt:
		return a == b.(UInt)
	case ULong:
		return a == b.(ULong)
	case Long:
		return a.Big().Cmp(b.(Long).Big()) == 0
	case Float:
		return math.Float64bits(float64(a)) == math.Float64bits(float64(b.(Float)))
	case String:
		return a == b.(String)
	case Bytes:
		return bytes.Equal(a, b.(Bytes))
	}
	return Fingerprint(a) == Fingerprint(b)
}

// Compare is a total order on Values.
// Values are ordered first by Kind, then by content.
// Compare(a, b) == 0 if and only if Equal(a, b).
func Compare(a, b Value) int {
	if c := cmp.Compare(kindOf(a), kindOf(b)); c != 0 {
		return c
	}
	if a == nil {
		return 0
	}
	switch a := a.(type) {
	case None, Mark:
		return 0
	case Bool:
		return cmp.Compare(boolInt(bool(a)), boolInt(bool(b.(Bool))))
	case Int:
		return cmp.Compare(a, b.(Int))
	case UInt:
		return cmp.Compare(a, b.(UInt))
	case ULong:
		return cmp.Compare(a, b.(ULong))
	case Long:
		return a.Big().Cmp(b.(Long).Big())
	case Float:
		x, y := float64(a), float64(b.(Float))
		if c := cmp.Compare(x, y); c != 0 {
			return c
		}
		return cmp.Compare(math.Float64bits(x), math.Float64bits(y))
	case String:
		return cmp.Compare(a, b.(String))
	case Bytes:
		return bytes.Compare(a, b.(Bytes))
	case Tuple:
		return slices.CompareFunc(a, b.(Tuple), Compare)
	}
	fa, fb := Fingerprint(a), Fingerprint(b)
	return bytes.Compare(fa[:], fb[:])
}

func kindOf(x Value) int {
	if x == nil {
		return -1
	}
	return int(x.Kind())
}

func boolInt(x bool) int {
	if x {
		return 1
	}
	return 0
}
