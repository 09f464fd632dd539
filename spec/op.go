// package spec contains the opcode table of the pickle stream format
package spec

import (
	"errors"
	"fmt"
)

// HighestProtocol is the newest protocol version defined by the format.
const HighestProtocol = 5

var ErrUnknownOpcode = errors.New("unknown opcode")

// Op is an instruction of the pickle machine.
// Op is a closed enumeration; its wire encoding is given by Byte.
type Op uint8

const (
	// Mark pushes the mark sentinel
	Mark Op = iota
	// Stop ends the stream
	Stop
	// Pop discards the top of the stack
	Pop
	// PopMark discards everything down to and including the topmost mark
	PopMark
	// Dup pushes the top of the stack again
	Dup

	// Integers
	Int
	BinInt
	BinInt1
	BinInt2
	Long
	Long1
	Long4

	// Text and bytes
	String
	BinString
	ShortBinString
	BinBytes
	ShortBinBytes
	BinBytes8
	ByteArray8
	NextBuffer
	ReadonlyBuffer
	Unicode
	ShortBinUnicode
	BinUnicode
	BinUnicode8

	// Singletons
	None
	NewTrue
	NewFalse

	// Floats
	Float
	BinFloat

	// Lists
	EmptyList
	Append
	Appends
	List

	// Tuples
	EmptyTuple
	Tuple
	Tuple1
	Tuple2
	Tuple3

	// Dicts
	EmptyDict
	Dict
	SetItem
	SetItems

	// Sets
	EmptySet
	AddItems
	FrozenSet

	// Memo
	Get
	BinGet
	LongBinGet
	Put
	BinPut
	LongBinPut
	Memoize

	// Extension registry of the producing side
	Ext1
	Ext2
	Ext4

	// Object reconstruction
	Global
	StackGlobal
	Reduce
	Build
	Inst
	Obj
	NewObj
	NewObjEx

	// Stream control
	Proto
	Frame

	// Persistent ids
	PersID
	BinPersID

	numOps = iota
)

// Byte returns the wire encoding of p.
func (p Op) Byte() byte {
	return infos[p].Code
}

// String returns the mnemonic of p as it appears in format listings.
func (p Op) String() string {
	if int(p) >= numOps {
		return fmt.Sprintf("Op(%d)", uint8(p))
	}
	return infos[p].Name
}

// Decode returns the Op encoded as b.
// Bytes which are not part of the format are an error, never a default.
func Decode(b byte) (Op, error) {
	p := byteToOp[b]
	if p < 0 {
		return 0, fmt.Errorf("%w 0x%02x", ErrUnknownOpcode, b)
	}
	return Op(p), nil
}

var byteToOp = func() (ret [256]int16) {
	for i := range ret {
		ret[i] = -1
	}
	for p := Op(0); p < numOps; p++ {
		ret[infos[p].Code] = int16(p)
	}
	return ret
}()
