package ricklepick

import (
	"lukechampine.com/blake3"
)

const (
	// HighestProtocol is the newest stream protocol version the decoder accepts.
	HighestProtocol = 5

	// DefaultMaxReadSize bounds any single length-prefixed read.
	DefaultMaxReadSize = 1 << 30
	// DefaultMaxFrameSize bounds the working buffer of a framed stream.
	DefaultMaxFrameSize = 1 << 26
	// DefaultMaxMemoLen bounds the number of memo slots a stream can address.
	DefaultMaxMemoLen = 1 << 24
	// DefaultMaxStackDepth bounds the operand stack.
	DefaultMaxStackDepth = 1 << 20
)

// Fingerprint is a 256 bit digest of a value's canonical encoding.
type Fingerprint = [32]byte

// Hash calculates the hash of x.
// If tag == nil, then the hash is unkeyed.
// If tag != nil, then the hash will be keyed with the tag.
func Hash(tag *Fingerprint, x []byte) (ret Fingerprint) {
	var key []byte
	if tag != nil {
		key = tag[:]
	}
	h := blake3.New(32, key)
	h.Write(x)
	h.Sum(ret[:0])
	return ret
}
