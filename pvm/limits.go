package pvm

import "ricklepick.dev/ricklepick"

// Limits bound the resources a single stream can make the Machine consume.
// Lengths read from the wire are checked against these before any allocation.
type Limits struct {
	// MaxReadSize is the largest string, bytes or line the stream may contain
	MaxReadSize int64
	// MaxFrameSize is the largest frame the Machine will buffer
	MaxFrameSize int64
	// MaxMemoLen is one more than the largest memo index the stream may use
	MaxMemoLen int
	// MaxStackDepth is the largest number of values on the operand stack
	MaxStackDepth int
}

func DefaultLimits() Limits {
	return Limits{
		MaxReadSize:   ricklepick.DefaultMaxReadSize,
		MaxFrameSize:  ricklepick.DefaultMaxFrameSize,
		MaxMemoLen:    ricklepick.DefaultMaxMemoLen,
		MaxStackDepth: ricklepick.DefaultMaxStackDepth,
	}
}

// withDefaults replaces zero fields with the defaults
func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxReadSize <= 0 {
		l.MaxReadSize = def.MaxReadSize
	}
	if l.MaxFrameSize <= 0 {
		l.MaxFrameSize = def.MaxFrameSize
	}
	if l.MaxMemoLen <= 0 {
		l.MaxMemoLen = def.MaxMemoLen
	}
	if l.MaxStackDepth <= 0 {
		l.MaxStackDepth = def.MaxStackDepth
	}
	return l
}
