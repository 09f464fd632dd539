package pvm

import (
	"errors"
	"fmt"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/spec"
)

// Error kinds. Every error returned by a Machine is an *Error wrapping exactly one of these.
var (
	ErrBadMagicHeader         = errors.New("stream does not start with PROTO")
	ErrUnsupportedVersion     = errors.New("unsupported protocol version")
	ErrUnknownOpcode          = spec.ErrUnknownOpcode
	ErrUnimplementedOpcode    = errors.New("unimplemented opcode")
	ErrStackUnderflow         = errors.New("stack underflow")
	ErrStackTypeMismatch      = errors.New("stack type mismatch")
	ErrMemoIndexOutOfRange    = errors.New("memo index out of range")
	ErrInvalidTextEncoding    = errors.New("invalid text encoding")
	ErrMalformedFieldKey      = pklmem.ErrMalformedFieldKey
	ErrEmptyOrMalformedResult = errors.New("empty or malformed result")
	ErrTruncatedRead          = errors.New("truncated read")
	ErrResourceLimitExceeded  = errors.New("resource limit exceeded")
	ErrMalformedArgument      = errors.New("malformed opcode argument")
	ErrMalformedFrame         = errors.New("malformed frame")
	ErrExtensionFailed        = errors.New("extension failed")
)

var kinds = []error{
	ErrBadMagicHeader,
	ErrUnsupportedVersion,
	ErrUnknownOpcode,
	ErrUnimplementedOpcode,
	ErrStackUnderflow,
	ErrStackTypeMismatch,
	ErrMemoIndexOutOfRange,
	ErrInvalidTextEncoding,
	ErrMalformedFieldKey,
	ErrEmptyOrMalformedResult,
	ErrTruncatedRead,
	ErrResourceLimitExceeded,
	ErrMalformedArgument,
	ErrMalformedFrame,
	ErrExtensionFailed,
}

// KindOf returns the error kind of err, or nil if err is not a decoding error.
// An extension failure reports ErrExtensionFailed even if it wraps another kind.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			if k != ErrExtensionFailed && errors.Is(err, ErrExtensionFailed) {
				return ErrExtensionFailed
			}
			return k
		}
	}
	return nil
}

// Error is a failed decode.
type Error struct {
	// Op is the instruction which failed. It is only meaningful if HasOp is true.
	Op    spec.Op
	HasOp bool
	// Offset is the position in the stream of the failing instruction, or of the failing header byte.
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	if e.HasOp {
		return fmt.Sprintf("pickle: %v at offset %d: %v", e.Op, e.Offset, e.Err)
	}
	return fmt.Sprintf("pickle: offset %d: %v", e.Offset, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func mismatch(want string, have pklmem.Value) error {
	if have == nil {
		return fmt.Errorf("%w: want %s, have nothing", ErrStackTypeMismatch, want)
	}
	return fmt.Errorf("%w: want %s, have %v", ErrStackTypeMismatch, want, have.Kind())
}
