package pklmem

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFieldKey = errors.New("field names must be text")
	ErrFrozen            = errors.New("frozenset cannot be modified")
)

// ErrFieldKey is returned by SetFields when a state key is not a String
type ErrFieldKey struct {
	Key Value
}

func (e ErrFieldKey) Error() string {
	return fmt.Sprintf("%v: got %v key %v", ErrMalformedFieldKey, e.Key.Kind(), e.Key)
}

func (e ErrFieldKey) Unwrap() error {
	return ErrMalformedFieldKey
}
