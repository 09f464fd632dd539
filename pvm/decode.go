package pvm

import (
	"bytes"
	"context"
	"io"

	"ricklepick.dev/ricklepick/pklmem"
)

// Decode decodes a single stream from r.
// It reads up to and including the STOP opcode, and no further unless r is framed past it.
func Decode(ctx context.Context, r io.Reader, opts ...Option) (pklmem.Value, error) {
	opts = append([]Option{WithContext(ctx)}, opts...)
	m, err := New(r, opts...)
	if err != nil {
		return nil, err
	}
	return m.DecodeAll()
}

func DecodeBytes(ctx context.Context, data []byte, opts ...Option) (pklmem.Value, error) {
	return Decode(ctx, bytes.NewReader(data), opts...)
}
