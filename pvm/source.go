package pvm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// smallRead is the largest read which is allocated up front.
// Larger reads grow as data arrives so a lying length prefix can't force a huge allocation.
const smallRead = 1 << 16

// source is the byte source for a Machine.
// Outside of a frame, bytes are read lazily from r, never more than an instruction needs.
// Inside of a frame, bytes are served from the frame buffer.
type source struct {
	r       io.Reader
	br      io.ByteReader
	maxRead int64

	// consumed is the number of bytes read from r
	consumed int64
	frame    []byte
	fpos     int
}

func newSource(r io.Reader, maxRead int64) source {
	br, _ := r.(io.ByteReader)
	return source{r: r, br: br, maxRead: maxRead}
}

// pos is the logical position in the stream
func (s *source) pos() int64 {
	return s.consumed - int64(len(s.frame)-s.fpos)
}

func (s *source) inFrame() bool {
	return s.fpos < len(s.frame)
}

func (s *source) readByte() (byte, error) {
	if s.inFrame() {
		b := s.frame[s.fpos]
		s.fpos++
		return b, nil
	}
	if s.br != nil {
		b, err := s.br.ReadByte()
		if err != nil {
			return 0, truncated(err)
		}
		s.consumed++
		return b, nil
	}
	var buf [1]byte
	if _, err := io.ReadFull(s.r, buf[:]); err != nil {
		return 0, truncated(err)
	}
	s.consumed++
	return buf[0], nil
}

// read returns the next n bytes.
// A read which starts in a frame and runs past its end continues from the underlying reader.
func (s *source) read(n int64) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrMalformedArgument, n)
	}
	if n > s.maxRead {
		return nil, fmt.Errorf("%w: read of %d bytes exceeds %d", ErrResourceLimitExceeded, n, s.maxRead)
	}
	if rem := int64(len(s.frame) - s.fpos); n <= rem {
		out := bytes.Clone(s.frame[s.fpos : s.fpos+int(n)])
		s.fpos += int(n)
		if out == nil {
			out = []byte{}
		}
		return out, nil
	}
	head := s.frame[s.fpos:]
	s.fpos = len(s.frame)
	rest := n - int64(len(head))
	if n <= smallRead {
		out := make([]byte, n)
		copy(out, head)
		m, err := io.ReadFull(s.r, out[len(head):])
		s.consumed += int64(m)
		if err != nil {
			return nil, truncated(err)
		}
		return out, nil
	}
	var buf bytes.Buffer
	buf.Write(head)
	m, err := io.CopyN(&buf, s.r, rest)
	s.consumed += m
	if err != nil {
		return nil, truncated(err)
	}
	return buf.Bytes(), nil
}

// readLine reads through the next newline and returns the line without it.
func (s *source) readLine() ([]byte, error) {
	var line []byte
	for {
		b, err := s.readByte()
		if err != nil {
			return nil, err
		}
		if b == '\n' {
			return line, nil
		}
		if int64(len(line)) >= s.maxRead {
			return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrResourceLimitExceeded, s.maxRead)
		}
		line = append(line, b)
	}
}

// loadFrame reads the next n bytes into the frame buffer.
func (s *source) loadFrame(n uint64, maxFrame int64) error {
	if s.inFrame() {
		return fmt.Errorf("%w: new frame before end of current frame", ErrMalformedFrame)
	}
	if n > uint64(maxFrame) {
		return fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrResourceLimitExceeded, n, maxFrame)
	}
	s.frame, s.fpos = nil, 0
	var buf bytes.Buffer
	m, err := io.CopyN(&buf, s.r, int64(n))
	s.consumed += m
	// A final frame may be shorter than declared.
	// Any instruction which needs the missing bytes fails with a truncated read.
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	s.frame = buf.Bytes()
	return nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTruncatedRead, err)
	}
	return err
}
