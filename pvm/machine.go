// Package pvm implements the virtual machine which decodes pickle streams.
package pvm

import (
	"context"
	"fmt"
	"io"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"ricklepick.dev/ricklepick"
	"ricklepick.dev/ricklepick/internal/ringbuf"
	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/spec"
)

type State uint8

const (
	Initializing State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Instr is a single decoded instruction
type Instr struct {
	Offset int64
	Op     spec.Op
	// Arg is the decoded inline argument, nil if the opcode has none
	Arg pklmem.Value
}

func (in Instr) String() string {
	if in.Arg == nil {
		return fmt.Sprintf("%d: %v", in.Offset, in.Op)
	}
	return fmt.Sprintf("%d: %v %v", in.Offset, in.Op, in.Arg)
}

// Machine decodes a single pickle stream.
// It holds the operand stack, the memo, and the state of the byte source.
// A Machine is not safe for concurrent use.
type Machine struct {
	ctx        context.Context
	registry   *Registry
	persistent PersistentLoader
	limits     Limits

	src     source
	version uint8
	state   State
	err     error

	stack []pklmem.Value
	memo  memo
	steps uint64

	// cur is the instruction being executed
	cur    Instr
	recent ringbuf.RingBuf[Instr]
}

// New reads the stream header from r and returns a Machine ready to Step.
// The header is the PROTO opcode and a version no greater than ricklepick.HighestProtocol.
// If the first byte is not PROTO, no further bytes are read.
func New(r io.Reader, opts ...Option) (*Machine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Machine{
		ctx:        cfg.ctx,
		registry:   cfg.registry,
		persistent: cfg.persistent,
		limits:     cfg.limits,
		src:        newSource(r, cfg.limits.MaxReadSize),
		state:      Initializing,
		memo:       memo{max: cfg.limits.MaxMemoLen},
		recent:     ringbuf.New[Instr](cfg.trace),
	}
	b, err := m.src.readByte()
	if err != nil {
		return nil, &Error{Offset: 0, Err: err}
	}
	if b != spec.Proto.Byte() {
		return nil, &Error{Offset: 0, Err: fmt.Errorf("%w: first byte is 0x%02x", ErrBadMagicHeader, b)}
	}
	v, err := m.src.readByte()
	if err != nil {
		return nil, &Error{Offset: 1, Err: err}
	}
	if v > ricklepick.HighestProtocol {
		return nil, &Error{Offset: 1, Err: fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)}
	}
	m.version = v
	m.state = Running
	return m, nil
}

// Version is the protocol version from the most recent PROTO opcode
func (m *Machine) Version() uint8 {
	return m.version
}

func (m *Machine) State() State {
	return m.state
}

// Offset is the number of bytes of the stream the Machine has decoded.
func (m *Machine) Offset() int64 {
	return m.src.pos()
}

// Steps is the number of instructions executed.
func (m *Machine) Steps() uint64 {
	return m.steps
}

// Err returns the error which stopped the Machine, if any.
func (m *Machine) Err() error {
	return m.err
}

// Recent returns the most recently decoded instructions, oldest first.
// It is empty unless the Machine was created WithTrace.
func (m *Machine) Recent() []Instr {
	return m.recent.Slice()
}

// StackLen is the number of values on the operand stack, including Marks.
func (m *Machine) StackLen() int {
	return len(m.stack)
}

// MemoLen is the number of entries in the memo table.
func (m *Machine) MemoLen() int {
	return m.memo.len()
}

// Step decodes and executes one instruction.
// It returns false once the Machine has reached STOP or failed; check Err to tell which.
func (m *Machine) Step() bool {
	if m.state != Running {
		return false
	}
	if err := m.ctx.Err(); err != nil {
		m.fail(&Error{Offset: m.src.pos(), Err: err})
		return false
	}
	in, err := m.next()
	if err != nil {
		m.fail(err)
		return false
	}
	if in.Op == spec.Stop {
		m.state = Completed
		logctx.Debug(m.ctx, "pickle stop", zap.Int64("offset", in.Offset), zap.Uint64("steps", m.steps))
		return false
	}
	if err := m.exec(in); err != nil {
		m.fail(err)
		return false
	}
	m.steps++
	return true
}

// Run calls Step until the Machine stops or maxSteps have executed.
// It returns the number of steps executed.
func (m *Machine) Run(maxSteps uint64) uint64 {
	var n uint64
	for n < maxSteps && m.Step() {
		n++
	}
	return n
}

// Result pops the decoded value once the Machine has reached STOP.
func (m *Machine) Result() (pklmem.Value, error) {
	switch m.state {
	case Failed:
		return nil, m.err
	case Completed:
	default:
		return nil, m.errorf(fmt.Errorf("%w: decoding has not reached STOP", ErrEmptyOrMalformedResult))
	}
	x, err := m.popAny()
	if err != nil || pklmem.IsMark(x) {
		return nil, m.errorf(fmt.Errorf("%w: stack holds no value at STOP", ErrEmptyOrMalformedResult))
	}
	return x, nil
}

// DecodeAll runs the Machine to completion and returns the result.
func (m *Machine) DecodeAll() (pklmem.Value, error) {
	for m.Step() {
	}
	return m.Result()
}

// next decodes the next instruction, loading frames as they are encountered.
func (m *Machine) next() (Instr, error) {
	m.cur = Instr{Offset: m.src.pos()}
	b, err := m.src.readByte()
	if err != nil {
		return m.cur, &Error{Offset: m.cur.Offset, Err: err}
	}
	op, err := spec.Decode(b)
	if err != nil {
		return m.cur, &Error{Offset: m.cur.Offset, Err: err}
	}
	m.cur.Op = op
	if m.cur.Arg, err = m.readArg(op); err != nil {
		return m.cur, err
	}
	m.recent.PushBack(m.cur)
	return m.cur, nil
}

func (m *Machine) fail(err error) {
	m.err = m.errorf(err)
	m.state = Failed
	logctx.Debug(m.ctx, "pickle decode failed", zap.Error(m.err))
}

// errorf wraps err as an *Error for the current instruction, unless it already is one.
func (m *Machine) errorf(err error) error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Op: m.cur.Op, HasOp: true, Offset: m.cur.Offset, Err: err}
}
