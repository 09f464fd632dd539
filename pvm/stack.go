package pvm

import (
	"fmt"
	"slices"

	"ricklepick.dev/ricklepick/pklmem"
)

func (m *Machine) push(x pklmem.Value) error {
	if len(m.stack) >= m.limits.MaxStackDepth {
		return fmt.Errorf("%w: stack depth %d", ErrResourceLimitExceeded, m.limits.MaxStackDepth)
	}
	m.stack = append(m.stack, x)
	return nil
}

// popAny pops the top of the stack, which may be a Mark
func (m *Machine) popAny() (pklmem.Value, error) {
	if len(m.stack) == 0 {
		return nil, ErrStackUnderflow
	}
	x := m.stack[len(m.stack)-1]
	m.stack[len(m.stack)-1] = nil
	m.stack = m.stack[:len(m.stack)-1]
	return x, nil
}

// pop pops a value off the stack. The top of the stack must not be a Mark.
func (m *Machine) pop() (pklmem.Value, error) {
	x, err := m.peek()
	if err != nil {
		return nil, err
	}
	return x, m.drop()
}

// peek returns the top of the stack. It must not be a Mark.
func (m *Machine) peek() (pklmem.Value, error) {
	if len(m.stack) == 0 {
		return nil, ErrStackUnderflow
	}
	x := m.stack[len(m.stack)-1]
	if pklmem.IsMark(x) {
		return nil, mismatch("value", x)
	}
	return x, nil
}

func (m *Machine) drop() error {
	_, err := m.popAny()
	return err
}

// popMark pops everything above the topmost Mark, and the Mark.
// The values are returned in the order they were pushed.
func (m *Machine) popMark() ([]pklmem.Value, error) {
	markAt := -1
	for i := len(m.stack) - 1; i >= 0; i-- {
		if pklmem.IsMark(m.stack[i]) {
			markAt = i
			break
		}
	}
	if markAt < 0 {
		return nil, fmt.Errorf("%w: no mark on the stack", ErrStackUnderflow)
	}
	out := slices.Clone(m.stack[markAt+1:])
	clear(m.stack[markAt:])
	m.stack = m.stack[:markAt]
	return out, nil
}

// popAs pops a value which must be a T
func popAs[T pklmem.Value](m *Machine, want string) (T, error) {
	x, err := peekAs[T](m, want)
	if err != nil {
		return x, err
	}
	return x, m.drop()
}

// peekAs returns the top of the stack, which must be a T
func peekAs[T pklmem.Value](m *Machine, want string) (T, error) {
	var zero T
	x, err := m.peek()
	if err != nil {
		if len(m.stack) > 0 {
			return zero, mismatch(want, m.stack[len(m.stack)-1])
		}
		return zero, err
	}
	y, ok := x.(T)
	if !ok {
		return zero, mismatch(want, x)
	}
	return y, nil
}
