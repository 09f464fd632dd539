package pvm

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"ricklepick.dev/ricklepick"
	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/spec"
)

const maxArgWidth = 72

// Disassemble writes a listing of the stream read from r to w, one instruction per line.
// Instructions are decoded but not executed, so streams which would fail on a stack effect still list.
// Listing stops after STOP, or at the first instruction which cannot be decoded.
func Disassemble(w io.Writer, r io.Reader, opts ...Option) error {
	m, err := New(r, opts...)
	if err != nil {
		return err
	}
	if err := writeInstr(w, Instr{Offset: 0, Op: spec.Proto, Arg: pklmem.UInt(m.version)}, 0); err != nil {
		return err
	}
	depth := 0
	for {
		in, err := m.next()
		if err != nil {
			return m.errorf(err)
		}
		if in.Op.IsMarkConsumer() && depth > 0 {
			depth--
		}
		if err := writeInstr(w, in, depth); err != nil {
			return err
		}
		switch in.Op {
		case spec.Mark:
			depth++
		case spec.Stop:
			return nil
		case spec.Frame:
			if err := m.src.loadFrame(uint64(in.Arg.(pklmem.ULong)), m.limits.MaxFrameSize); err != nil {
				return m.errorf(err)
			}
		case spec.Proto:
			if v := uint8(in.Arg.(pklmem.UInt)); v > ricklepick.HighestProtocol {
				return m.errorf(fmt.Errorf("%w: %d", ErrUnsupportedVersion, v))
			}
		}
	}
}

func writeInstr(w io.Writer, in Instr, depth int) error {
	line := fmt.Sprintf("%8d: %02x %s%-16s %s", in.Offset, in.Op.Byte(), strings.Repeat("  ", depth), in.Op, formatArg(in))
	_, err := io.WriteString(w, strings.TrimRight(line, " ")+"\n")
	return err
}

func formatArg(in Instr) string {
	if in.Arg == nil {
		return ""
	}
	var s string
	if pair, ok := in.Arg.(pklmem.Tuple); ok && (in.Op == spec.Global || in.Op == spec.Inst) {
		s = string(pair[0].(pklmem.String)) + " " + string(pair[1].(pklmem.String))
	} else {
		s = in.Arg.String()
	}
	if len(s) > maxArgWidth {
		cut := maxArgWidth - 3
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
