package pvm

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pkltests"
	"ricklepick.dev/ricklepick/spec"
)

func TestDisassemble(t *testing.T) {
	t.Parallel()
	data := pkltests.Stream(4).
		Op(spec.EmptyList, spec.Mark).BinInt1(1).Unicode("a").Op(spec.Appends).
		StackGlobal("mod", "C").
		Stop().Framed()
	var buf bytes.Buffer
	require.NoError(t, Disassemble(&buf, bytes.NewReader(data)))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{
		"       0: 80 PROTO            4",
		"       2: 95 FRAME            18",
		"      11: 5d EMPTY_LIST",
		"      12: 28 MARK",
		"      13: 4b   BININT1          1",
		"      15: 8c   SHORT_BINUNICODE 'a'",
		"      18: 65 APPENDS",
		"      19: 8c SHORT_BINUNICODE 'mod'",
		"      24: 8c SHORT_BINUNICODE 'C'",
		"      27: 93 STACK_GLOBAL",
		"      28: 2e STOP",
	}
	require.Equal(t, want, lines)
}

func TestDisassembleDoesNotExecute(t *testing.T) {
	t.Parallel()
	// POP on an empty stack fails to decode, but still lists
	data := pkltests.Stream(2).Op(spec.Pop).Global("a", "b").Stop().Bytes()
	var buf bytes.Buffer
	require.NoError(t, Disassemble(&buf, bytes.NewReader(data)))
	require.Contains(t, buf.String(), "GLOBAL           a b")
}

func TestDisassembleError(t *testing.T) {
	t.Parallel()
	data := pkltests.Stream(2).Op(spec.None).Raw(0xff).Bytes()
	var buf bytes.Buffer
	err := Disassemble(&buf, bytes.NewReader(data))
	require.ErrorIs(t, err, ErrUnknownOpcode)
	require.Contains(t, buf.String(), "NONE")
}

func TestFormatArgTruncates(t *testing.T) {
	t.Parallel()
	s := formatArg(Instr{Op: spec.BinUnicode, Arg: pklmem.String(strings.Repeat("x", 200))})
	require.Len(t, s, maxArgWidth)
	require.True(t, strings.HasSuffix(s, "..."))
}

func TestFormatArgKeepsRunes(t *testing.T) {
	t.Parallel()
	// rendered as 'x€€..., so the cut falls inside a three byte rune
	arg := "x" + strings.Repeat("€", 40)
	s := formatArg(Instr{Op: spec.BinUnicode, Arg: pklmem.String(arg)})
	require.True(t, utf8.ValidString(s), "%q", s)
	require.True(t, strings.HasSuffix(s, "..."))
	require.LessOrEqual(t, len(s), maxArgWidth)

	s = formatArg(Instr{Op: spec.Global, Arg: pklmem.NewTuple(pklmem.String("torch._utils"), pklmem.String("_rebuild_tensor_v2"))})
	require.Equal(t, "torch._utils _rebuild_tensor_v2", s)
}
