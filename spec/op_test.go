package spec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	require.Len(t, All(), 68)
	seen := map[byte]Op{}
	for _, p := range All() {
		b := p.Byte()
		prev, exists := seen[b]
		require.False(t, exists, "%v and %v share byte 0x%02x", p, prev, b)
		seen[b] = p

		p2, err := Decode(b)
		require.NoError(t, err)
		require.Equal(t, p, p2)
		require.NotEmpty(t, p.String())
	}
}

func TestUnknown(t *testing.T) {
	t.Parallel()
	for i := 0; i < 256; i++ {
		b := byte(i)
		p, err := Decode(b)
		if err != nil {
			require.ErrorIs(t, err, ErrUnknownOpcode)
			continue
		}
		require.Equal(t, b, p.Byte())
	}
	_, err := Decode(0xff)
	require.ErrorIs(t, err, ErrUnknownOpcode)
	_, err = Decode(0x00)
	require.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestWireConstants(t *testing.T) {
	t.Parallel()
	type testCase struct {
		Op   Op
		Byte byte
		Name string
	}
	tcs := []testCase{
		{Proto, 0x80, "PROTO"},
		{Frame, 0x95, "FRAME"},
		{Stop, 0x2e, "STOP"},
		{Mark, 0x28, "MARK"},
		{ShortBinUnicode, 0x8c, "SHORT_BINUNICODE"},
		{BinInt1, 'K', "BININT1"},
		{Global, 'c', "GLOBAL"},
		{StackGlobal, 0x93, "STACK_GLOBAL"},
		{Memoize, 0x94, "MEMOIZE"},
		{ReadonlyBuffer, 0x98, "READONLY_BUFFER"},
	}
	for _, tc := range tcs {
		require.Equal(t, tc.Byte, tc.Op.Byte())
		require.Equal(t, tc.Name, tc.Op.String())
	}
}

func TestArgKinds(t *testing.T) {
	t.Parallel()
	require.Equal(t, ArgUInt8, Frame.Arg())
	require.Equal(t, 8, Frame.Arg().FixedLen())
	require.Equal(t, ArgFloat8, BinFloat.Arg())
	require.Equal(t, -1, ShortBinUnicode.Arg().FixedLen())
	require.Equal(t, "unicodestring1", ShortBinUnicode.Arg().String())
	for _, p := range All() {
		require.LessOrEqual(t, p.Info().Proto, HighestProtocol)
	}
}

func TestMarkConsumers(t *testing.T) {
	t.Parallel()
	require.True(t, Appends.IsMarkConsumer())
	require.True(t, SetItems.IsMarkConsumer())
	require.False(t, Tuple2.IsMarkConsumer())
}
