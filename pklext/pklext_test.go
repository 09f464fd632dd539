package pklext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ricklepick.dev/ricklepick/internal/testutil"
	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pkltests"
	"ricklepick.dev/ricklepick/pvm"
	"ricklepick.dev/ricklepick/spec"
)

func TestDefaults(t *testing.T) {
	t.Parallel()
	type testCase struct {
		Name string
		I    []byte
		O    pklmem.Value
		Err  error
	}
	str := func(s string) pklmem.Value { return pklmem.String(s) }
	S := pkltests.Stream
	ordered := pklmem.NewDict()
	require.NoError(t, ordered.Set(str("a"), pklmem.UInt(1)))
	require.NoError(t, ordered.Set(str("b"), pklmem.UInt(2)))
	point := pklmem.NewObject("geom", "Point")
	point.Inst.Fields["x"] = pklmem.UInt(1)

	tcs := []testCase{
		{
			Name: "ordered-dict-setitems",
			I: S(2).Global("collections", "OrderedDict").Op(spec.EmptyTuple, spec.Reduce).
				Op(spec.Mark).Unicode("a").BinInt1(1).Unicode("b").BinInt1(2).Op(spec.SetItems).Stop().Bytes(),
			O: ordered,
		},
		{
			Name: "ordered-dict-pairs",
			I: S(2).Global("collections", "OrderedDict").
				Value(pklmem.NewTuple(pklmem.NewList(
					pklmem.NewList(str("a"), pklmem.UInt(1)),
					pklmem.NewList(str("b"), pklmem.UInt(2)),
				))).Op(spec.Reduce).Stop().Bytes(),
			O: ordered,
		},
		{
			Name: "set-py2",
			I:    S(2).Global("__builtin__", "set").Value(pklmem.NewTuple(pklmem.NewList(pklmem.UInt(1), pklmem.UInt(1)))).Op(spec.Reduce).Stop().Bytes(),
			O:    pklmem.NewSet(pklmem.UInt(1)),
		},
		{
			Name: "frozenset",
			I:    S(3).Global("builtins", "frozenset").Value(pklmem.NewTuple(pklmem.NewList(pklmem.UInt(2)))).Op(spec.Reduce).Stop().Bytes(),
			O:    pklmem.NewFrozenSet(pklmem.UInt(2)),
		},
		{
			Name: "empty-bytes",
			I:    S(2).Global("__builtin__", "bytes").Op(spec.EmptyTuple, spec.Reduce).Stop().Bytes(),
			O:    pklmem.NewBytes(nil),
		},
		{
			Name: "codecs-encode",
			I:    S(2).Global("_codecs", "encode").Value(pklmem.NewTuple(str("ÿ\x00"), str("latin1"))).Op(spec.Reduce).Stop().Bytes(),
			O:    pklmem.NewBytes([]byte{0xff, 0x00}),
		},
		{
			Name: "bytearray-py2",
			I:    S(2).Global("__builtin__", "bytearray").Value(pklmem.NewTuple(str("ab"), str("latin-1"))).Op(spec.Reduce).Stop().Bytes(),
			O:    pklmem.NewBytes([]byte("ab")),
		},
		{
			Name: "bytearray-py3",
			I:    S(3).Global("builtins", "bytearray").Value(pklmem.NewTuple(pklmem.NewBytes([]byte{1}))).Op(spec.Reduce).Stop().Bytes(),
			O:    pklmem.NewBytes([]byte{1}),
		},
		{
			Name: "list-of-tuple",
			I:    S(3).Global("builtins", "list").Value(pklmem.NewTuple(pklmem.NewTuple(pklmem.UInt(1)))).Op(spec.Reduce).Stop().Bytes(),
			O:    pklmem.NewList(pklmem.UInt(1)),
		},
		{
			Name: "reconstructor",
			I: S(1).Global("copy_reg", "_reconstructor").
				Op(spec.Mark).Global("geom", "Point").Global("__builtin__", "object").Op(spec.None, spec.Tuple).
				Op(spec.Reduce).
				Op(spec.Mark).Unicode("x").BinInt1(1).Op(spec.Dict).Op(spec.Build).
				Stop().Bytes(),
			O: point,
		},
		{
			Name: "codecs-bad-encoding",
			I:    S(2).Global("_codecs", "encode").Value(pklmem.NewTuple(str("x"), str("rot13"))).Op(spec.Reduce).Stop().Bytes(),
			Err:  pvm.ErrExtensionFailed,
		},
	}
	reg := Defaults()
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			out, err := pvm.DecodeBytes(testutil.Context(t), tc.I, pvm.WithRegistry(reg))
			if tc.Err != nil {
				require.ErrorIs(t, err, tc.Err)
				require.ErrorIs(t, err, ErrBadArgs)
				return
			}
			require.NoError(t, err)
			require.True(t, pklmem.Equal(tc.O, out), "want %v HAVE %v", tc.O, out)
		})
	}
}

func TestTransformsIsACopy(t *testing.T) {
	t.Parallel()
	ts := Transforms()
	delete(ts, "builtins.set")
	_, ok := Defaults().Lookup("builtins.set")
	require.True(t, ok)
	require.Len(t, Defaults().Keys(), len(defaults))
}
