package pklcmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ricklepick.dev/ricklepick/internal/testutil"
	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pkltests"
	"ricklepick.dev/ricklepick/pvm"
	"ricklepick.dev/ricklepick/spec"
)

func TestDecodeFile(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	data := pkltests.Stream(2).
		Global("collections", "OrderedDict").Op(spec.EmptyTuple, spec.Reduce).
		Op(spec.Mark).Unicode("a").BinInt1(1).Op(spec.SetItems).
		Stop().Bytes()
	p := testutil.WriteFile(t, "x.pkl", data)

	x, err := decodeFile(ctx, p, 0)
	require.NoError(t, err)
	out, err := format(x, "json")
	require.NoError(t, err)
	require.JSONEq(t, `{"a": 1}`, out)
	out, err = format(x, "repr")
	require.NoError(t, err)
	require.Equal(t, x.String(), out)

	_, err = decodeFile(ctx, p, 2)
	require.ErrorContains(t, err, "stopped after 2 steps")
}

func TestDecodeFileError(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	p := testutil.WriteFile(t, "bad.pkl", pkltests.Stream(2).Op(spec.Pop).Stop().Bytes())
	_, err := decodeFile(ctx, p, 0)
	require.ErrorIs(t, err, pvm.ErrStackUnderflow)

	p = testutil.WriteFile(t, "none.pkl", pkltests.Stream(2).Value(pklmem.None{}).Stop().Bytes())
	x, err := decodeFile(ctx, p, 0)
	require.NoError(t, err)
	require.Equal(t, "None", pklmem.Pretty(x))
}
