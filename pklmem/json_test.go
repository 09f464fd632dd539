package pklmem_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pkltests"
)

func TestToJSON(t *testing.T) {
	t.Parallel()
	type testCase struct {
		I pklmem.Value
		O string
	}
	strDict := pklmem.NewDict()
	require.NoError(t, strDict.Set(pklmem.String("a"), pklmem.NewList(pklmem.Int(1), pklmem.None{})))
	tupleDict := pklmem.NewDict()
	require.NoError(t, tupleDict.Set(pklmem.NewTuple(pklmem.Int(1)), pklmem.True))
	obj := pklmem.NewObject("m", "C")
	obj.Inst.Fields["x"] = pklmem.Float(1.5)

	tcs := []testCase{
		{I: pklmem.None{}, O: `null`},
		{I: pklmem.NewLongFromInt64(-12), O: `-12`},
		{I: pklmem.ULong(math.MaxUint64), O: `18446744073709551615`},
		{I: pklmem.Float(math.NaN()), O: `"nan"`},
		{I: pklmem.NewBytes([]byte("hi")), O: `"aGk="`},
		{I: pklmem.NewTuple(pklmem.String("x")), O: `["x"]`},
		{I: strDict, O: `{"a":[1,null]}`},
		{I: tupleDict, O: `[[[1],true]]`},
		{I: pklmem.NewSet(pklmem.Int(2), pklmem.Int(1)), O: `[1,2]`},
		{I: obj, O: `{"$class":"m.C","fields":{"x":1.5}}`},
		{I: pklmem.NewCallable(pklmem.NewInstance("m", "f"), pklmem.NewTuple(pklmem.Int(1))), O: `{"$call":"m.f","args":[1]}`},
		{I: pklmem.NewPersistentID(pklmem.String("k")), O: `{"$persistent_id":"k"}`},
	}
	for _, tc := range tcs {
		out, err := pklmem.ToJSON(tc.I)
		require.NoError(t, err)
		require.JSONEq(t, tc.O, string(out), "%v", tc.I)
	}
}

func TestToJSONAll(t *testing.T) {
	t.Parallel()
	for _, v := range pkltests.InterestingValues() {
		_, err := pklmem.ToJSON(v)
		require.NoError(t, err, "%v", v)
	}
}

func TestToJSONCycle(t *testing.T) {
	t.Parallel()
	l := pklmem.NewList()
	require.NoError(t, l.Append(l))
	_, err := pklmem.ToJSON(l)
	require.ErrorIs(t, err, pklmem.ErrCycle)

	_, err = pklmem.ToJSON(pklmem.Mark{})
	require.ErrorIs(t, err, pklmem.ErrMarkInContainer)
}
