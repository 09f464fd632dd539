package pklmem_test

import (
	"math"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pkltests"
)

func TestEqualReflexive(t *testing.T) {
	t.Parallel()
	for i, v := range pkltests.InterestingValues() {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			require.True(t, pklmem.Equal(v, v), "%v", v)
			require.Equal(t, 0, pklmem.Compare(v, v))
			require.Equal(t, pklmem.Fingerprint(v), pklmem.Fingerprint(v))
		})
	}
}

func TestDistinct(t *testing.T) {
	t.Parallel()
	vals := pkltests.InterestingValues()
	for i := range vals {
		for j := range vals {
			if i == j {
				continue
			}
			require.False(t, pklmem.Equal(vals[i], vals[j]), "%d %v == %d %v", i, vals[i], j, vals[j])
			require.NotEqual(t, 0, pklmem.Compare(vals[i], vals[j]))
		}
	}
}

func TestCompareTotalOrder(t *testing.T) {
	t.Parallel()
	vals := pkltests.InterestingValues()
	sorted := slices.Clone(vals)
	slices.SortFunc(sorted, pklmem.Compare)
	for i := 1; i < len(sorted); i++ {
		require.Negative(t, pklmem.Compare(sorted[i-1], sorted[i]))
		require.Positive(t, pklmem.Compare(sorted[i], sorted[i-1]))
	}
	require.Negative(t, pklmem.Compare(pklmem.Int(-5), pklmem.Int(3)))
	require.Negative(t, pklmem.Compare(pklmem.String("a"), pklmem.String("b")))
	require.Negative(t, pklmem.Compare(pklmem.NewTuple(pklmem.Int(1)), pklmem.NewTuple(pklmem.Int(1), pklmem.Int(0))))
}

func TestEqualStructural(t *testing.T) {
	t.Parallel()
	a := pklmem.NewList(pklmem.Int(1), pklmem.NewTuple(pklmem.String("x")))
	b := pklmem.NewList(pklmem.Int(1), pklmem.NewTuple(pklmem.String("x")))
	require.NotSame(t, a, b)
	require.True(t, pklmem.Equal(a, b))

	require.False(t, pklmem.Equal(pklmem.Int(1), pklmem.UInt(1)), "kinds differ")
	require.False(t, pklmem.Equal(pklmem.Float(0), pklmem.Float(math.Copysign(0, -1))))
	require.True(t, pklmem.Equal(pklmem.Float(math.NaN()), pklmem.Float(math.NaN())))
	require.False(t, pklmem.Equal(pklmem.NewSet(pklmem.Int(1)), pklmem.NewFrozenSet(pklmem.Int(1))))
	require.False(t, pklmem.Equal(nil, pklmem.None{}))
	require.True(t, pklmem.Equal(nil, nil))
}

func TestDictOrderIndependent(t *testing.T) {
	t.Parallel()
	a := pklmem.NewDict()
	require.NoError(t, a.Set(pklmem.String("x"), pklmem.Int(1)))
	require.NoError(t, a.Set(pklmem.String("y"), pklmem.Int(2)))
	b := pklmem.NewDict()
	require.NoError(t, b.Set(pklmem.String("y"), pklmem.Int(2)))
	require.NoError(t, b.Set(pklmem.String("x"), pklmem.Int(1)))
	require.True(t, pklmem.Equal(a, b))
	require.Equal(t, pklmem.Fingerprint(a), pklmem.Fingerprint(b))

	require.True(t, pklmem.Equal(
		pklmem.NewSet(pklmem.Int(1), pklmem.Int(2)),
		pklmem.NewSet(pklmem.Int(2), pklmem.Int(1)),
	))
}

func TestCycles(t *testing.T) {
	t.Parallel()
	mkCycle := func() *pklmem.List {
		l := pklmem.NewList(pklmem.Int(1))
		require.NoError(t, l.Append(l))
		return l
	}
	a, b := mkCycle(), mkCycle()
	require.True(t, pklmem.Equal(a, b))
	require.Equal(t, "[1, [...]]", a.String())

	d := pklmem.NewDict()
	require.NoError(t, d.Set(pklmem.String("self"), d))
	require.Equal(t, "{'self': {...}}", d.String())
	pklmem.Fingerprint(d)

	o := pklmem.NewObject("m", "N")
	o.Inst.Fields["me"] = o
	require.Equal(t, "<m.N fields={me: <m.N ...>}>", o.String())
	pklmem.Fingerprint(o)
}

func TestFingerprintSharedSubtrees(t *testing.T) {
	t.Parallel()
	// each level holds the previous one twice, 2^depth leaves if expanded
	const depth = 200
	var x pklmem.Value = pklmem.None{}
	for range depth {
		x = pklmem.NewTuple(x, x)
	}
	d := pklmem.NewDict()
	require.NoError(t, d.Set(x, pklmem.Int(1)))
	v, ok := d.Get(x)
	require.True(t, ok)
	require.Equal(t, pklmem.Int(1), v)

	// sharing does not change the fingerprint
	mkTree := func(shared bool) pklmem.Value {
		var x pklmem.Value = pklmem.NewList(pklmem.Int(1))
		for range 4 {
			if shared {
				x = pklmem.NewTuple(x, x)
			} else {
				x = pklmem.NewTuple(x, pklmem.NewList(pklmem.Int(1)))
			}
		}
		return x
	}
	require.Equal(t, pklmem.Fingerprint(mkTree(false)), pklmem.Fingerprint(mkTree(true)))

	// a cycle reached twice hashes the same both times
	mkCycle := func() *pklmem.List {
		l := pklmem.NewList(pklmem.Int(1))
		require.NoError(t, l.Append(l))
		return l
	}
	l := mkCycle()
	require.Equal(t,
		pklmem.Fingerprint(pklmem.NewTuple(l, l)),
		pklmem.Fingerprint(pklmem.NewTuple(mkCycle(), mkCycle())),
	)

	// a child which refers back to its parent is encoded in place each time
	mkParent := func(shared bool) *pklmem.List {
		p := pklmem.NewList()
		c := pklmem.NewList(p)
		if shared {
			require.NoError(t, p.Append(c, c))
		} else {
			require.NoError(t, p.Append(c, pklmem.NewList(p)))
		}
		return p
	}
	require.Equal(t, pklmem.Fingerprint(mkParent(false)), pklmem.Fingerprint(mkParent(true)))
}

func TestString(t *testing.T) {
	t.Parallel()
	type testCase struct {
		I pklmem.Value
		O string
	}
	tcs := []testCase{
		{I: pklmem.None{}, O: "None"},
		{I: pklmem.True, O: "True"},
		{I: pklmem.Int(-3), O: "-3"},
		{I: pklmem.NewLongFromInt64(1 << 40), O: "1099511627776"},
		{I: pklmem.Float(1), O: "1.0"},
		{I: pklmem.Float(math.Inf(1)), O: "inf"},
		{I: pklmem.String("it's"), O: `"it's"`},
		{I: pklmem.String("a\nb"), O: `'a\nb'`},
		{I: pklmem.NewBytes([]byte("a\x00")), O: `b'a\x00'`},
		{I: pklmem.NewTuple(), O: "()"},
		{I: pklmem.NewTuple(pklmem.Int(1)), O: "(1,)"},
		{I: pklmem.NewTuple(pklmem.Int(1), pklmem.Int(2)), O: "(1, 2)"},
		{I: pklmem.NewList(), O: "[]"},
		{I: pklmem.NewSet(), O: "set()"},
		{I: pklmem.NewSet(pklmem.Int(2), pklmem.Int(1)), O: "{1, 2}"},
		{I: pklmem.NewFrozenSet(pklmem.Int(1)), O: "frozenset({1})"},
		{I: pklmem.NewCallable(pklmem.NewInstance("a", "f"), pklmem.NewTuple(pklmem.Int(1))), O: "a.f(1)"},
		{I: pklmem.NewCallable(pklmem.NewInstance("a", "f"), pklmem.Int(1)), O: "a.f(*1)"},
		{I: pklmem.NewPersistentID(pklmem.String("k")), O: "persistent_id('k')"},
		{I: pklmem.NewObject("a", "B"), O: "<a.B>"},
	}
	for _, tc := range tcs {
		assert.Equal(t, tc.O, tc.I.String())
	}
}

func TestPretty(t *testing.T) {
	t.Parallel()
	small := pklmem.NewList(pklmem.Int(1), pklmem.Int(2))
	require.Equal(t, "[1, 2]", pklmem.Pretty(small))

	var items []pklmem.Value
	for i := 0; i < 30; i++ {
		items = append(items, pklmem.String("item"+strconv.Itoa(i)))
	}
	big := pklmem.NewList(items...)
	out := pklmem.Pretty(big)
	require.Contains(t, out, "\n  'item0',")
	for _, v := range items {
		require.Contains(t, out, v.String())
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()
	for _, v := range pkltests.InterestingValues() {
		require.NotEmpty(t, v.Kind().String())
	}
}
