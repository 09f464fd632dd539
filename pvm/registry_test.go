package pvm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ricklepick.dev/ricklepick/pklmem"
)

func constTransform(x pklmem.Value) Transform {
	return func(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
		return x, nil
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register("a", "B", constTransform(pklmem.Int(1)))
	r.RegisterKey("c.D", constTransform(pklmem.Int(2)))

	tr, ok := r.Lookup("a.B")
	require.True(t, ok)
	out, err := tr(context.Background(), pklmem.NewTuple())
	require.NoError(t, err)
	require.Equal(t, pklmem.Int(1), out)

	_, ok = r.Lookup("a.b")
	require.False(t, ok, "lookups are exact")

	// replacement
	r.Register("a", "B", constTransform(pklmem.Int(3)))
	tr, _ = r.Lookup("a.B")
	out, _ = tr(context.Background(), nil)
	require.Equal(t, pklmem.Int(3), out)

	require.Equal(t, []string{"a.B", "c.D"}, r.Keys())
}

func TestRegistryMerge(t *testing.T) {
	t.Parallel()
	a := NewRegistry()
	a.RegisterKey("x.Y", constTransform(pklmem.Int(1)))
	b := NewRegistry()
	b.RegisterKey("x.Y", constTransform(pklmem.Int(2)))
	b.RegisterKey("z.W", constTransform(pklmem.Int(3)))

	c := a.Clone()
	c.Merge(b)
	require.Equal(t, []string{"x.Y", "z.W"}, c.Keys())
	tr, _ := c.Lookup("x.Y")
	out, _ := tr(context.Background(), nil)
	require.Equal(t, pklmem.Int(2), out)

	// a is unchanged
	require.Equal(t, []string{"x.Y"}, a.Keys())
}

func TestNilRegistry(t *testing.T) {
	t.Parallel()
	var r *Registry
	_, ok := r.Lookup("a.B")
	require.False(t, ok)
	require.Empty(t, r.Keys())
}

func TestRegistryConcurrent(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.RegisterKey("k.V", constTransform(pklmem.Int(int32(j))))
				_, ok := r.Lookup("k.V")
				require.True(t, ok)
			}
		}()
	}
	wg.Wait()
}
