// Package pkltorch loads torch checkpoints.
// Both the zip archive layout written by torch.save and the older legacy layout are supported.
package pkltorch

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"ricklepick.dev/ricklepick/pklext"
	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pvm"
)

var (
	ErrNotCheckpoint = errors.New("pkltorch: not a torch checkpoint")
	ErrBadStorage    = errors.New("pkltorch: malformed storage")
	ErrBadTensor     = errors.New("pkltorch: malformed tensor")
)

// LegacyProtocol is the protocol version written by the legacy format, after the magic number.
const LegacyProtocol = 1001

// legacyMagic is 0x1950a86a20f9469cfc6c
var legacyMagic = func() *big.Int {
	n, ok := new(big.Int).SetString("1950a86a20f9469cfc6c", 16)
	if !ok {
		panic("bad magic")
	}
	return n
}()

// DefaultCacheSize is the number of storages kept by a zip loader.
const DefaultCacheSize = 64

type Option func(c *config)

type config struct {
	cacheSize int
	skipData  bool
	registry  *pvm.Registry
	pvmOpts   []pvm.Option
}

func newConfig(opts []Option) config {
	c := config{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&c)
	}
	if c.registry == nil {
		c.registry = Extensions()
	}
	return c
}

// WithCacheSize sets how many storages are cached while loading an archive.
func WithCacheSize(n int) Option {
	return func(c *config) {
		c.cacheSize = n
	}
}

// WithoutData makes the loaders skip reading storage contents.
// Tensors still have their shape and layout, but Data will fail.
func WithoutData() Option {
	return func(c *config) {
		c.skipData = true
	}
}

// WithRegistry replaces the extensions used while decoding.
// The default is Extensions().
func WithRegistry(r *pvm.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithMachineOptions passes opts to every Machine created by the loader.
func WithMachineOptions(opts ...pvm.Option) Option {
	return func(c *config) {
		c.pvmOpts = append(c.pvmOpts, opts...)
	}
}

func (c config) machineOptions(ctx context.Context, pl pvm.PersistentLoader) []pvm.Option {
	opts := []pvm.Option{pvm.WithContext(ctx), pvm.WithRegistry(c.registry)}
	opts = append(opts, c.pvmOpts...)
	if pl != nil {
		opts = append(opts, pvm.WithPersistentLoader(pl))
	}
	return opts
}

// Extensions returns a Registry with the default extensions and the torch reconstructors.
func Extensions() *pvm.Registry {
	r := pklext.Defaults()
	r.Register("torch._utils", "_rebuild_tensor", rebuildTensor)
	r.Register("torch._utils", "_rebuild_tensor_v2", rebuildTensor)
	r.Register("torch._utils", "_rebuild_parameter", rebuildParameter)
	r.Register("torch._utils", "_rebuild_parameter_with_state", rebuildParameter)
	r.Register("torch.storage", "_load_from_bytes", loadFromBytes)
	return r
}

// rebuildTensor handles _rebuild_tensor(storage, offset, size, stride)
// and _rebuild_tensor_v2(storage, offset, size, stride, requires_grad, backward_hooks, ...)
func rebuildTensor(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
	xs, ok := pklmem.AsTuple(args)
	if !ok || len(xs) < 4 {
		return nil, fmt.Errorf("%w: rebuild arguments %v", ErrBadTensor, args)
	}
	if _, ok := pklmem.AsObject(xs[0]); !ok {
		return nil, fmt.Errorf("%w: storage is %v", ErrBadTensor, xs[0].Kind())
	}
	if _, ok := pklmem.AsULong(xs[1]); !ok {
		return nil, fmt.Errorf("%w: storage offset %v", ErrBadTensor, xs[1])
	}
	for _, x := range xs[2:4] {
		if _, err := intTuple(x); err != nil {
			return nil, err
		}
	}
	t := pklmem.NewObject("torch", "Tensor")
	t.Inst.Fields["storage"] = xs[0]
	t.Inst.Fields["storage_offset"] = xs[1]
	t.Inst.Fields["size"] = xs[2]
	t.Inst.Fields["stride"] = xs[3]
	t.Inst.Fields["requires_grad"] = pklmem.Bool(false)
	if len(xs) > 4 {
		t.Inst.Fields["requires_grad"] = xs[4]
	}
	return t, nil
}

// rebuildParameter handles _rebuild_parameter(data, requires_grad, backward_hooks)
func rebuildParameter(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
	xs, ok := pklmem.AsTuple(args)
	if !ok || len(xs) < 2 {
		return nil, fmt.Errorf("%w: parameter arguments %v", ErrBadTensor, args)
	}
	if _, ok := AsTensor(xs[0]); !ok {
		return nil, fmt.Errorf("%w: parameter of %v", ErrBadTensor, xs[0].Kind())
	}
	p := pklmem.NewObject("torch.nn.parameter", "Parameter")
	p.Inst.Fields["data"] = xs[0]
	p.Inst.Fields["requires_grad"] = xs[1]
	return p, nil
}

// loadFromBytes handles torch.storage._load_from_bytes(b), which holds a whole legacy checkpoint.
func loadFromBytes(ctx context.Context, args pklmem.Value) (pklmem.Value, error) {
	xs, ok := pklmem.AsTuple(args)
	if !ok || len(xs) != 1 {
		return nil, fmt.Errorf("%w: _load_from_bytes arguments %v", ErrBadStorage, args)
	}
	data, ok := pklmem.AsBytes(xs[0])
	if !ok {
		return nil, fmt.Errorf("%w: _load_from_bytes of %v", ErrBadStorage, xs[0].Kind())
	}
	return LoadLegacyBytes(ctx, data)
}
