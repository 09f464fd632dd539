package pkltorch

import (
	"fmt"
	"iter"
	"math/bits"
	"slices"

	"go.brendoncarroll.net/exp/slices2"

	"ricklepick.dev/ricklepick/pklmem"
)

// Tensor is a view of a torch.Tensor Object produced by the rebuild extensions.
type Tensor struct {
	Storage      *Storage
	Offset       uint64
	Shape        []int64
	Stride       []int64
	RequiresGrad bool
}

// AsTensor returns a view of x if it is a tensor or a parameter wrapping one.
func AsTensor(x pklmem.Value) (*Tensor, bool) {
	o, ok := pklmem.AsObject(x)
	if !ok {
		return nil, false
	}
	in := o.Inst
	if in.Module == "torch.nn.parameter" && in.Name == "Parameter" {
		data, ok := in.Field("data")
		if !ok {
			return nil, false
		}
		t, ok := AsTensor(data)
		if !ok {
			return nil, false
		}
		if rg, ok := in.Field("requires_grad"); ok {
			t.RequiresGrad, _ = pklmem.AsBool(rg)
		}
		return t, true
	}
	if in.RegistryKey() != "torch.Tensor" {
		return nil, false
	}
	t, err := tensorFromInstance(in)
	if err != nil {
		return nil, false
	}
	return t, true
}

func tensorFromInstance(in *pklmem.Instance) (*Tensor, error) {
	var t Tensor
	sv, _ := in.Field("storage")
	s, ok := AsStorage(sv)
	if !ok {
		return nil, fmt.Errorf("%w: no storage", ErrBadTensor)
	}
	t.Storage = s
	ov, _ := in.Field("storage_offset")
	if t.Offset, ok = pklmem.AsULong(ov); !ok {
		return nil, fmt.Errorf("%w: storage offset %v", ErrBadTensor, ov)
	}
	var err error
	size, _ := in.Field("size")
	if t.Shape, err = intTuple(size); err != nil {
		return nil, err
	}
	stride, _ := in.Field("stride")
	if t.Stride, err = intTuple(stride); err != nil {
		return nil, err
	}
	if len(t.Shape) != len(t.Stride) {
		return nil, fmt.Errorf("%w: %d dimensions with %d strides", ErrBadTensor, len(t.Shape), len(t.Stride))
	}
	if rg, ok := in.Field("requires_grad"); ok {
		t.RequiresGrad, _ = pklmem.AsBool(rg)
	}
	return &t, nil
}

// NumEl returns the number of elements in the tensor
func (t *Tensor) NumEl() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Data returns the bytes of the storage spanned by the tensor.
// For a non-contiguous tensor this includes elements between the ones it views.
func (t *Tensor) Data() ([]byte, error) {
	if t.Storage.Data == nil {
		return nil, fmt.Errorf("%w: storage %q was not loaded", ErrBadStorage, t.Storage.Key)
	}
	if slices.Contains(t.Shape, 0) {
		return []byte{}, nil
	}
	begin, end, err := t.span()
	if err != nil {
		return nil, err
	}
	if end > uint64(len(t.Storage.Data)) {
		es := uint64(t.Storage.ElemSize)
		return nil, fmt.Errorf("%w: elements [%d, %d) of a %d byte storage", ErrBadTensor, begin/es, end/es, len(t.Storage.Data))
	}
	return t.Storage.Data[begin:end], nil
}

// span returns the byte range of the storage spanned by a non-empty tensor.
func (t *Tensor) span() (begin, end uint64, _ error) {
	if len(t.Shape) != len(t.Stride) {
		return 0, 0, fmt.Errorf("%w: %d dimensions with %d strides", ErrBadTensor, len(t.Shape), len(t.Stride))
	}
	overflow := fmt.Errorf("%w: shape %v with strides %v at offset %d overflows", ErrBadTensor, t.Shape, t.Stride, t.Offset)
	// extent is one more than the largest element index
	extent := uint64(1)
	for i, d := range t.Shape {
		if d < 0 || t.Stride[i] < 0 {
			return 0, 0, fmt.Errorf("%w: shape %v with strides %v", ErrBadTensor, t.Shape, t.Stride)
		}
		hi, lo := bits.Mul64(uint64(d-1), uint64(t.Stride[i]))
		var carry uint64
		extent, carry = bits.Add64(extent, lo, 0)
		if hi != 0 || carry != 0 {
			return 0, 0, overflow
		}
	}
	es := uint64(t.Storage.ElemSize)
	off, carry1 := bits.Add64(t.Storage.ViewOffset, t.Offset, 0)
	hi1, begin := bits.Mul64(off, es)
	hi2, n := bits.Mul64(extent, es)
	end, carry2 := bits.Add64(begin, n, 0)
	if carry1|hi1|hi2|carry2 != 0 {
		return 0, 0, overflow
	}
	return begin, end, nil
}

// DType returns the element type name, taken from the storage type.
func (t *Tensor) DType() string {
	return t.Storage.DType()
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%s%v", t.DType(), t.Shape)
}

// NamedTensor is a tensor found by Tensors along with its dotted path.
type NamedTensor struct {
	Name   string
	Tensor *Tensor
}

// Tensors walks nested dicts with string keys, as found in a state dict,
// and yields every tensor in them.
// Keys are joined with '.' to form names.
func Tensors(x pklmem.Value) iter.Seq[NamedTensor] {
	return func(yield func(NamedTensor) bool) {
		walkTensors("", x, yield)
	}
}

func walkTensors(prefix string, x pklmem.Value, yield func(NamedTensor) bool) bool {
	if t, ok := AsTensor(x); ok {
		return yield(NamedTensor{Name: prefix, Tensor: t})
	}
	d, ok := pklmem.AsDict(x)
	if !ok {
		return true
	}
	for k, v := range d.All() {
		name, ok := pklmem.AsString(k)
		if !ok {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if !walkTensors(name, v, yield) {
			return false
		}
	}
	return true
}

func intTuple(x pklmem.Value) ([]int64, error) {
	xs, ok := pklmem.Seq(x)
	if !ok {
		return nil, fmt.Errorf("%w: dimensions are %v", ErrBadTensor, x)
	}
	if i := slices.IndexFunc(xs, func(x pklmem.Value) bool {
		n, ok := pklmem.AsLong(x)
		return !ok || n < 0
	}); i >= 0 {
		return nil, fmt.Errorf("%w: dimension %v", ErrBadTensor, xs[i])
	}
	return slices2.Map(xs, func(x pklmem.Value) int64 {
		n, _ := pklmem.AsLong(x)
		return n
	}), nil
}
