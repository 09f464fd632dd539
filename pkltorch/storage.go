package pkltorch

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"ricklepick.dev/ricklepick/pklmem"
)

type storageType struct {
	dtype string
	size  int
}

var storageTypes = map[string]storageType{
	"DoubleStorage":        {"float64", 8},
	"FloatStorage":         {"float32", 4},
	"HalfStorage":          {"float16", 2},
	"BFloat16Storage":      {"bfloat16", 2},
	"LongStorage":          {"int64", 8},
	"IntStorage":           {"int32", 4},
	"ShortStorage":         {"int16", 2},
	"CharStorage":          {"int8", 1},
	"ByteStorage":          {"uint8", 1},
	"BoolStorage":          {"bool", 1},
	"ComplexFloatStorage":  {"complex64", 8},
	"ComplexDoubleStorage": {"complex128", 16},
	"QInt8Storage":         {"qint8", 1},
	"QUInt8Storage":        {"quint8", 1},
	"QInt32Storage":        {"qint32", 4},
	"UntypedStorage":       {"uint8", 1},
}

// ElemSize returns the size in bytes of one element of the named storage type.
// The name may be qualified, as in "torch.cuda.FloatStorage".
func ElemSize(typeName string) (int, bool) {
	st, ok := storageTypes[baseName(typeName)]
	return st.size, ok
}

func baseName(typeName string) string {
	if i := strings.LastIndexByte(typeName, '.'); i >= 0 {
		return typeName[i+1:]
	}
	return typeName
}

// Storage is a view of a storage Object created by the persistent loaders.
type Storage struct {
	Type     string
	Key      string
	Location string
	NumEl    uint64
	ElemSize int
	// ViewOffset is the element offset into the base storage, for legacy storage views.
	ViewOffset uint64
	// Data is nil if the storage contents were not loaded.
	Data []byte
}

func (s *Storage) DType() string {
	return storageTypes[baseName(s.Type)].dtype
}

// AsStorage returns a view of a storage Object.
func AsStorage(x pklmem.Value) (*Storage, bool) {
	o, ok := pklmem.AsObject(x)
	if !ok {
		return nil, false
	}
	in := o.Inst
	if base, ok := in.Field("base"); ok {
		s, ok := AsStorage(base)
		if !ok {
			return nil, false
		}
		off, _ := in.Field("view_offset")
		n, _ := in.Field("numel")
		if s.ViewOffset, ok = pklmem.AsULong(off); !ok {
			return nil, false
		}
		if s.NumEl, ok = pklmem.AsULong(n); !ok {
			return nil, false
		}
		return s, true
	}
	es, ok := ElemSize(in.Name)
	if !ok {
		return nil, false
	}
	s := &Storage{Type: in.RegistryKey(), ElemSize: es}
	kv, _ := in.Field("key")
	lv, _ := in.Field("location")
	nv, _ := in.Field("numel")
	if s.Key, ok = pklmem.AsString(kv); !ok {
		return nil, false
	}
	if s.Location, ok = pklmem.AsString(lv); !ok {
		return nil, false
	}
	if s.NumEl, ok = pklmem.AsULong(nv); !ok {
		return nil, false
	}
	if dv, ok := in.Field("data"); ok {
		s.Data, _ = pklmem.AsBytes(dv)
	}
	return s, true
}

// storageRef is a parsed persistent id
// ('storage', storage_type, key, location, numel[, view_metadata])
type storageRef struct {
	cls      *pklmem.Instance
	key      string
	location string
	numel    uint64
	elemSize int
	// view is None or (view_key, offset, view_size)
	view pklmem.Value
}

func parseStorageRef(pid pklmem.Value) (*storageRef, error) {
	xs, ok := pklmem.AsTuple(pid)
	if !ok || len(xs) < 5 || len(xs) > 6 {
		return nil, fmt.Errorf("%w: persistent id %v", ErrBadStorage, pid)
	}
	if tag, _ := pklmem.AsString(xs[0]); tag != "storage" {
		return nil, fmt.Errorf("%w: persistent id tagged %v", ErrBadStorage, xs[0])
	}
	cls, ok := pklmem.AsInstance(xs[1])
	if !ok {
		return nil, fmt.Errorf("%w: storage type is %v", ErrBadStorage, xs[1].Kind())
	}
	ref := &storageRef{cls: cls, view: pklmem.None{}}
	if ref.elemSize, ok = ElemSize(cls.Name); !ok {
		return nil, fmt.Errorf("%w: unknown storage type %s", ErrBadStorage, cls.RegistryKey())
	}
	// zip archives write the key as a string, legacy files as a decimal string or an int
	switch k := xs[2].(type) {
	case pklmem.String:
		ref.key = string(k)
	default:
		n, ok := pklmem.AsLong(k)
		if !ok {
			return nil, fmt.Errorf("%w: storage key %v", ErrBadStorage, k)
		}
		ref.key = fmt.Sprint(n)
	}
	if ref.location, ok = pklmem.AsString(xs[3]); !ok {
		return nil, fmt.Errorf("%w: location %v", ErrBadStorage, xs[3])
	}
	if ref.numel, ok = pklmem.AsULong(xs[4]); !ok {
		return nil, fmt.Errorf("%w: numel %v", ErrBadStorage, xs[4])
	}
	if hi, lo := bits.Mul64(ref.numel, uint64(ref.elemSize)); hi != 0 || lo > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d elements of %d bytes", ErrBadStorage, ref.numel, ref.elemSize)
	}
	if len(xs) == 6 {
		ref.view = xs[5]
	}
	return ref, nil
}

// size is the length of the storage in bytes, which parseStorageRef checked fits in an int64.
func (ref *storageRef) size() uint64 {
	return ref.numel * uint64(ref.elemSize)
}

func (ref *storageRef) newObject() *pklmem.Object {
	in := ref.cls.Clone()
	in.Args = nil
	in.Kwargs = nil
	in.Fields = map[string]pklmem.Value{
		"key":      pklmem.String(ref.key),
		"location": pklmem.String(ref.location),
		"numel":    pklmem.ULong(ref.numel),
	}
	return &pklmem.Object{Inst: in}
}

// viewOf wraps base in a view if the reference has view metadata.
func (ref *storageRef) viewOf(base *pklmem.Object) (pklmem.Value, error) {
	if _, ok := ref.view.(pklmem.None); ok {
		return base, nil
	}
	xs, ok := pklmem.Seq(ref.view)
	if !ok || len(xs) != 3 {
		return nil, fmt.Errorf("%w: view metadata %v", ErrBadStorage, ref.view)
	}
	off, ok1 := pklmem.AsULong(xs[1])
	n, ok2 := pklmem.AsULong(xs[2])
	if !ok1 || !ok2 || off > ref.numel || n > ref.numel-off {
		return nil, fmt.Errorf("%w: view metadata %v", ErrBadStorage, ref.view)
	}
	view := &pklmem.Object{Inst: pklmem.NewInstance(base.Inst.Module, base.Inst.Name)}
	view.Inst.Fields["base"] = base
	view.Inst.Fields["view_key"] = xs[0]
	view.Inst.Fields["view_offset"] = pklmem.ULong(off)
	view.Inst.Fields["numel"] = pklmem.ULong(n)
	return view, nil
}
