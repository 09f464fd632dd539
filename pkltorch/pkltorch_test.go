package pkltorch

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ricklepick.dev/ricklepick/internal/testutil"
	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/pkltests"
	"ricklepick.dev/ricklepick/pvm"
	"ricklepick.dev/ricklepick/spec"
)

type tensorDef struct {
	Name   string
	Key    string
	Offset uint8
	Shape  []uint8
	Stride []uint8
}

// stateDict builds the root pickle of a checkpoint holding one float storage of 4 elements
// and the given tensors viewing it.
// legacy selects the 6 element persistent ids of the legacy format.
func stateDict(legacy bool, defs ...tensorDef) []byte {
	b := pkltests.Stream(2).Op(spec.EmptyDict, spec.Mark)
	for _, d := range defs {
		b.Unicode(d.Name).Global("torch._utils", "_rebuild_tensor_v2").Op(spec.Mark)
		b.Op(spec.Mark).Unicode("storage").Global("torch", "FloatStorage").Unicode(d.Key).Unicode("cpu").BinInt1(4)
		if legacy {
			b.Op(spec.None)
		}
		b.Op(spec.Tuple, spec.BinPersID)
		b.BinInt1(d.Offset)
		b.Value(dims(d.Shape)).Value(dims(d.Stride))
		b.Op(spec.NewFalse)
		b.Global("collections", "OrderedDict").Op(spec.EmptyTuple, spec.Reduce)
		b.Op(spec.Tuple, spec.Reduce)
	}
	return b.Op(spec.SetItems).Stop().Bytes()
}

func dims(xs []uint8) pklmem.Tuple {
	out := make(pklmem.Tuple, len(xs))
	for i, x := range xs {
		out[i] = pklmem.UInt(x)
	}
	return out
}

func floats(xs ...float32) []byte {
	var out []byte
	for _, x := range xs {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(x))
	}
	return out
}

func makeZip(t testing.TB, files map[string][]byte) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func openZip(t testing.TB, data []byte) *zip.Reader {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return zr
}

func makeLegacy(root []byte, keys []string, storages ...[]byte) []byte {
	S := pkltests.Stream
	var buf bytes.Buffer
	buf.Write(S(2).Long1(legacyMagic).Stop().Bytes())
	buf.Write(S(2).BinInt2(LegacyProtocol).Stop().Bytes())
	buf.Write(S(2).Op(spec.EmptyDict, spec.Mark).
		Unicode("protocol_version").BinInt2(LegacyProtocol).
		Unicode("little_endian").Op(spec.NewTrue).
		Op(spec.SetItems).Stop().Bytes())
	buf.Write(root)
	ks := make([]pklmem.Value, len(keys))
	for i, k := range keys {
		ks[i] = pklmem.String(k)
	}
	buf.Write(S(2).Value(pklmem.NewList(ks...)).Stop().Bytes())
	for _, data := range storages {
		buf.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(data)/4)))
		buf.Write(data)
	}
	return buf.Bytes()
}

var (
	matrix = tensorDef{Name: "w", Key: "0", Shape: []uint8{2, 2}, Stride: []uint8{2, 1}}
	tail   = tensorDef{Name: "b", Key: "0", Offset: 2, Shape: []uint8{2}, Stride: []uint8{1}}
)

func collect(x pklmem.Value) map[string]*Tensor {
	out := make(map[string]*Tensor)
	for nt := range Tensors(x) {
		out[nt.Name] = nt.Tensor
	}
	return out
}

func TestLoadZip(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	data := floats(1, 2, 3, 4)
	zr := openZip(t, makeZip(t, map[string][]byte{
		"model/data.pkl": stateDict(false, matrix, tail),
		"model/data/0":   data,
		"model/version":  []byte("3\n"),
	}))
	x, err := LoadZip(ctx, zr)
	require.NoError(t, err)

	ts := collect(x)
	require.Len(t, ts, 2)
	w := ts["w"]
	require.NotNil(t, w)
	assert.Equal(t, []int64{2, 2}, w.Shape)
	assert.Equal(t, []int64{2, 1}, w.Stride)
	assert.Equal(t, int64(4), w.NumEl())
	assert.Equal(t, "float32", w.DType())
	assert.Equal(t, "cpu", w.Storage.Location)
	wd, err := w.Data()
	require.NoError(t, err)
	assert.Equal(t, data, wd)

	b := ts["b"]
	require.NotNil(t, b)
	bd, err := b.Data()
	require.NoError(t, err)
	assert.Equal(t, floats(3, 4), bd)
}

func TestLoadZipSharesStorage(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	zr := openZip(t, makeZip(t, map[string][]byte{
		"archive/data.pkl": stateDict(false, matrix, tail),
		"archive/data/0":   floats(1, 2, 3, 4),
	}))
	x, err := LoadZip(ctx, zr)
	require.NoError(t, err)
	d, ok := pklmem.AsDict(x)
	require.True(t, ok)
	storageOf := func(name string) pklmem.Value {
		v, ok := d.GetString(name)
		require.True(t, ok)
		in, ok := pklmem.AsInstance(v)
		require.True(t, ok)
		s, ok := in.Field("storage")
		require.True(t, ok)
		return s
	}
	assert.Same(t, storageOf("w"), storageOf("b"))
}

func TestLoadZipWithoutData(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	zr := openZip(t, makeZip(t, map[string][]byte{
		"data.pkl": stateDict(false, matrix),
	}))
	x, err := LoadZip(ctx, zr, WithoutData())
	require.NoError(t, err)
	w := collect(x)["w"]
	require.NotNil(t, w)
	assert.Equal(t, []int64{2, 2}, w.Shape)
	_, err = w.Data()
	require.ErrorIs(t, err, ErrBadStorage)
}

func TestLoadZipErrors(t *testing.T) {
	t.Parallel()
	type testCase struct {
		Name  string
		Files map[string][]byte
		Err   error
	}
	tcs := []testCase{
		{
			Name:  "no-root",
			Files: map[string][]byte{"model/version": []byte("3\n")},
			Err:   ErrNotCheckpoint,
		},
		{
			Name:  "missing-storage",
			Files: map[string][]byte{"model/data.pkl": stateDict(false, matrix)},
			Err:   ErrBadStorage,
		},
		{
			Name: "short-storage",
			Files: map[string][]byte{
				"model/data.pkl": stateDict(false, matrix),
				"model/data/0":   floats(1, 2),
			},
			Err: ErrBadStorage,
		},
		{
			Name: "tensor-past-storage",
			Files: map[string][]byte{
				"model/data.pkl": stateDict(false, tensorDef{Name: "x", Key: "0", Offset: 3, Shape: []uint8{2}, Stride: []uint8{1}}),
				"model/data/0":   floats(1, 2, 3, 4),
			},
			Err: ErrBadTensor,
		},
	}
	for i, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			ctx := testutil.Context(t)
			x, err := LoadZip(ctx, openZip(t, makeZip(t, tc.Files)))
			if err == nil {
				// tensors past the end of their storage are found when the data is read
				for nt := range Tensors(x) {
					_, err = nt.Tensor.Data()
				}
			}
			require.ErrorIs(t, err, tc.Err, "case %d", i)
		})
	}
}

func TestLoadLegacy(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	data := floats(1, 2, 3, 4)
	x, err := LoadLegacyBytes(ctx, makeLegacy(stateDict(true, matrix, tail), []string{"0"}, data))
	require.NoError(t, err)
	ts := collect(x)
	require.Len(t, ts, 2)
	wd, err := ts["w"].Data()
	require.NoError(t, err)
	assert.Equal(t, data, wd)
	bd, err := ts["b"].Data()
	require.NoError(t, err)
	assert.Equal(t, floats(3, 4), bd)
}

func TestLoadLegacyErrors(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)

	bad := pkltests.Stream(2).BinInt1(1).Stop().Bytes()
	_, err := LoadLegacyBytes(ctx, bad)
	require.ErrorIs(t, err, ErrNotCheckpoint)

	_, err = LoadLegacyBytes(ctx, makeLegacy(stateDict(true, matrix), []string{"1"}, floats(1, 2, 3, 4)))
	require.ErrorIs(t, err, ErrBadStorage)

	// element count disagrees with the persistent id
	_, err = LoadLegacyBytes(ctx, makeLegacy(stateDict(true, matrix), []string{"0"}, floats(1, 2)))
	require.ErrorIs(t, err, ErrBadStorage)

	truncated := makeLegacy(stateDict(true, matrix), []string{"0"}, floats(1, 2, 3, 4))
	_, err = LoadLegacyBytes(ctx, truncated[:len(truncated)-1])
	require.Error(t, err)
}

func TestLoadFromBytes(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	data := floats(5, 6, 7, 8)
	root := pkltests.Stream(2).
		Op(spec.Mark).Unicode("storage").Global("torch", "FloatStorage").Unicode("0").Unicode("cpu").BinInt1(4).Op(spec.None).
		Op(spec.Tuple, spec.BinPersID).Stop().Bytes()
	legacy := makeLegacy(root, []string{"0"}, data)
	stream := pkltests.Stream(2).Global("torch.storage", "_load_from_bytes").
		Value(pklmem.NewTuple(pklmem.NewBytes(legacy))).Op(spec.Reduce).Stop().Bytes()

	x, err := pvm.DecodeBytes(ctx, stream, pvm.WithRegistry(Extensions()))
	require.NoError(t, err)
	s, ok := AsStorage(x)
	require.True(t, ok)
	assert.Equal(t, "torch.FloatStorage", s.Type)
	assert.Equal(t, uint64(4), s.NumEl)
	assert.Equal(t, data, s.Data)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	data := floats(1, 2, 3, 4)
	for name, contents := range map[string][]byte{
		"zip": makeZip(t, map[string][]byte{
			"m/data.pkl": stateDict(false, matrix),
			"m/data/0":   data,
		}),
		"legacy": makeLegacy(stateDict(true, matrix), []string{"0"}, data),
	} {
		t.Run(name, func(t *testing.T) {
			f := testutil.TempFile(t)
			_, err := f.Write(contents)
			require.NoError(t, err)
			x, err := LoadFromFile(ctx, f)
			require.NoError(t, err)
			w := collect(x)["w"]
			require.NotNil(t, w)
			wd, err := w.Data()
			require.NoError(t, err)
			assert.Equal(t, data, wd)
		})
	}
}

func TestParameter(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	b := pkltests.Stream(2).Global("torch._utils", "_rebuild_parameter").Op(spec.Mark)
	b.Global("torch._utils", "_rebuild_tensor").Op(spec.Mark)
	b.Op(spec.Mark).Unicode("storage").Global("torch", "LongStorage").Unicode("k").Unicode("cpu").BinInt1(1).Op(spec.Tuple, spec.BinPersID)
	b.BinInt1(0).Value(dims([]uint8{1})).Value(dims([]uint8{1}))
	b.Op(spec.Tuple, spec.Reduce)
	b.Op(spec.NewTrue).Global("collections", "OrderedDict").Op(spec.EmptyTuple, spec.Reduce)
	b.Op(spec.Tuple, spec.Reduce).Stop()

	ls := &legacyStorages{objs: make(map[string]*legacyStorage)}
	x, err := pvm.DecodeBytes(ctx, b.Bytes(), pvm.WithRegistry(Extensions()), pvm.WithPersistentLoader(ls.load))
	require.NoError(t, err)
	tensor, ok := AsTensor(x)
	require.True(t, ok)
	assert.True(t, tensor.RequiresGrad)
	assert.Equal(t, "int64", tensor.DType())
	// legacy storages are empty until their data is read
	_, err = tensor.Data()
	require.Error(t, err)
}

func TestElemSize(t *testing.T) {
	t.Parallel()
	n, ok := ElemSize("torch.cuda.HalfStorage")
	require.True(t, ok)
	require.Equal(t, 2, n)
	_, ok = ElemSize("NotAStorage")
	require.False(t, ok)
}

func TestTensorDataOverflow(t *testing.T) {
	t.Parallel()
	st := &Storage{Type: "torch.FloatStorage", Key: "0", NumEl: 4, ElemSize: 4, Data: floats(1, 2, 3, 4)}
	type testCase struct {
		Name   string
		Offset uint64
		Shape  []int64
		Stride []int64
	}
	tcs := []testCase{
		{Name: "extent", Shape: []int64{1 << 62}, Stride: []int64{4}},
		{Name: "extent-sum", Shape: []int64{1 << 62, 1 << 62}, Stride: []int64{2, 2}},
		{Name: "bytes", Shape: []int64{1 << 62}, Stride: []int64{1}},
		{Name: "offset", Offset: math.MaxUint64, Shape: []int64{1}, Stride: []int64{1}},
		{Name: "offset-bytes", Offset: 1 << 62, Shape: []int64{1}, Stride: []int64{1}},
		{Name: "negative", Shape: []int64{2}, Stride: []int64{-1}},
		{Name: "rank", Shape: []int64{2, 2}, Stride: []int64{1}},
		{Name: "past-end", Offset: 3, Shape: []int64{2}, Stride: []int64{1}},
	}
	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			tensor := &Tensor{Storage: st, Offset: tc.Offset, Shape: tc.Shape, Stride: tc.Stride}
			_, err := tensor.Data()
			require.ErrorIs(t, err, ErrBadTensor)
		})
	}
}

func TestRebuildHugeTensor(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	ref, err := parseStorageRef(pklmem.NewTuple(
		pklmem.String("storage"), pklmem.NewObject("torch", "FloatStorage"),
		pklmem.String("0"), pklmem.String("cpu"), pklmem.UInt(4),
	))
	require.NoError(t, err)
	obj := ref.newObject()
	obj.Inst.Fields["data"] = pklmem.Bytes(floats(1, 2, 3, 4))
	x, err := rebuildTensor(ctx, pklmem.NewTuple(
		obj, pklmem.UInt(0),
		pklmem.NewTuple(pklmem.NewLongFromInt64(1<<62)), pklmem.NewTuple(pklmem.UInt(4)),
	))
	require.NoError(t, err)
	tensor, ok := AsTensor(x)
	require.True(t, ok)
	_, err = tensor.Data()
	require.ErrorIs(t, err, ErrBadTensor)
}

func TestStorageRefOverflow(t *testing.T) {
	t.Parallel()
	pid := func(numel uint64, view pklmem.Value) pklmem.Tuple {
		return pklmem.NewTuple(
			pklmem.String("storage"), pklmem.NewObject("torch", "DoubleStorage"),
			pklmem.String("0"), pklmem.String("cpu"), pklmem.ULong(numel), view,
		)
	}
	_, err := parseStorageRef(pid(1<<61, pklmem.None{}))
	require.ErrorIs(t, err, ErrBadStorage)
	_, err = parseStorageRef(pid(math.MaxUint64, pklmem.None{}))
	require.ErrorIs(t, err, ErrBadStorage)

	ref, err := parseStorageRef(pid(4, pklmem.NewTuple(pklmem.String("v"), pklmem.ULong(math.MaxUint64), pklmem.UInt(2))))
	require.NoError(t, err)
	_, err = ref.viewOf(ref.newObject())
	require.ErrorIs(t, err, ErrBadStorage)

	ref, err = parseStorageRef(pid(4, pklmem.NewTuple(pklmem.String("v"), pklmem.UInt(1), pklmem.UInt(3))))
	require.NoError(t, err)
	_, err = ref.viewOf(ref.newObject())
	require.NoError(t, err)
}
