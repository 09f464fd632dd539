package pkltests

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"slices"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/spec"
)

// Builder assembles pickle streams for tests.
// Methods append to the stream and return the Builder so calls can be chained.
type Builder struct {
	buf []byte
}

// Stream returns a Builder holding the header for protocol version proto
func Stream(proto uint8) *Builder {
	return Raw().Op(spec.Proto).U8(proto)
}

// Raw returns an empty Builder, without a header
func Raw() *Builder {
	return &Builder{}
}

func (b *Builder) Op(ops ...spec.Op) *Builder {
	for _, op := range ops {
		b.buf = append(b.buf, op.Byte())
	}
	return b
}

func (b *Builder) Raw(data ...byte) *Builder {
	b.buf = append(b.buf, data...)
	return b
}

func (b *Builder) U8(x uint8) *Builder {
	return b.Raw(x)
}

func (b *Builder) U16(x uint16) *Builder {
	b.buf = binary.LittleEndian.AppendUint16(b.buf, x)
	return b
}

func (b *Builder) U32(x uint32) *Builder {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, x)
	return b
}

func (b *Builder) U64(x uint64) *Builder {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, x)
	return b
}

// Line appends s and a newline
func (b *Builder) Line(s string) *Builder {
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, '\n')
	return b
}

func (b *Builder) BinInt(x int32) *Builder {
	return b.Op(spec.BinInt).U32(uint32(x))
}

func (b *Builder) BinInt1(x uint8) *Builder {
	return b.Op(spec.BinInt1).U8(x)
}

func (b *Builder) BinInt2(x uint16) *Builder {
	return b.Op(spec.BinInt2).U16(x)
}

func (b *Builder) Long1(x *big.Int) *Builder {
	data := encodeLong(x)
	return b.Op(spec.Long1).U8(uint8(len(data))).Raw(data...)
}

func (b *Builder) BinFloat(x float64) *Builder {
	b.Op(spec.BinFloat)
	b.buf = binary.BigEndian.AppendUint64(b.buf, math.Float64bits(x))
	return b
}

// Unicode appends the shortest opcode pushing s
func (b *Builder) Unicode(s string) *Builder {
	if len(s) < 256 {
		return b.Op(spec.ShortBinUnicode).U8(uint8(len(s))).Raw([]byte(s)...)
	}
	return b.Op(spec.BinUnicode).U32(uint32(len(s))).Raw([]byte(s)...)
}

// BinBytes appends the shortest opcode pushing data
func (b *Builder) BinBytes(data []byte) *Builder {
	if len(data) < 256 {
		return b.Op(spec.ShortBinBytes).U8(uint8(len(data))).Raw(data...)
	}
	return b.Op(spec.BinBytes).U32(uint32(len(data))).Raw(data...)
}

func (b *Builder) Global(module, name string) *Builder {
	return b.Op(spec.Global).Line(module).Line(name)
}

func (b *Builder) StackGlobal(module, name string) *Builder {
	return b.Unicode(module).Unicode(name).Op(spec.StackGlobal)
}

func (b *Builder) BinPut(i uint8) *Builder {
	return b.Op(spec.BinPut).U8(i)
}

func (b *Builder) BinGet(i uint8) *Builder {
	return b.Op(spec.BinGet).U8(i)
}

func (b *Builder) LongBinPut(i uint32) *Builder {
	return b.Op(spec.LongBinPut).U32(i)
}

func (b *Builder) LongBinGet(i uint32) *Builder {
	return b.Op(spec.LongBinGet).U32(i)
}

func (b *Builder) Frame(n uint64) *Builder {
	return b.Op(spec.Frame).U64(n)
}

func (b *Builder) Stop() *Builder {
	return b.Op(spec.Stop)
}

// Value appends opcodes which push x.
// x must be acyclic and Encodable.
func (b *Builder) Value(x pklmem.Value) *Builder {
	switch x := x.(type) {
	case pklmem.None:
		return b.Op(spec.None)
	case pklmem.Bool:
		if x {
			return b.Op(spec.NewTrue)
		}
		return b.Op(spec.NewFalse)
	case pklmem.Int:
		return b.BinInt(int32(x))
	case pklmem.UInt:
		if x <= math.MaxUint8 {
			return b.BinInt1(uint8(x))
		}
		if x <= math.MaxUint16 {
			return b.BinInt2(uint16(x))
		}
	case pklmem.Long:
		return b.Long1(x.Big())
	case pklmem.Float:
		return b.BinFloat(float64(x))
	case pklmem.String:
		return b.Unicode(string(x))
	case pklmem.Bytes:
		return b.BinBytes(x)
	case pklmem.Tuple:
		switch len(x) {
		case 0:
			return b.Op(spec.EmptyTuple)
		case 1, 2, 3:
			for _, y := range x {
				b.Value(y)
			}
			return b.Op(spec.Tuple1 + spec.Op(len(x)-1))
		}
		return b.Op(spec.Mark).values(x).Op(spec.Tuple)
	case *pklmem.List:
		b.Op(spec.EmptyList)
		if x.Len() == 0 {
			return b
		}
		return b.Op(spec.Mark).values(x.Items()).Op(spec.Appends)
	case *pklmem.Dict:
		b.Op(spec.EmptyDict)
		if x.Len() == 0 {
			return b
		}
		b.Op(spec.Mark)
		for k, v := range x.All() {
			b.Value(k).Value(v)
		}
		return b.Op(spec.SetItems)
	case *pklmem.Set:
		items := slices.Collect(x.All())
		if x.Frozen() {
			return b.Op(spec.Mark).values(items).Op(spec.FrozenSet)
		}
		b.Op(spec.EmptySet)
		if len(items) == 0 {
			return b
		}
		return b.Op(spec.Mark).values(items).Op(spec.AddItems)
	case *pklmem.Object:
		in := x.Inst
		b.StackGlobal(in.Module, in.Name)
		switch {
		case in.Kwargs != nil:
			b.Value(pklmem.NewTuple(in.Args...)).Value(in.Kwargs).Op(spec.NewObjEx)
		case in.Args != nil:
			b.Value(pklmem.NewTuple(in.Args...)).Op(spec.NewObj)
		}
		return b.fields(in)
	case *pklmem.Callable:
		b.StackGlobal(x.Inst.Module, x.Inst.Name).Value(x.Args).Op(spec.Reduce)
		return b.fields(x.Inst)
	case *pklmem.PersistentID:
		return b.Value(x.PID).Op(spec.BinPersID)
	}
	panic(fmt.Sprintf("pkltests: no encoding for %v %v", x.Kind(), x))
}

func (b *Builder) values(xs []pklmem.Value) *Builder {
	for _, x := range xs {
		b.Value(x)
	}
	return b
}

func (b *Builder) fields(in *pklmem.Instance) *Builder {
	if len(in.Fields) == 0 {
		return b
	}
	state := pklmem.NewDict()
	for _, name := range in.FieldNames() {
		if err := state.Set(pklmem.String(name), in.Fields[name]); err != nil {
			panic(err)
		}
	}
	return b.Value(state).Op(spec.Build)
}

// Bytes returns the stream built so far
func (b *Builder) Bytes() []byte {
	return slices.Clone(b.buf)
}

// Framed returns the stream with everything after the 2 byte header wrapped in a single frame.
func (b *Builder) Framed() []byte {
	if len(b.buf) < 2 {
		panic("pkltests: Framed called before header")
	}
	body := b.buf[2:]
	out := slices.Clone(b.buf[:2])
	out = append(out, spec.Frame.Byte())
	out = binary.LittleEndian.AppendUint64(out, uint64(len(body)))
	return append(out, body...)
}

// Encodable returns true if Builder.Value can encode x.
// Some cases are only produced by extensions.
func Encodable(x pklmem.Value) bool {
	switch x := x.(type) {
	case pklmem.ULong, pklmem.Mark:
		return false
	case pklmem.UInt:
		return x <= math.MaxUint16
	}
	if xs, ok := pklmem.Seq(x); ok {
		return all(xs)
	}
	switch x := x.(type) {
	case *pklmem.Dict:
		for k, v := range x.All() {
			if !Encodable(k) || !Encodable(v) {
				return false
			}
		}
	case *pklmem.Set:
		return all(slices.Collect(x.All()))
	case *pklmem.Object:
		return instEncodable(x.Inst)
	case *pklmem.Callable:
		return Encodable(x.Args) && instEncodable(x.Inst)
	case *pklmem.PersistentID:
		return Encodable(x.PID)
	}
	return true
}

func instEncodable(in *pklmem.Instance) bool {
	for _, v := range in.Fields {
		if !Encodable(v) {
			return false
		}
	}
	return all(in.Args) && (in.Kwargs == nil || Encodable(in.Kwargs))
}

func all(xs []pklmem.Value) bool {
	for _, x := range xs {
		if !Encodable(x) {
			return false
		}
	}
	return true
}

// encodeLong returns the shortest little endian two's complement encoding of x.
// 0 encodes as no bytes.
func encodeLong(x *big.Int) []byte {
	if x.Sign() == 0 {
		return nil
	}
	n := x.BitLen()/8 + 1
	v := new(big.Int).Set(x)
	if x.Sign() < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), uint(8*n)))
	}
	be := v.FillBytes(make([]byte, n))
	le := make([]byte, n)
	for i := range be {
		le[n-1-i] = be[i]
	}
	// trim redundant sign bytes
	for len(le) > 1 {
		last, next := le[len(le)-1], le[len(le)-2]
		if (last == 0x00 && next&0x80 == 0) || (last == 0xff && next&0x80 != 0) {
			le = le[:len(le)-1]
			continue
		}
		break
	}
	return le
}
