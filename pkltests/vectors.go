package pkltests

import (
	"fmt"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/spec"
)

// DecodeVec is a test vector for decoding.
// If Err is set, decoding I must fail with an error matching it under errors.Is.
type DecodeVec struct {
	Name string
	I    []byte
	O    pklmem.Value
	// Err is the kind of error expected
	Err error
}

// DecodeVecs returns test vectors which decode successfully without any extensions.
func DecodeVecs() (out []DecodeVec) {
	for _, addVecs := range []func([]DecodeVec) []DecodeVec{
		literalVecs,
		textVecs,
		memoVecs,
		objectVecs,
		frameVecs,
	} {
		out = addVecs(out)
	}
	return out
}

func literalVecs(out []DecodeVec) []DecodeVec {
	for i, val := range InterestingValues() {
		if !Encodable(val) {
			continue
		}
		out = append(out,
			DecodeVec{
				Name: fmt.Sprintf("literal-%d-v2", i),
				I:    Stream(2).Value(val).Stop().Bytes(),
				O:    val,
			},
			DecodeVec{
				Name: fmt.Sprintf("literal-%d-v4-framed", i),
				I:    Stream(4).Value(val).Stop().Framed(),
				O:    val,
			},
		)
	}
	return out
}

// textVecs covers the newline terminated protocol 0 opcodes
func textVecs(out []DecodeVec) []DecodeVec {
	return append(out, []DecodeVec{
		{Name: "int", I: Stream(0).Op(spec.Int).Line("42").Stop().Bytes(), O: pklmem.Int(42)},
		{Name: "int-true", I: Stream(0).Op(spec.Int).Line("01").Stop().Bytes(), O: pklmem.True},
		{Name: "int-false", I: Stream(0).Op(spec.Int).Line("00").Stop().Bytes(), O: pklmem.False},
		{Name: "int-wide", I: Stream(0).Op(spec.Int).Line("4294967296").Stop().Bytes(), O: pklmem.NewLongFromInt64(1 << 32)},
		{Name: "long", I: Stream(0).Op(spec.Long).Line("-12L").Stop().Bytes(), O: pklmem.NewLongFromInt64(-12)},
		{Name: "float", I: Stream(0).Op(spec.Float).Line("2.5").Stop().Bytes(), O: pklmem.Float(2.5)},
		{Name: "string", I: Stream(0).Op(spec.String).Line(`'a\'b\n\x41'`).Stop().Bytes(), O: pklmem.String("a'b\nA")},
		{Name: "string-dquote", I: Stream(0).Op(spec.String).Line(`"it's"`).Stop().Bytes(), O: pklmem.String("it's")},
		{Name: "unicode", I: Stream(0).Op(spec.Unicode).Raw('c', 'a', 'f', 0xe9).Line(`\u263a`).Stop().Bytes(), O: pklmem.String("café☺")},
		{Name: "binstring", I: Stream(1).Op(spec.BinString).U32(2).Raw('h', 'i').Stop().Bytes(), O: pklmem.String("hi")},
		{Name: "short-binstring", I: Stream(1).Op(spec.ShortBinString).U8(2).Raw('h', 'i').Stop().Bytes(), O: pklmem.String("hi")},
		{Name: "bytearray8", I: Stream(5).Op(spec.ByteArray8).U64(2).Raw(1, 2).Stop().Bytes(), O: pklmem.NewBytes([]byte{1, 2})},
		{Name: "binbytes8", I: Stream(4).Op(spec.BinBytes8).U64(1).Raw(9).Stop().Bytes(), O: pklmem.NewBytes([]byte{9})},
		{Name: "binunicode8", I: Stream(4).Op(spec.BinUnicode8).U64(1).Raw('z').Stop().Bytes(), O: pklmem.String("z")},
		{Name: "long4", I: Stream(2).Op(spec.Long4).U32(2).Raw(0x00, 0x80).Stop().Bytes(), O: pklmem.NewLongFromInt64(-32768)},
		{
			Name: "list-dict-protocol-0",
			I: Stream(0).
				Op(spec.Mark).Op(spec.Int).Line("1").Op(spec.Int).Line("2").Op(spec.List).
				Op(spec.Mark).Op(spec.String).Line("'k'").Op(spec.None).Op(spec.Dict).
				Op(spec.Append).Stop().Bytes(),
			O: pklmem.NewList(pklmem.Int(1), pklmem.Int(2), mkDict(pklmem.String("k"), pklmem.None{})),
		},
		{
			Name: "setitem",
			I:    Stream(2).Op(spec.EmptyDict).Unicode("a").BinInt1(1).Op(spec.SetItem).Stop().Bytes(),
			O:    mkDict(pklmem.String("a"), pklmem.UInt(1)),
		},
		{
			Name: "pop-dup",
			I:    Stream(2).BinInt1(1).BinInt1(2).Op(spec.Pop).Op(spec.Dup).Op(spec.Tuple2).Stop().Bytes(),
			O:    pklmem.NewTuple(pklmem.UInt(1), pklmem.UInt(1)),
		},
		{
			Name: "pop-mark",
			I:    Stream(2).BinInt1(1).Op(spec.Mark).BinInt1(2).BinInt1(3).Op(spec.PopMark).Stop().Bytes(),
			O:    pklmem.UInt(1),
		},
	}...)
}

func memoVecs(out []DecodeVec) []DecodeVec {
	shared := pklmem.NewList(pklmem.Int(7))
	return append(out, []DecodeVec{
		{
			Name: "binput-binget",
			I:    Stream(2).Unicode("x").BinPut(0).BinGet(0).Op(spec.Tuple2).Stop().Bytes(),
			O:    pklmem.NewTuple(pklmem.String("x"), pklmem.String("x")),
		},
		{
			Name: "memoize",
			I:    Stream(4).Value(shared).Op(spec.Memoize).BinGet(0).Op(spec.Tuple2).Stop().Bytes(),
			O:    pklmem.NewTuple(shared, shared),
		},
		{
			Name: "long-binput",
			I:    Stream(2).BinInt1(5).LongBinPut(100).Op(spec.Pop).LongBinGet(100).Stop().Bytes(),
			O:    pklmem.UInt(5),
		},
		{
			Name: "text-put-get",
			I:    Stream(0).Op(spec.Int).Line("3").Op(spec.Put).Line("2").Op(spec.Pop).Op(spec.Get).Line("2").Stop().Bytes(),
			O:    pklmem.Int(3),
		},
	}...)
}

func objectVecs(out []DecodeVec) []DecodeVec {
	point := pklmem.NewObject("geom", "Point")
	point.Inst.Fields["x"] = pklmem.Int(1)
	point.Inst.Fields["y"] = pklmem.Int(2)

	slotted := pklmem.NewObject("geom", "Slotted")
	slotted.Inst.Fields["a"] = pklmem.Int(1)
	slotted.Inst.Fields["b"] = pklmem.Int(2)

	withKw := pklmem.NewObject("mod", "Kw")
	withKw.Inst.Args = []pklmem.Value{pklmem.Int(1)}
	withKw.Inst.Kwargs = mkDict(pklmem.String("k"), pklmem.Int(2))

	return append(out, []DecodeVec{
		{
			Name: "global-build",
			I: Stream(2).Global("geom", "Point").
				Value(mkDict(pklmem.String("x"), pklmem.Int(1), pklmem.String("y"), pklmem.Int(2))).
				Op(spec.Build).Stop().Bytes(),
			O: point,
		},
		{
			Name: "build-slots",
			I: Stream(2).Global("geom", "Slotted").
				Value(pklmem.NewTuple(mkDict(pklmem.String("a"), pklmem.Int(1)), mkDict(pklmem.String("b"), pklmem.Int(2)))).
				Op(spec.Build).Stop().Bytes(),
			O: slotted,
		},
		{
			Name: "build-none",
			I:    Stream(2).Global("geom", "Point").Op(spec.None).Op(spec.Build).Stop().Bytes(),
			O:    pklmem.NewObject("geom", "Point"),
		},
		{
			Name: "newobj-ex",
			I: Stream(4).StackGlobal("mod", "Kw").Value(pklmem.NewTuple(pklmem.Int(1))).
				Value(mkDict(pklmem.String("k"), pklmem.Int(2))).Op(spec.NewObjEx).Stop().Bytes(),
			O: withKw,
		},
		{
			Name: "reduce-unresolved",
			I:    Stream(2).Global("datetime", "date").Value(pklmem.NewTuple(pklmem.Int(2000))).Op(spec.Reduce).Stop().Bytes(),
			O:    pklmem.NewCallable(pklmem.NewInstance("datetime", "date"), pklmem.NewTuple(pklmem.Int(2000))),
		},
		{
			Name: "compat-module-names",
			I:    Stream(2).Global("__builtin__", "set").Value(pklmem.NewTuple()).Op(spec.Reduce).Stop().Bytes(),
			O:    pklmem.NewCallable(pklmem.NewInstance("builtins", "set"), pklmem.NewTuple()),
		},
		{
			Name: "inst",
			I:    Stream(0).Op(spec.Mark).Op(spec.Int).Line("1").Op(spec.Inst).Line("mod").Line("C").Stop().Bytes(),
			O:    pklmem.NewCallable(pklmem.NewInstance("mod", "C"), pklmem.NewTuple(pklmem.Int(1))),
		},
		{
			Name: "obj",
			I:    Stream(1).Op(spec.Mark).Global("mod", "C").BinInt1(1).Op(spec.Obj).Stop().Bytes(),
			O:    pklmem.NewCallable(pklmem.NewInstance("mod", "C"), pklmem.NewTuple(pklmem.UInt(1))),
		},
		{
			Name: "persid",
			I:    Stream(0).Op(spec.PersID).Line("storage-1").Stop().Bytes(),
			O:    pklmem.NewPersistentID(pklmem.String("storage-1")),
		},
	}...)
}

func frameVecs(out []DecodeVec) []DecodeVec {
	return append(out, []DecodeVec{
		{
			Name: "frame-short-final",
			I:    []byte{0x80, 0x04, 0x95, 0x0a, 0, 0, 0, 0, 0, 0, 0, 0x8c, 0x03, 'f', 'o', 'o', 0x2e},
			O:    pklmem.String("foo"),
		},
		{
			Name: "frame-exact",
			I:    []byte{0x80, 0x04, 0x95, 0x06, 0, 0, 0, 0, 0, 0, 0, 0x8c, 0x03, 'f', 'o', 'o', 0x2e},
			O:    pklmem.String("foo"),
		},
		{
			Name: "frame-then-direct",
			I:    Stream(4).Frame(2).BinInt1(9).Stop().Bytes(),
			O:    pklmem.UInt(9),
		},
		{
			Name: "two-frames",
			I:    Stream(4).Frame(2).BinInt1(9).Frame(1).Stop().Bytes(),
			O:    pklmem.UInt(9),
		},
		{
			Name: "proto-mid-stream",
			I:    Stream(2).Op(spec.Proto).U8(4).BinInt1(1).Stop().Bytes(),
			O:    pklmem.UInt(1),
		},
	}...)
}
