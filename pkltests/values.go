package pkltests

import (
	"math"
	"math/big"

	"ricklepick.dev/ricklepick/pklmem"
)

// InterestingValues returns a list of values worth testing against.
// Every value is acyclic and distinct from every other.
func InterestingValues() []pklmem.Value {
	str := func(s string) pklmem.Value { return pklmem.String(s) }
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	return []pklmem.Value{
		pklmem.None{},
		pklmem.True,
		pklmem.False,

		// integers
		pklmem.Int(0),
		pklmem.Int(-1),
		pklmem.Int(math.MaxInt32),
		pklmem.Int(math.MinInt32),
		pklmem.UInt(7),
		pklmem.UInt(300),
		pklmem.UInt(math.MaxUint32),
		pklmem.ULong(math.MaxUint64),
		pklmem.NewLongFromInt64(0),
		pklmem.NewLongFromInt64(-129),
		pklmem.NewLong(huge),
		pklmem.NewLong(new(big.Int).Neg(huge)),

		// floats
		pklmem.Float(0),
		pklmem.Float(math.Copysign(0, -1)),
		pklmem.Float(1.5),
		pklmem.Float(math.Inf(-1)),
		pklmem.Float(math.NaN()),

		// text and bytes
		str(""),
		str("abcd"),
		str("héllo, 世界"),
		pklmem.NewBytes(nil),
		pklmem.NewBytes([]byte{0, 1, 2, 0xff}),

		// tuples
		pklmem.NewTuple(),
		pklmem.NewTuple(pklmem.Int(1)),
		pklmem.NewTuple(pklmem.Int(1), str("a"), pklmem.None{}),
		pklmem.NewTuple(pklmem.Int(1), pklmem.Int(2), pklmem.Int(3), pklmem.Int(4)),

		// lists
		pklmem.NewList(),
		pklmem.NewList(str("a"), pklmem.NewList(pklmem.Int(1)), pklmem.NewTuple()),

		// dicts
		pklmem.NewDict(),
		mkDict(str("a"), pklmem.Int(1), str("b"), pklmem.NewList(pklmem.Int(2))),
		mkDict(pklmem.NewTuple(pklmem.Int(1), pklmem.Int(2)), str("tuple key")),

		// sets
		pklmem.NewSet(),
		pklmem.NewSet(pklmem.Int(1), str("a")),
		pklmem.NewFrozenSet(pklmem.Int(1), str("a")),

		// objects
		pklmem.NewObject("builtins", "object"),
		mkObject("collections", "Counter", []pklmem.Value{pklmem.Int(1)}, map[string]pklmem.Value{"n": pklmem.Int(2)}),
		mkObject("mod", "Empty", []pklmem.Value{}, nil),
		pklmem.NewCallable(pklmem.NewInstance("datetime", "date"), pklmem.NewTuple(pklmem.Int(2024), pklmem.Int(1), pklmem.Int(2))),
		pklmem.NewPersistentID(str("storage-0")),
	}
}

func mkDict(kvs ...pklmem.Value) *pklmem.Dict {
	d := pklmem.NewDict()
	for i := 0; i < len(kvs); i += 2 {
		if err := d.Set(kvs[i], kvs[i+1]); err != nil {
			panic(err)
		}
	}
	return d
}

func mkObject(module, name string, args []pklmem.Value, fields map[string]pklmem.Value) *pklmem.Object {
	o := pklmem.NewObject(module, name)
	o.Inst.Args = args
	for k, v := range fields {
		o.Inst.Fields[k] = v
	}
	return o
}
