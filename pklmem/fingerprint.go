package pklmem

import (
	"bytes"
	"encoding/binary"
	"math"
	"slices"

	"ricklepick.dev/ricklepick"
)

// backrefTag replaces the kind byte when a container is reached again through itself.
const backrefTag = 0xff

// Fingerprint returns a unique 256 bit hash for x.
// Fingerprint is derived from the structure of x, not its rendering,
// and is appropriate for use in hash tables.
// Dicts and Sets hash the same regardless of insertion order.
func Fingerprint(x Value) ricklepick.Fingerprint {
	e := fpEncoder{low: math.MaxInt}
	return e.fingerprint(x)
}

type fpEncoder struct {
	// path holds the containers currently being encoded
	path []any
	// low is the smallest path index reached by a back reference
	// since the innermost container on the path was entered
	low int
	// cache holds the fingerprints of containers already encoded
	// which do not refer to anything outside themselves
	cache map[any]ricklepick.Fingerprint
}

// tupleKey identifies a Tuple by its backing array.
type tupleKey struct {
	first *Value
	n     int
}

func (e *fpEncoder) fingerprint(x Value) ricklepick.Fingerprint {
	if x == nil {
		return ricklepick.Hash(nil, nil)
	}
	kind := byte(x.Kind())
	buf := []byte{kind}
	switch x := x.(type) {
	case None, Mark:
	case Bool:
		buf = append(buf, byte(boolInt(bool(x))))
	case Int:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(x))
	case UInt:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(x))
	case ULong:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(x))
	case Long:
		bi := x.Big()
		buf = append(buf, byte(bi.Sign()+1))
		buf = appendBytes(buf, bi.Bytes())
	case Float:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(float64(x)))
	case String:
		buf = appendBytes(buf, []byte(x))
	case Bytes:
		buf = appendBytes(buf, x)
	case Tuple:
		if len(x) == 0 {
			buf = e.appendSeq(buf, x)
			break
		}
		return e.container(tupleKey{first: &x[0], n: len(x)}, false, kind, func(buf []byte) []byte {
			return e.appendSeq(buf, x)
		})
	case *List:
		return e.container(x, true, kind, func(buf []byte) []byte {
			return e.appendSeq(buf, x.items)
		})
	case *Dict:
		return e.container(x, true, kind, func(buf []byte) []byte {
			pairs := make([][]byte, 0, len(x.keys))
			for i := range x.keys {
				kfp := e.fingerprint(x.keys[i])
				vfp := e.fingerprint(x.vals[i])
				pairs = append(pairs, append(kfp[:], vfp[:]...))
			}
			return appendSorted(buf, pairs)
		})
	case *Set:
		return e.container(x, true, kind, func(buf []byte) []byte {
			buf = append(buf, byte(boolInt(x.frozen)))
			items := make([][]byte, 0, len(x.items))
			for _, item := range x.items {
				fp := e.fingerprint(item)
				items = append(items, fp[:])
			}
			return appendSorted(buf, items)
		})
	case *Object:
		fp := e.instance(x.Inst)
		buf = append(buf, fp[:]...)
	case *Callable:
		fp := e.instance(x.Inst)
		buf = append(buf, fp[:]...)
		afp := e.fingerprint(x.Args)
		buf = append(buf, afp[:]...)
	case *PersistentID:
		fp := e.fingerprint(x.PID)
		buf = append(buf, fp[:]...)
	default:
		panic(x)
	}
	return ricklepick.Hash(nil, buf)
}

func (e *fpEncoder) instance(in *Instance) ricklepick.Fingerprint {
	return e.container(in, true, backrefTag-1, func(buf []byte) []byte {
		buf = appendBytes(buf, []byte(in.Module))
		buf = appendBytes(buf, []byte(in.Name))
		buf = e.appendSeq(buf, in.Args)
		names := in.FieldNames()
		buf = binary.AppendUvarint(buf, uint64(len(names)))
		for _, name := range names {
			buf = appendBytes(buf, []byte(name))
			fp := e.fingerprint(in.Fields[name])
			buf = append(buf, fp[:]...)
		}
		if in.Kwargs != nil {
			fp := e.fingerprint(in.Kwargs)
			buf = append(buf, 1)
			buf = append(buf, fp[:]...)
		} else {
			buf = append(buf, 0)
		}
		return buf
	})
}

// container returns the fingerprint of the container identified by key, encoded by enc after tag.
// Containers which can hold themselves are pushed onto the path while they are encoded.
// Shared substructure is encoded once per call to Fingerprint.
func (e *fpEncoder) container(key any, onPath bool, tag byte, enc func(buf []byte) []byte) ricklepick.Fingerprint {
	if fp, ok := e.cache[key]; ok {
		return fp
	}
	depth := len(e.path)
	if onPath {
		if backref, ok := e.enter(key); ok {
			return backref
		}
		defer e.leave()
	}
	outer := e.low
	e.low = math.MaxInt
	fp := ricklepick.Hash(nil, enc([]byte{tag}))
	// back references below depth are relative to this container, so fp does not depend on the path
	if e.low >= depth {
		if e.cache == nil {
			e.cache = make(map[any]ricklepick.Fingerprint)
		}
		e.cache[key] = fp
	}
	e.low = min(outer, e.low)
	return fp
}

func (e *fpEncoder) appendSeq(buf []byte, xs []Value) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(xs)))
	for _, x := range xs {
		fp := e.fingerprint(x)
		buf = append(buf, fp[:]...)
	}
	return buf
}

// enter pushes p onto the path.
// If p is already on the path, a back reference fingerprint is returned instead.
func (e *fpEncoder) enter(p any) (ricklepick.Fingerprint, bool) {
	for i := len(e.path) - 1; i >= 0; i-- {
		if e.path[i] == p {
			e.low = min(e.low, i)
			buf := []byte{backrefTag}
			buf = binary.AppendUvarint(buf, uint64(len(e.path)-i))
			return ricklepick.Hash(nil, buf), true
		}
	}
	e.path = append(e.path, p)
	return ricklepick.Fingerprint{}, false
}

func (e *fpEncoder) leave() {
	e.path = e.path[:len(e.path)-1]
}

func appendBytes(buf []byte, x []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(x)))
	return append(buf, x...)
}

func appendSorted(buf []byte, xs [][]byte) []byte {
	slices.SortFunc(xs, bytes.Compare)
	buf = binary.AppendUvarint(buf, uint64(len(xs)))
	for _, x := range xs {
		buf = append(buf, x...)
	}
	return buf
}
