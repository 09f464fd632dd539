package pvm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/exp/constraints"

	"ricklepick.dev/ricklepick/pklmem"
	"ricklepick.dev/ricklepick/spec"
)

// readArg decodes the inline argument of op.
// Integer arguments decode to Int, UInt, ULong or Long; text to String; raw data to Bytes.
// The argument of GLOBAL and INST decodes to a Tuple of the module and name.
func (m *Machine) readArg(op spec.Op) (pklmem.Value, error) {
	src := &m.src
	switch k := op.Arg(); k {
	case spec.ArgNone:
		return nil, nil

	case spec.ArgUInt1:
		x, err := readUint[uint8](src)
		return pklmem.UInt(x), err
	case spec.ArgUInt2:
		x, err := readUint[uint16](src)
		return pklmem.UInt(x), err
	case spec.ArgInt4:
		x, err := readUint[uint32](src)
		return pklmem.Int(int32(x)), err
	case spec.ArgUInt4:
		x, err := readUint[uint32](src)
		return pklmem.UInt(x), err
	case spec.ArgUInt8:
		x, err := readUint[uint64](src)
		return pklmem.ULong(x), err

	case spec.ArgLong1:
		n, err := readUint[uint8](src)
		if err != nil {
			return nil, err
		}
		data, err := src.read(int64(n))
		if err != nil {
			return nil, err
		}
		return pklmem.LongFromBytes(data), nil
	case spec.ArgLong4:
		n, err := readInt32Len(src)
		if err != nil {
			return nil, err
		}
		data, err := src.read(n)
		if err != nil {
			return nil, err
		}
		return pklmem.LongFromBytes(data), nil

	case spec.ArgDecimalNLShort:
		line, err := src.readLine()
		if err != nil {
			return nil, err
		}
		return parseDecimal(line, op == spec.Int)
	case spec.ArgDecimalNLLong:
		line, err := src.readLine()
		if err != nil {
			return nil, err
		}
		return parseLong(string(line))

	case spec.ArgFloatNL:
		line, err := src.readLine()
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(string(line), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a float", ErrMalformedArgument, line)
		}
		return pklmem.Float(f), nil
	case spec.ArgFloat8:
		data, err := src.read(8)
		if err != nil {
			return nil, err
		}
		return pklmem.Float(math.Float64frombits(binary.BigEndian.Uint64(data))), nil

	case spec.ArgStringNL:
		line, err := src.readLine()
		if err != nil {
			return nil, err
		}
		data, err := unquote(line)
		if err != nil {
			return nil, err
		}
		return utf8Text(data)
	case spec.ArgStringNLNoEscape:
		line, err := src.readLine()
		if err != nil {
			return nil, err
		}
		return utf8Text(line)
	case spec.ArgStringNLNoEscapePair:
		var pair [2]pklmem.Value
		for i := range pair {
			line, err := src.readLine()
			if err != nil {
				return nil, err
			}
			if pair[i], err = utf8Text(line); err != nil {
				return nil, err
			}
		}
		return pklmem.NewTuple(pair[0], pair[1]), nil

	case spec.ArgString1, spec.ArgUnicodeString1:
		data, err := readPrefixed[uint8](src)
		if err != nil {
			return nil, err
		}
		return utf8Text(data)
	case spec.ArgString4:
		n, err := readInt32Len(src)
		if err != nil {
			return nil, err
		}
		data, err := src.read(n)
		if err != nil {
			return nil, err
		}
		return utf8Text(data)
	case spec.ArgUnicodeString4:
		data, err := readPrefixed[uint32](src)
		if err != nil {
			return nil, err
		}
		return utf8Text(data)
	case spec.ArgUnicodeString8:
		data, err := readPrefixed[uint64](src)
		if err != nil {
			return nil, err
		}
		return utf8Text(data)
	case spec.ArgUnicodeStringNL:
		line, err := src.readLine()
		if err != nil {
			return nil, err
		}
		return rawUnicodeEscape(line)

	case spec.ArgBytes1:
		data, err := readPrefixed[uint8](src)
		return pklmem.Bytes(data), err
	case spec.ArgBytes4:
		data, err := readPrefixed[uint32](src)
		return pklmem.Bytes(data), err
	case spec.ArgBytes8:
		data, err := readPrefixed[uint64](src)
		return pklmem.Bytes(data), err

	default:
		return nil, fmt.Errorf("pvm: no decoder for argument kind %v", k)
	}
}

// readUint reads a little endian unsigned integer the size of T
func readUint[T constraints.Unsigned](src *source) (T, error) {
	var zero T
	data, err := src.read(int64(binary.Size(zero)))
	if err != nil {
		return zero, err
	}
	var x uint64
	for i := len(data) - 1; i >= 0; i-- {
		x = x<<8 | uint64(data[i])
	}
	return T(x), nil
}

// readPrefixed reads a little endian length the size of T, followed by that many bytes
func readPrefixed[T constraints.Unsigned](src *source) ([]byte, error) {
	n, err := readUint[T](src)
	if err != nil {
		return nil, err
	}
	if uint64(n) > math.MaxInt64 {
		return nil, fmt.Errorf("%w: length %d", ErrResourceLimitExceeded, uint64(n))
	}
	return src.read(int64(n))
}

// readInt32Len reads the signed length prefix used by LONG4 and BINSTRING
func readInt32Len(src *source) (int64, error) {
	x, err := readUint[uint32](src)
	if err != nil {
		return 0, err
	}
	n := int64(int32(x))
	if n < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrMalformedArgument, n)
	}
	return n, nil
}
