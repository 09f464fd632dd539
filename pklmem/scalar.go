package pklmem

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// None is the unit value
type None struct{}

func (None) isValue()       {}
func (None) Kind() Kind     { return KindNone }
func (None) String() string { return "None" }

// Mark is the stack sentinel pushed by the MARK opcode.
// It never appears inside a container or as a decoded result.
type Mark struct{}

func (Mark) isValue()       {}
func (Mark) Kind() Kind     { return KindMark }
func (Mark) String() string { return "MARK" }

// IsMark returns true if x is the Mark sentinel
func IsMark(x Value) bool {
	_, ok := x.(Mark)
	return ok
}

type Bool bool

var (
	True  = Bool(true)
	False = Bool(false)
)

func (Bool) isValue()   {}
func (Bool) Kind() Kind { return KindBool }

func (b Bool) String() string {
	if b {
		return "True"
	}
	return "False"
}

// Int is a 32 bit signed integer
type Int int32

func (Int) isValue()         {}
func (Int) Kind() Kind       { return KindInt }
func (x Int) String() string { return strconv.FormatInt(int64(x), 10) }

// UInt is a 32 bit unsigned integer
type UInt uint32

func (UInt) isValue()         {}
func (UInt) Kind() Kind       { return KindUInt }
func (x UInt) String() string { return strconv.FormatUint(uint64(x), 10) }

// ULong is a 64 bit unsigned integer
type ULong uint64

func (ULong) isValue()         {}
func (ULong) Kind() Kind       { return KindULong }
func (x ULong) String() string { return strconv.FormatUint(uint64(x), 10) }

// Long is a signed integer of arbitrary width.
// The zero value is 0.
type Long struct {
	x *big.Int
}

// NewLong returns a Long holding a copy of x
func NewLong(x *big.Int) Long {
	return Long{x: new(big.Int).Set(x)}
}

func NewLongFromInt64(x int64) Long {
	return Long{x: big.NewInt(x)}
}

// LongFromBytes interprets data as a little-endian two's complement integer.
// An empty slice is 0.
func LongFromBytes(data []byte) Long {
	n := len(data)
	if n == 0 {
		return NewLongFromInt64(0)
	}
	be := make([]byte, n)
	for i := range data {
		be[n-1-i] = data[i]
	}
	x := new(big.Int).SetBytes(be)
	if data[n-1]&0x80 != 0 {
		// negative: subtract 2^(8n)
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), uint(8*n)))
	}
	return Long{x: x}
}

func (Long) isValue()   {}
func (Long) Kind() Kind { return KindLong }

// Big returns a copy of the integer
func (l Long) Big() *big.Int {
	if l.x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(l.x)
}

// Int64 returns the value as an int64 if it fits
func (l Long) Int64() (int64, bool) {
	if l.x == nil {
		return 0, true
	}
	if !l.x.IsInt64() {
		return 0, false
	}
	return l.x.Int64(), true
}

func (l Long) Sign() int {
	if l.x == nil {
		return 0
	}
	return l.x.Sign()
}

func (l Long) String() string {
	if l.x == nil {
		return "0"
	}
	return l.x.String()
}

type Float float64

func (Float) isValue()   {}
func (Float) Kind() Kind { return KindFloat }

func (f Float) String() string {
	x := float64(f)
	switch {
	case math.IsNaN(x):
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(x, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// String is UTF-8 text
type String string

func (String) isValue()         {}
func (String) Kind() Kind       { return KindString }
func (s String) String() string { return quoteText(string(s)) }

// Bytes is a raw byte sequence
type Bytes []byte

// NewBytes returns Bytes holding a copy of x
func NewBytes(x []byte) Bytes {
	return append(Bytes{}, x...)
}

func (Bytes) isValue()         {}
func (Bytes) Kind() Kind       { return KindBytes }
func (b Bytes) String() string { return "b" + quoteBytes(b) }

func quoteText(s string) string {
	q := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		q = '"'
	}
	sb := strings.Builder{}
	sb.WriteByte(q)
	for _, r := range s {
		switch {
		case r == rune(q) || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			sb.WriteString(`\x`)
			sb.WriteString(hex2(byte(r)))
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}

func quoteBytes(b []byte) string {
	q := byte('\'')
	if strings.IndexByte(string(b), '\'') >= 0 && strings.IndexByte(string(b), '"') < 0 {
		q = '"'
	}
	sb := strings.Builder{}
	sb.WriteByte(q)
	for _, c := range b {
		switch {
		case c == q || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			sb.WriteString(`\x`)
			sb.WriteString(hex2(c))
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}

func hex2(c byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[c>>4], digits[c&0xf]})
}
