package spec

// ArgKind is the wire format of the argument following an opcode.
type ArgKind uint8

const (
	ArgNone ArgKind = iota
	// ArgUInt1 is a single unsigned byte
	ArgUInt1
	// ArgUInt2 is a little-endian uint16
	ArgUInt2
	// ArgInt4 is a little-endian int32
	ArgInt4
	// ArgUInt4 is a little-endian uint32
	ArgUInt4
	// ArgUInt8 is a little-endian uint64
	ArgUInt8
	// ArgLong1 is a 1 byte length followed by a little-endian two's complement integer
	ArgLong1
	// ArgLong4 is a 4 byte signed length followed by a little-endian two's complement integer
	ArgLong4
	// ArgDecimalNLShort is a newline terminated decimal integer
	ArgDecimalNLShort
	// ArgDecimalNLLong is a newline terminated decimal integer, optionally suffixed with L
	ArgDecimalNLLong
	// ArgFloatNL is a newline terminated decimal float
	ArgFloatNL
	// ArgFloat8 is a big-endian IEEE-754 double
	ArgFloat8
	// ArgStringNL is a newline terminated quoted string literal
	ArgStringNL
	// ArgStringNLNoEscape is a newline terminated raw line
	ArgStringNLNoEscape
	// ArgStringNLNoEscapePair is two newline terminated raw lines
	ArgStringNLNoEscapePair
	ArgString1
	ArgString4
	ArgBytes1
	ArgBytes4
	ArgBytes8
	// ArgUnicodeStringNL is a newline terminated raw-unicode-escape line
	ArgUnicodeStringNL
	ArgUnicodeString1
	ArgUnicodeString4
	ArgUnicodeString8
)

var argNames = [...]string{
	ArgNone:                 "none",
	ArgUInt1:                "uint1",
	ArgUInt2:                "uint2",
	ArgInt4:                 "int4",
	ArgUInt4:                "uint4",
	ArgUInt8:                "uint8",
	ArgLong1:                "long1",
	ArgLong4:                "long4",
	ArgDecimalNLShort:       "decimalnl_short",
	ArgDecimalNLLong:        "decimalnl_long",
	ArgFloatNL:              "floatnl",
	ArgFloat8:               "float8",
	ArgStringNL:             "stringnl",
	ArgStringNLNoEscape:     "stringnl_noescape",
	ArgStringNLNoEscapePair: "stringnl_noescape_pair",
	ArgString1:              "string1",
	ArgString4:              "string4",
	ArgBytes1:               "bytes1",
	ArgBytes4:               "bytes4",
	ArgBytes8:               "bytes8",
	ArgUnicodeStringNL:      "unicodestringnl",
	ArgUnicodeString1:       "unicodestring1",
	ArgUnicodeString4:       "unicodestring4",
	ArgUnicodeString8:       "unicodestring8",
}

func (k ArgKind) String() string {
	if int(k) < len(argNames) {
		return argNames[k]
	}
	return "unknown"
}

// FixedLen returns the number of argument bytes for fixed width kinds.
// Variable width kinds return -1.
func (k ArgKind) FixedLen() int {
	switch k {
	case ArgNone:
		return 0
	case ArgUInt1:
		return 1
	case ArgUInt2:
		return 2
	case ArgInt4, ArgUInt4:
		return 4
	case ArgUInt8, ArgFloat8:
		return 8
	default:
		return -1
	}
}

// Info is information about an Op
type Info struct {
	// Name is the mnemonic used by format listings
	Name string
	// Code is the wire byte
	Code byte
	// Arg is the format of the argument following the opcode
	Arg ArgKind
	// Proto is the protocol version which introduced the opcode
	Proto int
}

func (p Op) Info() Info {
	return infos[p]
}

// Arg returns the argument format of p.
func (p Op) Arg() ArgKind {
	return infos[p].Arg
}

var infos = [numOps]Info{
	Mark:    {"MARK", '(', ArgNone, 0},
	Stop:    {"STOP", '.', ArgNone, 0},
	Pop:     {"POP", '0', ArgNone, 0},
	PopMark: {"POP_MARK", '1', ArgNone, 1},
	Dup:     {"DUP", '2', ArgNone, 0},

	Int:     {"INT", 'I', ArgDecimalNLShort, 0},
	BinInt:  {"BININT", 'J', ArgInt4, 1},
	BinInt1: {"BININT1", 'K', ArgUInt1, 1},
	BinInt2: {"BININT2", 'M', ArgUInt2, 1},
	Long:    {"LONG", 'L', ArgDecimalNLLong, 0},
	Long1:   {"LONG1", 0x8a, ArgLong1, 2},
	Long4:   {"LONG4", 0x8b, ArgLong4, 2},

	String:          {"STRING", 'S', ArgStringNL, 0},
	BinString:       {"BINSTRING", 'T', ArgString4, 1},
	ShortBinString:  {"SHORT_BINSTRING", 'U', ArgString1, 1},
	BinBytes:        {"BINBYTES", 'B', ArgBytes4, 3},
	ShortBinBytes:   {"SHORT_BINBYTES", 'C', ArgBytes1, 3},
	BinBytes8:       {"BINBYTES8", 0x8e, ArgBytes8, 4},
	ByteArray8:      {"BYTEARRAY8", 0x96, ArgBytes8, 5},
	NextBuffer:      {"NEXT_BUFFER", 0x97, ArgNone, 5},
	ReadonlyBuffer:  {"READONLY_BUFFER", 0x98, ArgNone, 5},
	Unicode:         {"UNICODE", 'V', ArgUnicodeStringNL, 0},
	ShortBinUnicode: {"SHORT_BINUNICODE", 0x8c, ArgUnicodeString1, 4},
	BinUnicode:      {"BINUNICODE", 'X', ArgUnicodeString4, 1},
	BinUnicode8:     {"BINUNICODE8", 0x8d, ArgUnicodeString8, 4},

	None:     {"NONE", 'N', ArgNone, 0},
	NewTrue:  {"NEWTRUE", 0x88, ArgNone, 2},
	NewFalse: {"NEWFALSE", 0x89, ArgNone, 2},

	Float:    {"FLOAT", 'F', ArgFloatNL, 0},
	BinFloat: {"BINFLOAT", 'G', ArgFloat8, 1},

	EmptyList: {"EMPTY_LIST", ']', ArgNone, 1},
	Append:    {"APPEND", 'a', ArgNone, 0},
	Appends:   {"APPENDS", 'e', ArgNone, 1},
	List:      {"LIST", 'l', ArgNone, 0},

	EmptyTuple: {"EMPTY_TUPLE", ')', ArgNone, 1},
	Tuple:      {"TUPLE", 't', ArgNone, 0},
	Tuple1:     {"TUPLE1", 0x85, ArgNone, 2},
	Tuple2:     {"TUPLE2", 0x86, ArgNone, 2},
	Tuple3:     {"TUPLE3", 0x87, ArgNone, 2},

	EmptyDict: {"EMPTY_DICT", '}', ArgNone, 1},
	Dict:      {"DICT", 'd', ArgNone, 0},
	SetItem:   {"SETITEM", 's', ArgNone, 0},
	SetItems:  {"SETITEMS", 'u', ArgNone, 1},

	EmptySet:  {"EMPTY_SET", 0x8f, ArgNone, 4},
	AddItems:  {"ADDITEMS", 0x90, ArgNone, 4},
	FrozenSet: {"FROZENSET", 0x91, ArgNone, 4},

	Get:        {"GET", 'g', ArgDecimalNLShort, 0},
	BinGet:     {"BINGET", 'h', ArgUInt1, 1},
	LongBinGet: {"LONG_BINGET", 'j', ArgUInt4, 1},
	Put:        {"PUT", 'p', ArgDecimalNLShort, 0},
	BinPut:     {"BINPUT", 'q', ArgUInt1, 1},
	LongBinPut: {"LONG_BINPUT", 'r', ArgUInt4, 1},
	Memoize:    {"MEMOIZE", 0x94, ArgNone, 4},

	Ext1: {"EXT1", 0x82, ArgUInt1, 2},
	Ext2: {"EXT2", 0x83, ArgUInt2, 2},
	Ext4: {"EXT4", 0x84, ArgInt4, 2},

	Global:      {"GLOBAL", 'c', ArgStringNLNoEscapePair, 0},
	StackGlobal: {"STACK_GLOBAL", 0x93, ArgNone, 4},
	Reduce:      {"REDUCE", 'R', ArgNone, 0},
	Build:       {"BUILD", 'b', ArgNone, 0},
	Inst:        {"INST", 'i', ArgStringNLNoEscapePair, 0},
	Obj:         {"OBJ", 'o', ArgNone, 1},
	NewObj:      {"NEWOBJ", 0x81, ArgNone, 2},
	NewObjEx:    {"NEWOBJ_EX", 0x92, ArgNone, 4},

	Proto: {"PROTO", 0x80, ArgUInt1, 2},
	Frame: {"FRAME", 0x95, ArgUInt8, 4},

	PersID:    {"PERSID", 'P', ArgStringNLNoEscape, 0},
	BinPersID: {"BINPERSID", 'Q', ArgNone, 1},
}
