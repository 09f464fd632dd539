package pvm

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"ricklepick.dev/ricklepick/pklmem"
)

func utf8Text(data []byte) (pklmem.String, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %q is not UTF-8", ErrInvalidTextEncoding, data)
	}
	return pklmem.String(data), nil
}

// parseDecimal parses the argument of INT and the memo opcodes.
// INT arguments are integer literals, see parseIntLiteral, and the
// protocol 0 spellings of True and False are "01" and "00".
// Memo indexes are plain decimal.
func parseDecimal(line []byte, isInt bool) (pklmem.Value, error) {
	s := string(line)
	var x *big.Int
	if isInt {
		switch s {
		case "00":
			return pklmem.False, nil
		case "01":
			return pklmem.True, nil
		}
		var err error
		if x, err = parseIntLiteral(s); err != nil {
			return nil, err
		}
	} else {
		var ok bool
		if x, ok = new(big.Int).SetString(s, 10); !ok {
			return nil, fmt.Errorf("%w: %q is not a decimal integer", ErrMalformedArgument, s)
		}
	}
	if x.IsInt64() && x.Int64() >= math.MinInt32 && x.Int64() <= math.MaxInt32 {
		return pklmem.Int(x.Int64()), nil
	}
	return pklmem.NewLong(x), nil
}

// parseLong parses the argument of LONG, an integer literal which may have a trailing L.
func parseLong(s string) (pklmem.Long, error) {
	x, err := parseIntLiteral(strings.TrimSuffix(s, "L"))
	if err != nil {
		return pklmem.Long{}, err
	}
	return pklmem.NewLong(x), nil
}

// parseIntLiteral parses s with the rules of Python's int(s, 0):
// surrounding spaces, an optional sign, and decimal, 0x, 0o or 0b digits with single underscores between them.
// A decimal literal may only start with 0 if it is zero.
func parseIntLiteral(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if len(digits) > 1 && digits[0] == '0' && !strings.ContainsRune("xXoObB", rune(digits[1])) {
		// Go would read this as octal
		if strings.Trim(digits, "0_") != "" {
			return nil, fmt.Errorf("%w: %q has a leading zero", ErrMalformedArgument, s)
		}
	}
	x, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrMalformedArgument, s)
	}
	return x, nil
}

// unquote decodes the argument of STRING: a quoted literal with backslash escapes.
func unquote(line []byte) ([]byte, error) {
	if len(line) < 2 || (line[0] != '\'' && line[0] != '"') || line[len(line)-1] != line[0] {
		return nil, fmt.Errorf("%w: STRING argument %q is not quoted", ErrMalformedArgument, line)
	}
	in := line[1 : len(line)-1]
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		c := in[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(in) {
			return nil, fmt.Errorf("%w: trailing backslash in %q", ErrMalformedArgument, line)
		}
		switch c = in[i]; c {
		case '\n':
		case '\\', '\'', '"':
			out = append(out, c)
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'v':
			out = append(out, '\v')
		case 'x':
			if i+2 >= len(in) {
				return nil, fmt.Errorf("%w: short \\x escape in %q", ErrMalformedArgument, line)
			}
			x, err := strconv.ParseUint(string(in[i+1:i+3]), 16, 8)
			if err != nil {
				return nil, fmt.Errorf("%w: bad \\x escape in %q", ErrMalformedArgument, line)
			}
			out = append(out, byte(x))
			i += 2
		case '0', '1', '2', '3', '4', '5', '6', '7':
			var x int
			j := i
			for ; j < len(in) && j < i+3 && in[j] >= '0' && in[j] <= '7'; j++ {
				x = x*8 + int(in[j]-'0')
			}
			out = append(out, byte(x))
			i = j - 1
		default:
			out = append(out, '\\', c)
		}
	}
	return out, nil
}

// rawUnicodeEscape decodes the argument of UNICODE.
// Bytes are Latin-1 code points, except for \uXXXX and \UXXXXXXXX escapes.
func rawUnicodeEscape(line []byte) (pklmem.String, error) {
	var sb strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) && (line[i+1] == 'u' || line[i+1] == 'U') {
			width := 4
			if line[i+1] == 'U' {
				width = 8
			}
			if i+2+width > len(line) {
				return "", fmt.Errorf("%w: short unicode escape in %q", ErrInvalidTextEncoding, line)
			}
			x, err := strconv.ParseUint(string(line[i+2:i+2+width]), 16, 32)
			if err != nil || x > utf8.MaxRune || (x >= 0xd800 && x < 0xe000) {
				return "", fmt.Errorf("%w: bad unicode escape in %q", ErrInvalidTextEncoding, line)
			}
			sb.WriteRune(rune(x))
			i += 1 + width
			continue
		}
		sb.WriteRune(rune(c))
	}
	return pklmem.String(sb.String()), nil
}
