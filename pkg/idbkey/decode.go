package idbkey

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/cuemby/idbstore/pkg/idberrors"
)

// Decode is the exact inverse of Encode: decode(encode(k)) reconstructs k,
// including distinguishing KindDate from KindNumber by tag. It tolerates
// a legacy encoding in which a trailing string/binary segment (the last
// bytes of the buffer) omits the "00 00" terminator, per spec's
// backwards-compatibility note.
func Decode(buf []byte) (Key, error) {
	k, rest, err := decodeOne(buf)
	if err != nil {
		return Key{}, err
	}
	if len(rest) != 0 {
		return Key{}, idberrors.New(idberrors.DataError, "trailing bytes after encoded key")
	}
	return k, nil
}

// SplitFirst parses exactly one encoded key from the front of buf
// (trusting buf to contain a well-formed encoding possibly followed by
// more bytes) and returns the bytes that encode it plus whatever
// follows. This is what lets a composite "index key ++ primary key"
// byte string (storage's index bucket layout) be split back into its
// two components without ambiguity: every encoding here is
// self-delimiting (fixed-length for numbers/dates, terminator-bounded
// for strings/binary/arrays), so no valid key encoding is a prefix of
// another.
func SplitFirst(buf []byte) (first, rest []byte, err error) {
	_, tail, err := decodeOne(buf)
	if err != nil {
		return nil, nil, err
	}
	n := len(buf) - len(tail)
	return buf[:n], buf[n:], nil
}

func decodeOne(buf []byte) (Key, []byte, error) {
	if len(buf) == 0 {
		return Key{}, nil, idberrors.New(idberrors.DataError, "empty key encoding")
	}
	tag, rest := buf[0], buf[1:]
	switch tag {
	case tagNumber:
		v, rest, err := decodeDouble(rest)
		if err != nil {
			return Key{}, nil, err
		}
		return Key{kind: KindNumber, num: v}, rest, nil
	case tagDate:
		v, rest, err := decodeDouble(rest)
		if err != nil {
			return Key{}, nil, err
		}
		return Key{kind: KindDate, num: v}, rest, nil
	case tagString:
		units, rest, err := decodeEscaped(rest)
		if err != nil {
			return Key{}, nil, err
		}
		return Key{kind: KindString, str: string(utf16.Decode(units))}, rest, nil
	case tagBinary:
		raw, rest, err := decodeEscapedBytes(rest)
		if err != nil {
			return Key{}, nil, err
		}
		return Key{kind: KindBinary, bin: raw}, rest, nil
	case tagArray:
		var elems []Key
		for {
			if len(rest) == 0 {
				return Key{}, nil, idberrors.New(idberrors.DataError, "unterminated array key")
			}
			if rest[0] == arrayTerminator {
				rest = rest[1:]
				break
			}
			var k Key
			var err error
			k, rest, err = decodeOne(rest)
			if err != nil {
				return Key{}, nil, err
			}
			elems = append(elems, k)
		}
		return Key{kind: KindArray, arr: elems}, rest, nil
	default:
		return Key{}, nil, idberrors.Newf(idberrors.DataError, "unknown key tag 0x%02x", tag)
	}
}

func decodeDouble(buf []byte) (float64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, idberrors.New(idberrors.DataError, "truncated number/date encoding")
	}
	bits := binary.BigEndian.Uint64(buf[:8])
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), buf[8:], nil
}

// decodeEscaped reads UTF-16 code units up to (and consuming) a 00 00
// terminator, translating the 00 01 escape back to a literal NUL unit.
// If the buffer runs out before a terminator is found, the legacy
// unterminated form is accepted and the whole remainder is consumed.
func decodeEscaped(buf []byte) ([]uint16, []byte, error) {
	var units []uint16
	for {
		if len(buf) == 0 {
			return units, buf, nil // legacy unterminated trailing segment
		}
		if len(buf) < 2 {
			return nil, nil, idberrors.New(idberrors.DataError, "truncated string key encoding")
		}
		hi, lo := buf[0], buf[1]
		if hi == 0x00 && lo == 0x00 {
			return units, buf[2:], nil
		}
		if hi == 0x00 && lo == 0x01 {
			units = append(units, 0x0000)
			buf = buf[2:]
			continue
		}
		units = append(units, uint16(hi)<<8|uint16(lo))
		buf = buf[2:]
	}
}

func decodeEscapedBytes(buf []byte) ([]byte, []byte, error) {
	var out []byte
	for {
		if len(buf) == 0 {
			return out, buf, nil // legacy unterminated trailing segment
		}
		if buf[0] == 0x00 {
			if len(buf) < 2 {
				return nil, nil, idberrors.New(idberrors.DataError, "truncated binary key encoding")
			}
			if buf[1] == 0x00 {
				return out, buf[2:], nil
			}
			if buf[1] == 0x01 {
				out = append(out, 0x00)
				buf = buf[2:]
				continue
			}
			return nil, nil, idberrors.New(idberrors.DataError, "invalid escape in binary key encoding")
		}
		out = append(out, buf[0])
		buf = buf[1:]
	}
}
