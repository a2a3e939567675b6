package idbkey

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

const (
	tagNumber = 0x10
	tagDate   = 0x20
	tagString = 0x30
	tagBinary = 0x40
	tagArray  = 0x50

	arrayTerminator = 0x00
)

// Encode produces a byte sequence such that unsigned lexical comparison
// of Encode(a) and Encode(b) matches sign(Compare(a, b)).
func Encode(k Key) []byte {
	var buf []byte
	return appendKey(buf, k)
}

func appendKey(buf []byte, k Key) []byte {
	switch k.kind {
	case KindNumber:
		buf = append(buf, tagNumber)
		return appendDouble(buf, k.num)
	case KindDate:
		buf = append(buf, tagDate)
		return appendDouble(buf, k.num)
	case KindString:
		buf = append(buf, tagString)
		return appendUTF16Escaped(buf, k.str)
	case KindBinary:
		buf = append(buf, tagBinary)
		return appendBytesEscaped(buf, k.bin)
	case KindArray:
		buf = append(buf, tagArray)
		for _, e := range k.arr {
			buf = appendKey(buf, e)
		}
		return append(buf, arrayTerminator)
	}
	return buf
}

// appendDouble writes 8 big-endian bytes of v's IEEE-754 bit pattern,
// post-processed so unsigned byte comparison matches numeric order:
// non-negative values have the sign bit set, negative values have every
// bit inverted.
func appendDouble(buf []byte, v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(1<<63) == 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], bits)
	return append(buf, tmp[:]...)
}

func stringToUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// appendUTF16Escaped writes s as big-endian UTF-16 code units, escaping a
// literal NUL code unit (0x0000) to the two-byte sequence 00 01, then
// writes the 00 00 terminator.
func appendUTF16Escaped(buf []byte, s string) []byte {
	for _, u := range stringToUTF16(s) {
		if u == 0 {
			buf = append(buf, 0x00, 0x01)
			continue
		}
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], u)
		buf = append(buf, tmp[:]...)
	}
	return append(buf, 0x00, 0x00)
}

// appendBytesEscaped writes b raw, escaping a literal 0x00 byte to the
// two-byte sequence 00 01, then writes the 00 00 terminator.
func appendBytesEscaped(buf []byte, b []byte) []byte {
	for _, c := range b {
		if c == 0x00 {
			buf = append(buf, 0x00, 0x01)
			continue
		}
		buf = append(buf, c)
	}
	return append(buf, 0x00, 0x00)
}
