/*
Package idbkey implements the binary-comparable key codec described in
spec §4.1: validation of arbitrary Go values as IndexedDB keys, a total
cross-type ordering, and a byte encoding whose unsigned lexical order
matches that ordering exactly (so a btree keyed on Encode's output, such
as a bbolt bucket, iterates in key order for free).

Layout: one tag byte (Number 0x10, Date 0x20, String 0x30, Binary 0x40,
Array 0x50) followed by type-specific bytes. Doubles are big-endian
IEEE-754 with the sign bit toggled (non-negative) or all bits inverted
(negative) so unsigned byte comparison reproduces numeric order. Strings
are big-endian UTF-16 code units with NUL escaped to "00 01" and a "00 00"
terminator; binary uses the same escape over raw bytes. Arrays concatenate
their elements' encodings and end with a single 0x00 terminator byte,
which sorts below every tag byte and is what makes a shorter array a
prefix-less-than a longer one with a matching prefix.

decode is tolerant of an old encoding that omitted the trailing "00 00"
on a string/binary segment that reaches the end of the buffer; encode
always writes the terminator.
*/
package idbkey
