// Package amf encodes and decodes AMF0 values.
//
// The Encode functions write one value into a caller owned window
// buf[offset:end] and return the offset just past the value, or Overflow if
// the value does not fit. They never allocate and never write outside the
// window; a failed call leaves buf untouched.
//
// Format reference: https://www.adobe.com/content/dam/acom/en/devnet/pdf/amf0-file-format-specification.pdf
package amf

import (
	"encoding/binary"
	"math"
)

// Overflow is returned when a value does not fit in its window.
const Overflow = -1

// Marker is an AMF0 type marker.
type Marker byte

// AMF0 markers.
const (
	Number      Marker = 0x00 // 8 bytes IEEE-754 double, big endian
	Boolean     Marker = 0x01 // 1 byte, 0 false, true otherwise
	String      Marker = 0x02 // 2 bytes length, then UTF-8
	Object      Marker = 0x03
	Null        Marker = 0x05
	Undefined   Marker = 0x06
	Reference   Marker = 0x07
	ECMAArray   Marker = 0x08 // 4 bytes count, then properties
	ObjectEnd   Marker = 0x09 // preceded by an empty property name
	StrictArray Marker = 0x0A
	Date        Marker = 0x0B
	LongString  Marker = 0x0C // 4 bytes length, then UTF-8
)

// window reports whether n bytes fit at offset within buf[:end].
func window(buf []byte, offset, end, n int) bool {
	return offset >= 0 && end <= len(buf) && offset <= end && n <= end-offset
}

func stringWidth(s string) int {
	if len(s) < 65536 {
		return 1 + 2 + len(s)
	}
	return 1 + 4 + len(s)
}

// EncodeBoolean writes a boolean value.
func EncodeBoolean(buf []byte, offset, end int, v bool) int {
	if !window(buf, offset, end, 2) {
		return Overflow
	}
	return putBoolean(buf, offset, v)
}

// EncodeInt writes v as a raw 32-bit big endian integer, without marker.
func EncodeInt(buf []byte, offset, end int, v int32) int {
	if !window(buf, offset, end, 4) {
		return Overflow
	}
	binary.BigEndian.PutUint32(buf[offset:], uint32(v))
	return offset + 4
}

// EncodeInt24 writes the low 24 bits of v, big endian, without marker.
func EncodeInt24(buf []byte, offset, end int, v int32) int {
	if !window(buf, offset, end, 3) {
		return Overflow
	}
	putInt24(buf, offset, v)
	return offset + 3
}

// EncodeNumber writes a number value.
func EncodeNumber(buf []byte, offset, end int, v float64) int {
	if !window(buf, offset, end, 9) {
		return Overflow
	}
	return putNumber(buf, offset, v)
}

// EncodeString writes a string value, as a long string past 65535 bytes.
// The bytes of v are copied as is.
func EncodeString(buf []byte, offset, end int, v string) int {
	if !window(buf, offset, end, stringWidth(v)) {
		return Overflow
	}
	return putString(buf, offset, v)
}

// EncodeNamedBoolean writes an object property name followed by a boolean.
func EncodeNamedBoolean(buf []byte, offset, end int, name string, v bool) int {
	if len(name) > math.MaxUint16 || !window(buf, offset, end, 2+len(name)+2) {
		return Overflow
	}
	return putBoolean(buf, putName(buf, offset, name), v)
}

// EncodeNamedNumber writes an object property name followed by a number.
func EncodeNamedNumber(buf []byte, offset, end int, name string, v float64) int {
	if len(name) > math.MaxUint16 || !window(buf, offset, end, 2+len(name)+9) {
		return Overflow
	}
	return putNumber(buf, putName(buf, offset, name), v)
}

// EncodeNamedString writes an object property name followed by a string.
func EncodeNamedString(buf []byte, offset, end int, name, v string) int {
	if len(name) > math.MaxUint16 || !window(buf, offset, end, 2+len(name)+stringWidth(v)) {
		return Overflow
	}
	return putString(buf, putName(buf, offset, name), v)
}

func putBoolean(buf []byte, offset int, v bool) int {
	buf[offset] = byte(Boolean)
	if v {
		buf[offset+1] = 0x01
	} else {
		buf[offset+1] = 0x00
	}
	return offset + 2
}

func putInt24(buf []byte, offset int, v int32) {
	buf[offset] = byte(v >> 16)
	buf[offset+1] = byte(v >> 8)
	buf[offset+2] = byte(v)
}

func putNumber(buf []byte, offset int, v float64) int {
	buf[offset] = byte(Number)
	binary.BigEndian.PutUint64(buf[offset+1:], math.Float64bits(v))
	return offset + 9
}

func putString(buf []byte, offset int, v string) int {
	if len(v) < 65536 {
		buf[offset] = byte(String)
		binary.BigEndian.PutUint16(buf[offset+1:], uint16(len(v)))
		offset += 3
	} else {
		buf[offset] = byte(LongString)
		binary.BigEndian.PutUint32(buf[offset+1:], uint32(len(v)))
		offset += 5
	}
	return offset + copy(buf[offset:], v)
}

// putName writes a property name: 2 bytes length, then the bytes.
func putName(buf []byte, offset int, name string) int {
	binary.BigEndian.PutUint16(buf[offset:], uint16(len(name)))
	offset += 2
	return offset + copy(buf[offset:], name)
}
