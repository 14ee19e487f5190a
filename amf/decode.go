package amf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrUnsupportedMarker is returned for markers the decoder does not handle.
var ErrUnsupportedMarker = errors.New("amf: unsupported marker")

// Property is one name/value pair of an object or ECMA array.
type Property struct {
	Name  string
	Value any
}

// Properties is a decoded object or ECMA array, in wire order.
type Properties []Property

// Get returns the value of the first property called name.
func (p Properties) Get(name string) (any, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return nil, false
}

// Decoder reads AMF0 values.
//
// Values decode to float64, bool, string, nil (null and undefined),
// Properties (object, ECMA array) and []any (strict array). Dates decode to
// their float64 millisecond timestamp. References resolve to the value they
// point at.
type Decoder struct {
	r         io.Reader
	refs      []any
	bytesRead int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// BytesRead returns the number of bytes consumed so far.
func (d *Decoder) BytesRead() int { return d.bytesRead }

// DecodeAll decodes every value in b.
func DecodeAll(b []byte) ([]any, error) {
	d := NewDecoder(bytes.NewReader(b))
	var values []any
	for d.bytesRead < len(b) {
		v, err := d.Decode()
		if err != nil {
			return values, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Decode reads one marker and its value.
func (d *Decoder) Decode() (any, error) {
	marker, err := d.readByte()
	if err != nil {
		return nil, err
	}
	return d.decodeValue(Marker(marker))
}

// DecodeName reads a property name: 2 bytes length, then the bytes.
func (d *Decoder) DecodeName() (string, error) {
	return d.readString(2)
}

func (d *Decoder) decodeValue(marker Marker) (any, error) {
	switch marker {
	case Number:
		return d.readDouble()
	case Boolean:
		b, err := d.readByte()
		return b != 0, err
	case String:
		return d.readString(2)
	case LongString:
		return d.readString(4)
	case Null, Undefined:
		return nil, nil
	case Object:
		slot := d.reserveRef()
		props, err := d.readProperties()
		d.refs[slot] = props
		return props, err
	case ECMAArray:
		// the count is advisory, the end marker terminates the array
		if _, err := d.readBytes(4); err != nil {
			return nil, err
		}
		slot := d.reserveRef()
		props, err := d.readProperties()
		d.refs[slot] = props
		return props, err
	case StrictArray:
		data, err := d.readBytes(4)
		if err != nil {
			return nil, err
		}
		count := binary.BigEndian.Uint32(data)
		slot := d.reserveRef()
		values := make([]any, 0, min(count, 1024))
		for i := uint32(0); i < count; i++ {
			v, err := d.Decode()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		d.refs[slot] = values
		return values, nil
	case Reference:
		data, err := d.readBytes(2)
		if err != nil {
			return nil, err
		}
		index := int(binary.BigEndian.Uint16(data))
		if index >= len(d.refs) {
			return nil, fmt.Errorf("amf: reference %d out of range", index)
		}
		return d.refs[index], nil
	case Date:
		v, err := d.readDouble()
		if err != nil {
			return nil, err
		}
		// time zone, reserved
		_, err = d.readBytes(2)
		return v, err
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedMarker, byte(marker))
	}
}

func (d *Decoder) reserveRef() int {
	d.refs = append(d.refs, nil)
	return len(d.refs) - 1
}

func (d *Decoder) readProperties() (Properties, error) {
	var props Properties
	for {
		name, err := d.DecodeName()
		if err != nil {
			return props, err
		}
		marker, err := d.readByte()
		if err != nil {
			return props, err
		}
		if name == "" && Marker(marker) == ObjectEnd {
			return props, nil
		}
		v, err := d.decodeValue(Marker(marker))
		if err != nil {
			return props, err
		}
		props = append(props, Property{Name: name, Value: v})
	}
}

func (d *Decoder) readDouble() (float64, error) {
	data, err := d.readBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
}

func (d *Decoder) readString(lengthSize int) (string, error) {
	data, err := d.readBytes(lengthSize)
	if err != nil {
		return "", err
	}
	var n int
	if lengthSize == 2 {
		n = int(binary.BigEndian.Uint16(data))
	} else {
		n = int(binary.BigEndian.Uint32(data))
	}
	data, err = d.readBytes(n)
	return string(data), err
}

func (d *Decoder) readByte() (byte, error) {
	data, err := d.readBytes(1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// smallRead is the largest read served from a buffer sized up front. Longer
// reads grow with the data actually received, so a declared length cannot
// force an allocation larger than the input.
const smallRead = 512

func (d *Decoder) readBytes(n int) ([]byte, error) {
	if n <= smallRead {
		buf := make([]byte, n)
		read, err := io.ReadFull(d.r, buf)
		d.bytesRead += read
		if err != nil {
			return nil, err
		}
		return buf, nil
	}

	var buf bytes.Buffer
	read, err := io.CopyN(&buf, d.r, int64(n))
	d.bytesRead += int(read)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}
