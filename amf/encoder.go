package amf

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is returned for values the encoder cannot represent.
	ErrUnsupportedType = errors.New("amf: unsupported parameter type")
	// ErrBufferTooSmall is returned when encoding overflows the buffer.
	ErrBufferTooSmall = errors.New("amf: buffer too small")
)

// NullValue encodes as the AMF0 null marker.
type NullValue struct{}

// Named is an object property. Value must be a bool, float64 or string.
type Named struct {
	Name  string
	Value any
}

// ObjectValue is an anonymous AMF0 object. Its parameters are usually Named.
type ObjectValue struct {
	Params []any
}

// Add appends a parameter.
func (o *ObjectValue) Add(param any) { o.Params = append(o.Params, param) }

// AddNamed appends a named parameter.
func (o *ObjectValue) AddNamed(name string, value any) {
	o.Params = append(o.Params, Named{Name: name, Value: value})
}

// EcmaArray is an associative array. Its parameters are usually Named.
type EcmaArray struct {
	Params []any
}

// Add appends a parameter.
func (a *EcmaArray) Add(param any) { a.Params = append(a.Params, param) }

// AddNamed appends a named parameter.
func (a *EcmaArray) AddNamed(name string, value any) {
	a.Params = append(a.Params, Named{Name: name, Value: value})
}

// Encoder collects parameters and encodes them in order.
//
// Supported parameters: bool, int32 and int (raw 32-bit integer), float64,
// string, NullValue, Named, *ObjectValue and *EcmaArray.
type Encoder struct {
	params []any
}

// Add appends a parameter.
func (e *Encoder) Add(param any) { e.params = append(e.params, param) }

// AddNamed appends a named parameter.
func (e *Encoder) AddNamed(name string, value any) {
	e.params = append(e.params, Named{Name: name, Value: value})
}

// Reset drops all parameters.
func (e *Encoder) Reset() { e.params = e.params[:0] }

// MinBufferSize returns the number of bytes Encode produces.
func (e *Encoder) MinBufferSize() (int, error) {
	return sizeOf(e.params)
}

func sizeOf(params []any) (int, error) {
	total := 0
	for _, p := range params {
		n, err := paramSize(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func paramSize(p any) (int, error) {
	switch v := p.(type) {
	case bool:
		return 2, nil
	case int, int32:
		return 4, nil
	case float64:
		return 9, nil
	case string:
		return stringWidth(v), nil
	case NullValue:
		return 1, nil
	case Named:
		n, err := paramSize(v.Value)
		if err != nil {
			return 0, err
		}
		return 2 + len(v.Name) + n, nil
	case *ObjectValue:
		n, err := sizeOf(v.Params)
		return 1 + n + 3, err
	case *EcmaArray:
		n, err := sizeOf(v.Params)
		return 1 + 4 + n + 3, err
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, p)
	}
}

// Encode returns the encoded parameters in a new buffer.
func (e *Encoder) Encode() ([]byte, error) {
	size, err := e.MinBufferSize()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := e.EncodeTo(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// EncodeTo encodes the parameters at the start of buf and returns the number
// of bytes written.
func (e *Encoder) EncodeTo(buf []byte) (int, error) {
	offset := 0
	for _, p := range e.params {
		next, err := encodeParam(buf, offset, p)
		if err != nil {
			return offset, err
		}
		offset = next
	}
	return offset, nil
}

func overflow(offset int) error {
	return fmt.Errorf("%w at offset %d", ErrBufferTooSmall, offset)
}

func encodeParam(buf []byte, offset int, p any) (int, error) {
	end := len(buf)
	next := Overflow

	switch v := p.(type) {
	case bool:
		next = EncodeBoolean(buf, offset, end, v)
	case int:
		next = EncodeInt(buf, offset, end, int32(v))
	case int32:
		next = EncodeInt(buf, offset, end, v)
	case float64:
		next = EncodeNumber(buf, offset, end, v)
	case string:
		next = EncodeString(buf, offset, end, v)
	case NullValue:
		if offset < end {
			buf[offset] = byte(Null)
			next = offset + 1
		}
	case Named:
		switch value := v.Value.(type) {
		case bool:
			next = EncodeNamedBoolean(buf, offset, end, v.Name, value)
		case float64:
			next = EncodeNamedNumber(buf, offset, end, v.Name, value)
		case string:
			next = EncodeNamedString(buf, offset, end, v.Name, value)
		default:
			return offset, fmt.Errorf("%w: named %T", ErrUnsupportedType, v.Value)
		}
	case *ObjectValue:
		return encodeComposite(buf, offset, Object, -1, v.Params)
	case *EcmaArray:
		return encodeComposite(buf, offset, ECMAArray, len(v.Params), v.Params)
	default:
		return offset, fmt.Errorf("%w: %T", ErrUnsupportedType, p)
	}

	if next < 0 {
		return offset, overflow(offset)
	}
	return next, nil
}

// encodeComposite writes marker, an optional 32-bit count, params and the
// object end sequence 00 00 09.
func encodeComposite(buf []byte, offset int, marker Marker, count int, params []any) (int, error) {
	if offset >= len(buf) {
		return offset, overflow(offset)
	}
	buf[offset] = byte(marker)
	next := offset + 1

	if count >= 0 {
		if next = EncodeInt(buf, next, len(buf), int32(count)); next < 0 {
			return offset, overflow(offset + 1)
		}
	}

	for _, p := range params {
		var err error
		if next, err = encodeParam(buf, next, p); err != nil {
			return next, err
		}
	}

	end := EncodeInt24(buf, next, len(buf), int32(ObjectEnd))
	if end < 0 {
		return next, overflow(next)
	}
	return end, nil
}
