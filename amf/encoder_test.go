package amf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Object(t *testing.T) {
	obj := &ObjectValue{}
	obj.AddNamed("app", "live")

	var e Encoder
	e.Add(obj)

	size, err := e.MinBufferSize()
	require.NoError(t, err)
	assert.Equal(t, 16, size)

	got, err := e.Encode()
	require.NoError(t, err)
	want := []byte{
		0x03,
		0x00, 0x03, 'a', 'p', 'p', 0x02, 0x00, 0x04, 'l', 'i', 'v', 'e',
		0x00, 0x00, 0x09,
	}
	assert.Equal(t, want, got)
}

func TestEncoder_EcmaArray(t *testing.T) {
	arr := &EcmaArray{}
	arr.AddNamed("ok", true)

	var e Encoder
	e.Add(arr)

	got, err := e.Encode()
	require.NoError(t, err)
	want := []byte{
		0x08, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x02, 'o', 'k', 0x01, 0x01,
		0x00, 0x00, 0x09,
	}
	assert.Equal(t, want, got)
}

func TestEncoder_Sequence(t *testing.T) {
	var e Encoder
	e.Add("_result")
	e.Add(1.0)
	e.Add(NullValue{})
	e.Add(int32(7))

	got, err := e.Encode()
	require.NoError(t, err)

	size, err := e.MinBufferSize()
	require.NoError(t, err)
	assert.Len(t, got, size)

	// raw integers carry no marker
	assert.Equal(t, []byte{0x05, 0x00, 0x00, 0x00, 0x07}, got[len(got)-5:])

	values, err := DecodeAll(got[:len(got)-4])
	require.NoError(t, err)
	assert.Equal(t, []any{"_result", 1.0, nil}, values)
}

func TestEncoder_UnsupportedType(t *testing.T) {
	var e Encoder
	e.Add(struct{}{})

	_, err := e.MinBufferSize()
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = e.Encode()
	assert.ErrorIs(t, err, ErrUnsupportedType)

	e.Reset()
	e.AddNamed("n", 3)
	_, err = e.Encode()
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncoder_EncodeTo_BufferTooSmall(t *testing.T) {
	obj := &ObjectValue{}
	obj.AddNamed("level", "status")

	var e Encoder
	e.Add("onStatus")
	e.Add(obj)

	size, err := e.MinBufferSize()
	require.NoError(t, err)

	for _, n := range []int{0, 5, 11, 12, size - 3, size - 1} {
		_, err := e.EncodeTo(make([]byte, n))
		assert.ErrorIs(t, err, ErrBufferTooSmall, "buffer of %d bytes", n)
	}

	buf := make([]byte, size)
	n, err := e.EncodeTo(buf)
	require.NoError(t, err)
	assert.Equal(t, size, n)
}

func TestEncoder_Reset(t *testing.T) {
	var e Encoder
	e.Add("a")
	e.Reset()

	got, err := e.Encode()
	require.NoError(t, err)
	assert.Empty(t, got)
}
