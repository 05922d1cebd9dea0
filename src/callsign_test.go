package borzoi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCallsignFromString(t *testing.T) {
	var ex exception_t
	var c = callsignFromString("DF9RY-7*", nil, &ex)
	require.NotZero(t, c)

	// Six shifted characters, space padded, then the SSID octet.
	assert.Equal(t, byte('D')<<1, cs_octet(c, 0))
	assert.Equal(t, byte('F')<<1, cs_octet(c, 1))
	assert.Equal(t, byte('9')<<1, cs_octet(c, 2))
	assert.Equal(t, byte('R')<<1, cs_octet(c, 3))
	assert.Equal(t, byte('Y')<<1, cs_octet(c, 4))
	assert.Equal(t, byte(' ')<<1, cs_octet(c, 5))
	assert.Equal(t, byte(0x60|(7<<1)|0x80), cs_octet(c, 6))

	assert.Equal(t, 7, getSsid(c))
	assert.True(t, getHBit(c))
	assert.Equal(t, "DF9RY-7*", callsignToString(c))
}

func TestCallsignFromStringLowercase(t *testing.T) {
	var ex exception_t
	var c = callsignFromString("df9ry-7", nil, &ex)
	require.NotZero(t, c)
	assert.Equal(t, "DF9RY-7", callsignToString(c))
}

func TestCallsignFromStringDefaults(t *testing.T) {
	var ex exception_t
	var c = callsignFromString("N0CALL", nil, &ex)
	require.NotZero(t, c)
	assert.Equal(t, 0, getSsid(c))
	assert.False(t, getHBit(c))
	assert.Equal(t, "N0CALL-0", callsignToString(c))
}

func TestCallsignFromStringErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too long", "TOOLONG1"},
		{"too short", ""},
		{"bad char", "AB.CD"},
		{"ssid out of range", "CALL-16"},
		{"ssid missing", "CALL-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ex exception_t
			var c = callsignFromString(tt.input, nil, &ex)
			assert.Zero(t, c)
			assert.NotEmpty(t, ex.message)
		})
	}
}

func TestCallsignRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var call = rapid.StringMatching(`[A-Z0-9]{1,6}`).Draw(t, "call")
		var ssid = rapid.IntRange(0, 15).Draw(t, "ssid")
		var h = rapid.Bool().Draw(t, "h")

		var s = call + "-" + itoa(ssid)
		if h {
			s += "*"
		}

		var ex exception_t
		var c = callsignFromString(s, nil, &ex)
		require.NotZero(t, c, "input %q: %s", s, ex.message)
		assert.Equal(t, s, callsignToString(c))
	})
}

func itoa(n int) string {
	if n >= 10 {
		return string([]byte{'1', byte('0' + n - 10)})
	}
	return string([]byte{byte('0' + n)})
}

func TestAddressFieldFromString(t *testing.T) {
	var ex exception_t
	var source = callsignFromString("N0CALL-0", nil, &ex)
	require.NotZero(t, source)

	var af addressField_t
	require.True(t, addressFieldFromString(source, "APRS VIA WIDE1-1 WIDE2-2", &af, &ex),
		ex.message)

	assert.Equal(t, "APRS-0", callsignToString(af.destination))
	assert.Equal(t, "WIDE1-1", callsignToString(af.repeaters[0]))
	assert.Equal(t, "WIDE2-2", callsignToString(af.repeaters[1]))
	assert.Equal(t, 2, getNRepeaters(&af))

	// X bit marks the end of the address field, on the last digi only.
	assert.False(t, getXBit(af.source))
	assert.False(t, getXBit(af.repeaters[0]))
	assert.True(t, getXBit(af.repeaters[1]))
}

func TestAddressFieldNoRepeaters(t *testing.T) {
	var ex exception_t
	var source = callsignFromString("DF9RY-7", nil, &ex)

	var af addressField_t
	require.True(t, addressFieldFromString(source, "APRS", &af, &ex))
	assert.Equal(t, 0, getNRepeaters(&af))
	assert.True(t, getXBit(af.source))
}

func TestAddressFieldTooManyRepeaters(t *testing.T) {
	var ex exception_t
	var source = callsignFromString("N0CALL", nil, &ex)

	var af addressField_t
	assert.False(t, addressFieldFromString(source, "APRS VIA A B C", &af, &ex))
	assert.Contains(t, ex.message, "Too many repeaters")
}

func TestAddressFieldWireRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var ex exception_t
		var source = callsignFromString("N0CALL-3", nil, &ex)

		var digis = []string{"", " VIA WIDE1-1", " VIA WIDE1-1 WIDE2-2"}
		var dest = "APRS-1" + rapid.SampledFrom(digis).Draw(t, "digis")

		var af addressField_t
		require.True(t, addressFieldFromString(source, dest, &af, &ex))

		var buf = make([]byte, getFrameAddressLength(&af))
		var n = putFrameAddress(&af, buf)
		require.Equal(t, len(buf), n)

		var af2 addressField_t
		require.Equal(t, n, getFrameAddress(buf, &af2, &ex))
		assert.Equal(t, af, af2)
	})
}

func TestAddressFieldToString(t *testing.T) {
	var ex exception_t
	var source = callsignFromString("N0CALL", nil, &ex)
	var af addressField_t
	require.True(t, addressFieldFromString(source, "APRS VIA WIDE1-1", &af, &ex))

	var s = addressFieldToString(&af)
	assert.True(t, strings.HasPrefix(s, "N0CALL-0>APRS-0"), s)
	assert.Contains(t, s, "WIDE1-1")
}
