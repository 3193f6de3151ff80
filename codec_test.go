// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package nibe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected []byte
	}{
		{
			name:     "read request",
			msg:      &ReadRequest{Coil: 40004},
			expected: []byte{0xC0, 0x69, 0x02, 0x44, 0x9C, 0x73},
		},
		{
			name:     "write response",
			msg:      &WriteResponse{Success: true},
			expected: []byte{0x5C, 0x00, 0x20, 0x6C, 0x01, 0x01, 0x4C},
		},
		{
			name:     "read response",
			msg:      &ReadResponse{Coil: 40004, Value: 125},
			expected: []byte{0x5C, 0x00, 0x20, 0x6A, 0x06, 0x44, 0x9C, 0x7D, 0x00, 0x00, 0x00, 0xE9},
		},
		{
			name:     "read response with doubled start byte",
			msg:      &ReadResponse{Coil: 40004, Value: 0x5C},
			expected: []byte{0x5C, 0x00, 0x20, 0x6A, 0x07, 0x44, 0x9C, 0x5C, 0x5C, 0x00, 0x00, 0x00, 0x95},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.msg)
			require.NoError(t, err)
			if !bytes.Equal(tt.expected, frame) {
				t.Fatalf("Expected % x, actual % x", tt.expected, frame)
			}
			assert.NoError(t, Verify(frame))
		})
	}
}

func TestEncodeWriteRequest(t *testing.T) {
	frame, err := Encode(&WriteRequest{Coil: 47011, Value: -2})
	require.NoError(t, err)
	// 47011 = 0xB7A3, -2 = 0xFFFFFFFE
	assert.Equal(t, []byte{0xC0, 0x6B, 0x06, 0xA3, 0xB7, 0xFE, 0xFF, 0xFF, 0xFF}, frame[:9])
	assert.NoError(t, Verify(frame))
}

func TestEncodeChecksumNeverLooksLikeStart(t *testing.T) {
	// 0x20 ^ 0x6C ^ 0x01 ^ 0x11 == 0x5C
	frame, err := encodeFromNibe(AddrModbus40, CmdWriteResponse, []byte{0x11})
	require.NoError(t, err)
	assert.Equal(t, byte(0xC5), frame[len(frame)-1])
	assert.NoError(t, Verify(frame))
}

func TestEncodeRejects(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrMalformedMessage)

	values := make([]CoilValue, maxReadOutRecords+1)
	_, err = Encode(&DataReadOut{Values: values})
	assert.ErrorIs(t, err, ErrIllegalPayload)

	_, err = Encode(&DataReadOut{Values: []CoilValue{{Coil: 40004, Value: -1}}})
	assert.ErrorIs(t, err, ErrIllegalPayload)
}

func TestDecodeWriteResponseWithTrailingByte(t *testing.T) {
	buf := []byte{0x5C, 0x00, 0x20, 0x6C, 0x01, 0x01, 0x4C, 0xAA}

	msg, err := Decode(buf)
	require.NoError(t, err)
	if !cmp.Equal(&WriteResponse{Success: true}, msg) {
		t.Fatalf("unexpected message: %s", cmp.Diff(&WriteResponse{Success: true}, msg))
	}
}

func TestDecodeWriteResponseFailure(t *testing.T) {
	msg, err := Decode([]byte{0x5C, 0x00, 0x20, 0x6C, 0x01, 0x00, 0x4D})
	require.NoError(t, err)
	assert.Equal(t, &WriteResponse{Success: false}, msg)
}

func TestDecodeDataReadOut(t *testing.T) {
	frame := []byte{
		0x5C, 0x00, 0x20, 0x68, 0x08,
		0x44, 0x9C, 0x7D, 0x00, // 40004 = 125
		0xFF, 0xFF, 0x00, 0x00, // padding
		0xE5,
	}
	require.NoError(t, Verify(frame))

	msg, err := Decode(frame)
	require.NoError(t, err)
	expected := &DataReadOut{Values: []CoilValue{{Coil: 40004, Value: 125}}}
	if !cmp.Equal(expected, msg) {
		t.Fatalf("unexpected message: %s", cmp.Diff(expected, msg))
	}
	value, ok := msg.(*DataReadOut).Value(40004)
	assert.True(t, ok)
	assert.Equal(t, int32(125), value)
}

func TestDecodeReadRequest(t *testing.T) {
	msg, err := Decode([]byte{0xC0, 0x69, 0x02, 0x44, 0x9C, 0x73})
	require.NoError(t, err)
	assert.Equal(t, &ReadRequest{Coil: 40004}, msg)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		err   error
	}{
		{"empty", nil, ErrMalformedMessage},
		{"unknown start", []byte{0x06}, ErrMalformedMessage},
		{"unknown command", []byte{0x5C, 0x00, 0x20, 0xFF, 0x00, 0xDF}, ErrMalformedMessage},
		{"request command from heat pump", []byte{0x5C, 0x00, 0x20, 0x69, 0x00, 0x49}, ErrMalformedMessage},
		{"response command to heat pump", []byte{0xC0, 0x6A, 0x00, 0xAA}, ErrMalformedMessage},
		{"reserved byte", []byte{0x5C, 0x01, 0x20, 0x6C, 0x01, 0x01, 0x4C}, ErrMalformedMessage},
		{"truncated header", []byte{0x5C, 0x00, 0x20}, ErrIllegalPayload},
		{"truncated payload", []byte{0x5C, 0x00, 0x20, 0x6A, 0x06, 0x44, 0x9C}, ErrIllegalPayload},
		{"read-out record size", []byte{0x5C, 0x00, 0x20, 0x68, 0x03, 0x01, 0x02, 0x03, 0x00}, ErrIllegalPayload},
		{"read response size", []byte{0x5C, 0x00, 0x20, 0x6A, 0x02, 0x44, 0x9C, 0x00}, ErrIllegalPayload},
		{"write response size", []byte{0x5C, 0x00, 0x20, 0x6C, 0x02, 0x01, 0x01, 0x00}, ErrIllegalPayload},
		{"read request size", []byte{0xC0, 0x69, 0x01, 0x44, 0x00}, ErrIllegalPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			if !errors.Is(err, tt.err) {
				t.Fatalf("Expected %v, actual %v", tt.err, err)
			}
		})
	}
}

func TestDecodeReadOutRecordErrors(t *testing.T) {
	frame := []byte{0x5C, 0x00, 0x20, 0x68, 0x54}
	for i := 0; i < maxReadOutRecords+1; i++ {
		frame = append(frame, 0x01, 0x00, 0x02, 0x00)
	}
	frame = append(frame, 0x00)

	_, err := Decode(frame)
	require.ErrorIs(t, err, ErrIllegalPayload)
	assert.Contains(t, err.Error(), "21 read-out records exceed maximum '20'")

	_, err = Decode([]byte{0x5C, 0x00, 0x20, 0x68, 0x03, 0x01, 0x02, 0x03, 0x00})
	require.ErrorIs(t, err, ErrIllegalPayload)
	assert.Contains(t, err.Error(), "is not a multiple of '4'")
}

func TestVerifyChecksumQuirk(t *testing.T) {
	// true checksum of 20 6C 01 11 is 0x5C
	frame := []byte{0x5C, 0x00, 0x20, 0x6C, 0x01, 0x11, 0x5C}
	assert.NoError(t, Verify(frame))
	frame[len(frame)-1] = 0xC5
	assert.NoError(t, Verify(frame))

	// true checksum of 20 6C 01 88 is 0xC5
	frame = []byte{0x5C, 0x00, 0x20, 0x6C, 0x01, 0x88, 0xC5}
	assert.NoError(t, Verify(frame))
	frame[len(frame)-1] = 0x5C
	assert.NoError(t, Verify(frame))

	frame[len(frame)-1] = 0xC4
	var ce *ChecksumError
	require.ErrorAs(t, Verify(frame), &ce)
	assert.Equal(t, byte(0xC5), ce.Expected)
	assert.Equal(t, byte(0xC4), ce.Actual)
	assert.True(t, IsFramingError(ce))
}

func TestUnstuff(t *testing.T) {
	assert.Equal(t, []byte{0x5C, 0x01}, unstuff([]byte{0x5C, 0x5C, 0x01}))
	assert.Equal(t, []byte{0x5C, 0x5C}, unstuff([]byte{0x5C, 0x5C, 0x5C, 0x5C}))
	assert.Equal(t, []byte{0x01, 0x5C}, unstuff([]byte{0x01, 0x5C}))
}

func TestTokens(t *testing.T) {
	assert.True(t, isReadToken([]byte{0x5C, 0x00, 0x20, 0x69, 0x00, 0x49}))
	assert.True(t, isWriteToken([]byte{0x5C, 0x00, 0x20, 0x6B, 0x00, 0x4B}))
	assert.False(t, isReadToken([]byte{0x5C, 0x00, 0x20, 0x6B, 0x00, 0x4B}))
	assert.False(t, isReadToken([]byte{0xC0, 0x69, 0x02, 0x44, 0x9C, 0x73}))
}
