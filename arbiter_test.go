package nibe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAckPolicy(t *testing.T) {
	p := AckPolicy{Modbus40: true, SMS40: true}
	assert.True(t, p.Enabled(AddrModbus40))
	assert.False(t, p.Enabled(AddrRMU40))
	assert.True(t, p.Enabled(AddrSMS40))
	assert.False(t, p.Enabled(0x42))
}

func TestArbiterWriteToken(t *testing.T) {
	var out bytes.Buffer
	a := NewTokenArbiter(&out, DefaultAckPolicy, nil)

	require.NoError(t, a.Enqueue(&WriteRequest{Coil: 47011, Value: 5}))
	assert.Zero(t, out.Len(), "nothing is sent before a token")

	require.NoError(t, a.WriteToken(writeToken))
	expected, err := Encode(&WriteRequest{Coil: 47011, Value: 5})
	require.NoError(t, err)
	assert.Equal(t, expected, out.Bytes())

	_, writes := a.Pending()
	assert.Zero(t, writes)
	assert.Equal(t, uint64(1), a.stats.Snapshot().RequestsSent)
}

func TestArbiterReadTokenDoesNotSendWrites(t *testing.T) {
	var out bytes.Buffer
	a := NewTokenArbiter(&out, DefaultAckPolicy, nil)

	require.NoError(t, a.Enqueue(&WriteRequest{Coil: 47011, Value: 5}))
	require.NoError(t, a.ReadToken(readToken))

	assert.Equal(t, []byte{Ack}, out.Bytes())
	_, writes := a.Pending()
	assert.Equal(t, 1, writes, "write request waits for the write token")
}

func TestArbiterAckPolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   AckPolicy
		token    []byte
		expected []byte
	}{
		{"modbus40 enabled", AckPolicy{Modbus40: true}, readToken, []byte{Ack}},
		{"modbus40 disabled", AckPolicy{}, readToken, nil},
		{"rmu40 enabled", AckPolicy{RMU40: true}, []byte{0x5C, 0x00, 0x19, 0x69, 0x00, 0x70}, []byte{Ack}},
		{"rmu40 disabled", AckPolicy{Modbus40: true}, []byte{0x5C, 0x00, 0x19, 0x69, 0x00, 0x70}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			a := NewTokenArbiter(&out, tt.policy, nil)
			require.NoError(t, a.ReadToken(tt.token))
			assert.Equal(t, tt.expected, out.Bytes())
		})
	}
}

func TestArbiterAcknowledgeFrame(t *testing.T) {
	var out bytes.Buffer
	a := NewTokenArbiter(&out, AckPolicy{SMS40: true}, nil)

	require.NoError(t, a.Acknowledge(writeResponse))
	assert.Zero(t, out.Len())

	require.NoError(t, a.Acknowledge([]byte{0x5C, 0x00, 0x16, 0x68, 0x00, 0x7E}))
	assert.Equal(t, []byte{Ack}, out.Bytes())
}

func TestArbiterQueueDropsNewRequest(t *testing.T) {
	var out bytes.Buffer
	a := NewTokenArbiter(&out, DefaultAckPolicy, nil)

	require.NoError(t, a.Enqueue(&ReadRequest{Coil: 40004}))
	err := a.Enqueue(&ReadRequest{Coil: 40008})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), a.stats.Snapshot().RequestsDropped)

	require.NoError(t, a.ReadToken(readToken))
	expected, _ := Encode(&ReadRequest{Coil: 40004})
	assert.Equal(t, expected, out.Bytes(), "the first request is kept")
}

func TestArbiterEnqueueRejectsResponses(t *testing.T) {
	a := NewTokenArbiter(&bytes.Buffer{}, DefaultAckPolicy, nil)
	assert.ErrorIs(t, a.Enqueue(&WriteResponse{Success: true}), ErrMalformedMessage)
}

func TestArbiterDrain(t *testing.T) {
	a := NewTokenArbiter(&bytes.Buffer{}, DefaultAckPolicy, nil)
	require.NoError(t, a.Enqueue(&ReadRequest{Coil: 40004}))
	require.NoError(t, a.Enqueue(&WriteRequest{Coil: 47011, Value: 1}))
	a.Drain()
	reads, writes := a.Pending()
	assert.Zero(t, reads)
	assert.Zero(t, writes)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("line down")
}

func TestArbiterTransportError(t *testing.T) {
	a := NewTokenArbiter(failingWriter{}, DefaultAckPolicy, nil)
	err := a.ReadToken(readToken)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "write", te.Op)
}
