package nibe

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenGateway(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestUDPTransportRoutesRequests(t *testing.T) {
	readGW := listenGateway(t)
	writeGW := listenGateway(t)

	tr := &UDPTransport{
		ListenAddress: "127.0.0.1:0",
		ReadAddress:   readGW.LocalAddr().String(),
		WriteAddress:  writeGW.LocalAddr().String(),
	}
	port, err := tr.Open()
	require.NoError(t, err)
	defer port.Close()

	buf := make([]byte, 64)

	read := mustEncode(t, &ReadRequest{Coil: 40004})
	_, err = port.Write(read)
	require.NoError(t, err)
	n, _, err := readGW.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, read, buf[:n])

	write := mustEncode(t, &WriteRequest{Coil: 47011, Value: 1})
	_, err = port.Write(write)
	require.NoError(t, err)
	n, _, err = writeGW.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, write, buf[:n])

	local := port.(*udpPort).conn.LocalAddr()
	_, err = readGW.WriteTo(readOut, local)
	require.NoError(t, err)
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, readOut, buf[:n])
}

func TestUDPConnectorDefaults(t *testing.T) {
	c := UDPConnector("192.168.1.50")
	assert.True(t, c.Direct)
	assert.Equal(t, AckPolicy{}, c.Ack)

	tr := NewUDPTransport("192.168.1.50")
	assert.Equal(t, ":9999", tr.ListenAddress)
	assert.Equal(t, "192.168.1.50:9999", tr.ReadAddress)
	assert.Equal(t, "192.168.1.50:10000", tr.WriteAddress)
}

func TestUDPTransportConnector(t *testing.T) {
	tr := NewUDPTransport("192.168.1.50")
	tr.ListenAddress = "127.0.0.1:0"
	c := tr.Connector()
	assert.True(t, c.Direct)
	assert.Equal(t, AckPolicy{}, c.Ack)

	require.NoError(t, c.Connect())
	defer c.Close()
	assert.True(t, c.Connected())
}
