package nibe

import (
	"fmt"
	"io"
	"net"
)

const (
	// NibeGW default ports
	udpReadPort  = 9999
	udpWritePort = 10000
)

// UDPTransport talks to a NibeGW style gateway. The gateway forwards every
// frame of the bus to ListenAddress and accepts read requests on ReadAddress
// and write requests on WriteAddress.
type UDPTransport struct {
	// Local address frames are received on, e.g. ":9999"
	ListenAddress string
	// Gateway address for read requests
	ReadAddress string
	// Gateway address for write requests
	WriteAddress string
	// Transmission logger
	Logger logger
}

// NewUDPTransport creates a transport for the gateway at host using the
// default ports.
func NewUDPTransport(host string) *UDPTransport {
	return &UDPTransport{
		ListenAddress: fmt.Sprintf(":%d", udpReadPort),
		ReadAddress:   net.JoinHostPort(host, fmt.Sprint(udpReadPort)),
		WriteAddress:  net.JoinHostPort(host, fmt.Sprint(udpWritePort)),
	}
}

// UDPConnector creates a Connector for the gateway at host using the
// default ports.
func UDPConnector(host string) *Connector {
	return NewUDPTransport(host).Connector()
}

// Connector creates a Connector on t. Requests are written directly and
// nothing is acknowledged, the gateway handles the bus itself.
func (t *UDPTransport) Connector() *Connector {
	c := NewConnector(t.Open)
	c.Direct = true
	c.Ack = AckPolicy{}
	return c
}

// Open binds the listen address and resolves the gateway. It implements
// OpenFunc.
func (t *UDPTransport) Open() (io.ReadWriteCloser, error) {
	readAddr, err := net.ResolveUDPAddr("udp", t.ReadAddress)
	if err != nil {
		return nil, err
	}
	writeAddr := readAddr
	if t.WriteAddress != "" {
		if writeAddr, err = net.ResolveUDPAddr("udp", t.WriteAddress); err != nil {
			return nil, err
		}
	}
	conn, err := net.ListenPacket("udp", t.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", t.ListenAddress, err)
	}
	t.logf("nibe: listening on %s for gateway %s", conn.LocalAddr(), readAddr)
	return &udpPort{conn: conn, readAddr: readAddr, writeAddr: writeAddr}, nil
}

func (t *UDPTransport) logf(format string, v ...interface{}) {
	if t.Logger != nil {
		t.Logger.Printf(format, v...)
	}
}

// udpPort presents the gateway as a byte stream. Each Read returns one
// datagram; Write sends a request to the gateway port matching its command.
type udpPort struct {
	conn      net.PacketConn
	readAddr  net.Addr
	writeAddr net.Addr
}

func (p *udpPort) Read(b []byte) (int, error) {
	n, _, err := p.conn.ReadFrom(b)
	return n, err
}

func (p *udpPort) Write(b []byte) (int, error) {
	addr := p.readAddr
	if len(b) > offsetToCmd && b[offsetStart] == FrameStartToNibe && b[offsetToCmd] == CmdWriteRequest {
		addr = p.writeAddr
	}
	return p.conn.WriteTo(b, addr)
}

func (p *udpPort) Close() error {
	return p.conn.Close()
}
