// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package nibe

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

const (
	// Default serial settings of the MODBUS40 bus
	serialBaudRate = 38400
	serialDataBits = 8
	serialStopBits = 1
	serialParity   = "N"

	// serialTimeout bounds a single read so that a closed port is noticed.
	serialTimeout = 500 * time.Millisecond
)

// SerialTransport opens the RS485 line of the heat pump.
type SerialTransport struct {
	// Serial port configuration.
	serial.Config

	Logger logger
}

// NewSerialTransport creates a serial transport with default configuration.
func NewSerialTransport(address string) *SerialTransport {
	return &SerialTransport{
		Config: serial.Config{
			Address:  address,
			BaudRate: serialBaudRate,
			DataBits: serialDataBits,
			StopBits: serialStopBits,
			Parity:   serialParity,
			Timeout:  serialTimeout,
		},
	}
}

// SerialConnector creates a Connector on the serial port at address.
func SerialConnector(address string) *Connector {
	return NewConnector(NewSerialTransport(address).Open)
}

// Open opens the port. It implements OpenFunc.
func (t *SerialTransport) Open() (io.ReadWriteCloser, error) {
	port, err := serial.Open(&t.Config)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", t.Config.Address, err)
	}
	t.logf("nibe: opened %s at %d baud", t.Config.Address, t.Config.BaudRate)
	return &serialPort{ReadWriteCloser: port}, nil
}

func (t *SerialTransport) logf(format string, v ...interface{}) {
	if t.Logger != nil {
		t.Logger.Printf(format, v...)
	}
}

// serialPort reports read timeouts of the port as net style timeout errors
// and fails reads once closed.
type serialPort struct {
	io.ReadWriteCloser

	mu     sync.Mutex
	closed bool
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.ReadWriteCloser.Read(b)
	if err == nil {
		return n, nil
	}
	if p.isClosed() {
		return n, ErrClosed
	}
	if errors.Is(err, serial.ErrTimeout) {
		return n, errReadTimeout
	}
	return n, err
}

func (p *serialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.ReadWriteCloser.Close()
}

func (p *serialPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "nibe: read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errReadTimeout error = timeoutError{}
