// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

/*
Package nibe provides a client for the NIBE heat pump MODBUS40 accessory
protocol over a serial line or a UDP gateway.
*/
package nibe

import (
	"errors"
	"fmt"
)

const (
	// FrameStartFromNibe starts every frame sent by the heat pump.
	FrameStartFromNibe = 0x5C
	// FrameStartToNibe starts every frame sent to the heat pump.
	FrameStartToNibe = 0xC0

	// Ack acknowledges a frame received from the heat pump.
	Ack = 0x06
	// Nak rejects a frame received from the heat pump. Never sent.
	Nak = 0x15
)

const (
	// AddrSMS40 is the sub-address of the SMS40 accessory.
	AddrSMS40 = 0x16
	// AddrRMU40 is the sub-address of the RMU40 room unit.
	AddrRMU40 = 0x19
	// AddrModbus40 is the sub-address of the MODBUS40 accessory.
	AddrModbus40 = 0x20
)

const (
	// CmdDataReadOut carries up to 20 register values pushed by the pump.
	CmdDataReadOut = 0x68
	// CmdReadRequest reads a single register. With an empty payload from the
	// pump it is the read token.
	CmdReadRequest = 0x69
	// CmdReadResponse answers a read request.
	CmdReadResponse = 0x6A
	// CmdWriteRequest writes a single register. With an empty payload from
	// the pump it is the write token.
	CmdWriteRequest = 0x6B
	// CmdWriteResponse answers a write request.
	CmdWriteResponse = 0x6C
)

// frame offsets of messages from the heat pump
const (
	offsetStart = 0
	offsetAddr  = 2
	offsetCmd   = 3
	offsetLen   = 4
	offsetData  = 5

	// start, 0x00, address, command, length, checksum
	headerSize = 6
	// maximum number of bytes the scanner buffers for one frame
	maxFrameSize = 100
)

// frame offsets of messages to the heat pump
const (
	offsetToCmd  = 1
	offsetToLen  = 2
	offsetToData = 3
)

var (
	// ErrMalformedMessage is returned when a frame has an unknown start byte
	// or command.
	ErrMalformedMessage = errors.New("nibe: malformed message")
	// ErrIllegalPayload is returned when the payload length does not fit the
	// message type.
	ErrIllegalPayload = errors.New("nibe: illegal payload")
	// ErrTimeout is returned when no response arrived in time.
	ErrTimeout = errors.New("nibe: timed out waiting for response")
	// ErrClosed is returned to callers blocked on a connector that was
	// disconnected.
	ErrClosed = errors.New("nibe: connector closed")
	// ErrNotConnected is returned when sending on a disconnected connector.
	ErrNotConnected = errors.New("nibe: not connected")
	// ErrQueueFull is returned when a request was dropped because a request
	// of the same kind is already waiting for its token.
	ErrQueueFull = errors.New("nibe: request queue full")
)

// ChecksumError reports a frame whose trailing checksum does not match.
type ChecksumError struct {
	Expected byte
	Actual   byte
}

// Error implements error interface.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("nibe: checksum failure, expected 0x%02X, received 0x%02X", e.Expected, e.Actual)
}

// FrameSizeError reports a frame that grew beyond the scanner buffer.
type FrameSizeError struct {
	Size int
}

// Error implements error interface.
func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("nibe: frame of %d bytes exceeds maximum '%v'", e.Size, maxFrameSize)
}

// TransportError wraps an I/O failure of the underlying channel.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("nibe: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// transportError wraps err unless it already is a *TransportError.
func transportError(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// IsFramingError reports whether err was recovered locally by
// resynchronizing the frame scanner.
func IsFramingError(err error) bool {
	var ce *ChecksumError
	var se *FrameSizeError
	return errors.As(err, &ce) || errors.As(err, &se)
}

// logger is the interface to the required logging functions
type logger interface {
	Printf(format string, v ...interface{})
}
