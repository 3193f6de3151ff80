// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package nibe

import "fmt"

// Message is one of ReadRequest, ReadResponse, WriteRequest, WriteResponse
// or DataReadOut.
type Message interface {
	// Command returns the command byte of the message on the wire.
	Command() byte

	message()
}

// CoilValue is a raw register value before scaling.
type CoilValue struct {
	Coil  uint16
	Value int32
}

// String implements fmt.Stringer.
func (v CoilValue) String() string {
	return fmt.Sprintf("{coil=%d value=%d}", v.Coil, v.Value)
}

// ReadRequest asks the heat pump for the value of one register.
type ReadRequest struct {
	Coil uint16
}

// ReadResponse carries the value of one register.
type ReadResponse struct {
	Coil  uint16
	Value int32
}

// WriteRequest sets the value of one register.
type WriteRequest struct {
	Coil  uint16
	Value int32
}

// WriteResponse reports whether the heat pump accepted a write.
type WriteResponse struct {
	Success bool
}

// DataReadOut is pushed by the heat pump without a request.
type DataReadOut struct {
	Values []CoilValue
}

// Command implements Message.
func (*ReadRequest) Command() byte { return CmdReadRequest }

// Command implements Message.
func (*ReadResponse) Command() byte { return CmdReadResponse }

// Command implements Message.
func (*WriteRequest) Command() byte { return CmdWriteRequest }

// Command implements Message.
func (*WriteResponse) Command() byte { return CmdWriteResponse }

// Command implements Message.
func (*DataReadOut) Command() byte { return CmdDataReadOut }

func (*ReadRequest) message()   {}
func (*ReadResponse) message()  {}
func (*WriteRequest) message()  {}
func (*WriteResponse) message() {}
func (*DataReadOut) message()   {}

func (m *ReadRequest) String() string {
	return fmt.Sprintf("ReadRequest{coil=%d}", m.Coil)
}

func (m *ReadResponse) String() string {
	return fmt.Sprintf("ReadResponse{coil=%d value=%d}", m.Coil, m.Value)
}

func (m *WriteRequest) String() string {
	return fmt.Sprintf("WriteRequest{coil=%d value=%d}", m.Coil, m.Value)
}

func (m *WriteResponse) String() string {
	return fmt.Sprintf("WriteResponse{success=%t}", m.Success)
}

func (m *DataReadOut) String() string {
	return fmt.Sprintf("DataReadOut%v", m.Values)
}

// Value returns the read-out value of coil, if present.
func (m *DataReadOut) Value(coil uint16) (int32, bool) {
	for _, v := range m.Values {
		if v.Coil == coil {
			return v.Value, true
		}
	}
	return 0, false
}
