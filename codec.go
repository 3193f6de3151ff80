// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package nibe

import (
	"encoding/binary"
	"fmt"
)

const (
	readResponseSize  = 6
	writeResponseSize = 1
	readRequestSize   = 2
	writeRequestSize  = 6

	readOutRecordSize = 4
	maxReadOutRecords = 20

	// readOutPadding marks an unused record of a data read-out.
	readOutPadding = 0xFFFF
)

// Encode renders m as a frame. Length and checksum are always computed from
// the payload. Requests are framed towards the heat pump:
//
//	Start    : 0xC0
//	Command  : 1 byte
//	Length   : 1 byte
//	Data     : Length bytes
//	Checksum : XOR of all preceding bytes
//
// responses and read-outs are framed as sent by the heat pump:
//
//	Start    : 0x5C
//	Reserved : 0x00
//	Address  : 0x20
//	Command  : 1 byte
//	Length   : 1 byte, counting doubled 0x5C bytes
//	Data     : Length bytes
//	Checksum : XOR of address through data
func Encode(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case *ReadRequest:
		data := make([]byte, readRequestSize)
		binary.LittleEndian.PutUint16(data, msg.Coil)
		return encodeToNibe(CmdReadRequest, data), nil
	case *WriteRequest:
		data := make([]byte, writeRequestSize)
		binary.LittleEndian.PutUint16(data, msg.Coil)
		binary.LittleEndian.PutUint32(data[2:], uint32(msg.Value))
		return encodeToNibe(CmdWriteRequest, data), nil
	case *ReadResponse:
		data := make([]byte, readResponseSize)
		binary.LittleEndian.PutUint16(data, msg.Coil)
		binary.LittleEndian.PutUint32(data[2:], uint32(msg.Value))
		return encodeFromNibe(AddrModbus40, CmdReadResponse, data)
	case *WriteResponse:
		var result byte
		if msg.Success {
			result = 1
		}
		return encodeFromNibe(AddrModbus40, CmdWriteResponse, []byte{result})
	case *DataReadOut:
		if len(msg.Values) > maxReadOutRecords {
			return nil, fmt.Errorf("%w: %d read-out values exceed maximum '%v'", ErrIllegalPayload, len(msg.Values), maxReadOutRecords)
		}
		data := make([]byte, 0, len(msg.Values)*readOutRecordSize)
		for _, v := range msg.Values {
			if v.Value < 0 || v.Value > 0xFFFF {
				return nil, fmt.Errorf("%w: read-out value %d of coil %d does not fit 16 bits", ErrIllegalPayload, v.Value, v.Coil)
			}
			data = binary.LittleEndian.AppendUint16(data, v.Coil)
			data = binary.LittleEndian.AppendUint16(data, uint16(v.Value))
		}
		return encodeFromNibe(AddrModbus40, CmdDataReadOut, data)
	case nil:
		return nil, fmt.Errorf("%w: nil message", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: unsupported message %T", ErrMalformedMessage, m)
	}
}

func encodeToNibe(cmd byte, data []byte) []byte {
	frame := make([]byte, 0, offsetToData+len(data)+1)
	frame = append(frame, FrameStartToNibe, cmd, byte(len(data)))
	frame = append(frame, data...)

	var cs checksum
	cs.reset().pushBytes(frame)
	return append(frame, wireChecksum(cs.value()))
}

func encodeFromNibe(addr, cmd byte, data []byte) ([]byte, error) {
	data = stuff(data)
	length := len(data) + headerSize
	if length > maxFrameSize {
		return nil, fmt.Errorf("nibe: length of frame '%v' must not be bigger than '%v'", length, maxFrameSize)
	}
	frame := make([]byte, 0, length)
	frame = append(frame, FrameStartFromNibe, 0x00, addr, cmd, byte(len(data)))
	frame = append(frame, data...)

	var cs checksum
	cs.reset().pushBytes(frame[offsetAddr:])
	return append(frame, wireChecksum(cs.value())), nil
}

// Decode parses a complete frame in either direction. Bytes following the
// checksum are ignored. The checksum itself is not checked, see Verify.
func Decode(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}
	switch frame[offsetStart] {
	case FrameStartFromNibe:
		return decodeFromNibe(frame)
	case FrameStartToNibe:
		return decodeToNibe(frame)
	default:
		return nil, fmt.Errorf("%w: start byte 0x%02X", ErrMalformedMessage, frame[offsetStart])
	}
}

func decodeFromNibe(frame []byte) (Message, error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("%w: frame length '%v' does not meet minimum '%v'", ErrIllegalPayload, len(frame), headerSize)
	}
	if frame[1] != 0x00 {
		return nil, fmt.Errorf("%w: reserved byte 0x%02X", ErrMalformedMessage, frame[1])
	}
	cmd := frame[offsetCmd]
	length := int(frame[offsetLen])
	if len(frame) < length+headerSize {
		return nil, fmt.Errorf("%w: frame length '%v' does not match declared payload '%v'", ErrIllegalPayload, len(frame), length)
	}
	data := unstuff(frame[offsetData : offsetData+length])

	switch cmd {
	case CmdReadResponse:
		if len(data) != readResponseSize {
			return nil, fmt.Errorf("%w: read response payload '%v' must be '%v'", ErrIllegalPayload, len(data), readResponseSize)
		}
		return &ReadResponse{
			Coil:  binary.LittleEndian.Uint16(data),
			Value: int32(binary.LittleEndian.Uint32(data[2:])),
		}, nil
	case CmdWriteResponse:
		if len(data) != writeResponseSize {
			return nil, fmt.Errorf("%w: write response payload '%v' must be '%v'", ErrIllegalPayload, len(data), writeResponseSize)
		}
		return &WriteResponse{Success: data[0] == 1}, nil
	case CmdDataReadOut:
		if len(data)%readOutRecordSize != 0 {
			return nil, fmt.Errorf("%w: read-out payload '%v' is not a multiple of '%v'", ErrIllegalPayload, len(data), readOutRecordSize)
		}
		if records := len(data) / readOutRecordSize; records > maxReadOutRecords {
			return nil, fmt.Errorf("%w: %d read-out records exceed maximum '%v'", ErrIllegalPayload, records, maxReadOutRecords)
		}
		m := &DataReadOut{}
		for i := 0; i < len(data); i += readOutRecordSize {
			coil := binary.LittleEndian.Uint16(data[i:])
			if coil == readOutPadding {
				continue
			}
			m.Values = append(m.Values, CoilValue{
				Coil:  coil,
				Value: int32(binary.LittleEndian.Uint16(data[i+2:])),
			})
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: command 0x%02X from heat pump", ErrMalformedMessage, cmd)
	}
}

func decodeToNibe(frame []byte) (Message, error) {
	if len(frame) < offsetToData+1 {
		return nil, fmt.Errorf("%w: frame length '%v' does not meet minimum '%v'", ErrIllegalPayload, len(frame), offsetToData+1)
	}
	cmd := frame[offsetToCmd]
	length := int(frame[offsetToLen])
	if len(frame) < offsetToData+length+1 {
		return nil, fmt.Errorf("%w: frame length '%v' does not match declared payload '%v'", ErrIllegalPayload, len(frame), length)
	}
	data := frame[offsetToData : offsetToData+length]

	switch cmd {
	case CmdReadRequest:
		if len(data) != readRequestSize {
			return nil, fmt.Errorf("%w: read request payload '%v' must be '%v'", ErrIllegalPayload, len(data), readRequestSize)
		}
		return &ReadRequest{Coil: binary.LittleEndian.Uint16(data)}, nil
	case CmdWriteRequest:
		if len(data) != writeRequestSize {
			return nil, fmt.Errorf("%w: write request payload '%v' must be '%v'", ErrIllegalPayload, len(data), writeRequestSize)
		}
		return &WriteRequest{
			Coil:  binary.LittleEndian.Uint16(data),
			Value: int32(binary.LittleEndian.Uint32(data[2:])),
		}, nil
	default:
		return nil, fmt.Errorf("%w: command 0x%02X to heat pump", ErrMalformedMessage, cmd)
	}
}

// Verify checks the trailing checksum of a complete frame in either
// direction.
func Verify(frame []byte) error {
	var span, end int
	switch {
	case len(frame) >= headerSize && frame[offsetStart] == FrameStartFromNibe:
		end = offsetData + int(frame[offsetLen])
		span = offsetAddr
	case len(frame) > offsetToData && frame[offsetStart] == FrameStartToNibe:
		end = offsetToData + int(frame[offsetToLen])
		span = 0
	default:
		return fmt.Errorf("%w: frame % x", ErrMalformedMessage, frame)
	}
	if len(frame) <= end {
		return fmt.Errorf("%w: frame length '%v' does not match declared payload", ErrIllegalPayload, len(frame))
	}
	var cs checksum
	cs.reset().pushBytes(frame[span:end])
	if !checksumMatches(cs.value(), frame[end]) {
		return &ChecksumError{Expected: cs.value(), Actual: frame[end]}
	}
	return nil
}

// stuff doubles every 0x5C byte of a payload sent by the heat pump.
func stuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		out = append(out, b)
		if b == FrameStartFromNibe {
			out = append(out, b)
		}
	}
	return out
}

// unstuff collapses doubled 0x5C bytes.
func unstuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		out = append(out, data[i])
		if data[i] == FrameStartFromNibe && i+1 < len(data) && data[i+1] == FrameStartFromNibe {
			i++
		}
	}
	return out
}

// isToken reports whether frame is an empty request of cmd sent by the heat
// pump, granting the line to the addressed accessory.
func isToken(frame []byte, cmd byte) bool {
	return len(frame) >= headerSize &&
		frame[offsetStart] == FrameStartFromNibe &&
		frame[offsetCmd] == cmd &&
		frame[offsetLen] == 0
}

func isReadToken(frame []byte) bool {
	return isToken(frame, CmdReadRequest)
}

func isWriteToken(frame []byte) bool {
	return isToken(frame, CmdWriteRequest)
}
