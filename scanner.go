// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package nibe

type scannerState int

const (
	stateWaitStart scannerState = iota
	stateWaitData
)

func (s scannerState) String() string {
	switch s {
	case stateWaitStart:
		return "WaitStart"
	case stateWaitData:
		return "WaitData"
	default:
		return "Unknown"
	}
}

// FrameHandler receives the results of a Scanner. Frames passed to the
// handler are owned by the handler.
type FrameHandler interface {
	// ReadToken is called for a read token from the heat pump.
	ReadToken(frame []byte)
	// WriteToken is called for a write token from the heat pump.
	WriteToken(frame []byte)
	// Frame is called for every other checksum-valid frame.
	Frame(frame []byte)
	// FramingError is called with a *ChecksumError or *FrameSizeError after
	// the scanner discarded the buffered bytes.
	FramingError(err error)
}

// Scanner extracts frames sent by the heat pump from a byte stream. It may
// be fed any split of the stream, one byte at a time or in whole chunks.
// A Scanner is not safe for concurrent use.
type Scanner struct {
	handler FrameHandler
	state   scannerState
	buf     []byte
}

// NewScanner allocates a Scanner reporting to handler.
func NewScanner(handler FrameHandler) *Scanner {
	return &Scanner{
		handler: handler,
		buf:     make([]byte, 0, maxFrameSize),
	}
}

// Write feeds p to the state machine. It never fails.
func (s *Scanner) Write(p []byte) (int, error) {
	for _, b := range p {
		s.feed(b)
	}
	return len(p), nil
}

// WriteByte feeds a single byte to the state machine.
func (s *Scanner) WriteByte(b byte) error {
	s.feed(b)
	return nil
}

// Reset discards any partial frame.
func (s *Scanner) Reset() {
	s.buf = s.buf[:0]
	s.state = stateWaitStart
}

func (s *Scanner) feed(b byte) {
	switch s.state {
	case stateWaitStart:
		if b == FrameStartFromNibe {
			s.buf = append(s.buf[:0], b)
			s.state = stateWaitData
		}
	case stateWaitData:
		s.buf = append(s.buf, b)
		s.evaluate()
	}
}

// evaluate checks the buffer for a complete frame after each byte.
func (s *Scanner) evaluate() {
	if len(s.buf) < 2 {
		return
	}
	if s.buf[1] != 0x00 {
		// not a frame, the offending byte may start the next one
		b := s.buf[1]
		s.Reset()
		s.feed(b)
		return
	}
	if len(s.buf) > maxFrameSize {
		size := len(s.buf)
		s.Reset()
		s.handler.FramingError(&FrameSizeError{Size: size})
		return
	}
	if len(s.buf) < headerSize {
		return
	}
	length := int(s.buf[offsetLen])
	if len(s.buf) < length+headerSize {
		return
	}

	end := offsetData + length
	var cs checksum
	cs.reset().pushBytes(s.buf[offsetAddr:end])
	if !checksumMatches(cs.value(), s.buf[end]) {
		err := &ChecksumError{Expected: cs.value(), Actual: s.buf[end]}
		s.Reset()
		s.handler.FramingError(err)
		return
	}

	frame := make([]byte, end+1)
	copy(frame, s.buf)
	switch {
	case isReadToken(frame):
		s.Reset()
		s.handler.ReadToken(frame)
	case isWriteToken(frame):
		s.Reset()
		s.handler.WriteToken(frame)
	default:
		s.Reset()
		s.handler.Frame(frame)
	}
}
