// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package nibe

import (
	"fmt"
	"io"
)

// AckPolicy selects the sub-addresses whose frames are acknowledged.
type AckPolicy struct {
	Modbus40 bool
	RMU40    bool
	SMS40    bool
}

// DefaultAckPolicy acknowledges frames to the MODBUS40 address only.
var DefaultAckPolicy = AckPolicy{Modbus40: true}

// Enabled reports whether frames addressed to addr are acknowledged.
func (p AckPolicy) Enabled(addr byte) bool {
	switch addr {
	case AddrModbus40:
		return p.Modbus40
	case AddrRMU40:
		return p.RMU40
	case AddrSMS40:
		return p.SMS40
	default:
		return false
	}
}

// TokenArbiter decides what to transmit when the heat pump hands over the
// line. Requests wait in a read queue and a write queue of depth one; they
// are only transmitted in reply to the matching token.
type TokenArbiter struct {
	Ack    AckPolicy
	Logger logger

	w          io.Writer
	stats      *Statistics
	readQueue  chan []byte
	writeQueue chan []byte
}

// NewTokenArbiter creates an arbiter transmitting on w.
func NewTokenArbiter(w io.Writer, ack AckPolicy, stats *Statistics) *TokenArbiter {
	if stats == nil {
		stats = NewStatistics()
	}
	return &TokenArbiter{
		Ack:        ack,
		w:          w,
		stats:      stats,
		readQueue:  make(chan []byte, 1),
		writeQueue: make(chan []byte, 1),
	}
}

// Enqueue encodes a ReadRequest or WriteRequest and queues it for the next
// token. A request arriving while one of the same kind is queued is dropped
// and ErrQueueFull returned.
func (a *TokenArbiter) Enqueue(m Message) error {
	var queue chan []byte
	switch m.(type) {
	case *ReadRequest:
		queue = a.readQueue
	case *WriteRequest:
		queue = a.writeQueue
	default:
		return fmt.Errorf("%w: %T cannot be sent to the heat pump", ErrMalformedMessage, m)
	}
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	select {
	case queue <- frame:
		a.logf("nibe: queued %v", m)
		return nil
	default:
		a.stats.requestsDropped.Add(1)
		a.logf("nibe: dropped %v, previous request still waiting for token", m)
		return ErrQueueFull
	}
}

// ReadToken handles a read token.
func (a *TokenArbiter) ReadToken(frame []byte) error {
	a.stats.readTokens.Add(1)
	return a.grant(frame, a.readQueue)
}

// WriteToken handles a write token.
func (a *TokenArbiter) WriteToken(frame []byte) error {
	a.stats.writeTokens.Add(1)
	return a.grant(frame, a.writeQueue)
}

func (a *TokenArbiter) grant(token []byte, queue chan []byte) error {
	select {
	case request := <-queue:
		a.logf("nibe: send % x", request)
		if _, err := a.w.Write(request); err != nil {
			return transportError("write", err)
		}
		a.stats.requestsSent.Add(1)
		return nil
	default:
		return a.Acknowledge(token)
	}
}

// Acknowledge sends an ACK to the sender address of frame if the policy
// allows it.
func (a *TokenArbiter) Acknowledge(frame []byte) error {
	if len(frame) <= offsetAddr || !a.Ack.Enabled(frame[offsetAddr]) {
		return nil
	}
	if _, err := a.w.Write([]byte{Ack}); err != nil {
		return transportError("write", err)
	}
	a.stats.acks.Add(1)
	return nil
}

// Pending returns the number of queued read and write requests.
func (a *TokenArbiter) Pending() (reads, writes int) {
	return len(a.readQueue), len(a.writeQueue)
}

// Drain discards all queued requests.
func (a *TokenArbiter) Drain() {
	for _, queue := range []chan []byte{a.readQueue, a.writeQueue} {
		select {
		case <-queue:
		default:
		}
	}
}

func (a *TokenArbiter) logf(format string, v ...interface{}) {
	if a.Logger != nil {
		a.Logger.Printf(format, v...)
	}
}
