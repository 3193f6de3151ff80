// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package nibe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	// DefaultRequestTimeout bounds the wait for a response in Request.
	DefaultRequestTimeout = 4500 * time.Millisecond

	readBufferSize = 256
)

// Listener receives messages and errors from a Connector. Calls are made
// from the read loop and must not block.
type Listener interface {
	MessageReceived(m Message)
	ErrorOccurred(err error)
}

// OpenFunc opens the transport of a Connector.
type OpenFunc func() (io.ReadWriteCloser, error)

// Connector owns a transport, runs the frame scanner over everything read
// from it, arbitrates tokens and dispatches messages to listeners.
type Connector struct {
	Logger logger
	// Ack selects the sub-addresses acknowledged on the bus.
	Ack AckPolicy
	// Direct writes requests as soon as they are sent. Gateways that do
	// the token arbitration themselves require it.
	Direct bool
	// Passive never transmits, neither acknowledgements nor requests.
	Passive bool
	// Stats is updated by the read loop.
	Stats *Statistics

	open OpenFunc

	mu        sync.Mutex
	port      io.ReadWriteCloser
	arbiter   *TokenArbiter
	done      chan struct{}
	wg        sync.WaitGroup
	pending   *Result
	listeners []Listener
	err       error

	// wmu serializes writes of the read loop and of Direct requests.
	wmu sync.Mutex
	// reqMu allows a single outstanding Request.
	reqMu sync.Mutex
}

// NewConnector allocates a Connector using open to obtain its transport.
func NewConnector(open OpenFunc) *Connector {
	return &Connector{
		Ack:   DefaultAckPolicy,
		Stats: NewStatistics(),
		open:  open,
	}
}

// Connect opens the transport and starts the read loop.
func (c *Connector) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != nil {
		return nil
	}
	port, err := c.open()
	if err != nil {
		return &TransportError{Op: "open", Err: err}
	}
	if c.Stats == nil {
		c.Stats = NewStatistics()
	}
	c.port = port
	c.err = nil
	c.done = make(chan struct{})
	c.arbiter = NewTokenArbiter(c.portWriter(port), c.Ack, c.Stats)
	c.arbiter.Logger = c.Logger

	d := &dispatcher{c: c, arbiter: c.arbiter, done: c.done}
	c.wg.Add(1)
	go c.readLoop(port, c.done, NewScanner(d))
	return nil
}

// Close stops the read loop and releases the transport. A pending Request
// returns ErrClosed immediately.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.port == nil {
		c.mu.Unlock()
		return nil
	}
	port := c.port
	c.port = nil
	close(c.done)
	err := port.Close()
	if c.pending != nil {
		c.pending.Fail(ErrClosed)
	}
	c.arbiter.Drain()
	c.mu.Unlock()

	// the read loop may be inside a listener that takes c.mu
	c.wg.Wait()
	return err
}

// Disconnect is an alias of Close.
func (c *Connector) Disconnect() error {
	return c.Close()
}

// Connected reports whether the transport is open.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port != nil
}

// Err returns the transport error that stopped the read loop, if any.
func (c *Connector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// AddListener registers l for messages and errors.
func (c *Connector) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// RemoveListener unregisters l.
func (c *Connector) RemoveListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, registered := range c.listeners {
		if registered != l {
			listeners = append(listeners, registered)
		}
	}
	c.listeners = listeners
}

// Send transmits a ReadRequest or WriteRequest. Unless Direct is set the
// request waits for the next matching token.
func (c *Connector) Send(m Message) error {
	c.mu.Lock()
	port, arbiter, lastErr := c.port, c.arbiter, c.err
	c.mu.Unlock()

	if port == nil {
		return ErrNotConnected
	}
	if lastErr != nil {
		return lastErr
	}
	if c.Passive {
		return fmt.Errorf("nibe: connector is passive, cannot send %v", m)
	}
	if !c.Direct {
		return arbiter.Enqueue(m)
	}
	switch m.(type) {
	case *ReadRequest, *WriteRequest:
	default:
		return fmt.Errorf("%w: %T cannot be sent to the heat pump", ErrMalformedMessage, m)
	}
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	c.logf("nibe: send % x", frame)
	if _, err := c.write(frame); err != nil {
		return err
	}
	c.Stats.requestsSent.Add(1)
	return nil
}

// Request sends a ReadRequest or WriteRequest and waits up to timeout for
// the matching response. Only one request is outstanding at a time; callers
// queue on an internal lock.
func (c *Connector) Request(ctx context.Context, m Message, timeout time.Duration) (Message, error) {
	var match func(Message) bool
	switch msg := m.(type) {
	case *ReadRequest:
		match = matchReadResponse(msg.Coil)
	case *WriteRequest:
		match = matchWriteResponse
	default:
		return nil, fmt.Errorf("%w: %T has no response", ErrMalformedMessage, m)
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	result := NewResult(match)
	c.mu.Lock()
	c.pending = result
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.pending == result {
			c.pending = nil
		}
		c.mu.Unlock()
	}()

	if err := c.Send(m); err != nil {
		return nil, err
	}
	resp, err := result.Await(ctx, timeout)
	if errors.Is(err, ErrTimeout) {
		c.Stats.timeouts.Add(1)
		c.logf("nibe: no response to %v within %v", m, timeout)
	}
	return resp, err
}

func (c *Connector) write(p []byte) (int, error) {
	c.mu.Lock()
	port := c.port
	c.mu.Unlock()
	if port == nil {
		return 0, ErrNotConnected
	}
	return c.portWriter(port).Write(p)
}

// portWriter writes to port only, serialized with every other write of c.
func (c *Connector) portWriter(port io.Writer) writerFunc {
	return func(p []byte) (int, error) {
		c.wmu.Lock()
		defer c.wmu.Unlock()

		n, err := port.Write(p)
		if err != nil {
			return n, transportError("write", err)
		}
		return n, nil
	}
}

func (c *Connector) readLoop(port io.Reader, done <-chan struct{}, scanner *Scanner) {
	defer c.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			c.logf("nibe: recv % x", buf[:n])
			scanner.Write(buf[:n])
		}
		if err == nil {
			continue
		}
		select {
		case <-done:
			return
		default:
		}
		if isTimeout(err) {
			continue
		}
		c.fail(done, &TransportError{Op: "read", Err: err})
		return
	}
}

// fail records a transport error of the read loop owning done and unblocks
// a pending request. Failures of a closed read loop are dropped.
func (c *Connector) fail(done <-chan struct{}, err error) {
	c.mu.Lock()
	select {
	case <-done:
		c.mu.Unlock()
		return
	default:
	}
	c.err = err
	if c.pending != nil {
		c.pending.Fail(err)
	}
	c.mu.Unlock()

	c.logf("%v", err)
	c.notifyError(err)
}

func (c *Connector) dispatch(m Message) {
	c.mu.Lock()
	pending := c.pending
	listeners := c.listeners
	c.mu.Unlock()

	if pending != nil {
		pending.Deliver(m)
	}
	for _, l := range listeners {
		l.MessageReceived(m)
	}
}

func (c *Connector) notifyError(err error) {
	c.mu.Lock()
	listeners := c.listeners
	c.mu.Unlock()

	for _, l := range listeners {
		l.ErrorOccurred(err)
	}
}

func (c *Connector) logf(format string, v ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, v...)
	}
}

// dispatcher connects the scanner of one read loop to the arbiter and the
// listeners of a Connector. arbiter and done belong to that read loop, a
// later Connect does not replace them. Frames scanned after the read loop
// was closed are dropped.
type dispatcher struct {
	c       *Connector
	arbiter *TokenArbiter
	done    <-chan struct{}
}

func (d *dispatcher) closed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (d *dispatcher) ReadToken(frame []byte) {
	if d.closed() {
		return
	}
	d.c.Stats.frames.Add(1)
	if d.c.Passive {
		return
	}
	if err := d.arbiter.ReadToken(frame); err != nil {
		d.c.fail(d.done, err)
	}
}

func (d *dispatcher) WriteToken(frame []byte) {
	if d.closed() {
		return
	}
	d.c.Stats.frames.Add(1)
	if d.c.Passive {
		return
	}
	if err := d.arbiter.WriteToken(frame); err != nil {
		d.c.fail(d.done, err)
	}
}

func (d *dispatcher) Frame(frame []byte) {
	if d.closed() {
		return
	}
	d.c.Stats.frames.Add(1)
	if !d.c.Passive {
		if err := d.arbiter.Acknowledge(frame); err != nil {
			d.c.fail(d.done, err)
			return
		}
	}
	m, err := Decode(frame)
	if err != nil {
		d.c.Stats.decodeErrors.Add(1)
		d.c.logf("nibe: dropped frame % x: %v", frame, err)
		d.c.notifyError(err)
		return
	}
	d.c.dispatch(m)
}

// FramingError resynchronizes silently. NAK is never sent: the heat pump
// repeats unacknowledged frames on its own.
func (d *dispatcher) FramingError(err error) {
	d.c.Stats.framingError(err)
	d.c.logf("nibe: %v", err)
	d.c.notifyError(err)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
