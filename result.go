package nibe

import (
	"context"
	"sync"
	"time"
)

// Result correlates one outstanding request with its response. The first
// matching Deliver or a Fail completes it; once completed or timed out,
// further deliveries are dropped.
type Result struct {
	match func(Message) bool

	once sync.Once
	done chan struct{}
	msg  Message
	err  error
}

// NewResult creates a Result accepting messages for which match returns
// true. A nil match accepts any message.
func NewResult(match func(Message) bool) *Result {
	return &Result{
		match: match,
		done:  make(chan struct{}),
	}
}

// Deliver completes the result with m. It reports whether m was accepted.
func (r *Result) Deliver(m Message) bool {
	if r.match != nil && !r.match(m) {
		return false
	}
	return r.complete(m, nil)
}

// Fail completes the result with err.
func (r *Result) Fail(err error) {
	r.complete(nil, err)
}

func (r *Result) complete(m Message, err error) bool {
	accepted := false
	r.once.Do(func() {
		r.msg, r.err = m, err
		close(r.done)
		accepted = true
	})
	return accepted
}

// Done is closed when the result is completed.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Await waits up to timeout for the result. On timeout or cancellation of
// ctx the result is invalidated and ErrTimeout or the context error is
// returned.
func (r *Result) Await(ctx context.Context, timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.done:
	case <-timer.C:
		r.complete(nil, ErrTimeout)
	case <-ctx.Done():
		r.complete(nil, ctx.Err())
	}
	// a delivery racing the timer may have won
	<-r.done
	return r.msg, r.err
}

// matchReadResponse accepts the read response for coil.
func matchReadResponse(coil uint16) func(Message) bool {
	return func(m Message) bool {
		resp, ok := m.(*ReadResponse)
		return ok && resp.Coil == coil
	}
}

func matchWriteResponse(m Message) bool {
	_, ok := m.(*WriteResponse)
	return ok
}
