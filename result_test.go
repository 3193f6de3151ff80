package nibe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultDeliver(t *testing.T) {
	r := NewResult(matchReadResponse(40004))

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Deliver(&ReadResponse{Coil: 40008, Value: 1})
		r.Deliver(&ReadResponse{Coil: 40004, Value: 125})
	}()

	msg, err := r.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, &ReadResponse{Coil: 40004, Value: 125}, msg)
}

func TestResultTimeout(t *testing.T) {
	const timeout = 50 * time.Millisecond
	r := NewResult(nil)

	start := time.Now()
	_, err := r.Await(context.Background(), timeout)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+200*time.Millisecond)
}

func TestResultLateDeliveryIsDropped(t *testing.T) {
	first := NewResult(matchWriteResponse)
	_, err := first.Await(context.Background(), 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	assert.False(t, first.Deliver(&WriteResponse{Success: true}))

	second := NewResult(matchWriteResponse)
	assert.True(t, second.Deliver(&WriteResponse{Success: false}))
	msg, err := second.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, &WriteResponse{Success: false}, msg)

	_, err = first.Await(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrTimeout, "a timed out result stays timed out")
}

func TestResultFail(t *testing.T) {
	r := NewResult(nil)
	go r.Fail(ErrClosed)

	_, err := r.Await(context.Background(), time.Minute)
	assert.ErrorIs(t, err, ErrClosed)

	select {
	case <-r.Done():
	default:
		t.Fatal("result not done")
	}
}

func TestResultContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResult(nil)
	_, err := r.Await(ctx, time.Minute)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, r.Deliver(&WriteResponse{}))
}
