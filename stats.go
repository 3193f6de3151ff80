package nibe

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Statistics counts the traffic seen by a Connector. Counters are updated
// from the read loop and may be read concurrently through Snapshot.
type Statistics struct {
	startTime time.Time

	frames          atomic.Uint64
	checksumErrors  atomic.Uint64
	oversizeResets  atomic.Uint64
	decodeErrors    atomic.Uint64
	readTokens      atomic.Uint64
	writeTokens     atomic.Uint64
	acks            atomic.Uint64
	requestsSent    atomic.Uint64
	requestsDropped atomic.Uint64
	timeouts        atomic.Uint64
}

// StatisticsSnapshot is a point in time copy of Statistics.
type StatisticsSnapshot struct {
	Uptime time.Duration

	Frames          uint64
	ChecksumErrors  uint64
	OversizeResets  uint64
	DecodeErrors    uint64
	ReadTokens      uint64
	WriteTokens     uint64
	Acks            uint64
	RequestsSent    uint64
	RequestsDropped uint64
	Timeouts        uint64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

func (s *Statistics) framingError(err error) {
	switch err.(type) {
	case *ChecksumError:
		s.checksumErrors.Add(1)
	case *FrameSizeError:
		s.oversizeResets.Add(1)
	}
}

// Snapshot copies the current counters.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		Uptime:          time.Since(s.startTime),
		Frames:          s.frames.Load(),
		ChecksumErrors:  s.checksumErrors.Load(),
		OversizeResets:  s.oversizeResets.Load(),
		DecodeErrors:    s.decodeErrors.Load(),
		ReadTokens:      s.readTokens.Load(),
		WriteTokens:     s.writeTokens.Load(),
		Acks:            s.acks.Load(),
		RequestsSent:    s.requestsSent.Load(),
		RequestsDropped: s.requestsDropped.Load(),
		Timeouts:        s.timeouts.Load(),
	}
}

// ErrorRate returns the share of frames lost to checksum failures and
// decode errors.
func (s StatisticsSnapshot) ErrorRate() float64 {
	total := s.Frames + s.ChecksumErrors
	if total == 0 {
		return 0
	}
	return float64(s.ChecksumErrors+s.DecodeErrors) / float64(total)
}

// String returns a formatted statistics summary.
func (s StatisticsSnapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", s.Uptime.Seconds())
	fmt.Fprintf(&b, "Frames:           %8d\n", s.Frames)
	if s.ChecksumErrors > 0 {
		fmt.Fprintf(&b, "Checksum Errors:  %8d\n", s.ChecksumErrors)
	}
	if s.OversizeResets > 0 {
		fmt.Fprintf(&b, "Oversize Resets:  %8d\n", s.OversizeResets)
	}
	if s.DecodeErrors > 0 {
		fmt.Fprintf(&b, "Decode Errors:    %8d\n", s.DecodeErrors)
	}
	fmt.Fprintf(&b, "Read Tokens:      %8d\n", s.ReadTokens)
	fmt.Fprintf(&b, "Write Tokens:     %8d\n", s.WriteTokens)
	fmt.Fprintf(&b, "Acks:             %8d\n", s.Acks)
	fmt.Fprintf(&b, "Requests Sent:    %8d\n", s.RequestsSent)
	if s.RequestsDropped > 0 {
		fmt.Fprintf(&b, "Requests Dropped: %8d\n", s.RequestsDropped)
	}
	if s.Timeouts > 0 {
		fmt.Fprintf(&b, "Timeouts:         %8d\n", s.Timeouts)
	}
	fmt.Fprintf(&b, "Error Rate:       %8.1f%%\n", s.ErrorRate()*100)
	b.WriteString("================================\n")
	return b.String()
}
