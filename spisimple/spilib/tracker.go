package spilib

import (
	"errors"

	"github.com/tinygo-org/spisimple/spisimple"
)

// ErrTrackerFull is returned by Tracker.Issue when as many transfers as the
// tracker's capacity are outstanding.
var ErrTrackerFull = errors.New("spilib: too many outstanding transfers")

// Tracker issues non-blocking RX transfers and pairs each word popped from the
// RX FIFO with the tag of the transfer that produced it. The core returns RX
// words in issue order but carries no identification; the tracker keeps the
// tags in a ring of the same order.
//
// Limiting the outstanding transfers to the RX FIFO depth prevents the RX
// overflows the driver cannot detect. All RX transfers on the core must be
// issued through the same tracker for the pairing to hold.
type Tracker[T any] struct {
	core  spisimple.Core
	slave uint8
	tags  []T
	head  int
	n     int
}

// NewTracker returns a tracker for transfers to slave with room for capacity
// outstanding transfers. capacity should equal the RX FIFO depth of the core.
func NewTracker[T any](core spisimple.Core, slave uint8, capacity int) *Tracker[T] {
	if capacity <= 0 {
		panic("spilib: tracker capacity must be positive")
	}
	return &Tracker[T]{core: core, slave: slave, tags: make([]T, capacity)}
}

// Issue starts a transfer of txData and records tag for it. Errors of the
// driver are returned unchanged and nothing is recorded in that case.
func (t *Tracker[T]) Issue(tag T, txData uint32) error {
	if t.n == len(t.tags) {
		return ErrTrackerFull
	}
	if err := t.core.RxTxNonBlocking(t.slave, txData); err != nil {
		return err
	}
	t.tags[(t.head+t.n)%len(t.tags)] = tag
	t.n++
	return nil
}

// Collect pops the oldest received word and returns it with the tag it was
// issued with. It returns spisimple.ErrRxFIFOEmpty while the oldest
// transfer has not completed yet.
func (t *Tracker[T]) Collect() (tag T, rxData uint32, err error) {
	if t.n == 0 {
		return tag, 0, spisimple.ErrRxFIFOEmpty
	}
	rxData, err = t.core.RxData()
	if err != nil {
		return tag, 0, err
	}
	var zero T
	tag = t.tags[t.head]
	t.tags[t.head] = zero
	t.head = (t.head + 1) % len(t.tags)
	t.n--
	return tag, rxData, nil
}

// Pending returns the number of transfers whose word has not been collected.
func (t *Tracker[T]) Pending() int { return t.n }

// Cap returns the maximum number of outstanding transfers.
func (t *Tracker[T]) Cap() int { return len(t.tags) }
