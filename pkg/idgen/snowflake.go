package idgen

import (
	"errors"
	"sync"
	"time"
)

const (
	// 64-bit layout:
	// 1 bit: unused (sign)
	// 41 bits: milliseconds since Epoch
	// 10 bits: node id
	// 12 bits: sequence within the millisecond

	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = -1 ^ (-1 << nodeBits)
	maxSequence = -1 ^ (-1 << sequenceBits)

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits

	// Epoch is 2026-01-01 00:00:00 UTC.
	Epoch = 1767225600000

	// maxDriftMillis is how far the clock may step back before Next gives up.
	maxDriftMillis = 5
)

var (
	ErrNodeIDTooLarge = errors.New("node ID too large")
	ErrClockMovedBack = errors.New("clock moved backwards")
)

// Snowflake generates unique, time-ordered 64-bit record ids.
type Snowflake struct {
	mu       sync.Mutex
	clock    Clock
	nodeID   int64
	lastTime int64
	sequence int64
	sleep    func(time.Duration)
}

// New creates a generator for nodeID. A nil clock means the system clock.
func New(nodeID int64, clock Clock) (*Snowflake, error) {
	if nodeID < 0 || nodeID > int64(maxNodeID) {
		return nil, ErrNodeIDTooLarge
	}
	if clock == nil {
		clock = &SystemClock{}
	}

	return &Snowflake{
		clock:    clock,
		nodeID:   nodeID,
		lastTime: -1,
		sleep:    time.Sleep,
	}, nil
}

// Next returns the next id. Small backward clock steps are waited out;
// larger ones return ErrClockMovedBack.
func (s *Snowflake) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now < s.lastTime {
		drift := s.lastTime - now
		if drift > maxDriftMillis {
			return 0, ErrClockMovedBack
		}
		s.sleep(time.Duration(drift) * time.Millisecond)
		if now = s.clock.Now(); now < s.lastTime {
			return 0, ErrClockMovedBack
		}
	}

	if now == s.lastTime {
		s.sequence = (s.sequence + 1) & int64(maxSequence)
		if s.sequence == 0 {
			for now <= s.lastTime {
				now = s.clock.Now()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastTime = now

	return ((now - Epoch) << timestampShift) | (s.nodeID << nodeShift) | s.sequence, nil
}

// Decompose splits an id back into its timestamp, node and sequence parts.
func Decompose(id int64) (at time.Time, nodeID, sequence int64) {
	ms := (id >> timestampShift) + Epoch
	return time.UnixMilli(ms).UTC(), (id >> nodeShift) & int64(maxNodeID), id & int64(maxSequence)
}
