package store

import "sync"

// Stream is a Subscription fed by a producer through Push. The producer never
// blocks: when the consumer lags, pending snapshots are coalesced and only the
// newest one is delivered next.
type Stream struct {
	out    chan Snapshot
	wake   chan struct{}
	done   chan struct{}
	exited chan struct{}
	onStop func()

	mu      sync.Mutex
	pending *Snapshot
	once    sync.Once
}

// NewStream starts the delivery goroutine. onStop, when set, runs once on Unsubscribe.
func NewStream(onStop func()) *Stream {
	s := &Stream{
		out:    make(chan Snapshot),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		onStop: onStop,
	}
	go s.run()
	return s
}

// Push queues snap for delivery, replacing any snapshot not yet delivered.
func (s *Stream) Push(snap Snapshot) {
	s.mu.Lock()
	s.pending = &snap
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Stream) Updates() <-chan Snapshot {
	return s.out
}

// Done is closed when the consumer unsubscribes.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe stops delivery. It is safe to call more than once; after the
// first call returns no snapshot is delivered and Updates is closed.
func (s *Stream) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		if s.onStop != nil {
			s.onStop()
		}
		<-s.exited
	})
}

func (s *Stream) run() {
	defer close(s.exited)
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		s.mu.Unlock()
		if snap == nil {
			continue
		}

		select {
		case s.out <- *snap:
		case <-s.done:
			return
		}
		if snap.Err != nil {
			return
		}
	}
}
