package squads

import (
	"sync"

	"shopsquad/internal/models"
	"shopsquad/internal/store"
)

// Feed is a live, date-sorted view of one identity's squads.
type Feed struct {
	sub store.Subscription
	out chan []models.Squad

	mu     sync.RWMutex
	latest []models.Squad
	err    error
	ready  chan struct{}

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

func newFeed(sub store.Subscription) *Feed {
	f := &Feed{
		sub:   sub,
		out:   make(chan []models.Squad, 1),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run()
	return f
}

// Updates delivers new snapshots; one the consumer has not read yet is
// replaced by its successor. It is closed when the feed ends.
func (f *Feed) Updates() <-chan []models.Squad {
	return f.out
}

// Latest returns the last snapshot received and whether one has arrived yet.
func (f *Feed) Latest() ([]models.Squad, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == nil {
		return nil, false
	}
	return cloneAll(f.latest), true
}

// Ready is closed once the first snapshot (or an error) has been received.
func (f *Feed) Ready() <-chan struct{} {
	return f.ready
}

// Err reports the error that ended the feed, if any.
func (f *Feed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Close ends the feed. Safe to call more than once; nothing is delivered
// after the first call returns.
func (f *Feed) Close() {
	f.once.Do(func() {
		close(f.done)
		f.sub.Unsubscribe()
		f.wg.Wait()
		for range f.out {
		}
	})
}

func (f *Feed) run() {
	defer f.wg.Done()
	defer close(f.out)

	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(f.ready) }) }
	defer markReady()

	for {
		var (
			snap store.Snapshot
			ok   bool
		)
		select {
		case <-f.done:
			return
		case snap, ok = <-f.sub.Updates():
		}
		if !ok {
			return
		}

		if snap.Err != nil {
			f.mu.Lock()
			f.err = snap.Err
			f.mu.Unlock()
			return
		}

		list := snap.Squads
		if list == nil {
			list = []models.Squad{}
		}
		SortByDate(list)

		f.mu.Lock()
		f.latest = list
		f.mu.Unlock()
		markReady()

		// replace a snapshot the consumer has not picked up yet
		select {
		case <-f.out:
		default:
		}
		f.out <- cloneAll(list)
	}
}

func cloneAll(list []models.Squad) []models.Squad {
	out := make([]models.Squad, len(list))
	for i, s := range list {
		out[i] = s.Clone()
	}
	return out
}
