package sqlstore

import (
	"context"
	"log/slog"
	"sync"

	"shopsquad/internal/apperrors"
	"shopsquad/internal/models"
	"shopsquad/internal/store"
)

type queryFunc func(ctx context.Context, participantID string) ([]models.Squad, error)

// hub turns change announcements into fresh query results for the live
// subscriptions of this process.
type hub struct {
	query  queryFunc
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[*watcher]struct{}
}

type watcher struct {
	participantID string
	stream        *store.Stream
	kick          chan struct{}
}

func newHub(query queryFunc, logger *slog.Logger) *hub {
	return &hub{query: query, logger: logger, watchers: make(map[*watcher]struct{})}
}

func (h *hub) subscribe(ctx context.Context, participantID string) *store.Stream {
	w := &watcher{participantID: participantID, kick: make(chan struct{}, 1)}
	w.stream = store.NewStream(func() {
		h.mu.Lock()
		delete(h.watchers, w)
		h.mu.Unlock()
	})

	h.mu.Lock()
	h.watchers[w] = struct{}{}
	h.mu.Unlock()

	w.kick <- struct{}{}
	go h.watch(ctx, w)
	return w.stream
}

// watch re-runs the query once per kick. Kicks arriving during a query
// collapse into one follow-up run.
func (h *hub) watch(ctx context.Context, w *watcher) {
	for {
		select {
		case <-w.stream.Done():
			return
		case <-ctx.Done():
			w.stream.Unsubscribe()
			return
		case <-w.kick:
		}

		squads, err := h.query(ctx, w.participantID)
		if err != nil {
			if ctx.Err() != nil {
				w.stream.Unsubscribe()
				return
			}
			h.logger.Error("squad subscription query failed", "participant_id", w.participantID, "error", err)
			w.stream.Push(store.Snapshot{Err: apperrors.Persistence("sqlstore.SubscribeSquads", err)})
			return
		}
		w.stream.Push(store.Snapshot{Squads: squads})
	}
}

func (h *hub) dispatch(change store.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for w := range h.watchers {
		if !change.Affects(w.participantID) {
			continue
		}
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	watchers := make([]*watcher, 0, len(h.watchers))
	for w := range h.watchers {
		watchers = append(watchers, w)
	}
	h.mu.Unlock()

	for _, w := range watchers {
		w.stream.Unsubscribe()
	}
}
