package monitor

import (
	"sync"

	"github.com/jondmarien/hemostat/internal/runtime"
)

// sampleState is the per-container in-process sampling progress. This
// cache is never persisted: it only decides whether CPU% can be computed
// yet, and is trivially rebuilt (as "unsampled") if the process restarts.
type sampleState int

const (
	stateUnsampled sampleState = iota
	stateSampledOnce
	stateSampledTwice
)

// tracker holds the previous sample for every known container so the next
// poll can compute CPU% deltas.
type tracker struct {
	mu    sync.Mutex
	byID  map[string]trackedContainer
}

type trackedContainer struct {
	state sampleState
	prev  runtime.Stats
}

func newTracker() *tracker {
	return &tracker{byID: make(map[string]trackedContainer)}
}

// advance records cur for id and returns the previous Stats plus whether
// enough history exists to compute a delta (i.e. this is at least the
// container's second observed sample).
func (t *tracker) advance(id string, cur runtime.Stats) (prev runtime.Stats, ready bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tc, known := t.byID[id]
	if !known {
		t.byID[id] = trackedContainer{state: stateSampledOnce, prev: cur}
		return runtime.Stats{}, false
	}

	ready = tc.state >= stateSampledOnce
	prev = tc.prev
	t.byID[id] = trackedContainer{state: stateSampledTwice, prev: cur}
	return prev, ready
}

// prune drops tracked containers not present in the current poll's live
// set, so a removed container's state doesn't leak forever.
func (t *tracker) prune(liveIDs map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.byID {
		if _, ok := liveIDs[id]; !ok {
			delete(t.byID, id)
		}
	}
}
