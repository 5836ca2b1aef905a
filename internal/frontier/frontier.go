package frontier

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/nao1215/wikiacrawl/internal/model"
)

// compactThreshold is the number of consumed slots after which the
// backing slice is compacted.
const compactThreshold = 1024

// Frontier is the FIFO queue of URLs to fetch together with the visited set.
//
// A URL is in exactly one of three places: queued, in flight (dequeued but
// without a recorded outcome), or visited. Enqueue rejects a URL already in
// any of them, which keeps the queue free of duplicates and disjoint from
// the visited set.
//
// Frontier is safe for concurrent use.
type Frontier struct {
	mu sync.Mutex

	queue  []model.FrontierEntry
	head   int
	queued map[string]struct{}

	inFlight map[string]inFlightEntry
	seq      uint64

	visited map[string]model.VisitedRecord
}

type inFlightEntry struct {
	entry model.FrontierEntry
	seq   uint64
}

// New creates an empty Frontier.
func New() *Frontier {
	return &Frontier{
		queued:   make(map[string]struct{}),
		inFlight: make(map[string]inFlightEntry),
		visited:  make(map[string]model.VisitedRecord),
	}
}

// Restore rebuilds a Frontier from checkpointed entries and visited records.
// Entries are kept in their saved order; an entry that is already visited
// or duplicated is an error because the checkpoint is then inconsistent.
func Restore(entries []model.FrontierEntry, visited map[string]model.VisitedRecord) (*Frontier, error) {
	f := New()
	maps.Copy(f.visited, visited)
	for _, e := range entries {
		if !f.Enqueue(e) {
			return nil, fmt.Errorf("%w: %s", model.ErrInconsistentState, e.URL)
		}
	}
	return f, nil
}

// Enqueue appends e unless its URL is already queued, in flight or visited.
// It reports whether the entry was added.
func (f *Frontier) Enqueue(e model.FrontierEntry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.acceptable(e.URL) {
		return false
	}
	f.queue = append(f.queue, e)
	f.queued[e.URL] = struct{}{}
	return true
}

func (f *Frontier) acceptable(u string) bool {
	if _, ok := f.queued[u]; ok {
		return false
	}
	if _, ok := f.inFlight[u]; ok {
		return false
	}
	_, ok := f.visited[u]
	return !ok
}

// Dequeue removes the oldest entry and moves it in flight.
// It returns false when the queue is empty.
func (f *Frontier) Dequeue() (model.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for f.head < len(f.queue) {
		e := f.queue[f.head]
		f.queue[f.head] = model.FrontierEntry{}
		f.head++
		if _, ok := f.queued[e.URL]; !ok {
			// Removed by MarkVisited while still queued.
			continue
		}
		delete(f.queued, e.URL)
		f.seq++
		f.inFlight[e.URL] = inFlightEntry{entry: e, seq: f.seq}
		f.compact()
		return e, true
	}
	f.compact()
	return model.FrontierEntry{}, false
}

func (f *Frontier) compact() {
	if f.head == len(f.queue) {
		f.queue = f.queue[:0]
		f.head = 0
		return
	}
	if f.head >= compactThreshold && f.head*2 >= len(f.queue) {
		f.queue = slices.Clone(f.queue[f.head:])
		f.head = 0
	}
}

// Requeue returns in-flight entries to the front of the queue, keeping
// the order in which they are given. Entries that are not in flight are
// ignored.
func (f *Frontier) Requeue(entries ...model.FrontierEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	front := make([]model.FrontierEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := f.inFlight[e.URL]; !ok {
			continue
		}
		delete(f.inFlight, e.URL)
		f.queued[e.URL] = struct{}{}
		front = append(front, e)
	}
	if len(front) == 0 {
		return
	}
	f.queue = append(front, f.queue[f.head:]...)
	f.head = 0
}

// MarkVisited records the terminal outcome of u and removes it from the
// queue and the in-flight set. The first recorded outcome wins, so calling
// it again for the same URL has no effect.
func (f *Frontier) MarkVisited(u string, rec model.VisitedRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.inFlight, u)
	delete(f.queued, u)
	if _, ok := f.visited[u]; ok {
		return
	}
	f.visited[u] = rec
}

// Size returns the number of queued entries.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queued)
}

// IsEmpty reports whether no entry is queued.
func (f *Frontier) IsEmpty() bool {
	return f.Size() == 0
}

// InFlight returns the number of dequeued entries without an outcome.
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inFlight)
}

// IsVisited reports whether u has a terminal record.
func (f *Frontier) IsVisited(u string) bool {
	_, ok := f.Visited(u)
	return ok
}

// Visited returns the terminal record of u.
func (f *Frontier) Visited(u string) (model.VisitedRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.visited[u]
	return rec, ok
}

// VisitedCount returns the number of URLs with a terminal record.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Snapshot returns copies of the pending entries and the visited map.
// In-flight entries come first, in dequeue order, followed by the queue,
// so a snapshot taken mid-batch loses no URL.
func (f *Frontier) Snapshot() ([]model.FrontierEntry, map[string]model.VisitedRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending := make([]inFlightEntry, 0, len(f.inFlight))
	for _, e := range f.inFlight {
		pending = append(pending, e)
	}
	slices.SortFunc(pending, func(a, b inFlightEntry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	entries := make([]model.FrontierEntry, 0, len(pending)+len(f.queued))
	for _, e := range pending {
		entries = append(entries, e.entry)
	}
	for _, e := range f.queue[f.head:] {
		if _, ok := f.queued[e.URL]; ok {
			entries = append(entries, e)
		}
	}
	return entries, maps.Clone(f.visited)
}
