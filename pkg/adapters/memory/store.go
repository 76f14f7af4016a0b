package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Store implements ports.ReportStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Report
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Report),
	}
}

// copyReport detaches a report from the caller's slices and result pointers.
func copyReport(r *domain.Report) *domain.Report {
	out := *r
	out.Nodes = make([]domain.NodeReport, len(r.Nodes))
	for i, n := range r.Nodes {
		if n.Result != nil {
			res := *n.Result
			n.Result = &res
		}
		out.Nodes[i] = n
	}
	out.Warnings = append([]string(nil), r.Warnings...)
	out.BuildErrors = append([]string(nil), r.BuildErrors...)
	return &out
}

// Save persists the report in memory.
func (s *Store) Save(ctx context.Context, report *domain.Report) error {
	copied := copyReport(report)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[report.RunID] = copied
	return nil
}

// Load retrieves a copy of the report.
func (s *Store) Load(ctx context.Context, runID string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return copyReport(report), nil
}

// Delete removes the report.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns stored run ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]string, 0, len(s.data))
	for id := range s.data {
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}

// Locker implements ports.Locker for a single process.
// TTLs are honoured: an expired holder no longer blocks new callers.
type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	next  uint64
	clock func() time.Time
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewLocker creates an in-process locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]lease), clock: time.Now}
}

// Lock polls until key is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if token, ok := l.tryAcquire(key, ttl); ok {
			return func(context.Context) error {
				l.mu.Lock()
				defer l.mu.Unlock()
				if cur, ok := l.held[key]; ok && cur.token == token {
					delete(l.held, key)
				}
				return nil
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, domain.ErrLockAcquire
		case <-ticker.C:
		}
	}
}

func (l *Locker) tryAcquire(key string, ttl time.Duration) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if cur, ok := l.held[key]; ok && (cur.expires.IsZero() || now.Before(cur.expires)) {
		return 0, false
	}
	l.next++
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	l.held[key] = lease{token: l.next, expires: exp}
	return l.next, true
}
