package stocker

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-memory LedgerStore and SnapshotStore, safe for
// concurrent use. It has the same semantics as the SQLite store.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string][]Entry
	snapshots map[string]map[Date]DailySnapshot
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string][]Entry),
		snapshots: make(map[string]map[Date]DailySnapshot),
	}
}

func (m *MemoryStore) Entries(_ context.Context, user string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries[user]), nil
}

func (m *MemoryStore) AppendEntry(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entries := range m.entries {
		if slices.ContainsFunc(entries, func(x Entry) bool { return x.EntryID() == e.EntryID() }) {
			return fmt.Errorf("%w: duplicate entry id %q", ErrInvalidInput, e.EntryID())
		}
	}
	m.entries[e.Owner()] = append(m.entries[e.Owner()], e)
	return nil
}

func (m *MemoryStore) ReplaceEntry(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entries[e.Owner()]
	i := slices.IndexFunc(entries, func(x Entry) bool { return x.EntryID() == e.EntryID() })
	if i < 0 {
		return fmt.Errorf("entry %q: %w", e.EntryID(), ErrNotFound)
	}
	if entries[i].What().IsTrade() != e.What().IsTrade() {
		return fmt.Errorf("%w: entry %q cannot change from %s to %s", ErrInvalidInput, e.EntryID(), entries[i].What(), e.What())
	}
	entries[i] = e
	return nil
}

func (m *MemoryStore) RemoveEntry(_ context.Context, user, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entries[user]
	i := slices.IndexFunc(entries, func(x Entry) bool { return x.EntryID() == id })
	if i < 0 {
		return fmt.Errorf("entry %q: %w", id, ErrNotFound)
	}
	m.entries[user] = slices.Delete(entries, i, i+1)
	return nil
}

func (m *MemoryStore) Users(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []string
	for user, entries := range m.entries {
		if len(entries) > 0 {
			users = append(users, user)
		}
	}
	slices.Sort(users)
	return users, nil
}

func (m *MemoryStore) InsertSnapshot(_ context.Context, s DailySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	days := m.snapshots[s.User]
	if days == nil {
		days = make(map[Date]DailySnapshot)
		m.snapshots[s.User] = days
	}
	if _, exists := days[s.Date]; exists {
		return fmt.Errorf("%s on %s: %w", s.User, s.Date, ErrSnapshotConflict)
	}
	days[s.Date] = s
	return nil
}

func (m *MemoryStore) ReplaceSnapshot(_ context.Context, s DailySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	days := m.snapshots[s.User]
	if days == nil {
		days = make(map[Date]DailySnapshot)
		m.snapshots[s.User] = days
	}
	days[s.Date] = s
	return nil
}

func (m *MemoryStore) Snapshot(_ context.Context, user string, day Date) (DailySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[user][day]
	if !ok {
		return DailySnapshot{}, fmt.Errorf("%s on %s: %w", user, day, ErrSnapshotNotFound)
	}
	return s, nil
}

func (m *MemoryStore) Snapshots(_ context.Context, user string, limit int) ([]DailySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []DailySnapshot
	for _, s := range m.snapshots[user] {
		list = append(list, s)
	}
	slices.SortFunc(list, func(a, b DailySnapshot) int { return b.Date.Compare(a.Date) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

var (
	_ LedgerStore   = (*MemoryStore)(nil)
	_ SnapshotStore = (*MemoryStore)(nil)
)
