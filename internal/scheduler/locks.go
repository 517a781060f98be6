package scheduler

import (
	"sort"
	"sync"
)

// SectionLockManager provides per-section mutual exclusion so concurrent
// generation tasks never interleave writes to the same document section.
// Keyed mutex pattern: each section id gets its own mutex, so tasks
// targeting different sections still run concurrently.
type SectionLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-section mutexes
}

// NewSectionLockManager creates an empty SectionLockManager.
func NewSectionLockManager() *SectionLockManager {
	return &SectionLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *SectionLockManager) lockFor(sectionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.locks[sectionID]
	if !exists {
		l = &sync.Mutex{}
		m.locks[sectionID] = l
	}
	return l
}

// Acquire takes the locks for all given section ids.
// Ids are sorted lexicographically before acquisition so that two tasks
// locking overlapping section sets can never deadlock each other.
func (m *SectionLockManager) Acquire(sectionIDs []string) {
	if len(sectionIDs) == 0 {
		return
	}

	sorted := append([]string(nil), sectionIDs...)
	sort.Strings(sorted)

	for _, id := range sorted {
		m.lockFor(id).Lock()
	}
}

// Release frees the locks for all given section ids, in reverse sorted
// order for symmetry with Acquire.
func (m *SectionLockManager) Release(sectionIDs []string) {
	if len(sectionIDs) == 0 {
		return
	}

	sorted := append([]string(nil), sectionIDs...)
	sort.Strings(sorted)

	for i := len(sorted) - 1; i >= 0; i-- {
		m.lockFor(sorted[i]).Unlock()
	}
}
