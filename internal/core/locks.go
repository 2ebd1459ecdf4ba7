package core

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// stripedLocks serializes same-key operations without a lock per
// learner-word pair. Cross-process writers are still caught by the
// store's version checks; this only removes self-inflicted conflicts.
type stripedLocks struct {
	mu [lockStripes]sync.Mutex
}

func (l *stripedLocks) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &l.mu[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
