package volume

import "sync"

// Locker hands out one reader/writer lock per volume name.  Plane reads hold the read
// lock; plane writes and rebuilds hold the write lock.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.RWMutex)}
}

func (l *Locker) get(volume string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, found := l.locks[volume]
	if !found {
		m = new(sync.RWMutex)
		l.locks[volume] = m
	}
	return m
}

// Lock acquires the exclusive lock of a volume and returns its release.
func (l *Locker) Lock(volume string) (unlock func()) {
	m := l.get(volume)
	m.Lock()
	return m.Unlock
}

// RLock acquires the shared lock of a volume and returns its release.
func (l *Locker) RLock(volume string) (unlock func()) {
	m := l.get(volume)
	m.RLock()
	return m.RUnlock
}
