package tmb

import (
	"sync"

	"github.com/e1z0/mediacore/reader"
)

// poolKey is the reader pool's key: two tracks pointing at the same file
// intentionally get independent Readers, to avoid cross-track seek
// contention - a deliberate design decision, not an accident.
type poolKey struct {
	trackID string
	path    string
}

type poolEntry struct {
	reader   *reader.Reader
	lastUsed int64
}

// readerPool is an LRU-by-monotonic-counter map of open Readers, bounded
// to maxReaders. It never touches wall-clock time - eviction order is
// driven by a simple access counter, same role as the original's
// last_used monotonic counter.
type readerPool struct {
	mu      sync.Mutex
	entries map[poolKey]*poolEntry
	offline map[string]error
	seq     int64
	max     int
}

func newReaderPool(max int) *readerPool {
	return &readerPool{
		entries: make(map[poolKey]*poolEntry),
		offline: make(map[string]error),
		max:     max,
	}
}

// get returns the pooled Reader for key, opening it via open if not
// already present. A path previously marked offline is never retried;
// its recorded error is returned immediately.
func (p *readerPool) get(key poolKey, open func(path string) (*reader.Reader, error)) (*reader.Reader, error) {
	p.mu.Lock()
	if err, ok := p.offline[key.path]; ok {
		p.mu.Unlock()
		return nil, err
	}
	if e, ok := p.entries[key]; ok {
		p.seq++
		e.lastUsed = p.seq
		r := e.reader
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	r, err := open(key.path)
	if err != nil {
		p.mu.Lock()
		p.offline[key.path] = err
		p.mu.Unlock()
		return nil, err
	}

	p.mu.Lock()
	p.seq++
	p.entries[key] = &poolEntry{reader: r, lastUsed: p.seq}
	p.evictIfOverLocked()
	p.mu.Unlock()
	return r, nil
}

// evictIfOverLocked drops the least-recently-used entry until the pool is
// back within its budget. Caller holds p.mu.
func (p *readerPool) evictIfOverLocked() {
	for len(p.entries) > p.max {
		var oldestKey poolKey
		var oldestSeq int64 = -1
		for k, e := range p.entries {
			if oldestSeq == -1 || e.lastUsed < oldestSeq {
				oldestKey = k
				oldestSeq = e.lastUsed
			}
		}
		if oldestSeq == -1 {
			return
		}
		p.entries[oldestKey].reader.Close()
		delete(p.entries, oldestKey)
	}
}

func (p *readerPool) isOffline(path string) (error, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	err, ok := p.offline[path]
	return err, ok
}

// releaseTrack closes and drops every pool entry belonging to trackID.
func (p *readerPool) releaseTrack(trackID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.entries {
		if k.trackID == trackID {
			e.reader.Close()
			delete(p.entries, k)
		}
	}
}

func (p *readerPool) releaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.entries {
		e.reader.Close()
		delete(p.entries, k)
	}
	p.offline = make(map[string]error)
}
