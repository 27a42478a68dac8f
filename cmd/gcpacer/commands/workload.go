package commands

import (
	"sync"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

// workloadCache retains recent request buffers up to a byte limit, standing
// in for the evictable caches of an embedding application.
type workloadCache struct {
	mu      sync.Mutex
	limit   uint64
	size    uint64
	entries [][]byte
}

func newWorkloadCache(limit uint64) *workloadCache {
	return &workloadCache{limit: limit}
}

// add retains buf, dropping the oldest entries once the limit is exceeded.
func (wc *workloadCache) add(buf []byte) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if wc.limit == 0 {
		return
	}

	wc.entries = append(wc.entries, buf)
	wc.size += uint64(len(buf))

	for wc.size > wc.limit && len(wc.entries) > 0 {
		wc.size -= uint64(len(wc.entries[0]))
		wc.entries[0] = nil
		wc.entries = wc.entries[1:]
	}
}

// evict drops half the entries on a best-effort request and all of them on
// an aggressive one.
func (wc *workloadCache) evict(effort pacer.EvictionEffort) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	keep := len(wc.entries) / 2
	if effort == pacer.EffortAggressive {
		keep = 0
	}

	drop := len(wc.entries) - keep
	for i := range drop {
		wc.size -= uint64(len(wc.entries[i]))
		wc.entries[i] = nil
	}

	wc.entries = append([][]byte(nil), wc.entries[drop:]...)
}

// stats returns the entry count and retained bytes.
func (wc *workloadCache) stats() (entries int, size uint64) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	return len(wc.entries), wc.size
}

// fill writes to every page of buf so the allocation is resident.
func fill(buf []byte, seed byte) {
	const pageSize = 4096

	for i := 0; i < len(buf); i += pageSize {
		buf[i] = seed
	}
}
