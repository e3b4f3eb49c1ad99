package store

import (
	"hash/fnv"
	"sync"
)

// lockTable stripes per-id mutexes over a fixed number of shards.
type lockTable struct {
	shards []sync.Mutex
}

func newLockTable(n int) *lockTable {
	return &lockTable{shards: make([]sync.Mutex, n)}
}

// lock acquires the shard for id and returns its release function.
func (t *lockTable) lock(id string) func() {
	h := fnv.New32a()
	h.Write([]byte(id))
	m := &t.shards[h.Sum32()%uint32(len(t.shards))]
	m.Lock()
	return m.Unlock
}
