// Package keylock provides per-key mutual exclusion over a fixed set of
// mutex shards. Keys hash to shards with FNV-1a; LockAll takes shards in
// ascending order so overlapping multi-key callers cannot deadlock.
package keylock

import (
	"hash/fnv"
	"sort"
	"sync"
)

// DefaultShards is used when New is given a non-positive count.
const DefaultShards = 256

type Locker struct {
	shards []sync.Mutex
}

func New(shards int) *Locker {
	if shards <= 0 {
		shards = DefaultShards
	}
	return &Locker{shards: make([]sync.Mutex, shards)}
}

func (l *Locker) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.shards)))
}

// Lock acquires the shard for key and returns its release function.
func (l *Locker) Lock(key string) func() {
	i := l.shard(key)
	l.shards[i].Lock()
	return l.shards[i].Unlock
}

// LockAll acquires every shard touched by keys, each once, in ascending
// shard order. The returned function releases them in reverse.
func (l *Locker) LockAll(keys []string) func() {
	seen := make(map[int]struct{}, len(keys))
	indices := make([]int, 0, len(keys))
	for _, key := range keys {
		i := l.shard(key)
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		indices = append(indices, i)
	}
	sort.Ints(indices)

	for _, i := range indices {
		l.shards[i].Lock()
	}
	return func() {
		for j := len(indices) - 1; j >= 0; j-- {
			l.shards[indices[j]].Unlock()
		}
	}
}
