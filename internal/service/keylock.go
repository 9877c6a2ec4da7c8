package service

import (
	"hash/fnv"
	"sort"
	"sync"
)

const lockStripes = 64

// keyLock serializes operations per logical key using striped mutexes.
// Creation locks the natural key; claims lock both the natural key and the
// external account. Stripes are always taken in ascending index order so
// multi-key holders cannot deadlock each other.
type keyLock struct {
	stripes [lockStripes]sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{}
}

func (l *keyLock) stripe(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % lockStripes)
}

// lock acquires the stripes for the given keys and returns the matching
// unlock function.
func (l *keyLock) lock(keys ...string) func() {
	seen := make(map[int]struct{}, len(keys))
	indexes := make([]int, 0, len(keys))
	for _, key := range keys {
		i := l.stripe(key)
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for _, i := range indexes {
		l.stripes[i].Lock()
	}
	return func() {
		for j := len(indexes) - 1; j >= 0; j-- {
			l.stripes[indexes[j]].Unlock()
		}
	}
}
