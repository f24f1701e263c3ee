// Package intern provides a sharded concurrent interning table.
//
// Values are de-duplicated by content: FindOrInsert returns the canonical
// value equal to its argument, inserting it if none exists, and every
// canonical value gets a stable small integer id. Insert-or-find takes one
// shard lock; looking a value up by id never locks.
package intern

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrFull is returned when the id space of a table is exhausted.
var ErrFull = errors.New("intern table full")

// ErrNotFound is returned by Remove for ids that hold no value.
var ErrNotFound = errors.New("id not found")

// Value is the constraint of interned values. Equal values must have equal
// hashes, and a value must not change once it has been inserted.
type Value[T any] interface {
	comparable
	Hash() uint64
	Equal(other T) bool
}

const (
	shardCount = 16
	chunkBits  = 12
	chunkSize  = 1 << chunkBits
)

// Options configures a table.
type Options struct {
	// MaxID is the exclusive upper bound of ids.
	MaxID uint32
}

type chunk[T any] [chunkSize]atomic.Pointer[T]

type entry[T any] struct {
	v  T
	id uint32
}

type shard[T any] struct {
	mu      sync.Mutex
	buckets map[uint64][]entry[T]
}

// Table interns values of type T.
type Table[T Value[T]] struct {
	shards [shardCount]shard[T]

	// Id allocation and the directory writes are guarded by idMu.
	idMu   sync.Mutex
	nextID uint32
	free   []uint32
	maxID  uint32
	dir    []atomic.Pointer[chunk[T]]
	count  atomic.Int64
}

// New creates a table.
func New[T Value[T]](opts Options) *Table[T] {
	maxID := opts.MaxID
	if maxID == 0 {
		maxID = 1 << 24
	}
	t := &Table[T]{
		maxID: maxID,
		dir:   make([]atomic.Pointer[chunk[T]], (int(maxID)+chunkSize-1)/chunkSize),
	}
	for i := range t.shards {
		t.shards[i].buckets = make(map[uint64][]entry[T])
	}
	return t
}

func (t *Table[T]) shardFor(hash uint64) *shard[T] {
	return &t.shards[(hash^(hash>>32))%shardCount]
}

// FindOrInsert returns the canonical value equal to v, its id and whether v
// itself was inserted. onInsert, when not nil, runs with the new id before
// the value becomes visible to other goroutines, so ids can be stored in the
// value itself.
func (t *Table[T]) FindOrInsert(v T, onInsert func(id uint32)) (T, uint32, bool, error) {
	hash := v.Hash()
	s := t.shardFor(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.buckets[hash] {
		if e.v.Equal(v) {
			return e.v, e.id, false, nil
		}
	}

	id, err := t.allocID()
	if err != nil {
		var zero T
		return zero, 0, false, err
	}
	if onInsert != nil {
		onInsert(id)
	}
	s.buckets[hash] = append(s.buckets[hash], entry[T]{v: v, id: id})
	t.store(id, v)
	t.count.Add(1)
	return v, id, true, nil
}

// Find returns the canonical value equal to v without inserting.
func (t *Table[T]) Find(v T) (T, bool) {
	hash := v.Hash()
	s := t.shardFor(hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.buckets[hash] {
		if e.v.Equal(v) {
			return e.v, true
		}
	}
	var zero T
	return zero, false
}

func (t *Table[T]) highWater() uint32 {
	t.idMu.Lock()
	defer t.idMu.Unlock()
	return t.nextID
}

func (t *Table[T]) allocID() (uint32, error) {
	t.idMu.Lock()
	defer t.idMu.Unlock()

	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		return id, nil
	}
	if t.nextID >= t.maxID {
		return 0, fmt.Errorf("%d ids in use: %w", t.maxID, ErrFull)
	}
	id := t.nextID
	t.nextID++
	return id, nil
}

func (t *Table[T]) store(id uint32, v T) {
	c := t.dir[id>>chunkBits].Load()
	if c == nil {
		t.idMu.Lock()
		c = t.dir[id>>chunkBits].Load()
		if c == nil {
			c = new(chunk[T])
			t.dir[id>>chunkBits].Store(c)
		}
		t.idMu.Unlock()
	}
	c[id&(chunkSize-1)].Store(&v)
}

// Get returns the value with the given id. It never blocks.
func (t *Table[T]) Get(id uint32) (T, bool) {
	var zero T
	if id >= t.maxID {
		return zero, false
	}
	c := t.dir[id>>chunkBits].Load()
	if c == nil {
		return zero, false
	}
	p := c[id&(chunkSize-1)].Load()
	if p == nil {
		return zero, false
	}
	return *p, true
}

// Remove deletes the value with the given id and recycles the id. It must not
// run concurrently with lookups of the removed value.
func (t *Table[T]) Remove(id uint32) error {
	v, ok := t.Get(id)
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrNotFound)
	}

	hash := v.Hash()
	s := t.shardFor(hash)
	s.mu.Lock()
	bucket := s.buckets[hash]
	for i, e := range bucket {
		if e.id == id {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(s.buckets, hash)
	} else {
		s.buckets[hash] = bucket
	}
	s.mu.Unlock()

	t.dir[id>>chunkBits].Load()[id&(chunkSize-1)].Store(nil)

	t.idMu.Lock()
	t.free = append(t.free, id)
	// Lowest ids are reused first.
	sort.Slice(t.free, func(i, j int) bool { return t.free[i] > t.free[j] })
	t.idMu.Unlock()

	t.count.Add(-1)
	return nil
}

// Len returns the number of values in the table.
func (t *Table[T]) Len() int { return int(t.count.Load()) }

// Range calls fn for every value in id order until fn returns false.
func (t *Table[T]) Range(fn func(id uint32, v T) bool) {
	n := t.highWater()
	for id := uint32(0); id < n; id++ {
		if v, ok := t.Get(id); ok {
			if !fn(id, v) {
				return
			}
		}
	}
}

// Clear removes every value and resets id allocation.
func (t *Table[T]) Clear() {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		s.buckets = make(map[uint64][]entry[T])
		s.mu.Unlock()
	}

	t.idMu.Lock()
	for i := range t.dir {
		t.dir[i].Store(nil)
	}
	t.nextID = 0
	t.free = nil
	t.idMu.Unlock()

	t.count.Store(0)
}
