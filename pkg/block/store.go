package block

import "sync"

// Store is the associative structure mapping weak hashes to the blocks that
// produced them. Lookup by weak hash is O(1) average; disambiguating a
// bucket by strong hash is linear in the bucket's size, which in practice
// holds one or two entries.
//
// A Store built by the indexer is populated once and read thereafter by the
// delta builder, so the zero-value locking strategy favors a read-mostly
// workload: Insert takes a full lock, Lookup and ContainsStrong take a
// read lock.
type Store struct {
	mu      sync.RWMutex
	buckets map[uint32][]Block
}

// NewStore returns an empty block store.
func NewStore() *Store {
	return &Store{buckets: make(map[uint32][]Block)}
}

// Insert records a block under its weak hash. Blocks are appended in
// insertion order, which callers should drive in (file_id, offset) order so
// that earliest matches win on weak-hash ties, per the index's ordering
// invariant.
func (s *Store) Insert(b Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[b.Weak] = append(s.buckets[b.Weak], b)
}

// Lookup returns the blocks recorded under weak, in insertion order. The
// returned slice is a copy and safe for the caller to retain.
func (s *Store) Lookup(weak uint32) []Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.buckets[weak]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]Block, len(bucket))
	copy(out, bucket)
	return out
}

// ContainsStrong disambiguates the weak-hash bucket by strong hash, per
// invariant (a): blocks sharing a (weak, strong) pair are treated as
// identical content, so the first match in insertion order is returned.
func (s *Store) ContainsStrong(weak uint32, strong Strong) (Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.buckets[weak] {
		if b.Strong == strong {
			return b, true
		}
	}
	return Block{}, false
}

// Len returns the total number of blocks recorded across all buckets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, bucket := range s.buckets {
		total += len(bucket)
	}
	return total
}

// All returns every block in the store. Order is unspecified across
// buckets but stable within a bucket. Intended for serialization, where the
// caller re-sorts by (file_id, offset) before writing.
func (s *Store) All() []Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Block, 0, s.Len())
	for _, bucket := range s.buckets {
		out = append(out, bucket...)
	}
	return out
}
