package version

import "slices"

// Set holds versions that are pairwise unequal under Compare.
//
// Equality is not transitive once releases are involved, so which member survives depends on
// insertion order: adding "1-1", "1" and "1-2" keeps "1-1" and "1-2".
type Set struct {
	buckets map[uint64][]Version
	n       int
}

// NewSet returns a set containing vs.
func NewSet(vs ...Version) *Set {
	s := &Set{buckets: make(map[uint64][]Version)}
	for _, v := range vs {
		s.Add(v)
	}
	return s
}

// Add inserts v unless an equal version is already present. It reports whether v was added.
func (s *Set) Add(v Version) bool {
	if s.buckets == nil {
		s.buckets = make(map[uint64][]Version)
	}
	h := v.Hash()
	for _, existing := range s.buckets[h] {
		if existing.Equal(v) {
			return false
		}
	}
	s.buckets[h] = append(s.buckets[h], v)
	s.n++
	return true
}

// Contains reports whether a version equal to v is present.
func (s *Set) Contains(v Version) bool {
	for _, existing := range s.buckets[v.Hash()] {
		if existing.Equal(v) {
			return true
		}
	}
	return false
}

// Remove deletes the member equal to v, if any.
func (s *Set) Remove(v Version) bool {
	h := v.Hash()
	bucket := s.buckets[h]
	for i, existing := range bucket {
		if existing.Equal(v) {
			s.buckets[h] = slices.Delete(bucket, i, i+1)
			if len(s.buckets[h]) == 0 {
				delete(s.buckets, h)
			}
			s.n--
			return true
		}
	}
	return false
}

// Len returns the number of members.
func (s *Set) Len() int {
	return s.n
}

// Values returns the members sorted from oldest to newest.
func (s *Set) Values() []Version {
	out := make([]Version, 0, s.n)
	for _, bucket := range s.buckets {
		out = append(out, bucket...)
	}
	Sort(out)
	return out
}
