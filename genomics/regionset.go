package genomics

import (
	"github.com/biogo/store/llrb"
)

type regionKey Region

// Compare compares two regionKey objects for use in llrb.
func (k regionKey) Compare(c2 llrb.Comparable) int {
	return Region(k).Compare(Region(c2.(regionKey)))
}

// RegionSet maintains a set of disjoint regions, merging regions that
// overlap or abut as they are added. It is not safe for concurrent use.
type RegionSet struct {
	tree llrb.Tree
}

// Add inserts r into the set, coalescing it with any stored region it
// overlaps or abuts. Empty and invalid regions are ignored.
func (s *RegionSet) Add(r Region) {
	if !r.Valid() || r.Empty() {
		return
	}
	// At most one stored region starts at or before r and reaches it.
	if c := s.tree.Floor(regionKey(r)); c != nil {
		prev := Region(c.(regionKey))
		if prev.RefID == r.RefID && prev.End >= r.Start {
			s.tree.Delete(c)
			if prev.Start < r.Start {
				r.Start = prev.Start
			}
			if prev.End > r.End {
				r.End = prev.End
			}
		}
	}
	// Absorb every stored region that begins inside or at the end of r.
	for {
		c := s.tree.Ceil(regionKey{RefID: r.RefID, Start: r.Start, End: 0})
		if c == nil {
			break
		}
		next := Region(c.(regionKey))
		if next.RefID != r.RefID || next.Start > r.End {
			break
		}
		s.tree.Delete(c)
		if next.End > r.End {
			r.End = next.End
		}
	}
	s.tree.Insert(regionKey(r))
}

// Len returns the number of disjoint regions in the set.
func (s *RegionSet) Len() int {
	return s.tree.Len()
}

// Regions returns the stored regions in (reference, start) order.
func (s *RegionSet) Regions() []Region {
	regions := make([]Region, 0, s.tree.Len())
	s.tree.Do(func(c llrb.Comparable) bool {
		regions = append(regions, Region(c.(regionKey)))
		return false
	})
	return regions
}

// Overlaps returns true if r intersects any region in the set.
func (s *RegionSet) Overlaps(r Region) bool {
	if !r.Valid() || r.Empty() {
		return false
	}
	if c := s.tree.Floor(regionKey(r)); c != nil {
		if prev := Region(c.(regionKey)); prev.Intersects(r) {
			return true
		}
	}
	if c := s.tree.Ceil(regionKey{RefID: r.RefID, Start: r.Start, End: 0}); c != nil {
		if next := Region(c.(regionKey)); next.Intersects(r) {
			return true
		}
	}
	return false
}
