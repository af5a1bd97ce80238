// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package binindex

import (
	"github.com/pkg/errors"
)

// Scheme describes the shape of a binning hierarchy.  Level 0 is a single
// root bin spanning every position the scheme can address; each level below
// divides its parent's span into 8 equal cells.  MinShift is the log2 width
// of a bin on the finest level (and of a linear index window); Depth is the
// number of levels below the root.
//
// Bin ids are assigned breadth-first: bin 0 is the root, bins 1-8 are
// level 1, and so on.  The same Scheme must be used to build, persist and
// query an index; two schemes assign different ids to the same interval.
type Scheme struct {
	MinShift int32
	Depth    int32
}

// Classic is the scheme used by the legacy .bai format: 16 kbp bins on the
// finest of 5 levels, addressing positions below 2^29.
var Classic = Scheme{MinShift: 14, Depth: 5}

func (s Scheme) check() error {
	if s.MinShift < 1 || s.Depth < 1 {
		return errors.Errorf("binindex: invalid scheme (%d,%d): MinShift and Depth must be positive", s.MinShift, s.Depth)
	}
	if s.MinShift+3*s.Depth > 47 {
		return errors.Errorf("binindex: scheme (%d,%d) addresses positions beyond 2^47", s.MinShift, s.Depth)
	}
	return nil
}

// MaxPosition returns the exclusive upper bound of positions the scheme can
// address.  For the classic scheme this is 2^29.
func (s Scheme) MaxPosition() int {
	return 1 << uint(s.MinShift+3*s.Depth)
}

// WindowSize returns the width of one linear index window, which equals the
// width of a finest-level bin.
func (s Scheme) WindowSize() int {
	return 1 << uint(s.MinShift)
}

// NumBins returns the total number of bin ids the scheme defines, across
// all levels.  For the classic scheme this is 37449.
func (s Scheme) NumBins() int {
	return (1<<uint(3*(s.Depth+1)) - 1) / 7
}

// MetadataBinID returns the pseudo-bin id used by the persistence formats
// to store per-reference record counts.  It is one past the largest real
// bin id and is never assigned to records.
func (s Scheme) MetadataBinID() uint32 {
	return uint32(s.NumBins()) + 1
}

// Bin returns the id of the smallest bin that wholly contains the interval
// [start, end).  The result is a pure function of the scheme and the
// interval: an interval fits a bin on the finest level whose cell contains
// it, and promotes level by level toward the root as it crosses cell
// boundaries.  The whole-range interval lands in bin 0.
func (s Scheme) Bin(start, end int) uint32 {
	end--
	shift := uint(s.MinShift)
	t := (1<<uint(3*s.Depth) - 1) / 7
	for l := s.Depth; l > 0; l-- {
		if start>>shift == end>>shift {
			return uint32(t + start>>shift)
		}
		shift += 3
		t -= 1 << uint(3*(l-1))
	}
	return 0
}

// QueryBins returns the ids of every bin that may hold a record
// overlapping [start, end): on each level, the bins whose cells intersect
// the interval.  Bins absent from an index hold no records, so a query
// intersects this candidate list with the index's populated bins.
func (s Scheme) QueryBins(start, end int) []uint32 {
	if start < 0 {
		start = 0
	}
	if max := s.MaxPosition(); end > max {
		end = max
	}
	if end <= start {
		return nil
	}
	end--
	var bins []uint32
	shift := uint(s.MinShift + 3*s.Depth)
	t := 0
	for l := int32(0); l <= s.Depth; l++ {
		for i := t + start>>shift; i <= t+end>>shift; i++ {
			bins = append(bins, uint32(i))
		}
		shift -= 3
		t += 1 << uint(3*l)
	}
	return bins
}

// binStart returns the first position covered by the given bin.
func (s Scheme) binStart(id uint32) int {
	l := s.binLevel(id)
	return (int(id) - levelOffset(l)) << uint(s.MinShift+3*(s.Depth-l))
}

// binLevel returns the level of the given bin, 0 for the root.
func (s Scheme) binLevel(id uint32) int32 {
	for l := s.Depth; l > 0; l-- {
		if int(id) >= levelOffset(l) {
			return l
		}
	}
	return 0
}

// levelOffset returns the id of the first bin on level l.
func levelOffset(l int32) int {
	return (1<<uint(3*l) - 1) / 7
}
