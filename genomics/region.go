// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package genomics provides reference-addressed coordinate types shared by the
// container and index encodings. Positions are zero-based; intervals are
// half-open [Start, End).
package genomics

import (
	"fmt"
	"math"
)

const (
	// UnmappedRefID is a pseudo reference ID for records that are not
	// assigned to any reference. Such records sort after records on all
	// valid references.
	UnmappedRefID = int32(-1)

	// InvalidRefID is a sentinel reference ID. We use -2 because -1 is
	// taken by UnmappedRefID.
	InvalidRefID = int32(-2)
)

// Region identifies a half-open interval [Start, End) on one reference
// sequence. RefID is the position of the reference in the file's reference
// list.
type Region struct {
	RefID      int32
	Start, End int
}

// sortableRefID maps UnmappedRefID to a value that sorts after every valid
// reference ID.
func sortableRefID(id int32) int32 {
	if id == UnmappedRefID {
		return math.MaxInt32
	}
	return id
}

// Compare returns (negative int, 0, positive int) if (r<r1, r=r1, r>r1) in
// (reference, start, end) order. Unmapped regions sort last.
func (r Region) Compare(r1 Region) int {
	refid0 := sortableRefID(r.RefID)
	refid1 := sortableRefID(r1.RefID)
	if refid0 != refid1 {
		return int(refid0 - refid1)
	}
	if r.Start != r1.Start {
		return r.Start - r1.Start
	}
	return r.End - r1.End
}

// Valid returns true if the region addresses a real reference with sane
// coordinates.
func (r Region) Valid() bool {
	return r.RefID >= 0 && r.Start >= 0 && r.Start <= r.End
}

// Empty returns true if the interval contains no positions.
func (r Region) Empty() bool {
	return r.End <= r.Start
}

// Contains returns true if pos lies within the interval.
func (r Region) Contains(pos int) bool {
	return pos >= r.Start && pos < r.End
}

// Intersects returns true if the two regions are on the same reference and
// their intervals share at least one position.
func (r Region) Intersects(r1 Region) bool {
	return r.RefID == r1.RefID && r.Start < r1.End && r1.Start < r.End
}

// Abuts returns true if the two regions are on the same reference and one
// interval ends exactly where the other begins.
func (r Region) Abuts(r1 Region) bool {
	return r.RefID == r1.RefID && (r.End == r1.Start || r1.End == r.Start)
}

func (r Region) String() string {
	return fmt.Sprintf("%d:%d-%d", r.RefID, r.Start, r.End)
}
