// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package binindex implements hierarchical binning indexes over bgzf
// files containing coordinate-sorted records.  An index maps a genomic
// interval to the small set of bgzf chunks that may contain records
// overlapping the interval, so a reader can seek to those chunks
// instead of scanning the whole file.
//
// Binning scheme
//
// A Scheme is parameterized by MinShift, the width in bits of the
// finest bin, and Depth, the number of levels below the root.  The
// reference sequence is covered by a complete tree of bins: one root
// bin spanning [0, 2^(MinShift+3*Depth)), whose children each span an
// eighth of their parent, down to Depth levels.  Bins are numbered
// breadth-first from the root, so for the classic scheme used by .bai
// (MinShift 14, Depth 5) the levels are:
//
//	level  bins         bin width
//	0      0            512 Mbp
//	1      1-8          64 Mbp
//	2      9-72         8 Mbp
//	3      73-584       1 Mbp
//	4      585-4680     128 kbp
//	5      4681-37448   16 kbp
//
// A record is assigned to the smallest bin that fully contains it.  A
// query for an interval collects the chunks of every bin that could
// hold an overlapping record, then discards chunks that a per-window
// linear index proves end before the first record of interest.
//
// File formats
//
// The package reads and writes two index file formats, both little
// endian.  The .bai format is fixed to the classic scheme:
//
//	magic "BAI\1", then int32 number of references; per reference:
//	  int32 number of bins; per bin:
//	    uint32 bin id, int32 number of chunks, then per chunk the
//	    uint64 begin and end virtual offsets
//	  int32 number of 16 kbp windows, then per window the uint64
//	  virtual offset of the first record overlapping the window
//	optionally, a trailing uint64 count of unplaced records
//
// The .csi format carries MinShift and Depth in its header, so it can
// index positions beyond the classic limit of 2^29-1.  It stores no
// linear index; instead each bin records the virtual offset of the
// first record in any bin overlapping its span (loffset), and queries
// prune with that.  The whole payload is itself bgzf compressed:
//
//	magic "CSI\1", int32 min_shift, int32 depth, int32 aux length and
//	  that many bytes of aux data, then int32 number of references;
//	  per reference:
//	    int32 number of bins; per bin:
//	      uint32 bin id, uint64 loffset, chunks as in .bai
//	optionally, a trailing uint64 count of unplaced records
//
// Both formats reserve a pseudo-bin numbered one past the largest real
// bin (37450 for the classic scheme).  Its two pseudo-chunks carry the
// file range of the reference's records and the counts of mapped and
// unmapped records; ReadBAI and ReadCSI surface them as
// ReferenceIndex.Meta rather than as a bin.
//
// Use Builder to construct an index from a sorted record stream, and
// Index.Chunks to query one.  ReadFile and WriteFile pick the format
// from the file extension.
package binindex
