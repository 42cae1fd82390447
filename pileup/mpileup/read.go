// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package mpileup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/bio-pileup/pileup"
)

// Read is a snapshot of one read as of a single column.
//
// Seq is always in reference order, whatever the strand; it holds exactly one
// byte per column the read has appeared in so far: the reference base for a
// match, the literal base for a mismatch, or pileup.GapChar where the read
// spans a reference deletion.  Inserted bases are kept apart in Insertions.
type Read struct {
	// Strand is StrandNone until a symbol implying a strand is seen.
	Strand pileup.StrandType
	Seq    string
	// Insertions maps the 1-based position of the column preceding each
	// insertion to the inserted bases.  nil if the read has no insertions.
	Insertions map[PosType]string
	// Start is the position of the column the read first appeared in.
	Start PosType
	// Last is the position of the most recent column the read appeared in.
	Last PosType
	// MapQ is the raw mapping-quality byte of the read-start marker, or 0 if
	// the read was not opened by one.
	MapQ byte
}

// LastBase returns the symbol the read contributed to its most recent
// column.
func (r *Read) LastBase() byte {
	return r.Seq[len(r.Seq)-1]
}

// InsertionPositions returns the keys of r.Insertions in increasing order.
func (r *Read) InsertionPositions() []PosType {
	positions := make([]PosType, 0, len(r.Insertions))
	for pos := range r.Insertions {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	return positions
}

// FormatInsertions renders r.Insertions as "pos:bases" pairs joined by ',',
// or "." if there are none.
func (r *Read) FormatInsertions() string {
	if len(r.Insertions) == 0 {
		return "."
	}
	parts := make([]string, 0, len(r.Insertions))
	for _, pos := range r.InsertionPositions() {
		parts = append(parts, fmt.Sprintf("%d:%s", pos, r.Insertions[pos]))
	}
	return strings.Join(parts, ",")
}

func (r Read) String() string {
	return fmt.Sprintf("{%v %d-%d %s %s}", r.Strand, r.Start, r.Last, r.Seq, r.FormatInsertions())
}

// readState is the mutable form of Read, owned by a tracker while the read is
// open.
type readState struct {
	strand     pileup.StrandType
	seq        []byte
	insertions map[PosType]string
	start      PosType
	last       PosType
	mapq       byte
}

func newReadState(pos PosType) *readState {
	return &readState{start: pos, last: pos}
}

// snapshot returns a copy of r which shares no memory with it.
func (r *readState) snapshot() Read {
	read := Read{
		Strand: r.strand,
		Seq:    string(r.seq),
		Start:  r.start,
		Last:   r.last,
		MapQ:   r.mapq,
	}
	if len(r.insertions) != 0 {
		read.Insertions = make(map[PosType]string, len(r.insertions))
		for pos, bases := range r.insertions {
			read.Insertions[pos] = bases
		}
	}
	return read
}

// acceptsStrand returns false if the read's established strand contradicts s.
func (r *readState) acceptsStrand(s pileup.StrandType) bool {
	return s == pileup.StrandNone || r.strand == pileup.StrandNone || r.strand == s
}

// apply adds the effects of tok, found in col, to the read.  The caller must
// have checked tok.requiredStrand() with acceptsStrand.
func (r *readState) apply(tok *token, col *Column) {
	switch tok.symbol {
	case symbolFwdMatch, symbolRevMatch:
		r.strand = tok.strand()
		r.seq = append(r.seq, col.RefBase)
	case symbolMismatch:
		// Letter case only establishes a strand; it is not cross-checked
		// against an already known one.
		if r.strand == pileup.StrandNone {
			r.strand = tok.strand()
		}
		r.seq = append(r.seq, tok.base)
	case symbolGap:
		r.seq = append(r.seq, pileup.GapChar)
	}
	// Deleted bases are not attributed to the read.
	if tok.indel == insertionChar {
		if r.insertions == nil {
			r.insertions = make(map[PosType]string)
		}
		// Copy, since indelSeq points into the line.
		r.insertions[col.Pos] = string([]byte(tok.indelSeq))
	}
	r.last = col.Pos
}
