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
	"github.com/grailbio/base/log"
)

// tracker correlates base-call tokens with reads across columns.
//
// Pileup text carries no read IDs.  samtools writes the reads overlapping a
// column in the order they were opened, so the i-th token of a column belongs
// to the read at index i of the open-read list, and a read that survives into
// the next column keeps its index once the reads that ended before it are
// removed.
type tracker struct {
	// reads is the open-read list, indexed by track index.
	reads []*readState
	// ending holds the track indices queued for removal in the current column,
	// in increasing order.
	ending []int
	// dropped collects the reads closed without an end marker in the current
	// column.
	dropped []Read
}

// advance applies rec.Column to the open-read list and fills in the rest of
// rec: a snapshot of the reads present in the column, the indices of the
// reads that ended there, and the reads that were dropped without an end
// marker.  On error the column must be treated as lost; the tracker should
// not be used again.
func (t *tracker) advance(rec *Record) *Error {
	col := &rec.Column
	rec.Reads, rec.Ending, rec.Dropped = nil, nil, nil
	bases := col.Bases
	if col.isPlaceholder() {
		bases = ""
	}
	t.ending = t.ending[:0]
	t.dropped = nil
	trackIdx := 0
	for pos := 0; pos < len(bases); trackIdx++ {
		tok, terr := nextToken(bases[pos:])
		if terr != nil {
			e := &Error{
				Kind:      terr.kind,
				Remainder: bases[pos:],
				TrackIdx:  trackIdx,
				Detail:    terr.detail,
				Cause:     terr.cause,
			}
			if trackIdx < len(t.reads) && !tok.start {
				read := t.reads[trackIdx].snapshot()
				e.Read = &read
			}
			return e
		}
		r := t.bind(trackIdx, &tok, col)
		if required := tok.requiredStrand(); !r.acceptsStrand(required) {
			read := r.snapshot()
			return &Error{
				Kind:      ErrDirectionConflict,
				Remainder: bases[pos:],
				TrackIdx:  trackIdx,
				Detail:    "read is " + r.strand.String() + ", symbol " + string(tok.base) + " implies " + required.String(),
				Read:      &read,
			}
		}
		r.apply(&tok, col)
		if tok.end {
			t.ending = append(t.ending, trackIdx)
		}
		pos += tok.n
	}
	if trackIdx < len(t.reads) {
		// These reads vanished without an end marker.  Dropping them keeps the
		// snapshot aligned with the column's tokens.
		log.Debug.Printf("mpileup: %s:%d: %d open read(s) not continued (%d token(s)), closing them",
			col.RefName, col.Pos, len(t.reads)-trackIdx, trackIdx)
		for i := trackIdx; i < len(t.reads); i++ {
			t.dropped = append(t.dropped, t.reads[i].snapshot())
			t.reads[i] = nil
		}
		t.reads = t.reads[:trackIdx]
	}

	rec.Reads = make([]Read, len(t.reads))
	for i, r := range t.reads {
		rec.Reads[i] = r.snapshot()
	}
	if len(t.ending) != 0 {
		rec.Ending = make([]int, len(t.ending))
		copy(rec.Ending, t.ending)
	}
	rec.Dropped = t.dropped
	// Remove from the back so that the remaining queued indices stay valid.
	for i := len(t.ending) - 1; i >= 0; i-- {
		t.remove(t.ending[i])
	}
	return nil
}

// bind returns the read that the token at trackIdx applies to, opening a new
// one if needed.
func (t *tracker) bind(trackIdx int, tok *token, col *Column) *readState {
	if trackIdx == len(t.reads) {
		r := newReadState(col.Pos)
		r.mapq = tok.mapq
		t.reads = append(t.reads, r)
		return r
	}
	if !tok.start {
		return t.reads[trackIdx]
	}
	// A read-start marker always introduces a new read.  Whatever occupied the
	// slot should have ended in an earlier column.
	old := t.reads[trackIdx].snapshot()
	log.Debug.Printf("mpileup: %s:%d: read-start at occupied track index %d, dropping %v",
		col.RefName, col.Pos, trackIdx, old)
	t.dropped = append(t.dropped, old)
	r := newReadState(col.Pos)
	r.mapq = tok.mapq
	t.reads[trackIdx] = r
	return r
}

func (t *tracker) remove(trackIdx int) {
	n := len(t.reads)
	copy(t.reads[trackIdx:], t.reads[trackIdx+1:])
	t.reads[n-1] = nil
	t.reads = t.reads[:n-1]
}

// numOpen returns the number of reads carried over to the next column.
func (t *tracker) numOpen() int {
	return len(t.reads)
}
