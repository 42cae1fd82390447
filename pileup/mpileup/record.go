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

import "github.com/grailbio/bio-pileup/pileup"

// Record is the decoded form of one pileup line.
type Record struct {
	Column
	// Reads holds a snapshot of every read present at this column, in track
	// index order.  Reads[i] was produced by the i-th base-call token.
	Reads []Read
	// Ending lists, in increasing order, the indices into Reads of the reads
	// that ended at this column.  They do not appear in later records.
	Ending []int
	// Dropped holds the final state of reads that were closed at this column
	// without a read-end marker: reads the column's tokens did not reach, and
	// reads displaced by a read-start marker.  They appear in no Reads slice
	// of this or later records.
	Dropped []Read
}

// NumReads returns the number of reads present at this column.  It may
// differ from the declared depth.
func (r *Record) NumReads() int {
	return len(r.Reads)
}

// NumDeletions returns the number of reads that span a reference deletion at
// this column.
func (r *Record) NumDeletions() int {
	n := 0
	for i := range r.Reads {
		if r.Reads[i].LastBase() == pileup.GapChar {
			n++
		}
	}
	return n
}

// Coverage returns the number of base qualities on the line.
func (r *Record) Coverage() int {
	if r.isPlaceholder() {
		return 0
	}
	return len(r.Quals)
}

// IsEnding returns true if Reads[i] ended at this column.
func (r *Record) IsEnding(i int) bool {
	for _, j := range r.Ending {
		if j == i {
			return true
		}
		if j > i {
			break
		}
	}
	return false
}
