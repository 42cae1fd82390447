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

/*
Package mpileup decodes samtools pileup text, one record per line, and
reconstructs the reads spanning consecutive lines.

A pileup line looks like

	chr1  199  A  4  ^].$,,.  IIII

i.e. reference name, 1-based position, reference base, depth, base-call
string and base-quality string.  The base-call string holds one token per
read overlapping the position.  Since pileup carries no read names, reads are
identified by the index of their token: the i-th token of a line continues
the i-th read still open after the previous line, a '^' marker opens a new
read, and a '$' marker closes the read once the line's record has been
produced.

Typical use:

	s := mpileup.NewScanner(r, mpileup.DefaultOpts)
	var rec mpileup.Record
	for s.Scan(&rec) {
		for _, read := range rec.Reads {
			...
		}
	}
	if err := s.Err(); err != nil {
		...
	}
*/
package mpileup
