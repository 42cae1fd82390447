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
Given one or more "samtools mpileup" text files, bio-pileup-reads reconstructs
the reads that the pileup was computed from and reports, per column, the
depth, the number of reads and deletions, and optionally each read's sequence
so far.  With -reads, every reconstructed read is also written out once it
ends.

Pileup text carries no read names, so reads are followed across columns by
their position in the base-call string.  Decoding stops at the first malformed
line.

Inputs may be gzip- or zstd-compressed; this is detected from the file name.

Sample usage:
bio-pileup-reads \
    --region chr2:10000-20000 \
    --cols +seqs,+strands \
    --reads \
    --out output-prefix \
    sample.pileup.gz
*/
package main
