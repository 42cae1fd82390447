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
	"bufio"
	"errors"
	"fmt"
	"io"

	gerrors "github.com/grailbio/base/errors"
)

// Opts controls Scanner behavior.
type Opts struct {
	// MaxLineLen is the longest line, in bytes, the scanner accepts.  Deep
	// columns produce very long base-call strings.
	MaxLineLen int
}

// DefaultOpts is the default Scanner configuration.
var DefaultOpts = Opts{
	MaxLineLen: 64 << 20,
}

const initialBufSize = 64 << 10

var errEOF = errors.New("eof")

// Scanner decodes a pileup text stream one line at a time.  Each successful
// call to Scan yields the record for the next line.  Scanners are not
// threadsafe.
//
// Once Scan returns false it never returns true again; Err then tells
// whether the end of the stream was reached or decoding failed.  Records
// returned before a failure remain valid.
type Scanner struct {
	b       *bufio.Scanner
	err     error
	lineNum int
	t       tracker
}

// NewScanner constructs a Scanner that reads pileup text from r.
func NewScanner(r io.Reader, opts Opts) *Scanner {
	if opts.MaxLineLen <= 0 {
		opts.MaxLineLen = DefaultOpts.MaxLineLen
	}
	b := bufio.NewScanner(r)
	bufSize := initialBufSize
	if bufSize > opts.MaxLineLen {
		bufSize = opts.MaxLineLen
	}
	b.Buffer(make([]byte, bufSize), opts.MaxLineLen)
	return &Scanner{b: b}
}

// Scan decodes the next line into rec.  rec is overwritten entirely; the
// slices it holds are never modified by later calls, so records may be
// retained.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil {
		return false
	}
	if !s.b.Scan() {
		if err := s.b.Err(); err != nil {
			s.err = gerrors.E(err, fmt.Sprintf("mpileup: reading line %d", s.lineNum+1))
		} else {
			s.err = errEOF
		}
		return false
	}
	s.lineNum++
	line := s.b.Text()
	col, err := ParseColumn(line)
	if err != nil {
		e := err.(*Error)
		e.LineNum = s.lineNum
		s.err = e
		return false
	}
	next := Record{Column: col}
	if e := s.t.advance(&next); e != nil {
		e.LineNum = s.lineNum
		e.Line = line
		s.err = e
		return false
	}
	*rec = next
	return true
}

// Err returns the error that stopped the scan, or nil at end of stream.
// Decoding failures are of type *Error.
func (s *Scanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}

// LineNum returns the number of lines read so far.
func (s *Scanner) LineNum() int {
	return s.lineNum
}

// NumOpen returns the number of reads that are still open after the last
// scanned column.
func (s *Scanner) NumOpen() int {
	return s.t.numOpen()
}

// Open returns snapshots of the reads still open after the last scanned
// column, in track index order.  At end of input these are the reads that
// never saw a read-end marker.
func (s *Scanner) Open() []Read {
	reads := make([]Read, len(s.t.reads))
	for i, r := range s.t.reads {
		reads[i] = r.snapshot()
	}
	return reads
}

// ReadAll decodes every line of r.  On failure it returns the records decoded
// before the failing line along with the error.
func ReadAll(r io.Reader, opts Opts) ([]Record, error) {
	var (
		s    = NewScanner(r, opts)
		recs []Record
		rec  Record
	)
	for s.Scan(&rec) {
		recs = append(recs, rec)
	}
	return recs, s.Err()
}
