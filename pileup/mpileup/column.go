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
	"errors"
	"strconv"
	"strings"

	"github.com/grailbio/bio-pileup/pileup"
)

const nColumnField = 6

// Column holds the six fields of a pileup line.
type Column struct {
	// RefName is the reference sequence (contig) name.
	RefName string
	// Pos is the 1-based position, as written in the line.
	Pos PosType
	// RefBase is the reference base, verbatim (case is not normalized).
	RefBase byte
	// Depth is the depth declared by the line, or DepthUnknown if the field is
	// not a non-negative integer (e.g. "NA").  It is not checked against the
	// number of base-call tokens.
	Depth int
	// Bases is the raw base-call string.
	Bases string
	// Quals is the raw base-quality string.
	Quals string
}

// DepthUnknown is the Depth of a line whose depth field does not parse.
const DepthUnknown = -1

// isPlaceholder returns true for the zero-coverage lines samtools -a writes,
// where both the base-call and quality strings are a lone '*'.  Such a line
// yields no tokens.  This is the one place where the declared depth steers
// tokenization: a lone '*' with any other depth is a gap token.
func (c *Column) isPlaceholder() bool {
	return c.Depth == 0 && c.Bases == "*" && c.Quals == "*"
}

// ParseColumn splits a pileup line into its fields.  Fields are separated by
// runs of whitespace.  The position must be an integer in [0, 2^31-1], the
// range of PosType; the depth field is not validated.  The returned error, if
// any, is an *Error of kind ErrFormat.
func ParseColumn(line string) (Column, error) {
	fields := strings.Fields(line)
	if len(fields) != nColumnField {
		return Column{}, &Error{
			Kind:     ErrFormat,
			Line:     line,
			TrackIdx: -1,
			Detail:   "expected " + strconv.Itoa(nColumnField) + " fields, got " + strconv.Itoa(len(fields)),
		}
	}
	pos, err := strconv.ParseUint(fields[1], 10, 31)
	if err != nil {
		detail := "position"
		if errors.Is(err, strconv.ErrRange) {
			detail = "position exceeds " + strconv.Itoa(int(pileup.PosTypeMax))
		}
		return Column{}, &Error{Kind: ErrFormat, Line: line, TrackIdx: -1, Detail: detail, Cause: err}
	}
	depth := DepthUnknown
	if d, err := strconv.ParseUint(fields[3], 10, 31); err == nil {
		depth = int(d)
	}
	return Column{
		RefName: fields[0],
		Pos:     PosType(pos),
		RefBase: fields[2][0],
		Depth:   depth,
		Bases:   fields[4],
		Quals:   fields[5],
	}, nil
}

// PosType is the integer type used to represent genomic positions.
type PosType = pileup.PosType
