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
	"strconv"

	"github.com/grailbio/bio-pileup/pileup"
)

// Base-call grammar, per read and per column:
//
//   token    = [start] symbol [indel] [end]
//   start    = '^' <any one byte: mapping quality>
//   symbol   = '.' | ',' | letter | '*'
//   indel    = ('+' | '-') digits <exactly N sequence bytes>
//   end      = '$'
//
// The token for track index i is the i-th token of the column's base-call
// string.

const (
	readStartChar = '^'
	readEndChar   = '$'
	fwdMatchChar  = '.'
	revMatchChar  = ','
	insertionChar = '+'
	deletionChar  = '-'
)

// symbolKind is the type of the mandatory base/strand symbol of a token.
type symbolKind uint8

const (
	symbolNone symbolKind = iota
	// symbolFwdMatch is '.': the reference base, forward strand.
	symbolFwdMatch
	// symbolRevMatch is ',': the reference base, reverse strand.
	symbolRevMatch
	// symbolMismatch is a literal base letter; case encodes the strand.
	symbolMismatch
	// symbolGap is '*': the read overlaps a reference deletion.
	symbolGap
)

// token is one read's worth of a column's base-call string.
type token struct {
	// start is set if the token began with a read-start marker.
	start bool
	// mapq is the raw mapping-quality byte following the read-start marker.
	mapq   byte
	symbol symbolKind
	// base is the symbol byte as written.
	base byte
	// indel is insertionChar, deletionChar or 0.
	indel byte
	// indelSeq is the annotated sequence, case preserved.
	indelSeq string
	// end is set if the token finished with a read-end marker.
	end bool
	// n is the number of bytes consumed.
	n int
}

// strand returns the strand the token's symbol implies, or StrandNone.
func (t *token) strand() pileup.StrandType {
	switch t.symbol {
	case symbolFwdMatch:
		return pileup.StrandFwd
	case symbolRevMatch:
		return pileup.StrandRev
	case symbolMismatch:
		if isUpper(t.base) {
			return pileup.StrandFwd
		}
		return pileup.StrandRev
	}
	return pileup.StrandNone
}

// requiredStrand returns the strand a read must be on (or have no strand
// yet) to accept the token.  Only '.' and ',' carry such a requirement.
func (t *token) requiredStrand() pileup.StrandType {
	if t.symbol == symbolMismatch {
		return pileup.StrandNone
	}
	return t.strand()
}

// tokenError is returned by productions.  off is relative to the start of the
// token.
type tokenError struct {
	kind   error
	off    int
	detail string
	cause  error
}

func (e *tokenError) Error() string {
	return e.kind.Error() + ": " + e.detail
}

// A production tries to match one grammar element at the start of s.  It
// returns the number of bytes consumed, 0 if the element is absent.
type production struct {
	name     string
	optional bool
	match    func(s string, tok *token) (int, *tokenError)
}

// productions are attempted in order against the remainder of the token.
var productions = [...]production{
	{"read-start", true, matchReadStart},
	{"base", false, matchSymbol},
	{"indel", true, matchIndel},
	{"read-end", true, matchReadEnd},
}

// nextToken consumes one token from the start of bases, which must be
// nonempty.
func nextToken(bases string) (tok token, err *tokenError) {
	pos := 0
	for i := range productions {
		p := &productions[i]
		n, perr := p.match(bases[pos:], &tok)
		if perr != nil {
			perr.off += pos
			return tok, perr
		}
		if n == 0 && !p.optional {
			return tok, &tokenError{kind: ErrUnrecognizedToken, off: pos, detail: "expected " + p.name + " symbol"}
		}
		pos += n
	}
	tok.n = pos
	return tok, nil
}

func matchReadStart(s string, tok *token) (int, *tokenError) {
	if len(s) == 0 || s[0] != readStartChar {
		return 0, nil
	}
	if len(s) < 2 {
		return 0, &tokenError{kind: ErrUnrecognizedToken, detail: "read-start marker without mapping quality"}
	}
	tok.start = true
	tok.mapq = s[1]
	return 2, nil
}

func matchSymbol(s string, tok *token) (int, *tokenError) {
	if len(s) == 0 {
		return 0, nil
	}
	c := s[0]
	switch {
	case c == fwdMatchChar:
		tok.symbol = symbolFwdMatch
	case c == revMatchChar:
		tok.symbol = symbolRevMatch
	case c == pileup.GapChar:
		tok.symbol = symbolGap
	case isLetter(c):
		tok.symbol = symbolMismatch
	default:
		return 0, nil
	}
	tok.base = c
	return 1, nil
}

func matchIndel(s string, tok *token) (int, *tokenError) {
	if len(s) == 0 || (s[0] != insertionChar && s[0] != deletionChar) {
		return 0, nil
	}
	nDigit := 0
	for 1+nDigit < len(s) && isDigit(s[1+nDigit]) {
		nDigit++
	}
	if nDigit == 0 {
		return 0, &tokenError{kind: ErrMalformedIndel, detail: "missing length"}
	}
	seqStart := 1 + nDigit
	seqLen, err := strconv.Atoi(s[1:seqStart])
	if err != nil {
		return 0, &tokenError{kind: ErrMalformedIndel, detail: "length", cause: err}
	}
	if seqLen == 0 {
		return 0, &tokenError{kind: ErrMalformedIndel, detail: "zero length"}
	}
	if seqLen > len(s)-seqStart {
		return 0, &tokenError{kind: ErrMalformedIndel, detail: "declared length " + strconv.Itoa(seqLen) + " exceeds remaining input"}
	}
	seqEnd := seqStart + seqLen
	for i := seqStart; i < seqEnd; i++ {
		if !isIndelChar(s[i]) {
			return 0, &tokenError{kind: ErrMalformedIndel, detail: "only " + strconv.Itoa(i-seqStart) + " of " + strconv.Itoa(seqLen) + " sequence characters present"}
		}
	}
	tok.indel = s[0]
	tok.indelSeq = s[seqStart:seqEnd]
	return seqEnd, nil
}

func matchReadEnd(s string, tok *token) (int, *tokenError) {
	if len(s) == 0 || s[0] != readEndChar {
		return 0, nil
	}
	tok.end = true
	return 1, nil
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isLetter(c byte) bool {
	return isUpper(c) || (c >= 'a' && c <= 'z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isIndelChar reports whether c may appear in an indel annotation's
// sequence.  Besides bases (IUPAC codes included) samtools may write '*' for
// padding and '=' for bases matching the reference.
func isIndelChar(c byte) bool {
	return isLetter(c) || c == pileup.GapChar || c == '='
}
