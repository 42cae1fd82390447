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
	"fmt"
	"strings"
)

var (
	// ErrFormat is the kind of error returned for a line that does not split
	// into the six pileup fields, or whose position or depth is not a
	// non-negative integer.
	ErrFormat = errors.New("malformed pileup line")
	// ErrDirectionConflict is the kind of error returned when a base-call
	// symbol implies the opposite strand of the one already established for
	// its read.
	ErrDirectionConflict = errors.New("read direction conflict")
	// ErrUnrecognizedToken is the kind of error returned when the remaining
	// base-call string does not start with a known symbol.
	ErrUnrecognizedToken = errors.New("unrecognized base-call symbol")
	// ErrMalformedIndel is the kind of error returned when an insertion or
	// deletion sign is not followed by a length and that many sequence
	// characters.
	ErrMalformedIndel = errors.New("malformed indel annotation")
)

// Error describes a decoding failure.  Every decoding failure is fatal for
// the stream it occurred in.
//
// errors.Is(err, ErrMalformedIndel) and friends match on Kind.
type Error struct {
	// Kind is one of ErrFormat, ErrDirectionConflict, ErrUnrecognizedToken or
	// ErrMalformedIndel.
	Kind error
	// LineNum is the 1-based line number, or 0 if the column was parsed on its
	// own.
	LineNum int
	// Line is the offending line, without its line terminator.
	Line string
	// Remainder is the unconsumed part of the base-call string, starting at the
	// token that failed.  Empty for ErrFormat.
	Remainder string
	// TrackIdx is the track index the failing token was bound to, or -1.
	TrackIdx int
	// Read is the state of the active read before the failing token was
	// applied, or nil if no read was involved.
	Read *Read
	// Detail is a short description of what was wrong.
	Detail string
	// Cause is the underlying error, if any (e.g. from strconv).
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("mpileup: ")
	if e.LineNum > 0 {
		fmt.Fprintf(&b, "line %d: ", e.LineNum)
	}
	b.WriteString(e.Kind.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Kind != ErrFormat {
		fmt.Fprintf(&b, " at %q", e.Remainder)
		if e.TrackIdx >= 0 {
			fmt.Fprintf(&b, " (track index %d)", e.TrackIdx)
		}
	}
	if e.Read != nil {
		fmt.Fprintf(&b, ", read %v", *e.Read)
	}
	fmt.Fprintf(&b, ", column %q", e.Line)
	return b.String()
}

// Unwrap returns e.Kind.
func (e *Error) Unwrap() error {
	return e.Kind
}
