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
package report

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/bio-pileup/pileup"
)

func init() {
	recordiozstd.Init()
}

const (
	// FieldCounts marks the depth/read/deletion/coverage counts.
	FieldCounts = 1 << iota
	// FieldReads marks the per-read summaries.
	FieldReads
)

// DepthUnknown is the ColumnRow.Depth of a line whose depth field did not
// parse.
const DepthUnknown = ^uint32(0)

const trailerVersion = 1

// ReadRow summarizes one read present at a column.
type ReadRow struct {
	Strand pileup.StrandType
	// Start is the 0-based position at which the read first appeared.
	Start uint32
	Seq   string
	// Insertions is in mpileup.Read.FormatInsertions form.
	Insertions string
}

// ColumnRow is the recordio form of one reported pileup column.  Pos is
// 0-based; contig names are stored once, in the file trailer, and referred to
// by RefID.
type ColumnRow struct {
	FieldsPresent uint32 // Field... flags
	RefID         uint32
	Pos           uint32
	RefBase       byte
	Depth         uint32
	NumReads      uint32
	NumDeletions  uint32
	Coverage      uint32
	Reads         []ReadRow
}

// cutAndAdvance returns s[offset:offset+pieceLen], and increments offset by
// pieceLen.
func cutAndAdvance(offset *int, s []byte, pieceLen int) []byte {
	tmpSlice := s[(*offset):]
	*offset += pieceLen
	return tmpSlice[:pieceLen]
}

// Serialized format:
//   [0..4): fieldsPresent
//   [4..8): refID
//   [8..12): pos
//   [12]: refBase
//   if counts present, depth/nReads/nDel/coverage in next 16 bytes
//   if reads present, count in next 4 bytes, then per read:
//     strand (1 byte), start (4), seq length (4), seq, insertions length (4),
//     insertions
// All integers are little-endian.
func MarshalColumnRow(scratch []byte, p interface{}) ([]byte, error) {
	cr := p.(*ColumnRow)
	fieldsPresent := cr.FieldsPresent
	bytesReq := 13
	if fieldsPresent&FieldCounts != 0 {
		bytesReq += 16
	}
	if fieldsPresent&FieldReads != 0 {
		bytesReq += 4
		for i := range cr.Reads {
			bytesReq += 13 + len(cr.Reads[i].Seq) + len(cr.Reads[i].Insertions)
		}
	}
	t := scratch
	if len(t) < bytesReq {
		t = make([]byte, bytesReq)
	}
	t = t[:bytesReq]

	offset := 0
	tStart := cutAndAdvance(&offset, t, 13)
	binary.LittleEndian.PutUint32(tStart[0:4], fieldsPresent)
	binary.LittleEndian.PutUint32(tStart[4:8], cr.RefID)
	binary.LittleEndian.PutUint32(tStart[8:12], cr.Pos)
	tStart[12] = cr.RefBase
	if fieldsPresent&FieldCounts != 0 {
		tCounts := cutAndAdvance(&offset, t, 16)
		binary.LittleEndian.PutUint32(tCounts[0:4], cr.Depth)
		binary.LittleEndian.PutUint32(tCounts[4:8], cr.NumReads)
		binary.LittleEndian.PutUint32(tCounts[8:12], cr.NumDeletions)
		binary.LittleEndian.PutUint32(tCounts[12:16], cr.Coverage)
	}
	if fieldsPresent&FieldReads != 0 {
		binary.LittleEndian.PutUint32(cutAndAdvance(&offset, t, 4), uint32(len(cr.Reads)))
		for i := range cr.Reads {
			src := &cr.Reads[i]
			dst := cutAndAdvance(&offset, t, 9)
			dst[0] = byte(src.Strand)
			binary.LittleEndian.PutUint32(dst[1:5], src.Start)
			binary.LittleEndian.PutUint32(dst[5:9], uint32(len(src.Seq)))
			copy(cutAndAdvance(&offset, t, len(src.Seq)), src.Seq)
			binary.LittleEndian.PutUint32(cutAndAdvance(&offset, t, 4), uint32(len(src.Insertions)))
			copy(cutAndAdvance(&offset, t, len(src.Insertions)), src.Insertions)
		}
	}
	return t, nil
}

// errShortRow is returned by unmarshalColumnRow for a record that ends
// before the fields it declares.
var errShortRow = errors.New("unmarshalColumnRow: truncated record")

// cutChecked is cutAndAdvance for untrusted input.
func cutChecked(offset *int, s []byte, pieceLen int) ([]byte, error) {
	if pieceLen < 0 || pieceLen > len(s)-*offset {
		return nil, errShortRow
	}
	return cutAndAdvance(offset, s, pieceLen), nil
}

// unmarshalColumnRow is the inverse of MarshalColumnRow.
func unmarshalColumnRow(in []byte) (out interface{}, err error) {
	offset := 0
	inStart, err := cutChecked(&offset, in, 13)
	if err != nil {
		return nil, err
	}
	cr := &ColumnRow{
		FieldsPresent: binary.LittleEndian.Uint32(inStart[:4]),
		RefID:         binary.LittleEndian.Uint32(inStart[4:8]),
		Pos:           binary.LittleEndian.Uint32(inStart[8:12]),
		RefBase:       inStart[12],
	}
	if cr.FieldsPresent&FieldCounts != 0 {
		var inCounts []byte
		if inCounts, err = cutChecked(&offset, in, 16); err != nil {
			return nil, err
		}
		cr.Depth = binary.LittleEndian.Uint32(inCounts[0:4])
		cr.NumReads = binary.LittleEndian.Uint32(inCounts[4:8])
		cr.NumDeletions = binary.LittleEndian.Uint32(inCounts[8:12])
		cr.Coverage = binary.LittleEndian.Uint32(inCounts[12:16])
	}
	if cr.FieldsPresent&FieldReads != 0 {
		var b []byte
		if b, err = cutChecked(&offset, in, 4); err != nil {
			return nil, err
		}
		nRead := int(binary.LittleEndian.Uint32(b))
		// Each read takes at least 13 bytes.
		if nRead < 0 || nRead > (len(in)-offset)/13 {
			return nil, errShortRow
		}
		cr.Reads = make([]ReadRow, nRead)
		for i := range cr.Reads {
			dst := &cr.Reads[i]
			if b, err = cutChecked(&offset, in, 9); err != nil {
				return nil, err
			}
			dst.Strand = pileup.StrandType(b[0])
			dst.Start = binary.LittleEndian.Uint32(b[1:5])
			seqLen := int(binary.LittleEndian.Uint32(b[5:9]))
			if b, err = cutChecked(&offset, in, seqLen); err != nil {
				return nil, err
			}
			dst.Seq = string(b)
			if b, err = cutChecked(&offset, in, 4); err != nil {
				return nil, err
			}
			insLen := int(binary.LittleEndian.Uint32(b))
			if b, err = cutChecked(&offset, in, insLen); err != nil {
				return nil, err
			}
			dst.Insertions = string(b)
		}
	}
	if offset != len(in) {
		return nil, fmt.Errorf("unmarshalColumnRow: %d trailing byte(s)", len(in)-offset)
	}
	return cr, nil
}

// The trailer holds the format version, the number of rows, and the
// '\000'-separated contig names indexed by RefID.
func columnRowsTrailer(numRows int, refNames []string) []byte {
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, int64(trailerVersion)); err != nil {
		panic("couldn't write trailer version")
	}
	if err := binary.Write(&buffer, binary.LittleEndian, int64(numRows)); err != nil {
		panic("couldn't write numRows to trailer")
	}
	buffer.WriteString(strings.Join(refNames, "\000"))
	return buffer.Bytes()
}

func parseColumnRowsTrailer(trailer []byte) (numRows int64, refNames []string, err error) {
	r := bytes.NewReader(trailer)
	var version int64
	if err = binary.Read(r, binary.LittleEndian, &version); err != nil {
		return
	}
	if version != trailerVersion {
		err = fmt.Errorf("unrecognized trailer version: got %d, want %d", version, trailerVersion)
		return
	}
	if err = binary.Read(r, binary.LittleEndian, &numRows); err != nil {
		return
	}
	if packed := trailer[16:]; len(packed) != 0 {
		refNames = strings.Split(string(packed), "\000")
	}
	return
}

// ReadColumnRows reads the rows of a .columns.rio file, along with the contig
// names their RefIDs refer to.
func ReadColumnRows(rs io.ReadSeeker) (rows []ColumnRow, refNames []string, err error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: unmarshalColumnRow,
	})
	var numRows int64
	if numRows, refNames, err = parseColumnRowsTrailer(scanner.Trailer()); err != nil {
		return
	}
	rows = make([]ColumnRow, 0, numRows)
	for scanner.Scan() {
		rows = append(rows, *scanner.Get().(*ColumnRow))
	}
	if err = scanner.Err(); err != nil {
		return
	}
	if int64(len(rows)) != numRows {
		err = fmt.Errorf("ReadColumnRows: trailer promises %d rows, found %d", numRows, len(rows))
	}
	return
}
