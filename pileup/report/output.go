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
	"context"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/bio-pileup/interval"
	"github.com/grailbio/bio-pileup/pileup"
	"github.com/grailbio/bio-pileup/pileup/mpileup"
	"github.com/grailbio/hts/bgzf"
)

// tsvTable is a TSV output file, optionally bgzipped.
type tsvTable struct {
	path string
	dst  file.File
	bgzw *bgzf.Writer
	w    *tsv.Writer
}

func newTSVTable(ctx context.Context, path string, bgzip bool, parallelism int) (*tsvTable, error) {
	if bgzip {
		path = path + ".gz"
	}
	dst, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	t := &tsvTable{path: path, dst: dst}
	if !bgzip {
		t.w = tsv.NewWriter(dst.Writer(ctx))
	} else {
		t.bgzw = bgzf.NewWriter(dst.Writer(ctx), parallelism)
		t.w = tsv.NewWriter(t.bgzw)
	}
	return t, nil
}

func (t *tsvTable) close(ctx context.Context) (err error) {
	err = t.w.Flush()
	if t.bgzw != nil {
		if e := t.bgzw.Close(); e != nil && err == nil {
			err = e
		}
	}
	if e := t.dst.Close(ctx); e != nil && err == nil {
		err = e
	}
	return
}

// columnWriter writes one row per reported column.
type columnWriter interface {
	write(rec *mpileup.Record) error
	close(ctx context.Context) error
	path() string
}

func newColumnWriter(ctx context.Context, outPrefix string, opts *reportOpts) (columnWriter, error) {
	if opts.format == formatRio {
		return newColumnRio(ctx, outPrefix+".columns.rio", opts.colBitset)
	}
	return newColumnTSV(ctx, outPrefix+".columns.tsv", opts)
}

type columnTSV struct {
	table     *tsvTable
	colBitset int
	buf       []byte
}

func newColumnTSV(ctx context.Context, path string, opts *reportOpts) (*columnTSV, error) {
	table, err := newTSVTable(ctx, path, opts.format == formatTSVBgz, opts.parallelism)
	if err != nil {
		return nil, err
	}
	c := &columnTSV{table: table, colBitset: opts.colBitset, buf: make([]byte, 0, 256)}
	w := table.w
	colBitset := c.colBitset
	w.WriteString("#CHROM\tPOS\tREF")
	if (colBitset & colBitDp) != 0 {
		w.WriteString("DP")
	}
	if (colBitset & colBitNReads) != 0 {
		w.WriteString("NREADS")
	}
	if (colBitset & colBitNDel) != 0 {
		w.WriteString("NDEL")
	}
	if (colBitset & colBitCov) != 0 {
		w.WriteString("COV")
	}
	if (colBitset & colBitSeqs) != 0 {
		w.WriteString("SEQS")
	}
	if (colBitset & colBitStrands) != 0 {
		w.WriteString("STRANDS")
	}
	if (colBitset & colBitIns) != 0 {
		w.WriteString("INS")
	}
	if err = w.EndLine(); err != nil {
		_ = table.close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *columnTSV) path() string {
	return c.table.path
}

func (c *columnTSV) close(ctx context.Context) error {
	return c.table.close(ctx)
}

// flushCsv writes the comma-terminated values accumulated in c.buf as one
// field, or '.' if there are none.
func (c *columnTSV) flushCsv() {
	w := c.table.w
	if len(c.buf) == 0 {
		w.WriteByte('.')
		return
	}
	w.WritePartialBytes(c.buf)
	w.EndCsv()
	c.buf = c.buf[:0]
}

func (c *columnTSV) write(rec *mpileup.Record) error {
	w := c.table.w
	colBitset := c.colBitset
	// POS is already 1-based in pileup text.
	w.WriteString(rec.RefName)
	w.WriteUint32(uint32(rec.Pos))
	w.WriteByte(rec.RefBase)
	if (colBitset & colBitDp) != 0 {
		if rec.Depth == mpileup.DepthUnknown {
			w.WriteByte('.')
		} else {
			w.WriteUint32(uint32(rec.Depth))
		}
	}
	if (colBitset & colBitNReads) != 0 {
		w.WriteUint32(uint32(len(rec.Reads)))
	}
	if (colBitset & colBitNDel) != 0 {
		w.WriteUint32(uint32(rec.NumDeletions()))
	}
	if (colBitset & colBitCov) != 0 {
		w.WriteUint32(uint32(rec.Coverage()))
	}
	if (colBitset & colBitSeqs) != 0 {
		for i := range rec.Reads {
			c.buf = append(c.buf, rec.Reads[i].Seq...)
			c.buf = append(c.buf, ',')
		}
		c.flushCsv()
	}
	if (colBitset & colBitStrands) != 0 {
		for i := range rec.Reads {
			c.buf = append(c.buf, pileup.StrandTypeToASCIITable[rec.Reads[i].Strand], ',')
		}
		c.flushCsv()
	}
	if (colBitset & colBitIns) != 0 {
		// Only the insertions annotated at this column.
		for i := range rec.Reads {
			if bases, ok := rec.Reads[i].Insertions[rec.Pos]; ok {
				c.buf = append(c.buf, bases...)
				c.buf = append(c.buf, ',')
			}
		}
		c.flushCsv()
	}
	return w.EndLine()
}

// columnRio writes ColumnRows to a zstd-compressed recordio file.  Contig
// names are assigned IDs in order of appearance and stored in the trailer.
type columnRio struct {
	filePath  string
	dst       file.File
	w         recordio.Writer
	colBitset int
	refIDs    map[string]uint32
	refNames  []string
	numRows   int
}

func newColumnRio(ctx context.Context, path string, colBitset int) (*columnRio, error) {
	dst, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	// recordiozstd.Init() is called in row.go's init().
	w := recordio.NewWriter(dst.Writer(ctx), recordio.WriterOpts{
		Marshal:      MarshalColumnRow,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(recordio.KeyTrailer, true)
	return &columnRio{
		filePath:  path,
		dst:       dst,
		w:         w,
		colBitset: colBitset,
		refIDs:    make(map[string]uint32),
	}, nil
}

func (c *columnRio) path() string {
	return c.filePath
}

func (c *columnRio) write(rec *mpileup.Record) error {
	refID, ok := c.refIDs[rec.RefName]
	if !ok {
		refID = uint32(len(c.refNames))
		c.refIDs[rec.RefName] = refID
		c.refNames = append(c.refNames, rec.RefName)
	}
	row := ColumnRow{
		FieldsPresent: FieldCounts,
		RefID:         refID,
		Pos:           uint32(rec.Pos - 1),
		RefBase:       rec.RefBase,
		Depth:         DepthUnknown,
		NumReads:      uint32(len(rec.Reads)),
		NumDeletions:  uint32(rec.NumDeletions()),
		Coverage:      uint32(rec.Coverage()),
	}
	if rec.Depth != mpileup.DepthUnknown {
		row.Depth = uint32(rec.Depth)
	}
	if (c.colBitset & colPerReadMask) != 0 {
		row.FieldsPresent |= FieldReads
		row.Reads = make([]ReadRow, len(rec.Reads))
		for i := range rec.Reads {
			r := &rec.Reads[i]
			row.Reads[i] = ReadRow{
				Strand:     r.Strand,
				Start:      uint32(r.Start - 1),
				Seq:        r.Seq,
				Insertions: r.FormatInsertions(),
			}
		}
	}
	// The writer may marshal asynchronously, so each row is a fresh value.
	c.w.Append(&row)
	c.numRows++
	return nil
}

func (c *columnRio) close(ctx context.Context) (err error) {
	c.w.SetTrailer(columnRowsTrailer(c.numRows, c.refNames))
	err = c.w.Finish()
	if e := c.dst.Close(ctx); e != nil && err == nil {
		err = e
	}
	return
}

// readsTSV is the finished-read table.  START and END are the 1-based first
// and last positions at which the read appeared.
type readsTSV struct {
	*tsvTable
	regions *interval.Regions
	n       int
}

func newReadsTSV(ctx context.Context, outPrefix string, opts *reportOpts, regions *interval.Regions) (*readsTSV, error) {
	table, err := newTSVTable(ctx, outPrefix+".reads.tsv", opts.format == formatTSVBgz, opts.parallelism)
	if err != nil {
		return nil, err
	}
	table.w.WriteString("#CHROM\tSTART\tEND\tSTRAND\tSEQ\tINSERTIONS")
	if err = table.w.EndLine(); err != nil {
		_ = table.close(ctx)
		return nil, err
	}
	return &readsTSV{tsvTable: table, regions: regions}, nil
}

// write adds r to the table, unless a region filter is active and r does not
// overlap it.
func (t *readsTSV) write(refName string, r *mpileup.Read) error {
	if t.regions != nil && !t.regions.Overlaps(refName, r.Start-1, r.Last) {
		return nil
	}
	w := t.w
	w.WriteString(refName)
	w.WriteUint32(uint32(r.Start))
	w.WriteUint32(uint32(r.Last))
	w.WriteByte(pileup.StrandTypeToASCIITable[r.Strand])
	w.WriteString(r.Seq)
	w.WriteString(r.FormatInsertions())
	t.n++
	return w.EndLine()
}
