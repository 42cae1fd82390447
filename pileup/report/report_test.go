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
package report_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bio-pileup/pileup"
	"github.com/grailbio/bio-pileup/pileup/report"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

const testPileup = `chr1	100	A	3	^!.^!,^!A	III
chr1	101	C	3	.*c$	III
chr1	102	G	4	.$,-1t^!g^!.	IIII
chr1	103	T	3	*t+1a.$	III
chr1	104	A	2	,$,$	II
chr2	5	G	1	^!.	I
`

const testReads = `#CHROM	START	END	STRAND	SEQ	INSERTIONS
chr1	100	101	+	Ac	.
chr1	100	102	+	ACG	.
chr1	102	103	+	GT	.
chr1	100	104	-	A*G*A	.
chr1	102	104	-	gtA	103:a
chr2	5	5	+	G	.
`

func writeTestFile(t *testing.T, path, content string) {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	assert.NoError(t, err)
	w := out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		_, err = gz.Write([]byte(content))
		assert.NoError(t, err)
		assert.NoError(t, gz.Close())
	} else {
		_, err = w.Write([]byte(content))
		assert.NoError(t, err)
	}
	assert.NoError(t, out.Close(ctx))
}

func readTestFile(t *testing.T, path string) string {
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	if !strings.HasSuffix(path, ".gz") {
		data, err := ioutil.ReadAll(f)
		assert.NoError(t, err)
		return string(data)
	}
	gz, err := gzip.NewReader(f)
	assert.NoError(t, err)
	data, err := ioutil.ReadAll(gz)
	assert.NoError(t, err)
	return string(data)
}

func TestRunTSV(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "in.pileup")
	writeTestFile(t, inPath, testPileup)
	outPrefix := filepath.Join(tmpdir, "out")
	opts := report.DefaultOpts
	opts.Reads = true
	assert.NoError(t, report.Run(ctx, inPath, outPrefix, &opts))

	expect.EQ(t, readTestFile(t, outPrefix+".columns.tsv"), `#CHROM	POS	REF	DP	NREADS	NDEL
chr1	100	A	3	3	0
chr1	101	C	3	3	1
chr1	102	G	4	4	0
chr1	103	T	3	3	1
chr1	104	A	2	2	0
chr2	5	G	1	1	0
`)
	expect.EQ(t, readTestFile(t, outPrefix+".reads.tsv"), testReads)
}

func TestRunPerReadCols(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	// Compressed input is detected from the path.
	inPath := filepath.Join(tmpdir, "in.pileup.gz")
	writeTestFile(t, inPath, testPileup)
	outPrefix := filepath.Join(tmpdir, "out")
	opts := report.DefaultOpts
	opts.Cols = "-dp,-nreads,+cov,+seqs,+strands,+ins"
	opts.Format = "tsv-bgz"
	opts.Reads = true
	assert.NoError(t, report.Run(ctx, inPath, outPrefix, &opts))

	expect.EQ(t, readTestFile(t, outPrefix+".columns.tsv.gz"), `#CHROM	POS	REF	NDEL	COV	SEQS	STRANDS	INS
chr1	100	A	0	3	A,A,A	+,-,+	.
chr1	101	C	1	3	AC,A*,Ac	+,-,+	.
chr1	102	G	0	4	ACG,A*G,g,G	+,-,-,+	.
chr1	103	T	1	3	A*G*,gt,GT	-,-,+	a
chr1	104	A	0	2	A*G*A,gtA	-,-	.
chr2	5	G	0	1	G	+	.
`)
	expect.EQ(t, readTestFile(t, outPrefix+".reads.tsv.gz"), testReads)
}

func TestRunRegion(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "in.pileup")
	writeTestFile(t, inPath, testPileup)
	outPrefix := filepath.Join(tmpdir, "out")
	opts := report.DefaultOpts
	opts.Region = "chr1:102-103"
	opts.Reads = true
	assert.NoError(t, report.Run(ctx, inPath, outPrefix, &opts))

	expect.EQ(t, readTestFile(t, outPrefix+".columns.tsv"), `#CHROM	POS	REF	DP	NREADS	NDEL
chr1	102	G	4	4	0
chr1	103	T	3	3	1
`)
	// Reads are kept if they touch the region anywhere.
	expect.EQ(t, readTestFile(t, outPrefix+".reads.tsv"), `#CHROM	START	END	STRAND	SEQ	INSERTIONS
chr1	100	102	+	ACG	.
chr1	102	103	+	GT	.
chr1	100	104	-	A*G*A	.
chr1	102	104	-	gtA	103:a
`)
}

func TestRunUnknownDepth(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "in.pileup")
	writeTestFile(t, inPath, "chr1\t10\tA\tNA\t^!.^!,\tII\nchr1\t11\tC\t2\t.$,$\tII\n")
	outPrefix := filepath.Join(tmpdir, "out")
	opts := report.DefaultOpts
	assert.NoError(t, report.Run(ctx, inPath, outPrefix, &opts))
	expect.EQ(t, readTestFile(t, outPrefix+".columns.tsv"), `#CHROM	POS	REF	DP	NREADS	NDEL
chr1	10	A	.	2	0
chr1	11	C	2	2	0
`)

	opts.Format = "rio"
	assert.NoError(t, report.Run(ctx, inPath, outPrefix, &opts))
	in, err := file.Open(ctx, outPrefix+".columns.rio")
	assert.NoError(t, err)
	rows, _, err := report.ReadColumnRows(in.Reader(ctx))
	assert.NoError(t, err)
	assert.NoError(t, in.Close(ctx))
	require.Equal(t, 2, len(rows))
	expect.EQ(t, rows[0].Depth, report.DepthUnknown)
	expect.EQ(t, rows[1].Depth, uint32(2))
}

func TestRunBED(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "in.pileup")
	writeTestFile(t, inPath, testPileup)
	bedPath := filepath.Join(tmpdir, "regions.bed.gz")
	writeTestFile(t, bedPath, "chr1\t99\t100\nchr2\t0\t10\n")
	outPrefix := filepath.Join(tmpdir, "out")
	opts := report.DefaultOpts
	opts.BedPath = bedPath
	opts.Cols = "dp"
	assert.NoError(t, report.Run(ctx, inPath, outPrefix, &opts))

	expect.EQ(t, readTestFile(t, outPrefix+".columns.tsv"), `#CHROM	POS	REF	DP
chr1	100	A	3
chr2	5	G	1
`)
	_, err := os.Stat(outPrefix + ".reads.tsv")
	expect.True(t, os.IsNotExist(err))
}

func TestRunRio(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "in.pileup")
	writeTestFile(t, inPath, testPileup)
	outPrefix := filepath.Join(tmpdir, "out")
	opts := report.DefaultOpts
	opts.Format = "rio"
	opts.Cols = "+seqs"
	assert.NoError(t, report.Run(ctx, inPath, outPrefix, &opts))

	in, err := file.Open(ctx, outPrefix+".columns.rio")
	assert.NoError(t, err)
	rows, refNames, err := report.ReadColumnRows(in.Reader(ctx))
	assert.NoError(t, err)
	assert.NoError(t, in.Close(ctx))

	expect.EQ(t, refNames, []string{"chr1", "chr2"})
	require.Equal(t, 6, len(rows))
	for _, row := range rows {
		expect.EQ(t, row.FieldsPresent, uint32(report.FieldCounts|report.FieldReads))
		expect.EQ(t, int(row.NumReads), len(row.Reads))
	}
	expect.EQ(t, rows[3], report.ColumnRow{
		FieldsPresent: report.FieldCounts | report.FieldReads,
		RefID:         0,
		Pos:           102,
		RefBase:       'T',
		Depth:         3,
		NumReads:      3,
		NumDeletions:  1,
		Coverage:      3,
		Reads: []report.ReadRow{
			{Strand: pileup.StrandRev, Start: 99, Seq: "A*G*", Insertions: "."},
			{Strand: pileup.StrandRev, Start: 101, Seq: "gt", Insertions: "103:a"},
			{Strand: pileup.StrandFwd, Start: 101, Seq: "GT", Insertions: "."},
		},
	})
	expect.EQ(t, rows[5].RefID, uint32(1))
	expect.EQ(t, rows[5].Pos, uint32(4))
}

func TestRunAll(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPaths := []string{
		filepath.Join(tmpdir, "a.pileup"),
		filepath.Join(tmpdir, "b.mpileup.gz"),
		filepath.Join(tmpdir, "c.txt"),
	}
	for _, inPath := range inPaths {
		writeTestFile(t, inPath, testPileup)
	}
	outPrefix := filepath.Join(tmpdir, "out")
	prefixes, err := report.OutputPrefixes(inPaths, outPrefix)
	assert.NoError(t, err)
	expect.EQ(t, prefixes, []string{outPrefix + ".a", outPrefix + ".b", outPrefix + ".c"})

	opts := report.DefaultOpts
	opts.Parallelism = 2
	opts.Reads = true
	assert.NoError(t, report.RunAll(ctx, inPaths, outPrefix, &opts))
	for _, prefix := range prefixes {
		expect.EQ(t, readTestFile(t, prefix+".reads.tsv"), testReads)
	}
}

func TestOutputPrefixes(t *testing.T) {
	prefixes, err := report.OutputPrefixes([]string{"/x/y.pileup.gz"}, "out")
	assert.NoError(t, err)
	expect.EQ(t, prefixes, []string{"out"})

	_, err = report.OutputPrefixes([]string{"/x/y.pileup.gz", "/z/y.pileup"}, "out")
	require.Error(t, err)
	assert.HasSubstr(t, err.Error(), "same output prefix")
}

func TestRunErrors(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "in.pileup")
	writeTestFile(t, inPath, "chr1\t1\tA\t1\t.\tI\nchr1\t2\tC\t1\t,\tI\n")
	outPrefix := filepath.Join(tmpdir, "out")

	tests := []struct {
		opts   func(o *report.Opts)
		inPath string
		errStr string
	}{
		{func(o *report.Opts) {}, inPath, "line 2: read direction conflict"},
		{func(o *report.Opts) {}, filepath.Join(tmpdir, "missing.pileup"), "missing.pileup"},
		{func(o *report.Opts) { o.Format = "vcf" }, inPath, "unrecognized format"},
		{func(o *report.Opts) { o.Cols = "+dp,seqs" }, inPath, "either all terms"},
		{func(o *report.Opts) { o.Cols = "depth" }, inPath, "depth not found"},
		{func(o *report.Opts) { o.Region = "chr1"; o.BedPath = "x.bed" }, inPath, "can't be used together"},
		{func(o *report.Opts) { o.Region = "chr1:0" }, inPath, "out of range"},
	}
	for _, test := range tests {
		opts := report.DefaultOpts
		test.opts(&opts)
		err := report.Run(ctx, test.inPath, outPrefix, &opts)
		require.Error(t, err, test.errStr)
		assert.HasSubstr(t, err.Error(), test.errStr)
	}
}
