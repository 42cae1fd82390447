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

// Package report turns decoded pileup streams into per-column and per-read
// tables.
//
// For each input, a column table is written to <prefix>.columns.tsv,
// <prefix>.columns.tsv.gz (bgzipped) or <prefix>.columns.rio, depending on
// Opts.Format.  If Opts.Reads is set, every read is also written to
// <prefix>.reads.tsv[.gz] once it is finished.
package report

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/grailbio/base/compress"
	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bio-pileup/interval"
	"github.com/grailbio/bio-pileup/pileup"
	"github.com/grailbio/bio-pileup/pileup/mpileup"
)

// Opts holds the report options, mostly set from the command line.
type Opts struct {
	// BedPath restricts the column table to the positions covered by a BED
	// file.  Cannot be combined with Region.
	BedPath string
	// Region restricts the column table to <contig>[:<1-based start>[-<end>]].
	Region string
	// Cols selects the optional column sets; see colNameMap.
	Cols string
	// Format is one of "tsv", "tsv-bgz" or "rio".
	Format     string
	MaxLineLen int
	// Parallelism bounds the number of inputs processed at once, and is also
	// passed to the bgzf writers.  0 = runtime.NumCPU().
	Parallelism int
	// Reads requests the finished-read table.
	Reads bool
}

// DefaultOpts holds the default report options.
var DefaultOpts = Opts{
	Format:     "tsv",
	MaxLineLen: mpileup.DefaultOpts.MaxLineLen,
}

const (
	formatTSV = iota
	formatTSVBgz
	formatRio
)

var formatNameMap = map[string]int{
	"tsv":     formatTSV,
	"tsv-bgz": formatTSVBgz,
	"rio":     formatRio,
}

const (
	colBitDp = 1 << iota
	colBitNReads
	colBitNDel
	colBitCov
	colBitSeqs
	colBitStrands
	colBitIns
)

const colPerReadMask = (colBitSeqs | colBitStrands | colBitIns)

const colBitsetDefault = colBitDp | colBitNReads | colBitNDel

var colNameMap = map[string]int{
	"dp":      colBitDp,
	"nreads":  colBitNReads,
	"ndel":    colBitNDel,
	"cov":     colBitCov,
	"seqs":    colBitSeqs,
	"strands": colBitStrands,
	"ins":     colBitIns,
}

// reportOpts is the validated form of Opts.
type reportOpts struct {
	colBitset   int
	format      int
	maxLineLen  int
	parallelism int
	reads       bool
	// regions is nil when every column is reported.
	regions *interval.Regions
}

func parseOpts(ctx context.Context, rawOpts *Opts) (opts reportOpts, err error) {
	var ok bool
	if opts.format, ok = formatNameMap[rawOpts.Format]; !ok {
		err = fmt.Errorf("report: unrecognized format %q", rawOpts.Format)
		return
	}
	if opts.colBitset, err = pileup.ParseCols(rawOpts.Cols, colNameMap, colBitsetDefault); err != nil {
		return
	}
	opts.maxLineLen = rawOpts.MaxLineLen
	opts.parallelism = rawOpts.Parallelism
	if opts.parallelism <= 0 {
		opts.parallelism = runtime.NumCPU()
	}
	opts.reads = rawOpts.Reads

	if rawOpts.BedPath != "" && rawOpts.Region != "" {
		err = fmt.Errorf("report: -region and -bed flags can't be used together")
		return
	}
	var regions interval.Regions
	if rawOpts.BedPath != "" {
		if regions, err = interval.NewRegionsFromPath(ctx, rawOpts.BedPath, interval.NewRegionsOpts{}); err != nil {
			return
		}
		opts.regions = &regions
	} else if rawOpts.Region != "" {
		var entry interval.Entry
		if entry, err = interval.ParseRegionString(rawOpts.Region); err != nil {
			return
		}
		if regions, err = interval.NewRegionsFromEntries([]interval.Entry{entry}); err != nil {
			return
		}
		opts.regions = &regions
	}
	if opts.regions != nil {
		log.Printf("report: column table restricted to %d base(s) on %d contig(s)",
			opts.regions.NumBases(), len(opts.regions.RefNames()))
	}
	return
}

// OutputPrefixes returns the output prefix used for each input by RunAll.  A
// single input is written to outPrefix itself; otherwise the input's base name,
// stripped of compression and pileup extensions, is appended to outPrefix.
func OutputPrefixes(inPaths []string, outPrefix string) ([]string, error) {
	if len(inPaths) == 1 {
		return []string{outPrefix}, nil
	}
	prefixes := make([]string, len(inPaths))
	seen := make(map[string]string, len(inPaths))
	for i, inPath := range inPaths {
		prefixes[i] = outPrefix + "." + inputStem(inPath)
		if prev, ok := seen[prefixes[i]]; ok {
			return nil, fmt.Errorf("report: inputs %s and %s map to the same output prefix %s", prev, inPath, prefixes[i])
		}
		seen[prefixes[i]] = inPath
	}
	return prefixes, nil
}

func inputStem(path string) string {
	stem := filepath.Base(path)
	for _, ext := range []string{".gz", ".bgz", ".zst"} {
		stem = strings.TrimSuffix(stem, ext)
	}
	for _, ext := range []string{".pileup", ".mpileup", ".txt"} {
		stem = strings.TrimSuffix(stem, ext)
	}
	return stem
}

// Run writes the report tables for one pileup file.
func Run(ctx context.Context, inPath, outPrefix string, rawOpts *Opts) error {
	return RunAll(ctx, []string{inPath}, outPrefix, rawOpts)
}

// RunAll writes the report tables for several pileup files, concurrently.
// Each input is decoded independently; see OutputPrefixes for output naming.
func RunAll(ctx context.Context, inPaths []string, outPrefix string, rawOpts *Opts) (err error) {
	if len(inPaths) == 0 {
		return fmt.Errorf("report: no input")
	}
	var opts reportOpts
	if opts, err = parseOpts(ctx, rawOpts); err != nil {
		return
	}
	var prefixes []string
	if prefixes, err = OutputPrefixes(inPaths, outPrefix); err != nil {
		return
	}
	nInput := len(inPaths)
	parallelism := opts.parallelism
	if parallelism > nInput {
		parallelism = nInput
	}
	log.Printf("report: starting main loop (%d inputs, %d jobs)", nInput, parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * nInput) / parallelism
		endIdx := ((jobIdx + 1) * nInput) / parallelism
		// Regions caches query state, so each job needs its own copy.
		var regions *interval.Regions
		if opts.regions != nil {
			r := opts.regions.Clone()
			regions = &r
		}
		for i := startIdx; i < endIdx; i++ {
			if e := runOne(ctx, inPaths[i], prefixes[i], &opts, regions); e != nil {
				log.Error.Printf("report: %s: %v", inPaths[i], e)
				return e
			}
		}
		return nil
	})
	if err != nil {
		return
	}
	log.Printf("report: main loop complete")
	return
}

func runOne(ctx context.Context, inPath, outPrefix string, opts *reportOpts, regions *interval.Regions) (err error) {
	var in file.File
	if in, err = file.Open(ctx, inPath); err != nil {
		return gerrors.E(err, "report: couldn't open pileup:", inPath)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		defer func() {
			if e := u.Close(); e != nil && err == nil {
				err = e
			}
		}()
		inr = u
	}

	var cw columnWriter
	if cw, err = newColumnWriter(ctx, outPrefix, opts); err != nil {
		return
	}
	defer func() {
		if e := cw.close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var rw *readsTSV
	if opts.reads {
		if rw, err = newReadsTSV(ctx, outPrefix, opts, regions); err != nil {
			return
		}
		defer func() {
			if e := rw.close(ctx); e != nil && err == nil {
				err = e
			}
		}()
	}

	var (
		s           = mpileup.NewScanner(inr, mpileup.Opts{MaxLineLen: opts.maxLineLen})
		rec         mpileup.Record
		prevRefName string
		nCol        int
	)
	for s.Scan(&rec) {
		if regions == nil || regions.Contains(rec.RefName, rec.Pos-1) {
			if err = cw.write(&rec); err != nil {
				return
			}
			nCol++
		}
		if rw != nil {
			// Dropped reads were last seen in the previous column, which may
			// be on another contig.
			for i := range rec.Dropped {
				if err = rw.write(prevRefName, &rec.Dropped[i]); err != nil {
					return
				}
			}
			for _, i := range rec.Ending {
				if err = rw.write(rec.RefName, &rec.Reads[i]); err != nil {
					return
				}
			}
		}
		prevRefName = rec.RefName
		if s.LineNum()%(1<<20) == 0 {
			log.Printf("report: %s: %dMi lines", inPath, s.LineNum()>>20)
		}
	}
	if err = s.Err(); err != nil {
		return gerrors.E(err, "report: decoding", inPath)
	}
	if rw != nil {
		open := s.Open()
		for i := range open {
			if err = rw.write(prevRefName, &open[i]); err != nil {
				return
			}
		}
		log.Printf("report: %d read(s) written to %s", rw.n, rw.path)
	}
	log.Printf("report: %d column(s) of %d written to %s", nCol, s.LineNum(), cw.path())
	return
}
