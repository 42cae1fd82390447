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
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bio-pileup/pileup/report"
)

var (
	bedPath     = flag.String("bed", report.DefaultOpts.BedPath, "Restrict the column table to positions in this BED file; incompatible with -region")
	region      = flag.String("region", report.DefaultOpts.Region, "Restrict the column table to the specified region. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>; incompatible with -bed")
	cols        = flag.String("cols", report.DefaultOpts.Cols, "Output column sets. #CHROM/POS/REF are always present. Currently supported optional sets are 'dp', 'nreads', 'ndel', 'cov', 'seqs', 'strands', and 'ins'; default is \"dp,nreads,ndel\"")
	format      = flag.String("format", report.DefaultOpts.Format, "Output format; 'tsv', 'tsv-bgz', and 'rio' supported")
	maxLineLen  = flag.Int("max-line-len", report.DefaultOpts.MaxLineLen, "Upper bound on the length of a pileup line")
	outPrefix   = flag.String("out", "bio-pileup-reads", "Output path prefix")
	parallelism = flag.Int("parallelism", 0, "Maximum number of inputs to decode simultaneously; 0 = runtime.NumCPU()")
	reads       = flag.Bool("reads", report.DefaultOpts.Reads, "Also write every reconstructed read to <out>.reads.tsv")
)

func bioPileupReadsUsage() {
	fmt.Printf("Usage: %s [OPTIONS] pileuppath...\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioPileupReadsUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() == 0 {
		log.Fatalf("Missing positional argument (at least one pileup path required); please check flag syntax")
	}
	ctx := vcontext.Background()
	opts := report.Opts{
		BedPath:     *bedPath,
		Region:      *region,
		Cols:        *cols,
		Format:      *format,
		MaxLineLen:  *maxLineLen,
		Parallelism: *parallelism,
		Reads:       *reads,
	}
	if err := report.RunAll(ctx, flag.Args(), *outPrefix, &opts); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}
