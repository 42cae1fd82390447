package interval

import (
	"bufio"
	"context"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// PosType is the type used to represent interval coordinates.  int32 should be
// wide enough for some time to come, since that's what BAM is limited to.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// NewRegionsOpts defines behavior of this package's BED-loading function(s).
type NewRegionsOpts struct {
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// Entry represents a single interval, with 0-based coordinates.
type Entry struct {
	RefName string
	Start0  PosType
	End     PosType
}

// Regions is a per-contig union of intervals.  Each contig maps to a
// length-2N sequence of endpoints, where the (0-based) start of interval #k is
// in element [2k], its end is in element [2k+1], and intervals are disjoint
// and stored in increasing order.
//
// Queries cache the last contig and search index, so a Regions value must not
// be shared between goroutines; use Clone instead.
type Regions struct {
	// nameMap is a contig-keyed map with disjoint-interval-set values.  Always
	// initialized.
	nameMap map[string][]PosType
	// lastRefName is the contig of the last query.  lastIntervals is in sync
	// with it once queried is set.
	queried       bool
	lastRefName   string
	lastIntervals []PosType
	// lastPosPlus1 is 1 plus the last queried position.
	lastPosPlus1 PosType
	// lastIdx is searchPosType(lastIntervals, lastPosPlus1).
	lastIdx int
	// isSequential is true if all queries since the last contig change have
	// been in order of nondecreasing position.
	isSequential bool
	nBase        int
}

// searchPosType returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// fwdsearchPosType checks a[idx], then a[idx + 1], then a[idx + 3], then
// a[idx + 7], etc., and then uses binary search to finish the job.  It's
// usually a better choice than searchPosType when iterating.
func fwdsearchPosType(a []PosType, x PosType, idx int) int {
	nextIncr := 1
	startIdx := idx
	endIdx := len(a)
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := int(uint(startIdx+endIdx) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}

// Contains checks whether the (0-based) interval [pos0, pos0+1) on the named
// contig is covered.
func (u *Regions) Contains(refName string, pos0 PosType) bool {
	posPlus1 := pos0 + 1
	if !u.queried || refName != u.lastRefName {
		u.queried = true
		u.lastRefName = refName
		u.lastIntervals = u.nameMap[refName]
		if u.lastIntervals == nil {
			return false
		}
		u.lastIdx = searchPosType(u.lastIntervals, posPlus1)
		u.lastPosPlus1 = posPlus1
		u.isSequential = true
		return u.lastIdx&1 == 1
	}
	if u.lastIntervals == nil {
		return false
	}
	if u.isSequential {
		if posPlus1 >= u.lastPosPlus1 {
			u.lastIdx = fwdsearchPosType(u.lastIntervals, posPlus1, u.lastIdx)
			u.lastPosPlus1 = posPlus1
			return u.lastIdx&1 == 1
		}
		u.isSequential = false
	}
	return searchPosType(u.lastIntervals, posPlus1)&1 == 1
}

// Overlaps checks whether any position in the 0-based half-open interval
// [start0, end) on the named contig is covered.  Unlike Contains it does not
// touch the search cache.
func (u *Regions) Overlaps(refName string, start0, end PosType) bool {
	if start0 >= end {
		return false
	}
	intervals := u.nameMap[refName]
	idx := searchPosType(intervals, start0+1)
	if idx&1 == 1 {
		return true
	}
	return idx < len(intervals) && intervals[idx] < end
}

// RefNames returns the sorted names of all contigs with at least one
// interval.
func (u *Regions) RefNames() []string {
	names := make([]string, 0, len(u.nameMap))
	for name, intervals := range u.nameMap {
		if len(intervals) != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NumBases returns the number of positions covered.
func (u *Regions) NumBases() int {
	return u.nBase
}

// Clone returns a new Regions which shares the interval set, but has its own
// search state.
func (u *Regions) Clone() Regions {
	return Regions{
		nameMap: u.nameMap,
		nBase:   u.nBase,
	}
}

// NewRegionsFromEntries builds a Regions from entries in any order, merging
// touching/overlapping intervals and dropping empty ones.
func NewRegionsFromEntries(entries []Entry) (regions Regions, err error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	for _, e := range sorted {
		if e.Start0 < 0 {
			err = errors.Errorf("interval.NewRegionsFromEntries: negative start coordinate on %s", e.RefName)
			return
		}
		if e.End < e.Start0 || e.End >= PosTypeMax {
			err = errors.Errorf("interval.NewRegionsFromEntries: invalid coordinate pair [%d, %d) on %s", e.Start0, e.End, e.RefName)
			return
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RefName != sorted[j].RefName {
			return sorted[i].RefName < sorted[j].RefName
		}
		return sorted[i].Start0 < sorted[j].Start0
	})
	regions.nameMap = make(map[string][]PosType)
	for _, e := range sorted {
		chrIntervals, found := regions.nameMap[e.RefName]
		if !found {
			// Distinguish between 'mentioned' contigs without any covered bases
			// and unmentioned contigs.
			chrIntervals = []PosType{}
		}
		if e.End == e.Start0 {
			regions.nameMap[e.RefName] = chrIntervals
			continue
		}
		n := len(chrIntervals)
		if n != 0 && e.Start0 <= chrIntervals[n-1] {
			// Intervals touch or overlap, merge them.
			if e.End > chrIntervals[n-1] {
				regions.nBase += int(e.End - chrIntervals[n-1])
				chrIntervals[n-1] = e.End
			}
		} else {
			chrIntervals = append(chrIntervals, e.Start0, e.End)
			regions.nBase += int(e.End - e.Start0)
		}
		regions.nameMap[e.RefName] = chrIntervals
	}
	return
}

// NewRegions loads the intervals of a BED file.  Lines which are empty or
// start with "#", "track" or "browser" are skipped.
func NewRegions(reader io.Reader, opts NewRegionsOpts) (regions Regions, err error) {
	var startSubtract int
	if opts.OneBasedInput {
		startSubtract++
	}
	scanner := bufio.NewScanner(reader)
	var (
		tokens  [3][]byte
		entries []Entry
		lineIdx int
	)
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		first := gunsafe.BytesToString(tokens[0])
		if first[0] == '#' || first == "track" || first == "browser" {
			continue
		}
		if nToken != 3 {
			err = errors.Errorf("interval.NewRegions: line %d has fewer tokens than expected", lineIdx)
			return
		}
		var parsedStart, parsedEnd int
		if parsedStart, err = strconv.Atoi(gunsafe.BytesToString(tokens[1])); err != nil {
			err = errors.Wrapf(err, "interval.NewRegions: line %d", lineIdx)
			return
		}
		parsedStart -= startSubtract
		if parsedStart < 0 {
			err = errors.Errorf("interval.NewRegions: negative start coordinate %s on line %d", tokens[1], lineIdx)
			return
		}
		if parsedEnd, err = strconv.Atoi(gunsafe.BytesToString(tokens[2])); err != nil {
			err = errors.Wrapf(err, "interval.NewRegions: line %d", lineIdx)
			return
		}
		if parsedEnd < parsedStart || parsedEnd >= PosTypeMax {
			err = errors.Errorf("interval.NewRegions: invalid coordinate pair on line %d", lineIdx)
			return
		}
		entries = append(entries, Entry{
			// Must copy; tokens[0] refers to the scanner's buffer.
			RefName: string(tokens[0]),
			Start0:  PosType(parsedStart),
			End:     PosType(parsedEnd),
		})
	}
	if err = scanner.Err(); err != nil {
		return
	}
	if regions, err = NewRegionsFromEntries(entries); err != nil {
		return
	}
	log.Printf("BED loaded, %d base(s) covered.", regions.NumBases())
	return
}

// NewRegionsFromPath is a wrapper for NewRegions that takes a path instead of
// an io.Reader.  Gzipped BED files are decompressed.
func NewRegionsFromPath(ctx context.Context, path string, opts NewRegionsOpts) (regions Regions, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, infile, &err)
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			err = errors.Wrapf(err, "interval.NewRegionsFromPath: %s", path)
			return
		}
		defer gz.Close()
		reader = gz
	}
	return NewRegions(reader, opts)
}

// ParseRegionString parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// returning a contig ID and 0-based interval boundaries.  The interval
// [0, PosTypeMax - 1) is returned if there is no positional restriction.
func ParseRegionString(region string) (result Entry, err error) {
	if len(region) == 0 {
		err = errors.New("interval.ParseRegionString: empty region string")
		return
	}
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos == -1 {
		result.RefName = region
		result.End = PosTypeMax - 1
		return
	}
	if colonPos == 0 {
		err = errors.New("interval.ParseRegionString: empty contig ID")
		return
	}
	result.RefName = region[:colonPos]
	rangeStr := strings.Replace(region[colonPos+1:], ",", "", -1)
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 int64
		if pos1, err = strconv.ParseInt(rangeStr, 10, 32); err != nil {
			err = errors.Wrapf(err, "interval.ParseRegionString: %s", region)
			return
		}
		if pos1 <= 0 {
			err = errors.Errorf("interval.ParseRegionString: position %v in region string out of range", rangeStr)
			return
		}
		result.Start0 = PosType(pos1 - 1)
		result.End = PosType(pos1)
		return
	}
	start1Str := rangeStr[:dashPos]
	endStr := rangeStr[dashPos+1:]
	var start1, end int
	if start1, err = strconv.Atoi(start1Str); err != nil {
		err = errors.Wrapf(err, "interval.ParseRegionString: %s", region)
		return
	}
	if start1 <= 0 {
		err = errors.Errorf("interval.ParseRegionString: position %v in region string out of range", start1Str)
		return
	}
	if end, err = strconv.Atoi(endStr); err != nil {
		err = errors.Wrapf(err, "interval.ParseRegionString: %s", region)
		return
	}
	// We may as well prohibit end == PosTypeMax so that the endpoint array is
	// guaranteed to contain no repeats.
	if end < start1 || end >= PosTypeMax {
		err = errors.Errorf("interval.ParseRegionString: invalid range string %v", rangeStr)
		return
	}
	result.Start0 = PosType(start1 - 1)
	result.End = PosType(end)
	return
}
