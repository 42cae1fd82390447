package interval

import (
	"io/ioutil"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
)

const testBED = `# comment
track name=test
chr1	2488104	2488172
chr1	2489165	2489273
chr1	2489200	2489907
chr2	10	10
chr1	100	200
chr2	5	6
`

func TestNewRegions(t *testing.T) {
	result, err := NewRegions(strings.NewReader(testBED), NewRegionsOpts{})
	expect.NoError(t, err)
	want := map[string][]PosType{
		"chr1": {
			100, 200,
			2488104, 2488172,
			2489165, 2489907,
		},
		"chr2": {5, 6},
	}
	if !reflect.DeepEqual(result.nameMap, want) {
		t.Errorf("Wanted: %v  Got: %v", want, result.nameMap)
	}
	expect.EQ(t, result.NumBases(), 100+68+742+1)
	expect.EQ(t, result.RefNames(), []string{"chr1", "chr2"})

	oneBased, err := NewRegions(strings.NewReader("chr3\t1\t10\n"), NewRegionsOpts{OneBasedInput: true})
	expect.NoError(t, err)
	expect.True(t, oneBased.Contains("chr3", 0))
	expect.True(t, oneBased.Contains("chr3", 9))
	expect.False(t, oneBased.Contains("chr3", 10))
}

func TestNewRegionsErrors(t *testing.T) {
	for _, bed := range []string{
		"chr1\t10\n",
		"chr1\tten\t20\n",
		"chr1\t30\t20\n",
	} {
		_, err := NewRegions(strings.NewReader(bed), NewRegionsOpts{})
		expect.NotNil(t, err, bed)
	}
}

func TestContains(t *testing.T) {
	regions, err := NewRegionsFromEntries([]Entry{
		{RefName: "chr1", Start0: 10, End: 20},
		{RefName: "chr1", Start0: 30, End: 40},
		{RefName: "chr2", Start0: 0, End: 5},
	})
	expect.NoError(t, err)
	tests := []struct {
		refName string
		pos     PosType
		want    bool
	}{
		{"chr1", 9, false},
		{"chr1", 10, true},
		{"chr1", 19, true},
		{"chr1", 20, false},
		{"chr1", 35, true},
		{"chr1", 40, false},
		{"chr2", 4, true},
		{"chr1", 12, true},
		{"chr1", 11, true},
		{"chr3", 0, false},
		{"", 0, false},
	}
	// Sequential and out-of-order queries must agree with a fresh search.
	for _, tt := range tests {
		expect.EQ(t, regions.Contains(tt.refName, tt.pos), tt.want, "%s:%d", tt.refName, tt.pos)
		fresh := regions.Clone()
		expect.EQ(t, fresh.Contains(tt.refName, tt.pos), tt.want, "%s:%d (clone)", tt.refName, tt.pos)
	}
}

func TestOverlaps(t *testing.T) {
	regions, err := NewRegions(strings.NewReader(testBED), NewRegionsOpts{})
	expect.NoError(t, err)
	tests := []struct {
		refName     string
		start0, end PosType
		want        bool
	}{
		{"chr1", 0, 100, false},
		{"chr1", 0, 101, true},
		{"chr1", 150, 151, true},
		{"chr1", 199, 2488104, true},
		{"chr1", 200, 2488104, false},
		{"chr1", 200, 2488105, true},
		{"chr1", 2489907, 3000000, false},
		{"chr1", 120, 120, false},
		{"chr2", 0, 5, false},
		{"chr2", 0, 6, true},
		{"chr3", 0, 1000, false},
	}
	for _, test := range tests {
		expect.EQ(t, regions.Overlaps(test.refName, test.start0, test.end), test.want, test)
	}
}

func TestNewRegionsFromPath(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "test.bed")
	expect.NoError(t, ioutil.WriteFile(path, []byte(testBED), 0644))
	regions, err := NewRegionsFromPath(vcontext.Background(), path, NewRegionsOpts{})
	expect.NoError(t, err)
	expect.True(t, regions.Contains("chr2", 5))
	expect.False(t, regions.Contains("chr2", 6))
}

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region  string
		chrName string
		start0  PosType
		end     PosType
	}{
		{
			"chr1:1-1000",
			"chr1",
			0,
			1000,
		},
		{
			"chr1:1,001-2,000",
			"chr1",
			1000,
			2000,
		},
		{
			"chr1:1000",
			"chr1",
			999,
			1000,
		},
		{
			"chr1",
			"chr1",
			0,
			PosTypeMax - 1,
		},
	}

	for _, tt := range tests {
		result, err := ParseRegionString(tt.region)
		expect.NoError(t, err)
		expect.EQ(t, tt.chrName, result.RefName)
		expect.EQ(t, tt.start0, result.Start0)
		expect.EQ(t, tt.end, result.End)
	}
	for _, bad := range []string{"", ":1-2", "chr1:0", "chr1:5-4", "chr1:a-b"} {
		_, err := ParseRegionString(bad)
		expect.NotNil(t, err, bad)
	}
}
