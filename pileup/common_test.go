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
package pileup_test

import (
	"testing"

	"github.com/grailbio/bio-pileup/pileup"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestParseCols(t *testing.T) {
	colNameMap := map[string]int{
		"a": 1,
		"b": 2,
		"c": 4,
	}
	const defaultColBitset = 3
	tests := []struct {
		param  string
		want   int
		errStr string
	}{
		{"", defaultColBitset, ""},
		{"c", 4, ""},
		{"a,c", 5, ""},
		{"+c", 7, ""},
		{"-a,+c", 6, ""},
		{"-a,-b", 0, ""},
		{"+a,c", 0, "either all terms"},
		{"a,+c", 0, "either all terms"},
		{"a,,c", 0, "empty term"},
		{"+d", 0, "d not found"},
		{"d", 0, "d not found"},
	}
	for _, test := range tests {
		got, err := pileup.ParseCols(test.param, colNameMap, defaultColBitset)
		if test.errStr != "" {
			assert.HasSubstr(t, err.Error(), test.errStr, test.param)
			continue
		}
		expect.NoError(t, err, test.param)
		expect.EQ(t, got, test.want, test.param)
	}
}

func TestStrandType(t *testing.T) {
	expect.EQ(t, pileup.StrandNone.String(), ".")
	expect.EQ(t, pileup.StrandFwd.String(), "+")
	expect.EQ(t, pileup.StrandRev.String(), "-")
	expect.EQ(t, pileup.StrandType(7).String(), "StrandType(7)")
}
