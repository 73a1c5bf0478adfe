//  Copyright (c) 2024 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nullness

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// MaxTrackedParams is the capacity of a PosSet: the highest supported formal
// or actual parameter position, exclusive. Positions at or beyond the
// capacity are rejected by Add, never wrapped.
const MaxTrackedParams = 32

// PosSet is a fixed-capacity set of small non-negative integers, used for
// argument and parameter positions.
type PosSet struct {
	mask uint32
}

// PosSetOf builds a PosSet from the given positions. It panics on positions
// outside [0, MaxTrackedParams); it is intended for literals in tests and
// providers where positions are known small.
func PosSetOf(positions ...int) PosSet {
	var s PosSet
	for _, p := range positions {
		if err := s.Add(p); err != nil {
			panic(err)
		}
	}
	return s
}

// Add inserts position p, or returns an error if p is outside the supported
// capacity.
func (s *PosSet) Add(p int) error {
	if p < 0 || p >= MaxTrackedParams {
		return fmt.Errorf("parameter position %d outside supported range [0, %d)", p, MaxTrackedParams)
	}
	s.mask |= 1 << uint(p)
	return nil
}

// Has reports whether position p is in the set.
func (s PosSet) Has(p int) bool {
	return p >= 0 && p < MaxTrackedParams && s.mask&(1<<uint(p)) != 0
}

// Empty reports whether the set has no elements.
func (s PosSet) Empty() bool { return s.mask == 0 }

// Len returns the number of elements.
func (s PosSet) Len() int { return bits.OnesCount32(s.mask) }

// Intersect returns the intersection of s and t.
func (s PosSet) Intersect(t PosSet) PosSet { return PosSet{mask: s.mask & t.mask} }

// Union returns the union of s and t.
func (s PosSet) Union(t PosSet) PosSet { return PosSet{mask: s.mask | t.mask} }

// Positions returns the elements in increasing order.
func (s PosSet) Positions() []int {
	var out []int
	for p := 0; p < MaxTrackedParams; p++ {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// GobEncode encodes the set as its raw bit mask. Needed because the mask is
// unexported and the set rides along in gob-encoded summary databases.
func (s PosSet) GobEncode() ([]byte, error) {
	return []byte{
		byte(s.mask >> 24), byte(s.mask >> 16), byte(s.mask >> 8), byte(s.mask),
	}, nil
}

// GobDecode decodes a set encoded by GobEncode.
func (s *PosSet) GobDecode(b []byte) error {
	if len(b) != 4 {
		return fmt.Errorf("malformed position set encoding: %d bytes", len(b))
	}
	s.mask = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return nil
}

func (s PosSet) String() string {
	elems := make([]string, 0, s.Len())
	for _, p := range s.Positions() {
		elems = append(elems, strconv.Itoa(p))
	}
	return "{" + strings.Join(elems, ",") + "}"
}

// CallArgumentNullSets classifies the actual-argument positions of one call
// instruction by nullness. DefinitelyNull is always a subset of MightBeNull;
// MightBeNull excludes arguments whose only null-producing path is an
// exception edge.
type CallArgumentNullSets struct {
	MightBeNull    PosSet
	DefinitelyNull PosSet
}
