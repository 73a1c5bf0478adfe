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

package detect

import "github.com/nilderef/nilderef/cfg"

// blockSet is a bit set over basic-block IDs.
type blockSet struct {
	bits []uint64
}

func newBlockSet(capacity int) blockSet {
	return blockSet{bits: make([]uint64, (capacity+63)/64)}
}

func (s *blockSet) set(id int) {
	if id >= 0 && id/64 < len(s.bits) {
		s.bits[id/64] |= 1 << uint(id%64)
	}
}

func (s blockSet) has(id int) bool {
	return id >= 0 && id/64 < len(s.bits) && s.bits[id/64]&(1<<uint(id%64)) != 0
}

// computeBaseline records which basic blocks were already statically
// unreachable according to the value-identity facts, before the nullness
// analysis runs. The redundant-branch classifier consults the baseline to
// avoid attributing pre-existing dead code to a redundant check. Pure
// function of the CFG and value-identity facts.
func computeBaseline(proc *cfg.Procedure, values ValueIdentityProvider) blockSet {
	maxID := 0
	for _, b := range proc.Blocks {
		if b.ID > maxID {
			maxID = b.ID
		}
	}
	dead := newBlockSet(maxID + 1)
	if values == nil {
		return dead
	}
	for _, b := range proc.Blocks {
		if values.EntryUnreachable(proc, b) {
			dead.set(b.ID)
		}
	}
	return dead
}
