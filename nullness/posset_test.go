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
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPosSet_AddHas(t *testing.T) {
	t.Parallel()

	var s PosSet
	require.True(t, s.Empty())
	require.NoError(t, s.Add(0))
	require.NoError(t, s.Add(5))
	require.NoError(t, s.Add(MaxTrackedParams-1))
	require.True(t, s.Has(0))
	require.True(t, s.Has(5))
	require.True(t, s.Has(MaxTrackedParams-1))
	require.False(t, s.Has(1))
	require.False(t, s.Empty())
	require.Equal(t, 3, s.Len())
	require.Equal(t, []int{0, 5, MaxTrackedParams - 1}, s.Positions())
}

func TestPosSet_RejectsOutOfRange(t *testing.T) {
	t.Parallel()

	var s PosSet
	require.Error(t, s.Add(-1))
	require.Error(t, s.Add(MaxTrackedParams))
	// A rejected position must not wrap into the valid range.
	require.True(t, s.Empty())
	require.False(t, s.Has(0))
}

func TestPosSet_SetOps(t *testing.T) {
	t.Parallel()

	a := PosSetOf(1, 2, 3)
	b := PosSetOf(2, 3, 4)
	require.Equal(t, []int{2, 3}, a.Intersect(b).Positions())
	require.Equal(t, []int{1, 2, 3, 4}, a.Union(b).Positions())
	require.True(t, a.Intersect(PosSet{}).Empty())
}

func TestPosSet_GobRoundTrip(t *testing.T) {
	t.Parallel()

	in := PosSetOf(0, 7, 31)
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(in))

	var out PosSet
	require.NoError(t, gob.NewDecoder(&buf).Decode(&out))
	require.Equal(t, in, out)
}

func TestCallArgumentNullSets_SubsetInvariant(t *testing.T) {
	t.Parallel()

	args := CallArgumentNullSets{
		MightBeNull:    PosSetOf(0, 1, 2),
		DefinitelyNull: PosSetOf(1),
	}
	require.Equal(t, args.DefinitelyNull, args.DefinitelyNull.Intersect(args.MightBeNull))
}
