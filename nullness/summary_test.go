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
	"testing"

	"github.com/nilderef/nilderef/cfg"
	"github.com/stretchr/testify/require"
)

func TestSummary_Violated(t *testing.T) {
	t.Parallel()

	s := ParameterNullnessSummary{UnconditionallyDereferenced: PosSetOf(0, 2)}
	require.Equal(t, []int{2}, s.Violated(PosSetOf(1, 2)).Positions())
	require.True(t, s.Violated(PosSetOf(1)).Empty())
	require.False(t, s.Empty())
	require.True(t, ParameterNullnessSummary{}.Empty())
}

func TestDatabase_StoreLookup(t *testing.T) {
	t.Parallel()

	db := NewDatabase()
	get := cfg.MethodRef{PkgPath: "example.com/store", Recv: "Store", Name: "Get", NumParams: 2, RefParams: 0b11}
	db.Store(get, ParameterNullnessSummary{UnconditionallyDereferenced: PosSetOf(1)})

	s, ok := db.Lookup(get)
	require.True(t, ok)
	require.True(t, s.UnconditionallyDereferenced.Has(1))

	// Empty summaries are not stored: absence already means "no known
	// unconditional dereference".
	empty := cfg.MethodRef{PkgPath: "example.com/store", Name: "Noop", NumParams: 1, RefParams: 0b1}
	db.Store(empty, ParameterNullnessSummary{})
	_, ok = db.Lookup(empty)
	require.False(t, ok)
	require.Equal(t, 1, db.Len())
}

func TestDatabase_EncodeRoundTrip(t *testing.T) {
	t.Parallel()

	db := NewDatabase()
	refs := []cfg.MethodRef{
		{PkgPath: "example.com/a", Name: "First", NumParams: 1, RefParams: 0b1, Static: true},
		{PkgPath: "example.com/b", Recv: "T", Name: "second", NumParams: 3, RefParams: 0b110, Private: true},
	}
	for i, m := range refs {
		db.Store(m, ParameterNullnessSummary{UnconditionallyDereferenced: PosSetOf(i)})
	}

	encoded, err := db.Encode()
	require.NoError(t, err)

	decoded, err := DecodeDatabase(encoded)
	require.NoError(t, err)
	require.Equal(t, db.Len(), decoded.Len())
	for i, m := range refs {
		s, ok := decoded.Lookup(m)
		require.True(t, ok)
		require.True(t, s.UnconditionallyDereferenced.Has(i))
	}
}

func TestDatabase_EncodeDeterministic(t *testing.T) {
	t.Parallel()

	build := func() *Database {
		db := NewDatabase()
		for _, name := range []string{"C", "A", "B", "D"} {
			db.Store(
				cfg.MethodRef{PkgPath: "example.com/det", Name: name, NumParams: 1, RefParams: 0b1},
				ParameterNullnessSummary{UnconditionallyDereferenced: PosSetOf(0)},
			)
		}
		return db
	}

	first, err := build().Encode()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := build().Encode()
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}
