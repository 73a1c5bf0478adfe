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
	"errors"

	"github.com/klauspost/compress/s2"
	"github.com/nilderef/nilderef/cfg"
	"github.com/nilderef/nilderef/util/orderedmap"
)

// ParameterNullnessSummary is the interprocedural fact for one method: the
// set of formal-parameter positions that every control path through the
// method dereferences before returning, independent of any guard the method
// itself may contain on other paths.
type ParameterNullnessSummary struct {
	UnconditionallyDereferenced PosSet
}

// Violated intersects the unconditionally-dereferenced parameter positions
// with the given set of null argument positions: the result is the set of
// positions whose dereference is guaranteed if this method is the call
// target.
func (s ParameterNullnessSummary) Violated(nullArgs PosSet) PosSet {
	return s.UnconditionallyDereferenced.Intersect(nullArgs)
}

// Empty reports whether the summary records no unconditional dereferences.
func (s ParameterNullnessSummary) Empty() bool {
	return s.UnconditionallyDereferenced.Empty()
}

// Database is the read-only interprocedural summary store, built once before
// any procedure analysis begins. The backing map is ordered so that encoded
// exports are deterministic.
type Database struct {
	summaries *orderedmap.OrderedMap[cfg.MethodRef, ParameterNullnessSummary]
}

// NewDatabase returns an empty summary database.
func NewDatabase() *Database {
	return &Database{summaries: orderedmap.New[cfg.MethodRef, ParameterNullnessSummary]()}
}

// Store records the summary for a method. Empty summaries are not stored;
// absence already means "no known unconditional dereference".
func (d *Database) Store(m cfg.MethodRef, s ParameterNullnessSummary) {
	if s.Empty() {
		return
	}
	d.summaries.Store(m, s)
}

// Lookup returns the summary for a method, if one is known.
func (d *Database) Lookup(m cfg.MethodRef) (ParameterNullnessSummary, bool) {
	return d.summaries.Load(m)
}

// Len returns the number of methods with a recorded summary.
func (d *Database) Len() int { return d.summaries.Len() }

// Encode serializes the database with gob wrapped in s2 framing, for sharing
// summaries across processes without paying the artifact-size cost of plain
// gob.
func (d *Database) Encode() (b []byte, err error) {
	var buf bytes.Buffer
	writer := s2.NewWriter(&buf)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := gob.NewEncoder(writer).Encode(d.summaries); err != nil {
		return nil, err
	}

	// Close the s2 writer before taking the bytes so the frame is complete.
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeDatabase deserializes a database produced by Encode.
func DecodeDatabase(input []byte) (*Database, error) {
	d := NewDatabase()
	buf := bytes.NewBuffer(input)
	if err := gob.NewDecoder(s2.NewReader(buf)).Decode(d.summaries); err != nil {
		return nil, err
	}
	return d, nil
}
