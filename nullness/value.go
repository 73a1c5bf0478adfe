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

// Package nullness defines the nullness-lattice fact model consumed by the
// detection engine: per-value lattice elements with their provenance flags,
// the redundant-branch event record, argument/parameter position sets, and
// the interprocedural parameter-dereference summaries.
package nullness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nilderef/nilderef/cfg"
)

// ErrInconsistent is the sentinel for internal-consistency violations of the
// fact model. A classifier handed an inconsistent value must fail fast with
// an error wrapping this sentinel rather than emit a possibly-wrong report.
var ErrInconsistent = errors.New("inconsistent nullness fact")

// Value is one nullness-lattice element, produced by an external dataflow
// provider per (location, value slot) and immutable afterwards.
//
// MightBeNull is stored, not derived, so that consistency with the other
// flags can be checked: DefinitelyNull implies MightBeNull, and Kaboom
// implies KaboomLocation is present. Use Validate before classifying.
type Value struct {
	// MightBeNull reports that null reaches this value on at least one path.
	MightBeNull bool
	// DefinitelyNull reports that the value is null on every path.
	DefinitelyNull bool
	// NullOnSomePath reports that the value is null on some but not
	// necessarily all paths.
	NullOnSomePath bool
	// OnExceptionPath reports that the null arose on an exception edge.
	OnExceptionPath bool
	// FromReturnValue reports that the null arose from an unchecked call
	// return.
	FromReturnValue bool
	// Checked reports that the program already compared this value against
	// null on some prior path.
	Checked bool
	// Kaboom reports that dereferencing this value is provably the same null
	// that caused a prior crash-equivalent dereference.
	Kaboom bool
	// KaboomLocation is a back-reference (never ownership) to the location
	// that would have failed. Required whenever Kaboom is set.
	KaboomLocation *cfg.Location
}

// DefinitelyNullValue returns a lattice element for a value that is null on
// every path.
func DefinitelyNullValue() Value {
	return Value{MightBeNull: true, DefinitelyNull: true}
}

// NullOnSomePathValue returns a lattice element for a value that is null on
// some path.
func NullOnSomePathValue() Value {
	return Value{MightBeNull: true, NullOnSomePath: true}
}

// NonNullValue returns the lattice element for a value known non-null.
func NonNullValue() Value { return Value{} }

// Validate checks the internal invariants of the lattice element. A non-nil
// error wraps ErrInconsistent; absence of a required field is a consistency
// violation, never a silent default.
func (v Value) Validate() error {
	if v.DefinitelyNull && !v.MightBeNull {
		return fmt.Errorf("%w: definitely-null value not marked might-be-null", ErrInconsistent)
	}
	if v.Kaboom && v.KaboomLocation == nil {
		return fmt.Errorf("%w: would-have-been-a-kaboom value carries no kaboom location", ErrInconsistent)
	}
	return nil
}

func (v Value) String() string {
	var parts []string
	switch {
	case v.DefinitelyNull:
		parts = append(parts, "definitely-null")
	case v.NullOnSomePath:
		parts = append(parts, "null-on-some-path")
	case v.MightBeNull:
		parts = append(parts, "might-be-null")
	default:
		parts = append(parts, "non-null")
	}
	if v.OnExceptionPath {
		parts = append(parts, "exception")
	}
	if v.FromReturnValue {
		parts = append(parts, "return-value")
	}
	if v.Checked {
		parts = append(parts, "checked")
	}
	if v.Kaboom {
		parts = append(parts, "kaboom")
	}
	return strings.Join(parts, ",")
}

// RedundantBranchEvent describes one comparison-against-null branch whose
// outcome is statically known.
type RedundantBranchEvent struct {
	// First is the checked value.
	First Value
	// Second is the other compared value; nil means the comparison was
	// against the null literal.
	Second *Value
	// InfeasibleEdge is the CFG edge the redundant branch proves can never
	// be taken; nil if both outcomes remain reachable for other reasons.
	InfeasibleEdge *cfg.Edge
}
