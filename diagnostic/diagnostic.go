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

// Package diagnostic defines the classified warnings the detection engine
// produces (stable kind tags, ordered severities, annotated payloads) and
// the engine that collects them and converts them to analysis.Diagnostics.
package diagnostic

import (
	"fmt"
	"strings"

	"github.com/nilderef/nilderef/cfg"
)

// Severity is the ordered warning severity: High > Medium > Low.
type Severity uint8

const (
	// SeverityLow is the least interesting tier.
	SeverityLow Severity = iota
	// SeverityMedium is the default tier.
	SeverityMedium
	// SeverityHigh is the most urgent tier.
	SeverityHigh
)

// Demote lowers the severity by one step, saturating at the lowest tier.
// Severity adjustments are always expressed through this operation, never
// through raw arithmetic.
func (s Severity) Demote() Severity {
	if s > SeverityLow {
		return s - 1
	}
	return SeverityLow
}

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Kind is the stable type tag of a diagnostic. The tags preserve every
// classification distinction the engine makes; renderers may map them to
// any user-facing wording.
type Kind string

const (
	// KindNullParamDerefNonVirtual tags a null argument passed to a call
	// with a single, statically known dangerous target.
	KindNullParamDerefNonVirtual Kind = "null-param-deref-nonvirtual"
	// KindNullParamDerefAllTargets tags a null argument where every possible
	// dispatch target unconditionally dereferences it.
	KindNullParamDerefAllTargets Kind = "null-param-deref-all-targets-dangerous"
	// KindNullParamDeref tags a null argument where some dispatch targets
	// are dangerous and others are safe.
	KindNullParamDeref Kind = "null-param-deref"
	// KindNonNullParamViolation tags a possibly-null argument passed for a
	// parameter declared non-null.
	KindNonNullParamViolation Kind = "nonnull-param-violation"
	// KindNonNullReturnViolation tags a possibly-null value returned from a
	// procedure declared to return non-null.
	KindNonNullReturnViolation Kind = "nonnull-return-violation"

	// KindAlwaysNullDeref tags a dereference of a value null on every path.
	KindAlwaysNullDeref Kind = "null-deref-always"
	// KindAlwaysNullDerefException is the exception-path variant of
	// KindAlwaysNullDeref.
	KindAlwaysNullDerefException Kind = "null-deref-always-exception"
	// KindNullOnSomePathDeref tags a dereference of a value null on some
	// path.
	KindNullOnSomePathDeref Kind = "null-deref-some-path"
	// KindNullOnSomePathDerefException is the exception-path variant of
	// KindNullOnSomePathDeref.
	KindNullOnSomePathDerefException Kind = "null-deref-some-path-exception"
	// KindNullFromReturnDeref tags a dereference of a possibly-null value
	// obtained from an unchecked call return.
	KindNullFromReturnDeref Kind = "null-deref-unchecked-return"

	// KindRedundantCheckOfNull tags a null comparison of a value already
	// known null.
	KindRedundantCheckOfNull Kind = "redundant-nullcheck-of-null"
	// KindRedundantCheckOfNonNull tags a null comparison of a value already
	// known non-null.
	KindRedundantCheckOfNonNull Kind = "redundant-nullcheck-of-nonnull"
	// KindRedundantCompareTwoNulls tags a comparison of two values both
	// known null.
	KindRedundantCompareTwoNulls Kind = "redundant-comparison-two-nulls"
	// KindRedundantCompareNullNonNull tags a comparison of a known-null and
	// a known-non-null value.
	KindRedundantCompareNullNonNull Kind = "redundant-comparison-null-nonnull"
	// KindRedundantCheckWouldHaveBeenDeref tags a redundant check that would
	// have prevented a guaranteed null dereference.
	KindRedundantCheckWouldHaveBeenDeref Kind = "redundant-nullcheck-would-have-panicked"

	// KindMissingClass tags a failed type resolution during analysis.
	KindMissingClass Kind = "missing-class"
	// KindInternalError tags an analysis failure surfaced as a diagnostic.
	KindInternalError Kind = "internal-error"
)

// Property is a free-form triage flag attached to a diagnostic payload.
type Property string

const (
	// PropOnExceptionPath marks facts that arose on exception edges.
	PropOnExceptionPath Property = "on-exception-path"
	// PropCheckedValue marks values the program compared against null on
	// some prior path.
	PropCheckedValue Property = "checked-value"
	// PropWouldHaveBeenKaboom marks redundant checks of a value whose
	// dereference was provably a guaranteed crash.
	PropWouldHaveBeenKaboom Property = "would-have-been-kaboom"
	// PropCreatedDeadCode marks redundant branches that newly killed
	// previously-live code.
	PropCreatedDeadCode Property = "created-dead-code"
	// PropInfeasibleThrows marks redundant branches whose infeasible target
	// simply throws.
	PropInfeasibleThrows Property = "infeasible-target-throws"
	// PropAllTargetsDangerous marks call sites where no safe dispatch target
	// exists.
	PropAllTargetsDangerous Property = "all-targets-dangerous"
	// PropMonomorphicCallSite marks call sites with exactly one possible
	// target.
	PropMonomorphicCallSite Property = "monomorphic-call-site"
	// PropArgGuaranteedNull marks call sites where every dangerous target is
	// dangerous for a definitely-null argument.
	PropArgGuaranteedNull Property = "argument-guaranteed-null"
	// PropArgDefinitelyNull marks individual arguments known null on every
	// path.
	PropArgDefinitelyNull Property = "argument-definitely-null"
)

// Annotation is one secondary payload element of a diagnostic: a method, a
// 1-based parameter index, or a secondary source location, with a role
// describing why it is attached.
type Annotation struct {
	// Role describes the annotation, e.g. "method called", "dangerous
	// target", "safe target".
	Role string
	// Method is the annotated method symbol, if any.
	Method *cfg.MethodRef
	// Param is a 1-based parameter index, 0 when absent.
	Param int
	// Location is a secondary source location, if any.
	Location *cfg.Location
}

func (a Annotation) String() string {
	var sb strings.Builder
	sb.WriteString(a.Role)
	if a.Method != nil {
		sb.WriteString(" `")
		sb.WriteString(a.Method.Format())
		sb.WriteString("`")
	}
	if a.Param > 0 {
		fmt.Fprintf(&sb, " parameter #%d", a.Param)
	}
	if a.Location != nil {
		fmt.Fprintf(&sb, " at %s", a.Location)
	}
	return sb.String()
}

// MethodAnnotation attaches a method with the given role.
func MethodAnnotation(role string, m cfg.MethodRef) Annotation {
	return Annotation{Role: role, Method: &m}
}

// ParamAnnotation attaches a 1-based parameter index with the given role.
func ParamAnnotation(role string, oneBased int) Annotation {
	return Annotation{Role: role, Param: oneBased}
}

// LocationAnnotation attaches a secondary source location with the given
// role.
func LocationAnnotation(role string, loc cfg.Location) Annotation {
	return Annotation{Role: role, Location: &loc}
}

// Diagnostic is one classified, prioritized warning.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	// Procedure is the enclosing procedure's symbol.
	Procedure cfg.MethodRef
	// Location is the primary source location.
	Location cfg.Location
	// Annotations carries secondary locations, methods and parameter
	// indices for triage.
	Annotations []Annotation
	// Properties carries the triage flags.
	Properties []Property
}

// HasProperty reports whether the payload carries the given triage flag.
func (d Diagnostic) HasProperty(p Property) bool {
	for _, q := range d.Properties {
		if q == p {
			return true
		}
	}
	return false
}

// String renders the diagnostic message: severity, kind description,
// enclosing procedure, and annotations.
func (d Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s in `%s`", d.Severity, describe(d.Kind), d.Procedure.Format())
	for _, a := range d.Annotations {
		sb.WriteString("; ")
		sb.WriteString(a.String())
	}
	return sb.String()
}

// describe maps a kind tag to its message text.
func describe(k Kind) string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return string(k)
}

var kindMessages = map[Kind]string{
	KindNullParamDerefNonVirtual:         "null passed for parameter unconditionally dereferenced by non-virtual call target",
	KindNullParamDerefAllTargets:         "null passed for parameter unconditionally dereferenced by every possible call target",
	KindNullParamDeref:                   "null possibly passed for parameter unconditionally dereferenced by some call targets",
	KindNonNullParamViolation:            "possibly-null value passed for parameter declared nonnull",
	KindNonNullReturnViolation:           "possibly-null value returned from procedure declared to return nonnull",
	KindAlwaysNullDeref:                  "dereference of a value that is null on every path",
	KindAlwaysNullDerefException:         "dereference of a value that is null on every exception path",
	KindNullOnSomePathDeref:              "dereference of a value that may be null",
	KindNullOnSomePathDerefException:     "dereference of a value that may be null on an exception path",
	KindNullFromReturnDeref:              "dereference of a possibly-null unchecked call return",
	KindRedundantCheckOfNull:             "redundant null check of a value known to be null",
	KindRedundantCheckOfNonNull:          "redundant null check of a value known to be non-null",
	KindRedundantCompareTwoNulls:         "redundant comparison of two null values",
	KindRedundantCompareNullNonNull:      "redundant comparison of a null and a non-null value",
	KindRedundantCheckWouldHaveBeenDeref: "null check of a value whose earlier dereference was a guaranteed panic",
	KindMissingClass:                     "referenced type could not be resolved",
	KindInternalError:                    "internal analysis error",
}
