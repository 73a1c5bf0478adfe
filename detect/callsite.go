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

import (
	"errors"
	"strings"

	"github.com/nilderef/nilderef/cfg"
	"github.com/nilderef/nilderef/diagnostic"
	"github.com/nilderef/nilderef/nullness"
)

// checkCallSite examines one call instruction for null arguments. The
// unconditional-dereference check and the declared-nonnull check are
// independent and may both fire for the same call site.
func (e *Engine) checkCallSite(loc cfg.Location, call *cfg.CallInstruction) error {
	// A null argument to the universal equality method is the callee's
	// contractual business, not the caller's. Deliberate precision
	// exception.
	if call.Callee.IsUniversalEquals() {
		return nil
	}
	if call.Callee.NumRefParams() == 0 {
		return nil
	}

	args, ok := e.argumentNullSets(loc, call)
	if !ok || args.MightBeNull.Empty() {
		return nil
	}

	if e.collab.Summaries != nil {
		if err := e.checkUnconditionalDeref(loc, call, args); err != nil {
			var mce *MissingClassError
			if errors.As(err, &mce) {
				e.reportMissingClass(loc, mce)
			} else {
				return err
			}
		}
	}

	e.checkDeclaredNonNull(loc, call, args)
	return nil
}

// argumentNullSets derives the per-argument null position sets at the call
// site. ok is false when the nullness fact at loc is invalid (unreachable
// code). Argument positions beyond the supported capacity are clamped out
// of the sets rather than wrapped.
func (e *Engine) argumentNullSets(loc cfg.Location, call *cfg.CallInstruction) (nullness.CallArgumentNullSets, bool) {
	values, ok := e.facts.ArgumentValues(loc, call)
	if !ok {
		return nullness.CallArgumentNullSets{}, false
	}
	var args nullness.CallArgumentNullSets
	for i, v := range values {
		if i >= nullness.MaxTrackedParams {
			break
		}
		// Arguments whose only null-producing path is an exception edge are
		// excluded; such flow is often infeasible.
		if v.MightBeNull && !v.OnExceptionPath {
			_ = args.MightBeNull.Add(i)
			if v.DefinitelyNull {
				_ = args.DefinitelyNull.Add(i)
			}
		}
	}
	return args, true
}

// checkUnconditionalDeref resolves the possible dispatch targets of the call
// and reports when some target is known to unconditionally dereference a
// parameter position that holds a possibly-null argument.
func (e *Engine) checkUnconditionalDeref(loc cfg.Location, call *cfg.CallInstruction, args nullness.CallArgumentNullSets) error {
	if e.collab.Targets == nil {
		return nil
	}
	targets, err := e.collab.Targets.Resolve(loc, call)
	if err != nil {
		return err
	}

	// Partition targets into dangerous (summary intersects the null
	// arguments) and safe (no summary, or empty intersection), collecting
	// the union of violated positions.
	var (
		violated   nullness.PosSet
		dangerous  []cfg.MethodRef
		guaranteed []cfg.MethodRef
		safe       []cfg.MethodRef
	)
	for _, target := range targets {
		summary, ok := e.collab.Summaries.Lookup(target)
		if !ok {
			safe = append(safe, target)
			continue
		}
		v := summary.Violated(args.MightBeNull)
		if v.Empty() {
			safe = append(safe, target)
			continue
		}
		dangerous = append(dangerous, target)
		violated = violated.Union(v)
		if !summary.Violated(args.DefinitelyNull).Empty() {
			guaranteed = append(guaranteed, target)
		}
	}
	if len(dangerous) == 0 {
		return nil
	}

	var props []diagnostic.Property
	monomorphic := len(safe) == 0 && len(dangerous) == 1
	if len(safe) == 0 {
		props = append(props, diagnostic.PropAllTargetsDangerous)
	}
	if monomorphic {
		props = append(props, diagnostic.PropMonomorphicCallSite)
	}

	// Severity ladder, in priority order: a statically monomorphic call is
	// worst, then calls where every target is dangerous, then mixed calls.
	privateCall := monomorphic && dangerous[0].Private
	var kind diagnostic.Kind
	var severity diagnostic.Severity
	switch {
	case privateCall || !call.IsVirtual() || monomorphic:
		kind = diagnostic.KindNullParamDerefNonVirtual
		severity = diagnostic.SeverityHigh
	case len(safe) == 0:
		kind = diagnostic.KindNullParamDerefAllTargets
		severity = diagnostic.SeverityMedium
	default:
		kind = diagnostic.KindNullParamDeref
		severity = diagnostic.SeverityLow
	}

	// When some dangerous targets are dangerous only for possibly-null (not
	// guaranteed-null) arguments, the finding is softer by one step.
	if len(dangerous) > len(guaranteed) {
		severity = severity.Demote()
	} else {
		props = append(props, diagnostic.PropArgGuaranteedNull)
	}

	annotations := []diagnostic.Annotation{
		diagnostic.MethodAnnotation("method called", call.Callee),
	}
	// Parameter positions are reported 1-based. Properties have set
	// semantics: one flag however many positions carry a guaranteed null.
	anyDefinitelyNull := false
	for _, p := range violated.Positions() {
		if args.DefinitelyNull.Has(p) {
			anyDefinitelyNull = true
			annotations = append(annotations, diagnostic.ParamAnnotation("argument definitely null for", p+1))
		} else {
			annotations = append(annotations, diagnostic.ParamAnnotation("argument might be null for", p+1))
		}
	}
	if anyDefinitelyNull {
		props = append(props, diagnostic.PropArgDefinitelyNull)
	}
	// All three target lists are part of the payload, not just the worst
	// case: they aid triage.
	guaranteedSet := make(map[cfg.MethodRef]bool, len(guaranteed))
	for _, m := range guaranteed {
		guaranteedSet[m] = true
		annotations = append(annotations, diagnostic.MethodAnnotation("dangerous target, argument guaranteed null", m))
	}
	for _, m := range dangerous {
		if !guaranteedSet[m] {
			annotations = append(annotations, diagnostic.MethodAnnotation("dangerous target", m))
		}
	}
	for _, m := range safe {
		annotations = append(annotations, diagnostic.MethodAnnotation("safe target", m))
	}
	annotations = append(annotations, e.verboseAnnotations(loc)...)

	e.reporter.Report(diagnostic.Diagnostic{
		Kind:        kind,
		Severity:    severity,
		Procedure:   e.proc.Ref,
		Location:    loc,
		Annotations: annotations,
		Properties:  props,
	})
	return nil
}

// checkDeclaredNonNull reports possibly-null arguments passed for parameter
// positions the declared-nullability database marks non-null.
func (e *Engine) checkDeclaredNonNull(loc cfg.Location, call *cfg.CallInstruction, args nullness.CallArgumentNullSets) {
	if e.collab.Contracts == nil {
		return
	}
	// The trusted standard-library namespaces carry no nullability
	// declarations; skip the lookup entirely.
	if isTrustedNamespace(call.Callee.PkgPath) {
		return
	}
	for _, p := range args.MightBeNull.Positions() {
		if !e.collab.Contracts.ParameterMustBeNonNull(call.Callee, p) {
			continue
		}
		severity := diagnostic.SeverityMedium
		var props []diagnostic.Property
		if args.DefinitelyNull.Has(p) {
			severity = diagnostic.SeverityHigh
			props = append(props, diagnostic.PropArgDefinitelyNull)
		}
		annotations := []diagnostic.Annotation{
			diagnostic.MethodAnnotation("method called", call.Callee),
			diagnostic.ParamAnnotation("parameter declared nonnull", p+1),
		}
		annotations = append(annotations, e.verboseAnnotations(loc)...)
		e.reporter.Report(diagnostic.Diagnostic{
			Kind:        diagnostic.KindNonNullParamViolation,
			Severity:    severity,
			Procedure:   e.proc.Ref,
			Location:    loc,
			Annotations: annotations,
			Properties:  props,
		})
	}
}

// isTrustedNamespace reports whether the package path belongs to the
// standard library, whose first path segment carries no domain dot.
func isTrustedNamespace(pkgPath string) bool {
	if pkgPath == "" {
		return false
	}
	first := pkgPath
	if i := strings.IndexByte(first, '/'); i >= 0 {
		first = first[:i]
	}
	return !strings.Contains(first, ".")
}
