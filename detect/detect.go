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

// Package detect implements the null-dereference and redundant-null-check
// detection engine. It consumes nullness-lattice facts computed by external
// dataflow providers and decides what they mean: it classifies dereferences
// of possibly-null values, redundant null comparisons, null arguments passed
// to parameters known to be unconditionally dereferenced, and possibly-null
// returns from procedures declared to return non-null.
package detect

import (
	"errors"
	"fmt"

	"github.com/nilderef/nilderef/cfg"
	"github.com/nilderef/nilderef/config"
	"github.com/nilderef/nilderef/diagnostic"
	"github.com/nilderef/nilderef/nullness"
)

// ErrInternalConsistency wraps internal-consistency faults of incoming
// facts. Such faults abort the procedure's analysis loudly instead of
// producing a possibly-wrong diagnostic.
var ErrInternalConsistency = errors.New("internal consistency fault")

// MissingClassError reports that a type referenced during analysis could not
// be resolved. It is surfaced as a diagnostic once per occurrence; analysis
// of the procedure continues.
type MissingClassError struct {
	Name string
}

func (e *MissingClassError) Error() string {
	return fmt.Sprintf("class %q could not be resolved", e.Name)
}

// Collector receives the typed events the nullness dataflow walk produces.
// A non-nil error from either method aborts the walk.
type Collector interface {
	// FoundNullDeref reports that the instruction at loc dereferences a
	// value the lattice says may be null.
	FoundNullDeref(loc cfg.Location, v nullness.Value) error
	// FoundRedundantCheck reports a comparison-against-null branch whose
	// outcome is statically known.
	FoundRedundantCheck(loc cfg.Location, ev nullness.RedundantBranchEvent) error
}

// ProcedureFacts is the per-procedure view onto the nullness dataflow
// results. The event sequence is finite and restartable: Walk may be called
// again and yields the same events.
type ProcedureFacts interface {
	// Walk pushes every null-dereference and redundant-branch event of the
	// procedure to the collector, each exactly once per location.
	Walk(c Collector) error
	// ArgumentValues returns the nullness lattice element of every actual
	// argument of the call at loc, in argument order. ok is false when the
	// fact at loc is invalid (unreachable code).
	ArgumentValues(loc cfg.Location, call *cfg.CallInstruction) (values []nullness.Value, ok bool)
	// ReturnedValue returns the lattice element of the value returned at
	// loc. ok is false when the fact at loc is invalid.
	ReturnedValue(loc cfg.Location) (v nullness.Value, ok bool)
	// EntryUnreachable reports whether the nullness fact entering block b is
	// the unreachable marker.
	EntryUnreachable(b *cfg.Block) bool
}

// NullnessProvider produces the per-procedure nullness facts. A returned
// error is a dataflow-engine failure: the procedure's analysis is abandoned
// and the caller proceeds to the next procedure.
type NullnessProvider interface {
	FactsFor(proc *cfg.Procedure) (ProcedureFacts, error)
}

// ValueIdentityProvider exposes the value-identity dataflow result, used
// only to seed the dead-block baseline before the nullness analysis runs.
type ValueIdentityProvider interface {
	// EntryUnreachable reports whether the value-identity fact entering b is
	// the lattice bottom/unreachable marker.
	EntryUnreachable(proc *cfg.Procedure, b *cfg.Block) bool
}

// TargetResolver resolves the statically possible dispatch targets of a call
// instruction using the inferred receiver type. A *MissingClassError is
// reported as a diagnostic without aborting the procedure.
type TargetResolver interface {
	Resolve(loc cfg.Location, call *cfg.CallInstruction) ([]cfg.MethodRef, error)
}

// SummaryDatabase is the read-only interprocedural summary store. A nil
// database disables the unconditional-dereference check entirely.
type SummaryDatabase interface {
	Lookup(m cfg.MethodRef) (nullness.ParameterNullnessSummary, bool)
}

// ContractProvider is the declared-nullability database.
type ContractProvider interface {
	ReturnContract(m cfg.MethodRef) nullness.ReturnContract
	ParameterMustBeNonNull(m cfg.MethodRef, pos int) bool
}

// Collaborators bundles the external analyses the engine consumes. Nullness
// and ValueIdentity are required; the rest may be nil, which disables the
// corresponding checks.
type Collaborators struct {
	Nullness      NullnessProvider
	ValueIdentity ValueIdentityProvider
	Targets       TargetResolver
	Summaries     SummaryDatabase
	Contracts     ContractProvider
}

// Engine runs the detection over procedures and reports classified
// diagnostics. One engine may analyze many procedures sequentially; the
// per-procedure state below is reset on each AnalyzeProcedure call, so a
// single engine must not be shared across goroutines. Procedures themselves
// are independent: parallel analysis wants one engine per goroutine over the
// same (read-only) collaborators.
type Engine struct {
	conf     *config.Config
	reporter diagnostic.Reporter
	collab   Collaborators

	// Per-procedure transient state, immutable between the two walks.
	proc           *cfg.Procedure
	facts          ProcedureFacts
	baseline       blockSet
	returnContract nullness.ReturnContract
}

// NewEngine creates a detection engine reporting to the given sink.
func NewEngine(conf *config.Config, reporter diagnostic.Reporter, collab Collaborators) *Engine {
	if conf == nil {
		conf = &config.Config{}
	}
	return &Engine{conf: conf, reporter: reporter, collab: collab}
}

// AnalyzeProcedure runs both detection walks over one procedure.
//
// Ineligible procedures (no body) are skipped silently. A dataflow-engine
// failure abandons this procedure only and is returned for the caller to
// log. An internal-consistency fault is returned wrapping
// ErrInternalConsistency; no diagnostic is emitted for the faulty event.
func (e *Engine) AnalyzeProcedure(proc *cfg.Procedure) error {
	if !proc.HasBody() {
		return nil
	}
	if f := e.conf.MethodFilter; f != "" && proc.Ref.Name != f {
		return nil
	}

	e.proc = proc
	e.baseline = computeBaseline(proc, e.collab.ValueIdentity)
	e.returnContract = e.resolveReturnContract(proc)

	facts, err := e.collab.Nullness.FactsFor(proc)
	if err != nil {
		return fmt.Errorf("nullness dataflow failed for %s: %w", proc.Ref, err)
	}
	e.facts = facts

	// First walk: the fact walker pushes null-deref and redundant-branch
	// events, classified by the Collector methods on the engine.
	if err := facts.Walk(e); err != nil {
		return fmt.Errorf("analyzing %s: %w", proc.Ref, err)
	}

	// Second walk: call sites and return instructions.
	for _, loc := range proc.Locations() {
		switch ins := loc.Instr().(type) {
		case *cfg.CallInstruction:
			if err := e.checkCallSite(loc, ins); err != nil {
				return fmt.Errorf("analyzing call in %s: %w", proc.Ref, err)
			}
		case *cfg.ReturnInstruction:
			if ins.HasValue && e.returnContract == nullness.ContractNonNull {
				e.checkReturn(loc)
			}
		}
	}
	return nil
}

// AnalyzeAll analyzes every procedure. Failures abandon only the failing
// procedure; the joined errors are returned at the end for logging.
func (e *Engine) AnalyzeAll(procs []*cfg.Procedure) error {
	var errs []error
	for _, proc := range procs {
		if err := e.AnalyzeProcedure(proc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolveReturnContract determines the procedure's declared nullness
// contract for its return value. Procedures that do not return a reference
// cannot have a meaningful contract.
func (e *Engine) resolveReturnContract(proc *cfg.Procedure) nullness.ReturnContract {
	if !proc.ReturnsReference || e.collab.Contracts == nil {
		return nullness.ContractUnknown
	}
	return e.collab.Contracts.ReturnContract(proc.Ref)
}

// reportMissingClass emits the distinct missing-class diagnostic and lets
// the caller continue with the rest of the procedure.
func (e *Engine) reportMissingClass(loc cfg.Location, mce *MissingClassError) {
	e.reporter.Report(diagnostic.Diagnostic{
		Kind:      diagnostic.KindMissingClass,
		Severity:  diagnostic.SeverityMedium,
		Procedure: e.proc.Ref,
		Location:  loc,
		Annotations: []diagnostic.Annotation{
			{Role: "unresolved type " + mce.Name},
		},
	})
}

// verboseAnnotations attaches extra triage payload in verbose runs: the
// primary location restated as an instruction offset annotation.
func (e *Engine) verboseAnnotations(loc cfg.Location) []diagnostic.Annotation {
	if !e.conf.Verbose {
		return nil
	}
	return []diagnostic.Annotation{diagnostic.LocationAnnotation("instruction offset", loc)}
}
