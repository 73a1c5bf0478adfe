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
	"fmt"

	"github.com/nilderef/nilderef/cfg"
	"github.com/nilderef/nilderef/config"
	"github.com/nilderef/nilderef/diagnostic"
	"github.com/nilderef/nilderef/nullness"
)

// FoundRedundantCheck classifies a comparison-against-null branch whose
// outcome is statically known. It implements Collector for the fact walker.
//
// The heuristics here (the dangerous-target demotion in the call-site
// checker, and the dead-code adjustment table below) are tuned to reduce
// false positives; the observable behavior is preserved as specified rather
// than re-derived.
func (e *Engine) FoundRedundantCheck(loc cfg.Location, ev nullness.RedundantBranchEvent) error {
	if err := ev.First.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInternalConsistency, err)
	}
	if ev.Second != nil {
		if err := ev.Second.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInternalConsistency, err)
		}
	}

	isChecked := ev.First.Checked
	kaboom := ev.First.Kaboom
	kaboomLoc := ev.First.KaboomLocation

	// Step 1: dead-code determination. The infeasible target is effectively
	// empty when killing it strips nothing: it throws nothing and is empty
	// or a bare jump, or its statements are reachable through another edge
	// anyway.
	createdDeadCode := false
	simplyThrows := false
	if edge := ev.InfeasibleEdge; edge != nil {
		target := edge.To
		empty := !target.ThrowsException && (target.Empty() || isGoto(firstInstr(target)))
		if !empty && target.NumIncomingEdges() > 1 {
			empty = true
		}
		if !empty {
			simplyThrows = simplyThrowsException(target)
		}
		if !empty && !e.baseline.has(target.ID) {
			// The target was alive before the nullness analysis. If its
			// entry fact is now the unreachable marker, this branch newly
			// created dead code: removing the check would silently delete
			// code the original dataflow thought was live.
			createdDeadCode = e.facts.EntryUnreachable(target)
		}
	}

	// Step 2: base classification.
	valueIsNull := true
	var kind diagnostic.Kind
	var severity diagnostic.Severity
	if ev.Second == nil {
		// Value compared against the null literal.
		if ev.First.DefinitelyNull {
			kind, severity = diagnostic.KindRedundantCheckOfNull, diagnostic.SeverityMedium
		} else {
			kind = diagnostic.KindRedundantCheckOfNonNull
			valueIsNull = false
			if isChecked {
				severity = diagnostic.SeverityMedium
			} else {
				severity = diagnostic.SeverityLow
			}
		}
	} else {
		// Checked/kaboom provenance is OR-combined across both sides.
		if ev.Second.Checked {
			isChecked = true
		}
		if ev.Second.Kaboom {
			kaboom = true
			if kaboomLoc == nil {
				kaboomLoc = ev.Second.KaboomLocation
			}
		}
		if ev.First.DefinitelyNull && ev.Second.DefinitelyNull {
			kind, severity = diagnostic.KindRedundantCompareTwoNulls, diagnostic.SeverityMedium
		} else {
			kind = diagnostic.KindRedundantCompareNullNonNull
			if isChecked {
				severity = diagnostic.SeverityMedium
			} else {
				severity = diagnostic.SeverityLow
			}
		}
	}

	// Step 3: kaboom override. This check would have prevented a guaranteed
	// null dereference; nothing outranks that.
	if kaboom {
		if kaboomLoc == nil {
			return fmt.Errorf("%w: would-have-been-a-kaboom check at %s carries no kaboom location",
				ErrInternalConsistency, loc)
		}
		kind = diagnostic.KindRedundantCheckWouldHaveBeenDeref
		severity = diagnostic.SeverityHigh
	} else {
		// Step 4: dead-code severity adjustment.
		switch {
		case createdDeadCode && !simplyThrows:
			// Killing live straight-line code keeps the base severity.
		case createdDeadCode && simplyThrows:
			// A killed throw clause matters only when the check found null.
			if !valueIsNull {
				severity = severity.Demote()
			}
		default:
			// A redundant check that strips no code at all is the least
			// interesting.
			severity = severity.Demote()
		}
	}

	var props []diagnostic.Property
	if isChecked {
		props = append(props, diagnostic.PropCheckedValue)
	}
	if kaboom {
		props = append(props, diagnostic.PropWouldHaveBeenKaboom)
	}
	if createdDeadCode {
		props = append(props, diagnostic.PropCreatedDeadCode)
	}
	if simplyThrows {
		props = append(props, diagnostic.PropInfeasibleThrows)
	}

	var annotations []diagnostic.Annotation
	if kaboom {
		annotations = append(annotations,
			diagnostic.LocationAnnotation("guaranteed dereference of the same null", *kaboomLoc))
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

// simplyThrowsException reports whether the first few instructions of the
// target reach a throw before any jump or return. The scan follows
// straight-line fallthrough into a sole successor that has no other
// predecessors, up to config.ThrowScanDepth instructions.
func simplyThrowsException(target *cfg.Block) bool {
	depth := config.ThrowScanDepth
	for b := target; b != nil; {
		for _, ins := range b.Instrs {
			if depth <= 0 {
				return false
			}
			depth--
			switch ins.(type) {
			case *cfg.ThrowInstruction:
				return true
			case *cfg.GotoInstruction, *cfg.ReturnInstruction:
				return false
			}
		}
		if len(b.Succs) != 1 {
			return false
		}
		next := b.Succs[0].To
		if next.NumIncomingEdges() > 1 {
			// The continuation is a join point; anything past it is not
			// "simply" part of this branch.
			return false
		}
		b = next
	}
	return false
}

func firstInstr(b *cfg.Block) cfg.Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[0]
}

func isGoto(ins cfg.Instruction) bool {
	_, ok := ins.(*cfg.GotoInstruction)
	return ok
}
