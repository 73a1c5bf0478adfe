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

package ssanil

import (
	"go/token"

	"github.com/nilderef/nilderef/cfg"
	"github.com/nilderef/nilderef/detect"
	"github.com/nilderef/nilderef/nullness"
	"golang.org/x/tools/go/ssa"
)

// nilness is the intraprocedural lattice: unknown until a literal, an
// allocation, or a dominating comparison pins a value down.
type nilness int

const (
	isnonnil nilness = -1
	unknown  nilness = 0
	isnil    nilness = 1
)

// A fact asserts the nilness of one SSA value in all blocks dominated by the
// assertion point.
type fact struct {
	value   ssa.Value
	nilness nilness
}

func (f fact) negate() fact { return fact{f.value, -f.nilness} }

type facts []fact

func (ff facts) negate() facts {
	out := make(facts, len(ff))
	for i, f := range ff {
		out[i] = f.negate()
	}
	return out
}

// factEvent is one recorded dataflow event, replayed by Walk. Exactly one of
// deref and branch is set.
type factEvent struct {
	loc    cfg.Location
	deref  *nullness.Value
	branch *nullness.RedundantBranchEvent
}

// procFacts holds the precomputed per-procedure nullness facts. The event
// sequence is recorded once during the dominance walk; Walk replays it, so
// repeated walks yield identical events.
type procFacts struct {
	info    *procInfo
	events  []factEvent
	argVals map[cfg.Location][]nullness.Value
	retVals map[cfg.Location]nullness.Value
	visited map[int]bool
}

var _ detect.ProcedureFacts = (*procFacts)(nil)

// Walk implements detect.ProcedureFacts.
func (p *procFacts) Walk(c detect.Collector) error {
	for _, ev := range p.events {
		if ev.deref != nil {
			if err := c.FoundNullDeref(ev.loc, *ev.deref); err != nil {
				return err
			}
			continue
		}
		if err := c.FoundRedundantCheck(ev.loc, *ev.branch); err != nil {
			return err
		}
	}
	return nil
}

// ArgumentValues implements detect.ProcedureFacts.
func (p *procFacts) ArgumentValues(loc cfg.Location, _ *cfg.CallInstruction) ([]nullness.Value, bool) {
	vals, ok := p.argVals[loc]
	return vals, ok
}

// ReturnedValue implements detect.ProcedureFacts.
func (p *procFacts) ReturnedValue(loc cfg.Location) (nullness.Value, bool) {
	v, ok := p.retVals[loc]
	return v, ok
}

// EntryUnreachable implements detect.ProcedureFacts: blocks the nilness walk
// never entered, including those pruned behind statically decided branches.
func (p *procFacts) EntryUnreachable(b *cfg.Block) bool {
	return !p.visited[b.ID]
}

// walker runs one dominance-order pass over a function, carrying the stack of
// dominating nilness facts and recording events into pf.
type walker struct {
	pf        *procFacts
	contracts *ContractDatabase
	// compared marks values that already appeared in a nil comparison on a
	// dominating path.
	compared map[ssa.Value]bool
	// kabooms maps values dereferenced while definitely nil to the first such
	// location. A later check of the same value would have been a kaboom.
	kabooms map[ssa.Value]cfg.Location
}

// computeFacts runs the nilness walk over one adapted procedure.
func computeFacts(info *procInfo, contracts *ContractDatabase) *procFacts {
	pf := &procFacts{
		info:    info,
		argVals: make(map[cfg.Location][]nullness.Value),
		retVals: make(map[cfg.Location]nullness.Value),
		visited: make(map[int]bool),
	}
	w := &walker{
		pf:        pf,
		contracts: contracts,
		compared:  make(map[ssa.Value]bool),
		kabooms:   make(map[ssa.Value]cfg.Location),
	}
	if len(info.fn.Blocks) > 0 {
		w.visit(info.fn.Blocks[0], make(facts, 0, 20), false)
		if r := info.fn.Recover; r != nil {
			w.visit(r, make(facts, 0, 20), true)
		}
	}
	return pf
}

// visit visits reachable blocks of the CFG in dominance order, maintaining a
// stack of dominating nilness facts. Where a comparison against nil is
// statically decided it records the redundant-branch event and prunes the
// infeasible successor, so the dominated dead blocks stay unvisited.
func (w *walker) visit(b *ssa.BasicBlock, stack facts, exc bool) {
	if w.pf.visited[b.Index] {
		return
	}
	w.pf.visited[b.Index] = true

	for _, instr := range b.Instrs {
		switch instr := instr.(type) {
		case ssa.CallInstruction:
			cc := instr.Common()
			if cc.IsInvoke() {
				stack = w.noteDeref(stack, instr, cc.Value, exc)
			}
			if call, ok := instr.(*ssa.Call); ok {
				w.recordArgs(call, stack, exc)
			}
		case *ssa.FieldAddr:
			stack = w.noteDeref(stack, instr, instr.X, exc)
		case *ssa.IndexAddr:
			stack = w.noteDeref(stack, instr, instr.X, exc)
		case *ssa.MapUpdate:
			stack = w.noteDeref(stack, instr, instr.Map, exc)
		case *ssa.Store:
			stack = w.noteDeref(stack, instr, instr.Addr, exc)
		case *ssa.UnOp:
			if instr.Op == token.MUL {
				stack = w.noteDeref(stack, instr, instr.X, exc)
			}
		case *ssa.Return:
			if len(instr.Results) > 0 {
				if loc, ok := w.pf.info.locOf[instr]; ok {
					w.pf.retVals[loc] = w.valueAt(stack, instr.Results[0], exc)
				}
			}
		}
	}

	// Comparison against nil deciding the terminating branch.
	if binop, tsucc, fsucc := eq(b); binop != nil {
		xnil := nilnessOf(stack, binop.X)
		ynil := nilnessOf(stack, binop.Y)

		if xnil != unknown && ynil != unknown && (xnil == isnil || ynil == isnil) {
			// Both operands are known and at least one is nil: the branch
			// outcome is decided. Record the event, then prune the dead
			// successor from the walk.
			var skip *ssa.BasicBlock
			if xnil == ynil {
				skip = fsucc
			} else {
				skip = tsucc
			}
			w.noteRedundantBranch(b, binop, xnil, ynil, skip, exc)
			w.markCompared(binop)
			for _, d := range b.Dominees() {
				if d == skip && len(d.Preds) == 1 {
					continue
				}
				w.visit(d, stack, exc)
			}
			return
		}

		w.markCompared(binop)
		if xnil == isnil || ynil == isnil {
			// "x == nil" with x unknown: assert x's nilness separately down
			// each successor that this block alone feeds.
			var newFacts facts
			if xnil == isnil {
				newFacts = expandFacts(fact{binop.Y, isnil})
			} else {
				newFacts = expandFacts(fact{binop.X, isnil})
			}
			for _, d := range b.Dominees() {
				s := stack
				if len(d.Preds) == 1 {
					if d == tsucc {
						s = append(s, newFacts...)
					} else if d == fsucc {
						s = append(s, newFacts.negate()...)
					}
				}
				w.visit(d, s, exc)
			}
			return
		}
	}

	for _, d := range b.Dominees() {
		w.visit(d, stack, exc)
	}
}

// noteDeref records the dereference of v at instr. A definitely-nil
// dereference produces an event and marks v as a kaboom source; regardless of
// prior nilness, any path past a successful dereference has v non-nil, so a
// fact to that effect is pushed for the dominated blocks.
func (w *walker) noteDeref(stack facts, instr ssa.Instruction, v ssa.Value, exc bool) facts {
	loc, ok := w.pf.info.locOf[instr]
	if !ok {
		return stack
	}
	switch nilnessOf(stack, v) {
	case isnil:
		val := nullness.DefinitelyNullValue()
		val.Checked = w.compared[v]
		val.OnExceptionPath = exc
		w.pf.events = append(w.pf.events, factEvent{loc: loc, deref: &val})
		if _, seen := w.kabooms[v]; !seen {
			w.kabooms[v] = loc
		}
	case unknown:
		if val, found := w.somePathValue(v, exc); found {
			w.pf.events = append(w.pf.events, factEvent{loc: loc, deref: &val})
		}
	}
	return append(stack, fact{v, isnonnil})
}

// somePathValue recognizes values that are nil on some but not all paths: phi
// nodes merging in the nil literal, and unchecked results of calls declared
// check-for-null.
func (w *walker) somePathValue(v ssa.Value, exc bool) (nullness.Value, bool) {
	switch v := v.(type) {
	case *ssa.Phi:
		for _, e := range v.Edges {
			if c, ok := e.(*ssa.Const); ok && c.IsNil() {
				val := nullness.NullOnSomePathValue()
				val.Checked = w.compared[v]
				val.OnExceptionPath = exc
				return val, true
			}
		}
	case *ssa.Call:
		if w.contracts == nil || w.compared[v] {
			break
		}
		if fn := v.Common().StaticCallee(); fn != nil {
			if w.contracts.ReturnContract(FunctionRef(fn)) == nullness.ContractCheckForNull {
				val := nullness.NullOnSomePathValue()
				val.FromReturnValue = true
				val.OnExceptionPath = exc
				return val, true
			}
		}
	}
	return nullness.Value{}, false
}

// valueAt builds the lattice element of v under the current fact stack.
// Unknown nilness maps to non-null unless a some-path source is recognized:
// the checkers only act on positive evidence.
func (w *walker) valueAt(stack facts, v ssa.Value, exc bool) nullness.Value {
	switch nilnessOf(stack, v) {
	case isnil:
		val := nullness.DefinitelyNullValue()
		val.Checked = w.compared[v]
		val.OnExceptionPath = exc
		return val
	case isnonnil:
		return nullness.NonNullValue()
	}
	if val, found := w.somePathValue(v, exc); found {
		return val
	}
	return nullness.NonNullValue()
}

// recordArgs snapshots the lattice elements of every actual argument, in
// argument order, for the call-site checker's second walk.
func (w *walker) recordArgs(call *ssa.Call, stack facts, exc bool) {
	loc, ok := w.pf.info.locOf[call]
	if !ok {
		return
	}
	cc := call.Common()
	vals := make([]nullness.Value, len(cc.Args))
	for i, a := range cc.Args {
		vals[i] = w.valueAt(stack, a, exc)
	}
	w.pf.argVals[loc] = vals
}

// noteRedundantBranch records the statically decided nil comparison ending
// block b, with skip as the infeasible successor.
func (w *walker) noteRedundantBranch(b *ssa.BasicBlock, binop *ssa.BinOp, xnil, ynil nilness, skip *ssa.BasicBlock, exc bool) {
	loc, ok := w.pf.info.locOf[b.Instrs[len(b.Instrs)-1]]
	if !ok {
		return
	}
	ev := nullness.RedundantBranchEvent{
		InfeasibleEdge: w.pf.info.edgeBetween(b, skip),
	}
	switch {
	case isNilConst(binop.Y):
		ev.First = w.branchValue(binop.X, xnil, exc)
	case isNilConst(binop.X):
		ev.First = w.branchValue(binop.Y, ynil, exc)
	default:
		ev.First = w.branchValue(binop.X, xnil, exc)
		second := w.branchValue(binop.Y, ynil, exc)
		ev.Second = &second
	}
	w.pf.events = append(w.pf.events, factEvent{loc: loc, branch: &ev})
}

// branchValue builds the lattice element of one compared operand, attaching
// checked and kaboom provenance.
func (w *walker) branchValue(v ssa.Value, n nilness, exc bool) nullness.Value {
	var val nullness.Value
	if n == isnil {
		val = nullness.DefinitelyNullValue()
	}
	val.Checked = w.compared[v]
	val.OnExceptionPath = exc
	if kl, ok := w.kabooms[v]; ok {
		loc := kl
		val.Kaboom = true
		val.KaboomLocation = &loc
	}
	return val
}

// markCompared marks both nil-comparable operands as checked for all events
// recorded later in the walk.
func (w *walker) markCompared(binop *ssa.BinOp) {
	for _, v := range []ssa.Value{binop.X, binop.Y} {
		if _, ok := v.(*ssa.Const); ok {
			continue
		}
		if isNillable(v.Type()) {
			w.compared[v] = true
		}
	}
}

// edgeBetween returns the adapted CFG edge from one SSA block to another.
func (info *procInfo) edgeBetween(from, to *ssa.BasicBlock) *cfg.Edge {
	f, t := info.blockOf[from], info.blockOf[to]
	if f == nil || t == nil {
		return nil
	}
	for _, e := range f.Succs {
		if e.To == t {
			return e
		}
	}
	return nil
}

// eq returns the operands and successors of an equality comparison ending b,
// with tsucc the successor taken when the comparison holds.
func eq(b *ssa.BasicBlock) (op *ssa.BinOp, tsucc, fsucc *ssa.BasicBlock) {
	if ifInstr, ok := b.Instrs[len(b.Instrs)-1].(*ssa.If); ok {
		if binop, ok := ifInstr.Cond.(*ssa.BinOp); ok {
			switch binop.Op {
			case token.EQL:
				return binop, b.Succs[0], b.Succs[1]
			case token.NEQ:
				return binop, b.Succs[1], b.Succs[0]
			}
		}
	}
	return nil, nil, nil
}

// nilnessOf reports the nilness of v: structurally where the SSA form decides
// it, otherwise from the dominating facts, newest assertion first.
func nilnessOf(stack facts, v ssa.Value) nilness {
	switch v := v.(type) {
	case *ssa.ChangeInterface:
		if underlying := nilnessOf(stack, v.X); underlying != unknown {
			return underlying
		}
	case *ssa.Slice:
		if underlying := nilnessOf(stack, v.X); underlying != unknown {
			return underlying
		}
	}

	switch v.(type) {
	case *ssa.Alloc,
		*ssa.FieldAddr,
		*ssa.FreeVar,
		*ssa.Function,
		*ssa.Global,
		*ssa.IndexAddr,
		*ssa.MakeChan,
		*ssa.MakeClosure,
		*ssa.MakeInterface,
		*ssa.MakeMap,
		*ssa.MakeSlice:
		return isnonnil
	case *ssa.Const:
		if v.(*ssa.Const).IsNil() {
			return isnil
		}
		return isnonnil
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].value == v {
			return stack[i].nilness
		}
	}
	return unknown
}

// expandFacts follows nilness-preserving conversions so a fact about a
// derived value also pins down its operand.
func expandFacts(f fact) facts {
	ff := facts{f}
Loop:
	for {
		switch v := f.value.(type) {
		case *ssa.ChangeInterface:
			f = fact{v.X, f.nilness}
			ff = append(ff, f)
		case *ssa.Slice:
			f = fact{v.X, f.nilness}
			ff = append(ff, f)
		default:
			break Loop
		}
	}
	return ff
}

func isNilConst(v ssa.Value) bool {
	c, ok := v.(*ssa.Const)
	return ok && c.IsNil()
}
