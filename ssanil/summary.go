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

	"github.com/nilderef/nilderef/nullness"
	"golang.org/x/tools/go/ssa"
)

// BuildSummaries derives the unconditional-dereference summary of every
// function: the parameter positions dereferenced on every path from entry to
// every return. Passing nil for such a parameter is guaranteed to fail if the
// function is the call target.
func BuildSummaries(fns []*ssa.Function) *nullness.Database {
	db := nullness.NewDatabase()
	for _, fn := range fns {
		if len(fn.Blocks) == 0 {
			continue
		}
		summary := summarize(fn)
		if summary.Empty() {
			continue
		}
		db.Store(FunctionRef(fn), summary)
	}
	return db
}

func summarize(fn *ssa.Function) nullness.ParameterNullnessSummary {
	var returns []*ssa.BasicBlock
	for _, b := range fn.Blocks {
		if n := len(b.Instrs); n > 0 {
			if _, ok := b.Instrs[n-1].(*ssa.Return); ok {
				returns = append(returns, b)
			}
		}
	}

	// A deref is unconditional when its block dominates every return block.
	// With no return block at all, every reached dereference qualifies.
	dominatesAllReturns := func(b *ssa.BasicBlock) bool {
		for _, r := range returns {
			if !b.Dominates(r) {
				return false
			}
		}
		return true
	}

	params := make(map[ssa.Value]int, len(fn.Params))
	for i, p := range fn.Params {
		if i >= nullness.MaxTrackedParams {
			break
		}
		if isNillable(p.Type()) {
			params[p] = i
		}
	}

	var summary nullness.ParameterNullnessSummary
	for _, b := range fn.Blocks {
		if !dominatesAllReturns(b) {
			continue
		}
		for _, instr := range b.Instrs {
			for _, v := range dereferencedValues(instr) {
				if pos, ok := params[v]; ok {
					_ = summary.UnconditionallyDereferenced.Add(pos)
				}
			}
		}
	}
	return summary
}

// dereferencedValues returns the values instr dereferences: pointer loads and
// stores, field and element address computations, map writes, and the
// receiver of a dynamically dispatched call.
func dereferencedValues(instr ssa.Instruction) []ssa.Value {
	switch instr := instr.(type) {
	case *ssa.UnOp:
		if instr.Op == token.MUL {
			return []ssa.Value{instr.X}
		}
	case *ssa.Store:
		return []ssa.Value{instr.Addr}
	case *ssa.FieldAddr:
		return []ssa.Value{instr.X}
	case *ssa.IndexAddr:
		return []ssa.Value{instr.X}
	case *ssa.MapUpdate:
		return []ssa.Value{instr.Map}
	case ssa.CallInstruction:
		if cc := instr.Common(); cc.IsInvoke() {
			return []ssa.Value{cc.Value}
		}
	}
	return nil
}
