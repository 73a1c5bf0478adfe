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

// Package ssanil implements the detection engine's external collaborators on
// Go SSA: the CFG adaptation, an intraprocedural nilness fact provider, the
// value-identity reachability baseline, the unconditional-dereference
// summary builder, and the declared-nullability contract database.
package ssanil

import (
	"go/ast"
	"go/types"

	"github.com/nilderef/nilderef/cfg"
	"golang.org/x/tools/go/ssa"
)

// procInfo bundles one adapted procedure with the mappings back to its SSA
// form needed by the fact provider.
type procInfo struct {
	fn   *ssa.Function
	proc *cfg.Procedure
	// blockOf maps SSA blocks to their adapted counterparts.
	blockOf map[*ssa.BasicBlock]*cfg.Block
	// locOf maps SSA instructions to their adapted locations.
	locOf map[ssa.Instruction]cfg.Location
	// cfgReachable[i] records plain CFG reachability of block ID i from the
	// entry, ignoring all nilness reasoning. This seeds the dead-block
	// baseline.
	cfgReachable map[int]bool
}

// buildProcedure adapts an SSA function into the engine's CFG model.
func buildProcedure(fn *ssa.Function) *procInfo {
	info := &procInfo{
		fn:           fn,
		blockOf:      make(map[*ssa.BasicBlock]*cfg.Block),
		locOf:        make(map[ssa.Instruction]cfg.Location),
		cfgReachable: make(map[int]bool),
	}
	proc := &cfg.Procedure{
		Ref:              FunctionRef(fn),
		External:         len(fn.Blocks) == 0,
		ReturnsReference: returnsReference(fn.Signature),
	}
	info.proc = proc

	for _, b := range fn.Blocks {
		cb := &cfg.Block{ID: b.Index}
		for _, ins := range b.Instrs {
			cb.Instrs = append(cb.Instrs, convertInstr(ins))
			loc := cfg.Location{Block: cb, Index: len(cb.Instrs) - 1}
			info.locOf[ins] = loc
		}
		if n := len(b.Instrs); n > 0 {
			if _, ok := b.Instrs[n-1].(*ssa.Panic); ok {
				cb.ThrowsException = true
			}
		}
		info.blockOf[b] = cb
		proc.Blocks = append(proc.Blocks, cb)
	}
	for _, b := range fn.Blocks {
		from := info.blockOf[b]
		for _, s := range b.Succs {
			to := info.blockOf[s]
			edge := &cfg.Edge{From: from, To: to}
			from.Succs = append(from.Succs, edge)
			to.Preds = append(to.Preds, edge)
		}
	}

	// Plain CFG reachability, before any nilness-based pruning.
	if len(fn.Blocks) > 0 {
		var mark func(b *ssa.BasicBlock)
		mark = func(b *ssa.BasicBlock) {
			if info.cfgReachable[b.Index] {
				return
			}
			info.cfgReachable[b.Index] = true
			for _, s := range b.Succs {
				mark(s)
			}
		}
		mark(fn.Blocks[0])
		if fn.Recover != nil {
			mark(fn.Recover)
		}
	}
	return info
}

// convertInstr classifies an SSA instruction into the engine's instruction
// model.
func convertInstr(ins ssa.Instruction) cfg.Instruction {
	switch ins := ins.(type) {
	case *ssa.Call:
		return convertCall(ins)
	case *ssa.Return:
		return &cfg.ReturnInstruction{Position: ins.Pos(), HasValue: len(ins.Results) > 0}
	case *ssa.Panic:
		return &cfg.ThrowInstruction{Position: ins.Pos()}
	case *ssa.Jump:
		return &cfg.GotoInstruction{Position: ins.Pos()}
	default:
		return &cfg.GenericInstruction{Position: ins.Pos()}
	}
}

func convertCall(call *ssa.Call) *cfg.CallInstruction {
	cc := call.Common()
	out := &cfg.CallInstruction{Position: call.Pos(), NumArgs: len(cc.Args)}
	switch {
	case cc.IsInvoke():
		out.Callee = methodRef(cc.Method)
		out.Dispatch = cfg.DispatchVirtual
	case cc.StaticCallee() != nil:
		fn := cc.StaticCallee()
		out.Callee = FunctionRef(fn)
		if fn.Signature.Recv() != nil {
			out.Dispatch = cfg.DispatchDirect
		} else {
			out.Dispatch = cfg.DispatchStatic
		}
	default:
		// Call through a function value: target unknown, no parameter
		// information. The checkers skip refless callees.
		out.Callee = cfg.MethodRef{Name: cc.Value.Name()}
		out.Dispatch = cfg.DispatchVirtual
	}
	return out
}

// FunctionRef builds the method reference of an SSA function. For methods,
// the receiver occupies parameter position 0, matching fn.Params and the
// argument layout of static method calls.
func FunctionRef(fn *ssa.Function) cfg.MethodRef {
	ref := cfg.MethodRef{Name: fn.Name()}
	if fn.Pkg != nil {
		ref.PkgPath = fn.Pkg.Pkg.Path()
	} else if obj := fn.Object(); obj != nil && obj.Pkg() != nil {
		ref.PkgPath = obj.Pkg().Path()
	}
	ref.Private = !ast.IsExported(fn.Name())

	sig := fn.Signature
	if recv := sig.Recv(); recv != nil {
		ref.Recv = recvTypeName(recv.Type())
		addParam(&ref, recv.Type())
	} else {
		ref.Static = true
	}
	for i := 0; i < sig.Params().Len(); i++ {
		addParam(&ref, sig.Params().At(i).Type())
	}
	return ref
}

// methodRef builds the reference of an interface method invoked virtually.
// There is no receiver slot: dynamic dispatch binds it separately.
func methodRef(m *types.Func) cfg.MethodRef {
	ref := cfg.MethodRef{Name: m.Name(), Private: !ast.IsExported(m.Name())}
	if m.Pkg() != nil {
		ref.PkgPath = m.Pkg().Path()
	}
	sig := m.Type().(*types.Signature)
	for i := 0; i < sig.Params().Len(); i++ {
		addParam(&ref, sig.Params().At(i).Type())
	}
	return ref
}

func addParam(ref *cfg.MethodRef, t types.Type) {
	if isNillable(t) && ref.NumParams < 32 {
		ref.RefParams |= 1 << uint(ref.NumParams)
	}
	ref.NumParams++
}

func recvTypeName(t types.Type) string {
	if ptr, ok := t.Underlying().(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name()
	}
	if ptr, ok := t.(*types.Pointer); ok {
		if named, ok := ptr.Elem().(*types.Named); ok {
			return named.Obj().Name()
		}
	}
	return t.String()
}

// returnsReference reports whether the first declared result can hold nil.
func returnsReference(sig *types.Signature) bool {
	return sig.Results().Len() > 0 && isNillable(sig.Results().At(0).Type())
}

// isNillable reports whether values of the type can be nil.
func isNillable(t types.Type) bool {
	switch t := t.Underlying().(type) {
	case *types.Pointer, *types.Map, *types.Signature, *types.Chan, *types.Interface, *types.Slice:
		return true
	case *types.Basic:
		return t.Kind() == types.UnsafePointer
	}
	return false
}
