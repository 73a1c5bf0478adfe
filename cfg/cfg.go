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

// Package cfg defines the control-flow-graph abstraction the detection engine
// consumes: procedures, basic blocks, edges, instruction locations and callee
// method references. The structures here are plain data produced once by a
// provider (e.g., the ssanil adapter) and never mutated during analysis.
package cfg

import (
	"fmt"
	"go/token"
)

// Procedure is one analyzable procedure: a named body made of basic blocks.
// Blocks are held in a stable order (entry first) so that location iteration
// and diagnostic ordering are deterministic across runs.
type Procedure struct {
	// Ref identifies the procedure itself, so the engine can resolve its
	// declared return contract and apply method filters.
	Ref MethodRef
	// Blocks holds the basic blocks of the body, entry block first. A nil or
	// empty slice means the procedure has no body.
	Blocks []*Block
	// External marks procedures with no analyzable body (declarations only,
	// assembly stubs and the like). They are skipped silently.
	External bool
	// ReturnsReference reports whether the first declared result has a type
	// that can hold null; return-contract checking is pointless otherwise.
	ReturnsReference bool
}

// HasBody reports whether the procedure is eligible for analysis.
func (p *Procedure) HasBody() bool {
	return !p.External && len(p.Blocks) > 0
}

// Locations returns every instruction location of the procedure in the stable
// iteration order: blocks in slice order, instructions in block order.
func (p *Procedure) Locations() []Location {
	var locs []Location
	for _, b := range p.Blocks {
		for i := range b.Instrs {
			locs = append(locs, Location{Block: b, Index: i})
		}
	}
	return locs
}

// Block is one basic block. ID is unique and dense within the procedure.
type Block struct {
	ID     int
	Instrs []Instruction
	Succs  []*Edge
	Preds  []*Edge
	// ThrowsException marks blocks whose purpose is raising an exception
	// (e.g., ending in a throw); killing such a block is not dead code in the
	// usual sense.
	ThrowsException bool
}

// Empty reports whether the block contains no instructions.
func (b *Block) Empty() bool { return len(b.Instrs) == 0 }

// NumIncomingEdges returns the number of CFG edges entering the block.
func (b *Block) NumIncomingEdges() int { return len(b.Preds) }

// Edge is a directed CFG edge.
type Edge struct {
	From *Block
	To   *Block
}

// Location identifies one instruction within one basic block. It is a valid
// map key and carries a total order within a procedure via (block ID, index).
type Location struct {
	Block *Block
	Index int
}

// Instr returns the instruction at the location, or nil if the location does
// not denote a real instruction (e.g., the zero Location used in tests).
func (l Location) Instr() Instruction {
	if l.Block == nil || l.Index < 0 || l.Index >= len(l.Block.Instrs) {
		return nil
	}
	return l.Block.Instrs[l.Index]
}

// Pos returns the source position of the instruction at the location, or
// token.NoPos when unknown.
func (l Location) Pos() token.Pos {
	if ins := l.Instr(); ins != nil {
		return ins.Pos()
	}
	return token.NoPos
}

// Compare orders locations within one procedure by block ID, then by
// instruction index.
func (l Location) Compare(other Location) int {
	lb, ob := -1, -1
	if l.Block != nil {
		lb = l.Block.ID
	}
	if other.Block != nil {
		ob = other.Block.ID
	}
	switch {
	case lb != ob:
		if lb < ob {
			return -1
		}
		return 1
	case l.Index != other.Index:
		if l.Index < other.Index {
			return -1
		}
		return 1
	}
	return 0
}

func (l Location) String() string {
	if l.Block == nil {
		return "<no location>"
	}
	return fmt.Sprintf("block %d instr %d", l.Block.ID, l.Index)
}
