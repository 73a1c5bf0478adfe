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

package cfg

import (
	"fmt"
	"go/token"
	"math/bits"
	"strings"
)

// Instruction is one instruction in a basic block. The engine only needs to
// classify a handful of instruction kinds (calls, returns, throws, jumps);
// everything else is represented as a GenericInstruction.
type Instruction interface {
	Pos() token.Pos
	String() string
}

// DispatchKind describes how a call instruction selects its target.
type DispatchKind uint8

const (
	// DispatchVirtual is a dynamically dispatched call: the concrete target
	// depends on the runtime type of the receiver.
	DispatchVirtual DispatchKind = iota
	// DispatchStatic is a call with no dynamic dispatch at all (top-level
	// functions, static methods).
	DispatchStatic
	// DispatchDirect is a non-virtual call to a known method (private or
	// otherwise devirtualized).
	DispatchDirect
)

// CallInstruction is a call site.
type CallInstruction struct {
	Position token.Pos
	// Callee is the statically invoked method symbol.
	Callee MethodRef
	// NumArgs is the number of actual arguments at the call site.
	NumArgs int
	// Dispatch records the dispatch mechanism of the call.
	Dispatch DispatchKind
}

// Pos implements Instruction.
func (c *CallInstruction) Pos() token.Pos { return c.Position }

func (c *CallInstruction) String() string { return "call " + c.Callee.String() }

// IsVirtual reports whether the call is dynamically dispatched.
func (c *CallInstruction) IsVirtual() bool { return c.Dispatch == DispatchVirtual }

// ReturnInstruction returns from the enclosing procedure.
type ReturnInstruction struct {
	Position token.Pos
	// HasValue reports whether a value is returned.
	HasValue bool
}

// Pos implements Instruction.
func (r *ReturnInstruction) Pos() token.Pos { return r.Position }

func (r *ReturnInstruction) String() string { return "return" }

// ThrowInstruction raises an exception (panic).
type ThrowInstruction struct {
	Position token.Pos
}

// Pos implements Instruction.
func (t *ThrowInstruction) Pos() token.Pos { return t.Position }

func (t *ThrowInstruction) String() string { return "throw" }

// GotoInstruction is an unconditional jump to another block.
type GotoInstruction struct {
	Position token.Pos
}

// Pos implements Instruction.
func (g *GotoInstruction) Pos() token.Pos { return g.Position }

func (g *GotoInstruction) String() string { return "goto" }

// GenericInstruction is any instruction the engine does not classify.
type GenericInstruction struct {
	Position token.Pos
	Desc     string
}

// Pos implements Instruction.
func (g *GenericInstruction) Pos() token.Pos { return g.Position }

func (g *GenericInstruction) String() string {
	if g.Desc == "" {
		return "instr"
	}
	return g.Desc
}

// MethodRef identifies a method or function symbol. It is comparable so it
// can serve as a database key; the per-parameter reference-ness is therefore
// packed into a bit mask rather than a slice.
type MethodRef struct {
	// PkgPath is the import path of the defining package.
	PkgPath string
	// Recv is the receiver (class) type name, empty for top-level functions.
	Recv string
	// Name is the method or function name.
	Name string
	// NumParams is the number of formal parameters.
	NumParams int
	// RefParams is a bit mask over formal-parameter positions marking the
	// reference-typed (nullable) ones. Positions at 32 and beyond are not
	// representable and are treated as non-reference.
	RefParams uint32
	// Private marks methods invisible outside their defining scope, which
	// makes their call sites effectively monomorphic.
	Private bool
	// Static marks symbols that are never dynamically dispatched.
	Static bool
}

// NumRefParams returns the number of reference-typed parameters.
func (m MethodRef) NumRefParams() int { return bits.OnesCount32(m.RefParams) }

// ParamIsRef reports whether formal parameter i is reference-typed.
func (m MethodRef) ParamIsRef(i int) bool {
	return i >= 0 && i < 32 && m.RefParams&(1<<uint(i)) != 0
}

// IsUniversalEquals reports whether the method is the universal equality
// method taking a single reference parameter. A null argument there is the
// callee's contractual business, not the caller's, so call-site checking
// skips it. For methods whose receiver occupies parameter position 0, the
// single reference parameter is at position 1.
func (m MethodRef) IsUniversalEquals() bool {
	if m.Name != "Equals" && m.Name != "equals" {
		return false
	}
	if m.Recv == "" {
		return m.NumParams == 1 && m.ParamIsRef(0)
	}
	return m.NumParams == 2 && m.ParamIsRef(1)
}

func (m MethodRef) String() string {
	var sb strings.Builder
	if m.PkgPath != "" {
		sb.WriteString(m.PkgPath)
		sb.WriteByte('.')
	}
	if m.Recv != "" {
		sb.WriteString(m.Recv)
		sb.WriteByte('.')
	}
	sb.WriteString(m.Name)
	return sb.String()
}

// Format returns the string form with parameter count, e.g. "pkg.T.Get/2",
// for unambiguous diagnostic payloads.
func (m MethodRef) Format() string {
	return fmt.Sprintf("%s/%d", m.String(), m.NumParams)
}
