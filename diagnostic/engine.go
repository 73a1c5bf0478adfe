//  Copyright (c) 2023 Uber Technologies, Inc.
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

package diagnostic

import (
	"cmp"
	"go/token"
	"slices"

	"golang.org/x/tools/go/analysis"
)

// Reporter is the sink the detection engine reports to.
type Reporter interface {
	Report(d Diagnostic)
}

// Engine collects diagnostics and converts them to analysis.Diagnostics in a
// deterministic order.
type Engine struct {
	diagnostics []Diagnostic
}

// NewEngine creates an empty diagnostic engine.
func NewEngine() *Engine { return &Engine{} }

// Report implements Reporter.
func (e *Engine) Report(d Diagnostic) {
	e.diagnostics = append(e.diagnostics, d)
}

// All returns the collected diagnostics sorted by source position, then by
// severity (highest first), then by kind tag for a total, stable order.
func (e *Engine) All() []Diagnostic {
	slices.SortStableFunc(e.diagnostics, func(a, b Diagnostic) int {
		if n := cmp.Compare(a.Location.Pos(), b.Location.Pos()); n != 0 {
			return n
		}
		// Highest severity first within one position.
		if n := cmp.Compare(b.Severity, a.Severity); n != 0 {
			return n
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return e.diagnostics
}

// Diagnostics renders the collected diagnostics as analysis.Diagnostics.
// Diagnostics with invalid positions would be silently suppressed by the
// analysis driver, so those are pinned to position 1.
func (e *Engine) Diagnostics() []analysis.Diagnostic {
	out := make([]analysis.Diagnostic, 0, len(e.diagnostics))
	for _, d := range e.All() {
		pos := d.Location.Pos()
		if !pos.IsValid() {
			pos = token.Pos(1)
		}
		diag := analysis.Diagnostic{
			Pos:      pos,
			Category: string(d.Kind),
			Message:  d.String(),
		}
		for _, a := range d.Annotations {
			if a.Location == nil || !a.Location.Pos().IsValid() {
				continue
			}
			diag.Related = append(diag.Related, analysis.RelatedInformation{
				Pos:     a.Location.Pos(),
				Message: a.Role,
			})
		}
		out = append(out, diag)
	}
	return out
}
