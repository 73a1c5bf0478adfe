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
	"github.com/nilderef/nilderef/cfg"
	"github.com/nilderef/nilderef/diagnostic"
)

// checkReturn flags return instructions whose value may be null. Only
// invoked when the enclosing procedure's return contract is NONNULL.
func (e *Engine) checkReturn(loc cfg.Location) {
	v, ok := e.facts.ReturnedValue(loc)
	if !ok || !v.MightBeNull {
		return
	}
	severity := diagnostic.SeverityMedium
	if v.DefinitelyNull {
		severity = diagnostic.SeverityHigh
	}
	e.reporter.Report(diagnostic.Diagnostic{
		Kind:        diagnostic.KindNonNullReturnViolation,
		Severity:    severity,
		Procedure:   e.proc.Ref,
		Location:    loc,
		Annotations: e.verboseAnnotations(loc),
	})
}
