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
	"github.com/nilderef/nilderef/diagnostic"
	"github.com/nilderef/nilderef/nullness"
)

// FoundNullDeref classifies a dereference of a possibly-null value. It
// implements Collector for the fact walker.
func (e *Engine) FoundNullDeref(loc cfg.Location, v nullness.Value) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInternalConsistency, err)
	}

	var props []diagnostic.Property
	if v.OnExceptionPath {
		props = append(props, diagnostic.PropOnExceptionPath)
	}

	var kind diagnostic.Kind
	var severity diagnostic.Severity
	switch {
	case v.DefinitelyNull:
		if v.OnExceptionPath {
			kind, severity = diagnostic.KindAlwaysNullDerefException, diagnostic.SeverityMedium
		} else {
			kind, severity = diagnostic.KindAlwaysNullDeref, diagnostic.SeverityHigh
		}
	case v.NullOnSomePath:
		switch {
		case v.OnExceptionPath:
			kind, severity = diagnostic.KindNullOnSomePathDerefException, diagnostic.SeverityLow
		case v.FromReturnValue:
			kind, severity = diagnostic.KindNullFromReturnDeref, diagnostic.SeverityMedium
		default:
			kind, severity = diagnostic.KindNullOnSomePathDeref, diagnostic.SeverityMedium
		}
	default:
		// Neither definitely nor possibly null on some path; nothing
		// dereference-worthy to report.
		return nil
	}

	e.reporter.Report(diagnostic.Diagnostic{
		Kind:        kind,
		Severity:    severity,
		Procedure:   e.proc.Ref,
		Location:    loc,
		Annotations: e.verboseAnnotations(loc),
		Properties:  props,
	})
	return nil
}
