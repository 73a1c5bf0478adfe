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

package diagnostic

import (
	"testing"

	"github.com/nilderef/nilderef/cfg"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSeverity_Order(t *testing.T) {
	t.Parallel()

	require.Greater(t, SeverityHigh, SeverityMedium)
	require.Greater(t, SeverityMedium, SeverityLow)
}

func TestSeverity_DemoteSaturates(t *testing.T) {
	t.Parallel()

	require.Equal(t, SeverityMedium, SeverityHigh.Demote())
	require.Equal(t, SeverityLow, SeverityMedium.Demote())
	// Demoting the lowest tier saturates instead of wrapping.
	require.Equal(t, SeverityLow, SeverityLow.Demote())
	require.Equal(t, SeverityLow, SeverityLow.Demote().Demote())
}

func TestDiagnostic_HasProperty(t *testing.T) {
	t.Parallel()

	d := Diagnostic{Properties: []Property{PropCheckedValue, PropCreatedDeadCode}}
	require.True(t, d.HasProperty(PropCheckedValue))
	require.True(t, d.HasProperty(PropCreatedDeadCode))
	require.False(t, d.HasProperty(PropWouldHaveBeenKaboom))
}

func TestDiagnostic_String(t *testing.T) {
	t.Parallel()

	proc := cfg.MethodRef{PkgPath: "example.com/svc", Recv: "Server", Name: "Handle", NumParams: 2}
	d := Diagnostic{
		Kind:      KindNullParamDerefNonVirtual,
		Severity:  SeverityHigh,
		Procedure: proc,
		Annotations: []Annotation{
			MethodAnnotation("method called", cfg.MethodRef{PkgPath: "example.com/svc", Name: "render", NumParams: 1}),
			ParamAnnotation("argument definitely null for", 2),
		},
	}
	msg := d.String()
	require.Contains(t, msg, "[high]")
	require.Contains(t, msg, "example.com/svc.Server.Handle/2")
	require.Contains(t, msg, "method called `example.com/svc.render/1`")
	require.Contains(t, msg, "parameter #2")
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
