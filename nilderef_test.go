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

package nilderef

import (
	"testing"

	"github.com/nilderef/nilderef/config"
	"github.com/nilderef/nilderef/ssanil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestAnalyzerSetup(t *testing.T) {
	t.Parallel()

	require.Equal(t, "nilderef", Analyzer.Name)
	require.Contains(t, Analyzer.Requires, config.Analyzer)
	require.Contains(t, Analyzer.Requires, ssanil.Analyzer)
}

func TestPrettyPrintMessage(t *testing.T) {
	t.Parallel()

	msg := "[high] null passed for parameter in `example.com/app.render/1`; argument definitely null for parameter #1"
	pretty := prettyPrintMessage(msg)
	// The severity tier is colorized, symbol references and parameter
	// indices are highlighted, and the text itself is preserved.
	require.Contains(t, pretty, "\x1b[31m[high]\x1b[0m")
	require.Contains(t, pretty, "\x1b[95m`example.com/app.render/1`\x1b[0m")
	require.Contains(t, pretty, "\x1b[1mparameter #1\x1b[0m")
	require.Contains(t, pretty, "null passed for parameter")
}

func TestPrettyPrintMessage_NoMarkup(t *testing.T) {
	t.Parallel()

	// A message without recognized markup passes through unchanged.
	msg := "nothing to highlight here"
	require.Equal(t, msg, prettyPrintMessage(msg))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
