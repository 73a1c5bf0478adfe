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

// Package nilderef implements the top-level analyzer that retrieves the
// classified diagnostics from the detection analyzer and reports them.
package nilderef

import (
	"fmt"
	"go/token"
	"regexp"

	"github.com/nilderef/nilderef/config"
	"github.com/nilderef/nilderef/ssanil"
	"github.com/nilderef/nilderef/util/analysishelper"
	"golang.org/x/tools/go/analysis"
)

const _doc = "Report guaranteed and conditional nil dereferences, redundant nil checks, and" +
	" declared-nullability violations in this package"

// Analyzer is the top-level analyzer. It coordinates the detection pipeline
// and reports the collected diagnostics. It is needed here for nogo to
// recognize the package.
var Analyzer = &analysis.Analyzer{
	Name:      "nilderef",
	Doc:       _doc,
	Run:       run,
	FactTypes: []analysis.Fact{},
	Requires:  []*analysis.Analyzer{config.Analyzer, ssanil.Analyzer},
}

func run(pass *analysis.Pass) (interface{}, error) {
	conf := pass.ResultOf[config.Analyzer].(*config.Config)
	result := pass.ResultOf[ssanil.Analyzer].(*analysishelper.Result[[]analysis.Diagnostic])

	// A detection failure never fails the build: it is surfaced as its own
	// diagnostic alongside whatever was collected before the failure.
	if result.Err != nil {
		pos := token.Pos(1)
		if len(pass.Files) > 0 {
			pos = pass.Files[0].Pos()
		}
		pass.Report(analysis.Diagnostic{
			Pos:     pos,
			Message: fmt.Sprintf("INTERNAL ERROR(s) in the analysis: %v", result.Err),
		})
	}

	for _, d := range result.Res {
		if conf.PrettyPrint {
			d.Message = prettyPrintMessage(d.Message)
		}
		pass.Report(d)
	}

	return nil, nil
}

var severityPattern = regexp.MustCompile(`^\[(high|medium|low)\]`)
var codeReferencePattern = regexp.MustCompile("\\`(.*?)\\`")
var paramPattern = regexp.MustCompile(`(parameter #\d+)`)

// prettyPrintMessage post-processes the message with terminal colors: the
// severity tier in red, symbol references in magenta, parameter indices in
// bold.
func prettyPrintMessage(msg string) string {
	severityStr := fmt.Sprintf("\x1b[%dm%s\x1b[0m", 31, "[${1}]") // red
	codeStr := fmt.Sprintf("\u001B[%dm%s\u001B[0m", 95, "`${1}`") // magenta
	paramStr := fmt.Sprintf("\u001B[%dm%s\u001B[0m", 1, "${1}")   // bold

	msg = severityPattern.ReplaceAllString(msg, severityStr)
	msg = codeReferencePattern.ReplaceAllString(msg, codeStr)
	msg = paramPattern.ReplaceAllString(msg, paramStr)
	return msg
}
