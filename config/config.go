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

// Package config provides the analyzer configuration. Components never read
// ambient process state (environment variables, system properties); every
// option flows through the Config struct this analyzer produces from flags.
package config

import (
	"reflect"

	"golang.org/x/tools/go/analysis"
)

const _doc = "Read the flags and provide the configuration struct to the other analyzers in this package"

// Flag names recognized by the config analyzer.
const (
	// VerboseFlag enables extra triage annotations on diagnostics.
	VerboseFlag = "verbose"
	// MethodFilterFlag restricts analysis to procedures with the given name.
	MethodFilterFlag = "method-filter"
	// PrettyPrintFlag enables colorized diagnostic messages.
	PrettyPrintFlag = "pretty-print"
)

// Config holds the options of one analysis run.
type Config struct {
	// Verbose attaches extra payload annotations (e.g., instruction offsets)
	// to diagnostics.
	Verbose bool
	// MethodFilter, when non-empty, restricts analysis to procedures whose
	// name equals the filter. Useful when chasing a single finding.
	MethodFilter string
	// PrettyPrint enables colorized rendering of the final messages.
	PrettyPrint bool
}

// Analyzer provides the Config for the rest of the analyzers in this module.
var Analyzer = &analysis.Analyzer{
	Name:       "nilderef_config",
	Doc:        _doc,
	Run:        run,
	ResultType: reflect.TypeOf((*Config)(nil)),
}

func init() {
	Analyzer.Flags.Bool(VerboseFlag, false, "attach extra triage annotations to diagnostics")
	Analyzer.Flags.String(MethodFilterFlag, "", "restrict analysis to procedures with this name")
	Analyzer.Flags.Bool(PrettyPrintFlag, true, "pretty print the diagnostic messages")
}

func run(pass *analysis.Pass) (interface{}, error) {
	return &Config{
		Verbose:      lookupBool(pass, VerboseFlag),
		MethodFilter: lookupString(pass, MethodFilterFlag),
		PrettyPrint:  lookupBool(pass, PrettyPrintFlag),
	}, nil
}

func lookupBool(pass *analysis.Pass, name string) bool {
	return pass.Analyzer.Flags.Lookup(name).Value.String() == "true"
}

func lookupString(pass *analysis.Pass, name string) string {
	return pass.Analyzer.Flags.Lookup(name).Value.String()
}
