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

// main package makes it possible to build the analyzer as a standalone code
// checker that can be independently invoked to check other packages.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nilderef/nilderef"
	"github.com/nilderef/nilderef/config"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/singlechecker"
)

// Analyzer is identical to the one in nilderef.go, except that it overrides the run function for
// extra filtering of errors, since the singlechecker does not support error suppression like other
// popular linter drivers.
var Analyzer = &analysis.Analyzer{
	Name:       nilderef.Analyzer.Name,
	Doc:        nilderef.Analyzer.Doc,
	Run:        run,
	FactTypes:  nilderef.Analyzer.FactTypes,
	ResultType: nilderef.Analyzer.ResultType,
	Requires:   nilderef.Analyzer.Requires,
}

var (
	// _includeErrorsInFiles is a driver flag for specifying the list of file prefixes to only report errors.
	_includeErrorsInFiles string
	// _excludeErrorsInFiles is a driver flag for specifying the list of file prefixes to not report errors.
	_excludeErrorsInFiles string
)

func run(pass *analysis.Pass) (interface{}, error) {
	// The singlechecker driver does not support error suppression like other popular linter
	// drivers, so the error filtering logic lives here instead.

	// Properly parse the error suppression flags.
	includes, err := parseFilePrefixes(_includeErrorsInFiles)
	if err != nil {
		return nil, fmt.Errorf("parse file prefixes for error inclusion: %w", err)
	}
	excludes, err := parseFilePrefixes(_excludeErrorsInFiles)
	if err != nil {
		return nil, fmt.Errorf("parse file prefixes for error exclusion: %w", err)
	}

	// Override the report function to add error filtering logic.
	report := pass.Report
	pass.Report = func(d analysis.Diagnostic) {
		p := pass.Fset.File(d.Pos).Name()
		for _, e := range excludes {
			if strings.HasPrefix(p, e) {
				return
			}
		}

		for _, i := range includes {
			if strings.HasPrefix(p, i) {
				report(d)
				return
			}
		}
	}

	// Delegate the real analysis run to the original analyzer.
	return nilderef.Analyzer.Run(pass)
}

// parseFilePrefixes parses the comma-separated list of file prefixes, converts them to absolute
// file paths, and returns them as a slice.
func parseFilePrefixes(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}

	// Convert the file paths to absolute paths.
	list := strings.Split(s, ",")
	for i := range list {
		p, err := filepath.Abs(list[i])
		if err != nil {
			return nil, fmt.Errorf("convert %q to absolute path: %w", list[i], err)
		}
		list[i] = p
	}
	return list, nil
}

func main() {
	// For better UX, we lift the flags from config.Analyzer to the top level so that users can
	// specify them without having to specify the analyzer name ("nilderef_config").
	// For example, without lifting the flags, we will have to use `multichecker` to run the
	// top-level analyzer _and_ the config analyzer, and users will have to specify flags as
	// `-nilderef_config.flag1 <VALUE1>`. With the lifting, the config analyzer is transparent:
	//
	// `nilderef -flag1 <VALUE1> -flag2 <VALUE> ./...`
	//
	config.Analyzer.Flags.VisitAll(func(f *flag.Flag) { flag.Var(f.Value, f.Name, f.Usage) })

	// Add two more flags to the driver for error suppression since singlechecker does not support it.
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get working directory: %v\n", err)
		os.Exit(1)
	}
	flag.StringVar(&_includeErrorsInFiles, "include-errors-in-files", wd, "A comma-separated list of file prefixes to report errors, default is current working directory.")
	flag.StringVar(&_excludeErrorsInFiles, "exclude-errors-in-files", "", "A comma-separated list of file prefixes to exclude from error reporting. This takes precedence over include-errors-in-files.")

	singlechecker.Main(Analyzer)
}
