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

package ssanil

import (
	"fmt"
	"reflect"

	"github.com/nilderef/nilderef/cfg"
	"github.com/nilderef/nilderef/config"
	"github.com/nilderef/nilderef/detect"
	"github.com/nilderef/nilderef/diagnostic"
	"github.com/nilderef/nilderef/util/analysishelper"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
)

const _doc = "Run the null-dereference detection over the SSA form of the package and collect the diagnostics"

// Analyzer analyzes the package's functions for guaranteed and conditional
// nil dereferences, redundant nil checks, and contract violations. The
// diagnostics are collected in the result rather than reported, so the
// top-level analyzer controls rendering.
var Analyzer = &analysis.Analyzer{
	Name:       "nilderef_facts",
	Doc:        _doc,
	Run:        analysishelper.WrapRun(run),
	ResultType: reflect.TypeOf((*analysishelper.Result[[]analysis.Diagnostic])(nil)),
	Requires:   []*analysis.Analyzer{config.Analyzer, buildssa.Analyzer},
}

// provider serves the engine's fact interfaces from the adapted SSA.
type provider struct {
	infos     map[*cfg.Procedure]*procInfo
	contracts *ContractDatabase
}

var (
	_ detect.NullnessProvider      = (*provider)(nil)
	_ detect.ValueIdentityProvider = (*provider)(nil)
	_ detect.TargetResolver        = (*provider)(nil)
)

// FactsFor implements detect.NullnessProvider.
func (p *provider) FactsFor(proc *cfg.Procedure) (detect.ProcedureFacts, error) {
	info, ok := p.infos[proc]
	if !ok {
		return nil, fmt.Errorf("no SSA form for procedure %s", proc.Ref)
	}
	return computeFacts(info, p.contracts), nil
}

// EntryUnreachable implements detect.ValueIdentityProvider with plain CFG
// reachability, which is exactly the pre-nilness baseline the engine wants.
func (p *provider) EntryUnreachable(proc *cfg.Procedure, b *cfg.Block) bool {
	info, ok := p.infos[proc]
	return ok && !info.cfgReachable[b.ID]
}

// Resolve implements detect.TargetResolver. Go dispatch is resolved by the
// SSA builder already, so the statically known callee is the single target;
// calls through bare function values have no target information at all.
func (p *provider) Resolve(_ cfg.Location, call *cfg.CallInstruction) ([]cfg.MethodRef, error) {
	if call.Callee.PkgPath == "" && call.Callee.Recv == "" {
		return nil, nil
	}
	return []cfg.MethodRef{call.Callee}, nil
}

func run(pass *analysis.Pass) ([]analysis.Diagnostic, error) {
	conf := pass.ResultOf[config.Analyzer].(*config.Config)
	ssaInput := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)

	summaries := BuildSummaries(ssaInput.SrcFuncs)
	contracts := CollectContracts(pass.Pkg.Path(), pass.Files)

	infos := make(map[*cfg.Procedure]*procInfo, len(ssaInput.SrcFuncs))
	procs := make([]*cfg.Procedure, 0, len(ssaInput.SrcFuncs))
	for _, fn := range ssaInput.SrcFuncs {
		info := buildProcedure(fn)
		infos[info.proc] = info
		procs = append(procs, info.proc)
	}

	p := &provider{infos: infos, contracts: contracts}
	sink := diagnostic.NewEngine()
	engine := detect.NewEngine(conf, sink, detect.Collaborators{
		Nullness:      p,
		ValueIdentity: p,
		Targets:       p,
		Summaries:     summaries,
		Contracts:     contracts,
	})
	err := engine.AnalyzeAll(procs)
	return sink.Diagnostics(), err
}
