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
	"go/ast"
	"strconv"
	"strings"

	"github.com/nilderef/nilderef/cfg"
	"github.com/nilderef/nilderef/nullness"
)

// Nullability contracts are declared in doc comments:
//
//	//nilderef:nonnull return         the function never returns nil
//	//nilderef:checkfornull return    callers must nil-check the result
//	//nilderef:nonnull params=1,3     the listed parameters must not be nil
//
// Parameter numbers are 1-based over the source parameter list; the receiver
// is not numbered.
const directivePrefix = "//nilderef:"

type contractKey struct {
	pkg, recv, name string
}

type contract struct {
	ret    nullness.ReturnContract
	params nullness.PosSet
}

// ContractDatabase holds declared nullability contracts, keyed by symbol. It
// implements detect.ContractProvider.
type ContractDatabase struct {
	byMethod map[contractKey]contract
}

// NewContractDatabase returns an empty contract database.
func NewContractDatabase() *ContractDatabase {
	return &ContractDatabase{byMethod: make(map[contractKey]contract)}
}

// ReturnContract returns the declared contract for m's return value.
func (d *ContractDatabase) ReturnContract(m cfg.MethodRef) nullness.ReturnContract {
	key, ok := keyOf(m)
	if !ok {
		return nullness.ContractUnknown
	}
	return d.byMethod[key].ret
}

// ParameterMustBeNonNull reports whether parameter position pos of m is
// declared non-null. Positions follow the engine convention: for methods the
// receiver occupies position 0.
func (d *ContractDatabase) ParameterMustBeNonNull(m cfg.MethodRef, pos int) bool {
	key, ok := keyOf(m)
	if !ok {
		return false
	}
	return d.byMethod[key].params.Has(pos)
}

func keyOf(m cfg.MethodRef) (contractKey, bool) {
	// Directives attach to function declarations. An interface method invoked
	// virtually has neither a declaration nor a receiver slot, so it must not
	// resolve to a same-named top-level function: the parameter positions
	// would be off by the receiver offset.
	if m.Recv == "" && !m.Static {
		return contractKey{}, false
	}
	return contractKey{pkg: m.PkgPath, recv: m.Recv, name: m.Name}, true
}

// CollectContracts scans the package's declarations for contract directives.
func CollectContracts(pkgPath string, files []*ast.File) *ContractDatabase {
	db := NewContractDatabase()
	for _, f := range files {
		for _, decl := range f.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Doc == nil {
				continue
			}
			c, ok := parseDirectives(fd)
			if !ok {
				continue
			}
			key := contractKey{pkg: pkgPath, name: fd.Name.Name}
			if fd.Recv != nil && len(fd.Recv.List) == 1 {
				key.recv = recvIdent(fd.Recv.List[0].Type)
			}
			db.byMethod[key] = c
		}
	}
	return db
}

func parseDirectives(fd *ast.FuncDecl) (contract, bool) {
	var c contract
	found := false
	hasRecv := fd.Recv != nil
	for _, line := range fd.Doc.List {
		rest, ok := strings.CutPrefix(line.Text, directivePrefix)
		if !ok {
			continue
		}
		verb, arg, _ := strings.Cut(strings.TrimSpace(rest), " ")
		arg = strings.TrimSpace(arg)
		switch {
		case verb == "nonnull" && arg == "return":
			c.ret = nullness.ContractNonNull
			found = true
		case verb == "checkfornull" && arg == "return":
			c.ret = nullness.ContractCheckForNull
			found = true
		case verb == "nonnull" && strings.HasPrefix(arg, "params="):
			for _, s := range strings.Split(strings.TrimPrefix(arg, "params="), ",") {
				n, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil || n < 1 {
					continue
				}
				// 1-based source parameters; methods shift by one because the
				// receiver holds engine position 0.
				pos := n - 1
				if hasRecv {
					pos = n
				}
				if c.params.Add(pos) == nil {
					found = true
				}
			}
		}
	}
	return c, found
}

// recvIdent extracts the receiver type name from its AST form, unwrapping
// pointers and type-parameter instantiations.
func recvIdent(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}
