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

package nullness

// ReturnContract is a method's declared (or inherited) nullness contract for
// its return value.
type ReturnContract uint8

const (
	// ContractUnknown means no declaration was found; the return checker
	// does not run.
	ContractUnknown ReturnContract = iota
	// ContractNonNull declares the method never returns null.
	ContractNonNull
	// ContractCheckForNull declares that callers must check the return value
	// for null.
	ContractCheckForNull
)

func (c ReturnContract) String() string {
	switch c {
	case ContractNonNull:
		return "nonnull"
	case ContractCheckForNull:
		return "check-for-null"
	default:
		return "unknown"
	}
}
