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

package config

// This file hosts non-user-configurable parameters --- these are tuning
// knobs fixed by the analysis design, not options.

// ThrowScanDepth is the number of instructions scanned from the head of an
// infeasible branch target to decide whether the target simply throws. The
// scan stops early at any jump or return. Seven instructions cover the
// typical construct-and-throw preamble; scanning deeper mostly crosses into
// unrelated code and has not been observed to change classifications.
const ThrowScanDepth = 7
