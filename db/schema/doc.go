// Copyright 2025 MCP Registry
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

/*
Package schema builds backend-agnostic table, column, key and index
descriptions from each backend's catalog, and runs the backend's
plan-explain facility.

GetTableSchema aggregates several independent catalog sub-queries; a
failing sub-query degrades to an empty field rather than failing the
whole call. ExplainQuery with analyze executes the statement and is
therefore gated by the safety policy like any other execution.
*/
package schema
