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
Package executor runs parameterized SQL against registry-resolved
connection pools: single queries, updates, all-or-nothing transactions,
and prepared-statement batches.

Every statement is gated by the safety policy before a connection is
borrowed. For ExecuteQuery the backend's own failure comes back as a
failed QueryResult rather than an error, so callers can distinguish an
orchestration failure (unknown connection, rejected statement) from a
failing statement. Transactions roll back the whole sequence on any
statement failure.
*/
package executor
