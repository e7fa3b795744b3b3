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
Package postgres implements the PostgreSQL backend: pool construction
over lib/pq, SQLSTATE-based error classification, and the catalog
dialect used by schema introspection.

Batch semantics: PostgreSQL runs each prepared execution in its own
implicit transaction, so a failing parameter set leaves earlier sets
committed. Wrap the batch in an explicit transaction when all-or-nothing
behavior is required.
*/
package postgres
