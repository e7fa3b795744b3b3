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
Package base defines the shared record types, the tagged column value
union, classified errors, the SQL safety policy, and the Driver/Dialect
interfaces implemented by each backend package.

Backends plug in by implementing Driver (pool construction, probe
statement, structured error classification) and Dialect (catalog
metadata queries and EXPLAIN shaping). The registry selects a Driver by
the ConnectionInfo.Type tag; no other package touches backend specifics.

The SafetyPolicy gates every statement before it reaches a pool. Rules
run in order (read-only mode, allowed operations, blocked keywords,
maximum length) and violations are returned as ValidationError values
naming the violated rule. Blocked keywords match whole tokens, never raw
substrings, so an identifier such as "dropbox_events" passes a policy
that blocks DROP.
*/
package base
