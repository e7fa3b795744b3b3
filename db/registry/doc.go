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
Package registry owns the lifetime of named database connection pools.

A connection is registered under a caller-chosen id together with its
backend driver. Registration builds the pool, probes it once with the
driver's validation query, and only then makes the id visible; a failed
probe disposes the pool and registers nothing. Removal disposes the
pool and is idempotent. All registry state is in-memory and scoped to
the process lifetime.
*/
package registry
