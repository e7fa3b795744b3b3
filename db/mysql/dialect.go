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

package mysql

// Dialect supplies MySQL catalog metadata queries backed entirely by
// information_schema. An empty schema argument resolves to DATABASE(),
// the schema of the pooled connection.
type Dialect struct{}

// DefaultSchema returns empty: MySQL resolves it to the connection's
// current database inside each query
func (Dialect) DefaultSchema() string {
	return ""
}

// SchemasQuery lists non-system schemas
func (Dialect) SchemasQuery() (string, []interface{}) {
	return `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		ORDER BY schema_name
	`, nil
}

// TablesQuery lists tables and views of one schema with their comments
func (Dialect) TablesQuery(schema string) (string, []interface{}) {
	return `
		SELECT
			table_name,
			IF(table_type = 'VIEW', 'view', 'table') AS kind,
			COALESCE(table_comment, '') AS comment
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		ORDER BY table_name
	`, []interface{}{schema}
}

// ColumnsQuery lists the columns of one table in ordinal order
func (Dialect) ColumnsQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT
			column_name,
			column_type,
			IF(is_nullable = 'YES', true, false) AS nullable,
			COALESCE(column_default, '') AS column_default,
			ordinal_position,
			COALESCE(numeric_precision, character_maximum_length, 0) AS ` + "`precision`" + `,
			COALESCE(numeric_scale, 0) AS scale
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name = ?
		ORDER BY ordinal_position
	`, []interface{}{schema, table}
}

// PrimaryKeysQuery lists primary-key column names in key order
func (Dialect) PrimaryKeysQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name = ?
		  AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`, []interface{}{schema, table}
}

// ForeignKeysQuery lists foreign-key column references of one table
func (Dialect) ForeignKeysQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT
			column_name,
			referenced_table_name,
			referenced_column_name,
			constraint_name
		FROM information_schema.key_column_usage
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name = ?
		  AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position
	`, []interface{}{schema, table}
}

// IndexesQuery lists index columns of one table; one row per index
// column, grouped by the caller
func (Dialect) IndexesQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT
			index_name,
			column_name,
			IF(non_unique = 0, true, false) AS is_unique,
			index_type AS kind
		FROM information_schema.statistics
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name = ?
		ORDER BY index_name, seq_in_index
	`, []interface{}{schema, table}
}

// TableCommentQuery fetches the table comment, empty when absent
func (Dialect) TableCommentQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT COALESCE(table_comment, '') AS comment
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		  AND table_name = ?
	`, []interface{}{schema, table}
}

// ExplainStatement wraps a statement in the backend's plan syntax.
// FORMAT=TREE keeps the plan as single-column text lines; EXPLAIN
// ANALYZE (8.0.18+) executes the statement while planning.
func (Dialect) ExplainStatement(statement string, analyze bool) string {
	if analyze {
		return "EXPLAIN ANALYZE " + statement
	}
	return "EXPLAIN FORMAT=TREE " + statement
}
