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

package postgres

// Dialect supplies PostgreSQL catalog metadata queries. It mixes
// information_schema and pg_catalog: information_schema for columns and
// key constraints, pg_catalog where comments and index metadata are not
// exposed through the standard views.
type Dialect struct{}

// DefaultSchema returns the schema used when the caller passes none
func (Dialect) DefaultSchema() string {
	return "public"
}

// SchemasQuery lists non-system schemas
func (Dialect) SchemasQuery() (string, []interface{}) {
	return `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND schema_name NOT LIKE 'pg_temp_%'
		ORDER BY schema_name
	`, nil
}

// TablesQuery lists tables and views of one schema with their comments
func (Dialect) TablesQuery(schema string) (string, []interface{}) {
	return `
		SELECT
			c.relname AS table_name,
			CASE c.relkind WHEN 'v' THEN 'view' WHEN 'm' THEN 'view' ELSE 'table' END AS kind,
			COALESCE(obj_description(c.oid, 'pg_class'), '') AS comment
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind IN ('r', 'p', 'v', 'm')
		ORDER BY c.relname
	`, []interface{}{schema}
}

// ColumnsQuery lists the columns of one table in ordinal order
func (Dialect) ColumnsQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT
			column_name,
			data_type,
			CASE WHEN is_nullable = 'YES' THEN true ELSE false END AS nullable,
			COALESCE(column_default, '') AS column_default,
			ordinal_position,
			COALESCE(numeric_precision, character_maximum_length, 0) AS precision,
			COALESCE(numeric_scale, 0) AS scale
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, []interface{}{schema, table}
}

// PrimaryKeysQuery lists primary-key column names in key order
func (Dialect) PrimaryKeysQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`, []interface{}{schema, table}
}

// ForeignKeysQuery lists foreign-key column references of one table
func (Dialect) ForeignKeysQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column,
			tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`, []interface{}{schema, table}
}

// IndexesQuery lists index columns of one table; one row per index
// column, grouped by the caller
func (Dialect) IndexesQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT
			i.relname AS index_name,
			a.attname AS column_name,
			ix.indisunique AS is_unique,
			am.amname AS kind
		FROM pg_catalog.pg_class t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_catalog.pg_index ix ON t.oid = ix.indrelid
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN pg_catalog.pg_am am ON am.oid = i.relam
		JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND t.relname = $2
		ORDER BY i.relname, a.attnum
	`, []interface{}{schema, table}
}

// TableCommentQuery fetches the table comment, empty when absent
func (Dialect) TableCommentQuery(schema, table string) (string, []interface{}) {
	return `
		SELECT COALESCE(obj_description(c.oid, 'pg_class'), '') AS comment
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
	`, []interface{}{schema, table}
}

// ExplainStatement wraps a statement in the backend's plan syntax.
// With analyze the statement is executed while planning.
func (Dialect) ExplainStatement(statement string, analyze bool) string {
	if analyze {
		return "EXPLAIN (ANALYZE, VERBOSE) " + statement
	}
	return "EXPLAIN " + statement
}
