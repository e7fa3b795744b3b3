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

package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chun-wei0413/mcp-registry-sub004/db/base"
	"github.com/chun-wei0413/mcp-registry-sub004/db/registry"
	"github.com/chun-wei0413/mcp-registry-sub004/shared/logger"
)

// Introspector reads catalog metadata through each backend's dialect
// and shapes it into the backend-agnostic schema model
type Introspector struct {
	registry     *registry.Registry
	policy       *base.SafetyPolicy
	logger       *logger.Logger
	queryTimeout time.Duration
}

// New creates an introspector over the given registry. The policy gates
// ExplainQuery only; catalog queries are fixed dialect statements.
func New(reg *registry.Registry, policy *base.SafetyPolicy) *Introspector {
	if policy == nil {
		policy = base.DefaultSafetyPolicy()
	}
	return &Introspector{
		registry:     reg,
		policy:       policy,
		logger:       logger.New("schema"),
		queryTimeout: base.DefaultQueryTimeout,
	}
}

// ListSchemas returns the non-system schema names of the connected
// database
func (in *Introspector) ListSchemas(ctx context.Context, connectionID string) ([]string, error) {
	db, driver, _, err := in.registry.Pool(connectionID)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, in.queryTimeout)
	defer cancel()

	query, args := driver.Dialect().SchemasQuery()
	rows, err := db.QueryContext(queryCtx, query, args...)
	if err != nil {
		observeIntrospection("list_schemas", statusError)
		return nil, base.NewOpError(driver.ClassifyError(err), connectionID, "ListSchemas",
			"schema listing failed", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			observeIntrospection("list_schemas", statusError)
			return nil, base.NewOpError(base.KindQueryExecution, connectionID, "ListSchemas",
				"failed to scan schema name", err)
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		observeIntrospection("list_schemas", statusError)
		return nil, base.NewOpError(driver.ClassifyError(err), connectionID, "ListSchemas",
			"schema listing failed", err)
	}

	observeIntrospection("list_schemas", statusSuccess)
	return schemas, nil
}

// ListTables returns the tables and views of one schema. An empty
// schema resolves to the backend's default schema.
func (in *Introspector) ListTables(ctx context.Context, connectionID, schemaName string) ([]base.TableInfo, error) {
	if err := validateOptionalIdentifier(connectionID, "ListTables", schemaName); err != nil {
		return nil, err
	}
	db, driver, _, err := in.registry.Pool(connectionID)
	if err != nil {
		return nil, err
	}
	dialect := driver.Dialect()
	if schemaName == "" {
		schemaName = dialect.DefaultSchema()
	}

	queryCtx, cancel := context.WithTimeout(ctx, in.queryTimeout)
	defer cancel()

	query, args := dialect.TablesQuery(schemaName)
	rows, err := db.QueryContext(queryCtx, query, args...)
	if err != nil {
		observeIntrospection("list_tables", statusError)
		return nil, base.NewOpError(driver.ClassifyError(err), connectionID, "ListTables",
			"table listing failed", err)
	}
	defer rows.Close()

	var tables []base.TableInfo
	for rows.Next() {
		var t base.TableInfo
		if err := rows.Scan(&t.Name, &t.Kind, &t.Comment); err != nil {
			observeIntrospection("list_tables", statusError)
			return nil, base.NewOpError(base.KindQueryExecution, connectionID, "ListTables",
				"failed to scan table entry", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		observeIntrospection("list_tables", statusError)
		return nil, base.NewOpError(driver.ClassifyError(err), connectionID, "ListTables",
			"table listing failed", err)
	}

	observeIntrospection("list_tables", statusSuccess)
	return tables, nil
}

// GetTableSchema aggregates the full description of one table from
// independent catalog sub-queries. Each sub-query failure degrades to
// an empty field instead of aborting the whole call, so a backend with
// a restricted catalog still yields a partial description.
func (in *Introspector) GetTableSchema(ctx context.Context, connectionID, table, schemaName string) (*base.TableSchema, error) {
	requestID := uuid.New().String()

	if err := base.ValidateSQLIdentifier(table); err != nil {
		return nil, base.NewOpError(base.KindValidation, connectionID, "GetTableSchema",
			"invalid table name", err)
	}
	if err := validateOptionalIdentifier(connectionID, "GetTableSchema", schemaName); err != nil {
		return nil, err
	}
	db, driver, _, err := in.registry.Pool(connectionID)
	if err != nil {
		return nil, err
	}
	dialect := driver.Dialect()
	if schemaName == "" {
		schemaName = dialect.DefaultSchema()
	}

	queryCtx, cancel := context.WithTimeout(ctx, in.queryTimeout)
	defer cancel()

	ts := &base.TableSchema{
		Name:   table,
		Schema: schemaName,
		Kind:   "table",
	}

	if columns, err := in.fetchColumns(queryCtx, db, dialect, schemaName, table); err != nil {
		in.degrade(connectionID, requestID, "columns", err)
	} else if len(columns) == 0 {
		// The catalog answered and knows no such table
		observeIntrospection("get_table_schema", statusError)
		return nil, base.NewOpError(base.KindQueryExecution, connectionID, "GetTableSchema",
			fmt.Sprintf("table %s.%s not found", schemaName, table), nil)
	} else {
		ts.Columns = columns
	}

	if pks, err := in.fetchPrimaryKeys(queryCtx, db, dialect, schemaName, table); err != nil {
		in.degrade(connectionID, requestID, "primary_keys", err)
	} else {
		ts.PrimaryKeys = pks
	}

	if fks, err := in.fetchForeignKeys(queryCtx, db, dialect, schemaName, table); err != nil {
		in.degrade(connectionID, requestID, "foreign_keys", err)
	} else {
		ts.ForeignKeys = fks
	}

	if indexes, err := in.fetchIndexes(queryCtx, db, dialect, schemaName, table); err != nil {
		in.degrade(connectionID, requestID, "indexes", err)
	} else {
		ts.Indexes = indexes
	}

	if comment, err := in.fetchComment(queryCtx, db, dialect, schemaName, table); err != nil {
		in.degrade(connectionID, requestID, "comment", err)
	} else {
		ts.Comment = comment
	}

	if kind, err := in.fetchKind(queryCtx, db, dialect, schemaName, table); err != nil {
		in.degrade(connectionID, requestID, "kind", err)
	} else if kind != "" {
		ts.Kind = kind
	}

	observeIntrospection("get_table_schema", statusSuccess)
	return ts, nil
}

// ExplainQuery runs the backend's plan-explain wrapper around the
// statement. With analyze the statement actually executes, so that
// mode is gated by the full safety policy; a plain explain never runs
// the statement, but the structural rules still apply before it is
// wrapped and sent.
func (in *Introspector) ExplainQuery(ctx context.Context, connectionID, statement string, analyze bool) (*base.PlanResult, error) {
	requestID := uuid.New().String()

	db, driver, info, err := in.registry.Pool(connectionID)
	if err != nil {
		return nil, err
	}
	policy := in.policy
	if info.ReadOnly {
		policy = policy.ForReadOnly()
	}
	validate := policy.ValidateStructure
	if analyze {
		validate = policy.Validate
	}
	if err := validate(statement); err != nil {
		in.logger.Warn(connectionID, requestID, "Explain rejected by safety policy",
			map[string]interface{}{
				"sql":     base.SanitizeLogString(statement),
				"analyze": analyze,
			})
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, in.queryTimeout)
	defer cancel()

	explainSQL := driver.Dialect().ExplainStatement(statement, analyze)
	rows, err := db.QueryContext(queryCtx, explainSQL)
	if err != nil {
		observeIntrospection("explain", statusError)
		return nil, base.NewOpError(driver.ClassifyError(err), connectionID, "ExplainQuery",
			"explain failed", err)
	}
	defer rows.Close()

	lines, err := collectLines(rows)
	if err != nil {
		observeIntrospection("explain", statusError)
		return nil, base.NewOpError(base.KindQueryExecution, connectionID, "ExplainQuery",
			"failed to read plan output", err)
	}

	observeIntrospection("explain", statusSuccess)
	in.logger.Info(connectionID, requestID, "Explain executed", map[string]interface{}{
		"analyze":    analyze,
		"line_count": len(lines),
	})
	return &base.PlanResult{
		Query:       statement,
		Analyze:     analyze,
		Lines:       lines,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (in *Introspector) fetchColumns(ctx context.Context, db *sql.DB, dialect base.Dialect, schemaName, table string) ([]base.ColumnSchema, error) {
	query, args := dialect.ColumnsQuery(schemaName, table)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []base.ColumnSchema
	for rows.Next() {
		var c base.ColumnSchema
		if err := rows.Scan(&c.Name, &c.TypeName, &c.Nullable, &c.Default,
			&c.Ordinal, &c.Precision, &c.Scale); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (in *Introspector) fetchPrimaryKeys(ctx context.Context, db *sql.DB, dialect base.Dialect, schemaName, table string) ([]string, error) {
	query, args := dialect.PrimaryKeysQuery(schemaName, table)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		keys = append(keys, name)
	}
	return keys, rows.Err()
}

func (in *Introspector) fetchForeignKeys(ctx context.Context, db *sql.DB, dialect base.Dialect, schemaName, table string) ([]base.ForeignKey, error) {
	query, args := dialect.ForeignKeysQuery(schemaName, table)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []base.ForeignKey
	for rows.Next() {
		var fk base.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn, &fk.ConstraintName); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// fetchIndexes groups the per-column index rows into one Index per
// index name, preserving column order
func (in *Introspector) fetchIndexes(ctx context.Context, db *sql.DB, dialect base.Dialect, schemaName, table string) ([]base.Index, error) {
	query, args := dialect.IndexesQuery(schemaName, table)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []base.Index
	byName := make(map[string]int)
	for rows.Next() {
		var (
			name, column, kind string
			unique             bool
		)
		if err := rows.Scan(&name, &column, &unique, &kind); err != nil {
			return nil, err
		}
		if pos, ok := byName[name]; ok {
			indexes[pos].Columns = append(indexes[pos].Columns, column)
			continue
		}
		byName[name] = len(indexes)
		indexes = append(indexes, base.Index{
			Name:    name,
			Columns: []string{column},
			Unique:  unique,
			Kind:    strings.ToLower(kind),
		})
	}
	return indexes, rows.Err()
}

func (in *Introspector) fetchComment(ctx context.Context, db *sql.DB, dialect base.Dialect, schemaName, table string) (string, error) {
	query, args := dialect.TableCommentQuery(schemaName, table)
	var comment sql.NullString
	err := db.QueryRowContext(ctx, query, args...).Scan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return comment.String, nil
}

// fetchKind resolves table versus view by matching the table listing
func (in *Introspector) fetchKind(ctx context.Context, db *sql.DB, dialect base.Dialect, schemaName, table string) (string, error) {
	query, args := dialect.TablesQuery(schemaName)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	for rows.Next() {
		var t base.TableInfo
		if err := rows.Scan(&t.Name, &t.Kind, &t.Comment); err != nil {
			return "", err
		}
		if t.Name == table {
			return t.Kind, nil
		}
	}
	return "", rows.Err()
}

// degrade records a sub-query failure that was absorbed into an empty
// field
func (in *Introspector) degrade(connectionID, requestID, part string, err error) {
	in.logger.Warn(connectionID, requestID, "Catalog sub-query degraded to empty",
		map[string]interface{}{
			"part":  part,
			"error": err.Error(),
		})
}

// collectLines flattens a plan result set into text lines, joining
// multi-column rows with tabs
func collectLines(rows *sql.Rows) ([]string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var lines []string
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		parts := make([]string, len(cols))
		for i, v := range raw {
			parts[i] = base.FromDriver(v, "TEXT").String()
		}
		lines = append(lines, strings.Join(parts, "\t"))
	}
	return lines, rows.Err()
}

// validateOptionalIdentifier accepts an empty schema name, rejecting
// anything else that is not identifier-shaped
func validateOptionalIdentifier(connectionID, op, identifier string) error {
	if identifier == "" {
		return nil
	}
	if err := base.ValidateSQLIdentifier(identifier); err != nil {
		return base.NewOpError(base.KindValidation, connectionID, op,
			"invalid schema name", err)
	}
	return nil
}
