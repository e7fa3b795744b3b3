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

package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chun-wei0413/mcp-registry-sub004/db/base"
	"github.com/chun-wei0413/mcp-registry-sub004/db/registry"
	"github.com/chun-wei0413/mcp-registry-sub004/shared/logger"
)

// Executor runs SQL against registry-resolved pools. Every statement
// passes the safety policy before it touches a connection; parameters
// always bind positionally, never by interpolation.
type Executor struct {
	registry     *registry.Registry
	policy       *base.SafetyPolicy
	logger       *logger.Logger
	queryTimeout time.Duration
}

// New creates an executor over the given registry. A nil policy falls
// back to the default safety policy.
func New(reg *registry.Registry, policy *base.SafetyPolicy) *Executor {
	if policy == nil {
		policy = base.DefaultSafetyPolicy()
	}
	return &Executor{
		registry:     reg,
		policy:       policy,
		logger:       logger.New("executor"),
		queryTimeout: base.DefaultQueryTimeout,
	}
}

// SetQueryTimeout overrides the per-statement timeout
func (e *Executor) SetQueryTimeout(d time.Duration) {
	if d > 0 {
		e.queryTimeout = d
	}
}

// ExecuteQuery runs a row-returning statement. Orchestration failures
// (unknown connection, policy violation) return an error; backend
// failures return a failed QueryResult with Elapsed populated, so the
// caller can tell "the call could not run" from "the SQL itself failed".
// fetchSize > 0 caps the number of returned rows; HasMore reports
// whether the result was truncated.
func (e *Executor) ExecuteQuery(ctx context.Context, connectionID, query string, params []interface{}, fetchSize int) (*base.QueryResult, error) {
	requestID := uuid.New().String()

	db, driver, info, err := e.registry.Pool(connectionID)
	if err != nil {
		return nil, err
	}
	if err := e.gate(connectionID, requestID, "query", query, info.ReadOnly); err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := db.QueryContext(queryCtx, query, params...)
	if err != nil {
		return e.failedResult(connectionID, requestID, "query", driver, err, time.Since(start)), nil
	}
	defer rows.Close()

	scanned, descriptors, hasMore, err := scanRows(rows, fetchSize)
	elapsed := time.Since(start)
	if err != nil {
		return e.failedResult(connectionID, requestID, "query", driver, err, elapsed), nil
	}

	observeStatement("query", statusSuccess, elapsed)
	e.logger.InfoWithDuration(connectionID, requestID, "Query executed",
		float64(elapsed.Milliseconds()), map[string]interface{}{
			"row_count": len(scanned),
			"has_more":  hasMore,
		})

	return &base.QueryResult{
		Success:  true,
		Rows:     scanned,
		Columns:  descriptors,
		RowCount: len(scanned),
		Elapsed:  elapsed,
		HasMore:  hasMore,
	}, nil
}

// ExecuteUpdate runs a non-row-returning statement and returns the
// affected-row count. Backend failures surface as classified errors.
func (e *Executor) ExecuteUpdate(ctx context.Context, connectionID, statement string, params []interface{}) (int64, error) {
	requestID := uuid.New().String()

	db, driver, info, err := e.registry.Pool(connectionID)
	if err != nil {
		return 0, err
	}
	if err := e.gate(connectionID, requestID, "update", statement, info.ReadOnly); err != nil {
		return 0, err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	start := time.Now()
	res, err := db.ExecContext(execCtx, statement, params...)
	elapsed := time.Since(start)
	if err != nil {
		observeStatement("update", statusError, elapsed)
		e.logger.ErrorWithErr(connectionID, requestID, "Update failed", err, nil)
		return 0, base.NewOpError(classify(driver, err), connectionID, "ExecuteUpdate",
			"statement failed", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}

	observeStatement("update", statusSuccess, elapsed)
	e.logger.InfoWithDuration(connectionID, requestID, "Update executed",
		float64(elapsed.Milliseconds()), map[string]interface{}{
			"affected": affected,
		})
	return affected, nil
}

// ExecuteTransaction runs the statements as one all-or-nothing unit on
// a single connection. Row-returning statements yield row results,
// everything else yields affected counts. Any statement failure rolls
// back the whole sequence and fails the call with TransactionFailure.
func (e *Executor) ExecuteTransaction(ctx context.Context, connectionID string, statements []base.Statement) ([]base.QueryResult, error) {
	requestID := uuid.New().String()

	if len(statements) == 0 {
		return nil, base.NewOpError(base.KindValidation, connectionID, "ExecuteTransaction",
			"transaction requires at least one statement", nil)
	}
	db, driver, info, err := e.registry.Pool(connectionID)
	if err != nil {
		return nil, err
	}
	// Gate every statement before any of them runs
	for i, stmt := range statements {
		if err := e.gate(connectionID, requestID, "transaction", stmt.SQL, info.ReadOnly); err != nil {
			return nil, base.NewOpError(base.KindValidation, connectionID, "ExecuteTransaction",
				fmt.Sprintf("statement %d rejected by safety policy", i), err)
		}
	}

	txCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	start := time.Now()
	tx, err := db.BeginTx(txCtx, nil)
	if err != nil {
		observeStatement("transaction", statusError, time.Since(start))
		return nil, base.NewOpError(base.KindTransactionFailure, connectionID, "ExecuteTransaction",
			"failed to begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	results := make([]base.QueryResult, 0, len(statements))
	for i, stmt := range statements {
		result, err := e.runInTx(txCtx, tx, stmt)
		if err != nil {
			elapsed := time.Since(start)
			observeStatement("transaction", statusError, elapsed)
			e.logger.ErrorWithErr(connectionID, requestID, "Transaction rolled back", err,
				map[string]interface{}{
					"failed_statement": i,
					"statement_count":  len(statements),
				})
			return nil, base.NewOpError(base.KindTransactionFailure, connectionID, "ExecuteTransaction",
				fmt.Sprintf("statement %d failed, transaction rolled back", i),
				base.NewOpError(classify(driver, err), connectionID, "ExecuteTransaction", "statement failed", err))
		}
		results = append(results, result)
	}

	if err := tx.Commit(); err != nil {
		elapsed := time.Since(start)
		observeStatement("transaction", statusError, elapsed)
		return nil, base.NewOpError(base.KindTransactionFailure, connectionID, "ExecuteTransaction",
			"commit failed", err)
	}
	committed = true

	elapsed := time.Since(start)
	observeStatement("transaction", statusSuccess, elapsed)
	e.logger.InfoWithDuration(connectionID, requestID, "Transaction committed",
		float64(elapsed.Milliseconds()), map[string]interface{}{
			"statement_count": len(statements),
		})
	return results, nil
}

// runInTx executes one statement inside a transaction, classifying it
// as row-returning or count-returning by its leading verb
func (e *Executor) runInTx(ctx context.Context, tx *sql.Tx, stmt base.Statement) (base.QueryResult, error) {
	start := time.Now()
	if returnsRows(stmt.SQL) {
		rows, err := tx.QueryContext(ctx, stmt.SQL, stmt.Params...)
		if err != nil {
			return base.QueryResult{}, err
		}
		scanned, descriptors, _, scanErr := scanRows(rows, 0)
		rows.Close()
		if scanErr != nil {
			return base.QueryResult{}, scanErr
		}
		return base.QueryResult{
			Success:  true,
			Rows:     scanned,
			Columns:  descriptors,
			RowCount: len(scanned),
			Elapsed:  time.Since(start),
		}, nil
	}

	res, err := tx.ExecContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return base.QueryResult{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return base.QueryResult{
		Success:  true,
		RowCount: int(affected),
		Elapsed:  time.Since(start),
	}, nil
}

// ExecuteBatch binds one statement template with each parameter set
// through a prepared statement and returns per-set affected counts.
// On failure the counts of the sets that completed are returned with
// the error; whether those sets remain applied is backend-dependent
// (see the postgres and mysql package docs).
func (e *Executor) ExecuteBatch(ctx context.Context, connectionID, statement string, paramSets [][]interface{}) ([]int64, error) {
	requestID := uuid.New().String()

	db, driver, info, err := e.registry.Pool(connectionID)
	if err != nil {
		return nil, err
	}
	if err := e.gate(connectionID, requestID, "batch", statement, info.ReadOnly); err != nil {
		return nil, err
	}
	if len(paramSets) == 0 {
		return nil, base.NewOpError(base.KindValidation, connectionID, "ExecuteBatch",
			"batch requires at least one parameter set", nil)
	}

	batchCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	start := time.Now()
	prepared, err := db.PrepareContext(batchCtx, statement)
	if err != nil {
		observeStatement("batch", statusError, time.Since(start))
		return nil, base.NewOpError(classify(driver, err), connectionID, "ExecuteBatch",
			"failed to prepare statement", err)
	}
	defer prepared.Close()

	counts := make([]int64, 0, len(paramSets))
	for i, params := range paramSets {
		res, err := prepared.ExecContext(batchCtx, params...)
		if err != nil {
			elapsed := time.Since(start)
			observeStatement("batch", statusError, elapsed)
			e.logger.ErrorWithErr(connectionID, requestID, "Batch aborted", err,
				map[string]interface{}{
					"failed_set":     i,
					"completed_sets": len(counts),
				})
			return counts, base.NewOpError(classify(driver, err), connectionID, "ExecuteBatch",
				fmt.Sprintf("parameter set %d failed", i), err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		counts = append(counts, affected)
	}

	elapsed := time.Since(start)
	observeStatement("batch", statusSuccess, elapsed)
	e.logger.InfoWithDuration(connectionID, requestID, "Batch executed",
		float64(elapsed.Milliseconds()), map[string]interface{}{
			"set_count": len(counts),
		})
	return counts, nil
}

// gate applies the safety policy and records rejections. A connection
// registered read-only tightens the policy regardless of its global
// setting.
func (e *Executor) gate(connectionID, requestID, operation, statement string, readOnly bool) error {
	policy := e.policy
	if readOnly {
		policy = policy.ForReadOnly()
	}
	if err := policy.Validate(statement); err != nil {
		promStatementsBlocked.Inc()
		e.logger.Warn(connectionID, requestID, "Statement rejected by safety policy",
			map[string]interface{}{
				"operation": operation,
				"sql":       base.SanitizeLogString(statement),
			})
		return err
	}
	return nil
}

// failedResult shapes a backend failure into a failed QueryResult
func (e *Executor) failedResult(connectionID, requestID, operation string, driver base.Driver, err error, elapsed time.Duration) *base.QueryResult {
	observeStatement(operation, statusError, elapsed)
	e.logger.ErrorWithErr(connectionID, requestID, "Statement failed", err,
		map[string]interface{}{
			"operation": operation,
			"kind":      string(classify(driver, err)),
		})
	return &base.QueryResult{
		Success: false,
		Error:   err.Error(),
		Elapsed: elapsed,
	}
}

// classify maps a backend error through the driver, catching context
// expiry regardless of driver wrapping
func classify(driver base.Driver, err error) base.ErrorKind {
	if kind := base.KindOf(err); kind == base.KindTimeout {
		return kind
	}
	return driver.ClassifyError(err)
}

// returnsRows reports whether a statement's leading verb produces a
// result set rather than an affected count
func returnsRows(statement string) bool {
	switch base.LeadingVerb(statement) {
	case "SELECT", "WITH", "EXPLAIN", "SHOW", "VALUES":
		return true
	default:
		return false
	}
}

// scanRows drains a result set into the row/column model. fetchSize > 0
// caps the number of scanned rows; the returned flag reports whether
// rows remained past the cap.
func scanRows(rows *sql.Rows, fetchSize int) ([]base.Row, []base.ColumnDescriptor, bool, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, false, err
	}
	descriptors := base.DescribeColumns(colTypes)
	names := make([]string, len(colTypes))
	for i, ct := range colTypes {
		names[i] = ct.Name()
	}

	var scanned []base.Row
	hasMore := false
	for rows.Next() {
		if fetchSize > 0 && len(scanned) == fetchSize {
			hasMore = true
			break
		}
		raw := make([]interface{}, len(names))
		ptrs := make([]interface{}, len(names))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, false, err
		}
		row := make(base.Row, len(names))
		for i, name := range names {
			row[name] = base.FromDriver(raw[i], descriptors[i].TypeName)
		}
		scanned = append(scanned, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}
	return scanned, descriptors, hasMore, nil
}
