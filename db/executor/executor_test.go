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
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/chun-wei0413/mcp-registry-sub004/db/base"
	"github.com/chun-wei0413/mcp-registry-sub004/db/registry"
)

// testDriver hands out one pre-built sqlmock pool
type testDriver struct {
	db *sql.DB
}

func (d *testDriver) Type() string                              { return "postgres" }
func (d *testDriver) Open(base.ConnectionInfo) (*sql.DB, error) { return d.db, nil }
func (d *testDriver) ValidationQuery() string                   { return "SELECT 1" }
func (d *testDriver) Dialect() base.Dialect                     { return nil }

func (d *testDriver) ClassifyError(err error) base.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return base.KindTimeout
	}
	return base.KindQueryExecution
}

// newTestExecutor builds an executor over a registry holding one mocked
// connection named "primary"
func newTestExecutor(t *testing.T, policy *base.SafetyPolicy) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	reg := registry.New(&testDriver{db: db})
	info := base.ConnectionInfo{
		ID:       "primary",
		Type:     "postgres",
		Host:     "localhost",
		Database: "testdb",
		Username: "tester",
	}
	if _, err := reg.AddConnection(context.Background(), info); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}
	t.Cleanup(reg.Close)

	return New(reg, policy), mock
}

func TestExecuteQuery(t *testing.T) {
	e, mock := newTestExecutor(t, nil)
	mock.ExpectQuery("SELECT id, name FROM users").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(7), "frank"))

	result, err := e.ExecuteQuery(context.Background(), "primary",
		"SELECT id, name FROM users WHERE id = $1", []interface{}{int64(7)}, 0)
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error %q", result.Error)
	}
	if result.RowCount != 1 || len(result.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", result.RowCount)
	}
	row := result.Rows[0]
	if row["id"].Kind != base.KindInt || row["id"].Int != 7 {
		t.Errorf("Expected id=7, got %s", row["id"])
	}
	if row["name"].Kind != base.KindString || row["name"].Str != "frank" {
		t.Errorf("Expected name=frank, got %s", row["name"])
	}
	if len(result.Columns) != 2 {
		t.Errorf("Expected 2 column descriptors, got %d", len(result.Columns))
	}
	if result.Elapsed <= 0 {
		t.Error("Expected elapsed time to be populated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestExecuteQueryBackendFailure(t *testing.T) {
	e, mock := newTestExecutor(t, nil)
	mock.ExpectQuery("SELECT broken").
		WillReturnError(errors.New("relation \"broken\" does not exist"))

	result, err := e.ExecuteQuery(context.Background(), "primary",
		"SELECT broken FROM nowhere", nil, 0)
	// Backend failure comes back as a failed result, not an error
	if err != nil {
		t.Fatalf("Expected nil error for backend failure, got %v", err)
	}
	if result.Success {
		t.Fatal("Expected failed result")
	}
	if result.Error == "" {
		t.Error("Expected error text in the result")
	}
	if result.Elapsed <= 0 {
		t.Error("Expected elapsed time to be populated on failure")
	}
}

func TestExecuteQueryFetchSize(t *testing.T) {
	e, mock := newTestExecutor(t, nil)
	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3)))

	result, err := e.ExecuteQuery(context.Background(), "primary",
		"SELECT id FROM users", nil, 2)
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}
	if result.RowCount != 2 {
		t.Errorf("Expected 2 rows with fetchSize=2, got %d", result.RowCount)
	}
	if !result.HasMore {
		t.Error("Expected HasMore when rows remain past the fetch size")
	}
}

func TestExecuteQueryPolicyRejection(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	_, err := e.ExecuteQuery(context.Background(), "primary",
		"DROP TABLE users", nil, 0)
	if err == nil {
		t.Fatal("Expected policy rejection")
	}
	if !base.IsKind(err, base.KindValidation) {
		t.Errorf("Expected kind %s, got %s", base.KindValidation, base.KindOf(err))
	}
}

func TestExecuteQueryUnknownConnection(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	_, err := e.ExecuteQuery(context.Background(), "missing",
		"SELECT 1", nil, 0)
	if !base.IsKind(err, base.KindConnectionNotFound) {
		t.Errorf("Expected kind %s, got %s", base.KindConnectionNotFound, base.KindOf(err))
	}
}

func TestExecuteQueryReadOnlyPolicy(t *testing.T) {
	e, mock := newTestExecutor(t, base.ReadOnlySafetyPolicy())

	_, err := e.ExecuteQuery(context.Background(), "primary",
		"DELETE FROM t", nil, 0)
	if !base.IsKind(err, base.KindValidation) {
		t.Errorf("Expected kind %s, got %s", base.KindValidation, base.KindOf(err))
	}

	mock.ExpectQuery("SELECT (.+) FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))
	result, err := e.ExecuteQuery(context.Background(), "primary",
		"SELECT * FROM t", nil, 0)
	if err != nil {
		t.Fatalf("Expected SELECT to pass in read-only mode: %v", err)
	}
	if !result.Success {
		t.Errorf("Expected success, got error %q", result.Error)
	}
}

func TestExecuteQueryRejectsSmuggledStatement(t *testing.T) {
	e, _ := newTestExecutor(t, base.ReadOnlySafetyPolicy())

	// A second statement behind a semicolon must never reach the pool:
	// a parameterless query goes out over the simple-query protocol,
	// which would run both.
	_, err := e.ExecuteQuery(context.Background(), "primary",
		"SELECT 1; DELETE FROM accounts", nil, 0)
	if !base.IsKind(err, base.KindValidation) {
		t.Errorf("Expected kind %s, got %s", base.KindValidation, base.KindOf(err))
	}
}

func TestReadOnlyConnectionRejectsWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	reg := registry.New(&testDriver{db: db})
	info := base.ConnectionInfo{
		ID:       "replica",
		Type:     "postgres",
		Host:     "localhost",
		Database: "testdb",
		Username: "tester",
		ReadOnly: true,
	}
	if _, err := reg.AddConnection(context.Background(), info); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}
	t.Cleanup(reg.Close)

	// The global policy allows DELETE; the connection's flag overrides it
	e := New(reg, nil)
	_, err = e.ExecuteUpdate(context.Background(), "replica",
		"DELETE FROM accounts WHERE id = $1", []interface{}{int64(1)})
	if !base.IsKind(err, base.KindValidation) {
		t.Errorf("Expected kind %s, got %s", base.KindValidation, base.KindOf(err))
	}

	mock.ExpectQuery("SELECT id FROM accounts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	result, err := e.ExecuteQuery(context.Background(), "replica",
		"SELECT id FROM accounts", nil, 0)
	if err != nil {
		t.Fatalf("Expected SELECT to pass on a read-only connection: %v", err)
	}
	if !result.Success {
		t.Errorf("Expected success, got error %q", result.Error)
	}
}

func TestExecuteUpdate(t *testing.T) {
	e, mock := newTestExecutor(t, nil)
	mock.ExpectExec("UPDATE users SET active").
		WithArgs(false).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := e.ExecuteUpdate(context.Background(), "primary",
		"UPDATE users SET active = $1", []interface{}{false})
	if err != nil {
		t.Fatalf("ExecuteUpdate failed: %v", err)
	}
	if affected != 3 {
		t.Errorf("Expected 3 affected rows, got %d", affected)
	}
}

func TestExecuteUpdateBackendFailure(t *testing.T) {
	e, mock := newTestExecutor(t, nil)
	mock.ExpectExec("UPDATE users").
		WillReturnError(errors.New("deadlock detected"))

	_, err := e.ExecuteUpdate(context.Background(), "primary",
		"UPDATE users SET active = true", nil)
	if err == nil {
		t.Fatal("Expected classified error")
	}
	if !base.IsKind(err, base.KindQueryExecution) {
		t.Errorf("Expected kind %s, got %s", base.KindQueryExecution, base.KindOf(err))
	}
}

func TestExecuteTransaction(t *testing.T) {
	e, mock := newTestExecutor(t, nil)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT balance FROM accounts").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(100)))
	mock.ExpectCommit()

	results, err := e.ExecuteTransaction(context.Background(), "primary", []base.Statement{
		{SQL: "INSERT INTO accounts (balance) VALUES ($1)", Params: []interface{}{int64(100)}},
		{SQL: "SELECT balance FROM accounts"},
	})
	if err != nil {
		t.Fatalf("ExecuteTransaction failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].RowCount != 1 {
		t.Errorf("Expected 1 affected row for the insert, got %d", results[0].RowCount)
	}
	if len(results[1].Rows) != 1 {
		t.Errorf("Expected 1 row for the select, got %d", len(results[1].Rows))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestExecuteTransactionRollsBackOnFailure(t *testing.T) {
	e, mock := newTestExecutor(t, nil)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE accounts").
		WillReturnError(errors.New("value too long for type character varying(10)"))
	mock.ExpectRollback()

	results, err := e.ExecuteTransaction(context.Background(), "primary", []base.Statement{
		{SQL: "INSERT INTO accounts (balance) VALUES ($1)", Params: []interface{}{int64(100)}},
		{SQL: "UPDATE accounts SET owner = $1", Params: []interface{}{"much-too-long-name"}},
	})
	if err == nil {
		t.Fatal("Expected transaction failure")
	}
	if !base.IsKind(err, base.KindTransactionFailure) {
		t.Errorf("Expected kind %s, got %s", base.KindTransactionFailure, base.KindOf(err))
	}
	if results != nil {
		t.Error("Expected no results from a rolled-back transaction")
	}
	// Rollback must have been issued
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestExecuteTransactionGatesAllStatementsFirst(t *testing.T) {
	e, mock := newTestExecutor(t, nil)

	// Second statement is blocked, so not even Begin may run
	_, err := e.ExecuteTransaction(context.Background(), "primary", []base.Statement{
		{SQL: "INSERT INTO t (x) VALUES ($1)", Params: []interface{}{1}},
		{SQL: "DROP TABLE t"},
	})
	if !base.IsKind(err, base.KindValidation) {
		t.Errorf("Expected kind %s, got %s", base.KindValidation, base.KindOf(err))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestExecuteBatch(t *testing.T) {
	e, mock := newTestExecutor(t, nil)
	prepared := mock.ExpectPrepare("INSERT INTO users")
	prepared.ExpectExec().WithArgs("ada").WillReturnResult(sqlmock.NewResult(1, 1))
	prepared.ExpectExec().WithArgs("grace").WillReturnResult(sqlmock.NewResult(2, 1))
	prepared.ExpectExec().WithArgs("edsger").WillReturnResult(sqlmock.NewResult(3, 1))

	counts, err := e.ExecuteBatch(context.Background(), "primary",
		"INSERT INTO users (name) VALUES ($1)", [][]interface{}{
			{"ada"}, {"grace"}, {"edsger"},
		})
	if err != nil {
		t.Fatalf("ExecuteBatch failed: %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("Expected 3 counts, got %d", len(counts))
	}
	for i, n := range counts {
		if n != 1 {
			t.Errorf("Expected count 1 for set %d, got %d", i, n)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestExecuteBatchPartialFailure(t *testing.T) {
	e, mock := newTestExecutor(t, nil)
	prepared := mock.ExpectPrepare("INSERT INTO users")
	prepared.ExpectExec().WithArgs("ada").WillReturnResult(sqlmock.NewResult(1, 1))
	prepared.ExpectExec().WithArgs("grace").
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	counts, err := e.ExecuteBatch(context.Background(), "primary",
		"INSERT INTO users (name) VALUES ($1)", [][]interface{}{
			{"ada"}, {"grace"}, {"edsger"},
		})
	if err == nil {
		t.Fatal("Expected error for failing parameter set")
	}
	// Counts of the completed sets come back with the error
	if len(counts) != 1 {
		t.Errorf("Expected 1 completed count, got %d", len(counts))
	}
	if !base.IsKind(err, base.KindQueryExecution) {
		t.Errorf("Expected kind %s, got %s", base.KindQueryExecution, base.KindOf(err))
	}
}
