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

package registry

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/chun-wei0413/mcp-registry-sub004/db/base"
)

// stubDriver serves pre-built sqlmock pools keyed by connection id so
// tests control exactly what each probe and query sees
type stubDriver struct {
	backend string
	pools   map[string]*sql.DB
	openErr error
}

func (d *stubDriver) Type() string {
	if d.backend == "" {
		return "postgres"
	}
	return d.backend
}

func (d *stubDriver) Open(info base.ConnectionInfo) (*sql.DB, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	db, ok := d.pools[info.ID]
	if !ok {
		return nil, errors.New("no pool prepared for " + info.ID)
	}
	return db, nil
}

func (d *stubDriver) ValidationQuery() string { return "SELECT 1" }

func (d *stubDriver) ClassifyError(err error) base.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return base.KindTimeout
	}
	return base.KindQueryExecution
}

func (d *stubDriver) Dialect() base.Dialect { return nil }

func newMockPool(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	return db, mock
}

func testInfo(id string) base.ConnectionInfo {
	return base.ConnectionInfo{
		ID:       id,
		Type:     "postgres",
		Host:     "localhost",
		Port:     5432,
		Database: "testdb",
		Username: "tester",
		Password: "secret",
	}
}

func expectProbe(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
}

func TestAddConnection(t *testing.T) {
	db, mock := newMockPool(t)
	expectProbe(mock)

	driver := &stubDriver{pools: map[string]*sql.DB{"primary": db}}
	r := New(driver)

	handle, err := r.AddConnection(context.Background(), testInfo("primary"))
	if err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}
	if handle.Status != base.StatusConnected {
		t.Errorf("Expected status %s, got %s", base.StatusConnected, handle.Status)
	}
	if handle.LastUsed.IsZero() {
		t.Error("Expected LastUsed to be set after a successful probe")
	}
	if r.Count() != 1 {
		t.Errorf("Expected 1 registered connection, got %d", r.Count())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestAddConnectionDuplicateID(t *testing.T) {
	db, mock := newMockPool(t)
	expectProbe(mock)

	driver := &stubDriver{pools: map[string]*sql.DB{"primary": db}}
	r := New(driver)

	if _, err := r.AddConnection(context.Background(), testInfo("primary")); err != nil {
		t.Fatalf("First AddConnection failed: %v", err)
	}

	_, err := r.AddConnection(context.Background(), testInfo("primary"))
	if err == nil {
		t.Fatal("Expected error for duplicate connection id")
	}
	if !base.IsKind(err, base.KindConnectionAlreadyExists) {
		t.Errorf("Expected kind %s, got %s", base.KindConnectionAlreadyExists, base.KindOf(err))
	}
	if r.Count() != 1 {
		t.Errorf("Expected registry to keep the original connection, got %d", r.Count())
	}
}

func TestAddConnectionProbeFailure(t *testing.T) {
	db, mock := newMockPool(t)
	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	driver := &stubDriver{pools: map[string]*sql.DB{"primary": db}}
	r := New(driver)

	_, err := r.AddConnection(context.Background(), testInfo("primary"))
	if err == nil {
		t.Fatal("Expected error when the probe fails")
	}
	if !base.IsKind(err, base.KindConnectionFailure) {
		t.Errorf("Expected kind %s, got %s", base.KindConnectionFailure, base.KindOf(err))
	}
	// A failed probe must not leave a registered connection behind
	if r.Count() != 0 {
		t.Errorf("Expected 0 registered connections, got %d", r.Count())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestAddConnectionInvalidInfo(t *testing.T) {
	r := New(&stubDriver{})

	info := testInfo("primary")
	info.Host = ""
	_, err := r.AddConnection(context.Background(), info)
	if err == nil {
		t.Fatal("Expected error for missing host")
	}
	if !base.IsKind(err, base.KindValidation) {
		t.Errorf("Expected kind %s, got %s", base.KindValidation, base.KindOf(err))
	}
}

func TestAddConnectionUnsupportedBackend(t *testing.T) {
	r := New(&stubDriver{})

	info := testInfo("primary")
	info.Type = "oracle"
	_, err := r.AddConnection(context.Background(), info)
	if err == nil {
		t.Fatal("Expected error for unsupported backend type")
	}
	if !base.IsKind(err, base.KindValidation) {
		t.Errorf("Expected kind %s, got %s", base.KindValidation, base.KindOf(err))
	}
}

func TestTestConnection(t *testing.T) {
	db, mock := newMockPool(t)
	expectProbe(mock)
	driver := &stubDriver{pools: map[string]*sql.DB{"primary": db}}
	r := New(driver)
	if _, err := r.AddConnection(context.Background(), testInfo("primary")); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}

	expectProbe(mock)
	ok, err := r.TestConnection(context.Background(), "primary")
	if err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
	if !ok {
		t.Error("Expected healthy probe to return true")
	}

	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("server closed the connection"))
	ok, err = r.TestConnection(context.Background(), "primary")
	if err != nil {
		t.Fatalf("Probe failure must not surface as an error: %v", err)
	}
	if ok {
		t.Error("Expected failing probe to return false")
	}

	handle, err := r.Handle("primary")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if handle.Status != base.StatusError {
		t.Errorf("Expected status %s after failed probe, got %s", base.StatusError, handle.Status)
	}
	if handle.LastError == "" {
		t.Error("Expected LastError to record the probe failure")
	}
}

func TestTestConnectionUnknownID(t *testing.T) {
	r := New(&stubDriver{})

	_, err := r.TestConnection(context.Background(), "nope")
	if err == nil {
		t.Fatal("Expected error for unknown connection id")
	}
	if !base.IsKind(err, base.KindConnectionNotFound) {
		t.Errorf("Expected kind %s, got %s", base.KindConnectionNotFound, base.KindOf(err))
	}
}

func TestRemoveConnection(t *testing.T) {
	db, mock := newMockPool(t)
	expectProbe(mock)
	mock.ExpectClose()

	driver := &stubDriver{pools: map[string]*sql.DB{"primary": db}}
	r := New(driver)
	if _, err := r.AddConnection(context.Background(), testInfo("primary")); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}

	if !r.RemoveConnection("primary") {
		t.Error("Expected RemoveConnection to report true for a registered id")
	}
	if r.Count() != 0 {
		t.Errorf("Expected 0 registered connections, got %d", r.Count())
	}
	// Removal is idempotent
	if r.RemoveConnection("primary") {
		t.Error("Expected RemoveConnection to report false for an unknown id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestListConnections(t *testing.T) {
	dbA, mockA := newMockPool(t)
	expectProbe(mockA)
	dbB, mockB := newMockPool(t)
	expectProbe(mockB)

	driver := &stubDriver{pools: map[string]*sql.DB{"alpha": dbA, "beta": dbB}}
	r := New(driver)
	if _, err := r.AddConnection(context.Background(), testInfo("beta")); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}
	if _, err := r.AddConnection(context.Background(), testInfo("alpha")); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}

	infos := r.ListConnections()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 connections, got %d", len(infos))
	}
	if infos[0].ID != "alpha" || infos[1].ID != "beta" {
		t.Errorf("Expected ids ordered [alpha beta], got [%s %s]", infos[0].ID, infos[1].ID)
	}
	for _, info := range infos {
		if info.Password != "" {
			t.Errorf("Expected password to be redacted for %s", info.ID)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	dbA, mockA := newMockPool(t)
	expectProbe(mockA)
	dbB, mockB := newMockPool(t)
	expectProbe(mockB)

	driver := &stubDriver{pools: map[string]*sql.DB{"alpha": dbA, "beta": dbB}}
	r := New(driver)
	if _, err := r.AddConnection(context.Background(), testInfo("alpha")); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}
	if _, err := r.AddConnection(context.Background(), testInfo("beta")); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}

	expectProbe(mockA)
	mockB.ExpectQuery("SELECT 1").WillReturnError(errors.New("server has gone away"))

	report := r.HealthCheck(context.Background())
	if report.Total != 2 {
		t.Errorf("Expected total 2, got %d", report.Total)
	}
	if report.Healthy != 1 {
		t.Errorf("Expected 1 healthy connection, got %d", report.Healthy)
	}
}

func TestPool(t *testing.T) {
	db, mock := newMockPool(t)
	expectProbe(mock)

	driver := &stubDriver{pools: map[string]*sql.DB{"primary": db}}
	r := New(driver)
	if _, err := r.AddConnection(context.Background(), testInfo("primary")); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}

	pool, d, info, err := r.Pool("primary")
	if err != nil {
		t.Fatalf("Pool failed: %v", err)
	}
	if pool != db {
		t.Error("Expected Pool to return the registered pool")
	}
	if d != base.Driver(driver) {
		t.Error("Expected Pool to return the registered driver")
	}
	if info.ID != "primary" {
		t.Errorf("Expected Pool to return the registered description, got id %q", info.ID)
	}

	_, _, _, err = r.Pool("nope")
	if !base.IsKind(err, base.KindConnectionNotFound) {
		t.Errorf("Expected kind %s, got %s", base.KindConnectionNotFound, base.KindOf(err))
	}
}

func TestClose(t *testing.T) {
	db, mock := newMockPool(t)
	expectProbe(mock)
	mock.ExpectClose()

	driver := &stubDriver{pools: map[string]*sql.DB{"primary": db}}
	r := New(driver)
	if _, err := r.AddConnection(context.Background(), testInfo("primary")); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}

	r.Close()
	if r.Count() != 0 {
		t.Errorf("Expected empty registry after Close, got %d", r.Count())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
