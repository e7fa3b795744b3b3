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

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/chun-wei0413/mcp-registry-sub004/db/base"
)

// Driver implements base.Driver for MySQL 5.7+ and 8.0+ databases
type Driver struct {
	dialect Dialect
}

// NewDriver creates a new MySQL driver instance
func NewDriver() *Driver {
	return &Driver{}
}

// Type returns the backend tag
func (d *Driver) Type() string {
	return "mysql"
}

// Open builds a connection pool from the connection description
func (d *Driver) Open(info base.ConnectionInfo) (*sql.DB, error) {
	dsn, err := buildDSN(info)
	if err != nil {
		return nil, base.NewOpError(base.KindConnectionFailure, info.ID, "Open",
			"failed to build DSN", err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, base.NewOpError(base.KindConnectionFailure, info.ID, "Open",
			"failed to open connection pool", err)
	}

	db.SetMaxOpenConns(info.PoolSize)
	maxIdle := info.PoolSize
	if maxIdle > 5 {
		maxIdle = 5
	}
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(base.DefaultConnMaxLifetime)
	db.SetConnMaxIdleTime(base.DefaultConnMaxIdleTime)

	return db, nil
}

// buildDSN constructs a MySQL DSN via the driver's config type so
// credentials are escaped correctly. The DSN is never logged.
func buildDSN(info base.ConnectionInfo) (string, error) {
	port := info.Port
	if port == 0 {
		port = 3306
	}
	connectTimeout := info.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = base.DefaultConnectTimeout
	}

	cfg := mysql.NewConfig()
	cfg.User = info.Username
	cfg.Passwd = info.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", info.Host, port)
	cfg.DBName = info.Database
	cfg.Timeout = connectTimeout
	cfg.ReadTimeout = base.DefaultQueryTimeout
	cfg.WriteTimeout = base.DefaultQueryTimeout
	// Parse TIME/DATE/DATETIME into time.Time for the value union
	cfg.ParseTime = true
	// Server-side prepared statements; multi-statements stay disabled
	cfg.InterpolateParams = false
	cfg.MultiStatements = false
	cfg.Collation = "utf8mb4_unicode_ci"

	return cfg.FormatDSN(), nil
}

// ValidationQuery returns the probe statement
func (d *Driver) ValidationQuery() string {
	return "SELECT 1"
}

// MySQL server error numbers used for classification
const (
	errLockWaitTimeout    = 1205
	errTooManyConnections = 1040
	errTooManyUserConns   = 1203
	errAccessDenied       = 1045
	errBadDatabase        = 1049
	errDeadlock           = 1213
	errQueryInterrupted   = 1317
	errMaxExecTimeHit     = 3024
)

// ClassifyError maps a MySQL error to an ErrorKind using the server
// error number; error text is never inspected
func (d *Driver) ClassifyError(err error) base.ErrorKind {
	if err == nil {
		return base.KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return base.KindTimeout
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return base.KindConnectionFailure
	}

	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return base.KindQueryExecution
	}

	switch myErr.Number {
	case errLockWaitTimeout, errQueryInterrupted, errMaxExecTimeHit:
		return base.KindTimeout
	case errTooManyConnections, errTooManyUserConns, errAccessDenied, errBadDatabase:
		return base.KindConnectionFailure
	case errDeadlock:
		return base.KindTransactionFailure
	default:
		return base.KindQueryExecution
	}
}

// Dialect returns the MySQL catalog dialect
func (d *Driver) Dialect() base.Dialect {
	return d.dialect
}
