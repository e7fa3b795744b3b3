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

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/chun-wei0413/mcp-registry-sub004/db/base"
)

// Driver implements base.Driver for PostgreSQL databases using lib/pq
type Driver struct {
	dialect Dialect
}

// NewDriver creates a new PostgreSQL driver instance
func NewDriver() *Driver {
	return &Driver{}
}

// Type returns the backend tag
func (d *Driver) Type() string {
	return "postgres"
}

// Open builds a connection pool from the connection description. The
// pool is configured but not probed; the registry probes once with the
// validation query before registering.
func (d *Driver) Open(info base.ConnectionInfo) (*sql.DB, error) {
	db, err := sql.Open("postgres", buildDSN(info))
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

// buildDSN constructs a key/value DSN from discrete connection fields.
// The DSN is never logged; it carries credentials.
func buildDSN(info base.ConnectionInfo) string {
	port := info.Port
	if port == 0 {
		port = 5432
	}
	sslMode := info.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connectTimeout := int(info.ConnectTimeout.Seconds())
	if connectTimeout <= 0 {
		connectTimeout = int(base.DefaultConnectTimeout.Seconds())
	}

	parts := []string{
		fmt.Sprintf("host=%s", escapeParam(info.Host)),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("dbname=%s", escapeParam(info.Database)),
		fmt.Sprintf("user=%s", escapeParam(info.Username)),
		fmt.Sprintf("sslmode=%s", sslMode),
		fmt.Sprintf("connect_timeout=%d", connectTimeout),
	}
	if info.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", escapeParam(info.Password)))
	}
	return strings.Join(parts, " ")
}

// escapeParam quotes DSN values containing spaces or quotes
func escapeParam(v string) string {
	if !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// ValidationQuery returns the probe statement
func (d *Driver) ValidationQuery() string {
	return "SELECT 1"
}

// ClassifyError maps a pq error to an ErrorKind using its SQLSTATE
// code class. Unrecognized backend errors classify as query execution
// failures; error text is never inspected.
func (d *Driver) ClassifyError(err error) base.ErrorKind {
	if err == nil {
		return base.KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return base.KindTimeout
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return base.KindQueryExecution
	}

	switch {
	case pqErr.Code == "57014": // query_canceled
		return base.KindTimeout
	case pqErr.Code == "55P03": // lock_not_available
		return base.KindTimeout
	case pqErr.Code.Class() == "08": // connection exception
		return base.KindConnectionFailure
	case pqErr.Code == "53300": // too_many_connections
		return base.KindConnectionFailure
	case pqErr.Code.Class() == "28": // invalid authorization
		return base.KindConnectionFailure
	case pqErr.Code.Class() == "40": // transaction rollback (deadlock, serialization)
		return base.KindTransactionFailure
	default:
		return base.KindQueryExecution
	}
}

// Dialect returns the PostgreSQL catalog dialect
func (d *Driver) Dialect() base.Dialect {
	return d.dialect
}
