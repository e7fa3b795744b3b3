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

package base

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	// DefaultPoolSize is the default maximum number of open connections per pool
	DefaultPoolSize = 10
	// DefaultConnectTimeout bounds pool build and probe time
	DefaultConnectTimeout = 30 * time.Second
	// DefaultQueryTimeout is the default per-statement timeout
	DefaultQueryTimeout = 30 * time.Second
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultConnMaxIdleTime is the default maximum idle time for connections
	DefaultConnMaxIdleTime = 5 * time.Minute
)

// ConnectionInfo describes a named database connection. Immutable once
// accepted by the registry.
type ConnectionInfo struct {
	ID             string        `json:"id"`
	Type           string        `json:"type"` // postgres, mysql
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	Database       string        `json:"database"`
	Username       string        `json:"username"`
	Password       string        `json:"-"`
	SSLMode        string        `json:"ssl_mode,omitempty"`
	PoolSize       int           `json:"pool_size"`
	ReadOnly       bool          `json:"read_only"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Normalize fills in defaults for zero-valued tunables
func (i *ConnectionInfo) Normalize() {
	if i.PoolSize <= 0 {
		i.PoolSize = DefaultPoolSize
	}
	if i.ConnectTimeout <= 0 {
		i.ConnectTimeout = DefaultConnectTimeout
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
}

// Validate checks that the connection description is usable
func (i *ConnectionInfo) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("connection id is required")
	}
	if i.Type == "" {
		return fmt.Errorf("connection type is required")
	}
	if i.Host == "" {
		return fmt.Errorf("host is required")
	}
	if i.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

// Redacted returns a copy safe for listing and logging
func (i ConnectionInfo) Redacted() ConnectionInfo {
	c := i
	c.Password = ""
	return c
}

// ConnectionStatus represents the lifecycle state of a registered connection
type ConnectionStatus string

const (
	StatusCreated      ConnectionStatus = "CREATED"
	StatusConnecting   ConnectionStatus = "CONNECTING"
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusError        ConnectionStatus = "ERROR"
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
)

// ConnectionHandle tracks the live state of a registered connection.
// Mutated on each probe or use; destroyed when the connection is removed.
type ConnectionHandle struct {
	ID        string           `json:"id"`
	Status    ConnectionStatus `json:"status"`
	LastUsed  time.Time        `json:"last_used"`
	LastError string           `json:"last_error,omitempty"`
}

// ColumnDescriptor describes one column of a result set
type ColumnDescriptor struct {
	Name      string `json:"name"`
	TypeName  string `json:"type_name"`
	Nullable  bool   `json:"nullable"`
	Precision int64  `json:"precision,omitempty"`
	Scale     int64  `json:"scale,omitempty"`
}

// DescribeColumns builds column descriptors from driver result metadata
func DescribeColumns(types []*sql.ColumnType) []ColumnDescriptor {
	descriptors := make([]ColumnDescriptor, len(types))
	for i, ct := range types {
		d := ColumnDescriptor{
			Name:     ct.Name(),
			TypeName: ct.DatabaseTypeName(),
		}
		if nullable, ok := ct.Nullable(); ok {
			d.Nullable = nullable
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			d.Precision = precision
			d.Scale = scale
		}
		descriptors[i] = d
	}
	return descriptors
}

// Row maps column names to typed values
type Row map[string]Value

// QueryResult is the backend-agnostic result of any execution. It is
// always produced, success or failure; Elapsed is populated even when
// the statement failed.
type QueryResult struct {
	Success  bool               `json:"success"`
	Rows     []Row              `json:"rows,omitempty"`
	Columns  []ColumnDescriptor `json:"columns,omitempty"`
	RowCount int                `json:"row_count"`
	Elapsed  time.Duration      `json:"elapsed"`
	Error    string             `json:"error,omitempty"`
	Plan     []string           `json:"plan,omitempty"`
	HasMore  bool               `json:"has_more"`
}

// Statement pairs a SQL statement with its positional parameters
type Statement struct {
	SQL    string        `json:"sql"`
	Params []interface{} `json:"params,omitempty"`
}

// HealthReport aggregates registry-wide health counts
type HealthReport struct {
	Total   int `json:"total"`
	Healthy int `json:"healthy"`
}

// TableInfo is a single entry of a table listing
type TableInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // table, view
	Comment string `json:"comment,omitempty"`
}

// ColumnSchema describes one column of a table
type ColumnSchema struct {
	Name      string `json:"name"`
	TypeName  string `json:"type_name"`
	Nullable  bool   `json:"nullable"`
	Default   string `json:"default,omitempty"`
	Ordinal   int    `json:"ordinal"`
	Precision int64  `json:"precision,omitempty"`
	Scale     int64  `json:"scale,omitempty"`
}

// ForeignKey describes one foreign-key column reference
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
	ConstraintName   string `json:"constraint_name"`
}

// Index describes one index on a table
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
	Kind    string   `json:"kind,omitempty"`
}

// TableSchema aggregates the full description of one table
type TableSchema struct {
	Name        string         `json:"name"`
	Schema      string         `json:"schema"`
	Kind        string         `json:"kind"`
	Columns     []ColumnSchema `json:"columns"`
	PrimaryKeys []string       `json:"primary_keys,omitempty"`
	ForeignKeys []ForeignKey   `json:"foreign_keys,omitempty"`
	Indexes     []Index        `json:"indexes,omitempty"`
	Comment     string         `json:"comment,omitempty"`
}

// PlanResult is the outcome of an EXPLAIN request
type PlanResult struct {
	Query       string    `json:"query"`
	Analyze     bool      `json:"analyze"`
	Lines       []string  `json:"lines"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Driver builds and classifies backend-specific connection pools. One
// implementation exists per backend type tag; the registry selects the
// driver by ConnectionInfo.Type.
type Driver interface {
	// Type returns the backend tag this driver serves (postgres, mysql)
	Type() string

	// Open builds a connection pool for the given connection description.
	// Pool size, idle and lifetime limits, and a finite connect timeout
	// are applied before the pool is returned. Open does not probe.
	Open(info ConnectionInfo) (*sql.DB, error)

	// ValidationQuery returns the lightweight probe statement
	ValidationQuery() string

	// ClassifyError maps a backend error to an ErrorKind using the
	// driver's structured error values, never error-string matching
	ClassifyError(err error) ErrorKind

	// Dialect returns the catalog metadata queries for this backend
	Dialect() Dialect
}

// Dialect supplies backend-specific catalog queries for introspection.
// Every query binds identifiers positionally; none interpolates input.
type Dialect interface {
	DefaultSchema() string
	SchemasQuery() (string, []interface{})
	TablesQuery(schema string) (string, []interface{})
	ColumnsQuery(schema, table string) (string, []interface{})
	PrimaryKeysQuery(schema, table string) (string, []interface{})
	ForeignKeysQuery(schema, table string) (string, []interface{})
	IndexesQuery(schema, table string) (string, []interface{})
	TableCommentQuery(schema, table string) (string, []interface{})
	ExplainStatement(statement string, analyze bool) string
}
