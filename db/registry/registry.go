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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chun-wei0413/mcp-registry-sub004/db/base"
	"github.com/chun-wei0413/mcp-registry-sub004/shared/logger"
)

var promActiveConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "mcp_db_registry_connections",
		Help: "Number of registered database connections",
	},
)

func init() {
	prometheus.MustRegister(promActiveConnections)
}

// entry pairs a registered connection's immutable description with its
// live pool and handle state
type entry struct {
	info   base.ConnectionInfo
	handle base.ConnectionHandle
	db     *sql.DB
	driver base.Driver
}

// Registry maps connection ids to live pools and their health state.
// Thread-safe for concurrent access; mutation is atomic with respect
// to lookups. State lives only for the process lifetime.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	drivers map[string]base.Driver
	logger  *logger.Logger
}

// New creates a registry serving the given backend drivers
func New(drivers ...base.Driver) *Registry {
	byType := make(map[string]base.Driver, len(drivers))
	for _, d := range drivers {
		byType[d.Type()] = d
	}
	return &Registry{
		entries: make(map[string]*entry),
		drivers: byType,
		logger:  logger.New("registry"),
	}
}

// AddConnection builds and probes a pool for the connection description
// and registers it under info.ID. A duplicate id fails immediately with
// ConnectionAlreadyExists before any pool is built; a failed probe
// disposes the pool and registers nothing.
func (r *Registry) AddConnection(ctx context.Context, info base.ConnectionInfo) (base.ConnectionHandle, error) {
	info.Normalize()
	if err := info.Validate(); err != nil {
		return base.ConnectionHandle{}, base.NewOpError(base.KindValidation, info.ID, "AddConnection",
			"invalid connection description", err)
	}

	driver, ok := r.drivers[info.Type]
	if !ok {
		return base.ConnectionHandle{}, base.NewOpError(base.KindValidation, info.ID, "AddConnection",
			fmt.Sprintf("unsupported backend type %q", info.Type), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[info.ID]; exists {
		return base.ConnectionHandle{}, base.NewOpError(base.KindConnectionAlreadyExists, info.ID, "AddConnection",
			"connection id already registered", nil)
	}

	handle := base.ConnectionHandle{
		ID:     info.ID,
		Status: base.StatusCreated,
	}

	handle.Status = base.StatusConnecting
	db, err := driver.Open(info)
	if err != nil {
		r.logger.ErrorWithErr(info.ID, "", "Failed to build connection pool", err, nil)
		return base.ConnectionHandle{}, err
	}

	// Probe once before registering
	if err := probe(ctx, db, driver, info.ConnectTimeout); err != nil {
		_ = db.Close()
		r.logger.ErrorWithErr(info.ID, "", "Connection probe failed", err, map[string]interface{}{
			"backend": info.Type,
		})
		kind := base.KindConnectionFailure
		if driver.ClassifyError(err) == base.KindTimeout {
			kind = base.KindTimeout
		}
		return base.ConnectionHandle{}, base.NewOpError(kind, info.ID, "AddConnection",
			"connection probe failed", err)
	}

	handle.Status = base.StatusConnected
	handle.LastUsed = time.Now().UTC()

	r.entries[info.ID] = &entry{
		info:   info,
		handle: handle,
		db:     db,
		driver: driver,
	}
	promActiveConnections.Inc()

	r.logger.Info(info.ID, "", "Connection registered", map[string]interface{}{
		"backend":   info.Type,
		"host":      info.Host,
		"database":  info.Database,
		"pool_size": info.PoolSize,
	})

	return handle, nil
}

// probe runs the driver's validation query on a borrowed connection
// under a bounded timeout
func probe(ctx context.Context, db *sql.DB, driver base.Driver, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = base.DefaultConnectTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var one int
	return db.QueryRowContext(probeCtx, driver.ValidationQuery()).Scan(&one)
}

// TestConnection probes the pool of a registered connection. The error
// return is non-nil only for an unknown id; probe failures are recorded
// on the handle and reported as false.
func (r *Registry) TestConnection(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	e, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		return false, base.NewOpError(base.KindConnectionNotFound, id, "TestConnection",
			"connection not found", nil)
	}

	err := probe(ctx, e.db, e.driver, e.info.ConnectTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()
	// Entry may have been removed while probing
	e, exists = r.entries[id]
	if !exists {
		return false, base.NewOpError(base.KindConnectionNotFound, id, "TestConnection",
			"connection not found", nil)
	}
	if err != nil {
		e.handle.Status = base.StatusError
		e.handle.LastError = err.Error()
		r.logger.Warn(id, "", "Connection probe failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false, nil
	}
	e.handle.Status = base.StatusConnected
	e.handle.LastError = ""
	e.handle.LastUsed = time.Now().UTC()
	return true, nil
}

// RemoveConnection disposes the pool and removes all metadata for id.
// Idempotent: removing an unknown id returns false and never errors.
func (r *Registry) RemoveConnection(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return false
	}

	if err := e.db.Close(); err != nil {
		r.logger.Warn(id, "", "Error closing connection pool", map[string]interface{}{
			"error": err.Error(),
		})
	}
	e.handle.Status = base.StatusDisconnected
	delete(r.entries, id)
	promActiveConnections.Dec()

	r.logger.Info(id, "", "Connection removed", nil)
	return true
}

// ListConnections returns the descriptions of all registered
// connections, credentials redacted, ordered by id
func (r *Registry) ListConnections() []base.ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]base.ConnectionInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, e.info.Redacted())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Handle returns a copy of the live handle state for id
func (r *Registry) Handle(id string) (base.ConnectionHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[id]
	if !exists {
		return base.ConnectionHandle{}, base.NewOpError(base.KindConnectionNotFound, id, "Handle",
			"connection not found", nil)
	}
	return e.handle, nil
}

// HealthCheck re-probes every registered connection and aggregates
// healthy versus total counts
func (r *Registry) HealthCheck(ctx context.Context) base.HealthReport {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	report := base.HealthReport{Total: len(ids)}
	for _, id := range ids {
		ok, err := r.TestConnection(ctx, id)
		if err == nil && ok {
			report.Healthy++
		}
	}
	return report
}

// Count returns the number of registered connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Pool resolves the live pool, driver and description for id, bumping
// the handle's last-used timestamp. Used by the executor and the
// introspector; the description carries the connection's read-only
// flag.
func (r *Registry) Pool(id string) (*sql.DB, base.Driver, base.ConnectionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return nil, nil, base.ConnectionInfo{}, base.NewOpError(base.KindConnectionNotFound, id, "Pool",
			"connection not found", nil)
	}
	e.handle.LastUsed = time.Now().UTC()
	return e.db, e.driver, e.info, nil
}

// Close disposes every pool and clears the registry. Used for graceful
// shutdown; the registry is unusable afterwards except for re-adds.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("", "", "Disposing all connection pools", map[string]interface{}{
		"count": len(r.entries),
	})
	for id, e := range r.entries {
		if err := e.db.Close(); err != nil {
			r.logger.Warn(id, "", "Error closing connection pool", map[string]interface{}{
				"error": err.Error(),
			})
		}
		e.handle.Status = base.StatusDisconnected
		delete(r.entries, id)
		promActiveConnections.Dec()
	}
}
