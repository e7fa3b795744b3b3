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

package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_PRIMARY_TYPE", "mysql")
	t.Setenv("DB_PRIMARY_HOST", "db.internal")
	t.Setenv("DB_PRIMARY_PORT", "3307")
	t.Setenv("DB_PRIMARY_DATABASE", "orders")
	t.Setenv("DB_PRIMARY_USERNAME", "app")
	t.Setenv("DB_PRIMARY_PASSWORD", "secret")
	t.Setenv("DB_PRIMARY_POOL_SIZE", "20")
	t.Setenv("DB_PRIMARY_READ_ONLY", "true")
	t.Setenv("DB_PRIMARY_CONNECT_TIMEOUT", "10s")

	info, err := LoadFromEnv("primary")
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if info.ID != "primary" {
		t.Errorf("Expected id 'primary', got %q", info.ID)
	}
	if info.Type != "mysql" {
		t.Errorf("Expected type 'mysql', got %q", info.Type)
	}
	if info.Host != "db.internal" || info.Port != 3307 {
		t.Errorf("Unexpected endpoint %s:%d", info.Host, info.Port)
	}
	if info.Database != "orders" {
		t.Errorf("Expected database 'orders', got %q", info.Database)
	}
	if info.PoolSize != 20 {
		t.Errorf("Expected pool size 20, got %d", info.PoolSize)
	}
	if !info.ReadOnly {
		t.Error("Expected read_only to be true")
	}
	if info.ConnectTimeout != 10*time.Second {
		t.Errorf("Expected connect timeout 10s, got %v", info.ConnectTimeout)
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_REPLICA_HOST", "replica.internal")
	t.Setenv("DB_REPLICA_DATABASE", "orders")

	info, err := LoadFromEnv("replica")
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if info.Type != "postgres" {
		t.Errorf("Expected default type 'postgres', got %q", info.Type)
	}
	if info.Port != 0 || info.PoolSize != 0 {
		t.Errorf("Expected zero-valued tunables before Normalize, got port=%d pool=%d", info.Port, info.PoolSize)
	}
}

func TestLoadFromEnvMissingRequired(t *testing.T) {
	t.Setenv("DB_BROKEN_DATABASE", "orders")

	if _, err := LoadFromEnv("broken"); err == nil {
		t.Error("Expected error for missing host")
	}

	t.Setenv("DB_BROKEN_HOST", "db.internal")
	t.Setenv("DB_BROKEN_DATABASE", "")
	if _, err := LoadFromEnv("broken"); err == nil {
		t.Error("Expected error for missing database")
	}
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("DB_BAD_HOST", "db.internal")
	t.Setenv("DB_BAD_DATABASE", "orders")

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "DB_BAD_PORT", "not-a-number"},
		{"bad pool size", "DB_BAD_POOL_SIZE", "many"},
		{"bad read only", "DB_BAD_READ_ONLY", "maybe"},
		{"bad timeout", "DB_BAD_CONNECT_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv("bad"); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
