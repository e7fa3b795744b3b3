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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chun-wei0413/mcp-registry-sub004/db/base"
)

// LoadFromEnv loads a connection description from environment variables.
// Variables are prefixed with DB_<NAME>_, e.g. DB_PRIMARY_HOST,
// DB_PRIMARY_DATABASE, DB_PRIMARY_PASSWORD.
func LoadFromEnv(name string) (*base.ConnectionInfo, error) {
	prefix := "DB_" + strings.ToUpper(name) + "_"

	info := &base.ConnectionInfo{
		ID:   name,
		Type: getEnvOrDefault(prefix+"TYPE", "postgres"),
	}

	// Host and database are required
	info.Host = os.Getenv(prefix + "HOST")
	if info.Host == "" {
		return nil, fmt.Errorf("missing required environment variable: %sHOST", prefix)
	}
	info.Database = os.Getenv(prefix + "DATABASE")
	if info.Database == "" {
		return nil, fmt.Errorf("missing required environment variable: %sDATABASE", prefix)
	}

	if portStr := os.Getenv(prefix + "PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port: %s", portStr)
		}
		info.Port = port
	}

	info.Username = os.Getenv(prefix + "USERNAME")
	info.Password = os.Getenv(prefix + "PASSWORD")
	info.SSLMode = os.Getenv(prefix + "SSL_MODE")

	if poolStr := os.Getenv(prefix + "POOL_SIZE"); poolStr != "" {
		poolSize, err := strconv.Atoi(poolStr)
		if err != nil {
			return nil, fmt.Errorf("invalid pool_size: %s", poolStr)
		}
		info.PoolSize = poolSize
	}

	if roStr := os.Getenv(prefix + "READ_ONLY"); roStr != "" {
		readOnly, err := strconv.ParseBool(roStr)
		if err != nil {
			return nil, fmt.Errorf("invalid read_only: %s", roStr)
		}
		info.ReadOnly = readOnly
	}

	if timeoutStr := os.Getenv(prefix + "CONNECT_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid connect_timeout format: %s", timeoutStr)
		}
		info.ConnectTimeout = timeout
	}

	return info, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
