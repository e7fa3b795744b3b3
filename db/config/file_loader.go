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
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chun-wei0413/mcp-registry-sub004/db/base"
)

// ConfigFile represents the root structure of a configuration file
type ConfigFile struct {
	Version     string                          `yaml:"version"`
	Safety      *SafetyFileConfig               `yaml:"safety,omitempty"`
	Connections map[string]ConnectionFileConfig `yaml:"connections,omitempty"`
}

// SafetyFileConfig represents the safety policy section
type SafetyFileConfig struct {
	ReadOnly           bool     `yaml:"read_only"`
	AllowedOperations  []string `yaml:"allowed_operations,omitempty"`
	BlockedKeywords    []string `yaml:"blocked_keywords,omitempty"`
	MaxStatementLength int      `yaml:"max_statement_length,omitempty"`
}

// ConnectionFileConfig represents one connection in the config file
type ConnectionFileConfig struct {
	Type             string `yaml:"type"`
	Enabled          bool   `yaml:"enabled"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port,omitempty"`
	Database         string `yaml:"database"`
	Username         string `yaml:"username,omitempty"`
	Password         string `yaml:"password,omitempty"`
	SSLMode          string `yaml:"ssl_mode,omitempty"`
	PoolSize         int    `yaml:"pool_size,omitempty"`
	ReadOnly         bool   `yaml:"read_only,omitempty"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms,omitempty"`
}

// YAMLConfigFileLoader loads connection descriptions and the safety
// policy from a YAML file
type YAMLConfigFileLoader struct {
	filePath string
	config   *ConfigFile
}

// NewYAMLConfigFileLoader creates a loader and parses the file once
func NewYAMLConfigFileLoader(filePath string) (*YAMLConfigFileLoader, error) {
	loader := &YAMLConfigFileLoader{
		filePath: filePath,
	}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	return loader, nil
}

// reload reads and parses the configuration file
func (l *YAMLConfigFileLoader) reload() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", l.filePath, err)
	}

	// Expand environment variables in the content
	expanded := expandEnvVars(string(data))

	var config ConfigFile
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	l.config = &config
	return nil
}

// LoadConnections returns the enabled connection descriptions from the
// config file
func (l *YAMLConfigFileLoader) LoadConnections() ([]base.ConnectionInfo, error) {
	if l.config == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	var infos []base.ConnectionInfo
	for name, fileConfig := range l.config.Connections {
		if !fileConfig.Enabled {
			continue
		}

		info := base.ConnectionInfo{
			ID:             name,
			Type:           fileConfig.Type,
			Host:           fileConfig.Host,
			Port:           fileConfig.Port,
			Database:       fileConfig.Database,
			Username:       fileConfig.Username,
			Password:       fileConfig.Password,
			SSLMode:        fileConfig.SSLMode,
			PoolSize:       fileConfig.PoolSize,
			ReadOnly:       fileConfig.ReadOnly,
			ConnectTimeout: time.Duration(fileConfig.ConnectTimeoutMs) * time.Millisecond,
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// LoadSafetyPolicy returns the safety policy from the config file,
// falling back to the default policy when the section is absent.
// Omitted allow/block lists keep their defaults.
func (l *YAMLConfigFileLoader) LoadSafetyPolicy() (*base.SafetyPolicy, error) {
	if l.config == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	policy := base.DefaultSafetyPolicy()
	if l.config.Safety == nil {
		return policy, nil
	}

	policy.ReadOnly = l.config.Safety.ReadOnly
	if len(l.config.Safety.AllowedOperations) > 0 {
		policy.AllowedOperations = l.config.Safety.AllowedOperations
	}
	if len(l.config.Safety.BlockedKeywords) > 0 {
		policy.BlockedKeywords = l.config.Safety.BlockedKeywords
	}
	if l.config.Safety.MaxStatementLength > 0 {
		policy.MaxStatementLength = l.config.Safety.MaxStatementLength
	}

	return policy, nil
}

// Reload reloads the configuration file
func (l *YAMLConfigFileLoader) Reload() error {
	return l.reload()
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports both ${VAR_NAME} and $VAR_NAME syntax plus ${VAR:-default}
// fallbacks; undefined variables without a default expand to empty.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		// Handle default values: ${VAR_NAME:-default}
		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value, ok := os.LookupEnv(varName); ok && value != "" {
			return value
		}
		return defaultVal
	})
}
