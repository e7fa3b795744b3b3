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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

var (
	promStatementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_db_statements_total",
			Help: "Statements executed, by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	promStatementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_db_statement_duration_seconds",
			Help:    "Statement execution time, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	promStatementsBlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mcp_db_statements_blocked_total",
			Help: "Statements rejected by the safety policy",
		},
	)
)

func init() {
	prometheus.MustRegister(promStatementsTotal)
	prometheus.MustRegister(promStatementDuration)
	prometheus.MustRegister(promStatementsBlocked)
}

func observeStatement(operation, status string, elapsed time.Duration) {
	promStatementsTotal.WithLabelValues(operation, status).Inc()
	promStatementDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
