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

package schema

import "github.com/prometheus/client_golang/prometheus"

const (
	statusSuccess = "success"
	statusError   = "error"
)

var promIntrospectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mcp_db_introspections_total",
		Help: "Catalog introspection calls, by operation and outcome",
	},
	[]string{"operation", "status"},
)

func init() {
	prometheus.MustRegister(promIntrospectionsTotal)
}

func observeIntrospection(operation, status string) {
	promIntrospectionsTotal.WithLabelValues(operation, status).Inc()
}
