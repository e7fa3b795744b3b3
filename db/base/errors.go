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
	"context"
	"errors"
)

// ErrorKind classifies operation failures for callers that need to
// branch on the failure class rather than on backend error text
type ErrorKind string

const (
	KindUnknown                 ErrorKind = ""
	KindConnectionAlreadyExists ErrorKind = "connection_already_exists"
	KindConnectionNotFound      ErrorKind = "connection_not_found"
	KindConnectionFailure       ErrorKind = "connection_failure"
	KindValidation              ErrorKind = "validation_error"
	KindQueryExecution          ErrorKind = "query_execution_error"
	KindTransactionFailure      ErrorKind = "transaction_failure"
	KindTimeout                 ErrorKind = "timeout_error"
)

// OpError represents a classified failure of a database operation.
// Message keeps the backend diagnostic text; DSNs and credentials must
// never appear in it.
type OpError struct {
	Kind         ErrorKind
	ConnectionID string
	Op           string
	Message      string
	Cause        error
}

func (e *OpError) Error() string {
	if e.Cause != nil {
		return e.ConnectionID + "." + e.Op + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.ConnectionID + "." + e.Op + ": " + e.Message
}

func (e *OpError) Unwrap() error {
	return e.Cause
}

// NewOpError creates a new classified operation error
func NewOpError(kind ErrorKind, connectionID, op, message string, cause error) *OpError {
	return &OpError{
		Kind:         kind,
		ConnectionID: connectionID,
		Op:           op,
		Message:      message,
		Cause:        cause,
	}
}

// KindOf extracts the ErrorKind from an error chain. Context deadline
// expiry classifies as a timeout even when wrapped by a driver error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
