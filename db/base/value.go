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
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ValueKind tags the concrete type held by a Value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindTime
	KindBytes
)

// Value is a tagged union for a single column value. Exactly one field
// matching Kind is meaningful; all others are zero.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
	Time  time.Time
	Bytes []byte
}

// NullValue returns the null value
func NullValue() Value { return Value{Kind: KindNull} }

// IntValue wraps an int64
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// FloatValue wraps a float64
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// StringValue wraps a string
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// BoolValue wraps a bool
func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// TimeValue wraps a time.Time
func TimeValue(v time.Time) Value { return Value{Kind: KindTime, Time: v} }

// BytesValue wraps a raw byte slice
func BytesValue(v []byte) Value { return Value{Kind: KindBytes, Bytes: v} }

// FromDriver converts a value scanned from database/sql into a tagged
// Value. typeName is the backend type name from the column metadata and
// decides whether a []byte is text or binary: character, enum, JSON and
// decimal types become strings (decimals keep full precision as text),
// everything else stays raw bytes.
func FromDriver(v interface{}, typeName string) Value {
	if v == nil {
		return NullValue()
	}

	switch val := v.(type) {
	case int64:
		return IntValue(val)
	case int32:
		return IntValue(int64(val))
	case int:
		return IntValue(int64(val))
	case float64:
		return FloatValue(val)
	case float32:
		return FloatValue(float64(val))
	case string:
		return StringValue(val)
	case bool:
		return BoolValue(val)
	case time.Time:
		return TimeValue(val)
	case []byte:
		if isTextType(typeName) {
			return StringValue(string(val))
		}
		return BytesValue(val)
	default:
		// Unknown driver type, render through fmt as a last resort
		return StringValue(fmt.Sprintf("%v", val))
	}
}

// isTextType reports whether a backend type name carries text content
func isTextType(typeName string) bool {
	name := strings.ToUpper(typeName)
	switch {
	case strings.Contains(name, "CHAR"),
		strings.Contains(name, "TEXT"),
		strings.Contains(name, "ENUM"),
		strings.Contains(name, "SET"),
		strings.Contains(name, "UUID"),
		strings.Contains(name, "NAME"),
		name == "JSON", name == "JSONB":
		return true
	case strings.Contains(name, "DECIMAL"),
		strings.Contains(name, "NUMERIC"):
		// Keep decimal as string to preserve precision
		return true
	default:
		return false
	}
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Any returns the dynamically-typed Go value for adapter layers
func (v Value) Any() interface{} {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	case KindTime:
		return v.Time
	case KindBytes:
		return v.Bytes
	default:
		return nil
	}
}

// String renders the value as display text
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindTime:
		return v.Time.Format(time.RFC3339Nano)
	case KindBytes:
		return fmt.Sprintf("%d bytes", len(v.Bytes))
	default:
		return fmt.Sprintf("%v", v.Any())
	}
}

// MarshalJSON renders the tagged value as its plain JSON form
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}
