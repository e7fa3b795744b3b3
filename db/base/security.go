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
	"fmt"
	"regexp"
	"strings"
)

// Safety rule names reported in validation failures
const (
	RuleSingleStatement = "single_statement"
	RuleReadOnly        = "read_only_mode"
	RuleAllowedOps      = "operation_not_allowed"
	RuleBlockedKeyword  = "blocked_keyword"
	RuleMaxLength       = "max_statement_length"
)

// DefaultMaxStatementLength bounds statement size before any parsing
const DefaultMaxStatementLength = 10000

// SafetyPolicy validates a SQL statement before it reaches a pool.
// Checks run in order: single statement, read-only mode, allowed
// operations, blocked keywords, maximum length. Any violation produces
// a ValidationError naming the violated rule; the statement never
// touches a connection.
type SafetyPolicy struct {
	ReadOnly           bool
	AllowedOperations  []string
	BlockedKeywords    []string
	MaxStatementLength int
}

// DefaultSafetyPolicy returns the stock policy: common DML plus WITH
// and EXPLAIN allowed, schema-destroying statements blocked
func DefaultSafetyPolicy() *SafetyPolicy {
	return &SafetyPolicy{
		ReadOnly:           false,
		AllowedOperations:  []string{"SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "EXPLAIN"},
		BlockedKeywords:    []string{"DROP", "TRUNCATE", "ALTER", "GRANT", "REVOKE", "SHUTDOWN"},
		MaxStatementLength: DefaultMaxStatementLength,
	}
}

// ReadOnlySafetyPolicy returns a policy that forbids everything beyond
// SELECT, EXPLAIN and read-only WITH
func ReadOnlySafetyPolicy() *SafetyPolicy {
	p := DefaultSafetyPolicy()
	p.ReadOnly = true
	return p
}

// ForReadOnly returns the policy with read-only mode forced on. Used
// for connections registered read-only regardless of the global policy.
func (p *SafetyPolicy) ForReadOnly() *SafetyPolicy {
	if p.ReadOnly {
		return p
	}
	c := *p
	c.ReadOnly = true
	return &c
}

// Validate checks the statement against every rule in order. The
// returned error is an *OpError with KindValidation; its message names
// the violated rule.
func (p *SafetyPolicy) Validate(statement string) error {
	verb := LeadingVerb(statement)
	if verb == "" {
		return NewOpError(KindValidation, "", "Validate",
			fmt.Sprintf("%s: statement has no leading operation", RuleAllowedOps), nil)
	}
	tokens := tokenizeSQL(statement)

	// 1. One statement per call. A top-level semicolon smuggles a second
	// statement past the verb checks: drivers on the simple-query
	// protocol would run both.
	if err := checkSingleStatement(statement); err != nil {
		return err
	}

	// 2. Read-only mode: only SELECT and EXPLAIN may run. WITH passes
	// when the body stays read-only; a CTE can wrap writes, so any
	// write token under WITH rejects.
	if p.ReadOnly {
		switch verb {
		case "SELECT", "EXPLAIN":
		case "WITH":
			for _, write := range []string{"INSERT", "UPDATE", "DELETE", "MERGE"} {
				if _, found := tokens[write]; found {
					return NewOpError(KindValidation, "", "Validate",
						fmt.Sprintf("%s: %s inside WITH is not permitted in read-only mode", RuleReadOnly, write), nil)
				}
			}
		default:
			return NewOpError(KindValidation, "", "Validate",
				fmt.Sprintf("%s: %s is not permitted in read-only mode", RuleReadOnly, verb), nil)
		}
	}

	// 3. Leading verb must be in the allowed-operations set
	if len(p.AllowedOperations) > 0 && !containsFold(p.AllowedOperations, verb) {
		return NewOpError(KindValidation, "", "Validate",
			fmt.Sprintf("%s: %s is not in the allowed operations", RuleAllowedOps, verb), nil)
	}

	return p.checkKeywordsAndLength(statement, tokens)
}

// ValidateStructure applies only the structural rules: single
// statement, blocked keywords, maximum length. Used for statements that
// are planned but never executed, where the verb rules do not apply.
func (p *SafetyPolicy) ValidateStructure(statement string) error {
	if err := checkSingleStatement(statement); err != nil {
		return err
	}
	return p.checkKeywordsAndLength(statement, tokenizeSQL(statement))
}

func (p *SafetyPolicy) checkKeywordsAndLength(statement string, tokens map[string]struct{}) error {
	// Blocked keywords, matched as whole tokens so identifiers that
	// merely contain a keyword substring pass
	for _, blocked := range p.BlockedKeywords {
		if _, found := tokens[strings.ToUpper(blocked)]; found {
			return NewOpError(KindValidation, "", "Validate",
				fmt.Sprintf("%s: statement contains %s", RuleBlockedKeyword, strings.ToUpper(blocked)), nil)
		}
	}

	maxLen := p.MaxStatementLength
	if maxLen <= 0 {
		maxLen = DefaultMaxStatementLength
	}
	if len(statement) > maxLen {
		return NewOpError(KindValidation, "", "Validate",
			fmt.Sprintf("%s: statement length %d exceeds limit %d", RuleMaxLength, len(statement), maxLen), nil)
	}

	return nil
}

// checkSingleStatement rejects any content after a top-level semicolon.
// Semicolons inside quoted literals and comments do not count; a bare
// trailing semicolon is accepted.
func checkSingleStatement(statement string) error {
	i := 0
	for i < len(statement) {
		c := statement[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote := c
			i++
			for i < len(statement) && statement[i] != quote {
				i++
			}
			i++
		case c == '-' && i+1 < len(statement) && statement[i+1] == '-':
			idx := strings.IndexByte(statement[i:], '\n')
			if idx == -1 {
				return nil
			}
			i += idx + 1
		case c == '/' && i+1 < len(statement) && statement[i+1] == '*':
			idx := strings.Index(statement[i+2:], "*/")
			if idx == -1 {
				return nil
			}
			i += idx + 4
		case c == ';':
			if strings.TrimSpace(statement[i+1:]) != "" {
				return NewOpError(KindValidation, "", "Validate",
					fmt.Sprintf("%s: multiple statements are not permitted", RuleSingleStatement), nil)
			}
			return nil
		default:
			i++
		}
	}
	return nil
}

// LeadingVerb returns the first SQL token of the statement, uppercased,
// skipping whitespace and leading comments
func LeadingVerb(statement string) string {
	s := statement
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "--"):
			idx := strings.IndexByte(s, '\n')
			if idx == -1 {
				return ""
			}
			s = s[idx+1:]
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s, "*/")
			if idx == -1 {
				return ""
			}
			s = s[idx+2:]
		default:
			end := 0
			for end < len(s) && isIdentByte(s[end]) {
				end++
			}
			return strings.ToUpper(s[:end])
		}
	}
}

// tokenizeSQL splits a statement into identifier-shaped tokens. Quoted
// strings are skipped so a literal containing a blocked word does not
// trip the policy.
func tokenizeSQL(statement string) map[string]struct{} {
	tokens := make(map[string]struct{})
	i := 0
	for i < len(statement) {
		c := statement[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote := c
			i++
			for i < len(statement) && statement[i] != quote {
				i++
			}
			i++
		case isIdentByte(c):
			start := i
			for i < len(statement) && isIdentByte(statement[i]) {
				i++
			}
			tokens[strings.ToUpper(statement[start:i])] = struct{}{}
		default:
			i++
		}
	}
	return tokens
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '$'
}

func containsFold(set []string, item string) bool {
	for _, s := range set {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}

// SanitizeLogString removes or escapes characters that could be used for log injection
// This prevents attackers from injecting fake log entries or control characters
func SanitizeLogString(s string) string {
	// Remove newlines and carriage returns to prevent log injection
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	// Remove ANSI escape sequences
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	s = ansiRegex.ReplaceAllString(s, "")
	// Limit length to prevent log flooding
	const maxLogLength = 500
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}
	return s
}

// validIdentifier matches safe SQL identifiers
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateSQLIdentifier checks if a string is safe to use as a SQL identifier
// (table name, schema name, etc.) before it is bound into a catalog query
func ValidateSQLIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	// SQL identifiers should only contain alphanumeric characters and underscores
	// and should not start with a number
	if !validIdentifier.MatchString(identifier) {
		return fmt.Errorf("invalid SQL identifier: %q", identifier)
	}

	return nil
}
