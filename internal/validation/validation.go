// Package validation checks inbound dashboard and budget documents against
// their shape and range rules and decodes them into core documents.
//
// Every violation is collected, not just the first, so callers can surface
// all problems at once.
package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Rule names reported in Violation.Rule.
const (
	RuleJSON        = "json"
	RuleType        = "type"
	RuleRequired    = "required"
	RuleNonNegative = "nonnegative"
	RuleMinLength   = "min_length"
	RuleLength      = "length"
	RuleEnum        = "enum"
	RuleUnknownKey  = "unknown_key"
)

// Violation is one failed rule at one field path.
type Violation struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Failure is returned when a candidate document breaks one or more rules.
type Failure struct {
	Document   string      `json:"document"`
	Violations []Violation `json:"violations"`
}

func (f *Failure) Error() string {
	parts := make([]string, 0, len(f.Violations))
	for _, v := range f.Violations {
		parts = append(parts, v.Path+": "+v.Message)
	}
	return fmt.Sprintf("invalid %s document: %s", f.Document, strings.Join(parts, "; "))
}

// Has reports whether the failure contains a violation at path.
func (f *Failure) Has(path string) bool {
	for _, v := range f.Violations {
		if v.Path == path {
			return true
		}
	}
	return false
}

type checker struct {
	violations []Violation
}

func (c *checker) add(path, rule, format string, args ...any) {
	c.violations = append(c.violations, Violation{Path: path, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) failure(document string) error {
	if len(c.violations) == 0 {
		return nil
	}
	return &Failure{Document: document, Violations: c.violations}
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func parse(raw []byte, document string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &Failure{Document: document, Violations: []Violation{{Path: "$", Rule: RuleJSON, Message: err.Error()}}}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &Failure{Document: document, Violations: []Violation{{Path: "$", Rule: RuleType, Message: "expected object"}}}
	}
	return obj, nil
}

func (c *checker) object(path string, v any, present bool) (map[string]any, bool) {
	if !present || v == nil {
		c.add(path, RuleRequired, "is required")
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		c.add(path, RuleType, "expected object")
		return nil, false
	}
	return obj, true
}

func (c *checker) number(path string, v any, present bool) float64 {
	if !present || v == nil {
		c.add(path, RuleRequired, "is required")
		return 0
	}
	n, ok := v.(float64)
	if !ok {
		c.add(path, RuleType, "expected number")
		return 0
	}
	if n < 0 {
		c.add(path, RuleNonNegative, "must be greater than or equal to 0")
		return 0
	}
	return n
}

func (c *checker) text(path string, v any, present bool) string {
	if !present || v == nil {
		c.add(path, RuleRequired, "is required")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.add(path, RuleType, "expected string")
		return ""
	}
	if len(s) < 1 {
		c.add(path, RuleMinLength, "must contain at least 1 character")
	}
	return s
}

// list returns the elements of an optional array; absent or null means empty.
func (c *checker) list(path string, v any, present bool) []any {
	if !present || v == nil {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		c.add(path, RuleType, "expected array")
		return nil
	}
	return arr
}

func (c *checker) numberField(path string, obj map[string]any, field string) float64 {
	v, ok := obj[field]
	return c.number(join(path, field), v, ok)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
