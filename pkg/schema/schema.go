// Package schema validates and repairs untrusted JSON produced by an
// external language model against a small declarative shape description.
//
// Values are the generic form produced by encoding/json (map[string]any,
// []any, string, float64, bool and nil) and are repaired in place.
package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind is the JSON type a Schema node expects.
type Kind string

// Schema kinds.
const (
	Object  Kind = "object"
	Array   Kind = "array"
	String  Kind = "string"
	Number  Kind = "number"
	Boolean Kind = "boolean"
)

// Schema describes the expected shape of a JSON value.
type Schema struct {
	Type           Kind               `json:"type" yaml:"type"`
	Required       bool               `json:"required,omitempty" yaml:"required,omitempty"`
	PossibleValues []string           `json:"possibleValues,omitempty" yaml:"possibleValues,omitempty"` // String enums only
	Fields         map[string]*Schema `json:"fields,omitempty" yaml:"fields,omitempty"`                 // Object only
	ElementType    *Schema            `json:"elementType,omitempty" yaml:"elementType,omitempty"`       // Array only
}

// Issue is one validation failure.
type Issue struct {
	Path     string `json:"path" yaml:"path"`
	Message  string `json:"message" yaml:"message"`
	Required bool   `json:"required" yaml:"required"`
	Pruned   bool   `json:"pruned,omitempty" yaml:"pruned,omitempty"` // Value was nulled or its element dropped
}

// String returns a short description of the issue.
func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Result summarizes a validation pass.
type Result struct {
	Valid  bool
	Issues []Issue
}

// sentinels are model answers that mean "no value".
var sentinels = map[string]struct{}{
	"null":    {},
	"unclear": {},
	"unknown": {},
}

// Validate checks value against s, repairing fixable mismatches in place.
// It reports true iff every required field satisfies its schema after
// coercion. Required values that are missing are set to null, never invented.
func Validate(value *any, s *Schema) bool {
	return Check(value, s).Valid
}

// Check is Validate with the list of failures.
func Check(value *any, s *Schema) Result {
	c := &checker{}
	ok := c.check(value, s, "$")
	return Result{Valid: ok && len(c.issues) == 0, Issues: c.issues}
}

// Prune validates like Check, and then degrades whatever still fails:
// invalid optional values become null and array elements whose required
// fields fail are dropped. Valid reports whether the pruned value as a whole
// satisfies s.
func Prune(value *any, s *Schema) Result {
	c := &checker{prune: true}
	ok := c.check(value, s, "$")
	return Result{Valid: ok, Issues: c.issues}
}

type checker struct {
	prune  bool
	issues []Issue
}

func (c *checker) fail(path, msg string, required bool) {
	c.issues = append(c.issues, Issue{Path: path, Message: msg, Required: required})
}

func (c *checker) markPruned(from int) {
	for i := from; i < len(c.issues); i++ {
		c.issues[i].Pruned = true
	}
}

func (c *checker) check(v *any, s *Schema, path string) bool {
	if s == nil {
		return true
	}

	if str, ok := (*v).(string); ok {
		if _, sentinel := sentinels[strings.ToLower(strings.TrimSpace(str))]; sentinel {
			*v = nil
		}
	}

	if *v == nil {
		if s.Required {
			c.fail(path, "required value is missing", true)
			return false
		}
		return true
	}

	mark := len(c.issues)
	var ok bool
	switch s.Type {
	case Object:
		ok = c.object(v, s, path)
	case Array:
		ok = c.array(v, s, path)
	case String:
		ok = c.string(v, s, path)
	case Number:
		ok = c.number(v, s, path)
	case Boolean:
		ok = c.boolean(v, s, path)
	default:
		c.fail(path, fmt.Sprintf("unknown schema type %q", s.Type), s.Required)
		ok = false
	}

	if !ok && c.prune && !s.Required {
		*v = nil
		c.markPruned(mark)
		return true
	}
	return ok
}

func (c *checker) object(v *any, s *Schema, path string) bool {
	m, ok := (*v).(map[string]any)
	if !ok {
		c.fail(path, fmt.Sprintf("expected object, got %T", *v), s.Required)
		return false
	}

	valid := true
	for _, name := range slices.Sorted(maps.Keys(s.Fields)) {
		child := m[name]
		if !c.check(&child, s.Fields[name], path+"."+name) {
			valid = false
		}
		m[name] = child
	}
	return valid
}

func (c *checker) array(v *any, s *Schema, path string) bool {
	var list []any
	switch t := (*v).(type) {
	case []any:
		list = t
	case map[string]any:
		list = []any{t}
	default:
		c.fail(path, fmt.Sprintf("expected array, got %T", *v), s.Required)
		return false
	}

	valid := true
	kept := list[:0:0]
	for i := range list {
		mark := len(c.issues)
		elem := list[i]
		ok := c.check(&elem, s.ElementType, fmt.Sprintf("%s[%d]", path, i))
		if c.prune && (!ok || (elem == nil && len(c.issues) > mark)) {
			c.markPruned(mark)
			continue
		}
		if !ok {
			valid = false
		}
		kept = append(kept, elem)
	}
	*v = kept
	return valid
}

func (c *checker) string(v *any, s *Schema, path string) bool {
	var str string
	switch t := (*v).(type) {
	case string:
		str = t
	case float64:
		str = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		str = strconv.Itoa(t)
	case int64:
		str = strconv.FormatInt(t, 10)
	case json.Number:
		str = t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			c.fail(path, "cannot stringify value", s.Required)
			return false
		}
		str = string(b)
	default:
		c.fail(path, fmt.Sprintf("expected string, got %T", *v), s.Required)
		return false
	}

	if len(s.PossibleValues) > 0 {
		canonical, ok := matchEnum(str, s.PossibleValues)
		if !ok {
			c.fail(path, fmt.Sprintf("%q is not one of %v", str, s.PossibleValues), s.Required)
			return false
		}
		str = canonical
	}

	*v = str
	return true
}

func matchEnum(value string, allowed []string) (string, bool) {
	for _, a := range allowed {
		if value == a {
			return a, true
		}
	}
	trimmed := strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(trimmed, a) {
			return a, true
		}
	}
	return "", false
}

func (c *checker) number(v *any, s *Schema, path string) bool {
	var f float64
	switch t := (*v).(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			c.fail(path, fmt.Sprintf("%q is not a number", t), s.Required)
			return false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			c.fail(path, fmt.Sprintf("%q is not a number", t), s.Required)
			return false
		}
		f = parsed
	default:
		c.fail(path, fmt.Sprintf("expected number, got %T", *v), s.Required)
		return false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		c.fail(path, "number is not finite", s.Required)
		return false
	}
	*v = f
	return true
}

func (c *checker) boolean(v *any, s *Schema, path string) bool {
	switch t := (*v).(type) {
	case bool:
		return true
	case string:
		switch t {
		case "true":
			*v = true
			return true
		case "false":
			*v = false
			return true
		}
	}
	c.fail(path, fmt.Sprintf("expected boolean, got %v", *v), s.Required)
	return false
}
