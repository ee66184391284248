// Package filter compiles opaque filter expressions from long-poll
// requests into predicates over item payloads. Expressions use CEL so
// clients can filter on arbitrary payload fields without the broker
// knowing anything about item shape.
package filter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
)

// Predicate wraps a compiled CEL program. The zero value (and any
// Predicate compiled from an empty expression) matches every item.
type Predicate struct {
	prog    cel.Program
	enabled bool
}

// Compile parses and type-checks a filter expression. An empty or
// all-whitespace expression yields a match-all predicate. Available
// variables:
//
//	id         item ID (string)
//	created_ms item creation time, epoch ms (int)
//	age_ms     now - created_ms (int)
//	json       the item payload as a dynamic value
//	text       the payload serialized to JSON (string)
func Compile(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Predicate{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("created_ms", cel.IntType),
		cel.Variable("age_ms", cel.IntType),
		cel.Variable("json", cel.DynType),
		cel.Variable("text", cel.StringType),
	)
	if err != nil {
		return Predicate{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Predicate{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Predicate{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{prog: prog, enabled: true}, nil
}

// Match evaluates the predicate against one item. Evaluation errors
// (e.g. a missing payload field) count as no-match rather than faults.
func (p Predicate) Match(item domain.Item, now time.Time) bool {
	if !p.enabled {
		return true
	}

	var payload any = item.Payload
	if item.Payload == nil {
		payload = map[string]any{}
	}
	text := ""
	if b, err := json.Marshal(payload); err == nil {
		text = string(b)
	}

	out, _, err := p.prog.Eval(map[string]any{
		"id":         item.ID,
		"created_ms": item.CreatedMs,
		"age_ms":     now.UnixMilli() - item.CreatedMs,
		"json":       payload,
		"text":       text,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Apply returns the items matching the predicate, preserving order.
// The input slice is never mutated.
func (p Predicate) Apply(items []domain.Item, now time.Time) []domain.Item {
	if !p.enabled {
		return items
	}
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if p.Match(item, now) {
			out = append(out, item)
		}
	}
	return out
}
