package collection

import (
	"encoding/json"
	"fmt"

	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/tidwall/sjson"
)

// All traversals run over a snapshot taken at call time, so callbacks may freely call back
// into the collection.

// Find returns the first entity, in insertion order, for which fn is true.
func (c *Collection[T]) Find(fn func(T) bool) (T, bool) {
	for _, item := range c.Values() {
		if fn(item) {
			return item, true
		}
	}

	var zero T
	return zero, false
}

// Filter returns every entity for which fn is true.
func (c *Collection[T]) Filter(fn func(T) bool) []T {
	matches := []T{}
	for _, item := range c.Values() {
		if fn(item) {
			matches = append(matches, item)
		}
	}
	return matches
}

// Some reports whether fn is true for at least one entity.
func (c *Collection[T]) Some(fn func(T) bool) bool {
	_, ok := c.Find(fn)
	return ok
}

// Every reports whether fn is true for all entities. It is true for an empty collection.
func (c *Collection[T]) Every(fn func(T) bool) bool {
	for _, item := range c.Values() {
		if !fn(item) {
			return false
		}
	}
	return true
}

// Reduce folds the collection using its first entity as the seed. It returns errs.ErrEmpty
// when there is nothing to reduce.
func (c *Collection[T]) Reduce(fn func(acc T, item T) T) (T, error) {
	values := c.Values()
	if len(values) == 0 {
		var zero T
		return zero, fmt.Errorf("reduce %s: %w", c.name, errs.ErrEmpty)
	}

	acc := values[0]
	for _, item := range values[1:] {
		acc = fn(acc, item)
	}
	return acc, nil
}

// Map applies fn to every entity of c.
func Map[T Entity, R any](c *Collection[T], fn func(T) R) []R {
	values := c.Values()
	out := make([]R, 0, len(values))
	for _, item := range values {
		out = append(out, fn(item))
	}
	return out
}

// Fold reduces c starting from initial.
func Fold[T Entity, R any](c *Collection[T], fn func(acc R, item T) R, initial R) R {
	acc := initial
	for _, item := range c.Values() {
		acc = fn(acc, item)
	}
	return acc
}

// ToJSON renders the collection as a JSON object keyed by id.
func (c *Collection[T]) ToJSON() ([]byte, error) {
	out := []byte("{}")

	for _, item := range c.Values() {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s %s: %w", c.name, item.ID(), err)
		}

		out, err = sjson.SetRawBytes(out, escapeKey(item.ID()), raw)
		if err != nil {
			return nil, fmt.Errorf("failed to set %s %s: %w", c.name, item.ID(), err)
		}
	}

	return out, nil
}

// escapeKey keeps sjson from reading ids as paths. Snowflakes are purely numeric, which
// sjson would otherwise treat as array indexes.
func escapeKey(id string) string {
	escaped := make([]byte, 0, len(id)+2)
	escaped = append(escaped, ':')
	for i := 0; i < len(id); i++ {
		switch id[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, id[i])
	}
	return string(escaped)
}
