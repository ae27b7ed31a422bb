package parallel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Task represents a function to be executed in parallel
type Task func(ctx context.Context) (any, error)

// Result holds the result and error from a parallel task execution
type Result struct {
	Value any
	Error error
}

// Results holds the map of results from parallel execution
type Results map[string]Result

// Builder manages parallel task execution with type-safe retrieval
type Builder struct {
	tasks map[string]Task
	limit int
}

// NewBuilder creates a new parallel builder
func NewBuilder() *Builder {
	return &Builder{
		tasks: make(map[string]Task),
	}
}

// Add adds a keyed task to be executed in parallel
func (b *Builder) Add(key string, task Task) *Builder {
	b.tasks[key] = task
	return b
}

// Limit caps how many tasks run at once. Zero or less means no cap.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Len returns the number of tasks added so far
func (b *Builder) Len() int {
	return len(b.tasks)
}

// Run executes all tasks in parallel and returns results keyed by their original keys
func (b *Builder) Run(ctx context.Context) Results {
	if len(b.tasks) == 0 {
		return Results{}
	}

	results := make(Results)
	var mu sync.Mutex
	var wg sync.WaitGroup

	var slots chan struct{}
	if b.limit > 0 {
		slots = make(chan struct{}, b.limit)
	}

	for key, task := range b.tasks {
		wg.Add(1)
		go func(k string, t Task) {
			defer wg.Done()
			if slots != nil {
				select {
				case slots <- struct{}{}:
					defer func() { <-slots }()
				case <-ctx.Done():
					mu.Lock()
					results[k] = Result{Error: ctx.Err()}
					mu.Unlock()
					return
				}
			}

			value, err := runTask(ctx, k, t)

			mu.Lock()
			results[k] = Result{Value: value, Error: err}
			mu.Unlock()
		}(key, task)
	}

	wg.Wait()
	return results
}

// runTask turns a panicking task into an error so one bad task cannot take the process down
func runTask(ctx context.Context, key string, t Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("task %s panicked: %v", key, r)
		}
	}()
	return t(ctx)
}

// Err joins the errors of every failed task, ordered by key
func (r Results) Err() error {
	keys := make([]string, 0, len(r))
	for key, result := range r {
		if result.Error != nil {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	errs := make([]error, 0, len(keys))
	for _, key := range keys {
		errs = append(errs, fmt.Errorf("%s: %w", key, r[key].Error))
	}
	return errors.Join(errs...)
}

// Get retrieves a typed result using the function signature to infer the return type
func Get[T any](results Results, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	result, exists := results[key]
	if !exists {
		var zero T
		return zero, fmt.Errorf("no result found for key: %s", key)
	}

	if result.Error != nil {
		var zero T
		return zero, result.Error
	}

	// Type assert to the inferred type from the function signature
	value, ok := result.Value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("type assertion failed for key %s: expected %T, got %T", key, zero, result.Value)
	}

	return value, nil
}
