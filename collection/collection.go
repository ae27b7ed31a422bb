package collection

import (
	"container/list"
	"fmt"
	"math/rand"
	"sync"

	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/tidwall/gjson"
)

// Unlimited disables eviction.
const Unlimited = -1

// Entity is anything a Collection can hold. Update must mutate the receiver in place so
// references held elsewhere observe the new data.
type Entity interface {
	ID() string
	Update(data []byte, extra any) error
}

// Factory builds a new entity from raw JSON data. extra is passed through untouched from
// Add/Update and carries whatever context the entity type needs.
type Factory[T Entity] func(data []byte, extra any) (T, error)

type settings struct {
	limit  int
	idPath string
}

// Option configures a Collection.
type Option func(*settings)

// WithLimit bounds the number of stored entries. A limit of 0 turns the collection into a
// pass-through that never stores anything.
func WithLimit(limit int) Option {
	return func(s *settings) { s.limit = limit }
}

// WithIDPath changes the gjson path used to find the id in raw data (default "id").
func WithIDPath(path string) Option {
	return func(s *settings) { s.idPath = path }
}

// Collection is a concurrency-safe id -> entity map that iterates in insertion order and
// evicts the oldest-inserted entries once its limit is exceeded.
type Collection[T Entity] struct {
	name    string
	factory Factory[T]
	limit   int
	idPath  string

	mu    sync.RWMutex
	items map[string]*list.Element
	order *list.List
}

type entry[T Entity] struct {
	key   string
	value T
}

// New creates a collection. name is only used by String.
func New[T Entity](name string, factory Factory[T], opts ...Option) *Collection[T] {
	s := settings{limit: Unlimited, idPath: "id"}
	for _, opt := range opts {
		opt(&s)
	}

	return &Collection[T]{
		name:    name,
		factory: factory,
		limit:   s.limit,
		idPath:  s.idPath,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Add builds an entity from raw data and stores it. When an entry with the same id exists
// and replace is false the existing entry is returned untouched.
func (c *Collection[T]) Add(data []byte, extra any, replace bool) (T, error) {
	if c.limit == 0 {
		return c.factory(data, extra)
	}

	id, err := c.idOf(data)
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(id, data, extra, replace)
}

// AddEntity stores an already built entity. It is the counterpart of Add for callers that
// hold an instance instead of raw data; the factory is never called.
func (c *Collection[T]) AddEntity(entity T, replace bool) (T, error) {
	if c.limit == 0 {
		return entity, nil
	}

	id := entity.ID()
	if id == "" {
		var zero T
		return zero, fmt.Errorf("%w: missing object id", errs.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[id]; ok && !replace {
		return existing.Value.(*entry[T]).value, nil
	}
	c.storeLocked(id, entity)
	return entity, nil
}

// Update applies raw data to the stored entity with the same id, keeping its identity.
// Unknown ids fall through to Add.
func (c *Collection[T]) Update(data []byte, extra any, replace bool) (T, error) {
	var zero T

	id, err := c.idOf(data)
	if err != nil {
		return zero, err
	}

	if c.limit == 0 {
		return c.factory(data, extra)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[id]
	if !ok {
		return c.addLocked(id, data, extra, replace)
	}

	item := element.Value.(*entry[T]).value
	if err := item.Update(data, extra); err != nil {
		return zero, fmt.Errorf("failed to update %s %s: %w", c.name, id, err)
	}
	return item, nil
}

// Remove deletes the entry with the given id and returns it.
func (c *Collection[T]) Remove(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[id]
	if !ok {
		var zero T
		return zero, false
	}

	c.order.Remove(element)
	delete(c.items, id)
	return element.Value.(*entry[T]).value, true
}

// Get returns the entry with the given id. Lookups never change eviction order.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	element, ok := c.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return element.Value.(*entry[T]).value, true
}

// Has reports whether id is stored.
func (c *Collection[T]) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[id]
	return ok
}

// Size returns the number of stored entries.
func (c *Collection[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Limit returns the configured limit (Unlimited when unbounded).
func (c *Collection[T]) Limit() int {
	return c.limit
}

// Keys returns the stored ids in insertion order.
func (c *Collection[T]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*entry[T]).key)
	}
	return keys
}

// Values returns a snapshot of the stored entities in insertion order.
func (c *Collection[T]) Values() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	values := make([]T, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		values = append(values, element.Value.(*entry[T]).value)
	}
	return values
}

// Random returns a uniformly chosen entry, or false when the collection is empty.
func (c *Collection[T]) Random() (T, bool) {
	values := c.Values()
	if len(values) == 0 {
		var zero T
		return zero, false
	}
	return values[rand.Intn(len(values))], true
}

func (c *Collection[T]) String() string {
	return fmt.Sprintf("[Collection<%s>]", c.name)
}

// idOf extracts a usable id from raw data. Missing, null, false and empty ids are rejected;
// the number 0 is a valid id.
func (c *Collection[T]) idOf(data []byte) (string, error) {
	result := gjson.GetBytes(data, c.idPath)

	switch result.Type {
	case gjson.String:
		if result.Str != "" {
			return result.Str, nil
		}
	case gjson.Number:
		return result.Raw, nil
	}

	return "", fmt.Errorf("%w: missing object id", errs.ErrInvalidArgument)
}

// addLocked implements Add once the id is known. Caller must hold the write lock.
func (c *Collection[T]) addLocked(id string, data []byte, extra any, replace bool) (T, error) {
	if existing, ok := c.items[id]; ok && !replace {
		return existing.Value.(*entry[T]).value, nil
	}

	entity, err := c.factory(data, extra)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to build %s %s: %w", c.name, id, err)
	}

	c.storeLocked(id, entity)
	return entity, nil
}

// storeLocked inserts or replaces an entry and enforces the limit. Replacing keeps the
// original insertion position. Caller must hold the write lock.
func (c *Collection[T]) storeLocked(id string, entity T) {
	if element, ok := c.items[id]; ok {
		element.Value.(*entry[T]).value = entity
		return
	}

	c.items[id] = c.order.PushBack(&entry[T]{key: id, value: entity})

	if c.limit <= 0 {
		return
	}
	for len(c.items) > c.limit {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[T]).key)
	}
}
