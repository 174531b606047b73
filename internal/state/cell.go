package state

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInternalState is returned when a guarded value can no longer be accessed
// because a previous writer panicked while holding it.
var ErrInternalState = errors.New("internal state unavailable")

// Cell guards a single value with its own lock. Reads and writes are atomic
// with respect to each other, and a panic raised while the cell is held for
// writing poisons it: every later access fails with ErrInternalState.
type Cell[T any] struct {
	name     string
	mu       sync.RWMutex
	value    T
	poisoned bool
}

// NewCell creates a cell holding the initial value.
func NewCell[T any](name string, value T) *Cell[T] {
	return &Cell[T]{name: name, value: value}
}

// Get returns a copy of the current value.
func (c *Cell[T]) Get() (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.poisoned {
		var zero T
		return zero, c.poisonedErr()
	}
	return c.value, nil
}

// Set replaces the value wholesale.
func (c *Cell[T]) Set(value T) error {
	return c.Update(func(T) T { return value })
}

// Update replaces the value with the result of modify, called with the lock held.
// If modify panics the cell is poisoned and the panic is propagated.
func (c *Cell[T]) Update(modify func(current T) T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poisoned {
		return c.poisonedErr()
	}

	defer func() {
		if r := recover(); r != nil {
			c.poisoned = true
			panic(r)
		}
	}()

	c.value = modify(c.value)
	return nil
}

// Poisoned reports whether the cell has been poisoned.
func (c *Cell[T]) Poisoned() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.poisoned
}

func (c *Cell[T]) poisonedErr() error {
	return fmt.Errorf("%w: %s lock poisoned", ErrInternalState, c.name)
}
