package model

import (
	"fmt"
	"sync/atomic"
)

type State string

const (
	StateUnloaded State = "unloaded"
	StateReady    State = "ready"
)

type entry[T any] struct {
	value   T
	version string
}

// Slot holds an optional model. Readers never block writers: Store and
// Clear swap the whole entry atomically.
type Slot[T any] struct {
	name string
	p    atomic.Pointer[entry[T]]
}

func NewSlot[T any](name string) *Slot[T] {
	return &Slot[T]{name: name}
}

func (s *Slot[T]) Name() string {
	return s.name
}

func (s *Slot[T]) Store(v T, version string) {
	s.p.Store(&entry[T]{value: v, version: version})
}

func (s *Slot[T]) Clear() {
	s.p.Store(nil)
}

// Get returns the model or an error wrapping ErrUnavailable.
func (s *Slot[T]) Get() (T, error) {
	if e := s.p.Load(); e != nil {
		return e.value, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: %s not loaded", ErrUnavailable, s.name)
}

func (s *Slot[T]) State() State {
	if s.p.Load() == nil {
		return StateUnloaded
	}
	return StateReady
}

func (s *Slot[T]) Ready() bool {
	return s.p.Load() != nil
}

func (s *Slot[T]) Version() string {
	if e := s.p.Load(); e != nil {
		return e.version
	}
	return ""
}
