// Package timeutil provides a small abstraction over the system clock so
// components can be tested with controlled time.
package timeutil

import "time"

// Provider supplies the current time. Components hold a Provider instead of
// calling time.Now directly so tests can substitute a fixed clock.
type Provider interface {
	Now() time.Time
}

type realTime struct{}

func (realTime) Now() time.Time { return time.Now() }

// Default returns a Provider backed by the system clock.
func Default() Provider { return realTime{} }

// Mock is a Provider that reports a fixed time. Tests construct it with the
// time they want and mutate CurrentTime (or call Advance) between steps.
type Mock struct {
	CurrentTime time.Time
}

// NewMock returns a Mock pinned to the given time.
func NewMock(t time.Time) *Mock { return &Mock{CurrentTime: t} }

// Now returns the mock's current time.
func (m Mock) Now() time.Time { return m.CurrentTime }

// Advance moves the mock clock forward by d.
func (m *Mock) Advance(d time.Duration) { m.CurrentTime = m.CurrentTime.Add(d) }
