package clock

import "time"

// Clock is injected wherever records are timestamped.
type Clock interface {
	Now() time.Time
}

type system struct{}

// System returns a UTC wall clock.
func System() Clock { return system{} }

func (system) Now() time.Time { return time.Now().UTC() }

type fixed struct{ now time.Time }

// Fixed always reports t. Tests use it to assert exact timestamps.
func Fixed(t time.Time) Clock { return fixed{now: t.UTC()} }

func (f fixed) Now() time.Time { return f.now }

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
