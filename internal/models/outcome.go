package models

// Outcome is the terminal result of one unit of work against one target.
// It is a success when Err is nil.
type Outcome[T any] struct {
	Target Target
	Value  T
	Err    error
}

// OK reports whether the unit of work succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Succeeded builds a successful outcome.
func Succeeded[T any](target Target, value T) Outcome[T] {
	return Outcome[T]{Target: target, Value: value}
}

// Failed builds a failed outcome.
func Failed[T any](target Target, err error) Outcome[T] {
	return Outcome[T]{Target: target, Err: err}
}

// Aggregate holds one outcome per input target, in input order.
type Aggregate[T any] []Outcome[T]

// Failures returns the number of failed outcomes.
func (a Aggregate[T]) Failures() int {
	n := 0
	for _, outcome := range a {
		if !outcome.OK() {
			n++
		}
	}
	return n
}

// Errors returns the errors of failed outcomes in input order.
func (a Aggregate[T]) Errors() []error {
	var errs []error
	for _, outcome := range a {
		if outcome.Err != nil {
			errs = append(errs, outcome.Err)
		}
	}
	return errs
}
