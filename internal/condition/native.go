package condition

import "iter"

// NativeKind distinguishes native leaf and group conditions.
type NativeKind int

const (
	NativeLeaf NativeKind = iota
	NativeGroup
)

// Status is the outcome of one enumerator step.
type Status int

const (
	// StatusMore means a condition was returned and more may follow.
	StatusMore Status = iota
	// StatusDone means the enumeration is exhausted.
	StatusDone
)

// Native is a condition object of the query engine.
type Native interface {
	Kind() NativeKind
	// Comparison returns the leaf's property name, operation and value.
	Comparison() (property string, op Operation, value string, err error)
	// Combinator returns a group's combinator.
	Combinator() Combinator
	// SubConditions enumerates a group's children.
	SubConditions() (Enumerator, error)
}

// Enumerator yields sub-conditions one at a time. Next returns StatusMore
// with a condition, StatusDone when exhausted, or an error.
type Enumerator interface {
	Next() (Native, Status, error)
}

// Children adapts an enumerator to a range-over-func sequence. The sequence
// ends after the last condition, or after yielding the first error.
func Children(enum Enumerator) iter.Seq2[Native, error] {
	return func(yield func(Native, error) bool) {
		if enum == nil {
			return
		}
		for {
			n, status, err := enum.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if status != StatusMore {
				return
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}
