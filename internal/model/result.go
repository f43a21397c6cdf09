package model

// Degradation records a best-effort step that failed without failing the
// operation that triggered it.
type Degradation struct {
	Component string `json:"component"`
	Reason    string `json:"reason"`
}

// Result carries a value that may have been produced in a degraded way.
type Result[T any] struct {
	Value    T            `json:"value"`
	Degraded *Degradation `json:"degraded,omitempty"`
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func Degrade[T any](v T, component, reason string) Result[T] {
	return Result[T]{Value: v, Degraded: &Degradation{Component: component, Reason: reason}}
}

func (r Result[T]) IsDegraded() bool { return r.Degraded != nil }
