// File: api/collection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Collection is a mutable ordered sequence. Implementations are not
// safe for concurrent use; callers serialize access.
type Collection[T any] interface {
	InsertFirst(v T)
	InsertLast(v T)
	RemoveFirst() (T, bool)
	// Top pops the head element.
	Top() (T, bool)
	FindFirst(match func(T) bool) (T, bool)
	// Remove deletes every element for which match returns true and
	// reports how many were removed.
	Remove(match func(T) bool) int
	Count() int
}

// Enumerator walks a Collection once; Reset rewinds it to the head.
type Enumerator[T any] interface {
	Next() (T, bool)
	Reset()
}
