// File: internal/collection/list.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Generic doubly-linked ordered collection with predicate lookup/removal
// and a resettable single-pass enumerator. Not safe for concurrent use.

package collection

import "github.com/momentics/hioload-mux/api"

type node[T any] struct {
	prev, next *node[T]
	value      T
}

// List is an ordered collection; the zero value is an empty list.
type List[T any] struct {
	head, tail *node[T]
	count      int
}

var _ api.Collection[int] = (*List[int])(nil)

// New returns an empty list.
func New[T any]() *List[T] {
	return &List[T]{}
}

// InsertFirst prepends v.
func (l *List[T]) InsertFirst(v T) {
	n := &node[T]{value: v, next: l.head}
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	l.count++
}

// InsertLast appends v.
func (l *List[T]) InsertLast(v T) {
	n := &node[T]{value: v, prev: l.tail}
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.count++
}

// RemoveFirst pops the head element.
func (l *List[T]) RemoveFirst() (T, bool) {
	if l.head == nil {
		var zero T
		return zero, false
	}
	n := l.head
	l.unlink(n)
	return n.value, true
}

// RemoveLast pops the tail element.
func (l *List[T]) RemoveLast() (T, bool) {
	if l.tail == nil {
		var zero T
		return zero, false
	}
	n := l.tail
	l.unlink(n)
	return n.value, true
}

// Top pops the head element. It is the FIFO counterpart of InsertLast.
func (l *List[T]) Top() (T, bool) {
	return l.RemoveFirst()
}

// Peek returns the head element without removing it.
func (l *List[T]) Peek() (T, bool) {
	if l.head == nil {
		var zero T
		return zero, false
	}
	return l.head.value, true
}

// FindFirst returns the first element matching, scanning from the head.
func (l *List[T]) FindFirst(match func(T) bool) (T, bool) {
	for n := l.head; n != nil; n = n.next {
		if match(n.value) {
			return n.value, true
		}
	}
	var zero T
	return zero, false
}

// Remove deletes every matching element and returns how many were removed.
func (l *List[T]) Remove(match func(T) bool) int {
	removed := 0
	for n := l.head; n != nil; {
		next := n.next
		if match(n.value) {
			l.unlink(n)
			removed++
		}
		n = next
	}
	return removed
}

// Count returns the number of elements.
func (l *List[T]) Count() int {
	return l.count
}

// Clear drops every element.
func (l *List[T]) Clear() {
	for n := l.head; n != nil; {
		next := n.next
		n.prev, n.next = nil, nil
		n = next
	}
	l.head, l.tail, l.count = nil, nil, 0
}

// Values returns the elements in order.
func (l *List[T]) Values() []T {
	out := make([]T, 0, l.count)
	for n := l.head; n != nil; n = n.next {
		out = append(out, n.value)
	}
	return out
}

// Enumerate returns an enumerator positioned at the head.
func (l *List[T]) Enumerate() *Enumerator[T] {
	return &Enumerator[T]{list: l, cur: l.head}
}

func (l *List[T]) unlink(n *node[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	l.count--
}

// Enumerator walks a List once. Mutating the list during a walk is
// allowed only through RemoveCurrent; any other mutation requires Reset.
type Enumerator[T any] struct {
	list *List[T]
	cur  *node[T]
	last *node[T]
}

var _ api.Enumerator[int] = (*Enumerator[int])(nil)

// Next yields the next element.
func (e *Enumerator[T]) Next() (T, bool) {
	if e.cur == nil {
		e.last = nil
		var zero T
		return zero, false
	}
	e.last = e.cur
	e.cur = e.cur.next
	return e.last.value, true
}

// RemoveCurrent removes the element last returned by Next.
func (e *Enumerator[T]) RemoveCurrent() bool {
	if e.last == nil {
		return false
	}
	e.list.unlink(e.last)
	e.last = nil
	return true
}

// Reset rewinds to the head.
func (e *Enumerator[T]) Reset() {
	e.cur = e.list.head
	e.last = nil
}
