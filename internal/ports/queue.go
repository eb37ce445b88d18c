package ports

// Queue is a bounded FIFO.
type Queue[T any] interface {
	// Enqueue reports false when the item was dropped.
	Enqueue(item T) bool
	DequeueBatch(max int) []T
	Len() int
}
