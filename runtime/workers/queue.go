package workers

// Offer enqueues item without blocking. It reports false when the queue is full.
func Offer[T any](queue chan<- T, item T) bool {
	select {
	case queue <- item:
		return true
	default:
		return false
	}
}
