package bus

// PendingReplies returns the number of registered reply channels
func (b *Bus) PendingReplies() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
