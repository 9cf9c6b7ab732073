package sampler

// rotation cycles through display messages one per tick.
type rotation struct {
	index int
}

// pick returns the message to show now and advances. The index is reduced
// modulo the current count first, so a shrinking message list never panics.
func (r *rotation) pick(messages []string) (string, bool) {
	n := len(messages)
	if n == 0 {
		r.index = 0
		return "", false
	}
	r.index %= n
	msg := messages[r.index]
	r.index = (r.index + 1) % n
	return msg, true
}
