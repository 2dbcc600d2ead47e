package topics

// Unread counts unread posts per topic. Get never fails and returns 0 for
// topics with no recorded activity.
type Unread struct {
	counts map[string]int
}

// NewUnread creates an empty tracker.
func NewUnread() *Unread {
	return &Unread{counts: make(map[string]int)}
}

// Get returns the unread count for topic.
func (u *Unread) Get(topic string) int {
	if u == nil {
		return 0
	}
	return u.counts[topic]
}

// Increment records one more unread post on topic.
func (u *Unread) Increment(topic string) int {
	u.counts[topic]++
	return u.counts[topic]
}

// Reset marks topic as read.
func (u *Unread) Reset(topic string) {
	delete(u.counts, topic)
}

// Total returns the unread count summed over all topics.
func (u *Unread) Total() int {
	n := 0
	for _, c := range u.counts {
		n += c
	}
	return n
}
